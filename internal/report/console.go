package report

import (
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"usagestats/internal/models"
)

// minColumnWidth keeps narrow columns readable.
const minColumnWidth = 3

// RenderTable renders the per-day counts as an aligned text table with
// one row per date and a trailing totals row. Column widths follow
// display width so wide characters in frontend labels keep the grid
// straight.
func RenderTable(usage models.DailyUsage, frontends []string) string {
	header := make([]string, 0, len(frontends)+2)
	header = append(header, "Date")
	header = append(header, frontends...)
	header = append(header, "Total")

	rows := [][]string{header}

	byFrontend := make(map[string]int)

	for _, dc := range usage.Days() {
		row := make([]string, 0, len(header))
		row = append(row, dc.Date.String())

		for _, label := range frontends {
			row = append(row, strconv.Itoa(dc.Frontends[label]))
			byFrontend[label] += dc.Frontends[label]
		}

		row = append(row, strconv.Itoa(dc.Total))
		rows = append(rows, row)
	}

	footer := make([]string, 0, len(header))
	footer = append(footer, "Total")

	for _, label := range frontends {
		footer = append(footer, strconv.Itoa(byFrontend[label]))
	}

	footer = append(footer, strconv.Itoa(usage.Total()))
	rows = append(rows, footer)

	return renderRows(rows)
}

// renderRows rebuilds the rows as pipe-delimited lines padded to the
// widest cell in each column.
func renderRows(rows [][]string) string {
	widths := columnWidths(rows)

	var sb strings.Builder

	for i, row := range rows {
		sb.WriteString(formatRow(row, widths))
		sb.WriteString("\n")

		if i == 0 {
			sb.WriteString(separatorRow(widths))
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

func columnWidths(rows [][]string) []int {
	if len(rows) == 0 {
		return nil
	}

	widths := make([]int, len(rows[0]))

	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				break
			}

			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	for i := range widths {
		if widths[i] < minColumnWidth {
			widths[i] = minColumnWidth
		}
	}

	return widths
}

func formatRow(row []string, widths []int) string {
	var sb strings.Builder

	sb.WriteString("|")

	for i, width := range widths {
		cell := ""
		if i < len(row) {
			cell = row[i]
		}

		padding := width - runewidth.StringWidth(cell)
		if padding < 0 {
			padding = 0
		}

		sb.WriteString(" ")
		sb.WriteString(cell)
		sb.WriteString(strings.Repeat(" ", padding))
		sb.WriteString(" |")
	}

	return sb.String()
}

func separatorRow(widths []int) string {
	var sb strings.Builder

	sb.WriteString("|")

	for _, width := range widths {
		sb.WriteString(" ")
		sb.WriteString(strings.Repeat("-", width))
		sb.WriteString(" |")
	}

	return sb.String()
}

// Package report emits per-institution usage reports: workbook sheets,
// console tables, and JSON summaries.
package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"usagestats/internal/models"
)

// Workbook writes institution sheets into the report workbook at Path.
// One workbook holds one sheet per institution; re-running a report
// merges into the existing sheet instead of replacing history.
type Workbook struct {
	Path string
}

// NewWorkbook creates a workbook handle. The file is created on the
// first upsert.
func NewWorkbook(path string) *Workbook {
	return &Workbook{Path: path}
}

// sheetRow is one merged report row.
type sheetRow struct {
	date      models.Date
	total     int
	frontends map[string]int
}

// UpsertSheet merges usage into the institution's sheet and saves the
// workbook. Existing rows survive; a date present on both sides keeps
// the row with the larger total, so re-running a report never shrinks a
// day.
func (w *Workbook) UpsertSheet(inst *models.Institution, usage models.DailyUsage, frontends []string) error {
	f, isNew, err := w.open()
	if err != nil {
		return err
	}
	defer f.Close()

	sheet := inst.SheetName()

	rows := mergeRows(existingRows(f, sheet), usage)

	if err := writeSheet(f, sheet, rows, frontends); err != nil {
		return err
	}

	if isNew && sheet != "Sheet1" {
		// Fresh workbooks start with a default sheet nothing uses
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return fmt.Errorf("failed to drop default sheet: %w", err)
		}
	}

	return w.save(f)
}

// open returns the workbook at Path, creating a fresh one when the file
// does not exist yet.
func (w *Workbook) open() (*excelize.File, bool, error) {
	f, err := excelize.OpenFile(w.Path)
	if err == nil {
		return f, false, nil
	}

	if errors.Is(err, os.ErrNotExist) {
		return excelize.NewFile(), true, nil
	}

	return nil, false, fmt.Errorf("failed to open report workbook: %w", err)
}

func (w *Workbook) save(f *excelize.File) error {
	if dir := filepath.Dir(w.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	if err := f.SaveAs(w.Path); err != nil {
		return fmt.Errorf("failed to save report workbook: %w", err)
	}

	return nil
}

// existingRows reads the institution's current sheet. Sheets written by
// older runs may carry different frontend columns; rows that no longer
// parse are dropped rather than carried as garbage.
func existingRows(f *excelize.File, sheet string) []sheetRow {
	idx, err := f.GetSheetIndex(sheet)
	if err != nil || idx < 0 {
		return nil
	}

	grid, err := f.GetRows(sheet)
	if err != nil || len(grid) < 2 {
		return nil
	}

	header := grid[0]
	dateCol, totalCol := -1, -1
	labelCols := make(map[int]string)

	for i, h := range header {
		name := strings.TrimSpace(h)

		switch {
		case strings.EqualFold(name, "Date"):
			dateCol = i
		case strings.EqualFold(name, "Total"):
			totalCol = i
		case name != "":
			labelCols[i] = name
		}
	}

	if dateCol < 0 || totalCol < 0 {
		return nil
	}

	var rows []sheetRow

	for _, r := range grid[1:] {
		date, err := models.ParseDate(cellAt(r, dateCol))
		if err != nil {
			continue
		}

		total, err := strconv.Atoi(cellAt(r, totalCol))
		if err != nil {
			continue
		}

		row := sheetRow{date: date, total: total}

		for i, label := range labelCols {
			if n, err := strconv.Atoi(cellAt(r, i)); err == nil && n != 0 {
				if row.frontends == nil {
					row.frontends = make(map[string]int)
				}

				row.frontends[label] = n
			}
		}

		rows = append(rows, row)
	}

	return rows
}

func cellAt(row []string, idx int) string {
	if idx < len(row) {
		return strings.TrimSpace(row[idx])
	}

	return ""
}

// mergeRows combines the existing sheet rows with a new usage mapping.
// Collisions on a date keep the larger total; ties keep the new row.
func mergeRows(existing []sheetRow, usage models.DailyUsage) []sheetRow {
	byDate := make(map[models.Date]sheetRow, len(existing)+len(usage))

	for _, r := range existing {
		if cur, ok := byDate[r.date]; !ok || r.total > cur.total {
			byDate[r.date] = r
		}
	}

	for _, dc := range usage.Days() {
		r := sheetRow{date: dc.Date, total: dc.Total, frontends: dc.Frontends}
		if cur, ok := byDate[r.date]; !ok || r.total >= cur.total {
			byDate[r.date] = r
		}
	}

	rows := make([]sheetRow, 0, len(byDate))
	for _, r := range byDate {
		rows = append(rows, r)
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].date.Before(rows[j].date)
	})

	return rows
}

// writeSheet rewrites the sheet with a header and the merged rows,
// clearing any stale rows a previous run left behind.
func writeSheet(f *excelize.File, sheet string, rows []sheetRow, frontends []string) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %q: %w", sheet, err)
	}

	stale, _ := f.GetRows(sheet)

	header := make([]interface{}, 0, len(frontends)+2)
	header = append(header, "Date")

	for _, label := range frontends {
		header = append(header, label)
	}

	header = append(header, "Total")

	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, row := range rows {
		cells := make([]interface{}, 0, len(frontends)+2)
		cells = append(cells, row.date.String())

		for _, label := range frontends {
			cells = append(cells, row.frontends[label])
		}

		cells = append(cells, row.total)

		cellRef := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheet, cellRef, &cells); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	for extra := len(stale); extra > len(rows)+1; extra-- {
		if err := f.RemoveRow(sheet, len(rows)+2); err != nil {
			return fmt.Errorf("failed to clear stale row: %w", err)
		}
	}

	return nil
}

package report

import (
	"fmt"
	"net/netip"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"usagestats/internal/models"
)

func testInstitution() *models.Institution {
	return &models.Institution{
		Name:         "Example University",
		Abbreviation: "EU",
		Ranges: []models.IPRange{
			{Start: netip.MustParseAddr("10.0.0.0"), End: netip.MustParseAddr("10.0.0.255")},
		},
	}
}

func makeUsage(t *testing.T, counts map[string]int) models.DailyUsage {
	t.Helper()

	usage := make(models.DailyUsage)

	for day, total := range counts {
		date, err := models.ParseDate(day)
		if err != nil {
			t.Fatalf("ParseDate(%q) error = %v", day, err)
		}

		for i := 0; i < total; i++ {
			usage.Add(date, "Main")
		}
	}

	return usage
}

func readSheet(t *testing.T, path, sheet string) [][]string {
	t.Helper()

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		t.Fatalf("GetRows(%q) error = %v", sheet, err)
	}

	return rows
}

func TestUpsertSheet_CreatesWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage-report.xlsx")
	wb := NewWorkbook(path)
	inst := testInstitution()

	usage := makeUsage(t, map[string]int{
		"2024-01-01": 2,
		"2024-01-02": 1,
	})

	if err := wb.UpsertSheet(inst, usage, []string{"Main"}); err != nil {
		t.Fatalf("UpsertSheet() error = %v", err)
	}

	rows := readSheet(t, path, "Example University")

	want := [][]string{
		{"Date", "Main", "Total"},
		{"2024-01-01", "2", "2"},
		{"2024-01-02", "1", "1"},
	}

	if len(rows) != len(want) {
		t.Fatalf("got %d rows, want %d: %v", len(rows), len(want), rows)
	}

	for i, row := range want {
		for j, cell := range row {
			if rows[i][j] != cell {
				t.Errorf("row %d col %d = %q, want %q", i, j, rows[i][j], cell)
			}
		}
	}
}

func TestUpsertSheet_DropsDefaultSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage-report.xlsx")
	wb := NewWorkbook(path)

	err := wb.UpsertSheet(testInstitution(), makeUsage(t, map[string]int{"2024-01-01": 1}), []string{"Main"})
	if err != nil {
		t.Fatalf("UpsertSheet() error = %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer f.Close()

	for _, name := range f.GetSheetList() {
		if name == "Sheet1" {
			t.Errorf("default sheet survived, sheets = %v", f.GetSheetList())
		}
	}
}

func TestUpsertSheet_MergeKeepsLargerTotal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage-report.xlsx")
	wb := NewWorkbook(path)
	inst := testInstitution()

	first := makeUsage(t, map[string]int{
		"2024-01-01": 5,
		"2024-01-02": 2,
	})
	if err := wb.UpsertSheet(inst, first, []string{"Main"}); err != nil {
		t.Fatalf("first UpsertSheet() error = %v", err)
	}

	// Smaller count for an existing date, larger for another, plus a
	// brand new date.
	second := makeUsage(t, map[string]int{
		"2024-01-01": 3,
		"2024-01-02": 7,
		"2024-01-03": 1,
	})
	if err := wb.UpsertSheet(inst, second, []string{"Main"}); err != nil {
		t.Fatalf("second UpsertSheet() error = %v", err)
	}

	rows := readSheet(t, path, inst.Name)

	want := map[string]string{
		"2024-01-01": "5",
		"2024-01-02": "7",
		"2024-01-03": "1",
	}

	if len(rows) != len(want)+1 {
		t.Fatalf("got %d rows, want %d: %v", len(rows), len(want)+1, rows)
	}

	for _, row := range rows[1:] {
		total := row[len(row)-1]
		if want[row[0]] != total {
			t.Errorf("date %s total = %s, want %s", row[0], total, want[row[0]])
		}
	}
}

func TestUpsertSheet_SheetNameFallsBackToAbbreviation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage-report.xlsx")
	wb := NewWorkbook(path)

	inst := &models.Institution{
		Name:         "The Grand Consolidated Institute of Historical Documents",
		Abbreviation: "GCIHD",
	}

	err := wb.UpsertSheet(inst, makeUsage(t, map[string]int{"2024-01-01": 1}), []string{"Main"})
	if err != nil {
		t.Fatalf("UpsertSheet() error = %v", err)
	}

	rows := readSheet(t, path, "GCIHD")
	if len(rows) != 2 {
		t.Errorf("got %d rows on abbreviation sheet, want 2", len(rows))
	}
}

func TestUpsertSheet_PreservesOtherSheets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage-report.xlsx")
	wb := NewWorkbook(path)

	first := testInstitution()
	second := &models.Institution{Name: "Northern College", Abbreviation: "NC"}

	if err := wb.UpsertSheet(first, makeUsage(t, map[string]int{"2024-01-01": 1}), []string{"Main"}); err != nil {
		t.Fatalf("UpsertSheet(first) error = %v", err)
	}
	if err := wb.UpsertSheet(second, makeUsage(t, map[string]int{"2024-02-01": 4}), []string{"Main"}); err != nil {
		t.Fatalf("UpsertSheet(second) error = %v", err)
	}

	if rows := readSheet(t, path, first.Name); len(rows) != 2 {
		t.Errorf("first sheet has %d rows, want 2", len(rows))
	}
	if rows := readSheet(t, path, second.Name); len(rows) != 2 {
		t.Errorf("second sheet has %d rows, want 2", len(rows))
	}
}

func TestUpsertSheet_DropsUnparseableRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage-report.xlsx")
	inst := testInstitution()

	// Seed a sheet by hand with a garbage row between valid ones.
	f := excelize.NewFile()
	if _, err := f.NewSheet(inst.Name); err != nil {
		t.Fatalf("NewSheet() error = %v", err)
	}

	seed := [][]interface{}{
		{"Date", "Main", "Total"},
		{"2024-01-01", 5, 5},
		{"not-a-date", "x", "y"},
	}
	for i, row := range seed {
		cell := fmt.Sprintf("A%d", i+1)
		if err := f.SetSheetRow(inst.Name, cell, &row); err != nil {
			t.Fatalf("SetSheetRow() error = %v", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs() error = %v", err)
	}
	f.Close()

	wb := NewWorkbook(path)
	err := wb.UpsertSheet(inst, makeUsage(t, map[string]int{"2024-01-02": 1}), []string{"Main"})
	if err != nil {
		t.Fatalf("UpsertSheet() error = %v", err)
	}

	rows := readSheet(t, path, inst.Name)

	want := [][]string{
		{"Date", "Main", "Total"},
		{"2024-01-01", "5", "5"},
		{"2024-01-02", "1", "1"},
	}

	if len(rows) != len(want) {
		t.Fatalf("got %d rows, want %d: %v", len(rows), len(want), rows)
	}

	for i, row := range want {
		for j, cell := range row {
			if rows[i][j] != cell {
				t.Errorf("row %d col %d = %q, want %q", i, j, rows[i][j], cell)
			}
		}
	}
}

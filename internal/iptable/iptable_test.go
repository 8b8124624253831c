package iptable

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"usagestats/internal/config"
)

func testTableConfig() config.TableConfig {
	return config.TableConfig{
		SkipRows:     2,
		NameColumn:   "Institution",
		AbbrColumn:   "Abbreviation",
		RangesColumn: "IP Addresses",
		ProxyColumn:  "Proxy IPs",
	}
}

// Helper to write a CSV table file with the standard two banner rows.
func createTempTableCSV(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()

	path := filepath.Join(tmpDir, "table.csv")
	banner := "Institution IP Table,,,\nUpdated 2026-08-01,,,\n"

	if err := os.WriteFile(path, []byte(banner+content), 0644); err != nil {
		t.Fatalf("Failed to create temp table file: %v", err)
	}

	return path
}

const validTableCSV = `Institution,Abbreviation,IP Addresses,Proxy IPs
Example University,EU,"10.0.0.0-10.0.0.5
192.168.1.*",8.8.8.8
Northern College,NC,142.217.193.1-27,
City Library,,"172.16.0.0/16","192.0.2.1
192.0.2.2"
`

func TestLoad_ValidCSV(t *testing.T) {
	path := createTempTableCSV(t, validTableCSV)

	table, err := Load(path, testTableConfig())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if table.Len() != 3 {
		t.Fatalf("Expected 3 institutions, got %d", table.Len())
	}

	inst, err := table.Find("Example University")
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}

	if len(inst.Ranges) != 2 {
		t.Errorf("Expected 2 ranges, got %d", len(inst.Ranges))
	}

	if len(inst.Proxies) != 1 {
		t.Errorf("Expected 1 proxy, got %d", len(inst.Proxies))
	}
}

func TestLoad_FindByAbbreviationCaseInsensitive(t *testing.T) {
	path := createTempTableCSV(t, validTableCSV)

	table, err := Load(path, testTableConfig())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	tests := []struct {
		query string
		want  string
	}{
		{"EU", "Example University"},
		{"eu", "Example University"},
		{"example university", "Example University"},
		{"NORTHERN COLLEGE", "Northern College"},
		{"  nc  ", "Northern College"},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			inst, err := table.Find(tt.query)
			if err != nil {
				t.Fatalf("Find(%q) failed: %v", tt.query, err)
			}

			if inst.Name != tt.want {
				t.Errorf("Find(%q) = %s, want %s", tt.query, inst.Name, tt.want)
			}
		})
	}
}

func TestLoad_UnknownInstitution(t *testing.T) {
	path := createTempTableCSV(t, validTableCSV)

	table, err := Load(path, testTableConfig())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	_, err = table.Find("Unlisted Institute")
	if !errors.Is(err, ErrUnknownInstitution) {
		t.Fatalf("Expected ErrUnknownInstitution, got %v", err)
	}
}

func TestLoad_BlankAbbreviationFallsBackToName(t *testing.T) {
	path := createTempTableCSV(t, validTableCSV)

	table, err := Load(path, testTableConfig())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	inst, err := table.Find("City Library")
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}

	if inst.Abbreviation != "City Library" {
		t.Errorf("Expected abbreviation fallback to name, got %q", inst.Abbreviation)
	}
}

func TestLoad_MissingRequiredColumn(t *testing.T) {
	content := `Institution,Abbreviation,Proxy IPs
Example University,EU,8.8.8.8
`
	path := createTempTableCSV(t, content)

	_, err := Load(path, testTableConfig())
	if !errors.Is(err, ErrMalformedTable) {
		t.Fatalf("Expected ErrMalformedTable for missing column, got %v", err)
	}
}

func TestLoad_BadRangeEntry(t *testing.T) {
	content := `Institution,Abbreviation,IP Addresses,Proxy IPs
Example University,EU,10.0.garbage.1,
`
	path := createTempTableCSV(t, content)

	_, err := Load(path, testTableConfig())
	if !errors.Is(err, ErrMalformedTable) {
		t.Fatalf("Expected ErrMalformedTable for bad range, got %v", err)
	}
}

func TestLoad_DuplicateAbbreviation(t *testing.T) {
	content := `Institution,Abbreviation,IP Addresses,Proxy IPs
Example University,EU,10.0.0.1,
Eastern University,EU,10.0.1.1,
`
	path := createTempTableCSV(t, content)

	_, err := Load(path, testTableConfig())
	if !errors.Is(err, ErrMalformedTable) {
		t.Fatalf("Expected ErrMalformedTable for duplicate abbreviation, got %v", err)
	}
}

func TestLoad_LongNameWithoutAbbreviation(t *testing.T) {
	content := `Institution,Abbreviation,IP Addresses,Proxy IPs
The Consolidated Institute of Northern Regional Studies,,10.0.0.1,
`
	path := createTempTableCSV(t, content)

	_, err := Load(path, testTableConfig())
	if !errors.Is(err, ErrMalformedTable) {
		t.Fatalf("Expected ErrMalformedTable for long name without abbreviation, got %v", err)
	}
}

func TestLoad_BlankNameRowsSkipped(t *testing.T) {
	content := `Institution,Abbreviation,IP Addresses,Proxy IPs
Example University,EU,10.0.0.1,
,,,
Northern College,NC,10.0.1.1,
`
	path := createTempTableCSV(t, content)

	table, err := Load(path, testTableConfig())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if table.Len() != 2 {
		t.Errorf("Expected blank rows skipped, got %d institutions", table.Len())
	}
}

func TestLoad_NotEnoughRows(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "table.csv")

	if err := os.WriteFile(path, []byte("just one banner row\n"), 0644); err != nil {
		t.Fatalf("Failed to write table: %v", err)
	}

	_, err := Load(path, testTableConfig())
	if !errors.Is(err, ErrMalformedTable) {
		t.Fatalf("Expected ErrMalformedTable for missing header, got %v", err)
	}
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "table.txt")

	if err := os.WriteFile(path, []byte("whatever"), 0644); err != nil {
		t.Fatalf("Failed to write table: %v", err)
	}

	_, err := Load(path, testTableConfig())
	if !errors.Is(err, ErrMalformedTable) {
		t.Fatalf("Expected ErrMalformedTable for unsupported format, got %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/table.csv", testTableConfig())
	if err == nil {
		t.Fatal("Expected error for missing table file")
	}
}

// Helper to write the same logical table as an XLSX workbook.
func createTempTableXLSX(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "table.xlsx")

	f := excelize.NewFile()
	defer f.Close()

	rows := [][]interface{}{
		{"Institution IP Table"},
		{"Updated 2026-08-01"},
		{"Institution", "Abbreviation", "IP Addresses", "Proxy IPs"},
		{"Example University", "EU", "10.0.0.0-10.0.0.5\n192.168.1.*", "8.8.8.8"},
		{"Northern College", "NC", "142.217.193.1-27", ""},
	}

	for i, row := range rows {
		cellRef := fmt.Sprintf("A%d", i+1)
		if err := f.SetSheetRow("Sheet1", cellRef, &row); err != nil {
			t.Fatalf("Failed to set sheet row: %v", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		t.Fatalf("Failed to save workbook: %v", err)
	}

	return path
}

func TestLoad_XLSXAgreesWithCSV(t *testing.T) {
	xlsxPath := createTempTableXLSX(t)

	table, err := Load(xlsxPath, testTableConfig())
	if err != nil {
		t.Fatalf("Load(xlsx) failed: %v", err)
	}

	if table.Len() != 2 {
		t.Fatalf("Expected 2 institutions from xlsx, got %d", table.Len())
	}

	inst, err := table.Find("EU")
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}

	if len(inst.Ranges) != 2 {
		t.Errorf("Expected 2 ranges from multi-line cell, got %d", len(inst.Ranges))
	}

	if inst.Ranges[0].String() != "10.0.0.0-10.0.0.5" {
		t.Errorf("First range = %s, want 10.0.0.0-10.0.0.5", inst.Ranges[0])
	}
}

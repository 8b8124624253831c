// Package iptable loads the institution IP table and resolves the IP
// notations it contains.
package iptable

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"usagestats/internal/config"
	"usagestats/internal/models"
	"usagestats/pkg/utils"
)

// Table errors.
var (
	ErrMalformedTable     = errors.New("malformed institution table")
	ErrUnknownInstitution = errors.New("unknown institution")
)

// Table holds the loaded institutions, indexed for case-insensitive
// lookup by name or abbreviation. A loaded table is read-only and safe
// for concurrent use.
type Table struct {
	institutions []*models.Institution
	byKey        map[string]*models.Institution
}

// Load reads the institution table at path. The format is chosen by
// file extension: .xlsx workbooks and .csv exports are supported.
func Load(path string, cfg config.TableConfig) (*Table, error) {
	rows, err := readRows(path, cfg.Sheet)
	if err != nil {
		return nil, err
	}

	return build(rows, cfg)
}

// readRows returns the raw cell grid of the table file.
func readRows(path, sheet string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return readXLSX(path, sheet)
	case ".csv":
		return readCSV(path)
	default:
		return nil, fmt.Errorf("%w: unsupported table format %q", ErrMalformedTable, filepath.Ext(path))
	}
}

func readXLSX(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open table workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}

	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open table file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read table csv: %w", err)
	}

	return rows, nil
}

// build assembles the table from the raw cell grid: skip the configured
// leading rows, resolve the header columns, parse every data row.
func build(rows [][]string, cfg config.TableConfig) (*Table, error) {
	if len(rows) <= cfg.SkipRows {
		return nil, fmt.Errorf("%w: no header row after skipping %d rows", ErrMalformedTable, cfg.SkipRows)
	}

	rows = rows[cfg.SkipRows:]
	header := rows[0]

	nameCol := findColumn(header, cfg.NameColumn)
	if nameCol < 0 {
		return nil, fmt.Errorf("%w: missing column %q", ErrMalformedTable, cfg.NameColumn)
	}

	rangesCol := findColumn(header, cfg.RangesColumn)
	if rangesCol < 0 {
		return nil, fmt.Errorf("%w: missing column %q", ErrMalformedTable, cfg.RangesColumn)
	}

	proxyCol := findColumn(header, cfg.ProxyColumn)
	if proxyCol < 0 {
		return nil, fmt.Errorf("%w: missing column %q", ErrMalformedTable, cfg.ProxyColumn)
	}

	abbrCol := -1
	if cfg.AbbrColumn != "" {
		abbrCol = findColumn(header, cfg.AbbrColumn)
		if abbrCol < 0 {
			return nil, fmt.Errorf("%w: missing column %q", ErrMalformedTable, cfg.AbbrColumn)
		}
	}

	t := &Table{
		byKey: make(map[string]*models.Institution),
	}

	for i, row := range rows[1:] {
		// 1-based row position in the source file
		rowNum := cfg.SkipRows + i + 2

		name := utils.CleanCell(cell(row, nameCol))
		if name == "" {
			// Layout padding between institution blocks
			continue
		}

		abbr := ""
		if abbrCol >= 0 {
			abbr = utils.CleanCell(cell(row, abbrCol))
		}

		ranges, err := ParseRanges(cell(row, rangesCol))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d (%s): %v", ErrMalformedTable, rowNum, name, err)
		}

		proxies, err := ParseProxies(cell(row, proxyCol))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d (%s): %v", ErrMalformedTable, rowNum, name, err)
		}

		inst := &models.Institution{
			Name:         name,
			Abbreviation: abbr,
			Ranges:       ranges,
			Proxies:      proxies,
		}

		if err := t.add(inst); err != nil {
			return nil, err
		}
	}

	return t, nil
}

// findColumn locates a header column by name, ignoring case and
// surrounding whitespace.
func findColumn(header []string, name string) int {
	for i, col := range header {
		if strings.EqualFold(utils.CleanCell(col), name) {
			return i
		}
	}

	return -1
}

// cell returns the column at idx, tolerating short rows.
func cell(row []string, idx int) string {
	if idx < len(row) {
		return row[idx]
	}

	return ""
}

// add registers an institution under its name and abbreviation keys. A
// blank abbreviation falls back to the name when the name fits the
// sheet-name limit.
func (t *Table) add(inst *models.Institution) error {
	if inst.Abbreviation == "" {
		if len([]rune(inst.Name)) > models.SheetNameLimit {
			return fmt.Errorf("%w: institution %q needs an abbreviation (name exceeds %d characters)",
				ErrMalformedTable, inst.Name, models.SheetNameLimit)
		}

		inst.Abbreviation = inst.Name
	}

	if n := len([]rune(inst.Abbreviation)); n > models.SheetNameLimit {
		return fmt.Errorf("%w: abbreviation %q exceeds %d characters",
			ErrMalformedTable, inst.Abbreviation, models.SheetNameLimit)
	}

	nameKey := strings.ToLower(inst.Name)
	abbrKey := strings.ToLower(inst.Abbreviation)

	if _, dup := t.byKey[nameKey]; dup {
		return fmt.Errorf("%w: duplicate institution identifier %q", ErrMalformedTable, inst.Name)
	}

	if _, dup := t.byKey[abbrKey]; dup {
		return fmt.Errorf("%w: duplicate institution identifier %q", ErrMalformedTable, inst.Abbreviation)
	}

	t.byKey[nameKey] = inst
	t.byKey[abbrKey] = inst
	t.institutions = append(t.institutions, inst)

	return nil
}

// Find returns the institution whose name or abbreviation equals
// nameOrAbbr, ignoring case.
func (t *Table) Find(nameOrAbbr string) (*models.Institution, error) {
	inst, ok := t.byKey[strings.ToLower(strings.TrimSpace(nameOrAbbr))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownInstitution, nameOrAbbr)
	}

	return inst, nil
}

// Institutions returns the institutions in table order.
func (t *Table) Institutions() []*models.Institution {
	return t.institutions
}

// Len returns the number of institutions in the table.
func (t *Table) Len() int {
	return len(t.institutions)
}

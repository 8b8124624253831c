// Package utils provides small text helpers shared across the pipeline.
package utils

import "strings"

// CleanCell normalizes a spreadsheet cell: whitespace runs collapse to
// single spaces and surrounding whitespace is removed.
func CleanCell(str string) string {
	return strings.Join(strings.Fields(str), " ")
}

// SplitEntries splits a multi-value cell into its entries. Spreadsheet
// cells hold one entry per line; CSV exports separate them with commas
// or semicolons. Empty entries are dropped.
func SplitEntries(cell string) []string {
	parts := strings.FieldsFunc(cell, func(r rune) bool {
		return r == '\n' || r == ',' || r == ';'
	})

	var entries []string

	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			entries = append(entries, trimmed)
		}
	}

	return entries
}

// TruncateRunes truncates str to at most max runes, appending an
// ellipsis when anything was cut.
func TruncateRunes(str string, maxRunes int) string {
	runes := []rune(str)
	if len(runes) <= maxRunes {
		return str
	}

	return string(runes[:maxRunes]) + "..."
}

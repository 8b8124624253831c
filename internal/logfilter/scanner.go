package logfilter

import (
	"bufio"
	"io"

	"usagestats/internal/models"
)

// maxLineSize bounds a single log line.
const maxLineSize = 1024 * 1024

// Scanner reads one raw log source lazily, parsing and filtering line
// by line in a single forward pass. Blank lines are ignored; lines that
// fail to parse are counted and skipped, never fatal.
type Scanner struct {
	scanner *bufio.Scanner
	rules   Rules
	entry   models.LogEntry

	lines     int
	kept      int
	dropped   int
	malformed int
}

// NewScanner creates a scanner over one raw log source.
func NewScanner(r io.Reader, rules Rules) *Scanner {
	s := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	s.Buffer(buf, maxLineSize)

	return &Scanner{
		scanner: s,
		rules:   rules,
	}
}

// Scan advances to the next retained entry, reporting false at end of
// input or on a read error.
func (s *Scanner) Scan() bool {
	for s.scanner.Scan() {
		line := s.scanner.Text()
		if len(line) == 0 {
			continue
		}

		s.lines++

		entry, err := ParseLine(line, s.rules)
		if err != nil {
			s.malformed++
			continue
		}

		if !s.rules.Retain(entry) {
			s.dropped++
			continue
		}

		s.kept++
		s.entry = entry

		return true
	}

	return false
}

// Entry returns the entry produced by the last successful Scan.
func (s *Scanner) Entry() models.LogEntry {
	return s.entry
}

// Err returns the first read error encountered.
func (s *Scanner) Err() error {
	return s.scanner.Err()
}

// Lines returns the number of non-blank lines examined so far.
func (s *Scanner) Lines() int { return s.lines }

// Kept returns the number of entries retained so far.
func (s *Scanner) Kept() int { return s.kept }

// Dropped returns the number of well-formed lines the rules rejected.
func (s *Scanner) Dropped() int { return s.dropped }

// Malformed returns the number of lines that failed to parse.
func (s *Scanner) Malformed() int { return s.malformed }

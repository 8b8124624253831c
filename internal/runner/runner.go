// Package runner drives batch reporting: it loads a filtered log once,
// matches it against a roster of institutions concurrently, and writes
// one workbook sheet per institution.
package runner

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"usagestats/internal/aggregator"
	"usagestats/internal/iptable"
	"usagestats/internal/logfilter"
	"usagestats/internal/logger"
	"usagestats/internal/matcher"
	"usagestats/internal/models"
	"usagestats/internal/report"
)

// ErrEmptyRoster indicates the roster file named no institutions.
var ErrEmptyRoster = errors.New("roster names no institutions")

// Result is the outcome of one institution's pass over the filtered log.
type Result struct {
	// Name is the roster entry as given.
	Name string

	// Institution is nil when the roster entry was not in the IP table.
	Institution *models.Institution

	Usage   models.DailyUsage
	Scanned int
	Matched int

	// Err records a per-institution failure; other institutions in the
	// same run are unaffected.
	Err error
}

// Runner matches a filtered log against institutions and emits report
// sheets. Output may be nil to skip workbook writes.
type Runner struct {
	Table     *iptable.Table
	Rules     logfilter.Rules
	Output    *report.Workbook
	Frontends []string
	Workers   int
	Logger    *logger.Logger
}

// LoadRoster reads a line-delimited institution roster. Blank lines and
// lines starting with # are skipped.
func LoadRoster(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: roster %s", logfilter.ErrMissingInput, path)
		}
		return nil, fmt.Errorf("failed to open roster: %w", err)
	}
	defer f.Close()

	var names []string

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		names = append(names, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read roster: %w", err)
	}

	if len(names) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyRoster, path)
	}

	return names, nil
}

// Run matches the filtered log at path against every roster entry and
// returns one result per entry, in roster order. Institutions missing
// from the IP table fail individually; only an unreadable log fails the
// whole run.
func (r *Runner) Run(path string, roster []string) ([]Result, error) {
	entries, err := r.loadEntries(path)
	if err != nil {
		return nil, err
	}

	r.Logger.Info(fmt.Sprintf("Matching %d entries against %d institutions", len(entries), len(roster)))

	results := make([]Result, len(roster))

	var (
		wg  sync.WaitGroup
		sem = make(chan struct{}, r.workers())
	)

	for i, name := range roster {
		wg.Add(1)
		go func(name string, index int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[index] = r.reportOne(name, entries)
		}(name, i)
	}

	wg.Wait()

	// Sheet writes stay sequential so the workbook file is never touched
	// from two goroutines, and sheets land in roster order.
	if r.Output != nil {
		for i := range results {
			res := &results[i]
			if res.Err != nil {
				continue
			}

			if err := r.Output.UpsertSheet(res.Institution, res.Usage, r.Frontends); err != nil {
				res.Err = fmt.Errorf("failed to write sheet: %w", err)
			}
		}
	}

	return results, nil
}

// reportOne matches every entry against one institution.
func (r *Runner) reportOne(name string, entries []models.LogEntry) Result {
	res := Result{Name: name, Scanned: len(entries)}

	inst, err := r.Table.Find(name)
	if err != nil {
		res.Err = err
		r.Logger.Warn(fmt.Sprintf("Skipping %s: %v", name, err))
		return res
	}

	res.Institution = inst

	m := matcher.New(inst)
	agg := aggregator.New()

	for _, e := range entries {
		if m.MatchEntry(e) {
			agg.Add(e)
		}
	}

	res.Usage = agg.Usage()
	res.Matched = res.Usage.Total()

	r.Logger.With("institution", inst.Name).Debug(fmt.Sprintf("Matched %d of %d entries", res.Matched, res.Scanned))

	return res
}

// loadEntries parses the filtered log once so every institution shares
// the same pass.
func (r *Runner) loadEntries(path string) ([]models.LogEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: filtered log %s", logfilter.ErrMissingInput, path)
		}
		return nil, fmt.Errorf("failed to open filtered log: %w", err)
	}
	defer f.Close()

	var entries []models.LogEntry

	scanner := logfilter.NewScanner(f, r.Rules)
	for scanner.Scan() {
		entries = append(entries, scanner.Entry())
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read filtered log: %w", err)
	}

	return entries, nil
}

func (r *Runner) workers() int {
	if r.Workers < 1 {
		return 1
	}

	return r.Workers
}

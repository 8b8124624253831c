package logfilter

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"usagestats/internal/logger"
)

// FileError records a source file that could not be processed.
type FileError struct {
	Path string
	Err  error
}

// Stats accumulates the counters of a filter run. Files counts only the
// sources processed to the end.
type Stats struct {
	Files      int
	Lines      int
	Kept       int
	Dropped    int
	Malformed  int
	FileErrors []FileError
}

// DiscoverFiles expands the given paths into the list of log files to
// process: directories contribute their files in name order, explicit
// files stay in caller order.
func DiscoverFiles(paths []string) ([]string, error) {
	var files []string

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrMissingInput, p)
			}

			return nil, fmt.Errorf("failed to stat %s: %w", p, err)
		}

		if !info.IsDir() {
			files = append(files, p)
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read log directory: %w", err)
		}

		for _, e := range entries {
			if !e.IsDir() {
				files = append(files, filepath.Join(p, e.Name()))
			}
		}
	}

	return files, nil
}

// FilterFiles streams every source in order into w, writing each
// retained entry's raw line unchanged. A source that cannot be read is
// recorded in the stats and the remaining sources are still processed;
// only sink write failures abort the run.
func FilterFiles(paths []string, w io.Writer, rules Rules, log *logger.Logger) (Stats, error) {
	var stats Stats

	bw := bufio.NewWriter(w)

	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				err = fmt.Errorf("%w: %s", ErrMissingInput, path)
			}

			stats.FileErrors = append(stats.FileErrors, FileError{Path: path, Err: err})
			log.Warn("skipping unreadable log file", "file", path, "error", err)

			continue
		}

		s := NewScanner(f, rules)

		for s.Scan() {
			if _, err := bw.WriteString(s.Entry().Raw); err != nil {
				f.Close()
				return stats, fmt.Errorf("failed to write filtered line: %w", err)
			}

			if err := bw.WriteByte('\n'); err != nil {
				f.Close()
				return stats, fmt.Errorf("failed to write filtered line: %w", err)
			}
		}

		readErr := s.Err()
		f.Close()

		stats.Lines += s.Lines()
		stats.Kept += s.Kept()
		stats.Dropped += s.Dropped()
		stats.Malformed += s.Malformed()

		if readErr != nil {
			stats.FileErrors = append(stats.FileErrors, FileError{Path: path, Err: readErr})
			log.Warn("log file aborted mid-read", "file", path, "error", readErr)

			continue
		}

		stats.Files++
		log.Debug("filtered log file",
			"file", path,
			"lines", s.Lines(),
			"kept", s.Kept(),
			"dropped", s.Dropped(),
			"malformed", s.Malformed(),
		)
	}

	if err := bw.Flush(); err != nil {
		return stats, fmt.Errorf("failed to flush filtered output: %w", err)
	}

	return stats, nil
}

// OutputName returns the dated artifact path for a filter run.
func OutputName(dir string, day time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("logs_%s.log", day.Format("2006-01-02")))
}

package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/itchyny/gojq"

	"usagestats/internal/models"
)

// Summary is the machine-readable report of one institution run.
type Summary struct {
	RunID        string              `json:"runId,omitempty"`
	Institution  string              `json:"institution"`
	Abbreviation string              `json:"abbreviation"`
	GeneratedAt  time.Time           `json:"generatedAt"`
	Scanned      int                 `json:"scanned"`
	Matched      int                 `json:"matched"`
	Days         []models.DayCount   `json:"days"`
	Totals       map[models.Date]int `json:"totals"`
}

// NewSummary builds the summary for an institution's aggregated usage.
// Scanned counts every entry examined; matched counts the entries that
// fell inside the institution's ranges or proxies.
func NewSummary(runID string, inst *models.Institution, usage models.DailyUsage, scanned int) Summary {
	return Summary{
		RunID:        runID,
		Institution:  inst.Name,
		Abbreviation: inst.Abbreviation,
		GeneratedAt:  time.Now().UTC(),
		Scanned:      scanned,
		Matched:      usage.Total(),
		Days:         usage.Days(),
		Totals:       usage.Totals(),
	}
}

// WriteJSON writes the summary as indented JSON.
func WriteJSON(w io.Writer, s Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	data = append(data, '\n')

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}

	return nil
}

// ApplyQuery runs a jq expression against the summary document and
// returns one marshaled line per result.
func ApplyQuery(s Summary, expr string) ([]string, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid query %q: %w", expr, err)
	}

	// Round-trip through JSON so the query sees plain maps and slices.
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal summary: %w", err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode summary: %w", err)
	}

	var out []string

	iter := query.Run(doc)

	for {
		v, ok := iter.Next()
		if !ok {
			break
		}

		if qerr, isErr := v.(error); isErr {
			return nil, fmt.Errorf("query %q failed: %w", expr, qerr)
		}

		line, err := gojq.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal query result: %w", err)
		}

		out = append(out, string(line))
	}

	return out, nil
}

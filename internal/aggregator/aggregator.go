// Package aggregator buckets matched entries into per-day counts.
package aggregator

import "usagestats/internal/models"

// Aggregator accumulates page views per calendar date. The result is
// independent of the order entries arrive in; dates with no entries
// never appear.
type Aggregator struct {
	usage models.DailyUsage
}

// New creates an empty aggregator.
func New() *Aggregator {
	return &Aggregator{
		usage: make(models.DailyUsage),
	}
}

// Add counts one entry under its calendar date, attributed to the
// entry's frontend when it carries one.
func (a *Aggregator) Add(e models.LogEntry) {
	a.usage.Add(e.Date(), e.Frontend)
}

// Usage returns the accumulated mapping.
func (a *Aggregator) Usage() models.DailyUsage {
	return a.usage
}

// Aggregate buckets a batch of entries by calendar date.
func Aggregate(entries []models.LogEntry) models.DailyUsage {
	a := New()

	for _, e := range entries {
		a.Add(e)
	}

	return a.Usage()
}

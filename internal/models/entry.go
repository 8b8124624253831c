// Package models defines data structures shared across the usage pipeline.
package models

import (
	"net/netip"
	"time"
)

// LogEntry represents a single parsed access-log line.
type LogEntry struct {
	Timestamp time.Time  `json:"timestamp"`
	ClientIP  netip.Addr `json:"clientIp"`
	Request   string     `json:"request"`
	Path      string     `json:"path"`
	Frontend  string     `json:"frontend,omitempty"`
	Raw       string     `json:"-"`
}

// Date returns the calendar date of the entry as written in the log.
func (e LogEntry) Date() Date {
	return DateOf(e.Timestamp)
}

package models

import "sort"

// DayCount holds the page views counted for one calendar date.
type DayCount struct {
	Date      Date           `json:"date"`
	Total     int            `json:"total"`
	Frontends map[string]int `json:"frontends,omitempty"`
}

// DailyUsage maps calendar dates to their counts. Dates with no matched
// entries are absent from the map.
type DailyUsage map[Date]*DayCount

// Add counts one page view on date, attributed to frontend when non-empty.
func (u DailyUsage) Add(date Date, frontend string) {
	dc := u[date]
	if dc == nil {
		dc = &DayCount{Date: date}
		u[date] = dc
	}
	dc.Total++
	if frontend != "" {
		if dc.Frontends == nil {
			dc.Frontends = make(map[string]int)
		}
		dc.Frontends[frontend]++
	}
}

// Total returns the number of page views across all dates.
func (u DailyUsage) Total() int {
	sum := 0
	for _, dc := range u {
		sum += dc.Total
	}
	return sum
}

// Totals returns the date-to-count mapping.
func (u DailyUsage) Totals() map[Date]int {
	totals := make(map[Date]int, len(u))
	for date, dc := range u {
		totals[date] = dc.Total
	}
	return totals
}

// Days returns the counts sorted by date.
func (u DailyUsage) Days() []DayCount {
	days := make([]DayCount, 0, len(u))
	for _, dc := range u {
		days = append(days, *dc)
	}
	sort.Slice(days, func(i, j int) bool {
		return days[i].Date.Before(days[j].Date)
	})
	return days
}

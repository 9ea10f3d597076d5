package domain

import (
	"strconv"
	"strings"
)

// Histogram is the read-side answer for a single date: 24 per-hour counts
// plus the readings that matched the date prefix.
type Histogram struct {
	HourlyCounts [24]int   `json:"hourlyCounts"`
	FilteredData []Reading `json:"filteredData"`
}

// Dates returns each distinct calendar-date prefix across the readings,
// in first-seen order.
func Dates(readings []Reading) []string {
	seen := make(map[string]struct{}, len(readings))
	dates := make([]string, 0)
	for _, r := range readings {
		d := datePart(r.Timestamp)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		dates = append(dates, d)
	}
	return dates
}

// HistogramForDate filters readings whose timestamp starts with the exact
// date prefix and buckets them by hour. A matching reading whose time portion
// yields no valid hour stays in FilteredData but counts into no bucket.
func HistogramForDate(readings []Reading, date string) Histogram {
	h := Histogram{FilteredData: make([]Reading, 0)}
	for _, r := range readings {
		if !strings.HasPrefix(r.Timestamp, date) {
			continue
		}
		h.FilteredData = append(h.FilteredData, r)
		if hour, ok := hourOf(r.Timestamp); ok {
			h.HourlyCounts[hour]++
		}
	}
	return h
}

// datePart returns the portion of a timestamp before the first space.
// A timestamp with no space is its own date prefix.
func datePart(timestamp string) string {
	date, _, _ := strings.Cut(timestamp, " ")
	return date
}

// hourOf extracts the hour component from "YYYY-MM-DD HH:MM:SS".
func hourOf(timestamp string) (int, bool) {
	_, timePart, found := strings.Cut(timestamp, " ")
	if !found {
		return 0, false
	}
	hh, _, _ := strings.Cut(timePart, ":")
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return 0, false
	}
	return hour, true
}

package storage

import (
	"sort"
	"time"

	"portfolio/internal/domain"
)

const dayLayout = "2006-01-02"

// Day returns the UTC calendar day of t as used for stats rows
func Day(t time.Time) string {
	return t.UTC().Format(dayLayout)
}

// Totals sums visits and messages over the series. Totals are never stored.
func Totals(entries []domain.DailyStat) (visits, messages int) {
	for _, e := range entries {
		visits += e.Visits
		messages += e.MessageCount
	}
	return visits, messages
}

// applyIncrement returns the series with delta added to day's counter,
// sorted by date and cut to the newest window entries.
func applyIncrement(entries []domain.DailyStat, day string, counter domain.StatCounter, delta, window int) []domain.DailyStat {
	found := false
	for i := range entries {
		if entries[i].Date == day {
			entries[i].Add(counter, delta)
			found = true
			break
		}
	}
	if !found {
		entry := domain.DailyStat{Date: day}
		entry.Add(counter, delta)
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Date < entries[j].Date })
	if window > 0 && len(entries) > window {
		entries = append([]domain.DailyStat(nil), entries[len(entries)-window:]...)
	}
	return entries
}

// staleDays picks the dates that fall outside the window
func staleDays(dates []string, window int) []string {
	if window <= 0 || len(dates) <= window {
		return nil
	}
	sorted := append([]string(nil), dates...)
	sort.Strings(sorted)
	return sorted[:len(sorted)-window]
}

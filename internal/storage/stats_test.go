package storage

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio/internal/domain"
)

func TestDay_UsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	assert.Equal(t, "2024-03-09", Day(time.Date(2024, 3, 10, 5, 0, 0, 0, loc)))
}

func TestApplyIncrement(t *testing.T) {
	var entries []domain.DailyStat

	entries = applyIncrement(entries, "2024-01-02", domain.CounterVisits, 1, 30)
	entries = applyIncrement(entries, "2024-01-01", domain.CounterMessages, 1, 30)
	entries = applyIncrement(entries, "2024-01-02", domain.CounterVisits, 1, 30)
	entries = applyIncrement(entries, "2024-01-02", domain.CounterSubscribers, -1, 30)

	require.Len(t, entries, 2)
	assert.Equal(t, domain.DailyStat{Date: "2024-01-01", MessageCount: 1}, entries[0])
	assert.Equal(t, domain.DailyStat{Date: "2024-01-02", Visits: 2, SubscriberCount: -1}, entries[1])

	visits, messages := Totals(entries)
	assert.Equal(t, 2, visits)
	assert.Equal(t, 1, messages)
}

func TestApplyIncrement_EvictsOldest(t *testing.T) {
	var entries []domain.DailyStat
	for i := 20; i >= 1; i-- {
		entries = applyIncrement(entries, fmt.Sprintf("2024-01-%02d", i), domain.CounterVisits, 1, 14)
	}

	require.Len(t, entries, 14)
	assert.Equal(t, "2024-01-07", entries[0].Date)
	assert.Equal(t, "2024-01-20", entries[13].Date)
}

func TestStaleDays(t *testing.T) {
	assert.Nil(t, staleDays([]string{"2024-01-01"}, 14))
	assert.Equal(t,
		[]string{"2024-01-01", "2024-01-02"},
		staleDays([]string{"2024-01-04", "2024-01-01", "2024-01-03", "2024-01-02"}, 2))
}

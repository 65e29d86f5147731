package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextOccurrenceEveryOneDay(t *testing.T) {
	last := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	now := last.Add(2 * time.Minute)

	next := NextOccurrence("every 1 day", last, now)
	assert.Equal(t, last.AddDate(0, 0, 1), next)
}

func TestNextOccurrenceNamedIntervals(t *testing.T) {
	last := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	now := last.Add(time.Minute)

	assert.Equal(t, last.AddDate(0, 0, 1), NextOccurrence("daily", last, now))
	assert.Equal(t, last.AddDate(0, 0, 7), NextOccurrence("weekly", last, now))
	assert.Equal(t, last.AddDate(0, 0, 30), NextOccurrence("monthly", last, now))
}

func TestNextOccurrenceEveryNUnits(t *testing.T) {
	last := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	now := last.Add(time.Second)

	assert.Equal(t, last.Add(45*time.Minute), NextOccurrence("every 45 minutes", last, now))
	assert.Equal(t, last.Add(2*time.Hour), NextOccurrence("every 2 hours", last, now))
	assert.Equal(t, last.AddDate(0, 0, 14), NextOccurrence("every 2 weeks", last, now))
}

func TestNextOccurrenceCatchesUpAfterDowntime(t *testing.T) {
	last := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	now := time.Date(2026, 8, 31, 14, 0, 0, 0, time.UTC)

	next := NextOccurrence("daily", last, now)
	assert.Equal(t, time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC), next,
		"missed occurrences collapse into the next future one")
}

func TestNextOccurrenceCron(t *testing.T) {
	last := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	now := time.Date(2026, 8, 31, 14, 0, 0, 0, time.UTC)

	// Every day at 07:30 (cron schedules resolve in local time).
	next := NextOccurrence("30 7 * * *", last, now)
	assert.True(t, next.After(now))
	assert.Equal(t, 7, next.Hour())
	assert.Equal(t, 30, next.Minute())
}

func TestNextOccurrenceUnknownRuleDefaultsDaily(t *testing.T) {
	last := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	now := last.Add(time.Minute)

	assert.Equal(t, last.AddDate(0, 0, 1), NextOccurrence("fortnightly-ish", last, now))
	assert.Equal(t, last.AddDate(0, 0, 1), NextOccurrence("", last, now))
}

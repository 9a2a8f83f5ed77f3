package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayBounds(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	now := time.Date(2026, 1, 5, 14, 30, 0, 0, loc)
	start, end := DayBounds(now, loc)

	assert.Equal(t, time.Date(2026, 1, 5, 0, 0, 0, 0, loc), start)
	assert.Equal(t, time.Date(2026, 1, 6, 0, 0, 0, 0, loc), end)
	assert.Equal(t, 24*time.Hour, end.Sub(start))
}

func TestDayBoundsCrossesTimezones(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 01:00 UTC on the 6th is still the 5th in New York
	now := time.Date(2026, 1, 6, 1, 0, 0, 0, time.UTC)
	start, end := DayBounds(now, ny)

	assert.Equal(t, time.Date(2026, 1, 5, 0, 0, 0, 0, ny), start)
	assert.Equal(t, time.Date(2026, 1, 6, 0, 0, 0, 0, ny), end)
}

func TestDayBoundsSpringForwardDayIs23Hours(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 2026-03-08: clocks jump 02:00 -> 03:00 EDT
	now := time.Date(2026, 3, 8, 12, 0, 0, 0, loc)
	start, end := DayBounds(now, loc)

	assert.Equal(t, 23*time.Hour, end.Sub(start))
}

func TestDayBoundsFallBackDayIs25Hours(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 2026-11-01: clocks fall back 02:00 -> 01:00 EST
	now := time.Date(2026, 11, 1, 12, 0, 0, 0, loc)
	start, end := DayBounds(now, loc)

	assert.Equal(t, 25*time.Hour, end.Sub(start))
}

package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, TimeZoneWIB)

func TestResolveTimeWindowValid(t *testing.T) {
	window, fieldErrs := ResolveTimeWindow("2026-03-12", "09:00", "11:00", testNow)
	require.Empty(t, fieldErrs)
	require.NotNil(t, window)

	assert.Equal(t, 2026, window.Date.Year())
	assert.Equal(t, time.March, window.Date.Month())
	assert.Equal(t, 12, window.Date.Day())
	assert.Equal(t, 9, window.Start.In(TimeZoneWIB).Hour())
	assert.Equal(t, 11, window.End.In(TimeZoneWIB).Hour())
	assert.True(t, window.End.After(window.Start))
}

func TestResolveTimeWindowTodayAllowed(t *testing.T) {
	window, fieldErrs := ResolveTimeWindow("2026-03-01", "13:00", "15:00", testNow)
	require.Empty(t, fieldErrs)
	require.NotNil(t, window)
}

func TestResolveTimeWindowRejectsPastDate(t *testing.T) {
	window, fieldErrs := ResolveTimeWindow("2026-02-28", "09:00", "11:00", testNow)
	assert.Nil(t, window)
	assert.Contains(t, fieldErrs, "date")
}

func TestResolveTimeWindowRejectsEqualBounds(t *testing.T) {
	window, fieldErrs := ResolveTimeWindow("2026-03-12", "09:00", "09:00", testNow)
	assert.Nil(t, window)
	require.Contains(t, fieldErrs, "end")
	assert.Contains(t, fieldErrs["end"][0], "after start")
}

func TestResolveTimeWindowRejectsInvertedBounds(t *testing.T) {
	window, fieldErrs := ResolveTimeWindow("2026-03-12", "11:00", "09:00", testNow)
	assert.Nil(t, window)
	assert.Contains(t, fieldErrs, "end")
}

func TestResolveTimeWindowBadFormats(t *testing.T) {
	window, fieldErrs := ResolveTimeWindow("12-03-2026", "9am", "late", testNow)
	assert.Nil(t, window)
	assert.Contains(t, fieldErrs, "date")
	assert.Contains(t, fieldErrs, "start")
	assert.Contains(t, fieldErrs, "end")
}

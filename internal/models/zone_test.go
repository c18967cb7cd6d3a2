package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2024-01-01 is a Monday
func at(day, hour, minute int) time.Time {
	return time.Date(2024, 1, day, hour, minute, 0, 0, time.UTC)
}

func TestParseWindow(t *testing.T) {
	t.Parallel()

	w, err := ParseWindow(TimeWindow{Days: []string{"Monday", "fri"}, Start: "08:30", End: "17:00"})
	require.NoError(t, err)
	assert.Equal(t, 8*60+30, w.StartMin)
	assert.Equal(t, 17*60, w.EndMin)
	assert.True(t, w.Days[time.Monday])
	assert.True(t, w.Days[time.Friday])
	assert.Len(t, w.Days, 2)

	_, err = ParseWindow(TimeWindow{Start: "25:00", End: "06:00"})
	assert.Error(t, err)
	_, err = ParseWindow(TimeWindow{Start: "06:00", End: "06:00"})
	assert.Error(t, err)
	_, err = ParseWindow(TimeWindow{Days: []string{"someday"}, Start: "06:00", End: "07:00"})
	assert.Error(t, err)
}

func TestDailyWindowCovers(t *testing.T) {
	t.Parallel()

	day, err := ParseWindow(TimeWindow{Start: "08:00", End: "17:00"})
	require.NoError(t, err)
	assert.True(t, day.Covers(at(1, 8, 0)), "start is inclusive")
	assert.False(t, day.Covers(at(1, 17, 0)), "end is exclusive")
	assert.False(t, day.Covers(at(1, 7, 59)))

	overnight, err := ParseWindow(TimeWindow{Days: []string{"mon"}, Start: "22:00", End: "06:00"})
	require.NoError(t, err)
	assert.True(t, overnight.Covers(at(1, 23, 0)))
	assert.True(t, overnight.Covers(at(2, 3, 0)), "Tuesday morning belongs to Monday night")
	assert.False(t, overnight.Covers(at(1, 3, 0)), "Monday morning belongs to Sunday night")
	assert.False(t, overnight.Covers(at(2, 23, 0)))
}

func TestZoneActiveAt(t *testing.T) {
	t.Parallel()

	window, err := ParseWindow(TimeWindow{Start: "22:00", End: "06:00"})
	require.NoError(t, err)

	z := Zone{ID: "dock", Active: true}
	assert.True(t, z.ActiveAt(at(1, 12, 0)), "no schedule means always active")

	z.Schedule = []DailyWindow{window}
	assert.False(t, z.ActiveAt(at(1, 12, 0)))
	assert.True(t, z.ActiveAt(at(1, 23, 30)))

	z.Active = false
	assert.False(t, z.ActiveAt(at(1, 23, 30)), "disabled zones ignore their schedule")
}

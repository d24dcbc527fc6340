package timeparse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var fixedNow = time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)

// TestParse_LastNUnit covers the "last N {unit}[s]" family, including the
// word-to-digit forms ("last three weeks").
func TestParse_LastNUnit(t *testing.T) {
	w := Parse("last 7 days", fixedNow)
	assert.Equal(t, fixedNow.AddDate(0, 0, -7).Unix(), w.Start)
	assert.Equal(t, fixedNow.Unix(), w.End)

	w = Parse("last three weeks", fixedNow)
	assert.Equal(t, fixedNow.AddDate(0, 0, -21).Unix(), w.Start)

	w = Parse("last month", fixedNow)
	assert.Equal(t, fixedNow.AddDate(0, 0, -30).Unix(), w.Start)
}

// TestParse_YesterdayToday covers the single-day expressions.
func TestParse_YesterdayToday(t *testing.T) {
	w := Parse("yesterday", fixedNow)
	expectedStart := fixedNow.AddDate(0, 0, -1).Truncate(24 * time.Hour)
	assert.Equal(t, expectedStart.Unix(), w.Start)

	w = Parse("today", fixedNow)
	expectedStart = fixedNow.Truncate(24 * time.Hour)
	assert.Equal(t, expectedStart.Unix(), w.Start)
}

// TestParse_ThisWeek asserts week boundaries start on Monday.
func TestParse_ThisWeek(t *testing.T) {
	w := Parse("this week", fixedNow)
	start := time.Unix(w.Start, 0).UTC()
	assert.Equal(t, time.Monday, start.Weekday())
}

// TestParse_MonthYear covers both full and abbreviated month names.
func TestParse_MonthYear(t *testing.T) {
	w := Parse("in March 2026", fixedNow)
	start := time.Unix(w.Start, 0).UTC()
	assert.Equal(t, time.March, start.Month())
	assert.Equal(t, 2026, start.Year())

	w2 := Parse("in Mar 2026", fixedNow)
	assert.Equal(t, w.Start, w2.Start)
}

// TestParse_ExplicitDates covers MM/DD/YYYY and YYYY-MM-DD forms.
func TestParse_ExplicitDates(t *testing.T) {
	w := Parse("07/15/2026", fixedNow)
	start := time.Unix(w.Start, 0).UTC()
	assert.Equal(t, 2026, start.Year())
	assert.Equal(t, time.July, start.Month())
	assert.Equal(t, 15, start.Day())

	w2 := Parse("2026-07-15", fixedNow)
	assert.Equal(t, w.Start, w2.Start)
}

// TestParse_Defaults covers the context-sensitive fallback windows when no
// explicit expression matches (spec §4.7).
func TestParse_Defaults(t *testing.T) {
	w := Parse("changes made by alice", fixedNow)
	assert.Equal(t, fixedNow.Add(-90*24*time.Hour).Unix(), w.Start, "author-specific phrasing defaults to 90 days")

	w = Parse("what are the riskiest changes", fixedNow)
	assert.Equal(t, fixedNow.AddDate(-2, 0, 0).Unix(), w.Start, "risk-specific phrasing defaults to 2 years")

	w = Parse("show me the codebase", fixedNow)
	assert.Equal(t, fixedNow.AddDate(-5, 0, 0).Unix(), w.Start, "no match at all defaults to a 5-year window")
}

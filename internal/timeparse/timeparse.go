// Package timeparse turns a free-text query's temporal expression into an
// epoch-second [start, end) window (spec §4.7). It never calls out to any
// other component; callers supply "now" so results stay testable.
package timeparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const day = 24 * time.Hour

var wordToNum = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

var lastNRe = regexp.MustCompile(`(?i)\blast\s+(\d+|one|two|three|four|five|six|seven|eight|nine|ten)\s+(day|week|month|year)s?\b`)
var lastOneRe = regexp.MustCompile(`(?i)\blast\s+(day|week|month|year)\b`)
var thisPeriodRe = regexp.MustCompile(`(?i)\bthis\s+(week|month|year)\b`)
var monthYearRe = regexp.MustCompile(`(?i)\bin\s+([A-Za-z]{3,9})\s+(\d{4})\b`)
var slashDateRe = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
var isoDateRe = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)

var months = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

var authorSpecificRe = regexp.MustCompile(`(?i)\b(changes? (made|done) by|prs? (by|from)|\w+'s prs?)\b`)
var riskSpecificRe = regexp.MustCompile(`(?i)\b(riskiest|most risky|high risk)\b`)

// Window is a [Start, End) epoch-second range.
type Window struct {
	Start int64
	End   int64
}

// Parse extracts a time window from query, evaluated relative to now.
// Falls back to the documented defaults when no expression matches
// (spec §4.7 "Defaults").
func Parse(query string, now time.Time) Window {
	if m := lastNRe.FindStringSubmatch(query); m != nil {
		n := parseN(m[1])
		return lastNUnit(now, n, m[2])
	}
	if m := lastOneRe.FindStringSubmatch(query); m != nil {
		return lastNUnit(now, 1, m[1])
	}
	if strings.Contains(strings.ToLower(query), "yesterday") {
		y := now.AddDate(0, 0, -1)
		start := time.Date(y.Year(), y.Month(), y.Day(), 0, 0, 0, 0, y.Location())
		return Window{start.Unix(), start.Add(day).Unix()}
	}
	if strings.Contains(strings.ToLower(query), "today") {
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		return Window{start.Unix(), now.Unix()}
	}
	if m := thisPeriodRe.FindStringSubmatch(query); m != nil {
		return thisPeriod(now, strings.ToLower(m[1]))
	}
	if m := monthYearRe.FindStringSubmatch(query); m != nil {
		if mo, ok := months[strings.ToLower(m[1])]; ok {
			year, _ := strconv.Atoi(m[2])
			start := time.Date(year, mo, 1, 0, 0, 0, 0, time.UTC)
			end := start.AddDate(0, 1, 0)
			return Window{start.Unix(), end.Unix()}
		}
	}
	if m := slashDateRe.FindStringSubmatch(query); m != nil {
		mo, _ := strconv.Atoi(m[1])
		d, _ := strconv.Atoi(m[2])
		y, _ := strconv.Atoi(m[3])
		start := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
		return Window{start.Unix(), start.Add(day).Unix()}
	}
	if m := isoDateRe.FindStringSubmatch(query); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		start := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
		return Window{start.Unix(), start.Add(day).Unix()}
	}

	switch {
	case authorSpecificRe.MatchString(query):
		return Window{now.Add(-90 * day).Unix(), now.Unix()}
	case riskSpecificRe.MatchString(query):
		return Window{now.AddDate(-2, 0, 0).Unix(), now.Unix()}
	default:
		return Window{now.AddDate(-5, 0, 0).Unix(), now.Unix()}
	}
}

func parseN(s string) int {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return wordToNum[strings.ToLower(s)]
}

// lastNUnit subtracts n units from now; month is approximated as 30 days
// per spec §4.7's explicit "month is approximated as 30 days" rule.
func lastNUnit(now time.Time, n int, unit string) Window {
	var start time.Time
	switch strings.ToLower(unit) {
	case "day":
		start = now.Add(-time.Duration(n) * day)
	case "week":
		start = now.Add(-time.Duration(n*7) * day)
	case "month":
		start = now.Add(-time.Duration(n*30) * day)
	case "year":
		start = now.AddDate(-n, 0, 0)
	default:
		start = now.AddDate(-5, 0, 0)
	}
	return Window{start.Unix(), now.Unix()}
}

// thisPeriod returns [start of current week/month/year, now). Weeks start
// Monday (spec §4.7).
func thisPeriod(now time.Time, unit string) Window {
	switch unit {
	case "week":
		offset := int(now.Weekday())
		if offset == 0 { // Sunday
			offset = 6
		} else {
			offset--
		}
		d := now.AddDate(0, 0, -offset)
		start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, now.Location())
		return Window{start.Unix(), now.Unix()}
	case "month":
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return Window{start.Unix(), now.Unix()}
	case "year":
		start := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
		return Window{start.Unix(), now.Unix()}
	default:
		return Window{now.AddDate(-5, 0, 0).Unix(), now.Unix()}
	}
}

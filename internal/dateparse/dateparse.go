// Package dateparse turns the date shorthands accepted on the command line
// into the ISO dates (YYYY-MM-DD) stored in entity payloads.
package dateparse

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const isoDate = "2006-01-02"

var weekdays = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
}

// Parse resolves a due-date shorthand against the current time.
//
// Accepted forms:
//   - "2026-09-14" (exact)
//   - "today", "tomorrow", "next-week"
//   - "+3d", "+2w" (days or weeks from now)
//   - "friday" (the next occurrence of that weekday)
func Parse(input string) (string, error) {
	return ParseFrom(input, time.Now())
}

// ParseFrom is Parse with an explicit reference time, for deterministic
// tests.
func ParseFrom(input string, now time.Time) (string, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" {
		return "", fmt.Errorf("empty date")
	}

	if t, err := time.Parse(isoDate, s); err == nil {
		return t.Format(isoDate), nil
	}

	switch s {
	case "today":
		return now.Format(isoDate), nil
	case "tomorrow":
		return now.AddDate(0, 0, 1).Format(isoDate), nil
	case "next-week":
		return now.AddDate(0, 0, daysUntil(now, time.Monday)).Format(isoDate), nil
	}

	if wd, ok := weekdays[s]; ok {
		return now.AddDate(0, 0, daysUntil(now, wd)).Format(isoDate), nil
	}

	if rest, ok := strings.CutPrefix(s, "+"); ok {
		return parseOffset(rest, now)
	}

	return "", fmt.Errorf("cannot parse date %q (try YYYY-MM-DD, tomorrow, +3d, or a weekday)", input)
}

// daysUntil returns the days ahead to the next occurrence of wd, never 0:
// naming today's weekday means next week.
func daysUntil(now time.Time, wd time.Weekday) int {
	d := (int(wd) - int(now.Weekday()) + 7) % 7
	if d == 0 {
		d = 7
	}
	return d
}

func parseOffset(s string, now time.Time) (string, error) {
	if len(s) < 2 {
		return "", fmt.Errorf("incomplete offset %q", "+"+s)
	}

	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n < 0 {
		return "", fmt.Errorf("bad offset amount in %q", "+"+s)
	}

	switch s[len(s)-1] {
	case 'd':
		return now.AddDate(0, 0, n).Format(isoDate), nil
	case 'w':
		return now.AddDate(0, 0, 7*n).Format(isoDate), nil
	default:
		return "", fmt.Errorf("unknown offset unit %q (use d or w)", string(s[len(s)-1]))
	}
}

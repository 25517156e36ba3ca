// Package timerange resolves natural-language time phrases into concrete
// UTC intervals.
//
// Resolve is a pure function: the caller supplies the reference instant
// (already shifted into the user's time zone), and every output is emitted
// as ISO-8601 UTC. An unparseable phrase yields nil — callers must not
// guess and should fall back to their own default window.
package timerange

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Range is a resolved [From, To] interval with a human description.
type Range struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Description string `json:"description"`
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

var (
	lastNPattern = regexp.MustCompile(`(?:last|past)\s+(\d+)\s+(hour|day|week)s?`)
	agoPattern   = regexp.MustCompile(`(\d+)\s+(hour|day|week)s?\s+ago`)
)

// Free-form date layouts tried against date-like substrings, most
// specific first.
var dateLayouts = []string{
	"2006-01-02",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"1/2/2006",
	"January 2",
	"Jan 2",
}

// Resolve maps a natural-language phrase and a reference instant into a
// concrete interval. It returns nil when the phrase cannot be parsed.
func Resolve(phrase string, now time.Time) *Range {
	p := strings.ToLower(strings.TrimSpace(phrase))
	if p == "" {
		return nil
	}

	switch {
	case strings.Contains(p, "yesterday"):
		start := startOfDay(now).AddDate(0, 0, -1)
		return newRange(start, start.AddDate(0, 0, 1), "yesterday")
	case strings.Contains(p, "today"):
		start := startOfDay(now)
		return newRange(start, now, "today")
	case strings.Contains(p, "this week"):
		return newRange(startOfWeek(now), now, "this week")
	case strings.Contains(p, "last week"):
		start := startOfWeek(now).AddDate(0, 0, -7)
		return newRange(start, start.AddDate(0, 0, 7), "last week")
	}

	// Rolling windows: "last 24 hours", "past 3 days".
	if m := lastNPattern.FindStringSubmatch(p); m != nil {
		n, _ := strconv.Atoi(m[1])
		d := unitDuration(n, m[2])
		return newRange(now.Add(-d), now, m[0])
	}

	// "N days ago" resolves to that single day (or hour-precision window).
	if m := agoPattern.FindStringSubmatch(p); m != nil {
		n, _ := strconv.Atoi(m[1])
		switch m[2] {
		case "hour":
			point := now.Add(-time.Duration(n) * time.Hour)
			return newRange(point.Truncate(time.Hour), point.Truncate(time.Hour).Add(time.Hour), m[0])
		case "day":
			start := startOfDay(now).AddDate(0, 0, -n)
			return newRange(start, start.AddDate(0, 0, 1), m[0])
		case "week":
			start := startOfWeek(now).AddDate(0, 0, -7*n)
			return newRange(start, start.AddDate(0, 0, 7), m[0])
		}
	}

	// Named weekdays mean the most recent past occurrence, never a
	// future date: "Thursday" on a Monday is four days back.
	for name, wd := range weekdays {
		if strings.Contains(p, name) {
			start := lastOccurrence(now, wd)
			return newRange(start, start.AddDate(0, 0, 1), "last "+name)
		}
	}

	// Free-form date-like substrings.
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, strings.TrimSpace(phrase), now.Location()); err == nil {
			// Year-less layouts parse into year 0; borrow the reference year.
			if t.Year() == 0 {
				t = t.AddDate(now.Year(), 0, 0)
				if t.After(now) {
					t = t.AddDate(-1, 0, 0)
				}
			}
			start := startOfDay(t)
			return newRange(start, start.AddDate(0, 0, 1), start.Format("January 2, 2006"))
		}
	}

	return nil
}

// LastDay returns the default fallback window: the 24 hours ending at now.
// Capabilities use it when a phrase fails to resolve or none was given.
func LastDay(now time.Time) *Range {
	return newRange(now.Add(-24*time.Hour), now, "last 24 hours")
}

func newRange(from, to time.Time, description string) *Range {
	return &Range{
		From:        from.UTC().Format(time.RFC3339),
		To:          to.UTC().Format(time.RFC3339),
		Description: description,
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// startOfWeek treats Monday as the first day of the week.
func startOfWeek(t time.Time) time.Time {
	day := startOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// lastOccurrence returns midnight of the most recent past occurrence of wd,
// going a full week back when now falls on wd itself.
func lastOccurrence(now time.Time, wd time.Weekday) time.Time {
	day := startOfDay(now)
	diff := (int(now.Weekday()) - int(wd) + 7) % 7
	if diff == 0 {
		diff = 7
	}
	return day.AddDate(0, 0, -diff)
}

func unitDuration(n int, unit string) time.Duration {
	switch unit {
	case "hour":
		return time.Duration(n) * time.Hour
	case "day":
		return time.Duration(n) * 24 * time.Hour
	case "week":
		return time.Duration(n) * 7 * 24 * time.Hour
	}
	return 0
}

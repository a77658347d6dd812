// Package dates normalizes the messy publication-date strings news
// sites emit into time.Time values the pipeline can persist. It accepts
// a wide range of absolute layouts plus the relative forms ("3 hours
// ago", "yesterday") common on article listings, and rejects anything
// outside a sanity window around the current wall clock.
package dates

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Window bounds for accepted dates. Articles older than ten years or
// more than a day in the future are treated as parser noise.
const (
	maxAge    = 3650 * 24 * time.Hour
	maxFuture = 24 * time.Hour
)

// layouts are tried in order against the trimmed input. RFC 1123 comes
// first because the secondary extraction engine reports dates that way.
var layouts = []string{
	time.RFC1123,
	time.RFC1123Z,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC822,
	time.RFC822Z,
	"January 2, 2006 15:04",
	"January 2, 2006",
	"Jan 2, 2006 15:04",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"01/02/2006",
	"2006/01/02",
}

var (
	hoursAgoRe = regexp.MustCompile(`(?i)^(\d+)\s+hours?\s+ago$`)
	daysAgoRe  = regexp.MustCompile(`(?i)^(\d+)\s+days?\s+ago$`)
)

// Parse interprets raw as a publication date, resolving relative forms
// against now. The boolean is false when nothing matched.
func Parse(raw string, now time.Time) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	if d, ok := parseRelative(raw, now); ok {
		return d, true
	}

	for _, layout := range layouts {
		if d, err := time.Parse(layout, raw); err == nil {
			return d, true
		}
	}

	return time.Time{}, false
}

// parseRelative handles the listing-page forms: "N hours ago",
// "N days ago", "yesterday" and "today". Day-granular forms resolve to
// noon so that timezone jitter cannot push them across a date line.
func parseRelative(raw string, now time.Time) (time.Time, bool) {
	lower := strings.ToLower(raw)

	switch lower {
	case "today":
		return atNoon(now), true
	case "yesterday":
		return atNoon(now.AddDate(0, 0, -1)), true
	}

	if m := hoursAgoRe.FindStringSubmatch(raw); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, false
		}
		return now.Add(-time.Duration(n) * time.Hour), true
	}

	if m := daysAgoRe.FindStringSubmatch(raw); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, false
		}
		return now.AddDate(0, 0, -n), true
	}

	return time.Time{}, false
}

func atNoon(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, t.Location())
}

// InWindow reports whether d is plausible as a publication date: no
// older than ten years, no further than a day into the future.
func InWindow(d, now time.Time) bool {
	if d.Before(now.Add(-maxAge)) {
		return false
	}
	return !d.After(now.Add(maxFuture))
}

// ParseInWindow combines Parse and InWindow; out-of-window dates are
// reported as a parse failure so cascade callers fall through.
func ParseInWindow(raw string, now time.Time) (time.Time, bool) {
	d, ok := Parse(raw, now)
	if !ok || !InWindow(d, now) {
		return time.Time{}, false
	}
	return d, true
}

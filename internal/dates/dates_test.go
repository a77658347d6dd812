package dates_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macsteckler/lightspeeed-scraper/internal/dates"
)

var now = time.Date(2025, time.June, 15, 18, 30, 0, 0, time.UTC)

func TestParseAbsoluteLayouts(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{
			"rfc1123",
			"Sun, 15 Jun 2025 10:00:00 GMT",
			time.Date(2025, time.June, 15, 10, 0, 0, 0, time.UTC),
		},
		{
			"rfc3339",
			"2025-06-14T08:15:00Z",
			time.Date(2025, time.June, 14, 8, 15, 0, 0, time.UTC),
		},
		{
			"iso date only",
			"2025-06-10",
			time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC),
		},
		{
			"iso datetime no zone",
			"2025-06-10T07:45:30",
			time.Date(2025, time.June, 10, 7, 45, 30, 0, time.UTC),
		},
		{
			"long month",
			"June 2, 2025",
			time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			"short month",
			"Jun 2, 2025",
			time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			"day first",
			"2 June 2025",
			time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			"us slashes",
			"06/02/2025",
			time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			"leading whitespace",
			"  2025-06-10  ",
			time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := dates.Parse(tt.raw, now)
			require.True(t, ok)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestParseRelative(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{"hours ago", "3 hours ago", now.Add(-3 * time.Hour)},
		{"one hour ago", "1 hour ago", now.Add(-time.Hour)},
		{"days ago", "2 days ago", now.AddDate(0, 0, -2)},
		{"case insensitive", "5 HOURS AGO", now.Add(-5 * time.Hour)},
		{"today at noon", "today", time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)},
		{"yesterday at noon", "Yesterday", time.Date(2025, time.June, 14, 12, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := dates.Parse(tt.raw, now)
			require.True(t, ok)
			assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)
		})
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "   ", "not a date", "sometime soon", "ago", "14 fortnights ago"} {
		t.Run(raw, func(t *testing.T) {
			_, ok := dates.Parse(raw, now)
			assert.False(t, ok)
		})
	}
}

func TestInWindow(t *testing.T) {
	tests := []struct {
		name string
		d    time.Time
		want bool
	}{
		{"now", now, true},
		{"nine years ago", now.AddDate(-9, 0, 0), true},
		{"eleven years ago", now.AddDate(-11, 0, 0), false},
		{"twelve hours ahead", now.Add(12 * time.Hour), true},
		{"two days ahead", now.Add(48 * time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dates.InWindow(tt.d, now))
		})
	}
}

func TestParseInWindowDiscardsOutOfWindow(t *testing.T) {
	_, ok := dates.ParseInWindow("1998-01-01", now)
	assert.False(t, ok)

	d, ok := dates.ParseInWindow("2025-06-10", now)
	require.True(t, ok)
	assert.Equal(t, 10, d.Day())
}

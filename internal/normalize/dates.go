package normalize

import (
	"fmt"
	"strings"
	"time"
)

// Date formats accepted for calendar days in flags, files and query strings.
var dateFormats = []string{
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseDate parses a calendar day in any accepted format and truncates it to
// midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

const secondsPerDay = 24 * 60 * 60

// DaysBetween returns the signed number of calendar days from start to t.
// It works on Unix seconds, so it holds for ranges longer than a
// time.Duration can represent.
func DaysBetween(start, t time.Time) int {
	return int((Day(t).Unix() - Day(start).Unix()) / secondsPerDay)
}

// DayCount returns the number of calendar days in [start, end], or 0 when end
// falls before start.
func DayCount(start, end time.Time) int {
	n := DaysBetween(start, end) + 1
	if n < 0 {
		return 0
	}
	return n
}

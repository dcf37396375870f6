package utils

import (
	"time"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// DateOf returns the calendar date of t, as seen in t's location, as midnight UTC.
// Every stored completion date goes through DateOf so that dates compare with ==.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the current calendar date in loc.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return DateOf(now.In(loc))
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, err
	}
	return DateOf(t), nil
}

// FormatDate formats a calendar date as YYYY-MM-DD.
func FormatDate(date time.Time) string {
	return date.Format(DateLayout)
}

// StartOfWeek returns the Monday of the ISO week containing date.
func StartOfWeek(date time.Time) time.Time {
	// time.Weekday counts from Sunday = 0; shift so Monday = 0.
	offset := (int(date.Weekday()) + 6) % 7
	return DateOf(date).AddDate(0, 0, -offset)
}

func parseClock(layout, value string) (string, error) {
	t, err := time.Parse(layout, value)
	if err != nil {
		return "", err
	}
	return t.Format("15:04"), nil
}

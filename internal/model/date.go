package model

import "time"

// DateLayout is the wire format of calendar days
const DateLayout = "2006-01-02"

// Day truncates t to midnight UTC of its calendar day
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayKey formats the calendar day of t
func DayKey(t time.Time) string {
	return Day(t).Format(DateLayout)
}

// ParseDay parses a YYYY-MM-DD calendar day
func ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

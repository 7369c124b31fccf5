package utils

import (
	"time"
)

const (
	// Time format constants
	TimeFormat = "2006-01-02 15:04:05"
	DateFormat = "2006-01-02"
)

// DayKey returns the calendar-day key used for per-day quota buckets.
func DayKey(t time.Time) string {
	return t.Format(DateFormat)
}

// SameDay reports whether two instants fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	return DayKey(a) == DayKey(b)
}

// GetCurrentTimestamp get current timestamp (seconds)
func GetCurrentTimestamp() int64 {
	return time.Now().Unix()
}

// FormatTime format time to standard string
func FormatTime(t time.Time) string {
	return t.Format(TimeFormat)
}

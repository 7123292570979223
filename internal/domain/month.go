package domain

import (
	"fmt"
	"time"
)

// MonthKey is a calendar month rendered as "YYYY-MM". Keys are always
// derived from a first-of-month date's year and month fields, never by
// slicing an ISO timestamp, so DST and UTC offsets cannot shift them.
type MonthKey string

// MonthKeyOf returns the month key for t in t's location.
func MonthKeyOf(t time.Time) MonthKey {
	return MonthKey(fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month())))
}

// StartOfMonth returns midnight on the first day of t's month, in t's
// location.
func StartOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// AddMonths moves a first-of-month date by n calendar months.
func AddMonths(t time.Time, n int) time.Time {
	return StartOfMonth(t).AddDate(0, n, 0)
}

// MonthWindow returns the n month keys ending at (and including) the month
// of now, oldest first. The current partial month is always included; that
// matches the budgeting provider's "Last X Months" reports.
func MonthWindow(now time.Time, n int) []MonthKey {
	if n <= 0 {
		return nil
	}
	keys := make([]MonthKey, 0, n)
	first := AddMonths(now, -(n - 1))
	for i := 0; i < n; i++ {
		keys = append(keys, MonthKeyOf(AddMonths(first, i)))
	}
	return keys
}

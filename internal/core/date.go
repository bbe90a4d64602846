package core

import (
	"time"

	"cloud.google.com/go/civil"
)

// Date is a calendar day with no time zone attached.
type Date = civil.Date

// NewDate builds a Date. Out-of-range months and days are normalised the
// way time.Date does it, so callers wanting clamping use DateWithClampedDay.
func NewDate(year int, month time.Month, day int) Date {
	return civil.DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// ParseDate parses an ISO YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	return civil.ParseDate(s)
}

// IsZeroDate reports whether d is the zero value, used for "not set".
func IsZeroDate(d Date) bool {
	return d == Date{}
}

// LastDayOfMonth returns the number of days in the given month. The month
// may be outside 1..12 and wraps across years.
func LastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DateWithClampedDay returns the day-th of the month, or the last day of
// the month when day is past it. Month wraps across years (0 is December of
// the previous year, 13 is January of the next).
func DateWithClampedDay(year int, month time.Month, day int) Date {
	first := NewDate(year, month, 1)
	last := LastDayOfMonth(first.Year, first.Month)
	if day > last {
		day = last
	}
	first.Day = day
	return first
}

// AddMonthsClamped moves d by n calendar months keeping the day of month
// where it exists and clamping to the month end otherwise (Jan 31 + 1 is
// Feb 28 or 29, never March).
func AddMonthsClamped(d Date, n int) Date {
	return DateWithClampedDay(d.Year, d.Month+time.Month(n), d.Day)
}

// AddYearsClamped moves d by n years; Feb 29 lands on Feb 28 in common years.
func AddYearsClamped(d Date, n int) Date {
	return AddMonthsClamped(d, 12*n)
}

// ISOWeekday returns 1 for Monday through 7 for Sunday.
func ISOWeekday(d Date) int {
	wd := int(d.In(time.UTC).Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// Today returns the current calendar day in loc.
func Today(loc *time.Location) Date {
	return civil.DateOf(time.Now().In(loc))
}

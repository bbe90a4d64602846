// Package period computes the date window of a monthly accounting period.
//
// A period is either the calendar month or, when the user enables a custom
// period with start day S > 1, the span from day S of the previous month to
// day S-1 of the labelled month. Days past a month's end clamp to its last
// day, so adjacent custom periods can share their boundary day in short
// months.
package period

import (
	"encoding/json"
	"fmt"
	"time"

	"bilancio/internal/core"
)

// Range is an inclusive date window.
type Range struct {
	Start core.Date
	End   core.Date
}

// Contains reports whether d falls inside the range, bounds included.
func (r Range) Contains(d core.Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

func (r Range) String() string {
	return fmt.Sprintf("%s..%s", r.Start, r.End)
}

func (r Range) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Start string `json:"start"`
		End   string `json:"end"`
	}{r.Start.String(), r.End.String()})
}

// DateWithClampedDay returns the day-th of the given month, clamped to the
// month's last day. Month 0 is December of the previous year and 13 is
// January of the next.
func DateWithClampedDay(year int, month time.Month, day int) core.Date {
	return core.DateWithClampedDay(year, month, day)
}

// ComputeRange returns the window labelled by year and month. Without an
// active custom period, or with start day 1, that is the calendar month.
func ComputeRange(year int, month time.Month, startDay int, active bool) Range {
	if !active || startDay <= 1 {
		return Range{
			Start: DateWithClampedDay(year, month, 1),
			End:   DateWithClampedDay(year, month, core.LastDayOfMonth(year, month)),
		}
	}
	return Range{
		Start: DateWithClampedDay(year, month-1, startDay),
		End:   DateWithClampedDay(year, month, startDay-1),
	}
}

// ResolveTargetPeriod returns the label of the period containing today.
// Once today's day reaches the start day the next month's period has begun.
// A start day of 1 or less always means the current calendar month.
func ResolveTargetPeriod(today core.Date, startDay int) (int, time.Month) {
	if startDay > 1 && today.Day >= startDay {
		next := core.NewDate(today.Year, today.Month+1, 1)
		return next.Year, next.Month
	}
	return today.Year, today.Month
}

// Current returns the period containing today for the given settings.
func Current(today core.Date, s core.UserSettings) Range {
	year, month := ResolveTargetPeriod(today, s.PeriodStartDay())
	return ForSettings(year, month, s)
}

// ForSettings returns the period labelled year/month for the given settings.
func ForSettings(year int, month time.Month, s core.UserSettings) Range {
	return ComputeRange(year, month, s.CustomPeriodStartDay, s.CustomPeriodActive)
}

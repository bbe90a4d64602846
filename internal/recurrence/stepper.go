// Package recurrence expands recurrence rules into dated occurrences.
//
// This file implements the Strategy Pattern for stepping through a series.
// Each frequency has its own Stepper that computes the k-th date of the
// series from its anchor.
package recurrence

import (
	"fmt"

	"bilancio/internal/core"
)

// Stepper computes the k-th occurrence (k >= 1) of a series anchored at
// start. Computing from the anchor instead of from the previous date keeps
// month-end series stable: Jan 31 monthly is Feb 28, Mar 31, Apr 30.
type Stepper interface {
	Step(start core.Date, k int) core.Date
}

// DayStepper advances by a fixed number of days.
type DayStepper struct{ Days int }

func (s DayStepper) Step(start core.Date, k int) core.Date {
	return start.AddDays(s.Days * k)
}

// MonthStepper advances by a fixed number of calendar months, clamping the
// day of month.
type MonthStepper struct{ Months int }

func (s MonthStepper) Step(start core.Date, k int) core.Date {
	return core.AddMonthsClamped(start, s.Months*k)
}

var steppers = map[core.Frequency]Stepper{
	core.Daily:      DayStepper{Days: 1},
	core.Weekly:     DayStepper{Days: 7},
	core.Monthly:    MonthStepper{Months: 1},
	core.Bimonthly:  MonthStepper{Months: 2},
	core.Quarterly:  MonthStepper{Months: 3},
	core.Semiannual: MonthStepper{Months: 6},
	core.Annual:     MonthStepper{Months: 12},
}

// GetStepper returns the stepper for a frequency.
func GetStepper(f core.Frequency) (Stepper, error) {
	s, ok := steppers[f]
	if !ok {
		return nil, fmt.Errorf("unknown frequency: %s", f)
	}
	return s, nil
}

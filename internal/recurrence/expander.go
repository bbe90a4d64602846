package recurrence

import (
	"iter"

	"bilancio/internal/core"
)

// DefaultHorizonYears caps every series, open-ended or not.
const DefaultHorizonYears = 10

// Expander generates occurrence dates. The zero value is not useful; use
// New or set Horizon explicitly.
type Expander struct {
	// Horizon is the safety window in years measured from the series start.
	// A non-positive horizon produces no occurrences.
	Horizon int
}

// New returns an Expander with the default ten-year horizon.
func New() Expander {
	return Expander{Horizon: DefaultHorizonYears}
}

// NormalizeStartDate moves start forward to the first selected weekday when
// the rule is weekly with explicit weekdays. It looks at most seven days
// ahead; any other rule leaves start untouched.
func NormalizeStartDate(start core.Date, rule core.RecurrenceRule) core.Date {
	days := rule.SelectedWeekdays()
	if days.IsEmpty() {
		return start
	}
	d := start
	for i := 0; i < 7; i++ {
		if days.Contains(core.ISOWeekday(d)) {
			return d
		}
		d = d.AddDays(1)
	}
	return start
}

// Bound returns the last date a series starting at start may reach: the
// rule's end date or the horizon, whichever comes first. ok is false when
// the horizon is not positive.
func (e Expander) Bound(start core.Date, rule core.RecurrenceRule) (bound core.Date, ok bool) {
	if e.Horizon <= 0 {
		return core.Date{}, false
	}
	bound = core.AddYearsClamped(start, e.Horizon)
	if rule.EndDate != nil && rule.EndDate.Before(bound) {
		bound = *rule.EndDate
	}
	return bound, true
}

// Expand yields the occurrence dates strictly after start in ascending
// order, up to and including the bound. The sequence is finite and can be
// ranged over any number of times with identical results. Unknown
// frequencies and empty windows yield nothing.
func (e Expander) Expand(start core.Date, rule core.RecurrenceRule) iter.Seq[core.Date] {
	return func(yield func(core.Date) bool) {
		bound, ok := e.Bound(start, rule)
		if !ok || bound.Before(start) {
			return
		}

		if days := rule.SelectedWeekdays(); !days.IsEmpty() {
			for d := start.AddDays(1); !d.After(bound); d = d.AddDays(1) {
				if days.Contains(core.ISOWeekday(d)) && !yield(d) {
					return
				}
			}
			return
		}

		stepper, err := GetStepper(rule.Frequency)
		if err != nil {
			return
		}
		for k := 1; ; k++ {
			d := stepper.Step(start, k)
			if d.After(bound) || !yield(d) {
				return
			}
		}
	}
}

// Dates collects Expand into a slice.
func (e Expander) Dates(start core.Date, rule core.RecurrenceRule) []core.Date {
	var out []core.Date
	for d := range e.Expand(start, rule) {
		out = append(out, d)
	}
	return out
}

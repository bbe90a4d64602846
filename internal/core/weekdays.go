package core

import (
	"encoding/json"
	"fmt"
	"sort"
)

// WeekdaySet is a set of ISO weekdays, bit i set for weekday i (1 = Monday,
// 7 = Sunday).
type WeekdaySet uint8

// NewWeekdaySet builds a set from ISO weekday numbers.
func NewWeekdaySet(days ...int) (WeekdaySet, error) {
	var s WeekdaySet
	for _, d := range days {
		if d < 1 || d > 7 {
			return 0, fmt.Errorf("%w: weekday %d outside 1..7", ErrInvalidRule, d)
		}
		s |= 1 << d
	}
	return s, nil
}

// MustWeekdaySet is NewWeekdaySet that panics on invalid input.
func MustWeekdaySet(days ...int) WeekdaySet {
	s, err := NewWeekdaySet(days...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s WeekdaySet) Contains(isoDay int) bool {
	if isoDay < 1 || isoDay > 7 {
		return false
	}
	return s&(1<<isoDay) != 0
}

func (s WeekdaySet) IsEmpty() bool {
	return s == 0
}

// Days returns the members in ascending order.
func (s WeekdaySet) Days() []int {
	var out []int
	for d := 1; d <= 7; d++ {
		if s.Contains(d) {
			out = append(out, d)
		}
	}
	return out
}

func (s WeekdaySet) MarshalJSON() ([]byte, error) {
	days := s.Days()
	if days == nil {
		days = []int{}
	}
	return json.Marshal(days)
}

func (s *WeekdaySet) UnmarshalJSON(b []byte) error {
	var days []int
	if err := json.Unmarshal(b, &days); err != nil {
		return err
	}
	sort.Ints(days)
	set, err := NewWeekdaySet(days...)
	if err != nil {
		return err
	}
	*s = set
	return nil
}

package core

import (
	"sort"
	"strings"
)

// Totals is income, expense and their difference over a set of transactions.
type Totals struct {
	Income  Money `json:"income"`
	Expense Money `json:"expense"`
	Balance Money `json:"balance"`
}

// PeriodSummary compares what already happened (actual) with everything
// planned in the period (forecast).
type PeriodSummary struct {
	Actual   Totals `json:"actual"`
	Forecast Totals `json:"forecast"`
}

// BreakdownType selects what a category breakdown aggregates.
type BreakdownType string

const (
	BreakdownBalance BreakdownType = "balance"
	BreakdownExpense BreakdownType = "expense"
	BreakdownIncome  BreakdownType = "income"
)

func (b BreakdownType) IsValid() bool {
	switch b {
	case BreakdownBalance, BreakdownExpense, BreakdownIncome:
		return true
	}
	return false
}

// CategoryAmount is the actual and forecast value of one category.
type CategoryAmount struct {
	Category string `json:"category"`
	Actual   Money  `json:"actual"`
	Forecast Money  `json:"forecast"`
}

// Breakdown is a per-category view of a period.
type Breakdown struct {
	Type          BreakdownType    `json:"type"`
	ActualTotal   Money            `json:"actual_total"`
	ForecastTotal Money            `json:"forecast_total"`
	ByCategory    []CategoryAmount `json:"by_category"`
}

// IsActual reports whether t counts as a settled event on the given day:
// confirmed and not dated in the future.
func IsActual(t Transaction, today Date) bool {
	return t.Confirmed && !t.Date.After(today)
}

// Summarize computes actual and forecast totals. Every transaction counts
// towards the forecast.
func Summarize(txs []Transaction, today Date) PeriodSummary {
	var s PeriodSummary
	for _, t := range txs {
		addTo(&s.Forecast, t)
		if IsActual(t, today) {
			addTo(&s.Actual, t)
		}
	}
	s.Actual.Balance = s.Actual.Income.Sub(s.Actual.Expense)
	s.Forecast.Balance = s.Forecast.Income.Sub(s.Forecast.Expense)
	return s
}

func addTo(tot *Totals, t Transaction) {
	switch t.Kind {
	case Income:
		tot.Income = tot.Income.Add(t.Amount)
	case Expense:
		tot.Expense = tot.Expense.Add(t.Amount)
	}
}

// BreakdownByCategory groups transactions by category. The balance breakdown uses
// signed amounts; the others keep only the matching kind. Categories are
// ordered by absolute forecast value, largest first.
func BreakdownByCategory(txs []Transaction, today Date, typ BreakdownType) Breakdown {
	b := Breakdown{Type: typ}
	idx := map[string]int{}

	for _, t := range txs {
		var v Money
		switch typ {
		case BreakdownBalance:
			v = t.Signed()
		case BreakdownExpense, BreakdownIncome:
			if string(t.Kind) != string(typ) {
				continue
			}
			v = t.Amount
		default:
			continue
		}

		name := strings.TrimSpace(t.Category)
		if name == "" {
			name = "Altro"
		}
		i, ok := idx[name]
		if !ok {
			i = len(b.ByCategory)
			idx[name] = i
			b.ByCategory = append(b.ByCategory, CategoryAmount{Category: name})
		}

		b.ByCategory[i].Forecast = b.ByCategory[i].Forecast.Add(v)
		b.ForecastTotal = b.ForecastTotal.Add(v)
		if IsActual(t, today) {
			b.ByCategory[i].Actual = b.ByCategory[i].Actual.Add(v)
			b.ActualTotal = b.ActualTotal.Add(v)
		}
	}

	sort.SliceStable(b.ByCategory, func(i, j int) bool {
		return b.ByCategory[i].Forecast.Abs().GreaterThan(b.ByCategory[j].Forecast.Abs())
	})
	return b
}

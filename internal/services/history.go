package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"bilancio/internal/core"
	"bilancio/internal/period"
)

// StatusFilter selects which unconfirmed transactions the history shows.
// Confirmed transactions are always shown.
type StatusFilter string

const (
	FilterConfirmedOnly      StatusFilter = "confirmed_only"
	FilterConfirmedPlusToday StatusFilter = "confirmed_plus_today"
	FilterAll                StatusFilter = "all"
)

func (f StatusFilter) IsValid() bool {
	switch f {
	case FilterConfirmedOnly, FilterConfirmedPlusToday, FilterAll:
		return true
	}
	return false
}

func (f StatusFilter) keep(t core.Transaction, today core.Date) bool {
	if t.Confirmed {
		return true
	}
	switch f {
	case FilterAll:
		return true
	case FilterConfirmedPlusToday:
		return !t.Date.After(today)
	}
	return false
}

// HistoryQuery selects a ledger and a period. A zero Year means the period
// containing today; an empty Filter means FilterAll.
type HistoryQuery struct {
	Scope  core.Scope
	Year   int
	Month  int
	Filter StatusFilter
	Search string
}

// History is the filtered list of a period with its net total.
type History struct {
	Period       period.Range       `json:"period"`
	Transactions []core.Transaction `json:"transactions"`
	Total        core.Money         `json:"total"`
}

// History lists the ledger's transactions in the requested period, newest
// first. Total is income minus expense over the listed rows.
func (s *TransactionService) History(ctx context.Context, userID uuid.UUID, q HistoryQuery) (History, error) {
	if q.Filter == "" {
		q.Filter = FilterAll
	}
	if !q.Filter.IsValid() {
		return History{}, ErrInvalidFilter
	}

	ledger, err := resolveLedger(ctx, s.store, userID, q.Scope)
	if err != nil {
		return History{}, err
	}
	settings, err := s.settings.Get(ctx, userID)
	if err != nil {
		return History{}, err
	}
	today := s.today()
	r, err := periodFor(settings, today, q.Year, q.Month)
	if err != nil {
		return History{}, err
	}

	rows, err := s.store.ListRange(ctx, ledger, r.Start, r.End)
	if err != nil {
		return History{}, err
	}

	h := History{Period: r, Transactions: []core.Transaction{}}
	needle := strings.ToLower(strings.TrimSpace(q.Search))
	for _, t := range rows {
		if !q.Filter.keep(t, today) || !matches(t, needle) {
			continue
		}
		h.Transactions = append(h.Transactions, t)
		h.Total = h.Total.Add(t.Signed())
	}
	return h, nil
}

func matches(t core.Transaction, needle string) bool {
	if needle == "" {
		return true
	}
	for _, field := range []string{t.Counterparty, t.Category, t.Note} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return strings.Contains(t.Amount.String(), needle) ||
		strings.Contains(t.Amount.Decimal.String(), needle)
}

// periodFor resolves the requested period, or the one containing today
// when year is zero.
func periodFor(settings core.UserSettings, today core.Date, year, month int) (period.Range, error) {
	if year == 0 {
		return period.Current(today, settings), nil
	}
	if month < 1 || month > 12 {
		return period.Range{}, ErrInvalidPeriod
	}
	return period.ForSettings(year, time.Month(month), settings), nil
}

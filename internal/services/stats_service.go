package services

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"bilancio/internal/core"
	"bilancio/internal/period"
)

// StatsService computes the dashboard and the category analysis of a
// period.
type StatsService struct {
	store    TransactionStore
	settings SettingsProvider
	today    Clock
}

func NewStatsService(store TransactionStore, settings SettingsProvider, today Clock) *StatsService {
	return &StatsService{store: store, settings: settings, today: today}
}

// Dashboard is the actual versus forecast view of a period.
type Dashboard struct {
	Period       period.Range       `json:"period"`
	Today        core.Date          `json:"today"`
	Summary      core.PeriodSummary `json:"summary"`
	Pending      []core.Transaction `json:"pending"`
	ActiveSeries int                `json:"active_series"`
}

// Analysis is the per-category breakdown of a period.
type Analysis struct {
	Period    period.Range   `json:"period"`
	Breakdown core.Breakdown `json:"breakdown"`
}

// Period resolves the requested period for the user's settings, or the
// current one when year is zero.
func (s *StatsService) Period(ctx context.Context, userID uuid.UUID, year, month int) (period.Range, error) {
	settings, err := s.settings.Get(ctx, userID)
	if err != nil {
		return period.Range{}, err
	}
	return periodFor(settings, s.today(), year, month)
}

// Dashboard loads the period's rows and the active templates concurrently.
// Pending lists unconfirmed rows due on or before today.
func (s *StatsService) Dashboard(ctx context.Context, userID uuid.UUID, scope core.Scope, year, month int) (Dashboard, error) {
	ledger, err := resolveLedger(ctx, s.store, userID, scope)
	if err != nil {
		return Dashboard{}, err
	}
	r, err := s.Period(ctx, userID, year, month)
	if err != nil {
		return Dashboard{}, err
	}
	today := s.today()

	var rows, templates []core.Transaction
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, err = s.store.ListRange(gctx, ledger, r.Start, r.End)
		return err
	})
	g.Go(func() error {
		var err error
		templates, err = s.store.ListTemplates(gctx, ledger)
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}

	d := Dashboard{
		Period:       r,
		Today:        today,
		Summary:      core.Summarize(rows, today),
		Pending:      []core.Transaction{},
		ActiveSeries: len(templates),
	}
	for _, t := range rows {
		if !t.Confirmed && !t.Date.After(today) {
			d.Pending = append(d.Pending, t)
		}
	}
	return d, nil
}

// Analysis groups the period by category.
func (s *StatsService) Analysis(ctx context.Context, userID uuid.UUID, scope core.Scope, year, month int, typ core.BreakdownType) (Analysis, error) {
	if typ == "" {
		typ = core.BreakdownExpense
	}
	if !typ.IsValid() {
		return Analysis{}, ErrInvalidBreakdown
	}
	ledger, err := resolveLedger(ctx, s.store, userID, scope)
	if err != nil {
		return Analysis{}, err
	}
	r, err := s.Period(ctx, userID, year, month)
	if err != nil {
		return Analysis{}, err
	}

	rows, err := s.store.ListRange(ctx, ledger, r.Start, r.End)
	if err != nil {
		return Analysis{}, err
	}
	b := core.BreakdownByCategory(rows, s.today(), typ)
	if b.ByCategory == nil {
		b.ByCategory = []core.CategoryAmount{}
	}
	return Analysis{Period: r, Breakdown: b}, nil
}

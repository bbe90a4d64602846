package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/recurrence"
	"bilancio/internal/storage"
)

func TestTransactionService_CreateStandalone(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	in := expense("2026-03-02", "12.50", "  Spesa ", "Coop", true)
	res, err := env.tx.Create(ctx, alice, in)
	require.NoError(t, err)
	assert.NotZero(t, res.Transaction.ID)
	assert.Equal(t, 0, res.Planned)
	assert.Equal(t, "Spesa", res.Transaction.Category)

	got, err := env.tx.Get(ctx, alice, res.Transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, core.RoleStandalone, got.Role())
	requireMoney(t, "12.50", got.Amount)
	assert.True(t, got.Confirmed)
}

func TestTransactionService_CreateValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	t.Run("shared without group", func(t *testing.T) {
		in := expense("2026-03-02", "10", "Spesa", "Coop", true)
		in.Scope = core.Shared
		_, err := env.tx.Create(ctx, alice, in)
		assert.ErrorIs(t, err, core.ErrMissingGroup)
		assert.True(t, IsValidation(err))
	})

	t.Run("empty category", func(t *testing.T) {
		_, err := env.tx.Create(ctx, alice, expense("2026-03-02", "10", " ", "Coop", true))
		assert.ErrorIs(t, err, core.ErrEmptyCategory)
		assert.True(t, IsValidation(err))
	})

	t.Run("weekdays on monthly rule", func(t *testing.T) {
		in := expense("2026-03-02", "10", "Spesa", "Coop", true)
		in.Recurrence = &core.RecurrenceRule{
			Frequency:    core.Monthly,
			Confirmation: core.AutoConfirm,
			Weekdays:     core.MustWeekdaySet(1),
		}
		_, err := env.tx.Create(ctx, alice, in)
		assert.ErrorIs(t, err, core.ErrInvalidRule)
		assert.True(t, IsValidation(err))
	})
}

func TestTransactionService_CreateRecurring(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	in := expense("2026-01-15", "9.99", "Abbonamenti", "Netflix", true)
	in.Recurrence = monthly("2026-04-15", core.AutoConfirm)
	res, err := env.tx.Create(ctx, alice, in)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Planned)
	assert.Equal(t, 3, res.Occurrences)
	assert.Equal(t, core.RoleTemplate, res.Transaction.Role())

	templates, err := env.tx.Templates(ctx, alice, core.Personal)
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, res.Transaction.ID, templates[0].ID)

	h, err := env.tx.History(ctx, alice, HistoryQuery{Scope: core.Personal, Year: 2026, Month: 4})
	require.NoError(t, err)
	require.Len(t, h.Transactions, 1)
	occ := h.Transactions[0]
	assert.Equal(t, day("2026-04-15"), occ.Date)
	assert.Equal(t, core.RoleOccurrence, occ.Role())
	assert.Equal(t, res.Transaction.ID, *occ.RecurringParentID)
	assert.True(t, occ.Confirmed)
}

func TestTransactionService_CreateRecurringManualConfirmation(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	in := expense("2026-03-05", "20", "Abbonamenti", "Spotify", true)
	in.Recurrence = monthly("2026-05-05", core.ManualConfirm)
	res, err := env.tx.Create(ctx, alice, in)
	require.NoError(t, err)
	assert.False(t, res.Transaction.Confirmed)
	assert.Equal(t, 2, res.Occurrences)

	h, err := env.tx.History(ctx, alice, HistoryQuery{Scope: core.Personal, Year: 2026, Month: 5})
	require.NoError(t, err)
	require.Len(t, h.Transactions, 1)
	assert.False(t, h.Transactions[0].Confirmed)
}

func TestTransactionService_CreateRecurringWithoutOccurrences(t *testing.T) {
	tests := []struct {
		name     string
		date     string
		rule     *core.RecurrenceRule
		wantDate string
	}{
		{
			name:     "end before start",
			date:     "2026-01-15",
			rule:     monthly("2026-01-10", core.ManualConfirm),
			wantDate: "2026-01-15",
		},
		{
			name: "weekday moves start past end",
			date: "2025-01-01",
			rule: &core.RecurrenceRule{
				Frequency:    core.Weekly,
				EndDate:      func() *core.Date { d := day("2025-01-02"); return &d }(),
				Confirmation: core.ManualConfirm,
				Weekdays:     core.MustWeekdaySet(5),
			},
			wantDate: "2025-01-03",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			ctx := context.Background()

			in := expense(tt.date, "15", "Palestra", "FitClub", true)
			in.Recurrence = tt.rule
			res, err := env.tx.Create(ctx, alice, in)
			require.NoError(t, err)
			assert.Equal(t, 0, res.Planned)
			assert.Equal(t, 0, res.Occurrences)
			assert.False(t, res.Transaction.Confirmed)

			tpl, err := env.tx.Get(ctx, alice, res.Transaction.ID)
			require.NoError(t, err)
			assert.Equal(t, core.RoleTemplate, tpl.Role())
			assert.Equal(t, day(tt.wantDate), tpl.Date)
			assert.False(t, tpl.Confirmed)
		})
	}
}

func TestTransactionService_CreateKeepsTemplateWhenBatchFails(t *testing.T) {
	repo := newTestEnv(t, nil).repo
	store := failingBatchStore{repo}
	settings := NewSettingsService(repo, nil)
	svc := NewTransactionService(store, settings, nil, recurrence.New(), fixedClock("2026-03-15"))
	ctx := context.Background()

	in := expense("2026-01-15", "9.99", "Abbonamenti", "Netflix", true)
	in.Recurrence = monthly("2026-04-15", core.AutoConfirm)
	res, err := svc.Create(ctx, alice, in)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Planned)
	assert.Equal(t, 0, res.Occurrences)

	tpl, err := svc.Get(ctx, alice, res.Transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, core.RoleTemplate, tpl.Role())

	h, err := svc.History(ctx, alice, HistoryQuery{Scope: core.Personal, Year: 2026, Month: 2})
	require.NoError(t, err)
	assert.Empty(t, h.Transactions)
}

func TestTransactionService_Access(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	personal, err := env.tx.Create(ctx, alice, expense("2026-03-02", "10", "Spesa", "Coop", true))
	require.NoError(t, err)

	_, err = env.tx.Get(ctx, bob, personal.Transaction.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, env.tx.Delete(ctx, bob, personal.Transaction.ID), storage.ErrNotFound)

	require.NoError(t, env.repo.JoinGroup(ctx, alice, 1))
	require.NoError(t, env.repo.JoinGroup(ctx, bob, 1))
	in := expense("2026-03-03", "40", "Casa", "Ikea", true)
	in.Scope = core.Shared
	shared, err := env.tx.Create(ctx, alice, in)
	require.NoError(t, err)
	require.NotNil(t, shared.Transaction.GroupID)

	got, err := env.tx.Get(ctx, bob, shared.Transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, alice, got.UserID)

	_, err = env.tx.Get(ctx, alice, 9999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTransactionService_UpdateCascade(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	in := expense("2026-01-10", "100", "Casa", "Affitto", true)
	in.Recurrence = monthly("2026-06-10", core.AutoConfirm)
	tpl, err := env.tx.Create(ctx, alice, in)
	require.NoError(t, err)
	require.Equal(t, 5, tpl.Occurrences)

	march, err := env.tx.History(ctx, alice, HistoryQuery{Scope: core.Personal, Year: 2026, Month: 3})
	require.NoError(t, err)
	require.Len(t, march.Transactions, 1)

	amount := core.MustMoney("120")
	moved := day("2026-03-12")
	res, err := env.tx.Update(ctx, alice, march.Transactions[0].ID, UpdateInput{Amount: &amount, Date: &moved}, true)
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.Cascaded)
	assert.Equal(t, moved, res.Transaction.Date)

	for month, want := range map[int]string{2: "100", 3: "120", 4: "120", 6: "120"} {
		h, err := env.tx.History(ctx, alice, HistoryQuery{Scope: core.Personal, Year: 2026, Month: month})
		require.NoError(t, err)
		require.Len(t, h.Transactions, 1, "month %d", month)
		requireMoney(t, want, h.Transactions[0].Amount)
	}

	// Later occurrences keep their own dates.
	april, err := env.tx.History(ctx, alice, HistoryQuery{Scope: core.Personal, Year: 2026, Month: 4})
	require.NoError(t, err)
	assert.Equal(t, day("2026-04-10"), april.Transactions[0].Date)

	got, err := env.tx.Get(ctx, alice, tpl.Transaction.ID)
	require.NoError(t, err)
	requireMoney(t, "100", got.Amount)
}

func TestTransactionService_UpdateWithoutCascade(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	in := expense("2026-01-10", "100", "Casa", "Affitto", true)
	in.Recurrence = monthly("2026-03-10", core.AutoConfirm)
	tpl, err := env.tx.Create(ctx, alice, in)
	require.NoError(t, err)

	note := "  caparra  "
	res, err := env.tx.Update(ctx, alice, tpl.Transaction.ID, UpdateInput{Note: &note}, false)
	require.NoError(t, err)
	assert.Zero(t, res.Cascaded)
	assert.Equal(t, "caparra", res.Transaction.Note)

	feb, err := env.tx.History(ctx, alice, HistoryQuery{Scope: core.Personal, Year: 2026, Month: 2})
	require.NoError(t, err)
	require.Len(t, feb.Transactions, 1)
	assert.Empty(t, feb.Transactions[0].Note)
}

func TestTransactionService_UpdateTemplateDateMovesRule(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	in := expense("2026-01-10", "100", "Casa", "Affitto", true)
	in.Recurrence = monthly("2026-03-10", core.AutoConfirm)
	tpl, err := env.tx.Create(ctx, alice, in)
	require.NoError(t, err)

	moved := day("2026-01-12")
	_, err = env.tx.Update(ctx, alice, tpl.Transaction.ID, UpdateInput{Date: &moved}, false)
	require.NoError(t, err)

	got, err := env.tx.Get(ctx, alice, tpl.Transaction.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Rule)
	assert.Equal(t, moved, got.Rule.StartDate)
}

func TestTransactionService_ConfirmAndDelete(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("PublishTransactionEvent", mock.Anything, eventOf(amqp.EventCreated)).Return(nil).Once()
	pub.On("PublishTransactionEvent", mock.Anything, eventOf(amqp.EventConfirmed)).Return(nil).Once()
	pub.On("PublishTransactionEvent", mock.Anything, eventOf(amqp.EventDeleted)).Return(nil).Once()

	env := newTestEnv(t, pub)
	ctx := context.Background()

	res, err := env.tx.Create(ctx, alice, expense("2026-03-10", "50", "Bollette", "Enel", false))
	require.NoError(t, err)

	require.NoError(t, env.tx.Confirm(ctx, alice, res.Transaction.ID))
	got, err := env.tx.Get(ctx, alice, res.Transaction.ID)
	require.NoError(t, err)
	assert.True(t, got.Confirmed)

	require.NoError(t, env.tx.Delete(ctx, alice, res.Transaction.ID))
	_, err = env.tx.Get(ctx, alice, res.Transaction.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	pub.AssertExpectations(t)
}

func TestTransactionService_PublishFailureDoesNotFailRequest(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("PublishTransactionEvent", mock.Anything, mock.Anything).Return(errors.New("circuit breaker is open"))

	env := newTestEnv(t, pub)
	res, err := env.tx.Create(context.Background(), alice, expense("2026-03-10", "50", "Bollette", "Enel", true))
	require.NoError(t, err)
	assert.NotZero(t, res.Transaction.ID)
	pub.AssertNumberOfCalls(t, "PublishTransactionEvent", 1)
}

func TestTransactionService_DeleteSeries(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	in := expense("2026-01-05", "30", "Sport", "Palestra", true)
	in.Recurrence = monthly("2026-12-05", core.AutoConfirm)
	tpl, err := env.tx.Create(ctx, alice, in)
	require.NoError(t, err)
	require.Equal(t, 11, tpl.Occurrences)

	n, err := env.tx.DeleteSeries(ctx, alice, tpl.Transaction.ID, day("2026-06-01"))
	require.NoError(t, err)
	assert.EqualValues(t, 7, n)

	got, err := env.tx.Get(ctx, alice, tpl.Transaction.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Rule.EndDate)
	assert.Equal(t, day("2026-05-31"), *got.Rule.EndDate)

	may, err := env.tx.History(ctx, alice, HistoryQuery{Scope: core.Personal, Year: 2026, Month: 5})
	require.NoError(t, err)
	assert.Len(t, may.Transactions, 1)
	june, err := env.tx.History(ctx, alice, HistoryQuery{Scope: core.Personal, Year: 2026, Month: 6})
	require.NoError(t, err)
	assert.Empty(t, june.Transactions)

	n, err = env.tx.DeleteSeries(ctx, alice, tpl.Transaction.ID, day("2026-01-05"))
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)

	templates, err := env.tx.Templates(ctx, alice, core.Personal)
	require.NoError(t, err)
	assert.Empty(t, templates)
}

func TestTransactionService_DeleteSeriesRequiresTemplate(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	res, err := env.tx.Create(ctx, alice, expense("2026-03-10", "50", "Bollette", "Enel", true))
	require.NoError(t, err)

	_, err = env.tx.DeleteSeries(ctx, alice, res.Transaction.ID, day("2026-03-10"))
	assert.ErrorIs(t, err, ErrNotTemplate)
	assert.True(t, IsValidation(err))
}

func TestTransactionService_Labels(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	for _, in := range []CreateInput{
		expense("2026-03-01", "10", "Spesa", "Coop", true),
		expense("2026-03-02", "10", "Spesa", "Esselunga", true),
		expense("2026-03-03", "10", "Casa", "Ikea", true),
	} {
		_, err := env.tx.Create(ctx, alice, in)
		require.NoError(t, err)
	}

	cats, err := env.tx.Labels(ctx, alice, core.Personal, storage.CategoryColumn)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Casa", "Spesa"}, cats)

	others, err := env.tx.Labels(ctx, bob, core.Personal, storage.CounterpartyColumn)
	require.NoError(t, err)
	assert.Empty(t, others)
	assert.NotNil(t, others)
}

package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/recurrence"
	"bilancio/internal/storage"
)

var (
	alice = uuid.MustParse("0f8fad5b-d9cb-469f-a165-70867728950e")
	bob   = uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7")
)

func day(s string) core.Date {
	d, err := core.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func fixedClock(s string) Clock {
	d := day(s)
	return func() core.Date { return d }
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishTransactionEvent(ctx context.Context, ev *amqp.TransactionEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func eventOf(typ amqp.EventType) interface{} {
	return mock.MatchedBy(func(ev *amqp.TransactionEvent) bool { return ev.Type == typ })
}

// failingBatchStore loses every occurrence batch.
type failingBatchStore struct {
	*storage.SQLiteRepository
}

func (failingBatchStore) InsertOccurrences(context.Context, []core.Transaction) (int, error) {
	return 0, errors.New("disk I/O error")
}

type testEnv struct {
	repo     *storage.SQLiteRepository
	settings *SettingsService
	tx       *TransactionService
	stats    *StatsService
}

func newTestEnv(t *testing.T, publisher EventPublisher) *testEnv {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "bilancio.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	clock := fixedClock("2026-03-15")
	settings := NewSettingsService(repo, nil)
	return &testEnv{
		repo:     repo,
		settings: settings,
		tx:       NewTransactionService(repo, settings, publisher, recurrence.New(), clock),
		stats:    NewStatsService(repo, settings, clock),
	}
}

func expense(date, amount, category, counterparty string, confirmed bool) CreateInput {
	return CreateInput{
		Amount:       core.MustMoney(amount),
		Category:     category,
		Counterparty: counterparty,
		Date:         day(date),
		Kind:         core.Expense,
		Scope:        core.Personal,
		Confirmed:    confirmed,
	}
}

func monthly(end string, mode core.ConfirmationMode) *core.RecurrenceRule {
	e := day(end)
	return &core.RecurrenceRule{Frequency: core.Monthly, EndDate: &e, Confirmation: mode}
}

func requireMoney(t *testing.T, want string, got core.Money) {
	t.Helper()
	require.True(t, core.MustMoney(want).Equal(got), "want %s, got %s", want, got)
}

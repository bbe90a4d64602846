package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bilancio/internal/core"
)

var (
	alice = uuid.MustParse("0f8fad5b-d9cb-469f-a165-70867728950e")
	bob   = uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7")
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "bilancio.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func day(s string) core.Date {
	d, err := core.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func sharedTx(date, amount string, group int64) core.Transaction {
	return core.Transaction{
		UserID:       alice,
		GroupID:      &group,
		Amount:       core.MustMoney(amount),
		Category:     "Spesa",
		Counterparty: "Esselunga",
		Date:         day(date),
		Kind:         core.Expense,
		Scope:        core.Shared,
		Confirmed:    true,
	}
}

func TestNewSQLiteRepository_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bilancio.db")
	ctx := context.Background()

	repo, err := NewSQLiteRepository(path)
	require.NoError(t, err)
	assert.Equal(t, uint(1), repo.SchemaVersion())
	id, err := repo.InsertTransaction(ctx, sharedTx("2025-03-01", "10", 1))
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	repo, err = NewSQLiteRepository(path)
	require.NoError(t, err)
	defer repo.Close()
	assert.Equal(t, uint(1), repo.SchemaVersion(), "reopening must not reapply the schema")

	got, err := repo.GetTransaction(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "10.00", got.Amount.String())
}

func TestInsertAndGetTransaction(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	in := sharedTx("2025-03-14", "12.34", 3)
	in.Note = "settimana"
	id, err := repo.InsertTransaction(ctx, in)
	require.NoError(t, err)
	assert.Positive(t, id)

	got, err := repo.GetTransaction(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, alice, got.UserID)
	require.NotNil(t, got.GroupID)
	assert.Equal(t, int64(3), *got.GroupID)
	assert.Equal(t, int64(1234), got.Amount.Cents())
	assert.Equal(t, "Spesa", got.Category)
	assert.Equal(t, "Esselunga", got.Counterparty)
	assert.Equal(t, "settimana", got.Note)
	assert.Equal(t, day("2025-03-14"), got.Date)
	assert.Equal(t, core.Expense, got.Kind)
	assert.Equal(t, core.Shared, got.Scope)
	assert.True(t, got.Confirmed)
	assert.Nil(t, got.Rule)
	assert.Nil(t, got.DeletedAt)
	assert.False(t, got.CreatedAt.IsZero())
	assert.Equal(t, core.RoleStandalone, got.Role())
}

func TestGetTransaction_NotFound(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.GetTransaction(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTemplateRuleRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	end := day("2025-06-30")
	tpl := sharedTx("2025-01-03", "49.90", 1)
	tpl.Recurring = true
	tpl.IsRecurringParent = true
	tpl.Rule = &core.RecurrenceRule{
		Frequency:    core.Weekly,
		StartDate:    day("2025-01-03"),
		EndDate:      &end,
		Confirmation: core.ManualConfirm,
		Weekdays:     core.MustWeekdaySet(1, 5),
	}

	id, err := repo.InsertTransaction(ctx, tpl)
	require.NoError(t, err)

	got, err := repo.GetTransaction(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got.Rule)
	assert.Equal(t, *tpl.Rule.EndDate, *got.Rule.EndDate)
	assert.Equal(t, tpl.Rule.Weekdays, got.Rule.Weekdays)
	assert.Equal(t, core.ManualConfirm, got.Rule.Confirmation)
	assert.Equal(t, core.RoleTemplate, got.Role())
	assert.NoError(t, got.Validate())
}

func TestInsertOccurrences(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	tplID, err := repo.InsertTransaction(ctx, sharedTx("2025-01-10", "5", 1))
	require.NoError(t, err)

	var occ []core.Transaction
	for _, d := range []string{"2025-02-10", "2025-03-10", "2025-04-10"} {
		o := sharedTx(d, "5", 1)
		o.Recurring = true
		o.Confirmed = false
		o.RecurringParentID = &tplID
		occ = append(occ, o)
	}

	n, err := repo.InsertOccurrences(ctx, occ)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	all, err := repo.ListRange(ctx, Ledger{Scope: core.Shared, GroupID: 1}, day("2025-01-01"), day("2025-12-31"))
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, day("2025-04-10"), all[0].Date)
	assert.Equal(t, core.RoleOccurrence, all[0].Role())
	assert.Equal(t, tplID, *all[0].RecurringParentID)
	assert.False(t, all[0].Confirmed)
}

func TestInsertOccurrences_AllOrNothing(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	tplID, err := repo.InsertTransaction(ctx, sharedTx("2025-01-10", "5", 1))
	require.NoError(t, err)

	good := sharedTx("2025-02-10", "5", 1)
	good.RecurringParentID = &tplID
	bad := good
	bad.Date = day("2025-03-10")
	bad.Scope = "nowhere" // rejected by the CHECK constraint

	n, err := repo.InsertOccurrences(ctx, []core.Transaction{good, bad})
	require.Error(t, err)
	assert.Zero(t, n)

	all, err := repo.ListRange(ctx, Ledger{Scope: core.Shared, GroupID: 1}, day("2025-01-01"), day("2025-12-31"))
	require.NoError(t, err)
	assert.Len(t, all, 1, "only the template should remain")
}

func TestListRange_ScopesAndBounds(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, tx := range []core.Transaction{
		sharedTx("2025-01-19", "1", 1),
		sharedTx("2025-01-20", "2", 1),
		sharedTx("2025-02-19", "3", 1),
		sharedTx("2025-02-20", "4", 1),
		sharedTx("2025-02-01", "5", 2),
	} {
		_, err := repo.InsertTransaction(ctx, tx)
		require.NoError(t, err)
	}
	personal := core.Transaction{
		UserID: bob, Amount: core.MustMoney("6"), Category: "Svago", Counterparty: "Cinema",
		Date: day("2025-02-01"), Kind: core.Expense, Scope: core.Personal, Confirmed: true,
	}
	_, err := repo.InsertTransaction(ctx, personal)
	require.NoError(t, err)

	shared, err := repo.ListRange(ctx, Ledger{Scope: core.Shared, UserID: bob, GroupID: 1}, day("2025-01-20"), day("2025-02-19"))
	require.NoError(t, err)
	require.Len(t, shared, 2)
	assert.Equal(t, "3.00", shared[0].Amount.String())
	assert.Equal(t, "2.00", shared[1].Amount.String())

	mine, err := repo.ListRange(ctx, Ledger{Scope: core.Personal, UserID: bob}, day("2025-01-01"), day("2025-12-31"))
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Cinema", mine[0].Counterparty)

	theirs, err := repo.ListRange(ctx, Ledger{Scope: core.Personal, UserID: alice}, day("2025-01-01"), day("2025-12-31"))
	require.NoError(t, err)
	assert.Empty(t, theirs)

	_, err = repo.ListRange(ctx, Ledger{Scope: core.Shared, UserID: alice}, day("2025-01-01"), day("2025-12-31"))
	assert.ErrorIs(t, err, core.ErrMissingGroup)
}

func TestUpdateAndCascade(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	tplID, err := repo.InsertTransaction(ctx, sharedTx("2025-01-10", "5", 1))
	require.NoError(t, err)
	var occ []core.Transaction
	for _, d := range []string{"2025-02-10", "2025-03-10", "2025-04-10"} {
		o := sharedTx(d, "5", 1)
		o.RecurringParentID = &tplID
		occ = append(occ, o)
	}
	_, err = repo.InsertOccurrences(ctx, occ)
	require.NoError(t, err)

	rows, err := repo.ListRange(ctx, Ledger{Scope: core.Shared, GroupID: 1}, day("2025-03-10"), day("2025-03-10"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	march := rows[0]

	march.Amount = core.MustMoney("7.50")
	march.Category = "Casa"
	march.Date = day("2025-03-12")
	require.NoError(t, repo.UpdateTransaction(ctx, march))

	n, err := repo.UpdateSeriesFrom(ctx, tplID, day("2025-03-10"), march)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "only April follows")

	all, err := repo.ListRange(ctx, Ledger{Scope: core.Shared, GroupID: 1}, day("2025-01-01"), day("2025-12-31"))
	require.NoError(t, err)
	byDate := map[string]core.Transaction{}
	for _, tx := range all {
		byDate[tx.Date.String()] = tx
	}
	assert.Equal(t, "5.00", byDate["2025-01-10"].Amount.String())
	assert.Equal(t, "5.00", byDate["2025-02-10"].Amount.String())
	assert.Equal(t, "7.50", byDate["2025-03-12"].Amount.String())
	assert.Equal(t, "7.50", byDate["2025-04-10"].Amount.String())
	assert.Equal(t, "Casa", byDate["2025-04-10"].Category)

	missing := march
	missing.ID = 999
	assert.ErrorIs(t, repo.UpdateTransaction(ctx, missing), ErrNotFound)
}

func TestConfirmAndSoftDelete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	tx := sharedTx("2025-05-05", "20", 1)
	tx.Confirmed = false
	id, err := repo.InsertTransaction(ctx, tx)
	require.NoError(t, err)

	require.NoError(t, repo.Confirm(ctx, id))
	require.NoError(t, repo.Confirm(ctx, id))
	got, err := repo.GetTransaction(ctx, id)
	require.NoError(t, err)
	assert.True(t, got.Confirmed)

	require.NoError(t, repo.SoftDelete(ctx, id))
	_, err = repo.GetTransaction(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.SoftDelete(ctx, id), ErrNotFound)
	assert.ErrorIs(t, repo.Confirm(ctx, id), ErrNotFound)
}

func TestSoftDeleteSeriesFrom(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	tpl := sharedTx("2025-01-10", "5", 1)
	tpl.Recurring = true
	tpl.IsRecurringParent = true
	tpl.Rule = &core.RecurrenceRule{Frequency: core.Monthly, StartDate: tpl.Date, Confirmation: core.AutoConfirm}
	tplID, err := repo.InsertTransaction(ctx, tpl)
	require.NoError(t, err)
	var occ []core.Transaction
	for _, d := range []string{"2025-02-10", "2025-03-10", "2025-04-10"} {
		o := sharedTx(d, "5", 1)
		o.RecurringParentID = &tplID
		occ = append(occ, o)
	}
	_, err = repo.InsertOccurrences(ctx, occ)
	require.NoError(t, err)

	n, err := repo.SoftDeleteSeriesFrom(ctx, tplID, day("2025-03-01"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	templates, err := repo.ListTemplates(ctx, Ledger{Scope: core.Shared, GroupID: 1})
	require.NoError(t, err)
	require.Len(t, templates, 1)

	end := day("2025-02-28")
	rule := *templates[0].Rule
	rule.EndDate = &end
	require.NoError(t, repo.SaveRule(ctx, tplID, rule))

	got, err := repo.GetTransaction(ctx, tplID)
	require.NoError(t, err)
	assert.Equal(t, end, *got.Rule.EndDate)

	n, err = repo.SoftDeleteSeriesFrom(ctx, tplID, day("2025-01-01"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	templates, err = repo.ListTemplates(ctx, Ledger{Scope: core.Shared, GroupID: 1})
	require.NoError(t, err)
	assert.Empty(t, templates)
}

func TestLabels(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a := sharedTx("2025-01-01", "1", 1)
	b := sharedTx("2025-01-02", "1", 1)
	b.Category = "Casa"
	b.Counterparty = "Ikea"
	c := sharedTx("2025-01-03", "1", 1)
	for _, tx := range []core.Transaction{a, b, c} {
		_, err := repo.InsertTransaction(ctx, tx)
		require.NoError(t, err)
	}

	l := Ledger{Scope: core.Shared, GroupID: 1}
	cats, err := repo.Labels(ctx, l, CategoryColumn)
	require.NoError(t, err)
	assert.Equal(t, []string{"Casa", "Spesa"}, cats)

	shops, err := repo.Labels(ctx, l, CounterpartyColumn)
	require.NoError(t, err)
	assert.Equal(t, []string{"Esselunga", "Ikea"}, shops)

	_, err = repo.Labels(ctx, l, LabelColumn("note; DROP TABLE transactions"))
	assert.Error(t, err)
}

func TestSettingsRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.GetSettings(ctx, alice)
	assert.ErrorIs(t, err, ErrNotFound)

	s := core.DefaultUserSettings()
	s.CustomPeriodActive = true
	s.CustomPeriodStartDay = 27
	s.DarkMode = true
	require.NoError(t, repo.SaveSettings(ctx, alice, s))

	got, err := repo.GetSettings(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, s, got)

	s.NotificationTime = "08:00"
	require.NoError(t, repo.SaveSettings(ctx, alice, s))
	got, err = repo.GetSettings(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "08:00", got.NotificationTime)
}

func TestGroups(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.GroupForUser(ctx, bob)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.JoinGroup(ctx, bob, 12))
	id, err := repo.GroupForUser(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)
}

func TestSoftDeleteStampsTime(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	fixed := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }

	id, err := repo.InsertTransaction(ctx, sharedTx("2025-06-01", "3", 1))
	require.NoError(t, err)
	require.NoError(t, repo.SoftDelete(ctx, id))

	row := repo.db.QueryRowContext(ctx, "SELECT deleted_at, created_at FROM transactions WHERE id = ?", id)
	var deletedAt, createdAt string
	require.NoError(t, row.Scan(&deletedAt, &createdAt))
	assert.Equal(t, fixed.Format(timestampLayout), deletedAt)
	assert.Equal(t, fixed.Format(timestampLayout), createdAt)
}

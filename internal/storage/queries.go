package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds the SQL statements used by the repository.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const transactionColumns = `id, user_id, group_id, scope, kind, amount_cents, category, counterparty, note,
	date, recurring, confirmed, is_recurring_parent, recurring_parent_id, recurring_config, deleted_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransactionRow(s rowScanner) (TransactionRow, error) {
	var r TransactionRow
	err := s.Scan(
		&r.ID, &r.UserID, &r.GroupID, &r.Scope, &r.Kind, &r.AmountCents, &r.Category, &r.Counterparty, &r.Note,
		&r.Date, &r.Recurring, &r.Confirmed, &r.IsRecurringParent, &r.RecurringParentID, &r.RecurringConfig,
		&r.DeletedAt, &r.CreatedAt,
	)
	return r, err
}

func (q *Queries) listTransactions(ctx context.Context, query string, args ...any) ([]TransactionRow, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []TransactionRow
	for rows.Next() {
		r, err := scanTransactionRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	return items, rows.Err()
}

const createTransaction = `INSERT INTO transactions (
	user_id, group_id, scope, kind, amount_cents, category, counterparty, note,
	date, recurring, confirmed, is_recurring_parent, recurring_parent_id, recurring_config, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

type CreateTransactionParams struct {
	UserID            string
	GroupID           sql.NullInt64
	Scope             string
	Kind              string
	AmountCents       int64
	Category          string
	Counterparty      string
	Note              string
	Date              string
	Recurring         bool
	Confirmed         bool
	IsRecurringParent bool
	RecurringParentID sql.NullInt64
	RecurringConfig   sql.NullString
	CreatedAt         string
}

func (p CreateTransactionParams) args() []any {
	return []any{
		p.UserID, p.GroupID, p.Scope, p.Kind, p.AmountCents, p.Category, p.Counterparty, p.Note,
		p.Date, p.Recurring, p.Confirmed, p.IsRecurringParent, p.RecurringParentID, p.RecurringConfig, p.CreatedAt,
	}
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, createTransaction, arg.args()...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// CreateTransactions inserts every row with a single prepared statement.
// Run it inside a transaction to make the batch atomic.
func (q *Queries) CreateTransactions(ctx context.Context, args []CreateTransactionParams) (int, error) {
	stmt, err := q.db.PrepareContext(ctx, createTransaction)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for i, arg := range args {
		if _, err := stmt.ExecContext(ctx, arg.args()...); err != nil {
			return i, fmt.Errorf("row %d: %w", i, err)
		}
	}
	return len(args), nil
}

const getTransaction = `SELECT ` + transactionColumns + ` FROM transactions WHERE id = ? AND deleted_at IS NULL`

func (q *Queries) GetTransaction(ctx context.Context, id int64) (TransactionRow, error) {
	return scanTransactionRow(q.db.QueryRowContext(ctx, getTransaction, id))
}

const listSharedRange = `SELECT ` + transactionColumns + ` FROM transactions
WHERE scope = 'shared' AND group_id = ? AND date BETWEEN ? AND ? AND deleted_at IS NULL
ORDER BY date DESC, id DESC`

func (q *Queries) ListSharedRange(ctx context.Context, groupID int64, start, end string) ([]TransactionRow, error) {
	return q.listTransactions(ctx, listSharedRange, groupID, start, end)
}

const listPersonalRange = `SELECT ` + transactionColumns + ` FROM transactions
WHERE scope = 'personal' AND user_id = ? AND date BETWEEN ? AND ? AND deleted_at IS NULL
ORDER BY date DESC, id DESC`

func (q *Queries) ListPersonalRange(ctx context.Context, userID, start, end string) ([]TransactionRow, error) {
	return q.listTransactions(ctx, listPersonalRange, userID, start, end)
}

const listSharedTemplates = `SELECT ` + transactionColumns + ` FROM transactions
WHERE scope = 'shared' AND group_id = ? AND is_recurring_parent = 1 AND deleted_at IS NULL
ORDER BY id DESC`

func (q *Queries) ListSharedTemplates(ctx context.Context, groupID int64) ([]TransactionRow, error) {
	return q.listTransactions(ctx, listSharedTemplates, groupID)
}

const listPersonalTemplates = `SELECT ` + transactionColumns + ` FROM transactions
WHERE scope = 'personal' AND user_id = ? AND is_recurring_parent = 1 AND deleted_at IS NULL
ORDER BY id DESC`

func (q *Queries) ListPersonalTemplates(ctx context.Context, userID string) ([]TransactionRow, error) {
	return q.listTransactions(ctx, listPersonalTemplates, userID)
}

const updateTransaction = `UPDATE transactions
SET amount_cents = ?, category = ?, counterparty = ?, note = ?, date = ?, kind = ?, confirmed = ?
WHERE id = ? AND deleted_at IS NULL`

type UpdateTransactionParams struct {
	ID           int64
	AmountCents  int64
	Category     string
	Counterparty string
	Note         string
	Date         string
	Kind         string
	Confirmed    bool
}

func (q *Queries) UpdateTransaction(ctx context.Context, arg UpdateTransactionParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateTransaction,
		arg.AmountCents, arg.Category, arg.Counterparty, arg.Note, arg.Date, arg.Kind, arg.Confirmed, arg.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const updateSeriesFrom = `UPDATE transactions
SET amount_cents = ?, category = ?, counterparty = ?, note = ?, kind = ?
WHERE recurring_parent_id = ? AND date >= ? AND id <> ? AND deleted_at IS NULL`

type UpdateSeriesFromParams struct {
	ParentID     int64
	FromDate     string
	ExcludeID    int64
	AmountCents  int64
	Category     string
	Counterparty string
	Note         string
	Kind         string
}

func (q *Queries) UpdateSeriesFrom(ctx context.Context, arg UpdateSeriesFromParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateSeriesFrom,
		arg.AmountCents, arg.Category, arg.Counterparty, arg.Note, arg.Kind, arg.ParentID, arg.FromDate, arg.ExcludeID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const updateRecurringConfig = `UPDATE transactions SET recurring_config = ?
WHERE id = ? AND is_recurring_parent = 1 AND deleted_at IS NULL`

func (q *Queries) UpdateRecurringConfig(ctx context.Context, id int64, config string) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateRecurringConfig, config, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const confirmTransaction = `UPDATE transactions SET confirmed = 1 WHERE id = ? AND deleted_at IS NULL`

func (q *Queries) ConfirmTransaction(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, confirmTransaction, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const softDeleteTransaction = `UPDATE transactions SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`

func (q *Queries) SoftDeleteTransaction(ctx context.Context, id int64, at string) (int64, error) {
	res, err := q.db.ExecContext(ctx, softDeleteTransaction, at, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const softDeleteSeriesFrom = `UPDATE transactions SET deleted_at = ?
WHERE (id = ? OR recurring_parent_id = ?) AND date >= ? AND deleted_at IS NULL`

func (q *Queries) SoftDeleteSeriesFrom(ctx context.Context, templateID int64, from, at string) (int64, error) {
	res, err := q.db.ExecContext(ctx, softDeleteSeriesFrom, at, templateID, templateID, from)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listSharedLabels = `SELECT DISTINCT %[1]s FROM transactions
WHERE scope = 'shared' AND group_id = ? AND deleted_at IS NULL AND %[1]s <> ''
ORDER BY %[1]s`

const listPersonalLabels = `SELECT DISTINCT %[1]s FROM transactions
WHERE scope = 'personal' AND user_id = ? AND deleted_at IS NULL AND %[1]s <> ''
ORDER BY %[1]s`

// LabelColumn names a free-text column that can be listed distinctly.
type LabelColumn string

const (
	CategoryColumn     LabelColumn = "category"
	CounterpartyColumn LabelColumn = "counterparty"
)

func (q *Queries) listLabels(ctx context.Context, query string, col LabelColumn, owner any) ([]string, error) {
	if col != CategoryColumn && col != CounterpartyColumn {
		return nil, fmt.Errorf("unsupported label column %q", col)
	}
	rows, err := q.db.QueryContext(ctx, fmt.Sprintf(query, col), owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	return items, rows.Err()
}

func (q *Queries) ListSharedLabels(ctx context.Context, col LabelColumn, groupID int64) ([]string, error) {
	return q.listLabels(ctx, listSharedLabels, col, groupID)
}

func (q *Queries) ListPersonalLabels(ctx context.Context, col LabelColumn, userID string) ([]string, error) {
	return q.listLabels(ctx, listPersonalLabels, col, userID)
}

const getSettings = `SELECT user_id, custom_period_active, custom_period_start_day, notifications_enabled,
	notification_time, dark_mode, del_confirm, updated_at
FROM user_settings WHERE user_id = ?`

func (q *Queries) GetSettings(ctx context.Context, userID string) (SettingsRow, error) {
	var r SettingsRow
	err := q.db.QueryRowContext(ctx, getSettings, userID).Scan(
		&r.UserID, &r.CustomPeriodActive, &r.CustomPeriodStartDay, &r.NotificationsEnabled,
		&r.NotificationTime, &r.DarkMode, &r.DelConfirm, &r.UpdatedAt,
	)
	return r, err
}

const upsertSettings = `INSERT INTO user_settings (
	user_id, custom_period_active, custom_period_start_day, notifications_enabled,
	notification_time, dark_mode, del_confirm, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET
	custom_period_active = excluded.custom_period_active,
	custom_period_start_day = excluded.custom_period_start_day,
	notifications_enabled = excluded.notifications_enabled,
	notification_time = excluded.notification_time,
	dark_mode = excluded.dark_mode,
	del_confirm = excluded.del_confirm,
	updated_at = excluded.updated_at`

func (q *Queries) UpsertSettings(ctx context.Context, r SettingsRow) error {
	_, err := q.db.ExecContext(ctx, upsertSettings,
		r.UserID, r.CustomPeriodActive, r.CustomPeriodStartDay, r.NotificationsEnabled,
		r.NotificationTime, r.DarkMode, r.DelConfirm, r.UpdatedAt)
	return err
}

const getUserGroup = `SELECT group_id FROM user_groups WHERE user_id = ?`

func (q *Queries) GetUserGroup(ctx context.Context, userID string) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, getUserGroup, userID).Scan(&id)
	return id, err
}

const setUserGroup = `INSERT INTO user_groups (user_id, group_id) VALUES (?, ?)
ON CONFLICT (user_id) DO UPDATE SET group_id = excluded.group_id`

func (q *Queries) SetUserGroup(ctx context.Context, userID string, groupID int64) error {
	_, err := q.db.ExecContext(ctx, setUserGroup, userID, groupID)
	return err
}

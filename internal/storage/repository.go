package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"bilancio/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a row does not exist or was soft-deleted.
var ErrNotFound = errors.New("not found")

const timestampLayout = time.RFC3339Nano

// Ledger selects the rows a user can see: the group's shared rows or the
// user's own personal rows.
type Ledger struct {
	Scope   core.Scope
	UserID  uuid.UUID
	GroupID int64
}

func (l Ledger) validate() error {
	switch l.Scope {
	case core.Shared:
		if l.GroupID <= 0 {
			return core.ErrMissingGroup
		}
	case core.Personal:
	default:
		return core.ErrInvalidScope
	}
	return nil
}

// Owns reports whether t belongs to the ledger.
func (l Ledger) Owns(t core.Transaction) bool {
	if t.Scope != l.Scope {
		return false
	}
	if l.Scope == core.Shared {
		return t.GroupID != nil && *t.GroupID == l.GroupID
	}
	return t.UserID == l.UserID
}

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
	schema  uint
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := migrateSchema(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", dbPath, err)
	}
	slog.Info("Ledger database ready", "path", dbPath, "schema_version", version)

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
		schema:  version,
	}, nil
}

// SchemaVersion is the migration version the database was opened at.
func (r *SQLiteRepository) SchemaVersion() uint {
	return r.schema
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// InsertTransaction stores a standalone transaction or a template and
// returns its ID.
func (r *SQLiteRepository) InsertTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	params, err := r.createParams(t)
	if err != nil {
		return 0, err
	}
	id, err := r.queries.CreateTransaction(ctx, params)
	if err != nil {
		return 0, fmt.Errorf("create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", id,
		"scope", t.Scope,
		"kind", t.Kind,
		"amount_cents", params.AmountCents,
		"date", params.Date,
		"recurring_parent", t.IsRecurringParent)

	return id, nil
}

// InsertOccurrences stores a batch of generated occurrences atomically. On
// failure nothing from the batch is kept.
func (r *SQLiteRepository) InsertOccurrences(ctx context.Context, occ []core.Transaction) (int, error) {
	if len(occ) == 0 {
		return 0, nil
	}

	params := make([]CreateTransactionParams, len(occ))
	for i, t := range occ {
		if t.RecurringParentID == nil {
			return 0, fmt.Errorf("occurrence %d has no template", i)
		}
		p, err := r.createParams(t)
		if err != nil {
			return 0, err
		}
		params[i] = p
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin occurrences batch: %w", err)
	}
	defer tx.Rollback()

	n, err := r.queries.WithTx(tx).CreateTransactions(ctx, params)
	if err != nil {
		return 0, fmt.Errorf("insert occurrences: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit occurrences batch: %w", err)
	}

	slog.InfoContext(ctx, "Occurrences saved to SQLite",
		"template_id", *occ[0].RecurringParentID,
		"count", n,
		"first_date", params[0].Date,
		"last_date", params[n-1].Date)

	return n, nil
}

// GetTransaction returns an active transaction by ID.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row, err := r.queries.GetTransaction(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction by id: %w", err)
	}
	return row.toCore()
}

// ListRange returns the ledger's active transactions dated within
// [start, end], newest first.
func (r *SQLiteRepository) ListRange(ctx context.Context, l Ledger, start, end core.Date) ([]core.Transaction, error) {
	if err := l.validate(); err != nil {
		return nil, err
	}

	var rows []TransactionRow
	var err error
	if l.Scope == core.Shared {
		rows, err = r.queries.ListSharedRange(ctx, l.GroupID, start.String(), end.String())
	} else {
		rows, err = r.queries.ListPersonalRange(ctx, l.UserID.String(), start.String(), end.String())
	}
	if err != nil {
		return nil, fmt.Errorf("list %s transactions %s..%s: %w", l.Scope, start, end, err)
	}
	return rowsToCore(rows)
}

// ListTemplates returns the ledger's active recurrence templates, most
// recently created first.
func (r *SQLiteRepository) ListTemplates(ctx context.Context, l Ledger) ([]core.Transaction, error) {
	if err := l.validate(); err != nil {
		return nil, err
	}

	var rows []TransactionRow
	var err error
	if l.Scope == core.Shared {
		rows, err = r.queries.ListSharedTemplates(ctx, l.GroupID)
	} else {
		rows, err = r.queries.ListPersonalTemplates(ctx, l.UserID.String())
	}
	if err != nil {
		return nil, fmt.Errorf("list %s templates: %w", l.Scope, err)
	}
	return rowsToCore(rows)
}

// UpdateTransaction writes the editable fields of t. A template's rule is
// saved in the same SQL transaction.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()
	q := r.queries.WithTx(tx)

	n, err := q.UpdateTransaction(ctx, UpdateTransactionParams{
		ID:           t.ID,
		AmountCents:  t.Amount.Cents(),
		Category:     t.Category,
		Counterparty: t.Counterparty,
		Note:         t.Note,
		Date:         t.Date.String(),
		Kind:         string(t.Kind),
		Confirmed:    t.Confirmed,
	})
	if err != nil {
		return fmt.Errorf("update transaction %d: %w", t.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %d: %w", t.ID, ErrNotFound)
	}

	if t.Rule != nil {
		cfg, err := json.Marshal(t.Rule)
		if err != nil {
			return fmt.Errorf("encode recurrence rule: %w", err)
		}
		if _, err := q.UpdateRecurringConfig(ctx, t.ID, string(cfg)); err != nil {
			return fmt.Errorf("update recurrence rule %d: %w", t.ID, err)
		}
	}

	return tx.Commit()
}

// UpdateSeriesFrom copies t's amount, labels, note and kind onto every
// active occurrence of the template dated on or after from, except t
// itself. Dates are never propagated.
func (r *SQLiteRepository) UpdateSeriesFrom(ctx context.Context, templateID int64, from core.Date, t core.Transaction) (int64, error) {
	n, err := r.queries.UpdateSeriesFrom(ctx, UpdateSeriesFromParams{
		ParentID:     templateID,
		FromDate:     from.String(),
		ExcludeID:    t.ID,
		AmountCents:  t.Amount.Cents(),
		Category:     t.Category,
		Counterparty: t.Counterparty,
		Note:         t.Note,
		Kind:         string(t.Kind),
	})
	if err != nil {
		return 0, fmt.Errorf("update series %d from %s: %w", templateID, from, err)
	}

	slog.InfoContext(ctx, "Series occurrences updated",
		"template_id", templateID,
		"from", from.String(),
		"updated", n)

	return n, nil
}

// SaveRule replaces a template's recurrence rule.
func (r *SQLiteRepository) SaveRule(ctx context.Context, templateID int64, rule core.RecurrenceRule) error {
	cfg, err := json.Marshal(rule)
	if err != nil {
		return fmt.Errorf("encode recurrence rule: %w", err)
	}
	n, err := r.queries.UpdateRecurringConfig(ctx, templateID, string(cfg))
	if err != nil {
		return fmt.Errorf("update recurrence rule %d: %w", templateID, err)
	}
	if n == 0 {
		return fmt.Errorf("template %d: %w", templateID, ErrNotFound)
	}
	return nil
}

// Confirm marks a transaction as confirmed. Confirming twice is not an error.
func (r *SQLiteRepository) Confirm(ctx context.Context, id int64) error {
	n, err := r.queries.ConfirmTransaction(ctx, id)
	if err != nil {
		return fmt.Errorf("confirm transaction %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %d: %w", id, ErrNotFound)
	}

	slog.InfoContext(ctx, "Transaction confirmed", "id", id)
	return nil
}

// SoftDelete stamps deleted_at on a single transaction.
func (r *SQLiteRepository) SoftDelete(ctx context.Context, id int64) error {
	n, err := r.queries.SoftDeleteTransaction(ctx, id, r.now().UTC().Format(timestampLayout))
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %d: %w", id, ErrNotFound)
	}

	slog.InfoContext(ctx, "Transaction soft-deleted", "id", id)
	return nil
}

// SoftDeleteSeriesFrom soft-deletes the template and its occurrences dated
// on or after from and returns how many rows were affected.
func (r *SQLiteRepository) SoftDeleteSeriesFrom(ctx context.Context, templateID int64, from core.Date) (int64, error) {
	n, err := r.queries.SoftDeleteSeriesFrom(ctx, templateID, from.String(), r.now().UTC().Format(timestampLayout))
	if err != nil {
		return 0, fmt.Errorf("delete series %d from %s: %w", templateID, from, err)
	}

	slog.InfoContext(ctx, "Series soft-deleted",
		"template_id", templateID,
		"from", from.String(),
		"deleted", n)

	return n, nil
}

// Labels returns the distinct non-empty values of col in the ledger.
func (r *SQLiteRepository) Labels(ctx context.Context, l Ledger, col LabelColumn) ([]string, error) {
	if err := l.validate(); err != nil {
		return nil, err
	}

	var labels []string
	var err error
	if l.Scope == core.Shared {
		labels, err = r.queries.ListSharedLabels(ctx, col, l.GroupID)
	} else {
		labels, err = r.queries.ListPersonalLabels(ctx, col, l.UserID.String())
	}
	if err != nil {
		return nil, fmt.Errorf("list %s %s labels: %w", l.Scope, col, err)
	}
	return labels, nil
}

// GetSettings returns the stored settings or ErrNotFound.
func (r *SQLiteRepository) GetSettings(ctx context.Context, userID uuid.UUID) (core.UserSettings, error) {
	row, err := r.queries.GetSettings(ctx, userID.String())
	if errors.Is(err, sql.ErrNoRows) {
		return core.UserSettings{}, fmt.Errorf("settings for %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return core.UserSettings{}, fmt.Errorf("get settings: %w", err)
	}
	return core.UserSettings{
		CustomPeriodActive:   row.CustomPeriodActive,
		CustomPeriodStartDay: int(row.CustomPeriodStartDay),
		NotificationsEnabled: row.NotificationsEnabled,
		NotificationTime:     row.NotificationTime,
		DarkMode:             row.DarkMode,
		DeleteConfirm:        row.DelConfirm,
	}, nil
}

func (r *SQLiteRepository) SaveSettings(ctx context.Context, userID uuid.UUID, s core.UserSettings) error {
	err := r.queries.UpsertSettings(ctx, SettingsRow{
		UserID:               userID.String(),
		CustomPeriodActive:   s.CustomPeriodActive,
		CustomPeriodStartDay: int64(s.CustomPeriodStartDay),
		NotificationsEnabled: s.NotificationsEnabled,
		NotificationTime:     s.NotificationTime,
		DarkMode:             s.DarkMode,
		DelConfirm:           s.DeleteConfirm,
		UpdatedAt:            r.now().UTC().Format(timestampLayout),
	})
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// GroupForUser returns the user's group or ErrNotFound.
func (r *SQLiteRepository) GroupForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	id, err := r.queries.GetUserGroup(ctx, userID.String())
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("group for %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("get user group: %w", err)
	}
	return id, nil
}

// JoinGroup records the user's group membership.
func (r *SQLiteRepository) JoinGroup(ctx context.Context, userID uuid.UUID, groupID int64) error {
	if err := r.queries.SetUserGroup(ctx, userID.String(), groupID); err != nil {
		return fmt.Errorf("set user group: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) createParams(t core.Transaction) (CreateTransactionParams, error) {
	p := CreateTransactionParams{
		UserID:            t.UserID.String(),
		Scope:             string(t.Scope),
		Kind:              string(t.Kind),
		AmountCents:       t.Amount.Cents(),
		Category:          t.Category,
		Counterparty:      t.Counterparty,
		Note:              t.Note,
		Date:              t.Date.String(),
		Recurring:         t.Recurring,
		Confirmed:         t.Confirmed,
		IsRecurringParent: t.IsRecurringParent,
		CreatedAt:         r.now().UTC().Format(timestampLayout),
	}
	if t.GroupID != nil {
		p.GroupID = sql.NullInt64{Int64: *t.GroupID, Valid: true}
	}
	if t.RecurringParentID != nil {
		p.RecurringParentID = sql.NullInt64{Int64: *t.RecurringParentID, Valid: true}
	}
	if t.Rule != nil {
		cfg, err := json.Marshal(t.Rule)
		if err != nil {
			return p, fmt.Errorf("encode recurrence rule: %w", err)
		}
		p.RecurringConfig = sql.NullString{String: string(cfg), Valid: true}
	}
	return p, nil
}

func (row TransactionRow) toCore() (core.Transaction, error) {
	userID, err := uuid.Parse(row.UserID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d: parse user id: %w", row.ID, err)
	}
	date, err := core.ParseDate(row.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d: parse date: %w", row.ID, err)
	}

	t := core.Transaction{
		ID:                row.ID,
		UserID:            userID,
		Amount:            core.NewMoneyFromCents(row.AmountCents),
		Category:          row.Category,
		Counterparty:      row.Counterparty,
		Note:              row.Note,
		Date:              date,
		Kind:              core.Kind(row.Kind),
		Scope:             core.Scope(row.Scope),
		Recurring:         row.Recurring,
		Confirmed:         row.Confirmed,
		IsRecurringParent: row.IsRecurringParent,
	}
	if row.GroupID.Valid {
		id := row.GroupID.Int64
		t.GroupID = &id
	}
	if row.RecurringParentID.Valid {
		id := row.RecurringParentID.Int64
		t.RecurringParentID = &id
	}
	if row.RecurringConfig.Valid {
		var rule core.RecurrenceRule
		if err := json.Unmarshal([]byte(row.RecurringConfig.String), &rule); err != nil {
			return core.Transaction{}, fmt.Errorf("transaction %d: decode recurrence rule: %w", row.ID, err)
		}
		t.Rule = &rule
	}
	if row.DeletedAt.Valid {
		at, err := time.Parse(timestampLayout, row.DeletedAt.String)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("transaction %d: parse deleted_at: %w", row.ID, err)
		}
		t.DeletedAt = &at
	}
	if t.CreatedAt, err = time.Parse(timestampLayout, row.CreatedAt); err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d: parse created_at: %w", row.ID, err)
	}
	return t, nil
}

func rowsToCore(rows []TransactionRow) ([]core.Transaction, error) {
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		t, err := row.toCore()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

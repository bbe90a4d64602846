package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/storage"
)

var (
	ErrInvalidPeriod    = errors.New("month must be between 1 and 12")
	ErrInvalidFilter    = errors.New("unknown status filter")
	ErrInvalidBreakdown = errors.New("unknown breakdown type")
	ErrNotTemplate      = errors.New("transaction is not a recurrence template")
)

var validationErrors = []error{
	core.ErrInvalidAmount,
	core.ErrInvalidDate,
	core.ErrEmptyCategory,
	core.ErrEmptyCounterparty,
	core.ErrLabelTooLong,
	core.ErrNoteTooLong,
	core.ErrInvalidKind,
	core.ErrInvalidScope,
	core.ErrInvalidRole,
	core.ErrInvalidRule,
	core.ErrMissingGroup,
	core.ErrInvalidStartDay,
	core.ErrInvalidNotificationTime,
	ErrInvalidPeriod,
	ErrInvalidFilter,
	ErrInvalidBreakdown,
	ErrNotTemplate,
}

// IsValidation reports whether err was caused by bad input rather than a
// failing dependency.
func IsValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// GroupLookup resolves the group a user belongs to.
type GroupLookup interface {
	GroupForUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

// TransactionStore is the persistence the transaction and stats services
// need. *storage.SQLiteRepository implements it.
type TransactionStore interface {
	GroupLookup
	InsertTransaction(ctx context.Context, t core.Transaction) (int64, error)
	InsertOccurrences(ctx context.Context, occ []core.Transaction) (int, error)
	GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
	ListRange(ctx context.Context, l storage.Ledger, start, end core.Date) ([]core.Transaction, error)
	ListTemplates(ctx context.Context, l storage.Ledger) ([]core.Transaction, error)
	UpdateTransaction(ctx context.Context, t core.Transaction) error
	UpdateSeriesFrom(ctx context.Context, templateID int64, from core.Date, t core.Transaction) (int64, error)
	SaveRule(ctx context.Context, templateID int64, rule core.RecurrenceRule) error
	Confirm(ctx context.Context, id int64) error
	SoftDelete(ctx context.Context, id int64) error
	SoftDeleteSeriesFrom(ctx context.Context, templateID int64, from core.Date) (int64, error)
	Labels(ctx context.Context, l storage.Ledger, col storage.LabelColumn) ([]string, error)
}

// SettingsProvider returns the effective settings of a user.
type SettingsProvider interface {
	Get(ctx context.Context, userID uuid.UUID) (core.UserSettings, error)
}

// EventPublisher sends transaction events. *amqp.Client implements it.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, ev *amqp.TransactionEvent) error
}

// Clock returns the current calendar day.
type Clock func() core.Date

// SystemClock reads the wall clock in loc.
func SystemClock(loc *time.Location) Clock {
	return func() core.Date { return core.Today(loc) }
}

func resolveLedger(ctx context.Context, groups GroupLookup, userID uuid.UUID, scope core.Scope) (storage.Ledger, error) {
	l := storage.Ledger{Scope: scope, UserID: userID}
	switch scope {
	case core.Personal:
		return l, nil
	case core.Shared:
		id, err := groups.GroupForUser(ctx, userID)
		if errors.Is(err, storage.ErrNotFound) {
			return l, core.ErrMissingGroup
		}
		if err != nil {
			return l, fmt.Errorf("resolve group: %w", err)
		}
		l.GroupID = id
		return l, nil
	}
	return l, core.ErrInvalidScope
}

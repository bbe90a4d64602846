package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	Expense Kind = "expense"
	Income  Kind = "income"

	Shared   Scope = "shared"
	Personal Scope = "personal"

	Daily      Frequency = "daily"
	Weekly     Frequency = "weekly"
	Monthly    Frequency = "monthly"
	Bimonthly  Frequency = "bimonthly"
	Quarterly  Frequency = "quarterly"
	Semiannual Frequency = "semiannual"
	Annual     Frequency = "annual"

	// AutoConfirm pre-confirms every generated occurrence.
	AutoConfirm ConfirmationMode = "auto"
	// ManualConfirm leaves the template and its occurrences unconfirmed.
	ManualConfirm ConfirmationMode = "manual"

	RoleStandalone Role = "standalone"
	RoleTemplate   Role = "template"
	RoleOccurrence Role = "occurrence"
)

const (
	maxLabelLength = 100
	maxNoteLength  = 500
)

type (
	Kind             string
	Scope            string
	Frequency        string
	ConfirmationMode string
	Role             string

	// RecurrenceRule is attached only to a template transaction. Weekdays
	// are meaningful only under the weekly frequency.
	RecurrenceRule struct {
		Frequency    Frequency        `json:"frequency"`
		StartDate    Date             `json:"start_date"`
		EndDate      *Date            `json:"end_date,omitempty"` // nil means open-ended
		Confirmation ConfirmationMode `json:"confirmation"`
		Weekdays     WeekdaySet       `json:"weekdays,omitempty"`
	}

	// Transaction is a single income or expense. It is either standalone,
	// a recurrence template (first occurrence plus rule) or a generated
	// occurrence pointing at its template.
	Transaction struct {
		ID                int64
		UserID            uuid.UUID
		GroupID           *int64
		Amount            Money
		Category          string
		Counterparty      string
		Note              string
		Date              Date
		Kind              Kind
		Scope             Scope
		Recurring         bool
		Confirmed         bool
		DeletedAt         *time.Time
		IsRecurringParent bool
		RecurringParentID *int64
		Rule              *RecurrenceRule
		CreatedAt         time.Time
	}
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidDate         = errors.New("invalid date")
	ErrEmptyCategory       = errors.New("empty category")
	ErrEmptyCounterparty   = errors.New("empty counterparty")
	ErrLabelTooLong        = errors.New("label too long (max 100 characters)")
	ErrNoteTooLong         = errors.New("note too long (max 500 characters)")
	ErrInvalidKind         = errors.New("invalid transaction kind")
	ErrInvalidScope        = errors.New("invalid scope")
	ErrInvalidRole         = errors.New("transaction must be exactly one of standalone, template or occurrence")
	ErrInvalidRule         = errors.New("invalid recurrence rule")
	ErrInvalidFrequency    = fmt.Errorf("%w: unknown frequency", ErrInvalidRule)
	ErrInvalidConfirmation = fmt.Errorf("%w: unknown confirmation mode", ErrInvalidRule)
	ErrEndBeforeStart      = fmt.Errorf("%w: end date before start date", ErrInvalidRule)
	ErrWeekdaysNotWeekly   = fmt.Errorf("%w: weekdays require weekly frequency", ErrInvalidRule)
	ErrRuleStartMismatch   = fmt.Errorf("%w: start date differs from template date", ErrInvalidRule)
	ErrMissingGroup        = errors.New("shared transactions require a group")
)

// Frequencies lists every supported frequency in ascending period length.
func Frequencies() []Frequency {
	return []Frequency{Daily, Weekly, Monthly, Bimonthly, Quarterly, Semiannual, Annual}
}

func (f Frequency) IsValid() bool {
	switch f {
	case Daily, Weekly, Monthly, Bimonthly, Quarterly, Semiannual, Annual:
		return true
	}
	return false
}

func (k Kind) IsValid() bool {
	return k == Expense || k == Income
}

func (s Scope) IsValid() bool {
	return s == Shared || s == Personal
}

func (c ConfirmationMode) IsValid() bool {
	return c == AutoConfirm || c == ManualConfirm
}

// HasEnd reports whether the rule has an explicit end date.
func (r RecurrenceRule) HasEnd() bool {
	return r.EndDate != nil
}

// SelectedWeekdays returns the weekday filter, or an empty set when the
// frequency is not weekly.
func (r RecurrenceRule) SelectedWeekdays() WeekdaySet {
	if r.Frequency != Weekly {
		return 0
	}
	return r.Weekdays
}

func (r RecurrenceRule) Validate() error {
	if !r.Frequency.IsValid() {
		return ErrInvalidFrequency
	}
	if !r.StartDate.IsValid() {
		return fmt.Errorf("%w: start date", ErrInvalidDate)
	}
	if r.HasEnd() && !r.EndDate.IsValid() {
		return fmt.Errorf("%w: end date", ErrInvalidDate)
	}
	if !r.Confirmation.IsValid() {
		return ErrInvalidConfirmation
	}
	if r.Frequency != Weekly && !r.Weekdays.IsEmpty() {
		return ErrWeekdaysNotWeekly
	}
	// Checked last so callers can tolerate it and still trust the rest.
	if r.HasEnd() && r.EndDate.Before(r.StartDate) {
		return ErrEndBeforeStart
	}
	return nil
}

// Role classifies the transaction. Inconsistent linkage (both a rule and a
// parent, or a parent flag without a rule) yields an empty role.
func (t Transaction) Role() Role {
	switch {
	case t.IsRecurringParent && t.Rule != nil && t.RecurringParentID == nil:
		return RoleTemplate
	case !t.IsRecurringParent && t.Rule == nil && t.RecurringParentID != nil:
		return RoleOccurrence
	case !t.IsRecurringParent && t.Rule == nil && t.RecurringParentID == nil:
		return RoleStandalone
	}
	return ""
}

// IsActive reports whether the transaction has not been soft-deleted.
func (t Transaction) IsActive() bool {
	return t.DeletedAt == nil
}

// Signed returns the amount with expenses negative.
func (t Transaction) Signed() Money {
	if t.Kind == Expense {
		return t.Amount.Neg()
	}
	return t.Amount
}

func (t Transaction) Validate() error {
	if !t.Date.IsValid() {
		return ErrInvalidDate
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if err := validateLabel(t.Category, ErrEmptyCategory); err != nil {
		return err
	}
	if err := validateLabel(t.Counterparty, ErrEmptyCounterparty); err != nil {
		return err
	}
	if len(t.Note) > maxNoteLength {
		return ErrNoteTooLong
	}
	if !t.Kind.IsValid() {
		return ErrInvalidKind
	}
	if !t.Scope.IsValid() {
		return ErrInvalidScope
	}

	switch t.Role() {
	case RoleTemplate:
		// A rule that ends before it starts is a template with no occurrences.
		if err := t.Rule.Validate(); err != nil && !errors.Is(err, ErrEndBeforeStart) {
			return err
		}
		if t.Rule.StartDate != t.Date {
			return ErrRuleStartMismatch
		}
	case RoleOccurrence, RoleStandalone:
	default:
		return ErrInvalidRole
	}
	return nil
}

func validateLabel(s string, empty error) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return empty
	}
	if len(s) > maxLabelLength {
		return ErrLabelTooLong
	}
	return nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/recurrence"
	"bilancio/internal/storage"
)

// TransactionService runs the create, edit, confirm and delete flows and
// the history view.
type TransactionService struct {
	store     TransactionStore
	settings  SettingsProvider
	publisher EventPublisher
	expander  recurrence.Expander
	today     Clock
}

func NewTransactionService(store TransactionStore, settings SettingsProvider, publisher EventPublisher, expander recurrence.Expander, today Clock) *TransactionService {
	return &TransactionService{
		store:     store,
		settings:  settings,
		publisher: publisher,
		expander:  expander,
		today:     today,
	}
}

// CreateInput is a new transaction as entered by the user.
type CreateInput struct {
	Amount       core.Money
	Category     string
	Counterparty string
	Note         string
	Date         core.Date
	Kind         core.Kind
	Scope        core.Scope
	Confirmed    bool
	Recurrence   *core.RecurrenceRule
}

// CreateResult reports what was written. For a recurring transaction
// Planned is the number of generated occurrences and Occurrences the number
// actually stored; they differ only when the batch insert failed.
type CreateResult struct {
	Transaction core.Transaction
	Planned     int
	Occurrences int
}

// Create stores a transaction. A recurring one is stored as a template
// followed by a batch of occurrences; when the batch fails the template is
// kept and the failure is logged.
func (s *TransactionService) Create(ctx context.Context, userID uuid.UUID, in CreateInput) (CreateResult, error) {
	ledger, err := resolveLedger(ctx, s.store, userID, in.Scope)
	if err != nil {
		return CreateResult{}, err
	}

	t := core.Transaction{
		UserID:       userID,
		Amount:       in.Amount,
		Category:     strings.TrimSpace(in.Category),
		Counterparty: strings.TrimSpace(in.Counterparty),
		Note:         strings.TrimSpace(in.Note),
		Date:         in.Date,
		Kind:         in.Kind,
		Scope:        in.Scope,
		Confirmed:    in.Confirmed,
	}
	if in.Scope == core.Shared {
		gid := ledger.GroupID
		t.GroupID = &gid
	}

	if in.Recurrence == nil {
		if err := t.Validate(); err != nil {
			return CreateResult{}, err
		}
		id, err := s.store.InsertTransaction(ctx, t)
		if err != nil {
			return CreateResult{}, fmt.Errorf("save transaction: %w", err)
		}
		t.ID = id
		s.publish(ctx, amqp.EventCreated, t, 0)
		return CreateResult{Transaction: t}, nil
	}

	series, err := s.expander.Plan(t, *in.Recurrence)
	if err != nil {
		return CreateResult{}, err
	}
	if err := series.Template.Validate(); err != nil {
		return CreateResult{}, err
	}

	id, err := s.store.InsertTransaction(ctx, series.Template)
	if err != nil {
		return CreateResult{}, fmt.Errorf("save template: %w", err)
	}
	if err := series.Bind(id); err != nil {
		return CreateResult{}, err
	}

	res := CreateResult{Transaction: series.Template, Planned: len(series.Occurrences)}
	if n, err := s.store.InsertOccurrences(ctx, series.Occurrences); err != nil {
		slog.ErrorContext(ctx, "Failed to save recurring occurrences, keeping template",
			"template_id", id,
			"planned", res.Planned,
			"error", err)
	} else {
		res.Occurrences = n
	}

	s.publish(ctx, amqp.EventCreated, res.Transaction, res.Occurrences)
	return res, nil
}

// Get returns a transaction visible to the user.
func (s *TransactionService) Get(ctx context.Context, userID uuid.UUID, id int64) (core.Transaction, error) {
	t, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	ledger, err := resolveLedger(ctx, s.store, userID, t.Scope)
	if err != nil && !errors.Is(err, core.ErrMissingGroup) {
		return core.Transaction{}, err
	}
	if err != nil || !ledger.Owns(t) {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, storage.ErrNotFound)
	}
	return t, nil
}

// UpdateInput holds the editable fields. Nil fields are left unchanged.
type UpdateInput struct {
	Amount       *core.Money
	Category     *string
	Counterparty *string
	Note         *string
	Date         *core.Date
	Kind         *core.Kind
	Confirmed    *bool
}

// UpdateResult is the edited transaction and how many later occurrences
// followed the edit.
type UpdateResult struct {
	Transaction core.Transaction
	Cascaded    int64
}

// Update edits a transaction. With cascade, the new amount, labels, note and
// kind are copied onto every later occurrence of the same series, counted
// from the transaction's date before the edit. Dates never cascade.
func (s *TransactionService) Update(ctx context.Context, userID uuid.UUID, id int64, in UpdateInput, cascade bool) (UpdateResult, error) {
	t, err := s.Get(ctx, userID, id)
	if err != nil {
		return UpdateResult{}, err
	}
	from := t.Date

	if in.Amount != nil {
		t.Amount = *in.Amount
	}
	if in.Category != nil {
		t.Category = strings.TrimSpace(*in.Category)
	}
	if in.Counterparty != nil {
		t.Counterparty = strings.TrimSpace(*in.Counterparty)
	}
	if in.Note != nil {
		t.Note = strings.TrimSpace(*in.Note)
	}
	if in.Kind != nil {
		t.Kind = *in.Kind
	}
	if in.Confirmed != nil {
		t.Confirmed = *in.Confirmed
	}
	if in.Date != nil {
		t.Date = *in.Date
		if t.Rule != nil {
			rule := *t.Rule
			rule.StartDate = t.Date
			t.Rule = &rule
		}
	}

	if err := t.Validate(); err != nil {
		return UpdateResult{}, err
	}
	if err := s.store.UpdateTransaction(ctx, t); err != nil {
		return UpdateResult{}, err
	}

	res := UpdateResult{Transaction: t}
	if cascade {
		var templateID int64
		switch t.Role() {
		case core.RoleTemplate:
			templateID = t.ID
		case core.RoleOccurrence:
			templateID = *t.RecurringParentID
		}
		if templateID != 0 {
			n, err := s.store.UpdateSeriesFrom(ctx, templateID, from, t)
			if err != nil {
				return res, err
			}
			res.Cascaded = n
		}
	}

	s.publish(ctx, amqp.EventUpdated, t, int(res.Cascaded))
	return res, nil
}

// Confirm marks a transaction as confirmed.
func (s *TransactionService) Confirm(ctx context.Context, userID uuid.UUID, id int64) error {
	t, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.store.Confirm(ctx, id); err != nil {
		return err
	}
	t.Confirmed = true
	s.publish(ctx, amqp.EventConfirmed, t, 0)
	return nil
}

// Delete soft-deletes a single transaction.
func (s *TransactionService) Delete(ctx context.Context, userID uuid.UUID, id int64) error {
	t, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.store.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, amqp.EventDeleted, t, 0)
	return nil
}

// DeleteSeries soft-deletes a template's series from the given day on.
// When the template itself survives, its rule is ended the day before.
func (s *TransactionService) DeleteSeries(ctx context.Context, userID uuid.UUID, templateID int64, from core.Date) (int64, error) {
	t, err := s.Get(ctx, userID, templateID)
	if err != nil {
		return 0, err
	}
	if t.Role() != core.RoleTemplate {
		return 0, fmt.Errorf("transaction %d: %w", templateID, ErrNotTemplate)
	}
	if !from.IsValid() {
		return 0, core.ErrInvalidDate
	}

	n, err := s.store.SoftDeleteSeriesFrom(ctx, templateID, from)
	if err != nil {
		return 0, err
	}

	if from.After(t.Date) {
		end := from.AddDays(-1)
		if t.Rule.EndDate == nil || t.Rule.EndDate.After(end) {
			rule := *t.Rule
			rule.EndDate = &end
			if err := s.store.SaveRule(ctx, templateID, rule); err != nil {
				return n, err
			}
		}
	}

	s.publish(ctx, amqp.EventDeleted, t, int(n))
	return n, nil
}

// Templates lists the active recurrence templates of a ledger.
func (s *TransactionService) Templates(ctx context.Context, userID uuid.UUID, scope core.Scope) ([]core.Transaction, error) {
	ledger, err := resolveLedger(ctx, s.store, userID, scope)
	if err != nil {
		return nil, err
	}
	return s.store.ListTemplates(ctx, ledger)
}

// Labels lists the distinct categories or counterparties of a ledger.
func (s *TransactionService) Labels(ctx context.Context, userID uuid.UUID, scope core.Scope, col storage.LabelColumn) ([]string, error) {
	ledger, err := resolveLedger(ctx, s.store, userID, scope)
	if err != nil {
		return nil, err
	}
	labels, err := s.store.Labels(ctx, ledger, col)
	if err != nil {
		return nil, err
	}
	if labels == nil {
		labels = []string{}
	}
	return labels, nil
}

func (s *TransactionService) publish(ctx context.Context, typ amqp.EventType, t core.Transaction, occurrences int) {
	if s.publisher == nil {
		return
	}
	ev := amqp.NewTransactionEvent(typ, t.ID, string(t.Scope), occurrences)
	if err := s.publisher.PublishTransactionEvent(ctx, ev); err != nil {
		// The write already succeeded; the event is best effort.
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"type", typ,
			"id", t.ID,
			"error", err)
	}
}

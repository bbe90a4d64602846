package http

import (
	"strings"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/period"
	"bilancio/internal/services"
)

// amountInput accepts an amount as a JSON number or string, with either
// decimal separator.
type amountInput string

func (a *amountInput) UnmarshalJSON(b []byte) error {
	*a = amountInput(strings.Trim(string(b), `"`))
	return nil
}

func (a amountInput) parse() (core.Money, error) {
	return core.ParseAmount(string(a))
}

type createTransactionRequest struct {
	Amount       amountInput          `json:"amount"`
	Category     string               `json:"category"`
	Counterparty string               `json:"counterparty"`
	Note         string               `json:"note"`
	Date         core.Date            `json:"date"`
	Kind         core.Kind            `json:"type"`
	Scope        core.Scope           `json:"scope"`
	Confirmed    *bool                `json:"confirmed"`
	Recurrence   *core.RecurrenceRule `json:"recurrence"`
}

func (req createTransactionRequest) toInput() (services.CreateInput, error) {
	amount, err := req.Amount.parse()
	if err != nil {
		return services.CreateInput{}, err
	}
	confirmed := true
	if req.Confirmed != nil {
		confirmed = *req.Confirmed
	}
	return services.CreateInput{
		Amount:       amount,
		Category:     req.Category,
		Counterparty: req.Counterparty,
		Note:         req.Note,
		Date:         req.Date,
		Kind:         req.Kind,
		Scope:        req.Scope,
		Confirmed:    confirmed,
		Recurrence:   req.Recurrence,
	}, nil
}

type updateTransactionRequest struct {
	Amount       *amountInput `json:"amount"`
	Category     *string      `json:"category"`
	Counterparty *string      `json:"counterparty"`
	Note         *string      `json:"note"`
	Date         *core.Date   `json:"date"`
	Kind         *core.Kind   `json:"type"`
	Confirmed    *bool        `json:"confirmed"`
}

func (req updateTransactionRequest) toInput() (services.UpdateInput, error) {
	in := services.UpdateInput{
		Category:     req.Category,
		Counterparty: req.Counterparty,
		Note:         req.Note,
		Date:         req.Date,
		Kind:         req.Kind,
		Confirmed:    req.Confirmed,
	}
	if req.Amount != nil {
		amount, err := req.Amount.parse()
		if err != nil {
			return services.UpdateInput{}, err
		}
		in.Amount = &amount
	}
	return in, nil
}

type transactionResponse struct {
	ID                int64                `json:"id"`
	UserID            string               `json:"user_id"`
	GroupID           *int64               `json:"group_id,omitempty"`
	Amount            core.Money           `json:"amount"`
	Category          string               `json:"category"`
	Counterparty      string               `json:"counterparty"`
	Note              string               `json:"note,omitempty"`
	Date              core.Date            `json:"date"`
	Kind              core.Kind            `json:"type"`
	Scope             core.Scope           `json:"scope"`
	Role              core.Role            `json:"role"`
	Recurring         bool                 `json:"recurring"`
	Confirmed         bool                 `json:"confirmed"`
	RecurringParentID *int64               `json:"recurring_parent_id,omitempty"`
	Recurrence        *core.RecurrenceRule `json:"recurrence,omitempty"`
	CreatedAt         *time.Time           `json:"created_at,omitempty"`
}

func toResponse(t core.Transaction) transactionResponse {
	resp := transactionResponse{
		ID:                t.ID,
		UserID:            t.UserID.String(),
		GroupID:           t.GroupID,
		Amount:            t.Amount,
		Category:          t.Category,
		Counterparty:      t.Counterparty,
		Note:              t.Note,
		Date:              t.Date,
		Kind:              t.Kind,
		Scope:             t.Scope,
		Role:              t.Role(),
		Recurring:         t.Recurring,
		Confirmed:         t.Confirmed,
		RecurringParentID: t.RecurringParentID,
		Recurrence:        t.Rule,
	}
	if !t.CreatedAt.IsZero() {
		created := t.CreatedAt
		resp.CreatedAt = &created
	}
	return resp
}

func toResponses(txs []core.Transaction) []transactionResponse {
	out := make([]transactionResponse, len(txs))
	for i, t := range txs {
		out[i] = toResponse(t)
	}
	return out
}

type createTransactionResponse struct {
	Transaction transactionResponse `json:"transaction"`
	Planned     int                 `json:"planned_occurrences"`
	Occurrences int                 `json:"saved_occurrences"`
}

type updateTransactionResponse struct {
	Transaction transactionResponse `json:"transaction"`
	Cascaded    int64               `json:"cascaded"`
}

type historyResponse struct {
	Period       period.Range          `json:"period"`
	Transactions []transactionResponse `json:"transactions"`
	Total        core.Money            `json:"total"`
}

type dashboardResponse struct {
	Period       period.Range          `json:"period"`
	Today        core.Date             `json:"today"`
	Summary      core.PeriodSummary    `json:"summary"`
	Pending      []transactionResponse `json:"pending"`
	ActiveSeries int                   `json:"active_series"`
}

type deleteSeriesResponse struct {
	Deleted int64 `json:"deleted"`
}

package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/services"
	"bilancio/internal/storage"
)

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, month, err := monthParams(q)
	if err != nil {
		badRequest(w, r, "year and month must be numbers")
		return
	}

	h, err := s.deps.Transactions.History(r.Context(), userFrom(r.Context()), services.HistoryQuery{
		Scope:  scopeParam(q),
		Year:   year,
		Month:  month,
		Filter: services.StatusFilter(strings.TrimSpace(q.Get("filter"))),
		Search: q.Get("q"),
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, historyResponse{
		Period:       h.Period,
		Transactions: toResponses(h.Transactions),
		Total:        h.Total,
	})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, "invalid JSON body")
		return
	}
	in, err := req.toInput()
	if err != nil {
		handleError(w, r, err)
		return
	}
	if core.IsZeroDate(in.Date) {
		in.Date = s.today()
	}
	if in.Scope == "" {
		in.Scope = core.Shared
	}

	res, err := s.deps.Transactions.Create(r.Context(), userFrom(r.Context()), in)
	if err != nil {
		handleError(w, r, err)
		return
	}

	logger := log.FromContext(r.Context())
	if res.Occurrences < res.Planned {
		logger.Warn("Recurring transaction saved without all occurrences",
			log.FieldTransactionID, res.Transaction.ID,
			"planned", res.Planned,
			log.FieldOccurrences, res.Occurrences)
	}
	writeJSON(w, r, http.StatusCreated, createTransactionResponse{
		Transaction: toResponse(res.Transaction),
		Planned:     res.Planned,
		Occurrences: res.Occurrences,
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		badRequest(w, r, "invalid transaction id")
		return
	}
	t, err := s.deps.Transactions.Get(r.Context(), userFrom(r.Context()), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toResponse(t))
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		badRequest(w, r, "invalid transaction id")
		return
	}
	cascade, _ := strconv.ParseBool(r.URL.Query().Get("cascade"))

	var req updateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, "invalid JSON body")
		return
	}
	in, err := req.toInput()
	if err != nil {
		handleError(w, r, err)
		return
	}

	res, err := s.deps.Transactions.Update(r.Context(), userFrom(r.Context()), id, in, cascade)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, updateTransactionResponse{
		Transaction: toResponse(res.Transaction),
		Cascaded:    res.Cascaded,
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		badRequest(w, r, "invalid transaction id")
		return
	}
	if err := s.deps.Transactions.Delete(r.Context(), userFrom(r.Context()), id); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		badRequest(w, r, "invalid transaction id")
		return
	}
	if err := s.deps.Transactions.Confirm(r.Context(), userFrom(r.Context()), id); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.deps.Transactions.Templates(r.Context(), userFrom(r.Context()), scopeParam(r.URL.Query()))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toResponses(templates))
}

// handleDeleteSeries removes a series from the "from" date on, today when
// omitted.
func (s *Server) handleDeleteSeries(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		badRequest(w, r, "invalid transaction id")
		return
	}

	from := s.today()
	if v := strings.TrimSpace(r.URL.Query().Get("from")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			badRequest(w, r, "from must be YYYY-MM-DD")
			return
		}
		from = d
	}

	n, err := s.deps.Transactions.DeleteSeries(r.Context(), userFrom(r.Context()), id, from)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, deleteSeriesResponse{Deleted: n})
}

func (s *Server) handleLabels(col storage.LabelColumn) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		labels, err := s.deps.Transactions.Labels(r.Context(), userFrom(r.Context()), scopeParam(r.URL.Query()), col)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, labels)
	}
}

func (s *Server) today() core.Date {
	if s.deps.Today != nil {
		return s.deps.Today()
	}
	return core.Today(time.Local)
}

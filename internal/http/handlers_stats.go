package http

import (
	"net/http"
	"strings"

	"bilancio/internal/core"
)

func (s *Server) handlePeriod(w http.ResponseWriter, r *http.Request) {
	year, month, err := monthParams(r.URL.Query())
	if err != nil {
		badRequest(w, r, "year and month must be numbers")
		return
	}
	p, err := s.deps.Stats.Period(r.Context(), userFrom(r.Context()), year, month)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, p)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, month, err := monthParams(q)
	if err != nil {
		badRequest(w, r, "year and month must be numbers")
		return
	}
	d, err := s.deps.Stats.Dashboard(r.Context(), userFrom(r.Context()), scopeParam(q), year, month)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dashboardResponse{
		Period:       d.Period,
		Today:        d.Today,
		Summary:      d.Summary,
		Pending:      toResponses(d.Pending),
		ActiveSeries: d.ActiveSeries,
	})
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, month, err := monthParams(q)
	if err != nil {
		badRequest(w, r, "year and month must be numbers")
		return
	}
	typ := core.BreakdownType(strings.ToLower(strings.TrimSpace(q.Get("type"))))
	a, err := s.deps.Stats.Analysis(r.Context(), userFrom(r.Context()), scopeParam(q), year, month, typ)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, a)
}

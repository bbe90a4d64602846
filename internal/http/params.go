package http

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"bilancio/internal/core"
)

// monthParams reads optional year and month. Both absent means the current
// period; a year without a valid month is rejected by the services.
func monthParams(q url.Values) (year, month int, err error) {
	if v := strings.TrimSpace(q.Get("year")); v != "" {
		if year, err = strconv.Atoi(v); err != nil {
			return 0, 0, err
		}
	}
	if v := strings.TrimSpace(q.Get("month")); v != "" {
		if month, err = strconv.Atoi(v); err != nil {
			return 0, 0, err
		}
	}
	if year == 0 && month != 0 {
		return 0, 0, strconv.ErrSyntax
	}
	return year, month, nil
}

// scopeParam defaults to the shared ledger.
func scopeParam(q url.Values) core.Scope {
	if v := strings.TrimSpace(q.Get("scope")); v != "" {
		return core.Scope(strings.ToLower(v))
	}
	return core.Shared
}

func idParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

package http

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.deps.Settings.Get(r.Context(), userFrom(r.Context()))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, settings)
}

// handleUpdateSettings applies the body over the current settings, so
// omitted fields keep their values.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r.Context())
	current, err := s.deps.Settings.Get(r.Context(), userID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if err := json.NewDecoder(r.Body).Decode(&current); err != nil {
		badRequest(w, r, "invalid JSON body")
		return
	}

	saved, err := s.deps.Settings.Update(r.Context(), userID, current)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, saved)
}

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"bilancio/internal/log"
	"bilancio/internal/services"
	"bilancio/internal/storage"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.FromContext(r.Context()).Error("Failed to encode response", log.FieldError, err, log.FieldStatusCode, status)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, r, status, errorResponse{Code: code, Message: message})
}

// handleError maps service errors to status codes. Internal details are
// logged, never returned.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	logger := log.FromContext(r.Context())

	switch {
	case services.IsValidation(err):
		logger.Warn("Invalid request", log.FieldError, err)
		writeError(w, r, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, storage.ErrNotFound):
		logger.Warn("Resource not found", log.FieldError, err)
		writeError(w, r, http.StatusNotFound, "not_found", "resource not found")
	default:
		logger.Error("Request failed", log.FieldError, err)
		writeError(w, r, http.StatusInternalServerError, "internal_error", "an error occurred")
	}
}

func badRequest(w http.ResponseWriter, r *http.Request, message string) {
	writeError(w, r, http.StatusBadRequest, "invalid_input", message)
}

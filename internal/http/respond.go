package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/spice-admin/customer-app-sub000/internal/domain"
	"github.com/spice-admin/customer-app-sub000/internal/logger"
)

// Envelope is the body of every successful response.
type Envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type ErrorEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(Envelope{Success: true, Data: data}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorEnvelope{Error: message, Code: code}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// respondServiceError is the single place where service errors become status codes.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		status int
		code   string
	)
	switch {
	case errors.Is(err, domain.ErrValidation):
		status, code = http.StatusBadRequest, "validation_error"
	case errors.Is(err, domain.ErrAuthenticationRequired):
		status, code = http.StatusUnauthorized, "authentication_required"
	case errors.Is(err, domain.ErrForbidden):
		status, code = http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrPaymentNotConfirmed):
		status, code = http.StatusUnprocessableEntity, "payment_not_confirmed"
	case errors.Is(err, domain.ErrMissingLinkageMetadata):
		status, code = http.StatusUnprocessableEntity, "missing_linkage_metadata"
	case errors.Is(err, domain.ErrLineItemMismatch):
		status, code = http.StatusUnprocessableEntity, "line_item_mismatch"
	case errors.Is(err, domain.ErrVerificationFailed):
		status, code = http.StatusUnprocessableEntity, "verification_failed"
	case errors.Is(err, domain.ErrInsufficientScheduleCoverage):
		status, code = http.StatusConflict, "insufficient_schedule_coverage"
	case errors.Is(err, domain.ErrNoAvailableStartDate):
		status, code = http.StatusConflict, "no_available_start_date"
	case errors.Is(err, domain.ErrInvalidDuration):
		status, code = http.StatusConflict, "invalid_duration"
	case errors.Is(err, domain.ErrRateLimited):
		status, code = http.StatusTooManyRequests, "rate_limit_exceeded"
	case errors.Is(err, domain.ErrRemoteService):
		status, code = http.StatusBadGateway, "remote_service_error"
	default:
		status, code = http.StatusInternalServerError, "internal_error"
	}

	log := logger.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	} else {
		log.Info("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}

	message := err.Error()
	switch status {
	case http.StatusInternalServerError:
		message = "internal server error"
	case http.StatusBadGateway:
		message = "a remote service is unavailable, please try again"
	}
	respondError(w, status, code, message)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(w, http.StatusRequestEntityTooLarge, "request_too_large", "request body too large")
			return false
		}
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/openhab/openhab-addons-sub192/internal/bridges/nobo"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest      = "bad_request"
	ErrCodeNotFound        = "not_found"
	ErrCodeInternal        = "internal_error"
	ErrCodeValidation      = "validation_error"
	ErrCodeHubUnavailable  = "hub_unavailable"
	ErrCodeHubTimeout      = "hub_timeout"
	ErrCodeCommandRejected = "command_rejected"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeCommandError maps a bridge Execute error to an HTTP response.
func writeCommandError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, nobo.ErrInvalidCommand),
		errors.Is(err, nobo.ErrInvalidParameter),
		errors.Is(err, nobo.ErrInvalidData):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, nobo.ErrNotFound):
		writeNotFound(w, err.Error())
	case errors.Is(err, nobo.ErrNotConnected), errors.Is(err, nobo.ErrConnectionFailed):
		writeError(w, http.StatusServiceUnavailable, ErrCodeHubUnavailable, "hub is not connected")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, nobo.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, ErrCodeHubTimeout, "hub did not accept the command in time")
	default:
		writeError(w, http.StatusBadGateway, ErrCodeCommandRejected, err.Error())
	}
}

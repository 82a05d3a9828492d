package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nvqhuy/homewatt/internal/billing"
	"github.com/nvqhuy/homewatt/internal/engine"
	"github.com/nvqhuy/homewatt/internal/settings"
	"github.com/nvqhuy/homewatt/internal/threshold"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeUnreachable = "backend_unreachable"
	ErrCodeTimeout     = "timeout"
	ErrCodeInternal    = "internal_error"
	ErrCodeValidation  = "validation_error"
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

// writeCommandError maps engine and config errors to HTTP statuses.
//
// Unknown devices are 404s; a backend that cannot confirm a command is
// a 502 so clients can distinguish "you asked wrong" from "the wire is
// down"; validation failures are 400s.
func writeCommandError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrUnknownDevice):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, engine.ErrTimeout):
		writeError(w, http.StatusBadGateway, ErrCodeTimeout, err.Error())
	case errors.Is(err, engine.ErrBackendUnreachable):
		writeError(w, http.StatusBadGateway, ErrCodeUnreachable, err.Error())
	case errors.Is(err, billing.ErrInvalidInput),
		errors.Is(err, billing.ErrInvalidConfig),
		errors.Is(err, threshold.ErrInvalidConfig):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, settings.ErrPersist):
		// The config was validated and applied; only the write to disk
		// failed. Report it without pretending the update vanished.
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

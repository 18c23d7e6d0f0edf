package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/weddingcue-core/internal/timeline"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeUnauthorized   = "unauthorised"
	ErrCodeForbidden      = "forbidden"
	ErrCodeConflict       = "conflict"
	ErrCodeInternal       = "internal_error"
	ErrCodeValidation     = "validation_error"
	ErrCodeMethodNotAllow = "method_not_allowed"
)

// Timeline error codes.
const (
	ErrCodeInvalidTransition = "invalid_transition"
	ErrCodeConflictingTimer  = "conflicting_duration_timer"
	ErrCodeAlreadyRunning    = "already_running"
	ErrCodeNoTimers          = "no_timers_configured"
	ErrCodeNotPunctual       = "not_punctual_or_manual"
	ErrCodeNotDemo           = "not_demo"
	ErrCodePartialCascade    = "partial_cascade"
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

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeForbidden writes a 403 error response.
func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, ErrCodeForbidden, message)
}

// domainErrors maps timeline sentinels to HTTP status and error code.
// Order matters: the first match wins.
var domainErrors = []struct {
	err    error
	status int
	code   string
}{
	{timeline.ErrNotFound, http.StatusNotFound, ErrCodeNotFound},
	{timeline.ErrInvalidTransition, http.StatusConflict, ErrCodeInvalidTransition},
	{timeline.ErrConflictingDurationTimer, http.StatusConflict, ErrCodeConflictingTimer},
	{timeline.ErrAlreadyRunning, http.StatusConflict, ErrCodeAlreadyRunning},
	{timeline.ErrNoTimersConfigured, http.StatusUnprocessableEntity, ErrCodeNoTimers},
	{timeline.ErrNotPunctualOrManual, http.StatusUnprocessableEntity, ErrCodeNotPunctual},
	{timeline.ErrNotDemo, http.StatusUnprocessableEntity, ErrCodeNotDemo},
	{timeline.ErrInvalidTimer, http.StatusBadRequest, ErrCodeValidation},
	{timeline.ErrInvalidAction, http.StatusBadRequest, ErrCodeValidation},
	{timeline.ErrInvalidEvent, http.StatusBadRequest, ErrCodeValidation},
}

// writeDomainError translates an engine or store error into a response.
// Unknown errors are logged and reported as 500 without leaking details.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	for _, de := range domainErrors {
		if errors.Is(err, de.err) {
			writeError(w, de.status, de.code, err.Error())
			return
		}
	}
	s.logger.Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", r.Context().Value(ctxKeyRequestID),
		"error", err,
	)
	writeInternalError(w, "internal server error")
}

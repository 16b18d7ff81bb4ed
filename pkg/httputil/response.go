// Package httputil provides HTTP handler utilities for consistent error handling,
// JSON encoding/decoding, and request parsing.
package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/intellium/patentguard/pkg/auth"
	"github.com/intellium/patentguard/pkg/observability"
)

// Error codes carried in the envelope's "error" field
const (
	CodeValidation  = "VALIDATION_ERROR"
	CodeRateLimited = "RATE_LIMIT_EXCEEDED"
	CodeDatabase    = "DATABASE_ERROR"
	CodeInternal    = "INTERNAL_SERVER_ERROR"
)

// Client-facing messages
const (
	MsgDuplicateEmail     = "Email already registered"
	MsgInvalidCredentials = "Incorrect email or password"
	MsgInactiveUser       = "Inactive user"
	MsgUserNotFound       = "User not found"
	MsgUnauthorized       = "Could not validate credentials"
	MsgValidation         = "Request validation failed"
	MsgRateLimited        = "Rate limit exceeded"
	MsgDatabase           = "A database error occurred"
	MsgInternal           = "An unexpected error occurred"
	MsgBodyTooLarge       = "Request body too large"
	MsgNotFound           = "Not Found"
	MsgMethodNotAllowed   = "Method Not Allowed"
)

// ErrRateLimited is returned when a request exceeds its rate limit profile
var ErrRateLimited = errors.New("rate limit exceeded")

// ErrBodyTooLarge is returned when a request body exceeds the configured cap
var ErrBodyTooLarge = errors.New("request body too large")

// ErrorResponse is the error envelope written for every failed request
type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Details interface{} `json:"details"`
	Path    string      `json:"path"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteCreated writes a successful creation response (201 Created) with JSON data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteSuccess writes a successful response (200 OK) with JSON data
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteEnvelope writes the error envelope
func WriteEnvelope(w http.ResponseWriter, r *http.Request, status int, code, message string, details interface{}) {
	_ = WriteJSON(w, status, ErrorResponse{
		Error:   code,
		Message: message,
		Details: details,
		Path:    r.URL.Path,
	})
}

// WriteHTTPError writes an envelope with the generic HTTP_<status> code
func WriteHTTPError(w http.ResponseWriter, r *http.Request, status int, message string) {
	WriteEnvelope(w, r, status, httpCode(status), message, nil)
}

// WriteUnauthorized writes the 401 credential challenge
func WriteUnauthorized(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	WriteHTTPError(w, r, http.StatusUnauthorized, MsgUnauthorized)
}

// WriteAPIError maps err onto a status and envelope. Internal details are
// logged, never written to the client.
func WriteAPIError(w http.ResponseWriter, r *http.Request, err error) {
	logger := observability.FromContext(r.Context()).WithFields(map[string]interface{}{
		"method": r.Method,
		"path":   r.URL.Path,
	})

	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		logger.WithField("fields", verr.Fields).Warn("Validation error")
		WriteEnvelope(w, r, http.StatusUnprocessableEntity, CodeValidation, MsgValidation, verr.Fields)

	case errors.Is(err, auth.ErrDuplicateEmail):
		WriteHTTPError(w, r, http.StatusBadRequest, MsgDuplicateEmail)

	case errors.Is(err, auth.ErrInvalidCredentials):
		w.Header().Set("WWW-Authenticate", "Bearer")
		WriteHTTPError(w, r, http.StatusUnauthorized, MsgInvalidCredentials)

	case errors.Is(err, auth.ErrAccountInactive):
		WriteHTTPError(w, r, http.StatusForbidden, MsgInactiveUser)

	case errors.Is(err, auth.ErrUserNotFound):
		WriteHTTPError(w, r, http.StatusNotFound, MsgUserNotFound)

	case errors.Is(err, auth.ErrUnauthorized), errors.Is(err, auth.ErrInvalidToken):
		WriteUnauthorized(w, r)

	case errors.Is(err, ErrRateLimited):
		WriteEnvelope(w, r, http.StatusTooManyRequests, CodeRateLimited, MsgRateLimited, nil)

	case errors.Is(err, ErrBodyTooLarge):
		WriteHTTPError(w, r, http.StatusRequestEntityTooLarge, MsgBodyTooLarge)

	case errors.Is(err, auth.ErrStoreUnavailable):
		logger.WithError(err).Error("Database error")
		WriteEnvelope(w, r, http.StatusInternalServerError, CodeDatabase, MsgDatabase, nil)

	default:
		logger.WithError(err).Error("Unexpected error")
		WriteEnvelope(w, r, http.StatusInternalServerError, CodeInternal, MsgInternal, nil)
	}
}

// NotFoundHandler writes the envelope for unmatched routes
func NotFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteHTTPError(w, r, http.StatusNotFound, MsgNotFound)
	})
}

// MethodNotAllowedHandler writes the envelope for unsupported methods
func MethodNotAllowedHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteHTTPError(w, r, http.StatusMethodNotAllowed, MsgMethodNotAllowed)
	})
}

func httpCode(status int) string {
	return fmt.Sprintf("HTTP_%d", status)
}

// Package response writes the JSON envelopes returned by the /api endpoints
// and the RFC 6749 bodies returned by the OAuth2 endpoints.
package response

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Meta accompanies every /api response. Total is set on list responses only.
type Meta struct {
	RequestID string `json:"requestId"`
	Timestamp string `json:"timestamp"`
	Total     *int   `json:"total,omitempty"`
}

// Error represents a structured API error.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Envelope is the {data, error, meta} wrapper of every /api response.
type Envelope struct {
	Data  any    `json:"data"`
	Error *Error `json:"error"`
	Meta  Meta   `json:"meta"`
}

// newMeta stamps the response. Requests that bypassed the RequestID
// middleware get a fresh id.
func newMeta(requestID string) Meta {
	if requestID == "" {
		requestID = uuid.New().String()
	}
	return Meta{
		RequestID: requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Success writes data in a successful envelope.
func Success(w http.ResponseWriter, status int, data any, requestID string) {
	writeJSON(w, status, Envelope{Data: data, Meta: newMeta(requestID)})
}

// SuccessList writes a list with its item count in meta.total.
func SuccessList(w http.ResponseWriter, status int, data any, total int, requestID string) {
	meta := newMeta(requestID)
	meta.Total = &total
	writeJSON(w, status, Envelope{Data: data, Meta: meta})
}

// NoContent writes a 204 No Content response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Err writes an error envelope.
func Err(w http.ResponseWriter, status int, code, message, requestID string) {
	ErrWithDetails(w, status, code, message, nil, requestID)
}

// ErrWithDetails writes an error envelope carrying details, typically the
// per-field validation failures.
func ErrWithDetails(w http.ResponseWriter, status int, code, message string, details any, requestID string) {
	writeJSON(w, status, Envelope{
		Error: &Error{Code: code, Message: message, Details: details},
		Meta:  newMeta(requestID),
	})
}

// ValidationFailed writes the 400 VALIDATION_ERROR envelope for details.
func ValidationFailed(w http.ResponseWriter, details any, requestID string) {
	ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", details, requestID)
}

package httpx

import (
	"context"
	"encoding/json"
	"maps"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/easybuy/api/internal/platform/requestctx"
)

// Error is the JSON error envelope every endpoint returns on failure. The
// serialised form carries error, message, status and, when known, request_id
// and trace_id.
type Error struct {
	Code      string
	Message   string
	Status    int
	RequestID string
	TraceID   string
	Details   map[string]any
}

// NewError builds an envelope for the given machine-readable code.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{
		Code:    flatten(code, 80),
		Message: flatten(message, 512),
		Status:  status,
	}
}

// WithRequestID overrides the request identifier picked up from context.
func (e Error) WithRequestID(id string) Error {
	e.RequestID = flatten(id, 80)
	return e
}

// WithTraceID overrides the trace identifier picked up from context.
func (e Error) WithTraceID(id string) Error {
	e.TraceID = flatten(id, 64)
	return e
}

// WithDetails merges extra JSON-serialisable fields into the envelope.
func (e Error) WithDetails(details map[string]any) Error {
	if len(details) == 0 {
		return e
	}
	e.Details = maps.Clone(details)
	return e
}

// WriteError serialises the envelope. Request and trace identifiers default
// to the values carried on the context.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	status := err.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}

	requestID := err.RequestID
	if requestID == "" {
		requestID = flatten(middleware.GetReqID(ctx), 80)
	}
	traceID := err.TraceID
	if traceID == "" {
		traceID = flatten(requestctx.TraceID(ctx), 64)
	}

	payload := map[string]any{
		"error":   err.Code,
		"message": err.Message,
		"status":  status,
	}
	if requestID != "" {
		payload["request_id"] = requestID
	}
	if traceID != "" {
		payload["trace_id"] = traceID
	}
	for k, v := range err.Details {
		payload[k] = v
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// flatten keeps envelope values single line and bounded.
func flatten(value string, limit int) string {
	value = strings.ReplaceAll(value, "\n", " ")
	value = strings.ReplaceAll(value, "\r", " ")
	value = strings.TrimSpace(value)
	if limit > 0 && len(value) > limit {
		value = value[:limit]
	}
	return value
}

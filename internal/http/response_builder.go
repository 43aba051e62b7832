// Package http serves the ledger as a JSON API.
//
// This file holds the fluent builder every handler answers through, so
// the envelope and error shape stay uniform.

package http

import (
	"encoding/json"
	"net/http"
)

// SyncStatus reports what happened to the remote writes a mutation issued.
type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncOK      SyncStatus = "ok"
)

// envelope is the body of every JSON response.
type envelope struct {
	Data  any        `json:"data,omitempty"`
	Sync  SyncStatus `json:"sync,omitempty"`
	Error string     `json:"error,omitempty"`
}

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       envelope
}

func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

func (b *JSONResponseBuilder) Data(v any) *JSONResponseBuilder {
	b.body.Data = v
	return b
}

func (b *JSONResponseBuilder) Sync(s SyncStatus) *JSONResponseBuilder {
	b.body.Sync = s
	return b
}

func (b *JSONResponseBuilder) Error(msg string) *JSONResponseBuilder {
	b.body.Error = msg
	return b
}

// Send writes headers, status and body. Encoding errors are dropped; the
// status line is already out by then.
func (b *JSONResponseBuilder) Send(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if b.statusCode == http.StatusNoContent {
		return
	}
	_ = json.NewEncoder(w).Encode(b.body)
}

// Common error responses.

func ErrorResponse(status int, msg string) *JSONResponseBuilder {
	return NewJSONResponse().Status(status).Error(msg)
}

func BadRequestError(msg string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, msg)
}

func NotFoundError(msg string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, msg)
}

func UnauthorizedError(msg string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, msg)
}

func ValidationError(msg string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, msg)
}

func InternalError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, "internal error")
}

// Package http provides HTTP server and handler implementations.
//
// This file implements a small builder for JSON responses and the mapping
// from ledger errors to status codes.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"ledger/internal/core"
	"ledger/internal/ledger"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if _, ok := b.headers["Cache-Control"]; !ok {
		w.Header().Set("Cache-Control", "no-store")
	}
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.body)
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// StatusFor maps an error to its HTTP status code.
func StatusFor(err error) int {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr), errors.Is(err, core.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ledger.ErrSessionClosed):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// ErrorResponse builds the response for err. Details of unexpected errors
// are not exposed.
func ErrorResponse(err error) *JSONResponseBuilder {
	status := StatusFor(err)
	body := ErrorBody{Error: http.StatusText(status)}
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		body.Error = verr.Reason
		body.Field = verr.Field
	case status == http.StatusNotFound:
		body.Error = "transaction not found"
	case status == http.StatusServiceUnavailable:
		body.Error = "record store unavailable"
		return NewJSONResponse().Status(status).Header("Retry-After", "5").Body(body)
	}
	return NewJSONResponse().Status(status).Body(body)
}

// BadRequestError creates a 400 response with message.
func BadRequestError(message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(http.StatusBadRequest).Body(ErrorBody{Error: message})
}

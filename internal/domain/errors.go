package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNoPrimaryKey signals a document schema without a primary-key field.
	ErrNoPrimaryKey = errors.New("schema has no primary key field")
	// ErrInvalidSchema signals an invalid schema definition.
	ErrInvalidSchema = errors.New("invalid schema")
	// ErrNotRegistered signals a type key without a registered schema.
	ErrNotRegistered = errors.New("type key not registered")
	// ErrAlreadyRegistered signals a duplicate type key registration.
	ErrAlreadyRegistered = errors.New("type key already registered")

	// ErrUnavailable signals that the search backend failed its health check.
	ErrUnavailable = errors.New("search backend unavailable")
	// ErrNoResults signals an empty or malformed select response.
	ErrNoResults = errors.New("no results in response")
	// ErrEmptyPayload signals an update request without a body.
	ErrEmptyPayload = errors.New("empty update payload")

	// ErrInvalidValue signals a value that cannot be coerced to the field type.
	ErrInvalidValue = errors.New("invalid field value")
	// ErrMissingRequired signals an empty required field at render time.
	ErrMissingRequired = errors.New("missing required field")

	// ErrUnknownParam signals a query parameter outside the declared set.
	ErrUnknownParam = errors.New("unknown query parameter")

	// ErrInvalidMethod signals a deferred method outside delete/add/commit/optimize.
	ErrInvalidMethod = errors.New("invalid deferred method")
	// ErrDeferredNotFound signals a missing deferred record.
	ErrDeferredNotFound = errors.New("deferred record not found")
	// ErrDrainInProgress signals that another process holds the drain lease.
	ErrDrainInProgress = errors.New("deferred drain already in progress")

	// ErrRecordNotFound signals that the record store has no such record.
	ErrRecordNotFound = errors.New("record not found")
	// ErrInvalidKey signals an empty type key or record id.
	ErrInvalidKey = errors.New("invalid record key")
	// ErrQueueDisabled signals a queue operation on a backend that stores nothing.
	ErrQueueDisabled = errors.New("queue disabled")
)

// TransportError describes a failed HTTP exchange with the search backend.
// It keeps the request body so that writes can be deferred and replayed verbatim.
type TransportError struct {
	Method  string
	URL     string
	Payload string
	Code    int // HTTP status, 0 when no response was received
	Err     error
}

func (e *TransportError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Method, e.URL, e.Code, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// NewTransportError creates a transport error.
func NewTransportError(method, url, payload string, code int, err error) error {
	return &TransportError{Method: method, URL: url, Payload: payload, Code: code, Err: err}
}

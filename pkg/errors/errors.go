// Package errors defines the error kinds reported by memory operations.
// Collaborator failures (extraction, embedding, vector index, history log) are
// translated into one of these kinds at the manager boundary, with the original
// error text kept as diagnostic detail.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind is the stable, caller-facing classification of a failure.
type Kind string

// Error kinds.
const (
	KindValidation Kind = "ValidationError"
	KindNotFound   Kind = "NotFoundError"
	KindExtraction Kind = "ExtractionError"
	KindEmbedding  Kind = "EmbeddingError"
	KindStoreWrite Kind = "StoreWriteError"
	KindStoreRead  Kind = "StoreReadError"
	KindBootstrap  Kind = "BootstrapError"
	KindTimeout    Kind = "TimeoutError"
	KindInternal   Kind = "InternalError"
)

// MemoryError is the error returned by every memory operation.
type MemoryError struct {
	Kind      Kind   `json:"error_type"`
	Op        string `json:"-"`
	Message   string `json:"message"`
	Detail    string `json:"error_details,omitempty"`
	Retryable bool   `json:"retryable"`
	Err       error  `json:"-"`
}

// Error implements the error interface.
func (e *MemoryError) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Detail != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Kind, msg, e.Detail)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, msg)
}

// Unwrap returns the collaborator error, if any.
func (e *MemoryError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a MemoryError of the same kind.
// This lets callers write errors.Is(err, ErrNotFound).
func (e *MemoryError) Is(target error) bool {
	t, ok := target.(*MemoryError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// HTTPStatusCode returns the semantic HTTP status for the error kind.
func (e *MemoryError) HTTPStatusCode() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindExtraction, KindEmbedding, KindStoreWrite, KindStoreRead:
		return http.StatusBadGateway
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindBootstrap:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Sentinels for errors.Is comparisons. Only Kind is compared.
var (
	ErrValidation = &MemoryError{Kind: KindValidation}
	ErrNotFound   = &MemoryError{Kind: KindNotFound}
	ErrExtraction = &MemoryError{Kind: KindExtraction}
	ErrEmbedding  = &MemoryError{Kind: KindEmbedding}
	ErrStoreWrite = &MemoryError{Kind: KindStoreWrite}
	ErrStoreRead  = &MemoryError{Kind: KindStoreRead}
	ErrBootstrap  = &MemoryError{Kind: KindBootstrap}
	ErrTimeout    = &MemoryError{Kind: KindTimeout}
)

// ErrUnavailable marks a collaborator that refused the call but is expected
// to recover, such as an open circuit breaker. Wrap reports it as retryable.
var ErrUnavailable = stderrors.New("provider temporarily unavailable")

// NewValidationError creates a client-attributable input error.
func NewValidationError(op, message string) *MemoryError {
	return &MemoryError{Kind: KindValidation, Op: op, Message: message}
}

// NewNotFoundError creates an error for a memory id that does not exist.
func NewNotFoundError(op, id string) *MemoryError {
	return &MemoryError{
		Kind:    KindNotFound,
		Op:      op,
		Message: "Memory not found!",
		Detail:  "memory_id=" + id,
	}
}

// NewBootstrapError creates a fatal startup error.
func NewBootstrapError(message string, cause error) *MemoryError {
	return Wrap(KindBootstrap, "bootstrap", message, cause)
}

// Wrap classifies a collaborator failure. A context deadline anywhere in the
// chain is reported as a retryable TimeoutError regardless of kind, except
// during bootstrap which is never retried. ErrUnavailable in the chain keeps
// kind but marks the error retryable. An existing MemoryError is returned
// unchanged.
func Wrap(kind Kind, op, message string, cause error) *MemoryError {
	if cause == nil {
		return &MemoryError{Kind: kind, Op: op, Message: message}
	}
	var me *MemoryError
	if stderrors.As(cause, &me) {
		return me
	}
	e := &MemoryError{
		Kind:    kind,
		Op:      op,
		Message: message,
		Detail:  cause.Error(),
		Err:     cause,
	}
	if kind != KindBootstrap {
		switch {
		case stderrors.Is(cause, context.DeadlineExceeded):
			e.Kind = KindTimeout
			e.Retryable = true
		case stderrors.Is(cause, ErrUnavailable):
			e.Retryable = true
		}
	}
	return e
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var me *MemoryError
	if stderrors.As(err, &me) {
		return me.Kind
	}
	return KindInternal
}

// IsRetryable reports whether the caller may retry the operation unchanged.
func IsRetryable(err error) bool {
	var me *MemoryError
	if stderrors.As(err, &me) {
		return me.Retryable
	}
	return false
}

// As is a convenience over errors.As for *MemoryError.
func As(err error) (*MemoryError, bool) {
	var me *MemoryError
	ok := stderrors.As(err, &me)
	return me, ok
}

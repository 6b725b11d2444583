package radicle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// FetchErrorKind classifies fetch failures.
type FetchErrorKind string

const (
	ErrKindNetwork   FetchErrorKind = "network"
	ErrKindNotFound  FetchErrorKind = "not_found"
	ErrKindMalformed FetchErrorKind = "malformed_response"
	ErrKindServer    FetchErrorKind = "server"
	ErrKindCanceled  FetchErrorKind = "canceled"
)

// FetchError is the only error a ContentFetcher reports. Reason is a
// human-readable string suitable for display next to a retry affordance.
type FetchError struct {
	Kind   FetchErrorKind `json:"kind"`
	Op     string         `json:"op"`
	Status int            `json:"status,omitempty"`
	Reason string         `json:"reason"`
	Err    error          `json:"-"`
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (%d): %s", e.Op, e.Kind, e.Status, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Reason)
}

// Unwrap returns the wrapped error for use with errors.Is and errors.As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewNetworkError wraps a transport failure.
func NewNetworkError(op string, err error) *FetchError {
	return &FetchError{Kind: ErrKindNetwork, Op: op, Reason: err.Error(), Err: err}
}

// NewNotFoundError reports a missing resource.
func NewNotFoundError(op, resource string) *FetchError {
	return &FetchError{
		Kind:   ErrKindNotFound,
		Op:     op,
		Status: http.StatusNotFound,
		Reason: fmt.Sprintf("%s not found", resource),
	}
}

// NewMalformedError reports a response that could not be decoded.
func NewMalformedError(op string, err error) *FetchError {
	return &FetchError{Kind: ErrKindMalformed, Op: op, Reason: err.Error(), Err: err}
}

// NewServerError reports a non-success HTTP status.
func NewServerError(op string, status int, body string) *FetchError {
	reason := http.StatusText(status)
	if body != "" {
		reason = body
	}
	return &FetchError{Kind: ErrKindServer, Op: op, Status: status, Reason: reason}
}

// AsFetchError normalises any error into a FetchError.
func AsFetchError(op string, err error) *FetchError {
	if err == nil {
		return nil
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &FetchError{Kind: ErrKindCanceled, Op: op, Reason: err.Error(), Err: err}
	}
	return NewNetworkError(op, err)
}

// IsNotFound reports whether err is a not-found FetchError.
func IsNotFound(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == ErrKindNotFound
}

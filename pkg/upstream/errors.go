package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorKind classifies upstream failures for handling and observability.
type ErrorKind string

const (
	// KindTimeout means the request exceeded its time budget.
	KindTimeout ErrorKind = "timeout"

	// KindStatus means the provider answered with a well-formed non-2xx
	// response. Never retried.
	KindStatus ErrorKind = "status"

	// KindParse means the provider answered 2xx with a malformed body.
	KindParse ErrorKind = "parse"

	// KindTransport means a network/connection failure, including an open
	// circuit breaker. Retried within the bounded policy.
	KindTransport ErrorKind = "transport"
)

// Error represents an upstream failure with its classification.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream %s error (status %d): %s: %v",
			e.Kind, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("upstream %s error (status %d): %s",
		e.Kind, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the error kind from any error returned by this package.
func KindOf(err error) ErrorKind {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Kind
	}
	return KindTransport
}

// shouldRetry reports whether an error classification warrants another
// attempt. Only transient transport failures are retried; non-2xx
// responses, parse failures, and exhausted time budgets are not.
func shouldRetry(kind ErrorKind) bool {
	return kind == KindTransport
}

// classifyRequestError maps an http.Client.Do failure to an error kind.
func classifyRequestError(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindTransport
}

package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "status error",
			err:  &Error{Kind: KindStatus, StatusCode: 503, Message: "503 Service Unavailable"},
			want: "upstream status error (status 503): 503 Service Unavailable",
		},
		{
			name: "wrapped transport error",
			err:  &Error{Kind: KindTransport, Message: "request failed", Err: errors.New("connection refused")},
			want: "upstream transport error (status 0): request failed: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	inner := errors.New("dial tcp: connection refused")
	err := &Error{Kind: KindTransport, Err: inner}

	if !errors.Is(err, inner) {
		t.Error("errors.Is should find the wrapped error")
	}

	wrapped := fmt.Errorf("fetch: %w", err)
	var ue *Error
	if !errors.As(wrapped, &ue) {
		t.Fatal("errors.As should find *Error through wrapping")
	}
	if ue.Kind != KindTransport {
		t.Errorf("Kind = %s, want %s", ue.Kind, KindTransport)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{name: "typed timeout", err: &Error{Kind: KindTimeout}, want: KindTimeout},
		{name: "wrapped typed error", err: fmt.Errorf("x: %w", &Error{Kind: KindParse}), want: KindParse},
		{name: "plain error defaults to transport", err: errors.New("boom"), want: KindTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want bool
	}{
		{KindTransport, true},
		{KindStatus, false},
		{KindParse, false},
		{KindTimeout, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := shouldRetry(tt.kind); got != tt.want {
				t.Errorf("shouldRetry(%s) = %v, want %v", tt.kind, got, tt.want)
			}
		})
	}
}

type fakeTimeoutError struct{}

func (fakeTimeoutError) Error() string   { return "i/o timeout" }
func (fakeTimeoutError) Timeout() bool   { return true }
func (fakeTimeoutError) Temporary() bool { return true }

var _ net.Error = fakeTimeoutError{}

func TestClassifyRequestError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{name: "deadline exceeded", err: context.DeadlineExceeded, want: KindTimeout},
		{name: "cancelled", err: context.Canceled, want: KindTimeout},
		{name: "net timeout", err: fakeTimeoutError{}, want: KindTimeout},
		{name: "connection refused", err: errors.New("dial tcp: connection refused"), want: KindTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyRequestError(tt.err); got != tt.want {
				t.Errorf("classifyRequestError() = %s, want %s", got, tt.want)
			}
		})
	}
}

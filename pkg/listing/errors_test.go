package listing

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "error with wrapped error",
			err:      NewRequestError("send page request", errors.New("connection refused")),
			expected: "request error: send page request: connection refused",
		},
		{
			name:     "error without wrapped error",
			err:      NewTimeoutError("page at offset 30"),
			expected: "timeout error: page at offset 30",
		},
		{
			name:     "csrf token error",
			err:      NewCsrfTokenError("cookie tutti_csrftoken not set", nil),
			expected: "csrf_token error: cookie tutti_csrftoken not set",
		},
		{
			name:     "parse error",
			err:      NewParseError("empty data in response", nil),
			expected: "parse error: empty data in response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestError_IsSentinel(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		others   []error
	}{
		{"request", NewRequestError("x", nil), ErrRequest, []error{ErrTimeout, ErrCsrfToken, ErrParse}},
		{"timeout", NewTimeoutError("x"), ErrTimeout, []error{ErrRequest, ErrCsrfToken, ErrParse}},
		{"csrf", NewCsrfTokenError("x", nil), ErrCsrfToken, []error{ErrRequest, ErrTimeout, ErrParse}},
		{"parse", NewParseError("x", nil), ErrParse, []error{ErrRequest, ErrTimeout, ErrCsrfToken}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("fetch listings: %w", tt.err)
			if !errors.Is(wrapped, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false, want true", wrapped, tt.sentinel)
			}
			for _, other := range tt.others {
				if errors.Is(wrapped, other) {
					t.Errorf("errors.Is(%v, %v) = true, want false", wrapped, other)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("wrapped error")
	err := NewRequestError("send", cause)

	if err.Unwrap() != cause {
		t.Errorf("Unwrap() = %v, want %v", err.Unwrap(), cause)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should work with wrapped error")
	}
}

func TestClassify(t *testing.T) {
	parseErr := NewParseError("bad envelope", nil)

	tests := []struct {
		name     string
		err      error
		expected ErrorClass
	}{
		{"nil stays nil", nil, ""},
		{"classified passes through", parseErr, ErrorClassParse},
		{"wrapped classified passes through", fmt.Errorf("outer: %w", parseErr), ErrorClassParse},
		{"deadline becomes timeout", context.DeadlineExceeded, ErrorClassTimeout},
		{"anything else is a request error", errors.New("dial tcp: refused"), ErrorClassRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if tt.err == nil {
				if got != nil {
					t.Errorf("Classify(nil) = %v, want nil", got)
				}
				return
			}
			if got.Class != tt.expected {
				t.Errorf("Classify(%v).Class = %q, want %q", tt.err, got.Class, tt.expected)
			}
		})
	}

	if Classify(parseErr) != parseErr {
		t.Error("Classify should return an already classified error unchanged")
	}
}

func TestClassOf(t *testing.T) {
	if got := ClassOf(NewTimeoutError("x")); got != ErrorClassTimeout {
		t.Errorf("ClassOf() = %q, want %q", got, ErrorClassTimeout)
	}
	if got := ClassOf(errors.New("plain")); got != "" {
		t.Errorf("ClassOf(plain) = %q, want empty", got)
	}
}

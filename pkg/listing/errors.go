package listing

import (
	"context"
	"errors"
	"fmt"
)

// ErrorClass represents a classification of retrieval failures.
type ErrorClass string

const (
	// ErrorClassRequest represents transport or protocol failures sending or receiving a request.
	ErrorClassRequest ErrorClass = "request"

	// ErrorClassTimeout represents a page fetch that exceeded its time budget.
	ErrorClassTimeout ErrorClass = "timeout"

	// ErrorClassCsrfToken represents a session bootstrap that could not obtain the CSRF token.
	ErrorClassCsrfToken ErrorClass = "csrf_token"

	// ErrorClassParse represents a malformed or empty response envelope, or one
	// carrying a server-reported error list.
	ErrorClassParse ErrorClass = "parse"
)

// Sentinels for errors.Is checks against a classified *Error.
var (
	// ErrRequest matches any *Error of class ErrorClassRequest.
	ErrRequest = errors.New("request error")

	// ErrTimeout matches any *Error of class ErrorClassTimeout.
	ErrTimeout = errors.New("request timed out")

	// ErrCsrfToken matches any *Error of class ErrorClassCsrfToken.
	ErrCsrfToken = errors.New("csrf token error")

	// ErrParse matches any *Error of class ErrorClassParse.
	ErrParse = errors.New("parse error")
)

// Error is the single failure type surfaced by the retrieval pipeline.
type Error struct {
	Class   ErrorClass
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Class, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Class, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's class.
func (e *Error) Is(target error) bool {
	return target != nil && target == e.Class.sentinel()
}

func (c ErrorClass) sentinel() error {
	switch c {
	case ErrorClassRequest:
		return ErrRequest
	case ErrorClassTimeout:
		return ErrTimeout
	case ErrorClassCsrfToken:
		return ErrCsrfToken
	case ErrorClassParse:
		return ErrParse
	default:
		return nil
	}
}

// NewRequestError wraps a transport failure.
func NewRequestError(msg string, err error) *Error {
	return &Error{Class: ErrorClassRequest, Message: msg, Err: err}
}

// NewTimeoutError reports a page fetch that ran out of time.
func NewTimeoutError(msg string) *Error {
	return &Error{Class: ErrorClassTimeout, Message: msg}
}

// NewCsrfTokenError reports a failed session bootstrap.
func NewCsrfTokenError(msg string, err error) *Error {
	return &Error{Class: ErrorClassCsrfToken, Message: msg, Err: err}
}

// NewParseError reports an unusable response envelope.
func NewParseError(msg string, err error) *Error {
	return &Error{Class: ErrorClassParse, Message: msg, Err: err}
}

// Classify maps err onto the closed taxonomy. An error that is already
// classified is returned unchanged; context deadlines become timeouts and
// everything else is a request error.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Class: ErrorClassTimeout, Message: "deadline exceeded", Err: err}
	}
	return NewRequestError("request failed", err)
}

// ClassOf returns the class of err, or "" when err is not classified.
func ClassOf(err error) ErrorClass {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Class
	}
	return ""
}

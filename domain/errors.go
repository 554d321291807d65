package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies workflow failures
type ErrorKind int

const (
	// KindUnexpected is the catch-all for failures nobody anticipated
	KindUnexpected ErrorKind = iota
	// KindValidation means required input was missing or malformed, detected before any network call
	KindValidation
	// KindDecode means the inbound audio payload could not be decoded
	KindDecode
	// KindNotFound means the external service (or the record store) has no such object
	KindNotFound
	// KindConnection means the external service could not be reached
	KindConnection
	// KindTimeout means the external service did not answer in time
	KindTimeout
	// KindRequest covers every other transport or HTTP-layer failure
	KindRequest
	// KindPersistence means the record could not be written after a successful external call
	KindPersistence
)

// String returns the kind name
func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindDecode:
		return "decode"
	case KindNotFound:
		return "not_found"
	case KindConnection:
		return "connection"
	case KindTimeout:
		return "timeout"
	case KindRequest:
		return "request"
	case KindPersistence:
		return "persistence"
	default:
		return "unexpected"
	}
}

// Error carries a user-facing message next to the detailed cause.
// Message is what the frontend sees; Err is what gets logged.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a classified error
func NewError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// ValidationError reports missing or malformed input
func ValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// KindOf returns the classification of err, KindUnexpected when err is not a *Error
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

// IsKind reports whether err is classified as kind
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// UserMessage returns the message safe to show to the user
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("Unexpected error: %v", err)
}

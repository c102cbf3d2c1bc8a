// Package failure provides the typed errors surfaced by the prompt pipelines.
package failure

import (
	"errors"
	"fmt"
)

// Kind identifies the class of a pipeline failure.
type Kind string

const (
	ValidationError   Kind = "VALIDATION_ERROR"
	NotConfigured     Kind = "NOT_CONFIGURED"
	UpstreamError     Kind = "UPSTREAM_ERROR"
	UpstreamMalformed Kind = "UPSTREAM_MALFORMED"
	PersistenceError  Kind = "PERSISTENCE_ERROR"
)

// Error is a failure with a user-facing message and an optional hint.
type Error struct {
	Kind       Kind
	Message    string
	Hint       string
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an Error of the given kind.
func New(kind Kind, message, hint string) *Error {
	return &Error{Kind: kind, Message: message, Hint: hint}
}

// Wrap creates an Error of the given kind wrapping cause.
func Wrap(kind Kind, message, hint string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Hint: hint, Cause: cause}
}

// Validation returns an error for input the user must correct.
func Validation(message string) *Error {
	return &Error{
		Kind:    ValidationError,
		Message: message,
		Hint:    "Correct the input and try again",
	}
}

// NotConfiguredError returns an error for a missing or empty API key.
func NotConfiguredError() *Error {
	return &Error{
		Kind:    NotConfigured,
		Message: "API key not configured",
		Hint:    "Save a Google API key with `promptlab configure --api-key <key>` or PUT /config",
	}
}

// Upstream returns an error for a non-success status from the generation provider.
func Upstream(status int, cause error) *Error {
	return &Error{
		Kind:       UpstreamError,
		Message:    fmt.Sprintf("upstream request failed with status %d", status),
		Hint:       "Check the API key and try again",
		StatusCode: status,
		Cause:      cause,
	}
}

// Malformed returns an error for a response that did not match the expected schema.
// fallback is the message shown to the user in place of a result.
func Malformed(fallback string, cause error) *Error {
	return &Error{
		Kind:    UpstreamMalformed,
		Message: fallback,
		Hint:    "The provider returned an unexpected response; try again",
		Cause:   cause,
	}
}

// Persistence returns an error for a failed configuration write.
func Persistence(cause error) *Error {
	return &Error{
		Kind:    PersistenceError,
		Message: "failed to save configuration",
		Hint:    "Check that the configuration location is writable",
		Cause:   cause,
	}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// Is reports whether err carries a failure of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// StatusCode returns the upstream status carried by err, or 0.
func StatusCode(err error) int {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.StatusCode
	}
	return 0
}

// HintOf returns the hint carried by err, or "".
func HintOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Hint
	}
	return ""
}

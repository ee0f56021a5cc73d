// Package apperr defines the error taxonomy shared by services and handlers.
// Services return kinded errors; handlers map kinds to HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for HTTP mapping.
type Kind int

const (
	// KindInternal is the default for unclassified failures (500).
	KindInternal Kind = iota
	// KindNotFound means a referenced entity does not exist (404).
	KindNotFound
	// KindConflict means a state precondition failed, e.g. duplicate active
	// join request or meeting full (409).
	KindConflict
	// KindInvalid means the request was malformed or violated a business rule
	// checked at the boundary (400).
	KindInvalid
	// KindUnavailable means a dependency is down and the operation could not
	// degrade (503).
	KindUnavailable
)

// Error carries a kind, a caller-facing message and an optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// NotFound creates a KindNotFound error.
func NotFound(msg string) *Error { return &Error{Kind: KindNotFound, Msg: msg} }

// Conflict creates a KindConflict error.
func Conflict(msg string) *Error { return &Error{Kind: KindConflict, Msg: msg} }

// Invalid creates a KindInvalid error.
func Invalid(msg string) *Error { return &Error{Kind: KindInvalid, Msg: msg} }

// Unavailable creates a KindUnavailable error wrapping cause.
func Unavailable(msg string, cause error) *Error {
	return &Error{Kind: KindUnavailable, Msg: msg, Err: cause}
}

// Wrap attaches a cause to e without changing its kind or message.
func (e *Error) Wrap(cause error) *Error {
	return &Error{Kind: e.Kind, Msg: e.Msg, Err: cause}
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, k Kind) bool { return KindOf(err) == k }

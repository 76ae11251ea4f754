// Package rperrors defines the error-kind taxonomy shared across the core:
// invalid client input, corrupt persisted data, resource exhaustion, and
// backend/system failures each carry a distinct kind so callers can map
// them to the right response or checkpoint status without string matching.
package rperrors

import (
	"errors"
	"fmt"
)

// Kind identifies one of the error categories the core distinguishes.
type Kind int

const (
	// KindInvalidValue marks a recoverable client input error: malformed
	// JSON document, bad query payload, schema mismatch. No server state
	// changes when this is returned.
	KindInvalidValue Kind = iota
	// KindUnserialization marks corrupt or truncated persisted data.
	KindUnserialization
	// KindOutOfMemory marks resource exhaustion.
	KindOutOfMemory
	// KindIndexBackend marks a failure originating in the index store.
	KindIndexBackend
	// KindSystem marks an I/O or other OS-level failure.
	KindSystem
)

func (k Kind) String() string {
	switch k {
	case KindInvalidValue:
		return "invalid_value"
	case KindUnserialization:
		return "unserialization"
	case KindOutOfMemory:
		return "out_of_memory"
	case KindIndexBackend:
		return "index_backend"
	case KindSystem:
		return "system"
	default:
		return "unknown"
	}
}

// Error is a Kind-tagged error that wraps an underlying cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap builds an *Error of the given kind around an existing error.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Invalidf builds a KindInvalidValue error with a formatted message.
func Invalidf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidValue, Msg: fmt.Sprintf(format, args...)}
}

// Wrapf builds an *Error of the given kind around err, with a formatted
// message.
func Wrapf(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Is reports whether err (or anything it wraps) carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

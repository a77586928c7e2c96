// Package errs defines the error classification used across pgscope.
//
// The pool manager and the introspection operations wrap every failure into
// an *errs.Error before it crosses a package boundary, so callers can branch
// on failure class without matching strings or importing pgx internals.
//
//	if errs.IsPoolTimeout(err) {
//	    // no connection became available in time
//	}
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by where in the pipeline it happened, not by
// backend-specific codes.
type Kind int

const (
	KindUnknown         Kind = iota
	KindConfiguration        // missing or malformed connection descriptor
	KindPoolInit             // backend unreachable while establishing the pool
	KindPoolTimeout          // no pooled connection became available in time
	KindQueryExecution       // backend rejected or failed a statement
	KindPolicyRejection      // query refused by the read-only policy gate
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindPoolInit:
		return "pool_init"
	case KindPoolTimeout:
		return "pool_timeout"
	case KindQueryExecution:
		return "query_execution"
	case KindPolicyRejection:
		return "policy_rejection"
	default:
		return "unknown"
	}
}

// Error carries a kind, a human-readable message, and the underlying cause.
// The message is what ends up in result envelopes; the cause is kept for
// logging and for errors.Is / errors.As traversal.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
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

// New returns an *Error with no underlying cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf is New with fmt.Sprintf formatting.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an *Error recording both a message and the underlying cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// KindOf extracts the Kind from any error in the chain. Errors that never
// passed through this package report KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsConfiguration reports whether err stems from a missing or malformed
// connection descriptor.
func IsConfiguration(err error) bool {
	return KindOf(err) == KindConfiguration
}

// IsPoolInit reports whether err happened while establishing the pool
// (unreachable host, refused connection, failed authentication).
func IsPoolInit(err error) bool {
	return KindOf(err) == KindPoolInit
}

// IsPoolTimeout reports whether err means connection acquisition timed out
// while every pooled connection was busy.
func IsPoolTimeout(err error) bool {
	return KindOf(err) == KindPoolTimeout
}

// IsQueryExecution reports whether the backend rejected or failed a statement
// (syntax, permissions, statement timeout, disconnect mid-query).
func IsQueryExecution(err error) bool {
	return KindOf(err) == KindQueryExecution
}

// IsPolicyRejection reports whether the read-only policy gate refused the
// query before it reached the backend.
func IsPolicyRejection(err error) bool {
	return KindOf(err) == KindPolicyRejection
}

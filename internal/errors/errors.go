// Package errors defines the closed set of failure kinds produced by the
// gateway and its collaborators. Raw errors are classified once, where they
// are first observed (backend store, timeout race, breaker); everything
// downstream switches on Kind.
package errors

import (
	"context"
	"errors"
	"fmt"
)

type Kind uint8

const (
	KindUnknown Kind = iota
	KindValidation
	KindInvalidCredentials
	KindAlreadyRegistered
	KindWeakPassword
	KindEmailNotConfirmed
	KindUnauthenticated
	KindTimeout
	KindUnavailable
	KindFallback
	KindPermissionDenied
	KindNotFound
	KindNotConfigured
)

var kindNames = map[Kind]string{
	KindUnknown:            "unknown",
	KindValidation:         "validation",
	KindInvalidCredentials: "invalid_credentials",
	KindAlreadyRegistered:  "already_registered",
	KindWeakPassword:       "weak_password",
	KindEmailNotConfirmed:  "email_not_confirmed",
	KindUnauthenticated:    "unauthenticated",
	KindTimeout:            "timeout",
	KindUnavailable:        "unavailable",
	KindFallback:           "fallback",
	KindPermissionDenied:   "permission_denied",
	KindNotFound:           "not_found",
	KindNotConfigured:      "not_configured",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// CountsAsFailure reports whether an error of this kind says something
// about backend health. A wrong password is a healthy backend answering.
func (k Kind) CountsAsFailure() bool {
	switch k {
	case KindTimeout, KindUnknown, KindNotConfigured:
		return true
	}
	return false
}

// Error is the single error type crossing package boundaries.
type Error struct {
	Kind Kind
	// Op names the gateway operation, e.g. "sign_in".
	Op string
	// Msg is shown verbatim to the user (validation errors).
	Msg string
	// Key overrides the message catalog lookup.
	Key string
	Err error
}

func (e *Error) Error() string {
	var detail string
	switch {
	case e.Msg != "":
		detail = e.Msg
	case e.Err != nil:
		detail = e.Err.Error()
	default:
		detail = e.Kind.String()
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, detail)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, detail)
}

func (e *Error) Unwrap() error { return e.Err }

// E wraps err with a kind and operation. If err already carries a kind it
// is kept and only the operation is filled in.
func E(kind Kind, op string, err error) *Error {
	var existing *Error
	if errors.As(err, &existing) {
		out := *existing
		if out.Op == "" {
			out.Op = op
		}
		return &out
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Validation builds a validation error whose message is shown as-is.
func Validation(op, msg string) *Error {
	return &Error{Kind: KindValidation, Op: op, Msg: msg}
}

// New builds an error of the given kind with no cause.
func New(kind Kind, op string) *Error {
	return &Error{Kind: kind, Op: op}
}

// KindOf extracts the kind of err. Context deadlines classify as timeouts.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// OpOf returns the operation recorded on err, if any.
func OpOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}

// Package errs classifies per-connection and per-request failures into the
// kinds the dispatcher and reactor use to decide a disposition: a status
// response, a silent close, or a fatal boot error.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is one of the error kinds from the error handling design.
type Kind int

const (
	// KindInternal covers unanticipated handler failures.
	KindInternal Kind = iota
	KindConfig
	KindBind
	KindParse
	KindPolicy
	KindSize
	KindNotFound
	KindForbidden
	KindCgi
	KindCgiTimeout
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "ConfigError"
	case KindBind:
		return "BindError"
	case KindParse:
		return "ParseError"
	case KindPolicy:
		return "PolicyError"
	case KindSize:
		return "SizeError"
	case KindNotFound:
		return "NotFound"
	case KindForbidden:
		return "Forbidden"
	case KindCgi:
		return "CgiError"
	case KindCgiTimeout:
		return "CgiTimeout"
	case KindIO:
		return "IoError"
	default:
		return "InternalError"
	}
}

// Status returns the HTTP status this kind maps to per the error handling
// table. Kinds that never reach the wire (KindBind, KindConfig, KindIO)
// return 0.
func (k Kind) Status() int {
	switch k {
	case KindParse:
		return 400
	case KindPolicy:
		return 405
	case KindSize:
		return 413
	case KindNotFound:
		return 404
	case KindForbidden:
		return 403
	case KindCgi:
		return 502
	case KindCgiTimeout:
		return 504
	case KindInternal:
		return 500
	default:
		return 0
	}
}

// Error is a classified error carrying a Kind and an optional wrapped cause.
type Error struct {
	Kind Kind
	msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified error with no wrapped cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, msg: msg}
}

// Wrap classifies cause under kind, preserving its stack via pkg/errors.
func Wrap(kind Kind, cause error, msg string) *Error {
	return &Error{Kind: kind, msg: msg, Err: errors.Wrap(cause, msg)}
}

// As extracts a *Error from err, if any wraps one.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the classified kind of err, defaulting to KindInternal for
// anything that isn't a *Error.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

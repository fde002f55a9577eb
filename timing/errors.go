package timing

import (
	"errors"
	"fmt"
)

// Kind classifies failures of the timing core.
type Kind int

const (
	KindInternal Kind = iota
	KindMissingField
	KindConflict
	KindNotFound
	KindNotAcceptable
	KindAlreadyExists
)

func (k Kind) String() string {
	switch k {
	case KindMissingField:
		return "missing_field"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindNotAcceptable:
		return "not_acceptable"
	case KindAlreadyExists:
		return "already_exists"
	default:
		return "internal"
	}
}

// Error is a classified timing failure.
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

// Is matches the kind sentinels below, so errors.Is(err, ErrConflict) works
// for any conflict.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Msg == "" && t.Kind == e.Kind
}

var (
	ErrMissingField  = &Error{Kind: KindMissingField}
	ErrConflict      = &Error{Kind: KindConflict}
	ErrNotFound      = &Error{Kind: KindNotFound}
	ErrNotAcceptable = &Error{Kind: KindNotAcceptable}
	ErrAlreadyExists = &Error{Kind: KindAlreadyExists}
	ErrInternal      = &Error{Kind: KindInternal}
)

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Msg: msg, Err: err}
}

// KindOf returns the kind of err; unclassified errors are internal.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindInternal
}

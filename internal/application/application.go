package application

import (
	"context"
	"errors"
)

type UseCase[C any, R any] interface {
	Execute(ctx context.Context, cmd C) (R, error)
}

// Error kinds shared by every use case. Transports map them to responses.
var (
	ErrValidation = errors.New("validation failed")
	ErrForbidden  = errors.New("forbidden")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrUpstream   = errors.New("upstream unavailable")
)

// Error is a classified failure with a caller-facing message.
// errors.Is matches both its Kind and the wrapped cause.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.Error()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func NewValidation(msg string, cause error) error {
	return &Error{Kind: ErrValidation, Msg: msg, Err: cause}
}

func NewForbidden(msg string) error {
	return &Error{Kind: ErrForbidden, Msg: msg}
}

func NewNotFound(msg string, cause error) error {
	return &Error{Kind: ErrNotFound, Msg: msg, Err: cause}
}

func NewConflict(msg string, cause error) error {
	return &Error{Kind: ErrConflict, Msg: msg, Err: cause}
}

func NewUpstream(msg string, cause error) error {
	return &Error{Kind: ErrUpstream, Msg: msg, Err: cause}
}

// Message returns the caller-facing message of a classified error, or err.Error().
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Error()
	}
	return err.Error()
}

package domain

import (
	"errors"
	"fmt"
)

// Error kinds shared by every layer. Handlers map them onto HTTP status codes.
var (
	ErrValidation      = errors.New("invalid input")
	ErrUnauthenticated = errors.New("unauthorized")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("already exists")
)

// Error attaches a client-safe message to one of the error kinds above.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

// Errorf builds an *Error of the given kind.
func Errorf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

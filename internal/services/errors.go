package services

import (
	"errors"
	"fmt"
)

// Use errors.Is against these; the message after the colon is for humans.
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrTransport  = errors.New("transport error")
)

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFoundErr(what string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, what)
}

// transportErr keeps the storage cause reachable through errors.Is.
func transportErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrTransport, op, err)
}

// Package validation holds the error class shared by every package that
// rejects malformed input.
//
// Packages declare their sentinels with New. Each one still matches itself
// with errors.Is and also matches ErrInvalid, so callers can map all
// malformed identifiers, extensions and entities with one check.
package validation

import "errors"

// ErrInvalid is matched by every error created with New
var ErrInvalid = errors.New("validation failed")

// New returns a sentinel error with the given text that matches ErrInvalid
func New(text string) error {
	return &sentinel{msg: text}
}

type sentinel struct {
	msg string
}

func (e *sentinel) Error() string { return e.msg }

// Is matches ErrInvalid
func (e *sentinel) Is(target error) bool { return target == ErrInvalid }

package sml

import (
	"errors"
	"fmt"
)

// SML errors
var (
	ErrAlreadyRegistered = errors.New("participant already registered in SML")
	ErrNotRegistered     = errors.New("participant not registered in SML")
	ErrUnauthorized      = errors.New("SMP not authorized by SML")
	ErrBadRequest        = errors.New("SML rejected request")
	ErrTransient         = errors.New("SML temporarily unavailable")
)

// Fault is a SOAP fault returned by the SML
type Fault struct {
	// Code is the local name of the fault detail element, e.g. "NotFoundFault"
	Code    string
	Message string
	kind    error
}

func (f *Fault) Error() string {
	if f.Code == "" {
		return fmt.Sprintf("SML fault: %s", f.Message)
	}
	return fmt.Sprintf("SML fault %s: %s", f.Code, f.Message)
}

func (f *Fault) Unwrap() error { return f.kind }

// IsRetryable reports whether err is worth retrying
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}

// transientError marks network and server failures as retryable
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }

func (e *transientError) Unwrap() []error { return []error{ErrTransient, e.err} }

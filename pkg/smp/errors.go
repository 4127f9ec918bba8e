package smp

import (
	"errors"
	"fmt"

	"github.com/PiccoloProcione/supersmp/pkg/identifier"
	"github.com/PiccoloProcione/supersmp/pkg/validation"
)

// Error classes
var (
	// ErrNotFound is returned when an operation targets an unknown key
	ErrNotFound = errors.New("not found")
	// ErrDuplicateID is returned when creating an entity whose key already exists
	ErrDuplicateID = errors.New("duplicate ID")
	// ErrValidation is returned for malformed identifiers, extensions and
	// entities. Identifier and extension parse errors match it as well.
	ErrValidation = validation.ErrInvalid
	// ErrDirectory is matched by every *DirectoryError
	ErrDirectory = errors.New("directory call failed")
	// ErrPersistence is matched by every *PersistenceError
	ErrPersistence = errors.New("persistence failed")
	// ErrInconsistent is matched by every *InconsistencyError
	ErrInconsistent = errors.New("local storage and directory are inconsistent")
	// ErrNoProcesses is returned when service information without processes is
	// converted to service metadata
	ErrNoProcesses = errors.New("service information has no processes")
)

// Operation names used in errors, logs and metrics
const (
	OpCreate     = "create"
	OpUpdate     = "update"
	OpDelete     = "delete"
	OpUndoCreate = "undo-create"
	OpUndoDelete = "undo-delete"
	// OpRestore is a local restore after a failed service group delete
	OpRestore    = "delete-restore"
)

// DirectoryError is returned when the registration hook fails a directory call.
type DirectoryError struct {
	Op            string
	ParticipantID identifier.ParticipantID
	Err           error
}

func (e *DirectoryError) Error() string {
	return fmt.Sprintf("directory %s of %s failed: %v", e.Op, e.ParticipantID, e.Err)
}

func (e *DirectoryError) Unwrap() error { return e.Err }

// Is matches ErrDirectory
func (e *DirectoryError) Is(target error) bool { return target == ErrDirectory }

// PersistenceError is returned when a store fails to append or replay.
type PersistenceError struct {
	Op    string
	Store string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s store %s failed: %v", e.Store, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Is matches ErrPersistence
func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// InconsistencyError is returned when a compensating action failed after the
// paired operation failed: a directory undo call, or the local restore of a
// service group and its dependents (Op OpRestore). Local storage and the
// directory disagree about ParticipantID, or dependents of the group are
// lost, and an operator has to reconcile them.
//
// Cause is the error that triggered the compensation; CompensationErr is the
// error of the failed compensation. Both remain reachable through errors.Is and
// errors.As.
type InconsistencyError struct {
	Op              string
	ParticipantID   identifier.ParticipantID
	Cause           error
	CompensationErr error
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("INCONSISTENT: %s of %s failed (%v) and compensation failed (%v)",
		e.Op, e.ParticipantID, e.Cause, e.CompensationErr)
}

func (e *InconsistencyError) Unwrap() []error {
	var errs []error
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	if e.CompensationErr != nil {
		errs = append(errs, e.CompensationErr)
	}
	return errs
}

// Is matches ErrInconsistent
func (e *InconsistencyError) Is(target error) bool { return target == ErrInconsistent }

// Validation wraps err so that it matches ErrValidation
func Validation(err error) error {
	if err == nil || errors.Is(err, ErrValidation) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

var (
	errNilServiceGroup = errors.New("service group is nil")
	errEmptyOwner      = errors.New("owner ID is empty")
)

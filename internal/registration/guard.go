// Package registration runs service group creation and deletion as
// directory-gated operations.
//
// A participant is registered in the SML before its service group is stored,
// and unregistered before its service group is removed. When the local step
// fails after the directory step succeeded, the directory step is undone. If
// the undo fails too, the two sides disagree and an *smp.InconsistencyError
// is returned for an operator to reconcile.
//
// Directory calls never run while a store lock is held. Operations on the
// same participant are serialized by an in-flight claim.
package registration

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/PiccoloProcione/supersmp/pkg/identifier"
	"github.com/PiccoloProcione/supersmp/pkg/smp"
)

// DefaultCompensationTimeout bounds an undo call
const DefaultCompensationTimeout = 30 * time.Second

// Config holds guard configuration
type Config struct {
	// CompensationTimeout bounds each undo call. Undo calls ignore the
	// cancellation of the caller's context.
	CompensationTimeout time.Duration
	Logger              *slog.Logger
}

// Guard runs the registration protocol around local commits
type Guard struct {
	hook                smp.RegistrationHook
	compensationTimeout time.Duration
	logger              *slog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewGuard creates a guard calling hook
func NewGuard(hook smp.RegistrationHook, cfg Config) (*Guard, error) {
	if hook == nil {
		return nil, fmt.Errorf("registration hook is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.CompensationTimeout <= 0 {
		cfg.CompensationTimeout = DefaultCompensationTimeout
	}
	return &Guard{
		hook:                hook,
		compensationTimeout: cfg.CompensationTimeout,
		logger:              cfg.Logger.With("component", "registration"),
		inflight:            make(map[string]struct{}),
	}, nil
}

// claim marks pid as in flight. It returns false if another operation on
// pid is running.
func (g *Guard) claim(pid identifier.ParticipantID) (release func(), ok bool) {
	key := pid.URIEncoded()

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inflight[key]; busy {
		return nil, false
	}
	g.inflight[key] = struct{}{}
	return func() {
		g.mu.Lock()
		delete(g.inflight, key)
		g.mu.Unlock()
	}, true
}

// Create registers pid in the directory and then runs commit. exists is
// checked before the directory call; if it reports true, or another
// operation on pid is in flight, Create fails with smp.ErrDuplicateID
// without calling the directory.
func (g *Guard) Create(ctx context.Context, pid identifier.ParticipantID, exists func() (bool, error), commit func() error) error {
	release, ok := g.claim(pid)
	if !ok {
		return fmt.Errorf("service group %s is being changed: %w", pid, smp.ErrDuplicateID)
	}
	defer release()

	found, err := exists()
	if err != nil {
		return err
	}
	if found {
		return fmt.Errorf("service group %s: %w", pid, smp.ErrDuplicateID)
	}

	logger := g.logger.With("participant_id", pid.URIEncoded())

	if err := g.hook.CreateServiceGroup(ctx, pid); err != nil {
		logger.Warn("Directory create failed", "error", err)
		return &smp.DirectoryError{Op: smp.OpCreate, ParticipantID: pid, Err: err}
	}

	commitErr := commit()
	if commitErr == nil {
		return nil
	}

	logger.Warn("Storing service group failed, undoing directory create", "error", commitErr)
	if undoErr := g.compensate(ctx, func(ctx context.Context) error {
		return g.hook.UndoCreateServiceGroup(ctx, pid)
	}); undoErr != nil {
		return g.inconsistent(logger, smp.OpCreate, pid, commitErr, undoErr)
	}
	return commitErr
}

// Delete unregisters pid from the directory and then runs commit. A
// missing service group, or another operation on pid in flight, is
// reported as smp.Unchanged without calling the directory.
func (g *Guard) Delete(ctx context.Context, pid identifier.ParticipantID, exists func() (bool, error), commit func() error) (smp.Change, error) {
	release, ok := g.claim(pid)
	if !ok {
		return smp.Unchanged, nil
	}
	defer release()

	found, err := exists()
	if err != nil || !found {
		return smp.Unchanged, err
	}

	logger := g.logger.With("participant_id", pid.URIEncoded())

	if err := g.hook.DeleteServiceGroup(ctx, pid); err != nil {
		logger.Warn("Directory delete failed", "error", err)
		return smp.Unchanged, &smp.DirectoryError{Op: smp.OpDelete, ParticipantID: pid, Err: err}
	}

	commitErr := commit()
	if commitErr == nil {
		return smp.Changed, nil
	}

	logger.Warn("Deleting service group failed, undoing directory delete", "error", commitErr)
	if undoErr := g.compensate(ctx, func(ctx context.Context) error {
		return g.hook.UndoDeleteServiceGroup(ctx, pid)
	}); undoErr != nil {
		return smp.Unchanged, g.inconsistent(logger, smp.OpDelete, pid, commitErr, undoErr)
	}
	return smp.Unchanged, commitErr
}

func (g *Guard) compensate(ctx context.Context, undo func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.compensationTimeout)
	defer cancel()
	return undo(ctx)
}

func (g *Guard) inconsistent(logger *slog.Logger, op string, pid identifier.ParticipantID, cause, undoErr error) error {
	err := &smp.InconsistencyError{
		Op:              op,
		ParticipantID:   pid,
		Cause:           cause,
		CompensationErr: undoErr,
	}
	logger.Error("Local storage and SML disagree, manual reconciliation required",
		"inconsistency", true,
		"op", op,
		"cause", cause,
		"error", undoErr)
	return err
}

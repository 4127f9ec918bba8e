package sml

import (
	"context"
	"log/slog"

	"github.com/PiccoloProcione/supersmp/pkg/identifier"
	"github.com/PiccoloProcione/supersmp/pkg/smp"
)

// Noop is the registration hook used when SML integration is disabled.
// Every call succeeds.
type Noop struct {
	Logger *slog.Logger
}

var _ smp.RegistrationHook = Noop{}

func (n Noop) log(ctx context.Context, op string, pid identifier.ParticipantID) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.DebugContext(ctx, "SML disabled, skipping", "op", op, "participant_id", pid.URIEncoded())
	return nil
}

func (n Noop) CreateServiceGroup(ctx context.Context, pid identifier.ParticipantID) error {
	return n.log(ctx, "create", pid)
}

func (n Noop) UndoCreateServiceGroup(ctx context.Context, pid identifier.ParticipantID) error {
	return n.log(ctx, "undo-create", pid)
}

func (n Noop) DeleteServiceGroup(ctx context.Context, pid identifier.ParticipantID) error {
	return n.log(ctx, "delete", pid)
}

func (n Noop) UndoDeleteServiceGroup(ctx context.Context, pid identifier.ParticipantID) error {
	return n.log(ctx, "undo-delete", pid)
}

// Package registrationtest provides a mock registration hook for tests.
package registrationtest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/PiccoloProcione/supersmp/pkg/identifier"
)

// Hook is a testify mock of smp.RegistrationHook.
//
//	hook := registrationtest.NewHook(t)
//	hook.On("CreateServiceGroup", mock.Anything, pid).Return(nil).Once()
type Hook struct {
	mock.Mock
}

// NewHook creates a mock hook whose expectations are asserted at test cleanup
func NewHook(t interface {
	mock.TestingT
	Cleanup(func())
}) *Hook {
	h := &Hook{}
	h.Test(t)
	t.Cleanup(func() { h.AssertExpectations(t) })
	return h
}

// AllowAll makes every hook method succeed any number of times
func (h *Hook) AllowAll() *Hook {
	for _, method := range []string{"CreateServiceGroup", "UndoCreateServiceGroup", "DeleteServiceGroup", "UndoDeleteServiceGroup"} {
		h.On(method, mock.Anything, mock.Anything).Return(nil).Maybe()
	}
	return h
}

func (h *Hook) CreateServiceGroup(ctx context.Context, pid identifier.ParticipantID) error {
	return h.Called(ctx, pid).Error(0)
}

func (h *Hook) UndoCreateServiceGroup(ctx context.Context, pid identifier.ParticipantID) error {
	return h.Called(ctx, pid).Error(0)
}

func (h *Hook) DeleteServiceGroup(ctx context.Context, pid identifier.ParticipantID) error {
	return h.Called(ctx, pid).Error(0)
}

func (h *Hook) UndoDeleteServiceGroup(ctx context.Context, pid identifier.ParticipantID) error {
	return h.Called(ctx, pid).Error(0)
}

package smp

import (
	"context"
	"sync"

	"github.com/PiccoloProcione/supersmp/pkg/identifier"
)

// Callbacks is a list of service group callbacks, safe for concurrent use.
// The zero value is ready to use.
type Callbacks struct {
	mu   sync.RWMutex
	list []ServiceGroupCallback
}

// Add registers a callback. Nil callbacks are ignored.
func (c *Callbacks) Add(cb ServiceGroupCallback) {
	if cb == nil {
		return
	}
	c.mu.Lock()
	c.list = append(c.list, cb)
	c.mu.Unlock()
}

func (c *Callbacks) snapshot() []ServiceGroupCallback {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]ServiceGroupCallback(nil), c.list...)
}

// Created notifies all callbacks; each gets its own copy of sg
func (c *Callbacks) Created(ctx context.Context, sg *ServiceGroup) {
	for _, cb := range c.snapshot() {
		cb.OnServiceGroupCreated(ctx, sg.Clone())
	}
}

// Updated notifies all callbacks; each gets its own copy of sg
func (c *Callbacks) Updated(ctx context.Context, sg *ServiceGroup) {
	for _, cb := range c.snapshot() {
		cb.OnServiceGroupUpdated(ctx, sg.Clone())
	}
}

// Deleted notifies all callbacks
func (c *Callbacks) Deleted(ctx context.Context, pid identifier.ParticipantID) {
	for _, cb := range c.snapshot() {
		cb.OnServiceGroupDeleted(ctx, pid)
	}
}

// CallbackFuncs adapts functions to ServiceGroupCallback. Nil fields are skipped.
type CallbackFuncs struct {
	Created func(ctx context.Context, sg *ServiceGroup)
	Updated func(ctx context.Context, sg *ServiceGroup)
	Deleted func(ctx context.Context, pid identifier.ParticipantID)
}

func (f CallbackFuncs) OnServiceGroupCreated(ctx context.Context, sg *ServiceGroup) {
	if f.Created != nil {
		f.Created(ctx, sg)
	}
}

func (f CallbackFuncs) OnServiceGroupUpdated(ctx context.Context, sg *ServiceGroup) {
	if f.Updated != nil {
		f.Updated(ctx, sg)
	}
}

func (f CallbackFuncs) OnServiceGroupDeleted(ctx context.Context, pid identifier.ParticipantID) {
	if f.Deleted != nil {
		f.Deleted(ctx, pid)
	}
}

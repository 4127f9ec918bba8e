package mongodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/PiccoloProcione/supersmp/internal/registration"
	"github.com/PiccoloProcione/supersmp/internal/storage/cascade"
	"github.com/PiccoloProcione/supersmp/pkg/extension"
	"github.com/PiccoloProcione/supersmp/pkg/identifier"
	"github.com/PiccoloProcione/supersmp/pkg/smp"
)

type serviceGroupManager struct {
	mu        sync.RWMutex
	store     *Store
	coll      *mongo.Collection
	guard     *registration.Guard
	deps      smp.Dependents
	callbacks smp.Callbacks
	logger    *slog.Logger
}

func (m *serviceGroupManager) AddCallback(cb smp.ServiceGroupCallback) {
	m.callbacks.Add(cb)
}

func (m *serviceGroupManager) exists(ctx context.Context, id string) func() (bool, error) {
	return func() (bool, error) {
		m.mu.RLock()
		defer m.mu.RUnlock()
		n, err := count(ctx, m.store, m.coll, bson.M{"_id": id})
		return n > 0, err
	}
}

func (m *serviceGroupManager) Create(ctx context.Context, ownerID string, pid identifier.ParticipantID, ext extension.Extension) (*smp.ServiceGroup, error) {
	sg := smp.NewServiceGroup(ownerID, pid, ext)
	if err := sg.Validate(); err != nil {
		return nil, err
	}
	id := sg.ID()

	err := m.guard.Create(ctx, pid, m.exists(ctx, id), func() error {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.insert(ctx, sg)
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("Service group created", "participant_id", id, "owner", ownerID)
	m.callbacks.Created(ctx, sg)
	return sg.Clone(), nil
}

func (m *serviceGroupManager) insert(ctx context.Context, sg *smp.ServiceGroup) error {
	ctx, cancel := m.store.op(ctx)
	defer cancel()

	_, err := m.coll.InsertOne(ctx, toServiceGroupDoc(sg))
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("service group %s: %w", sg.ID(), smp.ErrDuplicateID)
	}
	return persistenceError("insert", m.coll, err)
}

func (m *serviceGroupManager) Update(ctx context.Context, id, ownerID string, ext extension.Extension) (smp.Change, error) {
	if ownerID == "" {
		return smp.Unchanged, smp.Validation(errors.New("owner ID is empty"))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := findOne[serviceGroupDoc](ctx, m.store, m.coll, id)
	if errors.Is(err, smp.ErrNotFound) {
		return smp.Unchanged, nil
	}
	if err != nil {
		return smp.Unchanged, err
	}
	sg, err := fromServiceGroupDoc(doc)
	if err != nil {
		return smp.Unchanged, persistenceError("decode", m.coll, err)
	}
	if sg.OwnerID == ownerID && sg.Extension.Equal(ext) {
		return smp.Unchanged, nil
	}

	sg.OwnerID = ownerID
	sg.Extension = ext
	if err := replace(ctx, m.store, m.coll, id, toServiceGroupDoc(sg)); err != nil {
		return smp.Unchanged, err
	}

	m.callbacks.Updated(ctx, sg)
	return smp.Changed, nil
}

func (m *serviceGroupManager) Delete(ctx context.Context, pid identifier.ParticipantID) (smp.Change, error) {
	id := smp.ServiceGroupID(pid)

	change, err := m.guard.Delete(ctx, pid, m.exists(ctx, id), func() error {
		return m.deleteLocally(ctx, id)
	})
	if err != nil || !change.IsChanged() {
		return change, err
	}

	m.logger.Info("Service group deleted", "participant_id", id)
	m.callbacks.Deleted(ctx, pid)
	return change, nil
}

// deleteLocally removes the group and its dependents under the service
// group write lock and puts everything back if a step fails.
func (m *serviceGroupManager) deleteLocally(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := findOne[serviceGroupDoc](ctx, m.store, m.coll, id)
	if errors.Is(err, smp.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	sg, err := fromServiceGroupDoc(doc)
	if err != nil {
		return persistenceError("decode", m.coll, err)
	}

	state, err := cascade.Capture(ctx, m.deps, sg)
	if err != nil {
		return err
	}

	if _, err := deleteMany(ctx, m.store, m.coll, bson.M{"_id": id}); err != nil {
		return err
	}

	if err := cascade.Delete(ctx, m.deps, sg); err != nil {
		// The caller's context may be what failed the cascade
		restoreCtx := context.WithoutCancel(ctx)
		restoreErr := errors.Join(
			replace(restoreCtx, m.store, m.coll, id, toServiceGroupDoc(sg)),
			cascade.Restore(restoreCtx, m.deps, sg, state))
		if restoreErr != nil {
			m.logger.Error("Restoring service group after failed delete failed",
				"participant_id", id, "inconsistency", true, "cause", err, "error", restoreErr)
			return &smp.InconsistencyError{
				Op:              smp.OpRestore,
				ParticipantID:   sg.ParticipantID,
				Cause:           err,
				CompensationErr: restoreErr,
			}
		}
		return err
	}
	return nil
}

func (m *serviceGroupManager) Get(ctx context.Context, pid identifier.ParticipantID) (*smp.ServiceGroup, error) {
	return m.GetByID(ctx, smp.ServiceGroupID(pid))
}

func (m *serviceGroupManager) GetByID(ctx context.Context, id string) (*smp.ServiceGroup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, err := findOne[serviceGroupDoc](ctx, m.store, m.coll, id)
	if err != nil {
		return nil, err
	}
	sg, err := fromServiceGroupDoc(doc)
	if err != nil {
		return nil, persistenceError("decode", m.coll, err)
	}
	return sg, nil
}

func (m *serviceGroupManager) All(ctx context.Context) ([]*smp.ServiceGroup, error) {
	return m.find(ctx, bson.M{})
}

func (m *serviceGroupManager) AllOfOwner(ctx context.Context, ownerID string) ([]*smp.ServiceGroup, error) {
	return m.find(ctx, bson.M{"owner_id": ownerID})
}

func (m *serviceGroupManager) find(ctx context.Context, filter bson.M) ([]*smp.ServiceGroup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return findAll(ctx, m.store, m.coll, filter, fromServiceGroupDoc)
}

func (m *serviceGroupManager) CountOfOwner(ctx context.Context, ownerID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return count(ctx, m.store, m.coll, bson.M{"owner_id": ownerID})
}

func (m *serviceGroupManager) Contains(ctx context.Context, pid identifier.ParticipantID) (bool, error) {
	return m.exists(ctx, smp.ServiceGroupID(pid))()
}

func (m *serviceGroupManager) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return count(ctx, m.store, m.coll, bson.M{})
}

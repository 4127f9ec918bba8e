package xmlfile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/PiccoloProcione/supersmp/internal/registration"
	"github.com/PiccoloProcione/supersmp/internal/storage/cascade"
	"github.com/PiccoloProcione/supersmp/internal/storage/wal"
	"github.com/PiccoloProcione/supersmp/pkg/extension"
	"github.com/PiccoloProcione/supersmp/pkg/identifier"
	"github.com/PiccoloProcione/supersmp/pkg/smp"
)

type serviceGroupManager struct {
	store     *wal.Store[*smp.ServiceGroup]
	owners    *index
	guard     *registration.Guard
	deps      smp.Dependents
	callbacks smp.Callbacks
	logger    *slog.Logger
}

func newServiceGroupManager(p *Provider, guard *registration.Guard, deps smp.Dependents) (*serviceGroupManager, error) {
	owners := newIndex()
	store, err := openStore[*smp.ServiceGroup](p, StoreServiceGroups, serviceGroupCodec{}, recovery[*smp.ServiceGroup]{
		ix:  owners,
		key: func(sg *smp.ServiceGroup) string { return sg.OwnerID },
		id:  func(sg *smp.ServiceGroup) string { return sg.ID() },
	})
	if err != nil {
		return nil, err
	}
	return &serviceGroupManager{
		store:  store,
		owners: owners,
		guard:  guard,
		deps:   deps,
		logger: p.logger.With("manager", StoreServiceGroups),
	}, nil
}

func (m *serviceGroupManager) AddCallback(cb smp.ServiceGroupCallback) {
	m.callbacks.Add(cb)
}

func (m *serviceGroupManager) Create(ctx context.Context, ownerID string, pid identifier.ParticipantID, ext extension.Extension) (*smp.ServiceGroup, error) {
	sg := smp.NewServiceGroup(ownerID, pid, ext)
	if err := sg.Validate(); err != nil {
		return nil, err
	}
	id := sg.ID()

	err := m.guard.Create(ctx, pid,
		func() (bool, error) { return m.store.Contains(id), nil },
		func() error {
			return m.store.Write(func(tx *wal.Tx[*smp.ServiceGroup]) error {
				if err := tx.Create(sg); err != nil {
					return err
				}
				m.owners.put(ownerID, id)
				return nil
			})
		})
	if err != nil {
		return nil, err
	}

	m.logger.Info("Service group created", "participant_id", id, "owner", ownerID)
	m.callbacks.Created(ctx, sg)
	return sg.Clone(), nil
}

func (m *serviceGroupManager) Update(ctx context.Context, id, ownerID string, ext extension.Extension) (smp.Change, error) {
	if ownerID == "" {
		return smp.Unchanged, smp.Validation(errors.New("owner ID is empty"))
	}

	var updated *smp.ServiceGroup
	err := m.store.Write(func(tx *wal.Tx[*smp.ServiceGroup]) error {
		sg, ok := tx.Get(id)
		if !ok {
			return nil
		}
		if sg.OwnerID == ownerID && sg.Extension.Equal(ext) {
			return nil
		}
		sg.OwnerID = ownerID
		sg.Extension = ext
		if err := tx.Update(sg); err != nil {
			return err
		}
		m.owners.put(ownerID, id)
		updated = sg
		return nil
	})
	if err != nil || updated == nil {
		return smp.Unchanged, err
	}

	m.callbacks.Updated(ctx, updated)
	return smp.Changed, nil
}

func (m *serviceGroupManager) Delete(ctx context.Context, pid identifier.ParticipantID) (smp.Change, error) {
	id := smp.ServiceGroupID(pid)

	change, err := m.guard.Delete(ctx, pid,
		func() (bool, error) { return m.store.Contains(id), nil },
		func() error { return m.deleteLocally(ctx, id) })
	if err != nil || !change.IsChanged() {
		return change, err
	}

	m.logger.Info("Service group deleted", "participant_id", id)
	m.callbacks.Deleted(ctx, pid)
	return change, nil
}

// deleteLocally removes the group and everything that belongs to it while
// holding the service group write lock. Dependent managers take their own
// locks after it. On failure everything removed so far is put back.
func (m *serviceGroupManager) deleteLocally(ctx context.Context, id string) error {
	return m.store.Write(func(tx *wal.Tx[*smp.ServiceGroup]) error {
		sg, ok := tx.Get(id)
		if !ok {
			return nil
		}

		state, err := cascade.Capture(ctx, m.deps, sg)
		if err != nil {
			return err
		}

		if _, _, err := tx.Delete(id); err != nil {
			return err
		}
		m.owners.remove(id)

		if err := cascade.Delete(ctx, m.deps, sg); err != nil {
			if restoreErr := m.restore(ctx, tx, sg, state); restoreErr != nil {
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
	})
}

// restore puts back the group, then its dependents
func (m *serviceGroupManager) restore(ctx context.Context, tx *wal.Tx[*smp.ServiceGroup], sg *smp.ServiceGroup, state *cascade.State) error {
	var errs []error
	if !tx.Contains(sg.ID()) {
		if err := tx.Create(sg); err != nil {
			errs = append(errs, err)
		} else {
			m.owners.put(sg.OwnerID, sg.ID())
		}
	}
	errs = append(errs, cascade.Restore(ctx, m.deps, sg, state))
	return errors.Join(errs...)
}

func (m *serviceGroupManager) Get(ctx context.Context, pid identifier.ParticipantID) (*smp.ServiceGroup, error) {
	return m.GetByID(ctx, smp.ServiceGroupID(pid))
}

func (m *serviceGroupManager) GetByID(_ context.Context, id string) (*smp.ServiceGroup, error) {
	sg, ok := m.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("service group %s: %w", id, smp.ErrNotFound)
	}
	return sg, nil
}

func (m *serviceGroupManager) All(_ context.Context) ([]*smp.ServiceGroup, error) {
	return m.store.Values(), nil
}

func (m *serviceGroupManager) AllOfOwner(_ context.Context, ownerID string) ([]*smp.ServiceGroup, error) {
	var groups []*smp.ServiceGroup
	m.store.Read(func(v wal.View[*smp.ServiceGroup]) {
		for _, id := range m.owners.ids(ownerID) {
			if sg, ok := v.Get(id); ok {
				groups = append(groups, sg)
			}
		}
	})
	return groups, nil
}

func (m *serviceGroupManager) CountOfOwner(_ context.Context, ownerID string) (int, error) {
	var n int
	m.store.Read(func(wal.View[*smp.ServiceGroup]) {
		n = m.owners.count(ownerID)
	})
	return n, nil
}

func (m *serviceGroupManager) Contains(_ context.Context, pid identifier.ParticipantID) (bool, error) {
	return m.store.Contains(smp.ServiceGroupID(pid)), nil
}

func (m *serviceGroupManager) Count(_ context.Context) (int, error) {
	return m.store.Count(), nil
}

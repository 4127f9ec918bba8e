package xmlfile

import (
	"context"
	"fmt"

	"github.com/PiccoloProcione/supersmp/internal/storage/wal"
	"github.com/PiccoloProcione/supersmp/pkg/smp"
)

// businessCardManager keys cards by service group ID, so it needs no index
type businessCardManager struct {
	store *wal.Store[*smp.BusinessCard]
}

func newBusinessCardManager(p *Provider) (*businessCardManager, error) {
	store, err := openStore[*smp.BusinessCard](p, StoreBusinessCards, businessCardCodec{}, nil)
	if err != nil {
		return nil, err
	}
	return &businessCardManager{store: store}, nil
}

func (m *businessCardManager) CreateOrUpdate(_ context.Context, sg *smp.ServiceGroup, entities []smp.BusinessEntity) (*smp.BusinessCard, error) {
	bc, err := smp.NewBusinessCard(sg, entities)
	if err != nil {
		return nil, err
	}
	if err := m.store.Write(func(tx *wal.Tx[*smp.BusinessCard]) error {
		_, err := tx.Put(bc)
		return err
	}); err != nil {
		return nil, err
	}
	return bc.Clone(), nil
}

func (m *businessCardManager) Delete(ctx context.Context, bc *smp.BusinessCard) (smp.Change, error) {
	if bc == nil {
		return smp.Unchanged, nil
	}
	return m.delete(bc.ID())
}

func (m *businessCardManager) DeleteAllOfServiceGroup(_ context.Context, sg *smp.ServiceGroup) (smp.Change, error) {
	return m.delete(sg.ID())
}

func (m *businessCardManager) delete(id string) (smp.Change, error) {
	var change smp.Change
	err := m.store.Write(func(tx *wal.Tx[*smp.BusinessCard]) error {
		_, found, err := tx.Delete(id)
		change = smp.Change(found)
		return err
	})
	return change, err
}

func (m *businessCardManager) OfServiceGroup(_ context.Context, sg *smp.ServiceGroup) (*smp.BusinessCard, error) {
	bc, ok := m.store.Get(sg.ID())
	if !ok {
		return nil, fmt.Errorf("business card %s: %w", sg.ID(), smp.ErrNotFound)
	}
	return bc, nil
}

func (m *businessCardManager) All(_ context.Context) ([]*smp.BusinessCard, error) {
	return m.store.Values(), nil
}

func (m *businessCardManager) Count(_ context.Context) (int, error) {
	return m.store.Count(), nil
}

package mongodb

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/PiccoloProcione/supersmp/pkg/smp"
)

// businessCardManager stores cards under the ID of their service group
type businessCardManager struct {
	mu    sync.RWMutex
	store *Store
	coll  *mongo.Collection
}

func (m *businessCardManager) CreateOrUpdate(ctx context.Context, sg *smp.ServiceGroup, entities []smp.BusinessEntity) (*smp.BusinessCard, error) {
	bc, err := smp.NewBusinessCard(sg, entities)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := replace(ctx, m.store, m.coll, bc.ID(), toBusinessCardDoc(bc)); err != nil {
		return nil, err
	}
	return bc.Clone(), nil
}

func (m *businessCardManager) Delete(ctx context.Context, bc *smp.BusinessCard) (smp.Change, error) {
	if bc == nil {
		return smp.Unchanged, nil
	}
	return m.delete(ctx, bc.ID())
}

func (m *businessCardManager) DeleteAllOfServiceGroup(ctx context.Context, sg *smp.ServiceGroup) (smp.Change, error) {
	return m.delete(ctx, sg.ID())
}

func (m *businessCardManager) delete(ctx context.Context, id string) (smp.Change, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return deleteMany(ctx, m.store, m.coll, bson.M{"_id": id})
}

func (m *businessCardManager) OfServiceGroup(ctx context.Context, sg *smp.ServiceGroup) (*smp.BusinessCard, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, err := findOne[businessCardDoc](ctx, m.store, m.coll, sg.ID())
	if err != nil {
		return nil, err
	}
	return fromBusinessCardDoc(doc)
}

func (m *businessCardManager) All(ctx context.Context) ([]*smp.BusinessCard, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return findAll(ctx, m.store, m.coll, bson.M{}, fromBusinessCardDoc)
}

func (m *businessCardManager) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return count(ctx, m.store, m.coll, bson.M{})
}

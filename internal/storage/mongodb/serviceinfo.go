package mongodb

import (
	"context"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/PiccoloProcione/supersmp/pkg/identifier"
	"github.com/PiccoloProcione/supersmp/pkg/smp"
)

type serviceInformationManager struct {
	mu    sync.RWMutex
	store *Store
	coll  *mongo.Collection
}

// Merge replaces the stored document for the key of si as a whole
func (m *serviceInformationManager) Merge(ctx context.Context, si *smp.ServiceInformation) error {
	if err := si.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return replace(ctx, m.store, m.coll, si.ID(), toServiceInfoDoc(si))
}

func (m *serviceInformationManager) Find(ctx context.Context, sg *smp.ServiceGroup, docType identifier.DocumentTypeID, processID identifier.ProcessID, transportProfile string) (*smp.ServiceInformation, error) {
	si, err := m.OfServiceGroupAndDocumentType(ctx, sg, docType)
	if err != nil {
		return nil, err
	}
	p := si.Process(processID)
	if p == nil || !p.ContainsAnyEndpointWithTransportProfile(transportProfile) {
		return nil, fmt.Errorf("endpoint %s for %s in %s: %w", transportProfile, processID, si.ID(), smp.ErrNotFound)
	}
	return si, nil
}

func (m *serviceInformationManager) Delete(ctx context.Context, si *smp.ServiceInformation) (smp.Change, error) {
	if si == nil {
		return smp.Unchanged, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return deleteMany(ctx, m.store, m.coll, bson.M{"_id": si.ID()})
}

func (m *serviceInformationManager) DeleteAllOfServiceGroup(ctx context.Context, sg *smp.ServiceGroup) (smp.Change, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return deleteMany(ctx, m.store, m.coll, bson.M{"service_group_id": sg.ID()})
}

func (m *serviceInformationManager) OfServiceGroupAndDocumentType(ctx context.Context, sg *smp.ServiceGroup, docType identifier.DocumentTypeID) (*smp.ServiceInformation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, err := findOne[serviceInfoDoc](ctx, m.store, m.coll, smp.ServiceInformationID(sg.ID(), docType))
	if err != nil {
		return nil, err
	}
	si, err := fromServiceInfoDoc(doc)
	if err != nil {
		return nil, persistenceError("decode", m.coll, err)
	}
	return si, nil
}

func (m *serviceInformationManager) AllOfServiceGroup(ctx context.Context, sg *smp.ServiceGroup) ([]*smp.ServiceInformation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return findAll(ctx, m.store, m.coll, bson.M{"service_group_id": sg.ID()}, fromServiceInfoDoc)
}

func (m *serviceInformationManager) All(ctx context.Context) ([]*smp.ServiceInformation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return findAll(ctx, m.store, m.coll, bson.M{}, fromServiceInfoDoc)
}

func (m *serviceInformationManager) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return count(ctx, m.store, m.coll, bson.M{})
}

func (m *serviceInformationManager) DocumentTypesOfServiceGroup(ctx context.Context, sg *smp.ServiceGroup) ([]identifier.DocumentTypeID, error) {
	infos, err := m.AllOfServiceGroup(ctx, sg)
	if err != nil {
		return nil, err
	}
	docTypes := make([]identifier.DocumentTypeID, 0, len(infos))
	for _, si := range infos {
		docTypes = append(docTypes, si.DocumentTypeID)
	}
	return docTypes, nil
}

func (m *serviceInformationManager) TotalEndpointCount(ctx context.Context, sg *smp.ServiceGroup) (int, error) {
	infos, err := m.AllOfServiceGroup(ctx, sg)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, si := range infos {
		total += si.TotalEndpointCount()
	}
	return total, nil
}

func (m *serviceInformationManager) ContainsAnyEndpointWithTransportProfile(ctx context.Context, transportProfile string) (bool, error) {
	if transportProfile == "" {
		return false, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	opCtx, cancel := m.store.op(ctx)
	defer cancel()
	n, err := m.coll.CountDocuments(opCtx,
		bson.M{"processes.endpoints.transport_profile": transportProfile},
		options.Count().SetLimit(1))
	if err != nil {
		return false, persistenceError("count", m.coll, err)
	}
	return n > 0, nil
}

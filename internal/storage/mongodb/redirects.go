package mongodb

import (
	"context"
	"crypto/x509"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/PiccoloProcione/supersmp/pkg/extension"
	"github.com/PiccoloProcione/supersmp/pkg/identifier"
	"github.com/PiccoloProcione/supersmp/pkg/smp"
)

type redirectManager struct {
	mu    sync.RWMutex
	store *Store
	coll  *mongo.Collection
}

func (m *redirectManager) CreateOrUpdate(ctx context.Context, sg *smp.ServiceGroup, docType identifier.DocumentTypeID, targetHref, subjectUniqueID string, cert *x509.Certificate, ext extension.Extension) (*smp.Redirect, error) {
	r, err := smp.NewRedirect(sg, docType, targetHref, subjectUniqueID, cert, ext)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := replace(ctx, m.store, m.coll, r.ID(), toRedirectDoc(r)); err != nil {
		return nil, err
	}
	return r.Clone(), nil
}

func (m *redirectManager) Delete(ctx context.Context, r *smp.Redirect) (smp.Change, error) {
	if r == nil {
		return smp.Unchanged, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return deleteMany(ctx, m.store, m.coll, bson.M{"_id": r.ID()})
}

func (m *redirectManager) DeleteAllOfServiceGroup(ctx context.Context, sg *smp.ServiceGroup) (smp.Change, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return deleteMany(ctx, m.store, m.coll, bson.M{"service_group_id": sg.ID()})
}

func (m *redirectManager) OfServiceGroupAndDocumentType(ctx context.Context, sg *smp.ServiceGroup, docType identifier.DocumentTypeID) (*smp.Redirect, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, err := findOne[redirectDoc](ctx, m.store, m.coll, smp.ServiceInformationID(sg.ID(), docType))
	if err != nil {
		return nil, err
	}
	r, err := fromRedirectDoc(doc)
	if err != nil {
		return nil, persistenceError("decode", m.coll, err)
	}
	return r, nil
}

func (m *redirectManager) AllOfServiceGroup(ctx context.Context, sg *smp.ServiceGroup) ([]*smp.Redirect, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return findAll(ctx, m.store, m.coll, bson.M{"service_group_id": sg.ID()}, fromRedirectDoc)
}

func (m *redirectManager) All(ctx context.Context) ([]*smp.Redirect, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return findAll(ctx, m.store, m.coll, bson.M{}, fromRedirectDoc)
}

func (m *redirectManager) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return count(ctx, m.store, m.coll, bson.M{})
}

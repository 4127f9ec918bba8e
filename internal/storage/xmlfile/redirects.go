package xmlfile

import (
	"context"
	"crypto/x509"
	"fmt"

	"github.com/PiccoloProcione/supersmp/internal/storage/wal"
	"github.com/PiccoloProcione/supersmp/pkg/extension"
	"github.com/PiccoloProcione/supersmp/pkg/identifier"
	"github.com/PiccoloProcione/supersmp/pkg/smp"
)

type redirectManager struct {
	store  *wal.Store[*smp.Redirect]
	groups *index
}

func newRedirectManager(p *Provider) (*redirectManager, error) {
	groups := newIndex()
	store, err := openStore[*smp.Redirect](p, StoreRedirects, redirectCodec{}, recovery[*smp.Redirect]{
		ix:  groups,
		key: func(r *smp.Redirect) string { return r.ServiceGroupID },
		id:  func(r *smp.Redirect) string { return r.ID() },
	})
	if err != nil {
		return nil, err
	}
	return &redirectManager{store: store, groups: groups}, nil
}

func (m *redirectManager) CreateOrUpdate(_ context.Context, sg *smp.ServiceGroup, docType identifier.DocumentTypeID, targetHref, subjectUniqueID string, cert *x509.Certificate, ext extension.Extension) (*smp.Redirect, error) {
	r, err := smp.NewRedirect(sg, docType, targetHref, subjectUniqueID, cert, ext)
	if err != nil {
		return nil, err
	}
	err = m.store.Write(func(tx *wal.Tx[*smp.Redirect]) error {
		if _, err := tx.Put(r); err != nil {
			return err
		}
		m.groups.put(r.ServiceGroupID, r.ID())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.Clone(), nil
}

func (m *redirectManager) Delete(_ context.Context, r *smp.Redirect) (smp.Change, error) {
	if r == nil {
		return smp.Unchanged, nil
	}
	var change smp.Change
	err := m.store.Write(func(tx *wal.Tx[*smp.Redirect]) error {
		_, found, err := tx.Delete(r.ID())
		if err != nil {
			return err
		}
		if found {
			m.groups.remove(r.ID())
			change = smp.Changed
		}
		return nil
	})
	return change, err
}

func (m *redirectManager) DeleteAllOfServiceGroup(_ context.Context, sg *smp.ServiceGroup) (smp.Change, error) {
	var change smp.Change
	err := m.store.Write(func(tx *wal.Tx[*smp.Redirect]) error {
		for _, id := range m.groups.ids(sg.ID()) {
			if _, _, err := tx.Delete(id); err != nil {
				return err
			}
			m.groups.remove(id)
			change = smp.Changed
		}
		return nil
	})
	return change, err
}

func (m *redirectManager) OfServiceGroupAndDocumentType(_ context.Context, sg *smp.ServiceGroup, docType identifier.DocumentTypeID) (*smp.Redirect, error) {
	id := smp.ServiceInformationID(sg.ID(), docType)
	r, ok := m.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("redirect %s: %w", id, smp.ErrNotFound)
	}
	return r, nil
}

func (m *redirectManager) AllOfServiceGroup(_ context.Context, sg *smp.ServiceGroup) ([]*smp.Redirect, error) {
	var redirects []*smp.Redirect
	m.store.Read(func(v wal.View[*smp.Redirect]) {
		for _, id := range m.groups.ids(sg.ID()) {
			if r, ok := v.Get(id); ok {
				redirects = append(redirects, r)
			}
		}
	})
	return redirects, nil
}

func (m *redirectManager) All(_ context.Context) ([]*smp.Redirect, error) {
	return m.store.Values(), nil
}

func (m *redirectManager) Count(_ context.Context) (int, error) {
	return m.store.Count(), nil
}

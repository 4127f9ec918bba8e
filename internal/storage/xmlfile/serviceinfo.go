package xmlfile

import (
	"context"
	"fmt"

	"github.com/PiccoloProcione/supersmp/internal/storage/wal"
	"github.com/PiccoloProcione/supersmp/pkg/identifier"
	"github.com/PiccoloProcione/supersmp/pkg/smp"
)

type serviceInformationManager struct {
	store  *wal.Store[*smp.ServiceInformation]
	groups *index
}

func newServiceInformationManager(p *Provider) (*serviceInformationManager, error) {
	groups := newIndex()
	store, err := openStore[*smp.ServiceInformation](p, StoreServiceInformation, serviceInformationCodec{}, recovery[*smp.ServiceInformation]{
		ix:  groups,
		key: func(si *smp.ServiceInformation) string { return si.ServiceGroupID },
		id:  func(si *smp.ServiceInformation) string { return si.ID() },
	})
	if err != nil {
		return nil, err
	}
	return &serviceInformationManager{store: store, groups: groups}, nil
}

// Merge replaces the stored entry for the key of si as a whole
func (m *serviceInformationManager) Merge(_ context.Context, si *smp.ServiceInformation) error {
	if err := si.Validate(); err != nil {
		return err
	}
	return m.store.Write(func(tx *wal.Tx[*smp.ServiceInformation]) error {
		if _, err := tx.Put(si); err != nil {
			return err
		}
		m.groups.put(si.ServiceGroupID, si.ID())
		return nil
	})
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

func (m *serviceInformationManager) Delete(_ context.Context, si *smp.ServiceInformation) (smp.Change, error) {
	if si == nil {
		return smp.Unchanged, nil
	}
	var change smp.Change
	err := m.store.Write(func(tx *wal.Tx[*smp.ServiceInformation]) error {
		_, found, err := tx.Delete(si.ID())
		if err != nil {
			return err
		}
		if found {
			m.groups.remove(si.ID())
			change = smp.Changed
		}
		return nil
	})
	return change, err
}

func (m *serviceInformationManager) DeleteAllOfServiceGroup(_ context.Context, sg *smp.ServiceGroup) (smp.Change, error) {
	var change smp.Change
	err := m.store.Write(func(tx *wal.Tx[*smp.ServiceInformation]) error {
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

func (m *serviceInformationManager) OfServiceGroupAndDocumentType(_ context.Context, sg *smp.ServiceGroup, docType identifier.DocumentTypeID) (*smp.ServiceInformation, error) {
	id := smp.ServiceInformationID(sg.ID(), docType)
	si, ok := m.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("service information %s: %w", id, smp.ErrNotFound)
	}
	return si, nil
}

func (m *serviceInformationManager) AllOfServiceGroup(_ context.Context, sg *smp.ServiceGroup) ([]*smp.ServiceInformation, error) {
	var infos []*smp.ServiceInformation
	m.store.Read(func(v wal.View[*smp.ServiceInformation]) {
		for _, id := range m.groups.ids(sg.ID()) {
			if si, ok := v.Get(id); ok {
				infos = append(infos, si)
			}
		}
	})
	return infos, nil
}

func (m *serviceInformationManager) All(_ context.Context) ([]*smp.ServiceInformation, error) {
	return m.store.Values(), nil
}

func (m *serviceInformationManager) Count(_ context.Context) (int, error) {
	return m.store.Count(), nil
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

func (m *serviceInformationManager) TotalEndpointCount(_ context.Context, sg *smp.ServiceGroup) (int, error) {
	total := 0
	m.store.Read(func(v wal.View[*smp.ServiceInformation]) {
		for _, id := range m.groups.ids(sg.ID()) {
			if si, ok := v.Get(id); ok {
				total += si.TotalEndpointCount()
			}
		}
	})
	return total, nil
}

func (m *serviceInformationManager) ContainsAnyEndpointWithTransportProfile(_ context.Context, transportProfile string) (bool, error) {
	var found bool
	m.store.Read(func(v wal.View[*smp.ServiceInformation]) {
		found = len(v.Filter(func(si *smp.ServiceInformation) bool {
			return si.ContainsAnyEndpointWithTransportProfile(transportProfile)
		})) > 0
	})
	return found, nil
}

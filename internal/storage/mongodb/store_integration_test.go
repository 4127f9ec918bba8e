//go:build integration

package mongodb_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	tcmongodb "github.com/testcontainers/testcontainers-go/modules/mongodb"

	"github.com/PiccoloProcione/supersmp/internal/registration/registrationtest"
	"github.com/PiccoloProcione/supersmp/internal/storage/mongodb"
	"github.com/PiccoloProcione/supersmp/pkg/extension"
	"github.com/PiccoloProcione/supersmp/pkg/identifier"
	"github.com/PiccoloProcione/supersmp/pkg/smp"
)

type managers struct {
	sg smp.ServiceGroupManager
	rm smp.RedirectManager
	si smp.ServiceInformationManager
	bc smp.BusinessCardManager
}

func (m *managers) RedirectManager() smp.RedirectManager                       { return m.rm }
func (m *managers) ServiceInformationManager() smp.ServiceInformationManager { return m.si }
func (m *managers) BusinessCardManager() smp.BusinessCardManager             { return m.bc }

type StoreSuite struct {
	suite.Suite
	container *tcmongodb.MongoDBContainer
	uri       string
}

func TestStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupSuite() {
	ctx := context.Background()
	container, err := tcmongodb.Run(ctx, "mongo:7")
	s.Require().NoError(err)
	s.container = container

	s.uri, err = container.ConnectionString(ctx)
	s.Require().NoError(err)
}

func (s *StoreSuite) TearDownSuite() {
	if s.container != nil {
		_ = s.container.Terminate(context.Background())
	}
}

// open creates managers on a fresh database
func (s *StoreSuite) open(hook smp.RegistrationHook) *managers {
	ctx := context.Background()
	store, err := mongodb.NewStore(ctx, mongodb.Config{
		URI:      s.uri,
		Database: "smp_" + uuid.NewString()[:8],
	})
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = store.Close(context.Background()) })

	m := &managers{}
	m.sg, err = store.NewServiceGroupManager(hook, m)
	s.Require().NoError(err)
	m.rm, err = store.NewRedirectManager()
	s.Require().NoError(err)
	m.si, err = store.NewServiceInformationManager()
	s.Require().NoError(err)
	m.bc, err = store.NewBusinessCardManager()
	s.Require().NoError(err)
	return m
}

var (
	pid     = identifier.ParticipantID{Scheme: "iso6523-actorid-upis", Value: "9915:test"}
	docType = identifier.DocumentTypeID{Scheme: "busdox-docid-qns", Value: "urn:doc::1"}
	procID  = identifier.ProcessID{Scheme: "cenbii-procid-ubl", Value: "urn:proc"}
)

const transportProfile = "peppol-transport-as4-v2_0"

func (s *StoreSuite) populate(m *managers) *smp.ServiceGroup {
	ctx := context.Background()
	sg, err := m.sg.Create(ctx, "owner", pid, extension.Extension{})
	s.Require().NoError(err)

	p, err := smp.NewProcess(procID, []*smp.Endpoint{{
		TransportProfile:  transportProfile,
		EndpointReference: "https://ap.example.com/as4",
	}}, extension.Extension{})
	s.Require().NoError(err)
	si, err := smp.NewServiceInformation(sg, docType, []*smp.Process{p}, extension.Extension{})
	s.Require().NoError(err)
	s.Require().NoError(m.si.Merge(ctx, si))

	_, err = m.rm.CreateOrUpdate(ctx, sg, identifier.DocumentTypeID{Scheme: "busdox-docid-qns", Value: "urn:doc::2"},
		"https://other.example.com", "CN=other", nil, extension.Extension{})
	s.Require().NoError(err)
	_, err = m.bc.CreateOrUpdate(ctx, sg, []smp.BusinessEntity{{Names: []smp.Name{{Name: "Acme"}}, CountryCode: "SE"}})
	s.Require().NoError(err)
	return sg
}

func (s *StoreSuite) TestCreateAndQuery() {
	ctx := context.Background()
	hook := registrationtest.NewHook(s.T())
	hook.AllowAll()
	m := s.open(hook)

	sg := s.populate(m)

	got, err := m.sg.Get(ctx, pid)
	s.Require().NoError(err)
	s.True(sg.Equal(got))

	n, err := m.sg.CountOfOwner(ctx, "owner")
	s.Require().NoError(err)
	s.Equal(1, n)

	found, err := m.si.Find(ctx, sg, docType, procID, transportProfile)
	s.Require().NoError(err)
	s.Equal(sg.ID(), found.ServiceGroupID)

	_, err = m.si.Find(ctx, sg, docType, procID, "other-profile")
	s.ErrorIs(err, smp.ErrNotFound)

	inUse, err := m.si.ContainsAnyEndpointWithTransportProfile(ctx, transportProfile)
	s.Require().NoError(err)
	s.True(inUse)

	total, err := m.si.TotalEndpointCount(ctx, sg)
	s.Require().NoError(err)
	s.Equal(1, total)
}

func (s *StoreSuite) TestDuplicateCreate() {
	ctx := context.Background()
	hook := registrationtest.NewHook(s.T())
	hook.On("CreateServiceGroup", mock.Anything, pid).Return(nil).Once()
	m := s.open(hook)

	_, err := m.sg.Create(ctx, "owner", pid, extension.Extension{})
	s.Require().NoError(err)

	_, err = m.sg.Create(ctx, "other", pid, extension.Extension{})
	s.ErrorIs(err, smp.ErrDuplicateID)
}

func (s *StoreSuite) TestDirectoryFailureStoresNothing() {
	ctx := context.Background()
	hook := registrationtest.NewHook(s.T())
	hook.On("CreateServiceGroup", mock.Anything, pid).Return(errors.New("sml down")).Once()
	m := s.open(hook)

	_, err := m.sg.Create(ctx, "owner", pid, extension.Extension{})
	s.ErrorIs(err, smp.ErrDirectory)

	ok, err := m.sg.Contains(ctx, pid)
	s.Require().NoError(err)
	s.False(ok)
}

func (s *StoreSuite) TestUpdate() {
	ctx := context.Background()
	hook := registrationtest.NewHook(s.T())
	hook.AllowAll()
	m := s.open(hook)
	sg := s.populate(m)

	change, err := m.sg.Update(ctx, sg.ID(), "owner", extension.Extension{})
	s.Require().NoError(err)
	s.Equal(smp.Unchanged, change)

	change, err = m.sg.Update(ctx, sg.ID(), "new-owner", extension.MustParse("<ext/>"))
	s.Require().NoError(err)
	s.Equal(smp.Changed, change)

	groups, err := m.sg.AllOfOwner(ctx, "new-owner")
	s.Require().NoError(err)
	s.Len(groups, 1)

	change, err = m.sg.Update(ctx, "unknown", "x", extension.Extension{})
	s.Require().NoError(err)
	s.Equal(smp.Unchanged, change)
}

func (s *StoreSuite) TestCascadeDelete() {
	ctx := context.Background()
	hook := registrationtest.NewHook(s.T())
	hook.AllowAll()
	m := s.open(hook)
	sg := s.populate(m)

	change, err := m.sg.Delete(ctx, pid)
	s.Require().NoError(err)
	s.Equal(smp.Changed, change)

	for name, countFn := range map[string]func(context.Context) (int, error){
		"service groups":      m.sg.Count,
		"redirects":           m.rm.Count,
		"service information": m.si.Count,
		"business cards":      m.bc.Count,
	} {
		n, err := countFn(ctx)
		s.Require().NoError(err)
		s.Zero(n, name)
	}

	_, err = m.bc.OfServiceGroup(ctx, sg)
	s.ErrorIs(err, smp.ErrNotFound)

	change, err = m.sg.Delete(ctx, pid)
	s.Require().NoError(err)
	s.Equal(smp.Unchanged, change)
}

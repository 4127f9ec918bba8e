package smp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PiccoloProcione/supersmp/pkg/extension"
	"github.com/PiccoloProcione/supersmp/pkg/identifier"
)

var (
	testDocType = identifier.DocumentTypeID{Scheme: "busdox-docid-qns", Value: "urn:doc"}
	testProcA   = identifier.ProcessID{Scheme: "cenbii-procid-ubl", Value: "urn:proc:a"}
	testProcB   = identifier.ProcessID{Scheme: "cenbii-procid-ubl", Value: "urn:proc:b"}
)

func testEndpoint(profile string) *Endpoint {
	return &Endpoint{TransportProfile: profile, EndpointReference: "https://ap.example.com/as4"}
}

func TestServiceGroupID(t *testing.T) {
	sg := NewServiceGroup("user1", testPID, extension.Extension{})
	assert.Equal(t, "iso6523-actorid-upis::9915:test", sg.ID())
	assert.NoError(t, sg.Validate())

	sg.OwnerID = ""
	assert.ErrorIs(t, sg.Validate(), ErrValidation)
}

func TestServiceInformation_ID(t *testing.T) {
	sg := NewServiceGroup("user1", testPID, extension.Extension{})
	si, err := NewServiceInformation(sg, testDocType, nil, extension.Extension{})
	require.NoError(t, err)
	assert.Equal(t, "iso6523-actorid-upis::9915:test-busdox-docid-qns::urn:doc", si.ID())
	assert.Equal(t, sg.ID(), si.ServiceGroupID)
}

func TestServiceInformation_DuplicateProcess(t *testing.T) {
	sg := NewServiceGroup("user1", testPID, extension.Extension{})
	p1, err := NewProcess(testProcA, []*Endpoint{testEndpoint("peppol-transport-as4-v2_0")}, extension.Extension{})
	require.NoError(t, err)
	p2, err := NewProcess(testProcA, nil, extension.Extension{})
	require.NoError(t, err)

	_, err = NewServiceInformation(sg, testDocType, []*Process{p1, p2}, extension.Extension{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestProcess_DuplicateEndpoint(t *testing.T) {
	_, err := NewProcess(testProcA, []*Endpoint{testEndpoint("p1"), testEndpoint("p1")}, extension.Extension{})
	assert.ErrorIs(t, err, ErrValidation)

	p, err := NewProcess(testProcA, []*Endpoint{testEndpoint("p1")}, extension.Extension{})
	require.NoError(t, err)
	replacement := testEndpoint("p1")
	replacement.EndpointReference = "https://other"
	require.NoError(t, p.SetEndpoint(replacement))
	assert.Len(t, p.Endpoints, 1)
	assert.Equal(t, "https://other", p.Endpoint("p1").EndpointReference)

	assert.Equal(t, Changed, p.DeleteEndpoint("p1"))
	assert.Equal(t, Unchanged, p.DeleteEndpoint("p1"))
}

func TestServiceInformation_Aggregates(t *testing.T) {
	sg := NewServiceGroup("user1", testPID, extension.Extension{})
	pa, _ := NewProcess(testProcA, []*Endpoint{testEndpoint("p1"), testEndpoint("p2")}, extension.Extension{})
	pb, _ := NewProcess(testProcB, []*Endpoint{testEndpoint("p3")}, extension.Extension{})
	si, err := NewServiceInformation(sg, testDocType, []*Process{pa, pb}, extension.Extension{})
	require.NoError(t, err)

	assert.Equal(t, 2, si.ProcessCount())
	assert.Equal(t, 3, si.TotalEndpointCount())
	assert.True(t, si.ContainsAnyEndpointWithTransportProfile("p3"))
	assert.False(t, si.ContainsAnyEndpointWithTransportProfile("p4"))
	assert.False(t, si.ContainsAnyEndpointWithTransportProfile(""))

	assert.Equal(t, Changed, si.DeleteProcess(testProcA))
	assert.Equal(t, 1, si.TotalEndpointCount())
	assert.Nil(t, si.Process(testProcA))
}

func TestServiceInformation_CloneIsDeep(t *testing.T) {
	sg := NewServiceGroup("user1", testPID, extension.Extension{})
	now := time.Now()
	ep := testEndpoint("p1")
	ep.ServiceActivation = &now
	pa, _ := NewProcess(testProcA, []*Endpoint{ep}, extension.Extension{})
	si, _ := NewServiceInformation(sg, testDocType, []*Process{pa}, extension.MustParse("<a/>"))

	c := si.Clone()
	require.True(t, si.Equal(c))

	c.Processes[0].Endpoints[0].EndpointReference = "changed"
	*c.Processes[0].Endpoints[0].ServiceActivation = now.Add(time.Hour)
	assert.Equal(t, "https://ap.example.com/as4", si.Processes[0].Endpoints[0].EndpointReference)
	assert.True(t, si.Processes[0].Endpoints[0].ServiceActivation.Equal(now))
	assert.False(t, si.Equal(c))
}

func TestServiceInformation_ServiceMetadata(t *testing.T) {
	sg := NewServiceGroup("user1", testPID, extension.Extension{})
	si, _ := NewServiceInformation(sg, testDocType, nil, extension.Extension{})

	_, err := si.ServiceMetadata()
	assert.True(t, errors.Is(err, ErrNoProcesses))

	pa, _ := NewProcess(testProcA, []*Endpoint{testEndpoint("p1")}, extension.Extension{})
	require.NoError(t, si.AddProcess(pa))
	md, err := si.ServiceMetadata()
	require.NoError(t, err)
	assert.Equal(t, testPID, md.ParticipantID)
	assert.Equal(t, testDocType, md.DocumentTypeID)
	require.Len(t, md.Processes, 1)
	assert.Equal(t, "https://ap.example.com/as4", md.Processes[0].Endpoints[0].EndpointURL)
}

func TestRedirect_Validate(t *testing.T) {
	sg := NewServiceGroup("user1", testPID, extension.Extension{})
	r, err := NewRedirect(sg, testDocType, "http://target", "suid", nil, extension.MustParse("<ext/>"))
	require.NoError(t, err)
	assert.Equal(t, "<ext/>", r.Extension.FirstXML())
	assert.True(t, r.Equal(r.Clone()))

	_, err = NewRedirect(sg, testDocType, "", "suid", nil, extension.Extension{})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = NewRedirect(nil, testDocType, "http://x", "", nil, extension.Extension{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestBusinessCard_Clone(t *testing.T) {
	sg := NewServiceGroup("user1", testPID, extension.Extension{})
	bc, err := NewBusinessCard(sg, []BusinessEntity{{
		Names:       []Name{{Name: "ACME", Language: "en"}},
		CountryCode: "SE",
		WebsiteURIs: []string{"https://acme.example"},
	}})
	require.NoError(t, err)
	assert.Equal(t, sg.ID(), bc.ID())

	c := bc.Clone()
	c.Entities[0].Names[0].Name = "Other"
	assert.Equal(t, "ACME", bc.Entities[0].Names[0].Name)
}

func TestCallbacks(t *testing.T) {
	var cbs Callbacks
	var created, deleted int
	cbs.Add(CallbackFuncs{
		Created: func(_ context.Context, sg *ServiceGroup) {
			created++
			sg.OwnerID = "mutated"
		},
		Deleted: func(_ context.Context, _ identifier.ParticipantID) { deleted++ },
	})
	cbs.Add(nil)

	sg := NewServiceGroup("user1", testPID, extension.Extension{})
	cbs.Created(context.Background(), sg)
	cbs.Updated(context.Background(), sg)
	cbs.Deleted(context.Background(), testPID)

	assert.Equal(t, 1, created)
	assert.Equal(t, 1, deleted)
	assert.Equal(t, "user1", sg.OwnerID)
}

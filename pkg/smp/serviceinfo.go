package smp

import (
	"fmt"
	"time"

	"github.com/PiccoloProcione/supersmp/pkg/discovery"
	"github.com/PiccoloProcione/supersmp/pkg/extension"
	"github.com/PiccoloProcione/supersmp/pkg/identifier"
)

// ServiceInformationID derives the key of the service information of a
// service group for a document type. Redirects use the same key shape.
func ServiceInformationID(serviceGroupID string, docType identifier.DocumentTypeID) string {
	return serviceGroupID + "-" + docType.URIEncoded()
}

// Endpoint is a place a participant receives documents at, for one transport profile.
type Endpoint struct {
	TransportProfile              string
	EndpointReference             string
	RequireBusinessLevelSignature bool
	MinimumAuthenticationLevel    string
	ServiceActivation             *time.Time
	ServiceExpiration             *time.Time
	// Certificate is the base64 encoded DER certificate of the endpoint
	Certificate             string
	ServiceDescription      string
	TechnicalContactURL     string
	TechnicalInformationURL string
	Extension               extension.Extension
}

// Clone returns a deep copy
func (e *Endpoint) Clone() *Endpoint {
	if e == nil {
		return nil
	}
	c := *e
	if e.ServiceActivation != nil {
		t := *e.ServiceActivation
		c.ServiceActivation = &t
	}
	if e.ServiceExpiration != nil {
		t := *e.ServiceExpiration
		c.ServiceExpiration = &t
	}
	c.Extension = extension.New(e.Extension.Items()...)
	return &c
}

// Equal reports whether both endpoints hold the same data
func (e *Endpoint) Equal(o *Endpoint) bool {
	if e == nil || o == nil {
		return e == o
	}
	return e.TransportProfile == o.TransportProfile &&
		e.EndpointReference == o.EndpointReference &&
		e.RequireBusinessLevelSignature == o.RequireBusinessLevelSignature &&
		e.MinimumAuthenticationLevel == o.MinimumAuthenticationLevel &&
		timeEqual(e.ServiceActivation, o.ServiceActivation) &&
		timeEqual(e.ServiceExpiration, o.ServiceExpiration) &&
		e.Certificate == o.Certificate &&
		e.ServiceDescription == o.ServiceDescription &&
		e.TechnicalContactURL == o.TechnicalContactURL &&
		e.TechnicalInformationURL == o.TechnicalInformationURL &&
		e.Extension.Equal(o.Extension)
}

func timeEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// Process groups the endpoints of one business process.
// Endpoints are unique by transport profile.
type Process struct {
	ProcessID identifier.ProcessID
	Endpoints []*Endpoint
	Extension extension.Extension
}

// NewProcess creates a process. It fails if two endpoints share a transport profile.
func NewProcess(pid identifier.ProcessID, endpoints []*Endpoint, ext extension.Extension) (*Process, error) {
	p := &Process{ProcessID: pid, Extension: ext}
	for _, ep := range endpoints {
		if err := p.AddEndpoint(ep); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Endpoint returns the endpoint for the transport profile, or nil
func (p *Process) Endpoint(transportProfile string) *Endpoint {
	for _, ep := range p.Endpoints {
		if ep.TransportProfile == transportProfile {
			return ep
		}
	}
	return nil
}

// AddEndpoint adds an endpoint; the transport profile must not be in use yet.
func (p *Process) AddEndpoint(ep *Endpoint) error {
	if ep == nil || ep.TransportProfile == "" {
		return Validation(fmt.Errorf("endpoint without transport profile in process %s", p.ProcessID))
	}
	if p.Endpoint(ep.TransportProfile) != nil {
		return Validation(fmt.Errorf("process %s already has an endpoint for %q", p.ProcessID, ep.TransportProfile))
	}
	p.Endpoints = append(p.Endpoints, ep)
	return nil
}

// SetEndpoint adds or replaces the endpoint for its transport profile
func (p *Process) SetEndpoint(ep *Endpoint) error {
	if ep == nil || ep.TransportProfile == "" {
		return Validation(fmt.Errorf("endpoint without transport profile in process %s", p.ProcessID))
	}
	for i, cur := range p.Endpoints {
		if cur.TransportProfile == ep.TransportProfile {
			p.Endpoints[i] = ep
			return nil
		}
	}
	p.Endpoints = append(p.Endpoints, ep)
	return nil
}

// DeleteEndpoint removes the endpoint for the transport profile
func (p *Process) DeleteEndpoint(transportProfile string) Change {
	for i, cur := range p.Endpoints {
		if cur.TransportProfile == transportProfile {
			p.Endpoints = append(p.Endpoints[:i], p.Endpoints[i+1:]...)
			return Changed
		}
	}
	return Unchanged
}

// ContainsAnyEndpointWithTransportProfile reports whether an endpoint uses the profile
func (p *Process) ContainsAnyEndpointWithTransportProfile(transportProfile string) bool {
	return transportProfile != "" && p.Endpoint(transportProfile) != nil
}

// Clone returns a deep copy
func (p *Process) Clone() *Process {
	if p == nil {
		return nil
	}
	c := &Process{
		ProcessID: p.ProcessID,
		Extension: extension.New(p.Extension.Items()...),
	}
	if len(p.Endpoints) > 0 {
		c.Endpoints = make([]*Endpoint, len(p.Endpoints))
		for i, ep := range p.Endpoints {
			c.Endpoints[i] = ep.Clone()
		}
	}
	return c
}

// Equal reports whether both processes hold the same data
func (p *Process) Equal(o *Process) bool {
	if p == nil || o == nil {
		return p == o
	}
	if !p.ProcessID.Equal(o.ProcessID) || !p.Extension.Equal(o.Extension) || len(p.Endpoints) != len(o.Endpoints) {
		return false
	}
	for i := range p.Endpoints {
		if !p.Endpoints[i].Equal(o.Endpoints[i]) {
			return false
		}
	}
	return true
}

// ServiceInformation lists the processes and endpoints a service group
// publishes for one document type. Processes keep their insertion order and
// are unique by process identifier.
type ServiceInformation struct {
	ServiceGroupID string
	ParticipantID  identifier.ParticipantID
	DocumentTypeID identifier.DocumentTypeID
	Processes      []*Process
	Extension      extension.Extension
}

// NewServiceInformation creates service information for a group. It fails on
// duplicate process identifiers.
func NewServiceInformation(sg *ServiceGroup, docType identifier.DocumentTypeID, processes []*Process, ext extension.Extension) (*ServiceInformation, error) {
	if sg == nil {
		return nil, Validation(errNilServiceGroup)
	}
	si := &ServiceInformation{
		ServiceGroupID: sg.ID(),
		ParticipantID:  sg.ParticipantID,
		DocumentTypeID: docType,
		Extension:      ext,
	}
	for _, p := range processes {
		if err := si.AddProcess(p); err != nil {
			return nil, err
		}
	}
	return si, nil
}

// ID returns the key of the service information
func (si *ServiceInformation) ID() string {
	return ServiceInformationID(si.ServiceGroupID, si.DocumentTypeID)
}

// ProcessCount returns the number of processes
func (si *ServiceInformation) ProcessCount() int {
	return len(si.Processes)
}

// Process returns the process with the identifier, or nil
func (si *ServiceInformation) Process(pid identifier.ProcessID) *Process {
	for _, p := range si.Processes {
		if p.ProcessID.Equal(pid) {
			return p
		}
	}
	return nil
}

// AddProcess appends a process. The process identifier must not be in use yet.
func (si *ServiceInformation) AddProcess(p *Process) error {
	if p == nil {
		return Validation(fmt.Errorf("nil process in %s", si.ID()))
	}
	if si.Process(p.ProcessID) != nil {
		return Validation(fmt.Errorf("process %s is already contained in %s", p.ProcessID, si.ID()))
	}
	si.Processes = append(si.Processes, p)
	return nil
}

// DeleteProcess removes the process with the identifier
func (si *ServiceInformation) DeleteProcess(pid identifier.ProcessID) Change {
	for i, p := range si.Processes {
		if p.ProcessID.Equal(pid) {
			si.Processes = append(si.Processes[:i], si.Processes[i+1:]...)
			return Changed
		}
	}
	return Unchanged
}

// TotalEndpointCount sums the endpoints of all processes
func (si *ServiceInformation) TotalEndpointCount() int {
	n := 0
	for _, p := range si.Processes {
		n += len(p.Endpoints)
	}
	return n
}

// ContainsAnyEndpointWithTransportProfile reports whether any process has an
// endpoint for the profile
func (si *ServiceInformation) ContainsAnyEndpointWithTransportProfile(transportProfile string) bool {
	if transportProfile == "" {
		return false
	}
	for _, p := range si.Processes {
		if p.ContainsAnyEndpointWithTransportProfile(transportProfile) {
			return true
		}
	}
	return false
}

// Validate checks the invariants of the service information
func (si *ServiceInformation) Validate() error {
	if si == nil {
		return Validation(fmt.Errorf("service information is nil"))
	}
	if si.ServiceGroupID == "" || si.ServiceGroupID != ServiceGroupID(si.ParticipantID) {
		return Validation(fmt.Errorf("service information has an invalid service group reference %q", si.ServiceGroupID))
	}
	if si.DocumentTypeID.IsZero() {
		return Validation(fmt.Errorf("service information %s has no document type", si.ServiceGroupID))
	}
	seen := make(map[string]bool, len(si.Processes))
	for _, p := range si.Processes {
		if p == nil {
			return Validation(fmt.Errorf("nil process in %s", si.ID()))
		}
		key := p.ProcessID.URIEncoded()
		if seen[key] {
			return Validation(fmt.Errorf("process %s is contained twice in %s", key, si.ID()))
		}
		seen[key] = true
	}
	return nil
}

// Clone returns a deep copy
func (si *ServiceInformation) Clone() *ServiceInformation {
	if si == nil {
		return nil
	}
	c := &ServiceInformation{
		ServiceGroupID: si.ServiceGroupID,
		ParticipantID:  si.ParticipantID,
		DocumentTypeID: si.DocumentTypeID,
		Extension:      extension.New(si.Extension.Items()...),
	}
	if len(si.Processes) > 0 {
		c.Processes = make([]*Process, len(si.Processes))
		for i, p := range si.Processes {
			c.Processes[i] = p.Clone()
		}
	}
	return c
}

// Equal reports whether both hold the same data
func (si *ServiceInformation) Equal(o *ServiceInformation) bool {
	if si == nil || o == nil {
		return si == o
	}
	if si.ID() != o.ID() || !si.Extension.Equal(o.Extension) || len(si.Processes) != len(o.Processes) {
		return false
	}
	for i := range si.Processes {
		if !si.Processes[i].Equal(o.Processes[i]) {
			return false
		}
	}
	return true
}

// ServiceMetadata converts the service information to its published form.
// The published form requires at least one process.
func (si *ServiceInformation) ServiceMetadata() (*discovery.ServiceMetadata, error) {
	if len(si.Processes) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoProcesses, si.ID())
	}

	md := &discovery.ServiceMetadata{
		ParticipantID:  si.ParticipantID,
		DocumentTypeID: si.DocumentTypeID,
		Extension:      si.Extension.FirstXML(),
	}
	for _, p := range si.Processes {
		pm := discovery.ProcessMetadata{ProcessID: p.ProcessID}
		for _, ep := range p.Endpoints {
			pm.Endpoints = append(pm.Endpoints, discovery.Endpoint{
				TransportProfile:              ep.TransportProfile,
				EndpointURL:                   ep.EndpointReference,
				Certificate:                   ep.Certificate,
				ServiceActivationDate:         ep.ServiceActivation,
				ServiceExpirationDate:         ep.ServiceExpiration,
				RequireBusinessLevelSignature: ep.RequireBusinessLevelSignature,
				MinimumAuthenticationLevel:    ep.MinimumAuthenticationLevel,
				TechnicalContactURL:           ep.TechnicalContactURL,
				TechnicalInformationURL:       ep.TechnicalInformationURL,
				Description:                   ep.ServiceDescription,
			})
		}
		md.Processes = append(md.Processes, pm)
	}
	return md, nil
}

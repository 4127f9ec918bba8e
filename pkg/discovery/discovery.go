package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/PiccoloProcione/supersmp/pkg/identifier"
)

// Resolver combines the BDXL lookup in the SML zone with a read of the SMP
// the lookup points to.
type Resolver struct {
	locator *Locator
	client  *Client
}

// Config configures a Resolver
type Config struct {
	Locator LocatorConfig
	Client  ClientConfig
}

// NewResolver creates a resolver
func NewResolver(config Config) *Resolver {
	return &Resolver{
		locator: NewLocator(config.Locator),
		client:  NewClient(config.Client),
	}
}

// Resolution is the result of resolving a participant
type Resolution struct {
	// SMPURL is the SMP the SML points the participant to
	SMPURL string
	// ServiceGroup is what that SMP publishes for the participant
	ServiceGroup *ServiceGroup
}

// Resolve locates the SMP of the participant and reads its service group there.
func (r *Resolver) Resolve(ctx context.Context, pid identifier.ParticipantID) (*Resolution, error) {
	smpURL, err := r.locator.LocateSMP(ctx, pid)
	if err != nil {
		return nil, fmt.Errorf("BDXL discovery failed: %w", err)
	}

	sg, err := r.client.GetServiceGroup(ctx, smpURL, pid)
	if err != nil {
		return &Resolution{SMPURL: smpURL}, fmt.Errorf("SMP lookup failed: %w", err)
	}
	return &Resolution{SMPURL: smpURL, ServiceGroup: sg}, nil
}

// ResolveEndpoint finds the active endpoint for a document type, process and
// transport profile. An empty processID matches any process.
func (r *Resolver) ResolveEndpoint(ctx context.Context, pid identifier.ParticipantID, docType identifier.DocumentTypeID, processID identifier.ProcessID, transportProfile string) (*Endpoint, error) {
	smpURL, err := r.locator.LocateSMP(ctx, pid)
	if err != nil {
		return nil, fmt.Errorf("BDXL discovery failed: %w", err)
	}

	md, err := r.client.GetServiceMetadata(ctx, smpURL, pid, docType)
	if err != nil {
		return nil, fmt.Errorf("SMP lookup failed: %w", err)
	}

	var endpoints []Endpoint
	for _, p := range md.Processes {
		if processID.IsZero() || p.ProcessID.Equal(processID) {
			endpoints = append(endpoints, p.Endpoints...)
		}
	}
	if transportProfile != "" {
		endpoints = FilterEndpointsByTransport(endpoints, transportProfile)
	}
	active := ActiveEndpoints(endpoints, time.Now())
	if len(active) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrProcessNotFound, processID)
	}
	return &active[0], nil
}

// Locator returns the underlying BDXL locator
func (r *Resolver) Locator() *Locator {
	return r.locator
}

// Client returns the underlying SMP client
func (r *Resolver) Client() *Client {
	return r.client
}

package discovery

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PiccoloProcione/supersmp/pkg/identifier"
)

// SMP read errors
var (
	// ErrParticipantNotFound is returned when the SMP does not serve the participant
	ErrParticipantNotFound = errors.New("participant not found in SMP")
	// ErrProcessNotFound is returned when the process is not found
	ErrProcessNotFound = errors.New("process not found")
)

// ClientConfig configures an SMP read client
type ClientConfig struct {
	// HTTPClient is the HTTP client to use. Defaults to a client with a 30s timeout.
	HTTPClient *http.Client

	// UserAgent is the User-Agent header to send
	UserAgent string
}

// Client reads published metadata from an SMP over the SMP 1.0 REST binding.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
}

// NewClient creates an SMP read client
func NewClient(config ClientConfig) *Client {
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if config.UserAgent == "" {
		config.UserAgent = "supersmp/1.0"
	}
	return &Client{
		config:     config,
		httpClient: client,
	}
}

// ServiceGroup is a published service group
type ServiceGroup struct {
	ParticipantID     identifier.ParticipantID
	ServiceReferences []string
}

// ServiceMetadata is the published form of the service information of one
// participant and document type.
type ServiceMetadata struct {
	ParticipantID  identifier.ParticipantID
	DocumentTypeID identifier.DocumentTypeID
	Processes      []ProcessMetadata
	// Extension is the XML of the first extension, if any
	Extension string
}

// ProcessMetadata is a process within ServiceMetadata
type ProcessMetadata struct {
	ProcessID identifier.ProcessID
	Endpoints []Endpoint
}

// Endpoint is a published service endpoint
type Endpoint struct {
	TransportProfile              string
	EndpointURL                   string
	Certificate                   string
	ServiceActivationDate         *time.Time
	ServiceExpirationDate         *time.Time
	RequireBusinessLevelSignature bool
	MinimumAuthenticationLevel    string
	TechnicalContactURL           string
	TechnicalInformationURL       string
	Description                   string
}

// GetServiceGroup reads the service group of a participant
func (c *Client) GetServiceGroup(ctx context.Context, smpURL string, pid identifier.ParticipantID) (*ServiceGroup, error) {
	body, err := c.doRequest(ctx, serviceGroupURL(smpURL, pid))
	if err != nil {
		return nil, err
	}
	return parseServiceGroup(body)
}

// GetServiceMetadata reads the service metadata of a participant for a document type
func (c *Client) GetServiceMetadata(ctx context.Context, smpURL string, pid identifier.ParticipantID, docType identifier.DocumentTypeID) (*ServiceMetadata, error) {
	body, err := c.doRequest(ctx, serviceMetadataURL(smpURL, pid, docType))
	if err != nil {
		return nil, err
	}
	return parseServiceMetadata(body)
}

// serviceGroupURL returns <smpURL>/<participant>
func serviceGroupURL(smpURL string, pid identifier.ParticipantID) string {
	base := strings.TrimRight(smpURL, "/")
	return fmt.Sprintf("%s/%s", base, url.PathEscape(pid.URIEncoded()))
}

// serviceMetadataURL returns <smpURL>/<participant>/services/<document type>
func serviceMetadataURL(smpURL string, pid identifier.ParticipantID, docType identifier.DocumentTypeID) string {
	base := strings.TrimRight(smpURL, "/")
	return fmt.Sprintf("%s/%s/services/%s", base,
		url.PathEscape(pid.URIEncoded()), url.PathEscape(docType.URIEncoded()))
}

func (c *Client) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/xml")
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("SMP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrParticipantNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("SMP returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

type xmlIdentifier struct {
	Value  string `xml:",chardata"`
	Scheme string `xml:"scheme,attr"`
}

type smp10ServiceGroup struct {
	XMLName                            xml.Name      `xml:"ServiceGroup"`
	ParticipantIdentifier              xmlIdentifier `xml:"ParticipantIdentifier"`
	ServiceMetadataReferenceCollection struct {
		References []struct {
			Href string `xml:"href,attr"`
		} `xml:"ServiceMetadataReference"`
	} `xml:"ServiceMetadataReferenceCollection"`
}

type smp10Endpoint struct {
	TransportProfile              string `xml:"transportProfile,attr"`
	EndpointURI                   string `xml:"EndpointURI"`
	EndpointAddress               string `xml:"EndpointReference>Address"`
	RequireBusinessLevelSignature string `xml:"RequireBusinessLevelSignature"`
	MinimumAuthenticationLevel    string `xml:"MinimumAuthenticationLevel"`
	ServiceActivationDate         string `xml:"ServiceActivationDate"`
	ServiceExpirationDate         string `xml:"ServiceExpirationDate"`
	Certificate                   string `xml:"Certificate"`
	ServiceDescription            string `xml:"ServiceDescription"`
	TechnicalContactURL           string `xml:"TechnicalContactUrl"`
	TechnicalInformationURL       string `xml:"TechnicalInformationUrl"`
}

type smp10ServiceInformation struct {
	ParticipantIdentifier xmlIdentifier `xml:"ParticipantIdentifier"`
	DocumentIdentifier    xmlIdentifier `xml:"DocumentIdentifier"`
	Processes             []struct {
		ProcessIdentifier xmlIdentifier   `xml:"ProcessIdentifier"`
		Endpoints         []smp10Endpoint `xml:"ServiceEndpointList>Endpoint"`
	} `xml:"ProcessList>Process"`
}

// Both the signed and the unsigned document carry ServiceInformation
type smp10Metadata struct {
	Signed   smp10ServiceInformation `xml:"ServiceMetadata>ServiceInformation"`
	Unsigned smp10ServiceInformation `xml:"ServiceInformation"`
}

func parseServiceGroup(data []byte) (*ServiceGroup, error) {
	var sg smp10ServiceGroup
	if err := xml.Unmarshal(data, &sg); err != nil {
		return nil, fmt.Errorf("failed to parse ServiceGroup: %w", err)
	}

	result := &ServiceGroup{
		ParticipantID: identifier.ParticipantID{
			Scheme: strings.TrimSpace(sg.ParticipantIdentifier.Scheme),
			Value:  strings.TrimSpace(sg.ParticipantIdentifier.Value),
		},
	}
	for _, ref := range sg.ServiceMetadataReferenceCollection.References {
		result.ServiceReferences = append(result.ServiceReferences, ref.Href)
	}
	return result, nil
}

func parseServiceMetadata(data []byte) (*ServiceMetadata, error) {
	var md smp10Metadata
	if err := xml.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("failed to parse ServiceMetadata: %w", err)
	}

	si := md.Signed
	if si.DocumentIdentifier.Value == "" {
		si = md.Unsigned
	}

	result := &ServiceMetadata{
		ParticipantID: identifier.ParticipantID{
			Scheme: strings.TrimSpace(si.ParticipantIdentifier.Scheme),
			Value:  strings.TrimSpace(si.ParticipantIdentifier.Value),
		},
		DocumentTypeID: identifier.DocumentTypeID{
			Scheme: strings.TrimSpace(si.DocumentIdentifier.Scheme),
			Value:  strings.TrimSpace(si.DocumentIdentifier.Value),
		},
	}

	for _, p := range si.Processes {
		pm := ProcessMetadata{
			ProcessID: identifier.ProcessID{
				Scheme: strings.TrimSpace(p.ProcessIdentifier.Scheme),
				Value:  strings.TrimSpace(p.ProcessIdentifier.Value),
			},
		}
		for _, ep := range p.Endpoints {
			endpoint := Endpoint{
				TransportProfile:              ep.TransportProfile,
				EndpointURL:                   ep.EndpointURI,
				Certificate:                   strings.TrimSpace(ep.Certificate),
				RequireBusinessLevelSignature: strings.TrimSpace(ep.RequireBusinessLevelSignature) == "true",
				MinimumAuthenticationLevel:    ep.MinimumAuthenticationLevel,
				TechnicalContactURL:           ep.TechnicalContactURL,
				TechnicalInformationURL:       ep.TechnicalInformationURL,
				Description:                   ep.ServiceDescription,
			}
			if endpoint.EndpointURL == "" {
				endpoint.EndpointURL = ep.EndpointAddress
			}
			endpoint.ServiceActivationDate = parseDate(ep.ServiceActivationDate)
			endpoint.ServiceExpirationDate = parseDate(ep.ServiceExpirationDate)
			pm.Endpoints = append(pm.Endpoints, endpoint)
		}
		result.Processes = append(result.Processes, pm)
	}

	return result, nil
}

func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// Transport profile constants
const (
	TransportPeppolAS4V2 = "peppol-transport-as4-v2_0"
	TransportAS4V2       = "bdxr-transport-ebms3-as4-v2p0"
	TransportAS4V1       = "busdox-transport-ebms3-as4-v1p0"
)

// FilterEndpointsByTransport returns the endpoints using transportProfile
func FilterEndpointsByTransport(endpoints []Endpoint, transportProfile string) []Endpoint {
	var result []Endpoint
	for _, ep := range endpoints {
		if ep.TransportProfile == transportProfile {
			result = append(result, ep)
		}
	}
	return result
}

// ActiveEndpoints returns the endpoints whose validity window contains now
func ActiveEndpoints(endpoints []Endpoint, now time.Time) []Endpoint {
	var result []Endpoint
	for _, ep := range endpoints {
		if ep.ServiceActivationDate != nil && ep.ServiceActivationDate.After(now) {
			continue
		}
		if ep.ServiceExpirationDate != nil && ep.ServiceExpirationDate.Before(now) {
			continue
		}
		result = append(result, ep)
	}
	return result
}

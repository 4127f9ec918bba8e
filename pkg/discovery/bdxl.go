package discovery

import (
	"context"
	"crypto/sha256"
	"encoding/base32"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/PiccoloProcione/supersmp/pkg/identifier"
)

// Lookup errors
var (
	// ErrNoRecordsFound is returned when the participant has no U-NAPTR records in the zone
	ErrNoRecordsFound = errors.New("no BDXL records found for participant")
	// ErrInvalidParticipant is returned for participant identifiers that cannot be looked up
	ErrInvalidParticipant = errors.New("invalid participant identifier")
	// ErrServiceNotFound is returned when no record matches the requested service
	ErrServiceNotFound = errors.New("no matching service found in BDXL records")
	// ErrInvalidNAPTRRecord is returned when a NAPTR record has invalid format
	ErrInvalidNAPTRRecord = errors.New("invalid NAPTR record format")
)

// ServiceType is the service field of a U-NAPTR record
type ServiceType string

const (
	// ServiceTypeSMP1 is the service type for SMP 1.0 (Meta:SMP)
	ServiceTypeSMP1 ServiceType = "Meta:SMP"
	// ServiceTypeSMP2 is the service type for OASIS SMP 2.0
	ServiceTypeSMP2 ServiceType = "oasis-bdxr-smp-2"
)

// Well known SML zones
const (
	ZoneSML  = "edelivery.tech.ec.europa.eu"
	ZoneSMK  = "acc.edelivery.tech.ec.europa.eu"
	dnsPort  = "53"
	hashSize = 52
)

// LocatorConfig configures a Locator
type LocatorConfig struct {
	// Zone is the DNS zone the SML publishes participants in
	Zone string

	// DNSServer is the DNS server to query, "host:port".
	// If empty the first server of /etc/resolv.conf is used.
	DNSServer string

	// Service is the preferred U-NAPTR service. Defaults to ServiceTypeSMP1.
	Service ServiceType

	// Timeout bounds a single DNS exchange. Defaults to 5s.
	Timeout time.Duration
}

// Locator finds the SMP a participant is registered to, using the BDXL
// U-NAPTR records the SML publishes.
//
// The query name of a participant is
//
//	<base32(sha256(lower(value)))>.<scheme>.<zone>
//
// with the base32 padding removed.
type Locator struct {
	config    LocatorConfig
	dnsClient *dns.Client
}

// NewLocator creates a locator for the given zone
func NewLocator(config LocatorConfig) *Locator {
	if config.Service == "" {
		config.Service = ServiceTypeSMP1
	}
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}
	config.Zone = strings.TrimSuffix(config.Zone, ".")
	return &Locator{
		config:    config,
		dnsClient: &dns.Client{Timeout: config.Timeout},
	}
}

// Zone returns the DNS zone queried by the locator
func (l *Locator) Zone() string {
	return l.config.Zone
}

// HashValue returns the BDXL label of a participant identifier value
func HashValue(value string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(value)))
	return strings.TrimRight(base32.StdEncoding.EncodeToString(sum[:]), "=")
}

// QueryDomain returns the DNS name looked up for the participant
func (l *Locator) QueryDomain(pid identifier.ParticipantID) (string, error) {
	if pid.Scheme == "" || pid.Value == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidParticipant, pid.URIEncoded())
	}
	if l.config.Zone == "" {
		return "", errors.New("no SML zone configured")
	}
	return fmt.Sprintf("%s.%s.%s", HashValue(pid.Value), strings.ToLower(pid.Scheme), l.config.Zone), nil
}

// LocateSMP returns the SMP URL the participant is registered to
func (l *Locator) LocateSMP(ctx context.Context, pid identifier.ParticipantID) (string, error) {
	queryDomain, err := l.QueryDomain(pid)
	if err != nil {
		return "", err
	}
	return l.lookupNAPTR(ctx, queryDomain)
}

func (l *Locator) dnsServer() (string, error) {
	if l.config.DNSServer != "" {
		return l.config.DNSServer, nil
	}
	config, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil {
		return "", fmt.Errorf("failed to read DNS config: %w", err)
	}
	if len(config.Servers) == 0 {
		return "", errors.New("no DNS servers configured")
	}
	port := config.Port
	if port == "" {
		port = dnsPort
	}
	return config.Servers[0] + ":" + port, nil
}

// lookupNAPTR queries the NAPTR records of queryDomain and extracts the SMP URL
func (l *Locator) lookupNAPTR(ctx context.Context, queryDomain string) (string, error) {
	server, err := l.dnsServer()
	if err != nil {
		return "", err
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(queryDomain), dns.TypeNAPTR)
	msg.RecursionDesired = true

	resp, _, err := l.dnsClient.ExchangeContext(ctx, msg, server)
	if err != nil {
		return "", fmt.Errorf("DNS lookup failed for %s: %w", queryDomain, err)
	}
	if resp.Rcode == dns.RcodeNameError {
		return "", fmt.Errorf("%w: %s", ErrNoRecordsFound, queryDomain)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return "", fmt.Errorf("DNS lookup failed for %s: %s", queryDomain, dns.RcodeToString[resp.Rcode])
	}

	var records []*dns.NAPTR
	for _, rr := range resp.Answer {
		if naptr, ok := rr.(*dns.NAPTR); ok {
			records = append(records, naptr)
		}
	}
	if len(records) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoRecordsFound, queryDomain)
	}

	return l.selectBestRecord(records)
}

// selectBestRecord picks the U record with the lowest order and preference,
// preferring the configured service over other SMP services.
func (l *Locator) selectBestRecord(records []*dns.NAPTR) (string, error) {
	var best *dns.NAPTR
	bestPreferred := false
	bestPriority := 0

	preferred := strings.ToLower(string(l.config.Service))
	for _, record := range records {
		if !strings.EqualFold(record.Flags, "U") {
			continue
		}
		service := strings.ToLower(record.Service)
		if service != preferred &&
			service != strings.ToLower(string(ServiceTypeSMP1)) &&
			service != strings.ToLower(string(ServiceTypeSMP2)) {
			continue
		}

		isPreferred := service == preferred
		priority := int(record.Order)*0x10000 + int(record.Preference)
		switch {
		case best == nil,
			isPreferred && !bestPreferred,
			isPreferred == bestPreferred && priority < bestPriority:
			best, bestPreferred, bestPriority = record, isPreferred, priority
		}
	}

	if best == nil {
		return "", ErrServiceNotFound
	}
	return extractURLFromRegexp(best.Regexp)
}

// extractURLFromRegexp extracts the URL from a NAPTR regexp field of the
// form "!<pattern>!<replacement>!".
func extractURLFromRegexp(regexpField string) (string, error) {
	if len(regexpField) < 3 {
		return "", ErrInvalidNAPTRRecord
	}
	delim := regexpField[:1]
	parts := strings.Split(regexpField, delim)
	if len(parts) < 3 {
		return "", fmt.Errorf("%w: invalid regexp format: %s", ErrInvalidNAPTRRecord, regexpField)
	}

	replacement := parts[2]
	if replacement == "" {
		return "", fmt.Errorf("%w: empty URL in regexp: %s", ErrInvalidNAPTRRecord, regexpField)
	}

	parsed, err := url.Parse(replacement)
	if err != nil {
		return "", fmt.Errorf("invalid URL in NAPTR record: %w", err)
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return "", fmt.Errorf("invalid URL scheme in NAPTR record: %s", parsed.Scheme)
	}

	return replacement, nil
}

// SameSMP reports whether two SMP URLs denote the same service, ignoring
// scheme case, host case and trailing slashes.
func SameSMP(a, b string) bool {
	ua, errA := url.Parse(strings.TrimRight(a, "/"))
	ub, errB := url.Parse(strings.TrimRight(b, "/"))
	if errA != nil || errB != nil {
		return strings.TrimRight(a, "/") == strings.TrimRight(b, "/")
	}
	return strings.EqualFold(ua.Scheme, ub.Scheme) &&
		strings.EqualFold(ua.Host, ub.Host) &&
		ua.Path == ub.Path
}

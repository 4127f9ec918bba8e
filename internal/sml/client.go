package sml

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/PiccoloProcione/supersmp/pkg/identifier"
	"github.com/PiccoloProcione/supersmp/pkg/smp"
)

// Client defaults
const (
	DefaultConnectTimeout  = 5 * time.Second
	DefaultRequestTimeout  = 30 * time.Second
	DefaultRetryInterval   = time.Second
	DefaultRetryMultiplier = 2.0
)

// Config configures the SML client
type Config struct {
	// ManagementURL is the ManageParticipantIdentifier endpoint
	ManagementURL string
	// SMPID is the ID this SMP is registered under in the SML
	SMPID string

	// Certificates are presented as TLS client certificates
	Certificates []tls.Certificate
	// GetClientCertificate, if set, is used instead of Certificates. It
	// lets the key material be loaded after the client is created.
	GetClientCertificate func(*tls.CertificateRequestInfo) (*tls.Certificate, error)
	// RootCAs verify the SML server; nil uses the system pool
	RootCAs *x509.CertPool

	ConnectTimeout time.Duration
	// RequestTimeout bounds one HTTP exchange
	RequestTimeout time.Duration

	// MaxRetries is the number of retries of a transient failure
	MaxRetries      int
	RetryInterval   time.Duration
	RetryMultiplier float64

	Logger *slog.Logger
	// HTTPClient replaces the client built from the TLS settings
	HTTPClient *http.Client
}

// Client registers participants in the SML
type Client struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

var _ smp.RegistrationHook = (*Client)(nil)

// NewClient creates an SML client
func NewClient(cfg Config) (*Client, error) {
	if cfg.ManagementURL == "" {
		return nil, errors.New("sml: management URL is required")
	}
	if cfg.SMPID == "" {
		return nil, errors.New("sml: SMP ID is required")
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	if cfg.RetryMultiplier < 1 {
		cfg.RetryMultiplier = DefaultRetryMultiplier
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	client := cfg.HTTPClient
	if client == nil {
		client = newHTTPClient(cfg)
	}

	return &Client{
		cfg:    cfg,
		client: client,
		logger: cfg.Logger.With("component", "sml", "smp_id", cfg.SMPID),
		sleep:  sleepContext,
	}, nil
}

func newHTTPClient(cfg Config) *http.Client {
	tlsConfig := &tls.Config{
		MinVersion:           tls.VersionTLS12,
		Certificates:         cfg.Certificates,
		GetClientCertificate: cfg.GetClientCertificate,
		RootCAs:              cfg.RootCAs,
	}
	transport := &http.Transport{
		TLSClientConfig:     tlsConfig,
		DialContext:         (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext,
		TLSHandshakeTimeout: cfg.ConnectTimeout,
		IdleConnTimeout:     90 * time.Second,
		MaxIdleConnsPerHost: 4,
	}
	return &http.Client{Transport: transport, Timeout: cfg.RequestTimeout}
}

// CreateServiceGroup registers pid with this SMP
func (c *Client) CreateServiceGroup(ctx context.Context, pid identifier.ParticipantID) error {
	return c.call(ctx, opCreate, pid)
}

// UndoCreateServiceGroup removes pid again. A participant the SML does not
// know is treated as removed.
func (c *Client) UndoCreateServiceGroup(ctx context.Context, pid identifier.ParticipantID) error {
	err := c.call(ctx, opDelete, pid)
	if errors.Is(err, ErrNotRegistered) {
		return nil
	}
	return err
}

// DeleteServiceGroup unregisters pid. A participant the SML does not know
// is treated as unregistered.
func (c *Client) DeleteServiceGroup(ctx context.Context, pid identifier.ParticipantID) error {
	err := c.call(ctx, opDelete, pid)
	if errors.Is(err, ErrNotRegistered) {
		c.logger.Warn("Participant was not registered in SML", "participant_id", pid.URIEncoded())
		return nil
	}
	return err
}

// UndoDeleteServiceGroup registers pid again. A participant the SML still
// knows is treated as registered.
func (c *Client) UndoDeleteServiceGroup(ctx context.Context, pid identifier.ParticipantID) error {
	err := c.call(ctx, opCreate, pid)
	if errors.Is(err, ErrAlreadyRegistered) {
		return nil
	}
	return err
}

// call runs op, retrying transient failures with exponential backoff
func (c *Client) call(ctx context.Context, op string, pid identifier.ParticipantID) error {
	messageID := uuid.NewString()
	logger := c.logger.With("op", op, "participant_id", pid.URIEncoded(), "message_id", messageID)

	body, err := buildRequest(op, messageID, c.cfg.SMPID, pid)
	if err != nil {
		return err
	}

	for attempt := 0; ; attempt++ {
		err = c.send(ctx, op, body)
		if err == nil {
			logger.Info("SML call succeeded", "attempts", attempt+1)
			return nil
		}
		if !IsRetryable(err) || attempt >= c.cfg.MaxRetries {
			logger.Warn("SML call failed", "attempts", attempt+1, "error", err)
			return fmt.Errorf("SML %s of %s: %w", op, pid, err)
		}

		delay := c.backoff(attempt)
		logger.Debug("Retrying SML call", "attempt", attempt+1, "delay", delay, "error", err)
		if err := c.sleep(ctx, delay); err != nil {
			return fmt.Errorf("SML %s of %s: %w", op, pid, err)
		}
	}
}

// backoff is the delay before retry attempt+1
func (c *Client) backoff(attempt int) time.Duration {
	return time.Duration(float64(c.cfg.RetryInterval) * math.Pow(c.cfg.RetryMultiplier, float64(attempt)))
}

func (c *Client) send(ctx context.Context, op string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ManagementURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", `"`+soapAction(op)+`"`)
	req.Header.Set("User-Agent", "supersmp/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &transientError{err: fmt.Errorf("failed to send request: %w", err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &transientError{err: fmt.Errorf("failed to read response: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return parseResponse(data)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode == http.StatusInternalServerError:
		// SOAP 1.1 delivers faults with status 500
		if faultErr := parseResponse(data); faultErr != nil {
			var f *Fault
			if errors.As(faultErr, &f) {
				return f
			}
		}
		return &transientError{err: fmt.Errorf("unexpected status code %d", resp.StatusCode)}
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return &transientError{err: fmt.Errorf("unexpected status code %d", resp.StatusCode)}
	default:
		return fmt.Errorf("%w: unexpected status code %d", ErrBadRequest, resp.StatusCode)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

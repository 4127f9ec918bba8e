package sml

import (
	"context"
	"errors"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/PiccoloProcione/supersmp/pkg/discovery"
	"github.com/PiccoloProcione/supersmp/pkg/identifier"
)

// Checker cache defaults
const (
	DefaultCheckTTL        = time.Minute
	DefaultCleanupInterval = 10 * time.Minute
)

// CheckResult is the DNS view of one participant
type CheckResult struct {
	ParticipantID identifier.ParticipantID
	// SMPURL is the SMP the participant's U-NAPTR record points to, if any
	SMPURL string
	// Registered reports whether the SML zone has a record for the participant
	Registered bool
	// PointsHere reports whether the record points to this SMP
	PointsHere bool
	CheckedAt  time.Time
}

// CheckerConfig configures a Checker
type CheckerConfig struct {
	// PublicURL is the URL this SMP is published under
	PublicURL string
	Locator   discovery.LocatorConfig
	// TTL is how long a result is reused; default DefaultCheckTTL
	TTL    time.Duration
	Logger *slog.Logger
}

// Checker looks participants up in the SML DNS zone
type Checker struct {
	publicURL string
	locator   *discovery.Locator
	cache     *gocache.Cache
	ttl       time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewChecker creates a checker
func NewChecker(cfg CheckerConfig) (*Checker, error) {
	if cfg.PublicURL == "" {
		return nil, errors.New("sml: public URL is required")
	}
	if cfg.Locator.Zone == "" {
		return nil, errors.New("sml: DNS zone is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultCheckTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Checker{
		publicURL: cfg.PublicURL,
		locator:   discovery.NewLocator(cfg.Locator),
		cache:     gocache.New(cfg.TTL, DefaultCleanupInterval),
		ttl:       cfg.TTL,
		logger:    cfg.Logger.With("component", "sml-checker"),
		now:       time.Now,
	}, nil
}

// Check looks pid up, reusing a recent result. A participant without
// records is not an error; it is reported as not registered.
func (c *Checker) Check(ctx context.Context, pid identifier.ParticipantID) (*CheckResult, error) {
	key := pid.URIEncoded()
	if v, found := c.cache.Get(key); found {
		if res, ok := v.(CheckResult); ok {
			return &res, nil
		}
	}

	res := CheckResult{ParticipantID: pid, CheckedAt: c.now()}
	smpURL, err := c.locator.LocateSMP(ctx, pid)
	switch {
	case errors.Is(err, discovery.ErrNoRecordsFound), errors.Is(err, discovery.ErrServiceNotFound):
	case err != nil:
		c.logger.Warn("DNS check failed", "participant_id", key, "error", err)
		return nil, err
	default:
		res.SMPURL = smpURL
		res.Registered = true
		res.PointsHere = discovery.SameSMP(smpURL, c.publicURL)
	}

	c.cache.Set(key, res, c.ttl)
	return &res, nil
}

// Forget drops the cached result of pid, e.g. after it was registered
func (c *Checker) Forget(pid identifier.ParticipantID) {
	c.cache.Delete(pid.URIEncoded())
}

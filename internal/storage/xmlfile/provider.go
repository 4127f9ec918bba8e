package xmlfile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/PiccoloProcione/supersmp/internal/registration"
	"github.com/PiccoloProcione/supersmp/internal/storage/wal"
	"github.com/PiccoloProcione/supersmp/pkg/smp"
)

// Backend is the name of this storage backend
const Backend = "xml"

// Store names; each is the base name of a snapshot and a journal file
const (
	StoreServiceGroups      = "servicegroups"
	StoreRedirects          = "redirects"
	StoreServiceInformation = "serviceinformation"
	StoreBusinessCards      = "businesscards"
)

// Config holds XML backend configuration
type Config struct {
	// Dir holds the snapshot and journal files
	Dir string
	// SnapshotEvery is the number of journal records between snapshots
	SnapshotEvery int
	// Sync fsyncs every journal append
	Sync bool
	// CompensationTimeout bounds undo calls to the registration hook
	CompensationTimeout time.Duration
	Logger              *slog.Logger
	Observer            wal.Observer
	// Journal, if set, supplies the journal of each store instead of a file
	Journal func(store string) wal.Journal
}

// Provider creates the managers of the XML backend.
type Provider struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	stores []interface{ Close() error }
}

var _ smp.ManagerProvider = (*Provider)(nil)

// NewProvider creates a provider writing to cfg.Dir
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.Dir == "" && cfg.Journal == nil {
		return nil, errors.New("xml backend: directory is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Provider{
		cfg:    cfg,
		logger: cfg.Logger.With("backend", Backend),
	}, nil
}

// Backend returns "xml"
func (p *Provider) Backend() string {
	return Backend
}

func openStore[T any](p *Provider, name string, codec wal.Codec[T], rec wal.Recovery[T]) (*wal.Store[T], error) {
	opts := wal.Options{
		Dir:           p.cfg.Dir,
		Name:          name,
		SnapshotEvery: p.cfg.SnapshotEvery,
		Sync:          p.cfg.Sync,
		Logger:        p.logger,
		Observer:      p.cfg.Observer,
	}
	if p.cfg.Journal != nil {
		opts.Journal = p.cfg.Journal(name)
	}
	s, err := wal.Open(opts, codec, rec)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}

	p.mu.Lock()
	p.stores = append(p.stores, s)
	p.mu.Unlock()
	return s, nil
}

// NewServiceGroupManager opens the service group store
func (p *Provider) NewServiceGroupManager(hook smp.RegistrationHook, deps smp.Dependents) (smp.ServiceGroupManager, error) {
	guard, err := registration.NewGuard(hook, registration.Config{
		CompensationTimeout: p.cfg.CompensationTimeout,
		Logger:              p.logger,
	})
	if err != nil {
		return nil, err
	}
	m, err := newServiceGroupManager(p, guard, deps)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// NewRedirectManager opens the redirect store
func (p *Provider) NewRedirectManager() (smp.RedirectManager, error) {
	m, err := newRedirectManager(p)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// NewServiceInformationManager opens the service information store
func (p *Provider) NewServiceInformationManager() (smp.ServiceInformationManager, error) {
	m, err := newServiceInformationManager(p)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// NewBusinessCardManager opens the business card store
func (p *Provider) NewBusinessCardManager() (smp.BusinessCardManager, error) {
	m, err := newBusinessCardManager(p)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Close writes a final snapshot of every opened store and closes it. The
// stores are flushed concurrently.
func (p *Provider) Close(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	errs := make([]error, len(p.stores))
	var g errgroup.Group
	for i, s := range p.stores {
		g.Go(func() error {
			errs[i] = s.Close()
			return nil
		})
	}
	_ = g.Wait()
	p.stores = nil
	return errors.Join(errs...)
}

// Package registry is the entry point to the managers of one SMP.
//
// A Registry is given exactly one storage backend with Register. On first
// use it builds the managers in a fixed order: service groups, redirects,
// service information, business cards. It then warms up the SMP key
// material. If a manager cannot be built the registry stays unusable and
// every accessor returns the initialization error.
//
//	reg := registry.New(registry.Options{Hook: smlClient, Keys: ks, Metrics: m})
//	if err := reg.Register(provider); err != nil { ... }
//	groups, err := reg.ServiceGroups(ctx)
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/PiccoloProcione/supersmp/internal/metrics"
	"github.com/PiccoloProcione/supersmp/internal/sml"
	"github.com/PiccoloProcione/supersmp/pkg/smp"
)

// Errors returned by the registry
var (
	ErrNoProvider                = errors.New("no manager provider registered")
	ErrProviderAlreadyRegistered = errors.New("manager provider already registered")
	ErrClosed                    = errors.New("registry is closed")
)

// KeyLoader loads the SMP key material
type KeyLoader interface {
	Load(ctx context.Context) error
	Valid() bool
}

// Options configures a Registry
type Options struct {
	// Hook informs the SML about service group changes. Defaults to a no-op hook.
	Hook smp.RegistrationHook
	// Keys is warmed up after the managers are built; optional
	Keys    KeyLoader
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Registry holds the managers of one storage backend
type Registry struct {
	keys    KeyLoader
	metrics *metrics.Metrics
	logger  *slog.Logger
	hook    *instrumentedHook
	incons  *inconsistencyLog

	mu          sync.Mutex
	provider    smp.ManagerProvider
	initialized bool
	initErr     error
	closed      bool

	serviceGroups      smp.ServiceGroupManager
	redirects          smp.RedirectManager
	serviceInformation smp.ServiceInformationManager
	businessCards      smp.BusinessCardManager
}

// New creates a registry without a provider
func New(opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(prometheus.NewRegistry())
	}
	if opts.Hook == nil {
		opts.Hook = sml.Noop{Logger: opts.Logger}
	}
	return &Registry{
		keys:    opts.Keys,
		metrics: opts.Metrics,
		logger:  opts.Logger.With("component", "registry"),
		hook:    newInstrumentedHook(opts.Hook, opts.Metrics),
		incons:  newInconsistencyLog(opts.Metrics),
	}
}

// Register sets the storage backend. It may be called once.
func (r *Registry) Register(p smp.ManagerProvider) error {
	if p == nil {
		return ErrNoProvider
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.provider != nil {
		return ErrProviderAlreadyRegistered
	}
	r.provider = p
	r.logger.Info("Manager provider registered", "backend", p.Backend())
	return nil
}

// Init builds the managers if that has not happened yet. A failed
// initialization is not retried.
func (r *Registry) Init(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.initLocked(ctx)
}

func (r *Registry) initLocked(ctx context.Context) error {
	if r.closed {
		return ErrClosed
	}
	if r.initialized {
		return r.initErr
	}
	if r.provider == nil {
		return ErrNoProvider
	}

	r.initialized = true
	if err := r.build(); err != nil {
		r.initErr = err
		r.logger.Error("Initializing managers failed", "backend", r.provider.Backend(), "error", err)
		return err
	}
	r.logger.Info("Managers initialized", "backend", r.provider.Backend())

	if r.keys != nil {
		if err := r.keys.Load(ctx); err != nil {
			r.logger.Warn("SMP key material is not available", "error", err)
		}
	}
	return nil
}

// build creates all managers and publishes them only if every one succeeded
func (r *Registry) build() error {
	deps := &dependents{}

	sg, err := r.provider.NewServiceGroupManager(r.hook, deps)
	if err := checkManager("service group", sg == nil, err); err != nil {
		return err
	}
	rd, err := r.provider.NewRedirectManager()
	if err := checkManager("redirect", rd == nil, err); err != nil {
		return err
	}
	si, err := r.provider.NewServiceInformationManager()
	if err := checkManager("service information", si == nil, err); err != nil {
		return err
	}
	bc, err := r.provider.NewBusinessCardManager()
	if err := checkManager("business card", bc == nil, err); err != nil {
		return err
	}

	deps.redirects, deps.serviceInformation, deps.businessCards = rd, si, bc
	r.serviceGroups = &instrumentedServiceGroups{ServiceGroupManager: sg, metrics: r.metrics, inconsistencies: r.incons}
	r.redirects, r.serviceInformation, r.businessCards = rd, si, bc
	return nil
}

func checkManager(name string, isNil bool, err error) error {
	if err != nil {
		return fmt.Errorf("creating %s manager: %w", name, err)
	}
	if isNil {
		return fmt.Errorf("creating %s manager: provider returned no manager", name)
	}
	return nil
}

// ServiceGroups returns the service group manager
func (r *Registry) ServiceGroups(ctx context.Context) (smp.ServiceGroupManager, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.initLocked(ctx); err != nil {
		return nil, err
	}
	return r.serviceGroups, nil
}

// Redirects returns the redirect manager
func (r *Registry) Redirects(ctx context.Context) (smp.RedirectManager, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.initLocked(ctx); err != nil {
		return nil, err
	}
	return r.redirects, nil
}

// ServiceInformation returns the service information manager
func (r *Registry) ServiceInformation(ctx context.Context) (smp.ServiceInformationManager, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.initLocked(ctx); err != nil {
		return nil, err
	}
	return r.serviceInformation, nil
}

// BusinessCards returns the business card manager
func (r *Registry) BusinessCards(ctx context.Context) (smp.BusinessCardManager, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.initLocked(ctx); err != nil {
		return nil, err
	}
	return r.businessCards, nil
}

// Close flushes and releases the storage backend. Further access fails
// with ErrClosed.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if r.provider == nil {
		return nil
	}
	if err := r.provider.Close(ctx); err != nil {
		return fmt.Errorf("closing %s backend: %w", r.provider.Backend(), err)
	}
	return nil
}

// dependents resolves the cascade targets of the service group manager.
// Its fields are set before the service group manager is handed out.
type dependents struct {
	redirects          smp.RedirectManager
	serviceInformation smp.ServiceInformationManager
	businessCards      smp.BusinessCardManager
}

func (d *dependents) RedirectManager() smp.RedirectManager { return d.redirects }

func (d *dependents) ServiceInformationManager() smp.ServiceInformationManager {
	return d.serviceInformation
}

func (d *dependents) BusinessCardManager() smp.BusinessCardManager { return d.businessCards }

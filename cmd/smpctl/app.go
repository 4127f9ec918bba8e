package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/PiccoloProcione/supersmp/internal/config"
	"github.com/PiccoloProcione/supersmp/internal/keystore"
	"github.com/PiccoloProcione/supersmp/internal/metrics"
	"github.com/PiccoloProcione/supersmp/internal/registry"
	"github.com/PiccoloProcione/supersmp/internal/sml"
	"github.com/PiccoloProcione/supersmp/internal/storage"
	"github.com/PiccoloProcione/supersmp/pkg/discovery"
	"github.com/PiccoloProcione/supersmp/pkg/identifier"
	"github.com/PiccoloProcione/supersmp/pkg/smp"
)

// app holds what the commands share: configuration, logger and the
// registry, which is opened on first use.
type app struct {
	cfgFile string
	logOut  io.Writer

	cfg     *config.Config
	logger  *slog.Logger
	ids     identifier.Factory
	promReg *prometheus.Registry
	metrics *metrics.Metrics
	keys    *keystore.FileKeystore
	reg     *registry.Registry
}

func newApp() *app {
	return &app{logOut: os.Stderr}
}

// load reads the configuration and sets up logging
func (a *app) load() error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	ids, err := identifier.FactoryFor(identifier.Type(cfg.SMP.IdentifierType))
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.ids = ids
	a.logger = newLogger(a.logOut, cfg.Logging)
	a.promReg = prometheus.NewRegistry()
	a.metrics = metrics.New(a.promReg)
	a.keys = keystore.NewFileKeystore(keystore.Config{
		CertFile: cfg.Keystore.CertFile,
		KeyFile:  cfg.Keystore.KeyFile,
		CAFile:   cfg.Keystore.CAFile,
		Logger:   a.logger,
	})
	return nil
}

func newLogger(w io.Writer, cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// hook returns the SML client, or a no-op hook with SML disabled
func (a *app) hook() (smp.RegistrationHook, error) {
	if !a.cfg.SML.Enabled {
		return sml.Noop{Logger: a.logger}, nil
	}

	smlCfg := sml.Config{
		ManagementURL:        a.cfg.SML.ManagementURL,
		SMPID:                a.cfg.SMP.ID,
		GetClientCertificate: a.keys.ClientCertificate,
		ConnectTimeout:       a.cfg.SML.ConnectTimeout,
		RequestTimeout:       a.cfg.SML.RequestTimeout,
		MaxRetries:           a.cfg.SML.MaxRetries,
		RetryInterval:        a.cfg.SML.RetryInterval,
		RetryMultiplier:      a.cfg.SML.RetryMultiplier,
		Logger:               a.logger,
	}
	if a.cfg.Keystore.CAFile != "" {
		pool, err := keystore.LoadCertPool(a.cfg.Keystore.CAFile)
		if err != nil {
			return nil, fmt.Errorf("loading SML CA file: %w", err)
		}
		smlCfg.RootCAs = pool
	}
	client, err := sml.NewClient(smlCfg)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// registry opens the storage backend and initializes the registry
func (a *app) registry(ctx context.Context) (*registry.Registry, error) {
	if a.reg != nil {
		return a.reg, nil
	}

	hook, err := a.hook()
	if err != nil {
		return nil, err
	}
	provider, err := storage.NewProvider(ctx, storage.Config{
		Backend: a.cfg.SMP.Backend,
		XML: storage.XMLConfig{
			Dir:           a.cfg.Storage.XML.Dir,
			SnapshotEvery: a.cfg.Storage.XML.SnapshotEvery,
			Sync:          a.cfg.Storage.XML.Sync,
		},
		MongoDB: storage.MongoDBConfig{
			URI:      a.cfg.Storage.MongoDB.URI,
			Database: a.cfg.Storage.MongoDB.Database,
			Timeout:  a.cfg.Storage.MongoDB.Timeout,
		},
		CompensationTimeout: a.cfg.Storage.CompensationTimeout,
		Logger:              a.logger,
		Observer:            a.metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	var keys registry.KeyLoader
	if a.cfg.Keystore.CertFile != "" {
		keys = a.keys
	}
	reg := registry.New(registry.Options{
		Hook:    hook,
		Keys:    keys,
		Metrics: a.metrics,
		Logger:  a.logger,
	})
	if err := reg.Register(provider); err != nil {
		return nil, err
	}
	if err := reg.Init(ctx); err != nil {
		_ = reg.Close(ctx)
		return nil, err
	}
	a.reg = reg
	return reg, nil
}

func (a *app) close(ctx context.Context) error {
	if a.reg == nil {
		return nil
	}
	err := a.reg.Close(ctx)
	a.reg = nil
	return err
}

func (a *app) checker() (*sml.Checker, error) {
	return sml.NewChecker(sml.CheckerConfig{
		PublicURL: a.cfg.SMP.PublicURL,
		Locator: discovery.LocatorConfig{
			Zone:      a.cfg.SML.DNSZone,
			DNSServer: a.cfg.SML.DNSServer,
		},
		Logger: a.logger,
	})
}

// serviceGroup resolves a participant argument to its service group
func (a *app) serviceGroup(ctx context.Context, arg string) (*smp.ServiceGroup, error) {
	pid, err := a.ids.ParseParticipantID(arg)
	if err != nil {
		return nil, err
	}
	reg, err := a.registry(ctx)
	if err != nil {
		return nil, err
	}
	groups, err := reg.ServiceGroups(ctx)
	if err != nil {
		return nil, err
	}
	return groups.Get(ctx, pid)
}

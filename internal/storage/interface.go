// Package storage selects and builds the manager provider of the registry.
//
// # Backends
//
//   - [xmlfile]: four write-ahead stores (XML snapshot plus JSON journal)
//     in one directory. The default.
//   - [mongodb]: one MongoDB collection per manager.
//
// Both backends implement [smp.ManagerProvider] and run service group
// creation and deletion through the registration guard.
//
// # Concurrency
//
// All managers are safe for concurrent use. Each holds one read-write lock;
// locks are taken in the order service groups, redirects, service
// information, business cards.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/PiccoloProcione/supersmp/internal/storage/mongodb"
	"github.com/PiccoloProcione/supersmp/internal/storage/wal"
	"github.com/PiccoloProcione/supersmp/internal/storage/xmlfile"
	"github.com/PiccoloProcione/supersmp/pkg/smp"
)

// Config selects a backend and holds the settings of each
type Config struct {
	// Backend is "xml" or "mongodb"; empty means "xml"
	Backend string
	XML     XMLConfig
	MongoDB MongoDBConfig

	CompensationTimeout time.Duration
	Logger              *slog.Logger
	// Observer receives write-ahead store events (xml backend only)
	Observer wal.Observer
}

// XMLConfig configures the xml backend
type XMLConfig struct {
	Dir           string
	SnapshotEvery int
	Sync          bool
}

// MongoDBConfig configures the mongodb backend
type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// ErrUnknownBackend is returned for an unsupported backend name
var ErrUnknownBackend = errors.New("unknown storage backend")

// NewProvider builds the provider of the configured backend. The MongoDB
// backend connects before returning.
func NewProvider(ctx context.Context, cfg Config) (smp.ManagerProvider, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	switch cfg.Backend {
	case "", xmlfile.Backend:
		p, err := xmlfile.NewProvider(xmlfile.Config{
			Dir:                 cfg.XML.Dir,
			SnapshotEvery:       cfg.XML.SnapshotEvery,
			Sync:                cfg.XML.Sync,
			CompensationTimeout: cfg.CompensationTimeout,
			Logger:              cfg.Logger,
			Observer:            cfg.Observer,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	case mongodb.Backend:
		s, err := mongodb.NewStore(ctx, mongodb.Config{
			URI:                 cfg.MongoDB.URI,
			Database:            cfg.MongoDB.Database,
			Timeout:             cfg.MongoDB.Timeout,
			CompensationTimeout: cfg.CompensationTimeout,
			Logger:              cfg.Logger,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

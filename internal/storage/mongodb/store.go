// Package mongodb stores the registry in MongoDB.
//
// Each manager owns one collection. Documents are keyed by the entity ID
// (the canonical participant encoding for service groups and business
// cards, group ID plus document type for redirects and service
// information). Each manager also holds an RWMutex so the lock order and
// the delete cascade behave as in the XML backend.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/PiccoloProcione/supersmp/internal/registration"
	"github.com/PiccoloProcione/supersmp/pkg/smp"
)

// Backend is the name of this storage backend
const Backend = "mongodb"

// Collection names
const (
	CollectionServiceGroups      = "servicegroups"
	CollectionRedirects          = "redirects"
	CollectionServiceInformation = "serviceinformation"
	CollectionBusinessCards      = "businesscards"
)

// DefaultTimeout bounds each MongoDB operation
const DefaultTimeout = 10 * time.Second

// Config holds MongoDB connection settings
type Config struct {
	URI      string
	Database string
	// Timeout bounds each operation; default DefaultTimeout
	Timeout time.Duration
	// CompensationTimeout bounds undo calls to the registration hook
	CompensationTimeout time.Duration
	Logger              *slog.Logger
}

// Store is the MongoDB manager provider
type Store struct {
	client  *mongo.Client
	db      *mongo.Database
	timeout time.Duration
	cfg     Config
	logger  *slog.Logger

	serviceGroups *mongo.Collection
	redirects     *mongo.Collection
	serviceInfos  *mongo.Collection
	businessCards *mongo.Collection
}

var _ smp.ManagerProvider = (*Store)(nil)

// NewStore connects to MongoDB and creates the indexes
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Database == "" {
		return nil, errors.New("mongodb: database is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connecting to MongoDB: %w", err)
	}

	// Verify connection
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("pinging MongoDB: %w", err)
	}

	db := client.Database(cfg.Database)
	s := &Store{
		client:        client,
		db:            db,
		timeout:       cfg.Timeout,
		cfg:           cfg,
		logger:        cfg.Logger.With("backend", Backend),
		serviceGroups: db.Collection(CollectionServiceGroups),
		redirects:     db.Collection(CollectionRedirects),
		serviceInfos:  db.Collection(CollectionServiceInformation),
		businessCards: db.Collection(CollectionBusinessCards),
	}

	if err := s.createIndexes(connectCtx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("creating indexes: %w", err)
	}
	return s, nil
}

func (s *Store) createIndexes(ctx context.Context) error {
	_, err := s.serviceGroups.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("creating service group indexes: %w", err)
	}

	for _, coll := range []*mongo.Collection{s.redirects, s.serviceInfos} {
		_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
			{Keys: bson.D{{Key: "service_group_id", Value: 1}}},
		})
		if err != nil {
			return fmt.Errorf("creating %s indexes: %w", coll.Name(), err)
		}
	}

	_, err = s.serviceInfos.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "processes.endpoints.transport_profile", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("creating service information indexes: %w", err)
	}
	return nil
}

// Backend returns "mongodb"
func (s *Store) Backend() string {
	return Backend
}

// NewServiceGroupManager creates the service group manager
func (s *Store) NewServiceGroupManager(hook smp.RegistrationHook, deps smp.Dependents) (smp.ServiceGroupManager, error) {
	guard, err := registration.NewGuard(hook, registration.Config{
		CompensationTimeout: s.cfg.CompensationTimeout,
		Logger:              s.logger,
	})
	if err != nil {
		return nil, err
	}
	return &serviceGroupManager{
		store:  s,
		coll:   s.serviceGroups,
		guard:  guard,
		deps:   deps,
		logger: s.logger.With("manager", CollectionServiceGroups),
	}, nil
}

// NewRedirectManager creates the redirect manager
func (s *Store) NewRedirectManager() (smp.RedirectManager, error) {
	return &redirectManager{store: s, coll: s.redirects}, nil
}

// NewServiceInformationManager creates the service information manager
func (s *Store) NewServiceInformationManager() (smp.ServiceInformationManager, error) {
	return &serviceInformationManager{store: s, coll: s.serviceInfos}, nil
}

// NewBusinessCardManager creates the business card manager
func (s *Store) NewBusinessCardManager() (smp.BusinessCardManager, error) {
	return &businessCardManager{store: s, coll: s.businessCards}, nil
}

// Close closes the MongoDB connection
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping verifies database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// op bounds one database operation
func (s *Store) op(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func persistenceError(op string, coll *mongo.Collection, err error) error {
	if err == nil {
		return nil
	}
	return &smp.PersistenceError{Op: op, Store: coll.Name(), Err: err}
}

var byID = options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})

// findOne decodes the document with the ID into D
func findOne[D any](ctx context.Context, s *Store, coll *mongo.Collection, id string) (*D, error) {
	ctx, cancel := s.op(ctx)
	defer cancel()

	var doc D
	err := coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%s %s: %w", coll.Name(), id, smp.ErrNotFound)
	}
	if err != nil {
		return nil, persistenceError("find", coll, err)
	}
	return &doc, nil
}

// findAll decodes all documents matching filter, ordered by ID, and converts them
func findAll[D any, T any](ctx context.Context, s *Store, coll *mongo.Collection, filter any, conv func(*D) (T, error)) ([]T, error) {
	ctx, cancel := s.op(ctx)
	defer cancel()

	cursor, err := coll.Find(ctx, filter, byID)
	if err != nil {
		return nil, persistenceError("find", coll, err)
	}
	defer cursor.Close(ctx)

	var docs []*D
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, persistenceError("find", coll, err)
	}

	out := make([]T, 0, len(docs))
	for _, d := range docs {
		v, err := conv(d)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func count(ctx context.Context, s *Store, coll *mongo.Collection, filter any) (int, error) {
	ctx, cancel := s.op(ctx)
	defer cancel()

	n, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, persistenceError("count", coll, err)
	}
	return int(n), nil
}

// replace upserts doc under id
func replace(ctx context.Context, s *Store, coll *mongo.Collection, id string, doc any) error {
	ctx, cancel := s.op(ctx)
	defer cancel()

	_, err := coll.ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	return persistenceError("replace", coll, err)
}

func deleteMany(ctx context.Context, s *Store, coll *mongo.Collection, filter any) (smp.Change, error) {
	ctx, cancel := s.op(ctx)
	defer cancel()

	res, err := coll.DeleteMany(ctx, filter)
	if err != nil {
		return smp.Unchanged, persistenceError("delete", coll, err)
	}
	return smp.Change(res.DeletedCount > 0), nil
}

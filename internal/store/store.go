// Package store owns the MongoDB connection and the indexes the bot relies on.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"tg_weather_bot/internal/config"
	"tg_weather_bot/internal/logging"
)

// Collection names.
const (
	CollectionUsers     = "users"
	CollectionOperators = "operators"
	CollectionSettings  = "settings"
)

const (
	appName                = "weather-bot"
	serverSelectionTimeout = 5 * time.Second
)

type mongoClient interface {
	Ping(context.Context, *readpref.ReadPref) error
	Database(string, ...*options.DatabaseOptions) *mongo.Database
	Disconnect(context.Context) error
}

var connectMongo = func(ctx context.Context, opts *options.ClientOptions) (mongoClient, error) {
	return mongo.Connect(ctx, opts)
}

var createIndexes = func(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) ([]string, error) {
	return coll.Indexes().CreateMany(ctx, models)
}

// indexSpec declares one index. Keys are ascending in the listed order.
type indexSpec struct {
	name   string
	keys   []string
	unique bool
}

// indexPlan lists the indexes ensured at startup, grouped by collection in
// creation order.
var indexPlan = []struct {
	collection string
	indexes    []indexSpec
}{
	{
		collection: CollectionUsers,
		indexes: []indexSpec{
			{name: "chat_id_unique", keys: []string{"chat_id"}, unique: true},
			{name: "created_at", keys: []string{"created_at"}},
		},
	},
	{
		collection: CollectionOperators,
		indexes: []indexSpec{
			{name: "email_unique", keys: []string{"email"}, unique: true},
		},
	},
}

func (s indexSpec) model() mongo.IndexModel {
	keys := make(bson.D, 0, len(s.keys))
	for _, k := range s.keys {
		keys = append(keys, bson.E{Key: k, Value: 1})
	}

	opts := options.Index().SetName(s.name)
	if s.unique {
		opts.SetUnique(true)
	}

	return mongo.IndexModel{Keys: keys, Options: opts}
}

// Manager holds the Mongo client and the bot's database.
type Manager struct {
	client mongoClient
	db     *mongo.Database
	logger *logrus.Entry
}

// NewManager connects to MONGO_URI and pings the primary before returning.
func NewManager(ctx context.Context, cfg config.Config, logger *logrus.Entry) (*Manager, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	opts := options.Client().
		ApplyURI(cfg.MongoURI).
		SetAppName(appName).
		SetServerSelectionTimeout(serverSelectionTimeout)

	client, err := connectMongo(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &Manager{
		client: client,
		db:     client.Database(cfg.MongoDB),
		logger: logger,
	}, nil
}

// Database returns the configured database handle.
func (m *Manager) Database() *mongo.Database {
	return m.db
}

// Users holds one document per Telegram chat.
func (m *Manager) Users() *mongo.Collection {
	return m.db.Collection(CollectionUsers)
}

// Operators holds dashboard accounts.
func (m *Manager) Operators() *mongo.Collection {
	return m.db.Collection(CollectionOperators)
}

// Settings holds the rotated API credentials.
func (m *Manager) Settings() *mongo.Collection {
	return m.db.Collection(CollectionSettings)
}

// Ping reports whether the primary is reachable. It backs the health endpoint.
func (m *Manager) Ping(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if m == nil || m.client == nil {
		return errors.New("store manager is not initialized")
	}

	if err := m.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("ping mongo: %w", err)
	}
	return nil
}

// EnsureBaseIndexes applies indexPlan and stops at the first failing
// collection.
func (m *Manager) EnsureBaseIndexes(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if m == nil || m.db == nil {
		return errors.New("store manager is not initialized")
	}

	for _, plan := range indexPlan {
		models := make([]mongo.IndexModel, 0, len(plan.indexes))
		for _, spec := range plan.indexes {
			models = append(models, spec.model())
		}

		names, err := createIndexes(ctx, m.db.Collection(plan.collection), models)
		if err != nil {
			return fmt.Errorf("create %s indexes: %w", plan.collection, err)
		}

		m.logger.WithFields(logging.Fields{
			"event":      "mongo_indexes",
			"collection": plan.collection,
			"indexes":    names,
		}).Debug("ensured collection indexes")
	}

	return nil
}

// Close disconnects the client. A nil manager is a no-op.
func (m *Manager) Close(ctx context.Context) error {
	if m == nil || m.client == nil {
		return nil
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	return m.client.Disconnect(ctx)
}

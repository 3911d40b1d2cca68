// Package mongo stores the snapshot as one MongoDB document through Grove.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/tienda/state"
	"github.com/xraph/tienda/store"
)

const colSnapshots = "tienda_snapshots"

// compile-time interface check
var _ store.Store = (*Store)(nil)

// snapshotModel keeps the JSON payload as a string so the stored bytes are
// exactly what every other backend stores.
type snapshotModel struct {
	grove.BaseModel `grove:"table:tienda_snapshots"`

	Key       string    `grove:"id,pk"      bson:"_id"`
	Payload   string    `grove:"payload"    bson:"payload"`
	UpdatedAt time.Time `grove:"updated_at" bson:"updated_at"`
}

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
	key string
}

// Option configures a Store.
type Option func(*Store)

// WithKey overrides the snapshot document id.
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB, opts ...Option) *Store {
	s := &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
		key: store.SnapshotKey,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects to uri. A non-empty database overrides the one in the URI path.
func Open(ctx context.Context, uri, database string, opts ...Option) (*Store, error) {
	mdrv := mongodriver.New()
	var err error
	if database != "" {
		err = mdrv.Open(ctx, uri, mongodriver.WithDatabase(database))
	} else {
		err = mdrv.Open(ctx, uri)
	}
	if err != nil {
		return nil, fmt.Errorf("tienda/mongo: connect: %w", err)
	}
	db, err := grove.Open(mdrv)
	if err != nil {
		_ = mdrv.Close()
		return nil, fmt.Errorf("tienda/mongo: open grove: %w", err)
	}
	return New(db, opts...), nil
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the index on updated_at used for inspection tooling.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.mdb.Collection(colSnapshots).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "updated_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("tienda/mongo: migrate %s indexes: %w", colSnapshots, err)
	}
	return nil
}

func (s *Store) LoadSnapshot(ctx context.Context) (state.AppState, error) {
	var m snapshotModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": s.key}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return state.AppState{}, store.ErrNoSnapshot
		}
		return state.AppState{}, fmt.Errorf("tienda/mongo: load: %w", err)
	}
	return store.Decode([]byte(m.Payload))
}

func (s *Store) SaveSnapshot(ctx context.Context, st state.AppState) error {
	data, err := store.Encode(st)
	if err != nil {
		return err
	}
	_, err = s.mdb.NewUpdate((*snapshotModel)(nil)).
		Filter(bson.M{"_id": s.key}).
		SetUpdate(bson.M{"$set": bson.M{
			"payload":    string(data),
			"updated_at": time.Now().UTC(),
		}}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tienda/mongo: save: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// Package bolt stores the snapshot in an embedded bbolt database file.
package bolt

import (
	"context"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/xraph/tienda/state"
	"github.com/xraph/tienda/store"
)

const defaultBucket = "tienda"

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store implements store.Store on a single bbolt bucket.
type Store struct {
	db     *bolt.DB
	bucket []byte
	key    []byte
}

// Option configures a Store.
type Option func(*Store)

// WithBucket overrides the bucket name.
func WithBucket(name string) Option {
	return func(s *Store) { s.bucket = []byte(name) }
}

// WithKey overrides the snapshot key.
func WithKey(key string) Option {
	return func(s *Store) { s.key = []byte(key) }
}

// Open opens (or creates) the database file at path.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("tienda/bolt: open %s: %w", path, err)
	}
	return New(db, opts...), nil
}

// New wraps an already open database.
func New(db *bolt.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		bucket: []byte(defaultBucket),
		key:    []byte(store.SnapshotKey),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying database for direct access.
func (s *Store) DB() *bolt.DB { return s.db }

// Migrate creates the bucket.
func (s *Store) Migrate(_ context.Context) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(s.bucket)
		return err
	})
	if err != nil {
		return fmt.Errorf("tienda/bolt: migrate: %w", err)
	}
	return nil
}

func (s *Store) LoadSnapshot(_ context.Context) (state.AppState, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}
		// Values are only valid for the life of the transaction.
		if v := b.Get(s.key); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return state.AppState{}, fmt.Errorf("tienda/bolt: load: %w", err)
	}
	return store.Decode(data)
}

func (s *Store) SaveSnapshot(_ context.Context, st state.AppState) error {
	data, err := store.Encode(st)
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(s.bucket)
		if err != nil {
			return err
		}
		return b.Put(s.key, data)
	})
	if err != nil {
		return fmt.Errorf("tienda/bolt: save: %w", err)
	}
	return nil
}

// Ping verifies the database file is usable.
func (s *Store) Ping(_ context.Context) error {
	return s.db.View(func(*bolt.Tx) error { return nil })
}

// Close closes the database file.
func (s *Store) Close() error {
	return s.db.Close()
}

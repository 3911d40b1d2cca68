// Package redis stores the snapshot as a single Redis string key.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/tienda/state"
	"github.com/xraph/tienda/store"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store implements store.Store on a go-redis client.
type Store struct {
	client *redis.Client
	key    string
}

// Option configures a Store.
type Option func(*Store)

// WithKey overrides the snapshot key, e.g. to namespace several shops on
// one Redis instance.
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// New wraps an existing client.
func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{client: client, key: store.SnapshotKey}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open parses a redis:// URL and connects.
func Open(url string, opts ...Option) (*Store, error) {
	o, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("tienda/redis: parse url: %w", err)
	}
	return New(redis.NewClient(o), opts...), nil
}

// Client returns the underlying client for direct access.
func (s *Store) Client() *redis.Client { return s.client }

func (s *Store) LoadSnapshot(ctx context.Context) (state.AppState, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return state.AppState{}, store.ErrNoSnapshot
	}
	if err != nil {
		return state.AppState{}, fmt.Errorf("tienda/redis: load: %w", err)
	}
	return store.Decode(data)
}

func (s *Store) SaveSnapshot(ctx context.Context, st state.AppState) error {
	data, err := store.Encode(st)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("tienda/redis: save: %w", err)
	}
	return nil
}

// Migrate is a no-op; Redis needs no schema.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Package sqlite stores the snapshot in an embedded SQLite file through
// Grove. It is the natural backend for a single-terminal install.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	_ "github.com/xraph/grove/drivers/sqlitedriver/sqlitemigrate" // registers the "sqlite" migration executor
	"github.com/xraph/grove/migrate"

	"github.com/xraph/tienda/state"
	"github.com/xraph/tienda/store"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

type snapshotModel struct {
	grove.BaseModel `grove:"table:tienda_snapshots"`

	Key       string `grove:"snapshot_key,pk"`
	Payload   string `grove:"payload"`
	UpdatedAt string `grove:"updated_at"` // RFC 3339
}

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
	key string
}

// Option configures a Store.
type Option func(*Store)

// WithKey overrides the snapshot row key.
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB, opts ...Option) *Store {
	s := &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
		key: store.SnapshotKey,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open opens (or creates) the database file at path.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	sdb := sqlitedriver.New()
	if err := sdb.Open(ctx, path); err != nil {
		return nil, fmt.Errorf("tienda/sqlite: open %s: %w", path, err)
	}
	db, err := grove.Open(sdb)
	if err != nil {
		_ = sdb.Close()
		return nil, fmt.Errorf("tienda/sqlite: open grove: %w", err)
	}
	return New(db, opts...), nil
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the snapshot table using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("tienda/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("tienda/sqlite: migration failed: %w", err)
	}
	return nil
}

func (s *Store) LoadSnapshot(ctx context.Context) (state.AppState, error) {
	m := new(snapshotModel)
	err := s.sdb.NewSelect(m).
		Where("snapshot_key = ?", s.key).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return state.AppState{}, store.ErrNoSnapshot
		}
		return state.AppState{}, fmt.Errorf("tienda/sqlite: load: %w", err)
	}
	return store.Decode([]byte(m.Payload))
}

func (s *Store) SaveSnapshot(ctx context.Context, st state.AppState) error {
	data, err := store.Encode(st)
	if err != nil {
		return err
	}
	m := &snapshotModel{Key: s.key, Payload: string(data), UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano)}
	_, err = s.sdb.NewInsert(m).
		OnConflict("(snapshot_key) DO UPDATE").
		Set("payload = EXCLUDED.payload").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tienda/sqlite: save: %w", err)
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

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

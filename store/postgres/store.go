// Package postgres stores the snapshot as one JSONB row through Grove.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	_ "github.com/xraph/grove/drivers/pgdriver/pgmigrate" // registers the "pg" migration executor
	"github.com/xraph/grove/migrate"

	"github.com/xraph/tienda/state"
	"github.com/xraph/tienda/store"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

type snapshotModel struct {
	grove.BaseModel `grove:"table:tienda_snapshots"`

	Key       string          `grove:"snapshot_key,pk"`
	Payload   json.RawMessage `grove:"payload,type:jsonb"`
	UpdatedAt time.Time       `grove:"updated_at"`
}

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db  *grove.DB
	pg  *pgdriver.PgDB
	key string
}

// Option configures a Store.
type Option func(*Store)

// WithKey overrides the snapshot row key.
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB, opts ...Option) *Store {
	s := &Store{
		db:  db,
		pg:  pgdriver.Unwrap(db),
		key: store.SnapshotKey,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects to dsn and wraps the connection in a grove handle.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	pgdb := pgdriver.New()
	if err := pgdb.Open(ctx, dsn); err != nil {
		return nil, fmt.Errorf("tienda/postgres: connect: %w", err)
	}
	db, err := grove.Open(pgdb)
	if err != nil {
		_ = pgdb.Close()
		return nil, fmt.Errorf("tienda/postgres: open grove: %w", err)
	}
	return New(db, opts...), nil
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the snapshot table using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("tienda/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("tienda/postgres: migration failed: %w", err)
	}
	return nil
}

func (s *Store) LoadSnapshot(ctx context.Context) (state.AppState, error) {
	m := new(snapshotModel)
	err := s.pg.NewSelect(m).
		Where("snapshot_key = $1", s.key).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return state.AppState{}, store.ErrNoSnapshot
		}
		return state.AppState{}, fmt.Errorf("tienda/postgres: load: %w", err)
	}
	return store.Decode(m.Payload)
}

func (s *Store) SaveSnapshot(ctx context.Context, st state.AppState) error {
	data, err := store.Encode(st)
	if err != nil {
		return err
	}
	m := &snapshotModel{Key: s.key, Payload: data, UpdatedAt: time.Now().UTC()}
	_, err = s.pg.NewInsert(m).
		OnConflict("(snapshot_key) DO UPDATE").
		Set("payload = EXCLUDED.payload").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tienda/postgres: save: %w", err)
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
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows)
}

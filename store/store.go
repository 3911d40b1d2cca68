// Package store persists the application state as a single snapshot.
//
// Every backend keeps exactly one JSON document under a fixed key and
// replaces it wholesale on each save. There is no schema versioning: a
// snapshot that fails to decode or validate is reported as corrupt.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/xraph/tienda/audit"
	"github.com/xraph/tienda/catalog"
	"github.com/xraph/tienda/state"
	"github.com/xraph/tienda/transaction"
)

// SnapshotKey is the fixed storage key of the state snapshot.
const SnapshotKey = "tienda_state_v6"

var (
	// ErrNoSnapshot means nothing has been saved yet; callers start from
	// first-run defaults.
	ErrNoSnapshot = errors.New("store: no snapshot")
	// ErrCorruptSnapshot means a stored snapshot could not be decoded or
	// violates state invariants.
	ErrCorruptSnapshot = errors.New("store: corrupt snapshot")
)

// Store is the snapshot storage interface implemented by every backend.
type Store interface {
	// LoadSnapshot returns ErrNoSnapshot when nothing is stored and an
	// error wrapping ErrCorruptSnapshot when the payload is unusable.
	LoadSnapshot(ctx context.Context) (state.AppState, error)
	SaveSnapshot(ctx context.Context, s state.AppState) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Encode serializes s as the snapshot payload.
func Encode(s state.AppState) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("store: encode snapshot: %w", err)
	}
	return data, nil
}

// Decode parses and validates a snapshot payload.
func Decode(data []byte) (state.AppState, error) {
	if len(data) == 0 {
		return state.AppState{}, ErrNoSnapshot
	}
	var s state.AppState
	if err := json.Unmarshal(data, &s); err != nil {
		return state.AppState{}, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}
	if err := s.Validate(); err != nil {
		return state.AppState{}, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}
	normalize(&s)
	return s, nil
}

// normalize replaces absent collections with empty ones so callers never
// see a nil slice from a sparse payload.
func normalize(s *state.AppState) {
	if s.Products == nil {
		s.Products = []catalog.Product{}
	}
	if s.Transactions == nil {
		s.Transactions = []transaction.Transaction{}
	}
	if s.Expenses == nil {
		s.Expenses = []state.Expense{}
	}
	if s.AuditLogs == nil {
		s.AuditLogs = []audit.Entry{}
	}
	if s.Suppliers == nil {
		s.Suppliers = []state.Supplier{}
	}
}

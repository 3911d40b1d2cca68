package bolt

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/xraph/tienda/state"
	"github.com/xraph/tienda/store"
)

func openTemp(t *testing.T, opts ...Option) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tienda.db")
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s, path
}

func TestEmpty(t *testing.T) {
	s, _ := openTemp(t)
	defer s.Close()

	if _, err := s.LoadSnapshot(context.Background()); !errors.Is(err, store.ErrNoSnapshot) {
		t.Errorf("before migrate: got %v, want ErrNoSnapshot", err)
	}
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if _, err := s.LoadSnapshot(context.Background()); !errors.Is(err, store.ErrNoSnapshot) {
		t.Errorf("after migrate: got %v, want ErrNoSnapshot", err)
	}
}

func TestSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	s, path := openTemp(t, WithBucket("pos"))

	want := state.Default(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC))
	want.BusinessInfo.Name = "Abasto Los Andes"
	if err := s.SaveSnapshot(ctx, want); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err := Open(path, WithBucket("pos"))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	got, err := s.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if got.BusinessInfo.Name != "Abasto Los Andes" {
		t.Errorf("BusinessInfo.Name: got %q", got.BusinessInfo.Name)
	}
	if err := s.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestCorrupt(t *testing.T) {
	s, _ := openTemp(t)
	defer s.Close()

	err := s.DB().Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(defaultBucket))
		if err != nil {
			return err
		}
		return b.Put([]byte(store.SnapshotKey), []byte("not json"))
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := s.LoadSnapshot(context.Background()); !errors.Is(err, store.ErrCorruptSnapshot) {
		t.Errorf("got %v, want ErrCorruptSnapshot", err)
	}
}

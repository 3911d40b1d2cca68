package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the tienda snapshot store (SQLite).
var Migrations = migrate.NewGroup("tienda")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_tienda_snapshots",
			Version: "20250301000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tienda_snapshots (
    snapshot_key TEXT PRIMARY KEY,
    payload      TEXT NOT NULL,
    updated_at   TEXT NOT NULL DEFAULT (datetime('now'))
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tienda_snapshots`)
				return err
			},
		},
	)
}

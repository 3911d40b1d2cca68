package main

import (
	"context"
	"fmt"

	"github.com/xraph/tienda/config"
	"github.com/xraph/tienda/store"
	"github.com/xraph/tienda/store/bolt"
	"github.com/xraph/tienda/store/memory"
	"github.com/xraph/tienda/store/mongo"
	"github.com/xraph/tienda/store/postgres"
	"github.com/xraph/tienda/store/redis"
	"github.com/xraph/tienda/store/sqlite"
)

// openStore builds the snapshot backend selected by TIENDA_STORE_DRIVER.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	key := cfg.SnapshotKey

	switch cfg.StoreDriver {
	case config.DriverMemory:
		return memory.New(), nil

	case config.DriverBolt:
		var opts []bolt.Option
		if key != "" {
			opts = append(opts, bolt.WithKey(key))
		}
		return bolt.Open(cfg.BoltPath, opts...)

	case config.DriverSQLite:
		var opts []sqlite.Option
		if key != "" {
			opts = append(opts, sqlite.WithKey(key))
		}
		return sqlite.Open(ctx, cfg.SQLitePath, opts...)

	case config.DriverRedis:
		var opts []redis.Option
		if key != "" {
			opts = append(opts, redis.WithKey(key))
		}
		return redis.Open(cfg.RedisURL, opts...)

	case config.DriverPostgres:
		var opts []postgres.Option
		if key != "" {
			opts = append(opts, postgres.WithKey(key))
		}
		return postgres.Open(ctx, cfg.PGDSN, opts...)

	case config.DriverMongo:
		var opts []mongo.Option
		if key != "" {
			opts = append(opts, mongo.WithKey(key))
		}
		return mongo.Open(ctx, cfg.MongoURI, cfg.MongoDatabase, opts...)

	default:
		return nil, fmt.Errorf("tiendad: unknown store driver %q", cfg.StoreDriver)
	}
}

package main

import (
	"context"
	"fmt"

	"folio/internal/config"
	"folio/internal/database"
	"folio/internal/logger"
	"folio/internal/monitoring"
	"folio/internal/store"
)

type stores struct {
	documents  store.DocumentStore
	identities store.IdentityStore
}

// openStores builds the document and identity stores for the configured driver.
// Closing the document store releases the shared connection.
func openStores(ctx context.Context, cfg *config.Config, metrics *monitoring.Metrics) (*stores, error) {
	switch cfg.Store.Driver {
	case "memory":
		logger.Warn("Using in-memory store, data is lost on restart")
		return &stores{
			documents:  store.NewMemoryStore(),
			identities: store.NewMemoryIdentityStore(),
		}, nil

	case "postgres":
		dbConfig := databaseConfig(cfg.Database)
		if cfg.Database.AutoMigrate {
			if err := database.Migrate(ctx, dbConfig, cfg.Database.MigrationsDir); err != nil {
				return nil, err
			}
			logger.Info("Database migrations applied")
		}

		db, err := database.NewConnection(ctx, &dbConfig)
		if err != nil {
			return nil, err
		}
		if metrics != nil {
			db.SetMonitorCallback(func(stats *database.PoolStats) {
				metrics.SetDBConnections(stats.OpenConnections, stats.InUse, stats.Idle)
			})
		}

		documents, err := database.NewDocumentStore(db)
		if err != nil {
			db.Close()
			return nil, err
		}
		return &stores{
			documents:  documents,
			identities: database.NewIdentityStore(db),
		}, nil

	case "redis":
		client, err := store.NewRedisClient(ctx, store.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			return nil, err
		}
		return &stores{
			documents:  store.NewRedisStore(client, cfg.Redis.KeyPrefix),
			identities: store.NewRedisIdentityStore(client, cfg.Redis.KeyPrefix),
		}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func databaseConfig(c config.DatabaseConfig) database.Config {
	return database.Config{
		Host:     c.Host,
		Port:     c.Port,
		User:     c.User,
		Password: c.Password,
		DBName:   c.DBName,
		SSLMode:  c.SSLMode,
		MaxOpen:  c.MaxOpen,
		MaxIdle:  c.MaxIdle,
		Timeout:  c.Timeout,
	}
}

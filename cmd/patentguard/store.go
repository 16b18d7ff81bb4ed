package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/intellium/patentguard/pkg/auth"
	"github.com/intellium/patentguard/pkg/observability"
	"github.com/intellium/patentguard/pkg/storage"
	"github.com/intellium/patentguard/pkg/storage/memory"
	"github.com/intellium/patentguard/pkg/storage/postgres"
	"github.com/intellium/patentguard/pkg/storage/sqlite"
)

// openStore connects the configured credential store
func openStore(ctx context.Context, cfg storage.Config, metrics *observability.Metrics, logger *observability.Logger) (auth.UserStore, error) {
	switch cfg.Type {
	case storage.TypeMemory:
		logger.Warn("Using the in-memory credential store; users are lost on restart")
		return memory.New(), nil

	case storage.TypeSQLite:
		store, err := sqlite.Connect(ctx, cfg, metrics, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return store, nil

	case storage.TypePostgres:
		logger.WithField("url", postgres.RedactURL(cfg.PostgresURL)).Info("Connecting to PostgreSQL")
		store, err := postgres.Connect(ctx, cfg, metrics, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// sqlHandle returns the pool behind SQL-backed stores, nil otherwise
func sqlHandle(store auth.UserStore) *sql.DB {
	if s, ok := store.(interface{ DB() *sql.DB }); ok {
		return s.DB()
	}
	return nil
}

func recordDBStats(ctx context.Context, db *sql.DB, metrics *observability.Metrics) {
	ticker := time.NewTicker(dbStatsInterval)
	defer ticker.Stop()
	for {
		metrics.RecordDBStats(db.Stats())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

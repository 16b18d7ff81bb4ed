package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/intellium/patentguard/pkg/storage"
)

// Open connects to PostgreSQL, applies the pool limits from config and
// verifies the server answers within ConnectTimeout.
func Open(ctx context.Context, config storage.Config) (*sql.DB, error) {
	if config.PostgresURL == "" {
		return nil, fmt.Errorf("postgres URL is not configured")
	}

	db, err := sql.Open("postgres", config.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	configurePool(db, config)

	pingCtx, cancel := pingContext(ctx, config)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, storage.Unavailable("ping postgres", err)
	}

	return db, nil
}

func configurePool(db *sql.DB, config storage.Config) {
	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)
}

func pingContext(ctx context.Context, config storage.Config) (context.Context, context.CancelFunc) {
	if config.ConnectTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, config.ConnectTimeout)
}

// RedactURL hides the password of a connection URL for logging
func RedactURL(raw string) string {
	schemeEnd := strings.Index(raw, "://")
	at := strings.LastIndex(raw, "@")
	if schemeEnd < 0 || at < schemeEnd {
		return raw
	}
	creds := raw[schemeEnd+3 : at]
	colon := strings.Index(creds, ":")
	if colon < 0 {
		return raw
	}
	return raw[:schemeEnd+3] + creds[:colon] + ":xxxxx" + raw[at:]
}

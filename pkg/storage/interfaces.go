package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors returned by every UserStore backend. Callers match them
// with errors.Is; backends wrap driver errors with %w.
var (
	// ErrNotFound is returned when no user matches the lookup
	ErrNotFound = errors.New("storage: user not found")

	// ErrDuplicate is returned when an insert violates the unique email index
	ErrDuplicate = errors.New("storage: duplicate email")

	// ErrUnavailable is returned for timeouts and connection failures
	ErrUnavailable = errors.New("storage: backend unavailable")
)

// Backend names accepted in Config.Type
const (
	TypeMemory   = "memory"
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
)

// Config for storage backend
type Config struct {
	Type string `yaml:"type"` // "memory", "sqlite", "postgres"

	// PostgreSQL config
	PostgresURL string `yaml:"postgres_url"`

	// SQLite config
	SQLitePath string `yaml:"sqlite_path"`

	// Pool and timeouts for the SQL backends
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
	AutoMigrate     bool          `yaml:"auto_migrate"`

	// Redis config (optional, used by the shared rate-limit counter)
	RedisURL        string `yaml:"redis_url"`
	RedisPassword   string `yaml:"redis_password"`
	RedisDB         int    `yaml:"redis_db"`
	RedisMaxRetries int    `yaml:"redis_max_retries"`
	RedisPoolSize   int    `yaml:"redis_pool_size"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Type:            TypeMemory,
		SQLitePath:      "patentguard.db",
		MaxOpenConns:    30,
		MaxIdleConns:    20,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 10 * time.Minute,
		ConnectTimeout:  30 * time.Second,
		QueryTimeout:    5 * time.Second,
		AutoMigrate:     true,
		RedisDB:         0,
		RedisMaxRetries: 3,
		RedisPoolSize:   10,
	}
}

// Validate checks the backend specific settings
func (c Config) Validate() error {
	switch c.Type {
	case TypeMemory:
	case TypeSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required for sqlite storage")
		}
	case TypePostgres:
		if c.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for postgres storage")
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be memory, sqlite, or postgres)", c.Type)
	}

	if c.QueryTimeout <= 0 {
		return fmt.Errorf("query timeout must be positive")
	}
	if c.MaxOpenConns < 0 || c.MaxIdleConns < 0 {
		return fmt.Errorf("connection pool sizes must not be negative")
	}
	return nil
}

// QueryContext bounds ctx by the configured query timeout
func (c Config) QueryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.QueryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.QueryTimeout)
}

// Unavailable wraps err so it matches ErrUnavailable while keeping the
// driver error in the chain for logs.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

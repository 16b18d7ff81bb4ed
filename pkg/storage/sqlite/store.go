// Package sqlite implements the user store on SQLite via mattn/go-sqlite3.
// It backs local development and the store integration tests.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/intellium/patentguard/pkg/auth"
	"github.com/intellium/patentguard/pkg/observability"
	"github.com/intellium/patentguard/pkg/storage"
	"github.com/intellium/patentguard/pkg/storage/migrations"
)

const backendName = "sqlite"

const userColumns = `id, email, hashed_password, full_name, is_active, is_superuser, created_at, updated_at`

// Store implements auth.UserStore on SQLite
type Store struct {
	db      *sql.DB
	config  storage.Config
	metrics *observability.Metrics
	now     func() time.Time
}

var _ auth.UserStore = (*Store)(nil)

// DSN turns a file path into a go-sqlite3 connection string with a busy
// timeout and immediate write locks.
func DSN(path string) string {
	if path == ":memory:" {
		return "file::memory:?_busy_timeout=5000&_txlock=immediate"
	}
	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_busy_timeout=5000&_txlock=immediate"
}

// Open opens the database file. SQLite allows one writer at a time, so the
// pool is pinned to a single connection.
func Open(ctx context.Context, config storage.Config) (*sql.DB, error) {
	if config.SQLitePath == "" {
		return nil, fmt.Errorf("sqlite path is not configured")
	}

	db, err := sql.Open("sqlite3", DSN(config.SQLitePath))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, storage.Unavailable("ping sqlite", err)
	}
	return db, nil
}

// New wraps an open database. metrics may be nil.
func New(db *sql.DB, config storage.Config, metrics *observability.Metrics) *Store {
	return &Store{db: db, config: config, metrics: metrics, now: time.Now}
}

// Connect opens the database and applies migrations when AutoMigrate is set
func Connect(ctx context.Context, config storage.Config, metrics *observability.Metrics, logger *observability.Logger) (*Store, error) {
	if logger == nil {
		logger = observability.NewNopLogger()
	}

	db, err := Open(ctx, config)
	if err != nil {
		return nil, err
	}

	if config.AutoMigrate {
		version, err := migrations.Up(ctx, db, migrations.SQLite)
		if err != nil {
			db.Close()
			return nil, err
		}
		logger.WithField("schema_version", version).Info("SQLite migrations applied")
	}

	logger.WithField("path", config.SQLitePath).Info("Opened sqlite database")
	return New(db, config, metrics), nil
}

// DB exposes the handle for health checks
func (s *Store) DB() *sql.DB {
	return s.db
}

// FindByEmail looks a user up by exact email
func (s *Store) FindByEmail(ctx context.Context, email string) (u *auth.User, err error) {
	defer s.observe("find_by_email", time.Now(), &err)

	ctx, cancel := s.config.QueryContext(ctx)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row, "find user by email")
}

// FindByID looks a user up by primary key
func (s *Store) FindByID(ctx context.Context, id int64) (u *auth.User, err error) {
	defer s.observe("find_by_id", time.Now(), &err)

	ctx, cancel := s.config.QueryContext(ctx)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row, "find user by id")
}

// Insert adds a user inside a transaction
func (s *Store) Insert(ctx context.Context, u *auth.User) (out *auth.User, err error) {
	defer s.observe("insert", time.Now(), &err)

	ctx, cancel := s.config.QueryContext(ctx)
	defer cancel()

	stored := *u
	now := s.now().UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	err = storage.WithTx(ctx, s.db, nil, func(ctx context.Context, tx storage.DBTX) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO users (email, hashed_password, full_name, is_active, is_superuser, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			u.Email, u.PasswordHash, u.FullName, u.IsActive, u.IsSuperuser, now, now,
		)
		if err != nil {
			return err
		}
		stored.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("insert user %q: %w", u.Email, storage.ErrDuplicate)
		}
		return nil, storage.Unavailable("insert user", err)
	}
	return &stored, nil
}

// SetActive flips the active flag of a user
func (s *Store) SetActive(ctx context.Context, id int64, active bool) error {
	ctx, cancel := s.config.QueryContext(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?`, active, s.now().UTC(), id)
	if err != nil {
		return storage.Unavailable("update user", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Ping checks the database handle
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return storage.Unavailable("ping sqlite", err)
	}
	return nil
}

// Close releases the handle
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) observe(op string, start time.Time, errp *error) {
	var err error
	if errors.Is(*errp, storage.ErrUnavailable) {
		err = *errp
	}
	s.metrics.ObserveStoreOperation(op, backendName, err, time.Since(start))
}

func scanUser(row *sql.Row, op string) (*auth.User, error) {
	var u auth.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName,
		&u.IsActive, &u.IsSuperuser, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, storage.Unavailable(op, err)
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
}

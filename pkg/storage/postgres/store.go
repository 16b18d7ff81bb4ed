// Package postgres implements the user store on PostgreSQL via lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/intellium/patentguard/pkg/auth"
	"github.com/intellium/patentguard/pkg/observability"
	"github.com/intellium/patentguard/pkg/storage"
	"github.com/intellium/patentguard/pkg/storage/migrations"
)

const backendName = "postgres"

// uniqueViolation is the SQLSTATE for unique_violation
const uniqueViolation = "23505"

const userColumns = `id, email, hashed_password, full_name, is_active, is_superuser, created_at, updated_at`

// Store implements auth.UserStore on PostgreSQL
type Store struct {
	db      *sql.DB
	config  storage.Config
	metrics *observability.Metrics
}

var _ auth.UserStore = (*Store)(nil)

// New wraps an open database. metrics may be nil.
func New(db *sql.DB, config storage.Config, metrics *observability.Metrics) *Store {
	return &Store{db: db, config: config, metrics: metrics}
}

// Connect opens the database, runs migrations when AutoMigrate is set and
// returns the store.
func Connect(ctx context.Context, config storage.Config, metrics *observability.Metrics, logger *observability.Logger) (*Store, error) {
	if logger == nil {
		logger = observability.NewNopLogger()
	}

	db, err := Open(ctx, config)
	if err != nil {
		return nil, err
	}

	if config.AutoMigrate {
		version, err := migrations.Up(ctx, db, migrations.Postgres)
		if err != nil {
			db.Close()
			return nil, err
		}
		logger.WithField("schema_version", version).Info("Postgres migrations applied")
	}

	logger.WithField("url", RedactURL(config.PostgresURL)).Info("Connected to postgres")
	return New(db, config, metrics), nil
}

// DB exposes the pool for health checks
func (s *Store) DB() *sql.DB {
	return s.db
}

// FindByEmail looks a user up by exact email
func (s *Store) FindByEmail(ctx context.Context, email string) (u *auth.User, err error) {
	defer s.observe("find_by_email", time.Now(), &err)

	ctx, cancel := s.config.QueryContext(ctx)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row, "find user by email")
}

// FindByID looks a user up by primary key
func (s *Store) FindByID(ctx context.Context, id int64) (u *auth.User, err error) {
	defer s.observe("find_by_id", time.Now(), &err)

	ctx, cancel := s.config.QueryContext(ctx)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row, "find user by id")
}

// Insert adds a user inside a transaction. The unique index on email turns a
// concurrent duplicate into storage.ErrDuplicate.
func (s *Store) Insert(ctx context.Context, u *auth.User) (out *auth.User, err error) {
	defer s.observe("insert", time.Now(), &err)

	ctx, cancel := s.config.QueryContext(ctx)
	defer cancel()

	stored := *u
	err = storage.WithTx(ctx, s.db, nil, func(ctx context.Context, tx storage.DBTX) error {
		return tx.QueryRowContext(ctx,
			`INSERT INTO users (email, hashed_password, full_name, is_active, is_superuser)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id, created_at, updated_at`,
			u.Email, u.PasswordHash, u.FullName, u.IsActive, u.IsSuperuser,
		).Scan(&stored.ID, &stored.CreatedAt, &stored.UpdatedAt)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("insert user %q: %w", u.Email, storage.ErrDuplicate)
		}
		return nil, storage.Unavailable("insert user", err)
	}
	return &stored, nil
}

// Ping checks the connection within the query timeout
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.config.QueryContext(ctx)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return storage.Unavailable("ping postgres", err)
	}
	return nil
}

// Close releases the pool
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
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

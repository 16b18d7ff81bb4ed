// Package storage defines the configuration, sentinel errors and shared
// helpers for the credential store backends.
//
// # Backends
//
//   - memory: in-process maps, for development and tests
//   - sqlite: mattn/go-sqlite3, single-writer file database
//   - postgres: lib/pq with a pooled *sql.DB
//
// Each backend implements auth.UserStore and lives in its own subpackage so
// the driver is only linked when used. Schemas are embedded goose
// migrations (package migrations) applied on Connect when AutoMigrate is set.
//
// # Errors
//
// Backends translate driver errors into three sentinels:
//
//	storage.ErrNotFound     no row matched
//	storage.ErrDuplicate    unique email index violated
//	storage.ErrUnavailable  timeout, cancelled context or lost connection
//
// Wrap driver failures with Unavailable so both the sentinel and the cause
// stay visible to errors.Is:
//
//	if err != nil {
//		return nil, storage.Unavailable("find user by email", err)
//	}
//
// # Transactions
//
// WithTx runs fn in a transaction and commits on success. It rolls back on
// error or panic and rethrows the panic:
//
//	err := storage.WithTx(ctx, db, func(tx *sql.Tx) error {
//		return tx.QueryRowContext(ctx, insertUser, ...).Scan(&id)
//	})
//
// # Redis
//
// NewRedisClient builds the go-redis client used by the shared rate limit
// counter and the readiness check.
package storage

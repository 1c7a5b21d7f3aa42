// Package db opens the SQL database backing the item, pointer and history
// stores, and keeps its schema migrated.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	maxRetries  = 5
	initialWait = 100 * time.Millisecond
)

// Driver selects the SQL dialect.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// OpenOptions configures the database connection.
type OpenOptions struct {
	Driver Driver
	// DSN is required for postgres. For sqlite it defaults to cadence.db in DataDir.
	DSN          string
	DataDir      string
	MaxOpenConns int
	MaxIdleConns int
	BusyTimeout  int // milliseconds, sqlite only
}

// DefaultOpenOptions returns the default sqlite options.
func DefaultOpenOptions() OpenOptions {
	return OpenOptions{
		Driver:       DriverSQLite,
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		BusyTimeout:  5000,
	}
}

// DB wraps a SQL connection pool with its dialect.
type DB struct {
	conn   *sql.DB
	driver Driver
}

// Open creates a new database connection with connection pooling and retry
// logic, then applies pending migrations.
func Open(opts OpenOptions) (*DB, error) {
	defaults := DefaultOpenOptions()
	if opts.Driver == "" {
		opts.Driver = defaults.Driver
	}
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = defaults.MaxOpenConns
	}
	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = defaults.MaxIdleConns
	}
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = defaults.BusyTimeout
	}

	dsn, err := opts.dsn()
	if err != nil {
		return nil, err
	}

	conn, err := sql.Open(string(opts.Driver), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(opts.MaxOpenConns)
	conn.SetMaxIdleConns(opts.MaxIdleConns)
	conn.SetConnMaxLifetime(0)

	db := &DB{conn: conn, driver: opts.Driver}

	if err := db.pingWithRetry(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := migrateUp(context.Background(), db); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// Wrap returns a DB around an existing connection without migrating it.
func Wrap(conn *sql.DB, driver Driver) *DB {
	return &DB{conn: conn, driver: driver}
}

func (o OpenOptions) dsn() (string, error) {
	switch o.Driver {
	case DriverSQLite:
		if o.DSN != "" {
			return o.DSN, nil
		}
		if o.DataDir == "" {
			return "", fmt.Errorf("sqlite requires a data directory or dsn")
		}
		if err := os.MkdirAll(o.DataDir, 0o755); err != nil {
			return "", fmt.Errorf("create data dir: %w", err)
		}
		dbPath := filepath.Join(o.DataDir, "cadence.db")
		return fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=foreign_keys(ON)", dbPath, o.BusyTimeout), nil
	case DriverPostgres:
		if o.DSN == "" {
			return "", fmt.Errorf("postgres requires a dsn")
		}
		return o.DSN, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", o.Driver)
	}
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying connection pool.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Driver returns the dialect in use.
func (db *DB) Driver() Driver {
	return db.driver
}

// Rebind rewrites ? placeholders into the dialect's form. Queries must not
// contain literal question marks.
func (db *DB) Rebind(query string) string {
	if db.driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// WithTx executes a function within a transaction.
// If the function returns an error, the transaction is rolled back.
func (db *DB) WithTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// pingWithRetry attempts to ping the database with exponential backoff.
func (db *DB) pingWithRetry(ctx context.Context) error {
	wait := initialWait
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		if lastErr = db.conn.PingContext(ctx); lastErr == nil {
			return nil
		}

		if i < maxRetries-1 {
			time.Sleep(wait)
			wait *= 2
		}
	}

	return fmt.Errorf("failed to ping database after %d retries: %w", maxRetries, lastErr)
}

package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	dirMode  = 0750
	fileMode = 0600

	// pingTimeout bounds the connectivity check in Open.
	pingTimeout = 5 * time.Second

	idleConnLifetime = 30 * time.Minute
)

// Config holds the database section of config.yaml.
type Config struct {
	// Path to the SQLite file. Parent directories are created on open.
	Path string

	// WALMode turns on write-ahead logging so reads proceed during writes.
	WALMode bool

	// BusyTimeout is how long, in seconds, a statement waits on a locked
	// database before failing.
	BusyTimeout int
}

// DB is the SQLite handle used across the daemon. It embeds sql.DB and adds
// migrations and a health check on top.
type DB struct {
	*sql.DB
	path string
}

// Open opens (creating if needed) the SQLite database at cfg.Path, applies
// the configured pragmas, and verifies the connection before returning.
func Open(cfg Config) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), dirMode); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on", cfg.Path, cfg.BusyTimeout*1000)
	if cfg.WALMode {
		dsn += "&_journal_mode=WAL&_synchronous=NORMAL"
	}

	handle, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Single writer; SQLite serialises writes anyway, and one pooled
	// connection avoids SQLITE_BUSY churn between our own goroutines.
	handle.SetMaxOpenConns(1)
	handle.SetMaxIdleConns(1)
	handle.SetConnMaxLifetime(time.Hour)
	handle.SetConnMaxIdleTime(idleConnLifetime)

	db := &DB{DB: handle, path: cfg.Path}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		handle.Close() //nolint:errcheck // already on the error path
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}

	// The file may not exist until the first write, so a chmod failure here
	// is not actionable.
	_ = os.Chmod(cfg.Path, fileMode)

	return db, nil
}

// Close releases the underlying connection pool.
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// Path returns the database file location.
func (db *DB) Path() string {
	return db.path
}

// HealthCheck runs a trivial query to confirm the database answers.
func (db *DB) HealthCheck(ctx context.Context) error {
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

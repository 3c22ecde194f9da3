// Package db provides the SQLite-backed reference catalog for hardlinks.
//
// The catalog stores one row per data object (logical path) and any number
// of metadata triples per data object. Several data objects may record the
// same physical path; the hard-link engine keeps those pointers in sync.
//
// The database runs embedded (github.com/ncruces/go-sqlite3) in WAL mode so
// readers proceed while a writer commits.
//
// Architecture:
//   - Database file: .hardlinks/catalog.db
//   - Tables: data_objects, metadata
//   - Indexes: logical path (unique), physical path, metadata attribute/value
//
// Schema setup keeps a convenience form using context.Background() next
// to its XContext form. Everything else takes a context directly.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Mschirtzinger/hardlinks/internal/catalog"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DefaultResourceID is the resource new registrations land on when the
// configuration does not name one.
const DefaultResourceID = "10014"

// Config holds catalog options.
type Config struct {
	// DefaultResourceID is recorded on data objects registered without an
	// explicit resource.
	DefaultResourceID string

	// BusyTimeout is how long a writer waits for the database lock.
	BusyTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DefaultResourceID: DefaultResourceID,
		BusyTimeout:       5 * time.Second,
	}
}

// DB wraps the SQLite connection pool and implements catalog.Catalog.
type DB struct {
	conn   *sql.DB
	path   string
	config *Config
}

var _ catalog.Catalog = (*DB)(nil)

// Open creates a catalog connection at the specified path with default options.
//
// The caller MUST call Close() when done.
//
// Example:
//
//	cat, err := db.Open(".hardlinks/catalog.db")
//	if err != nil {
//	    return err
//	}
//	defer cat.Close()
func Open(path string) (*DB, error) {
	return OpenWithConfig(path, DefaultConfig())
}

// OpenWithConfig creates a catalog connection with custom configuration.
// The schema is created if it does not exist yet.
func OpenWithConfig(path string, config *Config) (*DB, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.DefaultResourceID == "" {
		config.DefaultResourceID = DefaultResourceID
	}
	if config.BusyTimeout <= 0 {
		config.BusyTimeout = 5 * time.Second
	}

	path = strings.TrimPrefix(path, "file:")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create catalog directory: %w", err)
	}

	// Per-connection pragmas go in the DSN so every pooled connection gets them.
	connStr := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)&_txlock=immediate",
		path, config.BusyTimeout.Milliseconds())
	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping catalog: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{
		conn:   conn,
		path:   path,
		config: config,
	}

	// WAL is persistent in the database file, once is enough
	if _, err := db.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := db.InitSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// DefaultResource returns the resource id used for new registrations.
func (db *DB) DefaultResource() string {
	return db.config.DefaultResourceID
}

// Close checkpoints the WAL and closes the connection pool.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close catalog: %w", err)
	}

	db.conn = nil
	return nil
}

// InitSchema creates the catalog schema if it doesn't exist.
// Idempotent: safe to call multiple times.
func (db *DB) InitSchema() error {
	return db.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the catalog schema with context support.
func (db *DB) InitSchemaContext(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS data_objects (
		data_id INTEGER PRIMARY KEY AUTOINCREMENT,
		coll_name TEXT NOT NULL,
		data_name TEXT NOT NULL,
		data_path TEXT NOT NULL,
		resc_id TEXT NOT NULL,
		data_size INTEGER NOT NULL DEFAULT 0,
		owner_name TEXT NOT NULL DEFAULT '',
		create_ts TEXT NOT NULL,
		modify_ts TEXT NOT NULL,
		UNIQUE (coll_name, data_name)
	);

	CREATE TABLE IF NOT EXISTS metadata (
		meta_id INTEGER PRIMARY KEY AUTOINCREMENT,
		data_id INTEGER NOT NULL,
		attr_name TEXT NOT NULL,
		attr_value TEXT NOT NULL,
		attr_unit TEXT NOT NULL DEFAULT '',
		create_ts TEXT NOT NULL,
		FOREIGN KEY (data_id) REFERENCES data_objects(data_id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_data_objects_path ON data_objects(data_path);
	CREATE INDEX IF NOT EXISTS idx_metadata_data ON metadata(data_id);
	CREATE INDEX IF NOT EXISTS idx_metadata_attr ON metadata(attr_name, attr_value);
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// GetObjectCountContext returns the number of data objects with context support.
func (db *DB) GetObjectCountContext(ctx context.Context) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM data_objects").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get object count: %w", err)
	}
	return count, nil
}

// GetGroupCountContext returns the number of distinct group ids with context support.
func (db *DB) GetGroupCountContext(ctx context.Context) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT attr_value) FROM metadata WHERE attr_name = ?",
		catalog.HardLinkAttribute,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get group count: %w", err)
	}
	return count, nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Package db opens the SQLite files ragdesk keeps under .ragdesk/: the
// application database (sessions, turns, key-value state) and the persisted
// vector index.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	// Register sqlite-vec as an auto-extension so every SQLite connection
	// opened by this process has the vec0 virtual table module available.
	vec.Auto()
}

// DB wraps a *sql.DB and exposes helpers.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the application database at path and applies migrations.
func Open(path string) (*DB, error) {
	conn, err := openFile(path, "_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	// Single writer, multiple readers.
	conn.SetMaxOpenConns(1)

	if err := applyMigrations(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Create opens a read-write connection without applying the application
// schema. The vector index writes its own layout through it.
func Create(path string) (*sql.DB, error) {
	conn, err := openFile(path, "_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(1)
	return conn, nil
}

// OpenReadOnly opens an existing SQLite file without creating it.
func OpenReadOnly(path string) (*sql.DB, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}
	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", absPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return conn, nil
}

func openFile(path, params string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", absPath, params))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return conn, nil
}

// VecAvailable reports whether the sqlite-vec extension is loaded on conn.
func VecAvailable(ctx context.Context, conn *sql.DB) bool {
	var version string
	return conn.QueryRowContext(ctx, `SELECT vec_version()`).Scan(&version) == nil
}

// CreateVecTable creates a vec0 virtual table keyed by an integer row id.
func CreateVecTable(ctx context.Context, conn *sql.DB, name string, dimension int) error {
	stmt := fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec0(
		embedding float[%d]
	)`, name, dimension)
	if _, err := conn.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create vector table: %w", err)
	}
	return nil
}

// SerializeVector encodes v in the compact float32 format vec0 expects.
func SerializeVector(v []float32) ([]byte, error) {
	return vec.SerializeFloat32(v)
}

// Conn returns the underlying *sql.DB for use by store layers.
func (d *DB) Conn() *sql.DB {
	return d.conn
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Ping checks the connection is live.
func (d *DB) Ping() error {
	return d.conn.Ping()
}

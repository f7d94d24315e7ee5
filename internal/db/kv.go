package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// KV is a durable key-value store backed by the kv table.
type KV struct {
	conn *sql.DB
}

// NewKV returns a KV over the application database.
func NewKV(d *DB) *KV {
	return &KV{conn: d.conn}
}

// Read returns the value stored under key. ok is false when the key is absent.
func (k *KV) Read(ctx context.Context, key string) (value []byte, ok bool, err error) {
	err = k.conn.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("db: kv read %q: %w", key, err)
	}
	return value, true, nil
}

// Write replaces the value stored under key.
func (k *KV) Write(ctx context.Context, key string, value []byte) error {
	_, err := k.conn.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value)
	if err != nil {
		return fmt.Errorf("db: kv write %q: %w", key, err)
	}
	return nil
}

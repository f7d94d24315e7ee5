package conversation

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/ragdesk/ragdesk/internal/db"
)

// Store persists session logs in the application database.
type Store struct {
	conn *sql.DB
}

// NewStore creates a Store backed by the given DB.
func NewStore(database *db.DB) *Store {
	return &Store{conn: database.Conn()}
}

// NewSessionID returns a fresh opaque session token.
func NewSessionID() string {
	return uuid.NewString()
}

// ValidSessionID reports whether id looks like a token from NewSessionID.
func ValidSessionID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Load returns the log for id. An unknown session yields an empty log.
func (s *Store) Load(ctx context.Context, id string) (*Log, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT role, content FROM turns WHERE session_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("conversation: load %s: %w", id, err)
	}
	defer rows.Close()

	log := &Log{ID: id}
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.Role, &t.Content); err != nil {
			return nil, fmt.Errorf("conversation: scan turn: %w", err)
		}
		log.Turns = append(log.Turns, t)
	}
	return log, rows.Err()
}

// AppendExchange records a question and its answer atomically.
func (s *Store) AppendExchange(ctx context.Context, id, question, answer string) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("conversation: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (id) VALUES (?)
		ON CONFLICT(id) DO UPDATE SET updated_at = CURRENT_TIMESTAMP`, id); err != nil {
		return fmt.Errorf("conversation: upsert session: %w", err)
	}
	for _, t := range []Turn{{Role: "user", Content: question}, {Role: "assistant", Content: answer}} {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO turns (session_id, role, content) VALUES (?, ?, ?)`,
			id, t.Role, t.Content); err != nil {
			return fmt.Errorf("conversation: insert turn: %w", err)
		}
	}
	return tx.Commit()
}

// Clear removes every turn of session id.
func (s *Store) Clear(ctx context.Context, id string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM turns WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("conversation: clear %s: %w", id, err)
	}
	return nil
}

// Stats counts stored sessions and turns.
type Stats struct {
	Sessions int
	Turns    int
}

// Count returns the number of stored sessions and turns.
func (s *Store) Count(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.conn.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM sessions), (SELECT COUNT(*) FROM turns)`,
	).Scan(&st.Sessions, &st.Turns)
	if err != nil {
		return st, fmt.Errorf("conversation: count: %w", err)
	}
	return st, nil
}

// Prune deletes sessions idle for more than days days, with their turns.
// It returns the number of sessions removed.
func (s *Store) Prune(ctx context.Context, days int) (int64, error) {
	res, err := s.conn.ExecContext(ctx,
		`DELETE FROM sessions WHERE updated_at < datetime('now', ?)`,
		fmt.Sprintf("-%d days", days))
	if err != nil {
		return 0, fmt.Errorf("conversation: prune: %w", err)
	}
	return res.RowsAffected()
}

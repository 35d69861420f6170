// SQLite-backed store.
//
// Information Hiding:
// - SQLite connection management hidden behind interface
// - Schema and migration details encapsulated
// - Thread-safe via sql.DB's built-in connection pooling

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warden-agent/warden/audit"
	"github.com/warden-agent/warden/llm"
)

// SqliteStore implements ConversationStore and MemoryStore using
// SQLite, and doubles as a persistent audit.Sink. Thread-safe: sql.DB
// handles connection pooling and concurrent access.
type SqliteStore struct {
	db *sql.DB
}

// OpenSqlite opens or creates a SQLite database at the given path.
// Creates parent directories if they don't exist.
func OpenSqlite(path string) (*SqliteStore, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	store := &SqliteStore{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// NewSqliteInMemory creates an in-memory database (useful for testing).
func NewSqliteInMemory() (*SqliteStore, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}

	store := &SqliteStore{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *SqliteStore) Close() error {
	return s.db.Close()
}

func (s *SqliteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			message_index INTEGER NOT NULL,
			role TEXT NOT NULL,
			payload TEXT NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE CASCADE,
			UNIQUE(session_id, message_index)
		);

		CREATE INDEX IF NOT EXISTS idx_messages_session
		ON messages(session_id, message_index);

		CREATE TABLE IF NOT EXISTS facts (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_facts_session
		ON facts(session_id, created_at DESC);

		CREATE TABLE IF NOT EXISTS audit_events (
			id TEXT PRIMARY KEY,
			at TEXT NOT NULL,
			event_type TEXT NOT NULL,
			session_id TEXT NOT NULL,
			tool TEXT,
			path TEXT,
			reason TEXT,
			detail TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_audit_session
		ON audit_events(session_id, at);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *SqliteStore) ensureSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO sessions (session_id) VALUES (?)",
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to ensure session: %w", err)
	}
	return nil
}

// Save replaces the stored history for a session. Messages are stored
// as JSON so tool calls and call IDs round-trip intact.
func (s *SqliteStore) Save(ctx context.Context, sessionID string, history []llm.ChatMessage) error {
	if err := s.ensureSession(ctx, sessionID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// Rollback after Commit is a no-op.
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, "DELETE FROM messages WHERE session_id = ?", sessionID)
	if err != nil {
		return fmt.Errorf("failed to clear old messages: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO messages (session_id, message_index, role, payload) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	defer stmt.Close()

	for i, msg := range history {
		payload, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("failed to encode message %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, sessionID, i, msg.Role, string(payload)); err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE sessions SET updated_at = datetime('now') WHERE session_id = ?",
		sessionID)
	if err != nil {
		return fmt.Errorf("failed to update session timestamp: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Load loads conversation history for a session.
// Returns empty slice if session doesn't exist.
func (s *SqliteStore) Load(ctx context.Context, sessionID string) ([]llm.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT payload FROM messages WHERE session_id = ? ORDER BY message_index ASC",
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := []llm.ChatMessage{} // Start with empty slice, not nil
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		var msg llm.ChatMessage
		if err := json.Unmarshal([]byte(payload), &msg); err != nil {
			return nil, fmt.Errorf("failed to decode message: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}

// Delete deletes conversation history for a session.
func (s *SqliteStore) Delete(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE session_id = ?",
		sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// ListSessions lists all session IDs, most recently updated first.
func (s *SqliteStore) ListSessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT session_id FROM sessions ORDER BY updated_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []string{} // Start with empty slice, not nil
	for rows.Next() {
		var sessionID string
		if err := rows.Scan(&sessionID); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, sessionID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return sessions, nil
}

// SaveFact stores one fact.
func (s *SqliteStore) SaveFact(ctx context.Context, fact Fact) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO facts (id, session_id, content, created_at) VALUES (?, ?, ?, ?)",
		fact.ID, fact.SessionID, fact.Content, fact.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save fact: %w", err)
	}
	return nil
}

// Facts returns up to limit facts for a session, newest first.
func (s *SqliteStore) Facts(ctx context.Context, sessionID string, limit int) ([]Fact, error) {
	if limit <= 0 {
		limit = -1 // SQLite treats negative LIMIT as unlimited
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, content, created_at
		FROM facts
		WHERE session_id = ?
		ORDER BY created_at DESC, id
		LIMIT ?`,
		sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query facts: %w", err)
	}
	defer rows.Close()

	facts := []Fact{}
	for rows.Next() {
		var f Fact
		if err := rows.Scan(&f.ID, &f.SessionID, &f.Content, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan fact: %w", err)
		}
		facts = append(facts, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating facts: %w", err)
	}

	return facts, nil
}

// Record implements audit.Sink. Recording is best-effort: storage
// failures never fail the operation being audited.
func (s *SqliteStore) Record(ctx context.Context, ev audit.Event) {
	_, _ = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO audit_events
		(id, at, event_type, session_id, tool, path, reason, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID,
		ev.Time.Format("2006-01-02T15:04:05.000Z07:00"),
		string(ev.Type),
		ev.Session,
		ev.Tool,
		ev.Path,
		ev.Reason,
		ev.Detail,
	)
}

// Events returns recorded audit events for a session in insertion
// order (useful for inspection and tests).
func (s *SqliteStore) Events(ctx context.Context, sessionID string) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_type, session_id, tool, path, reason, detail
		FROM audit_events
		WHERE session_id = ?
		ORDER BY at, id`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	events := []audit.Event{}
	for rows.Next() {
		var ev audit.Event
		var typ string
		var tool, path, reason, detail sql.NullString
		if err := rows.Scan(&ev.ID, &typ, &ev.Session, &tool, &path, &reason, &detail); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		ev.Type = audit.EventType(typ)
		ev.Tool = tool.String
		ev.Path = path.String
		ev.Reason = reason.String
		ev.Detail = detail.String
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit events: %w", err)
	}

	return events, nil
}

// Verify SqliteStore implements the store interfaces.
var (
	_ ConversationStore = (*SqliteStore)(nil)
	_ MemoryStore       = (*SqliteStore)(nil)
	_ audit.Sink        = (*SqliteStore)(nil)
)

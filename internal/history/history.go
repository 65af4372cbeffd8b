// Package history records dispatched commands in a local SQLite database.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/rbright/suzerain/internal/config"
)

// Entry is one dispatch.
type Entry struct {
	ID             string
	At             time.Time
	Spoken         string
	Phrase         string
	Score          float64
	Method         string
	Modifiers      []string
	ExitCode       int
	State          string
	Duration       time.Duration
	ConversationID string
}

// Success reports whether the dispatch finished cleanly.
func (e Entry) Success() bool { return e.State == "completed" && e.ExitCode == 0 }

const schema = `
CREATE TABLE IF NOT EXISTS dispatches (
	id TEXT PRIMARY KEY,
	at_unix_ms INTEGER NOT NULL,
	spoken TEXT NOT NULL,
	phrase TEXT NOT NULL DEFAULT '',
	score REAL NOT NULL DEFAULT 0,
	method TEXT NOT NULL DEFAULT '',
	modifiers TEXT NOT NULL DEFAULT '',
	exit_code INTEGER NOT NULL DEFAULT 0,
	state TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	conversation_id TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_dispatches_at ON dispatches(at_unix_ms);
`

// Store is a dispatch log.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// DefaultPath returns $XDG_STATE_HOME/suzerain/history.db.
func DefaultPath() (string, error) {
	dir, err := config.StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("history path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return &Store{db: db, path: path, now: time.Now}, nil
}

// Path returns the database file.
func (s *Store) Path() string { return s.path }

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

// Record stores e, assigning an ID and timestamp when unset. It returns the stored entry.
func (s *Store) Record(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dispatches
			(id, at_unix_ms, spoken, phrase, score, method, modifiers, exit_code, state, duration_ms, conversation_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.At.UnixMilli(), e.Spoken, e.Phrase, e.Score, e.Method,
		strings.Join(e.Modifiers, ","), e.ExitCode, e.State, e.Duration.Milliseconds(), e.ConversationID,
	)
	if err != nil {
		return e, fmt.Errorf("record dispatch: %w", err)
	}
	return e, nil
}

// Recent returns up to n entries, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, at_unix_ms, spoken, phrase, score, method, modifiers, exit_code, state, duration_ms, conversation_id
		FROM dispatches
		ORDER BY at_unix_ms DESC, rowid DESC
		LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e           Entry
			atMS, durMS int64
			mods        string
		)
		if err := rows.Scan(&e.ID, &atMS, &e.Spoken, &e.Phrase, &e.Score, &e.Method, &mods, &e.ExitCode, &e.State, &durMS, &e.ConversationID); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		e.At = time.UnixMilli(atMS)
		e.Duration = time.Duration(durMS) * time.Millisecond
		if mods != "" {
			e.Modifiers = strings.Split(mods, ",")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// LastConversationID returns the conversation of the newest successful dispatch
// that reported one. ok is false when none exists.
func (s *Store) LastConversationID(ctx context.Context) (string, bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT conversation_id FROM dispatches
		WHERE conversation_id != '' AND state = 'completed' AND exit_code = 0
		ORDER BY at_unix_ms DESC, rowid DESC
		LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query last conversation: %w", err)
	}
	return id, true, nil
}

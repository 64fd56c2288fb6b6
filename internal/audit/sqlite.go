package audit

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS decisions (
    id         TEXT PRIMARY KEY,
    created_at TEXT NOT NULL,
    session_id TEXT NOT NULL DEFAULT '',
    tool       TEXT NOT NULL,
    command    TEXT NOT NULL DEFAULT '',
    decision   TEXT NOT NULL,
    reason     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_decisions_created_at ON decisions(created_at);
CREATE INDEX IF NOT EXISTS idx_decisions_decision ON decisions(decision);
`

// SQLiteRecorder implements Recorder backed by a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	log *slog.Logger
}

// DefaultDBPath returns the default database path (~/.local/share/mikiclaw/audit.db).
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "mikiclaw", "audit.db"), nil
}

// NewSQLiteRecorder opens (or creates) a SQLite database at dbPath and
// ensures the schema exists. A nil logger falls back to slog.Default.
func NewSQLiteRecorder(dbPath string, logger *slog.Logger) (*SQLiteRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteRecorder{db: db, log: logger}, nil
}

// Record persists one decision. ID and Time are filled in when unset.
// Denials are mirrored to the log at warn level.
func (r *SQLiteRecorder) Record(e Entry) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	_, err := r.db.Exec(`
		INSERT INTO decisions (id, created_at, session_id, tool, command, decision, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.Time.Format(time.RFC3339Nano),
		e.SessionID,
		e.Tool,
		e.Command,
		e.Decision,
		e.Reason,
	)
	if err != nil {
		r.log.Error("audit write failed", "tool", e.Tool, "error", err)
	}

	if e.Decision == "deny" {
		r.log.Warn("tool call denied",
			"tool", e.Tool,
			"command", e.Command,
			"reason", e.Reason,
			"session", e.SessionID,
		)
	}
}

// Recent returns the latest decisions, most recent first.
func (r *SQLiteRecorder) Recent(limit int) ([]Entry, error) {
	return r.query(`
		SELECT id, created_at, session_id, tool, command, decision, reason
		FROM decisions ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
}

// Denials returns the latest denied decisions, most recent first.
func (r *SQLiteRecorder) Denials(limit int) ([]Entry, error) {
	return r.query(`
		SELECT id, created_at, session_id, tool, command, decision, reason
		FROM decisions WHERE decision = 'deny'
		ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
}

func (r *SQLiteRecorder) query(q string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(q, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var createdAt string
		if err := rows.Scan(&e.ID, &createdAt, &e.SessionID, &e.Tool, &e.Command, &e.Decision, &e.Reason); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Time, _ = time.Parse(time.RFC3339Nano, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}

package session

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Memory is one persisted fact: a user preference, a project note, or
// anything the agent was told to remember across sessions.
type Memory struct {
	ID        string
	Content   string
	Tags      []string
	Source    string // "manual", "auto", or "tool"
	SessionID string
	CreatedAt time.Time
}

// MemoryStore persists memories across sessions.
type MemoryStore interface {
	Add(content string, tags []string, source, sessionID string) (*Memory, error)
	List(limit int) ([]Memory, error)
	Search(query string, limit int) ([]Memory, error)
	Delete(id string) error
	// LoadForPrompt renders preference memories plus those tagged with
	// projectTag as a system-prompt block, capped at maxBytes of content.
	LoadForPrompt(projectTag string, maxBytes int) string
}

const createMemoriesSQL = `
CREATE TABLE IF NOT EXISTS memories (
    id         TEXT PRIMARY KEY,
    created_at TEXT NOT NULL,
    content    TEXT NOT NULL,
    tags       TEXT NOT NULL DEFAULT '[]',
    source     TEXT NOT NULL DEFAULT 'manual',
    session_id TEXT NOT NULL DEFAULT ''
);
`

// SQLiteMemoryStore implements MemoryStore on a SQLite database. It can
// share the handle with SQLiteStore so everything lives in one file.
type SQLiteMemoryStore struct {
	db *sql.DB
}

// NewSQLiteMemoryStore ensures the memories schema exists on db.
func NewSQLiteMemoryStore(db *sql.DB) (*SQLiteMemoryStore, error) {
	if _, err := db.Exec(createMemoriesSQL); err != nil {
		return nil, fmt.Errorf("create memories table: %w", err)
	}
	return &SQLiteMemoryStore{db: db}, nil
}

func (s *SQLiteMemoryStore) Add(content string, tags []string, source, sessionID string) (*Memory, error) {
	m := &Memory{
		ID:        uuid.NewString(),
		Content:   content,
		Tags:      tags,
		Source:    source,
		SessionID: sessionID,
		CreatedAt: time.Now(),
	}

	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO memories (id, created_at, content, tags, source, session_id)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.CreatedAt.Format(time.RFC3339Nano), m.Content,
		string(tagsJSON), m.Source, m.SessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("add memory: %w", err)
	}
	return m, nil
}

func (s *SQLiteMemoryStore) List(limit int) ([]Memory, error) {
	if limit <= 0 {
		limit = 50
	}
	// rowid gives stable insertion order even when two adds land in the
	// same clock tick.
	return s.query(`
		SELECT id, created_at, content, tags, source, session_id
		FROM memories ORDER BY rowid DESC LIMIT ?`, limit)
}

func (s *SQLiteMemoryStore) Search(query string, limit int) ([]Memory, error) {
	if limit <= 0 {
		limit = 50
	}
	pattern := "%" + query + "%"
	return s.query(`
		SELECT id, created_at, content, tags, source, session_id
		FROM memories
		WHERE content LIKE ? OR tags LIKE ?
		ORDER BY rowid DESC LIMIT ?`, pattern, pattern, limit)
}

func (s *SQLiteMemoryStore) Delete(id string) error {
	result, err := s.db.Exec("DELETE FROM memories WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("memory %s not found", id)
	}
	return nil
}

func (s *SQLiteMemoryStore) LoadForPrompt(projectTag string, maxBytes int) string {
	memories, err := s.List(200)
	if err != nil || len(memories) == 0 {
		return ""
	}

	var lines []string
	used := 0
	for _, m := range memories {
		if !promptRelevant(m, projectTag) {
			continue
		}
		line := "- " + m.Content + "\n"
		if used+len(line) > maxBytes {
			break
		}
		lines = append(lines, line)
		used += len(line)
	}
	if len(lines) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("<persistent_memory>\n")
	for _, l := range lines {
		sb.WriteString(l)
	}
	sb.WriteString("</persistent_memory>")
	return sb.String()
}

// promptRelevant reports whether a memory belongs in the system prompt:
// preferences always do, project notes only for the matching project.
func promptRelevant(m Memory, projectTag string) bool {
	for _, tag := range m.Tags {
		if tag == "preference" {
			return true
		}
		if projectTag != "" && tag == projectTag {
			return true
		}
	}
	return false
}

func (s *SQLiteMemoryStore) query(q string, args ...any) ([]Memory, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()

	var memories []Memory
	for rows.Next() {
		var m Memory
		var createdAt, tagsJSON string
		if err := rows.Scan(&m.ID, &createdAt, &m.Content, &tagsJSON, &m.Source, &m.SessionID); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		m.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		if err := json.Unmarshal([]byte(tagsJSON), &m.Tags); err != nil {
			m.Tags = nil
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

// NullMemoryStore is a MemoryStore that remembers nothing. Used when
// persistent memory is disabled.
type NullMemoryStore struct{}

func (NullMemoryStore) Add(string, []string, string, string) (*Memory, error) { return nil, nil }
func (NullMemoryStore) List(int) ([]Memory, error)                            { return nil, nil }
func (NullMemoryStore) Search(string, int) ([]Memory, error)                  { return nil, nil }
func (NullMemoryStore) Delete(string) error                                   { return nil }
func (NullMemoryStore) LoadForPrompt(string, int) string                      { return "" }

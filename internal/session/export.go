package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Export writes a session snapshot as indented JSON. Snapshots are for
// sharing and inspection; the SQLite store remains the source of truth.
func Export(s *Session, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create export dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Import reads a session snapshot written by Export.
func Import(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if s.ID == "" {
		return nil, fmt.Errorf("snapshot has no session ID")
	}
	return &s, nil
}

// DefaultExportName returns the conventional snapshot filename for a
// session, placed in the current directory.
func DefaultExportName(id string) string {
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("mikiclaw-session-%s.json", short)
}

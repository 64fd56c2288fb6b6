package session

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Softorize/mikiclaw/internal/provider"
)

func TestExportImportRoundTrip(t *testing.T) {
	s := &Session{
		ID:        "roundtrip-1",
		CreatedAt: time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
		Summary:   "working on the parser",
		Messages: []provider.Message{
			userText("fix the lexer"),
			assistantText("done"),
		},
	}

	path := filepath.Join(t.TempDir(), "exports", "snap.json")
	if err := Export(s, path); err != nil {
		t.Fatalf("Export: %v", err)
	}

	loaded, err := Import(path)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if loaded.ID != s.ID {
		t.Errorf("ID = %q, want %q", loaded.ID, s.ID)
	}
	if loaded.Summary != s.Summary {
		t.Errorf("Summary = %q, want %q", loaded.Summary, s.Summary)
	}
	if len(loaded.Messages) != 2 {
		t.Errorf("Messages len = %d, want 2", len(loaded.Messages))
	}
}

func TestImport_MissingFile(t *testing.T) {
	_, err := Import(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestImport_RejectsEmptyID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := Export(&Session{}, path); err != nil {
		t.Fatal(err)
	}
	if _, err := Import(path); err == nil {
		t.Fatal("expected error for snapshot without ID")
	}
}

func TestDefaultExportName(t *testing.T) {
	name := DefaultExportName("abcdef0123456789")
	if name != "mikiclaw-session-abcdef01.json" {
		t.Errorf("name = %q", name)
	}
	if strings.Contains(DefaultExportName("ab"), "abcdef") {
		t.Error("short IDs should be used as-is")
	}
}

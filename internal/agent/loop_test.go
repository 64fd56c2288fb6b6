package agent

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/Softorize/mikiclaw/internal/audit"
	"github.com/Softorize/mikiclaw/internal/config"
	"github.com/Softorize/mikiclaw/internal/permission"
	"github.com/Softorize/mikiclaw/internal/provider"
	"github.com/Softorize/mikiclaw/internal/session"
	"github.com/Softorize/mikiclaw/internal/tools"
	"github.com/Softorize/mikiclaw/internal/tui"
)

// scriptedProvider replays canned event turns. Calls past the script
// repeat the last turn, which lets a single tool-call turn simulate a
// model stuck in a loop.
type scriptedProvider struct {
	mu    sync.Mutex
	turns [][]provider.Event
	calls int
}

func (p *scriptedProvider) Chat(_ context.Context, _ *provider.ChatRequest) (<-chan provider.Event, error) {
	p.mu.Lock()
	idx := p.calls
	p.calls++
	if idx >= len(p.turns) {
		idx = len(p.turns) - 1
	}
	events := p.turns[idx]
	p.mu.Unlock()

	ch := make(chan provider.Event, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func (p *scriptedProvider) Name() string         { return "scripted" }
func (p *scriptedProvider) Models() []string     { return []string{"scripted-1"} }
func (p *scriptedProvider) DefaultModel() string { return "scripted-1" }

func (p *scriptedProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func toolCallTurn(id, name, input string) []provider.Event {
	return []provider.Event{
		{Type: provider.EventToolCallDone, ToolCall: &provider.ToolCallRequest{
			ID:    id,
			Name:  name,
			Input: json.RawMessage(input),
		}},
		{Type: provider.EventDone, Usage: &provider.Usage{InputTokens: 10, OutputTokens: 5}},
	}
}

func textTurn(text string) []provider.Event {
	return []provider.Event{
		{Type: provider.EventTextDelta, TextDelta: text},
		{Type: provider.EventDone, Usage: &provider.Usage{InputTokens: 10, OutputTokens: 5}},
	}
}

// memRecorder collects audit entries in memory.
type memRecorder struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *memRecorder) Record(e audit.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func (r *memRecorder) Recent(int) ([]audit.Entry, error)  { return nil, nil }
func (r *memRecorder) Denials(int) ([]audit.Entry, error) { return nil, nil }
func (r *memRecorder) Close() error                       { return nil }

func (r *memRecorder) byDecision(decision string) []audit.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []audit.Entry
	for _, e := range r.entries {
		if e.Decision == decision {
			out = append(out, e)
		}
	}
	return out
}

// stubTool stands in for a registered tool. The executor short-circuits
// denied calls before Execute, so registering a stub named "bash" is
// enough to drive the policy path without running anything.
type stubTool struct {
	name    string
	level   tools.PermissionLevel
	content string
}

func (t *stubTool) Name() string               { return t.name }
func (t *stubTool) Description() string        { return "stub for loop tests" }
func (t *stubTool) Parameters() map[string]any { return map[string]any{} }
func (t *stubTool) IsReadOnly() bool           { return t.level == tools.PermissionRead }

func (t *stubTool) PermissionLevel() tools.PermissionLevel { return t.level }

func (t *stubTool) Execute(_ context.Context, _ json.RawMessage) (tools.ToolResult, error) {
	return tools.ToolResult{Content: t.content}, nil
}

func newLoopTestAgent(t *testing.T, p provider.Provider, cfg *config.Config, rec audit.Recorder) (*Agent, *tui.BufferIO) {
	t.Helper()

	reg := tools.NewRegistry()
	reg.Register(&stubTool{name: "bash", level: tools.PermissionExecute, content: "ok"})
	reg.Register(&stubTool{name: "read_file", level: tools.PermissionRead, content: "alpha beta"})

	gate := permission.NewGate(&cfg.Permissions, cfg.Security)
	exec := tools.NewExecutor(reg, gate)
	if rec != nil {
		exec.SetRecorder(rec)
	}

	ui := tui.NewBufferIO()
	a := &Agent{
		provider:     p,
		executor:     exec,
		config:       cfg,
		session:      session.New(),
		io:           ui,
		systemPrompt: "loop test",
	}
	return a, ui
}

// A blocked bash command must come back to the model as an error tool
// result with the denial reason, not end the turn: the next provider
// call still happens and its answer reaches the user.
func TestRunAgentLoop_PolicyDenialFeedsModel(t *testing.T) {
	sp := &scriptedProvider{turns: [][]provider.Event{
		toolCallTurn("call-1", "bash", `{"command":"rm -rf /"}`),
		textTurn("I will not run that."),
	}}
	rec := &memRecorder{}
	cfg := config.DefaultConfig()
	cfg.Model = "scripted-1"
	a, ui := newLoopTestAgent(t, sp, cfg, rec)

	if err := a.RunOnce(context.Background(), "clean up the disk"); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	msgs := a.session.Messages
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages (user, assistant, results, assistant), got %d", len(msgs))
	}

	results := msgs[2]
	if results.Role != provider.RoleUser {
		t.Fatalf("expected tool results on a user message, got role %q", results.Role)
	}
	if len(results.Content) != 1 || results.Content[0].Type != provider.ContentTypeToolResult {
		t.Fatalf("unexpected tool result content: %+v", results.Content)
	}
	block := results.Content[0]
	if !block.IsError {
		t.Fatal("expected the denial result to be marked as an error")
	}
	if !strings.HasPrefix(block.ToolResult, "Blocked: ") {
		t.Fatalf("expected Blocked: prefix, got %q", block.ToolResult)
	}
	if !strings.Contains(block.ToolResult, `"rm -rf /"`) {
		t.Fatalf("expected the blocklist entry in the reason, got %q", block.ToolResult)
	}
	if block.ToolUseID != "call-1" {
		t.Fatalf("expected result paired with call-1, got %q", block.ToolUseID)
	}

	denies := rec.byDecision("deny")
	if len(denies) != 1 {
		t.Fatalf("expected 1 deny entry, got %d", len(denies))
	}
	if denies[0].Tool != "bash" || denies[0].Command != "rm -rf /" {
		t.Fatalf("unexpected deny entry: %+v", denies[0])
	}

	if got := sp.callCount(); got != 2 {
		t.Fatalf("expected 2 provider calls, got %d", got)
	}
	if a.session.TokensUsed != 30 || a.session.PromptTokens != 20 || a.session.CompletionTokens != 10 {
		t.Fatalf("unexpected token accounting: used=%d prompt=%d completion=%d",
			a.session.TokensUsed, a.session.PromptTokens, a.session.CompletionTokens)
	}
	if got := ui.Output(); !strings.Contains(got, "I will not run that.") {
		t.Fatalf("expected final text in captured output, got %q", got)
	}
}

// A model that repeats the same tool call batch gets two hints and is
// then cut off at the stop threshold, with the dangling tool_use blocks
// answered by a skip marker.
func TestRunAgentLoop_DoomLoopStops(t *testing.T) {
	sp := &scriptedProvider{turns: [][]provider.Event{
		toolCallTurn("call-1", "bash", `{"command":"rm -rf /"}`),
	}}
	cfg := config.DefaultConfig()
	cfg.Model = "scripted-1"
	a, _ := newLoopTestAgent(t, sp, cfg, nil)

	if err := a.RunOnce(context.Background(), "loop forever"); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if got := sp.callCount(); got != doomLoopStopThreshold {
		t.Fatalf("expected %d provider calls, got %d", doomLoopStopThreshold, got)
	}

	msgs := a.session.Messages
	// prompt + 5 iterations of (assistant, results).
	if len(msgs) != 11 {
		t.Fatalf("expected 11 messages, got %d", len(msgs))
	}

	last := msgs[len(msgs)-1]
	if last.Role != provider.RoleUser || len(last.Content) != 1 {
		t.Fatalf("unexpected final message: %+v", last)
	}
	if last.Content[0].ToolResult != "Skipped: identical tool calls repeated too many times" {
		t.Fatalf("unexpected skip marker: %q", last.Content[0].ToolResult)
	}
	if !last.Content[0].IsError {
		t.Fatal("expected the skip marker to be an error result")
	}

	// Iterations at the warn threshold carry a hint block after the
	// tool results, inside the same user message.
	hints := 0
	for _, m := range msgs {
		if m.Role != provider.RoleUser {
			continue
		}
		for _, c := range m.Content {
			if c.Type == provider.ContentTypeText && strings.Contains(c.Text, "[SYSTEM]") {
				hints++
			}
		}
	}
	if hints != 2 {
		t.Fatalf("expected 2 loop hints, got %d", hints)
	}
}

func TestRunAgentLoop_IterationLimit(t *testing.T) {
	sp := &scriptedProvider{turns: [][]provider.Event{
		toolCallTurn("call-1", "read_file", `{"file_path":"notes.txt"}`),
	}}
	cfg := config.DefaultConfig()
	cfg.Model = "scripted-1"
	cfg.MaxIterations = 2
	a, _ := newLoopTestAgent(t, sp, cfg, nil)

	if err := a.RunOnce(context.Background(), "keep reading"); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if got := sp.callCount(); got != 2 {
		t.Fatalf("expected 2 provider calls, got %d", got)
	}

	msgs := a.session.Messages
	last := msgs[len(msgs)-1]
	if last.Role != provider.RoleUser || len(last.Content) != 1 {
		t.Fatalf("unexpected final message: %+v", last)
	}
	if last.Content[0].ToolResult != "Skipped: iteration limit reached" {
		t.Fatalf("unexpected skip marker: %q", last.Content[0].ToolResult)
	}
}

// Auto-approved read tools run without confirmation; their output lands
// in history as a paired tool result and the decision is audited.
func TestRunAgentLoop_AutoApprovedToolRuns(t *testing.T) {
	sp := &scriptedProvider{turns: [][]provider.Event{
		toolCallTurn("call-1", "read_file", `{"file_path":"notes.txt"}`),
		textTurn("The file says alpha beta."),
	}}
	rec := &memRecorder{}
	cfg := config.DefaultConfig()
	cfg.Model = "scripted-1"
	a, ui := newLoopTestAgent(t, sp, cfg, rec)

	if err := a.RunOnce(context.Background(), "read notes.txt"); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	msgs := a.session.Messages
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}
	block := msgs[2].Content[0]
	if block.IsError {
		t.Fatalf("expected a successful result, got error: %q", block.ToolResult)
	}
	if block.ToolResult != "alpha beta" {
		t.Fatalf("unexpected tool result: %q", block.ToolResult)
	}
	if block.ToolUseID != "call-1" {
		t.Fatalf("expected result paired with call-1, got %q", block.ToolUseID)
	}

	allows := rec.byDecision("allow")
	if len(allows) != 1 || allows[0].Tool != "read_file" {
		t.Fatalf("unexpected allow entries: %+v", allows)
	}
	if allows[0].Command != "" {
		t.Fatalf("command should only be set for bash, got %q", allows[0].Command)
	}

	if got := ui.Output(); !strings.Contains(got, "The file says alpha beta.") {
		t.Fatalf("expected final text in captured output, got %q", got)
	}
}

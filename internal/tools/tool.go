// Package tools defines the tool interface and shared types, and provides
// the tool registry and executor. Every tool call passes through the
// permission gate before it runs and through the audit log after.
package tools

import (
	"context"
	"encoding/json"
)

// PermissionLevel classifies how intrusive a tool operation is. The TUI
// uses it to pick the confirmation style.
type PermissionLevel int

const (
	PermissionRead      PermissionLevel = iota // read-only
	PermissionWrite                            // writes files or state
	PermissionExecute                          // runs external commands
	PermissionDangerous                        // affects remote systems
)

func (l PermissionLevel) String() string {
	switch l {
	case PermissionRead:
		return "read"
	case PermissionWrite:
		return "write"
	case PermissionExecute:
		return "execute"
	case PermissionDangerous:
		return "dangerous"
	}
	return "unknown"
}

// ToolResult is the outcome of one tool execution.
type ToolResult struct {
	Content       string
	IsError       bool
	Truncated     bool
	UserCancelled bool // user interrupted (Esc); the agent loop should stop
}

// Tool is the interface every LLM-callable tool implements.
type Tool interface {
	// Name returns the snake_case tool name the LLM calls, e.g. "read_file".
	// Names feed the policy engine's group classification, so new tools
	// should start with an established family root or register a group.
	Name() string

	// Description returns the tool description shown to the LLM.
	Description() string

	// Parameters returns the JSON Schema properties for the tool's input.
	Parameters() map[string]any

	// Execute runs the tool. ctx comes from the agent loop and is
	// cancelled when the user interrupts.
	Execute(ctx context.Context, params json.RawMessage) (ToolResult, error)

	// IsReadOnly reports whether the tool has no side effects. Read-only
	// tools may run in parallel.
	IsReadOnly() bool

	// PermissionLevel returns the tool's permission level.
	PermissionLevel() PermissionLevel
}

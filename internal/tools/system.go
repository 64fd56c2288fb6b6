package tools

import (
	"context"
	"encoding/json"
)

// SessionStatusTool reports the state of the running session: identity,
// token usage, and the active security policy. The status text comes from
// an injected callback because the session lives in the agent layer.
type SessionStatusTool struct {
	Status func() string
}

func (t *SessionStatusTool) Name() string                     { return "session_status" }
func (t *SessionStatusTool) IsReadOnly() bool                 { return true }
func (t *SessionStatusTool) PermissionLevel() PermissionLevel { return PermissionRead }

func (t *SessionStatusTool) Description() string {
	return "Show the current session status: session ID, token usage, model, " +
		"and the active tool profile and command policy."
}

func (t *SessionStatusTool) Parameters() map[string]any {
	return map[string]any{} // no parameters
}

func (t *SessionStatusTool) Execute(_ context.Context, _ json.RawMessage) (ToolResult, error) {
	if t.Status == nil {
		return ToolResult{Content: "session status unavailable"}, nil
	}
	return ToolResult{Content: t.Status()}, nil
}

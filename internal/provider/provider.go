// Package provider defines the unified interface and shared types for
// all LLM providers. Each adapter (openai.go, anthropic.go) implements
// Provider and normalizes its API's streaming responses into a single
// Event sequence.
package provider

import (
	"context"
	"encoding/json"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type ContentType string

const (
	ContentTypeText       ContentType = "text"
	ContentTypeToolUse    ContentType = "tool_use"
	ContentTypeToolResult ContentType = "tool_result"
)

// Content is one content block within a message.
type Content struct {
	Type       ContentType
	Text       string
	ToolUseID  string          // tool_use / tool_result
	ToolName   string          // tool_use
	ToolInput  json.RawMessage // tool_use
	ToolResult string          // tool_result
	IsError    bool            // tool_result
}

// Message is one entry in the conversation history.
type Message struct {
	Role    Role
	Content []Content
}

// ToolSchema describes a tool to the LLM (JSON Schema format).
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON Schema properties
}

// ChatRequest is the unified request sent to a provider.
type ChatRequest struct {
	Model        string
	Messages     []Message
	Tools        []ToolSchema
	SystemPrompt string
	MaxTokens    int
}

type EventType int

const (
	// EventTextDelta: incremental model text, rendered to the terminal live.
	EventTextDelta EventType = iota

	// EventToolCallDone: one complete tool call (emitted after the
	// provider finishes assembling the streamed JSON arguments).
	EventToolCallDone

	// EventDone: end of this message, with token usage attached.
	EventDone

	// EventError: something went wrong.
	EventError
)

// Event is the unified streaming output of a provider.
type Event struct {
	Type EventType

	// EventTextDelta
	TextDelta string

	// EventToolCallDone
	ToolCall *ToolCallRequest

	// EventDone
	Usage *Usage

	// EventError
	Error error
}

// ToolCallRequest is one tool invocation the LLM asked for.
type ToolCallRequest struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// Usage records the token consumption of one API call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Provider is the unified interface over LLM backends. Implementations
// translate the unified ChatRequest into their API's request format,
// normalize the streaming response into Events, assemble streamed tool
// call JSON fragments internally, and handle provider-specific errors.
type Provider interface {
	// Chat starts a streaming conversation. The returned channel emits
	// Events until it is closed after EventDone or EventError. Callers
	// must drain the channel or the streaming goroutine leaks.
	Chat(ctx context.Context, req *ChatRequest) (<-chan Event, error)

	// Name returns the provider identifier, e.g. "anthropic", "openai".
	Name() string

	// Models returns the supported model list.
	Models() []string

	// DefaultModel returns the default model.
	DefaultModel() string
}

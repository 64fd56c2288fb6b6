package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Message is one entry in the outbox.
type Message struct {
	ID      string    `json:"id"`
	Time    time.Time `json:"time"`
	Channel string    `json:"channel"`
	Content string    `json:"content"`
}

// Outbox is an append-only JSONL message log on disk. It stands in for a
// real chat transport: messages the agent "sends" land here, and
// read_messages reads them back, so delivery integrations can tail one
// file instead of hooking the agent.
type Outbox struct {
	mu   sync.Mutex
	path string
}

// DefaultOutboxPath returns the default outbox path (~/.local/share/mikiclaw/outbox.jsonl).
func DefaultOutboxPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "mikiclaw", "outbox.jsonl"), nil
}

// NewOutbox creates an outbox backed by the given file. The file is
// created on first append.
func NewOutbox(path string) *Outbox {
	return &Outbox{path: path}
}

// Append writes one message to the outbox.
func (o *Outbox) Append(m Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(o.path), 0755); err != nil {
		return fmt.Errorf("create outbox directory: %w", err)
	}
	f, err := os.OpenFile(o.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open outbox: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// Tail returns up to limit most recent messages, oldest first. An
// optional channel filter narrows the result.
func (o *Outbox) Tail(channel string, limit int) ([]Message, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	f, err := os.Open(o.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open outbox: %w", err)
	}
	defer f.Close()

	var msgs []Message
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var m Message
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			continue // skip corrupt lines
		}
		if channel != "" && m.Channel != channel {
			continue
		}
		msgs = append(msgs, m)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read outbox: %w", err)
	}

	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

// SendMessageTool posts a message to a named channel in the outbox.
type SendMessageTool struct {
	Outbox *Outbox
}

func (t *SendMessageTool) Name() string                     { return "send_message" }
func (t *SendMessageTool) IsReadOnly() bool                 { return false }
func (t *SendMessageTool) PermissionLevel() PermissionLevel { return PermissionWrite }

func (t *SendMessageTool) Description() string {
	return "Send a message to a named channel. Messages are appended to the " +
		"local outbox where delivery integrations pick them up."
}

func (t *SendMessageTool) Parameters() map[string]any {
	return map[string]any{
		"channel": map[string]any{
			"type":        "string",
			"description": "Channel name to post to (e.g. 'general')",
		},
		"content": map[string]any{
			"type":        "string",
			"description": "The message text",
		},
	}
}

func (t *SendMessageTool) Execute(_ context.Context, params json.RawMessage) (ToolResult, error) {
	var p struct {
		Channel string `json:"channel"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return ToolResult{}, fmt.Errorf("invalid params: %w", err)
	}
	if p.Channel == "" {
		return ToolResult{}, fmt.Errorf("channel is required")
	}
	if p.Content == "" {
		return ToolResult{}, fmt.Errorf("content is required")
	}

	m := Message{
		ID:      uuid.NewString(),
		Time:    time.Now(),
		Channel: p.Channel,
		Content: p.Content,
	}
	if err := t.Outbox.Append(m); err != nil {
		return ToolResult{}, fmt.Errorf("send message: %w", err)
	}

	return ToolResult{Content: fmt.Sprintf("message %s sent to #%s", m.ID, m.Channel)}, nil
}

// ReadMessagesTool reads recent messages from the outbox.
type ReadMessagesTool struct {
	Outbox *Outbox
}

func (t *ReadMessagesTool) Name() string                     { return "read_messages" }
func (t *ReadMessagesTool) IsReadOnly() bool                 { return true }
func (t *ReadMessagesTool) PermissionLevel() PermissionLevel { return PermissionRead }

func (t *ReadMessagesTool) Description() string {
	return "Read recent messages from the outbox, optionally filtered by channel. " +
		"Returns the most recent messages, oldest first."
}

func (t *ReadMessagesTool) Parameters() map[string]any {
	return map[string]any{
		"channel": map[string]any{
			"type":        "string",
			"description": "Only return messages from this channel (optional)",
		},
		"limit": map[string]any{
			"type":        "integer",
			"description": "Maximum number of messages to return (default 20)",
		},
	}
}

func (t *ReadMessagesTool) Execute(_ context.Context, params json.RawMessage) (ToolResult, error) {
	var p struct {
		Channel string `json:"channel"`
		Limit   int    `json:"limit"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return ToolResult{}, fmt.Errorf("invalid params: %w", err)
	}
	if p.Limit <= 0 {
		p.Limit = 20
	}

	msgs, err := t.Outbox.Tail(p.Channel, p.Limit)
	if err != nil {
		return ToolResult{}, fmt.Errorf("read messages: %w", err)
	}
	if len(msgs) == 0 {
		return ToolResult{Content: "no messages"}, nil
	}

	var sb strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&sb, "[%s] #%s: %s\n", m.Time.Format("2006-01-02 15:04"), m.Channel, m.Content)
	}
	return ToolResult{Content: strings.TrimRight(sb.String(), "\n")}, nil
}

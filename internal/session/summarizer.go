package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/Softorize/mikiclaw/internal/provider"
)

// Summarizer produces a compact summary of conversation history so the
// live message window can be truncated without losing context.
type Summarizer interface {
	Summarize(ctx context.Context, previous string, messages []provider.Message) (string, error)
}

const summarizeSystemPrompt = `You are a conversation summarizer. Produce a concise summary of the
conversation below that preserves:
- the user's goals and any constraints they stated
- decisions made and their reasons
- file paths, commands, and identifiers that were mentioned
- current state: what is done, what is in progress, what failed

Write plain prose, no headers. Keep it under 400 words.`

// transcript bytes sent for summarization; older content is cut first.
const maxTranscriptBytes = 60 * 1024

// LLMSummarizer compacts history by asking the model itself.
type LLMSummarizer struct {
	Provider provider.Provider
	Model    string // empty uses the provider's default model
}

func (s *LLMSummarizer) Summarize(ctx context.Context, previous string, messages []provider.Message) (string, error) {
	transcript := renderTranscript(previous, messages)
	if transcript == "" {
		return previous, nil
	}

	model := s.Model
	if model == "" {
		model = s.Provider.DefaultModel()
	}

	events, err := s.Provider.Chat(ctx, &provider.ChatRequest{
		Model: model,
		Messages: []provider.Message{{
			Role: provider.RoleUser,
			Content: []provider.Content{{
				Type: provider.ContentTypeText,
				Text: transcript,
			}},
		}},
		SystemPrompt: summarizeSystemPrompt,
		MaxTokens:    2048,
	})
	if err != nil {
		return "", fmt.Errorf("summarize request: %w", err)
	}

	// Drain the channel fully even on error; abandoning it leaks the
	// provider's streaming goroutine.
	var sb strings.Builder
	var streamErr error
	for event := range events {
		switch event.Type {
		case provider.EventTextDelta:
			sb.WriteString(event.TextDelta)
		case provider.EventError:
			streamErr = event.Error
		}
	}
	if streamErr != nil {
		return "", fmt.Errorf("summarize stream: %w", streamErr)
	}

	summary := strings.TrimSpace(sb.String())
	if summary == "" {
		return previous, nil
	}
	return summary, nil
}

// renderTranscript flattens messages into plain text for the summarizer,
// folding in the previous summary and trimming to maxTranscriptBytes
// from the oldest end.
func renderTranscript(previous string, messages []provider.Message) string {
	var sb strings.Builder
	if previous != "" {
		sb.WriteString("Earlier summary:\n")
		sb.WriteString(previous)
		sb.WriteString("\n\n")
	}

	for _, msg := range messages {
		for _, c := range msg.Content {
			switch c.Type {
			case provider.ContentTypeText:
				fmt.Fprintf(&sb, "%s: %s\n", msg.Role, c.Text)
			case provider.ContentTypeToolUse:
				fmt.Fprintf(&sb, "assistant ran tool %s with %s\n", c.ToolName, c.ToolInput)
			case provider.ContentTypeToolResult:
				result := c.ToolResult
				if len(result) > 500 {
					result = result[:500] + fmt.Sprintf("... (%d chars)", len(c.ToolResult))
				}
				fmt.Fprintf(&sb, "tool result: %s\n", result)
			}
		}
	}

	out := sb.String()
	if len(out) > maxTranscriptBytes {
		out = out[len(out)-maxTranscriptBytes:]
	}
	return strings.TrimSpace(out)
}

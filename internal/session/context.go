package session

import (
	"fmt"

	"github.com/Softorize/mikiclaw/internal/provider"
)

const (
	// Most recent tool results kept verbatim; older ones are masked.
	keepRecentObservations = 10
	// Turn trimming never drops below this many turns.
	minTurnsKept = 5
)

// Turn is one user request and everything the assistant did to answer
// it: the reply, tool calls, and their results.
type Turn struct {
	Messages []provider.Message
	Complete bool
}

// SplitTurns groups messages into turns. A turn starts at a user message
// carrying real user input (not tool results) and runs until the next one.
func SplitTurns(messages []provider.Message) []Turn {
	if len(messages) == 0 {
		return nil
	}

	var turns []Turn
	var current []provider.Message
	for _, msg := range messages {
		if isUserInput(msg) && len(current) > 0 {
			turns = append(turns, newTurn(current))
			current = nil
		}
		current = append(current, msg)
	}
	if len(current) > 0 {
		turns = append(turns, newTurn(current))
	}
	return turns
}

func newTurn(msgs []provider.Message) Turn {
	return Turn{Messages: msgs, Complete: turnComplete(msgs)}
}

// turnComplete reports whether the turn ended with a plain assistant
// reply. A trailing tool_use means a result is still outstanding.
func turnComplete(msgs []provider.Message) bool {
	last := msgs[len(msgs)-1]
	if last.Role != provider.RoleAssistant {
		return false
	}
	for _, c := range last.Content {
		if c.Type == provider.ContentTypeToolUse {
			return false
		}
	}
	return true
}

// isUserInput reports whether msg is genuine user input rather than a
// tool result round-trip.
func isUserInput(msg provider.Message) bool {
	if msg.Role != provider.RoleUser {
		return false
	}
	for _, c := range msg.Content {
		if c.Type == provider.ContentTypeToolResult {
			return false
		}
	}
	return true
}

// CompactHistory rewrites history to fit maxTokens without breaking
// tool_use/tool_result pairing:
//
//  1. Tool results older than the last keepRecentObservations are
//     replaced with a short placeholder (observation masking).
//  2. If still over budget, whole turns are dropped oldest first, but
//     at least minTurnsKept turns always survive.
//  3. A non-empty summary is injected at the front as a user message.
//
// The input slice is never mutated.
func CompactHistory(messages []provider.Message, maxTokens int, summary string) []provider.Message {
	msgs := copyMessages(messages)
	maskOldObservations(msgs)

	turns := SplitTurns(msgs)
	for len(turns) > minTurnsKept && estimateTurnsTokens(turns) > maxTokens {
		turns = turns[1:]
	}

	var out []provider.Message
	if summary != "" {
		out = append(out, provider.Message{
			Role: provider.RoleUser,
			Content: []provider.Content{{
				Type: provider.ContentTypeText,
				Text: "[Previous conversation summary]\n\n" + summary,
			}},
		})
	}
	for _, t := range turns {
		out = append(out, t.Messages...)
	}
	return out
}

// maskOldObservations replaces all but the most recent
// keepRecentObservations tool results with a size placeholder. The
// ToolUseID stays so pairing with the tool_use block survives.
func maskOldObservations(msgs []provider.Message) {
	total := 0
	for _, m := range msgs {
		for _, c := range m.Content {
			if c.Type == provider.ContentTypeToolResult {
				total++
			}
		}
	}
	toMask := total - keepRecentObservations
	if toMask <= 0 {
		return
	}

	for i := range msgs {
		for j := range msgs[i].Content {
			c := &msgs[i].Content[j]
			if c.Type != provider.ContentTypeToolResult {
				continue
			}
			if toMask == 0 {
				return
			}
			c.ToolResult = fmt.Sprintf("[Output omitted: %d chars]", len(c.ToolResult))
			toMask--
		}
	}
}

// TruncateSession keeps only the most recent keepTurns turns. The result
// is a deep copy, safe to mutate independently of the input.
func TruncateSession(messages []provider.Message, keepTurns int) []provider.Message {
	turns := SplitTurns(messages)
	if len(turns) > keepTurns {
		turns = turns[len(turns)-keepTurns:]
	}

	var out []provider.Message
	for _, t := range turns {
		out = append(out, copyMessages(t.Messages)...)
	}
	return out
}

// copyMessages returns a copy with fresh Content slices, so edits to the
// copy never reach the originals.
func copyMessages(messages []provider.Message) []provider.Message {
	if messages == nil {
		return nil
	}
	out := make([]provider.Message, len(messages))
	for i, m := range messages {
		out[i] = m
		out[i].Content = make([]provider.Content, len(m.Content))
		copy(out[i].Content, m.Content)
	}
	return out
}

func estimateTurnsTokens(turns []Turn) int {
	total := 0
	for _, t := range turns {
		total += estimateMessagesTokens(t.Messages)
	}
	return total
}

// TrimHistory trims messages when estimated tokens exceed 80% of
// maxTokens. It preserves the most recent 6 messages and removes the
// oldest ones first.
func TrimHistory(messages []provider.Message, maxTokens int) []provider.Message {
	if len(messages) == 0 {
		return messages
	}

	threshold := maxTokens * 80 / 100
	if estimateMessagesTokens(messages) <= threshold {
		return messages
	}

	const keepRecent = 6
	if len(messages) <= keepRecent {
		return messages
	}

	for len(messages) > keepRecent && estimateMessagesTokens(messages) > threshold {
		messages = messages[1:]
	}
	return messages
}

func estimateMessagesTokens(messages []provider.Message) int {
	total := 0
	for _, msg := range messages {
		for _, c := range msg.Content {
			total += len(c.Text)
			total += len(c.ToolResult)
			total += len(c.ToolInput)
		}
	}
	return total / 4
}

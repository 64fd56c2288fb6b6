package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/Softorize/mikiclaw/internal/provider"
	"github.com/Softorize/mikiclaw/internal/session"
	"github.com/Softorize/mikiclaw/internal/tools"
)

// runAgentLoop executes the core agentic loop:
//  1. Send messages to the LLM via streaming Chat()
//  2. Collect text deltas (stream to UI) and tool calls
//  3. If tool calls exist, execute them, append results to history, and loop
//  4. If no tool calls, return (wait for next user input)
//
// A per-turn child context is created so that Esc can cancel the entire
// turn (including LLM streaming) without affecting the session context.
func (a *Agent) runAgentLoop(ctx context.Context) error {
	maxIter := a.config.MaxIterations
	if maxIter <= 0 {
		maxIter = 25
	}

	// Per-turn context: Esc cancels this, not the session.
	turnCtx, turnCancel := context.WithCancel(ctx)
	defer turnCancel()

	if lc, ok := a.io.(tools.LoopCanceller); ok {
		lc.SetLoopCancel(turnCancel)
		defer lc.ClearLoopCancel()
	}

	doomDetector := &doomLoopDetector{}

	for iteration := range maxIter {
		if turnCtx.Err() != nil {
			a.io.SystemMessage("Interrupted.")
			return nil
		}

		// Compacted copy for sending; the stored history is not modified.
		// The session summary, when present, rides in front of the live
		// messages.
		compacted := session.CompactHistory(a.session.Messages, a.contextWindow(), a.session.Summary)

		req := &provider.ChatRequest{
			Model:        a.config.Model,
			Messages:     compacted,
			Tools:        a.buildToolSchemas(),
			SystemPrompt: a.systemPrompt,
			MaxTokens:    8192,
		}

		events, err := a.provider.Chat(turnCtx, req)
		if err != nil {
			return fmt.Errorf("LLM call failed: %w", err)
		}

		var textContent strings.Builder
		var toolCalls []*provider.ToolCallRequest

		a.io.ThinkingStart()

		for event := range events {
			switch event.Type {
			case provider.EventTextDelta:
				a.io.TextDelta(event.TextDelta)
				textContent.WriteString(event.TextDelta)

			case provider.EventToolCallDone:
				toolCalls = append(toolCalls, event.ToolCall)

			case provider.EventDone:
				if event.Usage != nil {
					a.session.TokensUsed += event.Usage.InputTokens + event.Usage.OutputTokens
					a.session.PromptTokens += event.Usage.InputTokens
					a.session.CompletionTokens += event.Usage.OutputTokens
					a.io.SetTokens(a.session.TokensUsed)
				}

			case provider.EventError:
				if turnCtx.Err() != nil {
					a.io.SystemMessage("Interrupted.")
					return nil
				}
				return fmt.Errorf("stream error: %w", event.Error)
			}
		}

		full := textContent.String()
		a.io.TextDone(full)

		assistantMsg := buildAssistantMessage(full, toolCalls)
		a.session.AddMessage(assistantMsg)

		if len(toolCalls) == 0 {
			return nil
		}

		if iteration == maxIter-1 {
			// Close out the dangling tool_use blocks so the history
			// stays well formed for the next turn.
			a.session.AddMessage(provider.Message{
				Role:    provider.RoleUser,
				Content: skippedToolResults(toolCalls, "Skipped: iteration limit reached"),
			})
			a.io.SystemMessage(fmt.Sprintf(
				"warning: reached max iterations (%d), stopping", maxIter))
			return nil
		}

		// Catch the model issuing identical tool call batches repeatedly.
		doomAction := doomDetector.check(toolCalls)
		if doomAction == doomLoopStop {
			a.session.AddMessage(provider.Message{
				Role:    provider.RoleUser,
				Content: skippedToolResults(toolCalls, "Skipped: identical tool calls repeated too many times"),
			})
			a.io.SystemMessage(fmt.Sprintf(
				"error: loop detected — same tool calls repeated %d times, stopping", doomLoopStopThreshold))
			return nil
		}

		toolResults, interrupted := a.executeToolCalls(turnCtx, toolCalls)

		if doomAction == doomLoopWarn {
			// Ride the hint in the same user message, after the results,
			// so tool_use/tool_result pairing stays intact.
			a.io.SystemMessage("warning: repeated tool calls detected — hinting the model to change approach")
			toolResults = append(toolResults, provider.Content{
				Type: provider.ContentTypeText,
				Text: "[SYSTEM] You have issued the same tool calls several times in a row. " +
					"This looks like a loop. Try a different approach or stop calling tools.",
			})
		}

		a.session.AddMessage(provider.Message{
			Role:    provider.RoleUser,
			Content: toolResults,
		})

		// A declined confirmation or Esc during execution ends the turn;
		// the partial results stay in history for context continuity.
		if interrupted {
			a.io.SystemMessage("Interrupted.")
			return nil
		}
	}
	return nil
}

// buildAssistantMessage creates a history message from the LLM response.
func buildAssistantMessage(text string, toolCalls []*provider.ToolCallRequest) provider.Message {
	var contents []provider.Content

	if text != "" {
		contents = append(contents, provider.Content{
			Type: provider.ContentTypeText,
			Text: text,
		})
	}

	for _, tc := range toolCalls {
		contents = append(contents, provider.Content{
			Type:      provider.ContentTypeToolUse,
			ToolUseID: tc.ID,
			ToolName:  tc.Name,
			ToolInput: tc.Input,
		})
	}

	return provider.Message{Role: provider.RoleAssistant, Content: contents}
}

// executeToolCalls runs each tool call in order and returns tool_result
// content blocks plus whether the user interrupted the batch. Sequential
// execution keeps confirmations and the audit trail in a deterministic
// order. After an interrupt, remaining calls are answered with a skip
// marker instead of running.
func (a *Agent) executeToolCalls(ctx context.Context, calls []*provider.ToolCallRequest) ([]provider.Content, bool) {
	var results []provider.Content
	interrupted := false

	for _, call := range calls {
		if interrupted {
			results = append(results, provider.Content{
				Type:       provider.ContentTypeToolResult,
				ToolUseID:  call.ID,
				ToolResult: "Skipped: turn interrupted",
				IsError:    true,
			})
			continue
		}

		a.io.ToolStart(call.ID, call.Name, string(call.Input))

		result := a.executor.Execute(ctx, call.Name, call.Input)

		a.io.ToolDone(call.ID, call.Name, result.Content, result.IsError)

		if result.UserCancelled {
			interrupted = true
		}

		results = append(results, provider.Content{
			Type:       provider.ContentTypeToolResult,
			ToolUseID:  call.ID,
			ToolResult: result.Content,
			IsError:    result.IsError,
		})
	}

	return results, interrupted
}

// skippedToolResults answers every pending tool_use with the same skip
// marker, keeping the message history well formed when a turn ends early.
func skippedToolResults(calls []*provider.ToolCallRequest, reason string) []provider.Content {
	results := make([]provider.Content, 0, len(calls))
	for _, call := range calls {
		results = append(results, provider.Content{
			Type:       provider.ContentTypeToolResult,
			ToolUseID:  call.ID,
			ToolResult: reason,
			IsError:    true,
		})
	}
	return results
}

// buildToolSchemas converts the executor's registry tools into provider.ToolSchema.
func (a *Agent) buildToolSchemas() []provider.ToolSchema {
	registryTools := a.executor.Registry().All()
	schemas := make([]provider.ToolSchema, 0, len(registryTools))
	for _, t := range registryTools {
		schemas = append(schemas, provider.ToolSchema{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return schemas
}

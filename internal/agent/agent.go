package agent

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Softorize/mikiclaw/internal/audit"
	"github.com/Softorize/mikiclaw/internal/config"
	"github.com/Softorize/mikiclaw/internal/mcp"
	"github.com/Softorize/mikiclaw/internal/permission"
	"github.com/Softorize/mikiclaw/internal/provider"
	"github.com/Softorize/mikiclaw/internal/session"
	"github.com/Softorize/mikiclaw/internal/tools"
	"github.com/Softorize/mikiclaw/internal/tui"
)

// ProviderFactory creates a Provider from a config. Used for /provider hot-swap.
type ProviderFactory func(cfg *config.Config) (provider.Provider, error)

// Agent orchestrates the interactive loop between user, LLM, and tools.
type Agent struct {
	provider        provider.Provider
	executor        *tools.Executor
	config          *config.Config
	configPath      string // source file for /reload; empty = defaults only
	session         *session.Session
	store           session.Store
	basePrompt      string // system prompt without identity suffix
	systemPrompt    string
	io              tui.IO
	summarizer      session.Summarizer
	providerFactory ProviderFactory

	gate        *permission.Gate
	recorder    audit.Recorder
	memoryStore session.MemoryStore
	mcpManager  *mcp.Manager

	customCommands map[string]*CustomCommand
}

// New creates a new Agent with the given IO implementation.
// Pass tui.NewPlainIO() for plain terminal mode.
func New(p provider.Provider, exec *tools.Executor, cfg *config.Config, ui tui.IO, store session.Store) *Agent {
	return NewWithSession(p, exec, cfg, ui, store, session.New())
}

// NewWithSession creates a new Agent with an existing session.
func NewWithSession(p provider.Provider, exec *tools.Executor, cfg *config.Config, ui tui.IO, store session.Store, sess *session.Session) *Agent {
	cwd, _ := os.Getwd()

	base := cfg.SystemPrompt
	if base == "" {
		base = loadSystemPrompt(cwd)
	}

	// Append project context from MIKICLAW.md / .mikiclaw/context.md
	if ctx := loadProjectContext(cwd); ctx != "" {
		base += ctx
	}

	a := &Agent{
		provider:       p,
		executor:       exec,
		config:         cfg,
		session:        sess,
		store:          store,
		basePrompt:     base,
		io:             ui,
		summarizer:     &session.LLMSummarizer{Provider: p},
		customCommands: loadCustomCommands(cwd),
	}
	a.rebuildSystemPrompt()
	return a
}

// SetProviderFactory sets the factory function for /provider hot-swap.
func (a *Agent) SetProviderFactory(f ProviderFactory) {
	a.providerFactory = f
}

// SetGate injects the permission gate so /security and /reload can
// inspect and swap the active policy.
func (a *Agent) SetGate(g *permission.Gate) {
	a.gate = g
}

// SetConfigPath records where the config was loaded from, for /reload.
func (a *Agent) SetConfigPath(path string) {
	a.configPath = path
}

// SetAuditRecorder injects the audit recorder backing /audit.
func (a *Agent) SetAuditRecorder(r audit.Recorder) {
	a.recorder = r
}

// SetMemoryStore injects the cross-session memory store and rebuilds the
// system prompt so saved memories are visible to the model.
func (a *Agent) SetMemoryStore(ms session.MemoryStore) {
	a.memoryStore = ms
	a.rebuildSystemPrompt()
}

// SetMCPManager injects the MCP manager for /mcp command and status display.
func (a *Agent) SetMCPManager(m *mcp.Manager) {
	a.mcpManager = m
}

// rebuildSystemPrompt appends a dynamic identity suffix and persistent
// memories to basePrompt. Call after changing provider or model.
func (a *Agent) rebuildSystemPrompt() {
	model := a.config.Model
	if model == "" {
		model = a.provider.DefaultModel()
	}
	a.systemPrompt = a.basePrompt + fmt.Sprintf(
		"\n\nYou are powered by %s (provider: %s, model: %s). "+
			"When asked about your identity, state these facts. Never claim to be a different model.",
		a.config.Provider, a.config.Provider, model)

	// Inject persistent memories if available.
	if a.memoryStore != nil {
		cwd, _ := os.Getwd()
		projectTag := "project:" + filepath.Base(cwd)
		if mem := a.memoryStore.LoadForPrompt(projectTag, 2048); mem != "" {
			a.systemPrompt += "\n\n" + mem
		}
	}
}

// contextWindow returns the configured context window with a sane default.
func (a *Agent) contextWindow() int {
	if a.config.ContextWindow > 0 {
		return a.config.ContextWindow
	}
	return 128000
}

// Run starts the interactive REPL loop.
func (a *Agent) Run(ctx context.Context) error {
	for {
		input, err := a.io.ReadInput()
		if err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		if input == "" {
			continue
		}

		// Slash commands are intercepted before sending to LLM.
		if strings.HasPrefix(input, "/") {
			handled, shouldQuit := a.handleSlashCommand(ctx, input)
			if shouldQuit {
				return nil
			}
			if handled {
				continue
			}
		}

		a.io.UserMessage(input)
		a.session.AddMessage(provider.Message{
			Role: provider.RoleUser,
			Content: []provider.Content{{
				Type: provider.ContentTypeText,
				Text: input,
			}},
		})

		if err := a.runAgentLoop(ctx); err != nil {
			if ctx.Err() != nil {
				a.io.SystemMessage("\nInterrupted.")
				_ = a.store.Save(a.session)
				return ctx.Err()
			}
			a.io.Error(err.Error())
		}
	}

	_ = a.store.Save(a.session)
	return nil
}

// RunOnce executes a single prompt and exits (non-interactive mode).
func (a *Agent) RunOnce(ctx context.Context, prompt string) error {
	a.io.UserMessage(prompt)
	a.session.AddMessage(provider.Message{
		Role: provider.RoleUser,
		Content: []provider.Content{{
			Type: provider.ContentTypeText,
			Text: prompt,
		}},
	})
	return a.runAgentLoop(ctx)
}

// handleSlashCommand processes built-in commands.
// Returns (handled, shouldQuit).
func (a *Agent) handleSlashCommand(ctx context.Context, input string) (bool, bool) {
	// Parse command and arguments.
	parts := strings.SplitN(strings.TrimSpace(input), " ", 2)
	cmd := parts[0]
	arg := ""
	if len(parts) > 1 {
		arg = strings.TrimSpace(parts[1])
	}

	switch cmd {
	case "/quit", "/exit", "/q":
		a.io.SystemMessage("Bye.")
		_ = a.store.Save(a.session)
		return true, true
	case "/clear":
		a.session.Clear()
		a.io.SystemMessage("Session cleared.")
		return true, false
	case "/history":
		a.io.SystemMessage(formatHistory(a.session.Messages))
		return true, false
	case "/cost":
		a.io.SystemMessage(fmt.Sprintf("Tokens used: %d", a.session.TokensUsed))
		return true, false
	case "/compact":
		return a.handleCompact(ctx), false
	case "/help":
		return a.handleHelp(), false
	case "/model":
		return a.handleModel(arg), false
	case "/provider":
		return a.handleProvider(arg), false
	case "/config":
		return a.handleConfig(), false
	case "/security":
		return a.handleSecurity(arg), false
	case "/audit":
		return a.handleAudit(arg), false
	case "/reload":
		return a.handleReload(), false
	case "/save":
		return a.handleSave(), false
	case "/sessions":
		return a.handleSessions(), false
	case "/resume":
		return a.handleResume(arg), false
	case "/export":
		return a.handleExport(arg), false
	case "/memory":
		return a.handleMemory(arg), false
	case "/mcp":
		return a.handleMCP(ctx, arg), false
	case "/commands":
		a.io.SystemMessage(formatCommandList(a.customCommands))
		return true, false
	default:
		// Custom commands loaded from .mikiclaw/commands/*.md
		name := strings.TrimPrefix(cmd, "/")
		if cc, ok := a.customCommands[name]; ok {
			return a.handleCustomCommand(ctx, cc, arg), false
		}
		return false, false
	}
}

func (a *Agent) handleCompact(ctx context.Context) bool {
	if a.summarizer == nil {
		a.io.SystemMessage("Summarizer not configured.")
		return true
	}
	summary, err := a.summarizer.Summarize(ctx, a.session.Summary, a.session.Messages)
	if err != nil {
		a.io.Error("Compact failed: " + err.Error())
		return true
	}
	a.session.Summary = summary
	a.session.Messages = session.TruncateSession(a.session.Messages, 10)
	a.io.SystemMessage(fmt.Sprintf("Compacted. %d messages retained.\nSummary:\n%s",
		len(a.session.Messages), truncate(summary, 300)))
	return true
}

func (a *Agent) handleHelp() bool {
	help := `Available commands:
  /help              Show this help message
  /security          Show the active security policy and session approvals
  /security reset    Clear session approvals
  /audit [denials]   Show recent audit log entries
  /reload            Reload config and swap the security policy
  /model <name>      Switch model
  /provider <name>   Switch provider (e.g. /provider openai)
  /config            Show current configuration
  /compact           Manually trigger context compaction
  /save              Save current session to disk
  /sessions          List saved sessions
  /resume <id>       Resume a saved session (use short ID prefix)
  /export [path]     Export current session to a JSON file
  /memory            List memories (add/search/delete subcommands)
  /mcp               Show MCP server status (/mcp reset to reconnect)
  /commands          List custom commands
  /history           Show message history
  /cost              Show token usage
  /clear             Clear message history
  /quit              Save and exit`
	a.io.SystemMessage(help)
	return true
}

func (a *Agent) handleModel(name string) bool {
	if name == "" {
		a.io.SystemMessage(fmt.Sprintf("Current model: %s\nUsage: /model <name>", a.config.Model))
		return true
	}
	old := a.config.Model
	a.config.Model = name
	if old == "" {
		old = a.provider.DefaultModel()
	}
	a.rebuildSystemPrompt()
	a.io.SystemMessage(fmt.Sprintf("Model switched: %s → %s", old, name))
	return true
}

func (a *Agent) handleProvider(name string) bool {
	if name == "" {
		a.io.SystemMessage(fmt.Sprintf("Current provider: %s\nUsage: /provider <name>", a.config.Provider))
		return true
	}
	if a.providerFactory == nil {
		a.io.Error("Provider hot-swap not available.")
		return true
	}
	oldName := a.config.Provider
	a.config.Provider = name
	// Reset model so the new provider uses its default.
	a.config.Model = ""

	p, err := a.providerFactory(a.config)
	if err != nil {
		// Revert on failure.
		a.config.Provider = oldName
		a.io.Error(fmt.Sprintf("Failed to switch provider: %v", err))
		return true
	}
	a.provider = p
	a.summarizer = &session.LLMSummarizer{Provider: p}
	a.rebuildSystemPrompt()
	a.io.SystemMessage(fmt.Sprintf("Provider switched: %s → %s (model: %s)",
		oldName, name, p.DefaultModel()))
	return true
}

func (a *Agent) handleConfig() bool {
	model := a.config.Model
	if model == "" {
		model = a.provider.DefaultModel()
	}
	info := fmt.Sprintf(`Current configuration:
  Provider:       %s
  Model:          %s
  Context window: %d
  Max iterations: %d
  Permission:     %s
  Tool profile:   %s
  Command tier:   %s
  Audit log:      %v
  Session ID:     %s
  Messages:       %d
  Tokens used:    %d`,
		a.config.Provider,
		model,
		a.contextWindow(),
		a.config.MaxIterations,
		a.config.Permissions.Mode,
		a.config.Security.ToolProfile,
		a.config.Security.CommandPolicyTier,
		a.config.AuditEnabled(),
		a.session.ID,
		len(a.session.Messages),
		a.session.TokensUsed,
	)
	a.io.SystemMessage(info)
	return true
}

// handleSecurity shows the active policy snapshot and session approvals,
// or clears the approvals with "/security reset".
func (a *Agent) handleSecurity(arg string) bool {
	if a.gate == nil {
		a.io.SystemMessage("Security gate not configured.")
		return true
	}

	if strings.TrimSpace(arg) == "reset" {
		a.gate.ResetApprovals()
		a.io.SystemMessage("Session approvals cleared.")
		return true
	}

	p := a.gate.Policy()
	fmtList := func(items []string) string {
		if len(items) == 0 {
			return "(none)"
		}
		return strings.Join(items, ", ")
	}

	var sb strings.Builder
	sb.WriteString("Security policy:\n")
	sb.WriteString(fmt.Sprintf("  Profile:          %s\n", p.Profile))
	sb.WriteString(fmt.Sprintf("  Command tier:     %s\n", p.Tier))
	sb.WriteString(fmt.Sprintf("  Allowed tools:    %s\n", fmtList(p.AllowedTools)))
	sb.WriteString(fmt.Sprintf("  Blocked tools:    %s\n", fmtList(p.BlockedTools)))
	sb.WriteString(fmt.Sprintf("  Allowed commands: %s\n", fmtList(p.AllowedCommands)))
	sb.WriteString(fmt.Sprintf("  Blocked commands: %s\n", fmtList(p.BlockedCommands)))
	sb.WriteString(fmt.Sprintf("  Permission mode:  %s\n", a.config.Permissions.Mode))

	if approvals := a.gate.Approvals(); approvals != "" {
		sb.WriteString(approvals + "\n")
		sb.WriteString("Use /security reset to clear session approvals.")
	} else {
		sb.WriteString("No session approvals recorded.")
	}

	a.io.SystemMessage(sb.String())
	return true
}

// handleAudit shows recent audit entries; "/audit denials" filters to
// blocked and declined calls.
func (a *Agent) handleAudit(arg string) bool {
	if a.recorder == nil {
		a.io.SystemMessage("Audit logging not enabled.\nSet audit_log: true in config.yaml")
		return true
	}

	const limit = 20
	var (
		entries []audit.Entry
		err     error
		title   string
	)
	if strings.TrimSpace(arg) == "denials" {
		entries, err = a.recorder.Denials(limit)
		title = "Audit log denials"
	} else {
		entries, err = a.recorder.Recent(limit)
		title = "Audit log"
	}
	if err != nil {
		a.io.Error("Failed to read audit log: " + err.Error())
		return true
	}
	if len(entries) == 0 {
		a.io.SystemMessage("No audit entries recorded yet.")
		return true
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s (last %d):\n", title, len(entries)))
	for _, e := range entries {
		target := e.Tool
		if e.Command != "" {
			target = fmt.Sprintf("%s: %s", e.Tool, truncate(e.Command, 48))
		}
		line := fmt.Sprintf("  %s  %-8s %s", e.Time.Format("15:04:05"), e.Decision, target)
		if e.Reason != "" {
			line += "  (" + truncate(e.Reason, 60) + ")"
		}
		sb.WriteString(line + "\n")
	}
	a.io.SystemMessage(strings.TrimRight(sb.String(), "\n"))
	return true
}

// handleReload re-reads the config file and swaps the security policy.
// Session approvals survive the swap.
func (a *Agent) handleReload() bool {
	if a.gate == nil {
		a.io.SystemMessage("Security gate not configured.")
		return true
	}

	fresh, err := config.Load(a.configPath)
	if err != nil {
		a.io.Error("Reload failed: " + err.Error())
		return true
	}

	oldProfile := a.config.Security.ToolProfile
	oldTier := a.config.Security.CommandPolicyTier

	a.config.Security = fresh.Security
	a.config.Permissions = fresh.Permissions
	a.config.MaxIterations = fresh.MaxIterations
	a.config.ContextWindow = fresh.ContextWindow
	a.gate.Reload(&a.config.Permissions, a.config.Security)
	a.rebuildSystemPrompt()

	p := a.gate.Policy()
	msg := fmt.Sprintf("Config reloaded. Active policy: profile=%s tier=%s", p.Profile, p.Tier)
	if oldProfile != a.config.Security.ToolProfile || oldTier != a.config.Security.CommandPolicyTier {
		msg += fmt.Sprintf(" (was profile=%s tier=%s)", oldProfile, oldTier)
	}
	msg += "\nSession approvals preserved."
	a.io.SystemMessage(msg)
	return true
}

func (a *Agent) handleSave() bool {
	if err := a.store.Save(a.session); err != nil {
		a.io.Error("Save failed: " + err.Error())
		return true
	}
	a.io.SystemMessage(fmt.Sprintf("Session saved: %s (%d messages)",
		a.session.ID[:8], len(a.session.Messages)))
	return true
}

func (a *Agent) handleSessions() bool {
	infos, err := a.store.List()
	if err != nil {
		a.io.Error("Failed to list sessions: " + err.Error())
		return true
	}
	if len(infos) == 0 {
		a.io.SystemMessage("No saved sessions.")
		return true
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Saved sessions (%d):\n", len(infos)))
	for i, info := range infos {
		if i >= 20 {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(infos)-20))
			break
		}
		sb.WriteString(fmt.Sprintf("  %s  %s  %d msgs  %d tokens\n",
			info.ID[:8],
			info.CreatedAt.Format("2006-01-02 15:04"),
			info.Messages,
			info.Tokens,
		))
	}
	sb.WriteString("Use /resume <id> to restore a session.")
	a.io.SystemMessage(sb.String())
	return true
}

func (a *Agent) handleResume(idPrefix string) bool {
	if idPrefix == "" {
		a.io.SystemMessage("Usage: /resume <session-id-prefix>")
		return true
	}

	infos, err := a.store.List()
	if err != nil {
		a.io.Error("Failed to list sessions: " + err.Error())
		return true
	}

	// Find sessions matching the prefix.
	var matches []session.SessionInfo
	for _, info := range infos {
		if strings.HasPrefix(info.ID, idPrefix) {
			matches = append(matches, info)
		}
	}

	switch len(matches) {
	case 0:
		a.io.Error(fmt.Sprintf("No session found matching prefix %q", idPrefix))
		return true
	case 1:
		// Unique match — load it.
	default:
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("Ambiguous prefix %q matches %d sessions:\n", idPrefix, len(matches)))
		for _, m := range matches {
			sb.WriteString(fmt.Sprintf("  %s  %s\n", m.ID[:12], m.CreatedAt.Format("2006-01-02 15:04")))
		}
		sb.WriteString("Provide a longer prefix.")
		a.io.SystemMessage(sb.String())
		return true
	}

	loaded, err := a.store.Load(matches[0].ID)
	if err != nil {
		a.io.Error("Failed to load session: " + err.Error())
		return true
	}

	a.session = loaded
	a.io.SystemMessage(fmt.Sprintf("Resumed session %s (%d messages, %d tokens)",
		loaded.ID[:8], len(loaded.Messages), loaded.TokensUsed))
	return true
}

func (a *Agent) handleExport(path string) bool {
	if path == "" {
		path = session.DefaultExportName(a.session.ID)
	}
	if err := session.Export(a.session, path); err != nil {
		a.io.Error("Export failed: " + err.Error())
		return true
	}
	a.io.SystemMessage(fmt.Sprintf("Session exported to %s (%d messages)",
		path, len(a.session.Messages)))
	return true
}

func (a *Agent) handleMemory(arg string) bool {
	if a.memoryStore == nil {
		a.io.SystemMessage("Memory store not configured.")
		return true
	}

	// Parse subcommand.
	parts := strings.SplitN(arg, " ", 2)
	subcmd := ""
	subarg := ""
	if len(parts) > 0 {
		subcmd = parts[0]
	}
	if len(parts) > 1 {
		subarg = strings.TrimSpace(parts[1])
	}

	switch subcmd {
	case "add":
		if subarg == "" {
			a.io.Error("Usage: /memory add <text> (use #tag to add tags)")
			return true
		}
		content, tags := parseMemoryInput(subarg)
		m, err := a.memoryStore.Add(content, tags, "manual", a.session.ID)
		if err != nil {
			a.io.Error("Failed to save memory: " + err.Error())
			return true
		}
		a.io.SystemMessage(fmt.Sprintf("Memory saved [%s]: %s", m.ID, truncate(content, 100)))
		// Rebuild prompt to include new memory.
		a.rebuildSystemPrompt()

	case "search":
		if subarg == "" {
			a.io.Error("Usage: /memory search <query>")
			return true
		}
		memories, err := a.memoryStore.Search(subarg, 10)
		if err != nil {
			a.io.Error("Search failed: " + err.Error())
			return true
		}
		a.io.SystemMessage(formatMemories(memories, "Search results"))

	case "delete", "rm":
		if subarg == "" {
			a.io.Error("Usage: /memory delete <id>")
			return true
		}
		if err := a.memoryStore.Delete(subarg); err != nil {
			a.io.Error("Delete failed: " + err.Error())
			return true
		}
		a.io.SystemMessage(fmt.Sprintf("Memory %s deleted.", subarg))
		a.rebuildSystemPrompt()

	default:
		// List all memories.
		memories, err := a.memoryStore.List(20)
		if err != nil {
			a.io.Error("Failed to list memories: " + err.Error())
			return true
		}
		a.io.SystemMessage(formatMemories(memories, "Memories"))
	}

	return true
}

// parseMemoryInput extracts content and #tags from user input.
// e.g. "prefer snake_case #preference #style" → ("prefer snake_case", ["preference", "style"])
func parseMemoryInput(input string) (string, []string) {
	words := strings.Fields(input)
	var content []string
	var tags []string

	for _, w := range words {
		if strings.HasPrefix(w, "#") && len(w) > 1 {
			tags = append(tags, w[1:])
		} else {
			content = append(content, w)
		}
	}

	return strings.Join(content, " "), tags
}

// formatMemories formats a list of memories for display.
func formatMemories(memories []session.Memory, title string) string {
	if len(memories) == 0 {
		return "No memories found.\nUse /memory add <text> #tag to save one."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s (%d):\n", title, len(memories)))
	for _, m := range memories {
		tags := ""
		if len(m.Tags) > 0 {
			tags = " [" + strings.Join(m.Tags, ", ") + "]"
		}
		sb.WriteString(fmt.Sprintf("  %s  %s  %s%s\n",
			m.ID,
			m.CreatedAt.Format("2006-01-02"),
			truncate(m.Content, 60),
			tags,
		))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (a *Agent) handleMCP(ctx context.Context, arg string) bool {
	if a.mcpManager == nil {
		a.io.SystemMessage("MCP not configured. Create ~/.config/mikiclaw/mcp.json or .mikiclaw/mcp.json.")
		return true
	}

	switch strings.TrimSpace(arg) {
	case "reset":
		a.io.SystemMessage("Reconnecting MCP servers...")
		errs := a.mcpManager.Reset(ctx)
		if len(errs) > 0 {
			var sb strings.Builder
			sb.WriteString("MCP reconnect errors:\n")
			for _, e := range errs {
				sb.WriteString("  " + e.Error() + "\n")
			}
			a.io.SystemMessage(sb.String())
		} else {
			a.io.SystemMessage("MCP servers reconnected.")
		}

	default:
		// Show connection status.
		status := a.mcpManager.Status()
		if len(status) == 0 {
			a.io.SystemMessage("No MCP servers configured.")
			return true
		}
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("MCP servers (%d):\n", len(status)))
		names := make([]string, 0, len(status))
		for n := range status {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			sb.WriteString(fmt.Sprintf("  %-20s %s\n", n, status[n]))
		}
		sb.WriteString("\nUse /mcp reset to reconnect all servers.")
		a.io.SystemMessage(sb.String())
	}

	return true
}

// handleCustomCommand renders a custom command template and sends it as
// user input to the LLM.
func (a *Agent) handleCustomCommand(ctx context.Context, cmd *CustomCommand, rawArgs string) bool {
	// Check required args.
	for _, arg := range cmd.Args {
		if arg.Required && rawArgs == "" {
			a.io.Error(fmt.Sprintf("Usage: /%s <%s>\n%s", cmd.Name, arg.Name, cmd.Description))
			return true
		}
	}

	prompt, err := renderCommand(cmd, rawArgs)
	if err != nil {
		a.io.Error(err.Error())
		return true
	}

	// Show the rendered prompt as a user message and inject into the conversation.
	a.io.SystemMessage(fmt.Sprintf("[/%s] %s", cmd.Name, truncate(prompt, 200)))
	a.session.AddMessage(provider.Message{
		Role: provider.RoleUser,
		Content: []provider.Content{{
			Type: provider.ContentTypeText,
			Text: prompt,
		}},
	})

	if err := a.runAgentLoop(ctx); err != nil {
		a.io.Error(err.Error())
	}
	return true
}

func formatHistory(messages []provider.Message) string {
	if len(messages) == 0 {
		return "No history."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "\n=== History (%d messages) ===\n", len(messages))
	for i, msg := range messages {
		fmt.Fprintf(&sb, "[%d] %s:\n", i, msg.Role)
		for _, c := range msg.Content {
			switch c.Type {
			case provider.ContentTypeText:
				fmt.Fprintf(&sb, "    text: %s\n", truncate(c.Text, 100))
			case provider.ContentTypeToolUse:
				fmt.Fprintf(&sb, "    tool_use: %s(%s)\n", c.ToolName, truncate(string(c.ToolInput), 60))
			case provider.ContentTypeToolResult:
				status := "ok"
				if c.IsError {
					status = "err"
				}
				fmt.Fprintf(&sb, "    tool_result[%s]: %s\n", status, truncate(c.ToolResult, 60))
			}
		}
	}
	sb.WriteString("===")
	return sb.String()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

package tui

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Softorize/mikiclaw/internal/tools"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// ---------- messages sent from agent goroutine via program.Send() ----------

type readInputMsg struct{}

type inputResult struct {
	text string
	err  error
}

type userMsg struct{ text string }
type thinkingStartMsg struct{}
type textDeltaMsg struct{ delta string }
type textDoneMsg struct{ fullText string }
type toolStartMsg struct{ id, name, params string }
type toolDoneMsg struct {
	id, name, result string
	isErr            bool
}
type confirmMsg struct {
	name    string
	params  string
	level   tools.PermissionLevel
	replyCh chan bool
}
type systemMsg struct{ text string }
type errorMsg struct{ text string }
type tokensMsg struct{ n int }
type agentDoneMsg struct{ err error }

// toolTickMsg drives the elapsed-seconds display while a tool runs.
type toolTickMsg struct{}

// ---------- spinner activity kinds ----------

type spinnerKind int

const (
	spinnerNone     spinnerKind = iota
	spinnerThinking             // LLM is thinking
	spinnerTool                 // tool is executing
)

// ---------- current tool call state ----------

type toolCallState struct {
	name   string
	params string
}

// TUIConfig carries the version, provider and policy identity shown on the
// welcome page and in the status bar.
type TUIConfig struct {
	Version     string
	Provider    string
	Model       string
	SessionID   string
	Profile     string // active tool profile
	PolicyTier  string // active command policy tier
	ShowWelcome bool
}

// ---------- styles ----------

var (
	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	systemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	// Tool call: ⏺ orange while running, gray when done.
	dotRunningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	dotDoneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	resultPrefixStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245"))

	toolNameStyle = lipgloss.NewStyle().
			Bold(true)

	toolParamStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	toolOutputStyle = lipgloss.NewStyle()

	toolErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	toolSuccessStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("2"))

	// Policy denials get their own color so a "Blocked:" line is
	// distinguishable from an ordinary tool failure at a glance.
	blockedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")).
			Bold(true)

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true)

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238"))

	statusModelStyle = lipgloss.NewStyle().
				Background(lipgloss.Color("235")).
				Foreground(lipgloss.Color("2")).
				Bold(true)

	// Welcome box
	welcomeBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("8")).
				Padding(0, 1)

	welcomeTitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("2")).
				Bold(true)

	welcomeLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("8"))

	welcomeValueStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252"))

	welcomeHintStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245"))

	// Permission dialog: rounded border, blue-purple for normal asks,
	// red for dangerous ones.
	confirmBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("63")).
				Padding(0, 1)

	confirmDangerBorderStyle = lipgloss.NewStyle().
					Border(lipgloss.RoundedBorder()).
					BorderForeground(lipgloss.Color("196")).
					Padding(0, 1)

	confirmHintStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("63")).
				Bold(true)

	confirmDangerHintStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("196")).
				Bold(true)
)

// pulseSpinner is the thinking indicator's frame set.
var pulseSpinner = spinner.Spinner{
	Frames: []string{"·", "✢", "✳", "✶", "✻", "✽", "✻", "✶", "✳", "✢"},
	FPS:    120 * time.Millisecond,
}

// ---------- Model ----------

// Model is the bubbletea model managing the full TUI state. Finished
// output is printed into terminal scrollback via tea.Println; the View
// only holds the live area (stream/spinner, input line, status bar).
type Model struct {
	textinput   textinput.Model
	spinner     spinner.Model
	width       int
	height      int
	liveContent *strings.Builder
	streaming   bool
	inputMode   bool
	spinnerKind spinnerKind

	currentTool *toolCallState
	// set once the permission dialog has printed the header, so the
	// completion handler only prints the result block
	currentToolConfirmed bool

	confirming   bool
	confirmCh    chan bool
	confirmLevel tools.PermissionLevel

	inputCh chan inputResult

	// counts key events to swallow after a terminal escape burst
	noiseDropCount int

	quitting bool

	tokens        int
	toolName      string
	toolStartTime time.Time

	cancelToolFn func() bool
	cancelLoopFn func() bool

	cfg TUIConfig

	mdRenderer      *glamour.TermRenderer
	mdRendererWidth int
}

// NewModel creates the initial bubbletea model.
func NewModel(inputCh chan inputResult, cfg TUIConfig) Model {
	ti := textinput.New()
	ti.Prompt = "❯ "
	ti.CharLimit = 4096

	sp := spinner.New()
	sp.Spinner = pulseSpinner
	sp.Style = spinnerStyle

	return Model{
		textinput:   ti,
		spinner:     sp,
		liveContent: &strings.Builder{},
		inputCh:     inputCh,
		cfg:         cfg,
	}
}

func toolTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg { return toolTickMsg{} })
}

func (m Model) Init() tea.Cmd {
	if m.cfg.ShowWelcome {
		return tea.Println(renderWelcome(m.cfg))
	}
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.textinput.Width = m.width - 4

	case spinner.TickMsg:
		if m.spinnerKind != spinnerNone {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case tea.KeyMsg:
		s := msg.String()
		if isTerminalNoiseKey(s) {
			// A terminal status report leaked through as key events.
			// Swallow it and a few trailing fragments.
			m.noiseDropCount = 4
			return m, nil
		}
		if m.noiseDropCount > 0 && len(s) <= 2 && s != "esc" {
			m.noiseDropCount--
			return m, nil
		}
		switch s {
		case "ctrl+c":
			if m.confirming && m.confirmCh != nil {
				m.confirmCh <- false
				m.confirming = false
				m.confirmCh = nil
			}
			if m.inputMode {
				m.inputCh <- inputResult{err: fmt.Errorf("interrupted")}
				m.inputMode = false
				m.textinput.Blur()
			}
			m.quitting = true
			return m, tea.Quit
		case "enter":
			if m.confirming && m.confirmCh != nil {
				m.confirmCh <- true
				m.confirming = false
				m.confirmCh = nil
				m.currentToolConfirmed = true
				return m, nil
			}
			if m.inputMode {
				text := strings.TrimSpace(m.textinput.Value())
				m.textinput.SetValue("")
				m.inputCh <- inputResult{text: text}
				m.inputMode = false
				m.textinput.Blur()
			}
			return m, nil
		case "esc":
			if m.confirming && m.confirmCh != nil {
				// The executor answers with a denial result, which the
				// tool-done handler prints; no extra line needed here.
				m.confirmCh <- false
				m.confirming = false
				m.confirmCh = nil
				m.currentToolConfirmed = true
				return m, nil
			}
			if m.toolName != "" && m.cancelToolFn != nil {
				m.cancelToolFn()
				return m, nil
			}
			if (m.spinnerKind == spinnerThinking || m.streaming) && m.cancelLoopFn != nil {
				m.cancelLoopFn()
				m.spinnerKind = spinnerNone
				m.streaming = false
				m.liveContent.Reset()
				return m, nil
			}
			if m.inputMode {
				// Bare esc at the prompt usually heads an escape
				// sequence fragment; treat it as noise.
				m.noiseDropCount = 4
				return m, nil
			}
		}

		if m.inputMode && !m.confirming {
			if isControlKeyMsg(s) {
				return m, nil
			}
			var cmd tea.Cmd
			m.textinput, cmd = m.textinput.Update(msg)
			cmds = append(cmds, cmd)
		}

	// ---------- custom messages from agent goroutine ----------

	case readInputMsg:
		m.inputMode = true
		m.textinput.Focus()
		cmds = append(cmds, textinput.Blink)

	case userMsg:
		cmds = append(cmds, tea.Println(userStyle.Render("You: "+msg.text)))

	case thinkingStartMsg:
		m.spinnerKind = spinnerThinking
		m.streaming = false
		cmds = append(cmds, m.spinner.Tick)

	case textDeltaMsg:
		if m.spinnerKind == spinnerThinking {
			m.spinnerKind = spinnerNone
		}
		m.streaming = true
		m.liveContent.WriteString(msg.delta)

	case textDoneMsg:
		m.spinnerKind = spinnerNone
		m.streaming = false
		m.liveContent.Reset()
		cmds = append(cmds, tea.Println(m.renderMarkdown(msg.fullText)))

	case toolTickMsg:
		if m.toolName != "" {
			cmds = append(cmds, toolTickCmd())
		}
		return m, tea.Batch(cmds...)

	case toolStartMsg:
		m.toolName = msg.name
		m.toolStartTime = time.Now()
		m.spinnerKind = spinnerTool
		m.currentToolConfirmed = false
		m.currentTool = &toolCallState{
			name:   msg.name,
			params: msg.params,
		}
		cmds = append(cmds, toolTickCmd(), m.spinner.Tick)

	case toolDoneMsg:
		if m.currentTool != nil {
			var line string
			if m.currentToolConfirmed {
				// The permission dialog already showed the header;
				// only print the result block.
				line = renderResultBlock(msg.name, msg.result, msg.isErr)
			} else {
				line = m.renderToolDone(m.currentTool, msg.result, msg.isErr, time.Since(m.toolStartTime))
			}
			cmds = append(cmds, tea.Println(line))
		}
		m.toolName = ""
		m.toolStartTime = time.Time{}
		m.spinnerKind = spinnerNone
		m.currentTool = nil

	case confirmMsg:
		m.confirming = true
		m.confirmCh = msg.replyCh
		m.confirmLevel = msg.level
		m.spinnerKind = spinnerNone
		cmds = append(cmds, tea.Println(m.renderConfirmBlock(msg.name, msg.params, msg.level)))

	case systemMsg:
		cmds = append(cmds, tea.Println(systemStyle.Render(msg.text)))

	case errorMsg:
		cmds = append(cmds, tea.Println(errorStyle.Render("Error: "+msg.text)))

	case tokensMsg:
		m.tokens = msg.n

	case agentDoneMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var live string
	switch m.spinnerKind {
	case spinnerThinking:
		live = m.spinner.View() + hintStyle.Render(" Thinking… (esc to interrupt)")
	case spinnerTool:
		if m.currentTool != nil {
			live = m.renderToolRunning(m.currentTool)
		}
	default:
		if m.streaming {
			live = m.liveContent.String()
		}
	}

	var input string
	if m.confirming {
		if m.confirmLevel >= tools.PermissionDangerous {
			input = confirmDangerHintStyle.Render("  ⚠ enter = allow · esc = deny")
		} else {
			input = confirmHintStyle.Render("  enter = allow · esc = deny")
		}
	} else if m.inputMode {
		input = m.textinput.View()
	} else {
		input = systemStyle.Render("❯")
	}

	bar := m.renderStatusBar()

	var parts []string
	if live != "" {
		parts = append(parts, live)
	}
	parts = append(parts, input, bar)
	return strings.Join(parts, "\n")
}

// ---------- tool call rendering ----------

// renderToolRunning renders an in-flight tool call in the live area.
//
//	⏺ Read(…/main.go)  3s · esc to cancel
//	  ⎿  Running…
func (m *Model) renderToolRunning(tc *toolCallState) string {
	header := toolHeader(tc.name, tc.params, true)
	elapsed := int(time.Since(m.toolStartTime).Seconds())
	hint := hintStyle.Render(fmt.Sprintf("  %ds · esc to cancel", elapsed))
	running := resultPrefixStyle.Render("  ⎿  ") + hintStyle.Render("Running…")
	return header + hint + "\n" + running
}

// renderToolDone renders a completed tool call for the scrollback.
//
// Simple tools (read, list, glob, grep, write, edit) collapse to one line:
//
//	⏺ Read(…/main.go)  Read 42 lines  0.3s
//
// Complex tools (bash, git, web, mcp) and errors use two or more lines:
//
//	⏺ Bash(git status)  0.8s
//	  ⎿  output…
func (m *Model) renderToolDone(tc *toolCallState, result string, isErr bool, elapsed time.Duration) string {
	header := toolHeader(tc.name, tc.params, false)
	elapsedStr := hintStyle.Render("  " + formatElapsed(elapsed))

	if !isErr {
		if summary := toolInlineSummary(tc.name, result); summary != "" {
			return header + "  " + summary + elapsedStr
		}
	}

	return header + elapsedStr + "\n" + renderResultBlock(tc.name, result, isErr)
}

// toolInlineSummary returns a short inline summary for simple tools,
// or "" for tools whose output deserves a full result block.
func toolInlineSummary(name, result string) string {
	switch name {
	case "read_file":
		n := countContentLines(result)
		return toolParamStyle.Render(fmt.Sprintf("Read %d %s", n, pluralLine(n)))
	case "write_file", "edit_file":
		return toolSuccessStyle.Render(firstLine(result))
	case "glob":
		n := countNonEmptyLines(result)
		return toolParamStyle.Render(fmt.Sprintf("Found %d %s", n, pluralFile(n)))
	case "grep":
		n := countNonEmptyLines(result)
		return toolParamStyle.Render(fmt.Sprintf("Found %d %s", n, pluralMatch(n)))
	case "list_dir":
		n := countNonEmptyLines(result)
		return toolParamStyle.Render(fmt.Sprintf("Listed %d %s", n, pluralEntry(n)))
	case "send_message":
		return toolSuccessStyle.Render(firstLine(result))
	case "todo_write", "todo_read":
		if strings.TrimSpace(result) == "" {
			return hintStyle.Render("(empty)")
		}
		return toolParamStyle.Render(firstLine(result))
	}
	return ""
}

// renderConfirmBlock renders the permission dialog box that precedes a
// gated tool call.
func (m *Model) renderConfirmBlock(name, params string, level tools.PermissionLevel) string {
	displayName := toolDisplayName(name)
	param := toolPrimaryParam(name, params)

	var header string
	if param != "" {
		header = toolNameStyle.Render(displayName) + toolParamStyle.Render("("+param+")")
	} else {
		header = toolNameStyle.Render(displayName)
	}

	border := confirmBorderStyle
	if level >= tools.PermissionDangerous {
		border = confirmDangerBorderStyle
	}

	lines := []string{header}
	if param == "" && params != "" && params != "{}" {
		short := params
		if len(short) > 120 {
			short = short[:120] + "…"
		}
		lines = append(lines, toolParamStyle.Render(short))
	}
	lines = append(lines, "", hintStyle.Render("Permission level: "+level.String()))
	if level >= tools.PermissionDangerous {
		lines = append(lines, confirmDangerHintStyle.Render("⚠  DANGEROUS OPERATION"))
	}

	return border.Render(strings.Join(lines, "\n"))
}

// renderStatusBar renders the separator plus the model/tokens/profile bar.
func (m Model) renderStatusBar() string {
	modelName := m.cfg.Model
	if modelName == "" {
		modelName = "unknown"
	}
	status := statusModelStyle.Render(" "+modelName) +
		statusBarStyle.Render(fmt.Sprintf("│ tokens: %d", m.tokens))
	if m.cfg.Profile != "" {
		status += statusBarStyle.Render(fmt.Sprintf("│ profile: %s", m.cfg.Profile))
	}
	if m.toolName != "" {
		elapsed := int(time.Since(m.toolStartTime).Seconds())
		status += statusBarStyle.Render(fmt.Sprintf("│ %s (%ds)", toolDisplayName(m.toolName), elapsed))
	}

	width := m.width
	if width < 1 {
		width = 80
	}
	return separatorStyle.Render(strings.Repeat("─", width)) + "\n" + status
}

// ---------- markdown rendering ----------

// getMarkdownRenderer returns a glamour renderer cached per wrap width.
func (m *Model) getMarkdownRenderer() *glamour.TermRenderer {
	width := m.width
	if width <= 0 {
		width = 80
	}
	wrapWidth := width - 4
	if m.mdRenderer != nil && m.mdRendererWidth == wrapWidth {
		return m.mdRenderer
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(wrapWidth),
	)
	if err != nil {
		return nil
	}
	m.mdRenderer = r
	m.mdRendererWidth = wrapWidth
	return r
}

func (m *Model) renderMarkdown(text string) string {
	r := m.getMarkdownRenderer()
	if r == nil {
		return text
	}
	rendered, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(rendered, "\n")
}

// ---------- welcome page ----------

func renderWelcome(cfg TUIConfig) string {
	claw := []string{
		` /\_/\ `,
		`( o.o )`,
		` > ^ < `,
		`  " "  `,
	}

	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	policy := cfg.Profile
	if cfg.PolicyTier != "" {
		if policy != "" {
			policy += " · "
		}
		policy += cfg.PolicyTier
	}
	if policy == "" {
		policy = "default"
	}

	info := []string{
		welcomeTitleStyle.Render("mikiclaw " + version),
		welcomeLabelStyle.Render("provider ") + welcomeValueStyle.Render(cfg.Provider+" / "+cfg.Model),
		welcomeLabelStyle.Render("policy   ") + welcomeValueStyle.Render(policy),
		welcomeLabelStyle.Render("session  ") + welcomeValueStyle.Render(cfg.SessionID),
	}

	const clawWidth = 10
	var lines []string
	n := len(claw)
	if len(info) > n {
		n = len(info)
	}
	for i := 0; i < n; i++ {
		left := ""
		if i < len(claw) {
			left = claw[i]
		}
		right := ""
		if i < len(info) {
			right = info[i]
		}
		pad := clawWidth - lipgloss.Width(left)
		if pad < 0 {
			pad = 0
		}
		lines = append(lines, left+strings.Repeat(" ", pad)+right)
	}
	lines = append(lines, "")
	lines = append(lines, welcomeHintStyle.Render("/help commands · /security policy · /audit log"))
	lines = append(lines, welcomeHintStyle.Render("/sessions history · /resume <id> restore"))

	return welcomeBorderStyle.Render(strings.Join(lines, "\n"))
}

// ---------- tool display helpers ----------

var toolDisplayNames = map[string]string{
	"read_file":      "Read",
	"write_file":     "Write",
	"edit_file":      "Edit",
	"bash":           "Bash",
	"glob":           "Glob",
	"grep":           "Search",
	"list_dir":       "List",
	"git_status":     "GitStatus",
	"git_diff":       "GitDiff",
	"git_commit":     "GitCommit",
	"git_push":       "GitPush",
	"web_fetch":      "WebFetch",
	"web_search":     "WebSearch",
	"send_message":   "SendMessage",
	"read_messages":  "ReadMessages",
	"session_status": "SessionStatus",
	"todo_write":     "TodoWrite",
	"todo_read":      "TodoRead",
}

// toolDisplayName converts an internal tool name to a display name.
// MCP tools (mcp__server__tool) render as server:tool.
func toolDisplayName(name string) string {
	if d, ok := toolDisplayNames[name]; ok {
		return d
	}
	if strings.HasPrefix(name, "mcp__") {
		rest := name[len("mcp__"):]
		if i := strings.Index(rest, "__"); i >= 0 {
			return rest[:i] + ":" + rest[i+2:]
		}
		return rest
	}
	return name
}

// toolPrimaryParam extracts the most relevant parameter from raw JSON
// params for compact display next to the tool name.
func toolPrimaryParam(name, rawParams string) string {
	if rawParams == "" || rawParams == "{}" {
		return ""
	}
	var params map[string]any
	if err := json.Unmarshal([]byte(rawParams), &params); err != nil {
		return ""
	}
	strVal := func(key string) string {
		if v, ok := params[key].(string); ok {
			return v
		}
		return ""
	}

	var val string
	switch name {
	case "read_file", "write_file", "edit_file":
		val = strVal("file_path")
	case "bash":
		val = strVal("command")
	case "glob", "grep":
		val = strVal("pattern")
	case "list_dir":
		val = strVal("path")
	case "web_fetch":
		val = strVal("url")
	case "web_search":
		val = strVal("query")
	case "git_commit":
		val = strVal("message")
	case "send_message", "read_messages":
		val = strVal("channel")
	default:
		for _, key := range []string{"path", "file_path", "command", "query", "name", "url"} {
			if v := strVal(key); v != "" {
				val = v
				break
			}
		}
	}

	if val == "" {
		return ""
	}

	// Shorten paths to the last two components.
	if strings.ContainsAny(val, "/\\") {
		parts := strings.Split(filepath.ToSlash(val), "/")
		if len(parts) > 2 {
			val = "…/" + strings.Join(parts[len(parts)-2:], "/")
		}
	}

	if len(val) > 45 {
		val = val[:42] + "…"
	}
	return val
}

// toolHeader builds the "⏺ ToolName(param)" header line.
func toolHeader(name, rawParams string, running bool) string {
	var dot string
	if running {
		dot = dotRunningStyle.Render("⏺")
	} else {
		dot = dotDoneStyle.Render("⏺")
	}

	displayName := toolDisplayName(name)
	param := toolPrimaryParam(name, rawParams)

	var body string
	if param != "" {
		body = toolNameStyle.Render(displayName) + toolParamStyle.Render("("+param+")")
	} else {
		body = toolNameStyle.Render(displayName)
	}
	return dot + " " + body
}

// renderResultBlock renders the "  ⎿  …" result lines under a tool header.
// Policy denials ("Blocked: …") get their own style so they stand out
// from ordinary tool failures.
func renderResultBlock(name, result string, isErr bool) string {
	prefix := resultPrefixStyle.Render("  ⎿  ")
	const contPrefix = "     "

	if isErr {
		if strings.HasPrefix(result, "Blocked: ") {
			return prefix + blockedStyle.Render("✗ "+result)
		}
		return renderMultiLine(prefix, contPrefix, truncateResult(result, 10), toolErrorStyle)
	}

	switch name {
	case "read_file":
		n := countContentLines(result)
		return prefix + toolParamStyle.Render(fmt.Sprintf("Read %d %s", n, pluralLine(n)))
	case "write_file", "edit_file":
		return prefix + toolSuccessStyle.Render(firstLine(result))
	case "glob":
		n := countNonEmptyLines(result)
		return prefix + toolParamStyle.Render(fmt.Sprintf("Found %d %s", n, pluralFile(n)))
	case "grep":
		n := countNonEmptyLines(result)
		return prefix + toolParamStyle.Render(fmt.Sprintf("Found %d %s", n, pluralMatch(n)))
	case "list_dir":
		n := countNonEmptyLines(result)
		return prefix + toolParamStyle.Render(fmt.Sprintf("Listed %d %s", n, pluralEntry(n)))
	case "send_message":
		return prefix + toolSuccessStyle.Render(firstLine(result))
	case "todo_write", "todo_read":
		if strings.TrimSpace(result) == "" {
			return prefix + hintStyle.Render("(empty)")
		}
		return prefix + toolParamStyle.Render(firstLine(result))
	default:
		if strings.TrimSpace(result) == "" {
			return prefix + hintStyle.Render("(no output)")
		}
		return renderMultiLine(prefix, contPrefix, truncateResult(result, 13), toolOutputStyle)
	}
}

// renderMultiLine renders text with prefix on the first line and
// contPrefix on the rest. "… +N lines" markers render as hints.
func renderMultiLine(prefix, contPrefix, text string, style lipgloss.Style) string {
	lines := strings.Split(text, "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return prefix + hintStyle.Render("(no output)")
	}

	out := make([]string, 0, len(lines))
	for i, line := range lines {
		p := contPrefix
		if i == 0 {
			p = prefix
		}
		if strings.HasPrefix(line, "… +") {
			out = append(out, p+hintStyle.Render(line))
		} else {
			out = append(out, p+style.Render(line))
		}
	}
	return strings.Join(out, "\n")
}

// truncateResult keeps at most maxLines of output as head + marker + tail.
func truncateResult(s string, maxLines int) string {
	lines := strings.Split(s, "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) <= maxLines {
		return strings.Join(lines, "\n")
	}

	const tail = 3
	head := maxLines - tail - 1
	if head < 1 {
		head = 1
	}
	skipped := len(lines) - head - tail

	out := make([]string, 0, maxLines)
	out = append(out, lines[:head]...)
	out = append(out, fmt.Sprintf("… +%d lines", skipped))
	out = append(out, lines[len(lines)-tail:]...)
	return strings.Join(out, "\n")
}

// ---------- time / count helpers ----------

func formatElapsed(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}

// countContentLines counts lines of tool output, treating empty output
// as zero lines.
func countContentLines(s string) int {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}

func countNonEmptyLines(s string) int {
	n := 0
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}

func firstLine(s string) string {
	if i := strings.Index(s, "\n"); i >= 0 {
		return s[:i]
	}
	return s
}

func pluralLine(n int) string {
	if n == 1 {
		return "line"
	}
	return "lines"
}

func pluralFile(n int) string {
	if n == 1 {
		return "file"
	}
	return "files"
}

func pluralMatch(n int) string {
	if n == 1 {
		return "match"
	}
	return "matches"
}

func pluralEntry(n int) string {
	if n == 1 {
		return "entry"
	}
	return "entries"
}

// ---------- key event helpers ----------

// isTerminalNoiseKey reports whether a key string looks like a leaked
// terminal control sequence (color reports, mouse events, DA responses)
// rather than a real keypress.
func isTerminalNoiseKey(s string) bool {
	if strings.Contains(s, ";rgb:") || strings.HasPrefix(s, "]") || strings.HasPrefix(s, "alt+]") {
		return true
	}
	if (strings.HasSuffix(s, "M") || strings.HasSuffix(s, "m")) && strings.Contains(s, ";") {
		return true
	}
	if strings.HasPrefix(s, "[<") || strings.HasPrefix(s, "alt+[<") {
		return true
	}
	if strings.HasPrefix(s, "[?") || strings.HasPrefix(s, "alt+[?") {
		return true
	}
	if len(s) > 1 && s[0] == '[' && s[1] >= '0' && s[1] <= '9' {
		return true
	}
	return false
}

// isControlKeyMsg reports whether the key string contains raw control
// bytes that should not reach the text input.
func isControlKeyMsg(s string) bool {
	for _, r := range s {
		if r == '\x1b' || (r < 0x20 && r != '\t' && r != '\n' && r != '\r') {
			return true
		}
	}
	return false
}

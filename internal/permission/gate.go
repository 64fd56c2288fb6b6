package permission

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Softorize/mikiclaw/internal/config"
	"github.com/Softorize/mikiclaw/internal/security"
)

// Gate is the standard Policy implementation. The security engine decides
// what is forbidden outright; the gate decides what the user must confirm.
// Policy denials are final: no mode, allowlist, or session approval
// upgrades a Deny.
//
// Configuration lives behind an atomic pointer so Reload can swap in a new
// snapshot while checks are in flight; a check always sees one consistent
// snapshot. Session approvals are kept separately and survive reloads.
type Gate struct {
	state atomic.Pointer[gateState]

	mu        sync.Mutex
	approvals map[string]bool
}

type gateState struct {
	policy           *security.Policy
	yolo             bool
	autoApprove      bool
	autoApproveTools map[string]bool
	allowedPaths     []string
}

// NewGate builds a gate from the permissions section and the security
// section of the configuration. Either may be zero-valued; the security
// defaults (coding profile, block-destructive tier) apply.
func NewGate(perms *config.PermissionConfig, sec security.SecurityConfig) *Gate {
	g := &Gate{}
	g.Reload(perms, sec)
	return g
}

// Reload replaces the active configuration snapshot. Checks that already
// loaded the previous snapshot complete against it. Session approvals are
// not touched; use ResetApprovals for that.
func (g *Gate) Reload(perms *config.PermissionConfig, sec security.SecurityConfig) {
	st := &gateState{
		policy:           security.NewPolicy(sec),
		autoApproveTools: make(map[string]bool),
	}
	if perms != nil {
		st.yolo = perms.Mode == "yolo"
		st.autoApprove = st.yolo || perms.Mode == "auto-approve"
		for _, name := range perms.AutoApproveTools {
			st.autoApproveTools[name] = true
		}
		st.allowedPaths = append([]string(nil), perms.AllowedPaths...)
	}
	g.state.Store(st)
}

// Policy returns the active security policy snapshot.
func (g *Gate) Policy() *security.Policy {
	return g.state.Load().policy
}

var _ Policy = (*Gate)(nil)

// Check evaluates a tool call. Order: security policy first (tool gate,
// then for bash the command gate), then the path gate for file-writing
// tools, then the confirmation layer.
//
// Bash is special in auto-approve mode: unknown commands still need
// confirmation. Only yolo mode, the command allowlist, or a session
// approval lets a command through silently.
func (g *Gate) Check(toolName string, params json.RawMessage) Result {
	st := g.state.Load()

	if v := st.policy.IsToolAllowed(toolName); !v.Allowed {
		return Result{Decision: Deny, Reason: v.Reason}
	}

	switch toolName {
	case "bash":
		return g.checkCommand(st, params)
	case "write_file", "edit_file":
		if ok, path := pathAllowed(st.allowedPaths, params); !ok {
			return Result{Decision: Deny, Reason: fmt.Sprintf("path %q is outside the allowed paths", path)}
		}
	}

	if st.autoApprove || st.autoApproveTools[toolName] || g.approved(toolName, params) {
		return Result{Decision: Allow}
	}
	return Result{Decision: NeedConfirmation}
}

func (g *Gate) checkCommand(st *gateState, params json.RawMessage) Result {
	var args struct {
		Command string `json:"command"`
	}
	// A malformed or empty command carries nothing to judge here; the
	// executor rejects it when it validates parameters.
	if err := json.Unmarshal(params, &args); err != nil || strings.TrimSpace(args.Command) == "" {
		if st.yolo || st.autoApproveTools["bash"] {
			return Result{Decision: Allow}
		}
		return Result{Decision: NeedConfirmation}
	}

	if v := st.policy.IsCommandAllowed(args.Command); !v.Allowed {
		return Result{Decision: Deny, Reason: v.Reason}
	}
	if st.yolo || st.autoApproveTools["bash"] {
		return Result{Decision: Allow}
	}
	if st.policy.CommandAllowlisted(args.Command) {
		return Result{Decision: Allow, Reason: "command in allowlist"}
	}
	if g.approved("bash", params) {
		return Result{Decision: Allow}
	}
	return Result{Decision: NeedConfirmation}
}

// RememberApproval records a user's "always allow" answer. Bash approvals
// key on the command's first word, file tools on the exact path, so one
// answer covers the natural repeat (same program, same file) without
// covering everything.
func (g *Gate) RememberApproval(toolName string, params json.RawMessage) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.approvals == nil {
		g.approvals = make(map[string]bool)
	}
	g.approvals[approvalKey(toolName, params)] = true
}

// ResetApprovals forgets all session approvals.
func (g *Gate) ResetApprovals() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.approvals = nil
}

// Approvals renders the current session approvals for display, or ""
// when none have been recorded.
func (g *Gate) Approvals() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.approvals) == 0 {
		return ""
	}
	keys := make([]string, 0, len(g.approvals))
	for k := range g.approvals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("Session approvals (%d): %s", len(keys), strings.Join(keys, ", "))
}

func (g *Gate) approved(toolName string, params json.RawMessage) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.approvals[approvalKey(toolName, params)]
}

func approvalKey(toolName string, params json.RawMessage) string {
	switch toolName {
	case "bash":
		var args struct {
			Command string `json:"command"`
		}
		if err := json.Unmarshal(params, &args); err == nil {
			if fields := strings.Fields(args.Command); len(fields) > 0 {
				return toolName + ":" + fields[0]
			}
		}
	case "write_file", "edit_file":
		var args struct {
			FilePath string `json:"file_path"`
		}
		if err := json.Unmarshal(params, &args); err == nil && args.FilePath != "" {
			return toolName + ":" + args.FilePath
		}
	}
	return toolName
}

// pathAllowed reports whether the file_path parameter falls under one of
// the allowed paths. An empty list allows all paths. Matching is on
// cleaned paths at separator boundaries, so "./src/**" covers
// "src/main.go" but not "srcfoo/main.go", and traversal out of an
// allowed directory does not match.
func pathAllowed(allowed []string, params json.RawMessage) (bool, string) {
	if len(allowed) == 0 {
		return true, ""
	}
	var args struct {
		FilePath string `json:"file_path"`
	}
	if err := json.Unmarshal(params, &args); err != nil || args.FilePath == "" {
		return true, ""
	}
	clean := filepath.Clean(args.FilePath)
	for _, pattern := range allowed {
		base := strings.TrimSuffix(pattern, "/**")
		base = strings.TrimSuffix(base, "/*")
		base = filepath.Clean(base)
		if clean == base || strings.HasPrefix(clean, base+string(filepath.Separator)) {
			return true, ""
		}
	}
	return false, clean
}

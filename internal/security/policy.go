// Package security decides whether the agent may call a tool or run a
// shell command. Decisions are computed from an immutable Policy snapshot:
// there is no package-level mutable state, every check is a pure function
// of the policy and its input, and a config reload means building a new
// Policy and swapping the pointer at the call site.
package security

import (
	"fmt"
	"strings"
)

// Tier selects how strictly shell commands are gated.
type Tier string

const (
	TierAllowAll         Tier = "allow-all"         // blocklist and obfuscation checks only
	TierBlockDestructive Tier = "block-destructive" // same checks; the default
	TierAllowlistOnly    Tier = "allowlist-only"    // additionally every segment must be allowlisted
)

// DefaultTier is used when the configured tier is empty or unknown.
const DefaultTier = TierBlockDestructive

// normalizeTier maps a configured tier string to a known Tier, falling
// back to DefaultTier for empty or unrecognized values.
func normalizeTier(s string) Tier {
	switch Tier(s) {
	case TierAllowAll, TierBlockDestructive, TierAllowlistOnly:
		return Tier(s)
	default:
		return DefaultTier
	}
}

// SecurityConfig is the user-facing policy configuration, typically
// loaded from the "security:" block of the config file. Zero values mean
// defaults: coding profile, block-destructive tier, empty lists.
type SecurityConfig struct {
	ToolProfile       string   `yaml:"tool_profile"`
	AllowedTools      []string `yaml:"allowed_tools"`
	BlockedTools      []string `yaml:"blocked_tools"`
	AllowedCommands   []string `yaml:"allowed_commands"`
	BlockedCommands   []string `yaml:"blocked_commands"`
	CommandPolicyTier string   `yaml:"tool_policy"`
}

// Verdict is the outcome of a policy check. Reason is always set when
// Allowed is false, and names the rule when a non-default rule allowed.
type Verdict struct {
	Allowed bool
	Reason  string
}

func deny(format string, args ...any) Verdict {
	return Verdict{Allowed: false, Reason: fmt.Sprintf(format, args...)}
}

func allow(reason string) Verdict {
	return Verdict{Allowed: true, Reason: reason}
}

// Policy is an immutable snapshot of the active security configuration.
// Construct with NewPolicy and treat as read-only afterwards; concurrent
// use is safe. To change the policy, build a new one and swap the pointer.
type Policy struct {
	Profile         Profile
	Tier            Tier
	AllowedTools    []string
	BlockedTools    []string
	AllowedCommands []string
	BlockedCommands []string
}

// NewPolicy builds a Policy from a SecurityConfig, normalizing the profile
// and tier to their defaults and copying the lists so later mutation of
// the config cannot leak into the snapshot.
func NewPolicy(cfg SecurityConfig) *Policy {
	return &Policy{
		Profile:         normalizeProfile(cfg.ToolProfile),
		Tier:            normalizeTier(cfg.CommandPolicyTier),
		AllowedTools:    cleanList(cfg.AllowedTools),
		BlockedTools:    cleanList(cfg.BlockedTools),
		AllowedCommands: cleanList(cfg.AllowedCommands),
		BlockedCommands: cleanList(cfg.BlockedCommands),
	}
}

// cleanList copies a list, trimming whitespace and dropping empty entries.
func cleanList(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// IsToolAllowed decides whether a tool may be called at all.
//
// Precedence: blocklist first (substring match, wins over everything),
// then the allowlist when non-empty (exact name or "entry_" family
// prefix; a hit short-circuits the profile check), then the profile's
// group gate, then allow.
func (p *Policy) IsToolAllowed(name string) Verdict {
	name = strings.TrimSpace(name)

	for _, entry := range p.BlockedTools {
		if strings.Contains(name, entry) {
			return deny("tool is blocked (matches %q)", entry)
		}
	}

	if len(p.AllowedTools) > 0 {
		for _, entry := range p.AllowedTools {
			if name == entry || strings.HasPrefix(name, entry+"_") {
				return allow(fmt.Sprintf("tool in allowlist (matches %q)", entry))
			}
		}
		return deny("tool not in allowlist")
	}

	if p.Profile != ProfileCustom {
		group := ClassifyTool(name)
		if !p.Profile.allowsGroup(group) {
			return deny("tool group disabled (%s is not enabled by profile %s)", group, p.Profile)
		}
	}

	return allow("")
}

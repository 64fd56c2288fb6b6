package security

import (
	"strings"
	"testing"
)

func TestNewPolicy_Defaults(t *testing.T) {
	p := NewPolicy(SecurityConfig{})

	if p.Profile != ProfileCoding {
		t.Errorf("default profile = %s, want coding", p.Profile)
	}
	if p.Tier != TierBlockDestructive {
		t.Errorf("default tier = %s, want block-destructive", p.Tier)
	}
	if len(p.AllowedCommands) != 0 || len(p.BlockedCommands) != 0 {
		t.Error("default lists should be empty")
	}
}

func TestNewPolicy_Normalization(t *testing.T) {
	tests := []struct {
		name        string
		cfg         SecurityConfig
		wantProfile Profile
		wantTier    Tier
	}{
		{"unknown profile falls back to coding", SecurityConfig{ToolProfile: "paranoid"}, ProfileCoding, TierBlockDestructive},
		{"unknown tier falls back to block-destructive", SecurityConfig{CommandPolicyTier: "lockdown"}, ProfileCoding, TierBlockDestructive},
		{"known values pass through", SecurityConfig{ToolProfile: "messaging", CommandPolicyTier: "allow-all"}, ProfileMessaging, TierAllowAll},
		{"custom profile recognized", SecurityConfig{ToolProfile: "custom"}, ProfileCustom, TierBlockDestructive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPolicy(tt.cfg)
			if p.Profile != tt.wantProfile {
				t.Errorf("profile = %s, want %s", p.Profile, tt.wantProfile)
			}
			if p.Tier != tt.wantTier {
				t.Errorf("tier = %s, want %s", p.Tier, tt.wantTier)
			}
		})
	}
}

func TestNewPolicy_CopiesLists(t *testing.T) {
	src := []string{"git status", "  ls "}
	p := NewPolicy(SecurityConfig{AllowedCommands: src})

	src[0] = "mutated"
	if p.AllowedCommands[0] != "git status" {
		t.Error("policy must copy config lists, not alias them")
	}
	if p.AllowedCommands[1] != "ls" {
		t.Errorf("entries should be trimmed, got %q", p.AllowedCommands[1])
	}
}

func TestIsToolAllowed_BlocklistWins(t *testing.T) {
	// A blocked tool is rejected under every profile, even when allowlisted.
	profiles := []string{"minimal", "coding", "messaging", "full", "custom"}
	for _, profile := range profiles {
		t.Run(profile, func(t *testing.T) {
			p := NewPolicy(SecurityConfig{
				ToolProfile:  profile,
				AllowedTools: []string{"bash"},
				BlockedTools: []string{"bash"},
			})
			v := p.IsToolAllowed("bash")
			if v.Allowed {
				t.Fatal("blocked tool must be denied regardless of profile and allowlist")
			}
			if !strings.Contains(v.Reason, "tool is blocked") {
				t.Errorf("reason = %q, want mention of blocklist", v.Reason)
			}
		})
	}
}

func TestIsToolAllowed_BlocklistSubstring(t *testing.T) {
	p := NewPolicy(SecurityConfig{BlockedTools: []string{"browser"}})

	for _, tool := range []string{"browser", "browser_click", "headless_browser"} {
		if v := p.IsToolAllowed(tool); v.Allowed {
			t.Errorf("%q should match blocklist entry \"browser\"", tool)
		}
	}
	if v := p.IsToolAllowed("read_file"); !v.Allowed {
		t.Errorf("read_file should pass: %s", v.Reason)
	}
}

func TestIsToolAllowed_Allowlist(t *testing.T) {
	p := NewPolicy(SecurityConfig{
		ToolProfile:  "minimal", // would deny web tools by group
		AllowedTools: []string{"browser", "read_file"},
	})

	tests := []struct {
		tool    string
		allowed bool
	}{
		{"browser", true},
		{"browser_click", true}, // family prefix: browser_ matches
		{"browser_navigate", true},
		{"browserify", false}, // no underscore boundary
		{"read_file", true},
		{"write_file", false},
		{"bash", false},
	}

	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			v := p.IsToolAllowed(tt.tool)
			if v.Allowed != tt.allowed {
				t.Errorf("IsToolAllowed(%q) = %v (%s), want %v", tt.tool, v.Allowed, v.Reason, tt.allowed)
			}
			if !tt.allowed && !strings.Contains(v.Reason, "not in allowlist") {
				t.Errorf("deny reason = %q, want mention of allowlist", v.Reason)
			}
		})
	}
}

func TestIsToolAllowed_AllowlistShortCircuitsProfile(t *testing.T) {
	// An allowlist hit wins even when the tool's group is disabled.
	p := NewPolicy(SecurityConfig{
		ToolProfile:  "minimal",
		AllowedTools: []string{"bash"},
	})
	if v := p.IsToolAllowed("bash"); !v.Allowed {
		t.Errorf("allowlisted tool should bypass the profile gate: %s", v.Reason)
	}
}

func TestIsToolAllowed_ProfileGate(t *testing.T) {
	tests := []struct {
		name    string
		profile string
		tool    string
		allowed bool
	}{
		{"coding allows bash", "coding", "bash", true},
		{"coding allows read_file", "coding", "read_file", true},
		{"coding allows git_status", "coding", "git_status", true},
		{"coding allows web_fetch", "coding", "web_fetch", true},
		{"coding denies send_message", "coding", "send_message", false},
		{"coding denies mcp tools", "coding", "mcp__fs__read", false},
		{"minimal allows session_status", "minimal", "session_status", true},
		{"minimal denies bash", "minimal", "bash", false},
		{"minimal denies read_file", "minimal", "read_file", false},
		{"messaging allows send_message", "messaging", "send_message", true},
		{"messaging denies bash", "messaging", "bash", false},
		{"full allows everything grouped", "full", "send_message", true},
		{"full allows mcp tools", "full", "mcp__fs__read", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPolicy(SecurityConfig{ToolProfile: tt.profile})
			v := p.IsToolAllowed(tt.tool)
			if v.Allowed != tt.allowed {
				t.Errorf("profile %s, tool %s: allowed = %v (%s), want %v",
					tt.profile, tt.tool, v.Allowed, v.Reason, tt.allowed)
			}
			if !tt.allowed && !strings.Contains(v.Reason, "tool group disabled") {
				t.Errorf("deny reason = %q, want mention of disabled group", v.Reason)
			}
		})
	}
}

func TestIsToolAllowed_CustomProfileSkipsGroups(t *testing.T) {
	// With no lists, a custom profile allows every tool.
	p := NewPolicy(SecurityConfig{ToolProfile: "custom"})
	for _, tool := range []string{"bash", "send_message", "mcp__x__y", "unknown_thing"} {
		if v := p.IsToolAllowed(tool); !v.Allowed {
			t.Errorf("custom profile with empty lists should allow %q: %s", tool, v.Reason)
		}
	}

	// With a blocklist, only the blocklist restricts.
	p = NewPolicy(SecurityConfig{ToolProfile: "custom", BlockedTools: []string{"bash"}})
	if v := p.IsToolAllowed("bash"); v.Allowed {
		t.Error("custom profile must still honor the blocklist")
	}
	if v := p.IsToolAllowed("send_message"); !v.Allowed {
		t.Errorf("custom profile should not reinstate group checks: %s", v.Reason)
	}
}

func TestIsToolAllowed_DenialAlwaysHasReason(t *testing.T) {
	policies := []*Policy{
		NewPolicy(SecurityConfig{BlockedTools: []string{"bash"}}),
		NewPolicy(SecurityConfig{AllowedTools: []string{"ls"}}),
		NewPolicy(SecurityConfig{ToolProfile: "minimal"}),
	}
	for _, p := range policies {
		if v := p.IsToolAllowed("bash"); !v.Allowed && v.Reason == "" {
			t.Error("denial must carry a reason")
		}
	}
}

func TestIsToolAllowed_Idempotent(t *testing.T) {
	p := NewPolicy(SecurityConfig{ToolProfile: "minimal", BlockedTools: []string{"curl"}})
	first := p.IsToolAllowed("bash")
	for i := 0; i < 10; i++ {
		if got := p.IsToolAllowed("bash"); got != first {
			t.Fatalf("verdict changed between calls: %+v vs %+v", got, first)
		}
	}
}

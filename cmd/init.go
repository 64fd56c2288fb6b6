package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Interactive configuration wizard",
		Long: "Guides you through setting up mikiclaw: choose a provider, enter your\n" +
			"API key, pick a security profile and command policy, and save the config.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit()
		},
	}
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("Welcome to mikiclaw configuration wizard!")
	fmt.Println()

	// Provider selection
	providers := []string{
		"openai", "anthropic", "deepseek", "minimax",
		"kimi", "qwen", "glm", "doubao", "groq",
	}
	fmt.Println("Available providers:")
	for i, p := range providers {
		fmt.Printf("  %d. %s\n", i+1, p)
	}
	fmt.Print("\nSelect provider (1-9) [1]: ")
	providerName := providers[pickIndex(reader, len(providers), 0)]
	fmt.Printf("Selected: %s\n\n", providerName)

	// API key
	fmt.Printf("Enter API key for %s: ", providerName)
	apiKey, _ := reader.ReadString('\n')
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return fmt.Errorf("API key cannot be empty")
	}

	// Tool profile
	profiles := []string{"coding", "minimal", "messaging", "full", "custom"}
	fmt.Println("\nTool profiles (which tool groups the model may use):")
	fmt.Println("  1. coding    - filesystem, shell, git, web, system")
	fmt.Println("  2. minimal   - system introspection only")
	fmt.Println("  3. messaging - messaging and system only")
	fmt.Println("  4. full      - every tool group")
	fmt.Println("  5. custom    - allow/block lists decide everything")
	fmt.Print("\nSelect profile (1-5) [1]: ")
	profile := profiles[pickIndex(reader, len(profiles), 0)]
	fmt.Printf("Selected: %s\n", profile)

	// Command policy tier
	tiers := []string{"block-destructive", "allowlist-only", "allow-all"}
	fmt.Println("\nCommand policies (how shell commands are screened):")
	fmt.Println("  1. block-destructive - block known-destructive patterns (recommended)")
	fmt.Println("  2. allowlist-only    - only explicitly allowed commands run")
	fmt.Println("  3. allow-all         - no command screening")
	fmt.Print("\nSelect policy (1-3) [1]: ")
	tier := tiers[pickIndex(reader, len(tiers), 0)]
	fmt.Printf("Selected: %s\n", tier)

	// Build config YAML
	configData := map[string]any{
		"provider": providerName,
		"providers": map[string]any{
			providerName: map[string]any{
				"api_key": apiKey,
			},
		},
		"permissions": map[string]any{
			"mode":               "interactive",
			"auto_approve_tools": []string{"read_file", "glob", "grep", "list_dir"},
		},
		"security": map[string]any{
			"tool_profile": profile,
			"tool_policy":  tier,
		},
	}

	data, err := yaml.Marshal(configData)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	// Save
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("get home dir: %w", err)
	}
	configDir := filepath.Join(home, ".config", "mikiclaw")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	configPath := filepath.Join(configDir, "config.yaml")

	// Check if config already exists
	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("\nConfig file already exists at %s\n", configPath)
		fmt.Print("Overwrite? [y/N]: ")
		answer, _ := reader.ReadString('\n')
		if strings.ToLower(strings.TrimSpace(answer)) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Printf("\nConfig saved to %s\n", configPath)
	fmt.Println("You can now run: mikiclaw")
	fmt.Println("Inspect the policy with: mikiclaw check tool bash")
	return nil
}

// pickIndex reads a 1-based menu choice from reader, returning def for
// empty or invalid input.
func pickIndex(reader *bufio.Reader, n, def int) int {
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return def
	}
	v := 0
	for _, c := range input {
		if c < '0' || c > '9' {
			return def
		}
		v = v*10 + int(c-'0')
	}
	if v >= 1 && v <= n {
		return v - 1
	}
	return def
}

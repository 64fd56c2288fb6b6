package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Softorize/mikiclaw/internal/agent"
	"github.com/Softorize/mikiclaw/internal/audit"
	"github.com/Softorize/mikiclaw/internal/permission"
	"github.com/Softorize/mikiclaw/internal/session"
	"github.com/Softorize/mikiclaw/internal/tools"
	"github.com/Softorize/mikiclaw/internal/tui"
)

func newRunCmd() *cobra.Command {
	var prompt string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a single prompt non-interactively",
		Example: `  mikiclaw run -P "read main.go and tell me what it does"
  mikiclaw run --prompt "list all Go files" --profile minimal`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if prompt == "" {
				return fmt.Errorf("--prompt / -P is required")
			}
			return runOnce(prompt)
		},
	}

	cmd.Flags().StringVarP(&prompt, "prompt", "P", "", "the prompt to execute")
	cmd.MarkFlagRequired("prompt")

	return cmd
}

// runOnce executes a single prompt and exits.
func runOnce(prompt string) error {
	cfg := initConfig()

	p, err := buildProvider(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if cfg.Model == "" {
		cfg.Model = p.DefaultModel()
	}

	gate := permission.NewGate(&cfg.Permissions, cfg.Security)
	sess := session.New()

	registry := tools.DefaultRegistry(&tools.RegistryConfig{
		Web: &tools.WebToolsConfig{
			SearchProvider: cfg.Web.SearchProvider,
			SearchAPIKey:   cfg.Web.SearchAPIKey,
		},
		SessionStatus: func() string {
			pol := gate.Policy()
			return fmt.Sprintf(
				"session: %s\nprovider: %s\nmodel: %s\n"+
					"tokens: %d (prompt %d, completion %d)\n"+
					"tool profile: %s\ncommand policy: %s",
				sess.ID, cfg.Provider, cfg.Model,
				sess.TokensUsed, sess.PromptTokens, sess.CompletionTokens,
				pol.Profile, pol.Tier)
		},
	})
	executor := tools.NewExecutor(registry, gate)

	var recorder audit.Recorder = audit.NopRecorder{}
	if cfg.AuditEnabled() {
		recorder = openAuditRecorder()
		defer recorder.Close()
	}
	executor.SetRecorder(recorder)
	executor.SetSessionID(sess.ID)

	dbPath, err := session.DefaultDBPath()
	if err != nil {
		fmt.Fprintln(os.Stderr, "session db path:", err)
		os.Exit(1)
	}
	store, err := session.NewSQLiteStore(dbPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open session store:", err)
		os.Exit(1)
	}
	defer store.Close()

	if useTUI {
		pol := gate.Policy()
		tuiCfg := tui.TUIConfig{
			Version:     displayVersion(),
			Provider:    cfg.Provider,
			Model:       cfg.Model,
			Profile:     string(pol.Profile),
			PolicyTier:  string(pol.Tier),
			ShowWelcome: false, // run mode: no welcome page
		}

		return tui.RunTUI(tuiCfg, func(ui tui.IO) error {
			executor.SetConfirmer(ui)
			if tc, ok := ui.(tools.ToolCanceller); ok {
				executor.SetToolCanceller(tc)
			}
			a := agent.NewWithSession(p, executor, cfg, ui, store, sess)
			a.SetGate(gate)
			a.SetAuditRecorder(recorder)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			return a.RunOnce(ctx, prompt)
		})
	}

	// Plain IO mode (default)
	ui := tui.NewPlainIO()
	executor.SetConfirmer(ui)

	a := agent.NewWithSession(p, executor, cfg, ui, store, sess)
	a.SetGate(gate)
	a.SetAuditRecorder(recorder)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	return a.RunOnce(ctx, prompt)
}

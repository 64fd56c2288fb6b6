package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Softorize/mikiclaw/internal/agent"
	"github.com/Softorize/mikiclaw/internal/audit"
	"github.com/Softorize/mikiclaw/internal/config"
	"github.com/Softorize/mikiclaw/internal/mcp"
	"github.com/Softorize/mikiclaw/internal/permission"
	"github.com/Softorize/mikiclaw/internal/provider"
	"github.com/Softorize/mikiclaw/internal/session"
	"github.com/Softorize/mikiclaw/internal/tools"
	"github.com/Softorize/mikiclaw/internal/tui"
)

// runChat starts the interactive chat (REPL) mode.
func runChat() error {
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

	// The session is created up front: the session_status tool and the
	// audit trail both key off its ID.
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

	// Audit log: every policy decision lands in SQLite unless disabled.
	var recorder audit.Recorder = audit.NopRecorder{}
	if cfg.AuditEnabled() {
		recorder = openAuditRecorder()
		defer recorder.Close()
	}
	executor.SetRecorder(recorder)
	executor.SetSessionID(sess.ID)

	// MCP: load config, connect all servers, register their tools.
	cwd, _ := os.Getwd()
	mcpCfg, _ := mcp.LoadMCPConfig(cwd)
	var mcpMgr *mcp.Manager
	if mcpCfg != nil && len(mcpCfg.MCPServers) > 0 {
		mcpMgr = mcp.NewManager(mcpCfg)
		defer mcpMgr.Close()
		initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
		errs := mcpMgr.ConnectAll(initCtx)
		initCancel()
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "[mcp] warning: %v\n", e)
		}
		n := mcp.RegisterTools(mcpMgr, registry)
		if n > 0 {
			fmt.Fprintf(os.Stderr, "[mcp] registered %d tool(s)\n", n)
		}
	}

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

	memStore, err := session.NewSQLiteMemoryStore(store.DB())
	if err != nil {
		fmt.Fprintln(os.Stderr, "open memory store:", err)
		os.Exit(1)
	}

	// Provider factory for /provider hot-swap.
	factory := agent.ProviderFactory(func(c *config.Config) (provider.Provider, error) {
		return buildProvider(c)
	})

	wire := func(a *agent.Agent) {
		a.SetProviderFactory(factory)
		a.SetGate(gate)
		a.SetConfigPath(cfgFile)
		a.SetAuditRecorder(recorder)
		a.SetMemoryStore(memStore)
		if mcpMgr != nil {
			a.SetMCPManager(mcpMgr)
		}
	}

	if useTUI {
		sessionID := sess.ID
		if len(sessionID) > 8 {
			sessionID = sessionID[:8]
		}
		pol := gate.Policy()

		tuiCfg := tui.TUIConfig{
			Version:     displayVersion(),
			Provider:    cfg.Provider,
			Model:       cfg.Model,
			SessionID:   sessionID,
			Profile:     string(pol.Profile),
			PolicyTier:  string(pol.Tier),
			ShowWelcome: true,
		}

		return tui.RunTUI(tuiCfg, func(ui tui.IO) error {
			executor.SetConfirmer(ui)
			if tc, ok := ui.(tools.ToolCanceller); ok {
				executor.SetToolCanceller(tc)
			}
			a := agent.NewWithSession(p, executor, cfg, ui, store, sess)
			wire(a)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)
			go func() {
				<-sigCh
				cancel()
			}()

			return a.Run(ctx)
		})
	}

	// Plain IO mode (default)
	ui := tui.NewPlainIO()
	executor.SetConfirmer(ui)

	a := agent.NewWithSession(p, executor, cfg, ui, store, sess)
	wire(a)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	return a.Run(ctx)
}

// openAuditRecorder opens the SQLite decision log, falling back to the
// no-op recorder when the database cannot be opened.
func openAuditRecorder() audit.Recorder {
	dbPath, err := audit.DefaultDBPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "[audit] warning: %v\n", err)
		return audit.NopRecorder{}
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	r, err := audit.NewSQLiteRecorder(dbPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[audit] warning: %v\n", err)
		return audit.NopRecorder{}
	}
	return r
}

package tools

import "sort"

// Registry holds all registered tools.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool to the registry, replacing any tool with the same name.
func (r *Registry) Register(t Tool) {
	r.tools[t.Name()] = t
}

// Get returns the tool with the given name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// All returns all registered tools sorted by name.
func (r *Registry) All() []Tool {
	result := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name() < result[j].Name()
	})
	return result
}

// ToSchemas converts all tools to provider-facing schemas:
// [{"name": ..., "description": ..., "input_schema": {"type":"object","properties":{...}}}]
func (r *Registry) ToSchemas() []map[string]any {
	tools := r.All()
	schemas := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		schemas = append(schemas, map[string]any{
			"name":        t.Name(),
			"description": t.Description(),
			"input_schema": map[string]any{
				"type":       "object",
				"properties": t.Parameters(),
			},
		})
	}
	return schemas
}

// WebToolsConfig holds configuration for web-related tools.
type WebToolsConfig struct {
	SearchProvider string // "tavily", "exa", or "jina"
	SearchAPIKey   string
}

// RegistryConfig carries the injected pieces the built-in tools need.
type RegistryConfig struct {
	Web *WebToolsConfig
	// OutboxPath backs the messaging tools; empty uses the default path.
	OutboxPath string
	// SessionStatus supplies the session_status tool's report.
	SessionStatus func() string
}

// DefaultRegistry creates a registry with all built-in tools. The
// catalogue deliberately covers every tool group the policy engine
// knows, so profile changes are observable end to end.
func DefaultRegistry(cfg *RegistryConfig) *Registry {
	if cfg == nil {
		cfg = &RegistryConfig{}
	}

	outboxPath := cfg.OutboxPath
	if outboxPath == "" {
		if p, err := DefaultOutboxPath(); err == nil {
			outboxPath = p
		} else {
			outboxPath = "outbox.jsonl"
		}
	}
	outbox := NewOutbox(outboxPath)

	r := NewRegistry()
	// filesystem
	r.Register(&ReadFileTool{})
	r.Register(&WriteFileTool{})
	r.Register(&EditFileTool{})
	r.Register(&ListDirTool{})
	r.Register(&GlobTool{})
	r.Register(&GrepTool{})
	// runtime
	r.Register(&BashTool{})
	// development
	r.Register(&GitStatusTool{})
	r.Register(&GitDiffTool{})
	r.Register(&GitCommitTool{})
	r.Register(&GitPushTool{})
	r.Register(&TodoWriteTool{})
	r.Register(&TodoReadTool{})
	// web
	r.Register(&WebFetchTool{})
	if cfg.Web != nil {
		r.Register(NewWebSearchTool(cfg.Web.SearchProvider, cfg.Web.SearchAPIKey))
	} else {
		r.Register(NewWebSearchTool("", ""))
	}
	// messaging
	r.Register(&SendMessageTool{Outbox: outbox})
	r.Register(&ReadMessagesTool{Outbox: outbox})
	// system
	r.Register(&SessionStatusTool{Status: cfg.SessionStatus})
	return r
}

package mcp

import (
	"context"
	"strings"
	"testing"
)

func testManager() *Manager {
	return NewManager(&MCPConfig{
		MCPServers: map[string]ServerConfig{
			"github": {Command: "npx", Args: []string{"-y", "@modelcontextprotocol/server-github"}},
			"api":    {URL: "http://localhost:8080"},
		},
	})
}

func TestNewManager(t *testing.T) {
	m := testManager()
	if len(m.servers) != 2 {
		t.Fatalf("len(servers) = %d, want 2", len(m.servers))
	}
	if m.servers["github"] == nil || m.servers["api"] == nil {
		t.Fatal("expected both configured servers")
	}
}

func TestManagerStatus_Disconnected(t *testing.T) {
	m := testManager()
	status := m.Status()
	if status["github"] != "disconnected" {
		t.Errorf("status = %q, want %q", status["github"], "disconnected")
	}
}

func TestCallTool_UnknownServer(t *testing.T) {
	m := testManager()
	_, _, err := m.CallTool(context.Background(), "nope", "read_file", nil)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected 'not found' error, got %v", err)
	}
}

func TestAllTools_EmptyWhenDisconnected(t *testing.T) {
	m := testManager()
	if tools := m.AllTools(); len(tools) != 0 {
		t.Errorf("expected no tools before connecting, got %v", tools)
	}
}

func TestBuildTransport_Validation(t *testing.T) {
	cases := []struct {
		name    string
		cfg     ServerConfig
		wantErr string
	}{
		{"stdio without command", ServerConfig{Type: ServerTypeStdio}, "requires 'command'"},
		{"http without url", ServerConfig{Type: ServerTypeHTTP}, "requires 'url'"},
		{"unknown type", ServerConfig{Type: "carrier-pigeon"}, "unknown transport"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := buildTransport(tc.cfg)
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("buildTransport(%+v) err = %v, want containing %q", tc.cfg, err, tc.wantErr)
			}
		})
	}
}

func TestBuildTransport_Stdio(t *testing.T) {
	tr, err := buildTransport(ServerConfig{Command: "echo", Args: []string{"hi"}})
	if err != nil {
		t.Fatal(err)
	}
	if tr == nil {
		t.Fatal("expected transport")
	}
}

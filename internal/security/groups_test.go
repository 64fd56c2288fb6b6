package security

import "testing"

func TestClassifyTool(t *testing.T) {
	tests := []struct {
		name string
		tool string
		want ToolGroup
	}{
		{"bash is runtime", "bash", GroupRuntime},
		{"read_file is filesystem", "read_file", GroupFilesystem},
		{"glob is filesystem", "glob", GroupFilesystem},
		{"web_fetch is web", "web_fetch", GroupWeb},
		{"web_search is web", "web_search", GroupWeb},
		{"send_message is messaging", "send_message", GroupMessaging},
		{"session_status is system", "session_status", GroupSystem},
		{"git_status is development", "git_status", GroupDevelopment},
		{"todo_write is development", "todo_write", GroupDevelopment},

		// Family root fallback: unknown derived names inherit the root's group.
		{"browser_click inherits browser", "browser_click", GroupWeb},
		{"git_stash inherits git", "git_stash", GroupDevelopment},
		{"file_stat inherits file", "file_stat", GroupFilesystem},
		{"slack_post inherits slack", "slack_post", GroupMessaging},

		// MCP tools are always custom.
		{"mcp tool", "mcp__filesystem__read_file", GroupCustom},
		{"mcp tool with git-ish name", "mcp__github__git_status", GroupCustom},

		// Unknowns are custom.
		{"unknown tool", "teleport", GroupCustom},
		{"unknown with underscore", "quantum_flux", GroupCustom},
		{"empty name", "", GroupCustom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyTool(tt.tool); got != tt.want {
				t.Errorf("ClassifyTool(%q) = %s, want %s", tt.tool, got, tt.want)
			}
		})
	}
}

func TestProfileAllowsGroup(t *testing.T) {
	tests := []struct {
		profile Profile
		group   ToolGroup
		want    bool
	}{
		{ProfileMinimal, GroupSystem, true},
		{ProfileMinimal, GroupFilesystem, false},
		{ProfileMinimal, GroupRuntime, false},

		{ProfileCoding, GroupFilesystem, true},
		{ProfileCoding, GroupRuntime, true},
		{ProfileCoding, GroupDevelopment, true},
		{ProfileCoding, GroupWeb, true},
		{ProfileCoding, GroupSystem, true},
		{ProfileCoding, GroupMessaging, false},
		{ProfileCoding, GroupCustom, false},

		{ProfileMessaging, GroupMessaging, true},
		{ProfileMessaging, GroupSystem, true},
		{ProfileMessaging, GroupRuntime, false},
		{ProfileMessaging, GroupFilesystem, false},

		{ProfileFull, GroupRuntime, true},
		{ProfileFull, GroupMessaging, true},
		{ProfileFull, GroupCustom, true},

		// Custom defers entirely to the lists; at the group layer it
		// allows everything.
		{ProfileCustom, GroupRuntime, true},
		{ProfileCustom, GroupMessaging, true},
		{ProfileCustom, GroupCustom, true},
	}

	for _, tt := range tests {
		if got := tt.profile.allowsGroup(tt.group); got != tt.want {
			t.Errorf("%s.allowsGroup(%s) = %v, want %v", tt.profile, tt.group, got, tt.want)
		}
	}
}

package security

import "strings"

// ToolGroup is the functional category a tool belongs to. Profiles enable
// and disable whole groups at once.
type ToolGroup string

const (
	GroupRuntime     ToolGroup = "runtime"     // shell / process execution
	GroupFilesystem  ToolGroup = "filesystem"  // file read/write/search
	GroupWeb         ToolGroup = "web"         // fetch, search, browser
	GroupMessaging   ToolGroup = "messaging"   // outbound/inbound messages
	GroupSystem      ToolGroup = "system"      // session and host introspection
	GroupDevelopment ToolGroup = "development" // git, todo, build helpers
	GroupCustom      ToolGroup = "custom"      // MCP and other external tools
)

// toolGroups maps known tool names (and family roots) to their group.
// Family roots let derived names classify without their own entry:
// "browser_click" falls back to the "browser" root.
var toolGroups = map[string]ToolGroup{
	// runtime
	"bash":    GroupRuntime,
	"shell":   GroupRuntime,
	"exec":    GroupRuntime,
	"command": GroupRuntime,
	"process": GroupRuntime,

	// filesystem
	"read_file":  GroupFilesystem,
	"write_file": GroupFilesystem,
	"edit_file":  GroupFilesystem,
	"list_dir":   GroupFilesystem,
	"glob":       GroupFilesystem,
	"grep":       GroupFilesystem,
	"file":       GroupFilesystem,
	"fs":         GroupFilesystem,
	"dir":        GroupFilesystem,

	// web
	"web_fetch":  GroupWeb,
	"web_search": GroupWeb,
	"web":        GroupWeb,
	"browser":    GroupWeb,
	"fetch":      GroupWeb,
	"http":       GroupWeb,

	// messaging
	"send_message":  GroupMessaging,
	"read_messages": GroupMessaging,
	"message":       GroupMessaging,
	"slack":         GroupMessaging,
	"discord":       GroupMessaging,
	"telegram":      GroupMessaging,
	"email":         GroupMessaging,

	// system
	"session_status": GroupSystem,
	"system_info":    GroupSystem,
	"session":        GroupSystem,
	"system":         GroupSystem,

	// development
	"git_status":  GroupDevelopment,
	"git_diff":    GroupDevelopment,
	"git_commit":  GroupDevelopment,
	"git_push":    GroupDevelopment,
	"todo_read":   GroupDevelopment,
	"todo_write":  GroupDevelopment,
	"git":         GroupDevelopment,
	"todo":        GroupDevelopment,
	"task":        GroupDevelopment,
	"test":        GroupDevelopment,
	"build":       GroupDevelopment,
}

// ClassifyTool returns the group a tool name belongs to.
//
// Lookup order: exact table match, then the family root before the first
// underscore (so "browser_click" classifies as "browser" does). MCP tools
// ("mcp__server__tool") and anything else unknown classify as custom.
func ClassifyTool(name string) ToolGroup {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, "mcp__") {
		return GroupCustom
	}
	if g, ok := toolGroups[name]; ok {
		return g
	}
	if idx := strings.Index(name, "_"); idx > 0 {
		if g, ok := toolGroups[name[:idx]]; ok {
			return g
		}
	}
	return GroupCustom
}

package security

// Profile names a preset of enabled tool groups.
type Profile string

const (
	ProfileMinimal   Profile = "minimal"   // system introspection only
	ProfileCoding    Profile = "coding"    // filesystem, runtime, development, web, system
	ProfileMessaging Profile = "messaging" // messaging and system only
	ProfileFull      Profile = "full"      // every group
	ProfileCustom    Profile = "custom"    // no group defaults; lists decide everything
)

// DefaultProfile is used when the configured profile is empty or unknown.
const DefaultProfile = ProfileCoding

// profileGroups lists the groups each profile enables. ProfileCustom has
// no entry on purpose: it skips the group check entirely.
var profileGroups = map[Profile]map[ToolGroup]bool{
	ProfileMinimal: {
		GroupSystem: true,
	},
	ProfileCoding: {
		GroupFilesystem:  true,
		GroupRuntime:     true,
		GroupDevelopment: true,
		GroupWeb:         true,
		GroupSystem:      true,
	},
	ProfileMessaging: {
		GroupMessaging: true,
		GroupSystem:    true,
	},
	ProfileFull: {
		GroupRuntime:     true,
		GroupFilesystem:  true,
		GroupWeb:         true,
		GroupMessaging:   true,
		GroupSystem:      true,
		GroupDevelopment: true,
		GroupCustom:      true,
	},
}

// normalizeProfile maps a configured profile string to a known Profile,
// falling back to DefaultProfile for empty or unrecognized values.
func normalizeProfile(s string) Profile {
	switch Profile(s) {
	case ProfileMinimal, ProfileCoding, ProfileMessaging, ProfileFull, ProfileCustom:
		return Profile(s)
	default:
		return DefaultProfile
	}
}

// allowsGroup reports whether the profile enables the given group.
// ProfileCustom allows everything at this layer; its restrictions come
// from the allow/block lists alone.
func (p Profile) allowsGroup(g ToolGroup) bool {
	if p == ProfileCustom {
		return true
	}
	groups, ok := profileGroups[p]
	if !ok {
		groups = profileGroups[DefaultProfile]
	}
	return groups[g]
}

package security

import "strings"

// IsCommandAllowed decides whether a shell command may run under this
// policy. The command is judged as a whole and again per segment, so a
// dangerous command cannot ride along behind a harmless one
// ("git status && rm -rf /").
//
// Evaluation order:
//  1. obfuscation on the raw command — denies under every tier,
//  2. blocklist substring on the raw command,
//  3. segmentation — a parse error denies (fail closed),
//  4. per segment: blocklist substring, then obfuscation,
//  5. tier: allowlist-only additionally requires every segment to match
//     an allowlist entry exactly or as an "entry ..." prefix.
//
// The check never panics; malformed input produces a denial with a reason.
func (p *Policy) IsCommandAllowed(cmd string) Verdict {
	raw := strings.TrimSpace(cmd)
	if raw == "" {
		return allow("")
	}

	if reason := obfuscationReason(raw); reason != "" {
		return deny("%s", reason)
	}
	if entry := p.blockedCommandEntry(raw); entry != "" {
		return deny("command is blocked (matches %q)", entry)
	}

	segments, err := SplitCommand(raw)
	if err != nil {
		return deny("command could not be parsed: %v", err)
	}

	for _, seg := range segments {
		if entry := p.blockedCommandEntry(seg); entry != "" {
			return deny("command is blocked (segment %q matches %q)", seg, entry)
		}
		if reason := obfuscationReason(seg); reason != "" {
			return deny("%s (segment %q)", reason, seg)
		}
	}

	if p.Tier == TierAllowlistOnly {
		for _, seg := range segments {
			if !p.commandAllowlisted(seg) {
				return deny("command not in allowlist (segment %q)", seg)
			}
		}
		return allow("all segments in allowlist")
	}

	return allow("")
}

// CommandAllowlisted reports whether every segment of cmd matches the
// command allowlist. TierAllowlistOnly enforces this inside
// IsCommandAllowed already; the other tiers use it to let allowlisted
// commands skip interactive confirmation.
func (p *Policy) CommandAllowlisted(cmd string) bool {
	segments, err := SplitCommand(strings.TrimSpace(cmd))
	if err != nil || len(segments) == 0 {
		return false
	}
	for _, seg := range segments {
		if !p.commandAllowlisted(seg) {
			return false
		}
	}
	return true
}

// blockedCommandEntry returns the first blocklist entry appearing as a
// substring of s, or "". Substring matching is deliberately loose: an
// entry like "mkfs" also catches "mkfs.ext4".
func (p *Policy) blockedCommandEntry(s string) string {
	for _, entry := range p.BlockedCommands {
		if strings.Contains(s, entry) {
			return entry
		}
	}
	return ""
}

// commandAllowlisted reports whether a segment matches an allowlist entry
// exactly or extends it at a word boundary: entry "git status" matches
// "git status" and "git status -sb" but not "git statusx".
func (p *Policy) commandAllowlisted(seg string) bool {
	for _, entry := range p.AllowedCommands {
		if seg == entry || strings.HasPrefix(seg, entry+" ") {
			return true
		}
	}
	return false
}

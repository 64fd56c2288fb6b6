package security

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// LooksObfuscated reports whether a command matches a known pattern for
// hiding what it really executes: piping encoded payloads into a decoder,
// fetch-and-execute chains, or reverse shells. Callers run it on the raw
// command line and again on every segment.
//
// This is best-effort pattern matching over a normalized string, not a
// shell interpreter. The catalogue errs toward flagging: a decoder in a
// pipeline is treated as obfuscation regardless of what consumes it.
func LooksObfuscated(cmd string) bool {
	return obfuscationReason(cmd) != ""
}

// obfuscationReason returns a human-readable reason when the command
// matches the catalogue, or "" when it looks clean.
func obfuscationReason(cmd string) string {
	s := normalizeCommand(cmd)
	if s == "" {
		return ""
	}

	// Reverse shells.
	if strings.Contains(s, "/dev/tcp/") || strings.Contains(s, "/dev/udp/") {
		return "possible reverse shell (network device redirection)"
	}
	if hasNetcatExec(s) {
		return "possible reverse shell (netcat with exec flag)"
	}
	if hasInteractiveShellRedirect(s) {
		return "possible reverse shell (interactive shell with redirected descriptors)"
	}
	if containsWord(s, "socat") && strings.Contains(s, "exec:") {
		return "possible reverse shell (socat exec address)"
	}
	if containsWord(s, "mkfifo") && hasNetcatWord(s) {
		return "possible reverse shell (fifo relay into netcat)"
	}
	if hasScriptedSocket(s) {
		return "possible reverse shell (interpreter one-liner opening a socket)"
	}

	// Fetch-and-execute.
	if (containsWord(s, "curl") || containsWord(s, "wget")) &&
		(pipesToInterpreter(s) || containsWord(s, "eval") || hasSubstitution(s)) {
		return "fetch-and-execute pattern (downloaded content routed into execution)"
	}

	// Decode pipelines.
	if hasDecoder(s) && (strings.Contains(s, "|") || hasSubstitution(s)) {
		return "decode pipeline (encoded payload routed through a decoder)"
	}

	return ""
}

// normalizeCommand applies NFKC normalization (so full-width or otherwise
// disguised characters match their ASCII forms), lowercases, and collapses
// runs of whitespace to single spaces.
func normalizeCommand(cmd string) string {
	s := norm.NFKC.String(cmd)
	s = strings.ToLower(s)
	return strings.Join(strings.Fields(s), " ")
}

// decoderInvocations are flag spellings that turn an encoder into a
// decoder. Matched as substrings of the normalized command.
var decoderInvocations = []string{
	"base64 -d",
	"base64 --decode",
	"base32 -d",
	"base32 --decode",
	"xxd -r",
	"openssl enc -d",
	"openssl base64 -d",
}

func hasDecoder(s string) bool {
	for _, d := range decoderInvocations {
		if strings.Contains(s, d) {
			return true
		}
	}
	return false
}

// hasSubstitution reports command or process substitution anywhere in the
// normalized command.
func hasSubstitution(s string) bool {
	return strings.Contains(s, "$(") || strings.Contains(s, "`") ||
		strings.Contains(s, "<(") || strings.Contains(s, ">(")
}

// shellInterpreters are programs that execute what is piped into them.
var shellInterpreters = map[string]bool{
	"sh": true, "bash": true, "zsh": true, "dash": true, "ksh": true, "fish": true,
	"python": true, "python2": true, "python3": true,
	"perl": true, "ruby": true, "node": true, "php": true,
}

// pipesToInterpreter reports whether any pipe feeds into a shell or
// scripting interpreter. Skips sudo/env prefixes and VAR=val assignments
// when finding the command word after the pipe.
func pipesToInterpreter(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] != '|' {
			continue
		}
		// Skip || (logical or, not a pipe).
		if i+1 < len(s) && s[i+1] == '|' {
			i++
			continue
		}
		if i > 0 && s[i-1] == '|' {
			continue
		}
		for _, f := range strings.Fields(s[i+1:]) {
			b := baseToken(f)
			if b == "sudo" || b == "env" || strings.Contains(f, "=") {
				continue
			}
			if shellInterpreters[b] {
				return true
			}
			break
		}
	}
	return false
}

func hasNetcatWord(s string) bool {
	return containsWord(s, "nc") || containsWord(s, "ncat") || containsWord(s, "netcat")
}

// hasNetcatExec reports nc/ncat/netcat invoked with an exec flag
// (-e, -c, --exec, or those letters folded into a combined short flag).
func hasNetcatExec(s string) bool {
	sawNetcat := false
	for _, f := range strings.Fields(s) {
		flag := strings.Trim(f, `"'`)
		b := baseToken(f)
		if b == "nc" || b == "ncat" || b == "netcat" {
			sawNetcat = true
			continue
		}
		if !sawNetcat {
			continue
		}
		if flag == "--exec" || strings.HasPrefix(flag, "--exec=") {
			return true
		}
		if strings.HasPrefix(flag, "-") && !strings.HasPrefix(flag, "--") && strings.ContainsAny(flag[1:], "ce") {
			return true
		}
	}
	return false
}

// hasInteractiveShellRedirect reports an interactive shell (sh/bash/... -i)
// combined with descriptor redirection, the classic bash reverse shell
// shape even when no /dev/tcp path appears.
func hasInteractiveShellRedirect(s string) bool {
	if !strings.Contains(s, ">&") && !strings.Contains(s, "<&") {
		return false
	}
	fields := strings.Fields(s)
	for i, f := range fields {
		b := baseToken(f)
		switch b {
		case "sh", "bash", "zsh", "dash", "ksh":
			if i+1 < len(fields) && fields[i+1] == "-i" {
				return true
			}
		}
	}
	return false
}

// hasScriptedSocket reports an interpreter running inline code (-c/-e)
// that mentions sockets.
func hasScriptedSocket(s string) bool {
	if !strings.Contains(s, "socket") {
		return false
	}
	if !containsWord(s, "-c") && !containsWord(s, "-e") {
		return false
	}
	for _, w := range []string{"python", "python2", "python3", "perl", "ruby", "php", "node"} {
		if containsWord(s, w) {
			return true
		}
	}
	return false
}

// containsWord reports whether any whitespace-separated token, with path
// prefix and surrounding quotes stripped, equals word.
func containsWord(s, word string) bool {
	for _, f := range strings.Fields(s) {
		if baseToken(f) == word {
			return true
		}
	}
	return false
}

// baseToken strips surrounding quotes, substitution punctuation, and any
// path prefix from a token: "/bin/bash", `"$(curl` and `bash)` all reduce
// to their bare command word.
func baseToken(t string) string {
	t = strings.Trim(t, `"'`)
	t = strings.TrimLeft(t, "$(`")
	t = strings.TrimRight(t, ")`;")
	t = strings.Trim(t, `"'`)
	if i := strings.LastIndexByte(t, '/'); i >= 0 {
		t = t[i+1:]
	}
	return t
}

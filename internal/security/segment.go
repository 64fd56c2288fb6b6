package security

import (
	"fmt"
	"strings"
)

// SplitCommand splits a shell command line into the simple commands it
// chains together: segments are cut at &&, ||, ;, | and backgrounding &
// when those appear outside quotes and outside command substitution.
//
// The body of each $(...) and `...` substitution is recursively split and
// its segments appended after the top-level ones; the enclosing segment
// keeps the substitution text verbatim. Segments are trimmed and empties
// dropped.
//
// An unbalanced quote or unterminated substitution returns an error;
// callers treat that as a denial.
func SplitCommand(raw string) ([]string, error) {
	return splitSegments(raw)
}

func splitSegments(s string) ([]string, error) {
	var (
		out      []string
		nested   []string
		cur      strings.Builder
		inSingle bool
		inDouble bool
	)

	flush := func() {
		seg := strings.TrimSpace(cur.String())
		if seg != "" {
			out = append(out, seg)
		}
		cur.Reset()
	}

	n := len(s)
	for i := 0; i < n; i++ {
		c := s[i]

		if inSingle {
			cur.WriteByte(c)
			if c == '\'' {
				inSingle = false
			}
			continue
		}

		// Backslash escapes the next byte outside single quotes, so an
		// escaped operator never splits.
		if c == '\\' {
			cur.WriteByte(c)
			if i+1 < n {
				i++
				cur.WriteByte(s[i])
			}
			continue
		}

		if c == '\'' && !inDouble {
			inSingle = true
			cur.WriteByte(c)
			continue
		}

		if c == '"' {
			inDouble = !inDouble
			cur.WriteByte(c)
			continue
		}

		// Substitution opens even inside double quotes.
		if c == '$' && i+1 < n && s[i+1] == '(' {
			end, ok := findSubstitutionEnd(s, i+2)
			if !ok {
				return nil, fmt.Errorf("unterminated command substitution at offset %d", i)
			}
			inner, err := splitSegments(s[i+2 : end])
			if err != nil {
				return nil, err
			}
			nested = append(nested, inner...)
			cur.WriteString(s[i : end+1])
			i = end
			continue
		}

		if c == '`' {
			end := indexUnescaped(s, i+1, '`')
			if end < 0 {
				return nil, fmt.Errorf("unterminated backtick substitution at offset %d", i)
			}
			inner, err := splitSegments(s[i+1 : end])
			if err != nil {
				return nil, err
			}
			nested = append(nested, inner...)
			cur.WriteString(s[i : end+1])
			i = end
			continue
		}

		if inDouble {
			cur.WriteByte(c)
			continue
		}

		switch {
		case c == '&' && i+1 < n && s[i+1] == '&':
			flush()
			i++
		case c == '|' && i+1 < n && s[i+1] == '|':
			flush()
			i++
		case c == ';':
			flush()
		case c == '|':
			flush()
		case c == '&':
			// A lone & backgrounds the command; >& and &> are redirects.
			if (i > 0 && s[i-1] == '>') || (i+1 < n && s[i+1] == '>') {
				cur.WriteByte(c)
			} else {
				flush()
			}
		default:
			cur.WriteByte(c)
		}
	}

	if inSingle || inDouble {
		return nil, fmt.Errorf("unbalanced quote in command")
	}
	flush()

	return append(out, nested...), nil
}

// findSubstitutionEnd scans for the ) closing a $( opened just before
// start, honoring nesting and quotes inside the substitution body.
// Returns the index of the closing paren.
func findSubstitutionEnd(s string, start int) (int, bool) {
	depth := 1
	inSingle := false
	inDouble := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inSingle {
			if c == '\'' {
				inSingle = false
			}
			continue
		}
		switch c {
		case '\\':
			i++
		case '\'':
			if !inDouble {
				inSingle = true
			}
		case '"':
			inDouble = !inDouble
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// indexUnescaped returns the index of the first unescaped occurrence of c
// at or after start, or -1.
func indexUnescaped(s string, start int, c byte) int {
	for i := start; i < len(s); i++ {
		if s[i] == '\\' {
			i++
			continue
		}
		if s[i] == c {
			return i
		}
	}
	return -1
}

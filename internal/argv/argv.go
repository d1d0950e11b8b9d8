// Package argv tokenizes raw command strings and resolves canonical base
// command names. Tokenization is platform-aware: POSIX word splitting is
// delegated to the mvdan.cc/sh shell parser, Windows splitting follows the
// MSVCRT argument rules. Shell syntax beyond plain quoted words (expansions,
// substitutions, redirections) is rejected — the engine is not a shell.
package argv

import (
	"errors"
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// ErrParse signals malformed or unterminated quoting, or shell syntax the
// engine refuses to interpret. The executor maps it to a blocked result.
var ErrParse = errors.New("command parse error")

// ErrEmpty signals an empty command string or empty base token.
var ErrEmpty = errors.New("empty command")

// Executable suffixes stripped (case-insensitively) during base resolution.
var execSuffixes = []string{".exe", ".cmd", ".bat", ".com", ".ps1"}

// Split tokenizes a raw command string under the given platform's quoting
// rules.
func Split(raw string, windows bool) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmpty
	}
	if windows {
		return splitWindows(raw)
	}
	return splitPosix(raw)
}

// splitPosix parses the string as a sequence of shell words. Any word
// containing an expansion, substitution or other non-literal construct is a
// parse error: those are shell features, not arguments.
func splitPosix(raw string) ([]string, error) {
	parser := syntax.NewParser()

	var tokens []string
	var flattenErr error
	err := parser.Words(strings.NewReader(raw), func(w *syntax.Word) bool {
		tok, err := flattenWord(w)
		if err != nil {
			flattenErr = err
			return false
		}
		tokens = append(tokens, tok)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if flattenErr != nil {
		return nil, flattenErr
	}
	if len(tokens) == 0 {
		return nil, ErrEmpty
	}
	return tokens, nil
}

// flattenWord reduces a parsed shell word to its literal string value.
func flattenWord(w *syntax.Word) (string, error) {
	var sb strings.Builder
	for _, part := range w.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			sb.WriteString(unescapeUnquoted(p.Value))
		case *syntax.SglQuoted:
			if p.Dollar {
				return "", fmt.Errorf("%w: ANSI-C quoting not supported", ErrParse)
			}
			sb.WriteString(p.Value)
		case *syntax.DblQuoted:
			for _, inner := range p.Parts {
				lit, ok := inner.(*syntax.Lit)
				if !ok {
					return "", fmt.Errorf("%w: expansions inside double quotes not supported", ErrParse)
				}
				sb.WriteString(unescapeDoubleQuoted(lit.Value))
			}
		default:
			return "", fmt.Errorf("%w: shell expansion or substitution not supported", ErrParse)
		}
	}
	return sb.String(), nil
}

// unescapeUnquoted removes backslash escapes from an unquoted literal:
// a backslash makes the following character literal.
func unescapeUnquoted(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			if s[i] == '\n' {
				continue // line continuation
			}
			sb.WriteByte(s[i])
			continue
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

// unescapeDoubleQuoted removes the escapes POSIX honors inside double
// quotes ($, `, ", \, newline); other backslashes stay literal.
func unescapeDoubleQuoted(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case '$', '`', '"', '\\':
				i++
				sb.WriteByte(s[i])
				continue
			case '\n':
				i++
				continue
			}
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

// splitWindows tokenizes using the MSVCRT rules: 2n backslashes before a
// quote collapse to n backslashes and the quote toggles quoting; 2n+1
// backslashes yield n backslashes and a literal quote; backslashes not
// followed by a quote are literal; "" inside a quoted span is a literal
// quote. Unterminated quoting is an error rather than silently tolerated.
func splitWindows(raw string) ([]string, error) {
	var tokens []string
	var current strings.Builder
	inQuotes := false
	inToken := false

	i := 0
	for i < len(raw) {
		c := raw[i]
		switch {
		case c == '\\':
			// Count the run of backslashes to decide how they interact
			// with a following quote.
			n := 0
			for i < len(raw) && raw[i] == '\\' {
				n++
				i++
			}
			if i < len(raw) && raw[i] == '"' {
				current.WriteString(strings.Repeat(`\`, n/2))
				if n%2 == 1 {
					current.WriteByte('"')
					i++
				}
			} else {
				current.WriteString(strings.Repeat(`\`, n))
			}
			inToken = true
		case c == '"':
			if inQuotes && i+1 < len(raw) && raw[i+1] == '"' {
				current.WriteByte('"')
				i += 2
				continue
			}
			inQuotes = !inQuotes
			inToken = true
			i++
		case c == ' ' || c == '\t':
			if inQuotes {
				current.WriteByte(c)
			} else if inToken {
				tokens = append(tokens, current.String())
				current.Reset()
				inToken = false
			}
			i++
		default:
			current.WriteByte(c)
			inToken = true
			i++
		}
	}

	if inQuotes {
		return nil, fmt.Errorf("%w: unterminated quote", ErrParse)
	}
	if inToken {
		tokens = append(tokens, current.String())
	}
	if len(tokens) == 0 {
		return nil, ErrEmpty
	}
	return tokens, nil
}

// CanonicalBase derives the canonical command name from a first token:
// directory prefix dropped, one known executable suffix stripped
// case-insensitively, and the whole name lowercased.
func CanonicalBase(token string) string {
	name := token
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	lower := strings.ToLower(name)
	for _, suffix := range execSuffixes {
		if strings.HasSuffix(lower, suffix) && len(lower) > len(suffix) {
			lower = lower[:len(lower)-len(suffix)]
			break
		}
	}
	return lower
}

// ResolveBase canonicalizes the argv head and collapses "interpreter -m
// module" invocations to the module's own identity when governs reports a
// policy for that module. The returned slice always has the canonical base
// at index 0.
func ResolveBase(tokens []string, governs func(string) bool) ([]string, error) {
	if len(tokens) == 0 {
		return nil, ErrEmpty
	}
	base := CanonicalBase(tokens[0])
	if base == "" {
		return nil, ErrEmpty
	}

	// "python -m pytest ..." is exactly a pytest invocation when pytest is
	// itself governed. The interpreter disappears from the picture.
	if len(tokens) >= 3 && tokens[1] == "-m" {
		module := strings.ToLower(tokens[2])
		if module != "" && governs(module) {
			resolved := append([]string{module}, tokens[3:]...)
			return resolved, nil
		}
	}

	resolved := append([]string{base}, tokens[1:]...)
	return resolved, nil
}

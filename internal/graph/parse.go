package graph

import (
	"regexp"
	"strings"
)

// importRuleRe matches an @import, @use or @forward rule up to the end of the
// statement.
var importRuleRe = regexp.MustCompile(`@(import|use|forward)\s+([^;{}]+)`)

// indentedRuleRe is importRuleRe for the indented syntax, where statements end
// at the newline.
var indentedRuleRe = regexp.MustCompile(`@(import|use|forward)[ \t]+([^;\n{}]+)`)

// plainCSSPrefixes mark imports that Sass passes through untouched.
var plainCSSPrefixes = []string{"http://", "https://", "//", "url(", "sass:"}

// Imports returns the import targets referenced by src, in source order.
// indented selects the .sass syntax, which allows unquoted @import targets.
func Imports(src string, indented bool) []string {
	re := importRuleRe
	if indented {
		re = indentedRuleRe
	}
	var targets []string
	for _, m := range re.FindAllStringSubmatch(stripComments(src), -1) {
		rule, args := m[1], strings.TrimSpace(m[2])
		if rule == "import" {
			for _, arg := range splitArgs(args) {
				if t, ok := importTarget(arg, indented); ok {
					targets = append(targets, t)
				}
			}
			continue
		}
		// @use and @forward take a single URL followed by optional clauses.
		if t, ok := quoted(args); ok && !isPlainCSS(t) {
			targets = append(targets, t)
		}
	}
	return targets
}

func importTarget(arg string, indented bool) (string, bool) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", false
	}
	t, ok := quoted(arg)
	if !ok {
		if !indented || strings.ContainsAny(arg, " \t(") {
			return "", false
		}
		t = arg
	} else if rest := strings.TrimSpace(arg[len(t)+2:]); rest != "" {
		// A media query turns the import into a plain CSS import.
		return "", false
	}
	if isPlainCSS(t) {
		return "", false
	}
	return t, true
}

// quoted returns the contents of the leading quoted string in s.
func quoted(s string) (string, bool) {
	if len(s) < 2 || (s[0] != '"' && s[0] != '\'') {
		return "", false
	}
	end := strings.IndexByte(s[1:], s[0])
	if end < 0 {
		return "", false
	}
	return s[1 : end+1], true
}

func isPlainCSS(target string) bool {
	for _, prefix := range plainCSSPrefixes {
		if strings.HasPrefix(target, prefix) {
			return true
		}
	}
	return false
}

// splitArgs splits a comma-separated @import argument list, ignoring commas
// inside quotes and parentheses.
func splitArgs(s string) []string {
	var (
		args  []string
		quote byte
		depth int
		start int
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			if depth > 0 {
				depth--
			}
		case c == ',' && depth == 0:
			args = append(args, s[start:i])
			start = i + 1
		}
	}
	return append(args, s[start:])
}

// stripComments removes // and /* */ comments outside of string literals.
// Newlines are kept so statement boundaries in indented syntax survive.
func stripComments(src string) string {
	var (
		b     strings.Builder
		quote byte
	)
	b.Grow(len(src))
	for i := 0; i < len(src); i++ {
		c := src[i]
		if quote != 0 {
			b.WriteByte(c)
			if c == '\\' && i+1 < len(src) {
				i++
				b.WriteByte(src[i])
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch {
		case c == '"' || c == '\'':
			quote = c
			b.WriteByte(c)
		case c == '/' && i+1 < len(src) && src[i+1] == '/' && !afterURLScheme(src, i):
			for i < len(src) && src[i] != '\n' {
				i++
			}
			if i < len(src) {
				b.WriteByte('\n')
			}
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				return b.String()
			}
			b.WriteString(strings.Repeat("\n", strings.Count(src[i:i+2+end+2], "\n")))
			i += 2 + end + 1
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// afterURLScheme reports whether the "//" at i belongs to an unquoted url(...).
func afterURLScheme(src string, i int) bool {
	return i > 0 && src[i-1] == ':' && strings.LastIndex(src[:i], "url(") > strings.LastIndex(src[:i], ")")
}

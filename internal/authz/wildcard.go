package authz

import "strings"

// LookupPolicy selects which wildcard dialect governs a resource match.
type LookupPolicy int

const (
	// Standard: '*' matches any substring, including across separators.
	// '${c}' escapes the literal character c for c in {*, $, ?}.
	Standard LookupPolicy = iota
	// MQTTStyle: '+' matches exactly one level (no '/'); '#' matches one
	// or more levels when at the end; '*' matches any substring within a
	// single level and does not match across '/'.
	MQTTStyle
)

// matchStandard implements the Standard wildcard dialect over pattern and
// resource, both raw (unescaped) strings.
func matchStandard(pattern, resource string) bool {
	tokens := tokenizeStandard(pattern)
	return matchTokens(tokens, resource)
}

// tokenizeStandard splits pattern into literal-or-star tokens, resolving
// ${c} escapes into literal characters.
func tokenizeStandard(pattern string) []string {
	var tokens []string
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			tokens = append(tokens, lit.String())
			lit.Reset()
		}
	}
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case c == '*':
			flush()
			tokens = append(tokens, "*")
		case c == '$' && i+3 < len(runes) && runes[i+1] == '{' && runes[i+3] == '}':
			esc := runes[i+2]
			if esc == '*' || esc == '$' || esc == '?' {
				lit.WriteRune(esc)
				i += 3
				continue
			}
			lit.WriteRune(c)
		default:
			lit.WriteRune(c)
		}
	}
	flush()
	return tokens
}

// matchTokens matches a sequence of literal/"*" tokens against s using a
// classic greedy-with-backtracking glob match.
func matchTokens(tokens []string, s string) bool {
	return globMatch(tokens, 0, s)
}

func globMatch(tokens []string, ti int, s string) bool {
	for ti < len(tokens) {
		tok := tokens[ti]
		if tok == "*" {
			// '*' may match zero or more of the remaining string; try
			// every split point.
			for i := 0; i <= len(s); i++ {
				if globMatch(tokens, ti+1, s[i:]) {
					return true
				}
			}
			return false
		}
		if !strings.HasPrefix(s, tok) {
			return false
		}
		s = s[len(tok):]
		ti++
	}
	return s == ""
}

// matchMQTT implements the MQTT-style dialect: '+' matches one level (no
// '/'), '#' matches one or more trailing levels, '*' matches any substring
// within the one level it appears in (never across '/').
func matchMQTT(pattern, resource string) bool {
	patternLevels := strings.Split(pattern, "/")
	resourceLevels := strings.Split(resource, "/")

	for i, p := range patternLevels {
		if p == "#" {
			// '#' must be the final pattern level and matches one or
			// more remaining levels.
			return i < len(resourceLevels)
		}
		if i >= len(resourceLevels) {
			return false
		}
		if p == "+" {
			continue
		}
		if strings.Contains(p, "*") {
			if !matchStandard(p, resourceLevels[i]) {
				return false
			}
			continue
		}
		if p != resourceLevels[i] {
			return false
		}
	}
	return len(patternLevels) == len(resourceLevels)
}

// Match reports whether resource matches pattern under the given dialect.
func Match(policy LookupPolicy, pattern, resource string) bool {
	if policy == MQTTStyle {
		return matchMQTT(pattern, resource)
	}
	return matchStandard(pattern, resource)
}

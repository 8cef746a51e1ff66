package pattern

import "strings"

// MatchGL reports whether a GL account code matches a pattern. A trailing "*"
// matches any suffix; otherwise the code must match exactly.
func MatchGL(pattern, account string) bool {
	pattern = strings.TrimSpace(pattern)
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(account, prefix)
	}
	return pattern == account
}

// MatchAnyGL reports whether account matches at least one pattern.
func MatchAnyGL(patterns []string, account string) bool {
	for _, p := range patterns {
		if MatchGL(p, account) {
			return true
		}
	}
	return false
}

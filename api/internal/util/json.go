package util

import "strings"

// ExtractJSONObject returns the outermost {...} span of s, or s trimmed when
// no braces are found.
func ExtractJSONObject(s string) string {
	s = strings.TrimSpace(s)
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}

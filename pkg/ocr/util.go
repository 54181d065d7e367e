package ocr

import "strings"

// snippet returns a shortened version of text (ASCII only) for logging.
func snippet(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}

// FilterAllowed drops every rune of s that is not in allow. Whitespace is
// dropped too, so a recognizer that splits "AB 12" still yields "AB12".
// An empty allowlist keeps everything except whitespace.
func FilterAllowed(s, allow string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			return -1
		case allow == "" || strings.ContainsRune(allow, r):
			return r
		}
		return -1
	}, s)
}

// Describe renders fragments for log lines.
func Describe(frags []Fragment) string {
	parts := make([]string, 0, len(frags))
	for _, f := range frags {
		parts = append(parts, snippet(f.Text, 24))
	}
	return "[" + strings.Join(parts, " ") + "]"
}

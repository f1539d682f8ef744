package logging

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// MaxQueryLogLength is the maximum length of a rendered patch to log
	MaxQueryLogLength = 100
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
)

var (
	// Pattern to match SQL string literals, including doubled quotes inside them
	stringLiteralPattern = regexp.MustCompile(`'(?:[^']|'')*'`)

	// Pattern to match runs of whitespace, newlines included
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// SanitizeQuery prepares rendered SQL for logging.
// String literals carry user supplied values and are redacted, whitespace is
// collapsed to keep the preview on one line, and the result is truncated.
func SanitizeQuery(query string) string {
	if query == "" {
		return ""
	}

	sanitized := stringLiteralPattern.ReplaceAllString(query, "'"+RedactedText+"'")
	sanitized = strings.TrimSpace(whitespacePattern.ReplaceAllString(sanitized, " "))

	return TruncateString(sanitized, MaxQueryLogLength)
}

// TruncateString truncates a string to maxLen runes and adds ellipsis if needed
func TruncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	if maxLen <= 0 {
		return "..."
	}
	runes := []rune(s)
	return string(runes[:maxLen]) + "..."
}

package llm

import (
	"strings"
	"unicode/utf8"
)

const redacted = "[REDACTED]"

// maxErrorBody caps how much of a provider error body is kept.
const maxErrorBody = 2048

// Redact removes every occurrence of secret from s. Providers sometimes echo
// the submitted key back in error bodies.
func Redact(s, secret string) string {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, secret, redacted)
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}

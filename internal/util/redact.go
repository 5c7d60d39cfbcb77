package util

import (
	"regexp"
	"strings"
)

var (
	// Google API error strings can echo the request URL, which carries
	// the API key as a query parameter.
	urlKeyRe = regexp.MustCompile(`(?i)\b(key|access_token|refresh_token)=[^\s&"':]+`)

	// Matches "Bearer <token>"; oauth transport errors include the
	// authorization header value.
	bearerTokenRe = regexp.MustCompile(`(?i)\bBearer\s+[^\s"']+`)

	// Common key=value / key: value formats leaked by config errors.
	apiKeyKVRe = regexp.MustCompile(`(?i)\b(api[_-]?key|gemini[_-]?api[_-]?key)\b\s*[:=]\s*[^\s"']+`)
)

// RedactSecrets removes obvious secret-bearing substrings from error
// and log strings. Safe to call on any message, including upstream
// error strings from the Gmail or Gemini clients.
func RedactSecrets(s string) string {
	if s == "" {
		return ""
	}
	out := s
	out = bearerTokenRe.ReplaceAllString(out, "Bearer <redacted>")
	out = urlKeyRe.ReplaceAllString(out, "$1=<redacted>")
	out = apiKeyKVRe.ReplaceAllString(out, "<redacted_kv>")
	return strings.TrimSpace(out)
}

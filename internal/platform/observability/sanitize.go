package observability

import (
	"strings"
	"unicode"
)

const maxLoggedLen = 256

// scrub drops control characters that would allow log injection and caps the
// length of the logged value.
func scrub(value string, limit int) string {
	if limit <= 0 {
		limit = maxLoggedLen
	}

	var b strings.Builder
	b.Grow(len(value))
	count := 0
	for _, r := range value {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			continue
		}
		if count >= limit {
			break
		}
		b.WriteRune(r)
		count++
	}
	return b.String()
}

// SanitizeRoute makes a request path safe to log.
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return scrub(route, 180)
}

// SanitizeMethod makes an HTTP method safe to log.
func SanitizeMethod(method string) string {
	return scrub(method, 10)
}

// SanitizeUserID caps identifiers logged alongside requests.
func SanitizeUserID(uid string) string {
	if uid == "" {
		return ""
	}
	return scrub(uid, 64)
}

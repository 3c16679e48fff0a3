package xfeed

import "strings"

// rotatedCT0 returns the ct0 value set by a response, if any.
func rotatedCT0(headers map[string]string) string {
	cookie := headers["set-cookie"]
	if cookie == "" {
		return ""
	}
	for _, part := range strings.Split(cookie, ";") {
		name, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok && name == CookieCT0 && val != "" {
			return val
		}
	}
	return ""
}

// tokenPrefix shortens a secret for logs.
func tokenPrefix(s string) string {
	return s[:min(8, len(s))] + "..."
}

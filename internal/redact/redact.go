// Package redact strips credentials from URLs and error messages before
// they reach the scan log or reports.
package redact

import (
	"net/url"
	"regexp"
	"strings"
)

var sensitivePatterns = []*regexp.Regexp{
	// Basic auth in URLs
	regexp.MustCompile(`(https?://)[^:/@\s]+:[^@\s]+@`),

	// Credentials passed as query parameters
	regexp.MustCompile(`(?i)([?&](?:api_?key|apikey|access_token|auth_token|token|key|secret|password|passwd|sig|signature|session(?:id)?)=)[^&#\s]+`),

	// Bearer tokens
	regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9_.-]{20,}`),

	// Generic assignments that look like secrets
	regexp.MustCompile(`(?i)(password|passwd|pwd|secret)\s*[=:]\s*['"]?[^\s'"&]{8,}['"]?`),
}

const redactedPlaceholder = "[REDACTED]"

// sensitiveParams are query parameter names whose values are always hidden.
var sensitiveParams = []string{
	"api_key", "apikey", "access_token", "auth_token", "token", "key",
	"secret", "password", "passwd", "sig", "signature", "session", "sessionid",
}

// Redact hides credentials in free text such as fetch error messages.
func Redact(input string) string {
	result := input
	for i, pattern := range sensitivePatterns {
		switch i {
		case 0:
			result = pattern.ReplaceAllString(result, "${1}"+redactedPlaceholder+"@")
		case 1:
			result = pattern.ReplaceAllString(result, "${1}"+redactedPlaceholder)
		default:
			result = pattern.ReplaceAllString(result, redactedPlaceholder)
		}
	}
	return result
}

// URL hides the userinfo password and sensitive query values of rawURL.
// Unparseable input falls back to Redact.
func URL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return Redact(rawURL)
	}

	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), redactedPlaceholder)
		}
	}

	if u.RawQuery != "" {
		q := u.Query()
		changed := false
		for name := range q {
			if isSensitiveParam(name) {
				q[name] = []string{redactedPlaceholder}
				changed = true
			}
		}
		if changed {
			u.RawQuery = q.Encode()
		}
	}

	out := u.String()
	// Keep the placeholder readable; url encodes the brackets.
	out = strings.ReplaceAll(out, url.QueryEscape(redactedPlaceholder), redactedPlaceholder)
	out = strings.ReplaceAll(out, url.PathEscape(redactedPlaceholder), redactedPlaceholder)
	return out
}

// URLs applies URL to each element.
func URLs(urls []string) []string {
	result := make([]string, len(urls))
	for i, u := range urls {
		result[i] = URL(u)
	}
	return result
}

func isSensitiveParam(name string) bool {
	name = strings.ToLower(name)
	for _, s := range sensitiveParams {
		if name == s {
			return true
		}
	}
	return false
}

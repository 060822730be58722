package markdown

import "strings"

// allowedSchemes is the link scheme allowlist, matched case-insensitively as a
// prefix of the trimmed URL.
var allowedSchemes = []string{"http://", "https://", "mailto:"}

// SanitizeURL returns url when it starts with an allowed scheme and "#"
// otherwise. Relative, protocol-relative ("//host"), javascript: and data:
// URLs all become "#".
func SanitizeURL(url string) string {
	trimmed := strings.TrimSpace(url)
	lower := strings.ToLower(trimmed)

	for _, scheme := range allowedSchemes {
		if strings.HasPrefix(lower, scheme) {
			return trimmed
		}
	}

	return "#"
}

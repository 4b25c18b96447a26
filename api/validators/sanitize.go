package validators

import "strings"

// SanitizeString trims whitespace and truncates free-text fields like
// customer names and addresses to maxLen bytes. A non-positive maxLen skips
// truncation.
func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen > 0 && len(trimmed) > maxLen {
		return trimmed[:maxLen]
	}
	return trimmed
}

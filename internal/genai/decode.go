package genai

import "strings"

// StripJSONFences removes markdown code fences that models sometimes wrap
// around JSON output despite instructions, and trims whitespace. The result
// may still be invalid JSON; callers decode with their own fallback rules.
func StripJSONFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

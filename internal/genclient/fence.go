package genclient

import "strings"

// ExtractJSONBlock strips a surrounding markdown code fence, with or without
// a language tag, from generation output. Text without a fence is returned
// trimmed but otherwise untouched.
func ExtractJSONBlock(text string) string {
	stripped := strings.TrimSpace(text)
	if !strings.HasPrefix(stripped, "```") {
		return stripped
	}
	lines := strings.Split(stripped, "\n")
	lines = lines[1:] // drop the opening fence line, language tag included
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

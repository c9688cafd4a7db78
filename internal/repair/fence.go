package repair

import "strings"

// ExtractCode pulls candidate code out of a generative response. The first
// fenced code block wins, with any language tag on the opening fence
// discarded. Responses without a complete fence are returned verbatim so a
// model answering with bare code is still usable.
func ExtractCode(response string) string {
	trimmed := strings.TrimSpace(response)

	start := strings.Index(trimmed, "```")
	if start == -1 {
		return trimmed
	}

	rest := trimmed[start+3:]
	end := strings.Index(rest, "```")
	if end == -1 {
		return trimmed
	}
	block := rest[:end]

	// The opening fence may carry a language tag ("```python").
	if nl := strings.IndexByte(block, '\n'); nl != -1 {
		firstLine := strings.TrimSpace(block[:nl])
		if isLanguageTag(firstLine) {
			block = block[nl+1:]
		}
	} else if isLanguageTag(strings.TrimSpace(block)) {
		// A fence containing only a language tag holds no code.
		return ""
	}

	return strings.Trim(block, "\n")
}

// isLanguageTag reports whether s looks like a fence language marker rather
// than code: one short token with no spaces or punctuation beyond +#-.
func isLanguageTag(s string) bool {
	if s == "" {
		return true
	}
	if len(s) > 20 || strings.ContainsAny(s, " \t(){};=") {
		return false
	}
	return true
}

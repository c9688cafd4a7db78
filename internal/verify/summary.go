package verify

import (
	"regexp"
	"strings"
)

var failRe = regexp.MustCompile(`(?i)(FAIL|Error|ERROR):?\s+([A-Za-z0-9_./-]+)`)

// Summarize extracts failing test names from raw verification output and
// builds a short summary for prompts and events.
func Summarize(output string) (string, []string) {
	names := make([]string, 0, 8)
	for _, line := range strings.Split(output, "\n") {
		m := failRe.FindStringSubmatch(line)
		if len(m) >= 3 {
			names = append(names, strings.TrimSpace(m[2]))
		}
	}
	names = unique(names)

	summary := ""
	if len(names) > 0 {
		summary = "Failing tests: " + strings.Join(names, ", ")
	}
	return summary, names
}

func unique(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

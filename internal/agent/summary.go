package agent

import "strings"

// ExtractSummary condenses raw backend output into a single line for
// the task result and the agent memory log.
//
// When the agent emits an explicit "SUMMARY:" line, that wins; markdown
// emphasis around it is tolerated. Otherwise the first non-empty line
// of the output is used. Empty output condenses to an empty string.
func ExtractSummary(output string) string {
	var firstLine string
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		stripped := strings.Trim(trimmed, "*_` ")
		if rest, ok := cutPrefixFold(stripped, "SUMMARY:"); ok {
			// A closing emphasis marker may sit after the colon, as in
			// "**Summary:** text".
			if s := strings.TrimSpace(strings.TrimLeft(rest, "*_` ")); s != "" {
				return s
			}
			continue
		}
		if firstLine == "" {
			firstLine = trimmed
		}
	}
	return firstLine
}

// cutPrefixFold is strings.CutPrefix with ASCII case folding.
func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) {
		return s, false
	}
	if !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}
	return s[len(prefix):], true
}

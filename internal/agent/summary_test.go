package agent

import "testing"

func TestExtractSummary_SummaryLine(t *testing.T) {
	output := `Working on the task...

Changed three files.

SUMMARY: added login form validation
`
	got := ExtractSummary(output)
	if got != "added login form validation" {
		t.Errorf("expected summary line, got %q", got)
	}
}

func TestExtractSummary_CaseInsensitiveAndMarkdown(t *testing.T) {
	output := "**Summary:** refactored the dispatcher\n"
	got := ExtractSummary(output)
	if got != "refactored the dispatcher" {
		t.Errorf("expected markdown-wrapped summary parsed, got %q", got)
	}
}

func TestExtractSummary_EmphasisAfterColon(t *testing.T) {
	for output, want := range map[string]string{
		"__summary:__ fixed the login flow\n": "fixed the login flow",
		"*SUMMARY:* wired the cache\n":        "wired the cache",
	} {
		if got := ExtractSummary(output); got != want {
			t.Errorf("ExtractSummary(%q) = %q, want %q", output, got, want)
		}
	}
}

func TestExtractSummary_FallsBackToFirstLine(t *testing.T) {
	output := "\n\nDone with the migration.\nMore details here.\n"
	got := ExtractSummary(output)
	if got != "Done with the migration." {
		t.Errorf("expected first non-empty line, got %q", got)
	}
}

func TestExtractSummary_Empty(t *testing.T) {
	if got := ExtractSummary("   \n\n  "); got != "" {
		t.Errorf("expected empty summary, got %q", got)
	}
}

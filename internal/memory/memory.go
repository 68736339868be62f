// Package memory keeps a bounded, persistent work log per agent. The
// log is a markdown file with a free-text preamble followed by a fixed
// work-log section; the entry list is replayed into the agent's next
// dispatch prompt so it remembers what it recently did.
//
// All operations are best-effort: write failures surface as a boolean
// to the caller and never crash a dispatch. Memory is an enhancement,
// not a correctness requirement.
package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// Header splits the preamble from the structured entry list.
	Header = "## Work Log"

	// sectionMarker wraps the replayed content in a dispatch prompt.
	sectionMarker = "## Memory From Previous Work"

	// DefaultLimit is the number of entries kept per agent.
	DefaultLimit = 5

	// maxSummaryLen bounds a stored summary, ellipsis included.
	maxSummaryLen = 200
)

// entryRe matches one work-log line:
//
//	- 2026-01-02 15:04 | task #12 | summary text
//
// Lines that do not match are dropped silently on rewrite.
var entryRe = regexp.MustCompile(`^- (\d{4}-\d{2}-\d{2} \d{2}:\d{2}) \| task #(\d+) \| (.*)$`)

const timeLayout = "2006-01-02 15:04"

// Entry is one condensed task outcome.
type Entry struct {
	Timestamp time.Time
	TaskID    int64
	Summary   string
}

// Log manages per-agent memory files in a directory.
type Log struct {
	dir    string
	limit  int
	logger *zap.Logger
}

// New creates a memory log rooted at dir. Limit <= 0 means DefaultLimit.
func New(dir string, limit int, logger *zap.Logger) *Log {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{dir: dir, limit: limit, logger: logger}
}

func (l *Log) path(agentName string) string {
	return filepath.Join(l.dir, agentName+".md")
}

// Build returns the agent's memory wrapped in the section marker for
// prompt injection. A missing or whitespace-only file yields "".
func (l *Log) Build(agentName string) string {
	data, err := os.ReadFile(l.path(agentName))
	if err != nil {
		return ""
	}
	content := strings.TrimSpace(string(data))
	if content == "" {
		return ""
	}
	return sectionMarker + "\n\n" + content
}

// Update appends a condensed entry to the agent's log and trims it to
// the configured limit. Returns false on any I/O failure.
func (l *Log) Update(agentName string, taskID int64, summary string) bool {
	preamble, entries := l.parse(agentName)

	entries = append(entries, Entry{
		Timestamp: time.Now().UTC().Truncate(time.Minute),
		TaskID:    taskID,
		Summary:   condense(summary),
	})
	if len(entries) > l.limit {
		entries = entries[len(entries)-l.limit:]
	}

	return l.write(agentName, preamble, entries)
}

// Trim drops the oldest entries beyond max without adding anything.
// A log already within the limit, or a missing file, is a no-op success.
func (l *Log) Trim(agentName string, max int) bool {
	if max <= 0 {
		max = l.limit
	}
	if _, err := os.Stat(l.path(agentName)); err != nil {
		return true
	}

	preamble, entries := l.parse(agentName)
	if len(entries) <= max {
		return true
	}
	entries = entries[len(entries)-max:]
	return l.write(agentName, preamble, entries)
}

// parse splits the file at the header: everything before is preamble
// (kept byte-identical on rewrite), everything after is matched
// line-by-line against the entry pattern.
func (l *Log) parse(agentName string) (preamble string, entries []Entry) {
	data, err := os.ReadFile(l.path(agentName))
	if err != nil {
		return "", nil
	}
	content := string(data)

	idx := strings.Index(content, Header)
	if idx < 0 {
		return strings.TrimRight(content, "\n"), nil
	}

	preamble = strings.TrimRight(content[:idx], "\n")
	rest := content[idx+len(Header):]

	for _, line := range strings.Split(rest, "\n") {
		m := entryRe.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		ts, err := time.Parse(timeLayout, m[1])
		if err != nil {
			continue
		}
		id, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			continue
		}
		entries = append(entries, Entry{Timestamp: ts, TaskID: id, Summary: m[3]})
	}
	return preamble, entries
}

// write rewrites the whole file: preamble, blank line, header, entries.
func (l *Log) write(agentName string, preamble string, entries []Entry) bool {
	var b strings.Builder
	if preamble != "" {
		b.WriteString(preamble)
		b.WriteString("\n\n")
	}
	b.WriteString(Header)
	b.WriteString("\n\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "- %s | task #%d | %s\n", e.Timestamp.Format(timeLayout), e.TaskID, e.Summary)
	}

	if err := os.MkdirAll(l.dir, 0755); err != nil {
		l.logger.Warn("memory directory unavailable", zap.String("agent", agentName), zap.Error(err))
		return false
	}
	if err := os.WriteFile(l.path(agentName), []byte(b.String()), 0644); err != nil {
		l.logger.Warn("memory write failed", zap.String("agent", agentName), zap.Error(err))
		return false
	}
	return true
}

// condense collapses embedded line breaks to single spaces and bounds
// the summary at maxSummaryLen characters, ellipsis included.
func condense(summary string) string {
	s := strings.Join(strings.Fields(summary), " ")
	runes := []rune(s)
	if len(runes) <= maxSummaryLen {
		return s
	}
	return string(runes[:maxSummaryLen-3]) + "..."
}

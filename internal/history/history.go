// Package history keeps an append-only audit trail of what happened to
// tasks and sprints in a SQLite database. History is supplementary:
// recording is best-effort and never blocks or fails an operation.
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Event types recorded by the core.
const (
	EventCreated          = "created"
	EventStatusChanged    = "status_changed"
	EventDispatched       = "dispatched"
	EventDispatchDone     = "dispatch_done"
	EventDispatchFailed   = "dispatch_failed"
	EventSprintCreated    = "sprint_created"
	EventSprintRolledBack = "sprint_rolled_back"
	EventSprintDeleted    = "sprint_deleted"
)

// Event is one audit record.
type Event struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id,omitempty"` // correlates events of one dispatch
	TaskID    int64     `json:"task_id,omitempty"`
	SprintID  int64     `json:"sprint_id,omitempty"`
	Agent     string    `json:"agent,omitempty"`
	Type      string    `json:"event_type"`
	Content   string    `json:"content,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Recorder appends events to the history database.
type Recorder struct {
	db *sql.DB
}

// Open opens (or creates) the history database at the given path.
func Open(path string) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	// WAL keeps readers from blocking the recorder.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &Recorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return r, nil
}

// Close closes the database connection.
func (r *Recorder) Close() error {
	return r.db.Close()
}

func (r *Recorder) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id      TEXT DEFAULT '',
		task_id     INTEGER DEFAULT 0,
		sprint_id   INTEGER DEFAULT 0,
		agent       TEXT DEFAULT '',
		event_type  TEXT NOT NULL,
		content     TEXT DEFAULT '',
		timestamp   DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_task ON events(task_id);
	CREATE INDEX IF NOT EXISTS idx_events_sprint ON events(sprint_id);
	`
	_, err := r.db.Exec(schema)
	return err
}

// Record appends an event. Errors are swallowed: the trail is an
// enhancement, not a correctness requirement.
func (r *Recorder) Record(e Event) {
	if r == nil {
		return
	}
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	r.db.Exec(
		`INSERT INTO events (run_id, task_id, sprint_id, agent, event_type, content, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.TaskID, e.SprintID, e.Agent, e.Type, e.Content, ts,
	)
}

// ListByTask returns all events for a task in chronological order.
func (r *Recorder) ListByTask(taskID int64) ([]Event, error) {
	return r.list(`SELECT id, run_id, task_id, sprint_id, agent, event_type, content, timestamp
		FROM events WHERE task_id = ? ORDER BY id`, taskID)
}

// ListBySprint returns all events for a sprint in chronological order.
func (r *Recorder) ListBySprint(sprintID int64) ([]Event, error) {
	return r.list(`SELECT id, run_id, task_id, sprint_id, agent, event_type, content, timestamp
		FROM events WHERE sprint_id = ? ORDER BY id`, sprintID)
}

func (r *Recorder) list(query string, args ...any) ([]Event, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.RunID, &e.TaskID, &e.SprintID, &e.Agent, &e.Type, &e.Content, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Package store persists tasks, bugs, sprints and backlog items in a
// single JSON document. The file is the only source of truth: every
// mutation re-reads it, changes the document in memory and rewrites it
// whole. A process-wide mutex keeps concurrent in-process callers from
// interleaving partial updates; there is no cross-process coordination
// (last full write wins).
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Store provides access to the squad task document.
type Store struct {
	path string

	mu sync.Mutex
}

// New creates a store backed by the JSON document at the given path.
// The file is created on first mutation; a missing file reads as empty.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the location of the backing document.
func (s *Store) Path() string { return s.path }

// load reads the whole document from disk. A missing file yields an
// empty document. Loaded records get documented defaults applied so
// legacy files missing newer fields keep working.
func (s *Store) load() (*document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return &document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read tasks document: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse tasks document: %w", err)
	}

	// Back-compat defaults for records written before these fields existed.
	for i := range doc.Tasks {
		if doc.Tasks[i].TaskType == "" {
			doc.Tasks[i].TaskType = TypeTask
		}
	}
	return &doc, nil
}

// save rewrites the whole document atomically (temp file + rename).
func (s *Store) save(doc *document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal tasks document: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tasks-*.json")
	if err != nil {
		return fmt.Errorf("create temp document: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write tasks document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp document: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace tasks document: %w", err)
	}
	return nil
}

// stamp returns the update timestamp for a record: the current instant,
// never earlier than the record's previous updated_at.
func stamp(prev time.Time) time.Time {
	now := time.Now().UTC()
	if now.Before(prev) {
		return prev
	}
	return now
}

// CreateTaskRequest carries the caller-supplied fields for a new task or bug.
type CreateTaskRequest struct {
	Title       string
	Description string
	Author      string
	Executor    string
	SprintID    int64
	DependsOn   []int64
	RelatedTask int64
	ProjectPath string
	IsFinalize  bool
}

// CreateTask inserts a new task (task_type=task) and returns it with the
// generated ID.
func (s *Store) CreateTask(req CreateTaskRequest) (*Task, error) {
	return s.createWork(TypeTask, req)
}

// CreateBug inserts a new bug (task_type=bug). Bugs draw their IDs from
// a separate counter but live in the same list as tasks.
func (s *Store) CreateBug(req CreateTaskRequest) (*Task, error) {
	return s.createWork(TypeBug, req)
}

// createWork is the shared insert logic for tasks and bugs.
func (s *Store) createWork(kind TaskType, req CreateTaskRequest) (*Task, error) {
	if req.Title == "" {
		return nil, &ValidationError{Field: "title", Reason: "must not be empty"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	var id int64
	if kind == TypeBug {
		doc.NextBugID++
		id = doc.NextBugID
	} else {
		doc.NextID++
		id = doc.NextID
	}

	now := time.Now().UTC()
	t := Task{
		ID:          id,
		Title:       req.Title,
		Description: req.Description,
		Status:      StatusPending,
		Author:      req.Author,
		Executor:    req.Executor,
		SprintID:    req.SprintID,
		DependsOn:   req.DependsOn,
		TaskType:    kind,
		RelatedTask: req.RelatedTask,
		ProjectPath: req.ProjectPath,
		IsFinalize:  req.IsFinalize,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	doc.Tasks = append(doc.Tasks, t)

	if err := s.save(doc); err != nil {
		return nil, err
	}
	return &t, nil
}

// BacklogInput carries one candidate backlog item.
type BacklogInput struct {
	Title       string
	Description string
	Priority    string // high, medium, low; defaults to medium
	NextSprint  bool
}

// CreateBacklogItems inserts a batch of backlog items in one document
// rewrite. The whole batch is rejected if any item fails validation.
func (s *Store) CreateBacklogItems(items []BacklogInput, createdBy string) ([]BacklogItem, error) {
	if len(items) == 0 {
		return nil, &ValidationError{Field: "items", Reason: "must not be empty"}
	}
	for _, it := range items {
		if it.Title == "" {
			return nil, &ValidationError{Field: "title", Reason: "must not be empty"}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	created := make([]BacklogItem, 0, len(items))
	for _, it := range items {
		doc.NextID++
		priority := it.Priority
		if priority == "" {
			priority = "medium"
		}
		b := BacklogItem{
			ID:          doc.NextID,
			Title:       it.Title,
			Description: it.Description,
			Priority:    priority,
			NextSprint:  it.NextSprint,
			CreatedBy:   createdBy,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		doc.Backlog = append(doc.Backlog, b)
		created = append(created, b)
	}

	if err := s.save(doc); err != nil {
		return nil, err
	}
	return created, nil
}

// ListBacklog returns all backlog items.
func (s *Store) ListBacklog() ([]BacklogItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	return doc.Backlog, nil
}

// GetTask returns a single task or bug by ID.
func (s *Store) GetTask(id int64) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	if t := findTask(doc, id); t != nil {
		out := *t
		return &out, nil
	}
	return nil, &NotFoundError{Kind: "task", ID: id}
}

// ListTasks returns all tasks and bugs matching the filter.
func (s *Store) ListTasks(filter TaskFilter) ([]Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	var tasks []Task
	for _, t := range doc.Tasks {
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.SprintID != 0 && t.SprintID != filter.SprintID {
			continue
		}
		if filter.Executor != "" && t.Executor != filter.Executor {
			continue
		}
		if filter.TaskType != "" && t.TaskType != filter.TaskType {
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// UpdateTaskStatus changes the status of a task through the dedicated
// status path. Terminal tasks are immutable.
func (s *Store) UpdateTaskStatus(id int64, status TaskStatus) (*Task, error) {
	if !status.Valid() {
		return nil, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", status)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	t := findTask(doc, id)
	if t == nil {
		return nil, &NotFoundError{Kind: "task", ID: id}
	}
	if t.Status.Terminal() {
		return nil, &ValidationError{Field: "status", Reason: fmt.Sprintf("task #%d is %s and cannot change status", id, t.Status)}
	}

	t.Status = status
	t.UpdatedAt = stamp(t.UpdatedAt)

	if err := s.save(doc); err != nil {
		return nil, err
	}
	out := *t
	return &out, nil
}

// SetTaskResult records the outcome text of a task execution. Result
// text is historical annotation and may be written on terminal tasks.
func (s *Store) SetTaskResult(id int64, text string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	t := findTask(doc, id)
	if t == nil {
		return nil, &NotFoundError{Kind: "task", ID: id}
	}

	t.Result = text
	t.UpdatedAt = stamp(t.UpdatedAt)

	if err := s.save(doc); err != nil {
		return nil, err
	}
	out := *t
	return &out, nil
}

// taskFields is the permitted field set for UpdateTaskFields.
var taskFields = map[string]bool{
	"title":        true,
	"description":  true,
	"executor":     true,
	"sprint_id":    true,
	"project_path": true,
	"is_finalize":  true,
}

// UpdateTaskFields applies a partial update to a task. Status and result
// have dedicated paths and are rejected here with a conflict error.
func (s *Store) UpdateTaskFields(id int64, fields map[string]any) (*Task, error) {
	for name := range fields {
		switch name {
		case "status":
			return nil, &ConflictError{Field: "status", Reason: "use the status update path"}
		case "result":
			return nil, &ConflictError{Field: "result", Reason: "use the result update path"}
		}
		if !taskFields[name] {
			return nil, &ValidationError{Field: name, Reason: "not an updatable task field"}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	t := findTask(doc, id)
	if t == nil {
		return nil, &NotFoundError{Kind: "task", ID: id}
	}
	if t.Status.Terminal() {
		return nil, &ValidationError{Field: "id", Reason: fmt.Sprintf("task #%d is %s and cannot be updated", id, t.Status)}
	}

	for name, value := range fields {
		switch name {
		case "title":
			v, err := asString(name, value)
			if err != nil {
				return nil, err
			}
			if v == "" {
				return nil, &ValidationError{Field: "title", Reason: "must not be empty"}
			}
			t.Title = v
		case "description":
			v, err := asString(name, value)
			if err != nil {
				return nil, err
			}
			t.Description = v
		case "executor":
			v, err := asString(name, value)
			if err != nil {
				return nil, err
			}
			t.Executor = v
		case "project_path":
			v, err := asString(name, value)
			if err != nil {
				return nil, err
			}
			t.ProjectPath = v
		case "sprint_id":
			v, err := asInt64(name, value)
			if err != nil {
				return nil, err
			}
			t.SprintID = v
		case "is_finalize":
			v, err := asBool(name, value)
			if err != nil {
				return nil, err
			}
			t.IsFinalize = v
		}
	}
	t.UpdatedAt = stamp(t.UpdatedAt)

	if err := s.save(doc); err != nil {
		return nil, err
	}
	out := *t
	return &out, nil
}

// CreateSprint inserts a new sprint record. Callers outside the sprint
// lifecycle manager should not use this directly: sprint creation is
// coupled to branch provisioning.
func (s *Store) CreateSprint(title, description, createdBy string, readyToExecute bool) (*Sprint, error) {
	if title == "" {
		return nil, &ValidationError{Field: "title", Reason: "must not be empty"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	doc.NextSprintID++
	now := time.Now().UTC()
	sp := Sprint{
		ID:             doc.NextSprintID,
		Title:          title,
		Description:    description,
		Status:         SprintActive,
		ReadyToExecute: readyToExecute,
		CreatedBy:      createdBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	doc.Sprints = append(doc.Sprints, sp)

	if err := s.save(doc); err != nil {
		return nil, err
	}
	return &sp, nil
}

// GetSprint returns a single sprint by ID.
func (s *Store) GetSprint(id int64) (*Sprint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	if sp := findSprint(doc, id); sp != nil {
		out := *sp
		return &out, nil
	}
	return nil, &NotFoundError{Kind: "sprint", ID: id}
}

// ListSprints returns all sprints in creation order.
func (s *Store) ListSprints() ([]Sprint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	return doc.Sprints, nil
}

// sprintFields is the permitted field set for UpdateSprintFields.
var sprintFields = map[string]bool{
	"title":            true,
	"description":      true,
	"git_branch":       true,
	"git_note":         true,
	"ready_to_execute": true,
}

// UpdateSprintFields applies a partial update to a sprint. A status key
// is rejected with a conflict error; status has its own narrower path.
func (s *Store) UpdateSprintFields(id int64, fields map[string]any) (*Sprint, error) {
	for name := range fields {
		if name == "status" {
			return nil, &ConflictError{Field: "status", Reason: "use the status update path"}
		}
		if !sprintFields[name] {
			return nil, &ValidationError{Field: name, Reason: "not an updatable sprint field"}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	sp := findSprint(doc, id)
	if sp == nil {
		return nil, &NotFoundError{Kind: "sprint", ID: id}
	}

	for name, value := range fields {
		switch name {
		case "title":
			v, err := asString(name, value)
			if err != nil {
				return nil, err
			}
			if v == "" {
				return nil, &ValidationError{Field: "title", Reason: "must not be empty"}
			}
			sp.Title = v
		case "description":
			v, err := asString(name, value)
			if err != nil {
				return nil, err
			}
			sp.Description = v
		case "git_branch":
			v, err := asString(name, value)
			if err != nil {
				return nil, err
			}
			sp.GitBranch = v
		case "git_note":
			v, err := asString(name, value)
			if err != nil {
				return nil, err
			}
			sp.GitNote = v
		case "ready_to_execute":
			v, err := asBool(name, value)
			if err != nil {
				return nil, err
			}
			sp.ReadyToExecute = v
		}
	}
	sp.UpdatedAt = stamp(sp.UpdatedAt)

	if err := s.save(doc); err != nil {
		return nil, err
	}
	out := *sp
	return &out, nil
}

// UpdateSprintStatus transitions a sprint's status. Nothing else moves
// through this path.
func (s *Store) UpdateSprintStatus(id int64, status SprintStatus) (*Sprint, error) {
	if !status.Valid() {
		return nil, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", status)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	sp := findSprint(doc, id)
	if sp == nil {
		return nil, &NotFoundError{Kind: "sprint", ID: id}
	}

	sp.Status = status
	sp.UpdatedAt = stamp(sp.UpdatedAt)

	if err := s.save(doc); err != nil {
		return nil, err
	}
	out := *sp
	return &out, nil
}

// DeleteSprint removes a sprint record. The version-control branch is
// never touched; deletion is an administrative action on the record
// only (and the rollback path of a failed sprint creation).
func (s *Store) DeleteSprint(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	for i := range doc.Sprints {
		if doc.Sprints[i].ID == id {
			doc.Sprints = append(doc.Sprints[:i], doc.Sprints[i+1:]...)
			return s.save(doc)
		}
	}
	return &NotFoundError{Kind: "sprint", ID: id}
}

func findTask(doc *document, id int64) *Task {
	for i := range doc.Tasks {
		if doc.Tasks[i].ID == id {
			return &doc.Tasks[i]
		}
	}
	return nil
}

func findSprint(doc *document, id int64) *Sprint {
	for i := range doc.Sprints {
		if doc.Sprints[i].ID == id {
			return &doc.Sprints[i]
		}
	}
	return nil
}

func asString(field string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", &ValidationError{Field: field, Reason: "must be a string"}
	}
	return s, nil
}

func asBool(field string, v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, &ValidationError{Field: field, Reason: "must be a boolean"}
	}
	return b, nil
}

func asInt64(field string, v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64: // JSON numbers decode as float64.
		return int64(n), nil
	}
	return 0, &ValidationError{Field: field, Reason: "must be an integer"}
}

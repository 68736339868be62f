package store

import "time"

// TaskStatus represents the current state of a task on the board.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusInReview   TaskStatus = "in_review"
	StatusDone       TaskStatus = "done"
	StatusCancelled  TaskStatus = "cancelled"
)

// Terminal reports whether the status is a final state. Terminal tasks
// are never mutated again except for historical annotation.
func (s TaskStatus) Terminal() bool {
	return s == StatusDone || s == StatusCancelled
}

// Valid reports whether the status is in the known domain.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusInReview, StatusDone, StatusCancelled:
		return true
	}
	return false
}

// TaskType distinguishes regular tasks from bug reports. Both share the
// same record shape and live in the same list.
type TaskType string

const (
	TypeTask TaskType = "task"
	TypeBug  TaskType = "bug"
)

// SprintStatus represents the lifecycle state of a sprint.
type SprintStatus string

const (
	SprintActive    SprintStatus = "active"
	SprintCompleted SprintStatus = "completed"
	SprintReleased  SprintStatus = "released"
)

// Valid reports whether the sprint status is in the known domain.
func (s SprintStatus) Valid() bool {
	switch s {
	case SprintActive, SprintCompleted, SprintReleased:
		return true
	}
	return false
}

// Task is a unit of work assigned to an agent. A bug is the same record
// with TaskType "bug", drawing its ID from a separate counter.
type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
	Author      string     `json:"author,omitempty"`
	Executor    string     `json:"executor,omitempty"`
	Result      string     `json:"result,omitempty"`
	SprintID    int64      `json:"sprint_id,omitempty"`
	DependsOn   []int64    `json:"depends_on,omitempty"`
	TaskType    TaskType   `json:"task_type"`
	RelatedTask int64      `json:"related_task,omitempty"`
	// ProjectPath is the working directory the task was created against.
	// Empty means "resolve to the caller's currently active project";
	// records predating multi-project support have no value here.
	ProjectPath string    `json:"project_path,omitempty"`
	IsFinalize  bool      `json:"is_finalize,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Sprint groups tasks under a version-control branch.
type Sprint struct {
	ID          int64        `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Status      SprintStatus `json:"status"`
	// ReadyToExecute is mutable only through the generic field-update
	// path, never through the status-change path.
	ReadyToExecute bool      `json:"ready_to_execute,omitempty"`
	CreatedBy      string    `json:"created_by,omitempty"`
	GitBranch      string    `json:"git_branch,omitempty"`
	GitNote        string    `json:"git_note,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// BacklogItem is an unscheduled candidate for a future sprint. Backlog
// items never enter the dispatch path.
type BacklogItem struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Priority    string    `json:"priority,omitempty"` // high, medium, low
	NextSprint  bool      `json:"next_sprint,omitempty"`
	CreatedBy   string    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// document is the whole persisted state. Every mutation loads the file,
// changes the document in memory and rewrites it completely.
type document struct {
	NextID       int64         `json:"next_id"`
	NextSprintID int64         `json:"next_sprint_id"`
	NextBugID    int64         `json:"next_bug_id"`
	Sprints      []Sprint      `json:"sprints"`
	Tasks        []Task        `json:"tasks"`
	Backlog      []BacklogItem `json:"backlog,omitempty"`
}

// TaskFilter narrows ListTasks results. Zero values mean "no filter".
type TaskFilter struct {
	Status   TaskStatus
	SprintID int64
	Executor string
	TaskType TaskType
}

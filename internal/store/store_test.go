package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// testStore creates a temporary store for testing.
func testStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	return New(filepath.Join(dir, "tasks.json"))
}

func TestCreateTask(t *testing.T) {
	s := testStore(t)

	task, err := s.CreateTask(CreateTaskRequest{
		Title:       "Implement login",
		Description: "Add the login form",
		Author:      "boss",
		Executor:    "alice",
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	if task.ID != 1 {
		t.Errorf("expected ID 1, got %d", task.ID)
	}
	if task.Status != StatusPending {
		t.Errorf("expected status pending, got %s", task.Status)
	}
	if task.TaskType != TypeTask {
		t.Errorf("expected task_type task, got %s", task.TaskType)
	}
	if task.Executor != "alice" {
		t.Errorf("expected executor alice, got %q", task.Executor)
	}
}

func TestCreateTask_EmptyTitle(t *testing.T) {
	s := testStore(t)

	_, err := s.CreateTask(CreateTaskRequest{})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Field != "title" {
		t.Errorf("expected offending field title, got %q", verr.Field)
	}

	// No side effects: document must not exist yet.
	if _, statErr := os.Stat(s.Path()); !os.IsNotExist(statErr) {
		t.Error("expected no document written after validation failure")
	}
}

func TestIDs_StrictlyIncreasingPerKind(t *testing.T) {
	s := testStore(t)

	var taskIDs, bugIDs, sprintIDs []int64
	for i := 0; i < 3; i++ {
		task, err := s.CreateTask(CreateTaskRequest{Title: "t"})
		if err != nil {
			t.Fatalf("CreateTask: %v", err)
		}
		taskIDs = append(taskIDs, task.ID)

		bug, err := s.CreateBug(CreateTaskRequest{Title: "b"})
		if err != nil {
			t.Fatalf("CreateBug: %v", err)
		}
		bugIDs = append(bugIDs, bug.ID)

		sp, err := s.CreateSprint("s", "", "boss", false)
		if err != nil {
			t.Fatalf("CreateSprint: %v", err)
		}
		sprintIDs = append(sprintIDs, sp.ID)
	}

	for name, ids := range map[string][]int64{"task": taskIDs, "bug": bugIDs, "sprint": sprintIDs} {
		for i := 1; i < len(ids); i++ {
			if ids[i] <= ids[i-1] {
				t.Errorf("%s ids not strictly increasing: %v", name, ids)
			}
		}
	}
}

func TestCreateBug_TaggedVariant(t *testing.T) {
	s := testStore(t)

	bug, err := s.CreateBug(CreateTaskRequest{Title: "Crash on save", RelatedTask: 7})
	if err != nil {
		t.Fatalf("CreateBug: %v", err)
	}
	if bug.TaskType != TypeBug {
		t.Errorf("expected task_type bug, got %s", bug.TaskType)
	}
	if bug.RelatedTask != 7 {
		t.Errorf("expected related_task 7, got %d", bug.RelatedTask)
	}
}

func TestGetTask_NotFound(t *testing.T) {
	s := testStore(t)

	_, err := s.GetTask(99)
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if nf.Kind != "task" || nf.ID != 99 {
		t.Errorf("unexpected NotFoundError contents: %+v", nf)
	}
}

func TestListTasks_Filter(t *testing.T) {
	s := testStore(t)

	a, _ := s.CreateTask(CreateTaskRequest{Title: "a", Executor: "alice", SprintID: 1})
	s.CreateTask(CreateTaskRequest{Title: "b", Executor: "bob", SprintID: 2})
	s.UpdateTaskStatus(a.ID, StatusInProgress)

	got, err := s.ListTasks(TaskFilter{Executor: "alice"})
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(got) != 1 || got[0].ID != a.ID {
		t.Fatalf("expected only alice's task, got %+v", got)
	}

	got, _ = s.ListTasks(TaskFilter{Status: StatusPending})
	if len(got) != 1 || got[0].Title != "b" {
		t.Fatalf("expected only pending task b, got %+v", got)
	}

	got, _ = s.ListTasks(TaskFilter{SprintID: 2})
	if len(got) != 1 || got[0].Title != "b" {
		t.Fatalf("expected only sprint 2 task, got %+v", got)
	}
}

func TestUpdateTaskStatus_TerminalIsImmutable(t *testing.T) {
	s := testStore(t)

	task, _ := s.CreateTask(CreateTaskRequest{Title: "t"})
	if _, err := s.UpdateTaskStatus(task.ID, StatusDone); err != nil {
		t.Fatalf("UpdateTaskStatus: %v", err)
	}

	_, err := s.UpdateTaskStatus(task.ID, StatusPending)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError on terminal task, got %v", err)
	}

	// Result annotation is still allowed on terminal tasks.
	if _, err := s.SetTaskResult(task.ID, "post-mortem note"); err != nil {
		t.Errorf("SetTaskResult on terminal task: %v", err)
	}
}

func TestUpdateTaskFields_RejectsStatusAndResult(t *testing.T) {
	s := testStore(t)
	task, _ := s.CreateTask(CreateTaskRequest{Title: "t"})

	for _, field := range []string{"status", "result"} {
		_, err := s.UpdateTaskFields(task.ID, map[string]any{field: "x"})
		var cerr *ConflictError
		if !errors.As(err, &cerr) {
			t.Fatalf("expected ConflictError for %s, got %v", field, err)
		}
		if cerr.Field != field {
			t.Errorf("expected conflict on %s, got %q", field, cerr.Field)
		}
	}

	got, _ := s.GetTask(task.ID)
	if got.Status != StatusPending {
		t.Errorf("status mutated despite conflict: %s", got.Status)
	}
}

func TestUpdateSprintFields_RejectsStatus(t *testing.T) {
	s := testStore(t)
	sp, _ := s.CreateSprint("Sprint 1", "", "boss", false)

	_, err := s.UpdateSprintFields(sp.ID, map[string]any{"status": "completed"})
	var cerr *ConflictError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if cerr.Field != "status" {
		t.Errorf("expected conflict on status, got %q", cerr.Field)
	}

	got, _ := s.GetSprint(sp.ID)
	if got.Status != SprintActive {
		t.Errorf("status mutated despite conflict: %s", got.Status)
	}

	// The dedicated path does transition status.
	if _, err := s.UpdateSprintStatus(sp.ID, SprintCompleted); err != nil {
		t.Fatalf("UpdateSprintStatus: %v", err)
	}
	got, _ = s.GetSprint(sp.ID)
	if got.Status != SprintCompleted {
		t.Errorf("expected completed, got %s", got.Status)
	}
}

func TestUpdateSprintFields_ReadyToExecute(t *testing.T) {
	s := testStore(t)
	sp, _ := s.CreateSprint("Sprint 1", "", "boss", false)

	got, err := s.UpdateSprintFields(sp.ID, map[string]any{"ready_to_execute": true})
	if err != nil {
		t.Fatalf("UpdateSprintFields: %v", err)
	}
	if !got.ReadyToExecute {
		t.Error("expected ready_to_execute true")
	}
}

func TestUpdatedAt_MonotonicNonDecreasing(t *testing.T) {
	s := testStore(t)
	task, _ := s.CreateTask(CreateTaskRequest{Title: "t"})

	prev := task.UpdatedAt
	for i := 0; i < 5; i++ {
		got, err := s.SetTaskResult(task.ID, "r")
		if err != nil {
			t.Fatalf("SetTaskResult: %v", err)
		}
		if got.UpdatedAt.Before(prev) {
			t.Fatalf("updated_at went backwards: %v -> %v", prev, got.UpdatedAt)
		}
		prev = got.UpdatedAt
	}
}

func TestLoad_LegacyDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.json")

	// A document written before task_type, project_path and
	// ready_to_execute existed.
	legacy := `{
		"next_id": 1,
		"next_sprint_id": 1,
		"tasks": [{"id": 1, "title": "old task", "status": "pending",
			"created_at": "2024-01-01T00:00:00Z", "updated_at": "2024-01-01T00:00:00Z"}],
		"sprints": [{"id": 1, "title": "old sprint", "status": "active",
			"created_at": "2024-01-01T00:00:00Z", "updated_at": "2024-01-01T00:00:00Z"}]
	}`
	if err := os.WriteFile(path, []byte(legacy), 0644); err != nil {
		t.Fatal(err)
	}

	s := New(path)
	task, err := s.GetTask(1)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if task.TaskType != TypeTask {
		t.Errorf("expected task_type default task, got %q", task.TaskType)
	}
	if task.ProjectPath != "" {
		t.Errorf("expected empty project_path default, got %q", task.ProjectPath)
	}

	sp, err := s.GetSprint(1)
	if err != nil {
		t.Fatalf("GetSprint: %v", err)
	}
	if sp.ReadyToExecute {
		t.Error("expected ready_to_execute default false")
	}
}

func TestDeleteSprint(t *testing.T) {
	s := testStore(t)
	sp, _ := s.CreateSprint("Sprint 1", "", "boss", false)

	if err := s.DeleteSprint(sp.ID); err != nil {
		t.Fatalf("DeleteSprint: %v", err)
	}
	if _, err := s.GetSprint(sp.ID); err == nil {
		t.Error("expected sprint gone after delete")
	}
	if err := s.DeleteSprint(sp.ID); err == nil {
		t.Error("expected NotFoundError on double delete")
	}
}

func TestCreateBacklogItems(t *testing.T) {
	s := testStore(t)

	items, err := s.CreateBacklogItems([]BacklogInput{
		{Title: "Idea one", NextSprint: true},
		{Title: "Idea two", Priority: "high"},
	}, "boss")
	if err != nil {
		t.Fatalf("CreateBacklogItems: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Priority != "medium" {
		t.Errorf("expected default priority medium, got %q", items[0].Priority)
	}
	if items[1].ID <= items[0].ID {
		t.Errorf("backlog ids not increasing: %d, %d", items[0].ID, items[1].ID)
	}

	all, _ := s.ListBacklog()
	if len(all) != 2 {
		t.Fatalf("expected 2 backlog items listed, got %d", len(all))
	}

	// Batch with an invalid item writes nothing.
	_, err = s.CreateBacklogItems([]BacklogInput{{Title: "ok"}, {}}, "boss")
	if err == nil {
		t.Fatal("expected validation error")
	}
	all, _ = s.ListBacklog()
	if len(all) != 2 {
		t.Errorf("expected backlog unchanged after failed batch, got %d items", len(all))
	}
}

func TestDanglingDependenciesTolerated(t *testing.T) {
	s := testStore(t)

	task, err := s.CreateTask(CreateTaskRequest{Title: "t", DependsOn: []int64{42, 43}})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	got, _ := s.GetTask(task.ID)
	if len(got.DependsOn) != 2 {
		t.Errorf("expected dangling depends_on kept, got %v", got.DependsOn)
	}
}

func TestStore_TimestampsUTC(t *testing.T) {
	s := testStore(t)
	task, _ := s.CreateTask(CreateTaskRequest{Title: "t"})

	if task.CreatedAt.Location() != time.UTC {
		t.Errorf("expected UTC created_at, got %v", task.CreatedAt.Location())
	}
}

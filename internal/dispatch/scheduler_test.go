package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/imkarma/squad/internal/agent"
	"github.com/imkarma/squad/internal/memory"
	"github.com/imkarma/squad/internal/registry"
	"github.com/imkarma/squad/internal/store"
)

// fakeRunner records every request and answers via runFn.
type fakeRunner struct {
	mu    sync.Mutex
	calls []agent.Request
	runFn func(ctx context.Context, req agent.Request) (*agent.Response, error)
}

func (f *fakeRunner) Run(ctx context.Context, req agent.Request) (*agent.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	if f.runFn != nil {
		return f.runFn(ctx, req)
	}
	return &agent.Response{Output: fmt.Sprintf("SUMMARY: finished task #%d", req.TaskID)}, nil
}

func (f *fakeRunner) Probe(ctx context.Context) error { return nil }
func (f *fakeRunner) Mode() string                    { return "fake" }

func (f *fakeRunner) requests() []agent.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]agent.Request, len(f.calls))
	copy(out, f.calls)
	return out
}

func writeRoster(t *testing.T, path string, names ...string) {
	t.Helper()
	emps := map[string]registry.Employee{}
	for _, n := range names {
		emps[n] = registry.Employee{Role: "developer", Model: "standard"}
	}
	data, err := json.Marshal(map[string]any{"employees": emps})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
}

func newTestScheduler(t *testing.T, runner agent.Runner) (*Scheduler, *store.Store, string) {
	t.Helper()
	dir := t.TempDir()

	rosterPath := filepath.Join(dir, "employees.json")
	writeRoster(t, rosterPath, "alice", "bob")

	memDir := filepath.Join(dir, "memory")
	if err := os.MkdirAll(memDir, 0755); err != nil {
		t.Fatal(err)
	}

	s := store.New(filepath.Join(dir, "tasks.json"))
	sched := NewScheduler(Options{
		Store:         s,
		Registry:      registry.New(rosterPath),
		Runner:        runner,
		Memory:        memory.New(memDir, 5, nil),
		ActiveProject: filepath.Join(dir, "active-project"),
		TimeoutSec:    600,
	})
	return sched, s, dir
}

func TestDispatchSuccess(t *testing.T) {
	runner := &fakeRunner{}
	sched, s, dir := newTestScheduler(t, runner)

	task, err := s.CreateTask(store.CreateTaskRequest{Title: "wire the parser", Executor: "alice"})
	if err != nil {
		t.Fatal(err)
	}

	out, err := sched.Dispatch(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if out.Interrupted {
		t.Error("expected clean run")
	}
	if out.Status != store.StatusInReview {
		t.Errorf("status = %s, want in_review", out.Status)
	}
	if want := fmt.Sprintf("finished task #%d", task.ID); out.Result != want {
		t.Errorf("result = %q, want %q", out.Result, want)
	}
	if out.RunID == "" {
		t.Error("expected a run id")
	}

	got, err := s.GetTask(task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != store.StatusInReview || got.Result != out.Result {
		t.Errorf("stored task = %s %q", got.Status, got.Result)
	}

	mem, err := os.ReadFile(filepath.Join(dir, "memory", "alice.md"))
	if err != nil {
		t.Fatalf("expected memory file: %v", err)
	}
	if !strings.Contains(string(mem), fmt.Sprintf("task #%d", task.ID)) {
		t.Errorf("memory missing entry:\n%s", mem)
	}
}

func TestDispatchSameAgentSerialized(t *testing.T) {
	type interval struct{ start, end time.Time }

	var mu sync.Mutex
	var intervals []interval

	runner := &fakeRunner{
		runFn: func(ctx context.Context, req agent.Request) (*agent.Response, error) {
			start := time.Now()
			time.Sleep(50 * time.Millisecond)
			mu.Lock()
			intervals = append(intervals, interval{start, time.Now()})
			mu.Unlock()
			return &agent.Response{Output: "SUMMARY: ok"}, nil
		},
	}
	sched, s, _ := newTestScheduler(t, runner)

	a, _ := s.CreateTask(store.CreateTaskRequest{Title: "first", Executor: "alice"})
	b, _ := s.CreateTask(store.CreateTaskRequest{Title: "second", Executor: "alice"})

	var wg sync.WaitGroup
	for _, id := range []int64{a.ID, b.ID} {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			if _, err := sched.Dispatch(context.Background(), id); err != nil {
				t.Errorf("dispatch %d: %v", id, err)
			}
		}(id)
	}
	wg.Wait()

	if len(intervals) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(intervals))
	}
	first, second := intervals[0], intervals[1]
	if second.start.Before(first.start) {
		first, second = second, first
	}
	if second.start.Before(first.end) {
		t.Errorf("same-agent runs overlapped: %v < %v", second.start, first.end)
	}
}

func TestDispatchDifferentAgentsOverlap(t *testing.T) {
	// Each run blocks until both agents are in flight. If scheduling
	// were global instead of per-agent, this would deadlock; the
	// context deadline turns that into a test failure.
	var started sync.WaitGroup
	started.Add(2)

	runner := &fakeRunner{
		runFn: func(ctx context.Context, req agent.Request) (*agent.Response, error) {
			started.Done()
			done := make(chan struct{})
			go func() { started.Wait(); close(done) }()
			select {
			case <-done:
				return &agent.Response{Output: "SUMMARY: ok"}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}
	sched, s, _ := newTestScheduler(t, runner)

	a, _ := s.CreateTask(store.CreateTaskRequest{Title: "for alice", Executor: "alice"})
	b, _ := s.CreateTask(store.CreateTaskRequest{Title: "for bob", Executor: "bob"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	for _, id := range []int64{a.ID, b.ID} {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			out, err := sched.Dispatch(ctx, id)
			if err != nil {
				t.Errorf("dispatch %d: %v", id, err)
				return
			}
			if out.Interrupted {
				t.Errorf("dispatch %d interrupted: %s", id, out.Result)
			}
		}(id)
	}
	wg.Wait()
}

func TestLockReleasedAfterBackendFailure(t *testing.T) {
	runner := &fakeRunner{
		runFn: func(ctx context.Context, req agent.Request) (*agent.Response, error) {
			return nil, errors.New("backend exploded")
		},
	}
	sched, s, _ := newTestScheduler(t, runner)

	task, _ := s.CreateTask(store.CreateTaskRequest{Title: "doomed", Executor: "alice"})
	out, err := sched.Dispatch(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("interruption must not surface as error: %v", err)
	}
	if !out.Interrupted {
		t.Fatal("expected interrupted outcome")
	}
	if !sched.AgentFree("alice") {
		t.Error("agent token still held after failure")
	}
}

func TestInterruptedTimeout(t *testing.T) {
	runner := &fakeRunner{
		runFn: func(ctx context.Context, req agent.Request) (*agent.Response, error) {
			return nil, fmt.Errorf("agent run: %w", context.DeadlineExceeded)
		},
	}
	sched, s, dir := newTestScheduler(t, runner)

	task, _ := s.CreateTask(store.CreateTaskRequest{Title: "slow", Executor: "alice"})
	out, err := sched.Dispatch(context.Background(), task.ID)
	if err != nil {
		t.Fatal(err)
	}

	if !strings.HasPrefix(out.Result, "INTERRUPTED after ") || !strings.HasSuffix(out.Result, "error: timeout") {
		t.Errorf("result = %q", out.Result)
	}

	got, _ := s.GetTask(task.ID)
	if got.Status != store.StatusInProgress {
		t.Errorf("status = %s, want task kept non-terminal", got.Status)
	}
	if got.Result != out.Result {
		t.Errorf("stored result = %q", got.Result)
	}

	// Interruptions still land in memory so the agent sees them next run.
	mem, err := os.ReadFile(filepath.Join(dir, "memory", "alice.md"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(mem), "INTERRUPTED") {
		t.Errorf("memory missing interruption:\n%s", mem)
	}
}

func TestInterruptedBackendError(t *testing.T) {
	runner := &fakeRunner{
		runFn: func(ctx context.Context, req agent.Request) (*agent.Response, error) {
			return nil, errors.New("connection refused")
		},
	}
	sched, s, _ := newTestScheduler(t, runner)

	task, _ := s.CreateTask(store.CreateTaskRequest{Title: "unlucky", Executor: "bob"})
	out, err := sched.Dispatch(context.Background(), task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(out.Result, "error: backend_error") {
		t.Errorf("result = %q", out.Result)
	}
}

func TestProjectPathScoping(t *testing.T) {
	runner := &fakeRunner{}
	sched, s, _ := newTestScheduler(t, runner)

	pinned, _ := s.CreateTask(store.CreateTaskRequest{Title: "pinned", Executor: "alice", ProjectPath: "/srv/projects/api"})
	floating, _ := s.CreateTask(store.CreateTaskRequest{Title: "floating", Executor: "alice"})

	if _, err := sched.Dispatch(context.Background(), pinned.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := sched.Dispatch(context.Background(), floating.ID); err != nil {
		t.Fatal(err)
	}

	reqs := runner.requests()
	if len(reqs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(reqs))
	}
	if reqs[0].WorkDir != "/srv/projects/api" {
		t.Errorf("pinned task ran in %q", reqs[0].WorkDir)
	}
	if !strings.HasSuffix(reqs[1].WorkDir, "active-project") {
		t.Errorf("floating task should use the active project, ran in %q", reqs[1].WorkDir)
	}
}

func TestDispatchRejectsTerminalTask(t *testing.T) {
	sched, s, _ := newTestScheduler(t, &fakeRunner{})

	task, _ := s.CreateTask(store.CreateTaskRequest{Title: "done already", Executor: "alice"})
	if _, err := s.UpdateTaskStatus(task.ID, store.StatusDone); err != nil {
		t.Fatal(err)
	}

	_, err := sched.Dispatch(context.Background(), task.ID)
	var verr *store.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDispatchRejectsUnknownExecutor(t *testing.T) {
	sched, s, _ := newTestScheduler(t, &fakeRunner{})

	task, _ := s.CreateTask(store.CreateTaskRequest{Title: "orphan", Executor: "mallory"})
	_, err := sched.Dispatch(context.Background(), task.ID)
	if !errors.Is(err, registry.ErrUnknownEmployee) {
		t.Fatalf("expected unknown employee, got %v", err)
	}
}

func TestDispatchRejectsMissingExecutor(t *testing.T) {
	sched, s, _ := newTestScheduler(t, &fakeRunner{})

	task, _ := s.CreateTask(store.CreateTaskRequest{Title: "unassigned"})
	_, err := sched.Dispatch(context.Background(), task.ID)
	var verr *store.ValidationError
	if !errors.As(err, &verr) || verr.Field != "executor" {
		t.Fatalf("expected executor validation error, got %v", err)
	}
}

func TestPromptCarriesContext(t *testing.T) {
	runner := &fakeRunner{}
	sched, s, dir := newTestScheduler(t, runner)

	sp, err := s.CreateSprint("Auth rework", "replace session handling", "lead", false)
	if err != nil {
		t.Fatal(err)
	}
	dep, _ := s.CreateTask(store.CreateTaskRequest{Title: "design the schema", Executor: "bob"})
	task, _ := s.CreateTask(store.CreateTaskRequest{
		Title:       "implement login",
		Description: "wire the new session store",
		Executor:    "alice",
		SprintID:    sp.ID,
		DependsOn:   []int64{dep.ID, 9999},
	})

	memPath := filepath.Join(dir, "memory", "alice.md")
	if err := os.WriteFile(memPath, []byte("reviewed the session design\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := sched.Dispatch(context.Background(), task.ID); err != nil {
		t.Fatal(err)
	}

	reqs := runner.requests()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(reqs))
	}
	prompt := reqs[0].Prompt
	for _, want := range []string{
		"You are alice",
		"implement login",
		"wire the new session store",
		"Auth rework",
		"design the schema",
		"reviewed the session design",
		fmt.Sprintf("SUMMARY: <one sentence describing what you did for task #%d>", task.ID),
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, "#9999") {
		t.Error("dangling dependency should be skipped")
	}
	if reqs[0].Model != "standard" {
		t.Errorf("model = %q", reqs[0].Model)
	}
}

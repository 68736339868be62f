// Package dispatch executes tasks against the backend under per-agent
// exclusivity. For one agent, dispatches are strictly serialized; for
// different agents they run fully in parallel. The token is released on
// every exit path, including backend failure and timeout.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/imkarma/squad/internal/agent"
	"github.com/imkarma/squad/internal/history"
	"github.com/imkarma/squad/internal/memory"
	"github.com/imkarma/squad/internal/registry"
	"github.com/imkarma/squad/internal/store"
)

// Scheduler resolves, locks and executes task dispatches. Construct one
// per process and pass it by reference: it owns the per-agent lock
// table and the active-project fallback.
type Scheduler struct {
	store    *store.Store
	registry *registry.Registry
	runner   agent.Runner
	memory   *memory.Log
	recorder *history.Recorder
	logger   *zap.Logger

	locks *lockTable

	// activeProject is the working directory for tasks whose own
	// project_path is empty.
	activeProject string
	timeoutSec    int
}

// Options carries the Scheduler collaborators and settings.
type Options struct {
	Store         *store.Store
	Registry      *registry.Registry
	Runner        agent.Runner
	Memory        *memory.Log
	Recorder      *history.Recorder // optional
	Logger        *zap.Logger       // optional
	ActiveProject string
	TimeoutSec    int // per-dispatch backend timeout
}

// NewScheduler creates a Scheduler.
func NewScheduler(opts Options) *Scheduler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		store:         opts.Store,
		registry:      opts.Registry,
		runner:        opts.Runner,
		memory:        opts.Memory,
		recorder:      opts.Recorder,
		logger:        logger,
		locks:         newLockTable(),
		activeProject: opts.ActiveProject,
		timeoutSec:    opts.TimeoutSec,
	}
}

// Outcome is the result of one dispatch.
type Outcome struct {
	TaskID  int64            `json:"task_id"`
	Agent   string           `json:"agent"`
	RunID   string           `json:"run_id"`
	Status  store.TaskStatus `json:"status"`
	Result  string           `json:"result"`
	Elapsed time.Duration    `json:"elapsed"`

	// Interrupted marks a timeout or backend failure. The task is left
	// non-terminal for manual follow-up; the failure is in the result,
	// not an error.
	Interrupted bool `json:"interrupted,omitempty"`
}

// AgentFree reports whether an agent's exclusivity token is available.
func (s *Scheduler) AgentFree(agentName string) bool {
	return s.locks.free(agentName)
}

// Dispatch runs one task on its executor's backend.
//
// The task's own project_path wins over the globally active project:
// a task created against project A never silently executes against
// project B's working directory, however the active project moved in
// between. Only an empty stored path falls back.
func (s *Scheduler) Dispatch(ctx context.Context, taskID int64) (*Outcome, error) {
	task, err := s.store.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	if task.Status.Terminal() {
		return nil, &store.ValidationError{Field: "status", Reason: fmt.Sprintf("task #%d is %s", taskID, task.Status)}
	}
	if task.Executor == "" {
		return nil, &store.ValidationError{Field: "executor", Reason: fmt.Sprintf("task #%d has no executor", taskID)}
	}

	emp, err := s.registry.Lookup(task.Executor)
	if err != nil {
		if errors.Is(err, registry.ErrUnknownEmployee) {
			return nil, fmt.Errorf("task #%d: %w", taskID, err)
		}
		return nil, err
	}

	workDir := task.ProjectPath
	if workDir == "" {
		workDir = s.activeProject
	}

	sem := s.locks.get(task.Executor)
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire agent %s: %w", task.Executor, err)
	}
	defer sem.Release(1)

	runID := uuid.NewString()
	s.logger.Info("dispatching task",
		zap.Int64("task", task.ID),
		zap.String("agent", task.Executor),
		zap.String("run", runID),
		zap.String("project", workDir))

	if _, err := s.store.UpdateTaskStatus(task.ID, store.StatusInProgress); err != nil {
		return nil, err
	}
	s.recorder.Record(history.Event{
		RunID: runID, TaskID: task.ID, SprintID: task.SprintID,
		Agent: task.Executor, Type: history.EventDispatched,
	})

	prompt := buildPrompt(task, s.sprintOf(task), s.dependenciesOf(task), s.memory.Build(task.Executor))

	start := time.Now()
	resp, runErr := s.runner.Run(ctx, agent.Request{
		TaskID:     task.ID,
		Agent:      task.Executor,
		Model:      emp.Model,
		Prompt:     prompt,
		WorkDir:    workDir,
		TimeoutSec: s.timeoutSec,
	})
	elapsed := time.Since(start)

	if runErr != nil {
		return s.recordInterruption(task, runID, runErr, elapsed), nil
	}

	summary := agent.ExtractSummary(resp.Output)
	if summary == "" {
		summary = "completed with no output"
	}

	if _, err := s.store.SetTaskResult(task.ID, summary); err != nil {
		return nil, err
	}
	if _, err := s.store.UpdateTaskStatus(task.ID, store.StatusInReview); err != nil {
		return nil, err
	}

	s.memory.Update(task.Executor, task.ID, summary)
	s.recorder.Record(history.Event{
		RunID: runID, TaskID: task.ID, SprintID: task.SprintID,
		Agent: task.Executor, Type: history.EventDispatchDone, Content: summary,
	})
	s.logger.Info("dispatch finished",
		zap.Int64("task", task.ID),
		zap.String("agent", task.Executor),
		zap.Duration("elapsed", elapsed))

	return &Outcome{
		TaskID:  task.ID,
		Agent:   task.Executor,
		RunID:   runID,
		Status:  store.StatusInReview,
		Result:  summary,
		Elapsed: elapsed,
	}, nil
}

// recordInterruption writes the failure into the task result and the
// memory log, leaving the task in a retryable state for follow-up.
func (s *Scheduler) recordInterruption(task *store.Task, runID string, runErr error, elapsed time.Duration) *Outcome {
	kind := "backend_error"
	if errors.Is(runErr, context.DeadlineExceeded) {
		kind = "timeout"
	}
	result := fmt.Sprintf("INTERRUPTED after %ds, error: %s", int(elapsed.Seconds()), kind)

	// Best-effort: the interruption record must not mask the failure.
	if _, err := s.store.SetTaskResult(task.ID, result); err != nil {
		s.logger.Warn("failed to record interruption", zap.Int64("task", task.ID), zap.Error(err))
	}
	s.memory.Update(task.Executor, task.ID, result)
	s.recorder.Record(history.Event{
		RunID: runID, TaskID: task.ID, SprintID: task.SprintID,
		Agent: task.Executor, Type: history.EventDispatchFailed, Content: runErr.Error(),
	})
	s.logger.Warn("dispatch interrupted",
		zap.Int64("task", task.ID),
		zap.String("agent", task.Executor),
		zap.String("kind", kind),
		zap.Error(runErr))

	return &Outcome{
		TaskID:      task.ID,
		Agent:       task.Executor,
		RunID:       runID,
		Status:      store.StatusInProgress,
		Result:      result,
		Elapsed:     elapsed,
		Interrupted: true,
	}
}

// sprintOf returns the task's sprint for prompt context, or nil.
func (s *Scheduler) sprintOf(task *store.Task) *store.Sprint {
	if task.SprintID == 0 {
		return nil
	}
	sp, err := s.store.GetSprint(task.SprintID)
	if err != nil {
		return nil
	}
	return sp
}

// dependenciesOf resolves depends_on ids at read time. Dangling ids are
// tolerated and skipped.
func (s *Scheduler) dependenciesOf(task *store.Task) []store.Task {
	var deps []store.Task
	for _, id := range task.DependsOn {
		dep, err := s.store.GetTask(id)
		if err != nil {
			continue
		}
		deps = append(deps, *dep)
	}
	return deps
}

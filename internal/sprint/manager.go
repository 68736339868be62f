// Package sprint couples sprint records to version-control branches.
// A sprint only exists with its branch: creation provisions the branch
// and rolls the store record back when provisioning fails.
package sprint

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/imkarma/squad/internal/git"
	"github.com/imkarma/squad/internal/history"
	"github.com/imkarma/squad/internal/store"
	"github.com/imkarma/squad/internal/version"
)

// Store is the slice of the task store the manager needs.
type Store interface {
	CreateSprint(title, description, createdBy string, readyToExecute bool) (*store.Sprint, error)
	GetSprint(id int64) (*store.Sprint, error)
	UpdateSprintFields(id int64, fields map[string]any) (*store.Sprint, error)
	UpdateSprintStatus(id int64, status store.SprintStatus) (*store.Sprint, error)
	DeleteSprint(id int64) error
	ListTasks(filter store.TaskFilter) ([]store.Task, error)
}

// Manager is the sprint lifecycle manager.
type Manager struct {
	store    Store
	repo     *git.Repo
	versions version.Calculator
	recorder *history.Recorder
	logger   *zap.Logger
}

// New creates a Manager. recorder may be nil; logger defaults to a nop.
func New(s Store, repo *git.Repo, versions version.Calculator, recorder *history.Recorder, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: s, repo: repo, versions: versions, recorder: recorder, logger: logger}
}

// Create writes a sprint record and provisions its branch.
//
// The repository must be initialized with a main or master branch
// before anything is persisted. The branch sprint/{id} is created from
// the primary branch; an existing branch of that exact name is reused
// as-is, whatever commit it points at, with a note on the record. A
// failed push (or no remote) degrades to a warning note; a failed
// branch creation rolls the record back.
func (m *Manager) Create(title, description, createdBy string, readyToExecute bool) (*store.Sprint, error) {
	if !m.repo.IsRepo() {
		return nil, &git.VersionControlError{
			Op:     "status",
			Output: fmt.Sprintf("%s is not an initialized git repository", m.repo.WorkDir()),
		}
	}
	primary, err := m.repo.PrimaryBranch()
	if err != nil {
		return nil, err
	}

	sp, err := m.store.CreateSprint(title, description, createdBy, readyToExecute)
	if err != nil {
		return nil, err
	}

	branch := git.SprintBranch(sp.ID)
	note := ""
	if m.repo.BranchExists(branch) {
		// Name identity alone counts as reuse; the note records that
		// the branch predates the sprint.
		note = fmt.Sprintf("reusing existing branch %s", branch)
		m.logger.Info("reusing sprint branch", zap.Int64("sprint", sp.ID), zap.String("branch", branch))
	} else if err := m.repo.CreateBranch(branch, primary); err != nil {
		// Roll the record back; carry both failures if the rollback
		// itself fails.
		if delErr := m.store.DeleteSprint(sp.ID); delErr != nil {
			return nil, errors.Join(
				fmt.Errorf("provision branch %s: %w", branch, err),
				fmt.Errorf("rollback sprint #%d: %w", sp.ID, delErr),
			)
		}
		m.recorder.Record(history.Event{SprintID: sp.ID, Type: history.EventSprintRolledBack, Content: err.Error()})
		return nil, fmt.Errorf("provision branch %s: %w", branch, err)
	}

	if m.repo.HasRemote() {
		if err := m.repo.Push(branch); err != nil {
			note = fmt.Sprintf("warning: branch %s created locally but push failed: %v", branch, err)
			m.logger.Warn("sprint branch push failed", zap.Int64("sprint", sp.ID), zap.Error(err))
		}
	} else if note == "" {
		note = fmt.Sprintf("warning: no remote configured, branch %s is local only", branch)
	}

	fields := map[string]any{"git_branch": branch}
	if note != "" {
		fields["git_note"] = note
	}
	updated, err := m.store.UpdateSprintFields(sp.ID, fields)
	if err != nil {
		return nil, fmt.Errorf("record branch on sprint #%d: %w", sp.ID, err)
	}
	sp = updated

	m.recorder.Record(history.Event{SprintID: sp.ID, Type: history.EventSprintCreated, Content: branch})
	m.logger.Info("sprint created",
		zap.Int64("sprint", sp.ID),
		zap.String("branch", branch),
		zap.String("base", primary))
	return sp, nil
}

// UpdateStatus transitions a sprint's status only.
func (m *Manager) UpdateStatus(id int64, status store.SprintStatus) (*store.Sprint, error) {
	return m.store.UpdateSprintStatus(id, status)
}

// Update applies a partial field update. A status key is rejected by
// the store with a conflict error.
func (m *Manager) Update(id int64, fields map[string]any) (*store.Sprint, error) {
	return m.store.UpdateSprintFields(id, fields)
}

// Delete removes the sprint record. The branch is deliberately left
// alone: deleting history is the operator's call, not ours.
func (m *Manager) Delete(id int64) error {
	if err := m.store.DeleteSprint(id); err != nil {
		return err
	}
	m.recorder.Record(history.Event{SprintID: id, Type: history.EventSprintDeleted})
	return nil
}

// PendingTask describes a task still blocking release.
type PendingTask struct {
	ID     int64            `json:"id"`
	Title  string           `json:"title"`
	Status store.TaskStatus `json:"status"`
}

// Readiness is the release readiness report for a sprint.
type Readiness struct {
	Ready        bool          `json:"ready"`
	PendingTasks []PendingTask `json:"pending_tasks"`
	NextVersion  string        `json:"next_version,omitempty"`
}

// ReleaseReadiness reports whether every non-finalize task of the
// sprint is terminal. Only a ready sprint gets a freshly computed next
// version from the calculator.
func (m *Manager) ReleaseReadiness(id int64) (*Readiness, error) {
	if _, err := m.store.GetSprint(id); err != nil {
		return nil, err
	}

	tasks, err := m.store.ListTasks(store.TaskFilter{SprintID: id})
	if err != nil {
		return nil, err
	}

	var pending []PendingTask
	for _, t := range tasks {
		if t.IsFinalize {
			continue
		}
		if !t.Status.Terminal() {
			pending = append(pending, PendingTask{ID: t.ID, Title: t.Title, Status: t.Status})
		}
	}

	r := &Readiness{Ready: len(pending) == 0, PendingTasks: pending}
	if r.Ready {
		next, err := m.versions.Next()
		if err != nil {
			return nil, fmt.Errorf("compute next version: %w", err)
		}
		r.NextVersion = next
	}
	return r, nil
}

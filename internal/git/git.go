// Package git wraps the local git tool for sprint branch management.
// Sprint creation provisions a branch; the store record and the branch
// are kept consistent by the sprint lifecycle manager, which rolls the
// record back when provisioning fails.
package git

import (
	"fmt"
	"os/exec"
	"strings"
)

// VersionControlError reports a failed repository check or branch
// operation. Output carries the trimmed git stderr/stdout when present.
type VersionControlError struct {
	Op     string
	Output string
	Err    error
}

func (e *VersionControlError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("git %s: %s", e.Op, e.Output)
	}
	return fmt.Sprintf("git %s: %v", e.Op, e.Err)
}

func (e *VersionControlError) Unwrap() error { return e.Err }

// Repo provides branch operations on a local repository.
type Repo struct {
	workDir string
}

// New creates a Repo for the given working directory.
func New(workDir string) *Repo {
	return &Repo{workDir: workDir}
}

// WorkDir returns the repository path.
func (r *Repo) WorkDir() string { return r.workDir }

func (r *Repo) git(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = r.workDir
	out, err := cmd.CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

// IsRepo checks if the working directory is a git repository.
func (r *Repo) IsRepo() bool {
	out, err := r.git("rev-parse", "--is-inside-work-tree")
	return err == nil && out == "true"
}

// PrimaryBranch returns "main" or "master", whichever exists. A
// repository with neither is not usable for sprint provisioning.
func (r *Repo) PrimaryBranch() (string, error) {
	for _, name := range []string{"main", "master"} {
		if r.BranchExists(name) {
			return name, nil
		}
	}
	return "", &VersionControlError{
		Op:     "primary-branch",
		Output: "repository has no main or master branch",
	}
}

// BranchExists checks if a local branch exists.
func (r *Repo) BranchExists(branch string) bool {
	cmd := exec.Command("git", "rev-parse", "--verify", "refs/heads/"+branch)
	cmd.Dir = r.workDir
	return cmd.Run() == nil
}

// SprintBranch returns the branch name for a sprint. Format: sprint/{id}
func SprintBranch(sprintID int64) string {
	return fmt.Sprintf("sprint/%d", sprintID)
}

// CreateBranch creates a branch at the given base without switching the
// working tree.
func (r *Repo) CreateBranch(branch, base string) error {
	out, err := r.git("branch", branch, base)
	if err != nil {
		return &VersionControlError{Op: "branch " + branch, Output: out, Err: err}
	}
	return nil
}

// HasRemote reports whether the repository has any remote configured.
func (r *Repo) HasRemote() bool {
	out, err := r.git("remote")
	return err == nil && out != ""
}

// Push pushes a branch to origin, setting the upstream.
func (r *Repo) Push(branch string) error {
	out, err := r.git("push", "-u", "origin", branch)
	if err != nil {
		return &VersionControlError{Op: "push " + branch, Output: out, Err: err}
	}
	return nil
}

// DeleteBranch deletes a local branch.
func (r *Repo) DeleteBranch(branch string, force bool) error {
	flag := "-d"
	if force {
		flag = "-D"
	}
	out, err := r.git("branch", flag, branch)
	if err != nil {
		return &VersionControlError{Op: "delete " + branch, Output: out, Err: err}
	}
	return nil
}

// Tags returns all tag names, one per line in git's order.
func (r *Repo) Tags() ([]string, error) {
	out, err := r.git("tag", "--list")
	if err != nil {
		return nil, &VersionControlError{Op: "tag --list", Output: out, Err: err}
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

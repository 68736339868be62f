package dispatch

import (
	"fmt"
	"strings"

	"github.com/imkarma/squad/internal/store"
)

// buildPrompt assembles the full backend prompt for one task: who the
// agent is, what the task says, the sprint it belongs to, the titles of
// the tasks it depends on, and the agent's replayed memory.
func buildPrompt(task *store.Task, sp *store.Sprint, deps []store.Task, memoryCtx string) string {
	var parts []string

	parts = append(parts, roleHeader(task))
	parts = append(parts, taskSection(task))

	if sp != nil {
		parts = append(parts, sprintSection(sp))
	}
	if len(deps) > 0 {
		parts = append(parts, dependencySection(deps))
	}
	if memoryCtx != "" {
		parts = append(parts, memoryCtx)
	}

	parts = append(parts, instructions(task))

	return strings.Join(parts, "\n\n")
}

func roleHeader(task *store.Task) string {
	if task.TaskType == store.TypeBug {
		return fmt.Sprintf("# You are %s, fixing a bug\nReproduce the problem first, then fix it. Keep the change minimal.", task.Executor)
	}
	return fmt.Sprintf("# You are %s, working on a task\nImplement what the task describes. If something is unclear, say so explicitly.", task.Executor)
}

func taskSection(task *store.Task) string {
	var sb strings.Builder

	label := "Task"
	if task.TaskType == store.TypeBug {
		label = "Bug"
	}
	sb.WriteString(fmt.Sprintf("## %s\n", label))
	sb.WriteString(fmt.Sprintf("**#%d: %s**\n", task.ID, task.Title))

	if task.Description != "" {
		sb.WriteString(fmt.Sprintf("\n### Description\n%s\n", task.Description))
	}
	if task.RelatedTask != 0 {
		sb.WriteString(fmt.Sprintf("\nRelated task: #%d\n", task.RelatedTask))
	}

	return sb.String()
}

func sprintSection(sp *store.Sprint) string {
	var sb strings.Builder
	sb.WriteString("## Sprint (for context)\n")
	sb.WriteString(fmt.Sprintf("**Sprint #%d: %s**\n", sp.ID, sp.Title))
	if sp.Description != "" {
		sb.WriteString(sp.Description + "\n")
	}
	if sp.GitBranch != "" {
		sb.WriteString(fmt.Sprintf("Work happens on branch `%s`.\n", sp.GitBranch))
	}
	return sb.String()
}

func dependencySection(deps []store.Task) string {
	var sb strings.Builder
	sb.WriteString("## Depends On\n")
	sb.WriteString("This task builds on earlier work:\n\n")
	for _, d := range deps {
		sb.WriteString(fmt.Sprintf("- #%d: %s (%s)\n", d.ID, d.Title, d.Status))
	}
	return sb.String()
}

func instructions(task *store.Task) string {
	return fmt.Sprintf(
		"## Instructions\n"+
			"Work only inside the project directory you were started in.\n"+
			"When finished, end your output with one line:\n\n"+
			"SUMMARY: <one sentence describing what you did for task #%d>",
		task.ID)
}

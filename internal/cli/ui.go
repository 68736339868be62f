package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/imkarma/squad/internal/store"
)

var (
	clrHighlight = lipgloss.AdaptiveColor{Light: "#0F766E", Dark: "#2DD4BF"}
	clrGreen     = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	clrYellow    = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#F59E0B"}
	clrRed       = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#F87171"}
	clrBlue      = lipgloss.AdaptiveColor{Light: "#1D4ED8", Dark: "#60A5FA"}
	clrMagenta   = lipgloss.AdaptiveColor{Light: "#86198F", Dark: "#E879F9"}
	clrDim       = lipgloss.AdaptiveColor{Light: "#999999", Dark: "#555555"}
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(clrHighlight)
	dimStyle   = lipgloss.NewStyle().Foreground(clrDim)
	warnStyle  = lipgloss.NewStyle().Foreground(clrYellow)
	errStyle   = lipgloss.NewStyle().Foreground(clrRed)
	okStyle    = lipgloss.NewStyle().Foreground(clrGreen)

	statusStyles = map[store.TaskStatus]lipgloss.Style{
		store.StatusPending:    lipgloss.NewStyle().Foreground(clrDim),
		store.StatusInProgress: lipgloss.NewStyle().Foreground(clrBlue),
		store.StatusInReview:   lipgloss.NewStyle().Foreground(clrMagenta),
		store.StatusDone:       lipgloss.NewStyle().Foreground(clrGreen),
		store.StatusCancelled:  lipgloss.NewStyle().Foreground(clrRed),
	}
)

func renderStatus(status store.TaskStatus) string {
	if st, ok := statusStyles[status]; ok {
		return st.Render(string(status))
	}
	return string(status)
}

func renderTaskLine(t store.Task) string {
	line := fmt.Sprintf("#%-4d %-40.40s %s", t.ID, t.Title, renderStatus(t.Status))
	if t.Executor != "" {
		line += dimStyle.Render("  @" + t.Executor)
	}
	if t.TaskType == store.TypeBug {
		line += errStyle.Render("  [bug]")
	}
	return line
}

func renderSprintLine(sp store.Sprint) string {
	line := fmt.Sprintf("#%-4d %-40.40s %s", sp.ID, sp.Title, string(sp.Status))
	if sp.GitBranch != "" {
		line += dimStyle.Render("  " + sp.GitBranch)
	}
	if sp.ReadyToExecute {
		line += okStyle.Render("  ready")
	}
	return line
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imkarma/squad/internal/store"
)

var (
	backlogPriority   string
	backlogNextSprint bool
	backlogAuthor     string
)

var backlogCmd = &cobra.Command{
	Use:   "backlog",
	Short: "Manage the idea backlog",
	Long:  "Backlog items are unscheduled ideas. They share the task ID sequence\nbut never reach an agent until promoted to a task.",
}

var backlogAddCmd = &cobra.Command{
	Use:   "add [title]...",
	Short: "Add backlog items, one per argument",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runBacklogAdd,
}

var backlogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backlog items",
	RunE:  runBacklogList,
}

func init() {
	backlogAddCmd.Flags().StringVarP(&backlogPriority, "priority", "p", "", "Priority: high, medium, low")
	backlogAddCmd.Flags().BoolVar(&backlogNextSprint, "next-sprint", false, "Flag for the next sprint")
	backlogAddCmd.Flags().StringVar(&backlogAuthor, "by", "", "Author")

	backlogCmd.AddCommand(backlogAddCmd)
	backlogCmd.AddCommand(backlogListCmd)
}

func runBacklogAdd(cmd *cobra.Command, args []string) error {
	s, err := mustStore()
	if err != nil {
		return err
	}

	inputs := make([]store.BacklogInput, 0, len(args))
	for _, title := range args {
		inputs = append(inputs, store.BacklogInput{
			Title:      title,
			Priority:   backlogPriority,
			NextSprint: backlogNextSprint,
		})
	}

	items, err := s.CreateBacklogItems(inputs, backlogAuthor)
	if err != nil {
		return err
	}
	for _, it := range items {
		fmt.Printf("Added backlog item #%d: %s [%s]\n", it.ID, it.Title, it.Priority)
	}
	return nil
}

func runBacklogList(cmd *cobra.Command, args []string) error {
	s, err := mustStore()
	if err != nil {
		return err
	}

	items, err := s.ListBacklog()
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println(dimStyle.Render("Backlog is empty."))
		return nil
	}
	for _, it := range items {
		line := fmt.Sprintf("#%-4d %-40.40s %s", it.ID, it.Title, it.Priority)
		if it.NextSprint {
			line += okStyle.Render("  next-sprint")
		}
		fmt.Println(line)
	}
	return nil
}

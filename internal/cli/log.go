package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imkarma/squad/internal/history"
)

var logSprintID int64

var logCmd = &cobra.Command{
	Use:   "log [task-id]",
	Short: "Show the event trail for a task or sprint",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLog,
}

func init() {
	logCmd.Flags().Int64Var(&logSprintID, "sprint", 0, "Show events for a sprint instead")
}

func runLog(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	rec := openRecorder(logger)
	if rec == nil {
		return fmt.Errorf("history unavailable")
	}
	defer rec.Close()

	var (
		events []history.Event
		err    error
	)
	switch {
	case logSprintID > 0:
		events, err = rec.ListBySprint(logSprintID)
	case len(args) == 1:
		var id int64
		if id, err = parseID(args[0]); err != nil {
			return err
		}
		events, err = rec.ListByTask(id)
	default:
		return fmt.Errorf("pass a task id or --sprint")
	}
	if err != nil {
		return err
	}

	if len(events) == 0 {
		fmt.Println(dimStyle.Render("No events."))
		return nil
	}
	for _, e := range events {
		line := fmt.Sprintf("%s  %-16s", e.Timestamp.Format("2006-01-02 15:04:05"), e.Type)
		if e.Agent != "" {
			line += " @" + e.Agent
		}
		if e.Content != "" {
			line += "  " + e.Content
		}
		fmt.Println(line)
	}
	return nil
}

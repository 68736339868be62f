// Package cli wires the squad commands. Commands are thin: they open
// the stores, call into the internal packages and print.
package cli

import (
	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "squad",
	Short: "Task orchestration for AI agents",
	Long:  "squad — a CLI that runs a team of AI agents through tasks and sprints.\nYou plan the work. Agents execute it.",
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose internal logging")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(bugCmd)
	rootCmd.AddCommand(backlogCmd)
	rootCmd.AddCommand(sprintCmd)
	rootCmd.AddCommand(dispatchCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(memoryCmd)
}

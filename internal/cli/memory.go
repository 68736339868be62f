package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var memoryTrimMax int

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect and maintain agent memory logs",
}

var memoryShowCmd = &cobra.Command{
	Use:   "show [agent]",
	Short: "Print an agent's memory as injected into prompts",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemoryShow,
}

var memoryTrimCmd = &cobra.Command{
	Use:   "trim [agent]",
	Short: "Trim an agent's work log to the newest entries",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemoryTrim,
}

func init() {
	memoryTrimCmd.Flags().IntVar(&memoryTrimMax, "max", 0, "Entries to keep (defaults to the configured limit)")

	memoryCmd.AddCommand(memoryShowCmd)
	memoryCmd.AddCommand(memoryTrimCmd)
}

func runMemoryShow(cmd *cobra.Command, args []string) error {
	cfg, err := mustConfig()
	if err != nil {
		return err
	}

	ctx := openMemory(cfg, newLogger()).Build(args[0])
	if ctx == "" {
		fmt.Println(dimStyle.Render("No memory for " + args[0] + "."))
		return nil
	}
	fmt.Println(ctx)
	return nil
}

func runMemoryTrim(cmd *cobra.Command, args []string) error {
	cfg, err := mustConfig()
	if err != nil {
		return err
	}

	max := memoryTrimMax
	if max <= 0 {
		max = cfg.MemoryLimit
	}
	if !openMemory(cfg, newLogger()).Trim(args[0], max) {
		return fmt.Errorf("trim memory for %s", args[0])
	}
	fmt.Printf("Trimmed %s's work log to %d entries\n", args[0], max)
	return nil
}

package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/imkarma/squad/internal/config"
	"github.com/imkarma/squad/internal/history"
	"github.com/imkarma/squad/internal/registry"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize squad in the current directory",
	Long:  "Creates a .squad/ directory with default config, an empty employee roster and the history database.",
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(squadDirName); err == nil {
		return fmt.Errorf("squad already initialized in this directory (.squad/ exists)")
	}

	memDir := filepath.Join(squadDirName, "memory")
	if err := os.MkdirAll(memDir, 0755); err != nil {
		return fmt.Errorf("create .squad/memory: %w", err)
	}

	if err := config.Save(squadPath("config.yaml"), config.Default()); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	if err := registry.WriteEmpty(squadPath("employees.json")); err != nil {
		return fmt.Errorf("write employee roster: %w", err)
	}

	// Opening the recorder creates the database and runs migrations.
	rec, err := history.Open(squadPath("history.db"))
	if err != nil {
		return fmt.Errorf("create history database: %w", err)
	}
	rec.Close()

	fmt.Println("Initialized squad in .squad/")
	fmt.Println("")
	fmt.Println("Next steps:")
	fmt.Println("  1. Edit .squad/config.yaml to configure the execution backend")
	fmt.Println("  2. Add agents to .squad/employees.json")
	fmt.Println("  3. Run: squad task create \"your first task\" --executor <agent>")

	return nil
}

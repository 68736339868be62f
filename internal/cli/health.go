package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imkarma/squad/internal/agent"
	"github.com/imkarma/squad/internal/dispatch"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Report liveness and backend reachability",
	Long:  "Prints a health payload. The command itself always succeeds;\nbackend reachability is advisory detail inside the payload.",
	RunE:  runHealth,
}

func runHealth(cmd *cobra.Command, args []string) error {
	cfg, err := mustConfig()
	if err != nil {
		return err
	}
	runner, err := agent.NewRunner(cfg.Backend)
	if err != nil {
		return err
	}

	gate := dispatch.NewGate(runner, newLogger(), 0)
	st := gate.Health(cmd.Context(), runner.Mode())

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

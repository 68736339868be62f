package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/imkarma/squad/internal/agent"
	"github.com/imkarma/squad/internal/dispatch"
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch [task-id]",
	Short: "Run a task on its executor's backend",
	Long: "Sends the task to its executor. Dispatches for the same agent are\n" +
		"serialized; different agents run in parallel. An interrupted run\n" +
		"leaves the task in_progress with the failure in its result.",
	Args: cobra.ExactArgs(1),
	RunE: runDispatch,
}

func runDispatch(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	s, err := mustStore()
	if err != nil {
		return err
	}
	cfg, err := mustConfig()
	if err != nil {
		return err
	}

	runner, err := agent.NewRunner(cfg.Backend)
	if err != nil {
		return err
	}

	logger := newLogger()
	rec := openRecorder(logger)
	if rec != nil {
		defer rec.Close()
	}

	ctx := cmd.Context()

	// A cold backend gets bounded retries. Exhaustion only warns; the
	// dispatch itself decides whether the backend really is down.
	gate := dispatch.NewGate(runner, logger, 0)
	if !gate.AwaitReady(ctx, cfg.ReadinessRetries) {
		fmt.Println(warnStyle.Render("backend did not answer the readiness probe, dispatching anyway"))
	}

	sched := dispatch.NewScheduler(dispatch.Options{
		Store:         s,
		Registry:      openRegistry(),
		Runner:        runner,
		Memory:        openMemory(cfg, logger),
		Recorder:      rec,
		Logger:        logger,
		ActiveProject: cfg.ActiveProject,
		TimeoutSec:    cfg.DispatchTimeoutSec,
	})

	out, err := sched.Dispatch(ctx, id)
	if err != nil {
		return err
	}

	if out.Interrupted {
		fmt.Println(errStyle.Render(fmt.Sprintf("Task #%d interrupted: %s", out.TaskID, out.Result)))
		return nil
	}
	fmt.Println(okStyle.Render(fmt.Sprintf("Task #%d finished in %s", out.TaskID, out.Elapsed.Round(time.Second))))
	fmt.Printf("Result: %s\n", out.Result)
	return nil
}

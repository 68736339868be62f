package agent

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/imkarma/squad/internal/config"
)

// CLIRunner spawns the external chat tool as a fresh session per
// dispatch and passes the prompt as the final argument.
type CLIRunner struct {
	cfg config.Backend
}

// NewCLIRunner creates a runner that spawns CLI processes.
func NewCLIRunner(cfg config.Backend) *CLIRunner {
	return &CLIRunner{cfg: cfg}
}

func (r *CLIRunner) Mode() string { return "cli" }

// Run spawns the CLI tool with the prompt.
//
// The command becomes: cmd + configured args + ["--model", tier] +
// prompt. The process runs in the task's resolved working directory so
// it sees the right project files.
func (r *CLIRunner) Run(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	args := make([]string, len(r.cfg.Args))
	copy(args, r.cfg.Args)
	if req.Model != "" {
		args = append(args, "--model", req.Model)
	}
	args = append(args, req.Prompt)

	if req.TimeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.TimeoutSec)*time.Second)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.cfg.Cmd, args...)
	cmd.Dir = req.WorkDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	duration := time.Since(start).Seconds()

	resp := &Response{
		Output:   stdout.String(),
		Duration: duration,
	}

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return resp, fmt.Errorf("backend timed out after %ds: %w", req.TimeoutSec, context.DeadlineExceeded)
		}

		if exitErr, ok := err.(*exec.ExitError); ok {
			resp.ExitCode = exitErr.ExitCode()
		} else {
			resp.ExitCode = -1
		}

		stderrStr := strings.TrimSpace(stderr.String())
		if stderrStr != "" {
			return resp, fmt.Errorf("backend exited with code %d: %s", resp.ExitCode, stderrStr)
		}
		return resp, fmt.Errorf("backend exited with code %d: %w", resp.ExitCode, err)
	}

	resp.ExitCode = 0
	return resp, nil
}

// Probe checks that the configured command exists in PATH.
func (r *CLIRunner) Probe(ctx context.Context) error {
	if _, err := exec.LookPath(r.cfg.Cmd); err != nil {
		return fmt.Errorf("backend command %q not found: %w", r.cfg.Cmd, err)
	}
	return nil
}

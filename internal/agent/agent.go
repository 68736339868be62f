// Package agent defines the execution backend interface and provides
// concrete adapters for the two interchangeable transports: a
// session-based CLI tool spawned per dispatch, and a long-lived HTTP
// request/response service.
package agent

import (
	"context"
	"fmt"

	"github.com/imkarma/squad/internal/config"
)

// Request contains everything the backend needs to execute one task.
type Request struct {
	TaskID     int64  // task ID for tracking
	Agent      string // employee name the work runs under
	Model      string // model tier from the employee registry
	Prompt     string // full prompt with task context and memory
	WorkDir    string // resolved project path
	TimeoutSec int    // max execution time
}

// Response is what comes back from the backend.
type Response struct {
	Output   string  // backend's text output
	ExitCode int     // 0 = success
	Duration float64 // execution time in seconds
}

// Runner is the interface both backend adapters implement.
type Runner interface {
	// Run executes one request and returns the response.
	Run(ctx context.Context, req Request) (*Response, error)

	// Probe checks backend reachability without doing work. Used by
	// the readiness gate at startup and the health endpoint on demand.
	Probe(ctx context.Context) error

	// Mode returns "cli" or "api".
	Mode() string
}

// NewRunner creates the appropriate runner for the configured backend.
func NewRunner(cfg config.Backend) (Runner, error) {
	switch cfg.Mode {
	case "cli":
		return NewCLIRunner(cfg), nil
	case "api":
		return NewAPIRunner(cfg)
	default:
		return nil, fmt.Errorf("unknown backend mode: %s", cfg.Mode)
	}
}

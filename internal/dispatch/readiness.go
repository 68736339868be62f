package dispatch

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Prober checks that the execution backend answers at all. agent.Runner
// satisfies it.
type Prober interface {
	Probe(ctx context.Context) error
}

// DefaultReadinessRetries bounds the startup probe loop when the caller
// passes a non-positive count.
const DefaultReadinessRetries = 10

// Gate waits for the backend to come up before dispatching starts. It
// never returns an error: an unreachable backend degrades to a single
// high-severity log line and a false result, and dispatching proceeds
// at the caller's risk.
type Gate struct {
	prober Prober
	logger *zap.Logger

	// delay between probe attempts. Zero means the package default;
	// tests shrink it.
	delay time.Duration
}

// NewGate creates a Gate over a backend prober.
func NewGate(prober Prober, logger *zap.Logger, delay time.Duration) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	if delay == 0 {
		delay = 2 * time.Second
	}
	return &Gate{prober: prober, logger: logger, delay: delay}
}

// AwaitReady probes the backend up to maxRetries times and reports
// whether it ever answered. Exhaustion logs once at error level; the
// caller keeps running either way.
func (g *Gate) AwaitReady(ctx context.Context, maxRetries int) bool {
	if maxRetries < 1 {
		maxRetries = DefaultReadinessRetries
	}
	for attempt := 1; attempt <= maxRetries; attempt++ {
		err := g.prober.Probe(ctx)
		if err == nil {
			g.logger.Info("backend ready", zap.Int("attempt", attempt))
			return true
		}
		g.logger.Debug("backend not ready",
			zap.Int("attempt", attempt),
			zap.Int("max", maxRetries),
			zap.Error(err))
		if attempt == maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			g.logger.Error("backend readiness aborted, tasks may fail", zap.Error(ctx.Err()))
			return false
		case <-time.After(g.delay):
		}
	}
	g.logger.Error("backend not ready, tasks may fail", zap.Int("retries", maxRetries))
	return false
}

// HealthStatus is the liveness payload. Reporting is unconditional:
// the process answering at all is the signal.
type HealthStatus struct {
	OK        bool      `json:"ok"`
	Backend   string    `json:"backend"`
	Reachable bool      `json:"backend_reachable"`
	CheckedAt time.Time `json:"checked_at"`
}

// Health reports process liveness. It always succeeds; backend
// reachability is advisory detail inside the payload.
func (g *Gate) Health(ctx context.Context, backendMode string) HealthStatus {
	reachable := g.prober.Probe(ctx) == nil
	return HealthStatus{
		OK:        true,
		Backend:   backendMode,
		Reachable: reachable,
		CheckedAt: time.Now().UTC(),
	}
}

package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// flakyProber fails a fixed number of probes before answering.
type flakyProber struct {
	failures int
	attempts int
}

func (p *flakyProber) Probe(ctx context.Context) error {
	p.attempts++
	if p.attempts <= p.failures {
		return errors.New("not up yet")
	}
	return nil
}

func TestAwaitReadyEventually(t *testing.T) {
	p := &flakyProber{failures: 2}
	g := NewGate(p, nil, time.Millisecond)

	if !g.AwaitReady(context.Background(), 10) {
		t.Fatal("expected backend to come up")
	}
	if p.attempts != 3 {
		t.Errorf("attempts = %d, want 3", p.attempts)
	}
}

func TestAwaitReadyExhausted(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	p := &flakyProber{failures: 100}
	g := NewGate(p, zap.New(core), time.Millisecond)

	if g.AwaitReady(context.Background(), 5) {
		t.Fatal("expected exhaustion")
	}
	if p.attempts != 5 {
		t.Errorf("attempts = %d, want exactly 5", p.attempts)
	}

	errLogs := logs.FilterLevelExact(zap.ErrorLevel).All()
	if len(errLogs) != 1 {
		t.Fatalf("expected exactly one error log, got %d", len(errLogs))
	}
	if got := errLogs[0].Message; got != "backend not ready, tasks may fail" {
		t.Errorf("error log = %q", got)
	}
}

func TestAwaitReadyDefaultsRetries(t *testing.T) {
	p := &flakyProber{failures: 100}
	g := NewGate(p, nil, time.Millisecond)

	if g.AwaitReady(context.Background(), 0) {
		t.Fatal("expected exhaustion")
	}
	if p.attempts != DefaultReadinessRetries {
		t.Errorf("attempts = %d, want %d", p.attempts, DefaultReadinessRetries)
	}
}

func TestHealthAlwaysSucceeds(t *testing.T) {
	p := &flakyProber{failures: 100}
	g := NewGate(p, nil, time.Millisecond)

	st := g.Health(context.Background(), "cli")
	if !st.OK {
		t.Error("health must report ok regardless of the backend")
	}
	if st.Reachable {
		t.Error("backend should report unreachable")
	}
	if st.Backend != "cli" {
		t.Errorf("backend = %q", st.Backend)
	}
	if st.CheckedAt.IsZero() {
		t.Error("expected a timestamp")
	}
}

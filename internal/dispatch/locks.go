package dispatch

import (
	"sync"

	"golang.org/x/sync/semaphore"
)

// lockTable owns one binary exclusivity token per agent name. Tokens
// are created lazily on first reference and live for the process
// lifetime. Waiters on a busy token are served in acquire order.
type lockTable struct {
	mu   sync.Mutex
	sems map[string]*semaphore.Weighted
}

func newLockTable() *lockTable {
	return &lockTable{sems: make(map[string]*semaphore.Weighted)}
}

// get returns the agent's token, creating it on first use.
func (t *lockTable) get(agentName string) *semaphore.Weighted {
	t.mu.Lock()
	defer t.mu.Unlock()
	sem, ok := t.sems[agentName]
	if !ok {
		sem = semaphore.NewWeighted(1)
		t.sems[agentName] = sem
	}
	return sem
}

// free reports whether the agent's token is currently available. An
// agent never dispatched counts as free.
func (t *lockTable) free(agentName string) bool {
	sem := t.get(agentName)
	if !sem.TryAcquire(1) {
		return false
	}
	sem.Release(1)
	return true
}

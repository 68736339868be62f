package dispatch

import (
	"context"
	"testing"
	"time"
)

func TestLockTableLazyTokens(t *testing.T) {
	locks := newLockTable()

	if !locks.free("alice") {
		t.Error("never-dispatched agent must count as free")
	}

	sem := locks.get("alice")
	if sem != locks.get("alice") {
		t.Error("expected the same token on repeated lookup")
	}
	if err := sem.Acquire(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	if locks.free("alice") {
		t.Error("held token reported free")
	}
	sem.Release(1)
	if !locks.free("alice") {
		t.Error("released token reported held")
	}
}

func TestBusyTokenWaitersServedInArrivalOrder(t *testing.T) {
	locks := newLockTable()
	sem := locks.get("alice")
	ctx := context.Background()

	if err := sem.Acquire(ctx, 1); err != nil {
		t.Fatal(err)
	}

	order := make(chan int, 2)
	wait := func(n int) {
		if err := sem.Acquire(ctx, 1); err != nil {
			t.Errorf("waiter %d: %v", n, err)
			return
		}
		order <- n
		sem.Release(1)
	}

	go wait(1)
	// The second waiter must queue after the first; the pause lets the
	// first one block on the held token before the second arrives.
	time.Sleep(50 * time.Millisecond)
	go wait(2)
	time.Sleep(50 * time.Millisecond)

	sem.Release(1)

	if first := <-order; first != 1 {
		t.Errorf("first acquisition by waiter %d, want 1", first)
	}
	if second := <-order; second != 2 {
		t.Errorf("second acquisition by waiter %d, want 2", second)
	}
}

package tasks

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestSpawnRunsDetached(t *testing.T) {
	t.Parallel()

	r := NewRunner(Config{Timeout: time.Second})

	var ran atomic.Bool
	r.Spawn("test-task", func(ctx context.Context) {
		ran.Store(true)
	})
	r.Wait()

	if !ran.Load() {
		t.Fatal("task did not run")
	}
}

func TestSpawnRecoversPanics(t *testing.T) {
	t.Parallel()

	r := NewRunner(Config{Timeout: time.Second})

	r.Spawn("panicking-task", func(ctx context.Context) {
		panic("boom")
	})
	// Wait() returning proves the panic was contained.
	r.Wait()
}

func TestSpawnContextCarriesTimeout(t *testing.T) {
	t.Parallel()

	r := NewRunner(Config{Timeout: 50 * time.Millisecond})

	var deadlineSet atomic.Bool
	r.Spawn("deadline-task", func(ctx context.Context) {
		_, ok := ctx.Deadline()
		deadlineSet.Store(ok)
	})
	r.Wait()

	if !deadlineSet.Load() {
		t.Fatal("task context must carry the configured timeout")
	}
}

func TestZeroTimeoutDefaults(t *testing.T) {
	t.Parallel()

	r := NewRunner(Config{})
	if r.timeout != 5*time.Minute {
		t.Fatalf("timeout = %v, want 5m default", r.timeout)
	}
}

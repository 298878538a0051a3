// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bureau-foundation/sensor-server/lib/testutil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPoolRunsSubmittedJobs(t *testing.T) {
	pool := New(Config{Workers: 4, Logger: testLogger()})
	defer pool.Drain()

	var count atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		pool.Submit(Func(func() {
			defer wg.Done()
			count.Add(1)
		}))
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	testutil.RequireClosed(t, done, 5*time.Second, "waiting for 100 jobs")

	if got := count.Load(); got != 100 {
		t.Errorf("executed jobs = %d, want 100", got)
	}
}

func TestPoolDefaultWorkerCount(t *testing.T) {
	pool := New(Config{Logger: testLogger()})
	defer pool.Drain()
	if pool.Workers() != DefaultWorkers {
		t.Errorf("Workers() = %d, want %d", pool.Workers(), DefaultWorkers)
	}
}

func TestPoolSurvivesPanickingJob(t *testing.T) {
	pool := New(Config{Workers: 1, Logger: testLogger()})
	defer pool.Drain()

	pool.Submit(Func(func() { panic("boom") }))

	// With a single worker, the follow-up job can only run if the
	// worker recovered from the panic.
	ran := make(chan struct{})
	pool.Submit(Func(func() { close(ran) }))
	testutil.RequireClosed(t, ran, 5*time.Second, "job after panic")

	if stats := pool.Stats(); stats.Panicked != 1 {
		t.Errorf("Stats().Panicked = %d, want 1", stats.Panicked)
	}
	if pool.Workers() != 1 {
		t.Errorf("Workers() = %d after panic, want 1", pool.Workers())
	}
}

func TestNilSentinelStopsOneWorker(t *testing.T) {
	pool := New(Config{Workers: 3, Logger: testLogger()})
	defer pool.Drain()

	pool.Submit(nil)

	testutil.RequireEventually(t, func() bool { return pool.Workers() == 2 }, 5*time.Second,
		"one worker exiting after a sentinel")
}

func TestDrainRunsQueuedJobsFirst(t *testing.T) {
	pool := New(Config{Workers: 1, Logger: testLogger()})

	release := make(chan struct{})
	pool.Submit(Func(func() { <-release }))

	var ran atomic.Bool
	pool.Submit(Func(func() { ran.Store(true) }))

	drained := make(chan struct{})
	go func() {
		pool.Drain()
		close(drained)
	}()
	close(release)
	testutil.RequireClosed(t, drained, 5*time.Second, "drain")

	if !ran.Load() {
		t.Error("job queued before Drain did not run")
	}
	if pool.Workers() != 0 {
		t.Errorf("Workers() = %d after Drain, want 0", pool.Workers())
	}
	if err := pool.TrySubmit(Func(func() {})); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("TrySubmit after Drain = %v, want ErrPoolClosed", err)
	}

	// A second Drain is a no-op.
	pool.Drain()
}

func TestFutureReturnsValue(t *testing.T) {
	pool := New(Config{Workers: 2, Logger: testLogger()})
	defer pool.Drain()

	future := Go(pool, func() (int, error) { return 42, nil })
	value, err := future.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if value != 42 {
		t.Errorf("value = %d, want 42", value)
	}
}

func TestFuturePropagatesError(t *testing.T) {
	pool := New(Config{Workers: 1, Logger: testLogger()})
	defer pool.Drain()

	sentinel := errors.New("read failed")
	future := Go(pool, func() (string, error) { return "", sentinel })
	if _, err := future.Wait(context.Background()); !errors.Is(err, sentinel) {
		t.Errorf("Wait error = %v, want %v", err, sentinel)
	}
}

func TestFutureFailsOnPanic(t *testing.T) {
	pool := New(Config{Workers: 1, Logger: testLogger()})
	defer pool.Drain()

	future := Go(pool, func() (int, error) { panic("counter read exploded") })
	testutil.RequireClosed(t, future.Done(), 5*time.Second, "panicking future")

	_, err := future.Wait(context.Background())
	if !errors.Is(err, ErrJobPanicked) {
		t.Fatalf("Wait error = %v, want ErrJobPanicked", err)
	}

	// The pool still serves futures afterwards.
	next := Go(pool, func() (int, error) { return 7, nil })
	value, err := next.Wait(context.Background())
	if err != nil || value != 7 {
		t.Errorf("follow-up future = (%d, %v), want (7, nil)", value, err)
	}
}

func TestFutureWaitHonorsContext(t *testing.T) {
	pool := New(Config{Workers: 1, Logger: testLogger()})
	release := make(chan struct{})
	defer func() {
		close(release)
		pool.Drain()
	}()

	future := Go(pool, func() (int, error) {
		<-release
		return 1, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := future.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait error = %v, want context.Canceled", err)
	}
}

func TestFutureOnDrainedPool(t *testing.T) {
	pool := New(Config{Workers: 1, Logger: testLogger()})
	pool.Drain()

	future := Go(pool, func() (int, error) { return 1, nil })
	if _, err := future.Wait(context.Background()); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Wait error = %v, want ErrPoolClosed", err)
	}
}

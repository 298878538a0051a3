// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package executor

import (
	"context"
	"errors"
	"fmt"
)

// ErrJobPanicked is wrapped into a Future's error when its function
// panicked.
var ErrJobPanicked = errors.New("executor: job panicked")

// Future is a one-shot handle to the result of a function running on
// a Pool. The result is written exactly once; Done is closed after it.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Go submits fn to pool and returns a Future for its result. If the
// pool is already drained, the Future completes immediately with
// ErrPoolClosed.
func Go[T any](pool *Pool, fn func() (T, error)) *Future[T] {
	future := &Future[T]{done: make(chan struct{})}
	job := &futureJob[T]{fn: fn, future: future}
	if err := pool.TrySubmit(job); err != nil {
		var zero T
		future.complete(zero, err)
	}
	return future
}

// Done returns a channel closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the function has returned (or panicked) and
// yields its result. If ctx is done first, Wait returns ctx.Err();
// the job itself keeps running.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (f *Future[T]) complete(value T, err error) {
	f.value = value
	f.err = err
	close(f.done)
}

type futureJob[T any] struct {
	fn     func() (T, error)
	future *Future[T]
}

// Execute runs the function and publishes its result. A panic fails
// the future and is re-raised so the worker logs it like any other
// failed job.
func (j *futureJob[T]) Execute() {
	completed := false
	defer func() {
		if completed {
			return
		}
		recovered := recover()
		var zero T
		j.future.complete(zero, fmt.Errorf("%w: %v", ErrJobPanicked, recovered))
		panic(recovered)
	}()
	value, err := j.fn()
	completed = true
	j.future.complete(value, err)
}

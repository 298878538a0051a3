// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package executor

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// DefaultWorkers is the worker count used when Config.Workers is zero.
const DefaultWorkers = 64

// ErrPoolClosed is returned by TrySubmit after Drain has started.
var ErrPoolClosed = errors.New("executor: pool is drained")

// Job is a unit of work executed by exactly one worker.
type Job interface {
	Execute()
}

// Func adapts a plain function into a Job.
type Func func()

// Execute calls f.
func (f Func) Execute() { f() }

// Config configures a Pool.
type Config struct {
	// Name identifies the pool in log records. Defaults to "executor".
	Name string

	// Workers is the number of worker goroutines. Defaults to
	// DefaultWorkers if zero.
	Workers int

	// Logger receives panic reports from failed jobs. Required.
	Logger *slog.Logger
}

// Pool is a fixed set of workers draining a shared job queue.
type Pool struct {
	name   string
	logger *slog.Logger
	queue  *workQueue

	// live counts workers that have not yet consumed a sentinel.
	live    atomic.Int64
	workers sync.WaitGroup

	// closed is set once Drain begins. Submissions after that point
	// are rejected so no job can land behind the sentinels.
	closed    atomic.Bool
	drainOnce sync.Once

	panics    atomic.Uint64
	completed atomic.Uint64
}

// New starts a pool with the configured number of workers.
func New(config Config) *Pool {
	if config.Logger == nil {
		panic("executor.Pool: Logger is required")
	}
	if config.Workers < 0 {
		panic(fmt.Sprintf("executor.Pool: negative worker count %d", config.Workers))
	}
	workers := config.Workers
	if workers == 0 {
		workers = DefaultWorkers
	}
	name := config.Name
	if name == "" {
		name = "executor"
	}

	pool := &Pool{
		name:   name,
		logger: config.Logger.With("pool", name),
		queue:  newWorkQueue(),
	}
	pool.live.Store(int64(workers))
	pool.workers.Add(workers)
	for index := 0; index < workers; index++ {
		go pool.work(index)
	}
	return pool
}

// Submit enqueues job and returns immediately. A nil job is the
// shutdown sentinel and stops exactly one worker. Non-nil jobs
// submitted after Drain are dropped and logged; use TrySubmit to
// observe that case.
func (p *Pool) Submit(job Job) {
	if job == nil {
		p.queue.push(nil)
		return
	}
	if err := p.TrySubmit(job); err != nil {
		p.logger.Warn("dropping job submitted to drained pool")
	}
}

// TrySubmit enqueues a non-nil job, or returns ErrPoolClosed if the
// pool is draining.
func (p *Pool) TrySubmit(job Job) error {
	if job == nil {
		return errors.New("executor: TrySubmit with nil job")
	}
	if p.closed.Load() {
		return ErrPoolClosed
	}
	p.queue.push(job)
	return nil
}

// Drain stops the pool: it enqueues one sentinel per live worker and
// waits until every worker has exited. Jobs queued before Drain run
// to completion first. Safe to call more than once.
func (p *Pool) Drain() {
	p.drainOnce.Do(func() {
		p.closed.Store(true)
		for count := p.live.Load(); count > 0; count-- {
			p.queue.push(nil)
		}
	})
	p.workers.Wait()
}

// Workers returns the number of workers that have not exited.
func (p *Pool) Workers() int {
	return int(p.live.Load())
}

// Pending returns the number of queued jobs not yet picked up.
func (p *Pool) Pending() int {
	return p.queue.length()
}

// Stats reports lifetime job counters.
type Stats struct {
	Completed uint64
	Panicked  uint64
}

// Stats returns the number of jobs completed normally and the number
// that panicked.
func (p *Pool) Stats() Stats {
	return Stats{Completed: p.completed.Load(), Panicked: p.panics.Load()}
}

func (p *Pool) work(index int) {
	defer p.workers.Done()
	for {
		job := p.queue.retrieve()
		if job == nil {
			p.live.Add(-1)
			p.logger.Debug("worker exiting", "worker", index)
			return
		}
		p.run(index, job)
	}
}

// run executes one job, recovering any panic so the worker survives.
func (p *Pool) run(index int, job Job) {
	defer func() {
		if recovered := recover(); recovered != nil {
			p.panics.Add(1)
			p.logger.Error("job panicked",
				"worker", index,
				"panic", fmt.Sprint(recovered),
				"stack", string(debug.Stack()),
			)
		}
	}()
	job.Execute()
	p.completed.Add(1)
}

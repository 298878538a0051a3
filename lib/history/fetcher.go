// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/sensor-server/lib/aggregator"
	"github.com/bureau-foundation/sensor-server/lib/clock"
	"github.com/bureau-foundation/sensor-server/lib/topology"
)

// DefaultInterval is the sampling period.
const DefaultInterval = time.Second

// Dispatcher produces one snapshot of a topology.
type Dispatcher interface {
	Dispatch(ctx context.Context, root *topology.SystemRoot) (*aggregator.Snapshot, error)
}

// FetcherConfig configures a Fetcher.
type FetcherConfig struct {
	History    *History
	Dispatcher Dispatcher
	Root       *topology.SystemRoot

	// Interval is the sampling period. Samples are taken on multiples
	// of Interval since the Unix epoch. Defaults to DefaultInterval.
	Interval time.Duration

	// Clock defaults to clock.Real().
	Clock clock.Clock

	Logger *slog.Logger
}

// Fetcher is the executor job that feeds a History. It starts paused;
// call Start before or after submitting it.
type Fetcher struct {
	history    *History
	dispatcher Dispatcher
	root       *topology.SystemRoot
	interval   time.Duration
	clock      clock.Clock
	logger     *slog.Logger

	running atomic.Bool
	exit    atomic.Bool

	// ctx is cancelled by Stop so an in-flight dispatch and the
	// interval wait both end promptly.
	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
	done     chan struct{}
}

// NewFetcher returns a paused Fetcher. History, Dispatcher, Root and
// Logger are required.
func NewFetcher(config FetcherConfig) *Fetcher {
	if config.History == nil || config.Dispatcher == nil || config.Root == nil {
		panic("history.NewFetcher: History, Dispatcher and Root are required")
	}
	if config.Logger == nil {
		panic("history.NewFetcher: Logger is required")
	}
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Fetcher{
		history:    config.History,
		dispatcher: config.Dispatcher,
		root:       config.Root,
		interval:   config.Interval,
		clock:      config.Clock,
		logger:     config.Logger,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Start resumes sampling.
func (f *Fetcher) Start() { f.running.Store(true) }

// Pause suspends sampling. The loop keeps waking on each interval but
// takes no samples.
func (f *Fetcher) Pause() { f.running.Store(false) }

// Running reports whether the fetcher is sampling.
func (f *Fetcher) Running() bool { return f.running.Load() }

// Stop asks the loop to exit. It returns immediately; wait on Done
// before tearing down anything the loop uses.
func (f *Fetcher) Stop() {
	f.stopOnce.Do(func() {
		f.exit.Store(true)
		f.cancel()
	})
}

// Done is closed once the loop has exited.
func (f *Fetcher) Done() <-chan struct{} { return f.done }

// Execute runs the sampling loop until Stop.
func (f *Fetcher) Execute() {
	defer close(f.done)
	f.logger.Info("fetcher started", "interval", f.interval)
	for !f.exit.Load() {
		if f.running.Load() {
			f.sample()
		}
		select {
		case <-f.clock.After(clock.UntilNext(f.clock.Now(), f.interval)):
		case <-f.ctx.Done():
		}
	}
	f.logger.Info("fetcher stopped")
}

func (f *Fetcher) sample() {
	start := f.clock.Now()
	snapshot, err := f.dispatcher.Dispatch(f.ctx, f.root)
	if err != nil {
		if f.ctx.Err() == nil {
			f.logger.Error("dispatch failed", "error", err)
		}
		return
	}
	f.history.Push(snapshot)
	f.logger.Debug("sample taken",
		"duration", f.clock.Now().Sub(start),
		"retained", f.history.Len(),
	)
}

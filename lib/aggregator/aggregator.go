// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package aggregator

import (
	"context"
	"log/slog"
	"time"

	"github.com/bureau-foundation/sensor-server/lib/clock"
	"github.com/bureau-foundation/sensor-server/lib/counterstate"
	"github.com/bureau-foundation/sensor-server/lib/executor"
	"github.com/bureau-foundation/sensor-server/lib/topology"
)

// SystemReader reads the machine-wide counters that belong to no
// single socket.
type SystemReader interface {
	ReadLinks(ctx context.Context) ([]counterstate.Link, error)
	ReadAccelerators(ctx context.Context) ([]counterstate.Accelerator, error)
}

// Snapshot is one timestamped reading of the whole topology. It is
// never modified after Dispatch returns it.
type Snapshot struct {
	DispatchedAt time.Time

	// Processors is indexed by OS id and has ProcessorCount entries.
	// Offline processors hold zero states.
	Processors []counterstate.Basic

	// Sockets is indexed by topology.Socket.Index.
	Sockets []counterstate.Socket

	System counterstate.System
}

// Config configures an Aggregator.
type Config struct {
	// Pool runs the per-domain reads. Required.
	Pool *executor.Pool

	// System reads links and accelerators. Optional; without it the
	// system total carries neither.
	System SystemReader

	// Clock timestamps snapshots. Defaults to clock.Real().
	Clock clock.Clock

	// Logger receives failed-read warnings. Required.
	Logger *slog.Logger
}

// Aggregator produces snapshots. It holds no per-dispatch state and is
// safe for concurrent use.
type Aggregator struct {
	pool      *executor.Pool
	system    SystemReader
	clock     clock.Clock
	logger    *slog.Logger
	startedAt time.Time
}

// New returns an Aggregator. Its start time, the timestamp of every
// Zero snapshot, is taken here.
func New(config Config) *Aggregator {
	if config.Pool == nil {
		panic("aggregator.New: Pool is required")
	}
	if config.Logger == nil {
		panic("aggregator.New: Logger is required")
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	return &Aggregator{
		pool:      config.Pool,
		system:    config.System,
		clock:     config.Clock,
		logger:    config.Logger,
		startedAt: config.Clock.Now(),
	}
}

// StartedAt returns the time the Aggregator was created.
func (a *Aggregator) StartedAt() time.Time { return a.startedAt }

// Zero returns an all-zero snapshot shaped like root and stamped with
// the aggregator's start time. Paired with a fresh Dispatch it yields
// counter values accumulated since the counters were last reset.
func (a *Aggregator) Zero(root *topology.SystemRoot) *Snapshot {
	return &Snapshot{
		DispatchedAt: a.startedAt,
		Processors:   make([]counterstate.Basic, root.ProcessorCount()),
		Sockets:      make([]counterstate.Socket, len(root.Sockets())),
	}
}

type pendingCore struct {
	osID        int
	socketIndex int
	future      *executor.Future[counterstate.Basic]
}

type pendingUncore struct {
	socketID    int
	socketIndex int
	future      *executor.Future[counterstate.Uncore]
}

// fanOut submits one read per domain while the tree is walked. It only
// submits; nothing here waits.
type fanOut struct {
	pool    *executor.Pool
	socket  *topology.Socket
	cores   []pendingCore
	uncores []pendingUncore
}

func (f *fanOut) VisitSystemRoot(*topology.SystemRoot) {}

func (f *fanOut) VisitSocket(socket *topology.Socket) { f.socket = socket }

func (f *fanOut) VisitCore(*topology.Core) {}

func (f *fanOut) VisitLogicalProcessor(processor *topology.LogicalProcessor) {
	f.cores = append(f.cores, pendingCore{
		osID:        processor.OSID,
		socketIndex: f.socket.Index,
		future:      executor.Go(f.pool, processor.Read),
	})
}

func (f *fanOut) VisitServerUncore(uncore *topology.ServerUncore) { f.submitUncore(uncore) }

func (f *fanOut) VisitClientUncore(uncore *topology.ClientUncore) { f.submitUncore(uncore) }

func (f *fanOut) submitUncore(uncore topology.Uncore) {
	f.uncores = append(f.uncores, pendingUncore{
		socketID:    uncore.SocketID(),
		socketIndex: f.socket.Index,
		future:      executor.Go(f.pool, uncore.Read),
	})
}

// Dispatch reads every domain of root and returns the folded snapshot.
func (a *Aggregator) Dispatch(ctx context.Context, root *topology.SystemRoot) (*Snapshot, error) {
	snapshot := &Snapshot{
		DispatchedAt: a.clock.Now(),
		Processors:   make([]counterstate.Basic, root.ProcessorCount()),
		Sockets:      make([]counterstate.Socket, len(root.Sockets())),
	}

	fan := &fanOut{pool: a.pool}
	topology.Walk(root, fan)

	for _, pending := range fan.cores {
		state, err := pending.future.Wait(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			a.logger.Warn("core counter read failed", "os_id", pending.osID, "error", err)
			state = counterstate.Basic{}
		}
		snapshot.Processors[pending.osID] = state
		snapshot.Sockets[pending.socketIndex].Core.Add(state)
	}
	for _, socket := range snapshot.Sockets {
		snapshot.System.AddSocketCore(socket)
	}

	for _, pending := range fan.uncores {
		state, err := pending.future.Wait(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			a.logger.Warn("uncore counter read failed", "socket", pending.socketID, "error", err)
			state = counterstate.Uncore{}
		}
		snapshot.Sockets[pending.socketIndex].Uncore.Add(state)
		snapshot.System.AddUncore(state)
	}

	if a.system != nil {
		links, err := a.system.ReadLinks(ctx)
		if err != nil {
			a.logger.Warn("link counter read failed", "error", err)
		}
		snapshot.System.Links = links

		accelerators, err := a.system.ReadAccelerators(ctx)
		if err != nil {
			a.logger.Warn("accelerator counter read failed", "error", err)
		}
		snapshot.System.Accelerators = accelerators
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return snapshot, nil
}

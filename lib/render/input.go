// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"time"

	"github.com/bureau-foundation/sensor-server/lib/aggregator"
	"github.com/bureau-foundation/sensor-server/lib/counterstate"
	"github.com/bureau-foundation/sensor-server/lib/topology"
)

// Input is what every renderer formats: the topology and two snapshots
// of it. Counters are reported as After minus Before. For absolute
// values Before is the aggregator's zero snapshot.
type Input struct {
	Root   *topology.SystemRoot
	Before *aggregator.Snapshot
	After  *aggregator.Snapshot

	// Accelerators adds the accelerator section. It is set when an
	// accelerator kind was selected at start-up, even if no device
	// reported counters.
	Accelerators bool
}

// Interval returns the time between the two snapshots.
func (in Input) Interval() time.Duration {
	return in.After.DispatchedAt.Sub(in.Before.DispatchedAt)
}

func (in Input) processor(osID int) (before, after counterstate.Basic) {
	if osID >= 0 && osID < len(in.Before.Processors) {
		before = in.Before.Processors[osID]
	}
	if osID >= 0 && osID < len(in.After.Processors) {
		after = in.After.Processors[osID]
	}
	return before, after
}

func (in Input) socket(index int) (before, after counterstate.Socket) {
	if index >= 0 && index < len(in.Before.Sockets) {
		before = in.Before.Sockets[index]
	}
	if index >= 0 && index < len(in.After.Sockets) {
		after = in.After.Sockets[index]
	}
	return before, after
}

// referenceTSC returns the invariant TSC delta of the socket's first
// logical processor. Package C-state residency is a share of it.
func (in Input) referenceTSC(socket *topology.Socket) uint64 {
	core := socket.ReferenceCore()
	if core == nil || len(core.Threads()) == 0 {
		return 0
	}
	before, after := in.processor(core.Threads()[0].OSID)
	return after.InvariantTSC - before.InvariantTSC
}

// systemTSC is the sum of every socket's reference TSC, matching the
// system uncore total, which sums every socket's residency.
func (in Input) systemTSC() uint64 {
	var total uint64
	for _, socket := range in.Root.Sockets() {
		total += in.referenceTSC(socket)
	}
	return total
}

// dieCount returns the number of distinct dies on socket, at least 1.
func dieCount(socket *topology.Socket) int {
	dies := make(map[int]bool)
	for _, core := range socket.Cores() {
		dies[core.DieID] = true
	}
	return max(len(dies), 1)
}

func systemDieCount(root *topology.SystemRoot) int {
	count := 1
	for _, socket := range root.Sockets() {
		count = max(count, dieCount(socket))
	}
	return count
}

// invalidThermalHeadroom is reported when a domain has no thermal
// sensor.
const invalidThermalHeadroom = -1 << 31

func thermalHeadroom(state counterstate.Basic) int32 {
	if !state.HasThermalHeadroom {
		return invalidThermalHeadroom
	}
	return state.ThermalHeadroom
}

// percent converts a ratio to the whole percentages the counter
// documents have always carried. Negative "not available" ratios
// become 0.
func percent(ratio float64) int {
	if ratio < 0 {
		return 0
	}
	return int(100 * ratio)
}

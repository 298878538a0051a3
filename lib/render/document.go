// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bureau-foundation/sensor-server/lib/codec"
	"github.com/bureau-foundation/sensor-server/lib/counterstate"
	"github.com/bureau-foundation/sensor-server/lib/topology"
)

// Document builds the counter document for in: the system root with
// its sockets, cores and threads nested inside, followed by the link,
// accelerator and aggregate sections.
func Document(in Input) *Object {
	root := in.Root
	interval := in.Interval()

	document := NewObject().
		Set("Interval us", interval.Microseconds()).
		Set("Object", "SystemRoot").
		Set("Number of sockets", len(root.Sockets()))

	sockets := make([]*Object, 0, len(root.Sockets()))
	for _, socket := range root.Sockets() {
		sockets = append(sockets, socketObject(in, socket))
	}
	document.Set("Sockets", sockets)

	systemDelta := in.After.System.Sub(in.Before.System)
	if in.Accelerators {
		document.Set("Accelerators", acceleratorsObject(systemDelta.Accelerators, interval))
	}
	if root.IsServer() {
		document.Set("QPI/UPI Links", linksObject(root, systemDelta.Links, interval))
	}

	core := NewObject()
	setBasicGroups(core, systemDelta.Core, root.NominalFrequencyHz)
	document.Set("Core Aggregate", core)

	uncore := NewObject().Set("Uncore Counters",
		uncoreCounters(systemDelta.Uncore, in.systemTSC(), systemDieCount(root), interval))
	document.Set("Uncore Aggregate", uncore)

	return document
}

// JSON renders the counter document as JSON.
func JSON(in Input) ([]byte, error) {
	data, err := json.Marshal(Document(in))
	if err != nil {
		return nil, fmt.Errorf("render: encoding JSON: %w", err)
	}
	return data, nil
}

// CBOR renders the counter document as deterministic CBOR.
func CBOR(in Input) ([]byte, error) {
	data, err := codec.Marshal(Document(in))
	if err != nil {
		return nil, fmt.Errorf("render: encoding CBOR: %w", err)
	}
	return data, nil
}

func socketObject(in Input, socket *topology.Socket) *Object {
	object := NewObject().
		Set("Object", "Socket").
		Set("Socket ID", socket.SocketID).
		Set("Number of cores", len(socket.Cores()))

	cores := make([]*Object, 0, len(socket.Cores()))
	for _, core := range socket.Cores() {
		cores = append(cores, coreObject(in, core))
	}
	object.Set("Cores", cores)

	before, after := in.socket(socket.Index)
	delta := after.Sub(before)

	kind := "ClientUncore"
	if _, server := socket.Uncore().(*topology.ServerUncore); server {
		kind = "ServerUncore"
	}
	object.Set("Uncore", NewObject().
		Set("Object", kind).
		Set("Uncore Counters", uncoreCounters(delta.Uncore, in.referenceTSC(socket), dieCount(socket), in.Interval())))

	aggregate := NewObject()
	setBasicGroups(aggregate, delta.Core, in.Root.NominalFrequencyHz)
	object.Set("Core Aggregate", aggregate)
	return object
}

func coreObject(in Input, core *topology.Core) *Object {
	object := NewObject().
		Set("Object", "Core").
		Set("Number of threads", len(core.Threads()))

	threads := make([]*Object, 0, len(core.Threads()))
	for _, thread := range core.Threads() {
		threads = append(threads, threadObject(in, thread))
	}
	return object.
		Set("Threads", threads).
		Set("Core ID", core.SocketUniqueCoreID).
		Set("HW Core ID", core.CoreID).
		Set("Module ID", core.ModuleID).
		Set("Tile ID", core.TileID).
		Set("Die ID", core.DieID).
		Set("Die Group ID", core.DieGroupID).
		Set("Socket ID", core.SocketID)
}

func threadObject(in Input, thread *topology.LogicalProcessor) *Object {
	object := NewObject().
		Set("Object", "HyperThread").
		Set("Thread ID", thread.ThreadID).
		Set("OS ID", thread.OSID)
	before, after := in.processor(thread.OSID)
	setBasicGroups(object, after.Sub(before), in.Root.NominalFrequencyHz)
	return object
}

// setBasicGroups adds the three core-side counter groups shared by
// threads, socket aggregates and the system aggregate.
func setBasicGroups(target *Object, delta counterstate.Basic, nominalHz uint64) {
	topdown, _ := delta.Topdown()
	target.Set("Core Counters", NewObject().
		Set("Instructions Retired Any", delta.InstructionsRetired).
		Set("Clock Unhalted Thread", delta.CyclesUnhalted).
		Set("Clock Unhalted Ref", delta.RefCyclesUnhalted).
		Set("L3 Cache Misses", delta.L3Misses).
		Set("L3 Cache Hits", delta.L3Hits).
		Set("L2 Cache Misses", delta.L2Misses).
		Set("L2 Cache Hits", delta.L2Hits).
		Set("L3 Cache Occupancy", delta.L3Occupancy).
		Set("Invariant TSC", delta.InvariantTSC).
		Set("SMI Count", delta.SMICount).
		Set("Core Frequency", delta.ActiveFrequency(nominalHz)).
		Set("Frontend Bound", percent(topdown.FrontendBound)).
		Set("Bad Speculation", percent(topdown.BadSpeculation)).
		Set("Backend Bound", percent(topdown.BackendBound)).
		Set("Retiring", percent(topdown.Retiring)))

	energy := NewObject().Set("Thermal Headroom", thermalHeadroom(delta))
	for state := 0; state <= counterstate.MaxCState; state++ {
		energy.Set(fmt.Sprintf("CStateResidency[%d]", state), delta.CStateRatio(state))
	}
	target.Set("Energy Counters", energy)

	target.Set("Core Memory Bandwidth Counters", NewObject().
		Set("Local Memory Bandwidth", delta.LocalMemoryBandwidth).
		Set("Remote Memory Bandwidth", delta.RemoteMemoryBandwidth))
}

func uncoreCounters(delta counterstate.Uncore, tsc uint64, dies int, interval time.Duration) *Object {
	object := NewObject().
		Set("DRAM Writes", delta.DRAMWrites).
		Set("DRAM Reads", delta.DRAMReads).
		Set("Persistent Memory Writes", delta.PMMWrites).
		Set("Persistent Memory Reads", delta.PMMReads).
		Set("Embedded DRAM Writes", delta.EDRAMWrites).
		Set("Embedded DRAM Reads", delta.EDRAMReads).
		Set("Memory Controller IA Requests", delta.MCIARequests).
		Set("Memory Controller GT Requests", delta.MCGTRequests).
		Set("Memory Controller IO Requests", delta.MCIORequests).
		Set("Package Joules Consumed", delta.PackageJoules()).
		Set("PP0 Joules Consumed", delta.PP0Joules()).
		Set("PP1 Joules Consumed", delta.PP1Joules()).
		Set("DRAM Joules Consumed", delta.DRAMJoules())
	for die := range min(dies, counterstate.MaxDies) {
		object.Set(fmt.Sprintf("Uncore Frequency Die %d", die), delta.UncoreFrequency(die, interval))
	}
	local, remote := requestRatios(delta)
	object.
		Set("Local Memory Request Ratio", local).
		Set("Remote Memory Request Ratio", remote)
	for state := 0; state <= counterstate.MaxCState; state++ {
		object.Set(fmt.Sprintf("CStateResidency[%d]", state), delta.PackageCStateRatio(state, tsc))
	}
	return object
}

// requestRatios returns the local and remote memory request shares in
// whole percent. Both are 0 when no requests were counted.
func requestRatios(delta counterstate.Uncore) (local, remote int) {
	ratio := delta.LocalMemoryRatio()
	if ratio < 0 {
		return 0, 0
	}
	local = percent(ratio)
	return local, 100 - local
}

func linksObject(root *topology.SystemRoot, links []counterstate.Link, interval time.Duration) *Object {
	object := NewObject()
	for _, socket := range root.Sockets() {
		group := NewObject()
		for _, link := range links {
			if link.Socket != socket.SocketID {
				continue
			}
			group.
				Set(fmt.Sprintf("Incoming Data Traffic On Link %d", link.Index), link.IncomingBytes).
				Set(fmt.Sprintf("Outgoing Data And Non-Data Traffic On Link %d", link.Index), link.OutgoingBytes).
				Set(fmt.Sprintf("Utilization Incoming Data Traffic On Link %d", link.Index), link.IncomingUtilization(interval)).
				Set(fmt.Sprintf("Utilization Outgoing Data And Non-Data Traffic On Link %d", link.Index), link.OutgoingUtilization(interval))
		}
		object.Set(fmt.Sprintf("QPI Counters Socket %d", socket.SocketID), group)
	}
	return object
}

// Accelerator counter names as they appear in the JSON document. The
// Prometheus renderer strips the unit suffix.
const (
	acceleratorInbound   = "Inbound_BW(Bps)"
	acceleratorOutbound  = "Outbound_BW(Bps)"
	acceleratorShared    = "ShareWQ_ReqNb"
	acceleratorDedicated = "DedicateWQ_ReqNb"
)

func acceleratorsObject(accelerators []counterstate.Accelerator, interval time.Duration) *Object {
	object := NewObject()
	for _, accelerator := range accelerators {
		object.Set(fmt.Sprintf("%s Counters Device %d", accelerator.Kind, accelerator.Index), NewObject().
			Set(acceleratorInbound, bytesPerSecond(accelerator.InboundBytes, interval)).
			Set(acceleratorOutbound, bytesPerSecond(accelerator.OutboundBytes, interval)).
			Set(acceleratorShared, accelerator.SharedQueueReqs).
			Set(acceleratorDedicated, accelerator.DedicatedQueueReq))
	}
	return object
}

func bytesPerSecond(bytes uint64, interval time.Duration) float64 {
	if interval <= 0 {
		return 0
	}
	return float64(bytes) / interval.Seconds()
}

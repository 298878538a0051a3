// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package counterstate

// MaxCState is the deepest C-state index tracked. Residency arrays
// hold MaxCState+1 entries (C0 through C10).
const MaxCState = 10

// MaxDies bounds the per-die uncore clock array of one socket.
const MaxDies = 8

// Basic holds the core-side counters of one logical processor, or the
// fold of several.
type Basic struct {
	InstructionsRetired uint64
	CyclesUnhalted      uint64
	RefCyclesUnhalted   uint64

	L2Hits   uint64
	L2Misses uint64
	L3Hits   uint64
	L3Misses uint64

	// L3Occupancy is a gauge in bytes. Folding sums it; differencing
	// keeps the later value.
	L3Occupancy uint64

	// InvariantTSC counts reference ticks at the nominal frequency.
	InvariantTSC uint64
	SMICount     uint64

	// CStateResidency counts reference ticks spent in each C-state.
	// Index 0 is unused for cores (C0 is derived from
	// RefCyclesUnhalted).
	CStateResidency [MaxCState + 1]uint64

	// ThermalHeadroom is degrees Celsius below TjMax. It is a reading,
	// not an accumulator: folding leaves the parent's value untouched.
	ThermalHeadroom    int32
	HasThermalHeadroom bool

	LocalMemoryBandwidth  uint64
	RemoteMemoryBandwidth uint64

	FrontendBoundSlots  uint64
	BadSpeculationSlots uint64
	BackendBoundSlots   uint64
	RetiringSlots       uint64
	AllSlots            uint64
}

// Add folds other into b.
func (b *Basic) Add(other Basic) {
	b.InstructionsRetired += other.InstructionsRetired
	b.CyclesUnhalted += other.CyclesUnhalted
	b.RefCyclesUnhalted += other.RefCyclesUnhalted
	b.L2Hits += other.L2Hits
	b.L2Misses += other.L2Misses
	b.L3Hits += other.L3Hits
	b.L3Misses += other.L3Misses
	b.L3Occupancy += other.L3Occupancy
	b.InvariantTSC += other.InvariantTSC
	b.SMICount += other.SMICount
	for index := range b.CStateResidency {
		b.CStateResidency[index] += other.CStateResidency[index]
	}
	b.LocalMemoryBandwidth += other.LocalMemoryBandwidth
	b.RemoteMemoryBandwidth += other.RemoteMemoryBandwidth
	b.FrontendBoundSlots += other.FrontendBoundSlots
	b.BadSpeculationSlots += other.BadSpeculationSlots
	b.BackendBoundSlots += other.BackendBoundSlots
	b.RetiringSlots += other.RetiringSlots
	b.AllSlots += other.AllSlots
}

// Sub returns the difference b - before. Gauges (L3 occupancy,
// thermal headroom) keep b's value.
func (b Basic) Sub(before Basic) Basic {
	delta := Basic{
		InstructionsRetired:   b.InstructionsRetired - before.InstructionsRetired,
		CyclesUnhalted:        b.CyclesUnhalted - before.CyclesUnhalted,
		RefCyclesUnhalted:     b.RefCyclesUnhalted - before.RefCyclesUnhalted,
		L2Hits:                b.L2Hits - before.L2Hits,
		L2Misses:              b.L2Misses - before.L2Misses,
		L3Hits:                b.L3Hits - before.L3Hits,
		L3Misses:              b.L3Misses - before.L3Misses,
		L3Occupancy:           b.L3Occupancy,
		InvariantTSC:          b.InvariantTSC - before.InvariantTSC,
		SMICount:              b.SMICount - before.SMICount,
		ThermalHeadroom:       b.ThermalHeadroom,
		HasThermalHeadroom:    b.HasThermalHeadroom,
		LocalMemoryBandwidth:  b.LocalMemoryBandwidth - before.LocalMemoryBandwidth,
		RemoteMemoryBandwidth: b.RemoteMemoryBandwidth - before.RemoteMemoryBandwidth,
		FrontendBoundSlots:    b.FrontendBoundSlots - before.FrontendBoundSlots,
		BadSpeculationSlots:   b.BadSpeculationSlots - before.BadSpeculationSlots,
		BackendBoundSlots:     b.BackendBoundSlots - before.BackendBoundSlots,
		RetiringSlots:         b.RetiringSlots - before.RetiringSlots,
		AllSlots:              b.AllSlots - before.AllSlots,
	}
	for index := range delta.CStateResidency {
		delta.CStateResidency[index] = b.CStateResidency[index] - before.CStateResidency[index]
	}
	return delta
}

// Uncore holds the per-socket shared counters: memory controllers,
// energy, uncore clocks and package C-states.
type Uncore struct {
	// Memory traffic in bytes.
	DRAMReads   uint64
	DRAMWrites  uint64
	PMMReads    uint64
	PMMWrites   uint64
	EDRAMReads  uint64
	EDRAMWrites uint64

	// Client memory controller request counts by requester.
	MCIARequests uint64
	MCGTRequests uint64
	MCIORequests uint64

	// Energy in microjoules.
	PackageEnergy uint64
	PP0Energy     uint64
	PP1Energy     uint64
	DRAMEnergy    uint64

	// UncoreClocks counts uncore clock ticks per die.
	UncoreClocks [MaxDies]uint64

	// CStateResidency counts reference ticks per package C-state.
	CStateResidency [MaxCState + 1]uint64

	LocalMemoryRequests  uint64
	RemoteMemoryRequests uint64
}

// Add folds other into u.
func (u *Uncore) Add(other Uncore) {
	u.DRAMReads += other.DRAMReads
	u.DRAMWrites += other.DRAMWrites
	u.PMMReads += other.PMMReads
	u.PMMWrites += other.PMMWrites
	u.EDRAMReads += other.EDRAMReads
	u.EDRAMWrites += other.EDRAMWrites
	u.MCIARequests += other.MCIARequests
	u.MCGTRequests += other.MCGTRequests
	u.MCIORequests += other.MCIORequests
	u.PackageEnergy += other.PackageEnergy
	u.PP0Energy += other.PP0Energy
	u.PP1Energy += other.PP1Energy
	u.DRAMEnergy += other.DRAMEnergy
	for index := range u.UncoreClocks {
		u.UncoreClocks[index] += other.UncoreClocks[index]
	}
	for index := range u.CStateResidency {
		u.CStateResidency[index] += other.CStateResidency[index]
	}
	u.LocalMemoryRequests += other.LocalMemoryRequests
	u.RemoteMemoryRequests += other.RemoteMemoryRequests
}

// Sub returns the difference u - before.
func (u Uncore) Sub(before Uncore) Uncore {
	delta := Uncore{
		DRAMReads:            u.DRAMReads - before.DRAMReads,
		DRAMWrites:           u.DRAMWrites - before.DRAMWrites,
		PMMReads:             u.PMMReads - before.PMMReads,
		PMMWrites:            u.PMMWrites - before.PMMWrites,
		EDRAMReads:           u.EDRAMReads - before.EDRAMReads,
		EDRAMWrites:          u.EDRAMWrites - before.EDRAMWrites,
		MCIARequests:         u.MCIARequests - before.MCIARequests,
		MCGTRequests:         u.MCGTRequests - before.MCGTRequests,
		MCIORequests:         u.MCIORequests - before.MCIORequests,
		PackageEnergy:        u.PackageEnergy - before.PackageEnergy,
		PP0Energy:            u.PP0Energy - before.PP0Energy,
		PP1Energy:            u.PP1Energy - before.PP1Energy,
		DRAMEnergy:           u.DRAMEnergy - before.DRAMEnergy,
		LocalMemoryRequests:  u.LocalMemoryRequests - before.LocalMemoryRequests,
		RemoteMemoryRequests: u.RemoteMemoryRequests - before.RemoteMemoryRequests,
	}
	for index := range delta.UncoreClocks {
		delta.UncoreClocks[index] = u.UncoreClocks[index] - before.UncoreClocks[index]
	}
	for index := range delta.CStateResidency {
		delta.CStateResidency[index] = u.CStateResidency[index] - before.CStateResidency[index]
	}
	return delta
}

// Socket is the per-socket total: the fold of its processors' core
// counters plus its own uncore counters. The two halves are kept apart
// so a parent can fold each exactly once.
type Socket struct {
	Core   Basic
	Uncore Uncore
}

// Sub returns the difference s - before.
func (s Socket) Sub(before Socket) Socket {
	return Socket{
		Core:   s.Core.Sub(before.Core),
		Uncore: s.Uncore.Sub(before.Uncore),
	}
}

// Link holds the traffic counters of one inter-socket link.
type Link struct {
	Socket int
	Index  int

	IncomingBytes uint64
	OutgoingBytes uint64

	// BytesPerSecond is the link's theoretical peak bandwidth, used
	// for utilization. Static, not differenced.
	BytesPerSecond uint64
}

// Accelerator holds the counters of one on-die accelerator device
// (IAA, DSA or QAT).
type Accelerator struct {
	Index int
	Kind  string

	InboundBytes      uint64
	OutboundBytes     uint64
	SharedQueueReqs   uint64
	DedicatedQueueReq uint64
}

// System is the whole-machine total.
type System struct {
	Core         Basic
	Uncore       Uncore
	Links        []Link
	Accelerators []Accelerator
}

// AddSocketCore folds a socket's core half into the system total.
func (s *System) AddSocketCore(socket Socket) {
	s.Core.Add(socket.Core)
}

// AddUncore folds one socket's uncore reading into the system total.
func (s *System) AddUncore(uncore Uncore) {
	s.Uncore.Add(uncore)
}

// Sub returns the difference s - before. Links and accelerators are
// matched by position; entries missing from before are returned as is.
func (s System) Sub(before System) System {
	delta := System{
		Core:   s.Core.Sub(before.Core),
		Uncore: s.Uncore.Sub(before.Uncore),
	}
	if len(s.Links) > 0 {
		delta.Links = make([]Link, len(s.Links))
		for index, link := range s.Links {
			delta.Links[index] = link
			if index < len(before.Links) {
				delta.Links[index].IncomingBytes -= before.Links[index].IncomingBytes
				delta.Links[index].OutgoingBytes -= before.Links[index].OutgoingBytes
			}
		}
	}
	if len(s.Accelerators) > 0 {
		delta.Accelerators = make([]Accelerator, len(s.Accelerators))
		for index, accelerator := range s.Accelerators {
			delta.Accelerators[index] = accelerator
			if index < len(before.Accelerators) {
				previous := before.Accelerators[index]
				delta.Accelerators[index].InboundBytes -= previous.InboundBytes
				delta.Accelerators[index].OutboundBytes -= previous.OutboundBytes
				delta.Accelerators[index].SharedQueueReqs -= previous.SharedQueueReqs
				delta.Accelerators[index].DedicatedQueueReq -= previous.DedicatedQueueReq
			}
		}
	}
	return delta
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sensor

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/bureau-foundation/sensor-server/lib/clock"
	"github.com/bureau-foundation/sensor-server/lib/counterstate"
	"github.com/bureau-foundation/sensor-server/lib/topology"
)

// SyntheticConfig configures a Synthetic provider.
type SyntheticConfig struct {
	// Entries are the processors to simulate. Required.
	Entries []topology.Entry

	// NominalFrequencyHz is the simulated TSC rate. Defaults to
	// 2.1 GHz.
	NominalFrequencyHz uint64

	// LinksPerSocket is the number of inter-socket links reported for
	// each socket. Zero reports none.
	LinksPerSocket int

	// Accelerator is "iaa", "dsa", "qat" or empty.
	Accelerator string

	// AcceleratorDevices is the number of simulated devices when
	// Accelerator is set. Defaults to 1.
	AcceleratorDevices int

	// Clock drives every counter. Defaults to clock.Real().
	Clock clock.Clock
}

// Synthetic generates counters that grow linearly with time at fixed,
// per-processor rates. Two reads at the same clock time return equal
// states, so tests driven by a fake clock get exact values.
type Synthetic struct {
	nominalHz    float64
	sockets      map[int]int // socket id -> number of dies
	links        int
	accelerator  string
	acceleratorN int
	clock        clock.Clock
	start        time.Time
}

// Rates of the synthetic machine.
const (
	syntheticDefaultHz        = 2.1e9
	syntheticTurbo            = 1.1
	syntheticDRAMReadRate     = 5e9 // bytes per second per socket
	syntheticDRAMWriteRate    = 2e9
	syntheticPackageWatts     = 80
	syntheticCoreWatts        = 55
	syntheticGraphicsWatts    = 5
	syntheticDRAMWatts        = 12
	syntheticUncoreHz         = 2.0e9
	syntheticLocalRequests    = 4e7
	syntheticRemoteRequests   = 1e7
	syntheticLinkBytesIn      = 1.2e9
	syntheticLinkBytesOut     = 0.9e9
	syntheticLinkPeak         = 20.8e9
	syntheticAcceleratorBytes = 3e8
	syntheticAcceleratorReqs  = 1e4
)

// NewSynthetic returns a Synthetic provider.
func NewSynthetic(config SyntheticConfig) *Synthetic {
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	nominal := float64(config.NominalFrequencyHz)
	if nominal == 0 {
		nominal = syntheticDefaultHz
	}
	devices := config.AcceleratorDevices
	if devices <= 0 {
		devices = 1
	}

	dies := make(map[int]map[int]bool)
	for _, entry := range config.Entries {
		if dies[entry.SocketID] == nil {
			dies[entry.SocketID] = make(map[int]bool)
		}
		dies[entry.SocketID][entry.DieID] = true
	}
	sockets := make(map[int]int, len(dies))
	for socketID, ids := range dies {
		sockets[socketID] = len(ids)
	}

	return &Synthetic{
		nominalHz:    nominal,
		sockets:      sockets,
		links:        config.LinksPerSocket,
		accelerator:  config.Accelerator,
		acceleratorN: devices,
		clock:        config.Clock,
		start:        config.Clock.Now(),
	}
}

func (s *Synthetic) elapsed() float64 {
	return s.clock.Now().Sub(s.start).Seconds()
}

// utilization returns the fixed busy fraction of a processor, between
// 0.2 and 0.74.
func utilization(osID int) float64 {
	return 0.2 + 0.06*float64((osID*7)%10)
}

// ReadCore returns the counters of processor osID.
func (s *Synthetic) ReadCore(osID int) (counterstate.Basic, error) {
	if osID < 0 {
		return counterstate.Basic{}, fmt.Errorf("sensor: negative os id %d", osID)
	}
	tsc := s.elapsed() * s.nominalHz
	busy := utilization(osID)
	reference := tsc * busy
	cycles := reference * syntheticTurbo
	instructions := cycles * (0.8 + 0.3*float64(osID%4))
	idle := tsc - reference
	l2 := instructions * 0.02
	l3 := l2 * 0.4
	slots := cycles * 4

	state := counterstate.Basic{
		InstructionsRetired:   uint64(instructions),
		CyclesUnhalted:        uint64(cycles),
		RefCyclesUnhalted:     uint64(reference),
		L2Hits:                uint64(l2 * 0.85),
		L2Misses:              uint64(l2 * 0.15),
		L3Hits:                uint64(l3 * 0.6),
		L3Misses:              uint64(l3 * 0.4),
		L3Occupancy:           uint64(1<<20 + osID%8*(256<<10)),
		InvariantTSC:          uint64(tsc),
		ThermalHeadroom:       int32(45 - osID%12),
		HasThermalHeadroom:    true,
		LocalMemoryBandwidth:  uint64(l3 * 0.4 * 0.8 * 64),
		RemoteMemoryBandwidth: uint64(l3 * 0.4 * 0.2 * 64),
		FrontendBoundSlots:    uint64(slots * 0.2),
		BadSpeculationSlots:   uint64(slots * 0.05),
		BackendBoundSlots:     uint64(slots * 0.35),
		RetiringSlots:         uint64(slots * 0.4),
		AllSlots:              uint64(slots),
	}
	state.CStateResidency[1] = uint64(idle * 0.2)
	state.CStateResidency[6] = uint64(idle * 0.8)
	return state, nil
}

// ReadUncore returns the counters of socket socketID.
func (s *Synthetic) ReadUncore(socketID int) (counterstate.Uncore, error) {
	dies, ok := s.sockets[socketID]
	if !ok {
		return counterstate.Uncore{}, fmt.Errorf("sensor: unknown socket %d", socketID)
	}
	seconds := s.elapsed()
	tsc := seconds * s.nominalHz
	requests := seconds * (syntheticLocalRequests + syntheticRemoteRequests)

	state := counterstate.Uncore{
		DRAMReads:            uint64(seconds * syntheticDRAMReadRate),
		DRAMWrites:           uint64(seconds * syntheticDRAMWriteRate),
		MCIARequests:         uint64(requests * 0.7),
		MCGTRequests:         uint64(requests * 0.2),
		MCIORequests:         uint64(requests * 0.1),
		PackageEnergy:        uint64(seconds * syntheticPackageWatts * 1e6),
		PP0Energy:            uint64(seconds * syntheticCoreWatts * 1e6),
		PP1Energy:            uint64(seconds * syntheticGraphicsWatts * 1e6),
		DRAMEnergy:           uint64(seconds * syntheticDRAMWatts * 1e6),
		LocalMemoryRequests:  uint64(seconds * syntheticLocalRequests),
		RemoteMemoryRequests: uint64(seconds * syntheticRemoteRequests),
	}
	for die := range min(dies, counterstate.MaxDies) {
		state.UncoreClocks[die] = uint64(seconds * syntheticUncoreHz)
	}
	state.CStateResidency[0] = uint64(tsc * 0.6)
	state.CStateResidency[2] = uint64(tsc * 0.1)
	state.CStateResidency[6] = uint64(tsc * 0.3)
	return state, nil
}

// ReadLinks returns LinksPerSocket links for every socket, ordered by
// socket id then link index.
func (s *Synthetic) ReadLinks(ctx context.Context) ([]counterstate.Link, error) {
	if s.links == 0 || len(s.sockets) < 2 {
		return nil, nil
	}
	seconds := s.elapsed()
	var links []counterstate.Link
	for _, socketID := range slices.Sorted(maps.Keys(s.sockets)) {
		for index := range s.links {
			links = append(links, counterstate.Link{
				Socket:         socketID,
				Index:          index,
				IncomingBytes:  uint64(seconds * syntheticLinkBytesIn),
				OutgoingBytes:  uint64(seconds * syntheticLinkBytesOut),
				BytesPerSecond: uint64(syntheticLinkPeak),
			})
		}
	}
	return links, nil
}

// ReadAccelerators returns the simulated devices of the configured
// family, or nothing when no family is configured.
func (s *Synthetic) ReadAccelerators(ctx context.Context) ([]counterstate.Accelerator, error) {
	if s.accelerator == "" {
		return nil, nil
	}
	seconds := s.elapsed()
	accelerators := make([]counterstate.Accelerator, s.acceleratorN)
	for index := range accelerators {
		accelerators[index] = counterstate.Accelerator{
			Index:             index,
			Kind:              acceleratorKind(s.accelerator),
			InboundBytes:      uint64(seconds * syntheticAcceleratorBytes),
			OutboundBytes:     uint64(seconds * syntheticAcceleratorBytes / 2),
			SharedQueueReqs:   uint64(seconds * syntheticAcceleratorReqs),
			DedicatedQueueReq: uint64(seconds * syntheticAcceleratorReqs / 4),
		}
	}
	return accelerators, nil
}

// Close does nothing.
func (s *Synthetic) Close() error { return nil }

// SyntheticEntries lays out a uniform machine. OS ids are numbered the
// way Linux enumerates them: first thread of every core of every
// socket, then the second threads.
func SyntheticEntries(sockets, coresPerSocket, threadsPerCore int) []topology.Entry {
	entries := make([]topology.Entry, 0, sockets*coresPerSocket*threadsPerCore)
	for thread := range threadsPerCore {
		for socket := range sockets {
			for core := range coresPerSocket {
				entries = append(entries, topology.Entry{
					OSID:               thread*sockets*coresPerSocket + socket*coresPerSocket + core,
					ThreadID:           thread,
					CoreID:             core,
					SocketID:           socket,
					SocketUniqueCoreID: core,
					Kind:               topology.CoreKindCore,
				})
			}
		}
	}
	return entries
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package counterstate

import "time"

// The helpers below take a difference produced by Sub. Ratios whose
// denominator is zero return -1, matching the "not available" value
// the HTTP surface has always exposed for idle or unsupported domains.

// IPC returns instructions retired per unhalted core cycle.
func (b Basic) IPC() float64 {
	if b.CyclesUnhalted == 0 {
		return -1
	}
	return float64(b.InstructionsRetired) / float64(b.CyclesUnhalted)
}

// AverageFrequency returns the average core frequency in Hz over the
// interval, given the nominal (TSC) frequency.
func (b Basic) AverageFrequency(nominalHz uint64) float64 {
	if b.InvariantTSC == 0 || nominalHz == 0 {
		return -1
	}
	return float64(nominalHz) * float64(b.CyclesUnhalted) / float64(b.InvariantTSC)
}

// ActiveFrequency returns the average frequency while in C0, which
// includes turbo.
func (b Basic) ActiveFrequency(nominalHz uint64) float64 {
	if b.RefCyclesUnhalted == 0 || nominalHz == 0 {
		return -1
	}
	return float64(nominalHz) * float64(b.CyclesUnhalted) / float64(b.RefCyclesUnhalted)
}

// L2HitRatio returns L2 hits over L2 references, or -1 without
// references.
func (b Basic) L2HitRatio() float64 {
	return hitRatio(b.L2Hits, b.L2Misses)
}

// L3HitRatio returns L3 hits over L3 references, or -1 without
// references.
func (b Basic) L3HitRatio() float64 {
	return hitRatio(b.L3Hits, b.L3Misses)
}

func hitRatio(hits, misses uint64) float64 {
	references := hits + misses
	if references == 0 {
		return -1
	}
	return float64(hits) / float64(references)
}

// CStateRatio returns the fraction of the interval spent in the given
// core C-state. C0 is the unhalted reference share. C1 is whatever
// remains after C0 and the deeper states, clamped at zero because the
// counters are not read atomically.
func (b Basic) CStateRatio(state int) float64 {
	if state < 0 || state > MaxCState || b.InvariantTSC == 0 {
		return -1
	}
	tsc := float64(b.InvariantTSC)
	switch state {
	case 0:
		return float64(b.RefCyclesUnhalted) / tsc
	case 1:
		remaining := 1 - float64(b.RefCyclesUnhalted)/tsc
		for deeper := 2; deeper <= MaxCState; deeper++ {
			remaining -= float64(b.CStateResidency[deeper]) / tsc
		}
		if remaining < 0 {
			remaining = 0
		}
		return remaining
	default:
		return float64(b.CStateResidency[state]) / tsc
	}
}

// Topdown is the level-1 top-down breakdown of pipeline slots. All
// fields are fractions of the total slots.
type Topdown struct {
	FrontendBound  float64
	BadSpeculation float64
	BackendBound   float64
	Retiring       float64
}

// Topdown returns the slot breakdown and false if no slots were
// counted.
func (b Basic) Topdown() (Topdown, bool) {
	if b.AllSlots == 0 {
		return Topdown{}, false
	}
	all := float64(b.AllSlots)
	return Topdown{
		FrontendBound:  float64(b.FrontendBoundSlots) / all,
		BadSpeculation: float64(b.BadSpeculationSlots) / all,
		BackendBound:   float64(b.BackendBoundSlots) / all,
		Retiring:       float64(b.RetiringSlots) / all,
	}, true
}

// Energy units are microjoules.
const microjoulesPerJoule = 1e6

// PackageJoules returns the package energy in joules.
func (u Uncore) PackageJoules() float64 {
	return float64(u.PackageEnergy) / microjoulesPerJoule
}

// DRAMJoules returns the DRAM energy in joules.
func (u Uncore) DRAMJoules() float64 {
	return float64(u.DRAMEnergy) / microjoulesPerJoule
}

// PP0Joules returns the core power plane energy in joules.
func (u Uncore) PP0Joules() float64 {
	return float64(u.PP0Energy) / microjoulesPerJoule
}

// PP1Joules returns the graphics power plane energy in joules.
func (u Uncore) PP1Joules() float64 {
	return float64(u.PP1Energy) / microjoulesPerJoule
}

// LocalMemoryRatio returns the share of memory requests served by the
// local node, or -1 without requests.
func (u Uncore) LocalMemoryRatio() float64 {
	total := u.LocalMemoryRequests + u.RemoteMemoryRequests
	if total == 0 {
		return -1
	}
	return float64(u.LocalMemoryRequests) / float64(total)
}

// UncoreFrequency returns the average uncore clock of one die in Hz
// over the interval, or -1 if the die index is out of range or the
// interval is empty.
func (u Uncore) UncoreFrequency(die int, interval time.Duration) float64 {
	if die < 0 || die >= MaxDies || interval <= 0 {
		return -1
	}
	return float64(u.UncoreClocks[die]) / interval.Seconds()
}

// PackageCStateRatio returns the fraction of the interval the package
// spent in the given C-state. tsc is the reference tick count of one
// core of the package over the same interval.
func (u Uncore) PackageCStateRatio(state int, tsc uint64) float64 {
	if state < 0 || state > MaxCState || tsc == 0 {
		return -1
	}
	return float64(u.CStateResidency[state]) / float64(tsc)
}

// IncomingUtilization returns the incoming share of the link's peak
// bandwidth over interval.
func (l Link) IncomingUtilization(interval time.Duration) float64 {
	return utilization(l.IncomingBytes, l.BytesPerSecond, interval)
}

// OutgoingUtilization returns the outgoing share of the link's peak
// bandwidth over interval.
func (l Link) OutgoingUtilization(interval time.Duration) float64 {
	return utilization(l.OutgoingBytes, l.BytesPerSecond, interval)
}

func utilization(bytes, bytesPerSecond uint64, interval time.Duration) float64 {
	if bytesPerSecond == 0 || interval <= 0 {
		return 0
	}
	capacity := float64(bytesPerSecond) * interval.Seconds()
	return float64(bytes) / capacity
}

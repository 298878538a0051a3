// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hwinfo

import "github.com/bureau-foundation/sensor-server/lib/topology"

// Inventory is the static description of the machine.
type Inventory struct {
	Hostname      string
	KernelVersion string

	// Model is the "model name" line of /proc/cpuinfo.
	Model string

	// Vendor is the "vendor_id" line of /proc/cpuinfo, e.g.
	// "GenuineIntel".
	Vendor string

	// Family and ModelNumber are the numeric cpuinfo fields.
	Family      int
	ModelNumber int

	// Entries holds one record per online logical processor.
	Entries []topology.Entry

	// Offline holds the OS ids of present but offline processors.
	Offline []int

	// NominalFrequencyHz is the base (TSC) frequency, or zero if it
	// could not be determined.
	NominalFrequencyHz uint64

	// UncoreClass is server when the kernel exposes inter-socket link
	// PMUs (uncore_upi_* or uncore_qpi_*).
	UncoreClass topology.UncoreClass

	// LinksPerSocket counts the link PMUs. The kernel registers one
	// PMU per link index and counts it on every socket.
	LinksPerSocket int

	NUMANodes int
	L3CacheKB int
}

// Sockets returns the number of distinct socket ids among the online
// entries.
func (inventory Inventory) Sockets() int {
	seen := make(map[int]struct{})
	for _, entry := range inventory.Entries {
		seen[entry.SocketID] = struct{}{}
	}
	return len(seen)
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hwinfo

import (
	"bufio"
	"cmp"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/sensor-server/lib/topology"
)

// Probe collects the static inventory of the running machine.
//
// Probe never returns an error: missing or unreadable files produce
// zero-valued fields. A machine whose topology cannot be read at all
// comes back with no Entries, which the caller rejects at start-up.
func Probe() Inventory {
	return probeFrom("/proc", "/sys")
}

// probeFrom is the testable implementation of Probe. It accepts root
// paths for /proc and /sys so tests can point at synthetic filesystems.
func probeFrom(procRoot, sysRoot string) Inventory {
	inventory := Inventory{}
	inventory.Hostname, _ = os.Hostname()
	inventory.KernelVersion = readKernelVersion()

	cpuinfo := readCPUInfo(filepath.Join(procRoot, "cpuinfo"))
	inventory.Model = cpuinfo.model
	inventory.Vendor = cpuinfo.vendor
	inventory.Family = cpuinfo.family
	inventory.ModelNumber = cpuinfo.modelNumber

	cpuBase := filepath.Join(sysRoot, "devices/system/cpu")
	inventory.Entries, inventory.Offline = probeTopology(sysRoot, cpuinfo.modelNumber)
	inventory.NominalFrequencyHz = probeNominalFrequency(cpuBase, cpuinfo.model)
	inventory.UncoreClass, inventory.LinksPerSocket = probeUncoreClass(sysRoot)
	inventory.NUMANodes = countNUMANodes(sysRoot)
	inventory.L3CacheKB = readCacheSize(filepath.Join(cpuBase, "cpu0/cache/index3/size"))
	return inventory
}

// readKernelVersion returns the kernel release string from uname(2).
func readKernelVersion() string {
	var utsname unix.Utsname
	if err := unix.Uname(&utsname); err != nil {
		return ""
	}
	return unix.ByteSliceToString(utsname.Release[:])
}

type cpuinfoFields struct {
	model       string
	vendor      string
	family      int
	modelNumber int
}

// readCPUInfo extracts the identification fields of the first
// processor block of /proc/cpuinfo.
func readCPUInfo(path string) cpuinfoFields {
	var fields cpuinfoFields
	file, err := os.Open(path)
	if err != nil {
		return fields
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			// End of the first processor block.
			break
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch key {
		case "model name":
			fields.model = value
		case "vendor_id":
			fields.vendor = value
		case "cpu family":
			fields.family, _ = strconv.Atoi(value)
		case "model":
			fields.modelNumber, _ = strconv.Atoi(value)
		}
	}
	return fields
}

// probeTopology reads one Entry per online processor directory. A
// processor is offline when its "online" file reads 0; cpu0 usually
// has no such file and is always online. Processors listed in
// "present" without a cpuN directory are offline as well.
func probeTopology(sysRoot string, modelNumber int) ([]topology.Entry, []int) {
	cpuBase := filepath.Join(sysRoot, "devices/system/cpu")
	directories, err := os.ReadDir(cpuBase)
	if err != nil {
		return nil, nil
	}

	kinds := readHybridKinds(sysRoot)

	type raw struct {
		osID, socketID, coreID, dieID, moduleID, tileID int
		siblings                                        []int
	}
	var online []raw
	var offline []int
	known := make(map[int]bool)

	for _, directory := range directories {
		osID, ok := cpuDirectoryID(directory.Name())
		if !ok {
			continue
		}
		known[osID] = true
		cpuDir := filepath.Join(cpuBase, directory.Name())
		if ReadSysfsString(filepath.Join(cpuDir, "online")) == "0" {
			offline = append(offline, osID)
			continue
		}
		topologyDir := filepath.Join(cpuDir, "topology")
		socketID := ReadSysfsInt(filepath.Join(topologyDir, "physical_package_id"), -1)
		if socketID < 0 {
			offline = append(offline, osID)
			continue
		}
		siblings, _ := ParseCPUList(ReadSysfsString(filepath.Join(topologyDir, "thread_siblings_list")))
		online = append(online, raw{
			osID:     osID,
			socketID: socketID,
			coreID:   ReadSysfsInt(filepath.Join(topologyDir, "core_id"), osID),
			dieID:    max(ReadSysfsInt(filepath.Join(topologyDir, "die_id"), 0), 0),
			moduleID: max(ReadSysfsInt(filepath.Join(topologyDir, "cluster_id"), 0), 0),
			tileID:   max(ReadSysfsInt(filepath.Join(cpuDir, "cache/index2/id"), 0), 0),
			siblings: siblings,
		})
	}

	present, _ := ParseCPUList(ReadSysfsString(filepath.Join(cpuBase, "present")))
	for _, osID := range present {
		if !known[osID] {
			offline = append(offline, osID)
		}
	}
	slices.Sort(offline)

	// Core ids from sysfs are sparse and repeat across dies. Give each
	// (die, core) pair of a socket a dense ordinal so cores group
	// uniquely; the raw id is kept as the socket-unique hardware id.
	slices.SortFunc(online, func(a, b raw) int {
		return cmp.Or(
			cmp.Compare(a.socketID, b.socketID),
			cmp.Compare(a.dieID, b.dieID),
			cmp.Compare(a.coreID, b.coreID),
			cmp.Compare(a.osID, b.osID),
		)
	})
	type coreKey struct{ socketID, dieID, coreID int }
	ordinals := make(map[coreKey]int)
	perSocket := make(map[int]int)

	entries := make([]topology.Entry, 0, len(online))
	for _, processor := range online {
		key := coreKey{processor.socketID, processor.dieID, processor.coreID}
		ordinal, seen := ordinals[key]
		if !seen {
			ordinal = perSocket[processor.socketID]
			perSocket[processor.socketID]++
			ordinals[key] = ordinal
		}
		threadID := slices.Index(processor.siblings, processor.osID)
		if threadID < 0 {
			threadID = 0
		}
		kind, hybrid := kinds[processor.osID]
		if !hybrid {
			kind = topology.CoreKindCore
		}
		entries = append(entries, topology.Entry{
			OSID:               processor.osID,
			ThreadID:           threadID,
			CoreID:             ordinal,
			ModuleID:           processor.moduleID,
			TileID:             processor.tileID,
			DieID:              processor.dieID,
			SocketID:           processor.socketID,
			SocketUniqueCoreID: processor.coreID,
			NativeCPUModel:     modelNumber,
			Kind:               kind,
		})
	}
	slices.SortFunc(entries, func(a, b topology.Entry) int { return cmp.Compare(a.OSID, b.OSID) })
	return entries, offline
}

// readHybridKinds maps OS ids to their core kind on hybrid parts,
// which expose separate cpu_atom and cpu_core PMUs. Non-hybrid
// machines return an empty map.
func readHybridKinds(sysRoot string) map[int]topology.CoreKind {
	kinds := make(map[int]topology.CoreKind)
	for _, pmu := range []struct {
		name string
		kind topology.CoreKind
	}{
		{"cpu_atom", topology.CoreKindAtom},
		{"cpu_core", topology.CoreKindCore},
	} {
		ids, err := ParseCPUList(ReadSysfsString(filepath.Join(sysRoot, "devices", pmu.name, "cpus")))
		if err != nil {
			continue
		}
		for _, id := range ids {
			kinds[id] = pmu.kind
		}
	}
	return kinds
}

// probeNominalFrequency returns the base frequency in Hz. It prefers
// cpufreq's base_frequency (kHz) and falls back to the "@ 2.10GHz"
// suffix Intel model names carry.
func probeNominalFrequency(cpuBase, model string) uint64 {
	if kilohertz := ReadSysfsInt(filepath.Join(cpuBase, "cpu0/cpufreq/base_frequency"), 0); kilohertz > 0 {
		return uint64(kilohertz) * 1000
	}
	_, suffix, found := strings.Cut(model, "@")
	if !found {
		return 0
	}
	suffix = strings.TrimSpace(suffix)
	gigahertz, found := strings.CutSuffix(suffix, "GHz")
	if !found {
		return 0
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(gigahertz), 64)
	if err != nil || value <= 0 {
		return 0
	}
	return uint64(value * 1e9)
}

// probeUncoreClass looks for inter-socket link PMUs, which only
// server parts have.
func probeUncoreClass(sysRoot string) (topology.UncoreClass, int) {
	devices, err := os.ReadDir(filepath.Join(sysRoot, "bus/event_source/devices"))
	if err != nil {
		return topology.UncoreClient, 0
	}
	links := 0
	for _, device := range devices {
		name := device.Name()
		if strings.HasPrefix(name, "uncore_upi_") || strings.HasPrefix(name, "uncore_qpi_") {
			links++
		}
	}
	if links == 0 {
		return topology.UncoreClient, 0
	}
	return topology.UncoreServer, links
}

// readCacheSize parses a cache size file (e.g., "32768K") and returns
// the value in kilobytes.
func readCacheSize(path string) int {
	value := ReadSysfsString(path)
	if value == "" {
		return 0
	}
	value = strings.TrimSuffix(value, "K")
	kilobytes, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return kilobytes
}

// countNUMANodes counts /sys/devices/system/node/node* directories.
func countNUMANodes(sysRoot string) int {
	entries, err := os.ReadDir(filepath.Join(sysRoot, "devices/system/node"))
	if err != nil {
		return 0
	}
	count := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		suffix, found := strings.CutPrefix(entry.Name(), "node")
		if found && len(suffix) > 0 && suffix[0] >= '0' && suffix[0] <= '9' {
			count++
		}
	}
	return count
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hwinfo

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/bureau-foundation/sensor-server/lib/counterstate"
)

// RAPLPlane identifies the power plane a RAPL zone meters.
type RAPLPlane int

const (
	RAPLPackage RAPLPlane = iota
	RAPLCore              // PP0
	RAPLGraphics          // PP1, named "uncore" by the kernel
	RAPLDRAM
)

// RAPLDomain is one powercap zone of the intel-rapl control type.
type RAPLDomain struct {
	Path   string
	Socket int
	Plane  RAPLPlane

	// MaxRangeMicrojoules is the value at which energy_uj wraps.
	MaxRangeMicrojoules uint64
}

// Read returns the zone's raw energy counter in microjoules.
func (d RAPLDomain) Read() (uint64, error) {
	return ReadSysfsUint64(filepath.Join(d.Path, "energy_uj"))
}

// ReadRAPLDomains enumerates /sys/class/powercap/intel-rapl:N package
// zones and their intel-rapl:N:M subzones. Zones the kernel does not
// name as a known plane (psys, for instance) are skipped. A machine
// without RAPL returns an empty list and no error.
func ReadRAPLDomains(sysRoot string) ([]RAPLDomain, error) {
	base := filepath.Join(sysRoot, "class/powercap")
	entries, err := os.ReadDir(base)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", base, err)
	}

	var domains []RAPLDomain
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "intel-rapl:") {
			continue
		}
		path := filepath.Join(base, name)
		zoneName := ReadSysfsString(filepath.Join(path, "name"))
		plane, socket, ok := classifyRAPLZone(zoneName)
		if !ok {
			continue
		}
		if plane != RAPLPackage {
			// Subzones carry the socket of their parent package zone.
			parent := name[:strings.LastIndex(name, ":")]
			_, socket, ok = classifyRAPLZone(ReadSysfsString(filepath.Join(base, parent, "name")))
			if !ok {
				continue
			}
		}
		maxRange, err := ReadSysfsUint64(filepath.Join(path, "max_energy_range_uj"))
		if err != nil {
			maxRange = 0
		}
		domains = append(domains, RAPLDomain{
			Path:                path,
			Socket:              socket,
			Plane:               plane,
			MaxRangeMicrojoules: maxRange,
		})
	}
	slices.SortFunc(domains, func(a, b RAPLDomain) int {
		if a.Socket != b.Socket {
			return a.Socket - b.Socket
		}
		return int(a.Plane) - int(b.Plane)
	})
	return domains, nil
}

// classifyRAPLZone maps a zone name to its plane. Package zones are
// named "package-N" and yield socket N.
func classifyRAPLZone(name string) (RAPLPlane, int, bool) {
	if suffix, found := strings.CutPrefix(name, "package-"); found {
		socket, err := strconv.Atoi(suffix)
		if err != nil {
			return 0, 0, false
		}
		return RAPLPackage, socket, true
	}
	switch name {
	case "core":
		return RAPLCore, 0, true
	case "uncore":
		return RAPLGraphics, 0, true
	case "dram":
		return RAPLDRAM, 0, true
	}
	return 0, 0, false
}

// EnergyAccumulator extends a wrapping RAPL counter into a monotonic
// 64-bit total. It is not safe for concurrent use.
type EnergyAccumulator struct {
	maxRange uint64
	last     uint64
	total    uint64
	primed   bool
}

// NewEnergyAccumulator returns an accumulator for a counter wrapping
// at maxRange microjoules. A zero maxRange means the counter is
// treated as a plain 64-bit value.
func NewEnergyAccumulator(maxRange uint64) *EnergyAccumulator {
	return &EnergyAccumulator{maxRange: maxRange}
}

// Update folds a raw reading in and returns the running total. The
// first reading becomes the total as is.
func (a *EnergyAccumulator) Update(raw uint64) uint64 {
	if !a.primed {
		a.primed = true
		a.last = raw
		a.total = raw
		return a.total
	}
	if raw >= a.last {
		a.total += raw - a.last
	} else if a.maxRange > a.last {
		a.total += a.maxRange - a.last + raw
	} else {
		a.total += raw
	}
	a.last = raw
	return a.total
}

// ReadIdleResidency returns the cumulative microseconds processor
// osID spent in each hardware C-state, from cpuidle's per-state
// "time" files. States are mapped by name ("C6", "C1E" -> 1, "C10");
// POLL and unnamed states are ignored.
func ReadIdleResidency(sysRoot string, osID int) ([counterstate.MaxCState + 1]uint64, error) {
	var residency [counterstate.MaxCState + 1]uint64
	base := filepath.Join(sysRoot, "devices/system/cpu", "cpu"+strconv.Itoa(osID), "cpuidle")
	states, err := os.ReadDir(base)
	if os.IsNotExist(err) {
		return residency, nil
	}
	if err != nil {
		return residency, fmt.Errorf("reading %s: %w", base, err)
	}
	for _, state := range states {
		if !strings.HasPrefix(state.Name(), "state") {
			continue
		}
		index, ok := cStateIndex(ReadSysfsString(filepath.Join(base, state.Name(), "name")))
		if !ok {
			continue
		}
		microseconds, err := ReadSysfsUint64(filepath.Join(base, state.Name(), "time"))
		if err != nil {
			return residency, err
		}
		residency[index] += microseconds
	}
	return residency, nil
}

// cStateIndex extracts N from names like "C6", "C1E", "C6S" or
// "C10_ACPI".
func cStateIndex(name string) (int, bool) {
	digits, found := strings.CutPrefix(strings.ToUpper(name), "C")
	if !found {
		return 0, false
	}
	end := 0
	for end < len(digits) && digits[end] >= '0' && digits[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	index, err := strconv.Atoi(digits[:end])
	if err != nil || index > counterstate.MaxCState {
		return 0, false
	}
	return index, true
}

// ReadCurrentFrequency returns processor osID's current scaling
// frequency in Hz, or zero when cpufreq is unavailable.
func ReadCurrentFrequency(sysRoot string, osID int) uint64 {
	path := filepath.Join(sysRoot, "devices/system/cpu", "cpu"+strconv.Itoa(osID), "cpufreq/scaling_cur_freq")
	kilohertz := ReadSysfsInt(path, 0)
	if kilohertz <= 0 {
		return 0
	}
	return uint64(kilohertz) * 1000
}

// ReadThermalHeadroom returns, per socket, the distance in degrees
// Celsius between the package temperature and its critical limit, as
// reported by the coretemp hwmon driver.
func ReadThermalHeadroom(sysRoot string) map[int]int32 {
	headroom := make(map[int]int32)
	base := filepath.Join(sysRoot, "class/hwmon")
	monitors, err := os.ReadDir(base)
	if err != nil {
		return headroom
	}
	for _, monitor := range monitors {
		path := filepath.Join(base, monitor.Name())
		if ReadSysfsString(filepath.Join(path, "name")) != "coretemp" {
			continue
		}
		device, err := os.Readlink(filepath.Join(path, "device"))
		if err != nil {
			continue
		}
		socketText, found := strings.CutPrefix(filepath.Base(device), "coretemp.")
		if !found {
			continue
		}
		socket, err := strconv.Atoi(socketText)
		if err != nil {
			continue
		}
		input := ReadSysfsInt(filepath.Join(path, "temp1_input"), -1)
		critical := ReadSysfsInt(filepath.Join(path, "temp1_crit"), -1)
		if input < 0 || critical < 0 {
			continue
		}
		headroom[socket] = int32((critical - input) / 1000)
	}
	return headroom
}

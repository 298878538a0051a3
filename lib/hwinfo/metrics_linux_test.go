// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hwinfo

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadRAPLDomains(t *testing.T) {
	root := t.TempDir()
	zones := map[string]string{
		"intel-rapl:0":   "package-0",
		"intel-rapl:0:0": "core",
		"intel-rapl:0:1": "dram",
		"intel-rapl:1":   "package-1",
		"intel-rapl:1:0": "uncore",
		"intel-rapl:2":   "psys",
	}
	for zone, name := range zones {
		writeSyntheticFile(t, root, filepath.Join("sys/class/powercap", zone, "name"), name+"\n")
		writeSyntheticFile(t, root, filepath.Join("sys/class/powercap", zone, "energy_uj"), "1000\n")
		writeSyntheticFile(t, root, filepath.Join("sys/class/powercap", zone, "max_energy_range_uj"), "262143328850\n")
	}
	// The control type directory is not a zone.
	writeSyntheticFile(t, root, "sys/class/powercap/intel-rapl/enabled", "1\n")

	domains, err := ReadRAPLDomains(filepath.Join(root, "sys"))
	if err != nil {
		t.Fatalf("ReadRAPLDomains: %v", err)
	}

	type key struct {
		socket int
		plane  RAPLPlane
	}
	want := []key{
		{0, RAPLPackage},
		{0, RAPLCore},
		{0, RAPLDRAM},
		{1, RAPLPackage},
		{1, RAPLGraphics},
	}
	if len(domains) != len(want) {
		t.Fatalf("len(domains) = %d, want %d: %+v", len(domains), len(want), domains)
	}
	for index, domain := range domains {
		if (key{domain.Socket, domain.Plane}) != want[index] {
			t.Errorf("domain %d = socket %d plane %d, want %+v", index, domain.Socket, domain.Plane, want[index])
		}
		if domain.MaxRangeMicrojoules != 262143328850 {
			t.Errorf("domain %d MaxRangeMicrojoules = %d", index, domain.MaxRangeMicrojoules)
		}
	}

	energy, err := domains[0].Read()
	if err != nil || energy != 1000 {
		t.Errorf("Read = (%d, %v), want (1000, nil)", energy, err)
	}
}

func TestReadRAPLDomainsWithoutPowercap(t *testing.T) {
	domains, err := ReadRAPLDomains(t.TempDir())
	if err != nil || len(domains) != 0 {
		t.Errorf("ReadRAPLDomains on empty sysfs = (%v, %v), want (none, nil)", domains, err)
	}
}

func TestEnergyAccumulatorWraps(t *testing.T) {
	accumulator := NewEnergyAccumulator(1000)
	steps := []struct {
		raw  uint64
		want uint64
	}{
		{900, 900},
		{950, 950},
		{50, 1050}, // wrapped: 50 to the top plus 50 after
		{100, 1100},
	}
	for _, step := range steps {
		if got := accumulator.Update(step.raw); got != step.want {
			t.Errorf("Update(%d) = %d, want %d", step.raw, got, step.want)
		}
	}
}

func TestReadIdleResidency(t *testing.T) {
	root := t.TempDir()
	states := []struct{ name, time string }{
		{"POLL", "5"},
		{"C1", "100"},
		{"C1E", "50"},
		{"C6", "700"},
		{"C10_ACPI", "3"},
	}
	for index, state := range states {
		dir := filepath.Join("sys/devices/system/cpu/cpu3/cpuidle", "state"+string(rune('0'+index)))
		writeSyntheticFile(t, root, filepath.Join(dir, "name"), state.name+"\n")
		writeSyntheticFile(t, root, filepath.Join(dir, "time"), state.time+"\n")
	}

	residency, err := ReadIdleResidency(filepath.Join(root, "sys"), 3)
	if err != nil {
		t.Fatalf("ReadIdleResidency: %v", err)
	}
	if residency[0] != 0 {
		t.Errorf("residency[0] = %d, POLL must not count", residency[0])
	}
	if residency[1] != 150 {
		t.Errorf("residency[1] = %d, want C1+C1E = 150", residency[1])
	}
	if residency[6] != 700 || residency[10] != 3 {
		t.Errorf("residency[6]/[10] = %d/%d, want 700/3", residency[6], residency[10])
	}

	// A processor without cpuidle reports zeros.
	empty, err := ReadIdleResidency(filepath.Join(root, "sys"), 0)
	if err != nil || empty != [len(empty)]uint64{} {
		t.Errorf("missing cpuidle = (%v, %v), want zeros", empty, err)
	}
}

func TestReadCurrentFrequency(t *testing.T) {
	root := t.TempDir()
	writeSyntheticFile(t, root, "sys/devices/system/cpu/cpu1/cpufreq/scaling_cur_freq", "3100000\n")
	if got := ReadCurrentFrequency(filepath.Join(root, "sys"), 1); got != 3_100_000_000 {
		t.Errorf("ReadCurrentFrequency = %d, want 3.1e9", got)
	}
	if got := ReadCurrentFrequency(filepath.Join(root, "sys"), 2); got != 0 {
		t.Errorf("ReadCurrentFrequency without cpufreq = %d, want 0", got)
	}
}

func TestReadThermalHeadroom(t *testing.T) {
	root := t.TempDir()
	writeSyntheticFile(t, root, "sys/class/hwmon/hwmon3/name", "coretemp\n")
	writeSyntheticFile(t, root, "sys/class/hwmon/hwmon3/temp1_input", "55000\n")
	writeSyntheticFile(t, root, "sys/class/hwmon/hwmon3/temp1_crit", "100000\n")
	writeSyntheticFile(t, root, "sys/devices/platform/coretemp.1/placeholder", "")
	if err := os.Symlink(filepath.Join(root, "sys/devices/platform/coretemp.1"),
		filepath.Join(root, "sys/class/hwmon/hwmon3/device")); err != nil {
		t.Fatalf("Symlink: %v", err)
	}
	writeSyntheticFile(t, root, "sys/class/hwmon/hwmon0/name", "acpitz\n")

	headroom := ReadThermalHeadroom(filepath.Join(root, "sys"))
	if len(headroom) != 1 || headroom[1] != 45 {
		t.Errorf("ReadThermalHeadroom = %v, want map[1:45]", headroom)
	}
}

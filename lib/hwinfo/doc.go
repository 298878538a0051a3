// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package hwinfo probes the host's processor hardware from /proc and
// /sys on Linux.
//
// # Static inventory
//
// [Probe] reads the CPU model, kernel version, nominal frequency, the
// uncore class and one [topology.Entry] per logical processor from
// /sys/devices/system/cpu. Offline processors are listed separately.
// Missing or unreadable files produce zero-valued fields rather than
// failures: a container with a minimal /sys is still a valid machine.
//
// # Runtime readers
//
// metrics_linux.go reads the free-running counters the kernel exports
// without privileged register access:
//
//   - RAPL energy from /sys/class/powercap ([ReadRAPLDomains],
//     [RAPLDomain.Read] with wrap-around at max_energy_range_uj)
//   - Per-processor idle state residency from cpuidle
//     ([ReadIdleResidency])
//   - Per-processor scaling frequency from cpufreq ([ReadCurrentFrequency])
//
// The sysfs helpers in sysfs.go ([ReadSysfsString], [ReadSysfsInt],
// [ReadSysfsUint64], [ParseCPUList]) are shared by lib/sensor.
package hwinfo

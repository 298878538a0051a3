// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sensor reads the hardware counters behind every snapshot.
//
// A [Provider] serves the four read paths the aggregator drives: one
// logical processor, one socket's uncore, the inter-socket links and
// the accelerator devices. Two providers exist.
//
// [Open] (Linux) counts with perf_event_open. Per processor it opens
// the generic instruction, cycle, reference cycle and last-level cache
// events. Per socket it opens whatever the kernel publishes under
// /sys/bus/event_source/devices: memory controller CAS or data
// counters, cstate_pkg residencies, the uncore clock and UPI flit
// counters. Events are encoded from each PMU's format directory, so no
// register layout is compiled in. Energy comes from RAPL powercap
// zones, core C-state residency from cpuidle and thermal headroom from
// coretemp, all through lib/hwinfo. Only the core instruction and
// cycle counters are mandatory; anything else the machine lacks reads
// zero.
//
// [NewSynthetic] generates counters that grow at fixed rates. It backs
// --synthetic, non-Linux hosts and tests, and reproduces exact values
// under a fake clock.
package sensor

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package counterstate defines the raw hardware counter snapshots the
// sensor server accumulates and differences.
//
// A [Basic] state belongs to one logical processor (or a fold of
// several), an [Uncore] state to one socket's shared domain, a
// [Socket] state combines both, and a [System] state adds the
// whole-machine link and accelerator counters. States are plain
// values: [Basic.Add] and friends fold a child into a parent, and
// [Basic.Sub] yields the difference between two readings of the same
// domain. Counter registers are free-running and may wrap, so
// differences use modular uint64 arithmetic.
//
// The package never reads hardware. Values come from a provider (see
// lib/sensor); derived metrics in metrics.go (IPC, frequency, cache hit
// ratios, residency ratios, joules, link utilization) are computed from
// a difference plus the measurement interval.
package counterstate

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package aggregator takes one consistent reading of every counter
// domain in a topology and folds the results into a [Snapshot].
//
// [Aggregator.Dispatch] fans out: it walks the tree and submits one
// executor future per online logical processor and one per socket
// uncore before it waits on any of them. It then fans in, in topology
// order: processor states land in slots indexed by OS id and are folded
// into their socket's core total and the system core total, and uncore
// states are added to their socket's uncore half and the system uncore
// total. The two halves never mix, so nothing is counted twice.
// Inter-socket links and accelerators are read last, synchronously,
// through the [SystemReader].
//
// A read that fails or panics leaves a zero state in its slot and is
// logged; one bad domain never fails the snapshot. Dispatch fails only
// when its context ends.
package aggregator

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package topology models the processor hierarchy of one machine:
// a [SystemRoot] owns [Socket]s, each socket owns [Core]s and exactly
// one [Uncore], and each core owns up to [MaxThreadsPerCore]
// [LogicalProcessor]s.
//
// The tree is built once at start-up by [Build] from flat [Entry]
// records (see lib/hwinfo for sysfs discovery) and is immutable
// afterwards. Online and offline status is fixed at build time.
//
// Consumers traverse the tree with a [Visitor]. Every node has an
// Accept method that calls the matching Visit method; visitors that
// need nesting recurse themselves through the node accessors, and
// [Walk] drives the canonical flat order: sockets by id, then each
// socket's cores by id with their threads by OS id, then the socket's
// uncore. Snapshot slot indices depend on that order being stable.
package topology

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package history keeps the most recent snapshots and the background
// loop that produces them.
//
// [History] is a newest-first buffer capped at [Capacity] entries. The
// [Fetcher] is its only writer; request handlers read it through
// [History.Pair], which blocks until enough samples exist instead of
// returning a malformed pair. Readers hold the lock only long enough
// to copy two pointers, so rendering never delays the next insertion.
//
// The Fetcher is an executor job. Once submitted it occupies one
// worker until [Fetcher.Stop], dispatching the aggregator on each
// interval boundary while it is running and idling while paused.
package history

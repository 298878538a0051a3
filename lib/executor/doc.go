// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package executor provides the sensor server's worker pool: a fixed
// set of goroutines draining one shared FIFO of [Job] values.
//
// Every asynchronous activity in the server is a job on a [Pool]: the
// per-processor and per-uncore counter reads issued by the aggregator,
// the periodic fetcher loop, and each accepted HTTP connection for its
// whole keep-alive lifetime.
//
// A nil job is the shutdown sentinel. One sentinel stops one worker;
// [Pool.Drain] enqueues one per live worker and joins them, so every
// job queued before the drain still runs.
//
// Jobs are isolated from each other. A job that panics is recovered
// and logged by its worker, which then returns to the queue. [Go]
// wraps a function as a job and returns a [Future]: the submitter
// issues work now and blocks on the result later. A panicking future
// job fails its future with [ErrJobPanicked] instead of leaving the
// waiter blocked forever.
package executor

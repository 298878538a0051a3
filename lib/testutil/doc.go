// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [RequireReceive], [RequireSend], and [RequireClosed] encapsulate the
// timeout safety valve pattern (select with time.After fallback) so
// that individual tests do not need direct time.After calls. They are
// the only place tests use real wall-clock timeouts; everything that
// is itself time-driven runs on lib/clock's fake clock.
//
// [RequireEventually] polls a condition for state that has no channel
// to wait on, such as a worker count or a history length.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil

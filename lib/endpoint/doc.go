// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package endpoint implements the sensor server's HTTP routes on top
// of lib/httpserver.
//
// Routes:
//
//	/              landing page, or absolute counters when Accept asks
//	               for JSON, Prometheus or CBOR
//	/persecond[/N] difference between samples N seconds apart (N=1..30)
//	/metrics       absolute counters as Prometheus text plus the
//	               server's own metrics
//	/favicon.ico   the embedded icon
//
// Absolute counters pair the aggregator's zero snapshot with a fresh
// dispatch; per-second counters pair two entries of the history ring,
// waiting until enough samples exist.
//
// The counter format is picked by [Negotiate]. Bodies of a kilobyte or
// more are compressed with zstd or gzip when Accept-Encoding allows.
// The static resources carry BLAKE3-derived ETags and answer
// If-None-Match with 304.
package endpoint

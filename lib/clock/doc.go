// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source for the sensor
// server's sampling loop and connection deadlines.
//
// Production code holds a [Clock] and calls [Real] at the composition
// root. Tests use [Fake], whose time stands still until Advance is
// called:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	fetcher := history.NewFetcher(history.FetcherConfig{Clock: fake, ...})
//	fetcher.Start()
//	fake.WaitForTimers(1)      // the loop is parked until the next boundary
//	fake.Advance(time.Second)  // release exactly one sample
//
// WaitForTimers closes the race between a goroutine registering its
// wait and the test advancing time.
package clock

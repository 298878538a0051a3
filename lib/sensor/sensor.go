// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sensor

import (
	"errors"
	"strings"

	"github.com/bureau-foundation/sensor-server/lib/aggregator"
	"github.com/bureau-foundation/sensor-server/lib/topology"
)

// Provider reads every counter domain of the machine. Reads are called
// concurrently from executor workers.
type Provider interface {
	topology.Reader
	aggregator.SystemReader
	Close() error
}

// ErrUnsupported is returned by Open on platforms without perf events.
var ErrUnsupported = errors.New("sensor: hardware counters are only supported on Linux")

// acceleratorKind returns the name the documents use for an
// accelerator family: "iaa" becomes "IAA".
func acceleratorKind(family string) string {
	return strings.ToUpper(family)
}

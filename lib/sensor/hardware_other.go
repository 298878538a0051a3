// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package sensor

import (
	"log/slog"

	"github.com/bureau-foundation/sensor-server/lib/clock"
	"github.com/bureau-foundation/sensor-server/lib/hwinfo"
)

// HardwareConfig configures the perf-based provider.
type HardwareConfig struct {
	Inventory   hwinfo.Inventory
	SysRoot     string
	Accelerator string
	Clock       clock.Clock
	Logger      *slog.Logger
}

// Open always fails: perf events exist only on Linux. Callers fall
// back to NewSynthetic.
func Open(HardwareConfig) (Provider, error) {
	return nil, ErrUnsupported
}

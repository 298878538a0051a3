// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package hwinfo

import "os"

// Probe returns an inventory with no processor entries: topology
// discovery needs Linux sysfs. Callers fall back to the synthetic
// provider.
func Probe() Inventory {
	hostname, _ := os.Hostname()
	return Inventory{Hostname: hostname}
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/sensor-server/lib/config"
	"github.com/bureau-foundation/sensor-server/lib/hwinfo"
	"github.com/bureau-foundation/sensor-server/lib/sensor"
	"github.com/bureau-foundation/sensor-server/lib/topology"
)

// Layout of the machine simulated when the host's topology cannot be
// read.
const (
	fallbackSockets        = 1
	fallbackCoresPerSocket = 4
	fallbackThreadsPerCore = 2
)

// machine is the topology tree and the provider its nodes read from.
type machine struct {
	root      *topology.SystemRoot
	provider  sensor.Provider
	synthetic bool
}

// openMachine discovers the topology and opens a counter provider for
// it. Synthetic counters are used when asked for, when only the
// topology will be printed, and when the platform has no perf events.
func openMachine(cfg *config.Config, logger *slog.Logger) (*machine, error) {
	return buildMachine(cfg, hwinfo.Probe(), logger)
}

func buildMachine(cfg *config.Config, inventory hwinfo.Inventory, logger *slog.Logger) (*machine, error) {
	var provider sensor.Provider
	synthetic := cfg.Synthetic || cfg.PrintTopology
	if !synthetic {
		hardware, err := sensor.Open(sensor.HardwareConfig{
			Inventory:   inventory,
			Accelerator: cfg.Accelerator,
			Logger:      logger,
		})
		switch {
		case errors.Is(err, sensor.ErrUnsupported):
			logger.Warn("hardware counters unsupported on this platform, serving synthetic counters")
			synthetic = true
		case err != nil:
			return nil, err
		default:
			provider = hardware
		}
	}

	if synthetic {
		if len(inventory.Entries) == 0 {
			inventory.Entries = sensor.SyntheticEntries(fallbackSockets, fallbackCoresPerSocket, fallbackThreadsPerCore)
			inventory.Offline = nil
			logger.Warn("processor topology unavailable, simulating a default machine",
				"sockets", fallbackSockets,
				"cores_per_socket", fallbackCoresPerSocket,
				"threads_per_core", fallbackThreadsPerCore,
			)
		}
		provider = sensor.NewSynthetic(sensor.SyntheticConfig{
			Entries:            inventory.Entries,
			NominalFrequencyHz: inventory.NominalFrequencyHz,
			LinksPerSocket:     inventory.LinksPerSocket,
			Accelerator:        cfg.Accelerator,
		})
	}

	root, err := topology.Build(topology.Options{
		Entries:            inventory.Entries,
		Offline:            inventory.Offline,
		Reader:             provider,
		Class:              inventory.UncoreClass,
		NominalFrequencyHz: inventory.NominalFrequencyHz,
	})
	if err != nil {
		provider.Close()
		return nil, fmt.Errorf("building topology: %w", err)
	}
	return &machine{root: root, provider: provider, synthetic: synthetic}, nil
}

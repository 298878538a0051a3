// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package topology

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
)

// Options describes the machine to build.
type Options struct {
	// Entries holds one record per logical processor with usable
	// topology. Entries with a negative SocketID are treated as
	// offline.
	Entries []Entry

	// Offline lists OS ids of processors that are present but offline.
	Offline []int

	// Reader serves counter reads for every processor and uncore.
	// Required.
	Reader Reader

	// Class selects the uncore node kind.
	Class UncoreClass

	NominalFrequencyHz uint64
}

// Build groups entries into sockets and cores and returns the tree.
// Sockets are ordered by id, cores by id within a socket and threads
// by OS id within a core.
func Build(options Options) (*SystemRoot, error) {
	if options.Reader == nil {
		return nil, errors.New("topology: Reader is required")
	}

	root := &SystemRoot{
		NominalFrequencyHz: options.NominalFrequencyHz,
		Class:              options.Class,
	}

	offlineIDs := make(map[int]bool, len(options.Offline))
	for _, osID := range options.Offline {
		if osID < 0 {
			return nil, fmt.Errorf("topology: negative offline os id %d", osID)
		}
		offlineIDs[osID] = true
	}

	seen := make(map[int]bool, len(options.Entries))
	online := make([]Entry, 0, len(options.Entries))
	for _, entry := range options.Entries {
		if entry.OSID < 0 {
			return nil, fmt.Errorf("topology: negative os id %d", entry.OSID)
		}
		if seen[entry.OSID] {
			return nil, fmt.Errorf("%w: os id %d", ErrDuplicateProcessor, entry.OSID)
		}
		seen[entry.OSID] = true
		if entry.SocketID < 0 || offlineIDs[entry.OSID] {
			offlineIDs[entry.OSID] = true
			continue
		}
		online = append(online, entry)
	}

	slices.SortFunc(online, func(a, b Entry) int {
		return cmp.Or(
			cmp.Compare(a.SocketID, b.SocketID),
			cmp.Compare(a.CoreID, b.CoreID),
			cmp.Compare(a.OSID, b.OSID),
		)
	})

	var socket *Socket
	var core *Core
	for _, entry := range online {
		if socket == nil || socket.SocketID != entry.SocketID {
			socket = &Socket{SocketID: entry.SocketID, Index: len(root.sockets)}
			socket.uncore = newUncore(options.Class, entry.SocketID, options.Reader)
			root.sockets = append(root.sockets, socket)
			core = nil
		}
		if core == nil || core.CoreID != entry.CoreID {
			core = newCore(entry)
			socket.cores = append(socket.cores, core)
		}
		processor := &LogicalProcessor{Entry: entry, online: true, reader: options.Reader}
		if err := core.AddProcessor(processor); err != nil {
			return nil, err
		}
		root.processorCount = max(root.processorCount, entry.OSID+1)
	}

	offline := make([]int, 0, len(offlineIDs))
	for osID := range offlineIDs {
		offline = append(offline, osID)
	}
	slices.Sort(offline)
	for _, osID := range offline {
		root.offline = append(root.offline, &LogicalProcessor{
			Entry: Entry{
				OSID:     osID,
				ThreadID: -1,
				CoreID:   -1,
				SocketID: -1,
				Kind:     CoreKindInvalid,
			},
			reader: options.Reader,
		})
		root.processorCount = max(root.processorCount, osID+1)
	}

	return root, nil
}

func newUncore(class UncoreClass, socketID int, reader Reader) Uncore {
	base := uncoreBase{socketID: socketID, reader: reader}
	if class == UncoreServer {
		return &ServerUncore{base}
	}
	return &ClientUncore{base}
}

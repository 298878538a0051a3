// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bureau-foundation/sensor-server/lib/aggregator"
)

// Capacity is the largest distance Pair accepts. The buffer retains
// Capacity+1 snapshots, one more than Capacity, because a pair at
// distance Capacity needs Capacity+1 samples. Capping the buffer at
// Capacity would leave Pair(Capacity) waiting forever.
const Capacity = 30

const retained = Capacity + 1

// ErrInvalidDistance is returned by Pair for a distance outside
// 1..Capacity.
var ErrInvalidDistance = errors.New("history: distance out of range")

// History is a newest-first buffer of snapshots. The zero value is not
// usable; call New.
type History struct {
	mu        sync.Mutex
	snapshots []*aggregator.Snapshot

	// pushed is closed and replaced on every Push, waking all blocked
	// Pair calls at once.
	pushed chan struct{}
}

// New returns an empty History.
func New() *History {
	return &History{
		snapshots: make([]*aggregator.Snapshot, 0, retained+1),
		pushed:    make(chan struct{}),
	}
}

// Push inserts snapshot as the newest entry, evicting the oldest when
// the buffer is full.
func (h *History) Push(snapshot *aggregator.Snapshot) {
	h.mu.Lock()
	h.snapshots = append(h.snapshots, nil)
	copy(h.snapshots[1:], h.snapshots)
	h.snapshots[0] = snapshot
	if len(h.snapshots) > retained {
		h.snapshots[retained] = nil
		h.snapshots = h.snapshots[:retained]
	}
	wake := h.pushed
	h.pushed = make(chan struct{})
	h.mu.Unlock()

	close(wake)
}

// Len returns the number of retained snapshots.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.snapshots)
}

// At returns the snapshot index insertions old, where 0 is the newest,
// or nil if there is no such entry.
func (h *History) At(index int) *aggregator.Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	if index < 0 || index >= len(h.snapshots) {
		return nil
	}
	return h.snapshots[index]
}

// Newest blocks until at least one snapshot exists and returns it.
func (h *History) Newest(ctx context.Context) (*aggregator.Snapshot, error) {
	for {
		h.mu.Lock()
		if len(h.snapshots) > 0 {
			newest := h.snapshots[0]
			h.mu.Unlock()
			return newest, nil
		}
		wait := h.pushed
		h.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Pair returns the newest snapshot and the one inserted distance
// pushes before it. It blocks until distance+1 snapshots exist or ctx
// is done.
func (h *History) Pair(ctx context.Context, distance int) (older, newer *aggregator.Snapshot, err error) {
	if distance < 1 || distance > Capacity {
		return nil, nil, fmt.Errorf("%w: %d not in 1..%d", ErrInvalidDistance, distance, Capacity)
	}
	for {
		h.mu.Lock()
		if len(h.snapshots) > distance {
			older, newer = h.snapshots[distance], h.snapshots[0]
			h.mu.Unlock()
			return older, newer, nil
		}
		wait := h.pushed
		h.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}
}

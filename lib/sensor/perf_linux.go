// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sensor

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// counter is one free-running perf event counting on one processor.
// A nil *counter reads zero, so optional events need no checks at the
// call sites.
type counter struct {
	fd   int
	name string
}

// openCounter starts counting an event system-wide on cpu.
func openCounter(name string, typ uint32, config eventConfig, cpu int) (*counter, error) {
	attr := unix.PerfEventAttr{
		Type:        typ,
		Size:        uint32(unsafe.Sizeof(unix.PerfEventAttr{})),
		Config:      config[0],
		Ext1:        config[1],
		Ext2:        config[2],
		Read_format: unix.PERF_FORMAT_TOTAL_TIME_ENABLED | unix.PERF_FORMAT_TOTAL_TIME_RUNNING,
	}
	fd, err := unix.PerfEventOpen(&attr, -1, cpu, -1, unix.PERF_FLAG_FD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("perf_event_open %s on cpu %d: %w", name, cpu, err)
	}
	return &counter{fd: fd, name: name}, nil
}

// read returns the count, extrapolated when the kernel multiplexed the
// event.
func (c *counter) read() (uint64, error) {
	if c == nil {
		return 0, nil
	}
	var buffer [24]byte
	n, err := unix.Read(c.fd, buffer[:])
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", c.name, err)
	}
	if n != len(buffer) {
		return 0, fmt.Errorf("reading %s: short read of %d bytes", c.name, n)
	}
	return scaleCount(
		binary.NativeEndian.Uint64(buffer[0:8]),
		binary.NativeEndian.Uint64(buffer[8:16]),
		binary.NativeEndian.Uint64(buffer[16:24]),
	), nil
}

func (c *counter) close() error {
	if c == nil {
		return nil
	}
	return unix.Close(c.fd)
}

// counterSet collects opened counters so they can be closed together.
type counterSet struct {
	counters []*counter
}

func (s *counterSet) add(c *counter) *counter {
	if c != nil {
		s.counters = append(s.counters, c)
	}
	return c
}

func (s *counterSet) close() error {
	var first error
	for _, c := range s.counters {
		if err := c.close(); err != nil && first == nil {
			first = err
		}
	}
	s.counters = nil
	return first
}

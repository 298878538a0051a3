// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package main

import "golang.org/x/sys/unix"

// setRealtimePriority moves the calling thread, and the threads it
// creates from then on, to the lowest SCHED_RR priority.
func setRealtimePriority() error {
	attr := unix.SchedAttr{
		Size:     unix.SizeofSchedAttr,
		Policy:   unix.SCHED_RR,
		Priority: 1,
	}
	return unix.SchedSetAttr(0, &attr, 0)
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package main

import "errors"

func setRealtimePriority() error {
	return errors.New("realtime scheduling is only supported on Linux")
}

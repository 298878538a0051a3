// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hwinfo

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ReadSysfsString reads a single-line sysfs file and returns its
// trimmed content. Returns "" on any error.
func ReadSysfsString(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// ReadSysfsInt reads an integer from a sysfs file. Returns fallback
// if the file is missing or does not hold an integer.
func ReadSysfsInt(path string, fallback int) int {
	value := ReadSysfsString(path)
	if value == "" {
		return fallback
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return result
}

// ReadSysfsUint64 reads an unsigned 64-bit counter from a sysfs file.
// Unlike the lenient helpers above it reports failures, because a
// silently zero counter would corrupt every delta computed from it.
func ReadSysfsUint64(path string) (uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", path, err)
	}
	return value, nil
}

// ParseCPUList parses the kernel's cpulist format ("0-3,8,10-11")
// into a list of processor ids. An empty list yields no ids.
func ParseCPUList(list string) ([]int, error) {
	list = strings.TrimSpace(list)
	if list == "" {
		return nil, nil
	}
	var ids []int
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		first, last, isRange := strings.Cut(part, "-")
		start, err := strconv.Atoi(first)
		if err != nil {
			return nil, fmt.Errorf("cpulist %q: invalid id %q", list, first)
		}
		end := start
		if isRange {
			end, err = strconv.Atoi(last)
			if err != nil {
				return nil, fmt.Errorf("cpulist %q: invalid id %q", list, last)
			}
			if end < start {
				return nil, fmt.Errorf("cpulist %q: descending range %q", list, part)
			}
		}
		for id := start; id <= end; id++ {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// cpuDirectoryID returns N for a "cpuN" directory name. Other entries
// under /sys/devices/system/cpu (cpufreq, cpuidle, ...) return false.
func cpuDirectoryID(name string) (int, bool) {
	suffix, found := strings.CutPrefix(name, "cpu")
	if !found || suffix == "" {
		return 0, false
	}
	for _, character := range suffix {
		if character < '0' || character > '9' {
			return 0, false
		}
	}
	id, err := strconv.Atoi(suffix)
	if err != nil {
		return 0, false
	}
	return id, true
}

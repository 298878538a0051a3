// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sensor

import (
	"cmp"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/bureau-foundation/sensor-server/lib/hwinfo"
)

// bitRange is one "lo-hi" span of a PMU format field.
type bitRange struct {
	low, high uint
}

// formatField says where an event term lands in perf_event_attr:
// which config word and which bits of it.
type formatField struct {
	word   int // 0 config, 1 config1, 2 config2
	ranges []bitRange
}

// eventConfig is the encoded form of an event spec.
type eventConfig [3]uint64

// pmu is one kernel performance monitoring unit as described under
// /sys/bus/event_source/devices.
type pmu struct {
	name    string
	typ     uint32
	cpus    []int
	formats map[string]formatField
	dir     string
}

func pmuDirectory(sysRoot string) string {
	return filepath.Join(sysRoot, "bus/event_source/devices")
}

// readPMU loads the type, cpumask and format fields of the named PMU.
func readPMU(sysRoot, name string) (*pmu, error) {
	dir := filepath.Join(pmuDirectory(sysRoot), name)
	typeText := hwinfo.ReadSysfsString(filepath.Join(dir, "type"))
	if typeText == "" {
		return nil, fmt.Errorf("pmu %s: no type", name)
	}
	typ, err := strconv.ParseUint(typeText, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("pmu %s: type %q: %w", name, typeText, err)
	}
	cpus, err := hwinfo.ParseCPUList(hwinfo.ReadSysfsString(filepath.Join(dir, "cpumask")))
	if err != nil {
		return nil, fmt.Errorf("pmu %s: %w", name, err)
	}

	formats := make(map[string]formatField)
	entries, err := os.ReadDir(filepath.Join(dir, "format"))
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("pmu %s: %w", name, err)
	}
	for _, entry := range entries {
		field, err := parseFormat(hwinfo.ReadSysfsString(filepath.Join(dir, "format", entry.Name())))
		if err != nil {
			return nil, fmt.Errorf("pmu %s: format %s: %w", name, entry.Name(), err)
		}
		formats[entry.Name()] = field
	}
	return &pmu{name: name, typ: uint32(typ), cpus: cpus, formats: formats, dir: dir}, nil
}

// parseFormat parses a format file such as "config:0-7",
// "config1:0-15" or "config:0-7,21".
func parseFormat(text string) (formatField, error) {
	word, spans, found := strings.Cut(text, ":")
	if !found {
		return formatField{}, fmt.Errorf("format %q has no config word", text)
	}
	var field formatField
	switch word {
	case "config":
		field.word = 0
	case "config1":
		field.word = 1
	case "config2":
		field.word = 2
	default:
		return formatField{}, fmt.Errorf("format %q: unknown word %q", text, word)
	}
	for _, span := range strings.Split(spans, ",") {
		lowText, highText, isRange := strings.Cut(span, "-")
		low, err := strconv.ParseUint(lowText, 10, 8)
		if err != nil {
			return formatField{}, fmt.Errorf("format %q: bit %q", text, lowText)
		}
		high := low
		if isRange {
			high, err = strconv.ParseUint(highText, 10, 8)
			if err != nil || high < low || high > 63 {
				return formatField{}, fmt.Errorf("format %q: bit %q", text, highText)
			}
		}
		field.ranges = append(field.ranges, bitRange{low: uint(low), high: uint(high)})
	}
	return field, nil
}

// place scatters value into the field's bit ranges, low bits first.
func (f formatField) place(config *eventConfig, value uint64) {
	for _, span := range f.ranges {
		width := span.high - span.low + 1
		mask := uint64(1)<<width - 1
		if width == 64 {
			mask = ^uint64(0)
		}
		config[f.word] |= (value & mask) << span.low
		value >>= width
	}
}

// encode turns an event spec like "event=0x04,umask=0x0f" into config
// words. A bare term ("edge") sets its field to 1.
func (p *pmu) encode(spec string) (eventConfig, error) {
	var config eventConfig
	for _, term := range strings.Split(spec, ",") {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		name, valueText, hasValue := strings.Cut(term, "=")
		value := uint64(1)
		if hasValue {
			parsed, err := strconv.ParseUint(valueText, 0, 64)
			if err != nil {
				return config, fmt.Errorf("pmu %s: term %q: %w", p.name, term, err)
			}
			value = parsed
		}
		field, ok := p.formats[name]
		if !ok {
			return config, fmt.Errorf("pmu %s: unknown term %q", p.name, name)
		}
		field.place(&config, value)
	}
	return config, nil
}

// namedEvent encodes the event the kernel publishes under
// events/<name>, or reports false when there is none.
func (p *pmu) namedEvent(name string) (eventConfig, bool) {
	spec := hwinfo.ReadSysfsString(filepath.Join(p.dir, "events", name))
	if spec == "" {
		return eventConfig{}, false
	}
	config, err := p.encode(spec)
	if err != nil {
		return eventConfig{}, false
	}
	return config, true
}

// listPMUs returns the PMU names starting with prefix, ordered by
// their numeric suffix so uncore_imc_10 follows uncore_imc_9.
func listPMUs(sysRoot, prefix string) []string {
	entries, err := os.ReadDir(pmuDirectory(sysRoot))
	if err != nil {
		return nil
	}
	var names []string
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), prefix) {
			names = append(names, entry.Name())
		}
	}
	slices.SortFunc(names, func(a, b string) int {
		return cmp.Or(cmp.Compare(pmuIndex(a, prefix), pmuIndex(b, prefix)), cmp.Compare(a, b))
	})
	return names
}

// pmuIndex returns the trailing number of a PMU name, or -1.
func pmuIndex(name, prefix string) int {
	index, err := strconv.Atoi(strings.TrimPrefix(strings.TrimPrefix(name, prefix), "_"))
	if err != nil {
		return -1
	}
	return index
}

// scaleCount extrapolates a multiplexed count to the full enabled
// time.
func scaleCount(value, enabled, running uint64) uint64 {
	switch {
	case running == 0:
		return 0
	case running >= enabled:
		return value
	}
	return uint64(float64(value) * float64(enabled) / float64(running))
}

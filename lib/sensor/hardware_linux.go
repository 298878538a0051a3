// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package sensor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/sensor-server/lib/clock"
	"github.com/bureau-foundation/sensor-server/lib/counterstate"
	"github.com/bureau-foundation/sensor-server/lib/hwinfo"
)

// HardwareConfig configures the perf-based provider.
type HardwareConfig struct {
	// Inventory supplies the processors to open counters on and the
	// nominal frequency. Required.
	Inventory hwinfo.Inventory

	// SysRoot is the sysfs mount. Defaults to "/sys".
	SysRoot string

	// Accelerator is "iaa", "dsa", "qat" or empty.
	Accelerator string

	// Clock defaults to clock.Real().
	Clock clock.Clock

	// Logger receives notes about unavailable events. Required.
	Logger *slog.Logger
}

// Event encodings for PMUs the kernel publishes without named events.
const (
	// UPI flit counters: RxL_FLITS.ALL_DATA and TxL_FLITS.ALL_DATA.
	upiIncomingSpec = "event=0x03,umask=0x0f"
	upiOutgoingSpec = "event=0x02,umask=0x0f"

	// Nine flits carry one 64-byte cache line.
	upiFlitsPerLine = 9

	// upiPeakBytesPerSecond is one link at 10.4 GT/s.
	upiPeakBytesPerSecond = 20_800_000_000

	// idxd perfmon encodings for IAA and DSA devices.
	idxdInboundSpec   = "event_category=0x3,event=0x1"
	idxdOutboundSpec  = "event_category=0x3,event=0x2"
	idxdSharedSpec    = "event_category=0x0,event=0x1"
	idxdDedicatedSpec = "event_category=0x0,event=0x2"

	cacheLineBytes = 64

	thermalCacheTTL = 500 * time.Millisecond
)

type coreCounters struct {
	instructions  *counter
	cycles        *counter
	refCycles     *counter
	llcReferences *counter
	llcMisses     *counter
}

type raplCounter struct {
	domain      hwinfo.RAPLDomain
	accumulator *hwinfo.EnergyAccumulator
}

type socketCounters struct {
	dramReads  []*counter
	dramWrites []*counter
	iaRequests []*counter
	gtRequests []*counter
	ioRequests []*counter
	clockticks *counter
	cstates    [counterstate.MaxCState + 1]*counter

	// mu guards the RAPL accumulators, which fold successive raw
	// readings and so must see them in order.
	mu   sync.Mutex
	rapl []raplCounter
}

type linkCounters struct {
	socket   int
	index    int
	incoming *counter
	outgoing *counter
}

type acceleratorCounters struct {
	index     int
	inbound   *counter
	outbound  *counter
	shared    *counter
	dedicated *counter
}

type hardware struct {
	sysRoot      string
	nominalHz    float64
	accelerator  string
	clock        clock.Clock
	logger       *slog.Logger
	start        time.Time
	socketOfCPU  map[int]int
	cores        map[int]*coreCounters
	sockets      map[int]*socketCounters
	links        []linkCounters
	accelerators []acceleratorCounters
	opened       counterSet

	thermalMu     sync.Mutex
	thermal       map[int]int32
	thermalReadAt time.Time
	thermalPrimed bool
}

// Open starts counting on every processor of the inventory. Core
// instruction and cycle counters are required; every other event is
// optional and reads zero when the kernel or the part lacks it.
func Open(config HardwareConfig) (Provider, error) {
	if config.Logger == nil {
		panic("sensor.Open: Logger is required")
	}
	if len(config.Inventory.Entries) == 0 {
		return nil, errors.New("sensor: inventory has no processors")
	}
	if config.SysRoot == "" {
		config.SysRoot = "/sys"
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	nominal := float64(config.Inventory.NominalFrequencyHz)
	if nominal == 0 {
		config.Logger.Warn("nominal frequency unknown, counting invariant TSC in nanoseconds")
		nominal = 1e9
	}

	h := &hardware{
		sysRoot:     config.SysRoot,
		nominalHz:   nominal,
		accelerator: config.Accelerator,
		clock:       config.Clock,
		logger:      config.Logger,
		socketOfCPU: make(map[int]int),
		cores:       make(map[int]*coreCounters),
		sockets:     make(map[int]*socketCounters),
	}
	for _, entry := range config.Inventory.Entries {
		h.socketOfCPU[entry.OSID] = entry.SocketID
		if h.sockets[entry.SocketID] == nil {
			h.sockets[entry.SocketID] = &socketCounters{}
		}
	}

	if err := h.openCores(config.Inventory); err != nil {
		h.opened.close()
		return nil, err
	}
	h.openMemoryControllers()
	h.openPackageCStates()
	h.openUncoreClock()
	if err := h.openRAPL(); err != nil {
		h.opened.close()
		return nil, err
	}
	h.openLinks()
	h.openAccelerators()

	h.start = h.clock.Now()
	h.logger.Info("hardware counters open",
		"processors", len(h.cores),
		"sockets", len(h.sockets),
		"links", len(h.links),
		"accelerators", len(h.accelerators),
		"perf_events", len(h.opened.counters),
	)
	return h, nil
}

func (h *hardware) openCores(inventory hwinfo.Inventory) error {
	hardwareEvent := func(name string, config uint64, cpu int) (*counter, error) {
		c, err := openCounter(name, unix.PERF_TYPE_HARDWARE, eventConfig{config}, cpu)
		return h.opened.add(c), err
	}
	var missingOptional []string
	for _, entry := range inventory.Entries {
		cpu := entry.OSID
		counters := &coreCounters{}
		var err error
		if counters.instructions, err = hardwareEvent("instructions", unix.PERF_COUNT_HW_INSTRUCTIONS, cpu); err != nil {
			return fmt.Errorf("sensor: %w (is kernel.perf_event_paranoid above 0? --synthetic serves generated counters)", err)
		}
		if counters.cycles, err = hardwareEvent("cycles", unix.PERF_COUNT_HW_CPU_CYCLES, cpu); err != nil {
			return fmt.Errorf("sensor: %w", err)
		}
		for _, optional := range []struct {
			name   string
			config uint64
			target **counter
		}{
			{"ref-cycles", unix.PERF_COUNT_HW_REF_CPU_CYCLES, &counters.refCycles},
			{"cache-references", unix.PERF_COUNT_HW_CACHE_REFERENCES, &counters.llcReferences},
			{"cache-misses", unix.PERF_COUNT_HW_CACHE_MISSES, &counters.llcMisses},
		} {
			c, err := hardwareEvent(optional.name, optional.config, cpu)
			if err != nil {
				if cpu == inventory.Entries[0].OSID {
					missingOptional = append(missingOptional, optional.name)
				}
				continue
			}
			*optional.target = c
		}
		h.cores[cpu] = counters
	}
	if len(missingOptional) > 0 {
		h.logger.Warn("optional core events unavailable", "events", strings.Join(missingOptional, ","))
	}
	return nil
}

// openOnSockets opens config on the first processor of each socket in
// the PMU's cpumask and hands each counter to assign.
func (h *hardware) openOnSockets(unit *pmu, event string, config eventConfig, assign func(socket int, c *counter)) {
	seen := make(map[int]bool)
	for _, cpu := range unit.cpus {
		socket, ok := h.socketOfCPU[cpu]
		if !ok || seen[socket] {
			continue
		}
		seen[socket] = true
		c, err := openCounter(unit.name+"/"+event, unit.typ, config, cpu)
		if err != nil {
			h.logger.Debug("uncore event unavailable", "pmu", unit.name, "event", event, "error", err)
			continue
		}
		assign(socket, h.opened.add(c))
	}
}

// openMemoryControllers opens DRAM traffic counters. Server memory
// controllers publish cas_count_read/write; client ones publish
// data_reads/writes and per-requester counts.
func (h *hardware) openMemoryControllers() {
	for _, name := range listPMUs(h.sysRoot, "uncore_imc") {
		if strings.Contains(name, "free_running") {
			continue
		}
		unit, err := readPMU(h.sysRoot, name)
		if err != nil {
			h.logger.Debug("skipping memory controller", "pmu", name, "error", err)
			continue
		}
		for _, event := range []struct {
			names  []string
			target func(*socketCounters) *[]*counter
		}{
			{[]string{"cas_count_read", "data_reads"}, func(s *socketCounters) *[]*counter { return &s.dramReads }},
			{[]string{"cas_count_write", "data_writes"}, func(s *socketCounters) *[]*counter { return &s.dramWrites }},
			{[]string{"ia_requests"}, func(s *socketCounters) *[]*counter { return &s.iaRequests }},
			{[]string{"gt_requests"}, func(s *socketCounters) *[]*counter { return &s.gtRequests }},
			{[]string{"io_requests"}, func(s *socketCounters) *[]*counter { return &s.ioRequests }},
		} {
			for _, eventName := range event.names {
				config, ok := unit.namedEvent(eventName)
				if !ok {
					continue
				}
				h.openOnSockets(unit, eventName, config, func(socket int, c *counter) {
					list := event.target(h.sockets[socket])
					*list = append(*list, c)
				})
				break
			}
		}
	}
}

// openPackageCStates opens the cstate_pkg residency counters, which
// count at the TSC rate.
func (h *hardware) openPackageCStates() {
	unit, err := readPMU(h.sysRoot, "cstate_pkg")
	if err != nil {
		h.logger.Debug("package C-state residency unavailable", "error", err)
		return
	}
	for state := 2; state <= counterstate.MaxCState; state++ {
		event := "c" + strconv.Itoa(state) + "-residency"
		config, ok := unit.namedEvent(event)
		if !ok {
			continue
		}
		h.openOnSockets(unit, event, config, func(socket int, c *counter) {
			h.sockets[socket].cstates[state] = c
		})
	}
}

func (h *hardware) openUncoreClock() {
	unit, err := readPMU(h.sysRoot, "uncore_clock")
	if err != nil {
		return
	}
	config, ok := unit.namedEvent("clockticks")
	if !ok {
		return
	}
	h.openOnSockets(unit, "clockticks", config, func(socket int, c *counter) {
		h.sockets[socket].clockticks = c
	})
}

func (h *hardware) openRAPL() error {
	domains, err := hwinfo.ReadRAPLDomains(h.sysRoot)
	if err != nil {
		return fmt.Errorf("sensor: %w", err)
	}
	for _, domain := range domains {
		socket, ok := h.sockets[domain.Socket]
		if !ok {
			continue
		}
		socket.rapl = append(socket.rapl, raplCounter{
			domain:      domain,
			accumulator: hwinfo.NewEnergyAccumulator(domain.MaxRangeMicrojoules),
		})
	}
	if len(domains) == 0 {
		h.logger.Info("RAPL energy counters unavailable")
	}
	return nil
}

func (h *hardware) openLinks() {
	names := listPMUs(h.sysRoot, "uncore_upi")
	if len(names) == 0 {
		names = listPMUs(h.sysRoot, "uncore_qpi")
	}
	for _, name := range names {
		unit, err := readPMU(h.sysRoot, name)
		if err != nil {
			continue
		}
		incoming, errIn := unit.encode(upiIncomingSpec)
		outgoing, errOut := unit.encode(upiOutgoingSpec)
		if errIn != nil || errOut != nil {
			h.logger.Debug("link events not encodable", "pmu", name, "error", errors.Join(errIn, errOut))
			continue
		}
		index := max(pmuIndex(name, "uncore_upi"), pmuIndex(name, "uncore_qpi"), 0)
		links := make(map[int]*linkCounters)
		h.openOnSockets(unit, "rxl_flits", incoming, func(socket int, c *counter) {
			links[socket] = &linkCounters{socket: socket, index: index, incoming: c}
		})
		h.openOnSockets(unit, "txl_flits", outgoing, func(socket int, c *counter) {
			if link, ok := links[socket]; ok {
				link.outgoing = c
			}
		})
		for _, link := range links {
			h.links = append(h.links, *link)
		}
	}
}

func (h *hardware) openAccelerators() {
	var prefix string
	switch h.accelerator {
	case "":
		return
	case "iaa":
		prefix = "iax"
	case "dsa":
		prefix = "dsa"
	default:
		h.logger.Warn("accelerator family has no perf PMU, reporting no devices", "accelerator", h.accelerator)
		return
	}
	for index, name := range listPMUs(h.sysRoot, prefix) {
		unit, err := readPMU(h.sysRoot, name)
		if err != nil {
			continue
		}
		device := acceleratorCounters{index: index}
		cpu := 0
		if len(unit.cpus) > 0 {
			cpu = unit.cpus[0]
		}
		for _, event := range []struct {
			spec   string
			target **counter
		}{
			{idxdInboundSpec, &device.inbound},
			{idxdOutboundSpec, &device.outbound},
			{idxdSharedSpec, &device.shared},
			{idxdDedicatedSpec, &device.dedicated},
		} {
			config, err := unit.encode(event.spec)
			if err != nil {
				continue
			}
			c, err := openCounter(name+"/"+event.spec, unit.typ, config, cpu)
			if err != nil {
				h.logger.Debug("accelerator event unavailable", "pmu", name, "error", err)
				continue
			}
			*event.target = h.opened.add(c)
		}
		h.accelerators = append(h.accelerators, device)
	}
	if len(h.accelerators) == 0 {
		h.logger.Warn("no accelerator devices found", "accelerator", h.accelerator)
	}
}

// ticks converts time since Open to reference ticks.
func (h *hardware) ticks() uint64 {
	return uint64(h.clock.Now().Sub(h.start).Seconds() * h.nominalHz)
}

// ReadCore reads one processor's counters.
func (h *hardware) ReadCore(osID int) (counterstate.Basic, error) {
	counters, ok := h.cores[osID]
	if !ok {
		return counterstate.Basic{}, fmt.Errorf("sensor: no counters for os id %d", osID)
	}
	var state counterstate.Basic
	var err error
	read := func(c *counter) uint64 {
		if err != nil {
			return 0
		}
		var value uint64
		value, err = c.read()
		return value
	}
	state.InstructionsRetired = read(counters.instructions)
	state.CyclesUnhalted = read(counters.cycles)
	state.RefCyclesUnhalted = read(counters.refCycles)
	references := read(counters.llcReferences)
	state.L3Misses = read(counters.llcMisses)
	if err != nil {
		return counterstate.Basic{}, err
	}
	if references > state.L3Misses {
		state.L3Hits = references - state.L3Misses
	}
	state.InvariantTSC = h.ticks()

	residency, err := hwinfo.ReadIdleResidency(h.sysRoot, osID)
	if err != nil {
		return counterstate.Basic{}, err
	}
	for index, microseconds := range residency {
		state.CStateResidency[index] = uint64(float64(microseconds) * h.nominalHz / 1e6)
	}

	if headroom, ok := h.thermalHeadroom(h.socketOfCPU[osID]); ok {
		state.ThermalHeadroom = headroom
		state.HasThermalHeadroom = true
	}
	return state, nil
}

// thermalHeadroom returns a socket's headroom from a cache refreshed
// at most every thermalCacheTTL.
func (h *hardware) thermalHeadroom(socket int) (int32, bool) {
	h.thermalMu.Lock()
	defer h.thermalMu.Unlock()
	now := h.clock.Now()
	if !h.thermalPrimed || now.Sub(h.thermalReadAt) >= thermalCacheTTL {
		h.thermal = hwinfo.ReadThermalHeadroom(h.sysRoot)
		h.thermalReadAt = now
		h.thermalPrimed = true
	}
	headroom, ok := h.thermal[socket]
	return headroom, ok
}

func sum(counters []*counter) (uint64, error) {
	var total uint64
	for _, c := range counters {
		value, err := c.read()
		if err != nil {
			return 0, err
		}
		total += value
	}
	return total, nil
}

// ReadUncore reads one socket's counters.
func (h *hardware) ReadUncore(socketID int) (counterstate.Uncore, error) {
	socket, ok := h.sockets[socketID]
	if !ok {
		return counterstate.Uncore{}, fmt.Errorf("sensor: unknown socket %d", socketID)
	}
	var state counterstate.Uncore
	var err error
	total := func(counters []*counter) uint64 {
		if err != nil {
			return 0
		}
		var value uint64
		value, err = sum(counters)
		return value
	}
	state.DRAMReads = total(socket.dramReads) * cacheLineBytes
	state.DRAMWrites = total(socket.dramWrites) * cacheLineBytes
	state.MCIARequests = total(socket.iaRequests)
	state.MCGTRequests = total(socket.gtRequests)
	state.MCIORequests = total(socket.ioRequests)
	state.UncoreClocks[0] = total([]*counter{socket.clockticks})
	for index, c := range socket.cstates {
		state.CStateResidency[index] = total([]*counter{c})
	}
	if err != nil {
		return counterstate.Uncore{}, err
	}

	// C0 is whatever the deeper states leave of elapsed time.
	tsc := h.ticks()
	var idle uint64
	for _, ticks := range state.CStateResidency[1:] {
		idle += ticks
	}
	if tsc > idle {
		state.CStateResidency[0] = tsc - idle
	}

	socket.mu.Lock()
	defer socket.mu.Unlock()
	for _, rapl := range socket.rapl {
		raw, err := rapl.domain.Read()
		if err != nil {
			return counterstate.Uncore{}, fmt.Errorf("sensor: %w", err)
		}
		energy := rapl.accumulator.Update(raw)
		switch rapl.domain.Plane {
		case hwinfo.RAPLPackage:
			state.PackageEnergy = energy
		case hwinfo.RAPLCore:
			state.PP0Energy = energy
		case hwinfo.RAPLGraphics:
			state.PP1Energy = energy
		case hwinfo.RAPLDRAM:
			state.DRAMEnergy = energy
		}
	}
	return state, nil
}

// ReadLinks reads every inter-socket link.
func (h *hardware) ReadLinks(ctx context.Context) ([]counterstate.Link, error) {
	if len(h.links) == 0 {
		return nil, nil
	}
	links := make([]counterstate.Link, 0, len(h.links))
	for _, link := range h.links {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		incoming, err := link.incoming.read()
		if err != nil {
			return nil, err
		}
		outgoing, err := link.outgoing.read()
		if err != nil {
			return nil, err
		}
		links = append(links, counterstate.Link{
			Socket:         link.socket,
			Index:          link.index,
			IncomingBytes:  incoming * cacheLineBytes / upiFlitsPerLine,
			OutgoingBytes:  outgoing * cacheLineBytes / upiFlitsPerLine,
			BytesPerSecond: upiPeakBytesPerSecond,
		})
	}
	return links, nil
}

// ReadAccelerators reads every device of the configured family.
func (h *hardware) ReadAccelerators(ctx context.Context) ([]counterstate.Accelerator, error) {
	if len(h.accelerators) == 0 {
		return nil, nil
	}
	kind := acceleratorKind(h.accelerator)
	accelerators := make([]counterstate.Accelerator, 0, len(h.accelerators))
	for _, device := range h.accelerators {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		values := [4]uint64{}
		for index, c := range []*counter{device.inbound, device.outbound, device.shared, device.dedicated} {
			value, err := c.read()
			if err != nil {
				return nil, err
			}
			values[index] = value
		}
		accelerators = append(accelerators, counterstate.Accelerator{
			Index:             device.index,
			Kind:              kind,
			InboundBytes:      values[0],
			OutboundBytes:     values[1],
			SharedQueueReqs:   values[2],
			DedicatedQueueReq: values[3],
		})
	}
	return accelerators, nil
}

// Close releases every perf event.
func (h *hardware) Close() error {
	return h.opened.close()
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/bureau-foundation/sensor-server/lib/counterstate"
	"github.com/bureau-foundation/sensor-server/lib/topology"
)

// PrometheusContentType is the exposition format Prometheus renders.
const PrometheusContentType = "text/plain; version=0.0.4"

// Prometheus renders in in the Prometheus text exposition format.
// Families gathered from extra, typically the server's own metrics,
// are appended after the counter families. extra may be nil.
func Prometheus(in Input, extra prometheus.Gatherer) ([]byte, error) {
	families := PrometheusFamilies(in)
	if extra != nil {
		gathered, err := extra.Gather()
		if err != nil {
			return nil, fmt.Errorf("render: gathering server metrics: %w", err)
		}
		families = append(families, gathered...)
	}
	var buffer bytes.Buffer
	if err := WritePrometheus(&buffer, families); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// WritePrometheus writes families in the text exposition format.
func WritePrometheus(w io.Writer, families []*dto.MetricFamily) error {
	for _, family := range families {
		if _, err := expfmt.MetricFamilyToText(w, family); err != nil {
			return fmt.Errorf("render: writing family %s: %w", family.GetName(), err)
		}
	}
	return nil
}

// PrometheusFamilies returns the counter samples of in grouped into
// metric families. Families appear in the order their first sample is
// produced, and samples within a family in topology order.
//
// Every sample is labelled with its place in the topology: socket,
// core and thread for per-thread counters, aggregate="socket" or
// aggregate="system" for totals, and source naming the counter domain
// (core, uncore or accel).
func PrometheusFamilies(in Input) []*dto.MetricFamily {
	builder := &prometheusBuilder{in: in, index: make(map[string]*dto.MetricFamily)}
	topology.Walk(in.Root, builder)
	builder.system()
	return builder.families
}

type prometheusBuilder struct {
	in       Input
	families []*dto.MetricFamily
	index    map[string]*dto.MetricFamily

	// labels is the current position in the hierarchy. Visits reset
	// it to their own depth because Walk does not announce when a
	// subtree ends.
	labels []*dto.LabelPair
	socket *topology.Socket
}

func (b *prometheusBuilder) push(name, value string) {
	b.labels = append(b.labels, &dto.LabelPair{Name: proto.String(name), Value: proto.String(value)})
}

func (b *prometheusBuilder) pop() {
	b.labels = b.labels[:len(b.labels)-1]
}

func (b *prometheusBuilder) sample(name string, value float64) {
	name = metricName(name)
	family, exists := b.index[name]
	if !exists {
		family = &dto.MetricFamily{Name: proto.String(name), Type: dto.MetricType_UNTYPED.Enum()}
		b.index[name] = family
		b.families = append(b.families, family)
	}
	family.Metric = append(family.Metric, &dto.Metric{
		Label:   append([]*dto.LabelPair(nil), b.labels...),
		Untyped: &dto.Untyped{Value: proto.Float64(value)},
	})
}

func (b *prometheusBuilder) VisitSystemRoot(root *topology.SystemRoot) {
	b.labels = nil
	b.sample("Measurement Interval in us", float64(b.in.Interval().Microseconds()))
	b.sample("Number of sockets", float64(len(root.Sockets())))
}

func (b *prometheusBuilder) VisitSocket(socket *topology.Socket) {
	b.socket = socket
	b.labels = nil
	b.push("socket", strconv.Itoa(socket.SocketID))
}

func (b *prometheusBuilder) VisitCore(core *topology.Core) {
	b.labels = b.labels[:1]
	b.push("core", strconv.Itoa(core.SocketUniqueCoreID))
}

func (b *prometheusBuilder) VisitLogicalProcessor(processor *topology.LogicalProcessor) {
	b.push("thread", strconv.Itoa(processor.ThreadID))
	b.sample("OS ID", float64(processor.OSID))
	before, after := b.in.processor(processor.OSID)
	b.basic(before, after)
	b.pop()
}

func (b *prometheusBuilder) VisitServerUncore(*topology.ServerUncore) { b.socketTotals() }

func (b *prometheusBuilder) VisitClientUncore(*topology.ClientUncore) { b.socketTotals() }

// socketTotals emits the socket's uncore counters and core aggregate.
// The uncore is the last node Walk visits for a socket.
func (b *prometheusBuilder) socketTotals() {
	b.labels = b.labels[:1]
	socket := b.socket
	before, after := b.in.socket(socket.Index)
	b.uncore(before.Uncore, after.Uncore, b.in.referenceTSC(socket))

	b.push("aggregate", "socket")
	b.basic(before.Core, after.Core)
	b.pop()
}

func (b *prometheusBuilder) system() {
	root := b.in.Root
	before, after := b.in.Before.System, b.in.After.System
	delta := after.Sub(before)
	interval := b.in.Interval()

	b.labels = nil
	b.push("aggregate", "system")
	if b.in.Accelerators {
		b.push("source", "accel")
		for _, accelerator := range delta.Accelerators {
			b.push(accelerator.Kind+"device", strconv.Itoa(accelerator.Index))
			b.sample(acceleratorInbound, bytesPerSecond(accelerator.InboundBytes, interval))
			b.sample(acceleratorOutbound, bytesPerSecond(accelerator.OutboundBytes, interval))
			b.sample(acceleratorShared, float64(accelerator.SharedQueueReqs))
			b.sample(acceleratorDedicated, float64(accelerator.DedicatedQueueReq))
			b.pop()
		}
		b.pop()
	}
	if root.IsServer() && len(root.Sockets()) >= 2 {
		b.push("source", "uncore")
		for _, socket := range root.Sockets() {
			b.push("socket", strconv.Itoa(socket.SocketID))
			for _, link := range delta.Links {
				if link.Socket != socket.SocketID {
					continue
				}
				b.sample(fmt.Sprintf("Incoming Data Traffic On Link %d", link.Index), float64(link.IncomingBytes))
				b.sample(fmt.Sprintf("Outgoing Data And Non-Data Traffic On Link %d", link.Index), float64(link.OutgoingBytes))
				b.sample(fmt.Sprintf("Utilization Incoming Data Traffic On Link %d", link.Index), link.IncomingUtilization(interval))
				b.sample(fmt.Sprintf("Utilization Outgoing Data And Non-Data Traffic On Link %d", link.Index), link.OutgoingUtilization(interval))
			}
			b.pop()
		}
		b.pop()
	}
	b.basic(before.Core, after.Core)
	b.uncore(before.Uncore, after.Uncore, b.in.systemTSC())
	b.pop()
}

func (b *prometheusBuilder) basic(before, after counterstate.Basic) {
	delta := after.Sub(before)
	b.push("source", "core")
	b.sample("Instructions Retired Any", float64(delta.InstructionsRetired))
	b.sample("Clock Unhalted Thread", float64(delta.CyclesUnhalted))
	b.sample("Clock Unhalted Ref", float64(delta.RefCyclesUnhalted))
	b.sample("L3 Cache Misses", float64(delta.L3Misses))
	b.sample("L3 Cache Hits", float64(delta.L3Hits))
	b.sample("L2 Cache Misses", float64(delta.L2Misses))
	b.sample("L2 Cache Hits", float64(delta.L2Hits))
	b.sample("L3 Cache Occupancy", float64(delta.L3Occupancy))
	b.sample("Invariant TSC", float64(delta.InvariantTSC))
	b.sample("SMI Count", float64(delta.SMICount))
	b.sample("Thermal Headroom", float64(thermalHeadroom(after)))
	for state := 0; state <= counterstate.MaxCState; state++ {
		b.push("index", strconv.Itoa(state))
		b.sample("CStateResidency", delta.CStateRatio(state))
		b.sample("RawCStateResidency", float64(rawCoreResidency(after, state)))
		b.pop()
	}
	b.sample("Local Memory Bandwidth", float64(delta.LocalMemoryBandwidth))
	b.sample("Remote Memory Bandwidth", float64(delta.RemoteMemoryBandwidth))
	b.pop()
}

func (b *prometheusBuilder) uncore(before, after counterstate.Uncore, tsc uint64) {
	delta := after.Sub(before)
	b.push("source", "uncore")
	b.sample("DRAM Writes", float64(delta.DRAMWrites))
	b.sample("DRAM Reads", float64(delta.DRAMReads))
	b.sample("Persistent Memory Writes", float64(delta.PMMWrites))
	b.sample("Persistent Memory Reads", float64(delta.PMMReads))
	b.sample("Embedded DRAM Writes", float64(delta.EDRAMWrites))
	b.sample("Embedded DRAM Reads", float64(delta.EDRAMReads))
	b.sample("Memory Controller IO Requests", float64(delta.MCIORequests))
	b.sample("Package Joules Consumed", delta.PackageJoules())
	b.sample("DRAM Joules Consumed", delta.DRAMJoules())
	for state := 0; state <= counterstate.MaxCState; state++ {
		b.push("index", strconv.Itoa(state))
		b.sample("CStateResidency", delta.PackageCStateRatio(state, tsc))
		b.sample("RawCStateResidency", float64(after.CStateResidency[state]))
		b.pop()
	}
	b.pop()
}

// rawCoreResidency returns the accumulated tick count behind a core
// C-state ratio. C0 has no counter of its own; its ticks are the
// unhalted reference cycles.
func rawCoreResidency(state counterstate.Basic, index int) uint64 {
	if index == 0 {
		return state.RefCyclesUnhalted
	}
	return state.CStateResidency[index]
}

var parenthesized = regexp.MustCompile(`\([^)]*\)`)

// metricName turns a counter name into a metric name: parenthesized
// units are dropped and spaces and dashes become underscores.
func metricName(name string) string {
	name = parenthesized.ReplaceAllString(name, "")
	return strings.NewReplacer(" ", "_", "-", "_").Replace(name)
}

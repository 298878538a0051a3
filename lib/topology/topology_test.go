// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package topology

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/bureau-foundation/sensor-server/lib/counterstate"
)

type zeroReader struct{}

func (zeroReader) ReadCore(int) (counterstate.Basic, error)    { return counterstate.Basic{}, nil }
func (zeroReader) ReadUncore(int) (counterstate.Uncore, error) { return counterstate.Uncore{}, nil }

// twoSocketEntries returns 2 sockets x 2 cores x 2 threads, listed in
// a scrambled order with Linux-style OS id numbering (siblings are
// N and N+4).
func twoSocketEntries() []Entry {
	var entries []Entry
	for _, osID := range []int{5, 0, 3, 6, 1, 4, 7, 2} {
		thread := osID / 4
		physical := osID % 4
		entries = append(entries, Entry{
			OSID:     osID,
			ThreadID: thread,
			CoreID:   physical % 2,
			SocketID: physical / 2,
			Kind:     CoreKindCore,
		})
	}
	return entries
}

// recorder flattens a Walk into a readable trace.
type recorder struct{ trace []string }

func (r *recorder) VisitSystemRoot(root *SystemRoot) {
	r.trace = append(r.trace, fmt.Sprintf("root(%d)", len(root.Sockets())))
}
func (r *recorder) VisitSocket(socket *Socket) {
	r.trace = append(r.trace, fmt.Sprintf("socket%d", socket.SocketID))
}
func (r *recorder) VisitCore(core *Core) {
	r.trace = append(r.trace, fmt.Sprintf("core%d", core.CoreID))
}
func (r *recorder) VisitLogicalProcessor(processor *LogicalProcessor) {
	r.trace = append(r.trace, fmt.Sprintf("cpu%d", processor.OSID))
}
func (r *recorder) VisitServerUncore(uncore *ServerUncore) {
	r.trace = append(r.trace, fmt.Sprintf("server-uncore%d", uncore.SocketID()))
}
func (r *recorder) VisitClientUncore(uncore *ClientUncore) {
	r.trace = append(r.trace, fmt.Sprintf("client-uncore%d", uncore.SocketID()))
}

func TestBuildAndWalkOrder(t *testing.T) {
	root, err := Build(Options{Entries: twoSocketEntries(), Reader: zeroReader{}, Class: UncoreServer})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	var visitor recorder
	Walk(root, &visitor)

	want := "root(2) socket0 core0 cpu0 cpu4 core1 cpu1 cpu5 server-uncore0 " +
		"socket1 core0 cpu2 cpu6 core1 cpu3 cpu7 server-uncore1"
	if got := strings.Join(visitor.trace, " "); got != want {
		t.Errorf("walk order:\n got %s\nwant %s", got, want)
	}

	if root.ProcessorCount() != 8 {
		t.Errorf("ProcessorCount = %d, want 8", root.ProcessorCount())
	}
	if root.CoreCount() != 4 {
		t.Errorf("CoreCount = %d, want 4", root.CoreCount())
	}
	for index, socket := range root.Sockets() {
		if socket.Index != index {
			t.Errorf("socket %d has Index %d", socket.SocketID, socket.Index)
		}
		if socket.ReferenceCore() != socket.Cores()[0] {
			t.Errorf("socket %d reference core is not the first core", socket.SocketID)
		}
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	entries := twoSocketEntries()
	reversed := slices.Clone(entries)
	slices.Reverse(reversed)

	first, err := Build(Options{Entries: entries, Reader: zeroReader{}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	second, err := Build(Options{Entries: reversed, Reader: zeroReader{}})
	if err != nil {
		t.Fatalf("Build reversed: %v", err)
	}

	var a, b recorder
	Walk(first, &a)
	Walk(second, &b)
	if !slices.Equal(a.trace, b.trace) {
		t.Errorf("walk depends on entry order:\n%v\n%v", a.trace, b.trace)
	}
	if !strings.HasPrefix(a.trace[len(a.trace)-1], "client-uncore") {
		t.Errorf("default class should build client uncores, last node %q", a.trace[len(a.trace)-1])
	}
}

func TestBuildOffline(t *testing.T) {
	entries := []Entry{
		{OSID: 0, SocketID: 0, CoreID: 0},
		{OSID: 1, SocketID: 0, CoreID: 1},
		{OSID: 2, SocketID: -1, CoreID: 0},
	}
	root, err := Build(Options{Entries: entries, Offline: []int{9}, Reader: zeroReader{}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	offline := root.Offline()
	if len(offline) != 2 {
		t.Fatalf("len(Offline) = %d, want 2", len(offline))
	}
	if offline[0].OSID != 2 || offline[1].OSID != 9 {
		t.Errorf("offline ids = %d,%d, want 2,9", offline[0].OSID, offline[1].OSID)
	}
	for _, processor := range offline {
		if processor.ThreadID != -1 || processor.Online() {
			t.Errorf("offline processor %d: ThreadID %d online %v", processor.OSID, processor.ThreadID, processor.Online())
		}
	}
	if root.ProcessorCount() != 10 {
		t.Errorf("ProcessorCount = %d, want 10 (max offline id + 1)", root.ProcessorCount())
	}
	if got := len(root.Processors()); got != 2 {
		t.Errorf("len(Processors) = %d, want 2 online", got)
	}
}

func TestBuildRejectsDuplicateOSID(t *testing.T) {
	entries := []Entry{
		{OSID: 0, SocketID: 0, CoreID: 0},
		{OSID: 0, SocketID: 0, CoreID: 0},
	}
	if _, err := Build(Options{Entries: entries, Reader: zeroReader{}}); !errors.Is(err, ErrDuplicateProcessor) {
		t.Errorf("Build error = %v, want ErrDuplicateProcessor", err)
	}
}

func TestBuildRejectsTooManyThreads(t *testing.T) {
	var entries []Entry
	for osID := 0; osID <= MaxThreadsPerCore; osID++ {
		entries = append(entries, Entry{OSID: osID, ThreadID: osID})
	}
	if _, err := Build(Options{Entries: entries, Reader: zeroReader{}}); !errors.Is(err, ErrTooManyThreads) {
		t.Errorf("Build error = %v, want ErrTooManyThreads", err)
	}
}

func TestCoreAddProcessorRejectsForeignCore(t *testing.T) {
	core := newCore(Entry{CoreID: 3, SocketID: 1})
	err := core.AddProcessor(&LogicalProcessor{Entry: Entry{OSID: 4, CoreID: 2, SocketID: 1}})
	if !errors.Is(err, ErrCoreMismatch) {
		t.Errorf("AddProcessor error = %v, want ErrCoreMismatch", err)
	}
}

func TestBuildRequiresReader(t *testing.T) {
	if _, err := Build(Options{}); err == nil {
		t.Error("Build without Reader succeeded")
	}
}

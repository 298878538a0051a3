// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package topology

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/sensor-server/lib/counterstate"
)

// MaxThreadsPerCore bounds the logical processors of one core.
const MaxThreadsPerCore = 4

// CoreKind distinguishes the core types of hybrid parts.
type CoreKind int

const (
	CoreKindInvalid CoreKind = -1
	CoreKindAtom    CoreKind = 0x20
	CoreKindCore    CoreKind = 0x40
)

func (k CoreKind) String() string {
	switch k {
	case CoreKindAtom:
		return "atom"
	case CoreKindCore:
		return "core"
	default:
		return "invalid"
	}
}

// UncoreClass selects the uncore node kind created for every socket.
type UncoreClass int

const (
	UncoreClient UncoreClass = iota
	UncoreServer
)

func (c UncoreClass) String() string {
	if c == UncoreServer {
		return "server"
	}
	return "client"
}

// Entry describes one logical processor as discovered at start-up.
type Entry struct {
	OSID               int
	ThreadID           int
	CoreID             int
	ModuleID           int
	TileID             int
	DieID              int
	DieGroupID         int
	SocketID           int
	SocketUniqueCoreID int
	NativeCPUModel     int
	Kind               CoreKind
}

// Reader reads raw counter state for one domain. Implementations are
// called concurrently from executor workers and must be safe for that.
type Reader interface {
	ReadCore(osID int) (counterstate.Basic, error)
	ReadUncore(socketID int) (counterstate.Uncore, error)
}

// Visitor receives one call per node kind.
type Visitor interface {
	VisitSystemRoot(root *SystemRoot)
	VisitSocket(socket *Socket)
	VisitCore(core *Core)
	VisitLogicalProcessor(processor *LogicalProcessor)
	VisitServerUncore(uncore *ServerUncore)
	VisitClientUncore(uncore *ClientUncore)
}

var (
	// ErrTooManyThreads is returned when a core would exceed
	// MaxThreadsPerCore logical processors.
	ErrTooManyThreads = errors.New("topology: too many threads for one core")

	// ErrDuplicateProcessor is returned when an OS id is added twice.
	ErrDuplicateProcessor = errors.New("topology: duplicate logical processor")

	// ErrCoreMismatch is returned when a processor is added to a core
	// it does not belong to.
	ErrCoreMismatch = errors.New("topology: processor belongs to a different core")
)

// LogicalProcessor is one hardware thread.
type LogicalProcessor struct {
	Entry
	online bool
	reader Reader
}

// Online reports whether the processor was online at build time.
func (p *LogicalProcessor) Online() bool { return p.online }

// Read returns the processor's current core counters.
func (p *LogicalProcessor) Read() (counterstate.Basic, error) {
	return p.reader.ReadCore(p.OSID)
}

// Accept calls visitor.VisitLogicalProcessor.
func (p *LogicalProcessor) Accept(visitor Visitor) { visitor.VisitLogicalProcessor(p) }

// Core groups the logical processors sharing one core id on a socket.
type Core struct {
	CoreID             int
	SocketUniqueCoreID int
	ModuleID           int
	TileID             int
	DieID              int
	DieGroupID         int
	SocketID           int
	Kind               CoreKind

	threads []*LogicalProcessor
}

func newCore(first Entry) *Core {
	return &Core{
		CoreID:             first.CoreID,
		SocketUniqueCoreID: first.SocketUniqueCoreID,
		ModuleID:           first.ModuleID,
		TileID:             first.TileID,
		DieID:              first.DieID,
		DieGroupID:         first.DieGroupID,
		SocketID:           first.SocketID,
		Kind:               first.Kind,
	}
}

// AddProcessor attaches a logical processor to the core.
func (c *Core) AddProcessor(processor *LogicalProcessor) error {
	if processor.CoreID != c.CoreID || processor.SocketID != c.SocketID {
		return fmt.Errorf("%w: os id %d is core %d/socket %d, not core %d/socket %d",
			ErrCoreMismatch, processor.OSID, processor.CoreID, processor.SocketID, c.CoreID, c.SocketID)
	}
	if len(c.threads) >= MaxThreadsPerCore {
		return fmt.Errorf("%w: core %d on socket %d already has %d", ErrTooManyThreads, c.CoreID, c.SocketID, len(c.threads))
	}
	for _, existing := range c.threads {
		if existing.OSID == processor.OSID {
			return fmt.Errorf("%w: os id %d", ErrDuplicateProcessor, processor.OSID)
		}
	}
	c.threads = append(c.threads, processor)
	return nil
}

// Threads returns the core's logical processors ordered by OS id.
func (c *Core) Threads() []*LogicalProcessor { return c.threads }

// Accept calls visitor.VisitCore.
func (c *Core) Accept(visitor Visitor) { visitor.VisitCore(c) }

// Uncore is the shared per-socket domain. Server and client parts
// share one read contract and differ only in the node kind they
// present to visitors.
type Uncore interface {
	SocketID() int
	Read() (counterstate.Uncore, error)
	Accept(visitor Visitor)
}

type uncoreBase struct {
	socketID int
	reader   Reader
}

func (u *uncoreBase) SocketID() int { return u.socketID }

func (u *uncoreBase) Read() (counterstate.Uncore, error) {
	return u.reader.ReadUncore(u.socketID)
}

// ServerUncore is the uncore of a server-class socket, which carries
// inter-socket links.
type ServerUncore struct{ uncoreBase }

// Accept calls visitor.VisitServerUncore.
func (u *ServerUncore) Accept(visitor Visitor) { visitor.VisitServerUncore(u) }

// ClientUncore is the uncore of a client-class socket.
type ClientUncore struct{ uncoreBase }

// Accept calls visitor.VisitClientUncore.
func (u *ClientUncore) Accept(visitor Visitor) { visitor.VisitClientUncore(u) }

// Socket is one processor package.
type Socket struct {
	SocketID int

	// Index is the socket's position in SystemRoot.Sockets and in
	// every snapshot's socket slice.
	Index int

	cores  []*Core
	uncore Uncore
}

// Cores returns the socket's cores ordered by core id.
func (s *Socket) Cores() []*Core { return s.cores }

// Uncore returns the socket's uncore node.
func (s *Socket) Uncore() Uncore { return s.uncore }

// ReferenceCore returns the first core added to the socket, or nil
// for a socket without cores.
func (s *Socket) ReferenceCore() *Core {
	if len(s.cores) == 0 {
		return nil
	}
	return s.cores[0]
}

// Accept calls visitor.VisitSocket.
func (s *Socket) Accept(visitor Visitor) { visitor.VisitSocket(s) }

// SystemRoot is the whole machine.
type SystemRoot struct {
	// NominalFrequencyHz is the invariant TSC frequency, used to turn
	// cycle counts into frequencies.
	NominalFrequencyHz uint64

	// Class is the uncore class of every socket.
	Class UncoreClass

	sockets        []*Socket
	offline        []*LogicalProcessor
	processorCount int
}

// Sockets returns the sockets ordered by socket id.
func (r *SystemRoot) Sockets() []*Socket { return r.sockets }

// Offline returns processors that were offline or had no usable
// topology at build time.
func (r *SystemRoot) Offline() []*LogicalProcessor { return r.offline }

// ProcessorCount returns the highest OS id plus one, across online and
// offline processors. Per-processor snapshot slices have this length.
func (r *SystemRoot) ProcessorCount() int { return r.processorCount }

// IsServer reports whether the sockets carry server-class uncores.
func (r *SystemRoot) IsServer() bool { return r.Class == UncoreServer }

// Processors returns the online logical processors in traversal order.
func (r *SystemRoot) Processors() []*LogicalProcessor {
	var processors []*LogicalProcessor
	for _, socket := range r.sockets {
		for _, core := range socket.cores {
			processors = append(processors, core.threads...)
		}
	}
	return processors
}

// CoreCount returns the number of cores across all sockets.
func (r *SystemRoot) CoreCount() int {
	count := 0
	for _, socket := range r.sockets {
		count += len(socket.cores)
	}
	return count
}

// Accept calls visitor.VisitSystemRoot.
func (r *SystemRoot) Accept(visitor Visitor) { visitor.VisitSystemRoot(r) }

// Walk visits every node of root in canonical order: the root, then
// for each socket the socket itself, each core followed by its
// threads, and finally the socket's uncore.
func Walk(root *SystemRoot, visitor Visitor) {
	root.Accept(visitor)
	for _, socket := range root.sockets {
		socket.Accept(visitor)
		for _, core := range socket.cores {
			core.Accept(visitor)
			for _, thread := range core.threads {
				thread.Accept(visitor)
			}
		}
		socket.uncore.Accept(visitor)
	}
}

package ooo

import (
	"github.com/archlab/uopsim/bpred"
	"github.com/archlab/uopsim/latch"
	"github.com/archlab/uopsim/mem"
	"github.com/archlab/uopsim/uop"
)

// Widths and depths, per spec §4.4–§4.8's "up to N per cycle" language.
// These are the knobs a caller can retune without touching wiring.
type Widths struct {
	Decode int
	Alloc  int
	Issue  int
	Commit int
	Load   int

	IssueDepth int

	DecodeLatency uint64
	IssueLatency  uint64
}

// DefaultWidths returns a reasonable 4-wide configuration.
func DefaultWidths() Widths {
	return Widths{
		Decode:        4,
		Alloc:         4,
		Issue:         6,
		Commit:        4,
		Load:          2,
		IssueDepth:    32,
		DecodeLatency: 1,
		IssueLatency:  1,
	}
}

// QueueItem wraps a uop with the bookkeeping the frontend knows about it
// but the wire format has no room for: the macro-instruction address it
// belongs to and that macro-instruction's sequential successor. These
// ride alongside the uop from the uQueue through decode and into the
// ROB's memref (spec §3 "in_flight"/"seq_addrs" bookkeeping is the
// simulator's, not the core's internal uop processing).
type QueueItem struct {
	U       uop.Uop
	PC      uint64
	SeqAddr uint64
}

// PipelineState is the cross-cutting aggregate spec §9's "global mutable
// state" design note calls for: the in-flight macro-address sequence the
// frontend predicts into and commit/flush consume, the parallel sequence
// of sequential successors, the pending SMC refetch request, and the
// flush counter. It excludes the ARF, which stays encapsulated in Core
// since rename and commit already need direct access to it (see
// DESIGN.md).
type PipelineState struct {
	InFlight []uint64
	SeqAddrs []uint64

	RefetchActive bool
	RefetchAt     uint64

	FlushCount uint64
}

// Events reports what a single Core.Cycle call did, for the simulator
// shell to act on: redirect the frontend, flush it, or stop the machine.
type Events struct {
	Redirect       bool
	RedirectPC     uint64
	Flush          bool
	MacroCommitted int
	Halted         bool
	Exception      uop.Word
	ExceptionMn    uop.Mnemonic
}

// Core is the out-of-order backend: decode, rename/allocate, issue,
// execute, commit over the ROB, physical register files, rename tables,
// reservation-station ports, and load queue (spec §4.4–§4.9).
type Core struct {
	Widths Widths

	arf *ARF

	prf   *PRF
	rname [3]*RenameTable // indexed by uop.Class (GP, FP, VR)
	cond  *CondTracker

	rob *Rob
	lq  *Lq
	ps  *Ports

	table *uop.Table
	mm    *mem.Manager
	pred  bpred.Predictor

	uQueue *latch.Latch[QueueItem]
	idRA   *latch.Latch[QueueItem]

	seqAtAlloc uint64
	halted     bool
}

// Config bundles the collaborators Core needs at construction.
type Config struct {
	Widths  Widths
	Table   *uop.Table
	Mem     *mem.Manager
	Pred    bpred.Predictor
	RobCap  int
	LqCap   int
	QueueCap int
	IDRACap  int
}

// New builds a Core with fresh, empty register files, rename tables, and
// pipeline structures.
func New(cfg Config) *Core {
	c := &Core{
		Widths: cfg.Widths,
		arf:    &ARF{},
		prf:    &PRF{},
		cond:   newCondTracker(PrfCondCount),
		rob:    newRob(cfg.RobCap),
		lq:     newLq(cfg.LqCap),
		ps:     newPorts(),
		table:  cfg.Table,
		mm:     cfg.Mem,
		pred:   cfg.Pred,
		uQueue: latch.New[QueueItem](cfg.QueueCap),
		idRA:   latch.New[QueueItem](cfg.IDRACap),
	}
	c.rname[uop.ClassGP] = newRenameTable(ArfGPCount, PrfGPCount)
	c.rname[uop.ClassFP] = newRenameTable(ArfFPCount, PrfFPCount)
	c.rname[uop.ClassVR] = newRenameTable(ArfVRCount, PrfVRCount)
	return c
}

// ARF exposes the architectural register file.
func (c *Core) ARF() *ARF { return c.arf }

// Halted reports whether commit has latched a halting exception.
func (c *Core) Halted() bool { return c.halted }

// Active reports whether any backend stage still holds in-flight work,
// the core's contribution to the simulator's termination predicate
// (spec §5 "activity mask is zero").
func (c *Core) Active() bool {
	if c.uQueue.Len() > 0 || c.idRA.Len() > 0 || c.rob.Len() > 0 || c.lq.Len() > 0 {
		return true
	}
	for _, p := range c.ps.P {
		for _, f := range p.Fus {
			if f.Bound {
				return true
			}
		}
	}
	return false
}

// Push enqueues a decoded macro-aware uop into the uQueue, visible at
// now+0 (the frontend already paid its own latency). Reports Full if the
// uQueue has no room.
func (c *Core) Push(now uint64, item QueueItem) bool {
	return c.uQueue.PushBack(now, item)
}

// QueueLen exposes the uQueue's depth, for the frontend's own
// backpressure decisions.
func (c *Core) QueueLen() int { return c.uQueue.Len() }

// QueueHasRoom reports whether the uQueue could accept n more items
// without exceeding capacity, letting the frontend admit a macro-op's
// whole uop bundle atomically (spec §4.11).
func (c *Core) QueueHasRoom(n int) bool { return c.uQueue.HasRoom(n) }

// Cycle advances the backend by one tick: MemoryManager.refresh() (the
// first of its two per-cycle invocations, spec §5), then decode, alloc,
// issue, execute (which refreshes the memory manager a second time),
// commit — in that fixed order (spec §5).
func (c *Core) Cycle(now uint64, ps *PipelineState) Events {
	c.mm.Refresh(now)

	c.decode(now)
	c.allocate(now)
	c.issue(now)
	c.execute(now)
	return c.commit(now, ps)
}

// Package sim owns the top-level simulation loop: a Frontend capability
// (either frontend/risc or frontend/x64) feeding an ooo.Core, advanced
// one cycle at a time in the fixed order spec §5 requires, until the
// machine halts or every stage goes quiet (spec §4.0, §5, §7).
package sim

import (
	"fmt"

	"github.com/archlab/uopsim/mem"
	"github.com/archlab/uopsim/ooo"
	"github.com/archlab/uopsim/uop"
)

// Frontend is the capability surface both frontend/risc and frontend/x64
// satisfy: fetch+decode one step of work into the core, accept a
// redirect, and report whether more fetches are still intended (spec
// §4.12 "BranchPredictor/frontend capability-set pattern").
type Frontend interface {
	Cycle(now uint64, ps *ooo.PipelineState, core *ooo.Core)
	Flush(target uint64)
	Active() bool
}

// Config bundles everything a Simulator needs at construction.
type Config struct {
	Core     *ooo.Core
	Frontend Frontend
	Mem      *mem.Manager
	Entry    uint64

	// MaxCycles bounds Run, guarding against a machine that never
	// terminates (a runaway loop with no halt uop). Zero means
	// unbounded.
	MaxCycles uint64
}

// Simulator drives the frontend and core together and collects the
// halt summary spec §7 describes.
type Simulator struct {
	core     *ooo.Core
	frontend Frontend
	mm       *mem.Manager
	maxCycle uint64

	ps    ooo.PipelineState
	cycle uint64

	macroCommitted uint64
	flushCount     uint64
}

// New constructs a Simulator with fetch starting at cfg.Entry.
func New(cfg Config) *Simulator {
	return &Simulator{
		core:     cfg.Core,
		frontend: cfg.Frontend,
		mm:       cfg.Mem,
		maxCycle: cfg.MaxCycles,
		ps:       ooo.PipelineState{InFlight: []uint64{cfg.Entry}, SeqAddrs: []uint64{cfg.Entry}},
	}
}

// Summary is the final report Run returns, per spec §7's halt-summary
// contents: the terminating exception (if any), the final architectural
// state, and the usual throughput counters.
type Summary struct {
	Exception   uop.Exception
	ExceptionMn uop.Mnemonic
	ErrCode     uint16

	Halted    bool
	TimedOut  bool
	Cycles    uint64
	Committed uint64
	FlushCount uint64

	ARF *ooo.ARF
}

// IPC returns committed macro-instructions per cycle, 0 if no cycles ran.
func (s Summary) IPC() float64 {
	if s.Cycles == 0 {
		return 0
	}
	return float64(s.Committed) / float64(s.Cycles)
}

// String renders a one-line human-readable summary, in the teacher's
// verbose-diagnostics style (see cmd/uopsim).
func (s Summary) String() string {
	status := "halted"
	if s.TimedOut {
		status = "timed out"
	} else if !s.Halted {
		status = "stopped (quiescent)"
	}
	return fmt.Sprintf("%s after %d cycles: %d macro-instructions committed (IPC=%.3f), exception=%s, flushes=%d",
		status, s.Cycles, s.Committed, s.IPC(), s.Exception, s.FlushCount)
}

// Run advances the machine one cycle at a time — frontend first, then
// the core, per spec §5's fixed ordering — until the core halts, the
// machine goes fully quiescent (no in-flight work anywhere and the
// store buffer drained), or MaxCycles is reached.
func (s *Simulator) Run() Summary {
	for {
		if s.maxCycle > 0 && s.cycle >= s.maxCycle {
			return s.summarize(false, true, ooo.Events{})
		}

		s.frontend.Cycle(s.cycle, &s.ps, s.core)
		ev := s.core.Cycle(s.cycle, &s.ps)
		s.cycle++

		s.macroCommitted += uint64(ev.MacroCommitted)

		if ev.Flush {
			s.flushCount++
		}
		if ev.Redirect {
			s.frontend.Flush(ev.RedirectPC)
		}
		if ev.Halted {
			return s.summarize(true, false, ev)
		}
		if !s.core.Active() && !s.frontend.Active() && s.mm.StoreBufferEmpty() {
			return s.summarize(false, false, ev)
		}
	}
}

func (s *Simulator) summarize(halted, timedOut bool, ev ooo.Events) Summary {
	sum := Summary{
		Halted:     halted,
		TimedOut:   timedOut,
		Cycles:     s.cycle,
		Committed:  s.macroCommitted,
		FlushCount: s.ps.FlushCount,
		ARF:        s.core.ARF(),
	}
	if halted {
		sum.Exception = ev.Exception.Code()
		sum.ExceptionMn = ev.ExceptionMn
		sum.ErrCode = ev.Exception.ErrCode()
	}
	return sum
}

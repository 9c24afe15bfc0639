package x64

import (
	"github.com/archlab/uopsim/bpred"
	"github.com/archlab/uopsim/mem"
	"github.com/archlab/uopsim/ooo"
	"github.com/archlab/uopsim/uop"
)

const windowSize = 16

// Frontend streams 16-byte-aligned fetch windows through a predecoder,
// decodes completed instructions into uop bundles, and pushes them into
// the core (spec §4.10, §4.11).
type Frontend struct {
	mm   *mem.Manager
	pred bpred.Predictor
	tmp  tempPool

	fetchAddr uint64 // address of the next window to read
	window    []byte
	winBase   uint64
	winOff    int

	partial *Partial
	halted  bool
}

// New creates an x86-64 frontend starting fetch at entry.
func New(mm *mem.Manager, pred bpred.Predictor, entry uint64) *Frontend {
	return &Frontend{mm: mm, pred: pred, fetchAddr: entry & ^uint64(windowSize-1)}
}

// Cycle advances the predecoder/decoder by up to one freshly read
// 16-byte window, pushing every instruction that completes within it
// into the core. A short/failed read at a window boundary silently
// halts the frontend (spec §6.4's "silent-halt-or-PF at end of mapped
// region").
func (f *Frontend) Cycle(now uint64, ps *ooo.PipelineState, core *ooo.Core) {
	if f.halted {
		return
	}
	if f.partial != nil && f.partial.Done() {
		// A previous cycle finished decoding this instruction but found
		// no uQueue room for its bundle; retry emitting the same decoded
		// Partial rather than re-feeding its bytes (which, for an
		// instruction that spanned a fetch-window boundary, may no
		// longer sit at a rewindable offset in the current window).
		done := f.partial
		f.partial = nil
		if !f.emit(now, ps, core, done) {
			f.partial = done
			return
		}
	}
	if f.winOff >= len(f.window) {
		if !f.readWindow() {
			f.halted = true
			return
		}
	}
	if f.partial == nil {
		f.partial = NewPartial(f.winBase + uint64(f.winOff))
	}

	for f.winOff < len(f.window) {
		b := f.window[f.winOff]
		f.winOff++
		if !f.partial.Feed(b) {
			continue
		}
		done := f.partial
		f.partial = nil
		if !f.emit(now, ps, core, done) {
			// No room in the uQueue for the whole bundle: hold the
			// decoded instruction and retry it next cycle instead of
			// advancing to the next one.
			f.partial = done
			return
		}
		if f.winOff < len(f.window) {
			f.partial = NewPartial(f.winBase + uint64(f.winOff))
		}
		if f.partial == nil {
			return
		}
	}
}

func (f *Frontend) readWindow() bool {
	f.window = make([]byte, windowSize)
	n, err := f.mm.Read(f.fetchAddr, f.window, 0)
	if err != nil || n < windowSize {
		return false
	}
	f.winBase = f.fetchAddr
	f.winOff = 0
	f.fetchAddr += windowSize
	return true
}

// emit cracks a completed instruction, tags mop_first/mop_last, pushes
// every resulting uop, and updates the in-flight/sequential-address
// bookkeeping. Returns false if the core's queue has no room for the
// whole bundle, admitting nothing so the caller can hold the
// macro-instruction back and re-crack it next cycle.
func (f *Frontend) emit(now uint64, ps *ooo.PipelineState, core *ooo.Core, p *Partial) bool {
	next := p.Addr + uint64(p.Len())

	bundle, ok := f.crack(p, next)
	if !ok {
		bundle = []uop.Uop{uop.Int(uop.ExcUD, 0)}
	}
	if len(bundle) == 0 {
		bundle = []uop.Uop{uop.New(uop.ClassGP, uop.MnNop, 0, uop.Regs{}, 0)}
	}
	if !core.QueueHasRoom(len(bundle)) {
		return false
	}
	bundle[0].Control |= uop.CtrlMopFirst
	bundle[len(bundle)-1].Control |= uop.CtrlMopLast

	pred := f.pred.Predict(p.Addr, next, 0, false)
	seqNext := next
	if pred.Taken && pred.TargetKnown {
		seqNext = pred.Target
	}

	for _, u := range bundle {
		if !core.Push(now, ooo.QueueItem{U: u, PC: p.Addr, SeqAddr: next}) {
			return false
		}
	}
	ps.InFlight = append(ps.InFlight, p.Addr)
	ps.SeqAddrs = append(ps.SeqAddrs, next)
	if !ok || bundle[0].Mnemonic == uop.MnHalt {
		seqNext = next
	}
	f.resumeAt(seqNext)
	return true
}

// resumeAt redirects fetch to target when it falls outside the window
// currently being consumed (a taken branch within this macro-bundle's
// prediction, or simply the end of the mapped window).
func (f *Frontend) resumeAt(target uint64) {
	if target>>4 == f.winBase>>4 && target >= f.winBase {
		f.winOff = int(target - f.winBase)
		f.partial = nil
		return
	}
	f.Flush(target)
}

// Flush redirects fetch to a corrected target, discarding whatever
// window and partial instruction were in flight.
func (f *Frontend) Flush(target uint64) {
	f.fetchAddr = target & ^uint64(windowSize-1)
	f.window = nil
	f.winOff = 0
	f.partial = nil
	f.halted = false
}

// Active reports whether the frontend still intends to fetch more.
func (f *Frontend) Active() bool { return !f.halted }

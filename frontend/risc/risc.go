// Package risc implements the trivial passthrough frontend: a fixed
// 16-byte fetch that reads a pre-encoded uop directly off the wire, no
// predecoding or cracking involved (spec §6.4 "RISC frontend").
package risc

import (
	"encoding/binary"

	"github.com/archlab/uopsim/bpred"
	"github.com/archlab/uopsim/mem"
	"github.com/archlab/uopsim/ooo"
	"github.com/archlab/uopsim/uop"
)

// Frontend fetches one 16-byte wire-format uop per cycle from the memory
// image and pushes it straight into the core's uQueue.
type Frontend struct {
	mm   *mem.Manager
	pred bpred.Predictor

	fetchAddr uint64
	halted    bool
}

// New creates a RISC frontend that fetches starting at entry.
func New(mm *mem.Manager, pred bpred.Predictor, entry uint64) *Frontend {
	return &Frontend{mm: mm, pred: pred, fetchAddr: entry}
}

// Cycle reads one 16-byte record at the current fetch address, decodes it,
// and pushes it into the core. A short read (off the end of mapped memory)
// silently halts the frontend rather than raising a page fault, since the
// RISC frontend has no instruction-fetch exception path of its own (spec
// §6.4's "passthrough" framing carries no PF semantics).
func (f *Frontend) Cycle(now uint64, ps *ooo.PipelineState, core *ooo.Core) {
	if f.halted {
		return
	}

	buf := make([]byte, 16)
	n, err := f.mm.Read(f.fetchAddr, buf, 0)
	if err != nil || n < 16 {
		f.halted = true
		return
	}

	opcode := binary.BigEndian.Uint16(buf[0:2])
	control := binary.BigEndian.Uint16(buf[2:4]) | uop.CtrlMopFirst | uop.CtrlMopLast
	regs := uop.Regs{Ra: buf[4], Rb: buf[5], Rc: buf[6], Rd: buf[7]}
	imm := binary.LittleEndian.Uint64(buf[8:16])
	class, mn := uop.DecodeOpcode(opcode)

	u := uop.Uop{Opcode: opcode, Control: control, Regs: regs, Imm: imm, Class: class, Mnemonic: mn}

	addr := f.fetchAddr
	seq := addr + 16
	pred := f.pred.Predict(addr, seq, 0, false)
	next := seq
	if pred.Taken && pred.TargetKnown {
		next = pred.Target
	}

	if !core.Push(now, ooo.QueueItem{U: u, PC: addr, SeqAddr: seq}) {
		return
	}

	ps.InFlight = append(ps.InFlight, addr)
	ps.SeqAddrs = append(ps.SeqAddrs, seq)
	f.fetchAddr = next
}

// Flush resets the fetch cursor to a redirect target and clears the
// silent-halt latch, since a flush can redirect fetch even past a
// previously observed short read (e.g. a corrected branch target).
func (f *Frontend) Flush(target uint64) {
	f.fetchAddr = target
	f.halted = false
}

// Active reports whether the frontend still intends to fetch more.
func (f *Frontend) Active() bool { return !f.halted }

package ooo

import (
	"github.com/archlab/uopsim/mem"
	"github.com/archlab/uopsim/uop"
)

// smcInstrLen is the conservative instruction-length upper bound used
// by the self-modifying-code overlap test (spec §4.8 step 8): no
// supported macro-instruction exceeds this many bytes.
const smcInstrLen = 16

// commit retires up to Widths.Commit ROB entries head-first, strictly
// in program order (spec §4.8).
func (c *Core) commit(now uint64, ps *PipelineState) Events {
	if c.halted {
		return Events{Halted: true}
	}

	head := c.rob.Head()
	if ps.RefetchActive && head != nil && head.PC == ps.RefetchAt {
		ps.RefetchActive = false
		target := ps.RefetchAt
		c.flushBackend(ps)
		return Events{Flush: true, Redirect: true, RedirectPC: target}
	}

	committed := 0
	for i := 0; i < c.Widths.Commit; i++ {
		head = c.rob.Head()
		if head == nil {
			break
		}
		if head.CReady == 0 || head.CReady > now {
			break
		}
		if !head.Except.IsNone() {
			c.halted = true
			var haltCommitted int
			if head.Uop.MopLast() {
				haltCommitted = 1
			}
			return Events{Halted: true, Exception: head.Except, ExceptionMn: head.Uop.Mnemonic, MacroCommitted: haltCommitted}
		}

		c.writebackARF(head)
		c.retireRename(head)
		c.retireCond(head)

		if isMemLoad(head.Uop) {
			c.lq.PopHead()
			if head.MemRef.Mode == mem.ModeInvalid {
				addr := head.PC
				c.rob.PopHead()
				c.flushBackend(ps)
				return Events{Flush: true, Redirect: true, RedirectPC: addr}
			}
		}

		if head.Uop.IsStore() {
			if evt, handled := c.commitStore(now, ps, head); handled {
				c.rob.PopHead()
				return evt
			}
		}

		if head.Uop.IsBranch() {
			target := head.MemRef.Target()
			c.pred.Update(head.PC, target, head.MemRef.Taken)
			if len(ps.InFlight) > 1 && ps.InFlight[1] != target {
				c.rob.PopHead()
				c.flushBackend(ps)
				return Events{Flush: true, Redirect: true, RedirectPC: target}
			}
		}

		if head.Uop.MopLast() {
			if len(ps.InFlight) > 0 {
				ps.InFlight = ps.InFlight[1:]
			}
			if len(ps.SeqAddrs) > 0 {
				ps.SeqAddrs = ps.SeqAddrs[1:]
			}
			if c.seqAtAlloc > 0 {
				c.seqAtAlloc--
			}
			if len(ps.InFlight) > 0 {
				c.arf.IP = ps.InFlight[0]
			}
			committed++
		}

		c.rob.PopHead()
	}
	return Events{MacroCommitted: committed}
}

// writebackARF copies the committing uop's physical destination(s) into
// the ARF, unless it was a load later invalidated by a conflicting
// store (spec §4.8 step 4).
func (c *Core) writebackARF(head *Entry) {
	if isMemLoad(head.Uop) && head.MemRef.Mode == mem.ModeInvalid {
		return
	}
	class := head.Uop.Class
	if class == uop.ClassCtrl {
		return
	}
	rt := c.rname[class]
	if head.Dest.Valid {
		c.writebackOne(class, rt.R[head.Dest.Phys], head.Dest.Phys)
	}
	if head.Dest2.Valid {
		c.writebackOne(class, rt.R[head.Dest2.Phys], head.Dest2.Phys)
	}
}

func (c *Core) writebackOne(class uop.Class, arch, phys uint8) {
	switch class {
	case uop.ClassGP:
		c.arf.WriteGP(arch, c.prf.GP[phys])
	case uop.ClassFP:
		c.arf.WriteFP(arch, c.prf.FP[phys])
	case uop.ClassVR:
		c.arf.WriteVR(arch, c.prf.VR[phys])
	}
}

// retireRename updates the committed rename table, frees the physical
// register(s), clears the reverse mapping, and clears the forward
// allocated mapping if it still names the freed id (spec §4.8 step 5).
func (c *Core) retireRename(head *Entry) {
	class := head.Uop.Class
	if class == uop.ClassCtrl {
		return
	}
	rt := c.rname[class]
	if head.Dest.Valid {
		c.retireOnePhys(rt, head.Dest.Phys)
	}
	if head.Dest2.Valid {
		c.retireOnePhys(rt, head.Dest2.Phys)
	}
}

func (c *Core) retireOnePhys(rt *RenameTable, phys uint8) {
	arch := rt.R[phys]
	rt.C[arch] = phys
	rt.Release(phys)
	rt.R[phys] = 0
	if rt.A[arch] == phys {
		rt.A[arch] = 0
	}
}

// retireCond retires the last-used FIFO head and copies the new head's
// physical cc into the ARF condition register, but only once a newer
// set_cond has actually committed (spec §4.8 step 6; matches the
// original's `cc_set != cc_lastused.front()` guard,
// core.cc:934-941 — the cc a set_cond op allocates is only freed once a
// later one has taken its place at the FIFO head).
func (c *Core) retireCond(head *Entry) {
	if !head.CCSet.Valid {
		return
	}
	front, ok := c.cond.Head()
	if !ok || head.CCSet.Phys == front {
		return
	}
	c.cond.RetireHead()
	if p, ok := c.cond.Head(); ok {
		c.arf.Cond = c.prf.Cond[p]
	}
}

// commitStore invalidates any LQ entry aliased by this store, submits
// it to the memory manager, arms a refetch if it overlaps an in-flight
// instruction address (SMC), and on a memory fault flushes and
// reinserts a synthetic `int` ROB entry (spec §4.8 step 8). The bool
// return reports whether the caller should stop this commit cycle.
func (c *Core) commitStore(now uint64, ps *PipelineState, head *Entry) (Events, bool) {
	for _, lqe := range c.lq.Entries() {
		le := c.rob.Find(lqe.RobID)
		if le == nil {
			continue
		}
		if c.mm.IsAlias(le.MemRef.VAddr, le.MemRef.Size, head.MemRef.VAddr, head.MemRef.Size) {
			le.MemRef.Mode = mem.ModeInvalid
		}
	}

	req := mem.Request{Ref: &head.MemRef, CallerPL: 0}
	c.mm.Put(now, req, &head.PFErrCode)
	if head.PFErrCode != 0 {
		c.flushBackend(ps)
		entry := &Entry{
			Uop:    uop.Int(uop.ExcPF, 0),
			Except: uop.NewWord(uop.ExcPF, uint16(head.PFErrCode)),
			CReady: now,
			PC:     head.PC,
		}
		c.rob.Enqueue(entry)
		return Events{Flush: true}, true
	}

	if addr, ok := mem.FindOverlap(head.MemRef.VAddr, head.MemRef.Size, ps.InFlight, smcInstrLen); ok {
		if !ps.RefetchActive || addr < ps.RefetchAt {
			ps.RefetchActive = true
			ps.RefetchAt = addr
		}
	}
	return Events{}, false
}

package ooo

import (
	"github.com/archlab/uopsim/mem"
	"github.com/archlab/uopsim/uop"
)

// execute drains the memory manager a second time (spec §5), advances
// the load path, then steps every bound functional unit (spec §4.7).
func (c *Core) execute(now uint64) {
	c.mm.Refresh(now)
	c.executeLoads(now)
	c.executeFUs(now)
}

// executeLoads submits up to Widths.Load ExReady loads to the memory
// manager, then scans every LQ entry for a ValReady memref and resolves
// the owning ROB entry's readiness (spec §4.7 "load path").
func (c *Core) executeLoads(now uint64) {
	submitted := 0
	for _, lqe := range c.lq.Entries() {
		if submitted >= c.Widths.Load {
			break
		}
		if lqe.ReadyAt > now {
			continue
		}
		e := c.rob.Find(lqe.RobID)
		if e == nil || e.MemRef.Ready != mem.ExReady {
			continue
		}
		req := mem.Request{Ref: &e.MemRef, CallerPL: 0}
		c.mm.Get(now, req, &e.PFErrCode)
		submitted++
	}

	for _, lqe := range c.lq.Entries() {
		e := c.rob.Find(lqe.RobID)
		if e == nil || e.MemRef.Ready != mem.ValReady || e.CReady != 0 {
			continue
		}
		e.CReady = now
		if len(e.MemRef.Data) == 0 {
			e.Except = uop.NewWord(uop.ExcPF, uint16(e.PFErrCode))
			continue
		}
		c.writeLoadResult(e)
	}
}

// executeFUs starts any bound FU whose earliest-start has arrived,
// counts down its busy latency, and executes the uop on the FU's final
// cycle, clearing the binding (spec §4.7).
func (c *Core) executeFUs(now uint64) {
	for _, p := range c.ps.P {
		for _, fu := range p.Fus {
			if !fu.Bound {
				continue
			}
			e := c.rob.Find(fu.RobID)
			if e == nil {
				// the bound entry was flushed; release the FU.
				fu.Bound = false
				fu.Busy = 0
				continue
			}
			if fu.Busy == 0 {
				if fu.EarliestStart > now {
					continue
				}
				tentry, ok := c.table.Lookup(e.Uop.Mnemonic)
				lat := uint64(1)
				if ok && tentry.Latency > 0 {
					lat = tentry.Latency
				}
				fu.Busy = lat
			}
			if fu.Busy > 1 {
				fu.Busy--
				continue
			}
			c.executeUop(now, e)
			fu.Bound = false
			fu.Busy = 0
		}
	}
}

// executeUop performs the uop-specific semantics for a ROB entry whose
// FU has just completed: register mutation, condition flags, branch
// target resolution, or load/store address computation (spec §4.7's
// "semantics... specified entirely by the uop table").
func (c *Core) executeUop(now uint64, e *Entry) {
	switch {
	case e.Uop.Mnemonic == uop.MnLda:
		c.executeLda(now, e)
	case isMemLoad(e.Uop):
		c.executeLoadAddr(e)
	case e.Uop.IsStore():
		c.executeStoreAddr(now, e)
	case e.Uop.IsBranch():
		c.executeBranch(now, e)
	default:
		c.executeALU(now, e)
	}
}

// isMemLoad reports whether u belongs to the load family that actually
// touches memory through the LQ and the memory manager. MnLda is
// excluded: it only computes an effective address into its destination
// register for a following ld/st to consume, the way lea does.
func isMemLoad(u uop.Uop) bool {
	return u.IsLoad() && u.Mnemonic != uop.MnLda
}

// executeLda computes ra + displacement into rd, the same register-only
// semantics as lea, but carried under the load ports/FU per the uop
// table's wiring.
func (c *Core) executeLda(now uint64, e *Entry) {
	base := c.prf.GP[e.Uop.Regs.Ra]
	result := base + uint64(dispOf(e.Uop))
	if e.Dest.Valid {
		e.Uop.Regs.Rd = e.Dest.Phys
		c.prf.GP[e.Dest.Phys] = result
	}
	e.CReady = now
}

// executeLoadAddr computes a load uop's effective address from its base
// register plus a sign-extended immediate displacement and marks the
// memref ExReady for the load path to submit (spec §4.7: "produced by
// the lda/ld64 uop's address-computation step").
func (c *Core) executeLoadAddr(e *Entry) {
	base := c.prf.GP[e.Uop.Regs.Ra]
	addr := base + uint64(dispOf(e.Uop))
	e.MemRef = mem.Ref{VAddr: addr, Size: uint64(opSizeBytes(e.Uop)), Mode: mem.ModeRead, Ready: mem.ExReady}
}

// dispOf returns a load/store uop's constant displacement. lda always
// treats Imm as a plain displacement, since it is the uop that resolves
// the effective address in the first place. A ld/st with imm_delay set
// has had its address fully resolved by a preceding lda into its base
// register already, so its Imm carries only the load-ready delay byte,
// not a further displacement.
func dispOf(u uop.Uop) int64 {
	if u.Mnemonic != uop.MnLda && u.ImmDelay() {
		return 0
	}
	return int64(u.Imm)
}

// executeStoreAddr computes a store uop's effective address and stages
// its source value; the actual write is deferred to commit (spec §4.8
// step 8).
func (c *Core) executeStoreAddr(now uint64, e *Entry) {
	base := c.prf.GP[e.Uop.Regs.Ra]
	addr := base + uint64(dispOf(e.Uop))
	size := opSizeBytes(e.Uop)
	data := make([]byte, size)
	v := c.prf.GP[e.Uop.Regs.Rb]
	for i := 0; i < size; i++ {
		data[i] = byte(v >> (8 * i))
	}
	e.MemRef = mem.Ref{VAddr: addr, Size: uint64(size), Mode: mem.ModeWrite, Ready: mem.ValReady, Data: data}
	e.CReady = now
}

// executeBranch resolves a branch's direction and target. The target
// operand convention is register-indirect when ra is a source (ret,
// call-by-register, indirect jmp) and PC-relative via the immediate
// otherwise.
func (c *Core) executeBranch(now uint64, e *Entry) {
	taken := true
	if e.Uop.Mnemonic == uop.MnJcc {
		flags := c.arf.Cond
		if e.CCUse.Valid {
			flags = c.prf.Cond[e.CCUse.Phys]
		}
		taken = uop.Eval(uop.Cond((e.Uop.Imm>>60)&0xF), flags)
	}

	var target uint64
	if e.Uop.Control&uop.CtrlUseRA != 0 {
		target = c.prf.GP[e.Uop.Regs.Ra]
	} else {
		// jcc packs its condition into Imm's top nibble (see
		// uop.JccImm), leaving the low 32 bits as a plain rel32-sized
		// signed displacement; every other PC-relative branch uses the
		// full Imm as the displacement.
		disp := int64(e.Uop.Imm)
		if e.Uop.Mnemonic == uop.MnJcc {
			disp = int64(int32(uint32(e.Uop.Imm)))
		}
		target = e.PC + uint64(disp)
	}

	e.MemRef.Mode = mem.ModeBranch
	e.MemRef.Taken = taken
	if taken {
		e.MemRef.SetTarget(target)
	} else {
		e.MemRef.SetTarget(e.SeqAddr)
	}
	e.CReady = now
}

// writeLoadResult merges a completed load's returned bytes into its
// destination physical register, honoring rd_extend/rd_resize (spec §9
// "Partial register writes").
func (c *Core) writeLoadResult(e *Entry) {
	if !e.Dest.Valid {
		return
	}
	v := bytesToUint64(e.MemRef.Data)
	e.Uop.Regs.Rd = e.Dest.Phys
	c.prf.GP[e.Dest.Phys] = mergeGP(c.prf.GP[e.Dest.Phys], v, opSizeBytes(e.Uop), e.Uop.Control&uop.CtrlRdExtend != 0, e.Uop.Control&uop.CtrlRdResize != 0)
}

func bytesToUint64(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0 && i < 8; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// opSizeBytes returns a uop's operand size in bytes, defaulting to 8
// when the control bitmap's op-size field is unset (i.e. zero).
func opSizeBytes(u uop.Uop) int {
	n := uop.OpSize(u.Control)
	if n == 0 {
		n = 8
	}
	return n
}

// mergeGP combines a freshly computed n-byte value with the prior
// register contents: rd_resize always writes the full 64 bits (the
// value is assumed already appropriately sized); rd_extend sign-extends
// from n bytes; otherwise the untouched upper bytes are preserved.
func mergeGP(old uint64, v uint64, n int, extend, resize bool) uint64 {
	if n >= 8 || resize {
		return v
	}
	mask := uint64(1)<<(uint64(n)*8) - 1
	v &= mask
	if extend {
		signBit := uint64(1) << (uint64(n)*8 - 1)
		if v&signBit != 0 {
			return v | ^mask
		}
		return v
	}
	return (old &^ mask) | v
}

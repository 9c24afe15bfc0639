package ooo

import (
	"github.com/archlab/uopsim/latch"
	"github.com/archlab/uopsim/mem"
	"github.com/archlab/uopsim/uop"
)

// allocPlan is the dry-run resource tally computed before mutating any
// rename state, so a slot that cannot be satisfied stalls without a
// partial rename (spec §4.5, resolving the documented bug in the
// source's resource-availability arithmetic per the redesign notes:
// the true count of needed free physical registers, not a mixed-up
// ternary expression).
type allcPlan struct {
	needPhys int
	needCond bool
}

// allocate consumes up to Widths.Alloc ID/RA entries per cycle, renaming
// sources and destinations, tracking condition registers, accounting
// for LQ capacity, and emitting a ROB entry per uop (spec §4.5). A slot
// whose resources are unavailable stalls without consuming the head.
func (c *Core) allocate(now uint64) {
	for i := 0; i < c.Widths.Alloc; i++ {
		item, outcome := c.idRA.Front(now)
		if outcome != latch.Ok {
			break
		}
		if c.rob.Full() {
			break
		}
		if !c.allocSlot(now, item) {
			break
		}
		c.idRA.PopFront()
	}
}

// allocSlot attempts to rename and enqueue one uop. Returns false
// (leaving the ID/RA head untouched) if resources are insufficient.
func (c *Core) allocSlot(now uint64, item QueueItem) bool {
	u := item.U
	plan := c.planAlloc(u)

	if u.Class != uop.ClassCtrl {
		rt := c.rname[u.Class]
		if plan.needPhys > rt.FreeCount() {
			return false
		}
	}
	if plan.needCond && c.cond.FreeCount() == 0 {
		return false
	}
	if isMemLoad(u) && c.lq.Full() {
		return false
	}

	entry := &Entry{
		Uop:    u,
		Status: StatusWaiting,
		PC:     item.PC,
		SeqAddr: item.SeqAddr,
	}

	if u.Class != uop.ClassCtrl {
		c.renameSources(&entry.Uop, u.Class)
		c.renameDests(entry, u.Class)
	}
	c.trackCond(entry)

	if entry.Uop.IsBranch() {
		entry.MemRef.Mode = mem.ModeBranch
		entry.MemRef.SetTarget(item.SeqAddr)
	}

	c.rob.Enqueue(entry)

	if isMemLoad(entry.Uop) {
		delay := uint64(1)
		if entry.Uop.ImmDelay() {
			delay = (entry.Uop.Imm >> 48) & 0xFF
			if delay == 0 {
				delay = 1
			}
		}
		c.lq.Enqueue(entry.ID, now+delay)
	}

	if u.MopLast() {
		c.seqAtAlloc++
	}
	return true
}

// planAlloc dry-runs the rename step to count how many fresh physical
// registers this uop would consume, without mutating any table.
func (c *Core) planAlloc(u uop.Uop) allcPlan {
	var plan allcPlan
	if u.Class != uop.ClassCtrl {
		rt := c.rname[u.Class]
		if u.Control&uop.CtrlUseRA != 0 && u.Regs.Ra != 0 && rt.A[u.Regs.Ra] == 0 {
			plan.needPhys++
		}
		if u.Control&uop.CtrlUseRB != 0 && u.Regs.Rb != 0 && rt.A[u.Regs.Rb] == 0 {
			plan.needPhys++
		}
		if u.Control&uop.CtrlUseRC != 0 && u.Regs.Rc != 0 && rt.A[u.Regs.Rc] == 0 {
			plan.needPhys++
		}
		if u.Regs.Rd != 0 {
			plan.needPhys++
		}
		if u.RcDest() && u.Regs.Rc != 0 {
			plan.needPhys++
		}
	}
	plan.needCond = u.Control&uop.CtrlSetCond != 0
	return plan
}

// renameSources rewrites ra/rb/rc (when used as sources) to their
// physical register references, allocating a fresh physical register
// and seeding it from the ARF on first reference (spec §4.5 "Source
// renaming").
func (c *Core) renameSources(u *uop.Uop, class uop.Class) {
	rt := c.rname[class]
	if u.Control&uop.CtrlUseRA != 0 && u.Regs.Ra != 0 {
		u.Regs.Ra = c.renameSource(rt, class, u.Regs.Ra)
	}
	if u.Control&uop.CtrlUseRB != 0 && u.Regs.Rb != 0 {
		u.Regs.Rb = c.renameSource(rt, class, u.Regs.Rb)
	}
	if u.Control&uop.CtrlUseRC != 0 && u.Regs.Rc != 0 {
		u.Regs.Rc = c.renameSource(rt, class, u.Regs.Rc)
	}
}

func (c *Core) renameSource(rt *RenameTable, class uop.Class, arch uint8) uint8 {
	if rt.A[arch] != 0 {
		return rt.A[arch]
	}
	p := rt.Allocate()
	c.seedPhys(class, p, arch)
	rt.A[arch] = p
	rt.R[p] = arch
	return p
}

// seedPhys copies the current architectural value of arch into the
// freshly allocated physical register p.
func (c *Core) seedPhys(class uop.Class, p, arch uint8) {
	switch class {
	case uop.ClassGP:
		c.prf.GP[p] = c.arf.ReadGP(arch)
	case uop.ClassFP:
		c.prf.FP[p] = c.arf.ReadFP(arch)
	case uop.ClassVR:
		c.prf.VR[p] = c.arf.ReadVR(arch)
	}
}

// renameDests allocates fresh physical registers for rd and, when
// rc_dest is set, rc, rewriting the uop's destination references and
// recording them on the ROB entry for commit-time writeback (spec §4.5
// "Destination renaming").
func (c *Core) renameDests(e *Entry, class uop.Class) {
	rt := c.rname[class]
	if e.Uop.Regs.Rd != 0 {
		arch := e.Uop.Regs.Rd
		p := rt.Allocate()
		rt.A[arch] = p
		rt.R[p] = arch
		e.Dest = destRef{Valid: true, Phys: p}
		e.Uop.Regs.Rd = p
	}
	if e.Uop.RcDest() && e.Uop.Regs.Rc != 0 {
		arch := e.Uop.Regs.Rc
		p := rt.Allocate()
		rt.A[arch] = p
		rt.R[p] = arch
		e.Dest2 = destRef{Valid: true, Phys: p}
		e.Uop.Regs.Rc = p
	}
}

// trackCond binds the uop's used condition id to the last-used FIFO's
// tail and/or allocates a fresh set-cond id (spec §4.5 "Condition
// register tracking").
func (c *Core) trackCond(e *Entry) {
	if e.Uop.UseCond() {
		if tail, ok := c.cond.Tail(); ok {
			e.CCUse = destRef{Valid: true, Phys: tail}
		} else {
			e.Uop.Control &^= uop.CtrlUseCond
		}
	}
	if e.Uop.Control&uop.CtrlSetCond != 0 {
		p := c.cond.Allocate()
		e.CCSet = destRef{Valid: true, Phys: p}
	}
}

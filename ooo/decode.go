package ooo

import (
	"github.com/archlab/uopsim/latch"
	"github.com/archlab/uopsim/uop"
)

// decode moves up to Widths.Decode uops per cycle from the uQueue into
// the ID/RA latch, subject to latch capacity and uQueue readiness (spec
// §4.4).
func (c *Core) decode(now uint64) {
	for i := 0; i < c.Widths.Decode; i++ {
		if c.idRA.Full() {
			break
		}
		item, outcome := c.uQueue.Front(now)
		if outcome != latch.Ok {
			break
		}
		c.uQueue.PopFront()
		item.U = c.decodeOne(item.U)
		c.idRA.PushBack(now+c.Widths.DecodeLatency, item)
	}
}

// decodeOne looks up a uop's metadata, masks its control bits against
// the mnemonic's allowed set, normalizes its register references, and
// bounds-checks them against its class's architectural register count
// (spec §4.4).
func (c *Core) decodeOne(u uop.Uop) uop.Uop {
	entry, ok := c.table.Lookup(u.Mnemonic)
	if !ok {
		return uop.Int(uop.ExcUD, 0)
	}
	u.Control = entry.MaskControl(u.Control)

	if u.Control&uop.CtrlUseRA == 0 {
		u.Regs.Ra = 0
	}
	if u.Regs.Ra == 0 {
		u.Control &^= uop.CtrlUseRA
	}

	if u.Control&uop.CtrlUseRB == 0 {
		u.Regs.Rb = 0
	}
	if u.Regs.Rb == 0 {
		u.Control &^= uop.CtrlUseRB
	}

	if u.Control&uop.CtrlRcDest != 0 {
		u.Control &^= uop.CtrlUseRC
	} else {
		if u.Control&uop.CtrlUseRC == 0 {
			u.Regs.Rc = 0
		}
		if u.Regs.Rc == 0 {
			u.Control &^= uop.CtrlUseRC
		}
	}

	if !c.decodeBoundsOK(u) {
		return uop.Int(uop.ExcREG, 0)
	}
	return u
}

// decodeBoundsOK reports whether every register reference this uop
// actually uses fits within its class's architectural register count.
// Control-class uops (int/halt) carry no ARF-indexed operands.
func (c *Core) decodeBoundsOK(u uop.Uop) bool {
	if u.Class == uop.ClassCtrl {
		return true
	}
	n := classCount(u.Class)
	fits := func(r uint8) bool { return int(r) < n }
	if u.Control&uop.CtrlUseRA != 0 && !fits(u.Regs.Ra) {
		return false
	}
	if u.Control&uop.CtrlUseRB != 0 && !fits(u.Regs.Rb) {
		return false
	}
	if u.Control&uop.CtrlUseRC != 0 && !fits(u.Regs.Rc) {
		return false
	}
	if u.Regs.Rd != 0 && !fits(u.Regs.Rd) {
		return false
	}
	return true
}

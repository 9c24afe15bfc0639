package ooo

import "github.com/archlab/uopsim/uop"

// issue scans the first Widths.IssueDepth ROB entries in a single
// forward pass, issuing up to Widths.Issue of them. Every entry in the
// window is examined at most once per cycle: an entry that is not
// waiting-and-ready, loses the dependence check, or finds no available
// port/FU is skipped and the scan continues onward rather than retried
// (spec §4.6).
func (c *Core) issue(now uint64) {
	c.ps.decrementLockouts()

	entries := c.rob.Entries()
	depth := c.Widths.IssueDepth
	if depth > len(entries) {
		depth = len(entries)
	}

	lat := c.Widths.IssueLatency
	if lat < 1 {
		lat = 1
	}

	issued := 0
	for idx := 0; idx < depth && issued < c.Widths.Issue; idx++ {
		e := entries[idx]
		if e.Status != StatusWaiting || e.CReady != 0 {
			continue
		}
		tentry, ok := c.table.Lookup(e.Uop.Mnemonic)
		if !ok {
			continue
		}
		port, fu := c.findIssuePort(tentry)
		if fu == nil {
			continue
		}
		if c.dependenceBlocked(entries[:idx], e) {
			continue
		}

		port.Lockout = lat
		fu.EarliestStart = now + lat
		fu.Bound = true
		fu.RobID = e.ID
		e.Status = StatusRunning
		issued++
	}
}

// findIssuePort picks the first non-locked-out port carrying this
// mnemonic's port mask with an available FU of the required type.
func (c *Core) findIssuePort(tentry uop.Entry) (*Port, *Fu) {
	for i := 0; i < 8; i++ {
		if !tentry.Ports.Has(uop.Port(i)) {
			continue
		}
		p := c.ps.P[i]
		if p.Lockout > 0 {
			continue
		}
		if fu := p.findFU(tentry.FU); fu != nil {
			return p, fu
		}
	}
	return nil, nil
}

// dependenceBlocked reports whether any older (lower-indexed) ROB entry
// that is not yet ready writes a physical register this candidate reads
// as a source, or sets the condition id this candidate uses (spec §4.6
// step 3).
func (c *Core) dependenceBlocked(older []*Entry, cand *Entry) bool {
	srcs := sourcePhys(cand.Uop)
	useCond := cand.Uop.UseCond() && cand.CCUse.Valid

	for _, o := range older {
		if o.CReady != 0 {
			continue
		}
		if o.Uop.Class == cand.Uop.Class {
			for _, s := range srcs {
				if (o.Dest.Valid && o.Dest.Phys == s) || (o.Dest2.Valid && o.Dest2.Phys == s) {
					return true
				}
			}
		}
		if useCond && o.CCSet.Valid && o.CCSet.Phys == cand.CCUse.Phys {
			return true
		}
	}
	return false
}

// sourcePhys lists the physical register ids a (post-rename) uop reads.
func sourcePhys(u uop.Uop) []uint8 {
	var out []uint8
	if u.Control&uop.CtrlUseRA != 0 {
		out = append(out, u.Regs.Ra)
	}
	if u.Control&uop.CtrlUseRB != 0 {
		out = append(out, u.Regs.Rb)
	}
	if u.Control&uop.CtrlUseRC != 0 {
		out = append(out, u.Regs.Rc)
	}
	return out
}

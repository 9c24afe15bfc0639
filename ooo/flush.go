package ooo

// flushBackend discards all speculative backend state while preserving
// committed architectural state and the memory manager's store buffer
// (spec §4.9).
func (c *Core) flushBackend(ps *PipelineState) {
	ps.FlushCount++

	for _, rt := range c.rname {
		if rt != nil {
			rt.Flush()
		}
	}
	c.cond.Clear()

	c.uQueue.Clear()
	c.idRA.Clear()
	c.rob.Clear()
	c.lq.Clear()
	c.ps.Clear()

	if len(ps.InFlight) > 1 {
		ps.InFlight = ps.InFlight[:1]
	}
	ps.SeqAddrs = nil
	c.seqAtAlloc = 0
}

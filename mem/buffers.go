package mem

// Request describes a load or store submission to the memory manager.
type Request struct {
	Ref      *Ref
	CallerPL uint8
	IFetch   bool
	User     bool
}

// Get validates a load request (presence + rwx + pl) and, on success,
// records it in the load buffer with cycle = now + LoadLatency, marking
// the ref InExec. On failure it sets excSlot to a page-fault word and
// marks the ref ValReady so the core observes and commits the exception
// (spec §4.2 "Load request queue").
func (m *Manager) Get(now uint64, req Request, excSlot *uint32) {
	need := RWX(RWXRead)
	if req.IFetch {
		need = RWXExec
	}
	paddr, err := m.translate(req.Ref.VAddr, need, req.CallerPL)
	if err == nil {
		_, err = m.resolveHost(paddr, need, req.CallerPL)
	}
	if err != nil {
		if excSlot != nil {
			*excSlot = pfErrCode(err, false, req.IFetch, req.User)
		}
		req.Ref.Ready = ValReady
		return
	}
	m.loads = append(m.loads, pendingLoad{
		ref:      req.Ref,
		excSlot:  excSlot,
		minReady: now + m.cfg.LoadLatency,
	})
	req.Ref.Ready = InExec
}

// Put validates a store request identically to Get and, on success,
// copies the data into a manager-owned buffer (the source register may
// be reclaimed before the store actually lands) and records it in the
// store buffer with cycle = now + StoreLatency (spec §4.2 "Store request
// queue").
func (m *Manager) Put(now uint64, req Request, excSlot *uint32) {
	paddr, err := m.translate(req.Ref.VAddr, RWXWrite, req.CallerPL)
	if err == nil {
		_, err = m.resolveHost(paddr, RWXWrite, req.CallerPL)
	}
	if err != nil {
		if excSlot != nil {
			*excSlot = pfErrCode(err, true, false, req.User)
		}
		req.Ref.Ready = ValReady
		return
	}
	owned := make([]byte, len(req.Ref.Data))
	copy(owned, req.Ref.Data)
	m.stores = append(m.stores, pendingStore{
		ref:   &Ref{VAddr: req.Ref.VAddr, Size: req.Ref.Size, Mode: ModeWrite, Data: owned},
		cycle: now + m.cfg.StoreLatency,
	})
}

// Refresh drains the store buffer (executing and freeing any store whose
// cycle <= now) and then the load buffer (executing any load whose cycle
// <= now and whose range is not busy, per the configured reorder
// policy). Executed loads flip Ready from InExec to ValReady (spec §4.2
// "Refresh").
func (m *Manager) Refresh(now uint64) {
	m.refreshStores(now)
	m.refreshLoads(now)
}

func (m *Manager) refreshStores(now uint64) {
	kept := m.stores[:0]
	for _, ps := range m.stores {
		if ps.cycle > now {
			kept = append(kept, ps)
			continue
		}
		_, _ = m.Write(ps.ref.VAddr, ps.ref.Data, 0)
	}
	m.stores = kept
}

func (m *Manager) refreshLoads(now uint64) {
	var kept []pendingLoad
	deferredRest := false
	for _, pl := range m.loads {
		if deferredRest {
			kept = append(kept, pl)
			continue
		}
		if pl.minReady > now {
			kept = append(kept, pl)
			continue
		}
		if m.IsBusy(pl.ref.VAddr, pl.ref.Size) {
			kept = append(kept, pl)
			if m.cfg.Reorder == Strict {
				deferredRest = true
			}
			continue
		}
		buf := make([]byte, pl.ref.Size)
		n, err := m.Read(pl.ref.VAddr, buf, 0)
		if err != nil || uint64(n) < pl.ref.Size {
			if pl.excSlot != nil {
				*pl.excSlot = pfErrCode(err, false, false, false)
			}
		} else {
			pl.ref.Data = buf
		}
		pl.ref.Ready = ValReady
	}
	m.loads = kept
}

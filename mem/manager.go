package mem

// LoadReorderPolicy controls whether a busy load at the head of the load
// buffer defers every subsequent load (Strict) or lets non-conflicting
// loads execute past it (Relaxed, the recommended default per spec §4.2).
type LoadReorderPolicy uint8

// Load-reorder policies.
const (
	Relaxed LoadReorderPolicy = iota
	Strict
)

// Config controls the memory manager's timing and reordering behavior.
type Config struct {
	// LoadLatency is LD_LATENCY: cycles from a successful Get to the
	// load's data becoming available.
	LoadLatency uint64
	// StoreLatency is ST_LATENCY: cycles from a successful Put to the
	// store's effect landing in memory.
	StoreLatency uint64
	// Reorder selects the load-buffer reordering policy.
	Reorder LoadReorderPolicy
}

// DefaultConfig returns the baseline memory-timing configuration.
func DefaultConfig() Config {
	return Config{LoadLatency: 4, StoreLatency: 1, Reorder: Relaxed}
}

// pendingStore is {memref (data owned by an internal copy), commit-cycle}.
type pendingStore struct {
	ref   *Ref
	cycle uint64
}

// pendingLoad is {pointer to a live memref, exception slot, minimum-ready-cycle}.
type pendingLoad struct {
	ref      *Ref
	excSlot  *uint32
	minReady uint64
}

// Manager is the memory subsystem: page/frame maps, address translation,
// and the pending store/load buffers (spec §4.2).
type Manager struct {
	cfg Config

	pages  map[uint64]PTE
	frames map[uint64]*Frame

	stores []pendingStore
	loads  []pendingLoad
}

// NewManager creates an empty memory manager with the given configuration.
func NewManager(cfg Config) *Manager {
	return &Manager{
		cfg:    cfg,
		pages:  make(map[uint64]PTE),
		frames: make(map[uint64]*Frame),
	}
}

// pfErrCode builds a page-fault error-code payload for a failed access.
func pfErrCode(err error, write, ifetch, user bool) uint32 {
	var bits uint16
	if pe, ok := err.(*Error); ok && pe.Kind != ErrUnmappedPage {
		bits |= 0x0001 // present: the page/frame exists but access was denied
	}
	if write {
		bits |= 0x0002
	}
	if user {
		bits |= 0x0004
	}
	if ifetch {
		bits |= 0x0010
	}
	return uint32(bits)
}

// StoreBufferEmpty reports whether the pending store buffer has drained
// (part of the simulator's termination predicate, spec §5).
func (m *Manager) StoreBufferEmpty() bool {
	return len(m.stores) == 0
}

// Read copies length bytes starting at vaddr into dst, iterating
// frame-by-frame across page boundaries. Returns the number of bytes
// actually read; a partial final page ends the mapped region without an
// error (spec §4.2 "Cross-page access"). callerPL is the requesting
// ring.
func (m *Manager) Read(vaddr uint64, dst []byte, callerPL uint8) (int, error) {
	return m.accessCrossPage(vaddr, dst, callerPL, RWXRead, false)
}

// Write copies bytes from src into memory starting at vaddr, iterating
// frame-by-frame across page boundaries, and returns the count actually
// written.
func (m *Manager) Write(vaddr uint64, src []byte, callerPL uint8) (int, error) {
	return m.accessCrossPage(vaddr, src, callerPL, RWXWrite, true)
}

func (m *Manager) accessCrossPage(vaddr uint64, buf []byte, callerPL uint8, need RWX, write bool) (int, error) {
	done := 0
	for done < len(buf) {
		paddr, err := m.translate(vaddr+uint64(done), need, callerPL)
		if err != nil {
			if done > 0 {
				return done, nil
			}
			return 0, err
		}
		host, err := m.resolveHost(paddr, need, callerPL)
		if err != nil {
			if done > 0 {
				return done, nil
			}
			return 0, err
		}
		chunk := len(buf) - done
		wasPartialFrame := chunk > len(host)
		if wasPartialFrame {
			chunk = len(host)
		}
		if chunk == 0 {
			return done, nil
		}
		if write {
			copy(host[:chunk], buf[done:done+chunk])
		} else {
			copy(buf[done:done+chunk], host[:chunk])
		}
		done += chunk
		if wasPartialFrame {
			// a partial final frame ends the mapped region without error
			return done, nil
		}
	}
	return done, nil
}

// IsBusy reports whether any pending store's range intersects the query
// range [vaddr, vaddr+length).
func (m *Manager) IsBusy(vaddr, length uint64) bool {
	for i := range m.stores {
		if m.stores[i].ref.Overlaps(vaddr, length) {
			return true
		}
	}
	return false
}

// IsAlias reports whether two vaddr ranges project to any shared physical
// byte. If both fall within the same virtual page the offsets are
// compared directly; otherwise each is translated page-by-page and the
// projected physical ranges are compared. Unmapped pages yield "no
// alias".
func (m *Manager) IsAlias(a uint64, la uint64, b uint64, lb uint64) bool {
	if pageBase(a) == pageBase(b) && pageBase(a+la-1) == pageBase(a) && pageBase(b+lb-1) == pageBase(b) {
		return rangesOverlap(a, la, b, lb)
	}
	aPhys, aOK := m.projectRange(a, la)
	bPhys, bOK := m.projectRange(b, lb)
	if !aOK || !bOK {
		return false
	}
	for _, pa := range aPhys {
		for _, pb := range bPhys {
			if rangesOverlap(pa.base, pa.len, pb.base, pb.len) {
				return true
			}
		}
	}
	return false
}

type physRange struct {
	base, len uint64
}

// projectRange translates a vaddr range page-by-page into a list of
// physical sub-ranges, one per page touched. Returns ok=false if any
// touched page is unmapped.
func (m *Manager) projectRange(vaddr, length uint64) ([]physRange, bool) {
	var out []physRange
	remaining := length
	addr := vaddr
	for remaining > 0 {
		pte, ok := m.pages[pageBase(addr)]
		if !ok || !pte.Present {
			return nil, false
		}
		offset := pageOffset(addr)
		chunk := PageSize - offset
		if chunk > remaining {
			chunk = remaining
		}
		out = append(out, physRange{base: pte.Frame*PageSize + offset, len: chunk})
		addr += chunk
		remaining -= chunk
	}
	return out, true
}

// FindOverlap is the self-modifying-code detection primitive: it reports
// the first address in addrs whose containing byte range overlaps
// [vaddr, vaddr+length), used by commit to arm a refetch (spec §4.8 step
// 8, §1 item 2).
func FindOverlap(vaddr, length uint64, addrs []uint64, instrLen uint64) (uint64, bool) {
	for _, a := range addrs {
		if rangesOverlap(vaddr, length, a, instrLen) {
			return a, true
		}
	}
	return 0, false
}

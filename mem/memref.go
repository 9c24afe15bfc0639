// Package mem implements the two-level virtual-memory subsystem: page and
// frame maps, address translation with protection checks, the pending
// store/load buffers that delay memory effects to their commit-derived
// ready cycle, alias detection, and self-modifying-code detection (spec
// §4.2).
package mem

// Mode classifies what a memory reference is for. Branch memory
// references additionally encode taken/not-taken via Size == ModeNotTaken
// (spec §3).
type Mode uint8

// Memory-reference modes.
const (
	ModeInvalid Mode = iota
	ModeRead
	ModeWrite
	ModeBranch
	ModeRel
)

// ReadyState tracks a memory reference's progress through the load/store
// pipeline.
type ReadyState uint8

// Ready states.
const (
	Unavail ReadyState = iota
	ExReady            // address computed, ready to submit to the manager
	InExec             // submitted, awaiting the manager's latency
	ValReady           // data available / store committed
)

// NotTakenSize is the sentinel Size value a branch memory reference uses
// to mean "not taken", preserving the sequential successor address
// instead of a real operand size (spec §3).
const NotTakenSize = ^uint64(0)

// Ref is a memory reference: the shared record threaded through the LQ,
// pending store/load buffers, and the ROB's per-entry memory-reference
// descriptor.
type Ref struct {
	VAddr uint64
	Size  uint64
	Mode  Mode
	Ready ReadyState

	// Data is the data-buffer pointer: for a store, bytes to write; for a
	// load, bytes read back. For a resolved branch, Data[0:8] holds the
	// little-endian resolved target address.
	Data []byte

	// Taken records a resolved branch's direction; valid once Mode is
	// ModeBranch and Ready is ValReady.
	Taken bool
}

// Target returns the resolved branch target stashed in Data.
func (r *Ref) Target() uint64 {
	if len(r.Data) < 8 {
		return 0
	}
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(r.Data[i])
	}
	return v
}

// SetTarget stashes a resolved branch target into Data.
func (r *Ref) SetTarget(addr uint64) {
	if len(r.Data) < 8 {
		r.Data = make([]byte, 8)
	}
	for i := 0; i < 8; i++ {
		r.Data[i] = byte(addr >> (8 * i))
	}
}

// Overlaps reports whether [r.VAddr, r.VAddr+r.Size) intersects
// [vaddr, vaddr+size).
func (r *Ref) Overlaps(vaddr, size uint64) bool {
	return rangesOverlap(r.VAddr, r.Size, vaddr, size)
}

func rangesOverlap(a uint64, alen uint64, b uint64, blen uint64) bool {
	if alen == 0 || blen == 0 {
		return false
	}
	aEnd := a + alen
	bEnd := b + blen
	return a < bEnd && b < aEnd
}

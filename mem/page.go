package mem

import "fmt"

// PageSize and FrameSize are both 4 KiB per spec §6.3.
const PageSize = 4096

// RWX is a permission bitmask on a page or frame.
type RWX uint8

// Permission bits.
const (
	RWXRead  RWX = 1 << 0
	RWXWrite RWX = 1 << 1
	RWXExec  RWX = 1 << 2
)

// PTE is a page-table entry: {frame-number, present, protection-level,
// rwx-mask} (spec §3).
type PTE struct {
	Frame   uint64
	Present bool
	PL      uint8
	RWX     RWX
}

// Frame is a physical page frame: {host-buffer pointer, bytes-used,
// protection-level, rwx-mask, external-ownership flag, name} (spec §3).
type Frame struct {
	Host      []byte
	BytesUsed int
	PL        uint8
	RWX       RWX
	External  bool
	Name      string
}

// Error is the closed set of implementation-level memory-manager faults
// (spec §4.2 "Exception classes surfaced").
type Error struct {
	Kind string
	Addr uint64
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s at 0x%x", e.Kind, e.Addr)
}

// Error kinds.
const (
	ErrUnmappedPage      = "unmapped page"
	ErrProtectionMismatch = "protection-bit mismatch"
	ErrRWXMismatch       = "access-rwx mismatch"
	ErrInvalidAddress    = "invalid address"
	ErrInvalidPageAddr   = "invalid page address"
	ErrAllocFailure      = "allocation failure"
	ErrAlignment         = "alignment violation"
)

func pageBase(vaddr uint64) uint64 { return vaddr &^ (PageSize - 1) }

func pageOffset(vaddr uint64) uint64 { return vaddr & (PageSize - 1) }

// MapFrame allocates a zero-initialized 4 KiB host buffer and records a
// frame at physical address paddr.
func (m *Manager) MapFrame(paddr uint64, pl uint8, rwx RWX, name string) error {
	if paddr%PageSize != 0 {
		return &Error{Kind: ErrInvalidPageAddr, Addr: paddr}
	}
	m.frames[paddr] = &Frame{
		Host:      make([]byte, PageSize),
		BytesUsed: PageSize,
		PL:        pl,
		RWX:       rwx,
		Name:      name,
	}
	return nil
}

// MMapFrames maps consecutive frames onto an externally owned host
// region starting at hostPtr, covering len bytes from paddr. The final
// frame may be partial; BytesUsed gates bounds checks for it.
func (m *Manager) MMapFrames(paddr uint64, host []byte, length int, pl uint8, rwx RWX, name string) error {
	if paddr%PageSize != 0 {
		return &Error{Kind: ErrInvalidPageAddr, Addr: paddr}
	}
	if length <= 0 {
		return &Error{Kind: ErrAllocFailure, Addr: paddr}
	}
	offset := 0
	addr := paddr
	for offset < length {
		remaining := length - offset
		used := PageSize
		if remaining < PageSize {
			used = remaining
		}
		m.frames[addr] = &Frame{
			Host:      host[offset : offset+used],
			BytesUsed: used,
			PL:        pl,
			RWX:       rwx,
			External:  true,
			Name:      name,
		}
		offset += used
		addr += PageSize
	}
	return nil
}

// MapPage installs a page-table entry mapping vaddr's page to paddr's
// frame.
func (m *Manager) MapPage(vaddr, paddr uint64, pl uint8, rwx RWX) error {
	if vaddr%PageSize != 0 {
		return &Error{Kind: ErrInvalidAddress, Addr: vaddr}
	}
	frameNum := paddr / PageSize
	m.pages[pageBase(vaddr)] = PTE{Frame: frameNum, Present: true, PL: pl, RWX: rwx}
	return nil
}

// translate looks up the PTE for vaddr, checks rwx and protection level
// (caller's ring must be <= the page's pl), and returns the physical
// address (frame-number<<12 | offset).
func (m *Manager) translate(vaddr uint64, need RWX, callerPL uint8) (uint64, error) {
	pte, ok := m.pages[pageBase(vaddr)]
	if !ok || !pte.Present {
		return 0, &Error{Kind: ErrUnmappedPage, Addr: vaddr}
	}
	if callerPL > pte.PL {
		return 0, &Error{Kind: ErrProtectionMismatch, Addr: vaddr}
	}
	if pte.RWX&need != need {
		return 0, &Error{Kind: ErrRWXMismatch, Addr: vaddr}
	}
	return pte.Frame*PageSize + pageOffset(vaddr), nil
}

// resolveHost looks up the frame for paddr, checks rwx/pl, checks the
// offset against bytes-used, and returns a slice into the frame's host
// buffer starting at the requested offset.
func (m *Manager) resolveHost(paddr uint64, need RWX, callerPL uint8) ([]byte, error) {
	base := pageBase(paddr)
	frame, ok := m.frames[base]
	if !ok {
		return nil, &Error{Kind: ErrUnmappedPage, Addr: paddr}
	}
	if callerPL > frame.PL {
		return nil, &Error{Kind: ErrProtectionMismatch, Addr: paddr}
	}
	if frame.RWX&need != need {
		return nil, &Error{Kind: ErrRWXMismatch, Addr: paddr}
	}
	offset := paddr - base
	if offset >= uint64(frame.BytesUsed) {
		return nil, &Error{Kind: ErrInvalidAddress, Addr: paddr}
	}
	return frame.Host[offset:frame.BytesUsed], nil
}

package ooo

import (
	"github.com/archlab/uopsim/mem"
	"github.com/archlab/uopsim/uop"
)

// ExecStatus is a ROB entry's execution status (spec §3).
type ExecStatus uint8

// Execution statuses.
const (
	StatusWaiting ExecStatus = iota
	StatusRunning
)

// destRef names one renamed destination register.
type destRef struct {
	Valid bool
	Phys  uint8
}

// Entry is a ROB entry: the post-rename uop, its memory-reference
// descriptor, commit readiness, exception state, and renamed
// destinations/condition ids (spec §3).
type Entry struct {
	ID     uint64 // monotonic allocation order; doubles as the stable
	       // generation+slot reference spec §9 calls for, since IDs are
	       // never reused and a flushed entry's ID simply stops resolving.
	Uop    uop.Uop
	MemRef mem.Ref
	CReady uint64 // 0 means not ready
	Except uop.Word
	Status ExecStatus

	// PFErrCode is the raw page-fault error-code payload the memory
	// manager writes through the load's exception slot; read back once
	// MemRef.Ready reaches ValReady with no data (spec §4.2 "get").
	PFErrCode uint32

	Dest  destRef // renamed rd
	Dest2 destRef // renamed rc, when RcDest is set
	CCUse destRef // bound "used" condition id
	CCSet destRef // allocated "set" condition id

	PC      uint64 // macro-instruction address this uop belongs to
	SeqAddr uint64 // sequential successor of that macro-instruction
}

// Rob is the reorder buffer: an ordered arena of Entry, enqueued in
// rename/commit order (spec §3 "ROB enqueue order is commit order").
type Rob struct {
	entries  []*Entry
	capacity int
	nextID   uint64
}

// newRob creates an empty ROB with the given capacity.
func newRob(capacity int) *Rob {
	return &Rob{capacity: capacity}
}

// Len returns the number of in-flight ROB entries.
func (r *Rob) Len() int { return len(r.entries) }

// Full reports whether the ROB is at capacity.
func (r *Rob) Full() bool { return len(r.entries) >= r.capacity }

// Enqueue appends a new entry, assigning it the next monotonic ID.
func (r *Rob) Enqueue(e *Entry) {
	e.ID = r.nextID
	r.nextID++
	r.entries = append(r.entries, e)
}

// At returns the i-th ROB entry from the head (0 = oldest in-flight).
func (r *Rob) At(i int) *Entry {
	if i < 0 || i >= len(r.entries) {
		return nil
	}
	return r.entries[i]
}

// Head returns the oldest in-flight entry, or nil if the ROB is empty.
func (r *Rob) Head() *Entry {
	return r.At(0)
}

// PopHead removes the oldest in-flight entry.
func (r *Rob) PopHead() {
	if len(r.entries) == 0 {
		return
	}
	r.entries = r.entries[1:]
}

// Find looks up a ROB entry by its stable ID. Returns nil if the entry
// has committed or been flushed — this is the uniform invalidation spec
// §9 calls for: a stale LQ/FU reference to a flushed entry simply misses.
func (r *Rob) Find(id uint64) *Entry {
	for _, e := range r.entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// Clear discards every in-flight entry (spec §4.9 flush).
func (r *Rob) Clear() {
	r.entries = nil
}

// Entries exposes the live entries in commit order, oldest first, for
// issue's scan window and for flush's register-release pass.
func (r *Rob) Entries() []*Entry {
	return r.entries
}

package ooo

// lqEntry is one load-queue slot: a reference to the owning ROB entry
// and the cycle at which its memory reference becomes eligible for
// address computation (spec §4.5 "imm_delay" accounting).
type lqEntry struct {
	RobID   uint64
	ReadyAt uint64
}

// Lq is the load queue: bounded capacity, FIFO order, one entry per
// in-flight load (spec §3 "every in-flight load has exactly one LQ
// entry").
type Lq struct {
	capacity int
	entries  []lqEntry
}

// newLq creates an empty load queue with the given capacity.
func newLq(capacity int) *Lq {
	return &Lq{capacity: capacity}
}

// Len returns the number of outstanding loads.
func (l *Lq) Len() int { return len(l.entries) }

// Full reports whether the load queue is at capacity (spec §4.5
// "stall if LQ is full").
func (l *Lq) Full() bool { return len(l.entries) >= l.capacity }

// Enqueue records a new outstanding load for the given ROB entry,
// eligible for address computation at readyAt.
func (l *Lq) Enqueue(robID uint64, readyAt uint64) {
	l.entries = append(l.entries, lqEntry{RobID: robID, ReadyAt: readyAt})
}

// Head returns the oldest outstanding load, or ok=false if empty.
func (l *Lq) Head() (lqEntry, bool) {
	if len(l.entries) == 0 {
		return lqEntry{}, false
	}
	return l.entries[0], true
}

// PopHead removes the oldest outstanding load (spec §4.8 step 7 "pop
// the LQ head").
func (l *Lq) PopHead() {
	if len(l.entries) == 0 {
		return
	}
	l.entries = l.entries[1:]
}

// Entries exposes the live entries, oldest first, for execute's scan
// over exready/valready memory references.
func (l *Lq) Entries() []lqEntry {
	return l.entries
}

// Clear discards every outstanding load (spec §4.9 flush).
func (l *Lq) Clear() {
	l.entries = nil
}

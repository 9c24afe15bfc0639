package ooo

// CondTracker manages the condition-register free list and the
// separately ordered last-used FIFO (spec §3: "condition registers have
// a free list and a separately ordered last-used sequence"). Physical
// cc 0 is reserved, mirroring the GP/FP/VR classes' hard-wired zero.
type CondTracker struct {
	free     []uint8
	lastUsed []uint8
	capacity int
}

// newCondTracker builds a CondTracker over n physical condition
// registers, all but 0 initially free.
func newCondTracker(n int) *CondTracker {
	t := &CondTracker{capacity: n}
	for p := 1; p < n; p++ {
		t.free = append(t.free, uint8(p))
	}
	return t
}

// FreeCount returns the number of available physical condition
// registers.
func (t *CondTracker) FreeCount() int { return len(t.free) }

// Allocate pops a fresh physical cc id and pushes it to the tail of the
// last-used FIFO (spec §4.5 "set_cond: pop a fresh cc... push to the
// last-used FIFO"). Callers must check FreeCount first.
func (t *CondTracker) Allocate() uint8 {
	p := t.free[0]
	t.free = t.free[1:]
	t.lastUsed = append(t.lastUsed, p)
	return p
}

// Tail returns the most recently set cc (the last-used FIFO's tail),
// the binding target for a uop with use_cond set (spec §4.5).
func (t *CondTracker) Tail() (uint8, bool) {
	if len(t.lastUsed) == 0 {
		return 0, false
	}
	return t.lastUsed[len(t.lastUsed)-1], true
}

// Head returns the oldest outstanding set cc, for commit-time
// retirement (spec §4.8 step 6).
func (t *CondTracker) Head() (uint8, bool) {
	if len(t.lastUsed) == 0 {
		return 0, false
	}
	return t.lastUsed[0], true
}

// RetireHead pops the last-used FIFO head and returns it to the free
// list.
func (t *CondTracker) RetireHead() (uint8, bool) {
	p, ok := t.Head()
	if !ok {
		return 0, false
	}
	t.lastUsed = t.lastUsed[1:]
	t.free = append(t.free, p)
	return p, true
}

// Clear resets the free list and last-used FIFO (spec §4.9 "reset the
// condition-register free list and last-used FIFO").
func (t *CondTracker) Clear() {
	t.free = nil
	t.lastUsed = nil
	for p := 1; p < t.capacity; p++ {
		t.free = append(t.free, uint8(p))
	}
}

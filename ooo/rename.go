package ooo

// RenameTable holds the three coexisting per-class maps described in
// spec §3: forward allocated (A), forward committed (C), and reverse
// (R), plus the class's free list of available physical register ids.
// Physical register 0 is reserved as the hard-wired architectural zero
// and never appears in the free list or either map.
type RenameTable struct {
	A []uint8 // arch -> phys, latest in-flight mapping
	C []uint8 // arch -> phys, last committed mapping (flush recovery point)
	R []uint8 // phys -> arch, 0 means unmapped

	free []uint8 // ordered sequence of available physical ids
}

// newRenameTable builds a RenameTable for archCount architectural
// registers and prfCount physical registers, with every non-zero
// physical register initially free.
func newRenameTable(archCount, prfCount int) *RenameTable {
	t := &RenameTable{
		A: make([]uint8, archCount),
		C: make([]uint8, archCount),
		R: make([]uint8, prfCount),
	}
	for p := 1; p < prfCount; p++ {
		t.free = append(t.free, uint8(p))
	}
	return t
}

// FreeCount returns the number of available physical registers.
func (t *RenameTable) FreeCount() int { return len(t.free) }

// Allocate pops a fresh physical register id from the free list. Callers
// must check FreeCount first; Allocate panics on an empty free list since
// rename's resource check (spec §4.5) must prevent this from happening.
func (t *RenameTable) Allocate() uint8 {
	p := t.free[0]
	t.free = t.free[1:]
	return p
}

// Release returns a physical register to the free list (spec §4.8 step
// 5, "return the physical register(s) to the free list").
func (t *RenameTable) Release(p uint8) {
	t.free = append(t.free, p)
}

// Flush resets the forward-allocated table to the committed snapshot and
// returns every physical register that was reverse-mapped to the free
// list (spec §4.9). Round-trip law: after Flush, A == C for every class.
func (t *RenameTable) Flush() {
	for p := range t.R {
		if t.R[p] != 0 {
			t.free = append(t.free, uint8(p))
			t.R[p] = 0
		}
	}
	copy(t.A, t.C)
}

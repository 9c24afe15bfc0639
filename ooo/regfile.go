// Package ooo implements the out-of-order backend: the architectural and
// physical register files, the per-class rename tables and free lists,
// the reorder buffer, load queue, reservation-station ports and
// functional units, and the decode/rename/issue/execute/commit/flush
// pipeline stages (spec §3, §4.3–§4.9).
package ooo

import "github.com/archlab/uopsim/uop"

// Capacity minimums from spec §3.
const (
	ArfGPCount   = 36
	ArfFPCount   = 16
	ArfVRCount   = 32
	PrfGPCount   = 180
	PrfFPCount   = 64
	PrfVRCount   = 128
	PrfCondCount = 32
)

// FPValue is a 16-byte FP register payload.
type FPValue [2]uint64

// VRValue is a 64-byte vector register payload.
type VRValue [8]uint64

// ARF is the architectural register file: four disjoint files (GP, FP,
// VR, condition) plus the instruction pointer. Register 0 of each
// indexed file is hard-wired zero: never writable, never renamed (spec
// §3 invariant "No writes to register 0").
type ARF struct {
	GP    [ArfGPCount]uint64
	FP    [ArfFPCount]FPValue
	VR    [ArfVRCount]VRValue
	Cond  uop.Flags
	IP    uint64
}

// ReadGP reads architectural GP register r; r == 0 always reads 0.
func (a *ARF) ReadGP(r uint8) uint64 {
	if r == 0 || int(r) >= len(a.GP) {
		return 0
	}
	return a.GP[r]
}

// WriteGP writes architectural GP register r; writes to r == 0 are
// dropped.
func (a *ARF) WriteGP(r uint8, v uint64) {
	if r == 0 || int(r) >= len(a.GP) {
		return
	}
	a.GP[r] = v
}

// ReadFP reads architectural FP register r.
func (a *ARF) ReadFP(r uint8) FPValue {
	if r == 0 || int(r) >= len(a.FP) {
		return FPValue{}
	}
	return a.FP[r]
}

// WriteFP writes architectural FP register r.
func (a *ARF) WriteFP(r uint8, v FPValue) {
	if r == 0 || int(r) >= len(a.FP) {
		return
	}
	a.FP[r] = v
}

// ReadVR reads architectural vector register r.
func (a *ARF) ReadVR(r uint8) VRValue {
	if r == 0 || int(r) >= len(a.VR) {
		return VRValue{}
	}
	return a.VR[r]
}

// WriteVR writes architectural vector register r.
func (a *ARF) WriteVR(r uint8, v VRValue) {
	if r == 0 || int(r) >= len(a.VR) {
		return
	}
	a.VR[r] = v
}

// classCount returns the architectural register count for a class, used
// by decode's bounds check (spec §4.4).
func classCount(c uop.Class) int {
	switch c {
	case uop.ClassGP:
		return ArfGPCount
	case uop.ClassFP:
		return ArfFPCount
	case uop.ClassVR:
		return ArfVRCount
	default:
		return 0
	}
}

// PRF is the physical register file: per class, strictly larger than the
// ARF, holding in-flight speculative values (spec §3).
type PRF struct {
	GP   [PrfGPCount]uint64
	FP   [PrfFPCount]FPValue
	VR   [PrfVRCount]VRValue
	Cond [PrfCondCount]uop.Flags
}

func prfCount(c uop.Class) int {
	switch c {
	case uop.ClassGP:
		return PrfGPCount
	case uop.ClassFP:
		return PrfFPCount
	case uop.ClassVR:
		return PrfVRCount
	default:
		return 0
	}
}

package x64

import "github.com/archlab/uopsim/uop"

// gpReg maps an x86 GP register number (0-15, REX-extended) to an
// architectural register index. Index 0 is reserved by the rename
// tables (ooo.RenameTable) as "no register", so x86 register n lives at
// architectural index n+1 (spec §4.11 "register mapping").
func gpReg(n byte) uint8 { return n + 1 }

// tempPool is the ring buffer of scratch architectural registers the
// cracker uses to hold an effective address or an intermediate value
// when splitting a memory operand into lda+ld/st (spec §4.11's
// "temp-register ring-buffer pool"). Indices 17..35 sit above the 16
// x86 GP registers (1..16) and below ArfGPCount (36).
type tempPool struct {
	next uint8
}

const (
	tempFirst = 17
	tempLast  = 35
)

func (t *tempPool) next8() uint8 {
	r := t.next
	if r == 0 {
		r = tempFirst
	}
	t.next = r + 1
	if t.next > tempLast {
		t.next = tempFirst
	}
	return r
}

// opSizeOf returns an instruction's operand size in bytes, honoring
// REX.W (64-bit) and the 0x66 prefix (16-bit) over the default 32-bit.
func opSizeOf(p *Partial) int {
	if p.rexW() {
		return 8
	}
	if p.opSize {
		return 2
	}
	return 4
}

// x86CondToUop maps the x86 jcc condition nibble to a uop.Cond using
// this simulator's own polarity for the carry flag (set on unsigned
// borrow, the natural convention for a subtract-based cmp). JBE/JA (cc
// 6/7) and the parity-flag forms (cc A/B) have no matching single-flag
// uop.Cond test under that polarity and are reported unsupported,
// which the cracker turns into a UD rather than silently miscomparing.
func x86CondToUop(cc byte) (uop.Cond, bool) {
	switch cc {
	case 0x0:
		return uop.CondVS, true // O
	case 0x1:
		return uop.CondVC, true // NO
	case 0x2:
		return uop.CondCS, true // B/C
	case 0x3:
		return uop.CondCC, true // AE/NB
	case 0x4:
		return uop.CondEQ, true // E/Z
	case 0x5:
		return uop.CondNE, true // NE/NZ
	case 0x8:
		return uop.CondMI, true // S
	case 0x9:
		return uop.CondPL, true // NS
	case 0xC:
		return uop.CondLT, true // L
	case 0xD:
		return uop.CondGE, true // GE
	case 0xE:
		return uop.CondLE, true // LE
	case 0xF:
		return uop.CondGT, true // G
	}
	return 0, false
}

// arithMnemonic maps the one-byte arithmetic table's row to a uop
// mnemonic (spec §4.11 "row = opcode>>3").
func arithMnemonic(row byte) (uop.Mnemonic, bool) {
	switch row {
	case 0:
		return uop.MnAdd, true
	case 1:
		return uop.MnOr, true
	case 4:
		return uop.MnAnd, true
	case 5:
		return uop.MnSub, true
	case 6:
		return uop.MnXor, true
	case 7:
		return uop.MnCmp, true
	}
	return 0, false // adc/sbb (rows 2,3): no carry-in modeled, UD
}

// group1Mnemonic maps group 1's ModR/M.reg field (0x80/0x81/0x83) to a
// uop mnemonic.
func group1Mnemonic(reg byte) (uop.Mnemonic, bool) {
	switch reg & 0x7 {
	case 0:
		return uop.MnAdd, true
	case 1:
		return uop.MnOr, true
	case 4:
		return uop.MnAnd, true
	case 5:
		return uop.MnSub, true
	case 6:
		return uop.MnXor, true
	case 7:
		return uop.MnCmp, true
	}
	return 0, false
}

// shiftMnemonic maps group 2/2a's ModR/M.reg field to a uop mnemonic.
func shiftMnemonic(reg byte) (uop.Mnemonic, bool) {
	switch reg & 0x7 {
	case 4, 6: // shl (6 is the undocumented sal alias)
		return uop.MnShl, true
	case 5:
		return uop.MnShr, true
	case 7:
		return uop.MnSar, true
	}
	return 0, false // rol/ror/rcl/rcr (reg 0-3): no carry-in/rotate modeled, UD
}

// ldMnemonic/stMnemonic pick the sized load/store mnemonic.
func ldMnemonic(size int) uop.Mnemonic {
	switch size {
	case 1:
		return uop.MnLd8
	case 2:
		return uop.MnLd16
	case 4:
		return uop.MnLd32
	default:
		return uop.MnLd64
	}
}

func stMnemonic(size int) uop.Mnemonic {
	switch size {
	case 1:
		return uop.MnSt8
	case 2:
		return uop.MnSt16
	case 4:
		return uop.MnSt32
	default:
		return uop.MnSt64
	}
}

func sizeCtrl(size int) uint16 { return uop.WithOpSize(0, size) }

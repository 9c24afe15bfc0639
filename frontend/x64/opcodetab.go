package x64

// immKind classifies an instruction's trailing immediate, independent
// of ModR/M (spec §4.11's cracker needs this before ModR/M has been
// seen, to size the predecoder's stImm transition).
type immKind uint8

const (
	immNone immKind = iota
	imm8           // sign-extended byte (Ib)
	immZ           // 16-bit under the 0x66 prefix, else 32-bit (Iz)
	imm32          // always 32 bits, e.g. a near rel32 (Id)
)

// opcodeSpec is everything the predecoder needs to size an instruction
// and everything the decoder needs to classify it, keyed by opcode
// byte (and the 0x0F escape).
type opcodeSpec struct {
	hasModRM bool
	imm      immKind
	group    byte // disambiguates opcodes that share a byte via ModR/M.reg
}

func (s opcodeSpec) immLen(opSizePrefix, rexW bool) int {
	switch s.imm {
	case imm8:
		return 1
	case immZ:
		if opSizePrefix {
			return 2
		}
		return 4
	case imm32:
		return 4
	}
	return 0
}

// groupArith, groupShift, etc. tag which sub-table a ModR/M.reg field
// selects once decode.go has the full instruction.
const (
	groupNone   = 0
	groupArith  = 1 // 0x80/0x81/0x83: reg selects add/or/adc/sbb/and/sub/xor/cmp
	groupMovImm = 2 // 0xC6/0xC7: reg must be 0 (mov)
	groupIncDec = 3 // 0xFE/0xFF: reg selects inc/dec/call/jmp/push
	groupShift  = 4 // 0xC0/0xC1/0xD0-0xD3: reg selects rol/ror/rcl/rcr/shl/shr/shl/sar
	groupUnary  = 5 // 0xF6/0xF7: reg selects test/test/not/neg/mul/imul/div/idiv
	groupPop    = 6 // 0x8F: reg must be 0 (pop)
)

// arithRowOps is the one-byte-opcode-table row ordering for 0x00-0x3D's
// eight arithmetic operations, selected by opcode>>3 (spec §4.11).
var arithRowOps = [8]string{"add", "or", "adc", "sbb", "and", "sub", "xor", "cmp"}

// lookupOpcode returns the shape of the instruction starting at this
// opcode byte. escape is true when a 0x0F byte preceded it. Unknown
// opcodes return ok=false, which the predecoder turns into a UD.
func lookupOpcode(escape bool, b byte) (opcodeSpec, bool) {
	if escape {
		return lookupTwoByteOpcode(b)
	}
	return lookupOneByteOpcode(b)
}

func lookupOneByteOpcode(b byte) (opcodeSpec, bool) {
	switch {
	// 0x00-0x3D: eight arithmetic ops x six operand forms (Eb,Gb /
	// Ev,Gv / Gb,Eb / Gv,Ev / AL,Ib / eAX,Iz), row = b>>3, col = b&7.
	case b <= 0x3D && b&0x7 <= 5:
		col := b & 0x7
		switch col {
		case 0, 1, 2, 3:
			return opcodeSpec{hasModRM: true}, true
		case 4:
			return opcodeSpec{hasModRM: false, imm: imm8}, true
		case 5:
			return opcodeSpec{hasModRM: false, imm: immZ}, true
		}
	}

	switch b {
	case 0x50, 0x51, 0x52, 0x53, 0x54, 0x55, 0x56, 0x57: // push r64
		return opcodeSpec{}, true
	case 0x58, 0x59, 0x5A, 0x5B, 0x5C, 0x5D, 0x5E, 0x5F: // pop r64
		return opcodeSpec{}, true
	case 0x68: // push imm32
		return opcodeSpec{imm: imm32}, true
	case 0x6A: // push imm8
		return opcodeSpec{imm: imm8}, true
	case 0x70, 0x71, 0x72, 0x73, 0x74, 0x75, 0x76, 0x77,
		0x78, 0x79, 0x7A, 0x7B, 0x7C, 0x7D, 0x7E, 0x7F: // jcc rel8
		return opcodeSpec{imm: imm8}, true
	case 0x80, 0x81, 0x83: // group 1: arith r/m, imm
		kind := imm8
		if b == 0x81 {
			kind = immZ
		}
		return opcodeSpec{hasModRM: true, imm: kind, group: groupArith}, true
	case 0x84, 0x85: // test r/m, r
		return opcodeSpec{hasModRM: true}, true
	case 0x86, 0x87: // xchg r/m, r
		return opcodeSpec{hasModRM: true}, true
	case 0x88, 0x89, 0x8A, 0x8B: // mov r/m, r and r, r/m
		return opcodeSpec{hasModRM: true}, true
	case 0x8D: // lea
		return opcodeSpec{hasModRM: true}, true
	case 0x8F: // group 1a: pop r/m (reg must be 0)
		return opcodeSpec{hasModRM: true, group: groupPop}, true
	case 0x90: // nop
		return opcodeSpec{}, true
	case 0x91, 0x92, 0x93, 0x94, 0x95, 0x96, 0x97: // xchg eAX/rAX, r
		return opcodeSpec{}, true
	case 0xB0, 0xB1, 0xB2, 0xB3, 0xB4, 0xB5, 0xB6, 0xB7: // mov r8, imm8
		return opcodeSpec{imm: imm8}, true
	case 0xB8, 0xB9, 0xBA, 0xBB, 0xBC, 0xBD, 0xBE, 0xBF: // mov r, imm32/64
		return opcodeSpec{imm: imm32}, true
	case 0xC0, 0xC1: // group 2: shift r/m, imm8
		return opcodeSpec{hasModRM: true, imm: imm8, group: groupShift}, true
	case 0xC3: // ret
		return opcodeSpec{}, true
	case 0xC6, 0xC7: // group 11: mov r/m, imm
		kind := imm8
		if b == 0xC7 {
			kind = immZ
		}
		return opcodeSpec{hasModRM: true, imm: kind, group: groupMovImm}, true
	case 0xCC: // int3
		return opcodeSpec{}, true
	case 0xCD: // intN
		return opcodeSpec{imm: imm8}, true
	case 0xD0, 0xD1: // group 2a: shift r/m, 1
		return opcodeSpec{hasModRM: true, group: groupShift}, true
	case 0xD2, 0xD3: // group 2a: shift r/m, cl
		return opcodeSpec{hasModRM: true, group: groupShift}, true
	case 0xE8: // call rel32
		return opcodeSpec{imm: imm32}, true
	case 0xE9: // jmp rel32
		return opcodeSpec{imm: imm32}, true
	case 0xEB: // jmp rel8
		return opcodeSpec{imm: imm8}, true
	case 0xF4: // hlt
		return opcodeSpec{}, true
	case 0xF6, 0xF7: // group 3: test/not/neg/mul/imul/div/idiv r/m
		// reg 0/1 (test) carries an immediate the others don't; that
		// can't be sized until ModR/M's reg field is known, so
		// feedModRM patches immLen in once it's read.
		return opcodeSpec{hasModRM: true, group: groupUnary}, true
	case 0xF8, 0xF9, 0xFA, 0xFB, 0xFC, 0xFD: // clc/stc/cli/sti/cld/std
		return opcodeSpec{}, true
	case 0xFE, 0xFF: // group 4/5: inc/dec/call/jmp/push r/m
		return opcodeSpec{hasModRM: true, group: groupIncDec}, true
	}
	return opcodeSpec{}, false
}

func lookupTwoByteOpcode(b byte) (opcodeSpec, bool) {
	switch {
	case b >= 0x40 && b <= 0x4F: // cmovcc (0F 4x)
		return opcodeSpec{hasModRM: true}, true
	case b >= 0x80 && b <= 0x8F: // jcc rel32 (0F 8x)
		return opcodeSpec{imm: imm32}, true
	}
	switch b {
	case 0x1F: // multi-byte nop (0F 1F /0)
		return opcodeSpec{hasModRM: true}, true
	case 0x31: // rdtsc
		return opcodeSpec{}, true
	case 0xA0, 0xA1: // push fs / pop fs
		return opcodeSpec{}, true
	case 0xA8, 0xA9: // push gs / pop gs
		return opcodeSpec{}, true
	case 0xAF: // imul r, r/m
		return opcodeSpec{hasModRM: true}, true
	case 0xBE: // movsx r, r/m8
		return opcodeSpec{hasModRM: true}, true
	case 0xBF: // movsx r, r/m16
		return opcodeSpec{hasModRM: true}, true
	}
	return opcodeSpec{}, false
}

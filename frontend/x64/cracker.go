package x64

import "github.com/archlab/uopsim/uop"

// crack turns one fully consumed Partial into the macro-instruction's
// uop bundle. The first and last uops get mop_first/mop_last tagged by
// the caller once the whole bundle is known (spec §4.11). next is the
// address immediately following this instruction, needed for
// RIP-relative addressing and for relative branch targets.
func (f *Frontend) crack(p *Partial, next uint64) ([]uop.Uop, bool) {
	if p.invalid {
		return nil, false
	}

	switch {
	case !p.escape && p.opcode <= 0x3D && p.opcode&0x7 <= 5:
		return f.crackArith(p, next)
	case p.opcode == 0x80 || p.opcode == 0x81 || p.opcode == 0x83:
		return f.crackGroup1(p, next)
	case p.opcode == 0x84 || p.opcode == 0x85:
		return f.crackTest(p, next)
	case p.opcode == 0x86 || p.opcode == 0x87:
		return f.crackXchg(p, next, true)
	case p.opcode >= 0x91 && p.opcode <= 0x97:
		return f.crackXchg(p, next, false)
	case p.opcode == 0x88 || p.opcode == 0x89:
		return f.crackMov(p, next, false)
	case p.opcode == 0x8A || p.opcode == 0x8B:
		return f.crackMov(p, next, true)
	case p.opcode == 0x8D:
		return f.crackLea(p, next)
	case p.opcode == 0x8F:
		return f.crackPopRM(p, next)
	case p.opcode == 0x90:
		return []uop.Uop{uop.New(uop.ClassGP, uop.MnNop, 0, uop.Regs{}, 0)}, true
	case p.opcode == 0xC0 || p.opcode == 0xC1 || p.opcode == 0xD0 || p.opcode == 0xD1 || p.opcode == 0xD2 || p.opcode == 0xD3:
		return f.crackShift(p, next)
	case p.opcode == 0xF6 || p.opcode == 0xF7:
		return f.crackGroup3(p, next)
	case p.opcode == 0xF8 || p.opcode == 0xF9 || p.opcode == 0xFA || p.opcode == 0xFB || p.opcode == 0xFC || p.opcode == 0xFD:
		// clc/stc/cli/sti/cld/std: this simulator's condition register
		// is a FIFO of per-operation snapshots, not a persistent
		// mutable EFLAGS word, and the interrupt/direction flags have
		// no modeled field at all (uop.Flags carries only N/Z/C/V) —
		// decode successfully rather than UD, but as a no-op.
		return []uop.Uop{uop.New(uop.ClassGP, uop.MnNop, 0, uop.Regs{}, 0)}, true
	case p.opcode >= 0xB0 && p.opcode <= 0xB7:
		// 8-bit immediate move: writes only the low byte, preserving
		// bits 8-63, unlike the 32/64-bit forms below.
		rd := gpReg((p.opcode - 0xB0) | p.rexB())
		return []uop.Uop{uop.New(uop.ClassGP, uop.MnMov, uop.CtrlUseImm|sizeCtrl(1), uop.Regs{Rd: rd}, uint64(p.immValue()))}, true
	case p.opcode >= 0xB8 && p.opcode <= 0xBF:
		return []uop.Uop{movImmToReg(gpReg((p.opcode-0xB8)|p.rexB()), p.immValue())}, true
	case p.opcode == 0xC6 || p.opcode == 0xC7:
		return f.crackGroup11(p, next)
	case p.opcode == 0xC3:
		return []uop.Uop{uop.New(uop.ClassCtrl, uop.MnRet, uop.CtrlUseRA, uop.Regs{Ra: spReg}, 0)}, true
	case p.opcode == 0xCC:
		return []uop.Uop{uop.Int(uop.ExcBP, 0)}, true
	case p.opcode == 0xCD:
		// intN: no IDT/vector-table modeled, so the vector just rides
		// along as the exception word's error-code payload (the same
		// "interface hook, not real dispatch" treatment as MnCvt).
		return []uop.Uop{uop.Int(uop.ExcUNSPEC, uint16(uint8(p.immValue())))}, true
	case p.escape && p.opcode >= 0x40 && p.opcode <= 0x4F:
		return f.crackCmovcc(p, next, p.opcode&0xF)
	case p.escape && p.opcode == 0x1F:
		return []uop.Uop{uop.New(uop.ClassGP, uop.MnNop, 0, uop.Regs{}, 0)}, true
	case p.escape && p.opcode == 0x31:
		return []uop.Uop{uop.New(uop.ClassGP, uop.MnRdtsc, uop.CtrlRdResize, uop.Regs{Rd: gpReg(0)}, 0)}, true
	case p.escape && (p.opcode == 0xA0 || p.opcode == 0xA1 || p.opcode == 0xA8 || p.opcode == 0xA9):
		// push/pop fs/gs: segmentation isn't modeled, matching spec's
		// own "GP for unsupported privileged instructions or stubs".
		return []uop.Uop{uop.Int(uop.ExcGP, 0)}, true
	case p.escape && p.opcode == 0xAF:
		return f.crackImul2(p, next)
	case p.escape && p.opcode == 0xBE:
		return f.crackMovsx(p, next, 1)
	case p.escape && p.opcode == 0xBF:
		return f.crackMovsx(p, next, 2)
	case p.opcode == 0xE8:
		target := int64(next) + p.immValue()
		return []uop.Uop{uop.New(uop.ClassCtrl, uop.MnCall, 0, uop.Regs{}, uint64(target-int64(p.Addr)))}, true
	case p.opcode == 0xE9:
		target := int64(next) + p.immValue()
		return []uop.Uop{uop.New(uop.ClassCtrl, uop.MnJmp, 0, uop.Regs{}, uint64(target-int64(p.Addr)))}, true
	case p.opcode == 0xEB:
		target := int64(next) + p.immValue()
		return []uop.Uop{uop.New(uop.ClassCtrl, uop.MnJmp, 0, uop.Regs{}, uint64(target-int64(p.Addr)))}, true
	case p.opcode >= 0x70 && p.opcode <= 0x7F:
		return f.crackJcc(p, next, p.opcode&0xF)
	case p.escape && p.opcode >= 0x80 && p.opcode <= 0x8F:
		return f.crackJcc(p, next, p.opcode&0xF)
	case p.opcode == 0xF4:
		return []uop.Uop{uop.New(uop.ClassCtrl, uop.MnHalt, uop.CtrlMopFirst|uop.CtrlMopLast, uop.Regs{}, 0)}, true
	case p.opcode == 0xFE || p.opcode == 0xFF:
		return f.crackGroup45(p, next)
	case p.opcode >= 0x50 && p.opcode <= 0x57:
		return f.crackPushPop(p, true)
	case p.opcode >= 0x58 && p.opcode <= 0x5F:
		return f.crackPushPop(p, false)
	}
	return nil, false
}

// spReg is the architectural register x86 treats as the stack pointer
// (rsp, x86 encoding 4).
const spReg = 5 // gpReg(4)

func movImmToReg(rd uint8, imm int64) uop.Uop {
	return uop.New(uop.ClassGP, uop.MnMov, uop.CtrlUseImm|uop.CtrlRdResize, uop.Regs{Rd: rd}, uint64(imm))
}

// rmOperand describes a decoded ModR/M operand: either a plain register
// or a memory reference (base register plus a constant displacement,
// with RIP-relative addressing already folded into the displacement by
// the caller).
type rmOperand struct {
	isMem   bool
	reg     uint8 // meaningful when !isMem
	base    uint8 // meaningful when isMem; 0 means "no base" (absolute/RIP)
	hasBase bool
	disp    int64
}

// rm decodes the instruction's ModR/M(+SIB) operand. next is the address
// immediately following the instruction, folded into the displacement
// for RIP-relative operands so every memory access — not just lea — gets
// the correct effective address (spec §4.10's RIP-relative addressing).
func (f *Frontend) rm(p *Partial, next uint64) rmOperand {
	if p.mod == 3 {
		return rmOperand{reg: gpReg(p.rm)}
	}
	if p.ripRel {
		return rmOperand{isMem: true, disp: int64(next) + int64(p.dispValue())}
	}
	if p.haveSIB {
		op := rmOperand{isMem: true, disp: int64(p.dispValue())}
		if !(p.mod == 0 && p.sib&0x7 == 5) {
			op.hasBase = true
			op.base = gpReg(p.sibBase)
		}
		return op
	}
	return rmOperand{isMem: true, hasBase: true, base: gpReg(p.rm), disp: int64(p.dispValue())}
}

// loadOperand materializes a memory operand's value into a fresh
// register, emitting the lda+ld pair spec §4.11 calls for. A register
// operand is returned as-is.
func (f *Frontend) loadOperand(bundle *[]uop.Uop, op rmOperand, size int) uint8 {
	if !op.isMem {
		return op.reg
	}
	addr := f.tmp.next8()
	base := op.base
	ctrl := uop.CtrlRdResize
	if op.hasBase {
		ctrl |= uop.CtrlUseRA
	}
	*bundle = append(*bundle, uop.New(uop.ClassGP, uop.MnLda, ctrl, uop.Regs{Ra: base, Rd: addr}, uint64(op.disp)))
	dst := f.tmp.next8()
	*bundle = append(*bundle, uop.New(uop.ClassGP, ldMnemonic(size),
		uop.CtrlUseRA|uop.CtrlImmDelay|uop.CtrlRdResize|sizeCtrl(size), uop.Regs{Ra: addr, Rd: dst}, 1))
	return dst
}

// storeOperand emits the lda+st pair for a memory destination, or
// returns the plain register destination directly.
func (f *Frontend) storeOperand(bundle *[]uop.Uop, op rmOperand, valueReg uint8, size int) {
	if !op.isMem {
		return // caller already targeted op.reg as the uop's rd.
	}
	addr := f.tmp.next8()
	ctrl := uop.CtrlRdResize
	if op.hasBase {
		ctrl |= uop.CtrlUseRA
	}
	*bundle = append(*bundle, uop.New(uop.ClassGP, uop.MnLda, ctrl, uop.Regs{Ra: op.base, Rd: addr}, uint64(op.disp)))
	*bundle = append(*bundle, uop.New(uop.ClassGP, stMnemonic(size),
		uop.CtrlUseRA|uop.CtrlUseRB|sizeCtrl(size), uop.Regs{Ra: addr, Rb: valueReg}, 0))
}

func (f *Frontend) crackArith(p *Partial, next uint64) ([]uop.Uop, bool) {
	row := p.opcode >> 3
	mn, ok := arithMnemonic(row)
	if !ok {
		return nil, false
	}
	col := p.opcode & 0x7
	size := opSizeOf(p)
	if col == 0 || col == 2 {
		size = 1
	}
	// cmp is sub without writing its destination: rd stays unset so
	// rename never allocates one and commit never touches the
	// architectural register (original's "cmp = sub, rd=0").
	isCmp := mn == uop.MnCmp

	var bundle []uop.Uop
	switch col {
	case 4, 5: // AL/eAX, Ib/Iz: accumulator op immediate
		sz := 1
		if col == 5 {
			sz = size
		}
		regs := uop.Regs{Ra: gpReg(0)}
		ctrl := uop.CtrlUseRA | uop.CtrlUseImm | uop.CtrlSetCond | sizeCtrl(sz)
		if !isCmp {
			regs.Rd = gpReg(0)
			ctrl |= uop.CtrlRdResize
		}
		bundle = append(bundle, uop.New(uop.ClassGP, mn, ctrl, regs, uint64(p.immValue())))
	case 0, 1: // Eb,Gb / Ev,Gv: r/m is destination, reg is source
		dst := f.rm(p, next)
		src := gpReg(p.reg)
		if dst.isMem {
			v := f.loadOperand(&bundle, dst, size)
			if isCmp {
				bundle = append(bundle, uop.New(uop.ClassGP, mn, uop.CtrlUseRA|uop.CtrlUseRB|uop.CtrlSetCond|sizeCtrl(size),
					uop.Regs{Ra: v, Rb: src}, 0))
			} else {
				result := f.tmp.next8()
				bundle = append(bundle, uop.New(uop.ClassGP, mn, uop.CtrlUseRA|uop.CtrlUseRB|uop.CtrlSetCond|uop.CtrlRdResize|sizeCtrl(size),
					uop.Regs{Ra: v, Rb: src, Rd: result}, 0))
				f.storeOperand(&bundle, dst, result, size)
			}
		} else {
			regs := uop.Regs{Ra: dst.reg, Rb: src}
			ctrl := uop.CtrlUseRA | uop.CtrlUseRB | uop.CtrlSetCond | sizeCtrl(size)
			if !isCmp {
				regs.Rd = dst.reg
				ctrl |= uop.CtrlRdResize
			}
			bundle = append(bundle, uop.New(uop.ClassGP, mn, ctrl, regs, 0))
		}
	case 2, 3: // Gb,Eb / Gv,Ev: reg is destination, r/m is source
		src := f.rm(p, next)
		dst := gpReg(p.reg)
		v := f.loadOperand(&bundle, src, size)
		regs := uop.Regs{Ra: dst, Rb: v}
		ctrl := uop.CtrlUseRA | uop.CtrlUseRB | uop.CtrlSetCond | sizeCtrl(size)
		if !isCmp {
			regs.Rd = dst
			ctrl |= uop.CtrlRdResize
		}
		bundle = append(bundle, uop.New(uop.ClassGP, mn, ctrl, regs, 0))
	}
	return bundle, true
}

func (f *Frontend) crackGroup1(p *Partial, next uint64) ([]uop.Uop, bool) {
	mn, ok := group1Mnemonic(p.reg)
	if !ok {
		return nil, false
	}
	size := opSizeOf(p)
	// cmp is sub without writing its destination, same as crackArith.
	isCmp := mn == uop.MnCmp
	var bundle []uop.Uop
	dst := f.rm(p, next)
	if dst.isMem {
		v := f.loadOperand(&bundle, dst, size)
		if isCmp {
			bundle = append(bundle, uop.New(uop.ClassGP, mn, uop.CtrlUseRA|uop.CtrlUseImm|uop.CtrlSetCond|sizeCtrl(size),
				uop.Regs{Ra: v}, uint64(p.immValue())))
		} else {
			result := f.tmp.next8()
			bundle = append(bundle, uop.New(uop.ClassGP, mn, uop.CtrlUseRA|uop.CtrlUseImm|uop.CtrlSetCond|uop.CtrlRdResize|sizeCtrl(size),
				uop.Regs{Ra: v, Rd: result}, uint64(p.immValue())))
			f.storeOperand(&bundle, dst, result, size)
		}
	} else {
		regs := uop.Regs{Ra: dst.reg}
		ctrl := uop.CtrlUseRA | uop.CtrlUseImm | uop.CtrlSetCond | sizeCtrl(size)
		if !isCmp {
			regs.Rd = dst.reg
			ctrl |= uop.CtrlRdResize
		}
		bundle = append(bundle, uop.New(uop.ClassGP, mn, ctrl, regs, uint64(p.immValue())))
	}
	return bundle, true
}

func (f *Frontend) crackGroup11(p *Partial, next uint64) ([]uop.Uop, bool) {
	if p.reg&0x7 != 0 {
		return nil, false
	}
	size := opSizeOf(p)
	if p.opcode == 0xC6 {
		size = 1
	}
	var bundle []uop.Uop
	dst := f.rm(p, next)
	if dst.isMem {
		v := f.tmp.next8()
		bundle = append(bundle, uop.New(uop.ClassGP, uop.MnMov, uop.CtrlUseImm|uop.CtrlRdResize|sizeCtrl(size),
			uop.Regs{Rd: v}, uint64(p.immValue())))
		f.storeOperand(&bundle, dst, v, size)
	} else {
		bundle = append(bundle, uop.New(uop.ClassGP, uop.MnMov, uop.CtrlUseImm|uop.CtrlRdResize|sizeCtrl(size),
			uop.Regs{Rd: dst.reg}, uint64(p.immValue())))
	}
	return bundle, true
}

func (f *Frontend) crackTest(p *Partial, next uint64) ([]uop.Uop, bool) {
	size := opSizeOf(p)
	if p.opcode == 0x84 {
		size = 1
	}
	var bundle []uop.Uop
	rmOp := f.rm(p, next)
	reg := gpReg(p.reg)
	v := f.loadOperand(&bundle, rmOp, size)
	bundle = append(bundle, uop.New(uop.ClassGP, uop.MnTest, uop.CtrlUseRA|uop.CtrlUseRB|uop.CtrlSetCond|sizeCtrl(size),
		uop.Regs{Ra: v, Rb: reg}, 0))
	return bundle, true
}

func (f *Frontend) crackMov(p *Partial, next uint64, regIsDest bool) ([]uop.Uop, bool) {
	size := opSizeOf(p)
	if p.opcode == 0x88 || p.opcode == 0x8A {
		size = 1
	}
	var bundle []uop.Uop
	rmOp := f.rm(p, next)
	reg := gpReg(p.reg)
	if regIsDest {
		v := f.loadOperand(&bundle, rmOp, size)
		bundle = append(bundle, uop.New(uop.ClassGP, uop.MnMov, uop.CtrlUseRA|uop.CtrlRdResize|sizeCtrl(size), uop.Regs{Ra: v, Rd: reg}, 0))
	} else if rmOp.isMem {
		f.storeOperand(&bundle, rmOp, reg, size)
	} else {
		bundle = append(bundle, uop.New(uop.ClassGP, uop.MnMov, uop.CtrlUseRA|uop.CtrlRdResize|sizeCtrl(size), uop.Regs{Ra: reg, Rd: rmOp.reg}, 0))
	}
	return bundle, true
}

func (f *Frontend) crackLea(p *Partial, next uint64) ([]uop.Uop, bool) {
	rmOp := f.rm(p, next)
	if !rmOp.isMem {
		return nil, false
	}
	reg := gpReg(p.reg)
	ctrl := uop.CtrlRdResize
	if rmOp.hasBase {
		ctrl |= uop.CtrlUseRA
	}
	return []uop.Uop{uop.New(uop.ClassGP, uop.MnLea, ctrl, uop.Regs{Ra: rmOp.base, Rd: reg}, uint64(rmOp.disp))}, true
}

func (f *Frontend) crackJcc(p *Partial, next uint64, cc byte) ([]uop.Uop, bool) {
	cond, ok := x86CondToUop(cc)
	if !ok {
		return nil, false
	}
	target := int64(next) + p.immValue()
	imm := uop.JccImm(int32(target-int64(p.Addr)), cond)
	return []uop.Uop{uop.New(uop.ClassCtrl, uop.MnJcc, uop.CtrlUseCond, uop.Regs{}, imm)}, true
}

func (f *Frontend) crackGroup45(p *Partial, next uint64) ([]uop.Uop, bool) {
	size := opSizeOf(p)
	if p.opcode == 0xFE {
		size = 1
	}
	switch p.reg & 0x7 {
	case 0, 1: // inc, dec
		mn := uop.MnAdd
		imm := uint64(1)
		if p.reg&0x7 == 1 {
			mn = uop.MnSub
		}
		var bundle []uop.Uop
		dst := f.rm(p, next)
		if dst.isMem {
			v := f.loadOperand(&bundle, dst, size)
			result := f.tmp.next8()
			bundle = append(bundle, uop.New(uop.ClassGP, mn, uop.CtrlUseRA|uop.CtrlUseImm|uop.CtrlSetCond|uop.CtrlRdResize|sizeCtrl(size),
				uop.Regs{Ra: v, Rd: result}, imm))
			f.storeOperand(&bundle, dst, result, size)
		} else {
			bundle = append(bundle, uop.New(uop.ClassGP, mn, uop.CtrlUseRA|uop.CtrlUseImm|uop.CtrlSetCond|uop.CtrlRdResize|sizeCtrl(size),
				uop.Regs{Ra: dst.reg, Rd: dst.reg}, imm))
		}
		return bundle, true
	case 2: // call r/m (indirect)
		rmOp := f.rm(p, next)
		var bundle []uop.Uop
		v := f.loadOperand(&bundle, rmOp, 8)
		bundle = append(bundle, uop.New(uop.ClassCtrl, uop.MnCall, uop.CtrlUseRA, uop.Regs{Ra: v}, 0))
		return bundle, true
	case 4: // jmp r/m (indirect)
		rmOp := f.rm(p, next)
		var bundle []uop.Uop
		v := f.loadOperand(&bundle, rmOp, 8)
		bundle = append(bundle, uop.New(uop.ClassCtrl, uop.MnJmp, uop.CtrlUseRA, uop.Regs{Ra: v}, 0))
		return bundle, true
	}
	return nil, false
}

func (f *Frontend) crackPushPop(p *Partial, isPush bool) ([]uop.Uop, bool) {
	reg := gpReg((p.opcode & 0x7) | p.rexB())
	if isPush {
		addr := f.tmp.next8()
		var bundle []uop.Uop
		bundle = append(bundle, uop.New(uop.ClassGP, uop.MnSub, uop.CtrlUseRA|uop.CtrlUseImm|uop.CtrlRdResize, uop.Regs{Ra: spReg, Rd: spReg}, 8))
		bundle = append(bundle, uop.New(uop.ClassGP, uop.MnLda, uop.CtrlUseRA|uop.CtrlRdResize, uop.Regs{Ra: spReg, Rd: addr}, 0))
		bundle = append(bundle, uop.New(uop.ClassGP, uop.MnSt64, uop.CtrlUseRA|uop.CtrlUseRB, uop.Regs{Ra: addr, Rb: reg}, 0))
		return bundle, true
	}
	addr := f.tmp.next8()
	var bundle []uop.Uop
	bundle = append(bundle, uop.New(uop.ClassGP, uop.MnLda, uop.CtrlUseRA|uop.CtrlRdResize, uop.Regs{Ra: spReg, Rd: addr}, 0))
	bundle = append(bundle, uop.New(uop.ClassGP, uop.MnLd64, uop.CtrlUseRA|uop.CtrlImmDelay|uop.CtrlRdResize, uop.Regs{Ra: addr, Rd: reg}, 1))
	bundle = append(bundle, uop.New(uop.ClassGP, uop.MnAdd, uop.CtrlUseRA|uop.CtrlUseImm|uop.CtrlRdResize, uop.Regs{Ra: spReg, Rd: spReg}, 8))
	return bundle, true
}

// crackShift handles groups 2/2a (0xC0/0xC1/0xD0-0xD3): rol/ror/rcl/rcr
// aren't modeled (no carry-in, matching the adc/sbb gap in
// arithMnemonic), so those reg values UD via shiftMnemonic.
func (f *Frontend) crackShift(p *Partial, next uint64) ([]uop.Uop, bool) {
	mn, ok := shiftMnemonic(p.reg)
	if !ok {
		return nil, false
	}
	size := opSizeOf(p)
	if p.opcode == 0xC0 || p.opcode == 0xD0 || p.opcode == 0xD2 {
		size = 1
	}
	var countCtrl uint16
	var countReg uint8
	var imm uint64
	switch p.opcode {
	case 0xC0, 0xC1: // count is an immediate byte
		countCtrl = uop.CtrlUseImm
		imm = uint64(p.immValue())
	case 0xD0, 0xD1: // count is the implicit constant 1
		countCtrl = uop.CtrlUseImm
		imm = 1
	default: // 0xD2, 0xD3: count is cl
		countCtrl = uop.CtrlUseRB
		countReg = gpReg(1)
	}

	var bundle []uop.Uop
	dst := f.rm(p, next)
	ctrl := uop.CtrlUseRA | countCtrl | uop.CtrlSetCond | uop.CtrlRdResize | sizeCtrl(size)
	if dst.isMem {
		v := f.loadOperand(&bundle, dst, size)
		result := f.tmp.next8()
		bundle = append(bundle, uop.New(uop.ClassGP, mn, ctrl, uop.Regs{Ra: v, Rb: countReg, Rd: result}, imm))
		f.storeOperand(&bundle, dst, result, size)
	} else {
		bundle = append(bundle, uop.New(uop.ClassGP, mn, ctrl, uop.Regs{Ra: dst.reg, Rb: countReg, Rd: dst.reg}, imm))
	}
	return bundle, true
}

// crackGroup3 handles 0xF6/0xF7: test/test/not/neg/mul/imul/div/idiv
// selected by ModR/M.reg. The immediate for the test forms (reg 0/1)
// was already sized by predecode.feedModRM once reg became known.
func (f *Frontend) crackGroup3(p *Partial, next uint64) ([]uop.Uop, bool) {
	size := opSizeOf(p)
	if p.opcode == 0xF6 {
		size = 1
	}
	var bundle []uop.Uop
	rmOp := f.rm(p, next)
	v := f.loadOperand(&bundle, rmOp, size)

	switch p.reg & 0x7 {
	case 0, 1: // test r/m, imm
		bundle = append(bundle, uop.New(uop.ClassGP, uop.MnTest, uop.CtrlUseRA|uop.CtrlUseImm|uop.CtrlSetCond|sizeCtrl(size),
			uop.Regs{Ra: v}, uint64(p.immValue())))
		return bundle, true
	case 2: // not r/m
		result := f.tmp.next8()
		bundle = append(bundle, uop.New(uop.ClassGP, uop.MnNot, uop.CtrlUseRA|uop.CtrlRdResize|sizeCtrl(size),
			uop.Regs{Ra: v, Rd: result}, 0))
		f.storeOperand(&bundle, rmOp, result, size)
		return bundle, true
	case 3: // neg r/m: sub with ra left unset reads as zero, the same
		// technique crackArith's cmp fix uses for "unused operand".
		result := f.tmp.next8()
		bundle = append(bundle, uop.New(uop.ClassGP, uop.MnSub, uop.CtrlUseRB|uop.CtrlSetCond|uop.CtrlRdResize|sizeCtrl(size),
			uop.Regs{Rb: v, Rd: result}, 0))
		f.storeOperand(&bundle, rmOp, result, size)
		return bundle, true
	case 4, 5: // mul/imul r/m,rax: the low 64 bits of a product are the
		// same whether the inputs are signed or unsigned; the discarded
		// upper half matches this module's single-destination tier.
		bundle = append(bundle, uop.New(uop.ClassGP, uop.MnMul, uop.CtrlUseRA|uop.CtrlUseRB|uop.CtrlSetCond|uop.CtrlRdResize|sizeCtrl(size),
			uop.Regs{Ra: gpReg(0), Rb: v, Rd: gpReg(0)}, 0))
		return bundle, true
	case 6: // div r/m,rax (unsigned)
		bundle = append(bundle, uop.New(uop.ClassGP, uop.MnDiv, uop.CtrlUseRA|uop.CtrlUseRB|uop.CtrlSetCond|uop.CtrlRdResize|sizeCtrl(size),
			uop.Regs{Ra: gpReg(0), Rb: v, Rd: gpReg(0)}, 0))
		return bundle, true
	}
	return nil, false // idiv (reg 7): no signed-divide mnemonic modeled, UD
}

// crackXchg handles 0x86/0x87 (r/m,reg) when rmDst is true, and
// 0x91-0x97 (eAX/rAX,reg) when false. Both decompose into plain movs
// through a scratch temp rather than needing a dedicated mnemonic.
func (f *Frontend) crackXchg(p *Partial, next uint64, rmDst bool) ([]uop.Uop, bool) {
	size := opSizeOf(p)
	var dst rmOperand
	var src uint8
	if rmDst {
		if p.opcode == 0x86 {
			size = 1
		}
		dst = f.rm(p, next)
		src = gpReg(p.reg)
	} else {
		dst = rmOperand{reg: gpReg(p.opcode & 0x7)}
		src = gpReg(0)
	}

	var bundle []uop.Uop
	if dst.isMem {
		v := f.loadOperand(&bundle, dst, size)
		f.storeOperand(&bundle, dst, src, size)
		bundle = append(bundle, uop.New(uop.ClassGP, uop.MnMov, uop.CtrlUseRA|uop.CtrlRdResize|sizeCtrl(size), uop.Regs{Ra: v, Rd: src}, 0))
	} else {
		tmp := f.tmp.next8()
		bundle = append(bundle, uop.New(uop.ClassGP, uop.MnMov, uop.CtrlUseRA|uop.CtrlRdResize|sizeCtrl(size), uop.Regs{Ra: dst.reg, Rd: tmp}, 0))
		bundle = append(bundle, uop.New(uop.ClassGP, uop.MnMov, uop.CtrlUseRA|uop.CtrlRdResize|sizeCtrl(size), uop.Regs{Ra: src, Rd: dst.reg}, 0))
		bundle = append(bundle, uop.New(uop.ClassGP, uop.MnMov, uop.CtrlUseRA|uop.CtrlRdResize|sizeCtrl(size), uop.Regs{Ra: tmp, Rd: src}, 0))
	}
	return bundle, true
}

// crackPopRM handles 0x8F (group 1a): pop into an arbitrary r/m
// destination, the same lda+ld64+add-rsp sequence crackPushPop's pop
// branch uses, generalized past a fixed register target.
func (f *Frontend) crackPopRM(p *Partial, next uint64) ([]uop.Uop, bool) {
	if p.reg&0x7 != 0 {
		return nil, false
	}
	dst := f.rm(p, next)
	addr := f.tmp.next8()
	val := f.tmp.next8()
	var bundle []uop.Uop
	bundle = append(bundle, uop.New(uop.ClassGP, uop.MnLda, uop.CtrlUseRA|uop.CtrlRdResize, uop.Regs{Ra: spReg, Rd: addr}, 0))
	bundle = append(bundle, uop.New(uop.ClassGP, uop.MnLd64, uop.CtrlUseRA|uop.CtrlImmDelay|uop.CtrlRdResize, uop.Regs{Ra: addr, Rd: val}, 1))
	if dst.isMem {
		f.storeOperand(&bundle, dst, val, 8)
	} else {
		bundle = append(bundle, uop.New(uop.ClassGP, uop.MnMov, uop.CtrlUseRA|uop.CtrlRdResize, uop.Regs{Ra: val, Rd: dst.reg}, 0))
	}
	bundle = append(bundle, uop.New(uop.ClassGP, uop.MnAdd, uop.CtrlUseRA|uop.CtrlUseImm|uop.CtrlRdResize, uop.Regs{Ra: spReg, Rd: spReg}, 8))
	return bundle, true
}

// crackCmovcc handles the two-byte 0x40-0x4F range: a conditional mov
// built as a plain MnMov with CtrlUseCond set, reusing executeALU's
// cmovcc gate and the same cond-in-top-nibble packing as a jcc's Imm.
func (f *Frontend) crackCmovcc(p *Partial, next uint64, cc byte) ([]uop.Uop, bool) {
	cond, ok := x86CondToUop(cc)
	if !ok {
		return nil, false
	}
	size := opSizeOf(p)
	var bundle []uop.Uop
	src := f.rm(p, next)
	v := f.loadOperand(&bundle, src, size)
	dst := gpReg(p.reg)
	bundle = append(bundle, uop.New(uop.ClassGP, uop.MnMov, uop.CtrlUseRA|uop.CtrlUseCond|uop.CtrlRdResize|sizeCtrl(size),
		uop.Regs{Ra: v, Rd: dst}, uop.JccImm(0, cond)))
	return bundle, true
}

// crackMovsx handles 0x0F 0xBE/0xBF: sign-extend a byte/word r/m into
// a GP register, reusing mergeGP's CtrlRdExtend path with the operand
// size set to the *source* width rather than the destination's.
func (f *Frontend) crackMovsx(p *Partial, next uint64, srcSize int) ([]uop.Uop, bool) {
	var bundle []uop.Uop
	src := f.rm(p, next)
	v := f.loadOperand(&bundle, src, srcSize)
	dst := gpReg(p.reg)
	bundle = append(bundle, uop.New(uop.ClassGP, uop.MnMov, uop.CtrlUseRA|uop.CtrlRdExtend|sizeCtrl(srcSize),
		uop.Regs{Ra: v, Rd: dst}, 0))
	return bundle, true
}

// crackImul2 handles the two-byte two-operand 0x0F 0xAF: reg *= r/m,
// reusing MnMul for the same low-64-bits-are-identical reason group
// 3's single-operand imul does.
func (f *Frontend) crackImul2(p *Partial, next uint64) ([]uop.Uop, bool) {
	size := opSizeOf(p)
	var bundle []uop.Uop
	src := f.rm(p, next)
	v := f.loadOperand(&bundle, src, size)
	dst := gpReg(p.reg)
	bundle = append(bundle, uop.New(uop.ClassGP, uop.MnMul, uop.CtrlUseRA|uop.CtrlUseRB|uop.CtrlSetCond|uop.CtrlRdResize|sizeCtrl(size),
		uop.Regs{Ra: dst, Rb: v, Rd: dst}, 0))
	return bundle, true
}

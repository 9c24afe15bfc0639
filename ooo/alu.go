package ooo

import "github.com/archlab/uopsim/uop"

// executeALU performs the non-memory, non-branch uop semantics: GP
// arithmetic/logical ops, mov/lea, and the synthetic int/halt/cvt
// control uops. FP and vector arithmetic are out of scope (spec §1
// Non-goals "SSE/AVX/FPU semantics"); mov/lea on those classes still
// move whole-register values.
func (c *Core) executeALU(now uint64, e *Entry) {
	u := &e.Uop

	switch u.Mnemonic {
	case uop.MnInt:
		e.Except = uop.ExceptionOf(*u)
		e.CReady = now
		return
	case uop.MnHalt:
		e.Except = uop.NewWord(uop.ExcHALT, 0)
		e.CReady = now
		return
	case uop.MnCvt:
		// cross-class conversion: interface hook only (spec §9 open
		// questions, resolved as out of scope for execution).
		e.Except = uop.NewWord(uop.ExcUNSPEC, 0)
		e.CReady = now
		return
	case uop.MnNop:
		e.CReady = now
		return
	}

	if u.Class != uop.ClassGP {
		c.executeMoveOnly(now, e)
		return
	}

	a, b := gpOperands(c.prf, *u)
	var result uint64
	writeResult := true
	var flags uop.Flags

	switch u.Mnemonic {
	case uop.MnMov:
		result = b
		if u.Control&uop.CtrlUseCond != 0 {
			// cmovcc: the move only takes effect when the bound
			// condition holds (spec §4.11's cmovcc coverage), reusing
			// the same CCUse binding a jcc consumes.
			flags := c.arf.Cond
			if e.CCUse.Valid {
				flags = c.prf.Cond[e.CCUse.Phys]
			}
			writeResult = uop.Eval(uop.Cond((u.Imm>>60)&0xF), flags)
		}
	case uop.MnLea:
		result = a + uint64(int64(u.Imm))
	case uop.MnAdd:
		result = a + b
		flags = addFlags(a, b, result)
	case uop.MnSub:
		result = a - b
		flags = subFlags(a, b, result)
	case uop.MnAnd:
		result = a & b
		flags = logicFlags(result)
	case uop.MnOr:
		result = a | b
		flags = logicFlags(result)
	case uop.MnXor:
		result = a ^ b
		flags = logicFlags(result)
	case uop.MnNot:
		result = ^a
	case uop.MnShl:
		result = a << (b & 0x3f)
		flags = logicFlags(result)
	case uop.MnShr:
		result = a >> (b & 0x3f)
		flags = logicFlags(result)
	case uop.MnSar:
		result = uint64(int64(a) >> (b & 0x3f))
		flags = logicFlags(result)
	case uop.MnMul:
		result = a * b
		flags = logicFlags(result)
	case uop.MnDiv:
		if b == 0 {
			e.Except = uop.NewWord(uop.ExcDE, 0)
			e.CReady = now
			return
		}
		result = a / b
		flags = logicFlags(result)
	case uop.MnCmp:
		writeResult = false
		flags = subFlags(a, b, a-b)
	case uop.MnTest:
		writeResult = false
		flags = logicFlags(a & b)
	case uop.MnRdtsc:
		result = now
	default:
		writeResult = false
	}

	if writeResult && e.Dest.Valid {
		size := opSizeBytes(*u)
		u.Regs.Rd = e.Dest.Phys
		c.prf.GP[e.Dest.Phys] = mergeGP(c.prf.GP[e.Dest.Phys], result, size,
			u.Control&uop.CtrlRdExtend != 0, u.Control&uop.CtrlRdResize != 0)
	}
	if u.Control&uop.CtrlSetCond != 0 && e.CCSet.Valid {
		c.prf.Cond[e.CCSet.Phys] = flags
	}
	e.CReady = now
}

// executeMoveOnly handles mov/lea on the FP/VR classes, the only
// operations those classes need beyond address computation.
func (c *Core) executeMoveOnly(now uint64, e *Entry) {
	u := &e.Uop
	if u.Mnemonic == uop.MnMov && e.Dest.Valid {
		switch u.Class {
		case uop.ClassFP:
			if u.Control&uop.CtrlUseRB != 0 {
				c.prf.FP[e.Dest.Phys] = c.prf.FP[u.Regs.Rb]
			}
		case uop.ClassVR:
			if u.Control&uop.CtrlUseRB != 0 {
				c.prf.VR[e.Dest.Phys] = c.prf.VR[u.Regs.Rb]
			}
		}
	}
	e.CReady = now
}

// gpOperands picks a uop's two GP operand values: the first source
// (ra), and the second source, preferring the immediate over rb when
// use_imm is set.
func gpOperands(prf *PRF, u uop.Uop) (a, b uint64) {
	if u.Control&uop.CtrlUseRA != 0 {
		a = prf.GP[u.Regs.Ra]
	}
	if u.Control&uop.CtrlUseImm != 0 {
		b = u.Imm
	} else if u.Control&uop.CtrlUseRB != 0 {
		b = prf.GP[u.Regs.Rb]
	}
	return a, b
}

func addFlags(a, b, r uint64) uop.Flags {
	return uop.Flags{
		N: int64(r) < 0,
		Z: r == 0,
		C: r < a,
		V: (int64(a) >= 0 && int64(b) >= 0 && int64(r) < 0) || (int64(a) < 0 && int64(b) < 0 && int64(r) >= 0),
	}
}

func subFlags(a, b, r uint64) uop.Flags {
	return uop.Flags{
		N: int64(r) < 0,
		Z: r == 0,
		C: a < b,
		V: (int64(a) >= 0 && int64(b) < 0 && int64(r) < 0) || (int64(a) < 0 && int64(b) >= 0 && int64(r) >= 0),
	}
}

func logicFlags(r uint64) uop.Flags {
	return uop.Flags{N: int64(r) < 0, Z: r == 0}
}

package uop

// Entry is one row of the dense mnemonic table: everything decode, issue,
// and execute need to know about a mnemonic without re-deriving it.
type Entry struct {
	Mnemonic  Mnemonic
	Ports     PortMask
	FU        FUType
	Latency   uint64
	AllowCtrl uint16 // mask of control bits this mnemonic may legally carry
}

// Table is the dense mnemonic -> Entry lookup, indexed by Mnemonic.
// Unpopulated entries (Mnemonic == MnUnknown) signal an unimplemented
// opcode and trigger a UD exception at decode (spec §4.4).
type Table struct {
	entries  []Entry
	latency  *LatencyConfig
}

// NewTable builds the uop table with the given latency configuration. A
// nil config uses DefaultLatencyConfig.
func NewTable(cfg *LatencyConfig) *Table {
	if cfg == nil {
		d := DefaultLatencyConfig()
		cfg = &d
	}
	t := &Table{entries: make([]Entry, maxMnemonic+1), latency: cfg}
	t.populate()
	return t
}

const maxMnemonic = int(MnHalt)

const allCtrlBase = CtrlUseRA | CtrlUseRB | CtrlUseRC | CtrlUseImm |
	CtrlOpSizeMask | CtrlMopFirst | CtrlMopLast | CtrlRdExtend | CtrlRdResize

func (t *Table) set(mn Mnemonic, ports PortMask, fu FUType, latency uint64, extraCtrl uint16) {
	t.entries[mn] = Entry{
		Mnemonic:  mn,
		Ports:     ports,
		FU:        fu,
		Latency:   latency,
		AllowCtrl: allCtrlBase | extraCtrl,
	}
}

// populate fills in the table's rows. Latencies come from the
// LatencyConfig so a caller can retune the timing model without touching
// the port/FU wiring, mirroring the teacher's TimingConfig split between
// wiring (fixed) and latency (configurable).
func (t *Table) populate() {
	l := t.latency
	aluPorts := PortMask(Port0 | Port1 | Port2 | Port3)
	t.set(MnNop, aluPorts, FUAny, 1, 0)
	t.set(MnMov, aluPorts, FUAlu, l.ALU, CtrlRdExtend|CtrlRdResize)
	t.set(MnAdd, aluPorts, FUAlu, l.ALU, CtrlSetCond)
	t.set(MnSub, aluPorts, FUAlu, l.ALU, CtrlSetCond)
	t.set(MnAnd, aluPorts, FUAlu, l.ALU, CtrlSetCond)
	t.set(MnOr, aluPorts, FUAlu, l.ALU, CtrlSetCond)
	t.set(MnXor, aluPorts, FUAlu, l.ALU, CtrlSetCond)
	t.set(MnNot, aluPorts, FUAlu, l.ALU, 0)
	t.set(MnShl, aluPorts, FUAlu, l.ALU, CtrlSetCond)
	t.set(MnShr, aluPorts, FUAlu, l.ALU, CtrlSetCond)
	t.set(MnSar, aluPorts, FUAlu, l.ALU, CtrlSetCond)
	t.set(MnMul, PortMask(Port1), FUMul, l.Multiply, CtrlSetCond)
	t.set(MnDiv, PortMask(Port0), FUDiv, l.DivideMax, CtrlSetCond)
	t.set(MnCmp, aluPorts, FUAlu, l.ALU, CtrlSetCond)
	t.set(MnTest, aluPorts, FUAlu, l.ALU, CtrlSetCond)
	t.set(MnLea, PortMask(Port2|Port7), FUAgu, l.ALU, 0)
	t.set(MnLda, PortMask(Port4|Port5), FUAgu, l.Load, CtrlImmDelay|CtrlUseCond)
	ldPorts := PortMask(Port4 | Port5)
	t.set(MnLd8, ldPorts, FULd, l.Load, CtrlImmDelay)
	t.set(MnLd16, ldPorts, FULd, l.Load, CtrlImmDelay)
	t.set(MnLd32, ldPorts, FULd, l.Load, CtrlImmDelay)
	t.set(MnLd64, ldPorts, FULd, l.Load, CtrlImmDelay)
	stPorts := PortMask(Port6)
	t.set(MnSt8, stPorts, FUSt, l.Store, 0)
	t.set(MnSt16, stPorts, FUSt, l.Store, 0)
	t.set(MnSt32, stPorts, FUSt, l.Store, 0)
	t.set(MnSt64, stPorts, FUSt, l.Store, 0)
	brPorts := PortMask(Port0 | Port3)
	t.set(MnJmp, brPorts, FUBrch, l.Branch, 0)
	t.set(MnJcc, brPorts, FUBrch, l.Branch, CtrlUseCond)
	t.set(MnCall, brPorts, FUBrch, l.Branch, 0)
	t.set(MnRet, brPorts, FUBrch, l.Branch, 0)
	t.set(MnCvt, aluPorts, FUAny, l.ALU, CtrlDataType)
	t.set(MnInt, PortMask(Port0|Port3), FUCtrl, 1, 0)
	t.set(MnHalt, PortMask(Port0|Port3), FUCtrl, 1, 0)
}

// Lookup returns the table entry for a mnemonic and whether it exists.
// A missing entry (including MnUnknown) signals UD per spec §4.4.
func (t *Table) Lookup(mn Mnemonic) (Entry, bool) {
	if int(mn) < 0 || int(mn) > maxMnemonic {
		return Entry{}, false
	}
	e := t.entries[mn]
	if e.Mnemonic == MnUnknown && mn != MnUnknown {
		return Entry{}, false
	}
	if mn == MnUnknown {
		return Entry{}, false
	}
	return e, true
}

// MaskControl clears any control bits a mnemonic is not allowed to carry
// (spec §4.4 "mask control bits against the allowed mask").
func (e Entry) MaskControl(control uint16) uint16 {
	return control & e.AllowCtrl
}

// Package x64 implements the x86-64 frontend: a streaming predecoder
// that finds instruction boundaries inside 16-byte fetch windows, a
// decoder/cracker that turns each boundary into one or more uops, and
// the Frontend type that drives both against the core (spec §4.10,
// §4.11).
package x64

// pdState is the predecoder's state, per spec §4.10's four-state
// machine: prefix bytes, the opcode (and its escape byte), ModR/M (plus
// any SIB and displacement), then the immediate.
type pdState uint8

const (
	stPrefix pdState = iota
	stOpcode
	stModRM
	stSIB
	stDisp
	stImm
)

// legacy prefix bytes recognized ahead of an opcode.
const (
	pfxOpSize   = 0x66
	pfxAddrSize = 0x67
	pfxSegCS    = 0x2E
	pfxSegSS    = 0x36
	pfxSegDS    = 0x3E
	pfxSegES    = 0x26
	pfxSegFS    = 0x64
	pfxSegGS    = 0x65
	pfxLock     = 0xF0
	pfxRepNZ    = 0xF2
	pfxRepZ     = 0xF3
)

// Partial carries a predecoder's state across fetch-window boundaries,
// so an instruction that spans two 16-byte windows resumes exactly
// where the first window left off (spec §8 boundary property).
type Partial struct {
	Addr  uint64 // address of this instruction's first byte
	state pdState

	hasRex bool
	rex    byte
	seg    byte // 0 = none, else one of the pfxSeg* bytes
	opSize bool // 0x66 seen
	adSize bool // 0x67 seen

	escape bool // 0x0F two-byte opcode escape seen
	opcode byte
	spec   opcodeSpec

	modrm        byte
	mod, reg, rm byte

	sib          byte
	haveSIB      bool
	sibBase      byte
	sibIndexZero bool // SIB index field is 100 (no index register)

	dispLen, dispGot int
	disp             [4]byte

	immLen, immGot int
	imm            [4]byte

	invalid bool // unrecognized opcode/encoding: raises UD
	ripRel  bool // mod=00,rm=101, no SIB: disp32 relative to next instruction
}

// NewPartial starts a fresh predecode at addr.
func NewPartial(addr uint64) *Partial {
	return &Partial{Addr: addr, state: stPrefix}
}

// Done reports whether this Partial has consumed its whole instruction
// (successfully or as an invalid encoding) and is ready for the decoder.
func (p *Partial) Done() bool { return p.state == stDone() }

// stDone is a sentinel past the real states; kept as a function rather
// than a constant so Feed's switch stays exhaustive over pdState.
func stDone() pdState { return pdState(255) }

// Feed consumes one byte, advancing the state machine. It returns true
// once the instruction is fully decoded (including any trailing
// immediate), at which point the caller should hand the Partial to the
// decoder and start a new one for the following byte.
func (p *Partial) Feed(b byte) bool {
	switch p.state {
	case stPrefix:
		return p.feedPrefix(b)
	case stOpcode:
		return p.feedOpcode(b)
	case stModRM:
		return p.feedModRM(b)
	case stSIB:
		return p.feedSIB(b)
	case stDisp:
		return p.feedDisp(b)
	case stImm:
		return p.feedImm(b)
	}
	return true
}

func (p *Partial) feedPrefix(b byte) bool {
	switch b {
	case pfxOpSize:
		p.opSize = true
		return false
	case pfxAddrSize:
		p.adSize = true
		return false
	case pfxSegCS, pfxSegSS, pfxSegDS, pfxSegES, pfxSegFS, pfxSegGS:
		p.seg = b
		return false
	case pfxLock, pfxRepNZ, pfxRepZ:
		return false
	}
	if b >= 0x40 && b <= 0x4F {
		p.hasRex = true
		p.rex = b
		return false
	}
	// not a prefix byte: this is the opcode's first byte.
	p.state = stOpcode
	return p.feedOpcode(b)
}

// rexW reports whether REX.W (64-bit operand size) is set.
func (p *Partial) rexW() bool { return p.hasRex && p.rex&0x08 != 0 }

// rexExt reports the three REX register-extension bits (R, X, B), which
// the decoder folds into ModR/M.reg, SIB.index, and ModR/M.rm/SIB.base.
func (p *Partial) rexR() byte {
	if p.hasRex && p.rex&0x04 != 0 {
		return 0x8
	}
	return 0
}
func (p *Partial) rexX() byte {
	if p.hasRex && p.rex&0x02 != 0 {
		return 0x8
	}
	return 0
}
func (p *Partial) rexB() byte {
	if p.hasRex && p.rex&0x01 != 0 {
		return 0x8
	}
	return 0
}

func (p *Partial) feedOpcode(b byte) bool {
	if b == 0x0F && !p.escape {
		p.escape = true
		return false
	}
	p.opcode = b
	spec, ok := lookupOpcode(p.escape, b)
	if !ok {
		p.invalid = true
		p.state = stDone()
		return true
	}
	p.spec = spec
	p.immLen = spec.immLen(p.opSize, p.rexW())
	if !spec.hasModRM {
		if p.immLen == 0 {
			p.state = stDone()
			return true
		}
		p.state = stImm
		return false
	}
	p.state = stModRM
	return false
}

func (p *Partial) feedModRM(b byte) bool {
	p.modrm = b
	p.mod = b >> 6
	p.reg = ((b>>3)&0x7) | p.rexR()
	p.rm = b & 0x7

	if (p.opcode == 0xF6 || p.opcode == 0xF7) && p.reg&0x7 <= 1 {
		// Group 3's test forms (reg 0/1) carry an immediate the other
		// six reg values (not/neg/mul/imul/div/idiv) don't; that can't
		// be known until this reg field is decoded.
		if p.opcode == 0xF6 {
			p.immLen = 1
		} else if p.opSize {
			p.immLen = 2
		} else {
			p.immLen = 4
		}
	}

	if p.mod != 3 && p.rm == 4 {
		p.state = stSIB
		return false
	}
	if p.mod == 0 && p.rm == 5 {
		// RIP-relative: disp32, no base register (spec §4.11).
		p.ripRel = true
		p.dispLen = 4
	} else {
		p.dispLen = dispLenFor(p.mod, p.rm)
		p.rm |= p.rexB()
	}
	return p.afterAddressing()
}

func (p *Partial) feedSIB(b byte) bool {
	p.sib = b
	p.haveSIB = true
	index := (b >> 3) & 0x7
	p.sibIndexZero = index == 4 && p.rexX() == 0 // index==100, no REX.X: no index register
	p.sibBase = (b & 0x7) | p.rexB()

	if p.mod == 0 && (b&0x7) == 5 {
		p.dispLen = 4 // disp32, no base register
	} else {
		p.dispLen = dispLenFor(p.mod, 4)
	}
	return p.afterAddressing()
}

func (p *Partial) afterAddressing() bool {
	if p.dispLen > 0 {
		p.state = stDisp
		return false
	}
	if p.immLen > 0 {
		p.state = stImm
		return false
	}
	p.state = stDone()
	return true
}

func (p *Partial) feedDisp(b byte) bool {
	p.disp[p.dispGot] = b
	p.dispGot++
	if p.dispGot < p.dispLen {
		return false
	}
	if p.immLen > 0 {
		p.state = stImm
		return false
	}
	p.state = stDone()
	return true
}

func (p *Partial) feedImm(b byte) bool {
	p.imm[p.immGot] = b
	p.immGot++
	if p.immGot < p.immLen {
		return false
	}
	p.state = stDone()
	return true
}

// dispLenFor returns the ModR/M displacement size for a memory operand:
// 0 for mod=11 (register) or mod=00 with no explicit disp, 1 for mod=01,
// 4 for mod=10 or the mod=00/rm=101(SIB base=101) direct-disp32 forms.
func dispLenFor(mod, rm byte) int {
	switch mod {
	case 1:
		return 1
	case 2:
		return 4
	}
	return 0
}

// dispValue sign-extends the consumed displacement bytes.
func (p *Partial) dispValue() int32 {
	switch p.dispLen {
	case 1:
		return int32(int8(p.disp[0]))
	case 4:
		return int32(uint32(p.disp[0]) | uint32(p.disp[1])<<8 | uint32(p.disp[2])<<16 | uint32(p.disp[3])<<24)
	}
	return 0
}

// immValue sign-extends the consumed immediate bytes.
func (p *Partial) immValue() int64 {
	switch p.immLen {
	case 1:
		return int64(int8(p.imm[0]))
	case 2:
		return int64(int16(uint16(p.imm[0]) | uint16(p.imm[1])<<8))
	case 4:
		return int64(int32(uint32(p.imm[0]) | uint32(p.imm[1])<<8 | uint32(p.imm[2])<<16 | uint32(p.imm[3])<<24))
	}
	return 0
}

// Len reports the total byte length of the consumed instruction.
func (p *Partial) Len() int {
	n := 1 // opcode
	if p.escape {
		n++
	}
	if p.hasRex {
		n++
	}
	if p.seg != 0 {
		n++
	}
	if p.opSize {
		n++
	}
	if p.adSize {
		n++
	}
	if p.spec.hasModRM {
		n++
	}
	if p.haveSIB {
		n++
	}
	return n + p.dispLen + p.immLen
}

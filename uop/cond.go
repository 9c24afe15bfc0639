package uop

// Cond is a condition-code test, evaluated against the condition register
// a uop's UseCond bit binds to (spec §4.5 condition-register tracking).
type Cond uint8

// Condition codes. Values mirror the common x86/ARM condition-flag tests;
// the predecoder/cracker maps jcc/cmovcc condition fields onto these.
const (
	CondEQ Cond = iota // equal / zero
	CondNE             // not equal / not zero
	CondCS             // carry set
	CondCC             // carry clear
	CondMI             // negative
	CondPL             // positive or zero
	CondVS             // overflow set
	CondVC             // overflow clear
	CondHI             // unsigned greater
	CondLS             // unsigned less-or-equal
	CondGE             // signed greater-or-equal
	CondLT             // signed less
	CondGT             // signed greater
	CondLE             // signed less-or-equal
	CondAL             // always
	CondNV             // never (reserved)
)

// Flags is the condition register's payload: the four arithmetic flags
// a `cmp`/`test`/flag-setting ALU uop produces.
type Flags struct {
	N, Z, C, V bool
}

// Eval evaluates a condition against a Flags snapshot.
func Eval(c Cond, f Flags) bool {
	switch c {
	case CondEQ:
		return f.Z
	case CondNE:
		return !f.Z
	case CondCS:
		return f.C
	case CondCC:
		return !f.C
	case CondMI:
		return f.N
	case CondPL:
		return !f.N
	case CondVS:
		return f.V
	case CondVC:
		return !f.V
	case CondHI:
		return f.C && !f.Z
	case CondLS:
		return !f.C || f.Z
	case CondGE:
		return f.N == f.V
	case CondLT:
		return f.N != f.V
	case CondGT:
		return !f.Z && f.N == f.V
	case CondLE:
		return f.Z || f.N != f.V
	case CondAL:
		return true
	default:
		return false
	}
}

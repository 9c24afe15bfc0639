package ooo

import "github.com/archlab/uopsim/uop"

// Fu is one functional unit instance bound to a port: a type, remaining
// busy cycles, the cycle execution may begin, and the ROB entry it is
// currently serving (spec §4.3).
type Fu struct {
	Type FUType
	Busy uint64

	EarliestStart uint64
	Bound         bool
	RobID         uint64
}

// FUType is re-exported from uop for callers that only import ooo.
type FUType = uop.FUType

// Available reports whether the FU can accept a new binding.
func (f *Fu) Available() bool { return !f.Bound }

// Port is one reservation-station issue slot: a post-issue lockout
// counter and its ordered list of typed FUs (spec §4.3).
type Port struct {
	Lockout uint64
	Fus     []*Fu
}

// findFU returns the first available FU of type t on this port, or nil.
func (p *Port) findFU(t FUType) *Fu {
	for _, f := range p.Fus {
		if !f.Available() {
			continue
		}
		if t == uop.FUAny || f.Type == t {
			return f
		}
	}
	return nil
}

// Ports is the fixed 8-port reservation station, wired per spec §4.3's
// port→FU-type matrix.
type Ports struct {
	P [8]*Port
}

// newPorts builds the reservation station with one FU instance per type
// listed for each port in uop's port→FU wiring table.
func newPorts() *Ports {
	ps := &Ports{}
	for i := 0; i < 8; i++ {
		types := uop.PortFUTypes(uop.Port(i))
		port := &Port{}
		for _, t := range types {
			port.Fus = append(port.Fus, &Fu{Type: t})
		}
		ps.P[i] = port
	}
	return ps
}

// decrementLockouts applies spec §4.6's "decrement any port's lockout"
// at the top of issue.
func (ps *Ports) decrementLockouts() {
	for _, p := range ps.P {
		if p.Lockout > 0 {
			p.Lockout--
		}
	}
}

// Clear resets all port/FU state (spec §4.9 "reset functional-unit
// state").
func (ps *Ports) Clear() {
	for _, p := range ps.P {
		p.Lockout = 0
		for _, f := range p.Fus {
			*f = Fu{Type: f.Type}
		}
	}
}

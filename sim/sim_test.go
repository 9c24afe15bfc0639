package sim_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/archlab/uopsim/bpred"
	"github.com/archlab/uopsim/frontend/risc"
	"github.com/archlab/uopsim/frontend/x64"
	"github.com/archlab/uopsim/mem"
	"github.com/archlab/uopsim/ooo"
	"github.com/archlab/uopsim/sim"
	"github.com/archlab/uopsim/uop"
)

func TestSim(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Sim Suite")
}

const testEntry = 0x8000

// newX64 maps code (zero-extended to at least one page) and a second
// anonymous data page, wires up a fresh core/x64-frontend pair, and
// returns the simulator plus the memory manager and core so tests can
// write extra data and inspect final architectural state.
func newX64(code []byte) (*sim.Simulator, *mem.Manager, *ooo.Core) {
	mm := mem.NewManager(mem.DefaultConfig())
	Expect(mm.MapFrame(testEntry, 0, mem.RWXRead|mem.RWXWrite|mem.RWXExec, "code")).To(Succeed())
	Expect(mm.MapPage(testEntry, testEntry, 0, mem.RWXRead|mem.RWXWrite|mem.RWXExec)).To(Succeed())
	_, err := mm.Write(testEntry, code, 0)
	Expect(err).NotTo(HaveOccurred())

	core := ooo.New(ooo.Config{
		Widths:   ooo.DefaultWidths(),
		Table:    uop.NewTable(nil),
		Mem:      mm,
		Pred:     bpred.New(bpred.DefaultConfig()),
		RobCap:   64,
		LqCap:    16,
		QueueCap: 16,
		IDRACap:  16,
	})
	fe := x64.New(mm, bpred.New(bpred.DefaultConfig()), testEntry)
	s := sim.New(sim.Config{Core: core, Frontend: fe, Mem: mm, Entry: testEntry, MaxCycles: 100000})
	return s, mm, core
}

func newRisc(prog []uop.Uop) (*sim.Simulator, *mem.Manager, *ooo.Core) {
	mm := mem.NewManager(mem.DefaultConfig())
	Expect(mm.MapFrame(testEntry, 0, mem.RWXRead|mem.RWXWrite|mem.RWXExec, "code")).To(Succeed())
	Expect(mm.MapPage(testEntry, testEntry, 0, mem.RWXRead|mem.RWXWrite|mem.RWXExec)).To(Succeed())

	buf := make([]byte, 0, len(prog)*16)
	for _, u := range prog {
		buf = append(buf, encodeRiscUop(u)...)
	}
	_, err := mm.Write(testEntry, buf, 0)
	Expect(err).NotTo(HaveOccurred())

	core := ooo.New(ooo.Config{
		Widths:   ooo.DefaultWidths(),
		Table:    uop.NewTable(nil),
		Mem:      mm,
		Pred:     bpred.New(bpred.DefaultConfig()),
		RobCap:   64,
		LqCap:    16,
		QueueCap: 16,
		IDRACap:  16,
	})
	fe := risc.New(mm, bpred.New(bpred.DefaultConfig()), testEntry)
	s := sim.New(sim.Config{Core: core, Frontend: fe, Mem: mm, Entry: testEntry, MaxCycles: 100000})
	return s, mm, core
}

// encodeRiscUop packs a Uop into the 16-byte wire record the risc
// frontend's big-endian opcode/control, little-endian imm layout
// expects (spec §6.2).
func encodeRiscUop(u uop.Uop) []byte {
	b := make([]byte, 16)
	b[0] = byte(u.Opcode >> 8)
	b[1] = byte(u.Opcode)
	b[2] = byte(u.Control >> 8)
	b[3] = byte(u.Control)
	b[4] = u.Regs.Ra
	b[5] = u.Regs.Rb
	b[6] = u.Regs.Rc
	b[7] = u.Regs.Rd
	for i := 0; i < 8; i++ {
		b[8+i] = byte(u.Imm >> (8 * i))
	}
	return b
}

var _ = Describe("End-to-end scenarios (spec §8)", func() {
	It("scenario 1: move-immediate, add, halt", func() {
		code := []byte{
			0x48, 0xC7, 0xC0, 0x05, 0x00, 0x00, 0x00, // mov rax, 5
			0x48, 0x83, 0xC0, 0x03, // add rax, 3
			0xF4, // hlt
		}
		s, _, _ := newX64(code)
		summary := s.Run()

		Expect(summary.Halted).To(BeTrue())
		Expect(summary.Exception).To(Equal(uop.ExcHALT))
		Expect(summary.ARF.ReadGP(1)).To(Equal(uint64(8))) // rax = gpReg(0) = 1
		Expect(summary.Committed).To(Equal(uint64(3)))
	})

	It("scenario 2: conditional branch loop counts rcx down to zero", func() {
		// mov rcx, 4; loop: dec rcx; jnz loop; hlt
		code := []byte{
			0x48, 0xC7, 0xC1, 0x04, 0x00, 0x00, 0x00, // mov rcx, 4 (7 bytes, addr 0)
			0x48, 0xFF, 0xC9, // dec rcx (3 bytes, addr 7)
			0x75, 0xFB, // jnz -5 (2 bytes, addr 10; target = 12-5=7)
			0xF4, // hlt (addr 12)
		}
		s, _, _ := newX64(code)
		summary := s.Run()

		Expect(summary.Halted).To(BeTrue())
		Expect(summary.Exception).To(Equal(uop.ExcHALT))
		Expect(summary.ARF.ReadGP(2)).To(Equal(uint64(0))) // rcx = gpReg(1) = 2
	})

	It("scenario 3: RIP-relative load reads a known quadword", func() {
		// mov rax, [rip+0x10]; hlt; pad; data
		code := make([]byte, 32)
		copy(code, []byte{
			0x48, 0x8B, 0x05, 0x10, 0x00, 0x00, 0x00, // mov rax, [rip+0x10] (7 bytes)
			0xF4, // hlt (addr 7)
		})
		// next = testEntry+7, target = next+0x10 = testEntry+23.
		dataOff := 23
		want := uint64(0xDEADBEEFCAFEBABE)
		for i := 0; i < 8; i++ {
			code[dataOff+i] = byte(want >> (8 * i))
		}
		s, _, _ := newX64(code)
		summary := s.Run()

		Expect(summary.Halted).To(BeTrue())
		Expect(summary.ARF.ReadGP(1)).To(Equal(want))
	})

	It("scenario 4: self-modifying code redirects fetch after the store commits", func() {
		// mov byte [rip+disp], 0x07   ; patches the very next
		// instruction's immediate byte from 3 to 7 before it retires.
		// mov al, 0x03
		// hlt
		//
		// addr 0: c6 05 <disp32> 07   mov byte [rip+disp], 0x07  (7 bytes)
		// addr 7: b0 03               mov al, 0x03                (2 bytes)
		// addr 9: f4                  hlt
		// disp32 is relative to addr 7 (next after the first instruction);
		// target = addr 7 + 1 = addr 8, the immediate byte of "mov al, imm8".
		code := make([]byte, 16)
		copy(code, []byte{0xC6, 0x05, 0x01, 0x00, 0x00, 0x00, 0x07})
		code[7] = 0xB0
		code[8] = 0x03
		code[9] = 0xF4
		s, _, _ := newX64(code)
		summary := s.Run()

		Expect(summary.Halted).To(BeTrue())
		Expect(summary.FlushCount).To(BeNumerically(">=", 1))
		// al patched from 0x03 to 0x07 before being fetched as an
		// immediate: mov al,0x07 -> rax low byte should read back 7.
		Expect(summary.ARF.ReadGP(1) & 0xFF).To(Equal(uint64(7)))
	})

	It("scenario 5: store/load aliasing through the stack slot", func() {
		// mov rax, 0x2A; mov [rsp-8], rax; mov rbx, [rsp-8]; hlt
		code := []byte{
			0x48, 0xC7, 0xC0, 0x2A, 0x00, 0x00, 0x00, // mov rax, 0x2A
			0x48, 0x89, 0x44, 0x24, 0xF8, // mov [rsp-8], rax
			0x48, 0x8B, 0x5C, 0x24, 0xF8, // mov rbx, [rsp-8]
			0xF4, // hlt
		}
		s, mm, core := newX64(code)
		Expect(mm.MapFrame(0x100000, 0, mem.RWXRead|mem.RWXWrite, "stack")).To(Succeed())
		Expect(mm.MapPage(0x100000, 0x100000, 0, mem.RWXRead|mem.RWXWrite)).To(Succeed())
		const rsp = 5 // gpReg(4): x86 register index 4 is rsp
		core.ARF().WriteGP(rsp, 0x100800)  // somewhere inside the mapped stack page
		summary := s.Run()

		Expect(summary.Halted).To(BeTrue())
		Expect(summary.ARF.ReadGP(4)).To(Equal(uint64(0x2A))) // rbx = gpReg(3) = 4
	})

	It("scenario 6: an undefined opcode halts with UD", func() {
		code := []byte{0x0E}
		s, _, _ := newX64(code)
		summary := s.Run()

		Expect(summary.Halted).To(BeTrue())
		Expect(summary.Exception).To(Equal(uop.ExcUD))
	})

	It("drives the RISC passthrough frontend end to end", func() {
		prog := []uop.Uop{
			uop.New(uop.ClassGP, uop.MnMov, uop.CtrlUseImm|uop.CtrlMopFirst|uop.CtrlMopLast|uop.CtrlRdResize,
				uop.Regs{Rd: 1}, 41),
			uop.New(uop.ClassGP, uop.MnAdd, uop.CtrlUseRA|uop.CtrlUseImm|uop.CtrlMopFirst|uop.CtrlMopLast|uop.CtrlRdResize,
				uop.Regs{Ra: 1, Rd: 1}, 1),
			uop.New(uop.ClassCtrl, uop.MnHalt, uop.CtrlMopFirst|uop.CtrlMopLast, uop.Regs{}, 0),
		}
		s, _, _ := newRisc(prog)
		summary := s.Run()

		Expect(summary.Halted).To(BeTrue())
		Expect(summary.ARF.ReadGP(1)).To(Equal(uint64(42)))
		Expect(summary.Committed).To(Equal(uint64(3)))
	})
})

package x64

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/archlab/uopsim/uop"
)

func TestX64Internal(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "x64 internal Suite")
}

// feedAll drives a fresh Partial through every byte, returning it once
// Feed reports completion. It fails the test if completion never comes.
func feedAll(bytes ...byte) *Partial {
	p := NewPartial(0x1000)
	for i, b := range bytes {
		done := p.Feed(b)
		if done {
			ExpectWithOffset(1, i).To(Equal(len(bytes) - 1))
			return p
		}
	}
	Fail("instruction never completed")
	return nil
}

var _ = Describe("Partial predecode state machine", func() {
	It("completes a REX+ModRM register-direct instruction with no disp/imm", func() {
		// 48 01 C0: REX.W add eax,eax (Ev,Gv; mod=11,reg=0,rm=0)
		p := feedAll(0x48, 0x01, 0xC0)
		Expect(p.Done()).To(BeTrue())
		Expect(p.invalid).To(BeFalse())
		Expect(p.mod).To(Equal(byte(3)))
		Expect(p.Len()).To(Equal(3))
	})

	It("decodes a disp8 SIB-addressed operand byte by byte, across any split", func() {
		// 48 89 44 24 F8: mov [rsp-8], rax
		bytes := []byte{0x48, 0x89, 0x44, 0x24, 0xF8}
		p := NewPartial(0x2000)
		var done bool
		for _, b := range bytes {
			done = p.Feed(b)
		}
		Expect(done).To(BeTrue())
		Expect(p.haveSIB).To(BeTrue())
		Expect(p.mod).To(Equal(byte(1)))
		Expect(p.dispValue()).To(Equal(int32(-8)))
		Expect(p.Len()).To(Equal(5))
	})

	It("recognizes RIP-relative addressing with no base register", func() {
		// 48 8B 05 10 00 00 00: mov rax, [rip+0x10]
		p := feedAll(0x48, 0x8B, 0x05, 0x10, 0x00, 0x00, 0x00)
		Expect(p.ripRel).To(BeTrue())
		Expect(p.haveSIB).To(BeFalse())
		Expect(p.dispValue()).To(Equal(int32(0x10)))
	})

	It("sign-extends a negative disp8 and a negative imm8", func() {
		// 48 83 C0 FF: add rax, -1
		p := feedAll(0x48, 0x83, 0xC0, 0xFF)
		Expect(p.immValue()).To(Equal(int64(-1)))
	})

	It("flags an unrecognized one-byte opcode as invalid after a single byte", func() {
		p := NewPartial(0x3000)
		Expect(p.Feed(0x0E)).To(BeTrue())
		Expect(p.Done()).To(BeTrue())
		Expect(p.invalid).To(BeTrue())
		Expect(p.Len()).To(Equal(1))
	})

	It("folds REX.B into a ModR/M rm field selecting an extended register", func() {
		// 49 FF C0: REX.WB inc r8 (mod=11,reg=000/inc,rm=000|REX.B=r8)
		p := feedAll(0x49, 0xFF, 0xC0)
		Expect(p.rm).To(Equal(byte(0x8))) // r8 = gpReg(0|REX.B)
	})
})

var _ = Describe("x86 condition code mapping", func() {
	It("maps the jcc nibbles this simulator supports", func() {
		cases := map[byte]uop.Cond{
			0x4: uop.CondEQ,
			0x5: uop.CondNE,
			0xC: uop.CondLT,
			0xD: uop.CondGE,
			0xE: uop.CondLE,
			0xF: uop.CondGT,
		}
		for cc, want := range cases {
			got, ok := x86CondToUop(cc)
			Expect(ok).To(BeTrue(), "cc %x should map", cc)
			Expect(got).To(Equal(want))
		}
	})

	It("declines JBE/JA and parity, which have no matching borrow-true Cond", func() {
		for _, cc := range []byte{0x6, 0x7, 0xA, 0xB} {
			_, ok := x86CondToUop(cc)
			Expect(ok).To(BeFalse(), "cc %x should be declined", cc)
		}
	})
})

var _ = Describe("crack", func() {
	var f *Frontend

	BeforeEach(func() {
		f = &Frontend{}
	})

	It("cracks mov r64, imm32 into a single mov-immediate uop", func() {
		// 48 C7 C0 05 00 00 00: mov rax, 5
		p := feedAll(0x48, 0xC7, 0xC0, 0x05, 0x00, 0x00, 0x00)
		bundle, ok := f.crack(p, p.Addr+uint64(p.Len()))
		Expect(ok).To(BeTrue())
		Expect(bundle).To(HaveLen(1))
		Expect(bundle[0].Mnemonic).To(Equal(uop.MnMov))
		Expect(bundle[0].Imm).To(Equal(uint64(5)))
		Expect(bundle[0].Regs.Rd).To(Equal(gpReg(0)))
	})

	It("cracks a register-direct add into one ALU uop", func() {
		// 48 01 D8: add rax, rbx
		p := feedAll(0x48, 0x01, 0xD8)
		bundle, ok := f.crack(p, p.Addr+uint64(p.Len()))
		Expect(ok).To(BeTrue())
		Expect(bundle).To(HaveLen(1))
		Expect(bundle[0].Mnemonic).To(Equal(uop.MnAdd))
		Expect(bundle[0].Regs.Ra).To(Equal(gpReg(0)))
		Expect(bundle[0].Regs.Rb).To(Equal(gpReg(3)))
	})

	It("cracks a memory-destination arith op into lda/ld/alu/lda/st", func() {
		// 48 01 03: add [rbx], rax (mod=00,reg=rax,rm=rbx)
		p := feedAll(0x48, 0x01, 0x03)
		bundle, ok := f.crack(p, p.Addr+uint64(p.Len()))
		Expect(ok).To(BeTrue())
		Expect(bundle).To(HaveLen(5))
		Expect(bundle[0].Mnemonic).To(Equal(uop.MnLda))
		Expect(bundle[1].Mnemonic).To(Equal(uop.MnLd64))
		Expect(bundle[2].Mnemonic).To(Equal(uop.MnAdd))
		Expect(bundle[3].Mnemonic).To(Equal(uop.MnLda))
		Expect(bundle[4].Mnemonic).To(Equal(uop.MnSt64))
	})

	It("packs a jcc's condition and displacement without corrupting either", func() {
		// 75 FB: jnz -5
		p := feedAll(0x75, 0xFB)
		next := p.Addr + uint64(p.Len())
		bundle, ok := f.crack(p, next)
		Expect(ok).To(BeTrue())
		Expect(bundle).To(HaveLen(1))
		u := bundle[0]
		Expect(uop.Cond((u.Imm >> 60) & 0xF)).To(Equal(uop.CondNE))
		disp := int64(int32(uint32(u.Imm)))
		Expect(uint64(p.Addr) + uint64(disp)).To(Equal(next - 5))
	})

	It("folds the rip-relative fold into loadOperand, not just lea", func() {
		// 48 8B 05 10 00 00 00: mov rax, [rip+0x10]
		p := feedAll(0x48, 0x8B, 0x05, 0x10, 0x00, 0x00, 0x00)
		next := p.Addr + uint64(p.Len())
		bundle, ok := f.crack(p, next)
		Expect(ok).To(BeTrue())
		Expect(bundle).To(HaveLen(3))
		Expect(bundle[0].Mnemonic).To(Equal(uop.MnLda))
		Expect(bundle[0].Imm).To(Equal(next + 0x10))
		Expect(bundle[2].Mnemonic).To(Equal(uop.MnMov))
	})

	It("rejects an unmapped opcode byte", func() {
		p := NewPartial(0x4000)
		p.Feed(0x0E)
		_, ok := f.crack(p, p.Addr+uint64(p.Len()))
		Expect(ok).To(BeFalse())
	})
})

package uop_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/archlab/uopsim/uop"
)

func TestUop(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Uop Suite")
}

var _ = Describe("Uop encoding", func() {
	It("round-trips opcode class/mnemonic", func() {
		op := uop.EncodeOpcode(uop.ClassGP, uop.MnAdd)
		class, mn := uop.DecodeOpcode(op)
		Expect(class).To(Equal(uop.ClassGP))
		Expect(mn).To(Equal(uop.MnAdd))
	})

	It("decodes op-size as a power of two capped at 64", func() {
		control := uop.WithOpSize(0, 8)
		Expect(uop.OpSize(control)).To(Equal(8))

		control = uop.WithOpSize(0, 200)
		Expect(uop.OpSize(control)).To(Equal(64))
	})

	It("exposes control-bit predicates", func() {
		u := uop.New(uop.ClassGP, uop.MnAdd, uop.CtrlUseRA|uop.CtrlUseRB|uop.CtrlSetCond, uop.Regs{Ra: 1, Rb: 2, Rd: 3}, 0)
		Expect(u.UseRA()).To(BeTrue())
		Expect(u.UseRB()).To(BeTrue())
		Expect(u.UseRC()).To(BeFalse())
		Expect(u.SetCond()).To(BeTrue())
	})

	It("clears UseRC when RcDest is set", func() {
		u := uop.New(uop.ClassGP, uop.MnSt64, uop.CtrlUseRC|uop.CtrlRcDest, uop.Regs{}, 0)
		Expect(u.UseRC()).To(BeFalse())
		Expect(u.RcDest()).To(BeTrue())
	})

	It("classifies load/store/branch mnemonics", func() {
		Expect(uop.New(uop.ClassGP, uop.MnLd64, 0, uop.Regs{}, 0).IsLoad()).To(BeTrue())
		Expect(uop.New(uop.ClassGP, uop.MnSt64, 0, uop.Regs{}, 0).IsStore()).To(BeTrue())
		Expect(uop.New(uop.ClassGP, uop.MnJcc, 0, uop.Regs{}, 0).IsBranch()).To(BeTrue())
	})
})

var _ = Describe("Exception words", func() {
	It("packs and unpacks code and error payload", func() {
		w := uop.NewWord(uop.ExcPF, uop.PFPresent|uop.PFWrite)
		Expect(w.Code()).To(Equal(uop.ExcPF))
		Expect(w.ErrCode()).To(Equal(uop.PFPresent | uop.PFWrite))
		Expect(w.IsNone()).To(BeFalse())
	})

	It("builds a synthetic int uop carrying the exception", func() {
		u := uop.Int(uop.ExcUD, 0)
		Expect(u.Mnemonic).To(Equal(uop.MnInt))
		Expect(uop.ExceptionOf(u).Code()).To(Equal(uop.ExcUD))
	})
})

var _ = Describe("Condition evaluation", func() {
	It("evaluates EQ/NE from the zero flag", func() {
		Expect(uop.Eval(uop.CondEQ, uop.Flags{Z: true})).To(BeTrue())
		Expect(uop.Eval(uop.CondNE, uop.Flags{Z: true})).To(BeFalse())
	})

	It("evaluates GE/LT from N/V", func() {
		Expect(uop.Eval(uop.CondGE, uop.Flags{N: true, V: true})).To(BeTrue())
		Expect(uop.Eval(uop.CondLT, uop.Flags{N: true, V: true})).To(BeFalse())
	})

	It("always takes AL", func() {
		Expect(uop.Eval(uop.CondAL, uop.Flags{})).To(BeTrue())
	})
})

var _ = Describe("Table", func() {
	var tbl *uop.Table

	BeforeEach(func() {
		tbl = uop.NewTable(nil)
	})

	It("resolves a known mnemonic's port mask and FU type", func() {
		e, ok := tbl.Lookup(uop.MnAdd)
		Expect(ok).To(BeTrue())
		Expect(e.FU).To(Equal(uop.FUAlu))
	})

	It("fails lookup for MnUnknown, triggering UD at decode", func() {
		_, ok := tbl.Lookup(uop.MnUnknown)
		Expect(ok).To(BeFalse())
	})

	It("masks control bits a mnemonic may not carry", func() {
		e, _ := tbl.Lookup(uop.MnNot)
		masked := e.MaskControl(uop.CtrlSetCond | uop.CtrlUseRA)
		Expect(masked & uop.CtrlSetCond).To(BeZero())
		Expect(masked & uop.CtrlUseRA).NotTo(BeZero())
	})
})

var _ = Describe("LatencyConfig", func() {
	It("validates min <= max for divide latency", func() {
		cfg := uop.DefaultLatencyConfig()
		Expect(cfg.Validate()).To(Succeed())

		cfg.DivideMin = cfg.DivideMax + 1
		Expect(cfg.Validate()).NotTo(Succeed())
	})
})

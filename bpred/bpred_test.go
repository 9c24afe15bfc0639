package bpred_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/archlab/uopsim/bpred"
)

func TestBpred(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Bpred Suite")
}

var _ = Describe("BTB", func() {
	var p *bpred.BTB

	BeforeEach(func() {
		p = bpred.New(bpred.Config{BHTSize: 16, BTBSize: 8})
	})

	It("is initially biased taken", func() {
		pred := p.Predict(0x1000, 0x1004, 0, false)
		Expect(pred.Taken).To(BeTrue())
	})

	It("does not know a target until the BTB is trained", func() {
		pred := p.Predict(0x1000, 0x1004, 0, false)
		Expect(pred.TargetKnown).To(BeFalse())
	})

	It("learns an always-taken pattern and remembers the target", func() {
		pc, target := uint64(0x1000), uint64(0x2000)
		for i := 0; i < 10; i++ {
			p.Update(pc, target, true)
		}
		pred := p.Predict(pc, pc+4, 0, false)
		Expect(pred.Taken).To(BeTrue())
		Expect(pred.TargetKnown).To(BeTrue())
		Expect(pred.Target).To(Equal(target))
	})

	It("learns an always-not-taken pattern", func() {
		pc := uint64(0x1000)
		for i := 0; i < 10; i++ {
			p.Update(pc, 0, false)
		}
		pred := p.Predict(pc, pc+4, 0, false)
		Expect(pred.Taken).To(BeFalse())
	})

	It("predicts a backward hinted target taken on a BTB miss", func() {
		pred := p.Predict(0x2000, 0x2004, 0x1000, true)
		Expect(pred.Taken).To(BeTrue())
		Expect(pred.Target).To(Equal(uint64(0x1000)))
	})

	It("tracks accuracy and misprediction rate", func() {
		p.Update(0x1000, 0x2000, true)
		p.Update(0x1000, 0x2000, true)
		stats := p.Stats()
		Expect(stats.Correct + stats.Mispredictions).To(Equal(uint64(2)))
	})

	It("resets state and statistics", func() {
		p.Update(0x1000, 0x2000, true)
		p.Reset()
		Expect(p.Stats()).To(Equal(bpred.Stats{}))
	})
})

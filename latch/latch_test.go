package latch_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/archlab/uopsim/latch"
)

func TestLatch(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Latch Suite")
}

var _ = Describe("Latch", func() {
	var l *latch.Latch[int]

	BeforeEach(func() {
		l = latch.New[int](2)
	})

	It("reports Empty on an empty latch", func() {
		_, outcome := l.Front(0)
		Expect(outcome).To(Equal(latch.Empty))
	})

	It("reports Stall before the ready cycle and Ok after", func() {
		Expect(l.PushBack(5, 42)).To(BeTrue())

		_, outcome := l.Front(3)
		Expect(outcome).To(Equal(latch.Stall))

		v, outcome := l.Front(5)
		Expect(outcome).To(Equal(latch.Ok))
		Expect(v).To(Equal(42))
	})

	It("reports Full at capacity", func() {
		Expect(l.PushBack(0, 1)).To(BeTrue())
		Expect(l.PushBack(0, 2)).To(BeTrue())
		Expect(l.Full()).To(BeTrue())
		Expect(l.PushBack(0, 3)).To(BeFalse())
	})

	It("pops in FIFO order", func() {
		l.PushBack(0, 1)
		l.PushBack(0, 2)
		v, _ := l.Front(0)
		Expect(v).To(Equal(1))
		l.PopFront()
		v, _ = l.Front(0)
		Expect(v).To(Equal(2))
	})

	It("pushes to the front for exception injection", func() {
		l.PushBack(0, 1)
		l.PushFront(0, 99)
		v, _ := l.Front(0)
		Expect(v).To(Equal(99))
	})

	It("exposes only the visible prefix via At", func() {
		l2 := latch.New[int](0)
		l2.PushBack(0, 1)
		l2.PushBack(10, 2)
		Expect(l2.VisibleLen(0)).To(Equal(1))
		_, outcome := l2.At(0, 1)
		Expect(outcome).To(Equal(latch.Empty))
		Expect(l2.VisibleLen(10)).To(Equal(2))
	})

	It("clears all entries", func() {
		l.PushBack(0, 1)
		l.Clear()
		Expect(l.Len()).To(Equal(0))
	})
})

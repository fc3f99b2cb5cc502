package event_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/elements/event"
)

var _ = Describe("Mask", func() {
	It("reports membership per bit", func() {
		m := event.Read | event.Write

		Expect(m.Has(event.Read)).To(BeTrue())
		Expect(m.Has(event.Write)).To(BeTrue())
		Expect(m.Has(event.Error)).To(BeFalse())
		Expect(m.Has(event.Linger)).To(BeFalse())
	})

	It("renders a compact string", func() {
		Expect((event.Read | event.Write).String()).To(Equal("RW"))
		Expect(event.Mask(0).String()).To(Equal("-"))
		Expect(event.Linger.String()).To(Equal("L"))
	})
})

var _ = Describe("New", func() {
	It("selects the poll backend explicitly", func() {
		b, err := event.New(event.Poll)
		Expect(err).To(BeNil())
		Expect(b.Name()).To(Equal(event.Poll))
		Expect(b.Close()).To(Succeed())
	})

	It("selects the select backend explicitly", func() {
		b, err := event.New(event.Select)
		Expect(err).To(BeNil())
		Expect(b.Name()).To(Equal(event.Select))
		Expect(b.Close()).To(Succeed())
	})

	It("falls back through the priority list on auto", func() {
		b, err := event.New(event.Auto)
		Expect(err).To(BeNil())
		Expect(b).NotTo(BeNil())
		Expect(b.Close()).To(Succeed())
	})

	It("rejects an unknown backend name", func() {
		_, err := event.New(event.Name("bogus"))
		Expect(err).NotTo(BeNil())
	})
})

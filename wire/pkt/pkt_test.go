package pkt_test

import (
	"math"

	"github.com/hobgoblin-net/spempe/wire/pkt"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Packet codec", func() {
	It("round-trips every primitive type", func() {
		p := pkt.New()
		p.AppendI8(-1)
		p.AppendU8(0xFE)
		p.AppendI16(-1234)
		p.AppendU16(0xBEEF)
		p.AppendI32(-123456789)
		p.AppendU32(0xDEADBEEF)
		p.AppendI64(-1)
		p.AppendU64(0xFFFFFFFFFFFFFFFF)
		p.AppendF32(3.14)
		p.AppendF64(math.Pi)
		p.AppendBool(true)
		p.AppendBool(false)
		p.AppendString("čćšđž")

		Expect(p.ExtractI8()).To(Equal(int8(-1)))
		Expect(p.ExtractU8()).To(Equal(uint8(0xFE)))
		Expect(p.ExtractI16()).To(Equal(int16(-1234)))
		Expect(p.ExtractU16()).To(Equal(uint16(0xBEEF)))
		Expect(p.ExtractI32()).To(Equal(int32(-123456789)))
		Expect(p.ExtractU32()).To(Equal(uint32(0xDEADBEEF)))
		Expect(p.ExtractI64()).To(Equal(int64(-1)))
		Expect(p.ExtractU64()).To(Equal(uint64(0xFFFFFFFFFFFFFFFF)))
		Expect(p.ExtractF32()).To(Equal(float32(3.14)))
		Expect(p.ExtractF64()).To(Equal(math.Pi))
		Expect(p.ExtractBool()).To(BeTrue())
		Expect(p.ExtractBool()).To(BeFalse())
		Expect(p.ExtractString()).To(Equal("čćšđž"))
		Expect(p.IsValid()).To(BeTrue())
		Expect(p.Remaining()).To(Equal(0))
	})

	It("round-trips nested packets (S5)", func() {
		inner := pkt.New()
		inner.AppendBool(true)

		outer := pkt.New()
		outer.AppendI8(-1)
		outer.AppendU32(0xDEADBEEF)
		outer.AppendF64(math.Pi)
		outer.AppendString("čćšđž")
		outer.AppendPacket(inner)

		Expect(outer.ExtractI8()).To(Equal(int8(-1)))
		Expect(outer.ExtractU32()).To(Equal(uint32(0xDEADBEEF)))
		Expect(outer.ExtractF64()).To(Equal(math.Pi))
		Expect(outer.ExtractString()).To(Equal("čćšđž"))

		got := outer.ExtractPacket()
		Expect(got).NotTo(BeNil())
		Expect(got.ExtractBool()).To(BeTrue())
		Expect(outer.IsValid()).To(BeTrue())
	})

	It("latches invalid on extraction underrun and stays latched across reads", func() {
		p := pkt.New()
		p.AppendU8(1)

		Expect(p.ExtractU32()).To(Equal(uint32(0))) // underrun: 1 byte remains, need 4
		Expect(p.IsValid()).To(BeFalse())

		// every subsequent read is a no-op returning a zeroed value
		Expect(p.ExtractU8()).To(Equal(uint8(0)))
		Expect(p.ExtractString()).To(Equal(""))
		Expect(p.ExtractBool()).To(BeFalse())
	})

	It("recovers validity only via Clear", func() {
		p := pkt.New()
		_ = p.ExtractU32()
		Expect(p.IsValid()).To(BeFalse())
		p.Clear()
		Expect(p.IsValid()).To(BeTrue())
		Expect(p.Len()).To(Equal(0))
	})

	It("reports PacketInvalid at exactly zero remaining bytes", func() {
		p := pkt.New()
		p.AppendU8(7)
		Expect(p.ExtractU8()).To(Equal(uint8(7)))
		Expect(p.Remaining()).To(Equal(0))

		Expect(p.ExtractU8()).To(Equal(uint8(0)))
		Expect(p.IsValid()).To(BeFalse())
	})

	It("throwing facade surfaces an error instead of latching silently", func() {
		p := pkt.New()
		th := pkt.Throw(p)
		_, err := th.U32()
		Expect(err).To(MatchError(pkt.ErrInvalid))
	})

	It("throwing facade returns values on success", func() {
		p := pkt.New()
		p.AppendString("hello")
		th := pkt.Throw(p)
		s, err := th.String()
		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(Equal("hello"))
	})
})

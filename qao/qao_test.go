package qao_test

import (
	"errors"

	"github.com/hobgoblin-net/spempe/qao"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

type fakeObj struct {
	name      string
	mask      qao.EventMask
	log       *[]string
	destroyed *bool
	onEvent   func(ev qao.Event) error
}

func (f *fakeObj) Name() string            { return f.name }
func (f *fakeObj) EventMask() qao.EventMask { return f.mask }
func (f *fakeObj) OnEvent(ev qao.Event) error {
	*f.log = append(*f.log, f.name+":"+ev.String())
	if f.onEvent != nil {
		return f.onEvent(ev)
	}
	return nil
}
func (f *fakeObj) OnDestroy() {
	*f.log = append(*f.log, f.name+":destroy")
	if f.destroyed != nil {
		*f.destroyed = true
	}
}

func runUpdateStep(rt *qao.Runtime) {
	rt.StartStep()
	for {
		done, err := rt.AdvanceStep(qao.MaskUpdate)
		Expect(err).NotTo(HaveOccurred())
		if done {
			break
		}
	}
}

var _ = Describe("Runtime", func() {
	var log []string

	BeforeEach(func() { log = nil })

	It("runs non-draw phases in priority order, FIFO on ties", func() {
		rt := qao.New()
		rt.AddObject(&fakeObj{name: "low", mask: qao.MaskUpdate, log: &log}, 0, true)
		rt.AddObject(&fakeObj{name: "first-at-10", mask: qao.MaskUpdate, log: &log}, 10, true)
		rt.AddObject(&fakeObj{name: "second-at-10", mask: qao.MaskUpdate, log: &log}, 10, true)

		runUpdateStep(rt)

		Expect(log[0]).To(Equal("first-at-10:START_FRAME"))
		Expect(log[1]).To(Equal("second-at-10:START_FRAME"))
		Expect(log[2]).To(Equal("low:START_FRAME"))
	})

	It("runs draw phases in reverse priority order", func() {
		rt := qao.New()
		rt.AddObject(&fakeObj{name: "background", mask: qao.MaskDraw, log: &log}, 10, true)
		rt.AddObject(&fakeObj{name: "hud", mask: qao.MaskDraw, log: &log}, 0, true)
		rt.StartStep()

		for {
			done, err := rt.AdvanceStep(qao.MaskDraw)
			Expect(err).NotTo(HaveOccurred())
			if done {
				break
			}
		}

		Expect(log[0]).To(Equal("hud:PRE_DRAW"))
		Expect(log[1]).To(Equal("background:PRE_DRAW"))
	})

	It("does not invalidate the traversal cursor when an object removes another mid-phase", func() {
		rt := qao.New()
		var victimHandle qao.Handle
		a := &fakeObj{name: "a", mask: qao.MaskUpdate, log: &log}
		b := &fakeObj{name: "b", mask: qao.MaskUpdate, log: &log}
		a.onEvent = func(ev qao.Event) error {
			if ev == qao.EvStartFrame {
				rt.RemoveObject(victimHandle)
			}
			return nil
		}
		rt.AddObject(a, 10, true)
		victimHandle = rt.AddObject(b, 5, true)

		runUpdateStep(rt)

		count := 0
		for _, l := range log {
			if l == "b:START_FRAME" {
				count++
			}
		}
		Expect(count).To(Equal(1), "b must still run the phase already in flight when it was marked for removal")

		log = nil
		runUpdateStep(rt)
		Expect(log).NotTo(ContainElement("b:START_FRAME"), "removal takes effect by the next step")
	})

	It("aborts the phase on handler error without running later objects", func() {
		rt := qao.New()
		boom := errors.New("boom")
		first := &fakeObj{name: "first", mask: qao.MaskUpdate, log: &log, onEvent: func(ev qao.Event) error {
			if ev == qao.EvStartFrame {
				return boom
			}
			return nil
		}}
		second := &fakeObj{name: "second", mask: qao.MaskUpdate, log: &log}
		rt.AddObject(first, 10, true)
		rt.AddObject(second, 5, true)
		rt.StartStep()

		done, err := rt.AdvanceStep(qao.MaskUpdate)
		Expect(err).To(HaveOccurred())
		Expect(done).To(BeFalse())
		Expect(log).To(Equal([]string{"first:START_FRAME"}))
	})

	It("destroys all owned objects in reverse insertion order and fires OnDestroy", func() {
		rt := qao.New()
		var d1, d2 bool
		rt.AddObject(&fakeObj{name: "one", mask: 0, log: &log, destroyed: &d1}, 0, true)
		rt.AddObject(&fakeObj{name: "two", mask: 0, log: &log, destroyed: &d2}, 0, true)
		rt.DestroyAllOwned()

		Expect(d1).To(BeTrue())
		Expect(d2).To(BeTrue())
		Expect(log).To(Equal([]string{"two:destroy", "one:destroy"}))
		Expect(rt.Find("one")).To(BeNil())
		Expect(rt.Find("two")).To(BeNil())
	})

	It("Find returns a newly added object even before the next phase boundary", func() {
		rt := qao.New()
		rt.AddObject(&fakeObj{name: "fresh", mask: 0, log: &log}, 0, true)
		Expect(rt.Find("fresh")).NotTo(BeNil())
	})
})

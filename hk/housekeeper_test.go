package hk_test

import (
	"time"

	"github.com/hobgoblin-net/spempe/hk"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Housekeeper", func() {
	AfterEach(func() {
		hk.Unreg("once" + hk.NameSuffix)
		hk.Unreg("repeat" + hk.NameSuffix)
	})

	It("should run a one-shot cleanup exactly once", func() {
		calls := make(chan struct{}, 4)
		hk.Reg("once"+hk.NameSuffix, func() time.Duration {
			calls <- struct{}{}
			return 0
		}, time.Millisecond)

		Eventually(calls).Should(Receive())
		Consistently(calls, 200*time.Millisecond).ShouldNot(Receive())
	})

	It("should reschedule a repeating cleanup", func() {
		calls := make(chan struct{}, 8)
		hk.Reg("repeat"+hk.NameSuffix, func() time.Duration {
			calls <- struct{}{}
			return 30 * time.Millisecond
		}, time.Millisecond)

		for i := 0; i < 3; i++ {
			Eventually(calls, time.Second).Should(Receive())
		}
	})

	It("should stop firing once unregistered", func() {
		calls := make(chan struct{}, 8)
		hk.Reg("once"+hk.NameSuffix, func() time.Duration {
			calls <- struct{}{}
			return 20 * time.Millisecond
		}, time.Millisecond)
		Eventually(calls, time.Second).Should(Receive())
		hk.Unreg("once" + hk.NameSuffix)

		for len(calls) > 0 {
			<-calls
		}
		Consistently(calls, 150*time.Millisecond).ShouldNot(Receive())
	})
})

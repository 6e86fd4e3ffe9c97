package execqueue_test

import (
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/scusemua/exec-node-slots/internal/execqueue"
)

var _ = Describe("Queue", func() {
	It("runs Submit synchronously from the caller's perspective", func() {
		q := execqueue.New(4)
		defer q.Close()

		var ran bool
		q.Submit(func() { ran = true })
		Expect(ran).To(BeTrue())
	})

	It("totally orders every posted task", func() {
		q := execqueue.New(4)
		defer q.Close()

		var order []int
		var mu int32

		for i := 0; i < 50; i++ {
			i := i
			q.Go(func() {
				atomic.AddInt32(&mu, 1)
				order = append(order, i)
			})
		}

		q.Submit(func() {})

		Expect(order).To(HaveLen(50))
		for i, v := range order {
			Expect(v).To(Equal(i))
		}
	})

	It("fires AfterFunc callbacks on the executor after roughly the requested delay", func() {
		q := execqueue.New(4)
		defer q.Close()

		done := make(chan struct{})
		q.AfterFunc(10*time.Millisecond, func() { close(done) })

		select {
		case <-done:
		case <-time.After(500 * time.Millisecond):
			Fail("AfterFunc callback did not fire in time")
		}
	})

	It("drops tasks posted after Close without panicking", func() {
		q := execqueue.New(1)
		q.Close()

		Expect(func() { q.Go(func() {}) }).NotTo(Panic())
	})
})

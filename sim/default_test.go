package sim

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Default scheduler", func() {
	BeforeEach(func() {
		Reset()
	})

	It("should start every run from a clean state", func() {
		Activate(ProcessFunc(func() {
			Sleep(40)
		}))
		Activate(ProcessFunc(func() {
			WaitUntil(func() bool { return false })
		}))
		Expect(Simulate()).To(Succeed())
		Expect(Now()).To(Equal(VTimeInSec(40)))
		Expect(Current().Pending()).To(Equal(1))

		old := Current()
		Reset()

		Expect(Current()).NotTo(BeIdenticalTo(old))
		Expect(Now()).To(Equal(VTimeInSec(0)))
		Expect(Current().Pending()).To(Equal(0))
		Expect(Current().Processes()).To(BeEmpty())
		Expect(old.Run()).To(MatchError(ErrClosed))
	})

	It("should finish releasing the previous run before Reset returns", func() {
		shared := 0
		Activate(ProcessFunc(func() {
			defer func() {
				time.Sleep(20 * time.Millisecond)
				shared = 1
			}()
			WaitUntil(func() bool { return false })
		}))
		Expect(Simulate()).To(Succeed())

		Reset()

		var seen int
		Activate(ProcessFunc(func() { seen = shared }))
		Expect(Simulate()).To(Succeed())
		Expect(seen).To(Equal(1))
	})

	It("should number processes from one after a reset", func() {
		p := Activate(ProcessFunc(func() {}))
		Expect(p.Name()).To(Equal("proc-1"))

		Reset()

		p = Activate(ProcessFunc(func() {}))
		Expect(p.Name()).To(Equal("proc-1"))
	})

	It("should not allow a reset from inside a running process", func() {
		Activate(ProcessFunc(func() { Reset() }))

		Expect(func() { _ = Simulate() }).
			To(PanicWith(MatchError(ErrAlreadyRunning)))
	})

	It("should run processes with the absolute and relative delays", func() {
		var times []VTimeInSec
		record := ProcessFunc(func() { times = append(times, Now()) })

		Activate(record, At(3))
		Activate(record, After(1))
		Activate(ProcessFunc(func() {
			SleepUntil(2)
			times = append(times, Now())
		}))

		Expect(Simulate()).To(Succeed())
		Expect(times).To(Equal([]VTimeInSec{1, 2, 3}))
	})
})

package sim

import (
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/procsim/instrumentation/hooking"
)

type tracer struct {
	s     *Scheduler
	lines []string
}

func (t *tracer) log(label string) {
	t.lines = append(t.lines, fmt.Sprintf("%s@%g", label, float64(t.s.Now())))
}

// buildRoundRobin activates the three-process scenario used in several
// specs: a slow ticker, a fast ticker that raises a flag after its last tick,
// and a waiter on the flag.
func buildRoundRobin(s *Scheduler, t *tracer) {
	flag := false

	s.Activate(ProcessFunc(func() {
		for i := 0; i < 10; i++ {
			if i > 0 {
				s.Sleep(10)
			}
			t.log("A")
		}
	}), WithName("A"))

	s.Activate(ProcessFunc(func() {
		for i := 0; i < 10; i++ {
			if i > 0 {
				s.Sleep(2)
			}
			t.log("B")
		}
		flag = true
	}), WithName("B"))

	s.Activate(ProcessFunc(func() {
		s.WaitUntil(func() bool { return flag })
		t.log("C")
	}), WithName("C"))
}

var _ = Describe("Scheduler", func() {
	var (
		mockCtrl *gomock.Controller
		s        *Scheduler
		t        *tracer
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		s = NewScheduler()
		t = &tracer{s: s}
	})

	AfterEach(func() {
		Expect(s.Close()).To(Succeed())
		mockCtrl.Finish()
	})

	It("should return immediately when nothing is activated", func() {
		Expect(s.Run()).To(Succeed())
		Expect(s.Now()).To(Equal(VTimeInSec(0)))
	})

	It("should run an activated process at the current time", func() {
		proc := NewMockProcess(mockCtrl)
		proc.EXPECT().Main().Do(func() {
			Expect(s.Now()).To(Equal(VTimeInSec(0)))
		})

		p := s.Activate(proc)
		Expect(p.State()).To(Equal(ProcReady))

		Expect(s.Run()).To(Succeed())
		Expect(p.State()).To(Equal(ProcTerminated))
		Expect(p.Resumptions()).To(Equal(uint64(1)))
	})

	It("should run ready processes before advancing the clock", func() {
		s.Activate(ProcessFunc(func() {
			t.log("first")
			s.Sleep(5)
			t.log("first")
		}))
		s.Activate(ProcessFunc(func() { t.log("second") }))

		Expect(s.Run()).To(Succeed())
		Expect(t.lines).To(Equal([]string{"first@0", "second@0", "first@5"}))
	})

	It("should resume after exactly the slept duration", func() {
		s.Activate(ProcessFunc(func() {
			s.Sleep(3)
			s.Sleep(0.25)
			start := s.Now()
			s.Sleep(1e6)
			Expect(s.Now()).To(Equal(start + 1e6))
		}))

		Expect(s.Run()).To(Succeed())
		Expect(s.Now()).To(Equal(VTimeInSec(3.25 + 1e6)))
	})

	It("should not suspend when sleeping for zero", func() {
		s.Activate(ProcessFunc(func() {
			t.log("A")
			s.Sleep(0)
			s.SleepUntil(s.Now())
			t.log("A")
		}))
		s.Activate(ProcessFunc(func() { t.log("B") }))

		Expect(s.Run()).To(Succeed())
		Expect(t.lines).To(Equal([]string{"A@0", "A@0", "B@0"}))
	})

	It("should jump the clock straight to the next wake time", func() {
		advances := []VTimeInSec{}
		s.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			if ctx.Pos == HookPosTimeAdvance {
				advances = append(advances, ctx.Item.(VTimeInSec))
			}
		}))

		s.Activate(ProcessFunc(func() { s.SleepUntil(1000) }))
		s.Activate(ProcessFunc(func() { s.SleepUntil(7) }))

		Expect(s.Run()).To(Succeed())
		Expect(advances).To(Equal([]VTimeInSec{7, 1000}))
	})

	Context("when activating with a delay", func() {
		It("should start at the absolute time", func() {
			s.Activate(ProcessFunc(func() { t.log("late") }), At(20))
			s.Activate(ProcessFunc(func() { t.log("early") }))

			Expect(s.Run()).To(Succeed())
			Expect(t.lines).To(Equal([]string{"early@0", "late@20"}))
		})

		It("should start after the relative delay from first scheduling", func() {
			s.Activate(ProcessFunc(func() {
				s.Sleep(4)
				s.Activate(ProcessFunc(func() { t.log("child") }), After(6))
			}))

			Expect(s.Run()).To(Succeed())
			Expect(t.lines).To(Equal([]string{"child@10"}))
		})

		It("should apply the absolute delay before the relative one", func() {
			s.Activate(ProcessFunc(func() { t.log("p") }), At(5), After(2))

			Expect(s.Run()).To(Succeed())
			Expect(t.lines).To(Equal([]string{"p@7"}))
		})

		It("should report delayed processes as waiting until they start", func() {
			atProc := s.Activate(ProcessFunc(func() {}), At(5))
			afterProc := s.Activate(ProcessFunc(func() {}), After(3))
			nowProc := s.Activate(ProcessFunc(func() {}), At(0), After(0))

			Expect(atProc.State()).To(Equal(ProcWaiting))
			Expect(afterProc.State()).To(Equal(ProcWaiting))
			Expect(nowProc.State()).To(Equal(ProcReady))

			Expect(s.Run()).To(Succeed())
			Expect(atProc.State()).To(Equal(ProcTerminated))
			Expect(afterProc.State()).To(Equal(ProcTerminated))
		})

		It("should panic on a negative delay", func() {
			Expect(func() {
				s.Activate(ProcessFunc(func() {}), After(-1))
			}).To(PanicWith(MatchError(ErrNegativeDuration)))
		})
	})

	Context("when waiting on conditions", func() {
		It("should resume the waiter at the time the flag is raised", func() {
			buildRoundRobin(s, t)

			Expect(s.Run()).To(Succeed())

			Expect(t.lines).To(ContainElement("C@18"))
			Expect(indexOf(t.lines, "C@18")).
				To(BeNumerically(">", indexOf(t.lines, "B@18")))
			Expect(t.lines[len(t.lines)-1]).To(Equal("A@90"))
			Expect(s.Now()).To(Equal(VTimeInSec(90)))
			Expect(s.Pending()).To(Equal(0))

			for _, p := range s.Processes() {
				Expect(p.State()).To(Equal(ProcTerminated))
			}
		})

		It("should wake the earliest registered waiter first", func() {
			go1 := false
			for _, name := range []string{"w1", "w2", "w3"} {
				name := name
				s.Activate(ProcessFunc(func() {
					s.WaitUntil(func() bool { return go1 })
					t.log(name)
				}))
			}
			s.Activate(ProcessFunc(func() {
				s.Sleep(1)
				go1 = true
			}))

			Expect(s.Run()).To(Succeed())
			Expect(t.lines).To(Equal([]string{"w1@1", "w2@1", "w3@1"}))
		})

		It("should resume at the deadline if the condition never holds", func() {
			var satisfied bool
			s.Activate(ProcessFunc(func() {
				satisfied = s.WaitUntilOrDeadline(
					func() bool { return false }, 12)
				t.log("w")
			}))

			Expect(s.Run()).To(Succeed())
			Expect(satisfied).To(BeFalse())
			Expect(t.lines).To(Equal([]string{"w@12"}))
		})

		It("should resume when the condition holds before the deadline", func() {
			ready := false
			var satisfied bool
			s.Activate(ProcessFunc(func() {
				satisfied = s.WaitUntilOrDeadline(
					func() bool { return ready }, 12)
				t.log("w")
			}))
			s.Activate(ProcessFunc(func() {
				s.Sleep(3)
				ready = true
			}))

			Expect(s.Run()).To(Succeed())
			Expect(satisfied).To(BeTrue())
			Expect(t.lines).To(Equal([]string{"w@3"}))
			Expect(s.Now()).To(Equal(VTimeInSec(12)))
		})

		It("should report the condition when it holds exactly at the deadline", func() {
			ready := false
			var satisfied bool
			s.Activate(ProcessFunc(func() {
				s.Sleep(12)
				ready = true
			}))
			s.Activate(ProcessFunc(func() {
				satisfied = s.WaitUntilOrDeadline(
					func() bool { return ready }, 12)
				t.log("w")
			}))

			Expect(s.Run()).To(Succeed())
			Expect(satisfied).To(BeTrue())
			Expect(t.lines).To(Equal([]string{"w@12"}))
		})

		It("should leave unsatisfiable waiters pending", func() {
			var p *Proc
			p = s.Activate(ProcessFunc(func() {
				s.WaitUntil(func() bool { return false })
				t.log("never")
			}))

			Expect(s.Run()).To(Succeed())
			Expect(t.lines).To(BeEmpty())
			Expect(s.Pending()).To(Equal(1))
			Expect(p.State()).To(Equal(ProcWaiting))
		})
	})

	Context("when a contract is violated", func() {
		It("should panic on negative sleep", func() {
			s.Activate(ProcessFunc(func() { s.Sleep(-1) }))

			Expect(func() { _ = s.Run() }).
				To(PanicWith(MatchError(ErrNegativeDuration)))
		})

		It("should panic when sleeping until the past", func() {
			s.Activate(ProcessFunc(func() {
				s.Sleep(5)
				s.SleepUntil(2)
			}))

			Expect(func() { _ = s.Run() }).
				To(PanicWith(MatchError(ErrTimeInPast)))
		})

		It("should panic when the deadline is not in the future", func() {
			s.Activate(ProcessFunc(func() {
				s.WaitUntilOrDeadline(func() bool { return true }, 0)
			}))

			Expect(func() { _ = s.Run() }).
				To(PanicWith(MatchError(ErrDeadlineNotInFuture)))
		})

		It("should panic when suspending outside a process", func() {
			Expect(func() { s.Sleep(1) }).
				To(PanicWith(MatchError(ErrNotInProcess)))
			Expect(func() { s.WaitUntil(func() bool { return true }) }).
				To(PanicWith(MatchError(ErrNotInProcess)))
		})

		It("should report which process panicked", func() {
			p := s.Activate(ProcessFunc(func() { panic("boom") }),
				WithName("bad"))

			Expect(func() { _ = s.Run() }).To(PanicWith(
				WithTransform(func(v any) *Proc {
					return v.(*ProcessPanic).Proc
				}, BeIdenticalTo(p))))
			Expect(s.IsRunning()).To(BeFalse())
		})

		It("should end a panicking process before raising the panic", func() {
			hook := NewMockHook(mockCtrl)
			s.AcceptHook(hook)

			var ends []hooking.HookCtx
			hook.EXPECT().Func(gomock.Any()).Do(func(ctx hooking.HookCtx) {
				if ctx.Pos == HookPosProcessEnd {
					ends = append(ends, ctx)
				}
			}).AnyTimes()

			p := s.Activate(ProcessFunc(func() { panic("boom") }))

			Expect(func() { _ = s.Run() }).
				To(PanicWith(BeAssignableToTypeOf(&ProcessPanic{})))
			Expect(ends).To(HaveLen(1))
			Expect(ends[0].Item).To(BeIdenticalTo(p))
			Expect(ends[0].Detail).To(BeAssignableToTypeOf(&ProcessPanic{}))
			Expect(p.State()).To(Equal(ProcTerminated))
		})
	})

	It("should refuse to run from inside a process", func() {
		var err error
		s.Activate(ProcessFunc(func() { err = s.Run() }))

		Expect(s.Run()).To(Succeed())
		Expect(err).To(MatchError(ErrAlreadyRunning))
	})

	It("should refuse to run once closed", func() {
		Expect(s.Close()).To(Succeed())
		Expect(s.Run()).To(MatchError(ErrClosed))
	})

	It("should release parked processes on close", func() {
		released := make(chan struct{})
		s.Activate(ProcessFunc(func() {
			defer close(released)
			s.WaitUntil(func() bool { return false })
		}))

		Expect(s.Run()).To(Succeed())
		Expect(s.Close()).To(Succeed())
		Expect(released).To(BeClosed())
	})

	It("should produce the same resumption order on every run", func() {
		runOnce := func() ([]string, VTimeInSec) {
			s2 := NewScheduler()
			defer s2.Close()

			t2 := &tracer{s: s2}
			buildRoundRobin(s2, t2)
			Expect(s2.Run()).To(Succeed())

			return t2.lines, s2.Now()
		}

		lines1, end1 := runOnce()
		lines2, end2 := runOnce()

		Expect(lines1).To(Equal(lines2))
		Expect(end1).To(Equal(end2))
	})

	It("should keep the clock monotonic", func() {
		readings := []VTimeInSec{}
		for i := 0; i < 5; i++ {
			d := VTimeInSec(i)
			s.Activate(ProcessFunc(func() {
				for j := 0; j < 4; j++ {
					readings = append(readings, s.Now())
					s.Sleep(d + 0.5)
				}
			}))
		}

		Expect(s.Run()).To(Succeed())

		for i := 1; i < len(readings); i++ {
			Expect(readings[i]).To(BeNumerically(">=", readings[i-1]))
		}
	})

	It("should invoke hooks around every resumption", func() {
		hook := NewMockHook(mockCtrl)
		s.AcceptHook(hook)

		var positions []string
		hook.EXPECT().Func(gomock.Any()).Do(func(ctx hooking.HookCtx) {
			positions = append(positions, ctx.Pos.Name)
		}).AnyTimes()

		s.Activate(ProcessFunc(func() { s.Sleep(1) }))

		Expect(s.Run()).To(Succeed())
		Expect(positions).To(Equal([]string{
			"BeforeResume", "AfterSuspend",
			"TimeAdvance",
			"BeforeResume", "ProcessEnd",
			"RunEnd",
		}))
	})

	It("should notify simulation end handlers", func() {
		handler := NewMockSimulationEndHandler(mockCtrl)
		s.RegisterSimulationEndHandler(handler)
		handler.EXPECT().Handle(VTimeInSec(8))

		s.Activate(ProcessFunc(func() { s.Sleep(8) }))

		Expect(s.Run()).To(Succeed())
		s.Finished()
	})
})

func indexOf(lines []string, line string) int {
	for i, l := range lines {
		if l == line {
			return i
		}
	}

	return -1
}

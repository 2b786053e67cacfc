// Package sim is a process-oriented discrete event simulation engine.
//
// Simulated processes run cooperatively under a virtual clock. A process
// body suspends only by calling Sleep, SleepUntil, WaitUntil, or
// WaitUntilOrDeadline; the clock moves only when no process is ready, and it
// jumps straight to the next scheduled wake time.
//
//	s := sim.NewScheduler()
//	done := false
//	s.Activate(sim.ProcessFunc(func() {
//		s.Sleep(10)
//		done = true
//	}))
//	s.Activate(sim.ProcessFunc(func() {
//		s.WaitUntil(func() bool { return done })
//		fmt.Println("woken at", s.Now())
//	}))
//	_ = s.Run()
//
// The package-level functions (Activate, Sleep, Now, Simulate, Reset, ...)
// operate on a default scheduler that Reset replaces.
//
// A process waiting on a condition that can never become true, with no
// deadline, is never resumed. Avoiding that is up to the caller; Pending
// reports such leftovers after a run.
//
// Only the goroutine the scheduler runs a process body on may call the
// suspending primitives. The scheduler identifies the caller as the process
// it last resumed, so a goroutine spawned by a body that calls Sleep or
// WaitUntil would suspend that body's process while the body keeps running.
package sim

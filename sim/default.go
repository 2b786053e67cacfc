package sim

import (
	"fmt"
	"sync"
)

var (
	currentLock sync.Mutex
	current     = NewScheduler()
)

// Current returns the scheduler the package-level functions operate on.
func Current() *Scheduler {
	currentLock.Lock()
	defer currentLock.Unlock()

	return current
}

// Reset discards the current scheduler and installs a fresh one, so that a
// new run starts at time 0 with no process, wait entry, or wake time left
// from the previous run. Processes still parked in the old scheduler are
// released. Reset panics if the current scheduler is running.
func Reset() {
	ResetWith(MakeBuilder())
}

// ResetWith is Reset with the new scheduler built by b.
func ResetWith(b Builder) {
	currentLock.Lock()
	defer currentLock.Unlock()

	if err := current.Close(); err != nil {
		panic(fmt.Errorf("sim: cannot reset: %w", err))
	}

	current = b.Build()
}

// Activate registers a process with the current scheduler.
func Activate(p Process, opts ...ActivateOption) *Proc {
	return Current().Activate(p, opts...)
}

// Sleep suspends the calling process for d.
func Sleep(d VTimeInSec) {
	Current().Sleep(d)
}

// SleepUntil suspends the calling process until the absolute time t.
func SleepUntil(t VTimeInSec) {
	Current().SleepUntil(t)
}

// WaitUntil suspends the calling process until cond holds.
func WaitUntil(cond Condition) {
	Current().WaitUntil(cond)
}

// WaitUntilOrDeadline suspends the calling process until cond holds or the
// clock reaches until.
func WaitUntilOrDeadline(cond Condition, until VTimeInSec) bool {
	return Current().WaitUntilOrDeadline(cond, until)
}

// Now returns the time of the current scheduler.
func Now() VTimeInSec {
	return Current().Now()
}

// Simulate runs the current scheduler to completion and then notifies its
// simulation end handlers.
func Simulate() error {
	s := Current()

	if err := s.Run(); err != nil {
		return err
	}

	s.Finished()

	return nil
}

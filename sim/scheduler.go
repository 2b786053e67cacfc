package sim

import (
	"sync"
	"sync/atomic"

	"github.com/sarchlab/procsim/idgen"
	"github.com/sarchlab/procsim/instrumentation/hooking"
	"github.com/sarchlab/procsim/timing"
)

type waitEntry struct {
	proc *Proc
	cond Condition
}

type yieldMsg struct {
	terminated bool
	panicked   *ProcessPanic
}

// A Scheduler runs processes one at a time under a virtual clock. It keeps
// the wait entries in registration order; when several become satisfiable at
// the same time, the one registered first is resumed first.
//
// Exactly one process body executes at any moment. Each process lives on its
// own goroutine, but the scheduler and the processes pass a single token back
// and forth, so no process is ever preempted.
type Scheduler struct {
	*hooking.HookableBase

	timeLock sync.RWMutex
	now      VTimeInSec

	waits []waitEntry
	wakes *timing.WakeQueue

	idGenerator idgen.Generator
	namePrefix  string

	procLock sync.RWMutex
	procs    []*Proc

	running *Proc
	yield   chan yieldMsg

	isRunning   atomic.Bool
	resumptions atomic.Uint64

	closed    chan struct{}
	closeOnce sync.Once
	bodies    sync.WaitGroup

	simulationEndHandlers []SimulationEndHandler
}

// NewScheduler creates a Scheduler with the clock at 0.
func NewScheduler() *Scheduler {
	return MakeBuilder().Build()
}

// Now returns the current simulation time. It never suspends.
func (s *Scheduler) Now() VTimeInSec {
	return s.readNow()
}

func (s *Scheduler) readNow() VTimeInSec {
	s.timeLock.RLock()
	t := s.now
	s.timeLock.RUnlock()

	return t
}

func (s *Scheduler) writeNow(t VTimeInSec) {
	s.timeLock.Lock()
	s.now = t
	s.timeLock.Unlock()
}

// post registers a wait entry for p if cond is not nil, and pushes a wake time
// if hasTime is set. A wake time alone wakes nobody; it only lets the clock
// reach that time.
func (s *Scheduler) post(p *Proc, cond Condition, t VTimeInSec, hasTime bool) {
	if cond != nil {
		if p == nil {
			p = s.mustBeInProcess()
		}

		s.waits = append(s.waits, waitEntry{proc: p, cond: cond})
	}

	if hasTime {
		s.wakes.Push(t)
	}
}

// popReady removes and returns the first process, in registration order,
// whose condition holds. It returns nil if no condition holds.
func (s *Scheduler) popReady() *Proc {
	for i, w := range s.waits {
		if !w.cond() {
			continue
		}

		s.waits = append(s.waits[:i], s.waits[i+1:]...)

		return w.proc
	}

	return nil
}

// Run resumes ready processes until none is ready and no wake time is left.
// Running out of work is the normal way for a simulation to end, and Run
// returns nil in that case.
//
// A process that waits on a condition that never becomes true, without a
// deadline, is left registered when Run returns; see Pending.
//
// If a process body panics, Run panics with a *ProcessPanic on the calling
// goroutine.
func (s *Scheduler) Run() error {
	if s.isClosed() {
		return ErrClosed
	}

	if !s.isRunning.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.isRunning.Store(false)

	for {
		p := s.popReady()

		for p == nil {
			t, ok := s.wakes.Pop()
			if !ok {
				s.InvokeHook(hooking.HookCtx{
					Domain: s,
					Pos:    HookPosRunEnd,
					Item:   s.readNow(),
					Detail: len(s.waits),
				})

				return nil
			}

			s.advanceTo(t)
			p = s.popReady()
		}

		s.resume(p)
	}
}

func (s *Scheduler) advanceTo(t VTimeInSec) {
	now := s.readNow()
	if t < now {
		panic(violation(ErrTimeInPast,
			"cannot advance the clock from %s back to %s", now, t))
	}

	if t == now {
		return
	}

	s.writeNow(t)
	s.InvokeHook(hooking.HookCtx{
		Domain: s,
		Pos:    HookPosTimeAdvance,
		Item:   t,
		Detail: now,
	})
}

// resume transfers the control to p and blocks until p suspends or
// terminates.
func (s *Scheduler) resume(p *Proc) {
	s.running = p
	p.setState(ProcRunning)
	s.resumptions.Add(1)

	hookCtx := hooking.HookCtx{
		Domain: s,
		Pos:    HookPosBeforeResume,
		Item:   p,
	}
	s.InvokeHook(hookCtx)

	if !p.started {
		p.start()
	} else {
		p.resume <- struct{}{}
	}

	msg := <-s.yield
	s.running = nil

	if msg.panicked != nil {
		hookCtx.Pos = HookPosProcessEnd
		hookCtx.Detail = msg.panicked
		s.InvokeHook(hookCtx)

		panic(msg.panicked)
	}

	hookCtx.Pos = HookPosAfterSuspend
	if msg.terminated {
		hookCtx.Pos = HookPosProcessEnd
	}
	s.InvokeHook(hookCtx)
}

func (s *Scheduler) mustBeInProcess() *Proc {
	if s.running == nil {
		panic(ErrNotInProcess)
	}

	return s.running
}

// Activate registers a new process. Without options the process is ready to
// run at the current time. The options At and After delay its first action.
//
// Activate does not suspend and can be called both before Run and from inside
// a running process.
func (s *Scheduler) Activate(body Process, opts ...ActivateOption) *Proc {
	p := &Proc{
		sched:  s,
		id:     s.idGenerator.Generate(),
		body:   body,
		resume: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.name == "" {
		p.name = p.id.Label(s.namePrefix)
	}

	s.mustBeValidActivation(p)

	s.procLock.Lock()
	s.procs = append(s.procs, p)
	p.state = ProcReady
	if s.isDelayed(p) {
		p.state = ProcWaiting
	}
	s.procLock.Unlock()

	s.post(p, func() bool { return true }, 0, false)

	return p
}

// isDelayed reports whether the first action of p is a suspension.
func (s *Scheduler) isDelayed(p *Proc) bool {
	return (p.hasAt && p.at > s.readNow()) || (p.hasAfter && p.after > 0)
}

func (s *Scheduler) mustBeValidActivation(p *Proc) {
	if p.hasAt {
		if !p.at.Valid() {
			panic(violation(ErrInvalidTime, "activation time %v", float64(p.at)))
		}

		if now := s.readNow(); p.at < now {
			panic(violation(ErrTimeInPast,
				"activating %s at %s, now %s", p.name, p.at, now))
		}
	}

	if p.hasAfter && p.after < 0 {
		panic(violation(ErrNegativeDuration,
			"activating %s after %s", p.name, p.after))
	}
}

// Sleep suspends the calling process until Now()+d. Sleeping for 0 returns
// immediately without suspending.
func (s *Scheduler) Sleep(d VTimeInSec) {
	if d < 0 {
		panic(violation(ErrNegativeDuration, "sleeping for %s", d))
	}

	s.SleepUntil(s.readNow() + d)
}

// SleepUntil suspends the calling process until the clock reaches t. It
// returns immediately if t is the current time.
func (s *Scheduler) SleepUntil(t VTimeInSec) {
	now := s.readNow()
	if t == now {
		return
	}

	if !t.Valid() {
		panic(violation(ErrInvalidTime, "sleeping until %v", float64(t)))
	}

	if t < now {
		panic(violation(ErrTimeInPast, "sleeping until %s, now %s", t, now))
	}

	p := s.mustBeInProcess()
	s.post(p, func() bool { return s.readNow() == t }, t, true)
	p.park()
}

// WaitUntil suspends the calling process until cond holds at a scan of the
// scheduler. If cond can never become true the process is never resumed.
func (s *Scheduler) WaitUntil(cond Condition) {
	if cond == nil {
		panic("sim: nil condition")
	}

	p := s.mustBeInProcess()
	s.post(p, cond, 0, false)
	p.park()
}

// WaitUntilOrDeadline suspends the calling process until cond holds or the
// clock reaches until, whichever comes first. Reaching the deadline wakes the
// process even if cond is still false. It reports whether cond held when the
// process was woken.
func (s *Scheduler) WaitUntilOrDeadline(cond Condition, until VTimeInSec) bool {
	if cond == nil {
		panic("sim: nil condition")
	}

	now := s.readNow()
	if !until.Valid() {
		panic(violation(ErrInvalidTime, "waiting until %v", float64(until)))
	}

	if until <= now {
		panic(violation(ErrDeadlineNotInFuture,
			"waiting until %s, now %s", until, now))
	}

	p := s.mustBeInProcess()

	satisfied := false
	s.post(p, func() bool {
		if cond() {
			satisfied = true
			return true
		}

		return s.readNow() == until
	}, until, true)
	p.park()

	return satisfied
}

// Pending returns the number of wait entries still registered. After Run
// returns, a non-zero value means some processes wait on conditions that
// never became true. Pending must not be called while Run is in progress
// from a goroutine other than the running process.
func (s *Scheduler) Pending() int {
	return len(s.waits)
}

// Resumptions returns the number of times a process has been resumed.
func (s *Scheduler) Resumptions() uint64 {
	return s.resumptions.Load()
}

// Processes returns all the activated processes in activation order.
func (s *Scheduler) Processes() []*Proc {
	s.procLock.RLock()
	defer s.procLock.RUnlock()

	procs := make([]*Proc, len(s.procs))
	copy(procs, s.procs)

	return procs
}

// IsRunning reports whether Run is in progress.
func (s *Scheduler) IsRunning() bool {
	return s.isRunning.Load()
}

// RegisterSimulationEndHandler registers a handler to be called by Finished.
func (s *Scheduler) RegisterSimulationEndHandler(
	handler SimulationEndHandler,
) {
	s.simulationEndHandlers = append(s.simulationEndHandlers, handler)
}

// Finished should be called after the simulation ends. This function
// calls all the registered SimulationEndHandler.
func (s *Scheduler) Finished() {
	now := s.readNow()
	for _, h := range s.simulationEndHandlers {
		h.Handle(now)
	}
}

// Close releases the goroutines of processes that are still parked and
// returns once all of them have exited. Their deferred calls run, but the
// rest of their bodies does not. A closed scheduler cannot run again.
func (s *Scheduler) Close() error {
	if s.isRunning.Load() {
		return ErrAlreadyRunning
	}

	s.closeOnce.Do(func() {
		close(s.closed)
	})

	s.bodies.Wait()

	return nil
}

func (s *Scheduler) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

var _ Engine = (*Scheduler)(nil)

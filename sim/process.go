package sim

import (
	"runtime"
	"runtime/debug"

	"github.com/sarchlab/procsim/idgen"
)

// ProcState is the lifecycle state of an activated process.
type ProcState int

// A process starts Ready, or Waiting if its activation is delayed, and
// alternates between Running and Waiting until it is Terminated.
const (
	ProcReady ProcState = iota
	ProcWaiting
	ProcRunning
	ProcTerminated
)

func (s ProcState) String() string {
	switch s {
	case ProcReady:
		return "Ready"
	case ProcWaiting:
		return "Waiting"
	case ProcRunning:
		return "Running"
	case ProcTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// Proc is the scheduler's handle on an activated process.
type Proc struct {
	sched *Scheduler
	id    idgen.ID
	name  string
	body  Process

	at, after       VTimeInSec
	hasAt, hasAfter bool

	state       ProcState
	resumptions uint64

	resume    chan struct{}
	started   bool
	abandoned bool
}

// ID returns the identifier assigned at activation.
func (p *Proc) ID() idgen.ID {
	return p.id
}

// Name returns the name of the process.
func (p *Proc) Name() string {
	return p.name
}

// Body returns the value passed to Activate.
func (p *Proc) Body() Process {
	return p.body
}

// State returns the current lifecycle state.
func (p *Proc) State() ProcState {
	p.sched.procLock.RLock()
	defer p.sched.procLock.RUnlock()

	return p.state
}

// Resumptions returns how many times the scheduler has handed the control to
// the process.
func (p *Proc) Resumptions() uint64 {
	p.sched.procLock.RLock()
	defer p.sched.procLock.RUnlock()

	return p.resumptions
}

func (p *Proc) setState(state ProcState) {
	p.sched.procLock.Lock()
	p.state = state
	if state == ProcRunning {
		p.resumptions++
	}
	p.sched.procLock.Unlock()
}

// start runs the process body on a fresh goroutine. It is called by the
// dispatch loop the first time the process is resumed.
func (p *Proc) start() {
	p.started = true
	p.sched.bodies.Add(1)
	go p.run()
}

func (p *Proc) run() {
	s := p.sched

	defer s.bodies.Done()

	defer func() {
		r := recover()
		if p.abandoned {
			return
		}

		if r != nil {
			p.setState(ProcTerminated)
			s.yield <- yieldMsg{
				terminated: true,
				panicked:   &ProcessPanic{Proc: p, Value: r, Stack: debug.Stack()},
			}

			return
		}

		p.setState(ProcTerminated)
		s.yield <- yieldMsg{terminated: true}
	}()

	if p.hasAt {
		s.SleepUntil(p.at)
	}

	if p.hasAfter {
		s.Sleep(p.after)
	}

	p.body.Main()
}

// park hands the control back to the dispatch loop and blocks until the loop
// resumes the process again. If the scheduler gets closed first, the
// goroutine unwinds so that deferred calls in the process body still run.
func (p *Proc) park() {
	s := p.sched

	p.setState(ProcWaiting)
	s.yield <- yieldMsg{}

	select {
	case <-p.resume:
	case <-s.closed:
		p.abandoned = true
		runtime.Goexit()
	}
}

// ActivateOption customizes how a process gets activated.
type ActivateOption func(p *Proc)

// At delays the first action of the process until the absolute time t.
func At(t VTimeInSec) ActivateOption {
	return func(p *Proc) {
		p.at = t
		p.hasAt = true
	}
}

// After delays the first action of the process by d, measured from the time
// the process is first scheduled. Combined with At, the absolute delay
// applies first.
func After(d VTimeInSec) ActivateOption {
	return func(p *Proc) {
		p.after = d
		p.hasAfter = true
	}
}

// WithName names the process. Unnamed processes are named after their ID.
func WithName(name string) ActivateOption {
	return func(p *Proc) {
		p.name = name
	}
}

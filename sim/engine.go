package sim

import (
	"github.com/sarchlab/procsim/instrumentation/hooking"
	"github.com/sarchlab/procsim/timing"
)

// VTimeInSec is re-exported so that process bodies only need this package.
type VTimeInSec = timing.VTimeInSec

// A Condition is a predicate the scheduler polls to decide whether a waiting
// process may resume. Conditions are only ever evaluated by the scheduler,
// never by the process that registered them, and must not suspend.
type Condition func() bool

// A Process is a unit of simulated behavior. Main is entered once, when the
// scheduler first resumes the process, and the process terminates when Main
// returns.
type Process interface {
	Main()
}

// ProcessFunc adapts an ordinary function to the Process interface.
type ProcessFunc func()

// Main calls f().
func (f ProcessFunc) Main() {
	f()
}

// A SimulationEndHandler is a handler that is called after the simulation ends.
type SimulationEndHandler interface {
	Handle(now VTimeInSec)
}

// An Engine drives a process-oriented simulation.
type Engine interface {
	hooking.Hookable
	timing.TimeTeller

	// Activate registers a process for execution.
	Activate(p Process, opts ...ActivateOption) *Proc

	// Run resumes processes until none is ready and no wake time remains.
	Run() error

	// RegisterSimulationEndHandler registers a handler that perform some
	// actions after the simulation is finished.
	RegisterSimulationEndHandler(handler SimulationEndHandler)

	// Finished invokes all the registered SimulationEndHandler
	Finished()
}

// HookPosBeforeResume triggers right before a process gets the control. The
// item is the *Proc.
var HookPosBeforeResume = &hooking.HookPos{Name: "BeforeResume"}

// HookPosAfterSuspend triggers after a process hands the control back without
// terminating. The item is the *Proc.
var HookPosAfterSuspend = &hooking.HookPos{Name: "AfterSuspend"}

// HookPosProcessEnd triggers after the Main function of a process returns.
// The item is the *Proc. If Main panicked, the detail is the *ProcessPanic
// and Run re-raises it right after the hooks return.
var HookPosProcessEnd = &hooking.HookPos{Name: "ProcessEnd"}

// HookPosTimeAdvance triggers when the clock moves forward. The item is the
// new time and the detail is the previous time.
var HookPosTimeAdvance = &hooking.HookPos{Name: "TimeAdvance"}

// HookPosRunEnd triggers when Run finds nothing ready and nothing scheduled.
// The item is the final time and the detail is the number of wait entries
// that never got satisfied.
var HookPosRunEnd = &hooking.HookPos{Name: "RunEnd"}

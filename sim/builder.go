package sim

import (
	"github.com/sarchlab/procsim/idgen"
	"github.com/sarchlab/procsim/instrumentation/hooking"
	"github.com/sarchlab/procsim/timing"
)

// A Builder can build schedulers.
type Builder struct {
	namePrefix  string
	idGenerator idgen.Generator
	hooks       []hooking.Hook
	endHandlers []SimulationEndHandler
}

// MakeBuilder returns a Builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		namePrefix: "proc",
	}
}

// WithNamePrefix sets the prefix used to name processes activated without
// WithName.
func (b Builder) WithNamePrefix(prefix string) Builder {
	b.namePrefix = prefix
	return b
}

// WithIDGenerator sets the generator that assigns process IDs.
func (b Builder) WithIDGenerator(g idgen.Generator) Builder {
	b.idGenerator = g
	return b
}

// WithHook attaches a hook to every scheduler built.
func (b Builder) WithHook(hook hooking.Hook) Builder {
	b.hooks = append(b.hooks[:len(b.hooks):len(b.hooks)], hook)
	return b
}

// WithSimulationEndHandler registers a handler to be called by Finished.
func (b Builder) WithSimulationEndHandler(h SimulationEndHandler) Builder {
	b.endHandlers = append(b.endHandlers[:len(b.endHandlers):len(b.endHandlers)], h)
	return b
}

// Build creates a new Scheduler.
func (b Builder) Build() *Scheduler {
	s := &Scheduler{
		HookableBase: hooking.NewHookableBase(),
		wakes:        timing.NewWakeQueue(),
		idGenerator:  b.idGenerator,
		namePrefix:   b.namePrefix,
		yield:        make(chan yieldMsg),
		closed:       make(chan struct{}),
	}

	if s.idGenerator == nil {
		s.idGenerator = idgen.New()
	}

	for _, h := range b.hooks {
		s.AcceptHook(h)
	}

	for _, h := range b.endHandlers {
		s.RegisterSimulationEndHandler(h)
	}

	return s
}

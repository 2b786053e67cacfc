package tracing

import (
	"fmt"
	"reflect"

	"github.com/sarchlab/procsim/instrumentation/hooking"
	"github.com/sarchlab/procsim/sim"
	"github.com/sarchlab/procsim/timing"
)

// TracedDomain is an engine that can be traced.
type TracedDomain interface {
	hooking.Hookable
	timing.TimeTeller
}

// CollectTrace lets the tracer collect traces from a domain.
func CollectTrace(domain TracedDomain, tracer Tracer) {
	for _, hook := range domain.Hooks() {
		hook, ok := hook.(*traceHook)
		if ok && hook.t == tracer {
			panic(fmt.Sprintf(
				"tracing: domain already has tracer %s", reflect.TypeOf(tracer)))
		}
	}

	h := &traceHook{
		t:      tracer,
		clock:  domain,
		active: make(map[*sim.Proc]*Task),
	}
	domain.AcceptHook(h)
}

// A traceHook turns scheduler hooks into task notifications.
type traceHook struct {
	t      Tracer
	clock  timing.TimeTeller
	active map[*sim.Proc]*Task
}

// Func calls the tracer interfaces when the hook is triggered
func (h *traceHook) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case sim.HookPosBeforeResume:
		h.resume(ctx.Item.(*sim.Proc))
	case sim.HookPosProcessEnd:
		h.end(ctx.Item.(*sim.Proc))
	}
}

func (h *traceHook) resume(p *sim.Proc) {
	now := h.clock.Now()

	task, ok := h.active[p]
	if !ok {
		task = &Task{
			ID:        p.ID().Label("task"),
			Process:   p.Name(),
			StartTime: now,
			EndTime:   -1,
		}
		h.active[p] = task
		h.t.StartTask(*task)

		return
	}

	task.Steps = append(task.Steps, TaskStep{Time: now, What: "resume"})
	h.t.StepTask(*task)
}

func (h *traceHook) end(p *sim.Proc) {
	task, ok := h.active[p]
	if !ok {
		return
	}

	delete(h.active, p)

	task.EndTime = h.clock.Now()
	h.t.EndTask(*task)
}

package tracing

import (
	"github.com/rs/zerolog"

	"github.com/sarchlab/procsim/instrumentation/hooking"
	"github.com/sarchlab/procsim/sim"
	"github.com/sarchlab/procsim/timing"
)

// LogTracer is a hook that writes scheduler activity to a zerolog logger.
type LogTracer struct {
	logger zerolog.Logger
}

// NewLogTracer creates a LogTracer.
func NewLogTracer(logger zerolog.Logger) *LogTracer {
	return &LogTracer{logger: logger}
}

// Func logs the hook.
func (t *LogTracer) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case sim.HookPosBeforeResume:
		p := ctx.Item.(*sim.Proc)
		t.logger.Debug().
			Str("process", p.Name()).
			Uint64("resumption", p.Resumptions()).
			Float64("time", t.now(ctx)).
			Msg("resume")
	case sim.HookPosProcessEnd:
		p := ctx.Item.(*sim.Proc)
		t.logger.Debug().
			Str("process", p.Name()).
			Float64("time", t.now(ctx)).
			Msg("process end")
	case sim.HookPosTimeAdvance:
		t.logger.Debug().
			Float64("from", float64(ctx.Detail.(timing.VTimeInSec))).
			Float64("to", float64(ctx.Item.(timing.VTimeInSec))).
			Msg("advance")
	case sim.HookPosRunEnd:
		t.runEnd(ctx)
	}
}

func (t *LogTracer) runEnd(ctx hooking.HookCtx) {
	now := float64(ctx.Item.(timing.VTimeInSec))
	pending := ctx.Detail.(int)

	if pending > 0 {
		t.logger.Warn().
			Float64("time", now).
			Int("pending", pending).
			Msg("simulation ended with unsatisfied waits")

		return
	}

	t.logger.Info().Float64("time", now).Msg("simulation ended")
}

func (t *LogTracer) now(ctx hooking.HookCtx) float64 {
	teller, ok := ctx.Domain.(timing.TimeTeller)
	if !ok {
		return 0
	}

	return float64(teller.Now())
}

package trace

import (
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/memsim/mem/alloc"
	"github.com/sarchlab/memsim/mem/cache"
	"github.com/sarchlab/memsim/sim/hooking"
)

// LogTracer is a hook that logs every event at debug level.
type LogTracer struct {
	logger logrus.FieldLogger
}

// NewLogTracer creates a LogTracer.
func NewLogTracer(logger logrus.FieldLogger) *LogTracer {
	if logger == nil {
		panic("logger is nil")
	}

	return &LogTracer{logger: logger}
}

// Func logs the event described by ctx.
func (t *LogTracer) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case alloc.HookPosInit:
		t.logger.WithField("size", ctx.Detail).Debug("memory initialized")
	case alloc.HookPosAllocate:
		b := ctx.Item.(alloc.BlockInfo)
		t.logger.WithFields(logrus.Fields{
			"block":   b.ID,
			"address": b.Address,
			"size":    b.Size,
		}).Debug("block allocated")
	case alloc.HookPosAllocFailure:
		t.logger.WithField("size", ctx.Detail).Debug("allocation failed")
	case alloc.HookPosFree:
		b := ctx.Item.(alloc.BlockInfo)
		merged := ctx.Detail.(alloc.BlockInfo)
		t.logger.WithFields(logrus.Fields{
			"block":        b.ID,
			"address":      b.Address,
			"size":         b.Size,
			"merged_start": merged.Address,
			"merged_size":  merged.Size,
		}).Debug("block freed")
	case cache.HookPosLevelAccess:
		a := ctx.Detail.(cache.LevelAccess)
		t.logger.WithFields(logrus.Fields{
			"level":      a.Level,
			"address":    a.Address,
			"write":      a.IsWrite,
			"hit":        a.Hit,
			"set":        a.SetID,
			"way":        a.WayID,
			"write_back": a.WriteBack,
		}).Debug("cache level accessed")
	case cache.HookPosAccess:
		r := ctx.Detail.(cache.AccessResult)
		t.logger.WithFields(logrus.Fields{
			"address":   r.Address,
			"write":     r.IsWrite,
			"hit_level": r.HitLevel,
			"cycles":    r.Cycles,
		}).Debug("cache accessed")
	}
}

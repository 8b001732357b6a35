// Package trace records what the allocator and the cache hierarchy do.
//
// Tracers are hooks. Attach them to an alloc.Allocator or a cache.Hierarchy
// with AcceptHook.
package trace

import (
	"sync/atomic"

	"github.com/sarchlab/memsim/datarecording"
	"github.com/sarchlab/memsim/mem/alloc"
	"github.com/sarchlab/memsim/mem/cache"
	"github.com/sarchlab/memsim/sim/hooking"
	"github.com/sarchlab/memsim/sim/id"
)

// Table names used by the DBTracer.
const (
	AllocTable       = "alloc_events"
	LevelAccessTable = "cache_accesses"
	AccessTable      = "hierarchy_accesses"
)

// Kinds of allocation events.
const (
	KindInit     = "init"
	KindAllocate = "allocate"
	KindFailure  = "failure"
	KindFree     = "free"
)

// AllocEvent is one row of the alloc_events table.
type AllocEvent struct {
	Seq     uint64
	ID      string
	Kind    string
	BlockID int32
	Address uint64
	Size    uint64

	// Requested is the size passed to Allocate, or the memory size on init.
	Requested uint64

	// MergedAddress and MergedSize describe the free block left after a free.
	MergedAddress uint64
	MergedSize    uint64
}

// LevelAccessEvent is one row of the cache_accesses table.
type LevelAccessEvent struct {
	Seq       uint64
	ID        string
	Level     string
	Address   uint64
	IsWrite   bool
	Hit       bool
	SetID     int
	WayID     int
	Tag       uint64
	WriteBack bool
	Latency   uint64
}

// AccessEvent is one row of the hierarchy_accesses table.
type AccessEvent struct {
	Seq      uint64
	ID       string
	Address  uint64
	IsWrite  bool
	HitLevel string
	Cycles   uint64
}

// MapTables registers the row types of all tracer tables with a reader.
func MapTables(reader datarecording.DataReader) {
	reader.MapTable(AllocTable, AllocEvent{})
	reader.MapTable(LevelAccessTable, LevelAccessEvent{})
	reader.MapTable(AccessTable, AccessEvent{})
}

// DBTracer is a hook that stores events into a DataRecorder. The sequence
// number orders events across all tables.
type DBTracer struct {
	backend datarecording.DataRecorder
	idGen   id.IDGenerator
	seq     uint64
}

// NewDBTracer creates a DBTracer and the tables it writes to.
func NewDBTracer(
	recorder datarecording.DataRecorder,
	idGen id.IDGenerator,
) *DBTracer {
	if recorder == nil {
		panic("data recorder is nil")
	}

	if idGen == nil {
		panic("id generator is nil")
	}

	recorder.CreateTable(AllocTable, AllocEvent{})
	recorder.CreateTable(LevelAccessTable, LevelAccessEvent{})
	recorder.CreateTable(AccessTable, AccessEvent{})

	return &DBTracer{
		backend: recorder,
		idGen:   idGen,
	}
}

// Func records the event described by ctx. Events from unknown positions are
// ignored.
func (t *DBTracer) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case alloc.HookPosInit:
		t.backend.InsertData(AllocTable, AllocEvent{
			Seq:       t.nextSeq(),
			ID:        t.idGen.Generate(),
			Kind:      KindInit,
			Size:      ctx.Detail.(uint64),
			Requested: ctx.Detail.(uint64),
		})
	case alloc.HookPosAllocate:
		b := ctx.Item.(alloc.BlockInfo)
		t.backend.InsertData(AllocTable, AllocEvent{
			Seq:       t.nextSeq(),
			ID:        t.idGen.Generate(),
			Kind:      KindAllocate,
			BlockID:   b.ID,
			Address:   b.Address,
			Size:      b.Size,
			Requested: ctx.Detail.(uint64),
		})
	case alloc.HookPosAllocFailure:
		t.backend.InsertData(AllocTable, AllocEvent{
			Seq:       t.nextSeq(),
			ID:        t.idGen.Generate(),
			Kind:      KindFailure,
			Requested: ctx.Detail.(uint64),
		})
	case alloc.HookPosFree:
		b := ctx.Item.(alloc.BlockInfo)
		merged := ctx.Detail.(alloc.BlockInfo)
		t.backend.InsertData(AllocTable, AllocEvent{
			Seq:           t.nextSeq(),
			ID:            t.idGen.Generate(),
			Kind:          KindFree,
			BlockID:       b.ID,
			Address:       b.Address,
			Size:          b.Size,
			MergedAddress: merged.Address,
			MergedSize:    merged.Size,
		})
	case cache.HookPosLevelAccess:
		a := ctx.Detail.(cache.LevelAccess)
		t.backend.InsertData(LevelAccessTable, LevelAccessEvent{
			Seq:       t.nextSeq(),
			ID:        t.idGen.Generate(),
			Level:     a.Level,
			Address:   a.Address,
			IsWrite:   a.IsWrite,
			Hit:       a.Hit,
			SetID:     a.SetID,
			WayID:     a.WayID,
			Tag:       a.Tag,
			WriteBack: a.WriteBack,
			Latency:   a.Latency,
		})
	case cache.HookPosAccess:
		r := ctx.Detail.(cache.AccessResult)
		t.backend.InsertData(AccessTable, AccessEvent{
			Seq:      t.nextSeq(),
			ID:       t.idGen.Generate(),
			Address:  r.Address,
			IsWrite:  r.IsWrite,
			HitLevel: r.HitLevel,
			Cycles:   r.Cycles,
		})
	}
}

func (t *DBTracer) nextSeq() uint64 {
	return atomic.AddUint64(&t.seq, 1)
}

// Terminate flushes the buffered events.
func (t *DBTracer) Terminate() {
	t.backend.Flush()
}

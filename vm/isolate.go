package vm

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Isolate: the host environment of function metadata
// ---------------------------------------------------------------------------

// EngineFlags are the configuration switches that select branches in
// function metadata operations. They never change which errors occur.
type EngineFlags struct {
	// LazySourcePositions lets compiled bytecode skip its position table
	// until something asks for it.
	LazySourcePositions bool
	// PreciseBinaryCoverage keeps functions that have not reported
	// coverage from being inlined.
	PreciseBinaryCoverage bool
	// MaxInlinedBytecodeSize is the largest bytecode length, in bytes, an
	// inlineable function may have.
	MaxInlinedBytecodeSize int
	// TraceFlushBytecode traces compiled-metadata discards.
	TraceFlushBytecode bool
	// TraceOpt traces optimization decisions.
	TraceOpt bool
}

// DefaultMaxInlinedBytecodeSize is the default inlining size limit.
const DefaultMaxInlinedBytecodeSize = 460

// DefaultEngineFlags returns the flags a new isolate starts with.
func DefaultEngineFlags() EngineFlags {
	return EngineFlags{MaxInlinedBytecodeSize: DefaultMaxInlinedBytecodeSize}
}

// Compiler is the bytecode generator collaborator.
type Compiler interface {
	// Compile compiles lit and installs the result into fi.
	Compile(fi *FunctionInfo, lit *FunctionLiteral) error
	// CollectSourcePositions materializes fi's bytecode position table.
	CollectSourcePositions(fi *FunctionInfo) error
}

// Isolate owns the heap, the builtin table, the flags and every source
// unit of one engine instance. FunctionInfos belong to exactly one isolate.
type Isolate struct {
	ID       uuid.UUID
	Heap     *Heap
	Builtins *Builtins

	flags    atomic.Pointer[EngineFlags]
	tracer   atomic.Pointer[traceSinkBox]
	compiler atomic.Pointer[compilerBox]
	policy   atomic.Pointer[discardPolicyBox]
	cache    *CompilationCache
	profiler *Profiler

	// safepoint serializes background sweeps against engine turns.
	safepoint sync.RWMutex

	mu         sync.Mutex
	units      []*SourceUnit
	nextUnitID int
	nextFnID   atomic.Int32
}

type traceSinkBox struct{ s TraceSink }
type compilerBox struct{ c Compiler }
type discardPolicyBox struct{ p DiscardPolicy }

// NewIsolate creates an isolate with default flags, the standard builtins
// and a tracer that discards everything.
func NewIsolate() *Isolate {
	iso := &Isolate{
		ID:       uuid.New(),
		Heap:     NewHeap(),
		Builtins: NewBuiltins(),
		cache:    NewCompilationCache(),
		profiler: NewProfiler(),
	}
	flags := DefaultEngineFlags()
	iso.flags.Store(&flags)
	iso.tracer.Store(&traceSinkBox{s: discardTraceSink{}})
	return iso
}

// Flags returns a copy of the current flags.
func (iso *Isolate) Flags() EngineFlags {
	return *iso.flags.Load()
}

// SetFlags replaces the flags.
func (iso *Isolate) SetFlags(f EngineFlags) {
	iso.flags.Store(&f)
}

// UpdateFlags applies fn to a copy of the flags and publishes the result.
func (iso *Isolate) UpdateFlags(fn func(*EngineFlags)) {
	f := iso.Flags()
	fn(&f)
	iso.SetFlags(f)
}

// Tracer returns the code tracing sink.
func (iso *Isolate) Tracer() TraceSink {
	return iso.tracer.Load().s
}

// SetTracer installs a code tracing sink; nil restores the discarding one.
func (iso *Isolate) SetTracer(s TraceSink) {
	if s == nil {
		s = discardTraceSink{}
	}
	iso.tracer.Store(&traceSinkBox{s: s})
}

// Compiler returns the compiler collaborator, or nil.
func (iso *Isolate) Compiler() Compiler {
	if b := iso.compiler.Load(); b != nil {
		return b.c
	}
	return nil
}

// SetCompiler installs the compiler collaborator.
func (iso *Isolate) SetCompiler(c Compiler) {
	iso.compiler.Store(&compilerBox{c: c})
}

// DiscardPolicy returns the discard policy, or nil when nothing is pinned.
func (iso *Isolate) DiscardPolicy() DiscardPolicy {
	if b := iso.policy.Load(); b != nil {
		return b.p
	}
	return nil
}

// SetDiscardPolicy installs the discard policy.
func (iso *Isolate) SetDiscardPolicy(p DiscardPolicy) {
	iso.policy.Store(&discardPolicyBox{p: p})
}

// CompilationCache returns the optimized code cache.
func (iso *Isolate) CompilationCache() *CompilationCache {
	return iso.cache
}

// Profiler returns the invocation profiler.
func (iso *Isolate) Profiler() *Profiler {
	return iso.profiler
}

func (iso *Isolate) profileEvent(ev ProfileEvent, fi *FunctionInfo) {
	iso.profiler.recordEvent(ev, fi)
}

// NewFunctionInfo allocates a FunctionInfo in its empty state.
func (iso *Isolate) NewFunctionInfo() *FunctionInfo {
	iso.Heap.allocate("Isolate.NewFunctionInfo")
	fi := &FunctionInfo{
		iso:         iso,
		uniqueID:    iso.nextFnID.Add(1),
		hasUniqueID: true,
	}
	fi.init()
	return fi
}

// NewSourceUnit registers a source unit with a function table of
// functionCount slots.
func (iso *Isolate) NewSourceUnit(name, source string, kind UnitKind, functionCount int) *SourceUnit {
	iso.Heap.allocate("Isolate.NewSourceUnit")
	iso.mu.Lock()
	defer iso.mu.Unlock()
	iso.nextUnitID++
	u := &SourceUnit{
		id:     iso.nextUnitID,
		name:   name,
		kind:   kind,
		source: source,
	}
	u.table.Store(NewFunctionTable(functionCount))
	iso.units = append(iso.units, u)
	log.Debugf("source unit %d %q: %d function slots", u.id, name, functionCount)
	return u
}

// RemoveSourceUnit unregisters u and reports whether it was registered.
// Records still attached to u keep their association.
func (iso *Isolate) RemoveSourceUnit(u *SourceUnit) bool {
	iso.mu.Lock()
	defer iso.mu.Unlock()
	for i, cand := range iso.units {
		if cand == u {
			iso.units = append(iso.units[:i], iso.units[i+1:]...)
			return true
		}
	}
	return false
}

// SourceUnits returns the registered units in creation order.
func (iso *Isolate) SourceUnits() []*SourceUnit {
	iso.mu.Lock()
	defer iso.mu.Unlock()
	out := make([]*SourceUnit, len(iso.units))
	copy(out, iso.units)
	return out
}

// FindSourceUnit returns the unit with the given name.
func (iso *Isolate) FindSourceUnit(name string) (*SourceUnit, bool) {
	iso.mu.Lock()
	defer iso.mu.Unlock()
	for _, u := range iso.units {
		if u.name == name {
			return u, true
		}
	}
	return nil, false
}

// Turn runs fn as part of an engine turn. Turns run concurrently with each
// other but never with a safepoint. A no-allocation region opened inside a
// turn only restricts that turn.
func (iso *Isolate) Turn(fn func()) {
	iso.safepoint.RLock()
	defer iso.safepoint.RUnlock()
	fn()
}

// Safepoint runs fn with every engine turn stopped.
func (iso *Isolate) Safepoint(fn func()) {
	iso.safepoint.Lock()
	defer iso.safepoint.Unlock()
	fn()
}

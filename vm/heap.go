package vm

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
)

// ---------------------------------------------------------------------------
// Heap: allocation accounting and collector hooks
// ---------------------------------------------------------------------------

// SlotName identifies a reference-holding field of a FunctionInfo for the
// collector's slot-update notification.
type SlotName uint8

const (
	SlotNameOrScope SlotName = iota
	SlotPayload
	SlotOuterContext
)

// SlotUpdateHook is called after a reference-holding slot of host has been
// rewritten outside the normal setters, so the collector can keep its
// cross-reference bookkeeping consistent. It must not allocate.
type SlotUpdateHook func(host *FunctionInfo, slot SlotName, target any)

// Heap is the engine-level allocator seen by the function metadata core.
// Every engine object the core creates goes through it, which lets it
// enforce no-allocation regions. Regions belong to the goroutine that
// opened them: a region open in one engine turn never blocks allocation
// in a concurrent turn.
type Heap struct {
	// locals maps goroutine id to the *LocalHeap of every goroutine with
	// an open region.
	locals      sync.Map
	open        atomic.Int32
	allocations atomic.Uint64
	slotUpdates atomic.Uint64
	hook        atomic.Pointer[SlotUpdateHook]
}

// NewHeap creates an empty heap.
func NewHeap() *Heap {
	return &Heap{}
}

// LocalHeap is one goroutine's view of a Heap. It counts the regions that
// goroutine has open.
type LocalHeap struct {
	heap    *Heap
	gid     uint64
	noAlloc atomic.Int32
}

// local returns the calling goroutine's LocalHeap, creating it when create
// is set. It returns nil when the goroutine has no open region.
func (h *Heap) local(create bool) *LocalHeap {
	gid := goroutineID()
	if v, ok := h.locals.Load(gid); ok {
		return v.(*LocalHeap)
	}
	if !create {
		return nil
	}
	lh := &LocalHeap{heap: h, gid: gid}
	h.locals.Store(gid, lh)
	return lh
}

// NoAllocScope brackets a region in which the heap refuses to allocate on
// the goroutine that opened it. Obtain one from Heap.DisallowAllocation and
// Release it exactly once, normally with defer, on the same goroutine.
type NoAllocScope struct {
	lh *LocalHeap
}

// DisallowAllocation opens a no-allocation region for the calling
// goroutine. Regions nest.
func (h *Heap) DisallowAllocation() NoAllocScope {
	lh := h.local(true)
	lh.noAlloc.Add(1)
	h.open.Add(1)
	return NoAllocScope{lh: lh}
}

// Release closes the region. Releasing more regions than were opened
// panics and leaves the count untouched.
func (s NoAllocScope) Release() {
	for {
		n := s.lh.noAlloc.Load()
		if n <= 0 {
			panic(invariant("NoAllocScope.Release", "released more scopes than were opened"))
		}
		if !s.lh.noAlloc.CompareAndSwap(n, n-1) {
			continue
		}
		s.lh.heap.open.Add(-1)
		if n == 1 {
			s.lh.heap.locals.CompareAndDelete(s.lh.gid, s.lh)
		}
		return
	}
}

// AllocationAllowed reports whether the calling goroutine has no open
// region.
func (h *Heap) AllocationAllowed() bool {
	if h.open.Load() == 0 {
		return true
	}
	lh := h.local(false)
	return lh == nil || lh.noAlloc.Load() == 0
}

// OpenRegions returns the number of regions open across all goroutines.
func (h *Heap) OpenRegions() int {
	return int(h.open.Load())
}

// goroutineID parses the calling goroutine's id from its stack header,
// which always reads "goroutine <id> [".
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := bytes.TrimPrefix(buf[:n], []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		panic(invariant("goroutineID", "unreadable stack header %q", buf[:n]))
	}
	return id
}

// Allocations returns the number of engine objects allocated so far.
func (h *Heap) Allocations() uint64 {
	return h.allocations.Load()
}

// SlotUpdates returns how many slot-update notifications were delivered.
func (h *Heap) SlotUpdates() uint64 {
	return h.slotUpdates.Load()
}

// SetSlotUpdateHook installs the collector's notification hook.
func (h *Heap) SetSlotUpdateHook(fn SlotUpdateHook) {
	if fn == nil {
		h.hook.Store(nil)
		return
	}
	h.hook.Store(&fn)
}

// NotifySlotUpdated forwards a slot rewrite to the installed hook.
// Safe inside a no-allocation region.
func (h *Heap) NotifySlotUpdated(host *FunctionInfo, slot SlotName, target any) {
	h.slotUpdates.Add(1)
	if fn := h.hook.Load(); fn != nil {
		(*fn)(host, slot, target)
	}
}

func (h *Heap) allocate(op string) {
	if !h.AllocationAllowed() {
		panic(invariant(op, "allocation inside a no-allocation region"))
	}
	h.allocations.Add(1)
}

// ---------------------------------------------------------------------------
// Factory methods
// ---------------------------------------------------------------------------

// NewDeferredParse allocates a deferred-parse summary. preparse may be nil.
func (h *Heap) NewDeferredParse(inferredName string, start, end int, preparse *PreparseScope) *DeferredParse {
	h.allocate("Heap.NewDeferredParse")
	d := &DeferredParse{
		inferredName: inferredName,
		start:        start,
		end:          end,
	}
	if preparse != nil {
		d.preparse.Store(preparse)
	}
	return d
}

// NewBytecodeProgram allocates a bytecode program without a position table.
func (h *Heap) NewBytecodeProgram(code []byte, frameSize, parameterCount int) *BytecodeProgram {
	h.allocate("Heap.NewBytecodeProgram")
	return &BytecodeProgram{
		Code:           code,
		FrameSize:      frameSize,
		ParameterCount: parameterCount,
	}
}

// NewScopeDescriptor allocates a scope descriptor.
func (h *Heap) NewScopeDescriptor(kind ScopeKind, functionName string, outer *ScopeDescriptor) *ScopeDescriptor {
	h.allocate("Heap.NewScopeDescriptor")
	return &ScopeDescriptor{
		Kind:         kind,
		FunctionName: functionName,
		outer:        outer,
	}
}

// NewDebugInfo allocates an empty debug info.
func (h *Heap) NewDebugInfo() *DebugInfo {
	h.allocate("Heap.NewDebugInfo")
	return &DebugInfo{breakPoints: make(map[int]BreakPoint)}
}

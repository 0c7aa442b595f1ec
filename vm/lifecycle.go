package vm

import "sync"

// ---------------------------------------------------------------------------
// Compilation lifecycle: uncompiled -> compiled -> discarded
// ---------------------------------------------------------------------------

// DiscardPolicy decides whether a compiled function is pinned, for example
// because one of its frames is on a stack. Pinned functions keep their
// compiled payload.
type DiscardPolicy interface {
	IsPinned(fi *FunctionInfo) bool
}

// IsCompiled reports whether the function can run without compiling first.
func (fi *FunctionInfo) IsCompiled() bool {
	switch p := fi.Payload().(type) {
	case *DeferredParse:
		return false
	case BuiltinRef:
		return p.ID != BuiltinCompileLazy
	}
	return true
}

// IsUserCode reports whether the function comes from a user-supplied source
// unit rather than engine internals or the host.
func (fi *FunctionInfo) IsUserCode() bool {
	if fi.IsNative() || fi.IsHostFunction() {
		return false
	}
	u := fi.SourceUnit()
	return u != nil && u.Kind() == UserUnit
}

// CanDiscardCompiled reports whether DiscardCompiled may run: the payload
// must be bytecode, a foreign module, or a deferred parse whose preparse
// cache can be dropped, and the isolate's discard policy must not pin it.
func (fi *FunctionInfo) CanDiscardCompiled() bool {
	switch {
	case fi.HasBytecodeProgram(), fi.HasForeignModuleData(), fi.HasDeferredParseWithPreparse():
	default:
		return false
	}
	if policy := fi.iso.DiscardPolicy(); policy != nil && policy.IsPinned(fi) {
		return false
	}
	return true
}

// discardedOuterSlot builds the outer slot a compiled record gets back on
// discard: its scope descriptor's outer scope, or none.
func (fi *FunctionInfo) discardedOuterSlot() *outerSlot {
	if s := fi.ScopeDescriptor(); s != nil {
		if s.HasOuterScope() {
			return &outerSlot{kind: OuterScope, scope: s.Outer()}
		}
		return noOuterSlot
	}
	if cur := fi.outer.Load(); cur.kind != OuterFeedback {
		return cur
	}
	return noOuterSlot
}

// DiscardCompiledMetadata replaces compiled-only metadata with what an
// uncompiled record keeps. For a compiled record the outer slot's feedback
// metadata is replaced by the statically known outer scope and notify is
// told about the rewritten slot. notify may be nil, in which case the
// isolate heap's hook is used. notify must not allocate.
func (fi *FunctionInfo) DiscardCompiledMetadata(notify SlotUpdateHook) {
	fi.discardCompiledMetadata(fi.discardedOuterSlot(), notify)
}

func (fi *FunctionInfo) discardCompiledMetadata(outer *outerSlot, notify SlotUpdateHook) {
	region := fi.iso.Heap.DisallowAllocation()
	defer region.Release()

	if !fi.IsCompiled() {
		if fi.HasFeedbackMetadata() {
			panic(invariant("FunctionInfo.DiscardCompiledMetadata", "uncompiled record holds feedback metadata"))
		}
		return
	}

	if fi.iso.Flags().TraceFlushBytecode {
		fi.iso.Tracer().Tracef("[discarding compiled metadata for %s]", fi)
	}

	fi.outer.Store(outer)
	var target any
	if outer.scope != nil {
		target = outer.scope
	}
	if notify == nil {
		fi.iso.Heap.NotifySlotUpdated(fi, SlotOuterContext, target)
	} else {
		notify(fi, SlotOuterContext, target)
	}
}

// DiscardCompiled drops the compiled payload and goes back to a
// deferred-parse payload built from the current inferred name and source
// extent, so the function recompiles from scratch on its next call. A
// deferred parse with a preparse cache just loses the cache.
//
// It returns an error wrapping ErrPreconditionNotMet when
// CanDiscardCompiled is false; the record is then unchanged.
func (fi *FunctionInfo) DiscardCompiled() error {
	if !fi.CanDiscardCompiled() {
		return precondition("discard compiled data of %s (%s payload)", fi, fi.PayloadKind())
	}

	inferredName := fi.InferredName()
	if inferredName == "" {
		inferredName = fi.Name()
	}
	start, end := fi.positions()

	// Everything that allocates happens before the region opens.
	var fresh *DeferredParse
	if !fi.HasDeferredParseWithPreparse() {
		fresh = fi.iso.Heap.NewDeferredParse(inferredName, start, end, nil)
	}
	outer := fi.discardedOuterSlot()
	defer fi.iso.profileEvent(ProfileDiscard, fi)

	region := fi.iso.Heap.DisallowAllocation()
	defer region.Release()

	fi.discardCompiledMetadata(outer, nil)
	if fresh == nil {
		fi.DeferredParse().clearPreparseScope()
		return nil
	}
	fi.setPayload(fresh)
	fi.iso.Heap.NotifySlotUpdated(fi, SlotPayload, fresh)
	return nil
}

// ClearPreparseData drops the preparse cache of a deferred-parse payload.
// Calling it on any other payload is an invariant violation.
func (fi *FunctionInfo) ClearPreparseData() {
	d := fi.DeferredParse()
	d.clearPreparseScope()
}

// InstallBytecode publishes the result of compiling the function: scope
// goes into the name slot, feedback into the outer slot, bytecode becomes
// the payload. The payload store comes last so that a thread seeing the
// bytecode also sees the scope and feedback.
//
// If scope has no position info it takes the record's current extent.
func (fi *FunctionInfo) InstallBytecode(bc *BytecodeProgram, scope *ScopeDescriptor, feedback *FeedbackMetadata) error {
	if bc == nil || scope == nil || feedback == nil {
		return precondition("install bytecode for %s: bytecode, scope and feedback are required", fi)
	}
	if fi.IsCompiled() && !fi.HasBuiltinID() {
		return precondition("install bytecode for %s: already compiled (%s payload)", fi, fi.PayloadKind())
	}
	if !scope.HasPositionInfo() {
		if start, end := fi.positions(); start != NoSourcePosition {
			scope.SetPositionInfo(start, end)
		}
	}
	if scope.InferredName == "" {
		scope.InferredName = fi.InferredName()
	}

	fi.setScopeDescriptor(scope)
	fi.outer.Store(&outerSlot{kind: OuterFeedback, feedback: feedback})
	fi.setPayload(bc)
	return nil
}

// InstallPayload publishes a compiled payload other than plain bytecode:
// a builtin, a foreign module, an export, a host template, a trampoline or
// a host/C wrapper. Bytecode goes through InstallBytecode, deferred parses
// through InitFromLiteral or DiscardCompiled.
func (fi *FunctionInfo) InstallPayload(p Payload) error {
	switch v := p.(type) {
	case nil:
		return precondition("install payload for %s: nil payload", fi)
	case *BytecodeProgram:
		return precondition("install payload for %s: use InstallBytecode for bytecode", fi)
	case *DeferredParse:
		return precondition("install payload for %s: deferred parse is not a compiled payload", fi)
	case *TrampolineData:
		if v.Bytecode == nil || v.Trampoline == nil || !v.Trampoline.IsInterpreterTrampoline() {
			return precondition("install payload for %s: trampoline data needs bytecode and a trampoline", fi)
		}
	case BuiltinRef:
		fi.setFlagBit(constructAsBuiltinBit, true)
	}
	fi.setPayload(p)
	return nil
}

// PinSet is a DiscardPolicy that pins explicitly registered functions,
// for example those with an active frame. Pins nest.
type PinSet struct {
	mu   sync.Mutex
	pins map[*FunctionInfo]int
}

// NewPinSet creates an empty pin set.
func NewPinSet() *PinSet {
	return &PinSet{pins: make(map[*FunctionInfo]int)}
}

// Pin pins fi once more.
func (s *PinSet) Pin(fi *FunctionInfo) {
	s.mu.Lock()
	s.pins[fi]++
	s.mu.Unlock()
}

// Unpin releases one pin of fi.
func (s *PinSet) Unpin(fi *FunctionInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pins[fi] <= 1 {
		delete(s.pins, fi)
		return
	}
	s.pins[fi]--
}

// IsPinned implements DiscardPolicy.
func (s *PinSet) IsPinned(fi *FunctionInfo) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pins[fi] > 0
}

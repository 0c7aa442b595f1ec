package vm

// ---------------------------------------------------------------------------
// Source positions
// ---------------------------------------------------------------------------

// StartPosition returns the function's start offset in its unit's source,
// or NoSourcePosition. Sources are tried in order: a scope descriptor with
// position info, a deferred-parse payload, host and builtin functions
// (always 0), and the exporting foreign module's function table.
func (fi *FunctionInfo) StartPosition() int {
	start, _ := fi.positions()
	return start
}

// EndPosition returns the function's end offset, or NoSourcePosition.
// Resolution follows StartPosition.
func (fi *FunctionInfo) EndPosition() int {
	_, end := fi.positions()
	return end
}

func (fi *FunctionInfo) positions() (start, end int) {
	if s := fi.ScopeDescriptor(); s != nil && s.HasPositionInfo() {
		return s.StartPosition(), s.EndPosition()
	}
	switch p := fi.Payload().(type) {
	case *DeferredParse:
		return p.StartPosition(), p.EndPosition()
	case *HostTemplate:
		return 0, 0
	case BuiltinRef:
		// CompileLazy stands in for a function that has source somewhere.
		if p.ID != BuiltinCompileLazy {
			return 0, 0
		}
	case *ExportedForeignFunction:
		if f, ok := p.Function(); ok {
			return f.CodeOffset, f.CodeEndOffset
		}
	}
	return NoSourcePosition, NoSourcePosition
}

// SourceSize returns EndPosition - StartPosition.
func (fi *FunctionInfo) SourceSize() int {
	start, end := fi.positions()
	return end - start
}

// SetPosition rewrites the source extent. It writes into the scope
// descriptor when that carries positions, otherwise into the deferred-parse
// payload after dropping any preparse cache, whose offsets would go stale.
// Any other state is an invariant violation.
func (fi *FunctionInfo) SetPosition(start, end int) {
	if s := fi.ScopeDescriptor(); s != nil && s.HasPositionInfo() {
		s.SetPositionInfo(start, end)
		return
	}
	d, ok := fi.Payload().(*DeferredParse)
	if !ok {
		panic(invariant("FunctionInfo.SetPosition", "no writable position source for %s payload", fi.PayloadKind()))
	}
	if d.HasPreparseScope() {
		d.clearPreparseScope()
	}
	d.setPositions(start, end)
}

// FunctionTokenPosition returns the offset of the function keyword token,
// or NoSourcePosition when it was too far from the start to be encoded.
func (fi *FunctionInfo) FunctionTokenPosition() int {
	offset := int(fi.rawFunctionTokenOffset)
	if offset == FunctionTokenOutOfRange {
		return NoSourcePosition
	}
	return fi.StartPosition() - offset
}

// SetFunctionTokenPosition stores the keyword token's position relative to
// start. Offsets beyond MaximumFunctionTokenOffset saturate to
// FunctionTokenOutOfRange.
func (fi *FunctionInfo) SetFunctionTokenPosition(tokenPosition, start int) {
	offset := 0
	if tokenPosition != NoSourcePosition {
		offset = start - tokenPosition
	}
	if offset > MaximumFunctionTokenOffset {
		offset = FunctionTokenOutOfRange
	}
	fi.rawFunctionTokenOffset = saturateUint16(offset)
}

// AreSourcePositionsAvailable reports whether the bytecode's position table
// is materialized. Only lazy source positions can make it false.
func (fi *FunctionInfo) AreSourcePositionsAvailable() bool {
	if !fi.iso.Flags().LazySourcePositions {
		return true
	}
	return !fi.HasBytecodeProgram() || fi.GetBytecodeProgram().HasSourcePositionTable()
}

// EnsureSourcePositionsAvailable asks the isolate's compiler to materialize
// the position table when lazy source positions left it out.
func (fi *FunctionInfo) EnsureSourcePositionsAvailable() error {
	if fi.AreSourcePositionsAvailable() {
		return nil
	}
	c := fi.iso.Compiler()
	if c == nil {
		return precondition("collect source positions for %s: no compiler configured", fi)
	}
	return c.CollectSourcePositions(fi)
}

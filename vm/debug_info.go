package vm

import (
	"sort"
	"sync"
)

// ---------------------------------------------------------------------------
// DebugInfo: debugger and coverage state attached to a function
// ---------------------------------------------------------------------------

// BreakPoint is a breakpoint at a source position inside a function.
type BreakPoint struct {
	Position  int
	Condition string
}

// CoverageSlot counts invocations of a source range.
type CoverageSlot struct {
	Start int
	End   int
	Count uint32
}

// CoverageInfo holds block coverage counters for one function.
type CoverageInfo struct {
	Slots []CoverageSlot
}

// DebugInfo is created on demand when a debugger or coverage collector
// first touches a function.
type DebugInfo struct {
	mu           sync.RWMutex
	breakPoints  map[int]BreakPoint
	breakAtEntry bool
	coverage     *CoverageInfo
}

// HasBreakInfo reports whether any breakpoint is set.
func (d *DebugInfo) HasBreakInfo() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.breakAtEntry || len(d.breakPoints) > 0
}

// BreakAtEntry reports whether execution stops on function entry.
func (d *DebugInfo) BreakAtEntry() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.breakAtEntry
}

// SetBreakAtEntry sets or clears the entry breakpoint.
func (d *DebugInfo) SetBreakAtEntry(v bool) {
	d.mu.Lock()
	d.breakAtEntry = v
	d.mu.Unlock()
}

// SetBreakPoint adds or replaces the breakpoint at position.
func (d *DebugInfo) SetBreakPoint(position int, condition string) {
	d.mu.Lock()
	d.breakPoints[position] = BreakPoint{Position: position, Condition: condition}
	d.mu.Unlock()
}

// ClearBreakPoint removes the breakpoint at position, if any.
func (d *DebugInfo) ClearBreakPoint(position int) {
	d.mu.Lock()
	delete(d.breakPoints, position)
	d.mu.Unlock()
}

// BreakPoints returns the breakpoints sorted by position.
func (d *DebugInfo) BreakPoints() []BreakPoint {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]BreakPoint, 0, len(d.breakPoints))
	for _, bp := range d.breakPoints {
		out = append(out, bp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// HasCoverageInfo reports whether coverage counters are attached.
func (d *DebugInfo) HasCoverageInfo() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.coverage != nil
}

// CoverageInfo returns the coverage counters, or nil.
func (d *DebugInfo) CoverageInfo() *CoverageInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.coverage
}

// SetCoverageInfo attaches coverage counters; nil detaches them.
func (d *DebugInfo) SetCoverageInfo(c *CoverageInfo) {
	d.mu.Lock()
	d.coverage = c
	d.mu.Unlock()
}

// ---------------------------------------------------------------------------
// FunctionInfo debug accessors
// ---------------------------------------------------------------------------

// HasDebugInfo reports whether debug info was created for the function.
func (fi *FunctionInfo) HasDebugInfo() bool {
	return fi.debug.Load() != nil
}

// GetDebugInfo returns the debug info, or nil.
func (fi *FunctionInfo) GetDebugInfo() *DebugInfo {
	return fi.debug.Load()
}

// EnsureDebugInfo returns the function's debug info, creating it first if
// needed. It allocates and must not run inside a no-allocation region.
func (fi *FunctionInfo) EnsureDebugInfo() *DebugInfo {
	if d := fi.debug.Load(); d != nil {
		return d
	}
	d := fi.iso.Heap.NewDebugInfo()
	if fi.debug.CompareAndSwap(nil, d) {
		return d
	}
	return fi.debug.Load()
}

// HasBreakInfo reports whether the debugger set breakpoints in the function.
func (fi *FunctionInfo) HasBreakInfo() bool {
	d := fi.debug.Load()
	return d != nil && d.HasBreakInfo()
}

// BreakAtEntry reports whether the debugger stops on function entry.
func (fi *FunctionInfo) BreakAtEntry() bool {
	d := fi.debug.Load()
	return d != nil && d.BreakAtEntry()
}

// HasCoverageInfo reports whether block coverage is collected.
func (fi *FunctionInfo) HasCoverageInfo() bool {
	d := fi.debug.Load()
	return d != nil && d.HasCoverageInfo()
}

// CoverageInfo returns the coverage counters. Panics unless HasCoverageInfo.
func (fi *FunctionInfo) CoverageInfo() *CoverageInfo {
	d := fi.debug.Load()
	if d == nil || !d.HasCoverageInfo() {
		panic(invariant("FunctionInfo.CoverageInfo", "%s has no coverage info", fi))
	}
	return d.CoverageInfo()
}

// DebugName returns the name for stack traces and profiles: the function's
// name, or its inferred name when it has none.
func (fi *FunctionInfo) DebugName() string {
	if name := fi.Name(); name != "" {
		return name
	}
	return fi.InferredName()
}

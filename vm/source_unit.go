package vm

import (
	"fmt"
	"sync/atomic"
)

// ---------------------------------------------------------------------------
// SourceUnit: a parsed source file or eval unit
// ---------------------------------------------------------------------------

// UnitKind says where a source unit came from.
type UnitKind uint8

const (
	UserUnit UnitKind = iota
	NativeUnit
	ExtensionUnit
	InspectorUnit
)

var unitKindNames = [...]string{
	UserUnit:      "user",
	NativeUnit:    "native",
	ExtensionUnit: "extension",
	InspectorUnit: "inspector",
}

func (k UnitKind) String() string {
	if int(k) < len(unitKindNames) {
		return unitKindNames[k]
	}
	return "unknown"
}

// ParseUnitKind maps a kind name back to its value. The empty string is
// UserUnit.
func ParseUnitKind(s string) (UnitKind, error) {
	if s == "" {
		return UserUnit, nil
	}
	for k, name := range unitKindNames {
		if name == s {
			return UnitKind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown unit kind %q", s)
}

// SourceUnit owns the source text of one script and a weak table of the
// FunctionInfos defined in it, indexed by literal id.
type SourceUnit struct {
	id     int
	name   string
	kind   UnitKind
	source string

	// WrappedArguments are the synthetic parameter names of a unit whose
	// toplevel function was wrapped by the embedder.
	WrappedArguments []string

	table atomic.Pointer[FunctionTable]
}

// ID returns the unit's isolate-unique id.
func (u *SourceUnit) ID() int { return u.id }

// Name returns the unit's name, usually a file name or URL.
func (u *SourceUnit) Name() string { return u.name }

// Kind returns where the unit came from.
func (u *SourceUnit) Kind() UnitKind { return u.kind }

// Source returns the unit's source text.
func (u *SourceUnit) Source() string { return u.source }

// FunctionTable returns the unit's current function table.
func (u *SourceUnit) FunctionTable() *FunctionTable {
	return u.table.Load()
}

// GrowFunctionTable replaces the table with one of at least n slots,
// carrying over every slot. A record registered into the old table while
// the copy runs stays reachable through the old table only until the next
// association; registries tolerate that transient duplicate.
func (u *SourceUnit) GrowFunctionTable(n int) *FunctionTable {
	old := u.table.Load()
	if n <= old.Len() {
		return old
	}
	next := old.grow(n)
	u.table.Store(next)
	return next
}

func (u *SourceUnit) String() string {
	return u.kind.String() + ":" + u.name
}

// ---------------------------------------------------------------------------
// FunctionTable
// ---------------------------------------------------------------------------

// FunctionTable is a fixed-size, index-addressable table of weak slots.
type FunctionTable struct {
	slots []WeakSlot
}

// NewFunctionTable creates a table of n empty slots.
func NewFunctionTable(n int) *FunctionTable {
	return &FunctionTable{slots: make([]WeakSlot, n)}
}

// Len returns the number of slots.
func (t *FunctionTable) Len() int {
	return len(t.slots)
}

// Slot returns slot i. Out-of-range indices are an invariant violation.
func (t *FunctionTable) Slot(i int) *WeakSlot {
	if i < 0 || i >= len(t.slots) {
		panic(invariant("FunctionTable.Slot", "index %d out of range [0,%d)", i, len(t.slots)))
	}
	return &t.slots[i]
}

// Get returns the record in slot i, or nil for empty, cleared, reclaimed
// or out-of-range slots.
func (t *FunctionTable) Get(i int) *FunctionInfo {
	if i < 0 || i >= len(t.slots) {
		return nil
	}
	return t.slots[i].Get()
}

func (t *FunctionTable) grow(n int) *FunctionTable {
	next := NewFunctionTable(n)
	for i := range t.slots {
		if v := t.slots[i].v.Load(); v != nil {
			next.slots[i].v.Store(v)
		}
	}
	return next
}

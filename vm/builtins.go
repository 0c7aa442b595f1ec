package vm

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// ---------------------------------------------------------------------------
// Code objects and the builtin table
// ---------------------------------------------------------------------------

// CodeKind classifies an entry point.
type CodeKind uint8

const (
	CodeBuiltin CodeKind = iota
	CodeWrapper
	CodeOptimized
)

func (k CodeKind) String() string {
	switch k {
	case CodeBuiltin:
		return "builtin"
	case CodeWrapper:
		return "wrapper"
	case CodeOptimized:
		return "optimized"
	}
	return "unknown"
}

// Code is a low-level entry point a call can jump to.
type Code struct {
	Kind    CodeKind
	Builtin BuiltinID // NoBuiltinID unless Kind == CodeBuiltin
	Name    string

	interpreterTrampoline bool
}

// IsInterpreterTrampoline reports whether the code is the interpreter entry
// trampoline or a per-function copy of it.
func (c *Code) IsInterpreterTrampoline() bool {
	return c.interpreterTrampoline
}

func (c *Code) String() string {
	return c.Kind.String() + ":" + c.Name
}

// NewWrapperCode creates a non-builtin entry point such as a foreign-call
// wrapper.
func NewWrapperCode(name string) *Code {
	return &Code{Kind: CodeWrapper, Builtin: NoBuiltinID, Name: name}
}

// BuiltinID indexes the builtin table.
type BuiltinID int32

// NoBuiltinID marks code that is not a builtin.
const NoBuiltinID BuiltinID = -1

// Builtins every isolate registers, in table order.
const (
	BuiltinIllegal BuiltinID = iota
	BuiltinCompileLazy
	BuiltinInterpreterEntryTrampoline
	BuiltinInstantiateForeignModule
	BuiltinHandleHostCall
	BuiltinEmptyFunction
	BuiltinArrayPrototypePush
	BuiltinArrayPrototypePop
	BuiltinMathMax
	BuiltinMathMin
	BuiltinStringPrototypeCharAt
	BuiltinFunctionPrototypeApply
	BuiltinFunctionPrototypeCall
	BuiltinObjectKeys
	builtinCount
)

var builtinNames = [builtinCount]string{
	BuiltinIllegal:                    "Illegal",
	BuiltinCompileLazy:                "CompileLazy",
	BuiltinInterpreterEntryTrampoline: "InterpreterEntryTrampoline",
	BuiltinInstantiateForeignModule:   "InstantiateForeignModule",
	BuiltinHandleHostCall:             "HandleHostCall",
	BuiltinEmptyFunction:              "EmptyFunction",
	BuiltinArrayPrototypePush:         "ArrayPrototypePush",
	BuiltinArrayPrototypePop:          "ArrayPrototypePop",
	BuiltinMathMax:                    "MathMax",
	BuiltinMathMin:                    "MathMin",
	BuiltinStringPrototypeCharAt:      "StringPrototypeCharAt",
	BuiltinFunctionPrototypeApply:     "FunctionPrototypeApply",
	BuiltinFunctionPrototypeCall:      "FunctionPrototypeCall",
	BuiltinObjectKeys:                 "ObjectKeys",
}

// Builtins is the host-supplied builtin-id -> entry-point table.
// Lookups are lock-free after construction; Register takes a lock and
// publishes a new table.
type Builtins struct {
	mu    sync.Mutex
	table atomic.Pointer[[]*Code]
}

// NewBuiltins creates the table with every standard builtin registered.
func NewBuiltins() *Builtins {
	table := make([]*Code, builtinCount)
	for id := range table {
		table[id] = &Code{
			Kind:                  CodeBuiltin,
			Builtin:               BuiltinID(id),
			Name:                  builtinNames[id],
			interpreterTrampoline: BuiltinID(id) == BuiltinInterpreterEntryTrampoline,
		}
	}
	b := &Builtins{}
	b.table.Store(&table)
	return b
}

// Register appends a host builtin and returns its id.
func (b *Builtins) Register(name string) BuiltinID {
	b.mu.Lock()
	defer b.mu.Unlock()
	cur := *b.table.Load()
	id := BuiltinID(len(cur))
	next := make([]*Code, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, &Code{Kind: CodeBuiltin, Builtin: id, Name: name})
	b.table.Store(&next)
	return id
}

// Count returns the number of registered builtins.
func (b *Builtins) Count() int {
	return len(*b.table.Load())
}

// Lookup returns the entry point for id. An unknown id is an invariant
// violation: builtin ids only come from this table.
func (b *Builtins) Lookup(id BuiltinID) *Code {
	table := *b.table.Load()
	if id < 0 || int(id) >= len(table) {
		panic(invariant("Builtins.Lookup", "builtin id %d out of range [0,%d)", id, len(table)))
	}
	return table[id]
}

// Name returns the builtin's name, or a placeholder for unknown ids.
func (b *Builtins) Name(id BuiltinID) string {
	table := *b.table.Load()
	if id < 0 || int(id) >= len(table) {
		return fmt.Sprintf("<builtin %d>", id)
	}
	return table[id].Name
}

// IDByName returns the id of the builtin called name.
func (b *Builtins) IDByName(name string) (BuiltinID, bool) {
	for id, c := range *b.table.Load() {
		if c.Name == name {
			return BuiltinID(id), true
		}
	}
	return NoBuiltinID, false
}

// NewInterpreterTrampolineCopy creates a per-function copy of the
// interpreter entry trampoline, used by TrampolineData payloads.
func (b *Builtins) NewInterpreterTrampolineCopy(name string) *Code {
	return &Code{
		Kind:                  CodeBuiltin,
		Builtin:               BuiltinInterpreterEntryTrampoline,
		Name:                  "InterpreterEntryTrampoline:" + name,
		interpreterTrampoline: true,
	}
}

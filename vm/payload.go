package vm

import (
	"sync/atomic"
)

// ---------------------------------------------------------------------------
// Payload: the executable representation of a function
// ---------------------------------------------------------------------------

// PayloadKind enumerates the closed set of payload variants.
type PayloadKind uint8

const (
	PayloadBuiltin PayloadKind = iota
	PayloadBytecode
	PayloadForeignModule
	PayloadDeferredParse
	PayloadHostTemplate
	PayloadExportedForeignFunction
	PayloadTrampoline
	PayloadHostCallback
	PayloadCCallable
	payloadKindCount
)

var payloadKindNames = [payloadKindCount]string{
	PayloadBuiltin:                 "builtin",
	PayloadBytecode:                "bytecode",
	PayloadForeignModule:           "foreign-module",
	PayloadDeferredParse:           "deferred-parse",
	PayloadHostTemplate:            "host-template",
	PayloadExportedForeignFunction: "exported-foreign-function",
	PayloadTrampoline:              "interpreter-trampoline",
	PayloadHostCallback:            "host-callback",
	PayloadCCallable:               "c-callable",
}

func (k PayloadKind) String() string {
	if k < payloadKindCount {
		return payloadKindNames[k]
	}
	return "corrupt"
}

// PayloadKinds lists every valid variant in dispatch order.
func PayloadKinds() []PayloadKind {
	kinds := make([]PayloadKind, payloadKindCount)
	for i := range kinds {
		kinds[i] = PayloadKind(i)
	}
	return kinds
}

// Payload is implemented only by the variant types in this file. Access
// goes through a type switch or the typed accessors on FunctionInfo, which
// panic on a wrong-variant read.
type Payload interface {
	Kind() PayloadKind
	isPayload()
}

// payloadCell boxes a payload so it can be published with a single atomic
// pointer store. The cell's identity changes on every install, which the
// entry cache uses for validation.
type payloadCell struct {
	p Payload
}

// BuiltinRef runs the function through a builtin.
type BuiltinRef struct {
	ID BuiltinID
}

func (BuiltinRef) Kind() PayloadKind { return PayloadBuiltin }
func (BuiltinRef) isPayload()        {}

// ---------------------------------------------------------------------------
// BytecodeProgram
// ---------------------------------------------------------------------------

// BytecodeProgram is a compiled, interpreted function body.
type BytecodeProgram struct {
	Code           []byte
	FrameSize      int
	ParameterCount int

	positions atomic.Pointer[SourcePositionTable]
	age       atomic.Uint32
}

func (*BytecodeProgram) Kind() PayloadKind { return PayloadBytecode }
func (*BytecodeProgram) isPayload()        {}

// Length returns the bytecode length in bytes.
func (b *BytecodeProgram) Length() int {
	return len(b.Code)
}

// HasSourcePositionTable reports whether positions have been materialized.
func (b *BytecodeProgram) HasSourcePositionTable() bool {
	return b.positions.Load() != nil
}

// SourcePositionTable returns the position table, or nil.
func (b *BytecodeProgram) SourcePositionTable() *SourcePositionTable {
	return b.positions.Load()
}

// SetSourcePositionTable publishes a materialized position table.
func (b *BytecodeProgram) SetSourcePositionTable(t *SourcePositionTable) {
	b.positions.Store(t)
}

// Age returns the number of flusher sweeps since the program last ran.
func (b *BytecodeProgram) Age() uint32 {
	return b.age.Load()
}

// MakeOlder advances the age by one sweep and returns the new age.
func (b *BytecodeProgram) MakeOlder() uint32 {
	return b.age.Add(1)
}

// MarkExecuted resets the age; the interpreter calls it on entry.
func (b *BytecodeProgram) MarkExecuted() {
	b.age.Store(0)
}

// PositionEntry maps a bytecode offset to a source offset.
type PositionEntry struct {
	CodeOffset     int
	SourcePosition int
	IsStatement    bool
}

// SourcePositionTable maps bytecode offsets to source positions. Entries are
// sorted by CodeOffset.
type SourcePositionTable struct {
	entries []PositionEntry
}

// NewSourcePositionTable wraps entries, which must be sorted by CodeOffset.
func NewSourcePositionTable(entries []PositionEntry) *SourcePositionTable {
	return &SourcePositionTable{entries: entries}
}

// Len returns the number of entries.
func (t *SourcePositionTable) Len() int {
	return len(t.entries)
}

// Entries returns the entries in code order.
func (t *SourcePositionTable) Entries() []PositionEntry {
	return t.entries
}

// Lookup returns the source position of the last entry at or before
// codeOffset.
func (t *SourcePositionTable) Lookup(codeOffset int) (int, bool) {
	var found *PositionEntry
	for i := range t.entries {
		if t.entries[i].CodeOffset > codeOffset {
			break
		}
		found = &t.entries[i]
	}
	if found == nil {
		return NoSourcePosition, false
	}
	return found.SourcePosition, true
}

// ---------------------------------------------------------------------------
// Foreign module variants
// ---------------------------------------------------------------------------

// ForeignFunction is one function of a separately compiled foreign module.
type ForeignFunction struct {
	Name          string
	CodeOffset    int
	CodeEndOffset int
}

// ForeignModule is a compiled foreign module with its function table.
type ForeignModule struct {
	Name      string
	Functions []ForeignFunction
}

// ForeignModuleData marks a function whose body is a foreign module that is
// instantiated on first call.
type ForeignModuleData struct {
	Module *ForeignModule
}

func (*ForeignModuleData) Kind() PayloadKind { return PayloadForeignModule }
func (*ForeignModuleData) isPayload()        {}

// ExportedForeignFunction is a function exported from an instantiated
// foreign module. Its entry point is the embedded wrapper.
type ExportedForeignFunction struct {
	Module        *ForeignModule
	FunctionIndex int
	WrapperCode   *Code
}

func (*ExportedForeignFunction) Kind() PayloadKind { return PayloadExportedForeignFunction }
func (*ExportedForeignFunction) isPayload()        {}

// Function returns the module's entry for this export, or false when the
// index is outside the module's table.
func (e *ExportedForeignFunction) Function() (ForeignFunction, bool) {
	if e.Module == nil || e.FunctionIndex < 0 || e.FunctionIndex >= len(e.Module.Functions) {
		return ForeignFunction{}, false
	}
	return e.Module.Functions[e.FunctionIndex], true
}

// HostCallbackData wraps a host function imported into a foreign module.
type HostCallbackData struct {
	Signature   string
	WrapperCode *Code
}

func (*HostCallbackData) Kind() PayloadKind { return PayloadHostCallback }
func (*HostCallbackData) isPayload()        {}

// CCallableData wraps a C-callable function exposed to a foreign module.
type CCallableData struct {
	Symbol      string
	WrapperCode *Code
}

func (*CCallableData) Kind() PayloadKind { return PayloadCCallable }
func (*CCallableData) isPayload()        {}

// ---------------------------------------------------------------------------
// Host and interpreter variants
// ---------------------------------------------------------------------------

// HostTemplate describes a function implemented by the embedder.
type HostTemplate struct {
	ClassName string
	Callback  string
}

func (*HostTemplate) Kind() PayloadKind { return PayloadHostTemplate }
func (*HostTemplate) isPayload()        {}

// TrampolineData pairs a bytecode program with a dedicated copy of the
// interpreter entry trampoline.
type TrampolineData struct {
	Bytecode   *BytecodeProgram
	Trampoline *Code
}

func (*TrampolineData) Kind() PayloadKind { return PayloadTrampoline }
func (*TrampolineData) isPayload()        {}

// ---------------------------------------------------------------------------
// DeferredParse
// ---------------------------------------------------------------------------

// PreparseScope is the cached result of the preparser for a lazy function.
type PreparseScope struct {
	Data          []byte
	ChildrenCount int
}

// DeferredParse is what a function that has not been compiled keeps: its
// inferred name, its source extent and optionally a preparse cache.
type DeferredParse struct {
	inferredName string
	start        int
	end          int

	preparse atomic.Pointer[PreparseScope]
}

func (*DeferredParse) Kind() PayloadKind { return PayloadDeferredParse }
func (*DeferredParse) isPayload()        {}

// InferredName returns the name inferred by the parser.
func (d *DeferredParse) InferredName() string {
	return d.inferredName
}

// StartPosition returns the function's start offset.
func (d *DeferredParse) StartPosition() int {
	return d.start
}

// EndPosition returns the function's end offset.
func (d *DeferredParse) EndPosition() int {
	return d.end
}

// HasPreparseScope reports whether a preparse cache is attached.
func (d *DeferredParse) HasPreparseScope() bool {
	return d.preparse.Load() != nil
}

// PreparseScope returns the attached cache, or nil.
func (d *DeferredParse) PreparseScope() *PreparseScope {
	return d.preparse.Load()
}

func (d *DeferredParse) setPositions(start, end int) {
	d.start = start
	d.end = end
}

func (d *DeferredParse) clearPreparseScope() {
	d.preparse.Store(nil)
}

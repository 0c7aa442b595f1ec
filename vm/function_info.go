package vm

import (
	"math"
	"sync/atomic"

	"fortio.org/safecast"
)

// ---------------------------------------------------------------------------
// FunctionInfo: per-definition function metadata
// ---------------------------------------------------------------------------

const (
	// NoSourcePosition is returned when a position cannot be determined.
	NoSourcePosition = -1

	// InvalidLiteralID marks a record that has no slot in any function table.
	InvalidLiteralID = -1

	// FunctionTokenOutOfRange is stored when the keyword token is too far
	// from the start position to be encoded.
	FunctionTokenOutOfRange = math.MaxUint16

	// MaximumFunctionTokenOffset is the largest encodable token offset.
	MaximumFunctionTokenOffset = FunctionTokenOutOfRange - 1

	// MaxExpectedProperties caps the property-count estimate.
	MaxExpectedProperties = math.MaxUint8
)

// NameSlotKind says which of the name slot's three meanings is active.
type NameSlotKind uint8

const (
	NameSentinel NameSlotKind = iota
	NameString
	NameScope
)

type nameSlot struct {
	kind  NameSlotKind
	name  string
	scope *ScopeDescriptor
}

var noNameSlot = &nameSlot{kind: NameSentinel}

// OuterSlotKind says what the outer context slot currently holds. OuterScope
// and OuterNone belong to the uncompiled state, OuterFeedback to the compiled
// state.
type OuterSlotKind uint8

const (
	OuterNone OuterSlotKind = iota
	OuterScope
	OuterFeedback
)

type outerSlot struct {
	kind     OuterSlotKind
	scope    *ScopeDescriptor
	feedback *FeedbackMetadata
}

var noOuterSlot = &outerSlot{kind: OuterNone}

// FeedbackMetadata describes the feedback vector layout of compiled code.
type FeedbackMetadata struct {
	SlotCount        int
	ClosureCellCount int
}

// FunctionInfo describes one function definition independently of the
// closures created from it: its source extent, its current executable
// payload and its lazy-compilation state.
//
// Payload, name slot, outer slot and source-unit reference are published
// with atomic stores and read with atomic loads, so background compiler
// threads observe fully built payloads. The remaining scalar fields are
// written only on the engine's execution turn.
type FunctionInfo struct {
	iso *Isolate

	uniqueID    int32
	hasUniqueID bool

	nameOrScope atomic.Pointer[nameSlot]
	payload     atomic.Pointer[payloadCell]
	outer       atomic.Pointer[outerSlot]
	unit        atomic.Pointer[SourceUnit]
	debug       atomic.Pointer[DebugInfo]
	literalID   atomic.Int32
	flags       atomic.Uint32

	length                 uint16
	paramCount             uint16
	expectedNofProperties  uint8
	rawFunctionTokenOffset uint16
}

// init puts a freshly allocated record into its empty state: the Illegal
// builtin as payload, no name, no outer scope, no source unit.
func (fi *FunctionInfo) init() {
	scope := fi.iso.Heap.DisallowAllocation()
	defer scope.Release()

	fi.payload.Store(&payloadCell{p: BuiltinRef{ID: BuiltinIllegal}})
	fi.nameOrScope.Store(noNameSlot)
	fi.outer.Store(noOuterSlot)
	fi.unit.Store(nil)
	fi.debug.Store(nil)
	fi.literalID.Store(InvalidLiteralID)

	fi.length = 0
	fi.paramCount = 0
	fi.expectedNofProperties = 0
	fi.rawFunctionTokenOffset = 0

	// The Illegal builtin is a builtin, so construct-as-builtin starts set.
	fi.flags.Store(uint32(constructAsBuiltinBit.setBool(0, true)))
}

// Isolate returns the isolate the record belongs to.
func (fi *FunctionInfo) Isolate() *Isolate {
	return fi.iso
}

// UniqueID returns the platform identity hint, if one was assigned.
func (fi *FunctionInfo) UniqueID() (int, bool) {
	return int(fi.uniqueID), fi.hasUniqueID
}

// ---------------------------------------------------------------------------
// Payload access
// ---------------------------------------------------------------------------

// Payload returns the active payload variant.
func (fi *FunctionInfo) Payload() Payload {
	return fi.payload.Load().p
}

// PayloadKind returns the active variant's kind.
func (fi *FunctionInfo) PayloadKind() PayloadKind {
	return fi.Payload().Kind()
}

// Is reports whether kind is the active variant. Exactly one kind answers
// true at any observation point.
func (fi *FunctionInfo) Is(kind PayloadKind) bool {
	return fi.PayloadKind() == kind
}

func (fi *FunctionInfo) setPayload(p Payload) {
	fi.payload.Store(&payloadCell{p: p})
}

func payloadAs[T Payload](fi *FunctionInfo, op string) T {
	p := fi.Payload()
	v, ok := p.(T)
	if !ok {
		panic(invariant(op, "payload is %s", p.Kind()))
	}
	return v
}

// HasBuiltinID reports whether the payload is a builtin reference.
func (fi *FunctionInfo) HasBuiltinID() bool {
	_, ok := fi.Payload().(BuiltinRef)
	return ok
}

// BuiltinID returns the builtin id. Panics unless HasBuiltinID.
func (fi *FunctionInfo) BuiltinID() BuiltinID {
	return payloadAs[BuiltinRef](fi, "FunctionInfo.BuiltinID").ID
}

// HasBytecodeProgram reports whether bytecode is attached, either directly
// or through interpreter-trampoline data.
func (fi *FunctionInfo) HasBytecodeProgram() bool {
	switch fi.Payload().(type) {
	case *BytecodeProgram, *TrampolineData:
		return true
	}
	return false
}

// GetBytecodeProgram returns the attached bytecode. Panics unless
// HasBytecodeProgram.
func (fi *FunctionInfo) GetBytecodeProgram() *BytecodeProgram {
	switch p := fi.Payload().(type) {
	case *BytecodeProgram:
		return p
	case *TrampolineData:
		return p.Bytecode
	default:
		panic(invariant("FunctionInfo.GetBytecodeProgram", "payload is %s", p.Kind()))
	}
}

// HasDeferredParse reports whether the function is waiting to be compiled.
func (fi *FunctionInfo) HasDeferredParse() bool {
	_, ok := fi.Payload().(*DeferredParse)
	return ok
}

// HasDeferredParseWithPreparse reports whether the deferred-parse payload
// carries a preparse cache.
func (fi *FunctionInfo) HasDeferredParseWithPreparse() bool {
	d, ok := fi.Payload().(*DeferredParse)
	return ok && d.HasPreparseScope()
}

// DeferredParse returns the deferred-parse payload. Panics unless
// HasDeferredParse.
func (fi *FunctionInfo) DeferredParse() *DeferredParse {
	return payloadAs[*DeferredParse](fi, "FunctionInfo.DeferredParse")
}

// IsHostFunction reports whether the function is implemented by the embedder.
func (fi *FunctionInfo) IsHostFunction() bool {
	_, ok := fi.Payload().(*HostTemplate)
	return ok
}

// HostTemplate returns the host template. Panics unless IsHostFunction.
func (fi *FunctionInfo) HostTemplate() *HostTemplate {
	return payloadAs[*HostTemplate](fi, "FunctionInfo.HostTemplate")
}

// HasForeignModuleData reports whether the body is an uninstantiated
// foreign module.
func (fi *FunctionInfo) HasForeignModuleData() bool {
	_, ok := fi.Payload().(*ForeignModuleData)
	return ok
}

// ForeignModuleData returns the foreign module payload. Panics unless
// HasForeignModuleData.
func (fi *FunctionInfo) ForeignModuleData() *ForeignModuleData {
	return payloadAs[*ForeignModuleData](fi, "FunctionInfo.ForeignModuleData")
}

// HasExportedForeignFunction reports whether the function is a foreign
// module export.
func (fi *FunctionInfo) HasExportedForeignFunction() bool {
	_, ok := fi.Payload().(*ExportedForeignFunction)
	return ok
}

// ExportedForeignFunction returns the export payload. Panics unless
// HasExportedForeignFunction.
func (fi *FunctionInfo) ExportedForeignFunction() *ExportedForeignFunction {
	return payloadAs[*ExportedForeignFunction](fi, "FunctionInfo.ExportedForeignFunction")
}

// TrampolineData returns the trampoline payload. Panics on any other variant.
func (fi *FunctionInfo) TrampolineData() *TrampolineData {
	return payloadAs[*TrampolineData](fi, "FunctionInfo.TrampolineData")
}

// ---------------------------------------------------------------------------
// Name slot
// ---------------------------------------------------------------------------

// NameSlotKind returns which meaning the name slot currently has.
func (fi *FunctionInfo) NameSlotKind() NameSlotKind {
	return fi.nameOrScope.Load().kind
}

// ScopeDescriptor returns the scope held in the name slot, or nil.
func (fi *FunctionInfo) ScopeDescriptor() *ScopeDescriptor {
	slot := fi.nameOrScope.Load()
	if slot.kind != NameScope {
		return nil
	}
	return slot.scope
}

// HasSharedName reports whether the record names its function.
func (fi *FunctionInfo) HasSharedName() bool {
	slot := fi.nameOrScope.Load()
	switch slot.kind {
	case NameString:
		return true
	case NameScope:
		return slot.scope.HasSharedName()
	}
	return false
}

// Name returns the function name, or "" for anonymous functions.
func (fi *FunctionInfo) Name() string {
	slot := fi.nameOrScope.Load()
	switch slot.kind {
	case NameString:
		return slot.name
	case NameScope:
		return slot.scope.FunctionName
	}
	return ""
}

// SetName stores name. Once a scope descriptor occupies the slot the name
// goes into a copy of the descriptor; a published descriptor is never
// written.
func (fi *FunctionInfo) SetName(name string) {
	for {
		slot := fi.nameOrScope.Load()
		next := noNameSlot
		switch {
		case slot.kind == NameScope:
			scope := *slot.scope
			scope.FunctionName = name
			next = &nameSlot{kind: NameScope, scope: &scope}
		case name != "":
			next = &nameSlot{kind: NameString, name: name}
		}
		if fi.nameOrScope.CompareAndSwap(slot, next) {
			return
		}
	}
}

// setScopeDescriptor moves the name into scope and installs it.
func (fi *FunctionInfo) setScopeDescriptor(scope *ScopeDescriptor) {
	if scope.FunctionName == "" {
		scope.FunctionName = fi.Name()
	}
	fi.nameOrScope.Store(&nameSlot{kind: NameScope, scope: scope})
}

// InferredName returns the name the parser inferred for an anonymous
// function from its surroundings, or "".
func (fi *FunctionInfo) InferredName() string {
	if s := fi.ScopeDescriptor(); s != nil && s.InferredName != "" {
		return s.InferredName
	}
	if d, ok := fi.Payload().(*DeferredParse); ok {
		return d.InferredName()
	}
	return ""
}

// ---------------------------------------------------------------------------
// Outer context slot
// ---------------------------------------------------------------------------

// OuterSlotKind returns what the outer slot holds right now.
func (fi *FunctionInfo) OuterSlotKind() OuterSlotKind {
	return fi.outer.Load().kind
}

// OuterScope returns the outer scope stored for an uncompiled function, or
// nil when there is none. Reading it while the slot holds compiled-only
// feedback metadata is an invariant violation.
func (fi *FunctionInfo) OuterScope() *ScopeDescriptor {
	slot := fi.outer.Load()
	if slot.kind == OuterFeedback {
		panic(invariant("FunctionInfo.OuterScope", "outer slot holds feedback metadata of compiled code"))
	}
	return slot.scope
}

// HasOuterScope reports whether an enclosing scope is known, whichever
// state the record is in.
func (fi *FunctionInfo) HasOuterScope() bool {
	return fi.ResolveOuterScope() != nil
}

// ResolveOuterScope returns the enclosing scope: from the function's own
// scope descriptor when compiled, from the outer slot otherwise.
func (fi *FunctionInfo) ResolveOuterScope() *ScopeDescriptor {
	slot := fi.outer.Load()
	if slot.kind == OuterFeedback {
		if s := fi.ScopeDescriptor(); s != nil {
			return s.Outer()
		}
		return nil
	}
	return slot.scope
}

// SetOuterScope records the enclosing scope of an uncompiled function.
// scope may be nil to store "none".
func (fi *FunctionInfo) SetOuterScope(scope *ScopeDescriptor) {
	if fi.outer.Load().kind == OuterFeedback {
		panic(invariant("FunctionInfo.SetOuterScope", "outer slot holds feedback metadata of compiled code"))
	}
	if scope == nil {
		fi.outer.Store(noOuterSlot)
		return
	}
	fi.outer.Store(&outerSlot{kind: OuterScope, scope: scope})
}

// HasFeedbackMetadata reports whether the outer slot holds feedback metadata.
func (fi *FunctionInfo) HasFeedbackMetadata() bool {
	return fi.outer.Load().kind == OuterFeedback
}

// FeedbackMetadata returns the compiled code's feedback layout. Panics
// unless HasFeedbackMetadata.
func (fi *FunctionInfo) FeedbackMetadata() *FeedbackMetadata {
	slot := fi.outer.Load()
	if slot.kind != OuterFeedback {
		panic(invariant("FunctionInfo.FeedbackMetadata", "outer slot does not hold feedback metadata"))
	}
	return slot.feedback
}

// ---------------------------------------------------------------------------
// Source unit
// ---------------------------------------------------------------------------

// SourceUnit returns the owning unit, or nil before association.
func (fi *FunctionInfo) SourceUnit() *SourceUnit {
	return fi.unit.Load()
}

// LiteralID returns the record's index in its unit's function table.
func (fi *FunctionInfo) LiteralID() int {
	return int(fi.literalID.Load())
}

// ---------------------------------------------------------------------------
// Scalar fields
// ---------------------------------------------------------------------------

// ParameterCount returns the formal parameter count.
func (fi *FunctionInfo) ParameterCount() int {
	return int(fi.paramCount)
}

// SetParameterCount stores the formal parameter count.
func (fi *FunctionInfo) SetParameterCount(n int) {
	fi.paramCount = saturateUint16(n)
}

// Length returns the function's declared length.
func (fi *FunctionInfo) Length() int {
	return int(fi.length)
}

// SetLength stores the declared length.
func (fi *FunctionInfo) SetLength(n int) {
	fi.length = saturateUint16(n)
}

// ExpectedPropertyCount returns the estimated in-object property count.
func (fi *FunctionInfo) ExpectedPropertyCount() int {
	return int(fi.expectedNofProperties)
}

func (fi *FunctionInfo) propertyEstimateFromLiteral(lit *FunctionLiteral) int {
	estimate := lit.ExpectedPropertyCount
	// Class constructors may already have counted parsed fields.
	if fi.IsClassConstructor() {
		estimate += int(fi.expectedNofProperties)
	}
	return estimate
}

// UpdateExpectedPropertyCount stores a provisional estimate from a lazily
// parsed literal. A finalized estimate is not touched.
func (fi *FunctionInfo) UpdateExpectedPropertyCount(lit *FunctionLiteral) {
	if fi.ArePropertiesFinal() {
		return
	}
	fi.expectedNofProperties = saturateUint8(fi.propertyEstimateFromLiteral(lit))
}

// UpdateAndFinalizeExpectedPropertyCount stores the estimate from an eagerly
// compiled literal and freezes it. Later calls are no-ops.
func (fi *FunctionInfo) UpdateAndFinalizeExpectedPropertyCount(lit *FunctionLiteral) {
	if fi.ArePropertiesFinal() {
		return
	}
	estimate := fi.propertyEstimateFromLiteral(lit)
	// Constructors that add nothing tend to get properties added later.
	if estimate == 0 {
		estimate = 2
	}
	fi.expectedNofProperties = saturateUint8(estimate)
	fi.updateFlags(func(f Flags) Flags { return arePropertiesFinalBit.setBool(f, true) })
}

// ---------------------------------------------------------------------------
// Flags
// ---------------------------------------------------------------------------

// Flags returns the raw packed flags.
func (fi *FunctionInfo) Flags() Flags {
	return Flags(fi.flags.Load())
}

func (fi *FunctionInfo) updateFlags(fn func(Flags) Flags) {
	for {
		old := fi.flags.Load()
		if fi.flags.CompareAndSwap(old, uint32(fn(Flags(old)))) {
			return
		}
	}
}

func (fi *FunctionInfo) setFlagBit(field bitField, v bool) {
	fi.updateFlags(func(f Flags) Flags { return field.setBool(f, v) })
}

// Kind returns the function kind.
func (fi *FunctionInfo) Kind() FunctionKind {
	return FunctionKind(kindBits.get(fi.Flags()))
}

// SetKind stores the function kind.
func (fi *FunctionInfo) SetKind(k FunctionKind) {
	fi.updateFlags(func(f Flags) Flags { return kindBits.set(f, uint32(k)) })
}

// IsClassConstructor reports whether the function is a class constructor.
func (fi *FunctionInfo) IsClassConstructor() bool {
	return fi.Kind().IsClassConstructor()
}

// LanguageMode returns sloppy or strict.
func (fi *FunctionInfo) LanguageMode() LanguageMode {
	if strictModeBit.isSet(fi.Flags()) {
		return Strict
	}
	return Sloppy
}

// SetLanguageMode stores the language mode.
func (fi *FunctionInfo) SetLanguageMode(m LanguageMode) {
	fi.setFlagBit(strictModeBit, m == Strict)
}

// SyntaxKind returns how the function appeared in source.
func (fi *FunctionInfo) SyntaxKind() SyntaxKind {
	return SyntaxKind(syntaxKindBits.get(fi.Flags()))
}

// IsWrapped reports whether the function body was wrapped by the embedder
// with synthetic arguments.
func (fi *FunctionInfo) IsWrapped() bool {
	return fi.SyntaxKind() == Wrapped
}

// IsToplevel reports whether the function is a unit's top-level code.
func (fi *FunctionInfo) IsToplevel() bool { return isToplevelBit.isSet(fi.Flags()) }

// AllowsLazyCompilation reports whether compilation may be deferred.
func (fi *FunctionInfo) AllowsLazyCompilation() bool {
	return allowsLazyCompilationBit.isSet(fi.Flags())
}

// NeedsHomeObject reports whether the function references super.
func (fi *FunctionInfo) NeedsHomeObject() bool { return needsHomeObjectBit.isSet(fi.Flags()) }

// HasDuplicateParameters reports duplicate parameter names.
func (fi *FunctionInfo) HasDuplicateParameters() bool {
	return hasDuplicateParametersBit.isSet(fi.Flags())
}

// ArePropertiesFinal reports whether the property estimate is frozen.
func (fi *FunctionInfo) ArePropertiesFinal() bool {
	return arePropertiesFinalBit.isSet(fi.Flags())
}

// IsNative reports whether the function belongs to engine-internal code.
func (fi *FunctionInfo) IsNative() bool { return isNativeBit.isSet(fi.Flags()) }

// SetNative marks the function as engine-internal.
func (fi *FunctionInfo) SetNative(v bool) { fi.setFlagBit(isNativeBit, v) }

func (fi *FunctionInfo) RequiresInstanceMembersInitializer() bool {
	return requiresInstanceMembersInitBit.isSet(fi.Flags())
}

func (fi *FunctionInfo) ClassScopeHasPrivateBrand() bool {
	return classScopeHasPrivateBrandBit.isSet(fi.Flags())
}

func (fi *FunctionInfo) HasStaticPrivateMethodsOrAccessors() bool {
	return hasStaticPrivateMethodsBit.isSet(fi.Flags())
}

func (fi *FunctionInfo) PrivateNameLookupSkipsOuterClass() bool {
	return privateNameSkipsOuterClassBit.isSet(fi.Flags())
}

// ConstructAsBuiltin reports whether construct calls go through the builtin.
func (fi *FunctionInfo) ConstructAsBuiltin() bool {
	return constructAsBuiltinBit.isSet(fi.Flags())
}

// NameShouldPrintAsAnonymous reports whether printers hide the name.
func (fi *FunctionInfo) NameShouldPrintAsAnonymous() bool {
	return nameShouldPrintAsAnonymousBit.isSet(fi.Flags())
}

// SetNameShouldPrintAsAnonymous sets the printing hint.
func (fi *FunctionInfo) SetNameShouldPrintAsAnonymous(v bool) {
	fi.setFlagBit(nameShouldPrintAsAnonymousBit, v)
}

func (fi *FunctionInfo) IsSafeToSkipArgumentsAdaptor() bool {
	return isSafeToSkipArgumentsAdaptorBit.isSet(fi.Flags())
}

// MayHaveCachedCode reports whether the compilation cache may hold
// optimized code for this function.
func (fi *FunctionInfo) MayHaveCachedCode() bool {
	return mayHaveCachedCodeBit.isSet(fi.Flags())
}

// SetMayHaveCachedCode sets the cache hint.
func (fi *FunctionInfo) SetMayHaveCachedCode(v bool) {
	fi.setFlagBit(mayHaveCachedCodeBit, v)
}

// HasReportedBinaryCoverage reports whether precise binary coverage has
// recorded an invocation of this function.
func (fi *FunctionInfo) HasReportedBinaryCoverage() bool {
	return hasReportedBinaryCoverageBit.isSet(fi.Flags())
}

// SetHasReportedBinaryCoverage records coverage reporting.
func (fi *FunctionInfo) SetHasReportedBinaryCoverage(v bool) {
	fi.setFlagBit(hasReportedBinaryCoverageBit, v)
}

// DisabledOptimizationReason returns why optimization was disabled, or
// NoReason.
func (fi *FunctionInfo) DisabledOptimizationReason() BailoutReason {
	return BailoutReason(disabledOptimizationReasonBits.get(fi.Flags()))
}

// OptimizationDisabled reports whether optimization was explicitly disabled.
func (fi *FunctionInfo) OptimizationDisabled() bool {
	return fi.DisabledOptimizationReason() != NoReason
}

// ---------------------------------------------------------------------------
// Initialization from a parsed literal
// ---------------------------------------------------------------------------

// InitFromLiteral fills the record from a parsed function literal. Eagerly
// compiled literals get a final property estimate and keep their current
// payload, since compilation follows immediately. Lazy literals get a
// deferred-parse payload carrying the literal's preparse cache, if any.
func (fi *FunctionInfo) InitFromLiteral(lit *FunctionLiteral, isToplevel bool) {
	const op = "FunctionInfo.InitFromLiteral"
	if fi.NameSlotKind() == NameScope {
		panic(invariant(op, "record already carries a scope descriptor"))
	}
	if fi.HasFeedbackMetadata() {
		panic(invariant(op, "record is compiled"))
	}
	if lit.ShouldEagerCompile && lit.Preparse != nil {
		panic(invariant(op, "eager literal carries preparse data"))
	}
	literalID, err := safecast.Conv[int32](lit.LiteralID)
	if err != nil {
		panic(invariant(op, "literal id %d: %v", lit.LiteralID, err))
	}
	if !lit.Kind.IsClassConstructor() && (lit.RequiresInstanceMembersInitializer ||
		lit.ClassScopeHasPrivateBrand || lit.HasStaticPrivateMethodsOrAccessors) {
		panic(invariant(op, "class member bits on a %s function", lit.Kind))
	}

	// Deferred-parse data is the only allocation; do it before any write so
	// the record is never left half-initialized.
	var deferred *DeferredParse
	if !lit.ShouldEagerCompile {
		deferred = fi.iso.Heap.NewDeferredParse(lit.InferredName, lit.StartPosition, lit.EndPosition, lit.Preparse)
	}

	if lit.Name != "" {
		fi.SetName(lit.Name)
	}
	fi.paramCount = saturateUint16(lit.ParameterCount)
	fi.SetFunctionTokenPosition(lit.FunctionTokenPosition, lit.StartPosition)
	fi.literalID.Store(literalID)
	fi.length = saturateUint16(lit.FunctionLength)

	fi.updateFlags(func(f Flags) Flags {
		f = kindBits.set(f, uint32(lit.Kind))
		f = syntaxKindBits.set(f, uint32(lit.SyntaxKind))
		f = strictModeBit.setBool(f, lit.LanguageMode == Strict)
		f = allowsLazyCompilationBit.setBool(f, lit.AllowsLazyCompilation)
		f = needsHomeObjectBit.setBool(f, lit.NeedsHomeObject)
		f = requiresInstanceMembersInitBit.setBool(f, lit.RequiresInstanceMembersInitializer)
		f = classScopeHasPrivateBrandBit.setBool(f, lit.ClassScopeHasPrivateBrand)
		f = hasStaticPrivateMethodsBit.setBool(f, lit.HasStaticPrivateMethodsOrAccessors)
		f = isToplevelBit.setBool(f, isToplevel)
		return f
	})

	if !isToplevel && lit.OuterScope != nil {
		fi.outer.Store(&outerSlot{kind: OuterScope, scope: lit.OuterScope})
		fi.setFlagBit(privateNameSkipsOuterClassBit, lit.PrivateNameLookupSkipsOuterClass)
	}

	if lit.ShouldEagerCompile {
		fi.setFlagBit(hasDuplicateParametersBit, lit.HasDuplicateParameters)
		fi.UpdateAndFinalizeExpectedPropertyCount(lit)
		fi.setFlagBit(isSafeToSkipArgumentsAdaptorBit, lit.SafeToSkipArgumentsAdaptor)
		return
	}

	// Duplicate parameters and the final estimate are only known once the
	// function is fully parsed.
	fi.setFlagBit(isSafeToSkipArgumentsAdaptorBit, false)
	fi.UpdateExpectedPropertyCount(lit)
	fi.setPayload(deferred)
}

// ---------------------------------------------------------------------------
// Hashing and printing
// ---------------------------------------------------------------------------

func hashCombine(seed, value uint32) uint32 {
	return seed ^ (value + 0x9e3779b9 + (seed << 6) + (seed >> 2))
}

// ComputeHash hashes the record by start position and owning unit id. The
// literal id is left out: resolving it for compiled functions would need
// lazy state, and the hash must stay constant-time and allocation-free.
func (fi *FunctionInfo) ComputeHash() uint32 {
	start := fi.StartPosition()
	unitID := 0
	if u := fi.SourceUnit(); u != nil {
		unitID = u.ID()
	}
	return hashCombine(hashCombine(0, uint32(int32(start))), uint32(int32(unitID)))
}

// String renders a short description for logs and traces.
func (fi *FunctionInfo) String() string {
	name := fi.DebugName()
	if name == "" {
		return "<FunctionInfo>"
	}
	return "<FunctionInfo " + name + ">"
}

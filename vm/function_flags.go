package vm

import (
	"fmt"
	"math"

	"fortio.org/safecast"
)

// ---------------------------------------------------------------------------
// Packed flags
// ---------------------------------------------------------------------------

// Flags packs the per-function boolean and small enum attributes into one
// word. Use the typed accessors on FunctionInfo; the raw value only crosses
// package boundaries for snapshots.
type Flags uint32

type bitField struct {
	shift uint
	width uint
}

func (f bitField) mask() uint32 {
	return (1<<f.width - 1) << f.shift
}

func (f bitField) get(flags Flags) uint32 {
	return (uint32(flags) & f.mask()) >> f.shift
}

func (f bitField) set(flags Flags, v uint32) Flags {
	if v > 1<<f.width-1 {
		panic(invariant("Flags.set", "value %d does not fit in %d bits", v, f.width))
	}
	return Flags(uint32(flags)&^f.mask() | v<<f.shift)
}

func (f bitField) isSet(flags Flags) bool {
	return f.get(flags) != 0
}

func (f bitField) setBool(flags Flags, v bool) Flags {
	if v {
		return f.set(flags, 1)
	}
	return f.set(flags, 0)
}

var (
	kindBits                        = bitField{0, 5}
	strictModeBit                   = bitField{5, 1}
	syntaxKindBits                  = bitField{6, 3}
	isToplevelBit                   = bitField{9, 1}
	allowsLazyCompilationBit        = bitField{10, 1}
	needsHomeObjectBit              = bitField{11, 1}
	hasDuplicateParametersBit       = bitField{12, 1}
	arePropertiesFinalBit           = bitField{13, 1}
	isNativeBit                     = bitField{14, 1}
	requiresInstanceMembersInitBit  = bitField{15, 1}
	classScopeHasPrivateBrandBit    = bitField{16, 1}
	hasStaticPrivateMethodsBit      = bitField{17, 1}
	constructAsBuiltinBit           = bitField{18, 1}
	nameShouldPrintAsAnonymousBit   = bitField{19, 1}
	isSafeToSkipArgumentsAdaptorBit = bitField{20, 1}
	mayHaveCachedCodeBit            = bitField{21, 1}
	disabledOptimizationReasonBits  = bitField{22, 4}
	hasReportedBinaryCoverageBit    = bitField{26, 1}
	privateNameSkipsOuterClassBit   = bitField{27, 1}
)

// transientFlagsMask covers bits that describe this process's runtime state
// rather than the function's definition. Snapshots drop them.
var transientFlagsMask = mayHaveCachedCodeBit.mask() | hasReportedBinaryCoverageBit.mask()

// Persistent returns the flags with process-local bits cleared.
func (f Flags) Persistent() Flags {
	return Flags(uint32(f) &^ transientFlagsMask)
}

// ---------------------------------------------------------------------------
// Enumerations stored in flags
// ---------------------------------------------------------------------------

// FunctionKind classifies a function definition.
type FunctionKind uint8

const (
	NormalFunction FunctionKind = iota
	ArrowFunction
	GeneratorFunction
	AsyncFunction
	AsyncArrowFunction
	AsyncGeneratorFunction
	ConciseMethod
	GetterFunction
	SetterFunction
	BaseConstructor
	DerivedConstructor
	DefaultBaseConstructor
	DefaultDerivedConstructor
	ClassMembersInitializer
	ModuleFunction
	functionKindCount
)

var functionKindNames = [functionKindCount]string{
	NormalFunction:            "normal",
	ArrowFunction:             "arrow",
	GeneratorFunction:         "generator",
	AsyncFunction:             "async",
	AsyncArrowFunction:        "async-arrow",
	AsyncGeneratorFunction:    "async-generator",
	ConciseMethod:             "method",
	GetterFunction:            "getter",
	SetterFunction:            "setter",
	BaseConstructor:           "base-constructor",
	DerivedConstructor:        "derived-constructor",
	DefaultBaseConstructor:    "default-base-constructor",
	DefaultDerivedConstructor: "default-derived-constructor",
	ClassMembersInitializer:   "class-members-initializer",
	ModuleFunction:            "module",
}

func (k FunctionKind) String() string {
	if k < functionKindCount {
		return functionKindNames[k]
	}
	return "unknown"
}

// ParseFunctionKind maps a kind name back to its value. The empty string is
// NormalFunction.
func ParseFunctionKind(s string) (FunctionKind, error) {
	if s == "" {
		return NormalFunction, nil
	}
	for k, name := range functionKindNames {
		if name == s {
			return FunctionKind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown function kind %q", s)
}

// IsClassConstructor reports whether k is any class constructor kind.
func (k FunctionKind) IsClassConstructor() bool {
	return k >= BaseConstructor && k <= DefaultDerivedConstructor
}

// LanguageMode is sloppy or strict.
type LanguageMode uint8

const (
	Sloppy LanguageMode = iota
	Strict
)

func (m LanguageMode) String() string {
	if m == Strict {
		return "strict"
	}
	return "sloppy"
}

// SyntaxKind records how the function appeared in source.
type SyntaxKind uint8

const (
	AnonymousExpression SyntaxKind = iota
	NamedExpression
	Declaration
	AccessorOrMethod
	Wrapped
	syntaxKindCount
)

var syntaxKindNames = [syntaxKindCount]string{
	AnonymousExpression: "anonymous-expression",
	NamedExpression:     "named-expression",
	Declaration:         "declaration",
	AccessorOrMethod:    "accessor-or-method",
	Wrapped:             "wrapped",
}

func (k SyntaxKind) String() string {
	if k < syntaxKindCount {
		return syntaxKindNames[k]
	}
	return "unknown"
}

// ParseSyntaxKind maps a syntax kind name back to its value. The empty
// string is Declaration.
func ParseSyntaxKind(s string) (SyntaxKind, error) {
	if s == "" {
		return Declaration, nil
	}
	for k, name := range syntaxKindNames {
		if name == s {
			return SyntaxKind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown syntax kind %q", s)
}

// BailoutReason explains why optimization was disabled.
type BailoutReason uint8

const (
	NoReason BailoutReason = iota
	NeverOptimize
	FunctionTooBig
	LiveEdit
	OptimizationDisabledForTest
	DeoptimizedTooManyTimes
	bailoutReasonCount
)

var bailoutReasonNames = [bailoutReasonCount]string{
	NoReason:                    "no reason",
	NeverOptimize:               "never optimize",
	FunctionTooBig:              "function is too big to be optimized",
	LiveEdit:                    "live edit",
	OptimizationDisabledForTest: "optimization disabled for test",
	DeoptimizedTooManyTimes:     "deoptimized too many times",
}

func (r BailoutReason) String() string {
	if r < bailoutReasonCount {
		return bailoutReasonNames[r]
	}
	return "unknown"
}

// ---------------------------------------------------------------------------
// Saturating conversions
// ---------------------------------------------------------------------------

// saturateUint8 narrows v into [0, 255], capping instead of wrapping.
func saturateUint8(v int) uint8 {
	if v < 0 {
		return 0
	}
	n, err := safecast.Conv[uint8](v)
	if err != nil {
		return math.MaxUint8
	}
	return n
}

// saturateUint16 narrows v into [0, 65535], capping instead of wrapping.
func saturateUint16(v int) uint16 {
	if v < 0 {
		return 0
	}
	n, err := safecast.Conv[uint16](v)
	if err != nil {
		return math.MaxUint16
	}
	return n
}

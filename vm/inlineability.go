package vm

// ---------------------------------------------------------------------------
// Inlineability
// ---------------------------------------------------------------------------

// Inlineability is the outcome of GetInlineability. Only IsInlineable
// allows a call site to inline the function.
type Inlineability uint8

const (
	NoScript Inlineability = iota
	NeedsBinaryCoverage
	OptimizationDisabled
	IsBuiltin
	IsNotUserCode
	HasNoBytecode
	ExceedsBytecodeLimit
	MayContainBreakPoints
	IsInlineable
)

var inlineabilityNames = [...]string{
	NoScript:              "no script",
	NeedsBinaryCoverage:   "needs binary coverage",
	OptimizationDisabled:  "optimization disabled",
	IsBuiltin:             "builtin",
	IsNotUserCode:         "not user code",
	HasNoBytecode:         "no bytecode",
	ExceedsBytecodeLimit:  "exceeds bytecode limit",
	MayContainBreakPoints: "may contain break points",
	IsInlineable:          "inlineable",
}

func (i Inlineability) String() string {
	if int(i) < len(inlineabilityNames) {
		return inlineabilityNames[i]
	}
	return "unknown"
}

// GetInlineability decides whether call sites may inline the function.
// The first matching reason wins.
func (fi *FunctionInfo) GetInlineability() Inlineability {
	if fi.SourceUnit() == nil {
		return NoScript
	}
	flags := fi.iso.Flags()
	if flags.PreciseBinaryCoverage && !fi.HasReportedBinaryCoverage() {
		// Inlined calls would go uncounted.
		return NeedsBinaryCoverage
	}
	if fi.OptimizationDisabled() {
		return OptimizationDisabled
	}
	if fi.HasBuiltinID() {
		return IsBuiltin
	}
	if !fi.IsUserCode() {
		return IsNotUserCode
	}
	if !fi.HasBytecodeProgram() {
		return HasNoBytecode
	}
	if fi.GetBytecodeProgram().Length() > flags.MaxInlinedBytecodeSize {
		return ExceedsBytecodeLimit
	}
	if fi.HasBreakInfo() {
		return MayContainBreakPoints
	}
	return IsInlineable
}

// ---------------------------------------------------------------------------
// Optimization control
// ---------------------------------------------------------------------------

// DisableOptimization records reason and keeps the function out of the
// optimizing tier from now on. NoReason is an invariant violation.
func (fi *FunctionInfo) DisableOptimization(reason BailoutReason) {
	if reason == NoReason || reason >= bailoutReasonCount {
		panic(invariant("FunctionInfo.DisableOptimization", "invalid bailout reason %d", reason))
	}
	fi.updateFlags(func(f Flags) Flags {
		return disabledOptimizationReasonBits.set(f, uint32(reason))
	})
	fi.iso.profileEvent(ProfileDisableOpt, fi)
	if fi.iso.Flags().TraceOpt {
		fi.iso.Tracer().Tracef("[disabled optimization for %s, reason: %s]", fi, reason)
	}
}

// TryGetCachedCode returns optimized code the compilation cache holds for
// the function. The lookup is skipped unless MayHaveCachedCode is set.
func (fi *FunctionInfo) TryGetCachedCode() (*Code, bool) {
	if !fi.MayHaveCachedCode() {
		return nil, false
	}
	return fi.iso.CompilationCache().Lookup(fi)
}

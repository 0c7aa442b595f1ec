package vm

// ScopeKind classifies a scope descriptor.
type ScopeKind uint8

const (
	ScriptScope ScopeKind = iota
	FunctionScope
	ClassScope
	EvalScope
	ModuleScope
	BlockScope
)

var scopeKindNames = [...]string{
	ScriptScope:   "script",
	FunctionScope: "function",
	ClassScope:    "class",
	EvalScope:     "eval",
	ModuleScope:   "module",
	BlockScope:    "block",
}

func (k ScopeKind) String() string {
	if int(k) < len(scopeKindNames) {
		return scopeKindNames[k]
	}
	return "unknown"
}

// ScopeDescriptor is the resolved description of a lexical scope. A
// compiled function's name slot holds one; it may carry the function's
// source extent. Position writes are serialized by the engine turn.
type ScopeDescriptor struct {
	Kind         ScopeKind
	FunctionName string
	InferredName string
	ContextSlots int

	outer *ScopeDescriptor

	hasPositionInfo bool
	start           int
	end             int
}

// HasOuterScope reports whether the scope has a statically resolvable
// enclosing scope with a context.
func (s *ScopeDescriptor) HasOuterScope() bool {
	return s.outer != nil
}

// Outer returns the enclosing scope, or nil.
func (s *ScopeDescriptor) Outer() *ScopeDescriptor {
	return s.outer
}

// HasPositionInfo reports whether the descriptor carries a source extent.
func (s *ScopeDescriptor) HasPositionInfo() bool {
	return s.hasPositionInfo
}

// StartPosition returns the start offset. Only meaningful with position info.
func (s *ScopeDescriptor) StartPosition() int {
	return s.start
}

// EndPosition returns the end offset. Only meaningful with position info.
func (s *ScopeDescriptor) EndPosition() int {
	return s.end
}

// SetPositionInfo records the source extent and marks it present.
func (s *ScopeDescriptor) SetPositionInfo(start, end int) {
	s.start = start
	s.end = end
	s.hasPositionInfo = true
}

// HasSharedName reports whether the scope names its function.
func (s *ScopeDescriptor) HasSharedName() bool {
	return s.FunctionName != ""
}

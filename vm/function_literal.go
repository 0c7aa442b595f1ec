package vm

// FunctionLiteral is the parser's description of one function definition,
// the input to FunctionInfo.InitFromLiteral and to the compiler.
type FunctionLiteral struct {
	Name         string
	InferredName string
	LiteralID    int

	StartPosition         int
	EndPosition           int
	FunctionTokenPosition int // NoSourcePosition when there is no keyword token

	ParameterCount int
	FunctionLength int

	Kind         FunctionKind
	LanguageMode LanguageMode
	SyntaxKind   SyntaxKind

	AllowsLazyCompilation bool
	ShouldEagerCompile    bool
	ExpectedPropertyCount int

	HasDuplicateParameters             bool
	NeedsHomeObject                    bool
	RequiresInstanceMembersInitializer bool
	ClassScopeHasPrivateBrand          bool
	HasStaticPrivateMethodsOrAccessors bool
	PrivateNameLookupSkipsOuterClass   bool
	SafeToSkipArgumentsAdaptor         bool

	// OuterScope is the nearest enclosing scope with a context, if any.
	OuterScope *ScopeDescriptor

	// Preparse is the preparser's scope summary for lazy functions. Eagerly
	// compiled literals never carry one.
	Preparse *PreparseScope
}

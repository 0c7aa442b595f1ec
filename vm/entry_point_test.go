package vm

import (
	"testing"
)

func TestResolveEntryPointPerVariant(t *testing.T) {
	iso := NewIsolate()
	b := iso.Builtins
	module := &ForeignModule{Name: "m", Functions: []ForeignFunction{{Name: "f"}}}
	exportWrapper := NewWrapperCode("export")
	hostWrapper := NewWrapperCode("host")
	cWrapper := NewWrapperCode("c")

	compiled := newLazyFunction(t, iso, nil, "f", 0, 0, 10)
	bc := compileForTest(t, compiled, 4)
	trampoline := b.NewInterpreterTrampolineCopy("f")

	tests := []struct {
		payload Payload
		want    *Code
	}{
		{BuiltinRef{ID: BuiltinMathMin}, b.Lookup(BuiltinMathMin)},
		{bc, b.Lookup(BuiltinInterpreterEntryTrampoline)},
		{&ForeignModuleData{Module: module}, b.Lookup(BuiltinInstantiateForeignModule)},
		{iso.Heap.NewDeferredParse("", 0, 10, nil), b.Lookup(BuiltinCompileLazy)},
		{iso.Heap.NewDeferredParse("", 0, 10, &PreparseScope{}), b.Lookup(BuiltinCompileLazy)},
		{&HostTemplate{ClassName: "C", Callback: "cb"}, b.Lookup(BuiltinHandleHostCall)},
		{&ExportedForeignFunction{Module: module, WrapperCode: exportWrapper}, exportWrapper},
		{&TrampolineData{Bytecode: bc, Trampoline: trampoline}, trampoline},
		{&HostCallbackData{WrapperCode: hostWrapper}, hostWrapper},
		{&CCallableData{WrapperCode: cWrapper}, cWrapper},
	}

	for _, tt := range tests {
		if got := resolveEntryPoint(b, tt.payload); got != tt.want {
			t.Errorf("%s: ResolveEntryPoint = %v, want %v", tt.payload.Kind(), got, tt.want)
		}
		if got := FastEntryPoint(b, tt.payload); got != tt.want {
			t.Errorf("%s: FastEntryPoint = %v, want %v", tt.payload.Kind(), got, tt.want)
		}
	}
}

func TestResolveEntryPointBuiltinSeven(t *testing.T) {
	iso := NewIsolate()
	fi := iso.NewFunctionInfo()
	if err := fi.InstallPayload(BuiltinRef{ID: 7}); err != nil {
		t.Fatal(err)
	}

	if got := fi.ResolveEntryPoint(); got != iso.Builtins.Lookup(7) {
		t.Errorf("ResolveEntryPoint = %v, want %v", got, iso.Builtins.Lookup(7))
	}
	if fi.StartPosition() != 0 || fi.EndPosition() != 0 {
		t.Errorf("builtin extent = [%d,%d), want [0,0)", fi.StartPosition(), fi.EndPosition())
	}
}

func TestResolveEntryPointRejectsFakeTrampoline(t *testing.T) {
	iso := NewIsolate()
	fi := newLazyFunction(t, iso, nil, "f", 0, 0, 10)
	bc := compileForTest(t, fi, 4)
	bad := &TrampolineData{Bytecode: bc, Trampoline: NewWrapperCode("not-a-trampoline")}

	expectInvariant(t, "FunctionInfo.ResolveEntryPoint", func() { resolveEntryPoint(iso.Builtins, bad) })
	expectInvariant(t, "FunctionInfo.ResolveEntryPoint", func() { FastEntryPoint(iso.Builtins, bad) })

	if err := iso.NewFunctionInfo().InstallPayload(bad); err == nil {
		t.Error("InstallPayload accepted trampoline data without a trampoline")
	}
}

func TestResolveEntryPointUnknownBuiltin(t *testing.T) {
	iso := NewIsolate()
	fi := iso.NewFunctionInfo()
	if err := fi.InstallPayload(BuiltinRef{ID: 9999}); err != nil {
		t.Fatal(err)
	}
	expectInvariant(t, "Builtins.Lookup", func() { fi.ResolveEntryPoint() })
}

func TestRegisteredBuiltin(t *testing.T) {
	iso := NewIsolate()
	id := iso.Builtins.Register("HostPrint")
	if got, ok := iso.Builtins.IDByName("HostPrint"); !ok || got != id {
		t.Errorf("IDByName = %d, %v; want %d", got, ok, id)
	}

	fi := iso.NewFunctionInfo()
	if err := fi.InstallPayload(BuiltinRef{ID: id}); err != nil {
		t.Fatal(err)
	}
	if code := fi.ResolveEntryPoint(); code.Name != "HostPrint" || code.Builtin != id {
		t.Errorf("entry = %v", code)
	}
}

// ---------------------------------------------------------------------------
// EntryCache
// ---------------------------------------------------------------------------

func TestEntryCacheMonomorphic(t *testing.T) {
	iso := NewIsolate()
	fi := newLazyFunction(t, iso, nil, "f", 0, 0, 10)
	var c EntryCache

	if code := c.EntryPoint(fi); code != iso.Builtins.Lookup(BuiltinCompileLazy) {
		t.Errorf("lazy entry = %v", code)
	}
	if c.State != EntryCacheMonomorphic || c.Misses != 1 {
		t.Errorf("state %v misses %d", c.State, c.Misses)
	}

	c.EntryPoint(fi)
	if c.Hits != 1 {
		t.Errorf("expected a hit, got %d", c.Hits)
	}
}

func TestEntryCacheInvalidatedByNewPayload(t *testing.T) {
	iso := NewIsolate()
	fi := newLazyFunction(t, iso, nil, "f", 0, 0, 10)
	var c EntryCache
	c.EntryPoint(fi)

	compileForTest(t, fi, 4)
	if code := c.EntryPoint(fi); code != iso.Builtins.Lookup(BuiltinInterpreterEntryTrampoline) {
		t.Errorf("entry after compile = %v, want the interpreter trampoline", code)
	}
	if c.Misses != 2 || c.Hits != 0 {
		t.Errorf("hits %d misses %d, want 0/2", c.Hits, c.Misses)
	}
	if c.State != EntryCacheMonomorphic {
		t.Errorf("state = %v, want monomorphic", c.State)
	}

	if err := fi.DiscardCompiled(); err != nil {
		t.Fatal(err)
	}
	if code := c.EntryPoint(fi); code != iso.Builtins.Lookup(BuiltinCompileLazy) {
		t.Errorf("entry after discard = %v, want CompileLazy", code)
	}
}

func TestEntryCacheTransitions(t *testing.T) {
	iso := NewIsolate()
	var c EntryCache

	fns := make([]*FunctionInfo, MaxEntryCacheEntries+1)
	for i := range fns {
		fns[i] = newLazyFunction(t, iso, nil, "f", i, 0, 10)
	}

	for i := 0; i < MaxEntryCacheEntries; i++ {
		c.EntryPoint(fns[i])
	}
	if c.State != EntryCachePolymorphic {
		t.Fatalf("state = %v, want polymorphic", c.State)
	}

	c.EntryPoint(fns[MaxEntryCacheEntries])
	if c.State != EntryCacheMegamorphic {
		t.Fatalf("state = %v, want megamorphic", c.State)
	}

	// Megamorphic sites always resolve.
	code := c.EntryPoint(fns[0])
	if code != iso.Builtins.Lookup(BuiltinCompileLazy) {
		t.Errorf("megamorphic entry = %v", code)
	}
	if c.Hits != 0 {
		t.Errorf("megamorphic cache reported %d hits", c.Hits)
	}

	c.Reset()
	if c.State != EntryCacheEmpty || c.HitRate() != 0 {
		t.Error("Reset did not clear the cache")
	}
}

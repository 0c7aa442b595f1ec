package snapshot

import (
	"errors"
	"testing"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/fninfo/vm"
)

const source = "var a = 1;\nfunction foo(x) { return x; }\nfunction bar() { return a; }\n"

func buildUnit(t *testing.T, iso *vm.Isolate) (*vm.SourceUnit, *vm.FunctionInfo, *vm.FunctionInfo) {
	t.Helper()
	unit := iso.NewSourceUnit("app.js", source, vm.UserUnit, 4)

	foo := iso.NewFunctionInfo()
	foo.InitFromLiteral(&vm.FunctionLiteral{
		Name:                  "foo",
		LiteralID:             1,
		StartPosition:         23,
		EndPosition:           40,
		FunctionTokenPosition: 11,
		ParameterCount:        1,
		FunctionLength:        1,
		AllowsLazyCompilation: true,
		Preparse:              &vm.PreparseScope{Data: []byte{1, 2, 3}, ChildrenCount: 1},
	}, false)
	if err := foo.SetSourceUnit(unit, 1, false); err != nil {
		t.Fatal(err)
	}

	bar := iso.NewFunctionInfo()
	bar.InitFromLiteral(&vm.FunctionLiteral{
		Name:                  "bar",
		LiteralID:             3,
		StartPosition:         53,
		EndPosition:           69,
		FunctionTokenPosition: 41,
		LanguageMode:          vm.Strict,
		AllowsLazyCompilation: true,
	}, false)
	if err := bar.SetSourceUnit(unit, 3, false); err != nil {
		t.Fatal(err)
	}
	return unit, foo, bar
}

func TestCaptureAndRestore(t *testing.T) {
	iso := vm.NewIsolate()
	unit, foo, bar := buildUnit(t, iso)

	snap := Capture(iso, unit)
	if len(snap.Functions) != 2 || snap.Header.FunctionCount != 4 {
		t.Fatalf("captured %d functions, count %d", len(snap.Functions), snap.Header.FunctionCount)
	}
	if id, err := snap.IsolateID(); err != nil || id != iso.ID {
		t.Errorf("IsolateID = %v, %v", id, err)
	}

	data, err := Marshal(snap)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	decoded, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	target := vm.NewIsolate()
	restoredUnit := target.NewSourceUnit("app.js", source, vm.UserUnit, 0)
	fns, err := decoded.Restore(target, restoredUnit)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if len(fns) != 2 || restoredUnit.FunctionTable().Len() != 4 {
		t.Fatalf("restored %d functions into a table of %d", len(fns), restoredUnit.FunctionTable().Len())
	}

	for i, want := range []*vm.FunctionInfo{foo, bar} {
		got := fns[i]
		if got.Name() != want.Name() || got.LiteralID() != want.LiteralID() {
			t.Errorf("function %d = %q@%d, want %q@%d", i, got.Name(), got.LiteralID(), want.Name(), want.LiteralID())
		}
		if got.StartPosition() != want.StartPosition() || got.EndPosition() != want.EndPosition() {
			t.Errorf("%s extent [%d,%d)", got.Name(), got.StartPosition(), got.EndPosition())
		}
		if got.FunctionTokenPosition() != want.FunctionTokenPosition() {
			t.Errorf("%s token %d, want %d", got.Name(), got.FunctionTokenPosition(), want.FunctionTokenPosition())
		}
		if got.Flags().Persistent() != want.Flags().Persistent() {
			t.Errorf("%s flags %#x, want %#x", got.Name(), got.Flags(), want.Flags())
		}
		if src, ok := got.SourceCode(); !ok || src == "" {
			t.Errorf("%s has no source after restore", got.Name())
		}
	}
	if !fns[0].HasDeferredParseWithPreparse() {
		t.Error("foo lost its preparse data")
	}
	if fns[1].LanguageMode() != vm.Strict {
		t.Error("bar lost strict mode")
	}
}

func TestCaptureOfCompiledFunction(t *testing.T) {
	iso := vm.NewIsolate()
	unit, foo, _ := buildUnit(t, iso)

	bc := iso.Heap.NewBytecodeProgram([]byte{0, 0}, 0, 1)
	scope := iso.Heap.NewScopeDescriptor(vm.FunctionScope, "", foo.OuterScope())
	if err := foo.InstallBytecode(bc, scope, &vm.FeedbackMetadata{}); err != nil {
		t.Fatal(err)
	}

	snap := Capture(iso, unit)
	r := snap.Functions[0]
	if r.Name != "foo" || r.Start != 23 || r.End != 40 || r.Preparse != nil {
		t.Errorf("compiled record = %+v", r)
	}
}

func TestMarshalIsDeterministic(t *testing.T) {
	iso := vm.NewIsolate()
	unit, _, _ := buildUnit(t, iso)

	a, err := Marshal(Capture(iso, unit))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Marshal(Capture(iso, unit))
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Error("two captures of the same unit encoded differently")
	}
}

func TestUnmarshalRejectsVersion(t *testing.T) {
	data, err := cbor.Marshal(&Snapshot{Header: Header{Version: Version + 1}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Unmarshal(data); !errors.Is(err, ErrVersion) {
		t.Errorf("err = %v, want ErrVersion", err)
	}
	if _, err := Unmarshal([]byte{0xff, 0x00}); err == nil {
		t.Error("garbage decoded")
	}
}

func TestRestoreRejectsChangedSource(t *testing.T) {
	iso := vm.NewIsolate()
	unit, _, _ := buildUnit(t, iso)
	snap := Capture(iso, unit)

	edited := iso.NewSourceUnit("app.js", source+"// edit\n", vm.UserUnit, 4)
	if _, err := snap.Restore(iso, edited); !errors.Is(err, ErrSourceMismatch) {
		t.Errorf("err = %v, want ErrSourceMismatch", err)
	}
}

func TestRestoreSkipsLiveSlots(t *testing.T) {
	iso := vm.NewIsolate()
	unit, foo, bar := buildUnit(t, iso)
	snap := Capture(iso, unit)

	fns, err := snap.Restore(iso, unit)
	if err != nil {
		t.Fatal(err)
	}
	if len(fns) != 0 {
		t.Errorf("restored %d functions over live ones", len(fns))
	}
	if unit.FunctionTable().Get(1) != foo || unit.FunctionTable().Get(3) != bar {
		t.Error("live records were replaced")
	}
}

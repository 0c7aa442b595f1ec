package compiler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chazu/fninfo/vm"
)

const fooSource = "var a = 1;\nfunction foo(x) { return x; }\n"

func newFoo(t *testing.T, iso *vm.Isolate) (*vm.SourceUnit, *vm.FunctionInfo) {
	t.Helper()
	unit := iso.NewSourceUnit("foo.js", fooSource, vm.UserUnit, 1)
	fi := iso.NewFunctionInfo()
	fi.InitFromLiteral(&vm.FunctionLiteral{
		Name:                  "foo",
		StartPosition:         23,
		EndPosition:           40,
		FunctionTokenPosition: 11,
		ParameterCount:        1,
		SyntaxKind:            vm.Declaration,
		AllowsLazyCompilation: true,
	}, false)
	if err := fi.SetSourceUnit(unit, 0, false); err != nil {
		t.Fatal(err)
	}
	return unit, fi
}

func TestCompileInstallsBytecode(t *testing.T) {
	iso := vm.NewIsolate()
	c := New(iso)
	_, fi := newFoo(t, iso)

	if err := c.Compile(fi, nil); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !fi.HasBytecodeProgram() || !fi.IsCompiled() {
		t.Fatalf("payload = %s", fi.PayloadKind())
	}

	bc := fi.GetBytecodeProgram()
	// Eight tokens plus the trailing return, two bytes each.
	if bc.Length() != 18 {
		t.Errorf("bytecode length = %d, want 18", bc.Length())
	}
	if bc.Code[0] != OpOperator || bc.Code[len(bc.Code)-2] != OpReturn {
		t.Errorf("code = %v", bc.Code)
	}
	if fi.StartPosition() != 23 || fi.EndPosition() != 40 || fi.Name() != "foo" {
		t.Errorf("compiled %q at [%d,%d)", fi.Name(), fi.StartPosition(), fi.EndPosition())
	}
	if pos, ok := bc.SourcePositionTable().Lookup(2); !ok || pos != 24 {
		t.Errorf("Lookup(2) = %d, %v; want 24", pos, ok)
	}
	if fi.FeedbackMetadata().SlotCount != 1 {
		t.Errorf("feedback slots = %d, want 1", fi.FeedbackMetadata().SlotCount)
	}
	if c.Compiled() != 1 {
		t.Errorf("Compiled = %d", c.Compiled())
	}
}

func TestCompileRejects(t *testing.T) {
	iso := vm.NewIsolate()
	c := New(iso)

	detached := iso.NewFunctionInfo()
	detached.InitFromLiteral(&vm.FunctionLiteral{Name: "f", EndPosition: 4, AllowsLazyCompilation: true}, false)
	if err := c.Compile(detached, nil); !errors.Is(err, vm.ErrPreconditionNotMet) {
		t.Errorf("detached: err = %v", err)
	}

	unit := iso.NewSourceUnit("bad.js", `"never closed`, vm.UserUnit, 1)
	bad := iso.NewFunctionInfo()
	bad.InitFromLiteral(&vm.FunctionLiteral{Name: "bad", EndPosition: 13, AllowsLazyCompilation: true}, false)
	if err := bad.SetSourceUnit(unit, 0, false); err != nil {
		t.Fatal(err)
	}
	if err := c.Compile(bad, nil); err == nil || !strings.Contains(err.Error(), "unterminated") {
		t.Errorf("unterminated literal: err = %v", err)
	}
	if bad.IsCompiled() {
		t.Error("failed compile installed bytecode")
	}
}

func TestCompileThenDiscardThenRecompile(t *testing.T) {
	iso := vm.NewIsolate()
	c := New(iso)
	_, fi := newFoo(t, iso)

	if err := c.EnsureCompiled(fi); err != nil {
		t.Fatal(err)
	}
	if err := fi.DiscardCompiled(); err != nil {
		t.Fatal(err)
	}
	if fi.StartPosition() != 23 || fi.EndPosition() != 40 {
		t.Errorf("discarded extent [%d,%d)", fi.StartPosition(), fi.EndPosition())
	}
	if err := c.EnsureCompiled(fi); err != nil {
		t.Fatal(err)
	}
	if err := c.EnsureCompiled(fi); err != nil {
		t.Fatal(err)
	}
	if c.Compiled() != 2 {
		t.Errorf("Compiled = %d, want 2", c.Compiled())
	}
}

func TestCollectSourcePositions(t *testing.T) {
	iso := vm.NewIsolate()
	iso.UpdateFlags(func(f *vm.EngineFlags) { f.LazySourcePositions = true })
	c := New(iso)
	_, fi := newFoo(t, iso)

	if err := c.Compile(fi, nil); err != nil {
		t.Fatal(err)
	}
	if fi.AreSourcePositionsAvailable() {
		t.Fatal("lazy compile attached positions")
	}
	if err := fi.EnsureSourcePositionsAvailable(); err != nil {
		t.Fatalf("EnsureSourcePositionsAvailable: %v", err)
	}
	table := fi.GetBytecodeProgram().SourcePositionTable()
	if table == nil || table.Len() != 8 {
		t.Fatalf("position table = %v", table)
	}
	if pos, ok := table.Lookup(0); !ok || pos != 23 {
		t.Errorf("Lookup(0) = %d, %v", pos, ok)
	}

	lazy := iso.NewFunctionInfo()
	if err := c.CollectSourcePositions(lazy); !errors.Is(err, vm.ErrPreconditionNotMet) {
		t.Errorf("uncompiled: err = %v", err)
	}
}

func TestCompileAll(t *testing.T) {
	iso := vm.NewIsolate()
	c := New(iso)

	var src strings.Builder
	const n = 20
	unit := func() *vm.SourceUnit {
		for i := 0; i < n; i++ {
			fmt.Fprintf(&src, "function f%02d(a) { return a; }\n", i)
		}
		return iso.NewSourceUnit("many.js", src.String(), vm.UserUnit, n)
	}()

	line := len("function f00(a) { return a; }\n")
	for i := 0; i < n; i++ {
		fi := iso.NewFunctionInfo()
		fi.InitFromLiteral(&vm.FunctionLiteral{
			Name:                  fmt.Sprintf("f%02d", i),
			LiteralID:             i,
			StartPosition:         i*line + 12,
			EndPosition:           (i+1)*line - 1,
			FunctionTokenPosition: i * line,
			ParameterCount:        1,
			AllowsLazyCompilation: true,
		}, false)
		if err := fi.SetSourceUnit(unit, i, false); err != nil {
			t.Fatal(err)
		}
	}

	compiled, err := c.CompileAll(context.Background(), unit, 4)
	if err != nil {
		t.Fatalf("CompileAll: %v", err)
	}
	if compiled != n {
		t.Errorf("compiled %d, want %d", compiled, n)
	}

	it := vm.NewSourceUnitIterator(unit)
	for fi := it.Next(); fi != nil; fi = it.Next() {
		if !fi.HasBytecodeProgram() {
			t.Errorf("%s not compiled", fi)
		}
	}

	again, err := c.CompileAll(context.Background(), unit, 0)
	if err != nil || again != 0 {
		t.Errorf("second CompileAll = %d, %v", again, err)
	}
}

func TestCompileAllCanceled(t *testing.T) {
	iso := vm.NewIsolate()
	c := New(iso)
	unit, _ := newFoo(t, iso)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.CompileAll(ctx, unit, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestCompileDuringConcurrentDiscard(t *testing.T) {
	iso := vm.NewIsolate()
	c := New(iso)
	_, a := newFoo(t, iso)
	_, b := newFoo(t, iso)
	if err := c.Compile(a, nil); err != nil {
		t.Fatal(err)
	}

	// The hook runs inside a's no-allocation region and holds it open
	// until b has compiled in its own turn.
	entered := make(chan struct{})
	compiled := make(chan struct{})
	var once sync.Once
	iso.Heap.SetSlotUpdateHook(func(host *vm.FunctionInfo, _ vm.SlotName, _ any) {
		if host != a {
			return
		}
		once.Do(func() {
			close(entered)
			select {
			case <-compiled:
			case <-time.After(5 * time.Second):
			}
		})
	})

	var compileErr error
	var compilePanic any
	go func() {
		defer close(compiled)
		<-entered
		iso.Turn(func() {
			defer func() { compilePanic = recover() }()
			compileErr = c.Compile(b, nil)
		})
	}()

	var discardErr error
	iso.Turn(func() {
		discardErr = a.DiscardCompiled()
	})
	<-compiled

	if discardErr != nil {
		t.Fatalf("DiscardCompiled: %v", discardErr)
	}
	if compilePanic != nil {
		t.Fatalf("Compile panicked in a concurrent turn: %v", compilePanic)
	}
	if compileErr != nil {
		t.Fatalf("Compile: %v", compileErr)
	}
	if !b.HasBytecodeProgram() || a.IsCompiled() {
		t.Errorf("a = %s, b = %s", a.PayloadKind(), b.PayloadKind())
	}
	if iso.Heap.OpenRegions() != 0 {
		t.Errorf("OpenRegions = %d after both turns", iso.Heap.OpenRegions())
	}
}

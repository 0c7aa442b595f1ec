package vm

import (
	"fmt"
	"testing"
)

const fooSource = "var a = 1;\nfunction foo(x) { return x; }\n"

// fooFunction returns the record for foo in fooSource: the function token
// at 11, the parameter list at 23 and the closing brace ending at 40.
func fooFunction(t *testing.T, iso *Isolate) *FunctionInfo {
	t.Helper()
	unit := iso.NewSourceUnit("foo.js", fooSource, UserUnit, 1)
	lit := lazyLiteral("foo", 0, 23, 40)
	lit.FunctionTokenPosition = 11
	fi := iso.NewFunctionInfo()
	fi.InitFromLiteral(lit, false)
	if err := fi.SetSourceUnit(unit, 0, false); err != nil {
		t.Fatal(err)
	}
	return fi
}

func TestSourceCode(t *testing.T) {
	fi := fooFunction(t, NewIsolate())

	if !fi.HasSourceCode() {
		t.Fatal("HasSourceCode = false")
	}
	if src, ok := fi.SourceCode(); !ok || src != "(x) { return x; }" {
		t.Errorf("SourceCode = %q, %v", src, ok)
	}
	if src, ok := fi.SourceCodeHarmony(); !ok || src != "function foo(x) { return x; }" {
		t.Errorf("SourceCodeHarmony = %q, %v", src, ok)
	}
}

func TestSourceCodeOf(t *testing.T) {
	fi := fooFunction(t, NewIsolate())

	tests := []struct {
		max  int
		want string
	}{
		{-1, "function foo(x) { return x; }"},
		{17, "function foo(x) { return x; }"},
		{5, "function foo(x) {...\n"},
		{0, "function foo...\n"},
	}
	for _, tt := range tests {
		if got := (SourceCodeOf{Fn: fi, MaxLength: tt.max}).String(); got != tt.want {
			t.Errorf("MaxLength %d: got %q, want %q", tt.max, got, tt.want)
		}
	}

	if got := fmt.Sprintf("%v", SourceCodeOf{Fn: fi, MaxLength: -1}); got != "function foo(x) { return x; }" {
		t.Errorf("formatted = %q", got)
	}
}

func TestSourceCodeOfToplevel(t *testing.T) {
	iso := NewIsolate()
	unit := iso.NewSourceUnit("main.js", "a();", UserUnit, 1)
	lit := lazyLiteral("", 0, 0, 4)
	fi := iso.NewFunctionInfo()
	fi.InitFromLiteral(lit, true)
	if err := fi.SetSourceUnit(unit, 0, false); err != nil {
		t.Fatal(err)
	}

	if got := (SourceCodeOf{Fn: fi, MaxLength: -1}).String(); got != "a();" {
		t.Errorf("toplevel source = %q", got)
	}
}

func TestSourceCodeWrapped(t *testing.T) {
	iso := NewIsolate()
	unit := iso.NewSourceUnit("wrapped.js", "return a + b;", UserUnit, 1)
	unit.WrappedArguments = []string{"a", "b"}

	lit := lazyLiteral("wrapper", 0, 0, 13)
	lit.SyntaxKind = Wrapped
	fi := iso.NewFunctionInfo()
	fi.InitFromLiteral(lit, false)
	if err := fi.SetSourceUnit(unit, 0, false); err != nil {
		t.Fatal(err)
	}

	want := "function wrapper(a, b) {\nreturn a + b;\n}"
	if src, ok := fi.SourceCodeHarmony(); !ok || src != want {
		t.Errorf("SourceCodeHarmony = %q, %v; want %q", src, ok, want)
	}

	fi.SetNameShouldPrintAsAnonymous(true)
	expectInvariant(t, "FunctionInfo.SourceCodeHarmony", func() { fi.SourceCodeHarmony() })
}

func TestSourceCodeMissing(t *testing.T) {
	iso := NewIsolate()

	detached := newLazyFunction(t, iso, nil, "f", 0, 0, 10)
	if got := (SourceCodeOf{Fn: detached, MaxLength: -1}).String(); got != "<No Source>" {
		t.Errorf("detached = %q", got)
	}
	if _, ok := detached.SourceCode(); ok {
		t.Error("SourceCode without a unit")
	}

	native := iso.NewSourceUnit("native", "", NativeUnit, 1)
	empty := newLazyFunction(t, iso, native, "g", 0, 0, 10)
	if empty.HasSourceCode() {
		t.Error("empty source reported as present")
	}

	short := iso.NewSourceUnit("short.js", "abc", UserUnit, 1)
	beyond := newLazyFunction(t, iso, short, "h", 0, 0, 100)
	if got := (SourceCodeOf{Fn: beyond, MaxLength: -1}).String(); got != "<Invalid Source>" {
		t.Errorf("out of range = %q", got)
	}
	if _, ok := beyond.SourceCode(); ok {
		t.Error("SourceCode accepted an extent past the end")
	}
}

func TestSourceCodeHarmonyWithoutPosition(t *testing.T) {
	iso := NewIsolate()
	source := "(module (func $f (result i32) i32.const 1))"
	module := &ForeignModule{Name: "m", Functions: []ForeignFunction{{Name: "f", CodeOffset: 8, CodeEndOffset: 42}}}

	attach := func(index int) *FunctionInfo {
		t.Helper()
		unit := iso.NewSourceUnit("m.wat", source, UserUnit, 1)
		fi := iso.NewFunctionInfo()
		if err := fi.InstallPayload(&ExportedForeignFunction{Module: module, FunctionIndex: index, WrapperCode: NewWrapperCode("export")}); err != nil {
			t.Fatal(err)
		}
		if err := fi.SetSourceUnit(unit, 0, false); err != nil {
			t.Fatal(err)
		}
		return fi
	}

	missing := attach(3)
	if missing.StartPosition() != NoSourcePosition || !missing.HasSourceCode() {
		t.Fatalf("start = %d, has source = %v", missing.StartPosition(), missing.HasSourceCode())
	}
	if src, ok := missing.SourceCodeHarmony(); ok || src != "" {
		t.Errorf("SourceCodeHarmony() = %q, %v; want no source", src, ok)
	}
	if _, ok := missing.SourceCode(); ok {
		t.Error("SourceCode returned text for a record without a position")
	}

	present := attach(0)
	if src, ok := present.SourceCodeHarmony(); !ok || src != source[8:42] {
		t.Errorf("SourceCodeHarmony() = %q, %v", src, ok)
	}
}

package vm

import (
	"errors"
	"testing"
)

func TestSummaryRoundTrip(t *testing.T) {
	iso := NewIsolate()
	unit := newTestUnit(iso, 4)

	lit := lazyLiteral("worker", 2, 120, 300)
	lit.FunctionTokenPosition = 111
	lit.InferredName = "obj.worker"
	lit.ParameterCount = 3
	lit.FunctionLength = 2
	lit.LanguageMode = Strict
	lit.Preparse = &PreparseScope{Data: []byte{4, 2}, ChildrenCount: 1}
	fi := iso.NewFunctionInfo()
	fi.InitFromLiteral(lit, false)
	if err := fi.SetSourceUnit(unit, 2, false); err != nil {
		t.Fatal(err)
	}

	s := fi.Summary()
	if s.LiteralID != 2 || s.Name != "worker" || s.InferredName != "obj.worker" {
		t.Errorf("summary identity = %+v", s)
	}
	if s.Start != 120 || s.End != 300 || s.FunctionTokenOffset != 9 {
		t.Errorf("summary positions = %d %d %d", s.Start, s.End, s.FunctionTokenOffset)
	}
	if s.Preparse == nil || s.Preparse.ChildrenCount != 1 {
		t.Error("summary lost the preparse data")
	}

	other := newTestUnit(iso, 4)
	restored, err := iso.NewFunctionInfoFromSummary(other, s)
	if err != nil {
		t.Fatal(err)
	}
	if !restored.HasDeferredParseWithPreparse() {
		t.Errorf("restored payload = %s", restored.PayloadKind())
	}
	if restored.Name() != "worker" || restored.InferredName() != "obj.worker" {
		t.Errorf("restored names %q %q", restored.Name(), restored.InferredName())
	}
	if restored.StartPosition() != 120 || restored.EndPosition() != 300 || restored.FunctionTokenPosition() != 111 {
		t.Errorf("restored positions [%d,%d) token %d",
			restored.StartPosition(), restored.EndPosition(), restored.FunctionTokenPosition())
	}
	if restored.ParameterCount() != 3 || restored.Length() != 2 {
		t.Errorf("restored params %d length %d", restored.ParameterCount(), restored.Length())
	}
	if restored.LanguageMode() != Strict {
		t.Error("restored record lost strict mode")
	}
	if other.FunctionTable().Get(2) != restored {
		t.Error("restored record not registered")
	}
	if restored.Flags().Persistent() != fi.Flags().Persistent() {
		t.Errorf("persistent flags %#x, want %#x", restored.Flags().Persistent(), fi.Flags().Persistent())
	}
}

func TestSummaryOfCompiledFunction(t *testing.T) {
	iso := NewIsolate()
	fi := newLazyFunction(t, iso, nil, "f", 0, 10, 50)
	compileForTest(t, fi, 8)

	s := fi.Summary()
	if s.Start != 10 || s.End != 50 || s.Name != "f" {
		t.Errorf("summary = %+v", s)
	}
	if s.Preparse != nil {
		t.Error("compiled summary carries preparse data")
	}
}

func TestNewFunctionInfoFromSummaryRejects(t *testing.T) {
	iso := NewIsolate()
	unit := newTestUnit(iso, 2)

	for _, s := range []LazySummary{
		{LiteralID: 0, Start: -1, End: 10},
		{LiteralID: 0, Start: 20, End: 10},
		{LiteralID: 2, Start: 0, End: 10},
		{LiteralID: -1, Start: 0, End: 10},
	} {
		if _, err := iso.NewFunctionInfoFromSummary(unit, s); !errors.Is(err, ErrPreconditionNotMet) {
			t.Errorf("%+v: err = %v", s, err)
		}
	}
}

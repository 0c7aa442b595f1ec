package vm

import (
	"testing"
	"time"
	"weak"
)

// ---------------------------------------------------------------------------
// BytecodeFlusher Unit Tests
// ---------------------------------------------------------------------------

// TestFlusherDiscardsOldBytecode verifies that bytecode is discarded once
// it has gone OldAge sweeps without running.
func TestFlusherDiscardsOldBytecode(t *testing.T) {
	iso := NewIsolate()
	unit := newTestUnit(iso, 2)
	cold := newLazyFunction(t, iso, unit, "cold", 0, 100, 200)
	compileForTest(t, cold, 8)
	lazy := newLazyFunction(t, iso, unit, "lazy", 1, 0, 10)

	f := NewBytecodeFlusher(iso, time.Hour, 2)

	stats := f.SweepNow()
	if stats.Scanned != 2 || stats.Flushed != 0 {
		t.Fatalf("first sweep: scanned %d flushed %d", stats.Scanned, stats.Flushed)
	}
	if !cold.HasBytecodeProgram() {
		t.Fatal("bytecode flushed too early")
	}

	stats = f.SweepNow()
	if stats.Flushed != 1 {
		t.Fatalf("second sweep flushed %d, want 1", stats.Flushed)
	}
	if !cold.HasDeferredParse() || cold.StartPosition() != 100 || cold.EndPosition() != 200 {
		t.Errorf("flushed record: %s [%d,%d)", cold.PayloadKind(), cold.StartPosition(), cold.EndPosition())
	}
	if !lazy.HasDeferredParse() {
		t.Error("lazy record changed")
	}
	if f.SweepCount() != 2 || f.LastStats() != stats {
		t.Errorf("SweepCount %d", f.SweepCount())
	}
}

// TestFlusherKeepsRunningBytecode verifies that invocations reset the age.
func TestFlusherKeepsRunningBytecode(t *testing.T) {
	iso := NewIsolate()
	unit := newTestUnit(iso, 1)
	hot := newLazyFunction(t, iso, unit, "hot", 0, 0, 10)
	compileForTest(t, hot, 8)

	f := NewBytecodeFlusher(iso, time.Hour, 2)
	for i := 0; i < 5; i++ {
		f.SweepNow()
		iso.Profiler().RecordInvocation(hot)
	}
	if !hot.HasBytecodeProgram() {
		t.Error("running bytecode was flushed")
	}
}

// TestFlusherCountsPinned verifies that pinned functions survive and are
// reported.
func TestFlusherCountsPinned(t *testing.T) {
	iso := NewIsolate()
	pins := NewPinSet()
	iso.SetDiscardPolicy(pins)
	unit := newTestUnit(iso, 1)
	fi := newLazyFunction(t, iso, unit, "pinned", 0, 0, 10)
	compileForTest(t, fi, 8)
	pins.Pin(fi)

	f := NewBytecodeFlusher(iso, time.Hour, 1)
	stats := f.SweepNow()
	if stats.Pinned != 1 || stats.Flushed != 0 {
		t.Errorf("pinned %d flushed %d", stats.Pinned, stats.Flushed)
	}
	if !fi.HasBytecodeProgram() {
		t.Error("pinned bytecode flushed")
	}
}

// TestFlusherToleratesDuplicates verifies that a record transiently present
// in two tables is processed once.
func TestFlusherToleratesDuplicates(t *testing.T) {
	iso := NewIsolate()
	a := newTestUnit(iso, 1)
	b := newTestUnit(iso, 1)
	fi := newLazyFunction(t, iso, a, "dup", 0, 0, 10)
	compileForTest(t, fi, 8)
	b.FunctionTable().Slot(0).storeWeak(weak.Make(fi))

	f := NewBytecodeFlusher(iso, time.Hour, 1)
	stats := f.SweepNow()
	if stats.Units != 2 || stats.Scanned != 1 || stats.Duplicates != 1 {
		t.Errorf("units %d scanned %d duplicates %d", stats.Units, stats.Scanned, stats.Duplicates)
	}
	if stats.Flushed != 1 {
		t.Errorf("flushed %d, want 1", stats.Flushed)
	}
	if b.FunctionTable().Get(0) != fi {
		t.Error("sweep repaired the duplicate")
	}
}

// TestFlusherDefaults verifies constructor defaults.
func TestFlusherDefaults(t *testing.T) {
	f := NewBytecodeFlusher(NewIsolate(), 0, 0)
	if f.Interval() != DefaultFlushInterval || f.OldAge() != DefaultFlushOldAge {
		t.Errorf("interval %v old age %d", f.Interval(), f.OldAge())
	}
	if !f.IsEnabled() {
		t.Error("new flusher should be enabled")
	}
	if f.LastStats() != nil {
		t.Error("LastStats before any sweep")
	}
}

// TestFlusherStartStop verifies the background loop sweeps and stops.
func TestFlusherStartStop(t *testing.T) {
	iso := NewIsolate()
	newTestUnit(iso, 1)
	f := NewBytecodeFlusher(iso, 5*time.Millisecond, 1)

	f.Start()
	f.Start() // no-op

	deadline := time.Now().Add(2 * time.Second)
	for f.SweepCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	f.Stop()
	if f.SweepCount() == 0 {
		t.Fatal("background loop never swept")
	}

	count := f.SweepCount()
	time.Sleep(20 * time.Millisecond)
	if f.SweepCount() != count {
		t.Error("sweeps continued after Stop")
	}
	f.Stop() // safe twice
}

// TestFlusherDisabled verifies that a disabled flusher's loop skips sweeps.
func TestFlusherDisabled(t *testing.T) {
	f := NewBytecodeFlusher(NewIsolate(), 5*time.Millisecond, 1)
	f.SetEnabled(false)
	f.Start()
	time.Sleep(30 * time.Millisecond)
	f.Stop()
	if f.SweepCount() != 0 {
		t.Errorf("disabled flusher swept %d times", f.SweepCount())
	}
}

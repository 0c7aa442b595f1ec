package vm

import (
	"sync"
	"sync/atomic"
)

// Profiler counts function invocations and code events. The interpreter
// calls RecordInvocation on every function entry; the flusher relies on
// it to keep running bytecode young.

// ProfileEvent is a code event reported by function metadata operations.
type ProfileEvent uint8

const (
	ProfileDisableOpt ProfileEvent = iota
	ProfileDiscard
	ProfileHot
	profileEventCount
)

// FunctionProfile is a snapshot of the profiling data of one function.
type FunctionProfile struct {
	InvocationCount uint64
	IsHot           bool // true once the threshold was reached
}

type functionCounters struct {
	invocations atomic.Uint64
	hot         atomic.Bool
}

// Profiler manages profiling for all functions of an isolate.
type Profiler struct {
	profiles sync.Map // *FunctionInfo -> *functionCounters

	// HotThreshold is the invocation count at which a function is hot.
	HotThreshold uint64

	// OnEvent, when set, is called for every recorded event.
	OnEvent func(ev ProfileEvent, fi *FunctionInfo)

	hotCount atomic.Uint64
	events   [profileEventCount]atomic.Uint64
}

// NewProfiler creates a profiler with the default threshold.
func NewProfiler() *Profiler {
	return &Profiler{HotThreshold: 100}
}

// RecordInvocation counts an invocation of fi and returns true when this
// invocation made it hot. It also resets the age of fi's bytecode and
// marks binary coverage as reported.
func (p *Profiler) RecordInvocation(fi *FunctionInfo) bool {
	if fi == nil {
		return false
	}
	if fi.HasBytecodeProgram() {
		fi.GetBytecodeProgram().MarkExecuted()
	}
	if !fi.HasReportedBinaryCoverage() && fi.iso.Flags().PreciseBinaryCoverage {
		fi.SetHasReportedBinaryCoverage(true)
	}

	val, _ := p.profiles.LoadOrStore(fi, &functionCounters{})
	counters := val.(*functionCounters)
	count := counters.invocations.Add(1)

	if count >= p.HotThreshold && counters.hot.CompareAndSwap(false, true) {
		p.hotCount.Add(1)
		p.recordEvent(ProfileHot, fi)
		return true
	}
	return false
}

// Profile returns fi's profile, if it was ever invoked.
func (p *Profiler) Profile(fi *FunctionInfo) (FunctionProfile, bool) {
	val, ok := p.profiles.Load(fi)
	if !ok {
		return FunctionProfile{}, false
	}
	counters := val.(*functionCounters)
	return FunctionProfile{
		InvocationCount: counters.invocations.Load(),
		IsHot:           counters.hot.Load(),
	}, true
}

// HotCount returns the number of functions that became hot.
func (p *Profiler) HotCount() uint64 {
	return p.hotCount.Load()
}

// EventCount returns how many times ev was recorded.
func (p *Profiler) EventCount(ev ProfileEvent) uint64 {
	if ev >= profileEventCount {
		return 0
	}
	return p.events[ev].Load()
}

// Forget drops fi's profile.
func (p *Profiler) Forget(fi *FunctionInfo) {
	p.profiles.Delete(fi)
}

func (p *Profiler) recordEvent(ev ProfileEvent, fi *FunctionInfo) {
	p.events[ev].Add(1)
	if p.OnEvent != nil {
		p.OnEvent(ev, fi)
	}
}

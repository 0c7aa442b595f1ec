package vm

import (
	"sync"
	"testing"
)

func TestProfilerInvocation(t *testing.T) {
	iso := NewIsolate()
	p := iso.Profiler()
	p.HotThreshold = 5
	fi := newLazyFunction(t, iso, nil, "f", 0, 0, 10)

	if p.RecordInvocation(fi) {
		t.Error("function should not be hot after 1 invocation")
	}
	profile, ok := p.Profile(fi)
	if !ok || profile.InvocationCount != 1 {
		t.Fatalf("profile = %+v, %v", profile, ok)
	}

	var becameHot bool
	for i := 0; i < 4; i++ {
		becameHot = p.RecordInvocation(fi)
	}
	if !becameHot {
		t.Error("function should become hot at threshold")
	}
	if p.RecordInvocation(fi) {
		t.Error("function should not re-trigger hot")
	}
	if p.HotCount() != 1 || p.EventCount(ProfileHot) != 1 {
		t.Errorf("hot count %d, events %d", p.HotCount(), p.EventCount(ProfileHot))
	}

	p.Forget(fi)
	if _, ok := p.Profile(fi); ok {
		t.Error("Forget kept the profile")
	}
}

func TestProfilerResetsBytecodeAge(t *testing.T) {
	iso := NewIsolate()
	fi := newLazyFunction(t, iso, nil, "f", 0, 0, 10)
	bc := compileForTest(t, fi, 4)

	bc.MakeOlder()
	bc.MakeOlder()
	iso.Profiler().RecordInvocation(fi)
	if bc.Age() != 0 {
		t.Errorf("age = %d after invocation", bc.Age())
	}
}

func TestProfilerOnEvent(t *testing.T) {
	iso := NewIsolate()
	var got []ProfileEvent
	iso.Profiler().OnEvent = func(ev ProfileEvent, _ *FunctionInfo) { got = append(got, ev) }

	fi := newLazyFunction(t, iso, nil, "f", 0, 0, 10)
	compileForTest(t, fi, 4)
	fi.DisableOptimization(NeverOptimize)
	if err := fi.DiscardCompiled(); err != nil {
		t.Fatal(err)
	}

	if len(got) != 2 || got[0] != ProfileDisableOpt || got[1] != ProfileDiscard {
		t.Errorf("events = %v", got)
	}
	if iso.Profiler().EventCount(profileEventCount) != 0 {
		t.Error("out-of-range event count")
	}
}

func TestProfilerConcurrentInvocations(t *testing.T) {
	iso := NewIsolate()
	p := iso.Profiler()
	p.HotThreshold = 1000
	fi := newLazyFunction(t, iso, nil, "f", 0, 0, 10)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				p.RecordInvocation(fi)
			}
		}()
	}
	wg.Wait()

	profile, _ := p.Profile(fi)
	if profile.InvocationCount != 800 {
		t.Errorf("invocations = %d, want 800", profile.InvocationCount)
	}
}

func TestProfilerBecomesHotOnce(t *testing.T) {
	iso := NewIsolate()
	p := iso.Profiler()
	p.HotThreshold = 1
	fi := newLazyFunction(t, iso, nil, "f", 0, 0, 10)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		turns int
	)
	start := make(chan struct{})
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if p.RecordInvocation(fi) {
				mu.Lock()
				turns++
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	if p.HotCount() != 1 || p.EventCount(ProfileHot) != 1 {
		t.Errorf("hot count %d, events %d; want 1", p.HotCount(), p.EventCount(ProfileHot))
	}
	if turns != 1 {
		t.Errorf("%d invocations reported the function turning hot, want 1", turns)
	}
	if profile, _ := p.Profile(fi); !profile.IsHot || profile.InvocationCount != 8 {
		t.Errorf("profile = %+v", profile)
	}
}

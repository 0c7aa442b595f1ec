package vm

import (
	"sync"
	"sync/atomic"
	"time"
)

// ---------------------------------------------------------------------------
// BytecodeFlusher: periodic discard of cold bytecode
// ---------------------------------------------------------------------------

// FlusherStats holds statistics from a single sweep.
type FlusherStats struct {
	Units          int
	Scanned        int
	Flushed        int
	Pinned         int
	ReclaimedSlots int
	Duplicates     int
	CachePruned    int
	SweepDuration  time.Duration
	Timestamp      time.Time
}

// BytecodeFlusher periodically ages every compiled function of an isolate
// and discards the bytecode of functions that have not run for OldAge
// sweeps. Each sweep also empties table slots whose record was reclaimed
// and prunes the compilation cache.
//
// A record may transiently sit in two tables while it is re-associated;
// the sweep counts such duplicates and processes the record once.
type BytecodeFlusher struct {
	iso      *Isolate
	interval time.Duration
	oldAge   uint32
	enabled  atomic.Bool
	stop     chan struct{}
	stopped  chan struct{}
	mu       sync.Mutex // protects start/stop lifecycle

	sweepCount atomic.Uint64
	lastStats  atomic.Value // *FlusherStats
}

// DefaultFlushInterval is the default sweep interval.
const DefaultFlushInterval = 30 * time.Second

// DefaultFlushOldAge is the default number of idle sweeps before a flush.
const DefaultFlushOldAge = 4

// NewBytecodeFlusher creates a flusher for iso. Non-positive arguments
// select the defaults.
func NewBytecodeFlusher(iso *Isolate, interval time.Duration, oldAge int) *BytecodeFlusher {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	if oldAge <= 0 {
		oldAge = DefaultFlushOldAge
	}
	f := &BytecodeFlusher{
		iso:      iso,
		interval: interval,
		oldAge:   uint32(saturateUint16(oldAge)),
	}
	f.enabled.Store(true)
	return f
}

// Start begins the periodic sweep goroutine. Calling Start again while it
// runs does nothing.
func (f *BytecodeFlusher) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.stop != nil {
		return
	}

	f.stop = make(chan struct{})
	f.stopped = make(chan struct{})

	stopCh := f.stop
	stoppedCh := f.stopped
	go f.loop(stopCh, stoppedCh)
}

// Stop halts the sweep goroutine and waits for it to finish. It is safe to
// call on a flusher that was never started.
func (f *BytecodeFlusher) Stop() {
	f.mu.Lock()
	stopCh := f.stop
	stoppedCh := f.stopped
	f.stop = nil
	f.stopped = nil
	f.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
		<-stoppedCh
	}
}

// SetEnabled enables or disables sweeping. A disabled flusher keeps its
// goroutine but skips sweeps.
func (f *BytecodeFlusher) SetEnabled(enabled bool) {
	f.enabled.Store(enabled)
}

// IsEnabled reports whether sweeping is enabled.
func (f *BytecodeFlusher) IsEnabled() bool {
	return f.enabled.Load()
}

// Interval returns the sweep interval.
func (f *BytecodeFlusher) Interval() time.Duration {
	return f.interval
}

// OldAge returns the number of idle sweeps before bytecode is flushed.
func (f *BytecodeFlusher) OldAge() int {
	return int(f.oldAge)
}

// SweepCount returns the number of sweeps performed.
func (f *BytecodeFlusher) SweepCount() uint64 {
	return f.sweepCount.Load()
}

// LastStats returns the most recent sweep's statistics, or nil.
func (f *BytecodeFlusher) LastStats() *FlusherStats {
	v := f.lastStats.Load()
	if v == nil {
		return nil
	}
	return v.(*FlusherStats)
}

// SweepNow performs a sweep immediately.
func (f *BytecodeFlusher) SweepNow() *FlusherStats {
	var stats *FlusherStats
	f.iso.Safepoint(func() {
		stats = f.sweep()
	})
	return stats
}

func (f *BytecodeFlusher) loop(stopCh <-chan struct{}, stoppedCh chan struct{}) {
	defer close(stoppedCh)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if f.enabled.Load() {
				f.SweepNow()
			}
		}
	}
}

// sweep runs at a safepoint.
func (f *BytecodeFlusher) sweep() *FlusherStats {
	start := time.Now()
	stats := &FlusherStats{Timestamp: start}

	seen := make(map[*FunctionInfo]struct{})
	for _, unit := range f.iso.SourceUnits() {
		stats.Units++
		table := unit.FunctionTable()
		for i := range table.slots {
			slot := &table.slots[i]
			if slot.sweep() {
				stats.ReclaimedSlots++
				continue
			}
			fi := slot.Get()
			if fi == nil {
				continue
			}
			if _, dup := seen[fi]; dup {
				stats.Duplicates++
				continue
			}
			seen[fi] = struct{}{}
			stats.Scanned++
			f.age(fi, stats)
		}
	}
	stats.CachePruned = f.iso.CompilationCache().Prune()
	stats.SweepDuration = time.Since(start)

	f.sweepCount.Add(1)
	f.lastStats.Store(stats)

	flog.Debugf("sweep: scanned=%d flushed=%d pinned=%d reclaimed=%d duplicates=%d",
		stats.Scanned, stats.Flushed, stats.Pinned, stats.ReclaimedSlots, stats.Duplicates)
	return stats
}

func (f *BytecodeFlusher) age(fi *FunctionInfo, stats *FlusherStats) {
	if !fi.HasBytecodeProgram() {
		return
	}
	if fi.GetBytecodeProgram().MakeOlder() < f.oldAge {
		return
	}
	if !fi.CanDiscardCompiled() {
		stats.Pinned++
		return
	}
	if err := fi.DiscardCompiled(); err != nil {
		flog.Warningf("flush %s: %s", fi, err)
		return
	}
	stats.Flushed++
}

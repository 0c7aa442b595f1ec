package vm

import (
	"sync/atomic"
	"weak"
)

// ---------------------------------------------------------------------------
// WeakSlot: one entry of a source unit's function table
// ---------------------------------------------------------------------------

// SlotState describes a function table entry.
type SlotState uint8

const (
	// SlotEmpty has never held a record, or held one that was reclaimed.
	SlotEmpty SlotState = iota
	// SlotCleared held a record that was explicitly detached.
	SlotCleared
	// SlotWeak refers to a record without keeping it alive.
	SlotWeak
)

func (s SlotState) String() string {
	switch s {
	case SlotEmpty:
		return "empty"
	case SlotCleared:
		return "cleared"
	case SlotWeak:
		return "weak"
	}
	return "unknown"
}

type slotValue struct {
	state SlotState
	ref   weak.Pointer[FunctionInfo]
}

var (
	emptySlotValue   = &slotValue{state: SlotEmpty}
	clearedSlotValue = &slotValue{state: SlotCleared}
)

// WeakSlot holds a weak reference to a FunctionInfo. Reads and writes are
// atomic; the referent may disappear between any two reads, which readers
// observe as an empty slot.
type WeakSlot struct {
	v atomic.Pointer[slotValue]
}

func (s *WeakSlot) load() *slotValue {
	if v := s.v.Load(); v != nil {
		return v
	}
	return emptySlotValue
}

// State returns the slot's state. A weak slot whose referent was reclaimed
// reports SlotEmpty.
func (s *WeakSlot) State() SlotState {
	v := s.load()
	if v.state == SlotWeak && v.ref.Value() == nil {
		return SlotEmpty
	}
	return v.state
}

// Get returns the referenced record, or nil when the slot is empty, cleared
// or its referent is gone.
func (s *WeakSlot) Get() *FunctionInfo {
	v := s.load()
	if v.state != SlotWeak {
		return nil
	}
	return v.ref.Value()
}

// RefersTo reports whether the slot currently refers to fi.
func (s *WeakSlot) RefersTo(fi *FunctionInfo) bool {
	return fi != nil && s.Get() == fi
}

func (s *WeakSlot) storeWeak(ref weak.Pointer[FunctionInfo]) {
	s.v.Store(&slotValue{state: SlotWeak, ref: ref})
}

// clearIfRefers marks the slot cleared if it still refers to fi and
// reports whether it did. A slot that was repurposed for another record is
// left alone.
func (s *WeakSlot) clearIfRefers(fi *FunctionInfo) bool {
	for {
		cur := s.v.Load()
		if cur == nil || cur.state != SlotWeak || cur.ref.Value() != fi {
			return false
		}
		if s.v.CompareAndSwap(cur, clearedSlotValue) {
			return true
		}
	}
}

// Drop empties the slot. The collector calls it once the referent is known
// to be dead; registry code treats the result like any other empty slot.
func (s *WeakSlot) Drop() {
	s.v.Store(emptySlotValue)
}

// sweep turns a weak slot whose referent was reclaimed into an empty slot
// and reports whether it did.
func (s *WeakSlot) sweep() bool {
	cur := s.v.Load()
	if cur == nil || cur.state != SlotWeak || cur.ref.Value() != nil {
		return false
	}
	return s.v.CompareAndSwap(cur, emptySlotValue)
}

package vm

import (
	"weak"

	"fortio.org/safecast"
)

// ---------------------------------------------------------------------------
// Source unit association
// ---------------------------------------------------------------------------

// SetSourceUnit associates the record with unit at literalID, or detaches
// it when unit is nil. Setting the current unit again does nothing.
//
// Attaching writes a weak reference into the unit's function table.
// Detaching clears the old unit's slot at the record's stored literal id,
// but only if that slot still refers to this record: after live edits the
// slot may already belong to another record and is then left as is.
//
// resetPreparse drops a deferred-parse payload's preparse cache, whose
// offsets are tied to the old unit.
//
// An out-of-range literal id returns an error wrapping
// ErrPreconditionNotMet and changes nothing.
func (fi *FunctionInfo) SetSourceUnit(unit *SourceUnit, literalID int, resetPreparse bool) error {
	old := fi.SourceUnit()
	if old == unit {
		return nil
	}

	var id int32
	var ref weak.Pointer[FunctionInfo]
	if unit != nil {
		table := unit.FunctionTable()
		if literalID < 0 || literalID >= table.Len() {
			return precondition("attach %s to %s: literal id %d out of range [0,%d)", fi, unit, literalID, table.Len())
		}
		var err error
		if id, err = safecast.Conv[int32](literalID); err != nil {
			return precondition("attach %s to %s: literal id %d: %v", fi, unit, literalID, err)
		}
		ref = weak.Make(fi)
	}

	region := fi.iso.Heap.DisallowAllocation()
	defer region.Release()

	if resetPreparse && fi.HasDeferredParseWithPreparse() {
		fi.ClearPreparseData()
	}

	if old != nil {
		// The old table may be shorter than our id after a live edit.
		if table := old.FunctionTable(); fi.LiteralID() >= 0 && fi.LiteralID() < table.Len() {
			table.Slot(fi.LiteralID()).clearIfRefers(fi)
		}
	}

	if unit != nil {
		// A collection between here and the unit store below may see the
		// record in both tables; the flusher tolerates that.
		unit.FunctionTable().Slot(literalID).storeWeak(ref)
		fi.literalID.Store(id)
	}

	fi.unit.Store(unit)
	return nil
}

// ---------------------------------------------------------------------------
// SourceUnitIterator
// ---------------------------------------------------------------------------

// SourceUnitIterator walks a unit's function table once, front to back,
// yielding live records and skipping empty, cleared and reclaimed slots.
// It snapshots the table at construction and on Reset.
type SourceUnitIterator struct {
	table *FunctionTable
	index int
}

// NewSourceUnitIterator creates an iterator over unit's current table.
func NewSourceUnitIterator(unit *SourceUnit) *SourceUnitIterator {
	return &SourceUnitIterator{table: unit.FunctionTable()}
}

// Next returns the next live record, or nil when the table is exhausted.
func (it *SourceUnitIterator) Next() *FunctionInfo {
	for it.index < it.table.Len() {
		fi := it.table.slots[it.index].Get()
		it.index++
		if fi != nil {
			return fi
		}
	}
	return nil
}

// Reset rebinds the iterator to unit's current table and restarts it.
func (it *SourceUnitIterator) Reset(unit *SourceUnit) {
	it.table = unit.FunctionTable()
	it.index = 0
}

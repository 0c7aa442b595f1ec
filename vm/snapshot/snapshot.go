// Package snapshot persists the lazy summaries of a source unit's functions
// so a later isolate can recreate them uncompiled without reparsing.
package snapshot

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/chazu/fninfo/vm"
)

// Version is the current snapshot format version.
const Version = 1

var (
	// ErrVersion is returned when decoding a snapshot of another format version.
	ErrVersion = errors.New("snapshot: unsupported version")
	// ErrSourceMismatch is returned when restoring into a unit whose source
	// differs from the captured one.
	ErrSourceMismatch = errors.New("snapshot: source does not match")
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("snapshot: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Header identifies the unit a snapshot was captured from.
type Header struct {
	Version       int      `cbor:"1,keyasint"`
	Isolate       []byte   `cbor:"2,keyasint"`
	Unit          string   `cbor:"3,keyasint"`
	UnitKind      string   `cbor:"4,keyasint"`
	SourceLength  int      `cbor:"5,keyasint"`
	SourceHash    [32]byte `cbor:"6,keyasint"`
	FunctionCount int      `cbor:"7,keyasint"`
}

// Preparse is a persisted preparse cache.
type Preparse struct {
	Data          []byte `cbor:"1,keyasint"`
	ChildrenCount int    `cbor:"2,keyasint"`
}

// FunctionRecord is one persisted lazy summary.
type FunctionRecord struct {
	LiteralID             int       `cbor:"1,keyasint"`
	Name                  string    `cbor:"2,keyasint,omitempty"`
	InferredName          string    `cbor:"3,keyasint,omitempty"`
	Start                 int       `cbor:"4,keyasint"`
	End                   int       `cbor:"5,keyasint"`
	FunctionTokenOffset   int       `cbor:"6,keyasint"`
	ParameterCount        int       `cbor:"7,keyasint"`
	Length                int       `cbor:"8,keyasint"`
	ExpectedPropertyCount int       `cbor:"9,keyasint"`
	Flags                 uint32    `cbor:"10,keyasint"`
	Preparse              *Preparse `cbor:"11,keyasint,omitempty"`
}

// Snapshot is a captured source unit.
type Snapshot struct {
	Header    Header           `cbor:"1,keyasint"`
	Functions []FunctionRecord `cbor:"2,keyasint"`
}

// IsolateID returns the id of the isolate the snapshot was captured in.
func (s *Snapshot) IsolateID() (uuid.UUID, error) {
	return uuid.FromBytes(s.Header.Isolate)
}

// Capture summarizes every live function of unit in literal id order.
// Functions without a source extent are skipped.
func Capture(iso *vm.Isolate, unit *vm.SourceUnit) *Snapshot {
	src := unit.Source()
	snap := &Snapshot{
		Header: Header{
			Version:       Version,
			Isolate:       iso.ID[:],
			Unit:          unit.Name(),
			UnitKind:      unit.Kind().String(),
			SourceLength:  len(src),
			SourceHash:    sha256.Sum256([]byte(src)),
			FunctionCount: unit.FunctionTable().Len(),
		},
	}

	it := vm.NewSourceUnitIterator(unit)
	for fi := it.Next(); fi != nil; fi = it.Next() {
		if fi.StartPosition() == vm.NoSourcePosition {
			continue
		}
		snap.Functions = append(snap.Functions, recordOf(fi.Summary()))
	}
	return snap
}

func recordOf(s vm.LazySummary) FunctionRecord {
	r := FunctionRecord{
		LiteralID:             s.LiteralID,
		Name:                  s.Name,
		InferredName:          s.InferredName,
		Start:                 s.Start,
		End:                   s.End,
		FunctionTokenOffset:   s.FunctionTokenOffset,
		ParameterCount:        s.ParameterCount,
		Length:                s.Length,
		ExpectedPropertyCount: s.ExpectedPropertyCount,
		Flags:                 uint32(s.Flags),
	}
	if s.Preparse != nil {
		r.Preparse = &Preparse{Data: s.Preparse.Data, ChildrenCount: s.Preparse.ChildrenCount}
	}
	return r
}

// Summary converts the record back to a lazy summary.
func (r *FunctionRecord) Summary() vm.LazySummary {
	s := vm.LazySummary{
		LiteralID:             r.LiteralID,
		Name:                  r.Name,
		InferredName:          r.InferredName,
		Start:                 r.Start,
		End:                   r.End,
		FunctionTokenOffset:   r.FunctionTokenOffset,
		ParameterCount:        r.ParameterCount,
		Length:                r.Length,
		ExpectedPropertyCount: r.ExpectedPropertyCount,
		Flags:                 vm.Flags(r.Flags),
	}
	if r.Preparse != nil {
		s.Preparse = &vm.PreparseScope{Data: r.Preparse.Data, ChildrenCount: r.Preparse.ChildrenCount}
	}
	return s
}

// Marshal serializes a snapshot to canonical CBOR.
func Marshal(s *Snapshot) ([]byte, error) {
	return cborEncMode.Marshal(s)
}

// Unmarshal deserializes a snapshot and checks its version.
func Unmarshal(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("snapshot: unmarshal: %w", err)
	}
	if s.Header.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrVersion, s.Header.Version)
	}
	return &s, nil
}

// Restore recreates the snapshot's functions as uncompiled records of
// unit. Literal ids whose slot already holds a live record are left alone.
// The unit's function table grows to the captured size if needed.
func (s *Snapshot) Restore(iso *vm.Isolate, unit *vm.SourceUnit) ([]*vm.FunctionInfo, error) {
	src := unit.Source()
	if len(src) != s.Header.SourceLength || sha256.Sum256([]byte(src)) != s.Header.SourceHash {
		return nil, fmt.Errorf("%w: unit %s", ErrSourceMismatch, unit)
	}

	table := unit.GrowFunctionTable(s.Header.FunctionCount)
	restored := make([]*vm.FunctionInfo, 0, len(s.Functions))
	for i := range s.Functions {
		r := &s.Functions[i]
		if table.Get(r.LiteralID) != nil {
			continue
		}
		fi, err := iso.NewFunctionInfoFromSummary(unit, r.Summary())
		if err != nil {
			return restored, fmt.Errorf("snapshot: %w", err)
		}
		restored = append(restored, fi)
	}
	return restored, nil
}

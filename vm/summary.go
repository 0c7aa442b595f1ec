package vm

// LazySummary is everything needed to recreate a function as uncompiled:
// the part of a FunctionInfo that survives a discard. Code caches persist
// it; NewFunctionInfoFromSummary turns it back into a record.
type LazySummary struct {
	LiteralID             int
	Name                  string
	InferredName          string
	Start                 int
	End                   int
	FunctionTokenOffset   int
	ParameterCount        int
	Length                int
	ExpectedPropertyCount int
	Flags                 Flags
	Preparse              *PreparseScope
}

// Summary captures fi's lazy summary. Process-local flag bits are dropped.
func (fi *FunctionInfo) Summary() LazySummary {
	start, end := fi.positions()
	s := LazySummary{
		LiteralID:             fi.LiteralID(),
		Name:                  fi.Name(),
		InferredName:          fi.InferredName(),
		Start:                 start,
		End:                   end,
		FunctionTokenOffset:   int(fi.rawFunctionTokenOffset),
		ParameterCount:        fi.ParameterCount(),
		Length:                fi.Length(),
		ExpectedPropertyCount: fi.ExpectedPropertyCount(),
		Flags:                 fi.Flags().Persistent(),
	}
	if d, ok := fi.Payload().(*DeferredParse); ok {
		s.Preparse = d.PreparseScope()
	}
	return s
}

// NewFunctionInfoFromSummary creates an uncompiled record from s and
// associates it with unit at s.LiteralID. The record recompiles from
// scratch on first call.
func (iso *Isolate) NewFunctionInfoFromSummary(unit *SourceUnit, s LazySummary) (*FunctionInfo, error) {
	if s.Start < 0 || s.End < s.Start {
		return nil, precondition("restore function %d: bad extent [%d,%d)", s.LiteralID, s.Start, s.End)
	}
	if table := unit.FunctionTable(); s.LiteralID < 0 || s.LiteralID >= table.Len() {
		return nil, precondition("restore function %d: outside %s function table", s.LiteralID, unit)
	}

	fi := iso.NewFunctionInfo()
	deferred := iso.Heap.NewDeferredParse(s.InferredName, s.Start, s.End, s.Preparse)

	fi.SetName(s.Name)
	fi.paramCount = saturateUint16(s.ParameterCount)
	fi.length = saturateUint16(s.Length)
	fi.expectedNofProperties = saturateUint8(s.ExpectedPropertyCount)
	fi.rawFunctionTokenOffset = saturateUint16(s.FunctionTokenOffset)
	fi.flags.Store(uint32(constructAsBuiltinBit.setBool(s.Flags.Persistent(), false)))
	fi.setPayload(deferred)

	if err := fi.SetSourceUnit(unit, s.LiteralID, false); err != nil {
		return nil, err
	}
	return fi, nil
}

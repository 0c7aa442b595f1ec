package vm

// ---------------------------------------------------------------------------
// Entry point dispatch
// ---------------------------------------------------------------------------

// ResolveEntryPoint returns the code a call to this function jumps to right
// now. The decision depends only on the active payload variant.
//
// The order of the cases below is mirrored by entryPointTable, which the
// call path uses; the two must never disagree.
func (fi *FunctionInfo) ResolveEntryPoint() *Code {
	return resolveEntryPoint(fi.iso.Builtins, fi.Payload())
}

func resolveEntryPoint(b *Builtins, p Payload) *Code {
	switch p := p.(type) {
	case BuiltinRef:
		return b.Lookup(p.ID)
	case *BytecodeProgram:
		// Compiled, interpreted function.
		return b.Lookup(BuiltinInterpreterEntryTrampoline)
	case *ForeignModuleData:
		return b.Lookup(BuiltinInstantiateForeignModule)
	case *DeferredParse:
		// Not compiled yet, with or without preparse cache.
		return b.Lookup(BuiltinCompileLazy)
	case *HostTemplate:
		return b.Lookup(BuiltinHandleHostCall)
	case *ExportedForeignFunction:
		return p.WrapperCode
	case *TrampolineData:
		return checkedTrampoline(p)
	case *HostCallbackData:
		return p.WrapperCode
	case *CCallableData:
		return p.WrapperCode
	}
	panic(invariant("FunctionInfo.ResolveEntryPoint", "corrupt payload %T", p))
}

func checkedTrampoline(t *TrampolineData) *Code {
	if t.Trampoline == nil || !t.Trampoline.IsInterpreterTrampoline() {
		panic(invariant("FunctionInfo.ResolveEntryPoint", "trampoline data carries non-trampoline code %v", t.Trampoline))
	}
	return t.Trampoline
}

// entryPointTable is the kind-indexed form of resolveEntryPoint.
var entryPointTable = [payloadKindCount]func(*Builtins, Payload) *Code{
	PayloadBuiltin: func(b *Builtins, p Payload) *Code {
		return b.Lookup(p.(BuiltinRef).ID)
	},
	PayloadBytecode: func(b *Builtins, _ Payload) *Code {
		return b.Lookup(BuiltinInterpreterEntryTrampoline)
	},
	PayloadForeignModule: func(b *Builtins, _ Payload) *Code {
		return b.Lookup(BuiltinInstantiateForeignModule)
	},
	PayloadDeferredParse: func(b *Builtins, _ Payload) *Code {
		return b.Lookup(BuiltinCompileLazy)
	},
	PayloadHostTemplate: func(b *Builtins, _ Payload) *Code {
		return b.Lookup(BuiltinHandleHostCall)
	},
	PayloadExportedForeignFunction: func(_ *Builtins, p Payload) *Code {
		return p.(*ExportedForeignFunction).WrapperCode
	},
	PayloadTrampoline: func(_ *Builtins, p Payload) *Code {
		return checkedTrampoline(p.(*TrampolineData))
	},
	PayloadHostCallback: func(_ *Builtins, p Payload) *Code {
		return p.(*HostCallbackData).WrapperCode
	},
	PayloadCCallable: func(_ *Builtins, p Payload) *Code {
		return p.(*CCallableData).WrapperCode
	},
}

// FastEntryPoint is the table-driven lookup used by EntryCache misses.
func FastEntryPoint(b *Builtins, p Payload) *Code {
	kind := p.Kind()
	if kind >= payloadKindCount {
		panic(invariant("FastEntryPoint", "corrupt payload kind %d", kind))
	}
	return entryPointTable[kind](b, p)
}

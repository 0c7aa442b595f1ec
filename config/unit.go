package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/chazu/fninfo/vm"
)

// UnitFile describes a source unit and the function literals the parser
// found in it. It stands in for a parser when loading units from disk.
type UnitFile struct {
	Name             string         `toml:"name"`
	Kind             string         `toml:"kind"`
	Source           string         `toml:"source"`
	SourceFile       string         `toml:"source-file"`
	Slots            int            `toml:"slots"`
	WrappedArguments []string       `toml:"wrapped-arguments"`
	Functions        []FunctionSpec `toml:"function"`

	// Dir is the directory containing the unit file (set at load time).
	Dir string `toml:"-"`
}

// FunctionSpec describes one function literal.
type FunctionSpec struct {
	Name         string `toml:"name"`
	InferredName string `toml:"inferred-name"`
	LiteralID    int    `toml:"literal-id"`
	Start        int    `toml:"start"`
	End          int    `toml:"end"`
	// Token is the function keyword's offset; nil means there is none.
	Token              *int   `toml:"token"`
	Params             int    `toml:"params"`
	Length             int    `toml:"length"`
	Kind               string `toml:"kind"`
	Syntax             string `toml:"syntax"`
	Strict             bool   `toml:"strict"`
	Toplevel           bool   `toml:"toplevel"`
	Eager              bool   `toml:"eager"`
	ExpectedProperties int    `toml:"expected-properties"`
	Outer              string `toml:"outer"`
	Preparse           string `toml:"preparse"`
	PreparseChildren   int    `toml:"preparse-children"`
	Native             bool   `toml:"native"`
	Builtin            string `toml:"builtin"`
	HostTemplate       string `toml:"host-template"`
}

// LoadUnitFile parses a unit description file. A relative source-file is
// resolved against the description's directory.
func LoadUnitFile(path string) (*UnitFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	var uf UnitFile
	if err := toml.Unmarshal(data, &uf); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	uf.Dir = filepath.Dir(path)

	if uf.SourceFile != "" {
		if uf.Source != "" {
			return nil, fmt.Errorf("%s: source and source-file are mutually exclusive", path)
		}
		src := uf.SourceFile
		if !filepath.IsAbs(src) {
			src = filepath.Join(uf.Dir, src)
		}
		text, err := os.ReadFile(src)
		if err != nil {
			return nil, fmt.Errorf("%s: cannot read source: %w", path, err)
		}
		uf.Source = string(text)
	}
	if uf.Name == "" {
		uf.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &uf, nil
}

// Literal converts the description into the parser's literal form. outer is the
// resolved outer scope, or nil.
func (fs *FunctionSpec) Literal(outer *vm.ScopeDescriptor) (*vm.FunctionLiteral, error) {
	kind, err := vm.ParseFunctionKind(fs.Kind)
	if err != nil {
		return nil, err
	}
	syntax, err := vm.ParseSyntaxKind(fs.Syntax)
	if err != nil {
		return nil, err
	}
	if fs.End < fs.Start || fs.Start < 0 {
		return nil, fmt.Errorf("bad extent [%d,%d)", fs.Start, fs.End)
	}

	lit := &vm.FunctionLiteral{
		Name:                  fs.Name,
		InferredName:          fs.InferredName,
		LiteralID:             fs.LiteralID,
		StartPosition:         fs.Start,
		EndPosition:           fs.End,
		FunctionTokenPosition: vm.NoSourcePosition,
		ParameterCount:        fs.Params,
		FunctionLength:        fs.Length,
		Kind:                  kind,
		SyntaxKind:            syntax,
		AllowsLazyCompilation: !fs.Eager,
		ShouldEagerCompile:    fs.Eager,
		ExpectedPropertyCount: fs.ExpectedProperties,
		OuterScope:            outer,
	}
	if fs.Token != nil {
		lit.FunctionTokenPosition = *fs.Token
	}
	if fs.Strict {
		lit.LanguageMode = vm.Strict
	}
	if fs.Preparse != "" || fs.PreparseChildren > 0 {
		if fs.Eager {
			return nil, errors.New("eager functions cannot carry preparse data")
		}
		lit.Preparse = &vm.PreparseScope{Data: []byte(fs.Preparse), ChildrenCount: fs.PreparseChildren}
	}
	return lit, nil
}

// Build registers the unit with iso and creates one FunctionInfo per
// function, associated with the unit at its literal id. Eager functions
// are compiled right away when iso has a compiler.
//
// Every function is checked before the unit is registered. When an eager
// compile fails the unit is unregistered again and its functions are
// detached, so a failed Build leaves iso as it was.
func (uf *UnitFile) Build(iso *vm.Isolate) (*vm.SourceUnit, []*vm.FunctionInfo, error) {
	kind, err := vm.ParseUnitKind(uf.Kind)
	if err != nil {
		return nil, nil, fmt.Errorf("unit %s: %w", uf.Name, err)
	}

	slots := uf.Slots
	seen := make(map[int]string)
	for i := range uf.Functions {
		fs := &uf.Functions[i]
		if prev, dup := seen[fs.LiteralID]; dup {
			return nil, nil, fmt.Errorf("unit %s: functions %q and %q share literal id %d", uf.Name, prev, fs.Name, fs.LiteralID)
		}
		seen[fs.LiteralID] = fs.Name
		slots = max(slots, fs.LiteralID+1)
		if err := uf.check(iso, fs); err != nil {
			return nil, nil, fmt.Errorf("unit %s: function %q: %w", uf.Name, fs.Name, err)
		}
	}

	unit := iso.NewSourceUnit(uf.Name, uf.Source, kind, slots)
	unit.WrappedArguments = uf.WrappedArguments

	script := iso.Heap.NewScopeDescriptor(vm.ScriptScope, "", nil)
	outers := make(map[string]*vm.ScopeDescriptor)
	outerScope := func(name string) *vm.ScopeDescriptor {
		if name == "" {
			return nil
		}
		if s, ok := outers[name]; ok {
			return s
		}
		s := iso.Heap.NewScopeDescriptor(vm.FunctionScope, name, script)
		outers[name] = s
		return s
	}

	fns := make([]*vm.FunctionInfo, 0, len(uf.Functions))
	for i := range uf.Functions {
		fs := &uf.Functions[i]
		fi, err := uf.buildFunction(iso, unit, fs, outerScope(fs.Outer))
		if fi != nil {
			fns = append(fns, fi)
		}
		if err != nil {
			for _, built := range fns {
				// Detaching from a unit cannot fail.
				_ = built.SetSourceUnit(nil, vm.InvalidLiteralID, false)
			}
			iso.RemoveSourceUnit(unit)
			return nil, nil, fmt.Errorf("unit %s: function %q: %w", uf.Name, fs.Name, err)
		}
	}
	return unit, fns, nil
}

// check rejects a function spec that cannot be built into the unit.
func (uf *UnitFile) check(iso *vm.Isolate, fs *FunctionSpec) error {
	if _, err := fs.Literal(nil); err != nil {
		return err
	}
	if fs.LiteralID < 0 {
		return fmt.Errorf("negative literal id %d", fs.LiteralID)
	}
	if fs.End > len(uf.Source) {
		return fmt.Errorf("extent [%d,%d) beyond source of %d bytes", fs.Start, fs.End, len(uf.Source))
	}
	if fs.Builtin != "" {
		if _, ok := iso.Builtins.IDByName(fs.Builtin); !ok {
			return fmt.Errorf("unknown builtin %q", fs.Builtin)
		}
	}
	return nil
}

// buildFunction creates the record for a spec that passed check. A
// non-nil record is returned alongside an error once it is attached.
func (uf *UnitFile) buildFunction(iso *vm.Isolate, unit *vm.SourceUnit, fs *FunctionSpec, outer *vm.ScopeDescriptor) (*vm.FunctionInfo, error) {
	lit, err := fs.Literal(outer)
	if err != nil {
		return nil, err
	}

	fi := iso.NewFunctionInfo()
	fi.SetKind(lit.Kind)
	fi.InitFromLiteral(lit, fs.Toplevel)
	fi.SetNative(fs.Native)
	if err := fi.SetSourceUnit(unit, fs.LiteralID, false); err != nil {
		return nil, err
	}

	switch {
	case fs.Builtin != "":
		id, ok := iso.Builtins.IDByName(fs.Builtin)
		if !ok {
			return fi, fmt.Errorf("unknown builtin %q", fs.Builtin)
		}
		if err := fi.InstallPayload(vm.BuiltinRef{ID: id}); err != nil {
			return fi, err
		}
	case fs.HostTemplate != "":
		class, callback, _ := strings.Cut(fs.HostTemplate, ".")
		if err := fi.InstallPayload(&vm.HostTemplate{ClassName: class, Callback: callback}); err != nil {
			return fi, err
		}
	case lit.ShouldEagerCompile:
		if c := iso.Compiler(); c != nil {
			if err := c.Compile(fi, lit); err != nil {
				return fi, err
			}
		}
	}
	return fi, nil
}

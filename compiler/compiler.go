// Package compiler is a small reference bytecode generator. It scans a
// function's source range and installs the result into its FunctionInfo.
package compiler

import (
	"bytes"
	"context"
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/fninfo/vm"
)

// ---------------------------------------------------------------------------
// Compiler: the reference bytecode generator
// ---------------------------------------------------------------------------

// Opcodes emitted by the generator. Every instruction is two bytes: the
// opcode and an operand.
const (
	OpNop byte = iota
	OpLoadName
	OpPushConst
	OpOperator
	OpEnterFunction
	OpReturn
)

var log = commonlog.GetLogger("fninfo.compiler")

// Compiler turns a function's source range into bytecode and installs it
// into the function's FunctionInfo. It implements vm.Compiler.
type Compiler struct {
	iso      *vm.Isolate
	compiled atomic.Uint64
}

// New creates a compiler for iso and installs it as the isolate's
// compiler collaborator.
func New(iso *vm.Isolate) *Compiler {
	c := &Compiler{iso: iso}
	iso.SetCompiler(c)
	return c
}

// Compiled returns the number of functions compiled so far.
func (c *Compiler) Compiled() uint64 {
	return c.compiled.Load()
}

type program struct {
	code      []byte
	positions []vm.PositionEntry
	names     int
	closures  int
}

func generate(src string, start, end int) (program, error) {
	var p program
	names := make(map[string]bool)
	sc := NewScanner(src, start, end)
	statement := true

	for {
		tok := sc.Next()
		if tok.Kind == TokenEOF {
			break
		}
		if tok.Kind == TokenIllegal {
			return program{}, fmt.Errorf("unterminated literal at offset %d", tok.Offset)
		}

		p.positions = append(p.positions, vm.PositionEntry{
			CodeOffset:     len(p.code),
			SourcePosition: tok.Offset,
			IsStatement:    statement,
		})

		var op byte
		switch tok.Kind {
		case TokenIdent:
			op = OpLoadName
			names[tok.Text] = true
		case TokenNumber, TokenString:
			op = OpPushConst
		case TokenKeyword:
			switch tok.Text {
			case "function":
				op = OpEnterFunction
				p.closures++
			case "return":
				op = OpReturn
			default:
				op = OpNop
			}
		default:
			op = OpOperator
		}
		p.code = append(p.code, op, operand(tok.Text))

		statement = tok.Text == ";" || tok.Text == "{" || tok.Text == "}"
	}

	p.code = append(p.code, OpReturn, 0)
	p.names = len(names)
	return p, nil
}

func operand(text string) byte {
	if len(text) > 0xff {
		return 0xff
	}
	return byte(len(text))
}

// Compile compiles fi and installs bytecode, a scope descriptor and
// feedback metadata. lit, when given, is the eagerly parsed literal: its
// extent is used and its property estimate is finalized.
func (c *Compiler) Compile(fi *vm.FunctionInfo, lit *vm.FunctionLiteral) error {
	unit := fi.SourceUnit()
	if unit == nil {
		return fmt.Errorf("compile %s: no source unit: %w", fi, vm.ErrPreconditionNotMet)
	}

	start, end := fi.StartPosition(), fi.EndPosition()
	if lit != nil {
		start, end = lit.StartPosition, lit.EndPosition
	}
	if start == vm.NoSourcePosition || end < start {
		return fmt.Errorf("compile %s: no source extent: %w", fi, vm.ErrPreconditionNotMet)
	}

	prog, err := generate(unit.Source(), start, end)
	if err != nil {
		return fmt.Errorf("compile %s: %w", fi, err)
	}

	bc := c.iso.Heap.NewBytecodeProgram(prog.code, prog.names, fi.ParameterCount())
	if !c.iso.Flags().LazySourcePositions {
		bc.SetSourcePositionTable(vm.NewSourcePositionTable(prog.positions))
	}

	kind := vm.FunctionScope
	if fi.IsToplevel() {
		kind = vm.ScriptScope
	}
	scope := c.iso.Heap.NewScopeDescriptor(kind, fi.Name(), fi.OuterScope())
	scope.ContextSlots = prog.closures
	scope.SetPositionInfo(start, end)

	if lit != nil {
		fi.UpdateAndFinalizeExpectedPropertyCount(lit)
	}
	feedback := &vm.FeedbackMetadata{SlotCount: prog.names, ClosureCellCount: prog.closures}
	if err := fi.InstallBytecode(bc, scope, feedback); err != nil {
		return err
	}

	c.compiled.Add(1)
	log.Debugf("compiled %s: %d bytes, %d positions", fi, bc.Length(), len(prog.positions))
	return nil
}

// CollectSourcePositions rescans fi's source and attaches the position
// table its bytecode was compiled without.
func (c *Compiler) CollectSourcePositions(fi *vm.FunctionInfo) error {
	if !fi.HasBytecodeProgram() {
		return fmt.Errorf("collect source positions for %s: not compiled: %w", fi, vm.ErrPreconditionNotMet)
	}
	bc := fi.GetBytecodeProgram()
	if bc.HasSourcePositionTable() {
		return nil
	}
	unit := fi.SourceUnit()
	if unit == nil {
		return fmt.Errorf("collect source positions for %s: no source unit: %w", fi, vm.ErrPreconditionNotMet)
	}

	prog, err := generate(unit.Source(), fi.StartPosition(), fi.EndPosition())
	if err != nil {
		return fmt.Errorf("collect source positions for %s: %w", fi, err)
	}
	if !bytes.Equal(prog.code, bc.Code) {
		return fmt.Errorf("collect source positions for %s: source no longer matches bytecode", fi)
	}
	bc.SetSourcePositionTable(vm.NewSourcePositionTable(prog.positions))
	log.Debugf("collected %d source positions for %s", len(prog.positions), fi)
	return nil
}

// EnsureCompiled compiles fi unless it already is.
func (c *Compiler) EnsureCompiled(fi *vm.FunctionInfo) error {
	if fi.IsCompiled() {
		return nil
	}
	return c.Compile(fi, nil)
}

// CompileAll compiles every uncompiled function of unit using up to jobs
// workers (GOMAXPROCS when jobs <= 0) and returns how many it compiled.
// Each compilation runs as an engine turn of the isolate.
func (c *Compiler) CompileAll(ctx context.Context, unit *vm.SourceUnit, jobs int) (int, error) {
	var pending []*vm.FunctionInfo
	it := vm.NewSourceUnitIterator(unit)
	for fi := it.Next(); fi != nil; fi = it.Next() {
		if !fi.IsCompiled() {
			pending = append(pending, fi)
		}
	}
	if len(pending) == 0 {
		return 0, nil
	}

	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(pending)))

	for _, fi := range pending {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			var err error
			c.iso.Turn(func() {
				err = c.EnsureCompiled(fi)
			})
			if err != nil {
				return err
			}
			done.Add(1)
			return nil
		})
	}

	err := g.Wait()
	return int(done.Load()), err
}

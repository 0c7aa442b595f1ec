package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/chazu/fninfo/vm"
)

var (
	inspectCompile bool
	inspectJobs    int
	inspectFlush   bool
	inspectFilter  string
	inspectSource  int
)

var (
	nameColor     = color.New(color.FgCyan, color.Bold)
	kindColor     = color.New(color.FgYellow)
	inlineColor   = color.New(color.FgGreen)
	noInlineColor = color.New(color.FgRed)
	dimColor      = color.New(color.Faint)
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <unit.toml>",
	Short: "Print the metadata of every function in a unit",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectCompile, "compile", false, "compile every lazy function first")
	inspectCmd.Flags().IntVarP(&inspectJobs, "jobs", "j", 0, "parallel compile jobs (default GOMAXPROCS)")
	inspectCmd.Flags().BoolVar(&inspectFlush, "flush", false, "run one flusher sweep before reporting")
	inspectCmd.Flags().StringVar(&inspectFilter, "filter", "*", "only report functions whose name passes this filter")
	inspectCmd.Flags().IntVar(&inspectSource, "source", 0, "print up to this many bytes of each function's source")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	s, err := openSession(args[0])
	if err != nil {
		return err
	}

	if inspectCompile {
		n, err := s.compiler.CompileAll(context.Background(), s.unit, inspectJobs)
		if err != nil {
			return err
		}
		log.Infof("compiled %d functions", n)
	}
	if inspectFlush {
		stats := s.cfg.NewFlusher(s.iso).SweepNow()
		fmt.Fprintf(cmd.OutOrStdout(), "flush: scanned %d, flushed %d, pinned %d, reclaimed %d\n",
			stats.Scanned, stats.Flushed, stats.Pinned, stats.ReclaimedSlots)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%d slots)\n", s.unit, s.unit.FunctionTable().Len())
	it := vm.NewSourceUnitIterator(s.unit)
	for fi := it.Next(); fi != nil; fi = it.Next() {
		if !fi.PassesFilter(inspectFilter) {
			continue
		}
		report(out, fi)
	}
	return nil
}

func report(w io.Writer, fi *vm.FunctionInfo) {
	name := fi.DebugName()
	if name == "" {
		name = "(anonymous)"
	}
	fmt.Fprintf(w, "  #%-3d %s %s\n", fi.LiteralID(), nameColor.Sprint(name), kindColor.Sprint(fi.PayloadKind()))

	start, end := fi.StartPosition(), fi.EndPosition()
	if start == vm.NoSourcePosition {
		fmt.Fprintf(w, "       %s\n", dimColor.Sprint("no source position"))
	} else {
		fmt.Fprintf(w, "       source [%d,%d) size %d", start, end, fi.SourceSize())
		if tok := fi.FunctionTokenPosition(); tok != vm.NoSourcePosition {
			fmt.Fprintf(w, " token %d", tok)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "       kind %s, %s, params %d, length %d, expected properties %d\n",
		fi.Kind(), fi.LanguageMode(), fi.ParameterCount(), fi.Length(), fi.ExpectedPropertyCount())
	fmt.Fprintf(w, "       entry %s, hash %#x\n", fi.ResolveEntryPoint(), fi.ComputeHash())

	inl := fi.GetInlineability()
	c := noInlineColor
	if inl == vm.IsInlineable {
		c = inlineColor
	}
	fmt.Fprintf(w, "       inlineability %s\n", c.Sprint(inl))

	if inspectSource > 0 {
		src := vm.SourceCodeOf{Fn: fi, MaxLength: inspectSource}.String()
		for _, line := range strings.Split(strings.TrimRight(src, "\n"), "\n") {
			fmt.Fprintf(w, "       | %s\n", line)
		}
	}
}


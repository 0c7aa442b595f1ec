package vm

import (
	"fmt"
	"io"
	"strings"
)

// ---------------------------------------------------------------------------
// Source text
// ---------------------------------------------------------------------------

// HasSourceCode reports whether the function's unit has non-empty source.
func (fi *FunctionInfo) HasSourceCode() bool {
	u := fi.SourceUnit()
	return u != nil && u.Source() != ""
}

func sourceSlice(src string, start, end int) (string, bool) {
	if start < 0 || end < start || end > len(src) {
		return "", false
	}
	return src[start:end], true
}

// SourceCode returns the function's source text from its start to its end
// position. It returns false when there is no source or the extent does
// not fit the unit's text.
func (fi *FunctionInfo) SourceCode() (string, bool) {
	if !fi.HasSourceCode() {
		return "", false
	}
	start, end := fi.positions()
	return sourceSlice(fi.SourceUnit().Source(), start, end)
}

// SourceCodeHarmony returns the source from the function keyword token to
// the end position. Functions wrapped by the embedder get the synthetic
// header back: "function name(args) {\n" ... "\n}". A record without a
// start position has no source to return.
func (fi *FunctionInfo) SourceCodeHarmony() (string, bool) {
	if !fi.HasSourceCode() || fi.StartPosition() == NoSourcePosition {
		return "", false
	}
	unit := fi.SourceUnit()
	tokenPos := fi.FunctionTokenPosition()
	if tokenPos == NoSourcePosition {
		panic(invariant("FunctionInfo.SourceCodeHarmony", "%s has no function token position", fi))
	}
	src, ok := sourceSlice(unit.Source(), tokenPos, fi.EndPosition())
	if !ok || !fi.IsWrapped() {
		return src, ok
	}
	if fi.NameShouldPrintAsAnonymous() {
		panic(invariant("FunctionInfo.SourceCodeHarmony", "wrapped function %s prints as anonymous", fi))
	}

	var b strings.Builder
	b.WriteString("function ")
	b.WriteString(fi.Name())
	b.WriteString("(")
	b.WriteString(strings.Join(unit.WrappedArguments, ", "))
	b.WriteString(") {\n")
	b.WriteString(src)
	b.WriteString("\n}")
	return b.String(), true
}

// SourceCodeOf formats a function's source for stack dumps, truncated to
// MaxLength bytes. A negative MaxLength prints everything.
type SourceCodeOf struct {
	Fn        *FunctionInfo
	MaxLength int
}

// String implements fmt.Stringer.
func (v SourceCodeOf) String() string {
	var b strings.Builder
	v.writeTo(&b)
	return b.String()
}

// Format implements fmt.Formatter so %v and %s avoid the intermediate
// string.
func (v SourceCodeOf) Format(f fmt.State, _ rune) {
	v.writeTo(f)
}

func (v SourceCodeOf) writeTo(w io.Writer) {
	fi := v.Fn
	if !fi.HasSourceCode() {
		fmt.Fprint(w, "<No Source>")
		return
	}
	src := fi.SourceUnit().Source()
	start, end := fi.positions()
	if start < 0 || end < start || end > len(src) {
		fmt.Fprint(w, "<Invalid Source>")
		return
	}

	if !fi.IsToplevel() {
		fmt.Fprint(w, "function ")
		fmt.Fprint(w, fi.Name())
	}
	if v.MaxLength < 0 || end-start <= v.MaxLength {
		fmt.Fprint(w, src[start:end])
		return
	}
	fmt.Fprint(w, src[start:start+v.MaxLength])
	fmt.Fprint(w, "...\n")
}

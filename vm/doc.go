// Package vm implements the per-function metadata record of the engine.
//
// This package contains:
//   - FunctionInfo and its payload tagged union
//   - Entry point resolution for every payload variant
//   - Source extents, token positions and lazy position tables
//   - Discarding compiled state back to a deferred parse
//   - Source units with weak function tables and iteration
//   - Inlineability classification, debug info and code tracing
package vm

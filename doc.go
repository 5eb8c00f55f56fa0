// Package pykythe is a name-resolution and caching engine for Python
// cross-referencing: it resolves every identifier occurrence in a module to
// a fully-qualified name (FQN) and emits an abstract fact stream (defines,
// references, contains, imports) for a downstage graph-storage toolchain.
//
// # Pipeline
//
// For each submitted file the engine:
//
//  1. Cooks the source into a scope-annotated AST (tree-sitter front end in
//     internal/pycook).
//  2. Resolves every binding and reference with a single interleaved
//     depth-first walk over an explicit scope stack, following import edges
//     to other modules — recursively, with import cycles broken by partial
//     views — and falling back to a bootstrap table of builtin declarations.
//  3. Caches the finalized symbol table and facts keyed by
//     (module FQN, version), so re-running over overlapping file sets is
//     idempotent and a module imported by N files is resolved exactly once.
//
// # Usage
//
//	e, err := pykythe.New(pykythe.DefaultConfig("path/to/project"))
//	if err != nil { ... }
//	defer e.Close()
//
//	results, err := e.ResolveDirectory(context.Background(), "path/to/project")
//	for _, r := range results {
//		for _, f := range r.Facts { ... }
//	}
//
// # Determinism
//
// For a fixed version, resolving the same module content yields bit-identical
// symbol tables and fact sequences, independent of submission order and
// worker count. The one documented exception is reference resolution inside
// an import cycle, where a partner's partial view depends on how far it had
// progressed; definitions and top-level tables stay deterministic even then.
//
// # Unknowns
//
// Absence of information never halts indexing: unresolved references and
// imports degrade to the unknown marker and are surfaced in the fact stream
// rather than omitted. Only two faults are process-fatal — a malformed
// bootstrap declaration set, and divergent cache content under an identical
// key — because every other guarantee depends on those two being sound.
package pykythe

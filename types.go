package pykythe

import (
	"github.com/saidctb/pykythe/internal/ast"
	"github.com/saidctb/pykythe/internal/facts"
	"github.com/saidctb/pykythe/internal/imports"
	"github.com/saidctb/pykythe/internal/modcache"
	"github.com/saidctb/pykythe/internal/symtab"
)

// Public type aliases for internal types surfaced by the Engine API. These
// are Go type aliases (=), identical to the internal types at compile time.

type Fact = facts.Fact
type FactKind = facts.Kind
type Binding = symtab.Binding
type SymbolTable = symtab.SymbolTable
type Position = ast.Position
type Status = imports.Status
type Cache = modcache.Cache
type CacheEntry = modcache.Entry

const (
	FactDefines    = facts.KindDefines
	FactReferences = facts.KindReferences
	FactContains   = facts.KindContains
	FactImports    = facts.KindImports

	StatusNotStarted = imports.StatusNotStarted
	StatusInProgress = imports.StatusInProgress
	StatusResolved   = imports.StatusResolved
	StatusFailed     = imports.StatusFailed

	// Unknown is the FQN recorded for references and bindings that could
	// not be resolved.
	Unknown = symtab.Unknown
)

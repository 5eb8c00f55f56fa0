// Package symtab holds the name-resolution data model: bindings, ordered
// symbol tables, and the lexical scope stack with its per-variant visibility
// rules.
package symtab

import (
	"encoding/json"
	"strings"

	"github.com/saidctb/pykythe/internal/ast"
)

// Unknown is the FQN recorded when resolution cannot produce a precise
// answer. Absence of information never halts indexing; it degrades to this
// marker.
const Unknown = "<unknown>"

// Binding ties a local name to the FQN it denotes. TypeFQN carries the
// resolved (or Unknown) annotation reference; it is opaque to the engine.
// Bindings are immutable once recorded.
type Binding struct {
	Name    string       `json:"name"`
	FQN     string       `json:"fqn"`
	TypeFQN string       `json:"type_fqn,omitempty"`
	Pos     ast.Position `json:"pos"`
}

// SymbolTable maps names to bindings. Lookup returns the latest binding for
// a name (shadowing within a scope), while All preserves exact insertion
// order for deterministic fact emission.
type SymbolTable struct {
	bindings []Binding
	byName   map[string]int // name → index of latest binding
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{byName: make(map[string]int)}
}

// Insert records a binding. A later binding of the same name shadows the
// earlier one for subsequent lookups; both are retained in order.
func (t *SymbolTable) Insert(b Binding) {
	t.byName[b.Name] = len(t.bindings)
	t.bindings = append(t.bindings, b)
}

// Lookup returns the latest binding for name.
func (t *SymbolTable) Lookup(name string) (Binding, bool) {
	i, ok := t.byName[name]
	if !ok {
		return Binding{}, false
	}
	return t.bindings[i], true
}

// All returns every recorded binding in insertion order. The returned slice
// must not be mutated.
func (t *SymbolTable) All() []Binding {
	return t.bindings
}

// Len returns the number of recorded bindings, shadowed ones included.
func (t *SymbolTable) Len() int {
	return len(t.bindings)
}

// Clone returns an independent copy. Used to snapshot partial views of
// in-progress modules.
func (t *SymbolTable) Clone() *SymbolTable {
	c := &SymbolTable{
		bindings: make([]Binding, len(t.bindings)),
		byName:   make(map[string]int, len(t.byName)),
	}
	copy(c.bindings, t.bindings)
	for k, v := range t.byName {
		c.byName[k] = v
	}
	return c
}

// MarshalJSON encodes the table as its binding array in insertion order,
// which keeps cache entry payloads bit-identical for identical inputs.
func (t *SymbolTable) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.bindings)
}

// UnmarshalJSON rebuilds the table, last binding per name winning for
// lookup, exactly as Insert would have.
func (t *SymbolTable) UnmarshalJSON(data []byte) error {
	var bindings []Binding
	if err := json.Unmarshal(data, &bindings); err != nil {
		return err
	}
	t.bindings = nil
	t.byName = make(map[string]int, len(bindings))
	for _, b := range bindings {
		t.Insert(b)
	}
	return nil
}

// ScopeKind selects the visibility rule a scope applies during outward
// lookup.
type ScopeKind uint8

const (
	ScopeModule ScopeKind = iota
	ScopeClass
	ScopeFunction
	ScopeComprehension
)

var scopeKindNames = [...]string{
	ScopeModule:        "module",
	ScopeClass:         "class",
	ScopeFunction:      "function",
	ScopeComprehension: "comprehension",
}

func (k ScopeKind) String() string { return scopeKindNames[k] }

// ScopeKindFor maps a scope-introducing AST node kind to its scope variant.
func ScopeKindFor(k ast.NodeKind) ScopeKind {
	switch k {
	case ast.KindClassDef:
		return ScopeClass
	case ast.KindFuncDef:
		return ScopeFunction
	case ast.KindComprehension:
		return ScopeComprehension
	default:
		return ScopeModule
	}
}

// Scope is one frame of the lexical scope stack.
type Scope struct {
	Kind  ScopeKind
	Name  string // "" for module and comprehension scopes
	Table *SymbolTable

	globals   map[string]bool
	nonlocals map[string]bool
}

// DeclareGlobal marks name as bound in the module scope for the remainder of
// this scope, per a global statement.
func (s *Scope) DeclareGlobal(name string) {
	if s.globals == nil {
		s.globals = make(map[string]bool)
	}
	s.globals[name] = true
}

// DeclareNonlocal marks name as bound in the nearest enclosing function
// scope, per a nonlocal statement.
func (s *Scope) DeclareNonlocal(name string) {
	if s.nonlocals == nil {
		s.nonlocals = make(map[string]bool)
	}
	s.nonlocals[name] = true
}

// IsGlobal reports whether name was declared global in this scope.
func (s *Scope) IsGlobal(name string) bool { return s.globals[name] }

// IsNonlocal reports whether name was declared nonlocal in this scope.
func (s *Scope) IsNonlocal(name string) bool { return s.nonlocals[name] }

// Stack is the explicit scope stack maintained during a module walk. The
// module scope is always the bottom frame.
type Stack struct {
	frames []*Scope
}

func NewStack(moduleScope *Scope) *Stack {
	return &Stack{frames: []*Scope{moduleScope}}
}

// Push opens a new scope of the given variant.
func (s *Stack) Push(kind ScopeKind, name string) *Scope {
	sc := &Scope{Kind: kind, Name: name, Table: NewSymbolTable()}
	s.frames = append(s.frames, sc)
	return sc
}

// Pop closes the innermost scope and returns it. The scope's table is
// retained by the caller, not discarded, so member lookup through the
// enclosing definition keeps working.
func (s *Stack) Pop() *Scope {
	sc := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	return sc
}

// Current returns the innermost scope.
func (s *Stack) Current() *Scope {
	return s.frames[len(s.frames)-1]
}

// Depth returns the number of open scopes.
func (s *Stack) Depth() int { return len(s.frames) }

// Lookup searches scopes outward from the innermost. Class scopes are
// visible only as the current scope: a name in a class body is not visible
// from functions nested inside the class. The module scope, as the bottom
// frame, is always the last frame searched.
func (s *Stack) Lookup(name string) (Binding, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		fr := s.frames[i]
		if fr.Kind == ScopeClass && i != len(s.frames)-1 {
			continue
		}
		if b, ok := fr.Table.Lookup(name); ok {
			return b, true
		}
	}
	return Binding{}, false
}

// FQNPrefix returns the dotted path of enclosing named scopes, starting with
// the module FQN. Comprehension scopes contribute no segment.
func (s *Stack) FQNPrefix(moduleFQN string) string {
	return s.prefixThrough(moduleFQN, len(s.frames)-1)
}

func (s *Stack) prefixThrough(moduleFQN string, idx int) string {
	parts := []string{moduleFQN}
	for _, fr := range s.frames[:idx+1] {
		if fr.Name != "" {
			parts = append(parts, fr.Name)
		}
	}
	return strings.Join(parts, ".")
}

// BindScope returns the scope a binding of name lands in and that scope's FQN
// prefix. A name declared global in the current scope binds in the module
// scope; a name declared nonlocal binds in the nearest enclosing function
// scope. Anything else binds in the current scope. A nonlocal declaration
// with no enclosing function scope is a syntax error in the source; it falls
// back to the current scope rather than failing the walk.
func (s *Stack) BindScope(moduleFQN, name string) (*Scope, string) {
	cur := s.Current()
	if cur.IsGlobal(name) {
		return s.frames[0], moduleFQN
	}
	if cur.IsNonlocal(name) {
		for i := len(s.frames) - 2; i >= 1; i-- {
			if s.frames[i].Kind == ScopeFunction {
				return s.frames[i], s.prefixThrough(moduleFQN, i)
			}
		}
	}
	return cur, s.FQNPrefix(moduleFQN)
}

// MintFQN builds the FQN for a name bound in the current scope: the module
// FQN, the dotted path of enclosing scope names, then the local name.
func (s *Stack) MintFQN(moduleFQN, name string) string {
	return s.FQNPrefix(moduleFQN) + "." + name
}

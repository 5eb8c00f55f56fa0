package symtab

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saidctb/pykythe/internal/ast"
)

func TestSymbolTableShadowing(t *testing.T) {
	tab := NewSymbolTable()
	tab.Insert(Binding{Name: "x", FQN: "m.A", Pos: ast.Position{Line: 1}})
	tab.Insert(Binding{Name: "y", FQN: "m.y", Pos: ast.Position{Line: 2}})
	tab.Insert(Binding{Name: "x", FQN: "n.B", Pos: ast.Position{Line: 3}})

	b, ok := tab.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, "n.B", b.FQN, "latest binding wins")

	// Shadowed bindings stay in the record in insertion order.
	all := tab.All()
	require.Len(t, all, 3)
	assert.Equal(t, "m.A", all[0].FQN)
	assert.Equal(t, "m.y", all[1].FQN)
	assert.Equal(t, "n.B", all[2].FQN)
	assert.Equal(t, 3, tab.Len())
}

func TestSymbolTableLookupMissing(t *testing.T) {
	tab := NewSymbolTable()
	_, ok := tab.Lookup("nope")
	assert.False(t, ok)
}

func TestSymbolTableClone(t *testing.T) {
	tab := NewSymbolTable()
	tab.Insert(Binding{Name: "a", FQN: "m.a"})

	c := tab.Clone()
	tab.Insert(Binding{Name: "b", FQN: "m.b"})

	assert.Equal(t, 1, c.Len(), "clone is a snapshot")
	_, ok := c.Lookup("b")
	assert.False(t, ok)
}

func TestSymbolTableJSONRoundTrip(t *testing.T) {
	tab := NewSymbolTable()
	tab.Insert(Binding{Name: "x", FQN: "m.A", Pos: ast.Position{Line: 1, Col: 2}})
	tab.Insert(Binding{Name: "x", FQN: "m.B", Pos: ast.Position{Line: 5}})

	data, err := json.Marshal(tab)
	require.NoError(t, err)

	var back SymbolTable
	require.NoError(t, json.Unmarshal(data, &back))

	assert.Equal(t, tab.All(), back.All(), "insertion order survives")
	b, ok := back.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, "m.B", b.FQN)

	// Identical tables encode identically.
	again, err := json.Marshal(&back)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestStackLookupSkipsClassScopes(t *testing.T) {
	module := &Scope{Kind: ScopeModule, Table: NewSymbolTable()}
	module.Table.Insert(Binding{Name: "g", FQN: "m.g"})

	st := NewStack(module)
	st.Push(ScopeClass, "C")
	st.Current().Table.Insert(Binding{Name: "attr", FQN: "m.C.attr"})

	// Inside the class body the class scope is innermost and visible.
	b, ok := st.Lookup("attr")
	require.True(t, ok)
	assert.Equal(t, "m.C.attr", b.FQN)

	// A method's scope does not see the class body's names.
	st.Push(ScopeFunction, "meth")
	_, ok = st.Lookup("attr")
	assert.False(t, ok, "class scope invisible from nested function")

	// But it still sees the module scope through the class frame.
	b, ok = st.Lookup("g")
	require.True(t, ok)
	assert.Equal(t, "m.g", b.FQN)
}

func TestStackFunctionScopesAreVisible(t *testing.T) {
	module := &Scope{Kind: ScopeModule, Table: NewSymbolTable()}
	st := NewStack(module)

	st.Push(ScopeFunction, "outer")
	st.Current().Table.Insert(Binding{Name: "x", FQN: "m.outer.x"})
	st.Push(ScopeFunction, "inner")

	b, ok := st.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, "m.outer.x", b.FQN)
}

func TestStackMintFQN(t *testing.T) {
	module := &Scope{Kind: ScopeModule, Table: NewSymbolTable()}
	st := NewStack(module)

	assert.Equal(t, "pkg.mod.x", st.MintFQN("pkg.mod", "x"))

	st.Push(ScopeClass, "C")
	st.Push(ScopeFunction, "meth")
	assert.Equal(t, "pkg.mod.C.meth.y", st.MintFQN("pkg.mod", "y"))

	// Comprehension scopes isolate names but contribute no FQN segment.
	st.Push(ScopeComprehension, "")
	assert.Equal(t, "pkg.mod.C.meth.i", st.MintFQN("pkg.mod", "i"))

	st.Pop()
	st.Pop()
	st.Pop()
	assert.Equal(t, 1, st.Depth())
}

func TestStackBindScope(t *testing.T) {
	module := &Scope{Kind: ScopeModule, Table: NewSymbolTable()}
	st := NewStack(module)

	st.Push(ScopeFunction, "outer")
	outer := st.Current()
	st.Push(ScopeFunction, "inner")

	// Undeclared names bind where they appear.
	sc, prefix := st.BindScope("m", "x")
	assert.Same(t, st.Current(), sc)
	assert.Equal(t, "m.outer.inner", prefix)

	st.Current().DeclareGlobal("counter")
	sc, prefix = st.BindScope("m", "counter")
	assert.Same(t, module, sc)
	assert.Equal(t, "m", prefix)

	st.Current().DeclareNonlocal("x")
	sc, prefix = st.BindScope("m", "x")
	assert.Same(t, outer, sc)
	assert.Equal(t, "m.outer", prefix)

	// The declarations are scoped to the frame that made them.
	st.Pop()
	sc, prefix = st.BindScope("m", "counter")
	assert.Same(t, outer, sc)
	assert.Equal(t, "m.outer", prefix)
}

func TestStackBindScopeNonlocalWithoutEnclosingFunction(t *testing.T) {
	module := &Scope{Kind: ScopeModule, Table: NewSymbolTable()}
	st := NewStack(module)

	st.Push(ScopeFunction, "f")
	st.Current().DeclareNonlocal("x")

	// No enclosing function scope to rebind in; the current scope absorbs
	// the binding instead of reaching the module scope.
	sc, prefix := st.BindScope("m", "x")
	assert.Same(t, st.Current(), sc)
	assert.Equal(t, "m.f", prefix)
}

func TestScopeKindFor(t *testing.T) {
	assert.Equal(t, ScopeClass, ScopeKindFor(ast.KindClassDef))
	assert.Equal(t, ScopeFunction, ScopeKindFor(ast.KindFuncDef))
	assert.Equal(t, ScopeComprehension, ScopeKindFor(ast.KindComprehension))
	assert.Equal(t, ScopeModule, ScopeKindFor(ast.KindModule))
	assert.Equal(t, "class", ScopeClass.String())
}

package pycook

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saidctb/pykythe/internal/ast"
)

func cookSrc(t *testing.T, src string) *ast.Module {
	t.Helper()
	mod, err := Cook(context.Background(), "test.py", []byte(src))
	require.NoError(t, err)
	require.NoError(t, ast.Validate(mod.Root))
	return mod
}

// outline flattens a cooked tree into "kind name" lines in walk order,
// nesting marked by indentation.
func outline(n *ast.Node) []string {
	var out []string
	var walk func(n *ast.Node, depth int)
	walk = func(n *ast.Node, depth int) {
		line := ""
		for i := 0; i < depth; i++ {
			line += "  "
		}
		line += n.Kind.String()
		if n.Name != "" {
			line += " " + n.Name
		}
		out = append(out, line)
		for _, c := range n.Children {
			walk(c, depth+1)
		}
	}
	for _, c := range n.Children {
		walk(c, 0)
	}
	return out
}

func TestCookDefinitions(t *testing.T) {
	mod := cookSrc(t, `
g = 1

class C:
    attr = 2

    def meth(self):
        return attr

def f():
    x = g
    return x
`)
	assert.Equal(t, []string{
		"bind g",
		"class C",
		"  bind attr",
		"  function meth",
		"    bind self",
		"    ref attr",
		"function f",
		"  ref g",
		"  bind x",
		"  ref x",
	}, outline(mod.Root))
}

func TestCookImports(t *testing.T) {
	mod := cookSrc(t, `
import b
import a.b as ab
from util import helper as h, other
from m import *
`)
	root := mod.Root
	require.Len(t, root.Children, 4)
	for _, c := range root.Children {
		require.Equal(t, ast.KindImport, c.Kind)
	}

	assert.Equal(t, "b", root.Children[0].Spec.Module)
	assert.Empty(t, root.Children[0].Spec.Names)

	assert.Equal(t, "a.b", root.Children[1].Spec.Module)
	assert.Equal(t, "ab", root.Children[1].Spec.Alias)

	from := root.Children[2].Spec
	assert.Equal(t, "util", from.Module)
	require.Len(t, from.Names, 2)
	assert.Equal(t, ast.ImportedName{Name: "helper", Alias: "h", Pos: from.Names[0].Pos}, from.Names[0])
	assert.Equal(t, "other", from.Names[1].Name)

	star := root.Children[3].Spec
	assert.Equal(t, "m", star.Module)
	require.Len(t, star.Names, 1)
	assert.Equal(t, "*", star.Names[0].Name)
}

func TestCookRelativeImport(t *testing.T) {
	mod := cookSrc(t, "from .sibling import x\n")
	require.Len(t, mod.Root.Children, 1)
	spec := mod.Root.Children[0].Spec
	assert.Equal(t, "sibling", spec.Module)
	assert.Equal(t, 1, spec.Dots)
	require.Len(t, spec.Names, 1)
	assert.Equal(t, "x", spec.Names[0].Name)

	mod = cookSrc(t, "from ..pkg.util import y\n")
	spec = mod.Root.Children[0].Spec
	assert.Equal(t, "pkg.util", spec.Module)
	assert.Equal(t, 2, spec.Dots)
}

func TestCookRelativeImportBareDot(t *testing.T) {
	mod := cookSrc(t, "from . import sibling\n")
	require.Len(t, mod.Root.Children, 1)
	spec := mod.Root.Children[0].Spec
	assert.Equal(t, "", spec.Module)
	assert.Equal(t, 1, spec.Dots)
	require.Len(t, spec.Names, 1)
	assert.Equal(t, "sibling", spec.Names[0].Name)
}

func TestCookAssignmentOrderAndAnnotation(t *testing.T) {
	mod := cookSrc(t, "x: int = y\n")
	assert.Equal(t, []string{"ref y", "bind x"}, outline(mod.Root), "RHS evaluates before the target binds")
	assert.Equal(t, "int", mod.Root.Children[1].TypeNote)
}

func TestCookAugmentedAssignment(t *testing.T) {
	mod := cookSrc(t, "x += 1\n")
	assert.Equal(t, []string{"ref x", "bind x"}, outline(mod.Root), "read before rebind")
}

func TestCookTupleUnpack(t *testing.T) {
	mod := cookSrc(t, "a, b = pair\n")
	assert.Equal(t, []string{"ref pair", "bind a", "bind b"}, outline(mod.Root))
}

func TestCookForLoop(t *testing.T) {
	mod := cookSrc(t, `
for item in items:
    use(item)
`)
	assert.Equal(t, []string{"ref items", "bind item", "ref use", "ref item"}, outline(mod.Root))
}

func TestCookWithAndExcept(t *testing.T) {
	mod := cookSrc(t, `
with open(path) as f:
    f

try:
    risky()
except ValueError as e:
    e
`)
	got := outline(mod.Root)
	assert.Contains(t, got, "bind f")
	assert.Contains(t, got, "bind e")
	assert.Contains(t, got, "ref risky")
	assert.Contains(t, got, "ref ValueError")
}

func TestCookComprehension(t *testing.T) {
	mod := cookSrc(t, "squares = [i * i for i in nums if i]\n")
	assert.Equal(t, []string{
		"comprehension",
		"  ref nums", // the iterable cooks before the loop variable binds
		"  bind i",
		"  ref i", // if clause
		"  ref i", // body, clause order puts it last
		"  ref i",
		"bind squares",
	}, outline(mod.Root))
}

func TestCookLambda(t *testing.T) {
	mod := cookSrc(t, "f = lambda v: v + 1\n")
	assert.Equal(t, []string{
		"function <lambda>",
		"  bind v",
		"  ref v",
		"bind f",
	}, outline(mod.Root))
}

func TestCookAttributeChains(t *testing.T) {
	mod := cookSrc(t, `
b.X
a.b.c.d
obj().field
`)
	got := outline(mod.Root)
	assert.Contains(t, got, "ref b.X")
	assert.Contains(t, got, "ref a.b.c.d")
	// A chain rooted in a call does not flatten; the callee still surfaces.
	assert.Contains(t, got, "ref obj")
	assert.NotContains(t, got, "ref obj().field")
}

func TestCookDecoratorsAndDefaults(t *testing.T) {
	mod := cookSrc(t, `
@register
def f(a, b=default, c: int = 0):
    pass
`)
	assert.Equal(t, []string{
		"ref register",
		"ref default",
		"ref int",
		"function f",
		"  bind a",
		"  bind b",
		"  bind c",
	}, outline(mod.Root))
	fn := mod.Root.Children[3]
	assert.Equal(t, "int", fn.Children[2].TypeNote)
}

func TestCookGlobalAndNonlocal(t *testing.T) {
	mod := cookSrc(t, `
def f():
    global counter, total
    counter = 1
`)
	assert.Equal(t, []string{
		"function f",
		"  global counter",
		"  global total",
		"  bind counter",
	}, outline(mod.Root))

	mod = cookSrc(t, `
def outer():
    x = 1
    def inner():
        nonlocal x
        x = 2
`)
	assert.Equal(t, []string{
		"function outer",
		"  bind x",
		"  function inner",
		"    nonlocal x",
		"    bind x",
	}, outline(mod.Root))
}

func TestCookFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mod.py")
	require.NoError(t, os.WriteFile(path, []byte("x = 1\n"), 0o644))

	mod, err := CookFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, path, mod.Path)
	assert.Equal(t, []string{"bind x"}, outline(mod.Root))

	_, err = CookFile(context.Background(), filepath.Join(dir, "absent.py"))
	assert.Error(t, err)
}

func TestCookPositions(t *testing.T) {
	mod := cookSrc(t, "first = 1\nsecond = first\n")
	require.Len(t, mod.Root.Children, 3)

	assert.Equal(t, ast.Position{Line: 0, Col: 0, EndLine: 0, EndCol: 5}, mod.Root.Children[0].Pos)
	ref := mod.Root.Children[1]
	assert.Equal(t, ast.KindRef, ref.Kind)
	assert.Equal(t, 1, ref.Pos.Line)
	assert.Equal(t, 9, ref.Pos.Col)
}

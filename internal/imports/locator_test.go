package imports

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("\n"), 0o644))
}

func TestLocateProbesRootsInOrder(t *testing.T) {
	project := t.TempDir()
	stubs := t.TempDir()
	writeFile(t, filepath.Join(project, "util.py"))
	writeFile(t, filepath.Join(stubs, "util.pyi"))
	writeFile(t, filepath.Join(stubs, "typing.pyi"))

	loc := NewLocator(project, stubs)

	// The project root shadows later roots entirely.
	tgt, ok := loc.Locate("util")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(project, "util.py"), tgt.Path)
	assert.Equal(t, "util", tgt.FQN)

	// A spec absent from the project root falls through to the next root.
	tgt, ok = loc.Locate("typing")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(stubs, "typing.pyi"), tgt.Path)

	_, ok = loc.Locate("missing")
	assert.False(t, ok)
}

func TestLocateSuffixPriority(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.py"))
	writeFile(t, filepath.Join(root, "a.pyi"))
	writeFile(t, filepath.Join(root, "b.pyi"))
	writeFile(t, filepath.Join(root, "pkg", "__init__.py"))
	writeFile(t, filepath.Join(root, "pkg", "mod.py"))

	loc := NewLocator(root)

	tgt, ok := loc.Locate("a")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "a.py"), tgt.Path, "source beats stub")

	tgt, ok = loc.Locate("b")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "b.pyi"), tgt.Path)

	tgt, ok = loc.Locate("pkg")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "pkg", "__init__.py"), tgt.Path)

	tgt, ok = loc.Locate("pkg.mod")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "pkg", "mod.py"), tgt.Path)
	assert.Equal(t, "pkg.mod", tgt.FQN)
}

func TestLocateEmptySpec(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "__init__.py"))

	// The empty spec must not locate the root's own __init__ under an
	// empty FQN.
	loc := NewLocator(root)
	_, ok := loc.Locate("")
	assert.False(t, ok)
}

func TestFQNForPath(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "pkg", "mod.py"))
	writeFile(t, filepath.Join(root, "pkg", "__init__.py"))

	loc := NewLocator(root)

	fqn, err := loc.FQNForPath(filepath.Join(root, "pkg", "mod.py"))
	require.NoError(t, err)
	assert.Equal(t, "pkg.mod", fqn)

	fqn, err = loc.FQNForPath(filepath.Join(root, "pkg", "__init__.py"))
	require.NoError(t, err)
	assert.Equal(t, "pkg", fqn, "__init__ names its package")

	// Outside every root the bare stem is used.
	fqn, err = loc.FQNForPath(filepath.Join(t.TempDir(), "loose.py"))
	require.NoError(t, err)
	assert.Equal(t, "loose", fqn)
}

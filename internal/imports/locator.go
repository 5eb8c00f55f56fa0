// Package imports maps raw import specifications to resolvable module paths
// and tracks per-module resolution state in a record arena. The arena is the
// mechanism that makes import cycles safe: a module observed in progress is
// read through a partial view instead of being re-entered.
package imports

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Target is a located module: the file that will be resolved and the FQN it
// resolves under.
type Target struct {
	Path string
	FQN  string
}

// Locator probes an ordered list of search roots for module files. The
// project root comes first, then the configured stub/library roots,
// lowest-priority last. The first root that yields an existing resolvable
// unit wins; later roots are not probed. This is a deterministic,
// order-sensitive policy, not a merge.
type Locator struct {
	roots []string
}

// NewLocator builds a Locator with projectRoot as the highest-priority root.
func NewLocator(projectRoot string, searchRoots ...string) *Locator {
	roots := make([]string, 0, len(searchRoots)+1)
	roots = append(roots, projectRoot)
	roots = append(roots, searchRoots...)
	return &Locator{roots: roots}
}

// suffixes are probed in order within a single candidate path. Source wins
// over declaration stubs, plain modules over packages.
var suffixes = []string{".py", ".pyi", string(filepath.Separator) + "__init__.py", string(filepath.Separator) + "__init__.pyi"}

// Locate maps a dotted module specification to a target file. Returns false
// when no root satisfies the spec; an unresolved import is reported by the
// caller, never fatal. The empty spec names no module and never locates:
// probing it would alias a root's own __init__ under an empty FQN.
func (l *Locator) Locate(spec string) (Target, bool) {
	if spec == "" {
		return Target{}, false
	}
	rel := filepath.FromSlash(strings.ReplaceAll(spec, ".", "/"))
	for _, root := range l.roots {
		base := filepath.Join(root, rel)
		for _, suffix := range suffixes {
			candidate := base + suffix
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return Target{Path: candidate, FQN: spec}, true
			}
		}
	}
	return Target{}, false
}

// FQNForPath derives the dotted FQN of a file submitted directly for
// resolution, relative to the first root that contains it. Files outside
// every root resolve under their bare stem.
func (l *Locator) FQNForPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("imports: absolute path for %s: %w", path, err)
	}
	for _, root := range l.roots {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(absRoot, abs)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		return fqnFromRel(rel), nil
	}
	return fqnFromRel(filepath.Base(abs)), nil
}

func fqnFromRel(rel string) string {
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) > 0 && parts[len(parts)-1] == "__init__" {
		parts = parts[:len(parts)-1]
	}
	return strings.Join(parts, ".")
}

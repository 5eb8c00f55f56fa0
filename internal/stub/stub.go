// Package stub builds the process-wide bootstrap symbol table from the
// embedded builtin declaration script. The table is computed at most once
// per process and shared read-only by every module resolution as the
// innermost fallback scope.
package stub

import (
	"context"
	"crypto/sha256"
	"embed"
	"fmt"
	"sync"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/object"

	"github.com/saidctb/pykythe/internal/symtab"
)

//go:embed stubs/*.risor
var stubsFS embed.FS

const builtinsScript = "stubs/builtins.risor"

var (
	once      sync.Once
	bootTable *symtab.SymbolTable
	bootHash  string
	bootErr   error
)

// Bootstrap evaluates the embedded declaration script and returns the
// bootstrap symbol table plus the hex hash of the declaration source. The
// work happens once per process; later calls return the shared table.
// A malformed or missing declaration source is fatal: every later
// resolution depends on this table existing, so there is no degraded mode.
func Bootstrap(ctx context.Context) (*symtab.SymbolTable, string, error) {
	once.Do(func() {
		src, err := stubsFS.ReadFile(builtinsScript)
		if err != nil {
			bootErr = fmt.Errorf("stub: read declarations: %w", err)
			return
		}
		bootHash = fmt.Sprintf("%x", sha256.Sum256(src))
		bootTable, bootErr = FromSource(ctx, string(src))
	})
	return bootTable, bootHash, bootErr
}

// FromSource evaluates a declaration script and converts its result into a
// symbol table. The script must evaluate to a list of maps with string
// "name", "fqn", and "kind" entries; insertion order follows list order.
func FromSource(ctx context.Context, src string) (*symtab.SymbolTable, error) {
	result, err := risor.Eval(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("stub: evaluate declarations: %w", err)
	}

	list, ok := result.(*object.List)
	if !ok {
		return nil, fmt.Errorf("stub: declarations evaluated to %s, want list", result.Type())
	}

	table := symtab.NewSymbolTable()
	for i, item := range list.Value() {
		m, ok := item.(*object.Map)
		if !ok {
			return nil, fmt.Errorf("stub: declaration %d is %s, want map", i, item.Type())
		}
		name, err := stringKey(m, "name", i)
		if err != nil {
			return nil, err
		}
		fqn, err := stringKey(m, "fqn", i)
		if err != nil {
			return nil, err
		}
		kind, err := stringKey(m, "kind", i)
		if err != nil {
			return nil, err
		}
		table.Insert(symtab.Binding{
			Name:    name,
			FQN:     fqn,
			TypeFQN: typeFQNForKind(kind),
		})
	}
	return table, nil
}

func stringKey(m *object.Map, key string, index int) (string, error) {
	val, found := m.Value()[key]
	if !found {
		return "", fmt.Errorf("stub: declaration %d missing %q", index, key)
	}
	s, ok := val.(*object.String)
	if !ok {
		return "", fmt.Errorf("stub: declaration %d: %q is %s, want string", index, key, val.Type())
	}
	if s.Value() == "" {
		return "", fmt.Errorf("stub: declaration %d: empty %q", index, key)
	}
	return s.Value(), nil
}

// typeFQNForKind maps a primitive-kind tag to the annotation reference
// recorded on the binding. Classes are instances of type, functions of
// function, and so on; unrecognized tags degrade to unknown rather than
// failing bootstrap.
func typeFQNForKind(kind string) string {
	switch kind {
	case "class":
		return "builtins.type"
	case "function":
		return "builtins.function"
	case "module":
		return "builtins.module"
	case "value":
		return "builtins.object"
	}
	return symtab.Unknown
}

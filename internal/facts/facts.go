// Package facts projects a module's resolution stream into the ordered,
// deduplicated abstract fact sequence consumed by the downstage serializer.
// Emission is a pure function of the resolver output: no I/O, no state
// across modules.
package facts

import (
	"fmt"
	"strings"

	"github.com/saidctb/pykythe/internal/ast"
	"github.com/saidctb/pykythe/internal/resolve"
	"github.com/saidctb/pykythe/internal/symtab"
)

// Kind is the fact predicate.
type Kind string

const (
	KindDefines    Kind = "defines"
	KindReferences Kind = "references"
	KindContains   Kind = "contains"
	KindImports    Kind = "imports"
)

// Fact is one abstract cross-reference fact. Which fields are set depends
// on Kind:
//
//	defines:    Scope, Name, FQN
//	references: Pos, FQN, Unresolved
//	contains:   Parent, Child
//	imports:    Module, Target, Unresolved
type Fact struct {
	Kind Kind `json:"kind"`

	Scope string `json:"scope,omitempty"`
	Name  string `json:"name,omitempty"`
	FQN   string `json:"fqn,omitempty"`

	Pos *ast.Position `json:"pos,omitempty"`

	Parent string `json:"parent,omitempty"`
	Child  string `json:"child,omitempty"`

	Module string `json:"module,omitempty"`
	Target string `json:"target,omitempty"`

	// Unresolved marks references and imports that degraded to the unknown
	// marker. They are surfaced, not omitted.
	Unresolved bool `json:"unresolved,omitempty"`
}

// key is the dedup identity of a fact.
func (f Fact) key() string {
	if f.Pos != nil {
		return fmt.Sprintf("%s|%s|%s|%s|%d:%d:%d:%d", f.Kind, f.Scope, f.Name, f.FQN,
			f.Pos.Line, f.Pos.Col, f.Pos.EndLine, f.Pos.EndCol)
	}
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s|%s", f.Kind, f.Scope, f.Name, f.FQN,
		f.Parent, f.Child, f.Module, f.Target)
}

// Emit converts one module's resolution output into its fact list. Order
// follows the resolution stream (traversal order), with import edges first
// and duplicates dropped on first-occurrence basis, so the sequence is
// deterministic for a fixed input.
func Emit(res *resolve.Result) []Fact {
	var out []Fact
	seen := make(map[string]bool)
	add := func(f Fact) {
		k := f.key()
		if seen[k] {
			return
		}
		seen[k] = true
		out = append(out, f)
	}

	for _, edge := range res.Imports {
		add(Fact{
			Kind:       KindImports,
			Module:     res.ModuleFQN,
			Target:     edge.Target,
			Unresolved: !edge.Resolved,
		})
	}

	for _, r := range res.Resolutions {
		switch r.Kind {
		case resolve.OccBinding:
			add(Fact{
				Kind:  KindDefines,
				Scope: r.Scope,
				Name:  r.Name,
				FQN:   r.FQN,
			})
			if strings.HasPrefix(r.FQN, r.Scope+".") {
				add(Fact{Kind: KindContains, Parent: r.Scope, Child: r.FQN})
			}
		case resolve.OccReference:
			pos := r.Pos
			add(Fact{
				Kind:       KindReferences,
				Pos:        &pos,
				FQN:        r.FQN,
				Unresolved: r.FQN == symtab.Unknown,
			})
		}
	}
	return out
}

// Package resolve implements the FQN resolver: a single depth-first walk
// over one module's cooked AST that assigns a fully-qualified name (or the
// unknown marker) to every binding and reference. Binding insertion and
// reference resolution are interleaved in traversal order — order within a
// scope is meaning-bearing, which is why a module's walk is strictly
// sequential.
package resolve

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/saidctb/pykythe/internal/ast"
	"github.com/saidctb/pykythe/internal/symtab"
)

// ImportView is what the import resolver hands back for one import edge:
// the target module's exported table (possibly a partial view of a cycle
// partner) and its retained member tables.
type ImportView struct {
	FQN     string
	Exports *symtab.SymbolTable
	Members map[string]*symtab.SymbolTable
	Partial bool
}

// Importer resolves a dotted module specification to its exported symbol
// table, recursively resolving the target on a cache miss. ok is false for
// an unresolved import, which degrades bindings to unknown rather than
// failing. err is reserved for hard faults that must abort the walk, such
// as a cache consistency fault.
type Importer interface {
	Resolve(ctx context.Context, spec string) (view ImportView, ok bool, err error)
}

// ExportSink receives the module's top-level bindings as the walk records
// them. The import registry uses this to expose partial views to cycle
// partners while the walk is still running.
type ExportSink interface {
	AddExport(symtab.Binding)
}

// OccurrenceKind distinguishes the two occurrence kinds a resolution is
// recorded for.
type OccurrenceKind uint8

const (
	OccBinding OccurrenceKind = iota
	OccReference
)

// Resolution is one (AST position → FQN) pair. Scope is the FQN of the
// enclosing scope, used for defines and contains facts.
type Resolution struct {
	Kind  OccurrenceKind
	Name  string
	FQN   string
	Scope string
	Pos   ast.Position
}

// ImportEdge records one import declaration. Target is the resolved module
// FQN, or the raw spec when Resolved is false.
type ImportEdge struct {
	Spec     string
	Target   string
	Resolved bool
	Pos      ast.Position
}

// Result is the finalized output for one module: its exported table, the
// retained scope tables of its definitions, and the ordered resolution
// stream the fact emitter projects.
type Result struct {
	ModuleFQN   string
	Exports     *symtab.SymbolTable
	Members     map[string]*symtab.SymbolTable
	Resolutions []Resolution
	Imports     []ImportEdge
}

// Resolver resolves one module at a time against the bootstrap table and an
// Importer. A Resolver is stateless across modules and safe for concurrent
// use by independent walks.
type Resolver struct {
	boot     *symtab.SymbolTable
	importer Importer
	log      hclog.Logger
}

func New(boot *symtab.SymbolTable, importer Importer, log hclog.Logger) *Resolver {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Resolver{boot: boot, importer: importer, log: log}
}

// ResolveModule walks the module's cooked AST and returns its Result. The
// returned error is either a structural AST fault (the module transitions
// to Failed, others continue) or a hard fault propagated from the Importer.
func (r *Resolver) ResolveModule(ctx context.Context, moduleFQN string, mod *ast.Module, sink ExportSink) (*Result, error) {
	if err := ast.Validate(mod.Root); err != nil {
		return nil, err
	}

	moduleScope := &symtab.Scope{Kind: symtab.ScopeModule, Table: symtab.NewSymbolTable()}
	w := &walker{
		r:           r,
		ctx:         ctx,
		moduleFQN:   moduleFQN,
		pkgFQN:      packageFQN(moduleFQN, mod.Path),
		stack:       symtab.NewStack(moduleScope),
		moduleScope: moduleScope,
		moduleViews: make(map[string]ImportView),
		members:     make(map[string]*symtab.SymbolTable),
		sink:        sink,
		res:         &Result{ModuleFQN: moduleFQN},
	}

	for _, c := range mod.Root.Children {
		if err := w.walk(c); err != nil {
			return nil, err
		}
	}

	w.res.Exports = moduleScope.Table
	w.res.Members = w.members
	return w.res, nil
}

// packageFQN derives the FQN of the package containing a module. A package's
// own __init__ module is a member of itself for relative-import purposes; any
// other module's package is its FQN with the last segment dropped.
func packageFQN(moduleFQN, path string) string {
	switch filepath.Base(path) {
	case "__init__.py", "__init__.pyi":
		return moduleFQN
	}
	if i := strings.LastIndex(moduleFQN, "."); i >= 0 {
		return moduleFQN[:i]
	}
	return ""
}

// walker is the per-module walk state. imported holds every import's view
// in declaration order: after the scope chain, references fall back to
// these tables, then to the bootstrap table.
type walker struct {
	r           *Resolver
	ctx         context.Context
	moduleFQN   string
	pkgFQN      string // package containing this module, "" at top level
	stack       *symtab.Stack
	moduleScope *symtab.Scope
	moduleViews map[string]ImportView // local dotted path or alias → view
	imported    []ImportView          // declaration order
	members     map[string]*symtab.SymbolTable
	sink        ExportSink
	res         *Result
}

func (w *walker) walk(n *ast.Node) error {
	switch n.Kind {
	case ast.KindClassDef, ast.KindFuncDef:
		return w.walkDefinition(n)
	case ast.KindComprehension:
		w.stack.Push(symtab.ScopeComprehension, "")
		err := w.walkChildren(n)
		w.stack.Pop()
		return err
	case ast.KindBind:
		w.walkBind(n)
		return nil
	case ast.KindRef:
		fqn := w.resolveDotted(n.Name)
		w.record(Resolution{
			Kind:  OccReference,
			Name:  n.Name,
			FQN:   fqn,
			Scope: w.stack.FQNPrefix(w.moduleFQN),
			Pos:   n.Pos,
		})
		return nil
	case ast.KindImport:
		return w.walkImport(n)
	case ast.KindGlobal:
		w.stack.Current().DeclareGlobal(n.Name)
		return nil
	case ast.KindNonlocal:
		w.stack.Current().DeclareNonlocal(n.Name)
		return nil
	default:
		return w.walkChildren(n)
	}
}

func (w *walker) walkChildren(n *ast.Node) error {
	for _, c := range n.Children {
		if err := w.walk(c); err != nil {
			return err
		}
	}
	return nil
}

// walkDefinition binds the class/function name in the enclosing scope, then
// walks the body inside a fresh scope. The popped scope's table is retained
// under the definition's FQN so later dotted references can look members up
// through it.
func (w *walker) walkDefinition(n *ast.Node) error {
	fqn := w.stack.MintFQN(w.moduleFQN, n.Name)
	w.bind(symtab.Binding{Name: n.Name, FQN: fqn, Pos: n.Pos})

	kind := symtab.ScopeKindFor(n.Kind)
	w.stack.Push(kind, n.Name)
	err := w.walkChildren(n)
	sc := w.stack.Pop()
	if err != nil {
		return err
	}
	w.members[fqn] = sc.Table
	return nil
}

// walkBind records an assignment target. Names declared global or nonlocal
// in the current scope rebind in their home scope instead of minting a local
// FQN here.
func (w *walker) walkBind(n *ast.Node) {
	scope, prefix := w.stack.BindScope(w.moduleFQN, n.Name)
	b := symtab.Binding{
		Name: n.Name,
		FQN:  prefix + "." + n.Name,
		Pos:  n.Pos,
	}
	if n.TypeNote != "" {
		b.TypeFQN = w.resolveAnnotation(n.TypeNote)
	}
	w.bindIn(scope, prefix, b)
}

// bind inserts into the current scope, records the defining occurrence, and
// mirrors top-level bindings to the export sink. The occurrence's scope is
// the lexical scope FQN, not a prefix of the binding's FQN: import aliases
// bind foreign FQNs into local scopes.
func (w *walker) bind(b symtab.Binding) {
	w.bindIn(w.stack.Current(), w.stack.FQNPrefix(w.moduleFQN), b)
}

func (w *walker) bindIn(scope *symtab.Scope, prefix string, b symtab.Binding) {
	scope.Table.Insert(b)
	if scope == w.moduleScope && w.sink != nil {
		w.sink.AddExport(b)
	}
	w.record(Resolution{
		Kind:  OccBinding,
		Name:  b.Name,
		FQN:   b.FQN,
		Scope: prefix,
		Pos:   b.Pos,
	})
}

func (w *walker) record(res Resolution) {
	w.res.Resolutions = append(w.res.Resolutions, res)
}

func (w *walker) walkImport(n *ast.Node) error {
	spec := n.Spec
	written := strings.Repeat(".", spec.Dots) + spec.Module

	target, absOK := w.absoluteSpec(spec)
	var view ImportView
	var ok bool
	if absOK {
		var err error
		view, ok, err = w.r.importer.Resolve(w.ctx, target)
		if err != nil {
			return err
		}
	}
	edgeTarget := view.FQN
	if !ok {
		edgeTarget = written
		if absOK {
			edgeTarget = target
		}
		w.r.log.Debug("unresolved import", "module", w.moduleFQN, "spec", written)
	}
	w.res.Imports = append(w.res.Imports, ImportEdge{
		Spec:     written,
		Target:   edgeTarget,
		Resolved: ok,
		Pos:      spec.Pos,
	})

	if len(spec.Names) == 0 {
		w.bindWholeModule(spec, view, ok)
		return nil
	}

	if ok {
		w.imported = append(w.imported, view)
	}
	for _, name := range spec.Names {
		if name.Name == "*" {
			// Star import: the view joins the fallback search list above;
			// no individual bindings are minted.
			continue
		}
		local := name.Alias
		if local == "" {
			local = name.Name
		}
		fqn := symtab.Unknown
		if ok && view.Exports != nil {
			if b, found := view.Exports.Lookup(name.Name); found {
				fqn = b.FQN
			}
		}
		if fqn == symtab.Unknown && ok {
			// A from-import name absent from the target's exports may be a
			// submodule of the target package, as in `from . import b`.
			sub, subOK, err := w.r.importer.Resolve(w.ctx, target+"."+name.Name)
			if err != nil {
				return err
			}
			if subOK {
				fqn = sub.FQN
				w.moduleViews[local] = sub
				w.imported = append(w.imported, sub)
			}
		}
		w.bind(symtab.Binding{Name: local, FQN: fqn, Pos: name.Pos})
	}
	return nil
}

// absoluteSpec rewrites an import specification into the absolute dotted
// module path to resolve. Relative specs resolve against the importing
// module's package: one dot names the package itself, each further dot one
// package above it. A relative spec that climbs past the top level cannot
// resolve; ok is false.
func (w *walker) absoluteSpec(spec *ast.ImportSpec) (string, bool) {
	if spec.Dots == 0 {
		return spec.Module, true
	}
	base := w.pkgFQN
	for i := 1; i < spec.Dots; i++ {
		j := strings.LastIndex(base, ".")
		if j < 0 {
			return "", false
		}
		base = base[:j]
	}
	if base == "" {
		return "", false
	}
	if spec.Module == "" {
		return base, true
	}
	return base + "." + spec.Module, true
}

// bindWholeModule handles `import m` and `import m as a`. Without an alias
// a dotted import binds its first segment, matching the source language;
// dotted references through the full path still resolve via the view
// registered under the as-written path.
func (w *walker) bindWholeModule(spec *ast.ImportSpec, view ImportView, ok bool) {
	if ok {
		key := spec.Alias
		if key == "" {
			key = spec.Module
		}
		w.moduleViews[key] = view
		w.imported = append(w.imported, view)
	}

	local := spec.Alias
	fqn := symtab.Unknown
	switch {
	case local != "":
		if ok {
			fqn = view.FQN
		}
	default:
		local = spec.Module
		if i := strings.Index(spec.Module, "."); i >= 0 {
			local = spec.Module[:i]
			if ok {
				fqn = local // the top package is itself a module FQN
			}
		} else if ok {
			fqn = view.FQN
		}
	}
	w.bind(symtab.Binding{Name: local, FQN: fqn, Pos: spec.Pos})
}

// resolveName looks a plain name up through the scope chain, then each
// imported module's table in import-declaration order, then the bootstrap
// table. The first match wins: local > import > bootstrap, always.
func (w *walker) resolveName(name string) (symtab.Binding, bool) {
	if b, ok := w.stack.Lookup(name); ok {
		return b, true
	}
	for _, view := range w.imported {
		if view.Exports == nil {
			continue
		}
		if b, ok := view.Exports.Lookup(name); ok {
			return b, true
		}
	}
	if b, ok := w.r.boot.Lookup(name); ok {
		return b, true
	}
	return symtab.Binding{}, false
}

// resolveDotted resolves a possibly dotted reference. The longest prefix
// matching an imported module path wins first; otherwise the head resolves
// through the normal chain and each remaining segment is looked up in the
// retained member table of the previous segment's definition. Any segment
// that cannot be followed degrades the whole reference to unknown.
func (w *walker) resolveDotted(name string) string {
	parts := strings.Split(name, ".")
	for i := len(parts); i >= 1; i-- {
		key := strings.Join(parts[:i], ".")
		if view, ok := w.moduleViews[key]; ok {
			return w.resolveThroughView(view, parts[i:])
		}
	}

	head, ok := w.resolveName(parts[0])
	if !ok {
		return symtab.Unknown
	}
	return w.resolveMembers(head.FQN, parts[1:])
}

func (w *walker) resolveThroughView(view ImportView, rest []string) string {
	if len(rest) == 0 {
		return view.FQN
	}
	if view.Exports == nil {
		return symtab.Unknown
	}
	b, ok := view.Exports.Lookup(rest[0])
	if !ok {
		return symtab.Unknown
	}
	return w.resolveMembersIn(b.FQN, rest[1:], view.Members)
}

func (w *walker) resolveMembers(fqn string, rest []string) string {
	return w.resolveMembersIn(fqn, rest, nil)
}

// resolveMembersIn follows member segments through retained scope tables:
// the local ones first, then the supplied imported set.
func (w *walker) resolveMembersIn(fqn string, rest []string, extern map[string]*symtab.SymbolTable) string {
	for _, seg := range rest {
		tbl, ok := w.members[fqn]
		if !ok && extern != nil {
			tbl, ok = extern[fqn]
		}
		if !ok {
			return symtab.Unknown
		}
		b, found := tbl.Lookup(seg)
		if !found {
			return symtab.Unknown
		}
		fqn = b.FQN
	}
	return fqn
}

// resolveAnnotation resolves a type-annotation expression by name when it is
// a plain dotted identifier; anything more structured is carried opaquely as
// unknown, per the engine's no-type-checking contract.
func (w *walker) resolveAnnotation(note string) string {
	if !isDottedIdent(note) {
		return symtab.Unknown
	}
	return w.resolveDotted(note)
}

func isDottedIdent(s string) bool {
	if s == "" {
		return false
	}
	for _, part := range strings.Split(s, ".") {
		if part == "" {
			return false
		}
		for i, r := range part {
			switch {
			case r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
			case r >= '0' && r <= '9':
				if i == 0 {
					return false
				}
			default:
				return false
			}
		}
	}
	return true
}

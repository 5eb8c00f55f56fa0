// Package pycook cooks tree-sitter Python parse trees into the engine's
// scope-annotated AST. It keeps exactly what name resolution needs — scope
// introducers, binding targets, references, import specifications — in
// source order, and drops everything else.
package pycook

import (
	"context"
	"fmt"
	"os"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/saidctb/pykythe/internal/ast"
)

// CookFile reads and cooks one Python source file.
func CookFile(ctx context.Context, path string) (*ast.Module, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pycook: read %s: %w", path, err)
	}
	return Cook(ctx, path, src)
}

// Cook parses src with tree-sitter and cooks the resulting tree.
func Cook(ctx context.Context, path string, src []byte) (*ast.Module, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("pycook: parse %s: %w", path, err)
	}
	defer tree.Close()

	c := &cooker{src: src}
	root := &ast.Node{Kind: ast.KindModule, Pos: c.pos(tree.RootNode())}
	c.cookChildren(tree.RootNode(), root)
	return &ast.Module{Path: path, Root: root}, nil
}

type cooker struct {
	src []byte
}

func (c *cooker) pos(n *sitter.Node) ast.Position {
	start, end := n.StartPoint(), n.EndPoint()
	return ast.Position{
		Line:    int(start.Row),
		Col:     int(start.Column),
		EndLine: int(end.Row),
		EndCol:  int(end.Column),
	}
}

func (c *cooker) text(n *sitter.Node) string {
	return n.Content(c.src)
}

func (c *cooker) cookChildren(n *sitter.Node, parent *ast.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c.cook(n.NamedChild(i), parent)
	}
}

// cook dispatches on the tree-sitter node type, appending cooked nodes to
// parent in source order. Unhandled constructs descend generically so the
// identifiers inside them still surface as references.
func (c *cooker) cook(n *sitter.Node, parent *ast.Node) {
	switch n.Type() {
	case "comment", "string", "integer", "float", "true", "false", "none", "ellipsis":
		return

	case "class_definition":
		c.cookClass(n, parent)
	case "function_definition":
		c.cookFunction(n, parent)
	case "decorated_definition":
		// Decorator expressions first (they evaluate before the binding),
		// then the wrapped definition.
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			if child.Type() == "decorator" {
				c.cookChildren(child, parent)
			}
		}
		if def := n.ChildByFieldName("definition"); def != nil {
			c.cook(def, parent)
		}
	case "lambda":
		c.cookLambda(n, parent)

	case "assignment":
		c.cookAssignment(n, parent)
	case "augmented_assignment":
		// Read-then-write: the target is a reference before it rebinds.
		if left := n.ChildByFieldName("left"); left != nil {
			c.cookExpr(left, parent)
			c.cookTarget(left, parent, "")
		}
		if right := n.ChildByFieldName("right"); right != nil {
			c.cookExpr(right, parent)
		}
	case "named_expression":
		if value := n.ChildByFieldName("value"); value != nil {
			c.cookExpr(value, parent)
		}
		if name := n.ChildByFieldName("name"); name != nil {
			c.cookTarget(name, parent, "")
		}

	case "import_statement":
		c.cookImport(n, parent)
	case "import_from_statement":
		c.cookImportFrom(n, parent)

	case "for_statement":
		if right := n.ChildByFieldName("right"); right != nil {
			c.cookExpr(right, parent)
		}
		if left := n.ChildByFieldName("left"); left != nil {
			c.cookTarget(left, parent, "")
		}
		if body := n.ChildByFieldName("body"); body != nil {
			c.cookChildren(body, parent)
		}
		if alt := n.ChildByFieldName("alternative"); alt != nil {
			c.cookChildren(alt, parent)
		}
	case "with_statement":
		c.cookChildren(n, parent)
	case "with_item":
		if value := n.ChildByFieldName("value"); value != nil {
			c.cook(value, parent)
		}
	case "as_pattern":
		if int(n.NamedChildCount()) > 0 {
			c.cookExpr(n.NamedChild(0), parent)
		}
		if alias := n.ChildByFieldName("alias"); alias != nil {
			c.cookTarget(alias, parent, "")
		}
	case "except_clause":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			if child.Type() == "identifier" {
				c.cookTarget(child, parent, "")
				continue
			}
			c.cook(child, parent)
		}

	case "list_comprehension", "set_comprehension", "dictionary_comprehension", "generator_expression":
		c.cookComprehension(n, parent)

	case "identifier", "attribute":
		c.cookExpr(n, parent)

	case "global_statement", "nonlocal_statement":
		kind := ast.KindGlobal
		if n.Type() == "nonlocal_statement" {
			kind = ast.KindNonlocal
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			id := n.NamedChild(i)
			if id.Type() != "identifier" {
				continue
			}
			parent.Children = append(parent.Children, &ast.Node{
				Kind: kind,
				Name: c.text(id),
				Pos:  c.pos(id),
			})
		}

	default:
		c.cookChildren(n, parent)
	}
}

// cookExpr cooks an expression context: identifiers and flattenable
// attribute chains become references, everything else descends.
func (c *cooker) cookExpr(n *sitter.Node, parent *ast.Node) {
	switch n.Type() {
	case "identifier":
		parent.Children = append(parent.Children, &ast.Node{
			Kind: ast.KindRef,
			Name: c.text(n),
			Pos:  c.pos(n),
		})
	case "attribute":
		if dotted, ok := c.flattenAttr(n); ok {
			parent.Children = append(parent.Children, &ast.Node{
				Kind: ast.KindRef,
				Name: dotted,
				Pos:  c.pos(n),
			})
			return
		}
		if obj := n.ChildByFieldName("object"); obj != nil {
			c.cookExpr(obj, parent)
		}
	default:
		c.cook(n, parent)
	}
}

// flattenAttr turns a pure identifier attribute chain ("a.b.c") into its
// dotted spelling. Chains rooted in calls or subscripts do not flatten.
func (c *cooker) flattenAttr(n *sitter.Node) (string, bool) {
	attr := n.ChildByFieldName("attribute")
	obj := n.ChildByFieldName("object")
	if attr == nil || obj == nil {
		return "", false
	}
	switch obj.Type() {
	case "identifier":
		return c.text(obj) + "." + c.text(attr), true
	case "attribute":
		prefix, ok := c.flattenAttr(obj)
		if !ok {
			return "", false
		}
		return prefix + "." + c.text(attr), true
	}
	return "", false
}

// cookTarget cooks a binding target. Identifiers bind; tuple and list
// patterns recurse; attribute and subscript targets are not bindings in the
// enclosing scope, so they surface as references only.
func (c *cooker) cookTarget(n *sitter.Node, parent *ast.Node, typeNote string) {
	switch n.Type() {
	case "identifier":
		parent.Children = append(parent.Children, &ast.Node{
			Kind:     ast.KindBind,
			Name:     c.text(n),
			Pos:      c.pos(n),
			TypeNote: typeNote,
		})
	case "tuple_pattern", "list_pattern", "pattern_list", "tuple", "expression_list", "as_pattern_target":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c.cookTarget(n.NamedChild(i), parent, "")
		}
	case "list_splat_pattern", "dictionary_splat_pattern":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c.cookTarget(n.NamedChild(i), parent, "")
		}
	default:
		c.cookExpr(n, parent)
	}
}

func (c *cooker) cookAssignment(n *sitter.Node, parent *ast.Node) {
	typeNote := ""
	if typ := n.ChildByFieldName("type"); typ != nil {
		typeNote = c.text(typ)
	}
	// Right-hand side evaluates first.
	if right := n.ChildByFieldName("right"); right != nil {
		c.cookExpr(right, parent)
	}
	if left := n.ChildByFieldName("left"); left != nil {
		c.cookTarget(left, parent, typeNote)
	}
}

func (c *cooker) cookClass(n *sitter.Node, parent *ast.Node) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return
	}
	// Superclass expressions resolve in the enclosing scope.
	if supers := n.ChildByFieldName("superclasses"); supers != nil {
		for i := 0; i < int(supers.NamedChildCount()); i++ {
			c.cookExpr(supers.NamedChild(i), parent)
		}
	}
	class := &ast.Node{Kind: ast.KindClassDef, Name: c.text(name), Pos: c.pos(n)}
	if body := n.ChildByFieldName("body"); body != nil {
		c.cookChildren(body, class)
	}
	parent.Children = append(parent.Children, class)
}

func (c *cooker) cookFunction(n *sitter.Node, parent *ast.Node) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return
	}
	// The return annotation resolves in the enclosing scope.
	if ret := n.ChildByFieldName("return_type"); ret != nil {
		c.cookExpr(ret, parent)
	}
	fn := &ast.Node{Kind: ast.KindFuncDef, Name: c.text(name), Pos: c.pos(n)}
	if params := n.ChildByFieldName("parameters"); params != nil {
		c.cookParameters(params, fn, parent)
	}
	if body := n.ChildByFieldName("body"); body != nil {
		c.cookChildren(body, fn)
	}
	parent.Children = append(parent.Children, fn)
}

func (c *cooker) cookLambda(n *sitter.Node, parent *ast.Node) {
	fn := &ast.Node{Kind: ast.KindFuncDef, Name: "<lambda>", Pos: c.pos(n)}
	if params := n.ChildByFieldName("parameters"); params != nil {
		c.cookParameters(params, fn, parent)
	}
	if body := n.ChildByFieldName("body"); body != nil {
		c.cookExpr(body, fn)
	}
	parent.Children = append(parent.Children, fn)
}

// cookParameters binds each parameter inside the function scope. Default
// values and annotations resolve in the enclosing scope, so they cook into
// enclosing, not fn.
func (c *cooker) cookParameters(params *sitter.Node, fn, enclosing *ast.Node) {
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		switch p.Type() {
		case "identifier":
			c.cookTarget(p, fn, "")
		case "typed_parameter":
			typeNote := ""
			if typ := p.ChildByFieldName("type"); typ != nil {
				typeNote = c.text(typ)
				c.cookExpr(typ, enclosing)
			}
			if int(p.NamedChildCount()) > 0 {
				c.cookTarget(p.NamedChild(0), fn, typeNote)
			}
		case "default_parameter", "typed_default_parameter":
			if value := p.ChildByFieldName("value"); value != nil {
				c.cookExpr(value, enclosing)
			}
			typeNote := ""
			if typ := p.ChildByFieldName("type"); typ != nil {
				typeNote = c.text(typ)
				c.cookExpr(typ, enclosing)
			}
			if name := p.ChildByFieldName("name"); name != nil {
				c.cookTarget(name, fn, typeNote)
			}
		case "list_splat_pattern", "dictionary_splat_pattern":
			for j := 0; j < int(p.NamedChildCount()); j++ {
				c.cookTarget(p.NamedChild(j), fn, "")
			}
		}
	}
}

// cookComprehension opens a comprehension scope: for-in clauses bind there,
// iterables and the body cook in clause order. The first iterable actually
// evaluates in the enclosing scope in the source language; the resolver's
// interleaved walk gives the same observable resolution because the clause
// cooks before any comprehension-local binding it could shadow.
func (c *cooker) cookComprehension(n *sitter.Node, parent *ast.Node) {
	comp := &ast.Node{Kind: ast.KindComprehension, Pos: c.pos(n)}
	var bodies []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "for_in_clause":
			if right := child.ChildByFieldName("right"); right != nil {
				c.cookExpr(right, comp)
			}
			if left := child.ChildByFieldName("left"); left != nil {
				c.cookTarget(left, comp, "")
			}
		case "if_clause":
			c.cookChildren(child, comp)
		default:
			bodies = append(bodies, child)
		}
	}
	for _, body := range bodies {
		c.cookExpr(body, comp)
	}
	parent.Children = append(parent.Children, comp)
}

func (c *cooker) cookImport(n *sitter.Node, parent *ast.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "dotted_name":
			parent.Children = append(parent.Children, &ast.Node{
				Kind: ast.KindImport,
				Pos:  c.pos(child),
				Spec: &ast.ImportSpec{Module: c.text(child), Pos: c.pos(child)},
			})
		case "aliased_import":
			name := child.ChildByFieldName("name")
			alias := child.ChildByFieldName("alias")
			if name == nil {
				continue
			}
			spec := &ast.ImportSpec{Module: c.text(name), Pos: c.pos(child)}
			if alias != nil {
				spec.Alias = c.text(alias)
			}
			parent.Children = append(parent.Children, &ast.Node{
				Kind: ast.KindImport,
				Pos:  c.pos(child),
				Spec: spec,
			})
		}
	}
}

func (c *cooker) cookImportFrom(n *sitter.Node, parent *ast.Node) {
	moduleName := n.ChildByFieldName("module_name")
	if moduleName == nil {
		return
	}
	written := c.text(moduleName)
	trimmed := strings.TrimLeft(written, ".")
	spec := &ast.ImportSpec{
		Module: trimmed,
		Dots:   len(written) - len(trimmed),
		Pos:    c.pos(n),
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child == moduleName {
			continue
		}
		switch child.Type() {
		case "dotted_name", "identifier":
			spec.Names = append(spec.Names, ast.ImportedName{
				Name: c.text(child),
				Pos:  c.pos(child),
			})
		case "aliased_import":
			name := child.ChildByFieldName("name")
			alias := child.ChildByFieldName("alias")
			if name == nil {
				continue
			}
			imported := ast.ImportedName{Name: c.text(name), Pos: c.pos(child)}
			if alias != nil {
				imported.Alias = c.text(alias)
			}
			spec.Names = append(spec.Names, imported)
		case "wildcard_import":
			spec.Names = append(spec.Names, ast.ImportedName{Name: "*", Pos: c.pos(child)})
		}
	}
	parent.Children = append(parent.Children, &ast.Node{
		Kind: ast.KindImport,
		Pos:  c.pos(n),
		Spec: spec,
	})
}

// Package ast defines the cooked AST consumed by the resolver: a parsed,
// scope-annotated tree where every node carries its kind and source position.
// The pycook front end produces these trees from Python source; callers with
// their own parser may construct them directly.
package ast

import "fmt"

// NodeKind tags a cooked AST node. Scope-introducing kinds (Module, ClassDef,
// FuncDef, Comprehension) push a lexical scope; Bind and Ref are the two
// occurrence kinds the resolver assigns FQNs to.
type NodeKind uint8

const (
	KindModule NodeKind = iota
	KindClassDef
	KindFuncDef
	KindComprehension
	KindBind
	KindRef
	KindImport
	KindGlobal   // one declared name of a global statement
	KindNonlocal // one declared name of a nonlocal statement
	KindBlock    // plain statement/expression container, introduces no scope
)

var kindNames = [...]string{
	KindModule:        "module",
	KindClassDef:      "class",
	KindFuncDef:       "function",
	KindComprehension: "comprehension",
	KindBind:          "bind",
	KindRef:           "ref",
	KindImport:        "import",
	KindGlobal:        "global",
	KindNonlocal:      "nonlocal",
	KindBlock:         "block",
}

func (k NodeKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// ScopeIntroducer reports whether nodes of this kind open a new lexical scope.
func (k NodeKind) ScopeIntroducer() bool {
	switch k {
	case KindModule, KindClassDef, KindFuncDef, KindComprehension:
		return true
	}
	return false
}

// Position is a half-open source range. Lines and columns are zero-based,
// matching tree-sitter points.
type Position struct {
	Line    int `json:"line"`
	Col     int `json:"col"`
	EndLine int `json:"end_line"`
	EndCol  int `json:"end_col"`
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// Less orders positions by (Line, Col, EndLine, EndCol). Used for
// deterministic fact ordering.
func (p Position) Less(q Position) bool {
	if p.Line != q.Line {
		return p.Line < q.Line
	}
	if p.Col != q.Col {
		return p.Col < q.Col
	}
	if p.EndLine != q.EndLine {
		return p.EndLine < q.EndLine
	}
	return p.EndCol < q.EndCol
}

// ImportedName is one entry of a from-import symbol list. Name "*" denotes a
// star import.
type ImportedName struct {
	Name  string
	Alias string // "" means no alias
	Pos   Position
}

// ImportSpec is the raw import specification carried by a KindImport node.
// Either a whole-module import (Names empty) or a from-import (Names set).
// Dots is the number of leading dots on a relative from-import: one for the
// importing module's own package, one more per package level above it. Zero
// means an absolute import. Module excludes the dots, so "from ..b import f"
// cooks to Dots 2, Module "b", and "from . import b" to Dots 1, Module "".
type ImportSpec struct {
	Module string // dotted module path as written, without leading dots
	Alias  string // alias for whole-module imports, "" if none
	Dots   int    // leading-dot count for relative imports
	Names  []ImportedName
	Pos    Position
}

// Node is one cooked AST node. Name is the local identifier for Bind/Ref
// nodes and the declared name for ClassDef/FuncDef (pycook uses "<lambda>"
// for anonymous functions). Ref names may be dotted ("b.X") when the front
// end flattened an attribute chain. TypeNote carries the opaque annotation
// expression attached to a binding, "" if none.
type Node struct {
	Kind     NodeKind
	Name     string
	Pos      Position
	Spec     *ImportSpec // KindImport only
	TypeNote string      // KindBind only
	Children []*Node
}

// Module is one resolvable compilation unit: a cooked tree plus the path it
// was cooked from. The module's FQN is assigned by the import locator, not
// by the front end.
type Module struct {
	Path string
	Root *Node
}

// StructuralError reports a cooked AST that violates the node-kind contract.
// It is fatal for the offending module only.
type StructuralError struct {
	Pos    Position
	Reason string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("ast: structural fault at %s: %s", e.Pos, e.Reason)
}

// Validate checks the node-kind contract over the whole tree: the root must
// be a Module, named scope introducers and occurrences must carry names, and
// import nodes must carry a spec. Returns a *StructuralError on the first
// violation.
func Validate(root *Node) error {
	if root == nil {
		return &StructuralError{Reason: "nil root"}
	}
	if root.Kind != KindModule {
		return &StructuralError{Pos: root.Pos, Reason: fmt.Sprintf("root is %s, want module", root.Kind)}
	}
	return validateNode(root, true)
}

func validateNode(n *Node, isRoot bool) error {
	switch n.Kind {
	case KindModule:
		if !isRoot {
			return &StructuralError{Pos: n.Pos, Reason: "nested module node"}
		}
	case KindClassDef, KindFuncDef:
		if n.Name == "" {
			return &StructuralError{Pos: n.Pos, Reason: fmt.Sprintf("unnamed %s", n.Kind)}
		}
	case KindBind, KindRef:
		if n.Name == "" {
			return &StructuralError{Pos: n.Pos, Reason: fmt.Sprintf("unnamed %s occurrence", n.Kind)}
		}
	case KindImport:
		if n.Spec == nil || n.Spec.Module == "" && n.Spec.Dots == 0 && len(n.Spec.Names) == 0 {
			return &StructuralError{Pos: n.Pos, Reason: "import node without spec"}
		}
	case KindGlobal, KindNonlocal:
		if n.Name == "" {
			return &StructuralError{Pos: n.Pos, Reason: fmt.Sprintf("unnamed %s declaration", n.Kind)}
		}
	case KindComprehension, KindBlock:
		// no constraints
	default:
		return &StructuralError{Pos: n.Pos, Reason: fmt.Sprintf("unknown node kind %d", n.Kind)}
	}
	for _, c := range n.Children {
		if c == nil {
			return &StructuralError{Pos: n.Pos, Reason: "nil child"}
		}
		if err := validateNode(c, false); err != nil {
			return err
		}
	}
	return nil
}

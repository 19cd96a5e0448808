package semantic

import "github.com/xiaobogaga/moonc/compiler/internal/ast"

// Typer infers expression types inside one function. Only literals, variable references, calls
// and homogeneous arithmetic are typed. Anything else yields "", meaning unknown.
type Typer struct {
	tree   *ast.Tree
	global *Scope
	fn     *FunctionEntry
}

func NewTyper(tree *ast.Tree, global *Scope, fn *FunctionEntry) *Typer {
	return &Typer{tree: tree, global: global, fn: fn}
}

// Lookup resolves a plain identifier: locals and params first, then data members of the enclosing
// class and its ancestors.
func (t *Typer) Lookup(name string) (Variable, bool) {
	if t.fn == nil {
		return Variable{}, false
	}
	if v, ok := t.fn.Scope.Variable(name); ok {
		return v, true
	}
	if t.fn.ParentClass != "" {
		if data, _ := t.global.Member(t.fn.ParentClass, name); data != nil {
			return data.Variable, true
		}
	}
	return Variable{}, false
}

func (t *Typer) TypeOf(node ast.NodeID) string {
	if node == ast.NoNode {
		return ""
	}
	switch t.tree.Label(node) {
	case "EXPR", "ARITHEXPR", "PLUS", "MINUS":
		if children := t.tree.Children(node); len(children) == 1 {
			return t.TypeOf(children[0])
		}
	case "RELEXPR", "NOT":
		return IntegerType
	case "INTLIT":
		return IntegerType
	case "FLOATLIT":
		return FloatType
	case "ADDOP", "MULTOP":
		left, right := t.TypeOf(t.tree.Child(node, 0)), t.TypeOf(t.tree.Child(node, 2))
		if left == right {
			return left
		}
	case "VARIABLE":
		v, ok := t.Lookup(t.tree.Lexeme(t.tree.Child(node, 0)))
		if !ok {
			return ""
		}
		return t.indexed(v, node)
	case "FUNCCALL":
		name := t.tree.Lexeme(t.tree.Child(node, 0))
		var candidates []*FunctionEntry
		if t.fn != nil && t.fn.ParentClass != "" {
			candidates = t.global.Method(t.fn.ParentClass, name)
		}
		if len(candidates) == 0 {
			candidates = t.global.Functions(name)
		}
		return returnType(candidates)
	case "DOT":
		return t.member(t.TypeOf(t.tree.Child(node, 0)), t.tree.Child(node, 1))
	}
	return ""
}

// indexed is the type of a reference to v with the indices under node. A partly indexed array
// has no scalar type.
func (t *Typer) indexed(v Variable, node ast.NodeID) string {
	indices := 0
	if indice := t.tree.Child(node, 1); indice != ast.NoNode {
		indices = len(t.tree.Children(indice))
	}
	if indices != len(v.Dims) {
		return ""
	}
	return v.Type
}

func (t *Typer) member(class string, node ast.NodeID) string {
	if class == "" || IsPrimitive(class) || node == ast.NoNode {
		return ""
	}
	name := t.tree.Lexeme(t.tree.Child(node, 0))
	switch t.tree.Label(node) {
	case "VARIABLE":
		if data, _ := t.global.Member(class, name); data != nil {
			return t.indexed(data.Variable, node)
		}
	case "FUNCCALL":
		return returnType(t.global.Method(class, name))
	}
	return ""
}

func returnType(candidates []*FunctionEntry) string {
	if len(candidates) == 0 {
		return ""
	}
	ret := candidates[0].ReturnType
	for _, fn := range candidates[1:] {
		if fn.ReturnType != ret {
			return ""
		}
	}
	return ret
}

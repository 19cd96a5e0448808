package semantic

import (
	"strings"

	"github.com/xiaobogaga/moonc/compiler/internal/ast"
	"github.com/xiaobogaga/moonc/compiler/internal/diag"
)

const (
	GlobalScope = "global"
	// FreeVisibility is the visibility shown for free functions.
	FreeVisibility = "public"
)

// Result is the output of the symbol table pass. Functions maps every FUNCDEF node whose body was
// attached to a declared function onto that function.
type Result struct {
	Global      *Scope
	Functions   map[ast.NodeID]*FunctionEntry
	Diagnostics *diag.List
}

type builder struct {
	tree    *ast.Tree
	result  *Result
	diags   *diag.List
	pending []func()
}

// Build walks the tree once and fills the scope tree. Problems are recorded as diagnostics and the
// walk always continues. Checks that need the whole program run after the walk.
func Build(tree *ast.Tree) *Result {
	b := &builder{
		tree:  tree,
		diags: &diag.List{},
	}
	b.result = &Result{
		Global:      NewScope(GlobalScope, nil, nil),
		Functions:   map[ast.NodeID]*FunctionEntry{},
		Diagnostics: b.diags,
	}
	if tree.Root != ast.NoNode {
		b.visitProg(tree.Root)
	}
	b.finish()
	return b.result
}

func (b *builder) visitProg(node ast.NodeID) {
	for _, child := range b.tree.Children(node) {
		switch b.tree.Label(child) {
		case "STRUCT":
			b.visitStruct(child)
		case "IMPLDEF":
			b.visitImpl(child)
		case "FUNCDEF":
			b.visitFreeFunction(child)
		}
	}
}

func (b *builder) lexeme(node ast.NodeID) string {
	if node == ast.NoNode || b.tree.Token(node) == nil {
		return ""
	}
	return b.tree.Lexeme(node)
}

func (b *builder) visitStruct(node ast.NodeID) {
	name := b.lexeme(b.tree.Child(node, 0))
	line := b.tree.Line(node)
	var inherits []string
	if list := b.tree.Child(node, 1); list != ast.NoNode {
		for _, base := range b.tree.Children(list) {
			if base := b.lexeme(base); base != "" {
				inherits = append(inherits, base)
			}
		}
	}
	global := b.result.Global
	class := global.Class(name)
	if class != nil {
		b.diags.Errorf(line, "Multiply declared class: %s", name)
	} else {
		class = NewClass(name, line, inherits, global)
		global.Add(class)
	}
	decls := b.tree.Child(node, 2)
	if decls == ast.NoNode {
		return
	}
	for _, decl := range b.tree.Children(decls) {
		switch b.tree.Label(decl) {
		case "STRUCTVARDECL":
			b.visitDataMember(decl, class)
		case "STRUCTFUNCHEAD":
			b.visitMemberHead(decl, class)
		}
	}
}

func (b *builder) variable(typeNode, dims ast.NodeID) Variable {
	v := Variable{Type: b.lexeme(typeNode)}
	if dims == ast.NoNode {
		return v
	}
	// EMPTY carries no token, so it reads as "".
	for _, dim := range b.tree.Children(dims) {
		v.Dims = append(v.Dims, b.lexeme(dim))
	}
	return v
}

func (b *builder) visitDataMember(node ast.NodeID, class *ClassEntry) {
	visibility := b.lexeme(b.tree.Child(node, 0))
	idNode := b.tree.Child(node, 1)
	name := b.lexeme(idNode)
	line := b.tree.Line(idNode)
	if class.Scope.Data(name) != nil {
		b.diags.Errorf(line, "Multiply declared identifier in class: %s", name)
		return
	}
	v := b.variable(b.tree.Child(node, 2), b.tree.Child(node, 3))
	class.Scope.Add(NewData(name, line, v, visibility))
	b.checkType(v.Type, line)
}

// function builds a FunctionEntry from a head whose children start at the id node. A head that lost
// its name during error recovery yields nil.
func (b *builder) function(idNode, params, ret ast.NodeID, parentClass, visibility string, parent *Scope) *FunctionEntry {
	name := b.lexeme(idNode)
	if name == "" {
		return nil
	}
	line := b.tree.Line(idNode)
	fn := NewFunction(name, line, parentClass, visibility, b.lexeme(ret), parent)
	if params == ast.NoNode {
		return fn
	}
	for _, param := range b.tree.Children(params) {
		if b.tree.Label(param) != "FPARAM" {
			continue
		}
		paramID := b.tree.Child(param, 0)
		paramName := b.lexeme(paramID)
		paramLine := b.tree.Line(paramID)
		if _, ok := fn.Scope.Variable(paramName); ok {
			b.diags.Errorf(paramLine, "Multiply declared parameter in function: %s", paramName)
			continue
		}
		v := b.variable(b.tree.Child(param, 1), b.tree.Child(param, 2))
		fn.Params = append(fn.Params, v)
		fn.Scope.Add(NewParam(paramName, paramLine, v))
		b.checkType(v.Type, paramLine)
	}
	if fn.ReturnType != VoidType {
		b.checkType(fn.ReturnType, line)
	}
	return fn
}

// checkType reports a class type that is never declared. It runs once the whole program is known.
func (b *builder) checkType(typ string, line int) {
	if typ == "" || IsPrimitive(typ) {
		return
	}
	b.pending = append(b.pending, func() {
		if b.result.Global.Class(typ) == nil {
			b.diags.Errorf(line, "Undeclared class type: %s", typ)
		}
	})
}

func (b *builder) visitMemberHead(node ast.NodeID, class *ClassEntry) {
	visibility := b.lexeme(b.tree.Child(node, 0))
	fn := b.function(b.tree.Child(node, 1), b.tree.Child(node, 2), b.tree.Child(node, 3), class.Name(), visibility, class.Scope)
	if fn == nil {
		return
	}
	b.addFunction(class.Scope, fn, "member")
}

// addFunction registers fn unless an existing function has the same name and parameters.
func (b *builder) addFunction(scope *Scope, fn *FunctionEntry, what string) bool {
	existing := scope.Functions(fn.Name())
	for _, other := range existing {
		if other.SameParams(fn) {
			if what == "member" {
				b.diags.Errorf(fn.Line(), "Multiply declared member function: %s", fn.Name())
			} else {
				b.diags.Errorf(fn.Line(), "Multiply defined free function: %s", fn.Name())
			}
			return false
		}
	}
	if len(existing) > 0 {
		b.diags.Warnf(fn.Line(), "Overloaded %s function: %s", what, fn.Name())
	}
	scope.Add(fn)
	return true
}

func (b *builder) visitImpl(node ast.NodeID) {
	idNode := b.tree.Child(node, 0)
	name := b.lexeme(idNode)
	class := b.result.Global.Class(name)
	if class == nil {
		b.diags.Errorf(b.tree.Line(idNode), "Undeclared class definition: %s", name)
		return
	}
	list := b.tree.Child(node, 1)
	if list == ast.NoNode {
		return
	}
	for _, def := range b.tree.Children(list) {
		if b.tree.Label(def) != "FUNCDEF" {
			continue
		}
		head := b.tree.Child(def, 0)
		if head == ast.NoNode {
			continue
		}
		provided := b.function(b.tree.Child(head, 0), b.tree.Child(head, 1), b.tree.Child(head, 2), name, "", class.Scope)
		if provided == nil {
			continue
		}
		fn := b.matchMember(class, provided)
		if fn == nil {
			b.diags.Errorf(provided.Line(), "Undeclared member function definition: %s", provided.Name())
			continue
		}
		if fn.Defined {
			b.diags.Errorf(provided.Line(), "Multiply defined member function: %s", provided.Name())
			continue
		}
		fn.Defined = true
		b.result.Functions[def] = fn
		b.visitBody(b.tree.Child(def, 1), fn)
	}
}

// matchMember picks the declaration a provided body belongs to: same name and parameters first,
// then the first undefined declaration with that name, then any declaration with that name.
func (b *builder) matchMember(class *ClassEntry, provided *FunctionEntry) *FunctionEntry {
	candidates := class.Scope.Functions(provided.Name())
	for _, fn := range candidates {
		if fn.SameParams(provided) {
			return fn
		}
	}
	for _, fn := range candidates {
		if !fn.Defined {
			return fn
		}
	}
	if len(candidates) > 0 {
		return candidates[0]
	}
	return nil
}

func (b *builder) visitFreeFunction(node ast.NodeID) {
	head := b.tree.Child(node, 0)
	if head == ast.NoNode {
		return
	}
	global := b.result.Global
	fn := b.function(b.tree.Child(head, 0), b.tree.Child(head, 1), b.tree.Child(head, 2), "", FreeVisibility, global)
	if fn == nil {
		return
	}
	fn.Defined = true
	if b.addFunction(global, fn, "free") {
		b.result.Functions[node] = fn
	}
	// A rejected duplicate still has its body checked against its own scope.
	b.visitBody(b.tree.Child(node, 1), fn)
}

func (b *builder) visitBody(body ast.NodeID, fn *FunctionEntry) {
	if body == ast.NoNode {
		return
	}
	for _, child := range b.tree.Children(body) {
		switch b.tree.Label(child) {
		case "VARDECL":
			b.visitLocal(child, fn)
		default:
			b.visitStatement(child, fn)
		}
	}
}

func (b *builder) visitLocal(node ast.NodeID, fn *FunctionEntry) {
	idNode := b.tree.Child(node, 0)
	name := b.lexeme(idNode)
	line := b.tree.Line(idNode)
	if _, ok := fn.Scope.Variable(name); ok {
		b.diags.Errorf(line, "Multiply declared identifier in function: %s", name)
		return
	}
	v := b.variable(b.tree.Child(node, 1), b.tree.Child(node, 2))
	fn.Scope.Add(NewLocal(name, line, v))
	b.checkType(v.Type, line)
	if fn.ParentClass == "" {
		return
	}
	class := fn.ParentClass
	b.pending = append(b.pending, func() {
		if data, _ := b.result.Global.Member(class, name); data != nil {
			b.diags.Warnf(line, "Shadowed inherited data member: %s", name)
		}
	})
}

// visitStatement looks for return statements, descending into nested blocks.
func (b *builder) visitStatement(node ast.NodeID, fn *FunctionEntry) {
	switch b.tree.Label(node) {
	case "RETURN":
		b.checkReturn(node, fn)
	case "IF", "WHILE", "STATBLOCK":
		for _, child := range b.tree.Children(node) {
			b.visitStatement(child, fn)
		}
	}
}

func (b *builder) checkReturn(node ast.NodeID, fn *FunctionEntry) {
	line := b.tree.Line(node)
	if fn.ReturnType == VoidType {
		b.diags.Errorf(line, "Type error in return statement: function %s returns void", fn.Name())
		return
	}
	expr := b.tree.Child(node, 0)
	b.pending = append(b.pending, func() {
		typ := NewTyper(b.tree, b.result.Global, fn).TypeOf(expr)
		if typ != "" && typ != fn.ReturnType {
			b.diags.Errorf(line, "Type error in return statement: expected %s, found %s", fn.ReturnType, typ)
		}
	})
}

// finish runs the checks that need every declaration.
func (b *builder) finish() {
	global := b.result.Global
	for _, class := range global.Classes() {
		for _, base := range class.Inherits {
			if global.Class(base) == nil {
				b.diags.Errorf(class.Line(), "Undeclared base class: %s", base)
			}
		}
	}
	for _, cycle := range Cycles(global) {
		first := global.Class(cycle[0])
		b.diags.Errorf(first.Line(), "Circular class dependency: %s", strings.Join(cycle, " -> "))
	}
	for _, class := range global.Classes() {
		ancestors := global.Ancestors(class.Name())
		for _, e := range class.Scope.Entries() {
			switch v := e.(type) {
			case *FunctionEntry:
				for _, ancestor := range ancestors {
					if len(ancestor.Scope.Functions(v.Name())) > 0 {
						b.diags.Warnf(v.Line(), "Overridden inherited member function: %s", v.Name())
						break
					}
				}
			case *DataEntry:
				for _, ancestor := range ancestors {
					if ancestor.Scope.Data(v.Name()) != nil {
						b.diags.Warnf(v.Line(), "Shadowed inherited data member: %s", v.Name())
						break
					}
				}
			}
		}
	}
	for _, check := range b.pending {
		check()
	}
	for _, class := range global.Classes() {
		for _, fn := range class.Scope.Functions("") {
			if !fn.Defined {
				b.diags.Errorf(fn.Line(), "Undefined member function declaration: %s", fn.QualifiedName())
			}
		}
	}
}

// Cycles returns every inheritance cycle once, each starting at its first declared class and ending
// where it started.
func Cycles(global *Scope) [][]string {
	const (
		unvisited = iota
		visiting
		done
	)
	state := map[string]int{}
	var ret [][]string
	var path []string
	var visit func(name string)
	visit = func(name string) {
		class := global.Class(name)
		if class == nil {
			return
		}
		state[name] = visiting
		path = append(path, name)
		for _, base := range class.Inherits {
			switch state[base] {
			case unvisited:
				visit(base)
			case visiting:
				start := 0
				for i, p := range path {
					if p == base {
						start = i
						break
					}
				}
				cycle := append(append([]string{}, path[start:]...), base)
				ret = append(ret, cycle)
			}
		}
		path = path[:len(path)-1]
		state[name] = done
	}
	for _, class := range global.Classes() {
		if state[class.Name()] == unvisited {
			visit(class.Name())
		}
	}
	return ret
}

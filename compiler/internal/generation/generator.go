package generation

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/xiaobogaga/moonc/compiler/internal/allocation"
	"github.com/xiaobogaga/moonc/compiler/internal/ast"
	"github.com/xiaobogaga/moonc/compiler/internal/diag"
	"github.com/xiaobogaga/moonc/compiler/internal/semantic"
	"github.com/xiaobogaga/moonc/moon"
)

const (
	DefaultEntry = "main"
	newline      = "nl"
)

type Options struct {
	// Entry is the free function the program starts in.
	Entry  string
	Layout allocation.Layout
}

type Result struct {
	Assembly    string
	Diagnostics *diag.List
}

// location is where a value lives: a labelled cell, a constant byte displacement and an optional
// temp cell holding a runtime byte offset. A location without a name reads as zero.
type location struct {
	name   string
	disp   int
	offset string
}

func (l location) indexed() bool {
	return l.disp != 0 || l.offset != ""
}

// generator lowers one program. All counters and the register pool live here.
type generator struct {
	tree   *ast.Tree
	global *semantic.Scope
	bound  map[ast.NodeID]*semantic.FunctionEntry
	opts   Options
	diags  *diag.List
	pool   *registerPool
	text   bytes.Buffer
	data   bytes.Buffer
	used   map[string]bool
	tempID int
	// labelID numbers branch labels.
	labelID int
	labels  map[*semantic.FunctionEntry]string
	storage map[*semantic.FunctionEntry]map[string]string
	returns map[*semantic.FunctionEntry]string
	links   map[*semantic.FunctionEntry]string
	selves  map[string]string
	entry   *semantic.FunctionEntry
	fn      *semantic.FunctionEntry
	typer   *semantic.Typer
	calls   []callEdge
	err     error
}

// callEdge is one lowered call, kept to find recursion once every body is known.
type callEdge struct {
	from, to *semantic.FunctionEntry
	line     int
}

// Generate lowers a checked and sized program to Moon assembly: the text section first, then the
// data section. Constructs the target cannot express are reported as UNSUPPORTED diagnostics. The
// error is only set when the generator itself breaks an invariant.
func Generate(tree *ast.Tree, sem *semantic.Result, opts Options) (*Result, error) {
	if opts.Entry == "" {
		opts.Entry = DefaultEntry
	}
	if opts.Layout == "" {
		opts.Layout = allocation.InheritedFirst
	}
	g := &generator{
		tree:    tree,
		global:  sem.Global,
		bound:   sem.Functions,
		opts:    opts,
		diags:   &diag.List{},
		pool:    newRegisterPool(),
		used:    map[string]bool{newline: true},
		labels:  map[*semantic.FunctionEntry]string{},
		storage: map[*semantic.FunctionEntry]map[string]string{},
		returns: map[*semantic.FunctionEntry]string{},
		links:   map[*semantic.FunctionEntry]string{},
		selves:  map[string]string{},
	}
	defs := g.functionDefs()
	g.prepare(defs)
	for _, def := range defs {
		g.function(def)
	}
	g.reportRecursion()
	if g.err != nil {
		return nil, g.err
	}
	return &Result{Assembly: g.text.String() + g.data.String(), Diagnostics: g.diags}, nil
}

// functionDefs lists the bound FUNCDEF nodes in source order, impl bodies included.
func (g *generator) functionDefs() []ast.NodeID {
	var defs []ast.NodeID
	if g.tree.Root == ast.NoNode {
		return defs
	}
	for _, child := range g.tree.Children(g.tree.Root) {
		switch g.tree.Label(child) {
		case "FUNCDEF":
			if g.bound[child] != nil {
				defs = append(defs, child)
			}
		case "IMPLDEF":
			list := g.tree.Child(child, 1)
			if list == ast.NoNode {
				continue
			}
			for _, def := range g.tree.Children(list) {
				if g.bound[def] != nil {
					defs = append(defs, def)
				}
			}
		}
	}
	return defs
}

// prepare names every function and reserves its static storage, so calls can be lowered before
// the callee's body.
func (g *generator) prepare(defs []ast.NodeID) {
	for _, def := range defs {
		fn := g.bound[def]
		g.labels[fn] = g.unique(strings.Replace(fn.QualifiedName(), "::", "_", 1))
		if g.entry == nil && fn.ParentClass == "" && fn.Name() == g.opts.Entry {
			g.entry = fn
		}
	}
	if g.entry == nil {
		g.diags.Errorf(0, "Missing entry function: %s", g.opts.Entry)
	}
	g.dataLine(newline, "db 13, 10, 0")
	g.dataLine("", "align")
	for _, def := range defs {
		fn := g.bound[def]
		label := g.labels[fn]
		if fn.ParentClass != "" {
			g.selfArea(fn.ParentClass)
		}
		if fn != g.entry {
			g.links[fn] = g.reserve(label+"_link", semantic.WordSize)
		}
		if fn.ReturnType != semantic.VoidType {
			size := allocation.Size(g.global, semantic.Variable{Type: fn.ReturnType})
			if size == 0 {
				size = semantic.WordSize
			}
			g.returns[fn] = g.reserve(label+"_ret", size)
		}
		cells := map[string]string{}
		for _, e := range fn.Scope.Entries() {
			var v semantic.Variable
			switch e := e.(type) {
			case *semantic.ParamEntry:
				v = e.Variable
			case *semantic.LocalEntry:
				v = e.Variable
			default:
				continue
			}
			// By-reference arrays get no storage.
			if size := allocation.Size(g.global, v); size > 0 {
				cells[e.Name()] = g.reserve(label+"_"+e.Name(), size)
			} else {
				cells[e.Name()] = ""
			}
		}
		g.storage[fn] = cells
	}
}

func (g *generator) unique(base string) string {
	name := base
	for i := 1; g.used[name] || moon.Reserved(name); i++ {
		name = fmt.Sprintf("%s_%d", base, i)
	}
	g.used[name] = true
	return name
}

func (g *generator) reserve(base string, size int) string {
	name := g.unique(base)
	g.dataLine(name, fmt.Sprintf("res %d", size))
	return name
}

func (g *generator) temp() string {
	return g.tempBlock(semantic.WordSize)
}

func (g *generator) tempBlock(size int) string {
	for {
		g.tempID++
		name := fmt.Sprintf("t%d", g.tempID)
		if g.used[name] {
			continue
		}
		g.used[name] = true
		g.dataLine(name, fmt.Sprintf("res %d", size))
		return name
	}
}

func (g *generator) newLabel() string {
	for {
		g.labelID++
		name := fmt.Sprintf("L%d", g.labelID)
		if !g.used[name] {
			g.used[name] = true
			return name
		}
	}
}

// selfArea is the static cell methods of class run against.
func (g *generator) selfArea(class string) string {
	if name, ok := g.selves[class]; ok {
		return name
	}
	name := g.reserve(class+"_self", allocation.ElementSize(g.global, class))
	g.selves[class] = name
	return name
}

func (g *generator) emit(format string, args ...interface{}) {
	g.emitAt("", format, args...)
}

func (g *generator) emitAt(label, format string, args ...interface{}) {
	fmt.Fprintf(&g.text, "%-7s %s\n", label, fmt.Sprintf(format, args...))
}

func (g *generator) comment(format string, args ...interface{}) {
	fmt.Fprintf(&g.text, "%-7s %% %s\n", "", fmt.Sprintf(format, args...))
}

func (g *generator) dataLine(label, directive string) {
	fmt.Fprintf(&g.data, "%-7s %s\n", label, directive)
}

func (g *generator) get() string {
	r, err := g.pool.get()
	if err != nil && g.err == nil {
		g.err = err
	}
	return r
}

func (g *generator) put(r string) {
	if r != Zero {
		g.pool.put(r)
	}
}

// balanced fails the generation when lowering node leaked or double freed a register.
func (g *generator) balanced(node ast.NodeID, before []string) {
	if g.err == nil && !g.pool.same(before) {
		g.err = errors.Errorf("generation: register pool unbalanced after %s on line %d (%d free, %d before)",
			g.tree.Label(node), g.tree.Line(node), g.pool.size(), len(before))
	}
}

func (g *generator) function(def ast.NodeID) {
	fn := g.bound[def]
	g.fn = fn
	g.typer = semantic.NewTyper(g.tree, g.global, fn)
	label := g.labels[fn]
	g.comment("function %s", fn.QualifiedName())
	if fn == g.entry {
		g.emit("entry")
		g.emitAt(label, "nop")
	} else {
		g.emitAt(label, "sw %s(r0), %s", g.links[fn], Link)
	}
	if body := g.tree.Child(def, 1); body != ast.NoNode {
		for _, child := range g.tree.Children(body) {
			if g.tree.Label(child) != "VARDECL" {
				g.statement(child)
			}
		}
	}
	g.epilogue()
}

func (g *generator) epilogue() {
	if g.fn == g.entry {
		g.emit("hlt")
		return
	}
	g.emit("lw %s, %s(r0)", Link, g.links[g.fn])
	g.emit("jr %s", Link)
}

func (g *generator) statement(node ast.NodeID) {
	defer g.balanced(node, g.pool.snapshot())
	line := g.tree.Line(node)
	switch g.tree.Label(node) {
	case "ASSIGNSTAT":
		lhs, rhs := g.tree.Child(node, 0), g.tree.Child(node, 1)
		dst := g.expr(lhs)
		src := g.expr(rhs)
		if size, object := g.objectSize(lhs); object {
			g.copyBlock(dst, src, size)
			return
		}
		r := g.get()
		g.load(src, r)
		g.store(dst, r)
		g.put(r)
	case "READ":
		target := g.tree.Child(node, 0)
		dst := g.expr(target)
		if g.typer.TypeOf(target) == semantic.FloatType {
			g.diags.Unsupportedf(line, "float input")
		}
		g.emit("jl %s, getint", Link)
		g.store(dst, Helper)
	case "WRITE":
		value := g.tree.Child(node, 0)
		src := g.expr(value)
		if g.typer.TypeOf(value) == semantic.FloatType {
			g.diags.Unsupportedf(line, "float output")
		}
		g.load(src, Helper)
		g.emit("jl %s, putint", Link)
		g.emit("addi %s, r0, %s", Helper, newline)
		g.emit("jl %s, putstr", Link)
	case "IF":
		cond := g.expr(g.tree.Child(node, 0))
		r := g.get()
		g.load(cond, r)
		otherwise, end := g.newLabel(), g.newLabel()
		g.emit("bz %s, %s", r, otherwise)
		g.put(r)
		g.block(g.tree.Child(node, 1))
		g.emit("j %s", end)
		g.emitAt(otherwise, "nop")
		g.block(g.tree.Child(node, 2))
		g.emitAt(end, "nop")
	case "WHILE":
		start, end := g.newLabel(), g.newLabel()
		g.emitAt(start, "nop")
		cond := g.expr(g.tree.Child(node, 0))
		r := g.get()
		g.load(cond, r)
		g.emit("bz %s, %s", r, end)
		g.put(r)
		g.block(g.tree.Child(node, 1))
		g.emit("j %s", start)
		g.emitAt(end, "nop")
	case "RETURN":
		ret := g.fn.ReturnType
		if ret == semantic.VoidType {
			return
		}
		if !semantic.IsPrimitive(ret) {
			g.diags.Unsupportedf(line, "object-valued return")
			return
		}
		src := g.expr(g.tree.Child(node, 0))
		r := g.get()
		g.load(src, r)
		g.emit("sw %s(r0), %s", g.returns[g.fn], r)
		g.put(r)
		g.epilogue()
	case "FUNCCALL", "DOT":
		g.expr(node)
	}
}

func (g *generator) block(node ast.NodeID) {
	if node == ast.NoNode {
		return
	}
	for _, child := range g.tree.Children(node) {
		g.statement(child)
	}
}

// objectSize reports whether node refers to a whole object and its byte size.
func (g *generator) objectSize(node ast.NodeID) (int, bool) {
	typ := g.typer.TypeOf(node)
	if typ == "" || semantic.IsPrimitive(typ) {
		return 0, false
	}
	return allocation.ElementSize(g.global, typ), true
}

// base puts the byte offset of loc into reg.
func (g *generator) base(loc location, reg string) {
	if loc.offset == "" {
		g.emit("addi %s, r0, %d", reg, loc.disp)
		return
	}
	g.emit("lw %s, %s(r0)", reg, loc.offset)
	if loc.disp != 0 {
		g.emit("addi %s, %s, %d", reg, reg, loc.disp)
	}
}

func (g *generator) load(loc location, reg string) {
	switch {
	case loc.name == "":
		g.emit("addi %s, r0, 0", reg)
	case !loc.indexed():
		g.emit("lw %s, %s(r0)", reg, loc.name)
	default:
		g.base(loc, reg)
		g.emit("lw %s, %s(%s)", reg, loc.name, reg)
	}
}

func (g *generator) store(loc location, reg string) {
	switch {
	case loc.name == "":
	case !loc.indexed():
		g.emit("sw %s(r0), %s", loc.name, reg)
	default:
		idx := g.get()
		g.base(loc, idx)
		g.emit("sw %s(%s), %s", loc.name, idx, reg)
		g.put(idx)
	}
}

// copyBlock copies size bytes word by word from src to dst.
func (g *generator) copyBlock(dst, src location, size int) {
	if size <= 0 || src.name == "" || dst.name == "" {
		return
	}
	if size == semantic.WordSize {
		r := g.get()
		g.load(src, r)
		g.store(dst, r)
		g.put(r)
		return
	}
	i, v, a := g.get(), g.get(), g.get()
	srcIndex, dstIndex := i, i
	var srcBase, dstBase string
	if src.indexed() {
		srcBase = g.get()
		g.base(src, srcBase)
		srcIndex = a
	}
	if dst.indexed() {
		dstBase = g.get()
		g.base(dst, dstBase)
		dstIndex = a
	}
	loop, end := g.newLabel(), g.newLabel()
	g.emit("addi %s, r0, 0", i)
	g.emitAt(loop, "clti %s, %s, %d", a, i, size)
	g.emit("bz %s, %s", a, end)
	if srcBase != "" {
		g.emit("add %s, %s, %s", a, i, srcBase)
	}
	g.emit("lw %s, %s(%s)", v, src.name, srcIndex)
	if dstBase != "" {
		g.emit("add %s, %s, %s", a, i, dstBase)
	}
	g.emit("sw %s(%s), %s", dst.name, dstIndex, v)
	g.emit("addi %s, %s, %d", i, i, semantic.WordSize)
	g.emit("j %s", loop)
	g.emitAt(end, "nop")
	if dstBase != "" {
		g.put(dstBase)
	}
	if srcBase != "" {
		g.put(srcBase)
	}
	g.put(a)
	g.put(v)
	g.put(i)
}

func (g *generator) expr(node ast.NodeID) location {
	defer g.balanced(node, g.pool.snapshot())
	line := g.tree.Line(node)
	switch label := g.tree.Label(node); label {
	case "EXPR", "ARITHEXPR", "PLUS":
		return g.expr(g.tree.Child(node, 0))
	case "INTLIT":
		return g.intLiteral(node, false)
	case "FLOATLIT":
		return g.floatLiteral(node, false)
	case "MINUS":
		return g.negate(node)
	case "NOT":
		src := g.expr(g.tree.Child(node, 0))
		r := g.get()
		g.load(src, r)
		g.emit("ceq %s, %s, r0", r, r)
		t := g.temp()
		g.emit("sw %s(r0), %s", t, r)
		g.put(r)
		return location{name: t}
	case "RELEXPR":
		if g.floating(node) {
			g.diags.Unsupportedf(line, "float comparison")
		}
		return g.binary(node)
	case "ADDOP", "MULTOP":
		if g.floating(node) {
			g.diags.Unsupportedf(line, "float arithmetic")
		}
		return g.binary(node)
	case "VARIABLE":
		base, v := g.resolve(g.tree.Lexeme(g.tree.Child(node, 0)), line)
		return g.index(base, v, g.tree.Child(node, 1), line)
	case "DOT":
		return g.dot(node)
	case "FUNCCALL":
		return g.call(node)
	default:
		g.diags.Unsupportedf(line, "expression %s", label)
		return location{name: g.temp()}
	}
}

// floating reports whether either operand of a binary node is a float.
func (g *generator) floating(node ast.NodeID) bool {
	return g.typer.TypeOf(g.tree.Child(node, 0)) == semantic.FloatType ||
		g.typer.TypeOf(g.tree.Child(node, 2)) == semantic.FloatType
}

var operations = map[string][]string{
	"PLUS":  {"add %[1]s, %[1]s, %[2]s"},
	"MINUS": {"sub %[1]s, %[1]s, %[2]s"},
	"MULT":  {"mul %[1]s, %[1]s, %[2]s"},
	"DIV":   {"div %[1]s, %[1]s, %[2]s"},
	"OR":    {"or %[1]s, %[1]s, %[2]s", "cne %[1]s, %[1]s, r0"},
	"AND":   {"cne %[1]s, %[1]s, r0", "cne %[2]s, %[2]s, r0", "and %[1]s, %[1]s, %[2]s"},
	"EQ":    {"ceq %[1]s, %[1]s, %[2]s"},
	"NOTEQ": {"cne %[1]s, %[1]s, %[2]s"},
	"LT":    {"clt %[1]s, %[1]s, %[2]s"},
	"GT":    {"cgt %[1]s, %[1]s, %[2]s"},
	"LEQ":   {"cle %[1]s, %[1]s, %[2]s"},
	"GEQ":   {"cge %[1]s, %[1]s, %[2]s"},
}

func (g *generator) binary(node ast.NodeID) location {
	left := g.expr(g.tree.Child(node, 0))
	right := g.expr(g.tree.Child(node, 2))
	op := g.tree.Label(g.tree.Child(node, 1))
	a, b := g.get(), g.get()
	g.load(left, a)
	g.load(right, b)
	codes, ok := operations[op]
	if !ok {
		g.diags.Unsupportedf(g.tree.Line(node), "operator %s", op)
	}
	for _, code := range codes {
		g.emit(code, a, b)
	}
	t := g.temp()
	g.emit("sw %s(r0), %s", t, a)
	g.put(b)
	g.put(a)
	return location{name: t}
}

func (g *generator) negate(node ast.NodeID) location {
	operand := g.tree.Child(node, 0)
	switch g.tree.Label(operand) {
	case "INTLIT":
		return g.intLiteral(operand, true)
	case "FLOATLIT":
		return g.floatLiteral(operand, true)
	}
	src := g.expr(operand)
	if g.typer.TypeOf(operand) == semantic.FloatType {
		g.diags.Unsupportedf(g.tree.Line(node), "float arithmetic")
	}
	r := g.get()
	g.load(src, r)
	g.emit("sub %s, r0, %s", r, r)
	t := g.temp()
	g.emit("sw %s(r0), %s", t, r)
	g.put(r)
	return location{name: t}
}

func (g *generator) intLiteral(node ast.NodeID, negative bool) location {
	lexeme := g.tree.Lexeme(node)
	v, err := strconv.ParseInt(lexeme, 10, 64)
	if negative {
		v = -v
	}
	if err != nil || v < math.MinInt32 || v > math.MaxInt32 {
		g.diags.Unsupportedf(g.tree.Line(node), "integer literal out of range: %s", lexeme)
	}
	return g.literal(int32(v))
}

// floatLiteral stores the IEEE single precision bits of the literal.
func (g *generator) floatLiteral(node ast.NodeID, negative bool) location {
	f, _ := strconv.ParseFloat(g.tree.Lexeme(node), 32)
	if negative {
		f = -f
	}
	return g.literal(int32(math.Float32bits(float32(f))))
}

func (g *generator) literal(v int32) location {
	t := g.temp()
	r := g.get()
	g.materialize(r, v)
	g.emit("sw %s(r0), %s", t, r)
	g.put(r)
	return location{name: t}
}

// materialize loads v into r. Immediates are 16 bits wide, so larger values are built from their
// high and low halves.
func (g *generator) materialize(r string, v int32) {
	if v >= math.MinInt16 && v <= math.MaxInt16 {
		g.emit("addi %s, r0, %d", r, v)
		return
	}
	hi, lo := v>>16, v&0xffff
	g.emit("addi %s, r0, %d", r, hi)
	g.emit("sl %s, 16", r)
	if lo != 0 {
		g.emit("ori %s, %s, %d", r, r, lo)
	}
}

// resolve finds the storage of a plain identifier: a local or param first, then a data member of
// the method's class held in the class's self area.
func (g *generator) resolve(name string, line int) (location, semantic.Variable) {
	if v, ok := g.fn.Scope.Variable(name); ok {
		cell := g.storage[g.fn][name]
		if cell == "" {
			g.diags.Unsupportedf(line, "by-reference array parameter: %s", name)
			return location{name: g.temp()}, semantic.Variable{Type: v.Type}
		}
		return location{name: cell}, v
	}
	if class := g.fn.ParentClass; class != "" {
		if data, owner := g.global.Member(class, name); data != nil {
			loc := location{name: g.selfArea(class)}
			loc.disp = g.memberOffset(class, owner, data, line)
			return loc, data.Variable
		}
	}
	g.diags.Unsupportedf(line, "undeclared variable: %s", name)
	return location{name: g.temp()}, semantic.Variable{Type: semantic.IntegerType}
}

// memberOffset is the byte offset of data, declared by owner, inside an object of class.
func (g *generator) memberOffset(class string, owner *semantic.ClassEntry, data *semantic.DataEntry, line int) int {
	if owner.Name() == class {
		return data.MemOffset
	}
	off, ok := g.baseOffset(class, owner.Name())
	if !ok {
		g.diags.Unsupportedf(line, "inherited member %s needs the %s layout", data.Name(), allocation.InheritedFirst)
		return data.MemOffset
	}
	return off + data.MemOffset
}

// baseOffset is where the target base sub-object starts inside derived.
func (g *generator) baseOffset(derived, target string) (int, bool) {
	if derived == target {
		return 0, true
	}
	if g.opts.Layout != allocation.InheritedFirst {
		return 0, false
	}
	return g.baseOffsetIn(derived, target, map[string]bool{})
}

func (g *generator) baseOffsetIn(derived, target string, seen map[string]bool) (int, bool) {
	if seen[derived] {
		return 0, false
	}
	seen[derived] = true
	class := g.global.Class(derived)
	if class == nil {
		return 0, false
	}
	acc := 0
	for _, base := range class.Inherits {
		if base == target {
			return acc, true
		}
		if off, ok := g.baseOffsetIn(base, target, seen); ok {
			return acc + off, true
		}
		acc += allocation.ElementSize(g.global, base)
	}
	return 0, false
}

// constantIndex returns the value of an index that is a bare integer literal.
func (g *generator) constantIndex(node ast.NodeID) (int, bool) {
	for g.tree.Label(node) == "ARITHEXPR" && len(g.tree.Children(node)) == 1 {
		node = g.tree.Child(node, 0)
	}
	if g.tree.Label(node) != "INTLIT" {
		return 0, false
	}
	n, err := strconv.Atoi(g.tree.Lexeme(node))
	return n, err == nil
}

// index adds the row-major offset of the indices under indice to loc. Literal indices fold into the
// displacement; the others are scaled by element size and stride at run time.
func (g *generator) index(loc location, v semantic.Variable, indice ast.NodeID, line int) location {
	if indice == ast.NoNode {
		return loc
	}
	indices := g.tree.Children(indice)
	if len(indices) == 0 {
		return loc
	}
	if len(indices) > len(v.Dims) {
		g.diags.Unsupportedf(line, "too many indices: %d for %s", len(indices), v)
		indices = indices[:len(v.Dims)]
	}
	strides := allocation.Strides(v)
	elem := allocation.ElementSize(g.global, v.Type)
	type term struct {
		loc    location
		stride int
	}
	var terms []term
	for i, idx := range indices {
		if n, ok := g.constantIndex(idx); ok {
			loc.disp += n * elem * strides[i]
			continue
		}
		terms = append(terms, term{loc: g.expr(idx), stride: strides[i]})
	}
	if len(terms) == 0 {
		return loc
	}
	acc, r := g.get(), g.get()
	if loc.offset != "" {
		g.emit("lw %s, %s(r0)", acc, loc.offset)
	} else {
		g.emit("addi %s, r0, 0", acc)
	}
	for _, term := range terms {
		g.load(term.loc, r)
		g.emit("muli %s, %s, %d", r, r, elem)
		g.emit("muli %s, %s, %d", r, r, term.stride)
		g.emit("add %s, %s, %s", acc, acc, r)
	}
	t := g.temp()
	g.emit("sw %s(r0), %s", t, acc)
	g.put(r)
	g.put(acc)
	loc.offset = t
	return loc
}

func (g *generator) dot(node ast.NodeID) location {
	left, right := g.tree.Child(node, 0), g.tree.Child(node, 1)
	line := g.tree.Line(right)
	class := g.typer.TypeOf(left)
	name := g.tree.Lexeme(g.tree.Child(right, 0))
	switch g.tree.Label(right) {
	case "FUNCCALL":
		obj := g.expr(left)
		return g.invoke(obj, class, g.global.Method(class, name), right)
	case "VARIABLE":
		obj := g.expr(left)
		data, owner := g.global.Member(class, name)
		if data == nil {
			g.diags.Unsupportedf(line, "unknown member: %s", name)
			return location{name: g.temp()}
		}
		obj.disp += g.memberOffset(class, owner, data, line)
		return g.index(obj, data.Variable, g.tree.Child(right, 1), line)
	}
	g.diags.Unsupportedf(line, "member access %s", g.tree.Label(right))
	return location{name: g.temp()}
}

// call lowers f(...). Inside a method a sibling method wins over a free function.
func (g *generator) call(node ast.NodeID) location {
	name := g.tree.Lexeme(g.tree.Child(node, 0))
	if class := g.fn.ParentClass; class != "" {
		if methods := g.global.Method(class, name); len(methods) > 0 {
			return g.invoke(location{name: g.selfArea(class)}, class, methods, node)
		}
	}
	return g.invoke(location{}, "", g.global.Functions(name), node)
}

// pick chooses the overload whose parameter count matches and whose parameter types match the
// known argument types, falling back to the first one with the right count.
func (g *generator) pick(candidates []*semantic.FunctionEntry, args []ast.NodeID) *semantic.FunctionEntry {
	var fallback *semantic.FunctionEntry
	for _, fn := range candidates {
		if len(fn.Params) != len(args) {
			continue
		}
		if fallback == nil {
			fallback = fn
		}
		match := true
		for i, param := range fn.Params {
			typ := g.typer.TypeOf(args[i])
			if typ != "" && !param.IsArray() && typ != param.Type {
				match = false
				break
			}
		}
		if match {
			return fn
		}
	}
	return fallback
}

// invoke evaluates the arguments, copies them into the callee's parameter cells and jumps. A method
// runs against its class's self area: the object is copied in before the call and back after it,
// and the previous self area content is restored.
func (g *generator) invoke(obj location, class string, candidates []*semantic.FunctionEntry, node ast.NodeID) location {
	line := g.tree.Line(node)
	name := g.tree.Lexeme(g.tree.Child(node, 0))
	var args []ast.NodeID
	if params := g.tree.Child(node, 1); params != ast.NoNode {
		args = g.tree.Children(params)
	}
	if len(candidates) == 0 {
		g.diags.Unsupportedf(line, "call to undeclared function: %s", name)
		return location{name: g.temp()}
	}
	callee := g.pick(candidates, args)
	if callee == nil {
		g.diags.Unsupportedf(line, "no matching function for call: %s", name)
		return location{name: g.temp()}
	}
	label, ok := g.labels[callee]
	if !ok {
		g.diags.Unsupportedf(line, "call to function without a body: %s", callee.QualifiedName())
		return location{name: g.temp()}
	}
	g.calls = append(g.calls, callEdge{from: g.fn, to: callee, line: line})
	actuals := make([]location, len(args))
	for i, arg := range args {
		actuals[i] = g.expr(arg)
	}
	for i, param := range callee.Scope.Params() {
		if i >= len(actuals) {
			break
		}
		cell := g.storage[callee][param.Name()]
		if cell == "" {
			g.diags.Unsupportedf(line, "by-reference array parameter: %s", param.Name())
			continue
		}
		formal := location{name: cell}
		if v := param.Variable; v.IsArray() || !semantic.IsPrimitive(v.Type) {
			g.copyBlock(formal, actuals[i], allocation.Size(g.global, v))
			continue
		}
		r := g.get()
		g.load(actuals[i], r)
		g.store(formal, r)
		g.put(r)
	}
	if class == "" || callee.ParentClass == "" {
		g.emit("jl %s, %s", Link, label)
		return g.result(callee)
	}
	owner := callee.ParentClass
	self := location{name: g.selfArea(owner)}
	sub := obj
	if owner != class {
		off, ok := g.baseOffset(class, owner)
		if !ok {
			g.diags.Unsupportedf(line, "inherited method %s needs the %s layout", name, allocation.InheritedFirst)
		}
		sub.disp += off
	}
	size := allocation.ElementSize(g.global, owner)
	if size == 0 || (sub.name == self.name && !sub.indexed()) {
		g.emit("jl %s, %s", Link, label)
		return g.result(callee)
	}
	saved := location{name: g.tempBlock(size)}
	g.copyBlock(saved, self, size)
	g.copyBlock(self, sub, size)
	g.emit("jl %s, %s", Link, label)
	g.copyBlock(sub, self, size)
	g.copyBlock(self, saved, size)
	return g.result(callee)
}

// result copies a scalar return value into a fresh temp so a later call cannot overwrite it.
func (g *generator) result(callee *semantic.FunctionEntry) location {
	switch ret := callee.ReturnType; {
	case ret == semantic.VoidType:
		return location{}
	case !semantic.IsPrimitive(ret):
		return location{name: g.returns[callee]}
	}
	t := g.temp()
	r := g.get()
	g.emit("lw %s, %s(r0)", r, g.returns[callee])
	g.emit("sw %s(r0), %s", t, r)
	g.put(r)
	return location{name: t}
}

// reportRecursion flags every call inside a cycle of the call graph. Frames are static, so a
// function reached again before it returns overwrites its own link and parameter cells.
func (g *generator) reportRecursion() {
	component := g.components()
	sizes := map[int]int{}
	for _, c := range component {
		sizes[c]++
	}
	for _, e := range g.calls {
		c := component[e.from]
		if c != component[e.to] {
			continue
		}
		if e.from == e.to || sizes[c] > 1 {
			g.diags.Unsupportedf(e.line, "recursive call: %s", e.to.QualifiedName())
		}
	}
}

// components numbers the strongly connected components of the call graph (Tarjan), visiting
// functions in the order their calls were lowered.
func (g *generator) components() map[*semantic.FunctionEntry]int {
	succ := map[*semantic.FunctionEntry][]*semantic.FunctionEntry{}
	var order []*semantic.FunctionEntry
	seen := map[*semantic.FunctionEntry]bool{}
	for _, e := range g.calls {
		succ[e.from] = append(succ[e.from], e.to)
		for _, fn := range []*semantic.FunctionEntry{e.from, e.to} {
			if !seen[fn] {
				seen[fn] = true
				order = append(order, fn)
			}
		}
	}
	index := map[*semantic.FunctionEntry]int{}
	low := map[*semantic.FunctionEntry]int{}
	onStack := map[*semantic.FunctionEntry]bool{}
	component := map[*semantic.FunctionEntry]int{}
	var stack []*semantic.FunctionEntry
	next, count := 0, 0
	var visit func(fn *semantic.FunctionEntry)
	visit = func(fn *semantic.FunctionEntry) {
		index[fn], low[fn] = next, next
		next++
		stack = append(stack, fn)
		onStack[fn] = true
		for _, to := range succ[fn] {
			if _, ok := index[to]; !ok {
				visit(to)
				if low[to] < low[fn] {
					low[fn] = low[to]
				}
			} else if onStack[to] && index[to] < low[fn] {
				low[fn] = index[to]
			}
		}
		if low[fn] != index[fn] {
			return
		}
		for {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[top] = false
			component[top] = count
			if top == fn {
				break
			}
		}
		count++
	}
	for _, fn := range order {
		if _, ok := index[fn]; !ok {
			visit(fn)
		}
	}
	return component
}

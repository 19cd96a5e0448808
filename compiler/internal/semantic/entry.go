package semantic

import (
	"fmt"
	"strings"
)

const (
	IntegerType = "integer"
	FloatType   = "float"
	VoidType    = "void"

	// WordSize is the byte size of an integer or a float cell.
	WordSize = 4
)

// IsPrimitive reports whether typ is integer or float.
func IsPrimitive(typ string) bool {
	return typ == IntegerType || typ == FloatType
}

// Variable is a declared type with its array dimensions. An unbound dimension is "".
type Variable struct {
	Type string
	Dims []string
}

func (v Variable) String() string {
	bf := &strings.Builder{}
	bf.WriteString(v.Type)
	for _, dim := range v.Dims {
		bf.WriteString("[" + dim + "]")
	}
	return bf.String()
}

func (v Variable) Equal(o Variable) bool {
	if v.Type != o.Type || len(v.Dims) != len(o.Dims) {
		return false
	}
	for i := range v.Dims {
		if v.Dims[i] != o.Dims[i] {
			return false
		}
	}
	return true
}

func (v Variable) IsArray() bool {
	return len(v.Dims) > 0
}

// Unbound reports whether any dimension has no size.
func (v Variable) Unbound() bool {
	for _, dim := range v.Dims {
		if dim == "" {
			return true
		}
	}
	return false
}

type EntryKind int

const (
	ClassKind EntryKind = iota
	FunctionKind
	ParamKind
	DataKind
	LocalKind
)

func (k EntryKind) String() string {
	switch k {
	case ClassKind:
		return "class"
	case FunctionKind:
		return "function"
	case ParamKind:
		return "param"
	case DataKind:
		return "data"
	case LocalKind:
		return "local"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Entry is one symbol table row. The set of implementations is closed.
type Entry interface {
	Name() string
	Kind() EntryKind
	Line() int
	String() string
	entry()
}

type ClassEntry struct {
	name     string
	line     int
	Inherits []string
	Scope    *Scope
	MemSize  int
}

func NewClass(name string, line int, inherits []string, parent *Scope) *ClassEntry {
	c := &ClassEntry{name: name, line: line, Inherits: inherits}
	c.Scope = NewScope(name, parent, c)
	return c
}

func (c *ClassEntry) Name() string    { return c.name }
func (c *ClassEntry) Kind() EntryKind { return ClassKind }
func (c *ClassEntry) Line() int       { return c.line }
func (c *ClassEntry) entry()          {}

func (c *ClassEntry) String() string {
	return strings.TrimRight(fmt.Sprintf("class | %s : %s", c.name, strings.Join(c.Inherits, ", ")), " ")
}

type FunctionEntry struct {
	name        string
	line        int
	ParentClass string
	Visibility  string
	ReturnType  string
	Params      []Variable
	Scope       *Scope
	// Defined is set once a body has been attached to the function.
	Defined bool
}

func NewFunction(name string, line int, parentClass, visibility, returnType string, parent *Scope) *FunctionEntry {
	f := &FunctionEntry{name: name, line: line, ParentClass: parentClass, Visibility: visibility, ReturnType: returnType}
	f.Scope = NewScope(name, parent, f)
	return f
}

func (f *FunctionEntry) Name() string    { return f.name }
func (f *FunctionEntry) Kind() EntryKind { return FunctionKind }
func (f *FunctionEntry) Line() int       { return f.line }
func (f *FunctionEntry) entry()          {}

// QualifiedName is Class::name for a member function and name otherwise.
func (f *FunctionEntry) QualifiedName() string {
	if f.ParentClass == "" {
		return f.name
	}
	return f.ParentClass + "::" + f.name
}

func (f *FunctionEntry) Signature() string {
	params := make([]string, 0, len(f.Params))
	for _, param := range f.Params {
		params = append(params, param.String())
	}
	return fmt.Sprintf("(%s): %s", strings.Join(params, ", "), f.ReturnType)
}

// SameParams reports whether both functions take the same parameter list.
func (f *FunctionEntry) SameParams(o *FunctionEntry) bool {
	if len(f.Params) != len(o.Params) {
		return false
	}
	for i := range f.Params {
		if !f.Params[i].Equal(o.Params[i]) {
			return false
		}
	}
	return true
}

func (f *FunctionEntry) String() string {
	return fmt.Sprintf("function | %s | %s | %s", f.name, f.Signature(), f.Visibility)
}

type ParamEntry struct {
	name     string
	line     int
	Variable Variable
}

func NewParam(name string, line int, v Variable) *ParamEntry {
	return &ParamEntry{name: name, line: line, Variable: v}
}

func (p *ParamEntry) Name() string    { return p.name }
func (p *ParamEntry) Kind() EntryKind { return ParamKind }
func (p *ParamEntry) Line() int       { return p.line }
func (p *ParamEntry) entry()          {}

func (p *ParamEntry) String() string {
	return fmt.Sprintf("param | %s | %s", p.name, p.Variable)
}

// DataEntry is a data member. MemSize and MemOffset are filled by the allocation pass.
type DataEntry struct {
	name       string
	line       int
	Variable   Variable
	Visibility string
	MemSize    int
	MemOffset  int
}

func NewData(name string, line int, v Variable, visibility string) *DataEntry {
	return &DataEntry{name: name, line: line, Variable: v, Visibility: visibility}
}

func (d *DataEntry) Name() string    { return d.name }
func (d *DataEntry) Kind() EntryKind { return DataKind }
func (d *DataEntry) Line() int       { return d.line }
func (d *DataEntry) entry()          {}

func (d *DataEntry) String() string {
	return fmt.Sprintf("data | %s | %s | %s | %d | %d", d.name, d.Variable, d.Visibility, d.MemSize, d.MemOffset)
}

type LocalEntry struct {
	name     string
	line     int
	Variable Variable
}

func NewLocal(name string, line int, v Variable) *LocalEntry {
	return &LocalEntry{name: name, line: line, Variable: v}
}

func (l *LocalEntry) Name() string    { return l.name }
func (l *LocalEntry) Kind() EntryKind { return LocalKind }
func (l *LocalEntry) Line() int       { return l.line }
func (l *LocalEntry) entry()          {}

func (l *LocalEntry) String() string {
	return fmt.Sprintf("local | %s | %s", l.name, l.Variable)
}

package semantic

import (
	"bytes"
	"strings"
)

// Scope is an ordered symbol table. Owner is the class or function whose inner scope this is, nil
// for the global scope.
type Scope struct {
	Name    string
	Parent  *Scope
	Owner   Entry
	entries []Entry
}

func NewScope(name string, parent *Scope, owner Entry) *Scope {
	return &Scope{Name: name, Parent: parent, Owner: owner}
}

func (s *Scope) Add(e Entry) {
	s.entries = append(s.entries, e)
}

func (s *Scope) Entries() []Entry {
	return s.entries
}

func (s *Scope) Class(name string) *ClassEntry {
	for _, e := range s.entries {
		if c, ok := e.(*ClassEntry); ok && c.Name() == name {
			return c
		}
	}
	return nil
}

func (s *Scope) Classes() []*ClassEntry {
	var ret []*ClassEntry
	for _, e := range s.entries {
		if c, ok := e.(*ClassEntry); ok {
			ret = append(ret, c)
		}
	}
	return ret
}

// Functions returns every function called name, in declaration order. An empty name matches all.
func (s *Scope) Functions(name string) []*FunctionEntry {
	var ret []*FunctionEntry
	for _, e := range s.entries {
		if f, ok := e.(*FunctionEntry); ok && (name == "" || f.Name() == name) {
			ret = append(ret, f)
		}
	}
	return ret
}

func (s *Scope) Data(name string) *DataEntry {
	for _, e := range s.entries {
		if d, ok := e.(*DataEntry); ok && d.Name() == name {
			return d
		}
	}
	return nil
}

func (s *Scope) DataMembers() []*DataEntry {
	var ret []*DataEntry
	for _, e := range s.entries {
		if d, ok := e.(*DataEntry); ok {
			ret = append(ret, d)
		}
	}
	return ret
}

func (s *Scope) Params() []*ParamEntry {
	var ret []*ParamEntry
	for _, e := range s.entries {
		if p, ok := e.(*ParamEntry); ok {
			ret = append(ret, p)
		}
	}
	return ret
}

func (s *Scope) Locals() []*LocalEntry {
	var ret []*LocalEntry
	for _, e := range s.entries {
		if l, ok := e.(*LocalEntry); ok {
			ret = append(ret, l)
		}
	}
	return ret
}

// Variable finds a local or a parameter of a function scope.
func (s *Scope) Variable(name string) (Variable, bool) {
	for _, e := range s.entries {
		switch v := e.(type) {
		case *LocalEntry:
			if v.Name() == name {
				return v.Variable, true
			}
		case *ParamEntry:
			if v.Name() == name {
				return v.Variable, true
			}
		}
	}
	return Variable{}, false
}

// Ancestors returns every class class inherits from, directly or not, breadth first. Undeclared
// bases are skipped and a class reachable twice, cycles included, is listed once.
func (s *Scope) Ancestors(class string) []*ClassEntry {
	var ret []*ClassEntry
	seen := map[string]bool{class: true}
	queue := []string{class}
	for len(queue) > 0 {
		c := s.Class(queue[0])
		queue = queue[1:]
		if c == nil {
			continue
		}
		for _, base := range c.Inherits {
			if seen[base] {
				continue
			}
			seen[base] = true
			if b := s.Class(base); b != nil {
				ret = append(ret, b)
				queue = append(queue, base)
			}
		}
	}
	return ret
}

// Member finds the data member name of class or of one of its ancestors. owner is the class that
// declares it.
func (s *Scope) Member(class, name string) (data *DataEntry, owner *ClassEntry) {
	c := s.Class(class)
	if c == nil {
		return nil, nil
	}
	if d := c.Scope.Data(name); d != nil {
		return d, c
	}
	for _, ancestor := range s.Ancestors(class) {
		if d := ancestor.Scope.Data(name); d != nil {
			return d, ancestor
		}
	}
	return nil, nil
}

// Method finds the member functions called name visible from class, the nearest declaring class
// winning.
func (s *Scope) Method(class, name string) []*FunctionEntry {
	c := s.Class(class)
	if c == nil {
		return nil
	}
	if fs := c.Scope.Functions(name); len(fs) > 0 {
		return fs
	}
	for _, ancestor := range s.Ancestors(class) {
		if fs := ancestor.Scope.Functions(name); len(fs) > 0 {
			return fs
		}
	}
	return nil
}

const rule = "============================================================="

// Dump renders the scope tree rooted at s. Nested scopes are indented by four spaces per level.
func Dump(s *Scope) string {
	if len(s.entries) == 0 {
		return ""
	}
	bf := &bytes.Buffer{}
	bf.WriteString("|    table: " + s.Name + "\n")
	bf.WriteString("|    " + rule + "\n")
	dump(bf, s, "|    ")
	return bf.String()
}

func dump(bf *bytes.Buffer, s *Scope, padding string) {
	inner := padding + strings.Repeat(" ", 4)
	for _, e := range s.entries {
		bf.WriteString(padding + e.String() + "\n")
		var scope *Scope
		switch v := e.(type) {
		case *ClassEntry:
			scope = v.Scope
		case *FunctionEntry:
			scope = v.Scope
		}
		if scope != nil && len(scope.entries) > 0 {
			bf.WriteString(inner + "table: " + scope.Name + "\n")
			bf.WriteString(inner + rule + "\n")
			dump(bf, scope, inner)
		}
		if e.Kind() == ClassKind {
			bf.WriteString(padding + rule + "\n")
		}
	}
}

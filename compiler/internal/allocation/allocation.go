package allocation

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/xiaobogaga/moonc/compiler/internal/ast"
	"github.com/xiaobogaga/moonc/compiler/internal/diag"
	"github.com/xiaobogaga/moonc/compiler/internal/semantic"
)

// Layout decides where a class's own fields start.
type Layout string

const (
	// InheritedFirst places the bases at [0, baseSize) in inherits order, own fields after them.
	InheritedFirst Layout = "inherited-first"
	// OwnFieldsOnly starts own fields at 0 and only adds the bases to the class size.
	OwnFieldsOnly Layout = "own-fields-only"
)

func ParseLayout(s string) (Layout, error) {
	switch Layout(s) {
	case InheritedFirst, OwnFieldsOnly:
		return Layout(s), nil
	case "":
		return InheritedFirst, nil
	}
	return "", errors.Errorf("allocation: unknown layout %q", s)
}

const (
	unsized = iota
	sizing
	sized
)

type calculator struct {
	global *semantic.Scope
	layout Layout
	state  map[string]int
	diags  *diag.List
}

// Compute sizes every class declared by a STRUCT node and gives each data member its byte size
// and offset. Class sizes are computed by name on demand, so declaration order does not matter.
func Compute(tree *ast.Tree, global *semantic.Scope, layout Layout) *diag.List {
	c := &calculator{global: global, layout: layout, state: map[string]int{}, diags: &diag.List{}}
	if tree.Root == ast.NoNode {
		return c.diags
	}
	for _, child := range tree.Children(tree.Root) {
		if tree.Label(child) != "STRUCT" {
			continue
		}
		id := tree.Child(child, 0)
		if id == ast.NoNode || tree.Token(id) == nil {
			continue
		}
		c.size(tree.Lexeme(id))
	}
	return c.diags
}

func (c *calculator) size(name string) int {
	class := c.global.Class(name)
	if class == nil {
		return 0
	}
	switch c.state[name] {
	case sized:
		return class.MemSize
	case sizing:
		c.diags.Errorf(class.Line(), "Recursive class layout: %s", name)
		return 0
	}
	c.state[name] = sizing
	base := 0
	for _, inherited := range class.Inherits {
		base += c.size(inherited)
	}
	offset := 0
	if c.layout == InheritedFirst {
		offset = base
	}
	own := 0
	for _, data := range class.Scope.DataMembers() {
		data.MemSize = c.variableSize(data.Variable)
		data.MemOffset = offset
		offset += data.MemSize
		own += data.MemSize
	}
	class.MemSize = base + own
	c.state[name] = sized
	return class.MemSize
}

func (c *calculator) variableSize(v semantic.Variable) int {
	count := Count(v)
	if count == 0 {
		return 0
	}
	if semantic.IsPrimitive(v.Type) {
		return count * semantic.WordSize
	}
	return count * c.size(v.Type)
}

// Count is the number of elements of v: the product of its dimensions, 1 for a scalar and 0 when a
// dimension is unbound.
func Count(v semantic.Variable) int {
	count := 1
	for _, dim := range v.Dims {
		n, err := strconv.Atoi(dim)
		if err != nil || n < 0 {
			return 0
		}
		count *= n
	}
	return count
}

// ElementSize is the byte size of one element of typ. Classes must have been sized by Compute.
func ElementSize(global *semantic.Scope, typ string) int {
	if semantic.IsPrimitive(typ) {
		return semantic.WordSize
	}
	if class := global.Class(typ); class != nil {
		return class.MemSize
	}
	return 0
}

// Size is the byte size of v, 0 when it is passed by reference.
func Size(global *semantic.Scope, v semantic.Variable) int {
	return Count(v) * ElementSize(global, v.Type)
}

// Strides returns the row-major stride, in elements, of every dimension of v: the product of all
// extents to its right.
func Strides(v semantic.Variable) []int {
	strides := make([]int, len(v.Dims))
	stride := 1
	for i := len(v.Dims) - 1; i >= 0; i-- {
		strides[i] = stride
		n, err := strconv.Atoi(v.Dims[i])
		if err != nil {
			n = 0
		}
		stride *= n
	}
	return strides
}

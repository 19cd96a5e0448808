package ast

import (
	"github.com/pkg/errors"
	"github.com/xiaobogaga/moonc/compiler/internal/lexer"
)

type Operation int

const (
	MakeNode           Operation = iota // leaf from the last matched token
	MakeNull                            // family boundary marker
	MakeEmpty                           // EMPTY leaf
	MakeSign                            // unary node named after a sign token
	MakeFamily                          // exactly Arity children
	MakeFamilyUntilNull                 // every child above the nearest marker
)

// ErrorLabel names the placeholder nodes substituted for missing children after a syntax error.
const ErrorLabel = "ERROR"

type Action struct {
	Op    Operation
	Label string
	Arity int
}

// Actions maps every action marker used by the Moon grammar to what it builds.
var Actions = map[string]Action{
	"@node":  {Op: MakeNode},
	"@null":  {Op: MakeNull},
	"@empty": {Op: MakeEmpty, Label: "EMPTY"},
	"@sign":  {Op: MakeSign},

	"@prog":        {Op: MakeFamilyUntilNull, Label: "PROG"},
	"@inherits":    {Op: MakeFamilyUntilNull, Label: "INHERITS"},
	"@structdecls": {Op: MakeFamilyUntilNull, Label: "STRUCTDECLS"},
	"@funclist":    {Op: MakeFamilyUntilNull, Label: "FUNCLIST"},
	"@fparams":     {Op: MakeFamilyUntilNull, Label: "FPARAMS"},
	"@dimlist":     {Op: MakeFamilyUntilNull, Label: "DIMLIST"},
	"@funcbody":    {Op: MakeFamilyUntilNull, Label: "FUNCBODY"},
	"@statblock":   {Op: MakeFamilyUntilNull, Label: "STATBLOCK"},
	"@aparams":     {Op: MakeFamilyUntilNull, Label: "APARAMS"},
	"@indice":      {Op: MakeFamilyUntilNull, Label: "INDICE"},

	"@struct":         {Op: MakeFamily, Label: "STRUCT", Arity: 3},
	"@structvardecl":  {Op: MakeFamily, Label: "STRUCTVARDECL", Arity: 4},
	"@structfunchead": {Op: MakeFamily, Label: "STRUCTFUNCHEAD", Arity: 4},
	"@impldef":        {Op: MakeFamily, Label: "IMPLDEF", Arity: 2},
	"@funcdef":        {Op: MakeFamily, Label: "FUNCDEF", Arity: 2},
	"@funchead":       {Op: MakeFamily, Label: "FUNCHEAD", Arity: 3},
	"@fparam":         {Op: MakeFamily, Label: "FPARAM", Arity: 3},
	"@vardecl":        {Op: MakeFamily, Label: "VARDECL", Arity: 3},
	"@assignstat":     {Op: MakeFamily, Label: "ASSIGNSTAT", Arity: 2},
	"@if":             {Op: MakeFamily, Label: "IF", Arity: 3},
	"@while":          {Op: MakeFamily, Label: "WHILE", Arity: 2},
	"@read":           {Op: MakeFamily, Label: "READ", Arity: 1},
	"@write":          {Op: MakeFamily, Label: "WRITE", Arity: 1},
	"@return":         {Op: MakeFamily, Label: "RETURN", Arity: 1},
	"@funccall":       {Op: MakeFamily, Label: "FUNCCALL", Arity: 2},
	"@variable":       {Op: MakeFamily, Label: "VARIABLE", Arity: 2},
	"@dot":            {Op: MakeFamily, Label: "DOT", Arity: 2},
	"@expr":           {Op: MakeFamily, Label: "EXPR", Arity: 1},
	"@relexpr":        {Op: MakeFamily, Label: "RELEXPR", Arity: 3},
	"@arithexpr":      {Op: MakeFamily, Label: "ARITHEXPR", Arity: 1},
	"@addop":          {Op: MakeFamily, Label: "ADDOP", Arity: 3},
	"@multop":         {Op: MakeFamily, Label: "MULTOP", Arity: 3},
	"@not":            {Op: MakeFamily, Label: "NOT", Arity: 1},
}

// stackItem is either a boundary marker or a node.
type stackItem struct {
	marker bool
	node   NodeID
}

// ValueStack is the semantic value stack the parser keeps next to its symbol stack.
type ValueStack struct {
	tree  *Tree
	items []stackItem
}

func NewValueStack(tree *Tree) *ValueStack {
	return &ValueStack{tree: tree}
}

func (s *ValueStack) Len() int {
	return len(s.items)
}

func (s *ValueStack) pushNode(id NodeID) {
	s.items = append(s.items, stackItem{node: id})
}

func (s *ValueStack) pushMarker() {
	s.items = append(s.items, stackItem{marker: true, node: NoNode})
}

// popNode pops the top node. A marker on top or an empty stack is an underflow, which is repaired
// with an ERROR node when recovering and reported otherwise.
func (s *ValueStack) popNode(recovering bool) (NodeID, error) {
	n := len(s.items)
	if n == 0 || s.items[n-1].marker {
		if recovering {
			return s.tree.NewNode(ErrorLabel, nil), nil
		}
		return NoNode, errors.New("ast: semantic value stack underflow")
	}
	top := s.items[n-1]
	s.items = s.items[:n-1]
	return top.node, nil
}

// Top returns the node on top of the stack or NoNode.
func (s *ValueStack) Top() NodeID {
	if n := len(s.items); n > 0 && !s.items[n-1].marker {
		return s.items[n-1].node
	}
	return NoNode
}

// Nodes returns the nodes left on the stack from bottom to top, markers skipped.
func (s *ValueStack) Nodes() []NodeID {
	var ret []NodeID
	for _, item := range s.items {
		if !item.marker {
			ret = append(ret, item.node)
		}
	}
	return ret
}

// Apply runs action against the stack and returns the node it pushed, or NoNode for a marker.
// lastToken is the most recently matched token. When recovering is set, a syntax error has
// already been reported and missing children are replaced by ERROR nodes instead of failing.
func (s *ValueStack) Apply(action Action, lastToken *lexer.Token, recovering bool) (NodeID, error) {
	switch action.Op {
	case MakeNode:
		if lastToken == nil {
			if !recovering {
				return NoNode, errors.New("ast: makeNode before any matched token")
			}
			id := s.tree.NewNode(ErrorLabel, nil)
			s.pushNode(id)
			return id, nil
		}
		id := s.tree.NewNode(lastToken.Kind.Label(), lastToken)
		s.pushNode(id)
		return id, nil
	case MakeNull:
		s.pushMarker()
		return NoNode, nil
	case MakeEmpty:
		id := s.tree.NewNode(action.Label, nil)
		s.pushNode(id)
		return id, nil
	case MakeSign:
		operand, err := s.popNode(recovering)
		if err != nil {
			return NoNode, err
		}
		sign, err := s.popNode(recovering)
		if err != nil {
			return NoNode, err
		}
		id := s.tree.NewNode(s.tree.Label(sign), s.tree.Token(sign))
		s.tree.AddChild(id, operand)
		s.pushNode(id)
		return id, nil
	case MakeFamily:
		children := make([]NodeID, action.Arity)
		for i := action.Arity - 1; i >= 0; i-- {
			child, err := s.popNode(recovering)
			if err != nil {
				return NoNode, errors.Wrapf(err, "ast: building %s", action.Label)
			}
			children[i] = child
		}
		return s.makeFamily(action.Label, children), nil
	case MakeFamilyUntilNull:
		var reversed []NodeID
		for {
			n := len(s.items)
			if n == 0 {
				if !recovering {
					return NoNode, errors.Errorf("ast: building %s: no boundary marker", action.Label)
				}
				break
			}
			top := s.items[n-1]
			s.items = s.items[:n-1]
			if top.marker {
				break
			}
			reversed = append(reversed, top.node)
		}
		children := make([]NodeID, len(reversed))
		for i, child := range reversed {
			children[len(reversed)-1-i] = child
		}
		return s.makeFamily(action.Label, children), nil
	}
	return NoNode, errors.Errorf("ast: unknown action operation %d", action.Op)
}

func (s *ValueStack) makeFamily(label string, children []NodeID) NodeID {
	id := s.tree.NewNode(label, nil)
	for _, child := range children {
		s.tree.AddChild(id, child)
	}
	s.pushNode(id)
	return id
}

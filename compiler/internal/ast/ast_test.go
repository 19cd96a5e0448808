package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xiaobogaga/moonc/compiler/internal/lexer"
)

func token(kind lexer.Kind, lexeme string) *lexer.Token {
	return &lexer.Token{Kind: kind, Lexeme: lexeme, Line: 1}
}

func apply(t *testing.T, stack *ValueStack, marker string, last *lexer.Token) NodeID {
	action, ok := Actions[marker]
	require.True(t, ok, marker)
	id, err := stack.Apply(action, last, false)
	require.Nil(t, err, marker)
	return id
}

func TestValueStack_MakeFamilyKeepsSourceOrder(t *testing.T) {
	tree := NewTree()
	stack := NewValueStack(tree)
	apply(t, stack, "@node", token(lexer.Id, "a"))
	apply(t, stack, "@node", token(lexer.Plus, "+"))
	apply(t, stack, "@node", token(lexer.IntLit, "1"))
	id := apply(t, stack, "@addop", nil)
	assert.Equal(t, "ADDOP", tree.Label(id))
	children := tree.Children(id)
	require.Len(t, children, 3)
	assert.Equal(t, []string{"ID", "PLUS", "INTLIT"},
		[]string{tree.Label(children[0]), tree.Label(children[1]), tree.Label(children[2])})
	assert.Equal(t, "a", tree.Lexeme(children[0]))
	assert.Equal(t, 1, stack.Len())
	assert.Equal(t, id, stack.Top())
}

func TestValueStack_MakeFamilyUntilNull(t *testing.T) {
	tree := NewTree()
	stack := NewValueStack(tree)
	apply(t, stack, "@node", token(lexer.Id, "outer"))
	apply(t, stack, "@null", nil)
	apply(t, stack, "@node", token(lexer.IntLit, "2"))
	apply(t, stack, "@empty", nil)
	apply(t, stack, "@node", token(lexer.IntLit, "3"))
	id := apply(t, stack, "@dimlist", nil)
	assert.Equal(t, "DIMLIST", tree.Label(id))
	var labels []string
	for _, child := range tree.Children(id) {
		labels = append(labels, tree.Label(child))
	}
	assert.Equal(t, []string{"INTLIT", "EMPTY", "INTLIT"}, labels)
	assert.Equal(t, "3", tree.Lexeme(tree.Child(id, 2)))
	// The marker is consumed, the node below it is not.
	assert.Equal(t, 2, stack.Len())
	assert.Equal(t, []NodeID{0, id}, stack.Nodes())

	apply(t, stack, "@null", nil)
	empty := apply(t, stack, "@fparams", nil)
	assert.Empty(t, tree.Children(empty))
}

func TestValueStack_MakeSign(t *testing.T) {
	tree := NewTree()
	stack := NewValueStack(tree)
	apply(t, stack, "@node", token(lexer.Minus, "-"))
	apply(t, stack, "@node", token(lexer.FloatLit, "1.5"))
	id := apply(t, stack, "@sign", nil)
	assert.Equal(t, "MINUS", tree.Label(id))
	require.Len(t, tree.Children(id), 1)
	assert.Equal(t, "FLOATLIT", tree.Label(tree.Child(id, 0)))
	assert.Equal(t, "-", tree.Token(id).Lexeme)
}

func TestValueStack_Underflow(t *testing.T) {
	tree := NewTree()
	stack := NewValueStack(tree)
	_, err := stack.Apply(Actions["@addop"], nil, false)
	assert.NotNil(t, err)
	_, err = stack.Apply(Actions["@prog"], nil, false)
	assert.NotNil(t, err)
	_, err = stack.Apply(Actions["@node"], nil, false)
	assert.NotNil(t, err)

	// A family never eats a marker it does not own while recovering.
	apply(t, stack, "@null", nil)
	apply(t, stack, "@node", token(lexer.Id, "x"))
	id, err := stack.Apply(Actions["@variable"], nil, true)
	require.Nil(t, err)
	assert.Equal(t, ErrorLabel, tree.Label(tree.Child(id, 0)))
	assert.Equal(t, "ID", tree.Label(tree.Child(id, 1)))
	prog, err := stack.Apply(Actions["@prog"], nil, true)
	require.Nil(t, err)
	assert.Equal(t, []NodeID{id}, tree.Children(prog))
	assert.Equal(t, 1, stack.Len())
}

func TestTree_DerivedLinks(t *testing.T) {
	tree := NewTree()
	root := tree.NewNode("PROG", nil)
	a := tree.NewNode("A", nil)
	b := tree.NewNode("B", token(lexer.Id, "bee"))
	c := tree.NewNode("C", nil)
	tree.AddChild(root, a)
	tree.AddChild(root, b)
	tree.AddChild(a, c)
	tree.Root = root

	assert.Equal(t, root, tree.Parent(a))
	assert.Equal(t, NoNode, tree.Parent(root))
	assert.Equal(t, a, tree.LeftmostChild(root))
	assert.Equal(t, a, tree.LeftmostSibling(b))
	assert.Equal(t, b, tree.RightSibling(a))
	assert.Equal(t, NoNode, tree.RightSibling(b))
	assert.Equal(t, root, tree.LeftmostSibling(root))
	assert.Equal(t, NoNode, tree.Child(root, 5))
	assert.Equal(t, b, tree.Find(root, "B"))
	assert.Equal(t, NoNode, tree.Find(root, "D"))
	assert.Equal(t, 1, tree.Line(root))
	assert.Equal(t, "PROG\n| A\n| | C\n| B (bee)\n", tree.String())
}

func TestActions_Table(t *testing.T) {
	for marker, action := range Actions {
		assert.Equal(t, byte('@'), marker[0])
		if action.Op == MakeFamily {
			assert.True(t, action.Arity > 0, marker)
		}
		if action.Op == MakeFamily || action.Op == MakeFamilyUntilNull {
			assert.NotEmpty(t, action.Label, marker)
		}
	}
}

func TestTree_NoNode(t *testing.T) {
	tree := NewTree()
	head := tree.NewNode("FUNCHEAD", nil)
	id := tree.Child(head, 0)
	assert.Equal(t, NoNode, id)
	assert.Equal(t, "", tree.Label(id))
	assert.Nil(t, tree.Token(id))
	assert.Equal(t, "", tree.Lexeme(id))
	assert.Equal(t, 0, tree.Line(id))
	assert.Empty(t, tree.Children(id))
	assert.Equal(t, NoNode, tree.Child(id, 0))
	assert.Equal(t, NoNode, tree.Parent(id))
	assert.Equal(t, NoNode, tree.RightSibling(id))
	assert.Equal(t, NoNode, tree.Find(id, "ID"))
	assert.Equal(t, 0, tree.Line(head))
}

package ast

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xiaobogaga/moonc/compiler/internal/lexer"
)

// NodeID addresses a node inside its Tree.
type NodeID int

const NoNode NodeID = -1

type Node struct {
	Label    string
	Token    *lexer.Token
	Children []NodeID
}

// Tree is an arena of nodes. Parent and sibling relations are derived from the child lists and are
// never stored as references.
type Tree struct {
	nodes  []Node
	parent []NodeID
	Root   NodeID
}

func NewTree() *Tree {
	return &Tree{Root: NoNode}
}

func (t *Tree) NewNode(label string, token *lexer.Token) NodeID {
	t.nodes = append(t.nodes, Node{Label: label, Token: token})
	t.parent = append(t.parent, NoNode)
	return NodeID(len(t.nodes) - 1)
}

// AddChild appends child as the rightmost child of parent.
func (t *Tree) AddChild(parent, child NodeID) {
	t.nodes[parent].Children = append(t.nodes[parent].Children, child)
	t.parent[child] = parent
}

func (t *Tree) Len() int {
	return len(t.nodes)
}

func (t *Tree) Node(id NodeID) *Node {
	return &t.nodes[id]
}

func (t *Tree) Label(id NodeID) string {
	if id == NoNode {
		return ""
	}
	return t.nodes[id].Label
}

func (t *Tree) Token(id NodeID) *lexer.Token {
	if id == NoNode {
		return nil
	}
	return t.nodes[id].Token
}

// Lexeme returns the lexeme of a leaf, or "" for an inner node.
func (t *Tree) Lexeme(id NodeID) string {
	if token := t.Token(id); token != nil {
		return token.Lexeme
	}
	return ""
}

// Line returns the line of the leftmost token under id, or 0 when there is none. Recovery can leave
// families short of children, so NoNode is accepted everywhere a child is read.
func (t *Tree) Line(id NodeID) int {
	if id == NoNode {
		return 0
	}
	if token := t.nodes[id].Token; token != nil {
		return token.Line
	}
	for _, child := range t.nodes[id].Children {
		if line := t.Line(child); line != 0 {
			return line
		}
	}
	return 0
}

func (t *Tree) Children(id NodeID) []NodeID {
	if id == NoNode {
		return nil
	}
	return t.nodes[id].Children
}

// Child returns the i-th child of id, or NoNode when there are fewer children.
func (t *Tree) Child(id NodeID, i int) NodeID {
	children := t.Children(id)
	if i < 0 || i >= len(children) {
		return NoNode
	}
	return children[i]
}

func (t *Tree) Parent(id NodeID) NodeID {
	if id == NoNode {
		return NoNode
	}
	return t.parent[id]
}

func (t *Tree) LeftmostChild(id NodeID) NodeID {
	return t.Child(id, 0)
}

// LeftmostSibling is the first child of id's parent, or id itself for a root.
func (t *Tree) LeftmostSibling(id NodeID) NodeID {
	parent := t.Parent(id)
	if parent == NoNode {
		return id
	}
	return t.nodes[parent].Children[0]
}

func (t *Tree) RightSibling(id NodeID) NodeID {
	parent := t.Parent(id)
	if parent == NoNode {
		return NoNode
	}
	siblings := t.nodes[parent].Children
	for i, sibling := range siblings {
		if sibling == id && i+1 < len(siblings) {
			return siblings[i+1]
		}
	}
	return NoNode
}

// Find returns the first node labelled label in a depth-first, left-to-right walk from id.
func (t *Tree) Find(id NodeID, label string) NodeID {
	if id == NoNode {
		return NoNode
	}
	if t.nodes[id].Label == label {
		return id
	}
	for _, child := range t.nodes[id].Children {
		if found := t.Find(child, label); found != NoNode {
			return found
		}
	}
	return NoNode
}

// String renders the tree rooted at Root, one node per line, children in source order and
// indented by depth. Leaves show their lexeme.
func (t *Tree) String() string {
	if t.Root == NoNode {
		return ""
	}
	bf := &bytes.Buffer{}
	t.print(bf, t.Root, 0)
	return bf.String()
}

func (t *Tree) print(bf *bytes.Buffer, id NodeID, depth int) {
	node := t.nodes[id]
	bf.WriteString(strings.Repeat("| ", depth))
	bf.WriteString(node.Label)
	if node.Token != nil && node.Token.Lexeme != "" && node.Token.Lexeme != strings.ToLower(node.Label) {
		bf.WriteString(fmt.Sprintf(" (%s)", node.Token.Lexeme))
	}
	bf.WriteString("\n")
	for _, child := range node.Children {
		t.print(bf, child, depth+1)
	}
}

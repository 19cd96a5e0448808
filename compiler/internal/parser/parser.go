package parser

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/xiaobogaga/moonc/compiler/internal/ast"
	"github.com/xiaobogaga/moonc/compiler/internal/grammar"
	"github.com/xiaobogaga/moonc/compiler/internal/lexer"
)

// SyntaxError is one panic-mode recovery event.
type SyntaxError struct {
	Token    *lexer.Token
	Expected []string
}

func (e SyntaxError) String() string {
	return fmt.Sprintf("Syntax error with token '%s' on line %d. Expected one of the following tokens: [%s].",
		e.Token.Lexeme, e.Token.Line, strings.Join(e.Expected, ", "))
}

const (
	terminalStep = "TERMINAL"
	errorStep    = "ERROR"
)

// TraceStep is one line of the derivation trace, taken after the step was applied.
type TraceStep struct {
	Derivation string
	Stack      string
	Token      string
	Production string
}

type Result struct {
	Success bool
	Tree    *ast.Tree
	Errors  []SyntaxError
	Trace   []TraceStep
}

// TraceString renders the derivation trace as tab separated columns.
func (r *Result) TraceString() string {
	bf := &bytes.Buffer{}
	bf.WriteString("derivation\tstack\ttoken\tproduction\n")
	for _, step := range r.Trace {
		bf.WriteString(fmt.Sprintf("%s\t%s\t%s\t%s\n", step.Derivation, step.Stack, step.Token, step.Production))
	}
	return bf.String()
}

func (r *Result) ErrorsString() string {
	bf := &bytes.Buffer{}
	for _, e := range r.Errors {
		bf.WriteString(e.String())
		bf.WriteString("\n")
	}
	return bf.String()
}

// Parser drives an LL(1) derivation over a token slice with a grammar table, running semantic
// actions as their markers reach the top of the symbol stack.
type Parser struct {
	table         *grammar.Table
	tokens        []*lexer.Token
	pos           int
	cur           *lexer.Token
	last          *lexer.Token
	stack         []string
	values        *ast.ValueStack
	tree          *ast.Tree
	derivation    []string
	errorOccurred bool
	result        *Result
}

func New(table *grammar.Table, tokens []*lexer.Token) *Parser {
	return &Parser{table: table, tokens: tokens}
}

// Parse runs the derivation. Syntax errors are collected in the result and never stop the parse.
// The error is only set for a malformed grammar table or a broken semantic value stack.
func (p *Parser) Parse() (*Result, error) {
	p.tree = ast.NewTree()
	p.values = ast.NewValueStack(p.tree)
	p.result = &Result{Tree: p.tree}
	p.stack = []string{grammar.EndMarker, p.table.StartSymbol()}
	p.pos, p.last, p.derivation, p.errorOccurred = -1, nil, nil, false
	p.advance()
	for p.top() != grammar.EndMarker {
		x := p.top()
		switch {
		case grammar.IsAction(x):
			if err := p.runAction(x); err != nil {
				return nil, err
			}
		case p.table.IsTerminal(x):
			if x == p.cur.Kind.String() {
				p.pop()
				p.derivation = append(p.derivation, p.cur.Lexeme)
				p.trace(terminalStep)
				p.last = p.cur
				p.advance()
				continue
			}
			p.recover(x)
		case p.table.IsNonTerminal(x):
			rhs, ok := p.table.Transition(x, p.cur.Kind.String())
			if !ok {
				p.recover(x)
				continue
			}
			p.pop()
			p.pushReversed(rhs)
			p.trace(grammar.Production{LHS: x, RHS: rhs}.String())
		default:
			return nil, errors.Errorf("parser: symbol %s is neither a terminal, a non-terminal nor an action", x)
		}
	}
	if p.cur.Kind != lexer.EOF {
		p.reportError([]string{grammar.EndMarker})
	}
	p.tree.Root = p.root()
	p.result.Success = !p.errorOccurred && p.tree.Root != ast.NoNode
	return p.result, nil
}

func (p *Parser) top() string {
	return p.stack[len(p.stack)-1]
}

func (p *Parser) pop() {
	p.stack = p.stack[:len(p.stack)-1]
}

// pushReversed pushes rhs so that its leftmost symbol ends on top. Epsilon is dropped.
func (p *Parser) pushReversed(rhs []string) {
	for i := len(rhs) - 1; i >= 0; i-- {
		if rhs[i] == grammar.Epsilon {
			continue
		}
		p.stack = append(p.stack, rhs[i])
	}
}

// advance moves the lookahead to the next non-comment token. Running off the slice yields a
// synthetic end-of-input token.
func (p *Parser) advance() {
	for {
		p.pos++
		if p.pos >= len(p.tokens) {
			line := 1
			if len(p.tokens) > 0 {
				line = p.tokens[len(p.tokens)-1].Line
			}
			p.cur = &lexer.Token{Kind: lexer.EOF, Lexeme: grammar.EndMarker, Line: line}
			p.pos = len(p.tokens)
			return
		}
		if !p.tokens[p.pos].Kind.IsComment() {
			p.cur = p.tokens[p.pos]
			return
		}
	}
}

func (p *Parser) runAction(marker string) error {
	action, ok := ast.Actions[marker]
	if !ok {
		return errors.Errorf("parser: unknown semantic action %s", marker)
	}
	if _, err := p.values.Apply(action, p.last, p.errorOccurred); err != nil {
		return errors.Wrapf(err, "parser: action %s near line %d", marker, p.cur.Line)
	}
	p.pop()
	return nil
}

// expected is the set reported when recovery starts at x.
func (p *Parser) expected(x string) []string {
	if p.table.IsTerminal(x) {
		return []string{x}
	}
	set := map[string]bool{}
	nullable := false
	for _, terminal := range p.table.First(x) {
		if terminal == grammar.Epsilon {
			nullable = true
			continue
		}
		set[terminal] = true
	}
	if nullable {
		for _, terminal := range p.table.Follow(x) {
			set[terminal] = true
		}
	}
	ret := make([]string, 0, len(set))
	for terminal := range set {
		ret = append(ret, terminal)
	}
	sort.Strings(ret)
	return ret
}

func (p *Parser) reportError(expected []string) {
	p.errorOccurred = true
	p.result.Errors = append(p.result.Errors, SyntaxError{Token: p.cur, Expected: expected})
	p.trace(errorStep)
}

// recover is panic mode at x: pop x when the lookahead may follow it, otherwise skip tokens until
// one can start x (keep x) or follow it (pop x). End of input always pops.
func (p *Parser) recover(x string) {
	p.reportError(p.expected(x))
	if p.cur.Kind == lexer.EOF || p.table.InFollow(x, p.cur.Kind.String()) {
		p.pop()
		return
	}
	for {
		p.advance()
		kind := p.cur.Kind.String()
		switch {
		case p.cur.Kind == lexer.EOF:
			p.pop()
			return
		case p.table.InFirst(x, kind):
			return
		case p.table.InFollow(x, kind):
			p.pop()
			return
		}
	}
}

func (p *Parser) trace(production string) {
	stack := make([]string, 0, len(p.stack))
	for i := len(p.stack) - 1; i >= 0; i-- {
		if grammar.IsAction(p.stack[i]) {
			continue
		}
		stack = append(stack, p.stack[i])
	}
	p.result.Trace = append(p.result.Trace, TraceStep{
		Derivation: strings.Join(p.derivation, " "),
		Stack:      strings.Join(stack, " "),
		Token:      p.cur.Lexeme,
		Production: production,
	})
}

// root picks the program node: the topmost PROG left on the value stack, or the top node.
func (p *Parser) root() ast.NodeID {
	nodes := p.values.Nodes()
	for i := len(nodes) - 1; i >= 0; i-- {
		if p.tree.Label(nodes[i]) == "PROG" {
			return nodes[i]
		}
	}
	if len(nodes) == 0 {
		return ast.NoNode
	}
	return nodes[len(nodes)-1]
}

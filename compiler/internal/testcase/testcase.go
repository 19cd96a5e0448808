package testcase

import (
	"bytes"
	"io/ioutil"
	"strings"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// A scenario document is Markdown. Every heading "Test: name" starts a case, and the fenced code
// blocks below it, up to the next test heading, fill it by language:
//   moon         the program, required
//   input        what getint reads
//   output       the expected stdout, with \r\n compared as \n
//   diagnostics  the expected semantic, allocation and generation diagnostics
//   syntax       the expected syntax errors
// A case needs at least one expectation. Blocks without a language are prose.

const testPrefix = "Test: "

const (
	FenceSource      = "moon"
	FenceInput       = "input"
	FenceOutput      = "output"
	FenceDiagnostics = "diagnostics"
	FenceSyntax      = "syntax"
)

type Case struct {
	Name   string
	Line   int
	Source string
	Input  string
	// Expectations are nil when their fence is absent.
	Output       *string
	Diagnostics  *string
	SyntaxErrors *string
}

// Extract reads every case of a scenario document in order.
func Extract(content []byte) ([]Case, error) {
	doc := goldmark.New().Parser().Parse(text.NewReader(content))
	var cases []Case
	var current *Case
	closeCase := func() error {
		if current == nil {
			return nil
		}
		if err := validate(current); err != nil {
			return err
		}
		cases = append(cases, *current)
		return nil
	}
	err := ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := node.(type) {
		case *ast.Heading:
			heading := nodeText(n, content)
			if !strings.HasPrefix(heading, testPrefix) {
				return ast.WalkContinue, nil
			}
			if err := closeCase(); err != nil {
				return ast.WalkStop, err
			}
			current = &Case{Name: strings.TrimPrefix(heading, testPrefix), Line: lineOf(n, content)}
		case *ast.FencedCodeBlock:
			language := string(n.Language(content))
			if language == "" {
				return ast.WalkContinue, nil
			}
			line := lineOf(n, content)
			if current == nil {
				return ast.WalkStop, errors.Errorf("testcase: line %d: %s fence outside of a test", line, language)
			}
			if err := current.set(language, blockText(n, content), line); err != nil {
				return ast.WalkStop, err
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}
	if err = closeCase(); err != nil {
		return nil, err
	}
	return cases, nil
}

// Load extracts the cases of the document at path.
func Load(path string) ([]Case, error) {
	content, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "testcase: read %s", path)
	}
	cases, err := Extract(content)
	return cases, errors.Wrapf(err, "testcase: %s", path)
}

func (c *Case) set(language, content string, line int) error {
	duplicate := func() error {
		return errors.Errorf("testcase: line %d: second %s fence in test %s", line, language, c.Name)
	}
	expectation := func(target **string) error {
		if *target != nil {
			return duplicate()
		}
		*target = &content
		return nil
	}
	switch language {
	case FenceSource:
		if c.Source != "" {
			return duplicate()
		}
		c.Source = content
	case FenceInput:
		if c.Input != "" {
			return duplicate()
		}
		c.Input = content
	case FenceOutput:
		return expectation(&c.Output)
	case FenceDiagnostics:
		return expectation(&c.Diagnostics)
	case FenceSyntax:
		return expectation(&c.SyntaxErrors)
	default:
		return errors.Errorf("testcase: line %d: unknown fence %s in test %s", line, language, c.Name)
	}
	return nil
}

func validate(c *Case) error {
	if c.Source == "" {
		return errors.Errorf("testcase: test %s has no %s fence", c.Name, FenceSource)
	}
	if c.Output == nil && c.Diagnostics == nil && c.SyntaxErrors == nil {
		return errors.Errorf("testcase: test %s has no expectation", c.Name)
	}
	return nil
}

func nodeText(node ast.Node, source []byte) string {
	bf := &bytes.Buffer{}
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if t, ok := n.(*ast.Text); ok && entering {
			bf.Write(t.Segment.Value(source))
		}
		return ast.WalkContinue, nil
	})
	return bf.String()
}

func blockText(block *ast.FencedCodeBlock, source []byte) string {
	bf := &bytes.Buffer{}
	lines := block.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		bf.Write(line.Value(source))
	}
	return bf.String()
}

// lineOf is the 1-based line of the node's first content line.
func lineOf(node ast.Node, source []byte) int {
	if node.Lines().Len() == 0 {
		return 1
	}
	start := node.Lines().At(0).Start
	if start > len(source) {
		start = len(source)
	}
	return bytes.Count(source[:start], []byte("\n")) + 1
}

package internal

import (
	"bytes"
	"io"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/xiaobogaga/moonc/compiler/internal/allocation"
	"github.com/xiaobogaga/moonc/compiler/internal/ast"
	"github.com/xiaobogaga/moonc/compiler/internal/config"
	"github.com/xiaobogaga/moonc/compiler/internal/diag"
	"github.com/xiaobogaga/moonc/compiler/internal/generation"
	"github.com/xiaobogaga/moonc/compiler/internal/grammar"
	"github.com/xiaobogaga/moonc/compiler/internal/lexer"
	"github.com/xiaobogaga/moonc/compiler/internal/parser"
	"github.com/xiaobogaga/moonc/compiler/internal/semantic"
	"github.com/xiaobogaga/moonc/moon"
)

// SourceExt is the extension of Moon source files.
const SourceExt = ".src"

// Output file extensions, one per artifact.
const (
	ExtLexErrors      = ".outlexerrors"
	ExtDerivation     = ".outderivation"
	ExtSyntaxErrors   = ".outsyntaxerrors"
	ExtAST            = ".outast"
	ExtSymbolTables   = ".outsymboltables"
	ExtSemanticErrors = ".outsemanticerrors"
	ExtMoon           = ".moon"
)

// Result holds every artifact of one compilation. Later stages are nil when an earlier one failed.
type Result struct {
	Path       string
	Tokens     []*lexer.Token
	Parse      *parser.Result
	Semantic   *semantic.Result
	Allocation *diag.List
	Generation *generation.Result
	// Outputs lists the files CompileFile wrote.
	Outputs []string
}

// LexErrors renders one line per lexical error token.
func (r *Result) LexErrors() string {
	bf := &bytes.Buffer{}
	for _, token := range r.Tokens {
		if token.Kind.IsError() {
			bf.WriteString(token.ErrorMessage())
			bf.WriteString("\n")
		}
	}
	return bf.String()
}

// Diagnostics merges the semantic, allocation and generation diagnostics in stage order.
func (r *Result) Diagnostics() *diag.List {
	l := &diag.List{}
	if r.Semantic != nil {
		l.Append(r.Semantic.Diagnostics)
	}
	l.Append(r.Allocation)
	if r.Generation != nil {
		l.Append(r.Generation.Diagnostics)
	}
	return l
}

// Success reports whether the program parsed, checked and lowered without errors. Warnings do not
// count.
func (r *Result) Success() bool {
	return r.Parse != nil && r.Parse.Success && r.Generation != nil && !r.Diagnostics().Failed()
}

func (r *Result) Assembly() string {
	if r.Generation == nil {
		return ""
	}
	return r.Generation.Assembly
}

type Compiler struct {
	cfg    *config.Config
	layout allocation.Layout
	table  *grammar.Table
	logger *log.Logger
}

// New prepares a compiler: the grammar table is built or loaded once and shared by every
// compilation. A nil logger disables logging.
func New(cfg *config.Config, logger *log.Logger) (*Compiler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(ioutil.Discard, "", 0)
	}
	layout, _ := allocation.ParseLayout(cfg.Layout)
	c := &Compiler{cfg: cfg, layout: layout, logger: logger}
	table, err := c.loadTable()
	if err != nil {
		return nil, err
	}
	c.table = table
	return c, nil
}

func (c *Compiler) loadTable() (*grammar.Table, error) {
	if c.cfg.Grammar.Table == "" {
		c.logger.Println("compiler: build the built-in moon grammar table")
		return grammar.Moon()
	}
	c.logger.Printf("compiler: load grammar table %s and %s", c.cfg.Grammar.Table, c.cfg.Grammar.FirstFollow)
	table, err := os.Open(c.cfg.Grammar.Table)
	if err != nil {
		return nil, errors.Wrap(err, "compiler: open grammar table")
	}
	defer table.Close()
	firstFollow, err := os.Open(c.cfg.Grammar.FirstFollow)
	if err != nil {
		return nil, errors.Wrap(err, "compiler: open first/follow sets")
	}
	defer firstFollow.Close()
	return grammar.LoadCSV(table, firstFollow)
}

func (c *Compiler) Table() *grammar.Table {
	return c.table
}

// Compile runs the pipeline over the source in rd. Bad source never makes an error: it shows up in
// the result's syntax errors and diagnostics. The symbol table pass runs whenever the parse built a
// tree; code is only generated for a program without syntax or semantic errors.
func (c *Compiler) Compile(rd io.Reader) (*Result, error) {
	result := &Result{}
	c.logger.Println("compiler: start tokenizer")
	tokenizer := &lexer.Tokenizer{}
	tokens, err := tokenizer.Tokenize(rd)
	if err != nil {
		return nil, err
	}
	result.Tokens = tokens
	c.logger.Println("compiler: start parser")
	result.Parse, err = parser.New(c.table, tokens).Parse()
	if err != nil {
		return nil, err
	}
	tree := result.Parse.Tree
	if tree.Root == ast.NoNode {
		c.logger.Println("compiler: no tree was built, stop")
		return result, nil
	}
	c.logger.Println("compiler: start building symbol tables")
	result.Semantic = semantic.Build(tree)
	c.logger.Println("compiler: start allocation")
	result.Allocation = allocation.Compute(tree, result.Semantic.Global, c.layout)
	if !result.Parse.Success || result.Semantic.Diagnostics.Failed() || result.Allocation.Failed() {
		c.logger.Println("compiler: errors found, skip code generation")
		return result, nil
	}
	c.logger.Println("compiler: start generating moon code")
	result.Generation, err = generation.Generate(tree, result.Semantic,
		generation.Options{Entry: c.cfg.Entry, Layout: c.layout})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CompileFile compiles the file at path and writes the artifacts selected by the config next to it,
// or into the configured output directory. The .moon file is only written for a successful
// compilation.
func (c *Compiler) CompileFile(path string) (*Result, error) {
	c.logger.Printf("compiler: compile %s", path)
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "compiler: open %s", path)
	}
	defer f.Close()
	result, err := c.Compile(f)
	if err != nil {
		return nil, errors.Wrapf(err, "compiler: %s", path)
	}
	result.Path = path
	dir := c.cfg.Output.Dir
	if dir == "" {
		dir = filepath.Dir(path)
	}
	base := filepath.Join(dir, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	type artifact struct {
		ext     string
		enabled bool
		content func() string
	}
	artifacts := []artifact{
		{ExtLexErrors, true, result.LexErrors},
		{ExtDerivation, c.cfg.Output.Derivation, result.Parse.TraceString},
		{ExtSyntaxErrors, true, result.Parse.ErrorsString},
		{ExtAST, c.cfg.Output.AST, result.Parse.Tree.String},
		{ExtSymbolTables, c.cfg.Output.SymbolTable && result.Semantic != nil, func() string {
			return semantic.Dump(result.Semantic.Global)
		}},
		{ExtSemanticErrors, result.Semantic != nil, func() string { return result.Diagnostics().String() }},
		{ExtMoon, result.Success(), result.Assembly},
	}
	for _, a := range artifacts {
		if !a.enabled {
			continue
		}
		if err := writeFile(base+a.ext, a.content()); err != nil {
			return nil, err
		}
		result.Outputs = append(result.Outputs, base+a.ext)
	}
	return result, nil
}

// CompilePath compiles path, or every source file directly inside it when it is a directory, in
// name order.
func (c *Compiler) CompilePath(path string) ([]*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "compiler: stat %s", path)
	}
	files := []string{path}
	if info.IsDir() {
		files, err = filepath.Glob(filepath.Join(path, "*"+SourceExt))
		if err != nil {
			return nil, errors.Wrapf(err, "compiler: list %s", path)
		}
		sort.Strings(files)
	}
	var results []*Result
	for _, file := range files {
		result, err := c.CompileFile(file)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

// Execute assembles the generated program and runs it on the Moon machine. It returns the number of
// executed instructions.
func Execute(assembly string, run config.Run, in io.Reader, out io.Writer) (int, error) {
	program, err := moon.Assemble(strings.NewReader(assembly))
	if err != nil {
		return 0, err
	}
	m, err := moon.NewMachine(program, run.Memory, in, out)
	if err != nil {
		return 0, err
	}
	m.MaxSteps = run.Steps
	err = m.Run()
	return m.Steps(), err
}

func writeFile(path, content string) error {
	err := ioutil.WriteFile(path, []byte(content), 0644)
	return errors.Wrapf(err, "compiler: write %s", path)
}

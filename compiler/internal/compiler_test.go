package internal

import (
	"bytes"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xiaobogaga/moonc/compiler/internal/config"
	"github.com/xiaobogaga/moonc/compiler/internal/lexer"
	"github.com/xiaobogaga/moonc/compiler/internal/testcase"
)

const scenarioA = "func main() -> void { var x: integer; x := 5; write(x); }"

func newCompiler(t *testing.T, cfg *config.Config) *Compiler {
	c, err := New(cfg, nil)
	require.Nil(t, err)
	return c
}

func TestCompile_Scenarios(t *testing.T) {
	cases, err := testcase.Load("testdata/scenarios.md")
	require.Nil(t, err)
	c := newCompiler(t, config.Default())
	for _, data := range cases {
		result, err := c.Compile(strings.NewReader(data.Source))
		require.Nil(t, err, data.Name)
		if data.SyntaxErrors != nil {
			assert.Equal(t, *data.SyntaxErrors, result.Parse.ErrorsString(), data.Name)
		}
		if data.Diagnostics != nil {
			assert.Equal(t, *data.Diagnostics, result.Diagnostics().String(), data.Name)
		}
		if data.Output == nil {
			continue
		}
		require.True(t, result.Success(), data.Name)
		out := &bytes.Buffer{}
		_, err = Execute(result.Assembly(), config.Default().Run, strings.NewReader(data.Input), out)
		require.Nil(t, err, data.Name)
		assert.Equal(t, *data.Output, strings.Replace(out.String(), "\r\n", "\n", -1), data.Name)
	}
}

func TestCompile_Stages(t *testing.T) {
	c := newCompiler(t, config.Default())

	result, err := c.Compile(strings.NewReader(scenarioA))
	require.Nil(t, err)
	assert.True(t, result.Success())
	assert.Equal(t, "", result.LexErrors())
	assert.Contains(t, result.Assembly(), "main_x  res 4\n")

	result, err = c.Compile(strings.NewReader("func main() -> void { write(1); } @"))
	require.Nil(t, err)
	assert.False(t, result.Success())
	assert.Equal(t, "Lexical error: Invalid character: \"@\": line 1.\n", result.LexErrors())
	assert.Nil(t, result.Generation)
	assert.Equal(t, "", result.Assembly())

	result, err = c.Compile(strings.NewReader("struct A { };\nstruct A { };\nfunc main() -> void { }"))
	require.Nil(t, err)
	assert.True(t, result.Parse.Success)
	assert.NotNil(t, result.Semantic)
	assert.Nil(t, result.Generation)
	assert.False(t, result.Success())

	result, err = c.Compile(strings.NewReader(""))
	require.Nil(t, err)
	assert.False(t, result.Success())
	assert.Equal(t, "ERROR - Missing entry function: main on line 0.\n", result.Diagnostics().String())
}

const counterProgram = `struct Counter {
  public let count: integer;
  public func bump(by: integer) -> void;
};
impl Counter {
  func bump(by: integer) -> void { count := count + by; }
}
func twice(n: integer) -> integer { return(n * 2); }
func main() -> void {
  var c: Counter;
  var a: integer[2];
  c.count := 1;
  c.bump(twice(2));
  a[1] := c.count;
  if (a[1] > 3) then write(a[1]); else write(0);;
  while (a[1] > 0) { a[1] := a[1] - 1; };
}`

// Dropping any single token leaves recovery with short families; the later passes must cope.
func TestCompile_MissingToken(t *testing.T) {
	tokens, err := (&lexer.Tokenizer{}).Tokenize(strings.NewReader(counterProgram))
	require.Nil(t, err)
	var lexemes []string
	for _, token := range tokens {
		if token.Kind != lexer.EOF {
			lexemes = append(lexemes, token.Lexeme)
		}
	}
	sources := []string{"func main() -> void  var q: integer; q := 1; }"}
	for i := range lexemes {
		rest := append(append([]string{}, lexemes[:i]...), lexemes[i+1:]...)
		sources = append(sources, strings.Join(rest, " "))
	}
	c := newCompiler(t, config.Default())
	for _, source := range sources {
		assert.NotPanics(t, func() {
			result, err := c.Compile(strings.NewReader(source))
			if err == nil {
				assert.NotNil(t, result, source)
			}
		}, source)
	}

	result, err := c.Compile(strings.NewReader(sources[0]))
	require.Nil(t, err)
	assert.False(t, result.Success())
	assert.NotEmpty(t, result.Parse.ErrorsString())
}

func TestCompile_Entry(t *testing.T) {
	cfg := config.Default()
	cfg.Entry = "start"
	c := newCompiler(t, cfg)
	result, err := c.Compile(strings.NewReader("func start() -> void { write(7); }"))
	require.Nil(t, err)
	require.True(t, result.Success())
	out := &bytes.Buffer{}
	_, err = Execute(result.Assembly(), cfg.Run, strings.NewReader(""), out)
	require.Nil(t, err)
	assert.Equal(t, "7\r\n", out.String())

	result, err = c.Compile(strings.NewReader(scenarioA))
	require.Nil(t, err)
	assert.False(t, result.Success())
	assert.Equal(t, "ERROR - Missing entry function: start on line 0.\n", result.Diagnostics().String())
}

func TestCompileFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "simple.src")
	require.Nil(t, ioutil.WriteFile(path, []byte(scenarioA), 0644))
	c := newCompiler(t, config.Default())
	result, err := c.CompileFile(path)
	require.Nil(t, err)
	require.True(t, result.Success())
	base := filepath.Join(dir, "simple")
	assert.Equal(t, []string{
		base + ExtLexErrors,
		base + ExtDerivation,
		base + ExtSyntaxErrors,
		base + ExtAST,
		base + ExtSymbolTables,
		base + ExtSemanticErrors,
		base + ExtMoon,
	}, result.Outputs)
	moon, err := ioutil.ReadFile(base + ExtMoon)
	require.Nil(t, err)
	assert.Equal(t, result.Assembly(), string(moon))
	ast, err := ioutil.ReadFile(base + ExtAST)
	require.Nil(t, err)
	assert.True(t, strings.HasPrefix(string(ast), "PROG\n"))

	// A failed compilation writes no assembly, and disabled artifacts are skipped.
	cfg := config.Default()
	cfg.Output.Dir = t.TempDir()
	cfg.Output.Derivation = false
	cfg.Output.AST = false
	require.Nil(t, ioutil.WriteFile(path, []byte("func main() -> void { write(1) }"), 0644))
	result, err = newCompiler(t, cfg).CompileFile(path)
	require.Nil(t, err)
	assert.False(t, result.Success())
	base = filepath.Join(cfg.Output.Dir, "simple")
	assert.Equal(t, []string{
		base + ExtLexErrors,
		base + ExtSyntaxErrors,
		base + ExtSymbolTables,
		base + ExtSemanticErrors,
	}, result.Outputs)
	_, err = os.Stat(base + ExtMoon)
	assert.True(t, os.IsNotExist(err))

	_, err = c.CompileFile(filepath.Join(dir, "missing.src"))
	assert.NotNil(t, err)
}

func TestCompilePath(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"b.src":     scenarioA,
		"a.src":     "func main() -> void { write(1); }",
		"notes.txt": "not moon",
	} {
		require.Nil(t, ioutil.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	results, err := newCompiler(t, config.Default()).CompilePath(dir)
	require.Nil(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, filepath.Join(dir, "a.src"), results[0].Path)
	assert.Equal(t, filepath.Join(dir, "b.src"), results[1].Path)
	for _, result := range results {
		assert.True(t, result.Success(), result.Path)
	}
}

func TestNew_CSVGrammar(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Grammar.Table = filepath.Join(dir, "ll1.csv")
	cfg.Grammar.FirstFollow = filepath.Join(dir, "ll1ff.csv")

	builtin := newCompiler(t, config.Default())
	tf, err := os.Create(cfg.Grammar.Table)
	require.Nil(t, err)
	ff, err := os.Create(cfg.Grammar.FirstFollow)
	require.Nil(t, err)
	require.Nil(t, builtin.Table().WriteCSV(tf, ff))
	require.Nil(t, tf.Close())
	require.Nil(t, ff.Close())

	loaded := newCompiler(t, cfg)
	want, err := builtin.Compile(strings.NewReader(scenarioA))
	require.Nil(t, err)
	got, err := loaded.Compile(strings.NewReader(scenarioA))
	require.Nil(t, err)
	assert.True(t, got.Success())
	assert.Equal(t, want.Assembly(), got.Assembly())

	cfg.Grammar.Table = filepath.Join(dir, "missing.csv")
	_, err = New(cfg, nil)
	assert.NotNil(t, err)
}

func TestCompile_Logging(t *testing.T) {
	bf := &bytes.Buffer{}
	c, err := New(config.Default(), log.New(bf, "", 0))
	require.Nil(t, err)
	_, err = c.Compile(strings.NewReader(scenarioA))
	require.Nil(t, err)
	for _, stage := range []string{"tokenizer", "parser", "building symbol tables", "allocation", "generating moon code"} {
		assert.Contains(t, bf.String(), "compiler: start "+stage)
	}
}

func TestExecute_Errors(t *testing.T) {
	_, err := Execute("        bogus r1", config.Default().Run, strings.NewReader(""), &bytes.Buffer{})
	assert.NotNil(t, err)

	run := config.Default().Run
	run.Steps = 10
	steps, err := Execute("L       j L", run, strings.NewReader(""), &bytes.Buffer{})
	assert.NotNil(t, err)
	assert.Equal(t, 10, steps)
}

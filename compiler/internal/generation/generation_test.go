package generation

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xiaobogaga/moonc/compiler/internal/allocation"
	"github.com/xiaobogaga/moonc/compiler/internal/ast"
	"github.com/xiaobogaga/moonc/compiler/internal/grammar"
	"github.com/xiaobogaga/moonc/compiler/internal/lexer"
	"github.com/xiaobogaga/moonc/compiler/internal/parser"
	"github.com/xiaobogaga/moonc/compiler/internal/semantic"
	"github.com/xiaobogaga/moonc/moon"
)

func compile(t *testing.T, source string, layout allocation.Layout) *Result {
	tokenizer := &lexer.Tokenizer{}
	tokens, err := tokenizer.Tokenize(strings.NewReader(source))
	require.Nil(t, err)
	table, err := grammar.Moon()
	require.Nil(t, err)
	parsed, err := parser.New(table, tokens).Parse()
	require.Nil(t, err)
	require.True(t, parsed.Success, parsed.ErrorsString())
	sem := semantic.Build(parsed.Tree)
	require.False(t, sem.Diagnostics.Failed(), sem.Diagnostics.String())
	require.Empty(t, allocation.Compute(parsed.Tree, sem.Global, layout).Items())
	result, err := Generate(parsed.Tree, sem, Options{Layout: layout})
	require.Nil(t, err)
	return result
}

func execute(t *testing.T, assembly, input string) string {
	program, err := moon.Assemble(strings.NewReader(assembly))
	require.Nil(t, err, assembly)
	out := &bytes.Buffer{}
	m, err := moon.NewMachine(program, moon.DefaultMemorySize, strings.NewReader(input), out)
	require.Nil(t, err)
	require.Nil(t, m.Run(), assembly)
	return out.String()
}

func TestGenerate_ScenarioA(t *testing.T) {
	result := compile(t, "func main() -> void { var x: integer; x := 5; write(x); }", allocation.InheritedFirst)
	assert.Empty(t, result.Diagnostics.Items())
	expected := `        % function main
        entry
main    nop
        addi r2, r0, 5
        sw t1(r0), r2
        lw r2, t1(r0)
        sw main_x(r0), r2
        lw r1, main_x(r0)
        jl r15, putint
        addi r1, r0, nl
        jl r15, putstr
        hlt
nl      db 13, 10, 0
        align
main_x  res 4
t1      res 4
`
	assert.Equal(t, expected, result.Assembly)
	assert.Equal(t, "5\r\n", execute(t, result.Assembly, ""))
}

func TestGenerate_ScenarioB(t *testing.T) {
	result := compile(t, "func main() -> void { var a: integer[2][3]; a[1][2] := 7; write(a[1][2]); }", allocation.InheritedFirst)
	assert.Empty(t, result.Diagnostics.Items())
	assert.Contains(t, result.Assembly, "main_a  res 24\n")
	assert.Contains(t, result.Assembly, "        addi r3, r0, 20\n        sw main_a(r3), r2\n")
	assert.Contains(t, result.Assembly, "        addi r1, r0, 20\n        lw r1, main_a(r1)\n")
	assert.NotContains(t, result.Assembly, "muli")
	assert.Equal(t, "7\r\n", execute(t, result.Assembly, ""))
}

func TestGenerate_Programs(t *testing.T) {
	testData := []struct {
		name   string
		source string
		input  string
		output string
	}{
		{
			name: "calls",
			source: `func add3(a: integer, b: integer, c: integer) -> integer {
  return(a + b + c);
}
func main() -> void {
  var x: integer;
  x := add3(1, 2, add3(3, 4, 5));
  write(x);
  write(-x * 2);
}`,
			output: "15\r\n-30\r\n",
		},
		{
			name: "control flow",
			source: `func main() -> void {
  var i: integer;
  var s: integer;
  i := 1;
  s := 0;
  while (i <= 10) {
    if (i == 5) then s := s + 100; else s := s + i;;
    i := i + 1;
  };
  write(s);
  write(!0 & 3);
  write(0 | 0);
  write(!5);
  write(7 / 2 - 1);
  if (s <> 150) then write(1); else { write(2); write(3); };
}`,
			output: "150\r\n1\r\n0\r\n0\r\n2\r\n2\r\n3\r\n",
		},
		{
			name: "arrays",
			source: `func sum(a: integer[5]) -> integer {
  var i: integer;
  var s: integer;
  i := 0;
  s := 0;
  while (i < 5) {
    s := s + a[i];
    i := i + 1;
  };
  a[0] := 99;
  return(s);
}
func main() -> void {
  var arr: integer[5];
  var m: integer[2][3];
  var i: integer;
  i := 0;
  while (i < 5) { arr[i] := i * i; i := i + 1; };
  write(sum(arr));
  write(arr[0]);
  m[1][2] := 42;
  m[0][1] := 7;
  i := 1;
  write(m[i][i + 1] + m[0][i]);
}`,
			output: "30\r\n0\r\n49\r\n",
		},
		{
			name: "methods",
			source: `struct Counter {
  public let count: integer;
  public let step: integer;
  public func bump() -> void;
  public func get() -> integer;
};
struct Named inherits Counter {
  public let id: integer;
  public func describe() -> integer;
};
impl Counter {
  func bump() -> void { count := count + step; }
  func get() -> integer { return(count); }
}
impl Named {
  func describe() -> integer { bump(); return(id * 1000 + get()); }
}
func main() -> void {
  var c: Counter;
  var n: Named;
  c.count := 1;
  c.step := 2;
  c.bump();
  c.bump();
  write(c.get());
  n.count := 10;
  n.step := 5;
  n.id := 3;
  write(n.describe());
  write(n.count);
}`,
			output: "5\r\n3015\r\n15\r\n",
		},
		{
			name:   "read",
			source: "func main() -> void { var a: integer[2]; read(a[1]); read(a[0]); write(a[0] - a[1]); }",
			input:  "4 10",
			output: "6\r\n",
		},
		{
			name:   "large literals",
			source: "func main() -> void { write(100000); write(-7); write(-100000); }",
			output: "100000\r\n-7\r\n-100000\r\n",
		},
	}
	for _, data := range testData {
		result := compile(t, data.source, allocation.InheritedFirst)
		assert.Empty(t, result.Diagnostics.Items(), data.name)
		assert.Equal(t, data.output, execute(t, result.Assembly, data.input), data.name)
	}
}

func TestGenerate_Layouts(t *testing.T) {
	source := `struct Base { public let b: integer; };
struct Derived inherits Base { public let d: integer; };
func main() -> void { var o: Derived; o.b := 1; o.d := 2; write(o.b + o.d); }`
	result := compile(t, source, allocation.InheritedFirst)
	assert.Empty(t, result.Diagnostics.Items())
	assert.Equal(t, "3\r\n", execute(t, result.Assembly, ""))

	result = compile(t, source, allocation.OwnFieldsOnly)
	require.NotEmpty(t, result.Diagnostics.Items())
	assert.Equal(t, "UNSUPPORTED - inherited member b needs the inherited-first layout on line 3.",
		result.Diagnostics.Items()[0].String())
}

func TestGenerate_Unsupported(t *testing.T) {
	testData := []struct {
		source string
		diags  []string
	}{
		{
			"func main() -> void { var x: float; x := 1.5 + 2.5; write(x); }",
			[]string{
				"UNSUPPORTED - float arithmetic on line 1.",
				"UNSUPPORTED - float output on line 1.",
			},
		},
		{
			"func r(n: integer) -> integer { return(r(n)); }\nfunc main() -> void { write(r(1)); }",
			[]string{"UNSUPPORTED - recursive call: r on line 1."},
		},
		{
			"func f(n: integer) -> integer { return(g(n)); }\nfunc g(n: integer) -> integer { return(f(n)); }\nfunc main() -> void { write(f(3)); }",
			[]string{
				"UNSUPPORTED - recursive call: g on line 1.",
				"UNSUPPORTED - recursive call: f on line 2.",
			},
		},
		{
			"struct C { public func a() -> void; public func b() -> void; };\nimpl C { func a() -> void { b(); } func b() -> void { a(); } }\nfunc main() -> void { var c: C; c.a(); }",
			[]string{
				"UNSUPPORTED - recursive call: C::b on line 2.",
				"UNSUPPORTED - recursive call: C::a on line 2.",
			},
		},
		{
			"func f(a: integer[]) -> integer { return(1); }\nfunc main() -> void { var b: integer[2]; write(f(b)); }",
			[]string{"UNSUPPORTED - by-reference array parameter: a on line 2."},
		},
		{
			"struct P { public let v: integer; };\nfunc mk() -> P { var p: P; return(p); }\nfunc main() -> void { }",
			[]string{"UNSUPPORTED - object-valued return on line 2."},
		},
		{
			"func main() -> void {\n write(y);\n}",
			[]string{"UNSUPPORTED - undeclared variable: y on line 2."},
		},
		{
			"func start() -> void { }",
			[]string{"ERROR - Missing entry function: main on line 0."},
		},
	}
	for _, data := range testData {
		result := compile(t, data.source, allocation.InheritedFirst)
		var got []string
		for _, d := range result.Diagnostics.Items() {
			got = append(got, d.String())
		}
		assert.Equal(t, data.diags, got, data.source)
	}
}

func TestGenerate_UniqueNames(t *testing.T) {
	source := "func add() -> void { } func t1() -> void { } func main() -> void { add(); t1(); write(1); }"
	result := compile(t, source, allocation.InheritedFirst)
	assert.Empty(t, result.Diagnostics.Items())
	assert.Contains(t, result.Assembly, "add_1   sw add_1_link(r0), r15\n")
	assert.Contains(t, result.Assembly, "t1      sw t1_link(r0), r15\n")
	assert.Contains(t, result.Assembly, "t2      res 4\n")
	assert.Equal(t, "1\r\n", execute(t, result.Assembly, ""))

	// Every run starts its own counters.
	again := compile(t, source, allocation.InheritedFirst)
	assert.Equal(t, result.Assembly, again.Assembly)
}

func TestRegisterPool(t *testing.T) {
	pool := newRegisterPool()
	assert.Equal(t, 12, pool.size())
	before := pool.snapshot()
	a, err := pool.get()
	require.Nil(t, err)
	b, err := pool.get()
	require.Nil(t, err)
	assert.Equal(t, []string{"r2", "r3"}, []string{a, b})
	assert.False(t, pool.same(before))
	pool.put(b)
	pool.put(a)
	assert.True(t, pool.same(before))
	pool.put(b)
	assert.False(t, pool.same(before))

	for pool.size() > 0 {
		_, err = pool.get()
		require.Nil(t, err)
	}
	_, err = pool.get()
	assert.NotNil(t, err)
}

func TestGenerator_Balance(t *testing.T) {
	tree := ast.NewTree()
	node := tree.NewNode("EXPR", nil)
	g := &generator{tree: tree, pool: newRegisterPool()}
	before := g.pool.snapshot()
	g.get()
	g.balanced(node, before)
	require.NotNil(t, g.err)
	assert.Contains(t, g.err.Error(), "register pool unbalanced after EXPR")

	g = &generator{tree: tree, pool: newRegisterPool()}
	before = g.pool.snapshot()
	g.put(g.get())
	g.balanced(node, before)
	assert.Nil(t, g.err)
}

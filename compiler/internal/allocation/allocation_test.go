package allocation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xiaobogaga/moonc/compiler/internal/ast"
	"github.com/xiaobogaga/moonc/compiler/internal/grammar"
	"github.com/xiaobogaga/moonc/compiler/internal/lexer"
	"github.com/xiaobogaga/moonc/compiler/internal/parser"
	"github.com/xiaobogaga/moonc/compiler/internal/semantic"
)

func build(t *testing.T, content string) (*ast.Tree, *semantic.Scope) {
	tokenizer := &lexer.Tokenizer{}
	tokens, err := tokenizer.Tokenize(strings.NewReader(content))
	require.Nil(t, err)
	table, err := grammar.Moon()
	require.Nil(t, err)
	parsed, err := parser.New(table, tokens).Parse()
	require.Nil(t, err)
	require.True(t, parsed.Success, parsed.ErrorsString())
	return parsed.Tree, semantic.Build(parsed.Tree).Global
}

const scenarioC = `struct Base { public let b: integer; };
struct Derived inherits Base { public let d: float; };`

func TestCompute_ScenarioC(t *testing.T) {
	testData := []struct {
		layout Layout
		offset int
	}{
		{InheritedFirst, 4},
		{OwnFieldsOnly, 0},
	}
	for _, data := range testData {
		tree, global := build(t, scenarioC)
		diags := Compute(tree, global, data.layout)
		assert.Empty(t, diags.Items())
		derived := global.Class("Derived")
		assert.Equal(t, 8, derived.MemSize, data.layout)
		assert.Equal(t, 4, global.Class("Base").MemSize)
		d := derived.Scope.Data("d")
		assert.Equal(t, 4, d.MemSize)
		assert.Equal(t, data.offset, d.MemOffset, data.layout)
		assert.Equal(t, 0, global.Class("Base").Scope.Data("b").MemOffset)
	}
}

func TestCompute_FieldsAreContiguous(t *testing.T) {
	content := `struct A inherits B, C {
  public let x: integer[2][3];
  public let y: B;
  private let z: float[4][];
  public let w: C[2];
};
struct B { public let p: integer; public let q: float; };
struct C { public let r: integer[3]; };`
	tree, global := build(t, content)
	diags := Compute(tree, global, InheritedFirst)
	assert.Empty(t, diags.Items())
	assert.Equal(t, 8, global.Class("B").MemSize)
	assert.Equal(t, 12, global.Class("C").MemSize)
	a := global.Class("A")
	testData := []struct {
		field  string
		size   int
		offset int
	}{
		{"x", 24, 20},
		{"y", 8, 44},
		{"z", 0, 52},
		{"w", 24, 52},
	}
	for _, data := range testData {
		field := a.Scope.Data(data.field)
		require.NotNil(t, field, data.field)
		assert.Equal(t, data.size, field.MemSize, data.field)
		assert.Equal(t, data.offset, field.MemOffset, data.field)
	}
	assert.Equal(t, 20+24+8+0+24, a.MemSize)
}

func TestCompute_RecursiveLayout(t *testing.T) {
	content := "struct A { public let b: B; };\nstruct B { public let a: A; public let n: integer; };"
	tree, global := build(t, content)
	diags := Compute(tree, global, InheritedFirst)
	require.Len(t, diags.Items(), 1)
	assert.Equal(t, "ERROR - Recursive class layout: A on line 1.", diags.Items()[0].String())
	assert.Equal(t, 4, global.Class("B").MemSize)
	assert.Equal(t, 4, global.Class("A").MemSize)
}

func TestStrides_ScenarioB(t *testing.T) {
	a := semantic.Variable{Type: semantic.IntegerType, Dims: []string{"2", "3"}}
	strides := Strides(a)
	assert.Equal(t, []int{3, 1}, strides)
	offset := 0
	for i, index := range []int{1, 2} {
		offset += index * strides[i] * semantic.WordSize
	}
	assert.Equal(t, 20, offset)
	assert.Equal(t, []int{12, 4, 1}, Strides(semantic.Variable{Dims: []string{"2", "3", "4"}}))
	assert.Empty(t, Strides(semantic.Variable{Type: semantic.FloatType}))
}

func TestSizes(t *testing.T) {
	global := semantic.NewScope(semantic.GlobalScope, nil, nil)
	p := semantic.NewClass("P", 1, nil, global)
	p.MemSize = 12
	global.Add(p)
	testData := []struct {
		v     semantic.Variable
		count int
		size  int
	}{
		{semantic.Variable{Type: semantic.IntegerType}, 1, 4},
		{semantic.Variable{Type: semantic.FloatType, Dims: []string{"2", "5"}}, 10, 40},
		{semantic.Variable{Type: semantic.IntegerType, Dims: []string{"2", ""}}, 0, 0},
		{semantic.Variable{Type: "P", Dims: []string{"3"}}, 3, 36},
		{semantic.Variable{Type: "Q"}, 1, 0},
	}
	for _, data := range testData {
		assert.Equal(t, data.count, Count(data.v), data.v.String())
		assert.Equal(t, data.size, Size(global, data.v), data.v.String())
	}
}

func TestParseLayout(t *testing.T) {
	layout, err := ParseLayout("")
	require.Nil(t, err)
	assert.Equal(t, InheritedFirst, layout)
	layout, err = ParseLayout("own-fields-only")
	require.Nil(t, err)
	assert.Equal(t, OwnFieldsOnly, layout)
	_, err = ParseLayout("packed")
	assert.NotNil(t, err)
}

package testcase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const document = `# Scenarios

Prose around the tests is ignored.

~~~
not a test either
~~~

## Test: write
~~~moon
func main() -> void { write(1); }
~~~
~~~output
1
~~~

## Notes

## Test: read
~~~moon
func main() -> void { var x: integer; read(x); write(x); }
~~~
~~~input
4
~~~
~~~output
4
~~~
~~~diagnostics
~~~
`

func TestExtract(t *testing.T) {
	cases, err := Extract([]byte(document))
	require.Nil(t, err)
	require.Len(t, cases, 2)

	assert.Equal(t, "write", cases[0].Name)
	assert.Equal(t, "func main() -> void { write(1); }\n", cases[0].Source)
	assert.Equal(t, "", cases[0].Input)
	require.NotNil(t, cases[0].Output)
	assert.Equal(t, "1\n", *cases[0].Output)
	assert.Nil(t, cases[0].Diagnostics)
	assert.Nil(t, cases[0].SyntaxErrors)

	assert.Equal(t, "read", cases[1].Name)
	assert.Equal(t, "4\n", cases[1].Input)
	require.NotNil(t, cases[1].Diagnostics)
	assert.Equal(t, "", *cases[1].Diagnostics)
}

func TestExtract_Errors(t *testing.T) {
	testData := []struct {
		content string
		err     string
	}{
		{"~~~moon\nx\n~~~\n", "moon fence outside of a test"},
		{"## Test: a\n~~~moon\nx\n~~~\n~~~moon\ny\n~~~\n", "second moon fence in test a"},
		{"## Test: a\n~~~moon\nx\n~~~\n~~~output\n1\n~~~\n~~~output\n2\n~~~\n", "second output fence in test a"},
		{"## Test: a\n~~~moon\nx\n~~~\n", "test a has no expectation"},
		{"## Test: a\n~~~output\n1\n~~~\n## Test: b\n", "test a has no moon fence"},
		{"## Test: a\n~~~moon\nx\n~~~\n~~~python\nprint()\n~~~\n", "unknown fence python in test a"},
	}
	for _, data := range testData {
		_, err := Extract([]byte(data.content))
		require.NotNil(t, err, data.content)
		assert.Contains(t, err.Error(), data.err, data.content)
	}
}

func TestLoad(t *testing.T) {
	cases, err := Load("../testdata/scenarios.md")
	require.Nil(t, err)
	assert.NotEmpty(t, cases)

	_, err = Load("../testdata/missing.md")
	assert.NotNil(t, err)
}

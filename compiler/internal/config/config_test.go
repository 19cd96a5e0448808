package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	c, err := Load(strings.NewReader(`
entry: start
layout: own-fields-only
output:
  dir: out
  ast: false
run:
  enabled: true
  steps: 500
`))
	require.Nil(t, err)
	assert.Equal(t, "start", c.Entry)
	assert.Equal(t, "own-fields-only", c.Layout)
	assert.Equal(t, "out", c.Output.Dir)
	assert.False(t, c.Output.AST)
	assert.True(t, c.Output.Derivation)
	assert.True(t, c.Output.SymbolTable)
	assert.True(t, c.Run.Enabled)
	assert.Equal(t, 500, c.Run.Steps)
	assert.Equal(t, Default().Run.Memory, c.Run.Memory)
	assert.Equal(t, Grammar{}, c.Grammar)
}

func TestLoad_Errors(t *testing.T) {
	testData := []struct {
		content string
		err     string
	}{
		{"entry: 1main", "not an identifier"},
		{"layout: packed", "unknown layout"},
		{"grammar:\n  table: ll1.csv", "must be given together"},
		{"run:\n  memory: 0", "must be positive"},
		{"colour: red", "config: parse"},
		{"entry: [", "config: parse"},
	}
	for _, data := range testData {
		_, err := Load(strings.NewReader(data.content))
		require.NotNil(t, err, data.content)
		assert.Contains(t, err.Error(), data.err, data.content)
	}
}

func TestLoadFile(t *testing.T) {
	c, err := LoadFile("")
	require.Nil(t, err)
	assert.Equal(t, Default(), c)
	assert.Contains(t, c.String(), "layout: inherited-first")

	_, err = LoadFile("./no/such/config.yaml")
	assert.NotNil(t, err)
}

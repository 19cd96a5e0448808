package util

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestIsIdentifier(t *testing.T) {
	testData := []struct {
		input string
		ret   bool
	}{
		{"a", true},
		{"abc_12", true},
		{"A1", true},
		{"", false},
		{"_a", false},
		{"1a", false},
		{"a-b", false},
	}
	for _, data := range testData {
		assert.Equal(t, data.ret, IsIdentifier(data.input), data.input)
	}
}

func TestCharacterClasses(t *testing.T) {
	assert.True(t, IsDigit('0'))
	assert.False(t, IsNonZeroDigit('0'))
	assert.True(t, IsNonZeroDigit('7'))
	assert.True(t, IsAlphanum('_'))
	assert.False(t, IsAlphanum('.'))
	assert.True(t, IsSpace('\n'))
	assert.False(t, IsLetter('_'))
}

package repl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccumulatorSingleLine(t *testing.T) {
	var a Accumulator
	in, ok := a.Feed(`"a" "b" CONCAT.`)
	assert.True(t, ok)
	assert.Equal(t, Input{Kind: Submit, Text: `"a" "b" CONCAT`}, in)
	assert.False(t, a.Pending())
}

func TestAccumulatorContinuation(t *testing.T) {
	var a Accumulator
	_, ok := a.Feed(`"a"`)
	assert.False(t, ok)
	assert.True(t, a.Pending())

	_, ok = a.Feed(`"b"`)
	assert.False(t, ok)

	in, ok := a.Feed(`CONCAT.`)
	assert.True(t, ok)
	assert.Equal(t, `"a" "b" CONCAT`, in.Text)
	assert.False(t, a.Pending())
}

func TestAccumulatorHelp(t *testing.T) {
	var a Accumulator
	in, ok := a.Feed(`\h`)
	assert.True(t, ok)
	assert.Equal(t, Help, in.Kind)

	_, ok = a.Feed(`\x`)
	assert.False(t, ok)
	assert.False(t, a.Pending())
}

func TestAccumulatorEmptyExpression(t *testing.T) {
	var a Accumulator
	_, ok := a.Feed(`.`)
	assert.False(t, ok)

	a.Feed("partial")
	a.Reset()
	assert.False(t, a.Pending())
}

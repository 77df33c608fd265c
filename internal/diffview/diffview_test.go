package diffview

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderClassifiesLines(t *testing.T) {
	before := "alpha\nbeta\ndelta\n"
	after := "alpha\ngamma\ndelta\n"

	lines := Render(before, after)
	require.NotEmpty(t, lines)

	var types []string
	for _, l := range lines {
		types = append(types, l.Type)
	}
	assert.Equal(t, []string{LineContext, LineRemoved, LineAdded, LineContext}, types)

	added, removed := Stats(lines)
	assert.Equal(t, 1, added)
	assert.Equal(t, 1, removed)
}

func TestRenderLineNumbers(t *testing.T) {
	lines := Render("a\nb\n", "a\nb\nc\n")
	require.Len(t, lines, 3)

	assert.Equal(t, LineAdded, lines[2].Type)
	assert.Equal(t, 3, lines[2].NewLine)
	assert.Zero(t, lines[2].OldLine)
}

func TestRenderIdenticalContent(t *testing.T) {
	lines := Render("same\n", "same\n")
	require.Len(t, lines, 1)
	assert.Equal(t, LineContext, lines[0].Type)
}

func TestRenderWithLimit(t *testing.T) {
	big := strings.Repeat("line\n", 60)

	lines, truncated := RenderWithLimit(big, big+"extra\n", 100)
	assert.True(t, truncated)
	assert.Nil(t, lines)

	lines, truncated = RenderWithLimit("a\n", "b\n", 100)
	assert.False(t, truncated)
	assert.NotEmpty(t, lines)
}

package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatFullContext(t *testing.T) {
	c := &Context{
		SystemPreamble: "You remember things.",
		Preferences:    "likes tea",
		RecentLines:    []string{"User: hi", "Assistant: hello"},
		SemanticLines:  []string{"User: I like tea"},
	}

	msgs := Format(c, "what do I drink?")
	require.Len(t, msgs, 5)

	assert.Equal(t, RoleSystem, msgs[0].Role)
	assert.Equal(t, "You remember things.", msgs[0].Content)

	assert.Equal(t, "## User preferences\nlikes tea", msgs[1].Content)
	assert.Equal(t, "## Recent conversation\nUser: hi\nAssistant: hello", msgs[2].Content)
	assert.Equal(t, "## Related memories\nUser: I like tea", msgs[3].Content)

	assert.Equal(t, RoleUser, msgs[4].Role)
	assert.Equal(t, "## Current question\nwhat do I drink?", msgs[4].Content)
}

func TestFormatOmitsEmptySections(t *testing.T) {
	msgs := Format(&Context{}, "hello?")
	require.Len(t, msgs, 1, "only the question remains")
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.NotContains(t, msgs[0].Content, "## User preferences")
}

func TestFormatText(t *testing.T) {
	c := &Context{
		Preferences: "likes tea",
		RecentLines: []string{"User: hi"},
	}

	text := FormatText(c, "what do I drink?")

	assert.Contains(t, text, "## User preferences\nlikes tea")
	assert.Contains(t, text, "## Recent conversation\nUser: hi")
	assert.NotContains(t, text, "## Related memories")
	assert.True(t, strings.HasSuffix(text, "## Current question\nwhat do I drink?"))
}

package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoaderFindsEmbeddedTemplates(t *testing.T) {
	loader, err := NewLoader()
	require.NoError(t, err)
	assert.Equal(t, []string{"direct", "merge", "planner", "reason", "router", "synthesis"}, loader.List())
}

func TestRenderSubstitutesVariables(t *testing.T) {
	loader, err := NewLoader()
	require.NoError(t, err)

	out, err := loader.Render("planner", map[string]string{
		"query":   "what is 2+2",
		"tools":   "- calculate",
		"context": "(empty)",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "what is 2+2")
	assert.Contains(t, out, "- calculate")
	assert.NotContains(t, out, "{{query}}")
	assert.NotContains(t, out, "{{tools}}")
}

func TestRenderUnknownTemplate(t *testing.T) {
	loader, err := NewLoader()
	require.NoError(t, err)
	_, err = loader.Render("nope", nil)
	assert.Error(t, err)
}

package toolhub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	reerrors "reagent/internal/errors"
	"reagent/internal/tools"
)

func scripted(name, description string, fn func(ctx context.Context, input string) (*tools.Result, error)) tools.Tool {
	return &tools.Func{ToolName: name, ToolDescription: description, Fn: fn}
}

func instant(name, description, content string) tools.Tool {
	return scripted(name, description, func(ctx context.Context, input string) (*tools.Result, error) {
		return &tools.Result{Content: content}, nil
	})
}

func testHub(t *testing.T) *Hub {
	t.Helper()
	return New(Config{Timeout: time.Second, MaxRetries: 0, MaxParallel: 3}, nil, nil)
}

func TestRegisterAndInventory(t *testing.T) {
	h := testHub(t)
	require.NoError(t, h.Register(Registration{
		Tool:         instant("calculate", "Evaluate math", "4"),
		Capabilities: []string{"calculate"},
	}))
	require.NoError(t, h.Register(Registration{
		Tool:   instant("search_web", "Search the web for information", "hits"),
		Source: SourceMCP,
	}))

	inv := h.Inventory()
	require.Len(t, inv, 2)
	assert.Equal(t, "calculate", inv[0].Name)
	assert.Equal(t, SourceLocal, inv[0].Source)
	// Capabilities extracted from name + description when not supplied.
	assert.Contains(t, inv[1].Capabilities, "search")
	assert.Contains(t, inv[1].Capabilities, "web")

	assert.True(t, h.Has("calculate"))
	assert.False(t, h.Has("weather"))
}

func TestRegisterValidation(t *testing.T) {
	h := testHub(t)
	assert.Error(t, h.Register(Registration{}))
	assert.Error(t, h.Register(Registration{Tool: instant("  ", "d", "x")}))
}

func TestUnregister(t *testing.T) {
	h := testHub(t)
	require.NoError(t, h.Register(Registration{Tool: instant("calculate", "math", "4")}))
	assert.True(t, h.Unregister("calculate"))
	assert.False(t, h.Unregister("calculate"))
	assert.False(t, h.Has("calculate"))
}

func TestReRegisterReplaces(t *testing.T) {
	h := testHub(t)
	require.NoError(t, h.Register(Registration{
		Tool:         instant("calculate", "math", "old"),
		Capabilities: []string{"calculate", "analyze"},
	}))
	require.NoError(t, h.Register(Registration{
		Tool:         instant("calculate", "math", "new"),
		Capabilities: []string{"calculate"},
	}))
	assert.False(t, h.Has("analyze"))

	res, err := h.ExecuteTool(context.Background(), "calculate", "")
	require.NoError(t, err)
	assert.Equal(t, "new", res.Content)
}

func TestSameNameAcrossSourcesBothKept(t *testing.T) {
	h := testHub(t)
	require.NoError(t, h.Register(Registration{
		Tool:         instant("fetch_page", "fetch a page", "local body"),
		Source:       SourceLocal,
		Capabilities: []string{"fetch"},
	}))
	require.NoError(t, h.Register(Registration{
		Tool:         instant("fetch_page", "fetch a page remotely", "remote body"),
		Source:       SourceMCP,
		Capabilities: []string{"fetch"},
	}))

	inv := h.Inventory()
	require.Len(t, inv, 2)
	assert.Equal(t, "fetch_page", inv[0].Name)
	assert.Equal(t, SourceLocal, inv[0].Source)
	assert.Equal(t, "fetch_page", inv[1].Name)
	assert.Equal(t, SourceMCP, inv[1].Source)

	assert.True(t, h.Unregister("fetch_page"), "unregister removes every source")
	assert.Empty(t, h.Inventory())
	assert.False(t, h.Has("fetch"))
}

func TestCapabilityMissWithSuggestions(t *testing.T) {
	h := testHub(t)
	require.NoError(t, h.Register(Registration{
		Tool:         instant("search_web", "search", "x"),
		Capabilities: []string{"web_search"},
	}))

	_, err := h.ExecuteCapability(context.Background(), "search", "q", nil)
	require.Error(t, err)
	assert.Equal(t, reerrors.KindCapabilityMiss, reerrors.KindOf(err))
	assert.Contains(t, err.Error(), "web_search")
}

func TestExecuteToolUnknown(t *testing.T) {
	h := testHub(t)
	_, err := h.ExecuteTool(context.Background(), "nope", "")
	assert.Equal(t, reerrors.KindCapabilityMiss, reerrors.KindOf(err))
}

func TestExtractCapabilities(t *testing.T) {
	assert.ElementsMatch(t, []string{"calculate"}, ExtractCapabilities("calculator does math"))
	assert.ElementsMatch(t, []string{"search", "web"}, ExtractCapabilities("search_web finds pages"))
	assert.ElementsMatch(t, []string{"general"}, ExtractCapabilities("frobnicator"))
	assert.ElementsMatch(t, []string{"history"}, ExtractCapabilities("conversation_history reads turns"))
}

package toolhub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reagent/internal/tools"
)

func TestRankPrefersLocalOverMCP(t *testing.T) {
	h := testHub(t)
	require.NoError(t, h.Register(Registration{
		Tool:         instant("remote_calc", "math", "r"),
		Source:       SourceMCP,
		Capabilities: []string{"calculate"},
	}))
	require.NoError(t, h.Register(Registration{
		Tool:         instant("local_calc", "math", "l"),
		Source:       SourceLocal,
		Capabilities: []string{"calculate"},
	}))

	ranked := h.rankCandidates("calculate", nil)
	require.Len(t, ranked, 2)
	assert.Equal(t, "local_calc", ranked[0].cand.Name)
}

func TestRankExcludesZeroOverlap(t *testing.T) {
	h := testHub(t)
	require.NoError(t, h.Register(Registration{
		Tool:         instant("a", "d", "x"),
		Capabilities: []string{"search"},
	}))
	assert.Empty(t, h.rankCandidates("calculate", nil))
}

func TestRankAttributeMatch(t *testing.T) {
	h := testHub(t)
	require.NoError(t, h.Register(Registration{
		Tool:         instant("fast_search", "d", "x"),
		Capabilities: []string{"search"},
		Attributes:   map[string]string{"latency": "low"},
	}))
	require.NoError(t, h.Register(Registration{
		Tool:         instant("deep_search", "d", "x"),
		Capabilities: []string{"search"},
		Attributes:   map[string]string{"latency": "high"},
	}))

	task := &TaskContext{Attributes: map[string]string{"latency": "low"}}
	ranked := h.rankCandidates("search", task)
	require.Len(t, ranked, 2)
	assert.Equal(t, "fast_search", ranked[0].cand.Name)
}

func TestRankRecencyBonus(t *testing.T) {
	h := testHub(t)
	require.NoError(t, h.Register(Registration{
		Tool:         instant("a_calc", "d", "x"),
		Capabilities: []string{"calculate"},
	}))
	require.NoError(t, h.Register(Registration{
		Tool:         instant("b_calc", "d", "x"),
		Capabilities: []string{"calculate"},
	}))

	// Name tie-break puts a_calc first before any success is recorded.
	ranked := h.rankCandidates("calculate", nil)
	assert.Equal(t, "a_calc", ranked[0].cand.Name)

	h.recordSuccess("calculate", "b_calc")
	ranked = h.rankCandidates("calculate", nil)
	assert.Equal(t, "b_calc", ranked[0].cand.Name)
}

func TestRankTieBreakPriorityThenSourceThenName(t *testing.T) {
	h := testHub(t)
	require.NoError(t, h.Register(Registration{
		Tool:         instant("zeta", "d", "x"),
		Capabilities: []string{"search"},
		Priority:     0,
	}))
	require.NoError(t, h.Register(Registration{
		Tool:         instant("alpha", "d", "x"),
		Capabilities: []string{"search"},
		Priority:     0,
	}))
	require.NoError(t, h.Register(Registration{
		Tool:         instant("beta", "d", "x"),
		Capabilities: []string{"search"},
		Priority:     1,
	}))

	ranked := h.rankCandidates("search", nil)
	require.Len(t, ranked, 3)
	assert.Equal(t, "alpha", ranked[0].cand.Name)
	assert.Equal(t, "zeta", ranked[1].cand.Name)
	assert.Equal(t, "beta", ranked[2].cand.Name)
}

func TestJaccard(t *testing.T) {
	assert.Equal(t, 1.0, jaccard([]string{"a"}, []string{"a"}))
	assert.Equal(t, 0.0, jaccard([]string{"a"}, []string{"b"}))
	assert.InDelta(t, 1.0/3, jaccard([]string{"a", "b"}, []string{"a", "c"}), 1e-9)
	assert.Equal(t, 0.0, jaccard(nil, []string{"a"}))
}

func resultWith(content string, data map[string]any) *tools.Result {
	return &tools.Result{Content: content, Data: data}
}

func TestScoreResultOrdering(t *testing.T) {
	rich := scoreResult(resultWith("a detailed answer with plenty of substance to it, covering the question end to end.", map[string]any{"results": []any{}}), &Candidate{Priority: 0})
	thin := scoreResult(resultWith("ok", nil), &Candidate{Priority: 2})
	assert.Greater(t, rich, thin)
}

func TestQualityScore(t *testing.T) {
	assert.Equal(t, 0.0, qualityScore(resultWith("x", nil)))
	assert.InDelta(t, 0.2, qualityScore(resultWith("x", map[string]any{"misc": 1})), 1e-9)
	assert.InDelta(t, 0.3, qualityScore(resultWith("x", map[string]any{"results": []any{}})), 1e-9)
}

func TestLengthScore(t *testing.T) {
	assert.Equal(t, 0.3, lengthScore(0))
	assert.Equal(t, 0.3, lengthScore(9))
	assert.Equal(t, 1.0, lengthScore(500))
	assert.Equal(t, 1.0, lengthScore(2000))
	assert.Less(t, lengthScore(5000), 1.0)
	assert.GreaterOrEqual(t, lengthScore(100000), 0.4)
}

func TestExecuteTiming(t *testing.T) {
	h := testHub(t)
	require.NoError(t, h.Register(Registration{Tool: instant("calculate", "math", "4")}))
	res, err := h.ExecuteCapability(context.Background(), "calculate", "2+2", nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.Duration.Nanoseconds(), int64(0))
}

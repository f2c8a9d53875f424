package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reagent/internal/agent"
	"reagent/internal/llm"
	"reagent/internal/prompts"
	"reagent/internal/toolhub"
	"reagent/internal/tools"
)

func testEngine(t *testing.T, mock *llm.MockClient, synthesizeWithLLM bool) (*Engine, *toolhub.Hub) {
	t.Helper()
	loader, err := prompts.NewLoader()
	require.NoError(t, err)

	hub := toolhub.New(toolhub.Config{Timeout: time.Second, MaxParallel: 3}, nil, nil)
	require.NoError(t, hub.Register(toolhub.Registration{
		Tool: tools.NewCalculator(), Capabilities: []string{"calculate"},
	}))
	require.NoError(t, hub.Register(toolhub.Registration{
		Tool: tools.NewWebSearch(), Capabilities: []string{"search"},
	}))

	engine := NewEngine(Config{
		Planner:           agent.NewPlanner(mock, loader, nil),
		Executor:          agent.NewExecutor(hub, mock, loader, nil),
		Verifier:          agent.NewVerifier(nil),
		Hub:               hub,
		Client:            mock,
		Prompts:           loader,
		SynthesizeWithLLM: synthesizeWithLLM,
	})
	return engine, hub
}

func calcPlan() string {
	return `{
		"intent": "evaluate the arithmetic expression",
		"steps": [{"id": 1, "description": "evaluate 2 + 3 * 4", "tool_type": "calculate", "method": "arithmetic"}]
	}`
}

func TestRunCalculatorFlow(t *testing.T) {
	mock := llm.NewMockClient("m").Enqueue(calcPlan())
	engine, _ := testEngine(t, mock, false)

	out, err := engine.Run(context.Background(), "what is 2 + 3 * 4", nil, "")
	require.NoError(t, err)

	assert.Equal(t, "14", out.Answer)
	assert.False(t, out.Degraded)
	require.Len(t, out.Results, 1)
	assert.True(t, out.Results[0].Success)
	require.Len(t, out.Verifications, 1)
	assert.GreaterOrEqual(t, out.Confidence, 0.7)
	assert.Contains(t, out.Reasoning, "Planned 1 step(s)")
	assert.Contains(t, out.Reasoning, "[ok]")
}

func TestRunFallbackPlanReasonsDirectly(t *testing.T) {
	// Garbage plan output forces the single "none" fallback step, which
	// the model still answers by reasoning.
	mock := llm.NewMockClient("m").
		Enqueue("no json").
		Enqueue("Paris is the capital of France.")
	engine, _ := testEngine(t, mock, false)

	out, err := engine.Run(context.Background(), "what is the capital of France?", nil, "")
	require.NoError(t, err)
	assert.True(t, out.Plan.Fallback)
	assert.False(t, out.Degraded)
	assert.Equal(t, "Paris is the capital of France.", out.Answer)
}

func TestRunFallbackPlanDegrades(t *testing.T) {
	// When the model can neither plan nor reason, the answer degrades
	// deterministically.
	mock := llm.NewMockClient("m").
		Enqueue("no json").
		EnqueueError(llmDown())
	engine, _ := testEngine(t, mock, false)

	out, err := engine.Run(context.Background(), "unanswerable", nil, "")
	require.NoError(t, err)
	assert.True(t, out.Degraded)
	assert.True(t, out.Plan.Fallback)
	assert.Equal(t, "Unable to produce an answer.", out.Answer)
}

func TestRunSynthesisPicksLastSuccess(t *testing.T) {
	plan := `{
		"intent": "two steps",
		"steps": [
			{"id": 1, "description": "evaluate 1 + 1", "tool_type": "calculate", "method": "arithmetic"},
			{"id": 2, "description": "search for go history", "tool_type": "search_web", "method": "web_search"}
		]
	}`
	mock := llm.NewMockClient("m").Enqueue(plan)
	engine, _ := testEngine(t, mock, false)

	out, err := engine.Run(context.Background(), "q", nil, "")
	require.NoError(t, err)
	require.Len(t, out.Results, 2)
	// Both succeed; the later result wins synthesis.
	assert.Equal(t, out.Results[1].Content, out.Answer)
}

func TestRunLLMSynthesis(t *testing.T) {
	mock := llm.NewMockClient("m").
		Enqueue(calcPlan()).
		Enqueue("The answer is fourteen.")
	engine, _ := testEngine(t, mock, true)

	out, err := engine.Run(context.Background(), "what is 2 + 3 * 4", nil, "")
	require.NoError(t, err)
	assert.Equal(t, "The answer is fourteen.", out.Answer)

	// Second model call was the synthesis prompt with the step result.
	calls := mock.Calls()
	require.Len(t, calls, 2)
	assert.Contains(t, calls[1].Messages[0].Content, "14")
}

func TestRunLLMSynthesisFallsBack(t *testing.T) {
	mock := llm.NewMockClient("m").
		Enqueue(calcPlan()).
		EnqueueError(llmDown())
	engine, _ := testEngine(t, mock, true)

	out, err := engine.Run(context.Background(), "what is 2 + 3 * 4", nil, "")
	require.NoError(t, err)
	assert.Equal(t, "14", out.Answer)
	assert.False(t, out.Degraded)
}

func TestRunSkippedDependencyRecorded(t *testing.T) {
	plan := `{
		"intent": "chain",
		"steps": [
			{"id": 1, "description": "frobnicate the widget", "tool_type": "broken_fetch", "method": "x"},
			{"id": 2, "description": "evaluate 2+2", "tool_type": "calculate", "method": "arithmetic", "dependencies": [1]}
		]
	}`
	// The reasoning fallback for step 1 fails too, so its dependents skip.
	mock := llm.NewMockClient("m").Enqueue(plan).EnqueueError(llmDown())
	engine, hub := testEngine(t, mock, false)
	require.NoError(t, hub.Register(toolhub.Registration{
		Tool: &tools.Func{ToolName: "broken_fetch", ToolDescription: "always fails", Fn: func(ctx context.Context, input string) (*tools.Result, error) {
			return nil, llmDown()
		}},
		Capabilities: []string{"fetch"},
	}))

	out, err := engine.Run(context.Background(), "q", nil, "")
	require.NoError(t, err)
	require.Len(t, out.Results, 2)
	assert.False(t, out.Results[0].Success)
	assert.True(t, out.Results[1].Skipped)
	assert.True(t, out.Degraded)
	assert.Contains(t, out.Reasoning, "[skipped]")
}

func TestRunHonorsDeadline(t *testing.T) {
	mock := llm.NewMockClient("m").Enqueue(calcPlan())
	engine, hub := testEngine(t, mock, false)
	require.NoError(t, hub.Register(toolhub.Registration{
		Tool: &tools.Func{ToolName: "slow_calc", ToolDescription: "slow math", Fn: func(ctx context.Context, input string) (*tools.Result, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(5 * time.Second):
				return &tools.Result{Content: "late"}, nil
			}
		}},
		Capabilities: []string{"calculate"},
	}))
	// Make the slow candidate the only one.
	hub.Unregister("calculate")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := engine.Run(ctx, "what is 2 + 3 * 4", nil, "")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFormatReasoning(t *testing.T) {
	assert.Equal(t, "Answered directly without tool use.", formatReasoning(nil, nil))

	plan := &agent.Plan{Steps: []agent.PlanStep{
		{ID: 1, Method: "arithmetic"},
		{ID: 2, ToolType: "search_web"},
	}}
	results := []agent.StepResult{
		{StepID: 1, Success: true},
		{StepID: 2, Success: false},
	}
	reasoning := formatReasoning(plan, results)
	assert.Contains(t, reasoning, "1) arithmetic [ok]")
	assert.Contains(t, reasoning, "2) search_web [failed]")
}

func llmDown() error {
	return &llmError{}
}

type llmError struct{}

func (*llmError) Error() string { return "model unavailable" }

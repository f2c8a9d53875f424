package agent

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reagent/internal/llm"
	"reagent/internal/memory"
	"reagent/internal/prompts"
	"reagent/internal/toolhub"
	"reagent/internal/tools"
)

func newTestExecutor(t *testing.T, hub *toolhub.Hub, client llm.Client) *Executor {
	t.Helper()
	loader, err := prompts.NewLoader()
	require.NoError(t, err)
	return NewExecutor(hub, client, loader, nil)
}

func builtinHub(t *testing.T, conv *memory.Conversation) *toolhub.Hub {
	t.Helper()
	hub := toolhub.New(toolhub.Config{Timeout: time.Second, MaxParallel: 3}, nil, nil)
	require.NoError(t, hub.Register(toolhub.Registration{
		Tool: tools.NewCalculator(), Capabilities: []string{"calculate"},
	}))
	require.NoError(t, hub.Register(toolhub.Registration{
		Tool: tools.NewClock(), Capabilities: []string{"time"},
	}))
	require.NoError(t, hub.Register(toolhub.Registration{
		Tool: tools.NewWebSearch(), Capabilities: []string{"search"},
	}))
	if conv != nil {
		require.NoError(t, hub.Register(toolhub.Registration{
			Tool: tools.NewHistory(conv), Capabilities: []string{"history"},
		}))
	}
	return hub
}

func TestExecuteCalculatorStep(t *testing.T) {
	exec := newTestExecutor(t, builtinHub(t, nil), nil)
	res := exec.ExecuteStep(context.Background(),
		PlanStep{ID: 1, Description: "evaluate the expression", ToolType: "calculate"},
		"what is 2 + 3 * 4", nil, nil)

	assert.True(t, res.Success)
	assert.Equal(t, "14", res.Content)
	assert.Equal(t, "calculate", res.Tool)
}

func TestExecuteReasoningStepCallsModel(t *testing.T) {
	mock := llm.NewMockClient("m").Enqueue("Paris is the capital of France.")
	exec := newTestExecutor(t, builtinHub(t, nil), mock)

	res := exec.ExecuteStep(context.Background(),
		PlanStep{ID: 1, Description: "name the capital of France", ToolType: "none"},
		"what is the capital of France?", nil, nil)

	require.True(t, res.Success)
	assert.Equal(t, "Paris is the capital of France.", res.Content)
	assert.Equal(t, "none", res.Tool)
}

func TestExecuteReasoningStepIncludesPriorFindings(t *testing.T) {
	mock := llm.NewMockClient("m").Enqueue("About 67 million people live there.")
	exec := newTestExecutor(t, builtinHub(t, nil), mock)
	prior := []StepResult{{StepID: 1, Tool: "search_web", Success: true, Content: "France's population is about 67 million."}}

	res := exec.ExecuteStep(context.Background(),
		PlanStep{ID: 2, Description: "summarize the population figure", ToolType: "none"},
		"how many people live in France?", prior, nil)

	require.True(t, res.Success)
	calls := mock.Calls()
	require.Len(t, calls, 1)
	prompt := calls[0].Messages[0].Content
	assert.Contains(t, prompt, "summarize the population figure")
	assert.Contains(t, prompt, "France's population is about 67 million.")
}

func TestExecuteReasoningStepWithoutModelFails(t *testing.T) {
	exec := newTestExecutor(t, builtinHub(t, nil), nil)
	res := exec.ExecuteStep(context.Background(),
		PlanStep{ID: 1, Description: "think", ToolType: "none"}, "q", nil, nil)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}

func TestExecuteStepDependencyGate(t *testing.T) {
	exec := newTestExecutor(t, builtinHub(t, nil), nil)
	prior := []StepResult{{StepID: 1, Success: false, Error: "boom"}}

	res := exec.ExecuteStep(context.Background(),
		PlanStep{ID: 2, Description: "use step 1 output", ToolType: "calculate", Dependencies: []int{1}},
		"q", prior, nil)

	assert.False(t, res.Success)
	assert.True(t, res.Skipped)
}

func TestExecuteStepDependencySatisfied(t *testing.T) {
	exec := newTestExecutor(t, builtinHub(t, nil), nil)
	prior := []StepResult{{StepID: 1, Success: true, Content: "the total is 21"}}

	res := exec.ExecuteStep(context.Background(),
		PlanStep{ID: 2, Description: "double it: 21 * 2", ToolType: "calculate", Dependencies: []int{1}},
		"double that", prior, nil)

	require.True(t, res.Success)
	assert.Equal(t, "42", res.Content)
}

func TestExecuteHistoryStepUsesSnapshot(t *testing.T) {
	conv := memory.NewConversation(10)
	conv.Append(memory.RoleUser, "capital of France?")
	conv.Append(memory.RoleAssistant, "Paris")
	conv.Snapshot()
	conv.Append(memory.RoleUser, "what did I just ask?")

	exec := newTestExecutor(t, builtinHub(t, conv), nil)
	res := exec.ExecuteStep(context.Background(),
		PlanStep{ID: 1, Description: "recall the previous question", ToolType: "conversation_history"},
		"what did I just ask?", nil, nil)

	require.True(t, res.Success)
	assert.Contains(t, res.Content, "capital of France?")
	assert.NotContains(t, res.Content, "just ask")
}

func TestExecuteUnknownToolFallsBackToReasoning(t *testing.T) {
	mock := llm.NewMockClient("m").Enqueue("Reasoned through it.")
	exec := newTestExecutor(t, builtinHub(t, nil), mock)

	res := exec.ExecuteStep(context.Background(),
		PlanStep{ID: 1, Description: "frobnicate the widget", ToolType: "teleport"}, "q", nil, nil)

	require.True(t, res.Success)
	assert.Equal(t, "Reasoned through it.", res.Content)
	assert.Equal(t, "none", res.Tool)
}

func TestExecuteUnknownToolExhaustedFails(t *testing.T) {
	mock := llm.NewMockClient("m").EnqueueError(context.DeadlineExceeded)
	exec := newTestExecutor(t, builtinHub(t, nil), mock)

	res := exec.ExecuteStep(context.Background(),
		PlanStep{ID: 1, Description: "frobnicate the widget", ToolType: "teleport"}, "q", nil, nil)

	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}

func TestExecuteToolFailureFallsBackToCapability(t *testing.T) {
	exec := newTestExecutor(t, builtinHub(t, nil), nil)

	// The name is unregistered, but the description infers "search",
	// which the hub serves.
	res := exec.ExecuteStep(context.Background(),
		PlanStep{ID: 1, Description: "search for capital of France", ToolType: "lookup_web"},
		"capital of France", nil, nil)

	require.True(t, res.Success)
	assert.Equal(t, "search_web", res.Tool)
	assert.NotEmpty(t, res.Content)
}

func TestExecuteStepResolvesResultPlaceholders(t *testing.T) {
	exec := newTestExecutor(t, builtinHub(t, nil), nil)
	prior := []StepResult{{StepID: 1, Success: true, Content: "21"}}

	res := exec.ExecuteStep(context.Background(),
		PlanStep{ID: 2, Description: "evaluate {step_1_result} * 2", ToolType: "calculate", Dependencies: []int{1}},
		"double it", prior, nil)

	require.True(t, res.Success)
	assert.Equal(t, "42", res.Content)
}

func TestSubstituteStepResults(t *testing.T) {
	prior := []StepResult{
		{StepID: 1, Success: true, Content: "14"},
		{StepID: 2, Success: false, Content: "bad"},
	}
	assert.Equal(t, "use 14 here", substituteStepResults("use {step_1_result} here", prior))
	// Failed and missing steps leave the placeholder alone.
	assert.Equal(t, "use {step_2_result}", substituteStepResults("use {step_2_result}", prior))
	assert.Equal(t, "use {step_9_result}", substituteStepResults("use {step_9_result}", prior))
	assert.Equal(t, "plain text", substituteStepResults("plain text", prior))
}

func TestOutputBudgetTruncation(t *testing.T) {
	hub := toolhub.New(toolhub.Config{Timeout: time.Second}, nil, nil)
	long := strings.Repeat("A full sentence of output. ", 100)
	require.NoError(t, hub.Register(toolhub.Registration{
		Tool: &tools.Func{ToolName: "search_web", ToolDescription: "search", Fn: func(ctx context.Context, input string) (*tools.Result, error) {
			return &tools.Result{Content: long}, nil
		}},
		Capabilities: []string{"search"},
	}))

	exec := newTestExecutor(t, hub, nil)
	res := exec.ExecuteStep(context.Background(),
		PlanStep{ID: 1, Description: "search for something", ToolType: "search_web"}, "q", nil, nil)

	require.True(t, res.Success)
	assert.LessOrEqual(t, len(res.Content), 500)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(res.Content), "."))
}

func TestBuildToolInput(t *testing.T) {
	tests := []struct {
		name  string
		step  PlanStep
		query string
		prior []StepResult
		want  string
	}{
		{
			name:  "calculator from query",
			step:  PlanStep{ToolType: "calculate", Description: "evaluate"},
			query: "compute 10 / 4 for me",
			want:  "10 / 4",
		},
		{
			name:  "calculator from prior result",
			step:  PlanStep{ToolType: "calculate", Description: "use previous value"},
			query: "no digits in sight",
			prior: []StepResult{{Success: true, Content: "result: 99"}},
			want:  "99",
		},
		{
			name:  "search strips instruction verbs",
			step:  PlanStep{ToolType: "search_web", Description: "search for capital of France"},
			query: "",
			want:  "capital of France",
		},
		{
			name:  "history how many",
			step:  PlanStep{ToolType: "conversation_history", Description: "count questions"},
			query: "how many questions have I asked?",
			want:  "all",
		},
		{
			name:  "history previous question",
			step:  PlanStep{ToolType: "conversation_history", Description: "recall previous question"},
			query: "",
			want:  "last_user",
		},
		{
			name:  "history last n",
			step:  PlanStep{ToolType: "conversation_history", Description: "show 3 turns"},
			query: "",
			want:  "3",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildToolInput(tt.step, tt.query, tt.prior))
		})
	}
}

func TestStripInstructionVerbs(t *testing.T) {
	assert.Equal(t, "weather in Paris", stripInstructionVerbs("look up weather in Paris?"))
	assert.Equal(t, "the Eiffel Tower", stripInstructionVerbs("Tell me about the Eiffel Tower."))
	assert.Equal(t, "plain subject", stripInstructionVerbs("plain subject"))
}

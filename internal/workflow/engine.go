// Package workflow sequences the four phases of answering a request:
// planning, execution, verification, synthesis. Verification informs
// confidence but never gates progress; synthesis always produces an
// answer, degrading deterministically when everything else failed.
package workflow

import (
	"context"
	"fmt"
	"strings"

	"reagent/internal/agent"
	"reagent/internal/llm"
	"reagent/internal/logging"
	"reagent/internal/prompts"
	"reagent/internal/toolhub"
	"reagent/internal/trace"
)

// Outcome is the workflow's full result for one request.
type Outcome struct {
	Answer        string               `json:"answer"`
	Plan          *agent.Plan          `json:"plan"`
	Results       []agent.StepResult   `json:"results"`
	Verifications []agent.Verification `json:"verifications"`
	Confidence    float64              `json:"confidence"`
	Reasoning     string               `json:"reasoning"`
	Degraded      bool                 `json:"degraded,omitempty"`
}

// Engine wires the specialist agents into the phase sequence.
type Engine struct {
	planner  *agent.Planner
	executor *agent.Executor
	verifier *agent.Verifier
	hub      *toolhub.Hub

	client  llm.Client
	prompts *prompts.Loader
	// synthesizeWithLLM asks the model to write the final answer from
	// step results; otherwise the best step result is the answer.
	synthesizeWithLLM bool

	logger logging.Logger
}

// Config assembles an Engine.
type Config struct {
	Planner           *agent.Planner
	Executor          *agent.Executor
	Verifier          *agent.Verifier
	Hub               *toolhub.Hub
	Client            llm.Client
	Prompts           *prompts.Loader
	SynthesizeWithLLM bool
	Logger            logging.Logger
}

func NewEngine(cfg Config) *Engine {
	return &Engine{
		planner:           cfg.Planner,
		executor:          cfg.Executor,
		verifier:          cfg.Verifier,
		hub:               cfg.Hub,
		client:            cfg.Client,
		prompts:           cfg.Prompts,
		synthesizeWithLLM: cfg.SynthesizeWithLLM,
		logger:            logging.OrNop(cfg.Logger),
	}
}

// Run executes the full phase sequence for query. The only error it
// returns is context expiry; every in-domain failure degrades into the
// Outcome instead.
func (e *Engine) Run(ctx context.Context, query string, task *toolhub.TaskContext, conversationContext string) (*Outcome, error) {
	rec := trace.FromContext(ctx)

	// Planning.
	plan, err := e.planner.Plan(ctx, query, e.hub.Inventory(), conversationContext)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.logger.Error("planning failed hard: %v", err)
		plan = &agent.Plan{Intent: query, Fallback: true}
	}

	// Execution, sequential in step order. parallel_groups is carried
	// in the plan but does not change scheduling.
	rec.StartTimer("execution")
	results := make([]agent.StepResult, 0, len(plan.Steps))
	for _, step := range plan.Steps {
		if ctx.Err() != nil {
			rec.EndTimer("execution")
			return nil, ctx.Err()
		}
		results = append(results, e.executor.ExecuteStep(ctx, step, query, results, task))
	}
	rec.EndTimer("execution")
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	// Verification. Findings never block synthesis.
	rec.StartTimer("verification")
	verifications := make([]agent.Verification, 0, len(results))
	for _, result := range results {
		verifications = append(verifications, e.verifier.Verify(ctx, result, results, query))
	}
	rec.EndTimer("verification")

	// Synthesis.
	rec.StartTimer("synthesis")
	answer, degraded := e.synthesize(ctx, query, results)
	rec.EndTimer("synthesis")
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	outcome := &Outcome{
		Answer:        answer,
		Plan:          plan,
		Results:       results,
		Verifications: verifications,
		Confidence:    agent.OverallConfidence(verifications),
		Reasoning:     formatReasoning(plan, results),
		Degraded:      degraded,
	}
	rec.Event(trace.PhaseSynthesis, "answer_ready", map[string]any{
		"answer":     answer,
		"confidence": outcome.Confidence,
	})
	return outcome, nil
}

// DirectAnswer asks the model to answer without any tool use, for
// requests the router classified as pure conversation.
func (e *Engine) DirectAnswer(ctx context.Context, query, conversationContext string) (string, error) {
	if e.client == nil || e.prompts == nil {
		return "", fmt.Errorf("no model available for a direct answer")
	}
	vars := map[string]string{"query": query, "context": conversationContext}
	if strings.TrimSpace(conversationContext) == "" {
		vars["context"] = "(none)"
	}
	prompt, err := e.prompts.Render("direct", vars)
	if err != nil {
		return "", err
	}
	resp, err := e.client.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	answer := strings.TrimSpace(resp.Content)
	if answer == "" {
		return "", fmt.Errorf("model produced no direct answer")
	}
	trace.FromContext(ctx).Event(trace.PhaseSynthesis, "direct_answer", map[string]any{
		"answer": answer,
	})
	return answer, nil
}

// synthesize builds the final answer with a fallback chain: model
// synthesis when enabled, then the most recent successful non-empty
// step result, then a deterministic degraded message.
func (e *Engine) synthesize(ctx context.Context, query string, results []agent.StepResult) (string, bool) {
	if e.synthesizeWithLLM && e.client != nil && e.prompts != nil && anySuccess(results) {
		if answer, ok := e.llmSynthesize(ctx, query, results); ok {
			return answer, false
		}
	}
	for i := len(results) - 1; i >= 0; i-- {
		if results[i].Success && strings.TrimSpace(results[i].Content) != "" {
			return results[i].Content, false
		}
	}
	return "Unable to produce an answer.", true
}

func (e *Engine) llmSynthesize(ctx context.Context, query string, results []agent.StepResult) (string, bool) {
	prompt, err := e.prompts.Render("synthesis", map[string]string{
		"query":   query,
		"results": formatResultsForPrompt(results),
	})
	if err != nil {
		return "", false
	}
	resp, err := e.client.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: prompt}},
	})
	if err != nil || strings.TrimSpace(resp.Content) == "" {
		e.logger.Warn("answer synthesis via model failed, falling back: %v", err)
		return "", false
	}
	return strings.TrimSpace(resp.Content), true
}

func anySuccess(results []agent.StepResult) bool {
	for _, r := range results {
		if r.Success && strings.TrimSpace(r.Content) != "" {
			return true
		}
	}
	return false
}

func formatResultsForPrompt(results []agent.StepResult) string {
	var b strings.Builder
	for _, r := range results {
		if !r.Success || strings.TrimSpace(r.Content) == "" {
			continue
		}
		fmt.Fprintf(&b, "- step %d (%s): %s\n", r.StepID, r.Tool, r.Content)
	}
	if b.Len() == 0 {
		return "(no successful results)"
	}
	return strings.TrimSpace(b.String())
}

// formatReasoning summarizes how the answer came to be, for the
// response's reasoning field.
func formatReasoning(plan *agent.Plan, results []agent.StepResult) string {
	if plan == nil || len(plan.Steps) == 0 {
		return "Answered directly without tool use."
	}
	var b strings.Builder
	if plan.Fallback {
		b.WriteString("Planning degraded to a direct answer. ")
	}
	fmt.Fprintf(&b, "Planned %d step(s): ", len(plan.Steps))
	parts := make([]string, 0, len(plan.Steps))
	for i, step := range plan.Steps {
		status := "pending"
		if i < len(results) {
			switch {
			case results[i].Skipped:
				status = "skipped"
			case results[i].Success:
				status = "ok"
			default:
				status = "failed"
			}
		}
		method := step.Method
		if method == "" {
			method = step.ToolType
		}
		parts = append(parts, fmt.Sprintf("%d) %s [%s]", step.ID, method, status))
	}
	b.WriteString(strings.Join(parts, "; "))
	return b.String()
}

package agent

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"reagent/internal/llm"
	"reagent/internal/logging"
	"reagent/internal/prompts"
	"reagent/internal/toolhub"
	"reagent/internal/tools"
	"reagent/internal/trace"
)

// toolCapability maps the built-in tool names a plan uses to the hub
// capability they are executed through. Unknown tools are invoked by
// name directly.
var toolCapability = map[string]string{
	"calculate":            "calculate",
	"get_time":             "time",
	"search_web":           "search",
	"conversation_history": "history",
	"list_files":           "filesystem",
}

// outputBudget caps step output length per tool before it enters the
// shared state, sentence-aligned.
var outputBudget = map[string]int{
	"calculate":            100,
	"get_time":             200,
	"search_web":           500,
	"conversation_history": 1000,
}

const defaultOutputBudget = 500

// Executor runs plan steps through the tool hub, reasoning directly
// with the model when a step uses no tool or every dispatch fails.
type Executor struct {
	hub     *toolhub.Hub
	client  llm.Client
	prompts *prompts.Loader
	logger  logging.Logger
}

func NewExecutor(hub *toolhub.Hub, client llm.Client, loader *prompts.Loader, logger logging.Logger) *Executor {
	return &Executor{hub: hub, client: client, prompts: loader, logger: logging.OrNop(logger)}
}

// ExecuteStep runs one step. Steps whose dependencies produced no
// successful result are skipped with a failed StepResult rather than
// executed against missing input. Tool dispatch falls back first to a
// capability inferred from the description, then to direct reasoning.
func (e *Executor) ExecuteStep(ctx context.Context, step PlanStep, query string, prior []StepResult, task *toolhub.TaskContext) StepResult {
	rec := trace.FromContext(ctx)

	if !dependenciesMet(step, prior) {
		rec.Event(trace.PhaseExecution, "step_skipped", map[string]any{
			"step": step.ID,
		})
		return StepResult{
			StepID:  step.ID,
			Tool:    step.ToolType,
			Success: false,
			Skipped: true,
			Error:   "dependencies produced no successful result",
		}
	}

	step.Description = substituteStepResults(step.Description, prior)

	if step.ToolType == "" || step.ToolType == "none" {
		return e.directReason(ctx, step, query, prior)
	}

	input := buildToolInput(step, query, prior)
	rec.Event(trace.PhaseExecution, "step_started", map[string]any{
		"step":  step.ID,
		"tool":  step.ToolType,
		"input": input,
	})

	res, err := e.dispatch(ctx, step, input, task)
	if err != nil {
		e.logger.Warn("step %d (%s) failed: %v", step.ID, step.ToolType, err)
		rec.Event(trace.PhaseExecution, "step_failed", map[string]any{
			"step":  step.ID,
			"error": err.Error(),
		})
		if ctx.Err() != nil {
			return StepResult{
				StepID:  step.ID,
				Tool:    step.ToolType,
				Success: false,
				Error:   err.Error(),
			}
		}
		// Dispatch exhausted; the model reasons the step out instead.
		rec.Event(trace.PhaseExecution, "step_reasoning_fallback", map[string]any{
			"step": step.ID,
		})
		return e.directReason(ctx, step, query, prior)
	}

	content := toolhub.TruncateAtSentence(res.Content, budgetFor(step.ToolType))
	rec.Event(trace.PhaseExecution, "step_done", map[string]any{
		"step":    step.ID,
		"tool":    res.Tool,
		"content": content,
	})
	return StepResult{
		StepID:      step.ID,
		Tool:        res.Tool,
		Content:     content,
		Data:        res.Data,
		Success:     true,
		Synthesized: res.Synthesized,
		Sources:     res.Sources,
		Cancelled:   res.Cancelled,
		Duration:    res.Duration,
	}
}

// dispatch tries the step's named tool first, then a capability
// inferred from the description.
func (e *Executor) dispatch(ctx context.Context, step PlanStep, input string, task *toolhub.TaskContext) (*toolhub.ExecutionResult, error) {
	var (
		res      *toolhub.ExecutionResult
		firstErr error
		tried    string
	)
	if capability, ok := toolCapability[step.ToolType]; ok {
		tried = capability
		res, firstErr = e.hub.ExecuteCapability(ctx, capability, input, task)
	} else {
		res, firstErr = e.hub.ExecuteTool(ctx, step.ToolType, input)
	}
	if firstErr == nil {
		return res, nil
	}
	if ctx.Err() != nil {
		return nil, firstErr
	}
	if inferred := inferCapability(step.Description); inferred != "" && inferred != tried && e.hub.Has(inferred) {
		if res, err := e.hub.ExecuteCapability(ctx, inferred, input, task); err == nil {
			return res, nil
		}
	}
	return nil, firstErr
}

// directReason carries a step out with the model alone, feeding it the
// step description and a digest of what earlier steps produced.
func (e *Executor) directReason(ctx context.Context, step PlanStep, query string, prior []StepResult) StepResult {
	rec := trace.FromContext(ctx)

	fail := func(msg string) StepResult {
		rec.Event(trace.PhaseExecution, "step_failed", map[string]any{
			"step":  step.ID,
			"error": msg,
		})
		return StepResult{StepID: step.ID, Tool: "none", Success: false, Error: msg}
	}
	if e.client == nil || e.prompts == nil {
		return fail("no model available for reasoning")
	}
	if ctx.Err() != nil {
		return fail(ctx.Err().Error())
	}

	prompt, err := e.prompts.Render("reason", map[string]string{
		"description": pickText(step.Description, query),
		"findings":    digestPrior(prior),
		"query":       query,
	})
	if err != nil {
		return fail(err.Error())
	}
	resp, err := e.client.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		e.logger.Warn("step %d reasoning failed: %v", step.ID, err)
		return fail(err.Error())
	}
	content := strings.TrimSpace(resp.Content)
	if content == "" {
		return fail("model produced no reasoning output")
	}

	content = toolhub.TruncateAtSentence(content, defaultOutputBudget)
	rec.Event(trace.PhaseExecution, "step_done", map[string]any{
		"step":    step.ID,
		"tool":    "none",
		"content": content,
	})
	return StepResult{StepID: step.ID, Tool: "none", Content: content, Success: true}
}

// digestPrior renders earlier successful results for the reasoning
// prompt, each truncated to its tool's output budget.
func digestPrior(prior []StepResult) string {
	var b strings.Builder
	for _, r := range prior {
		if !r.Success || strings.TrimSpace(r.Content) == "" {
			continue
		}
		fmt.Fprintf(&b, "- step %d (%s): %s\n", r.StepID, r.Tool,
			toolhub.TruncateAtSentence(r.Content, budgetFor(r.Tool)))
	}
	if b.Len() == 0 {
		return "(none)"
	}
	return strings.TrimSpace(b.String())
}

// capabilityKeywords maps description phrasing onto hub capabilities
// for the dispatch fallback.
var capabilityKeywords = []struct {
	keyword    string
	capability string
}{
	{"search", "search"}, {"find", "search"}, {"look up", "search"},
	{"compute", "calculate"}, {"calculat", "calculate"}, {"evaluate", "calculate"},
	{"time", "time"}, {"date", "time"}, {"clock", "time"},
	{"history", "history"}, {"conversation", "history"}, {"earlier", "history"},
	{"file", "filesystem"}, {"director", "filesystem"},
}

func inferCapability(description string) string {
	lower := strings.ToLower(description)
	for _, kw := range capabilityKeywords {
		if strings.Contains(lower, kw.keyword) {
			return kw.capability
		}
	}
	return ""
}

var stepResultPlaceholder = regexp.MustCompile(`\{step_(\d+)_result\}`)

// substituteStepResults resolves {step_<k>_result} placeholders in a
// description from earlier results. Unresolvable placeholders are left
// in place.
func substituteStepResults(description string, prior []StepResult) string {
	if !strings.Contains(description, "{step_") {
		return description
	}
	return stepResultPlaceholder.ReplaceAllStringFunc(description, func(match string) string {
		id, err := strconv.Atoi(stepResultPlaceholder.FindStringSubmatch(match)[1])
		if err != nil {
			return match
		}
		for _, r := range prior {
			if r.StepID == id && r.Success {
				return r.Content
			}
		}
		return match
	})
}

func budgetFor(tool string) int {
	if budget, ok := outputBudget[tool]; ok {
		return budget
	}
	return defaultOutputBudget
}

func dependenciesMet(step PlanStep, prior []StepResult) bool {
	if len(step.Dependencies) == 0 {
		return true
	}
	for _, dep := range step.Dependencies {
		for _, r := range prior {
			if r.StepID == dep && r.Success {
				return true
			}
		}
	}
	return false
}

// buildToolInput prepares the tool input from the step, the raw query
// and earlier results, using per-tool heuristics.
func buildToolInput(step PlanStep, query string, prior []StepResult) string {
	switch step.ToolType {
	case "calculate":
		if expr := tools.ExtractExpression(step.Description); expr != "" {
			return expr
		}
		if expr := tools.ExtractExpression(query); expr != "" {
			return expr
		}
		// Fall back to a numeric prior result so chained arithmetic
		// ("double that") still has an operand.
		for i := len(prior) - 1; i >= 0; i-- {
			if prior[i].Success {
				if expr := tools.ExtractExpression(prior[i].Content); expr != "" {
					return expr
				}
			}
		}
		return ""
	case "search_web":
		return stripInstructionVerbs(pickText(step.Description, query))
	case "conversation_history":
		return historyMode(step.Description + " " + query)
	default:
		return pickText(step.Description, query)
	}
}

func pickText(description, query string) string {
	if strings.TrimSpace(description) != "" {
		return description
	}
	return query
}

var instructionPrefixes = []string{
	"search for", "search the web for", "search",
	"find out", "find", "look up", "research", "google",
	"what is", "what are", "who is", "tell me about",
}

// stripInstructionVerbs trims leading instruction phrasing so the
// search backend sees the subject, not the command.
func stripInstructionVerbs(text string) string {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)
	for _, prefix := range instructionPrefixes {
		if strings.HasPrefix(lower, prefix+" ") {
			trimmed = strings.TrimSpace(trimmed[len(prefix):])
			break
		}
	}
	return strings.TrimRight(trimmed, "?!. ")
}

// historyMode derives the history tool mode from step text.
func historyMode(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "all"), strings.Contains(lower, "how many"),
		strings.Contains(lower, "list"), strings.Contains(lower, "everything"):
		return "all"
	case strings.Contains(lower, "last question"), strings.Contains(lower, "just ask"),
		strings.Contains(lower, "previous question"):
		return "last_user"
	}
	for _, field := range strings.Fields(lower) {
		if n, err := strconv.Atoi(field); err == nil && n > 0 {
			return strconv.Itoa(n)
		}
	}
	return "last"
}

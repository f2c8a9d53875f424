package agent

import (
	"context"
	"fmt"
	"strings"

	"reagent/internal/llm"
	"reagent/internal/logging"
	"reagent/internal/prompts"
	jsonx "reagent/internal/shared/json"
	"reagent/internal/toolhub"
	"reagent/internal/trace"
)

// coreTools are always listed in the planner prompt, ahead of whatever
// else is registered.
var coreTools = []string{"calculate", "get_time", "search_web", "conversation_history"}

const maxExtraToolsListed = 10

// Planner turns a request into a Plan. A model failure or unusable
// model output degrades to a single-step fallback plan rather than an
// error.
type Planner struct {
	client  llm.Client
	prompts *prompts.Loader
	logger  logging.Logger
}

func NewPlanner(client llm.Client, loader *prompts.Loader, logger logging.Logger) *Planner {
	return &Planner{client: client, prompts: loader, logger: logging.OrNop(logger)}
}

// Plan builds the planner prompt from the hub inventory and parses the
// model's JSON reply with tolerance for format defects.
func (p *Planner) Plan(ctx context.Context, query string, inventory []toolhub.Info, conversationContext string) (*Plan, error) {
	rec := trace.FromContext(ctx)
	rec.StartTimer("planning")
	defer rec.EndTimer("planning")

	prompt, err := p.prompts.Render("planner", map[string]string{
		"query":   query,
		"tools":   formatToolList(inventory),
		"context": orPlaceholder(conversationContext),
	})
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.logger.Warn("planner model call failed, using fallback plan: %v", err)
		rec.Event(trace.PhasePlanning, "fallback_plan", map[string]any{"reason": err.Error()})
		return fallbackPlan(query), nil
	}

	plan := &Plan{}
	if err := jsonx.UnmarshalTolerant(resp.Content, plan); err != nil || len(plan.Steps) == 0 {
		p.logger.Warn("planner output unusable, using fallback plan: %v", err)
		rec.Event(trace.PhasePlanning, "fallback_plan", map[string]any{"raw": resp.Content})
		return fallbackPlan(query), nil
	}
	p.sanitizePlan(ctx, plan, query, knownToolTypes(inventory))

	rec.Event(trace.PhasePlanning, "plan_ready", map[string]any{
		"intent": plan.Intent,
		"steps":  len(plan.Steps),
	})
	return plan, nil
}

// fallbackPlan is the single reasoning step used when planning degrades.
func fallbackPlan(query string) *Plan {
	return &Plan{
		Intent: query,
		Steps: []PlanStep{{
			ID:          1,
			Description: query,
			ToolType:    "none",
			Method:      "direct_answer",
		}},
		Fallback: true,
	}
}

// knownToolTypes collects every tool and capability name a plan step
// may legally name.
func knownToolTypes(inventory []toolhub.Info) map[string]struct{} {
	known := make(map[string]struct{}, len(inventory)*2)
	for _, info := range inventory {
		known[info.Name] = struct{}{}
		for _, c := range info.Capabilities {
			known[c] = struct{}{}
		}
	}
	return known
}

// sanitizePlan fixes what tolerant parsing let through: duplicate or
// missing ids (steps are renumbered densely from 1), empty
// descriptions, unknown tool types, and dependencies that point
// forward, at the step itself, or at nothing.
func (p *Planner) sanitizePlan(ctx context.Context, plan *Plan, query string, known map[string]struct{}) {
	rec := trace.FromContext(ctx)
	if strings.TrimSpace(plan.Intent) == "" {
		plan.Intent = query
	}

	// Renumber, remembering where each model-assigned id ended up so
	// dependencies can follow.
	idMap := make(map[int]int, len(plan.Steps))
	for i := range plan.Steps {
		step := &plan.Steps[i]
		old := step.ID
		step.ID = i + 1
		if old > 0 {
			if _, taken := idMap[old]; !taken {
				idMap[old] = step.ID
			}
		}
		if _, taken := idMap[step.ID]; !taken {
			idMap[step.ID] = step.ID
		}

		if strings.TrimSpace(step.Description) == "" {
			step.Description = query
		}
		if strings.TrimSpace(step.ToolType) == "" {
			step.ToolType = "none"
		}
		if _, ok := known[step.ToolType]; !ok && step.ToolType != "none" {
			p.logger.Warn("plan step %d names unknown tool %q, rewriting to reasoning", step.ID, step.ToolType)
			rec.Event(trace.PhasePlanning, "unknown_tool_rewritten", map[string]any{
				"step": step.ID,
				"tool": step.ToolType,
			})
			step.ToolType = "none"
		}
	}

	// Dependencies may only point at earlier steps.
	for i := range plan.Steps {
		step := &plan.Steps[i]
		deps := step.Dependencies[:0]
		for _, d := range step.Dependencies {
			mapped, ok := idMap[d]
			if !ok || mapped >= step.ID {
				continue
			}
			deps = append(deps, mapped)
		}
		step.Dependencies = deps
	}
}

// formatToolList renders the inventory for the prompt: core tools
// first, then up to maxExtraToolsListed others, then a count of the
// rest.
func formatToolList(inventory []toolhub.Info) string {
	byName := make(map[string]toolhub.Info, len(inventory))
	for _, info := range inventory {
		byName[info.Name] = info
	}

	var b strings.Builder
	listed := make(map[string]struct{})
	for _, name := range coreTools {
		if info, ok := byName[name]; ok {
			fmt.Fprintf(&b, "- %s: %s\n", info.Name, info.Description)
			listed[name] = struct{}{}
		}
	}
	extra := 0
	omitted := 0
	for _, info := range inventory {
		if _, ok := listed[info.Name]; ok {
			continue
		}
		if extra >= maxExtraToolsListed {
			omitted++
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", info.Name, info.Description)
		extra++
	}
	if omitted > 0 {
		fmt.Fprintf(&b, "(and %d more tools)\n", omitted)
	}
	if b.Len() == 0 {
		return "(no tools registered)"
	}
	return strings.TrimSpace(b.String())
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}

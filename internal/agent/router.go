package agent

import (
	"context"
	"time"

	"reagent/internal/llm"
	"reagent/internal/logging"
	"reagent/internal/prompts"
	jsonx "reagent/internal/shared/json"
	"reagent/internal/toolhub"
	"reagent/internal/trace"
)

// Router classifies a request into a TaskContext that tunes candidate
// selection. Any failure yields the neutral default context, never an
// error: routing is an optimization, not a dependency.
type Router struct {
	client  llm.Client
	prompts *prompts.Loader
	logger  logging.Logger
}

func NewRouter(client llm.Client, loader *prompts.Loader, logger logging.Logger) *Router {
	return &Router{client: client, prompts: loader, logger: logging.OrNop(logger)}
}

// DefaultTaskContext is what Route returns when classification fails:
// tools enabled, every attribute medium, all carriers adaptable.
func DefaultTaskContext() *toolhub.TaskContext {
	return &toolhub.TaskContext{
		UseTools: true,
		TaskType: "research",
		Attributes: map[string]string{
			"timeliness":       "medium",
			"reliability":      "medium",
			"cost_sensitivity": "medium",
		},
		AdaptCarriers:  []string{"tools", "skills", "mcps"},
		ResponseFormat: "text",
		LatencyBudget:  10 * time.Second,
	}
}

type routerReply struct {
	UseTools        *bool             `json:"use_tools"`
	TaskType        string            `json:"task_type"`
	CapabilityTags  []string          `json:"capability_tags"`
	AttributeTags   map[string]string `json:"attribute_tags"`
	AdaptCarriers   []string          `json:"adapt_carriers"`
	ResponseFormat  string            `json:"response_format"`
	LatencyBudgetMS int               `json:"latency_budget_ms"`
}

func (r *Router) Route(ctx context.Context, query string) *toolhub.TaskContext {
	rec := trace.FromContext(ctx)

	prompt, err := r.prompts.Render("router", map[string]string{"query": query})
	if err != nil {
		return DefaultTaskContext()
	}
	resp, err := r.client.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		r.logger.Debug("task routing failed, using defaults: %v", err)
		return DefaultTaskContext()
	}

	var reply routerReply
	if err := jsonx.UnmarshalTolerant(resp.Content, &reply); err != nil || reply.TaskType == "" {
		r.logger.Debug("task routing output unusable, using defaults")
		return DefaultTaskContext()
	}

	task := DefaultTaskContext()
	task.TaskType = reply.TaskType
	task.RequiredCapabilities = reply.CapabilityTags
	if reply.UseTools != nil {
		task.UseTools = *reply.UseTools
	}
	for k, v := range reply.AttributeTags {
		switch v {
		case "high", "medium", "low":
			task.Attributes[k] = v
		}
	}
	if len(reply.AdaptCarriers) > 0 {
		task.AdaptCarriers = reply.AdaptCarriers
	}
	if reply.ResponseFormat != "" {
		task.ResponseFormat = reply.ResponseFormat
	}
	if reply.LatencyBudgetMS > 0 {
		task.LatencyBudget = time.Duration(reply.LatencyBudgetMS) * time.Millisecond
	}
	rec.Event(trace.PhaseOrchestrator, "task_routed", map[string]any{
		"task_type": task.TaskType,
		"use_tools": task.UseTools,
	})
	return task
}

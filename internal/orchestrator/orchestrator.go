// Package orchestrator is the request front door: it validates input,
// answers fast paths from memory, manages the conversation snapshot,
// consults the response cache, and otherwise hands the request to the
// workflow engine.
package orchestrator

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"reagent/internal/agent"
	"reagent/internal/cache"
	"reagent/internal/config"
	reerrors "reagent/internal/errors"
	"reagent/internal/logging"
	"reagent/internal/memory"
	"reagent/internal/metrics"
	"reagent/internal/toolhub"
	"reagent/internal/trace"
	"reagent/internal/workflow"
)

// Response is the engine's answer to one request.
type Response struct {
	Answer     string  `json:"answer"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
	Cached     bool    `json:"cached,omitempty"`
	FastPath   string  `json:"fast_path,omitempty"`
	Degraded   bool    `json:"degraded,omitempty"`
	RequestID  string  `json:"request_id,omitempty"`
	DurationMS float64 `json:"duration_ms"`

	Meta map[string]any `json:"meta,omitempty"`

	// Detailed payload, populated for the detailed endpoint.
	Plan          *agent.Plan          `json:"plan,omitempty"`
	Results       []agent.StepResult   `json:"results,omitempty"`
	Verifications []agent.Verification `json:"verifications,omitempty"`
	Trace         *trace.Summary       `json:"trace,omitempty"`
}

// Orchestrator wires the engine's front-of-house concerns together.
type Orchestrator struct {
	conv      *memory.Conversation
	hub       *toolhub.Hub
	engine    *workflow.Engine
	router    *agent.Router
	respCache *cache.Cache[Response]
	cfg       *config.Config
	collector *metrics.Collector
	logger    logging.Logger

	started       time.Time
	totalRequests atomic.Int64
	totalErrors   atomic.Int64
}

// Deps assembles an Orchestrator.
type Deps struct {
	Conversation *memory.Conversation
	Hub          *toolhub.Hub
	Engine       *workflow.Engine
	Router       *agent.Router
	Config       *config.Config
	Collector    *metrics.Collector
	Logger       logging.Logger
}

func New(deps Deps) *Orchestrator {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.Default()
	}
	collector := deps.Collector
	if collector == nil {
		collector = metrics.Nop()
	}
	var respCache *cache.Cache[Response]
	if cfg.Performance.CacheEnabled {
		respCache = cache.New[Response](cache.Config{
			MaxSize: cfg.Performance.CacheSize,
			TTL:     cfg.Performance.CacheTTL(),
		})
	}
	return &Orchestrator{
		conv:      deps.Conversation,
		hub:       deps.Hub,
		engine:    deps.Engine,
		router:    deps.Router,
		respCache: respCache,
		cfg:       cfg,
		collector: collector,
		logger:    logging.OrNop(deps.Logger),
		started:   time.Now(),
	}
}

// Process answers one request end to end.
func (o *Orchestrator) Process(ctx context.Context, query string) (*Response, error) {
	start := time.Now()
	o.totalRequests.Add(1)

	resp, err := o.process(ctx, query, start)
	outcome := "success"
	if err != nil {
		outcome = "error"
		o.totalErrors.Add(1)
		o.collector.RecordError(ctx, string(reerrors.KindOf(err)))
	}
	o.collector.RecordRequest(ctx, outcome, time.Since(start))
	return resp, err
}

// maxQueryLen bounds question length after trimming, in characters.
const maxQueryLen = 5000

func (o *Orchestrator) process(ctx context.Context, query string, start time.Time) (*Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, reerrors.NewInput("query must not be empty")
	}
	if n := len([]rune(query)); n > maxQueryLen {
		return nil, reerrors.NewInput("query exceeds %d characters (got %d)", maxQueryLen, n)
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.Task.Timeout)
	defer cancel()

	// Fast paths answer from live memory before the snapshot exists:
	// they are themselves conversation turns, not questions about one.
	if resp, ok := o.tryFastPath(query, start); ok {
		o.conv.Append(memory.RoleUser, query)
		o.conv.Append(memory.RoleAssistant, resp.Answer)
		return resp, nil
	}

	// Freeze "just now" semantics, then record the new question.
	o.conv.Snapshot()
	defer o.conv.ClearSnapshot()
	o.conv.Append(memory.RoleUser, query)

	if resp, ok := o.tryCache(ctx, query, start); ok {
		o.conv.Append(memory.RoleAssistant, resp.Answer)
		return resp, nil
	}

	var rec trace.Recorder = trace.Nop()
	var tr *trace.Trace
	if o.cfg.Observability.Enabled {
		tr = trace.New(trace.Config{
			MaxEvents:  o.cfg.Observability.MaxEvents,
			MaxPreview: o.cfg.Observability.MaxPreview,
		})
		rec = tr
	}
	ctx = trace.WithRecorder(ctx, rec)
	rec.Event(trace.PhaseOrchestrator, "request_received", map[string]any{"query": query})

	task := agent.DefaultTaskContext()
	if o.cfg.Tools.UseTaskRouter && o.router != nil {
		task = o.router.Route(ctx, query)
		if !task.UseTools {
			if resp, ok := o.directAnswer(ctx, query, start, tr); ok {
				return resp, nil
			}
			// A failed direct answer falls through to the full workflow.
		}
	}

	outcome, err := o.engine.Run(ctx, query, task, o.conversationContext())
	if err != nil {
		o.logger.Error("workflow failed: %v", err)
		return nil, err
	}

	o.conv.Append(memory.RoleAssistant, outcome.Answer)

	resp := &Response{
		Answer:        outcome.Answer,
		Confidence:    outcome.Confidence,
		Reasoning:     outcome.Reasoning,
		Degraded:      outcome.Degraded,
		DurationMS:    float64(time.Since(start).Microseconds()) / 1000,
		Meta:          buildMeta(outcome),
		Plan:          outcome.Plan,
		Results:       outcome.Results,
		Verifications: outcome.Verifications,
	}
	if tr != nil {
		resp.RequestID = tr.RequestID()
		if o.cfg.Observability.IncludeInResponse {
			summary := tr.Summary()
			resp.Trace = &summary
		}
	}

	o.storeInCache(ctx, query, resp)
	return resp, nil
}

// directAnswer serves a request the router judged to need no tools:
// one model call, no plan, no verification.
func (o *Orchestrator) directAnswer(ctx context.Context, query string, start time.Time, tr *trace.Trace) (*Response, bool) {
	answer, err := o.engine.DirectAnswer(ctx, query, o.conversationContext())
	if err != nil {
		o.logger.Warn("direct answer failed, running the workflow: %v", err)
		return nil, false
	}
	o.conv.Append(memory.RoleAssistant, answer)

	resp := &Response{
		Answer:     answer,
		Confidence: 0.7,
		Reasoning:  "Answered directly without tool use.",
		DurationMS: float64(time.Since(start).Microseconds()) / 1000,
	}
	if tr != nil {
		resp.RequestID = tr.RequestID()
		if o.cfg.Observability.IncludeInResponse {
			summary := tr.Summary()
			resp.Trace = &summary
		}
	}
	o.storeInCache(ctx, query, resp)
	return resp, true
}

// buildMeta surfaces how the answer was produced: whether the answering
// step synthesized multiple tool results, and from which tools.
func buildMeta(outcome *workflow.Outcome) map[string]any {
	for i := len(outcome.Results) - 1; i >= 0; i-- {
		r := outcome.Results[i]
		if !r.Success || strings.TrimSpace(r.Content) == "" {
			continue
		}
		meta := map[string]any{
			"tool":        r.Tool,
			"synthesized": r.Synthesized,
		}
		if len(r.Sources) > 0 {
			meta["sources"] = r.Sources
		}
		if len(r.Cancelled) > 0 {
			meta["cancelled"] = r.Cancelled
		}
		return meta
	}
	return nil
}

// conversationContext renders recent turns for the planner prompt.
func (o *Orchestrator) conversationContext() string {
	view := memory.LastN(o.conv.View(), 6)
	if len(view) == 0 {
		return ""
	}
	var b strings.Builder
	for _, e := range view {
		b.WriteString(string(e.Role))
		b.WriteString(": ")
		b.WriteString(e.Content)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

// Uptime reports how long the orchestrator has been serving.
func (o *Orchestrator) Uptime() time.Duration { return time.Since(o.started) }

// Stats returns request counters for the health endpoint.
func (o *Orchestrator) Stats() (total, errors int64) {
	return o.totalRequests.Load(), o.totalErrors.Load()
}

// ToolCount returns the number of registered tool candidates.
func (o *Orchestrator) ToolCount() int { return len(o.hub.Inventory()) }

// MemoryLen returns the live conversation length.
func (o *Orchestrator) MemoryLen() int { return o.conv.Len() }

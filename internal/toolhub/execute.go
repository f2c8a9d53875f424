package toolhub

import (
	"context"
	"strings"
	"time"

	reerrors "reagent/internal/errors"
	"reagent/internal/tools"
	"reagent/internal/trace"
)

// ExecutionResult is the outcome of executing a capability or tool.
type ExecutionResult struct {
	Content     string         `json:"content"`
	Data        map[string]any `json:"data,omitempty"`
	Tool        string         `json:"tool"`
	Source      Source         `json:"source"`
	Synthesized bool           `json:"synthesized"`
	Sources     []string       `json:"sources,omitempty"`
	Cancelled   []string       `json:"cancelled,omitempty"`
	Duration    time.Duration  `json:"-"`
}

type strategy int

const (
	strategyPickBest strategy = iota
	strategySynthesize
)

// chooseStrategy decides between racing for the first success and
// gathering every candidate for synthesis. Exact-answer capabilities
// (arithmetic, time) always race; evidence-gathering capabilities
// synthesize whenever more than one candidate is available.
func chooseStrategy(capability string, candidates int) strategy {
	if candidates < 2 {
		return strategyPickBest
	}
	switch capability {
	case "calculate", "time":
		return strategyPickBest
	case "search", "extract", "research", "web":
		return strategySynthesize
	}
	if candidates == 2 {
		return strategySynthesize
	}
	return strategyPickBest
}

// ExecuteCapability selects candidates for capability, runs them under
// the chosen strategy, and returns one result.
func (h *Hub) ExecuteCapability(ctx context.Context, capability, input string, task *TaskContext) (*ExecutionResult, error) {
	capability = normalizeCap(capability)
	rec := trace.FromContext(ctx)
	start := time.Now()

	ranked := h.rankCandidates(capability, task)
	if len(ranked) == 0 {
		suggestions := h.suggestions(capability)
		rec.Event(trace.PhaseToolHub, "capability_miss", map[string]any{
			"capability":  capability,
			"suggestions": strings.Join(suggestions, ", "),
		})
		if len(suggestions) > 0 {
			return nil, reerrors.NewCapabilityMiss("no tool serves capability %q; closest: %s",
				capability, strings.Join(suggestions, ", "))
		}
		return nil, reerrors.NewCapabilityMiss("no tool serves capability %q", capability)
	}
	names := make([]string, len(ranked))
	for i, sc := range ranked {
		names[i] = sc.cand.Name
	}
	rec.Event(trace.PhaseToolHub, "candidates_selected", map[string]any{
		"capability": capability,
		"candidates": strings.Join(names, ", "),
	})

	var (
		result *ExecutionResult
		err    error
	)
	if chooseStrategy(capability, len(ranked)) == strategySynthesize {
		if len(ranked) > h.cfg.MaxParallel {
			ranked = ranked[:h.cfg.MaxParallel]
		}
		result, err = h.runSynthesize(ctx, capability, input, ranked)
	} else {
		result, err = h.runPickBest(ctx, capability, input, ranked)
	}
	if err != nil {
		return nil, err
	}
	result.Duration = time.Since(start)
	h.recordSuccess(capability, result.Tool)
	return result, nil
}

// ExecuteTool runs a tool by name with the hub's timeout and retry.
// When several sources registered the name, they race like capability
// candidates do.
func (h *Hub) ExecuteTool(ctx context.Context, name, input string) (*ExecutionResult, error) {
	ranked := h.rankNamed(name, nil)
	if len(ranked) == 0 {
		return nil, reerrors.NewCapabilityMiss("no tool named %q is registered", name)
	}
	start := time.Now()

	if len(ranked) == 1 {
		cand := ranked[0].cand
		res, err := h.runCandidate(ctx, cand, input)
		if err != nil {
			return nil, err
		}
		return &ExecutionResult{
			Content:  res.Content,
			Data:     res.Data,
			Tool:     cand.Name,
			Source:   cand.Source,
			Duration: time.Since(start),
		}, nil
	}

	result, err := h.runPickBest(ctx, name, input, ranked)
	if err != nil {
		return nil, err
	}
	result.Duration = time.Since(start)
	h.recordSuccess("tool:"+name, string(result.Source))
	return result, nil
}

// runCandidate executes one candidate with per-invocation timeout and
// the hub's retry policy, recording metrics and trace events.
func (h *Hub) runCandidate(ctx context.Context, cand *Candidate, input string) (*tools.Result, error) {
	rec := trace.FromContext(ctx)
	rec.Event(trace.PhaseToolHub, "candidate_started", map[string]any{
		"tool":   cand.Name,
		"source": string(cand.Source),
	})

	cfg := reerrors.RetryConfig{
		MaxAttempts:  h.cfg.MaxRetries + 1,
		BaseDelay:    500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		JitterFactor: 0.2,
	}

	start := time.Now()
	res, err := reerrors.RetryWithResult(ctx, cfg, h.logger, "tool."+cand.Name, func(ctx context.Context) (*tools.Result, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, h.cfg.Timeout)
		defer cancel()
		res, err := cand.tool.Execute(attemptCtx, input)
		if err != nil {
			// A per-attempt timeout is transient from the hub's view as
			// long as the caller's context is still live.
			if reerrors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return nil, reerrors.NewTool(err, "tool %s timed out after %s", cand.Name, h.cfg.Timeout)
			}
			return nil, err
		}
		if res == nil {
			return nil, reerrors.NewTool(nil, "tool %s returned no result", cand.Name)
		}
		return res, nil
	})
	duration := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
		if reerrors.Is(err, context.Canceled) {
			status = "cancelled"
		}
		rec.Event(trace.PhaseToolHub, "candidate_"+status, map[string]any{
			"tool":  cand.Name,
			"error": err.Error(),
		})
	} else {
		rec.Event(trace.PhaseToolHub, "candidate_succeeded", map[string]any{
			"tool":    cand.Name,
			"content": res.Content,
		})
	}
	h.collector.RecordToolExecution(ctx, cand.Name, string(cand.Source), status, duration)
	return res, err
}

type raceOutcome struct {
	cand *Candidate
	res  *tools.Result
	err  error
}

// runPickBest races the ranked candidates in batches of MaxParallel:
// the first success wins and cancels its batch; only when a whole
// batch fails does the next batch start.
func (h *Hub) runPickBest(ctx context.Context, key, input string, ranked []scoredCandidate) (*ExecutionResult, error) {
	var failures []error
	for start := 0; start < len(ranked); start += h.cfg.MaxParallel {
		end := start + h.cfg.MaxParallel
		if end > len(ranked) {
			end = len(ranked)
		}
		result, errs := h.raceBatch(ctx, input, ranked[start:end])
		if result != nil {
			return result, nil
		}
		failures = append(failures, errs...)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return nil, reerrors.NewTool(reerrors.Join(failures...),
		"all %d candidates for %q failed", len(ranked), key)
}

// raceBatch runs one batch concurrently and returns the first success,
// cancelling the rest, or the batch's failures.
func (h *Hub) raceBatch(ctx context.Context, input string, batch []scoredCandidate) (*ExecutionResult, []error) {
	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomes := make(chan raceOutcome, len(batch))
	for _, sc := range batch {
		cand := sc.cand
		go func() {
			res, err := h.runCandidate(raceCtx, cand, input)
			outcomes <- raceOutcome{cand: cand, res: res, err: err}
		}()
	}

	var winner *raceOutcome
	var cancelled []string
	var failures []error
	for i := 0; i < len(batch); i++ {
		out := <-outcomes
		switch {
		case out.err == nil && winner == nil:
			o := out
			winner = &o
			cancel()
		case out.err == nil:
			// Late success after the winner; it was effectively cancelled.
			cancelled = append(cancelled, out.cand.Name)
		case winner != nil && reerrors.Is(out.err, context.Canceled):
			cancelled = append(cancelled, out.cand.Name)
		default:
			failures = append(failures, out.err)
		}
	}

	if winner == nil {
		return nil, failures
	}
	return &ExecutionResult{
		Content:   winner.res.Content,
		Data:      winner.res.Data,
		Tool:      winner.cand.Name,
		Source:    winner.cand.Source,
		Cancelled: cancelled,
	}, nil
}

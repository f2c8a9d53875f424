package toolhub

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	reerrors "reagent/internal/errors"
	"reagent/internal/llm"
	"reagent/internal/tools"
	"reagent/internal/trace"
)

const (
	mergeTotalBudget  = 2000
	mergeMaxFull      = 3
	mergeExcerptChars = 300
	mergeLLMTimeout   = 10 * time.Second
)

type gatheredResult struct {
	cand  *Candidate
	res   *tools.Result
	score float64
}

// runSynthesize executes every ranked candidate, scores the successes,
// and merges them into one result.
func (h *Hub) runSynthesize(ctx context.Context, capability, input string, ranked []scoredCandidate) (*ExecutionResult, error) {
	rec := trace.FromContext(ctx)

	results := make([]*tools.Result, len(ranked))
	errs := make([]error, len(ranked))

	g, gctx := errgroup.WithContext(ctx)
	for i, sc := range ranked {
		g.Go(func() error {
			res, err := h.runCandidate(gctx, sc.cand, input)
			results[i] = res
			errs[i] = err
			// Individual failures do not abort the gather.
			return nil
		})
	}
	_ = g.Wait()

	var gathered []gatheredResult
	var failures []error
	for i, sc := range ranked {
		if errs[i] != nil {
			failures = append(failures, errs[i])
			continue
		}
		gathered = append(gathered, gatheredResult{
			cand:  sc.cand,
			res:   results[i],
			score: scoreResult(results[i], sc.cand),
		})
	}
	if len(gathered) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, reerrors.NewTool(reerrors.Join(failures...),
			"all %d candidates for %q failed", len(ranked), capability)
	}

	sort.SliceStable(gathered, func(i, j int) bool { return gathered[i].score > gathered[j].score })

	best := gathered[0]
	if len(gathered) == 1 {
		return &ExecutionResult{
			Content: best.res.Content,
			Data:    best.res.Data,
			Tool:    best.cand.Name,
			Source:  best.cand.Source,
		}, nil
	}

	sources := make([]string, len(gathered))
	for i, gr := range gathered {
		sources[i] = gr.cand.Name
	}
	rec.Event(trace.PhaseToolHub, "synthesizing", map[string]any{
		"capability": capability,
		"sources":    strings.Join(sources, ", "),
	})

	content, fromModel := "", false
	// Long or numerous results skip the model and merge textually.
	if totalContent(gathered) <= mergeTotalBudget && len(gathered) <= mergeMaxFull {
		content, fromModel = h.llmMerge(ctx, capability, input, gathered)
	}
	if !fromModel {
		content = mergeContents(gathered)
	}

	return &ExecutionResult{
		Content:     content,
		Data:        best.res.Data,
		Tool:        best.cand.Name,
		Source:      best.cand.Source,
		Synthesized: true,
		Sources:     sources,
	}, nil
}

func totalContent(gathered []gatheredResult) int {
	total := 0
	for _, gr := range gathered {
		total += len(gr.res.Content)
	}
	return total
}

// sourceBudget caps what each source contributes to the merge prompt.
func sourceBudget(capability string) int {
	switch capability {
	case "calculate":
		return 100
	case "search", "web", "extract":
		return 300
	}
	return 250
}

// llmMerge asks the model to write one answer from the gathered
// results, bounded by a fixed timeout. Any failure reports false so
// the caller merges textually instead.
func (h *Hub) llmMerge(ctx context.Context, capability, input string, gathered []gatheredResult) (string, bool) {
	if h.synthClient == nil || h.prompts == nil {
		return "", false
	}

	budget := sourceBudget(capability)
	var b strings.Builder
	for _, gr := range gathered {
		fmt.Fprintf(&b, "[%s]\n%s\n\n", gr.cand.Name, TruncateAtSentence(gr.res.Content, budget))
	}
	prompt, err := h.prompts.Render("merge", map[string]string{
		"input":   input,
		"results": strings.TrimSpace(b.String()),
	})
	if err != nil {
		return "", false
	}

	mergeCtx, cancel := context.WithTimeout(ctx, mergeLLMTimeout)
	defer cancel()
	resp, err := h.synthClient.Complete(mergeCtx, llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: prompt}},
	})
	if err != nil || strings.TrimSpace(resp.Content) == "" {
		h.logger.Warn("model merge failed, merging textually: %v", err)
		return "", false
	}
	return strings.TrimSpace(resp.Content), true
}

// mergeContents combines gathered results best first. When the combined
// text is long (or there are many results) each source contributes a
// labeled excerpt instead of its full output.
func mergeContents(gathered []gatheredResult) string {
	total := 0
	for _, gr := range gathered {
		total += len(gr.res.Content)
	}
	excerptOnly := total > mergeTotalBudget || len(gathered) > mergeMaxFull

	var b strings.Builder
	for i, gr := range gathered {
		if i > 0 {
			b.WriteString("\n\n")
		}
		content := gr.res.Content
		if excerptOnly {
			content = TruncateAtSentence(content, mergeExcerptChars)
		}
		fmt.Fprintf(&b, "[%s]\n%s", gr.cand.Name, content)
	}
	return b.String()
}

// scoreResult values a tool result for synthesis ordering: substantial
// content, structured payloads, and high-priority candidates win.
func scoreResult(res *tools.Result, cand *Candidate) float64 {
	return 0.5*lengthScore(len(res.Content)) +
		0.2*qualityScore(res) +
		0.3*priorityScore(cand.Priority)
}

// lengthScore rewards substance and penalizes both trivia and walls of
// text: 0.3 under 10 chars, rising linearly to 1.0 at 500, flat to
// 2000, then decaying.
func lengthScore(n int) float64 {
	switch {
	case n < 10:
		return 0.3
	case n <= 500:
		return 0.3 + 0.7*float64(n-10)/490
	case n <= 2000:
		return 1.0
	default:
		s := 1.0 - float64(n-2000)/8000
		if s < 0.4 {
			return 0.4
		}
		return s
	}
}

var structuredKeys = []string{"results", "data", "content", "items"}

func qualityScore(res *tools.Result) float64 {
	if len(res.Data) == 0 {
		return 0
	}
	score := 0.2
	for _, key := range structuredKeys {
		if _, ok := res.Data[key]; ok {
			score += 0.1
			break
		}
	}
	return score
}

// priorityScore maps priority 0..3+ onto 1..0.
func priorityScore(priority int) float64 {
	s := 1 - float64(priority)/3
	if s < 0 {
		return 0
	}
	return s
}

// TruncateAtSentence cuts text to at most limit bytes, preferring to
// break after a sentence end.
func TruncateAtSentence(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := text[:limit]
	if idx := strings.LastIndexAny(cut, ".!?"); idx > limit/2 {
		return cut[:idx+1]
	}
	if idx := strings.LastIndexByte(cut, ' '); idx > limit/2 {
		return cut[:idx] + "..."
	}
	return cut + "..."
}

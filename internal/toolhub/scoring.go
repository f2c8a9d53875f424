package toolhub

import (
	"sort"
	"time"
)

// TaskContext carries what the router learned about the request, so
// candidate selection can favor the right tools. UseTools false means
// the request should be answered by the model alone.
type TaskContext struct {
	UseTools             bool              `json:"use_tools"`
	TaskType             string            `json:"task_type"`
	RequiredCapabilities []string          `json:"capability_tags"`
	Attributes           map[string]string `json:"attribute_tags,omitempty"`
	AdaptCarriers        []string          `json:"adapt_carriers,omitempty"`
	ResponseFormat       string            `json:"response_format,omitempty"`
	LatencyBudget        time.Duration     `json:"-"`
}

const (
	weightCapabilityFit = 0.50
	weightCost          = 0.25
	weightAttributes    = 0.25
	recencyBonus        = 1.0
)

type scoredCandidate struct {
	cand  *Candidate
	score float64
}

// rankCandidates scores every candidate serving capability against the
// task and returns them best first. Candidates with zero capability
// overlap are excluded entirely.
//
// Caller must not hold h.mu.
func (h *Hub) rankCandidates(capability string, task *TaskContext) []scoredCandidate {
	capability = normalizeCap(capability)

	required := []string{capability}
	if task != nil && len(task.RequiredCapabilities) > 0 {
		required = normalizeCaps(append([]string{capability}, task.RequiredCapabilities...))
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	cands := h.byCap[capability]
	lastWinner := h.lastSuccess[capability]

	scored := make([]scoredCandidate, 0, len(cands))
	for _, cand := range cands {
		fit := jaccard(cand.Capabilities, required)
		if fit == 0 {
			continue
		}
		score := weightCapabilityFit*fit +
			weightCost*(sourceCost(cand.Source)/sourceCost(SourceLocal)) +
			weightAttributes*attributeMatch(cand, task)
		if cand.Name == lastWinner {
			score += recencyBonus
		}
		scored = append(scored, scoredCandidate{cand: cand, score: score})
	}

	sort.Slice(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.cand.Priority != b.cand.Priority {
			return a.cand.Priority < b.cand.Priority
		}
		if ra, rb := sourceRank(a.cand.Source), sourceRank(b.cand.Source); ra != rb {
			return ra < rb
		}
		return a.cand.Name < b.cand.Name
	})
	return scored
}

// rankNamed orders the candidates registered under one name. The name
// was asked for explicitly, so capability fit is neutral; cost,
// attributes and recency still order the sources.
//
// Caller must not hold h.mu.
func (h *Hub) rankNamed(name string, task *TaskContext) []scoredCandidate {
	h.mu.RLock()
	defer h.mu.RUnlock()

	cands := h.byName[name]
	// Same-name candidates differ only by source, so recency is
	// remembered per source.
	lastSource := h.lastSuccess["tool:"+name]

	scored := make([]scoredCandidate, 0, len(cands))
	for _, cand := range cands {
		score := weightCapabilityFit +
			weightCost*(sourceCost(cand.Source)/sourceCost(SourceLocal)) +
			weightAttributes*attributeMatch(cand, task)
		if string(cand.Source) == lastSource {
			score += recencyBonus
		}
		scored = append(scored, scoredCandidate{cand: cand, score: score})
	}

	sort.Slice(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.cand.Priority != b.cand.Priority {
			return a.cand.Priority < b.cand.Priority
		}
		return sourceRank(a.cand.Source) < sourceRank(b.cand.Source)
	})
	return scored
}

// jaccard is set overlap over set union of capability tags.
func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[string]struct{}, len(a))
	for _, s := range a {
		setA[s] = struct{}{}
	}
	union := make(map[string]struct{}, len(a)+len(b))
	for s := range setA {
		union[s] = struct{}{}
	}
	overlap := 0
	for _, s := range b {
		if _, ok := union[s]; !ok {
			union[s] = struct{}{}
		}
		if _, ok := setA[s]; ok {
			overlap++
		}
	}
	return float64(overlap) / float64(len(union))
}

// attributeMatch is the fraction of requested task attributes the
// candidate satisfies. The router's standard tags express source
// preferences: timeliness or reliability high favors in-process
// sources, cost sensitivity high demotes remote ones. Medium and low
// values are neutral, as is a task with no attribute requests.
func attributeMatch(cand *Candidate, task *TaskContext) float64 {
	if task == nil || len(task.Attributes) == 0 {
		return 1
	}
	considered, matched := 0, 0
	for k, want := range task.Attributes {
		switch k {
		case "timeliness", "reliability", "cost_sensitivity":
			if want != "high" {
				continue
			}
			considered++
			if cand.Source != SourceMCP {
				matched++
			}
		default:
			considered++
			if got, ok := cand.Attributes[k]; ok && got == want {
				matched++
			}
		}
	}
	if considered == 0 {
		return 1
	}
	return float64(matched) / float64(considered)
}

// recordSuccess remembers which candidate last won a capability, feeding
// the recency bonus on the next selection.
func (h *Hub) recordSuccess(capability, name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastSuccess[normalizeCap(capability)] = name
}

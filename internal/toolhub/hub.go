// Package toolhub owns tool candidates from every source, picks the
// right ones for a task, and executes them with racing, retry and
// synthesis.
package toolhub

import (
	"sort"
	"strings"
	"sync"
	"time"

	reerrors "reagent/internal/errors"
	"reagent/internal/llm"
	"reagent/internal/logging"
	"reagent/internal/metrics"
	"reagent/internal/prompts"
	"reagent/internal/tools"
)

// Source identifies where a candidate was registered from.
type Source string

const (
	SourceLocal Source = "local"
	SourceSkill Source = "skill"
	SourceMCP   Source = "mcp"
)

// sourceCost orders sources by expected invocation cost: in-process
// tools are cheapest, remote MCP endpoints dearest. Scores normalize
// against the local cost.
func sourceCost(s Source) float64 {
	switch s {
	case SourceLocal:
		return 9
	case SourceSkill:
		return 7
	case SourceMCP:
		return 4
	}
	return 4
}

// sourceRank breaks ties deterministically: local before skill before mcp.
func sourceRank(s Source) int {
	switch s {
	case SourceLocal:
		return 0
	case SourceSkill:
		return 1
	case SourceMCP:
		return 2
	}
	return 3
}

// Registration describes a candidate being added to the hub.
type Registration struct {
	Tool         tools.Tool
	Source       Source
	Priority     int // 0 is highest; used in scoring and tie-breaks
	Capabilities []string
	Attributes   map[string]string
}

// Candidate is a registered tool plus its selection metadata.
type Candidate struct {
	Name         string
	Description  string
	Source       Source
	Priority     int
	Capabilities []string
	Attributes   map[string]string
	RegisteredAt time.Time

	tool tools.Tool
}

// Info is the externally visible candidate description.
type Info struct {
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	Source       Source            `json:"source"`
	Priority     int               `json:"priority"`
	Capabilities []string          `json:"capabilities"`
	Attributes   map[string]string `json:"attributes,omitempty"`
}

// Config tunes hub execution.
type Config struct {
	Timeout     time.Duration // per tool invocation
	MaxRetries  int           // retries after the first attempt
	MaxParallel int           // candidates raced per capability
}

// Hub is the candidate registry and executor. Both indexes hold lists:
// the same name may be served from several sources, and a capability
// from several tools.
type Hub struct {
	mu          sync.RWMutex
	byName      map[string][]*Candidate
	byCap       map[string][]*Candidate
	lastSuccess map[string]string // lookup key -> last winning candidate

	cfg       Config
	logger    logging.Logger
	collector *metrics.Collector

	synthClient llm.Client
	prompts     *prompts.Loader
}

// New builds an empty hub.
func New(cfg Config, logger logging.Logger, collector *metrics.Collector) *Hub {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 3
	}
	if collector == nil {
		collector = metrics.Nop()
	}
	return &Hub{
		byName:      make(map[string][]*Candidate),
		byCap:       make(map[string][]*Candidate),
		lastSuccess: make(map[string]string),
		cfg:         cfg,
		logger:      logging.OrNop(logger),
		collector:   collector,
	}
}

// SetSynthesizer gives the hub a model for merging multi-source
// results. Without one, merges stay purely textual.
func (h *Hub) SetSynthesizer(client llm.Client, loader *prompts.Loader) {
	h.synthClient = client
	h.prompts = loader
}

// Register adds a candidate. A candidate with the same name and source
// is replaced; the same name from a different source is kept alongside.
// Capabilities not supplied are extracted from the tool's name and
// description.
func (h *Hub) Register(reg Registration) error {
	if reg.Tool == nil {
		return reerrors.NewInput("registration has no tool")
	}
	name := strings.TrimSpace(reg.Tool.Name())
	if name == "" {
		return reerrors.NewInput("tool has no name")
	}
	if reg.Source == "" {
		reg.Source = SourceLocal
	}

	caps := normalizeCaps(reg.Capabilities)
	if len(caps) == 0 {
		caps = ExtractCapabilities(name + " " + reg.Tool.Description())
	}

	cand := &Candidate{
		Name:         name,
		Description:  reg.Tool.Description(),
		Source:       reg.Source,
		Priority:     reg.Priority,
		Capabilities: caps,
		Attributes:   reg.Attributes,
		RegisteredAt: time.Now(),
		tool:         reg.Tool,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	list := h.byName[name]
	replaced := false
	for i, old := range list {
		if old.Source == reg.Source {
			h.dropFromCapIndex(old)
			list[i] = cand
			replaced = true
			break
		}
	}
	if !replaced {
		list = append(list, cand)
	}
	h.byName[name] = list
	for _, c := range caps {
		h.byCap[c] = append(h.byCap[c], cand)
	}
	h.logger.Debug("registered tool %s (source=%s caps=%v)", name, reg.Source, caps)
	return nil
}

// Unregister removes every candidate with the name, from all sources.
func (h *Hub) Unregister(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	list, ok := h.byName[name]
	if !ok {
		return false
	}
	for _, cand := range list {
		h.dropFromCapIndex(cand)
	}
	delete(h.byName, name)
	return true
}

func (h *Hub) dropFromCapIndex(cand *Candidate) {
	for _, c := range cand.Capabilities {
		list := h.byCap[c]
		for i, other := range list {
			if other == cand {
				h.byCap[c] = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(h.byCap[c]) == 0 {
			delete(h.byCap, c)
		}
	}
}

// Inventory lists every candidate, sorted by name then source.
func (h *Hub) Inventory() []Info {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Info, 0, len(h.byName))
	for _, list := range h.byName {
		for _, cand := range list {
			out = append(out, Info{
				Name:         cand.Name,
				Description:  cand.Description,
				Source:       cand.Source,
				Priority:     cand.Priority,
				Capabilities: append([]string(nil), cand.Capabilities...),
				Attributes:   cand.Attributes,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return sourceRank(out[i].Source) < sourceRank(out[j].Source)
	})
	return out
}

// Capabilities lists every indexed capability, sorted.
func (h *Hub) Capabilities() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.byCap))
	for c := range h.byCap {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Has reports whether any candidate serves the capability.
func (h *Hub) Has(capability string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byCap[normalizeCap(capability)]) > 0
}

// suggestions returns capabilities lexically close to the missed one, for
// capability-miss error messages.
func (h *Hub) suggestions(capability string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []string
	for c := range h.byCap {
		if strings.Contains(c, capability) || strings.Contains(capability, c) {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

func normalizeCap(c string) string {
	return strings.ToLower(strings.TrimSpace(c))
}

func normalizeCaps(caps []string) []string {
	seen := make(map[string]struct{}, len(caps))
	out := make([]string, 0, len(caps))
	for _, c := range caps {
		c = normalizeCap(c)
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Package trace records phase-tagged execution events for a single
// request: a bounded event list with payload previews, named timers, and
// a no-op recorder for when observability is off.
package trace

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Phase tags identify which part of the engine emitted an event.
const (
	PhaseOrchestrator = "orchestrator"
	PhasePlanning     = "planning"
	PhaseExecution    = "execution"
	PhaseVerification = "verification"
	PhaseSynthesis    = "synthesis"
	PhaseToolHub      = "toolhub"
)

// Recorder is what engine components record into. The no-op recorder
// makes every call free when tracing is disabled.
type Recorder interface {
	Event(phase, name string, data map[string]any)
	StartTimer(name string)
	EndTimer(name string)
	Enabled() bool
}

// Event is one recorded step. Data values are preview-truncated strings.
type Event struct {
	Seq       int            `json:"seq"`
	Phase     string         `json:"phase"`
	Name      string         `json:"name"`
	ElapsedMS float64        `json:"elapsed_ms"`
	Data      map[string]any `json:"data,omitempty"`
}

// Summary is the trace payload attached to detailed responses.
type Summary struct {
	RequestID  string             `json:"request_id"`
	Events     []Event            `json:"events"`
	Dropped    int                `json:"dropped"`
	TimersMS   map[string]float64 `json:"timers_ms"`
	TotalMS    float64            `json:"total_ms"`
	EventCount int                `json:"event_count"`
}

// Config bounds what a trace retains.
type Config struct {
	MaxEvents  int
	MaxPreview int
}

// Trace is the concrete recorder for one request.
type Trace struct {
	mu         sync.Mutex
	requestID  string
	started    time.Time
	events     []Event
	seq        int
	dropped    int
	maxEvents  int
	maxPreview int
	running    map[string]time.Time
	durations  map[string]time.Duration
}

// New starts a trace with a fresh request id.
func New(cfg Config) *Trace {
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = 200
	}
	if cfg.MaxPreview <= 0 {
		cfg.MaxPreview = 500
	}
	return &Trace{
		requestID:  uuid.NewString(),
		started:    time.Now(),
		maxEvents:  cfg.MaxEvents,
		maxPreview: cfg.MaxPreview,
		running:    make(map[string]time.Time),
		durations:  make(map[string]time.Duration),
	}
}

// RequestID returns the trace's request id.
func (t *Trace) RequestID() string { return t.requestID }

func (t *Trace) Enabled() bool { return true }

// Event appends an event, truncating string payloads to the preview
// bound. Once the event cap is reached further events are counted as
// dropped rather than stored.
func (t *Trace) Event(phase, name string, data map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	if len(t.events) >= t.maxEvents {
		t.dropped++
		return
	}
	t.events = append(t.events, Event{
		Seq:       t.seq,
		Phase:     phase,
		Name:      name,
		ElapsedMS: float64(time.Since(t.started).Microseconds()) / 1000,
		Data:      t.preview(data),
	})
}

// StartTimer begins a named timer. Restarting a running timer resets it.
func (t *Trace) StartTimer(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running[name] = time.Now()
}

// EndTimer stops a named timer and accumulates its duration.
func (t *Trace) EndTimer(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	start, ok := t.running[name]
	if !ok {
		return
	}
	delete(t.running, name)
	t.durations[name] += time.Since(start)
}

// Summary renders the trace for inclusion in a response.
func (t *Trace) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	timers := make(map[string]float64, len(t.durations))
	for name, d := range t.durations {
		timers[name] = float64(d.Microseconds()) / 1000
	}
	return Summary{
		RequestID:  t.requestID,
		Events:     append([]Event(nil), t.events...),
		Dropped:    t.dropped,
		TimersMS:   timers,
		TotalMS:    float64(time.Since(t.started).Microseconds()) / 1000,
		EventCount: t.seq,
	}
}

func (t *Trace) preview(data map[string]any) map[string]any {
	if len(data) == 0 {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		if s, ok := v.(string); ok && len(s) > t.maxPreview {
			out[k] = fmt.Sprintf("%s… (%d bytes)", s[:t.maxPreview], len(s))
			continue
		}
		out[k] = v
	}
	return out
}

type nopRecorder struct{}

func (nopRecorder) Event(string, string, map[string]any) {}
func (nopRecorder) StartTimer(string)                    {}
func (nopRecorder) EndTimer(string)                      {}
func (nopRecorder) Enabled() bool                        { return false }

// Nop returns a recorder that stores nothing.
func Nop() Recorder { return nopRecorder{} }

type ctxKey struct{}

// WithRecorder attaches a recorder to ctx.
func WithRecorder(ctx context.Context, rec Recorder) context.Context {
	return context.WithValue(ctx, ctxKey{}, rec)
}

// FromContext returns the attached recorder, or the no-op one.
func FromContext(ctx context.Context) Recorder {
	if rec, ok := ctx.Value(ctxKey{}).(Recorder); ok && rec != nil {
		return rec
	}
	return Nop()
}

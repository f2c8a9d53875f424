package llm

import (
	"context"
	"strings"
	"sync"

	reerrors "reagent/internal/errors"
)

// Rule maps a prompt substring to a canned completion.
type Rule struct {
	Contains string
	Response string
}

// MockClient is a deterministic in-process model. Responses are served
// from an ordered script first (in the order Enqueue/EnqueueError were
// called), then from substring rules against the last message, then
// from a default. Safe for concurrent use.
type MockClient struct {
	mu       sync.Mutex
	name     string
	script   []scriptItem
	rules    []Rule
	fallback string
	calls    []CompletionRequest
}

type scriptItem struct {
	content string
	err     error
}

// NewMockClient builds a mock model named name.
func NewMockClient(name string) *MockClient {
	if name == "" {
		name = "mock"
	}
	return &MockClient{name: name, fallback: "mock response"}
}

// Enqueue appends responses served in order before rules apply.
func (m *MockClient) Enqueue(responses ...string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range responses {
		m.script = append(m.script, scriptItem{content: r})
	}
	return m
}

// EnqueueError appends a scripted failure, served in call order like
// Enqueue.
func (m *MockClient) EnqueueError(err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, scriptItem{err: err})
	return m
}

// Respond adds a substring rule matched against the last message.
func (m *MockClient) Respond(contains, response string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, Rule{Contains: contains, Response: response})
	return m
}

// SetFallback sets the response when nothing else matches.
func (m *MockClient) SetFallback(response string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = response
	return m
}

// Calls returns every request seen so far.
func (m *MockClient) Calls() []CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CompletionRequest(nil), m.calls...)
}

func (m *MockClient) Model() string { return m.name }

func (m *MockClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(req.Messages) == 0 {
		return nil, reerrors.NewInput("completion request has no messages")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, req)

	if len(m.script) > 0 {
		item := m.script[0]
		m.script = m.script[1:]
		if item.err != nil {
			return nil, item.err
		}
		return m.response(item.content), nil
	}

	last := req.Messages[len(req.Messages)-1].Content
	for _, rule := range m.rules {
		if strings.Contains(last, rule.Contains) {
			return m.response(rule.Response), nil
		}
	}
	return m.response(m.fallback), nil
}

func (m *MockClient) response(content string) *CompletionResponse {
	return &CompletionResponse{
		Content: content,
		Model:   m.name,
		Usage: Usage{
			PromptTokens:     100,
			CompletionTokens: 50,
			TotalTokens:      150,
		},
	}
}

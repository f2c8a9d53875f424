// Package tools defines the uniform tool contract and the built-in tools
// every deployment ships with.
package tools

import "context"

// Result is a tool's output. Content is the human-readable answer; Data
// carries structured payload when the tool has one.
type Result struct {
	Content string         `json:"content"`
	Data    map[string]any `json:"data,omitempty"`
}

// Tool is the execution contract. Input is the prepared input text for
// this invocation, not the raw user query.
type Tool interface {
	Name() string
	Description() string
	Execute(ctx context.Context, input string) (*Result, error)
}

// Func adapts a function to the Tool interface, for tests and one-off
// scripted tools.
type Func struct {
	ToolName        string
	ToolDescription string
	Fn              func(ctx context.Context, input string) (*Result, error)
}

func (f *Func) Name() string        { return f.ToolName }
func (f *Func) Description() string { return f.ToolDescription }

func (f *Func) Execute(ctx context.Context, input string) (*Result, error) {
	return f.Fn(ctx, input)
}

// Package agent implements the specialist agents the workflow engine
// sequences: planning, execution, verification, and the optional task
// router.
package agent

import "time"

// PlanStep is one unit of work in a plan.
type PlanStep struct {
	ID           int    `json:"id"`
	Description  string `json:"description"`
	ToolType     string `json:"tool_type"` // tool name, or "none" for pure reasoning
	Method       string `json:"method"`
	Dependencies []int  `json:"dependencies,omitempty"`
}

// Plan is the planner's decomposition of a request. ParallelGroups is
// carried for callers that want it but execution is sequential.
type Plan struct {
	Intent         string     `json:"intent"`
	Steps          []PlanStep `json:"steps"`
	ParallelGroups [][]int    `json:"parallel_groups,omitempty"`
	Fallback       bool       `json:"fallback,omitempty"`
}

// StepResult is the outcome of executing one plan step.
type StepResult struct {
	StepID      int            `json:"step_id"`
	Tool        string         `json:"tool,omitempty"`
	Content     string         `json:"content"`
	Data        map[string]any `json:"data,omitempty"`
	Success     bool           `json:"success"`
	Skipped     bool           `json:"skipped,omitempty"`
	Error       string         `json:"error,omitempty"`
	Synthesized bool           `json:"synthesized,omitempty"`
	Sources     []string       `json:"sources,omitempty"`
	Cancelled   []string       `json:"cancelled,omitempty"`
	Duration    time.Duration  `json:"-"`
}

// Verification is the verifier's judgment of one step result.
type Verification struct {
	StepID     int      `json:"step_id"`
	Confidence float64  `json:"confidence"`
	Consistent bool     `json:"consistent"`
	Findings   []string `json:"findings,omitempty"`
}

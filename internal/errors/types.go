// Package errors carries the error taxonomy shared by the agents, the tool
// hub, and the HTTP surface: every failure is tagged with a Kind for
// reporting, and classified transient or permanent for retry decisions.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// Kind identifies the failure category carried in responses and metrics.
type Kind string

const (
	KindInput          Kind = "input_error"
	KindLLM            Kind = "llm_error"
	KindTool           Kind = "tool_error"
	KindPlan           Kind = "plan_error"
	KindCapabilityMiss Kind = "capability_miss"
	KindDeadline       Kind = "deadline_exceeded"
	KindInternal       Kind = "internal_error"
)

// TransientError marks a failure worth retrying: timeouts, rate limits,
// upstream 5xx. RetryAfter is advisory; zero means use the backoff schedule.
type TransientError struct {
	Err        error
	Kind       Kind
	RetryAfter time.Duration
	StatusCode int
	Message    string
}

func (e *TransientError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "transient error"
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a failure that retrying cannot fix: bad input,
// missing capability, auth rejection.
type PermanentError struct {
	Err        error
	Kind       Kind
	StatusCode int
	Message    string
}

func (e *PermanentError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "permanent error"
}

func (e *PermanentError) Unwrap() error { return e.Err }

// NewInput reports invalid or empty caller input.
func NewInput(format string, args ...any) error {
	return &PermanentError{Kind: KindInput, Message: fmt.Sprintf(format, args...)}
}

// NewPlan reports an unusable plan after fallback.
func NewPlan(err error, format string, args ...any) error {
	return &PermanentError{Kind: KindPlan, Err: err, Message: fmt.Sprintf(format, args...)}
}

// NewCapabilityMiss reports that no registered tool matched a capability.
// Suggestions for near-misses belong in the message.
func NewCapabilityMiss(format string, args ...any) error {
	return &PermanentError{Kind: KindCapabilityMiss, Message: fmt.Sprintf(format, args...)}
}

// NewTool wraps a tool execution failure, transient by default so the
// hub's retry loop gets a chance.
func NewTool(err error, format string, args ...any) error {
	return &TransientError{Kind: KindTool, Err: err, Message: fmt.Sprintf(format, args...)}
}

// NewLLMTransient wraps a retryable model failure (timeout, 429, 5xx).
func NewLLMTransient(err error, statusCode int) error {
	return &TransientError{Kind: KindLLM, Err: err, StatusCode: statusCode}
}

// NewLLMPermanent wraps a non-retryable model failure (auth, bad request).
func NewLLMPermanent(err error, statusCode int) error {
	return &PermanentError{Kind: KindLLM, Err: err, StatusCode: statusCode}
}

// NewInternal wraps an unexpected invariant violation.
func NewInternal(err error, format string, args ...any) error {
	return &PermanentError{Kind: KindInternal, Err: err, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the Kind from an error chain, defaulting to internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindDeadline
	}
	var te *TransientError
	if errors.As(err, &te) && te.Kind != "" {
		return te.Kind
	}
	var pe *PermanentError
	if errors.As(err, &pe) && pe.Kind != "" {
		return pe.Kind
	}
	return KindInternal
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pe *PermanentError
	if errors.As(err, &pe) {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	if isNetworkError(err) {
		return true
	}
	return hasTransientKeyword(err.Error())
}

// IsPermanent reports whether retrying err is pointless.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	var pe *PermanentError
	return errors.As(err, &pe)
}

// IsTransientStatus reports whether an HTTP status suggests retrying.
func IsTransientStatus(status int) bool {
	switch status {
	case 408, 429, 500, 502, 503, 504:
		return true
	}
	return false
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

var transientKeywords = []string{
	"timeout",
	"timed out",
	"connection refused",
	"connection reset",
	"temporarily unavailable",
	"rate limit",
	"too many requests",
	"service unavailable",
	"bad gateway",
	"502",
	"503",
	"429",
}

func hasTransientKeyword(msg string) bool {
	lower := strings.ToLower(msg)
	for _, kw := range transientKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

package llm

import (
	"context"
	"strings"
	"time"

	reerrors "reagent/internal/errors"
	"reagent/internal/logging"
	"reagent/internal/metrics"
)

// retryClient wraps a Client with classification-aware retry and per-call
// metrics.
type retryClient struct {
	underlying Client
	cfg        reerrors.RetryConfig
	logger     logging.Logger
	collector  *metrics.Collector
}

// NewRetryClient wraps client with retry on transient failures.
func NewRetryClient(client Client, cfg reerrors.RetryConfig, logger logging.Logger, collector *metrics.Collector) Client {
	if collector == nil {
		collector = metrics.Nop()
	}
	return &retryClient{
		underlying: client,
		cfg:        cfg,
		logger:     logging.OrNop(logger),
		collector:  collector,
	}
}

func (c *retryClient) Model() string { return c.underlying.Model() }

func (c *retryClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()
	resp, err := reerrors.RetryWithResult(ctx, c.cfg, c.logger, "llm.complete", func(ctx context.Context) (*CompletionResponse, error) {
		resp, err := c.underlying.Complete(ctx, req)
		if err != nil {
			return nil, classifyLLMError(err)
		}
		return resp, nil
	})
	duration := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
		c.logger.Warn("llm request failed after %v: %v", duration, err)
	}
	c.collector.RecordLLMCall(ctx, c.underlying.Model(), status, duration)
	return resp, err
}

// classifyLLMError tags raw client errors so the retry loop can decide.
// Already-classified errors pass through untouched.
func classifyLLMError(err error) error {
	if err == nil {
		return nil
	}
	var te *reerrors.TransientError
	var pe *reerrors.PermanentError
	if reerrors.As(err, &te) || reerrors.As(err, &pe) {
		return err
	}

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "429"), strings.Contains(lower, "rate limit"):
		return reerrors.NewLLMTransient(err, 429)
	case strings.Contains(lower, "401"), strings.Contains(lower, "unauthorized"),
		strings.Contains(lower, "invalid api key"):
		return reerrors.NewLLMPermanent(err, 401)
	case strings.Contains(lower, "timeout"), strings.Contains(lower, "timed out"),
		strings.Contains(lower, "connection refused"), strings.Contains(lower, "connection reset"),
		strings.Contains(lower, "502"), strings.Contains(lower, "503"), strings.Contains(lower, "504"):
		return reerrors.NewLLMTransient(err, 0)
	}
	return reerrors.NewLLMPermanent(err, 0)
}

package llm

import (
	"fmt"

	"reagent/internal/config"
	reerrors "reagent/internal/errors"
	"reagent/internal/logging"
	"reagent/internal/metrics"
)

// NewFromConfig builds the configured model client wrapped with retry.
func NewFromConfig(cfg config.ModelConfig, retryCfg reerrors.RetryConfig, logger logging.Logger, collector *metrics.Collector) (Client, error) {
	var base Client
	switch cfg.Provider {
	case "", "mock":
		base = NewMockClient(cfg.Name)
	case "openai", "openai-compatible":
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("model provider %q requires model.endpoint", cfg.Provider)
		}
		base = NewOpenAIClient(cfg.Endpoint, cfg.APIKey, cfg.Name)
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
	return NewRetryClient(base, retryCfg, logger, collector), nil
}

package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	reerrors "reagent/internal/errors"
	jsonx "reagent/internal/shared/json"
)

// openAIClient speaks the OpenAI-compatible /chat/completions protocol,
// which most hosted and local backends expose.
type openAIClient struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewOpenAIClient builds a client for an OpenAI-compatible endpoint.
func NewOpenAIClient(endpoint, apiKey, model string) Client {
	return &openAIClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

func (c *openAIClient) Model() string { return c.model }

type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *openAIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	payload, err := jsonx.Marshal(chatCompletionRequest{
		Model:       c.model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, reerrors.NewInternal(err, "encode completion request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, reerrors.NewInternal(err, "build completion request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, reerrors.NewLLMTransient(err, 0)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, reerrors.NewLLMTransient(err, resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := fmt.Errorf("completion returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
		if reerrors.IsTransientStatus(resp.StatusCode) {
			return nil, reerrors.NewLLMTransient(apiErr, resp.StatusCode)
		}
		return nil, reerrors.NewLLMPermanent(apiErr, resp.StatusCode)
	}

	var parsed chatCompletionResponse
	if err := jsonx.Unmarshal(body, &parsed); err != nil {
		return nil, reerrors.NewLLMTransient(fmt.Errorf("decode completion response: %w", err), resp.StatusCode)
	}
	if parsed.Error != nil {
		return nil, reerrors.NewLLMPermanent(fmt.Errorf("completion error: %s", parsed.Error.Message), resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return nil, reerrors.NewLLMTransient(fmt.Errorf("completion returned no choices"), resp.StatusCode)
	}

	model := parsed.Model
	if model == "" {
		model = c.model
	}
	return &CompletionResponse{
		Content: parsed.Choices[0].Message.Content,
		Model:   model,
		Usage:   parsed.Usage,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

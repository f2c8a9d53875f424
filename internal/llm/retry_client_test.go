package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	reerrors "reagent/internal/errors"
)

func fastRetry() reerrors.RetryConfig {
	return reerrors.RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestRetryClientRecoversFromTransient(t *testing.T) {
	mock := NewMockClient("m").
		EnqueueError(reerrors.New("503 service unavailable")).
		Enqueue("recovered")

	client := NewRetryClient(mock, fastRetry(), nil, nil)
	resp, err := client.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Content)
	assert.Len(t, mock.Calls(), 2)
}

func TestRetryClientStopsOnPermanent(t *testing.T) {
	mock := NewMockClient("m").
		EnqueueError(reerrors.New("401 unauthorized")).
		Enqueue("never served")

	client := NewRetryClient(mock, fastRetry(), nil, nil)
	_, err := client.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)
	assert.True(t, reerrors.IsPermanent(err))
	assert.Len(t, mock.Calls(), 1)
}

func TestClassifyLLMError(t *testing.T) {
	tests := []struct {
		name      string
		msg       string
		transient bool
	}{
		{"rate limit", "429 too many requests", true},
		{"timeout", "request timed out", true},
		{"bad gateway", "upstream 502", true},
		{"auth", "invalid api key", false},
		{"other", "model not found", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyLLMError(reerrors.New(tt.msg))
			assert.Equal(t, tt.transient, reerrors.IsTransient(err))
		})
	}
}

func TestClassifyPreservesTaggedErrors(t *testing.T) {
	orig := reerrors.NewLLMPermanent(reerrors.New("bad request"), 400)
	assert.Equal(t, orig, classifyLLMError(orig))
}

func TestMockClientScriptThenRules(t *testing.T) {
	mock := NewMockClient("m").
		Enqueue("scripted").
		Respond("plan", `{"intent":"x"}`).
		SetFallback("default")

	ctx := context.Background()
	ask := func(content string) string {
		resp, err := mock.Complete(ctx, CompletionRequest{Messages: []Message{{Role: "user", Content: content}}})
		require.NoError(t, err)
		return resp.Content
	}

	assert.Equal(t, "scripted", ask("plan something"))
	assert.Equal(t, `{"intent":"x"}`, ask("make a plan"))
	assert.Equal(t, "default", ask("unrelated"))
}

func TestMockClientRejectsEmptyRequest(t *testing.T) {
	_, err := NewMockClient("m").Complete(context.Background(), CompletionRequest{})
	assert.Error(t, err)
}

package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNopCollectorIsSafe(t *testing.T) {
	c := Nop()
	ctx := context.Background()

	assert.NotPanics(t, func() {
		c.RecordRequest(ctx, "success", time.Second)
		c.RecordError(ctx, "tool_error")
		c.RecordLLMCall(ctx, "research-1", "ok", time.Millisecond)
		c.RecordToolExecution(ctx, "calculate", "local", "success", time.Millisecond)
		c.RecordCacheLookup(ctx, true)
	})
	assert.NoError(t, c.Shutdown(ctx))
}

func TestZeroValueCollectorIsSafe(t *testing.T) {
	var c Collector
	assert.NotPanics(t, func() {
		c.RecordRequest(context.Background(), "error", 0)
	})
}

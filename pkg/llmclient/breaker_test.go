package llmclient

import (
	"context"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerClient_PassesThroughOnSuccess(t *testing.T) {
	inner := NewScriptedClient()
	inner.AddGenerate(CodeResult{Content: "ok", Language: "go"})

	b := NewBreakerClient(inner, DefaultBreakerConfig("test-coder"))

	result, err := b.Generate(context.Background(), GenerateRequest{SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Content)
}

func TestBreakerClient_TripsAfterRepeatedFailures(t *testing.T) {
	inner := NewScriptedClient()
	for i := 0; i < 10; i++ {
		inner.FailNextCritique(i, assert.AnError)
	}
	inner.AddCritique(ReviewFeedback{})
	for i := 0; i < 9; i++ {
		inner.AddCritique(ReviewFeedback{})
	}

	cfg := DefaultBreakerConfig("test-critic")
	cfg.Interval = time.Minute
	cfg.Timeout = time.Hour
	b := NewBreakerClient(inner, cfg)

	var lastErr error
	for i := 0; i < 6; i++ {
		_, lastErr = b.Critique(context.Background(), CritiqueRequest{SessionID: "s1"})
	}
	require.Error(t, lastErr, "repeated failures must eventually surface an error")
	require.ErrorIs(t, lastErr, gobreaker.ErrOpenState, "three failures in a row must open the breaker")
}

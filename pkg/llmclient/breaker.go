package llmclient

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerConfig mirrors the circuit breaker tuning the pack uses around
// outbound model calls: trip after a majority of a small sample fails,
// half-open after Timeout to probe recovery.
type BreakerConfig struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
}

// DefaultBreakerConfig returns conservative defaults suitable for a
// 10-minute-timeout model call: don't trip on a single blip, but do
// trip before burning through many slow failures.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
	}
}

// BreakerClient wraps a Client with a circuit breaker per underlying
// provider connection, so a failing Coder or Critic endpoint fails fast
// instead of holding up every orchestration waiting on the per-call
// timeout.
type BreakerClient struct {
	inner Client
	cb    *gobreaker.CircuitBreaker
}

// NewBreakerClient wraps inner with a circuit breaker configured by cfg.
func NewBreakerClient(inner Client, cfg BreakerConfig) *BreakerClient {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
	}
	return &BreakerClient{inner: inner, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (b *BreakerClient) Generate(ctx context.Context, req GenerateRequest) (CodeResult, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.Generate(ctx, req)
	})
	if err != nil {
		return CodeResult{}, fmt.Errorf("coder generate: %w", err)
	}
	return result.(CodeResult), nil
}

func (b *BreakerClient) Revise(ctx context.Context, req ReviseRequest) (CodeResult, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.Revise(ctx, req)
	})
	if err != nil {
		return CodeResult{}, fmt.Errorf("coder revise: %w", err)
	}
	return result.(CodeResult), nil
}

func (b *BreakerClient) Critique(ctx context.Context, req CritiqueRequest) (ReviewFeedback, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.Critique(ctx, req)
	})
	if err != nil {
		return ReviewFeedback{}, fmt.Errorf("critic critique: %w", err)
	}
	return result.(ReviewFeedback), nil
}

func (b *BreakerClient) Close() error { return b.inner.Close() }

// Package metrics implements the MetricsSink supporting service
// (spec §1, §7 Supporting Services): per-tool success/error counters
// and durations, exported as a Prometheus text-format exposition for
// the /metrics HTTP surface.
package metrics

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Sink records counters and durations emitted across all components
// (spec §2: "all components emit to MetricsSink").
type Sink struct {
	provider *sdkmetric.MeterProvider
	meter    metric.Meter

	mu         sync.RWMutex
	counters   map[string]metric.Int64Counter
	histograms map[string]metric.Float64Histogram
}

// New builds a Sink backed by a Prometheus exporter. The returned
// *sdkmetric.MeterProvider's registry should be served at /metrics via
// promhttp.Handler (wired in pkg/transport).
func New() (*Sink, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	return &Sink{
		provider:   provider,
		meter:      provider.Meter("coderloop"),
		counters:   make(map[string]metric.Int64Counter),
		histograms: make(map[string]metric.Float64Histogram),
	}, nil
}

// Provider exposes the underlying meter provider so the HTTP layer can
// pair it with the Prometheus exporter's registry.
func (s *Sink) Provider() *sdkmetric.MeterProvider { return s.provider }

// IncrCounter increments the named counter by one, tagged with labels.
func (s *Sink) IncrCounter(name string, labels map[string]string) {
	counter, err := s.counter(name)
	if err != nil {
		return
	}
	counter.Add(context.Background(), 1, metric.WithAttributes(toAttributes(labels)...))
}

// RecordDuration records a duration in milliseconds against the named
// histogram, tagged with labels.
func (s *Sink) RecordDuration(name string, milliseconds float64, labels map[string]string) {
	histogram, err := s.histogram(name)
	if err != nil {
		return
	}
	histogram.Record(context.Background(), milliseconds, metric.WithAttributes(toAttributes(labels)...))
}

// RecordToolCall records the success/error outcome and duration of a
// single tool-call dispatch (spec §4.1 step 6: "Record per-tool
// success/error metrics and duration").
func (s *Sink) RecordToolCall(tool string, succeeded bool, durationMs float64) {
	status := "success"
	if !succeeded {
		status = "error"
	}
	s.IncrCounter("coderloop_tool_calls_total", map[string]string{"tool": tool, "status": status})
	s.RecordDuration("coderloop_tool_call_duration_ms", durationMs, map[string]string{"tool": tool})
}

// Shutdown flushes and shuts down the underlying meter provider.
func (s *Sink) Shutdown(ctx context.Context) error {
	return s.provider.Shutdown(ctx)
}

func (s *Sink) counter(name string) (metric.Int64Counter, error) {
	s.mu.RLock()
	c, ok := s.counters[name]
	s.mu.RUnlock()
	if ok {
		return c, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok = s.counters[name]; ok {
		return c, nil
	}
	c, err := s.meter.Int64Counter(name)
	if err != nil {
		return nil, fmt.Errorf("create counter %s: %w", name, err)
	}
	s.counters[name] = c
	return c, nil
}

func (s *Sink) histogram(name string) (metric.Float64Histogram, error) {
	s.mu.RLock()
	h, ok := s.histograms[name]
	s.mu.RUnlock()
	if ok {
		return h, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok = s.histograms[name]; ok {
		return h, nil
	}
	h, err := s.meter.Float64Histogram(name)
	if err != nil {
		return nil, fmt.Errorf("create histogram %s: %w", name, err)
	}
	s.histograms[name] = h
	return h, nil
}

func toAttributes(labels map[string]string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(labels))
	for k, v := range labels {
		attrs = append(attrs, attribute.String(k, v))
	}
	return attrs
}

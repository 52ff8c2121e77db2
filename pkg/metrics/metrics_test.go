package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ReturnsUsableSink(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	require.NotNil(t, s.Provider())
	defer s.Shutdown(context.Background())
}

func TestSink_IncrCounterDoesNotPanic(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	defer s.Shutdown(context.Background())

	assert.NotPanics(t, func() {
		s.IncrCounter("coderloop_test_counter", map[string]string{"tool": "execute_task_spec"})
		s.IncrCounter("coderloop_test_counter", map[string]string{"tool": "execute_task_spec"})
	})
}

func TestSink_RecordDurationDoesNotPanic(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	defer s.Shutdown(context.Background())

	assert.NotPanics(t, func() {
		s.RecordDuration("coderloop_test_duration_ms", 12.5, map[string]string{"tool": "run_critic_review"})
	})
}

func TestSink_RecordToolCallTracksSuccessAndError(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	defer s.Shutdown(context.Background())

	assert.NotPanics(t, func() {
		s.RecordToolCall("revise_code", true, 42.0)
		s.RecordToolCall("revise_code", false, 7.0)
	})
}

func TestSink_ReusesCachedInstruments(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	defer s.Shutdown(context.Background())

	c1, err := s.counter("coderloop_reuse_test")
	require.NoError(t, err)
	c2, err := s.counter("coderloop_reuse_test")
	require.NoError(t, err)
	assert.Same(t, c1, c2)
}

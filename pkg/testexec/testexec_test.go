package testexec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStub_PlaysBackScriptedResultsInOrder(t *testing.T) {
	s := NewStub()
	s.AddResult(Result{CoveragePercent: 90})
	s.AddResult(Result{CoveragePercent: 100})

	r1, err := s.Run(context.Background(), "go", "code", "")
	require.NoError(t, err)
	assert.Equal(t, 90.0, r1.CoveragePercent)

	r2, err := s.Run(context.Background(), "go", "code", "")
	require.NoError(t, err)
	assert.Equal(t, 100.0, r2.CoveragePercent)
}

func TestStub_ExhaustedScriptReturnsZeroValue(t *testing.T) {
	s := NewStub()
	r, err := s.Run(context.Background(), "go", "code", "")
	require.NoError(t, err)
	assert.Equal(t, Result{}, r)
}

func TestStub_FailAtReturnsScriptedError(t *testing.T) {
	s := NewStub()
	s.FailAt(0, assert.AnError)

	_, err := s.Run(context.Background(), "go", "code", "")
	assert.ErrorIs(t, err, assert.AnError)
}

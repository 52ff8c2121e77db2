package statemachine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coderrors "github.com/coderloop/coderloop/pkg/errors"
	"github.com/coderloop/coderloop/pkg/session"
)

func TestTransition_LegalEdges(t *testing.T) {
	tests := []struct {
		name string
		from session.State
		to   session.State
	}{
		{"idle to generating", session.StateIdle, session.StateGenerating},
		{"generating to reviewing", session.StateGenerating, session.StateReviewing},
		{"generating to failed", session.StateGenerating, session.StateFailed},
		{"reviewing to converged", session.StateReviewing, session.StateConverged},
		{"reviewing to revising", session.StateReviewing, session.StateRevising},
		{"reviewing to escalated", session.StateReviewing, session.StateEscalated},
		{"revising to reviewing", session.StateRevising, session.StateReviewing},
		{"revising to failed", session.StateRevising, session.StateFailed},
		{"converged to idle", session.StateConverged, session.StateIdle},
		{"escalated to revising", session.StateEscalated, session.StateRevising},
		{"escalated to idle", session.StateEscalated, session.StateIdle},
		{"escalated to failed", session.StateEscalated, session.StateFailed},
		{"failed to idle", session.StateFailed, session.StateIdle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := session.New("session-sm", 5, 80, 30, 1000)
			s.State = tt.from
			require.NoError(t, Transition(s, tt.to))
			assert.Equal(t, tt.to, s.State)
		})
	}
}

func TestTransition_IllegalEdgeRejected(t *testing.T) {
	s := session.New("session-sm", 5, 80, 30, 1000)
	s.State = session.StateIdle

	err := Transition(s, session.StateReviewing)
	require.Error(t, err)
	assert.Equal(t, coderrors.KindInvalidTransition, coderrors.KindOf(err))
	assert.Equal(t, session.StateIdle, s.State, "session must be unchanged after a rejected transition")
}

func TestTransition_EnteringRevisingIncrementsIteration(t *testing.T) {
	s := session.New("session-sm", 5, 80, 30, 1000)
	s.State = session.StateReviewing

	require.NoError(t, Transition(s, session.StateRevising))
	assert.Equal(t, 1, s.CurrentIteration)

	require.NoError(t, Transition(s, session.StateReviewing))
	require.NoError(t, Transition(s, session.StateRevising))
	assert.Equal(t, 2, s.CurrentIteration)
}

func TestTransition_EnteringIdleFromTerminalResetsIterationState(t *testing.T) {
	s := session.New("session-sm", 5, 80, 30, 1000)
	s.State = session.StateConverged
	s.CurrentIteration = 3
	s.ScoreHistory = []int{100}
	s.ContentHashes[session.ContentDigest("x")] = struct{}{}

	require.NoError(t, Transition(s, session.StateIdle))

	assert.Equal(t, 0, s.CurrentIteration)
	assert.Empty(t, s.ScoreHistory)
	assert.Empty(t, s.ContentHashes)
}

func TestTransition_EnteringIdleFromNonTerminalDoesNotReset(t *testing.T) {
	// IDLE is only ever reached from CONVERGED/ESCALATED/FAILED per the
	// legal edge set, so this exercises IsLegal rejecting the attempt
	// rather than a reset firing incorrectly.
	s := session.New("session-sm", 5, 80, 30, 1000)
	s.State = session.StateGenerating

	err := Transition(s, session.StateIdle)
	require.Error(t, err)
}

func TestIsLegal(t *testing.T) {
	assert.True(t, IsLegal(session.StateIdle, session.StateGenerating))
	assert.False(t, IsLegal(session.StateIdle, session.StateConverged))
	assert.False(t, IsLegal(session.StateFailed, session.StateGenerating))
}

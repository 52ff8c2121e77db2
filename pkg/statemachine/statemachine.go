// Package statemachine enforces the legal session state transitions
// (spec §4.3) and their side-effects. It is the only code permitted to
// mutate SessionState.State.
package statemachine

import (
	"fmt"

	coderrors "github.com/coderloop/coderloop/pkg/errors"
	"github.com/coderloop/coderloop/pkg/session"
)

// legalTransitions enumerates every permitted edge in the state graph.
var legalTransitions = map[session.State]map[session.State]bool{
	session.StateIdle: {
		session.StateGenerating: true,
	},
	session.StateGenerating: {
		session.StateReviewing: true,
		session.StateFailed:    true,
	},
	session.StateReviewing: {
		session.StateConverged: true,
		session.StateRevising:  true,
		session.StateEscalated: true,
	},
	session.StateRevising: {
		session.StateReviewing: true,
		session.StateFailed:    true,
	},
	session.StateConverged: {
		session.StateIdle: true,
	},
	session.StateEscalated: {
		session.StateRevising: true,
		session.StateIdle:     true,
		session.StateFailed:   true,
	},
	session.StateFailed: {
		session.StateIdle: true,
	},
}

var terminalStates = map[session.State]bool{
	session.StateConverged: true,
	session.StateEscalated: true,
	session.StateFailed:    true,
}

// IsLegal reports whether from -> to is a permitted edge.
func IsLegal(from, to session.State) bool {
	edges, ok := legalTransitions[from]
	if !ok {
		return false
	}
	return edges[to]
}

// Transition moves s from its current state to next, applying the
// side-effects spec.md §4.3 ties to specific transitions. Transitions
// are synchronous with respect to the owning session: the caller (the
// Orchestrator) is responsible for ensuring no concurrent transition is
// in flight for this session.
func Transition(s *session.SessionState, next session.State) error {
	if !IsLegal(s.State, next) {
		return coderrors.Wrap(
			coderrors.KindInvalidTransition,
			fmt.Sprintf("illegal transition %s -> %s", s.State, next),
			coderrors.ErrInvalidTransition,
		)
	}

	from := s.State
	s.State = next

	switch next {
	case session.StateRevising:
		s.CurrentIteration++
	case session.StateIdle:
		if terminalStates[from] {
			s.ResetForReuse()
		}
	}

	return nil
}

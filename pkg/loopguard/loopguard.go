// Package loopguard implements the four ordered predicates (spec §4.4)
// consulted before every candidate REVIEWING -> REVISING transition.
package loopguard

import (
	"github.com/coderloop/coderloop/pkg/session"
)

// Reason identifies which predicate, if any, refused the transition.
// These values double as EscalationMessage.reason (spec §4.6.1).
type Reason string

const (
	ReasonNone                Reason = ""
	ReasonMaxIterationsReached Reason = "max_iterations_reached"
	ReasonTimeoutExceeded     Reason = "timeout_exceeded"
	ReasonOscillationDetected Reason = "oscillation_detected"
	ReasonStagnationDetected  Reason = "stagnation_detected"
)

// Config carries the Loop Guard's tunables. Zero StagnationWindow/
// StagnationThreshold fall back to the spec defaults (2 and 2).
type Config struct {
	OscillationEnabled  bool
	StagnationWindow    int
	StagnationThreshold int
}

// DefaultConfig returns the spec-mandated defaults.
func DefaultConfig() Config {
	return Config{
		OscillationEnabled:  true,
		StagnationWindow:    2,
		StagnationThreshold: 2,
	}
}

func (c Config) window() int {
	if c.StagnationWindow <= 0 {
		return 2
	}
	return c.StagnationWindow
}

func (c Config) threshold() int {
	if c.StagnationThreshold <= 0 {
		return 2
	}
	return c.StagnationThreshold
}

// Decision reports the Loop Guard's verdict for one candidate
// REVIEWING -> REVISING transition.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// Evaluate runs the four predicates in spec order against s, given the
// newly produced code content and the current wall-clock time in epoch
// milliseconds. The first matching predicate wins; predicate 3
// (oscillation) mutates s.ContentHashes as a side effect even when it
// does not itself trigger, per spec §4.4.
func Evaluate(s *session.SessionState, guard Config, newCodeContent string, nowMs int64) Decision {
	// 1. Iteration cap.
	if s.CurrentIteration >= s.MaxIterations {
		return Decision{Allowed: false, Reason: ReasonMaxIterationsReached}
	}

	// 2. Wall-clock timeout.
	timeoutMs := int64(s.TaskTimeoutMinutes) * 60 * 1000
	if s.ElapsedMs(nowMs) > timeoutMs {
		return Decision{Allowed: false, Reason: ReasonTimeoutExceeded}
	}

	// 3. Oscillation.
	if guard.OscillationEnabled {
		digest := session.ContentDigest(newCodeContent)
		if _, seen := s.ContentHashes[digest]; seen {
			return Decision{Allowed: false, Reason: ReasonOscillationDetected}
		}
		s.ContentHashes[digest] = struct{}{}
	}

	// 4. Stagnation.
	window := guard.window()
	if len(s.ScoreHistory) >= window {
		recent := s.ScoreHistory[len(s.ScoreHistory)-window:]
		stagnant := true
		for i := 1; i < len(recent); i++ {
			delta := recent[i] - recent[i-1]
			if delta < 0 {
				delta = -delta
			}
			if delta >= guard.threshold() {
				stagnant = false
				break
			}
		}
		if stagnant {
			return Decision{Allowed: false, Reason: ReasonStagnationDetected}
		}
	}

	return Decision{Allowed: true, Reason: ReasonNone}
}

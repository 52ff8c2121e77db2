package orchestrator

import (
	"errors"
	"sort"

	"github.com/coderloop/coderloop/pkg/llmclient"
	"github.com/coderloop/coderloop/pkg/loopguard"
	"github.com/coderloop/coderloop/pkg/review"
	"github.com/coderloop/coderloop/pkg/session"
)

// errNoCodeArtifact is returned by BuildEscalation when the session has
// no code artifact to escalate, per spec §4.6.1 ("Error if there is no
// code artifact").
var errNoCodeArtifact = errors.New("escalation: session has no code artifact")

// Reason is the full set of escalation reasons: the four Loop Guard
// reasons plus dangerous_output_detected (spec §4.6.1, §7) and the two
// additional tags spec §9 asks implementers to introduce rather than
// overload max_iterations_reached for task-spec rejection and
// unhandled errors.
type Reason string

const (
	ReasonMaxIterationsReached Reason = Reason(loopguard.ReasonMaxIterationsReached)
	ReasonTimeoutExceeded      Reason = Reason(loopguard.ReasonTimeoutExceeded)
	ReasonOscillationDetected  Reason = Reason(loopguard.ReasonOscillationDetected)
	ReasonStagnationDetected   Reason = Reason(loopguard.ReasonStagnationDetected)
	ReasonDangerousOutput      Reason = "dangerous_output_detected"
	ReasonTaskRejected         Reason = "task_rejected"
	ReasonInternalError        Reason = "internal_error"
)

func fromLoopGuardReason(r loopguard.Reason) Reason { return Reason(r) }

// IterationEntry zips one score_history entry with its originating
// code artifact id.
type IterationEntry struct {
	Iteration int
	Score     int
	ArtifactID string
}

// Message is the EscalationMessage entity (spec §4.6.1).
type Message struct {
	SessionID        string
	Reason           Reason
	BestArtifact     session.Artifact
	IterationHistory []IterationEntry
	FinalCritique    llmclient.ReviewFeedback
	AvailableActions []string
}

// availableActions is the fixed four-entry list spec.md §4.6.1 mandates.
var availableActions = []string{"switch_llm", "retry_with_constraints", "abort", "accept_best_effort"}

// BuildEscalation constructs an EscalationMessage for s per spec
// §4.6.1: best_artifact is the highest-scoring code artifact (ties to
// earliest iteration), iteration_history zips score_history with the
// ordered code artifacts, final_critique is parsed from the latest
// review artifact or fabricated from last_quality_score if none exists.
func BuildEscalation(s *session.SessionState, reason Reason) (Message, error) {
	codeArtifacts := s.CodeArtifacts()
	if len(codeArtifacts) == 0 {
		return Message{}, errNoCodeArtifact
	}

	history := make([]IterationEntry, 0, len(s.ScoreHistory))
	for i, score := range s.ScoreHistory {
		artifactID := ""
		if i < len(codeArtifacts) {
			artifactID = codeArtifacts[i].ID
		}
		history = append(history, IterationEntry{Iteration: i, Score: score, ArtifactID: artifactID})
	}

	best := bestArtifact(codeArtifacts, history)

	critique := finalCritique(s)

	return Message{
		SessionID:        s.SessionID,
		Reason:           reason,
		BestArtifact:     best,
		IterationHistory: history,
		FinalCritique:    critique,
		AvailableActions: append([]string(nil), availableActions...),
	}, nil
}

func bestArtifact(codeArtifacts []session.Artifact, history []IterationEntry) session.Artifact {
	if len(history) == 0 {
		return codeArtifacts[0]
	}

	ordered := append([]IterationEntry(nil), history...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Score != ordered[j].Score {
			return ordered[i].Score > ordered[j].Score
		}
		return ordered[i].Iteration < ordered[j].Iteration
	})

	winnerID := ordered[0].ArtifactID
	for _, a := range codeArtifacts {
		if a.ID == winnerID {
			return a
		}
	}
	return codeArtifacts[0]
}

func finalCritique(s *session.SessionState) llmclient.ReviewFeedback {
	reviewArtifact, ok := s.LatestArtifactOfKind(session.ArtifactReview)
	if ok {
		if record, err := review.ParseRecord(reviewArtifact.Content); err == nil {
			return record.Feedback
		}
	}

	score := 0
	if s.LastQualityScore != nil {
		score = *s.LastQualityScore
	}
	return llmclient.ReviewFeedback{
		QualityScore:    score,
		Defects:         []llmclient.Defect{},
		Suggestions:     []string{},
		RequiredChanges: []string{},
	}
}

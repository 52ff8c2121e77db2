package transport

import (
	"context"
	"fmt"

	"github.com/coderloop/coderloop/pkg/clock"
	"github.com/coderloop/coderloop/pkg/ids"
	"github.com/coderloop/coderloop/pkg/session"
)

// ArchiveBuilder is the concrete orchestrator.Archiver (spec §6
// final_handoff_archive): it appends an audit_trail artifact
// summarizing the converged session and mints an archive id. The same
// logic backs both the Orchestrator's automatic archive-on-convergence
// step and the final_handoff_archive tool's explicit call.
type ArchiveBuilder struct {
	Store session.Store
	Clock clock.Clock
}

// Archive implements orchestrator.Archiver.
func (a *ArchiveBuilder) Archive(ctx context.Context, s *session.SessionState) (string, error) {
	archiveID := ids.NewArchiveID()

	auditArtifact := session.Artifact{
		ID:          ids.NewArtifactID(),
		Kind:        session.ArtifactAuditTrail,
		Description: fmt.Sprintf("handoff archive %s", archiveID),
		TimestampMs: session.NowMs(a.Clock.Now()),
		Content:     fmt.Sprintf(`{"archive_id":%q,"session_id":%q,"iteration_count":%d}`, archiveID, s.SessionID, s.CurrentIteration),
		Metadata: map[string]string{
			"archive_id": archiveID,
		},
	}
	if err := a.Store.AppendArtifact(s.SessionID, auditArtifact); err != nil {
		return "", fmt.Errorf("append audit trail: %w", err)
	}
	s.AppendArtifact(auditArtifact)
	return archiveID, nil
}

// HandoffArchive is the shape final_handoff_archive returns (spec §6):
// archive id, final artifact, test suite, final score, iteration
// count, and an optional audit trail.
type HandoffArchive struct {
	ArchiveID      string            `json:"archive_id"`
	SessionID      string            `json:"session_id"`
	FinalArtifact  session.Artifact  `json:"final_artifact"`
	TestSuite      *session.Artifact `json:"test_suite,omitempty"`
	FinalScore     int               `json:"final_score"`
	IterationCount int               `json:"iteration_count"`
	AuditTrail     []session.Artifact `json:"audit_trail,omitempty"`
}

// BuildHandoffArchive assembles the final_handoff_archive response for
// an already-converged (or otherwise terminal) session, re-using
// ArchiveBuilder.Archive to mint the archive id rather than
// duplicating the Orchestrator's on-convergence path.
func (a *ArchiveBuilder) BuildHandoffArchive(ctx context.Context, s *session.SessionState, includeAudit bool) (HandoffArchive, error) {
	codeArtifacts := s.CodeArtifacts()
	if len(codeArtifacts) == 0 {
		return HandoffArchive{}, fmt.Errorf("session %s has no code artifact to archive", s.SessionID)
	}
	finalArtifact := codeArtifacts[len(codeArtifacts)-1]

	var testSuite *session.Artifact
	if suite, ok := latestTestSuite(s); ok {
		testSuite = &suite
	}

	score := 0
	if s.LastQualityScore != nil {
		score = *s.LastQualityScore
	}

	archiveID, err := a.Archive(ctx, s)
	if err != nil {
		return HandoffArchive{}, err
	}

	archive := HandoffArchive{
		ArchiveID:      archiveID,
		SessionID:      s.SessionID,
		FinalArtifact:  finalArtifact,
		TestSuite:      testSuite,
		FinalScore:     score,
		IterationCount: s.CurrentIteration,
	}
	if includeAudit {
		archive.AuditTrail = auditTrailArtifacts(s)
	}
	return archive, nil
}

func latestTestSuite(s *session.SessionState) (session.Artifact, bool) {
	return s.LatestArtifactOfKind(session.ArtifactTestSuite)
}

func auditTrailArtifacts(s *session.SessionState) []session.Artifact {
	var out []session.Artifact
	for _, a := range s.Artifacts {
		if a.Kind == session.ArtifactAuditTrail {
			out = append(out, a)
		}
	}
	return out
}

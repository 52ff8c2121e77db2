// Package review implements the Review Pipeline (spec §4.5): given a
// code artifact, it invokes the Critic, runs tests and static
// analysis, merges the resulting defects, computes a quality score,
// and emits a review artifact.
package review

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/coderloop/coderloop/pkg/ids"
	"github.com/coderloop/coderloop/pkg/llmclient"
	"github.com/coderloop/coderloop/pkg/session"
	"github.com/coderloop/coderloop/pkg/staticanalysis"
	"github.com/coderloop/coderloop/pkg/testexec"
)

// Recommendation is the Review Pipeline's verdict on a reviewed code
// artifact (spec §4.5 step 6).
type Recommendation string

const (
	RecommendApprove  Recommendation = "approve"
	RecommendRevise   Recommendation = "revise"
	RecommendEscalate Recommendation = "escalate"
)

// Outcome bundles everything one review pass produces.
type Outcome struct {
	Feedback       llmclient.ReviewFeedback
	TestCoverage   float64
	TestDefects    []llmclient.Defect
	AllDefects     []llmclient.Defect
	QualityScore   int
	Recommendation Recommendation
	Artifact       session.Artifact
}

// Pipeline runs the Review Pipeline against one code artifact.
type Pipeline struct {
	Critic   llmclient.Critic
	Tests    testexec.Executor
	Analysis staticanalysis.Analyzer
	NowMs    func() int64
}

// Run executes steps 1-7 of spec §4.5 for the given code artifact
// within s, at the given review depth.
func (p *Pipeline) Run(ctx context.Context, s *session.SessionState, task llmclient.TaskSpec, code session.Artifact, reviewDepth string) (Outcome, error) {
	feedback, err := p.Critic.Critique(ctx, llmclient.CritiqueRequest{
		SessionID:   s.SessionID,
		Task:        task,
		Code:        code.Content,
		ReviewDepth: reviewDepth,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("critic call failed: %w", err)
	}

	coverage, hasCoverage, testDefects := p.runTests(ctx, s, code)
	staticDefects := p.runStaticAnalysis(ctx, code, task.Language)

	allDefects := make([]llmclient.Defect, 0, len(feedback.Defects)+len(testDefects)+len(staticDefects))
	allDefects = append(allDefects, feedback.Defects...)
	allDefects = append(allDefects, testDefects...)
	allDefects = append(allDefects, staticDefects...)

	score := ComputeQualityScore(allDefects, 0, coverage, hasCoverage)

	nowMs := p.nowMs()
	s.RecordReview(score, nowMs)

	rec := recommend(score, s.QualityThreshold, s.CurrentIteration, s.MaxIterations)

	artifact := session.Artifact{
		ID:          ids.NewArtifactID(),
		Kind:        session.ArtifactReview,
		Description: fmt.Sprintf("review of %s (depth=%s)", code.ID, reviewDepth),
		TimestampMs: nowMs,
		Content:     renderReviewContent(feedback, coverage, testDefects, allDefects),
		Metadata: map[string]string{
			"quality_score":      fmt.Sprintf("%d", score),
			"test_coverage":      fmt.Sprintf("%.2f", coverage),
			"policy_violations":  "0",
			"review_depth":       reviewDepth,
			"code_artifact_id":   code.ID,
		},
	}
	s.AppendArtifact(artifact)

	return Outcome{
		Feedback:       feedback,
		TestCoverage:   coverage,
		TestDefects:    testDefects,
		AllDefects:     allDefects,
		QualityScore:   score,
		Recommendation: rec,
		Artifact:       artifact,
	}, nil
}

func (p *Pipeline) nowMs() int64 {
	if p.NowMs != nil {
		return p.NowMs()
	}
	return 0
}

// runTests finds the linked test-suite artifact (§4.5.1) and invokes
// the TestExecutor; per spec §5, a timeout or missing suite is treated
// as "no coverage / no violations" rather than a hard failure.
func (p *Pipeline) runTests(ctx context.Context, s *session.SessionState, code session.Artifact) (coverage float64, hasCoverage bool, defects []llmclient.Defect) {
	if p.Tests == nil {
		return 0, false, nil
	}

	suite, ok := FindTestArtifact(s, code)
	if !ok {
		return 0, false, nil
	}

	result, err := p.Tests.Run(ctx, "", code.Content, suite.Content)
	if err != nil {
		return 0, false, nil
	}

	defects = make([]llmclient.Defect, 0, len(result.Failures))
	for _, f := range result.Failures {
		defects = append(defects, llmclient.Defect{
			Severity:     llmclient.SeverityMajor,
			Category:     "test_failure",
			Location:     f.Location,
			Description:  fmt.Sprintf("Test failed: %s", f.Name),
			SuggestedFix: fmt.Sprintf("Fix: %s", f.ErrorMessage),
		})
	}
	return result.CoveragePercent, true, defects
}

func (p *Pipeline) runStaticAnalysis(ctx context.Context, code session.Artifact, language string) []llmclient.Defect {
	if p.Analysis == nil {
		return nil
	}
	violations, err := p.Analysis.Analyze(ctx, language, code.Content)
	if err != nil {
		return nil
	}
	defects := make([]llmclient.Defect, 0, len(violations))
	for _, v := range violations {
		defects = append(defects, llmclient.Defect{
			Severity:    v.Severity,
			Category:    v.Category,
			Location:    v.Location,
			Description: v.Description,
		})
	}
	return defects
}

// FindTestArtifact implements spec §4.5.1: the test-suite artifact
// explicitly linked to code, or failing that the most recent test_suite
// artifact produced after code.
func FindTestArtifact(s *session.SessionState, code session.Artifact) (session.Artifact, bool) {
	for _, a := range s.Artifacts {
		if a.Kind == session.ArtifactTestSuite && a.Metadata["code_artifact_id"] == code.ID {
			return a, true
		}
	}

	var best session.Artifact
	found := false
	for _, a := range s.Artifacts {
		if a.Kind != session.ArtifactTestSuite {
			continue
		}
		if a.TimestampMs <= code.TimestampMs {
			continue
		}
		if !found || a.TimestampMs > best.TimestampMs {
			best = a
			found = true
		}
	}
	return best, found
}

func recommend(score, threshold, currentIteration, maxIterations int) Recommendation {
	if score >= threshold {
		return RecommendApprove
	}
	if currentIteration < maxIterations {
		return RecommendRevise
	}
	return RecommendEscalate
}

// Record is the JSON-like review-artifact content spec §4.5 step 7
// describes: the draft feedback plus the test/defect aggregates the
// pipeline computed.
type Record struct {
	Feedback     llmclient.ReviewFeedback `json:"feedback"`
	TestCoverage float64                  `json:"test_coverage"`
	TestDefects  []llmclient.Defect       `json:"test_defects"`
	AllDefects   []llmclient.Defect       `json:"all_defects"`
}

func renderReviewContent(feedback llmclient.ReviewFeedback, coverage float64, testDefects, allDefects []llmclient.Defect) string {
	record := Record{Feedback: feedback, TestCoverage: coverage, TestDefects: testDefects, AllDefects: allDefects}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Sprintf(`{"feedback":{"quality_score":%d}}`, feedback.QualityScore)
	}
	return string(data)
}

// ParseRecord parses a review artifact's content back into a Record,
// the form the Orchestrator's escalation construction (spec §4.6.1)
// needs to recover the latest ReviewFeedback.
func ParseRecord(content string) (Record, error) {
	var record Record
	if err := json.Unmarshal([]byte(content), &record); err != nil {
		return Record{}, fmt.Errorf("parse review record: %w", err)
	}
	return record, nil
}

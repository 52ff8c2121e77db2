package transport

import (
	"context"
	"fmt"
	"os"

	coderrors "github.com/coderloop/coderloop/pkg/errors"
	"github.com/coderloop/coderloop/pkg/ids"
	"github.com/coderloop/coderloop/pkg/llmclient"
	"github.com/coderloop/coderloop/pkg/orchestrator"
	"github.com/coderloop/coderloop/pkg/policy"
	"github.com/coderloop/coderloop/pkg/review"
	"github.com/coderloop/coderloop/pkg/session"
)

// handleExecuteTaskSpec implements execute_task_spec (spec §6): it
// launches the Orchestrator's fully synchronous Run in a background
// goroutine, which holds its own in-flight counter slot (taken here
// with beginRequest, released when Run returns), and
// returns immediately with the new session's id and a "running"
// status rather than blocking on convergence.
func (s *Server) handleExecuteTaskSpec(_ context.Context, args map[string]any) (any, error) {
	sessionID := ids.NewSessionID()
	task := llmclient.TaskSpec{
		Description: argString(args, "description"),
		Language:    argString(args, "language"),
	}

	opts := orchestrator.Options{ReviewDepth: "standard"}
	maxIterations := argInt(args, "max_iterations", s.cfg.Orchestrator.MaxIterations)
	if maxIterations > 0 {
		opts.MaxIterations = &maxIterations
	}
	qualityThreshold := argInt(args, "quality_threshold", s.cfg.Orchestrator.QualityThreshold)
	if qualityThreshold > 0 {
		opts.QualityThreshold = &qualityThreshold
	}
	if s.cfg.Orchestrator.TaskTimeoutMinutes > 0 {
		timeout := s.cfg.Orchestrator.TaskTimeoutMinutes
		opts.TaskTimeoutMinutes = &timeout
	}

	done, beginErr := s.beginRequest()
	if beginErr != nil {
		return nil, coderrors.New(coderrors.KindInternal, "server shutting down")
	}
	go func() {
		defer done()
		if _, _, err := s.orchestrator.Run(context.Background(), sessionID, task, opts); err != nil {
			s.logger.Error("orchestration run failed", "session_id", sessionID, "error", err)
		}
	}()

	return map[string]any{"session_id": sessionID, "status": "running"}, nil
}

// handleRunCriticReview implements run_critic_review (spec §6),
// invoking the Review Pipeline (§4.5) directly against one named
// artifact rather than through the full orchestration loop.
func (s *Server) handleRunCriticReview(ctx context.Context, args map[string]any) (any, error) {
	sessionID := argString(args, "session_id")
	artifactID := argString(args, "artifact_id")
	reviewDepth := argString(args, "review_depth")
	if reviewDepth == "" {
		reviewDepth = "standard"
	}

	st, err := s.store.Load(sessionID)
	if err != nil {
		return nil, err
	}
	code, ok := findArtifact(st, artifactID, session.ArtifactCode)
	if !ok {
		return nil, coderrors.New(coderrors.KindNotFound, "code artifact not found").WithField("artifact_id", artifactID)
	}

	task := llmclient.TaskSpec{Language: code.Metadata["language"]}
	pipeline := review.Pipeline{
		Critic:   s.clients,
		Tests:    s.tests,
		Analysis: s.analysis,
		NowMs:    func() int64 { return session.NowMs(s.clock.Now()) },
	}

	outcome, err := pipeline.Run(ctx, st, task, code, reviewDepth)
	if err != nil {
		return nil, err
	}
	if err := s.store.Persist(st); err != nil {
		return nil, err
	}

	return map[string]any{
		"review_id":          outcome.Artifact.ID,
		"quality_score":       outcome.QualityScore,
		"defects":             outcome.AllDefects,
		"test_coverage":       outcome.TestCoverage,
		"policy_violations":   0,
		"suggestions":         outcome.Feedback.Suggestions,
		"recommendation":      outcome.Recommendation,
		"required_changes":    outcome.Feedback.RequiredChanges,
	}, nil
}

// handleReviseCode implements revise_code (spec §6): invoke the
// Coder's revise facet directly, outside the orchestration loop, and
// append the resulting code artifact.
func (s *Server) handleReviseCode(ctx context.Context, args map[string]any) (any, error) {
	sessionID := argString(args, "session_id")
	feedbackText := argString(args, "feedback")

	st, err := s.store.Load(sessionID)
	if err != nil {
		return nil, err
	}
	codeArtifacts := st.CodeArtifacts()
	if len(codeArtifacts) == 0 {
		return nil, coderrors.New(coderrors.KindNotFound, "session has no code artifact to revise")
	}
	current := codeArtifacts[len(codeArtifacts)-1]

	result, err := s.clients.Revise(ctx, llmclient.ReviseRequest{
		SessionID:   sessionID,
		Task:        llmclient.TaskSpec{Language: current.Metadata["language"]},
		CurrentCode: current.Content,
		Feedback:    llmclient.ReviewFeedback{RequiredChanges: []string{feedbackText}},
	})
	if err != nil {
		return nil, err
	}

	artifact := session.Artifact{
		ID:          ids.NewArtifactID(),
		Kind:        session.ArtifactCode,
		Description: "revised code",
		TimestampMs: session.NowMs(s.clock.Now()),
		Content:     result.Content,
		Metadata: map[string]string{
			"language": result.Language,
		},
	}
	if err := s.store.AppendArtifact(sessionID, artifact); err != nil {
		return nil, err
	}

	return artifact, nil
}

// handleGetRepoMap implements get_repo_map (spec §6).
func (s *Server) handleGetRepoMap(_ context.Context, args map[string]any) (any, error) {
	repoPath := argString(args, "repo_path")
	includeTests := argBool(args, "include_tests", false)

	info, err := os.Stat(repoPath)
	if err != nil || !info.IsDir() {
		return nil, coderrors.New(coderrors.KindValidation, "repo_path does not exist or is not a directory").WithField("repo_path", repoPath)
	}

	repoMap, err := BuildRepoMap(os.DirFS(repoPath), includeTests)
	if err != nil {
		return nil, coderrors.Wrap(coderrors.KindInternal, "walk repo", err)
	}
	return repoMap, nil
}

// handleGetProjectStatus implements get_project_status (spec §6).
func (s *Server) handleGetProjectStatus(_ context.Context, args map[string]any) (any, error) {
	st, err := s.store.Load(argString(args, "session_id"))
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"session_id":         st.SessionID,
		"state":              st.State,
		"current_iteration":  st.CurrentIteration,
		"max_iterations":     st.MaxIterations,
		"quality_threshold":  st.QualityThreshold,
		"last_quality_score": st.LastQualityScore,
		"elapsed_time_ms":    st.ElapsedMs(session.NowMs(s.clock.Now())),
		"artifact_count":     len(st.Artifacts),
	}, nil
}

// handleGetProgressSummary implements get_progress_summary (spec §6),
// using ComputeConvergenceTrend rather than pkg/loopguard's
// allow/refuse predicate (a different question from the same inputs).
func (s *Server) handleGetProgressSummary(_ context.Context, args map[string]any) (any, error) {
	st, err := s.store.Load(argString(args, "session_id"))
	if err != nil {
		return nil, err
	}
	trend := ComputeConvergenceTrend(st.ScoreHistory, s.guard.StagnationWindow, s.guard.StagnationThreshold)

	summary := map[string]any{
		"iterations_completed":   st.CurrentIteration,
		"quality_scores":         st.ScoreHistory,
		"time_per_iteration_ms":  st.TimePerIterationMs,
		"current_state":          st.State,
		"convergence_trend":      trend,
	}
	if argString(args, "verbosity") == "detailed" {
		summary["artifacts"] = st.Artifacts
	}
	return summary, nil
}

// handleFinalHandoffArchive implements final_handoff_archive (spec §6).
func (s *Server) handleFinalHandoffArchive(ctx context.Context, args map[string]any) (any, error) {
	st, err := s.store.Load(argString(args, "session_id"))
	if err != nil {
		return nil, err
	}
	includeAudit := argBool(args, "include_audit", false)
	archive, err := s.archiver.BuildHandoffArchive(ctx, st, includeAudit)
	if err != nil {
		return nil, coderrors.Wrap(coderrors.KindValidation, "cannot build handoff archive", err)
	}
	if err := s.store.Persist(st); err != nil {
		return nil, err
	}
	return archive, nil
}

// handleReadOrgPolicies implements read_org_policies (spec §6).
func (s *Server) handleReadOrgPolicies(_ context.Context, args map[string]any) (any, error) {
	result, err := s.policies.Read(policy.Type(argString(args, "policy_type")))
	if err != nil {
		return nil, coderrors.Wrap(coderrors.KindInternal, "read policies", err)
	}
	return map[string]any{"rules": result.Rules, "source": result.Source}, nil
}

// handleConfigureEndpoint implements configure_endpoint (spec §6).
func (s *Server) handleConfigureEndpoint(ctx context.Context, args map[string]any) (any, error) {
	agentType := AgentType(argString(args, "agent_type"))
	providerConfig := argObject(args, "provider_config")
	if err := s.clients.Configure(ctx, agentType, providerConfig); err != nil {
		return nil, coderrors.Wrap(coderrors.KindExternalTimeout, "configure endpoint", err)
	}
	return map[string]any{"agent_type": agentType, "status": "configured"}, nil
}

// handleSetSystemPrompts implements set_system_prompts (spec §6).
func (s *Server) handleSetSystemPrompts(_ context.Context, args map[string]any) (any, error) {
	agentType := AgentType(argString(args, "agent_type"))
	prompts := argStringMap(args, "prompts")
	s.clients.SetPrompts(agentType, prompts)
	return map[string]any{"agent_type": agentType, "status": "updated", "prompt_keys": len(prompts)}, nil
}

// handleGenerateTestSuite implements generate_test_suite (spec §6). No
// artifact-keyed session_id is part of this tool's contract, so the
// target artifact is located by scanning every known session (the
// same pattern the teacher's cross-session trace endpoints use to
// resolve an id without its owning session).
func (s *Server) handleGenerateTestSuite(ctx context.Context, args map[string]any) (any, error) {
	artifactID := argString(args, "artifact_id")
	framework := argString(args, "framework")
	coverageTarget := argFloat(args, "coverage_target", 80)

	st, artifact, err := findArtifactAcrossSessions(s.store, artifactID, session.ArtifactCode)
	if err != nil {
		return nil, err
	}

	task := llmclient.TaskSpec{
		Description:  fmt.Sprintf("Generate a %s test suite for the supplied code, targeting %.0f%% coverage.", framework, coverageTarget),
		Language:     artifact.Metadata["language"],
		ContextFiles: []string{artifact.Content},
	}
	result, err := s.clients.Generate(ctx, llmclient.GenerateRequest{SessionID: st.SessionID, Task: task})
	if err != nil {
		return nil, err
	}

	suite := session.Artifact{
		ID:          ids.NewArtifactID(),
		Kind:        session.ArtifactTestSuite,
		Description: fmt.Sprintf("%s test suite for %s", framework, artifactID),
		TimestampMs: session.NowMs(s.clock.Now()),
		Content:     result.Content,
		Metadata: map[string]string{
			"code_artifact_id": artifactID,
			"framework":        framework,
		},
	}
	if err := s.store.AppendArtifact(st.SessionID, suite); err != nil {
		return nil, err
	}
	return suite, nil
}

// handleInjectAlternativePattern implements inject_alternative_pattern
// (spec §6). Its contract carries no session_id, so the hint is
// attached to a session only when context names one; otherwise it is
// acknowledged without persistence.
func (s *Server) handleInjectAlternativePattern(_ context.Context, args map[string]any) (any, error) {
	pattern := argString(args, "pattern")
	patternContext := argString(args, "context")

	if st, err := s.store.Load(patternContext); err == nil {
		hint := session.Artifact{
			ID:          ids.NewArtifactID(),
			Kind:        session.ArtifactLog,
			Description: "alternative pattern hint",
			TimestampMs: session.NowMs(s.clock.Now()),
			Content:     pattern,
			Metadata: map[string]string{
				"context": patternContext,
			},
		}
		if appendErr := s.store.AppendArtifact(st.SessionID, hint); appendErr != nil {
			return nil, appendErr
		}
		return map[string]any{"status": "recorded", "session_id": st.SessionID}, nil
	}

	return map[string]any{"status": "recorded", "session_id": nil}, nil
}

func findArtifact(st *session.SessionState, artifactID string, kind session.ArtifactKind) (session.Artifact, bool) {
	for _, a := range st.Artifacts {
		if a.ID == artifactID && a.Kind == kind {
			return a, true
		}
	}
	return session.Artifact{}, false
}

func findArtifactAcrossSessions(store session.Store, artifactID string, kind session.ArtifactKind) (*session.SessionState, session.Artifact, error) {
	sessions, err := store.List()
	if err != nil {
		return nil, session.Artifact{}, err
	}
	for _, st := range sessions {
		if a, ok := findArtifact(st, artifactID, kind); ok {
			return st, a, nil
		}
	}
	return nil, session.Artifact{}, coderrors.New(coderrors.KindNotFound, "artifact not found").WithField("artifact_id", artifactID)
}

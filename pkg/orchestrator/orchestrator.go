// Package orchestrator drives the full generate -> review ->
// (approve|revise|escalate) loop (spec §4.6), owning cancellation and
// escalation construction.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/coderloop/coderloop/pkg/clock"
	coderrors "github.com/coderloop/coderloop/pkg/errors"
	"github.com/coderloop/coderloop/pkg/ids"
	"github.com/coderloop/coderloop/pkg/llmclient"
	"github.com/coderloop/coderloop/pkg/loopguard"
	"github.com/coderloop/coderloop/pkg/review"
	"github.com/coderloop/coderloop/pkg/session"
	"github.com/coderloop/coderloop/pkg/staticanalysis"
	"github.com/coderloop/coderloop/pkg/statemachine"
	"github.com/coderloop/coderloop/pkg/testexec"
)

// Defaults for options not supplied by the caller.
const (
	DefaultMaxIterations      = 5
	DefaultQualityThreshold   = 85
	DefaultTaskTimeoutMinutes = 30
)

// Options overrides the session's configured defaults for one run,
// per spec §4.6 ("Apply options over config defaults").
type Options struct {
	MaxIterations      *int
	QualityThreshold   *int
	TaskTimeoutMinutes *int
	ReviewDepth        string
}

// Archiver produces an archive id for a converged session (spec §6
// final_handoff_archive). Kept as a seam so pkg/transport's concrete
// implementation (which also serializes the final artifacts) can be
// swapped for a stub in tests.
type Archiver interface {
	Archive(ctx context.Context, s *session.SessionState) (string, error)
}

// Orchestrator is the single entry point described in spec §4.6.
type Orchestrator struct {
	Store    session.Store
	Coder    llmclient.Coder
	Critic   llmclient.Critic
	Tests    testexec.Executor
	Analysis staticanalysis.Analyzer
	Archiver Archiver
	Clock    clock.Clock
	Guard    loopguard.Config
	Logger   *slog.Logger
}

// dangerousPatterns implements the "critical heuristic" spec §7's
// DangerousOutput kind names: destructive file ops, SQL destruction,
// dynamic code execution, shell injection risk.
var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)rm\s+-rf\s+/`),
	regexp.MustCompile(`(?i)drop\s+table`),
	regexp.MustCompile(`(?i)\beval\s*\(`),
	regexp.MustCompile(`(?i)os\.system\s*\(`),
	regexp.MustCompile(`(?i)subprocess\.(call|run|popen)\s*\(.*shell\s*=\s*true`),
}

func isDangerous(content string) bool {
	for _, p := range dangerousPatterns {
		if p.MatchString(content) {
			return true
		}
	}
	return false
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o *Orchestrator) nowMs() int64 {
	return session.NowMs(o.Clock.Now())
}

// Run executes one orchestration per spec §4.6. It returns exactly one
// of (archiveID, nil) or ("", *Message) on escalation; err is non-nil
// only when a new session cannot be created in the store, in which case
// nothing was stored and no state transition took place. Every later
// failure goes through fail and comes back as an internal_error
// escalation with a nil err.
func (o *Orchestrator) Run(ctx context.Context, sessionID string, task llmclient.TaskSpec, opts Options) (archiveID string, escalation *Message, err error) {
	s, loadErr := o.Store.Load(sessionID)
	if loadErr != nil {
		s = session.New(sessionID, DefaultMaxIterations, DefaultQualityThreshold, DefaultTaskTimeoutMinutes, o.nowMs())
		if createErr := o.Store.Create(s); createErr != nil {
			return "", nil, fmt.Errorf("create session: %w", createErr)
		}
	}
	applyOptions(s, opts)

	reviewDepth := opts.ReviewDepth
	if reviewDepth == "" {
		reviewDepth = "standard"
	}

	if err := validateTask(task); err != nil {
		msg := rejectionEscalation(s.SessionID, ReasonTaskRejected)
		return "", &msg, nil
	}

	if err := statemachine.Transition(s, session.StateGenerating); err != nil {
		return o.fail(s)
	}
	code, genErr := o.Coder.Generate(ctx, llmclient.GenerateRequest{SessionID: s.SessionID, Task: task})
	if genErr != nil {
		return o.fail(s)
	}
	codeArtifact := o.emitCode(s, code, 0)
	if err := o.Store.Persist(s); err != nil {
		return o.fail(s)
	}

	pipeline := review.Pipeline{Critic: o.Critic, Tests: o.Tests, Analysis: o.Analysis, NowMs: o.nowMs}

	for {
		if err := statemachine.Transition(s, session.StateReviewing); err != nil {
			return o.fail(s)
		}

		// A generated artifact that matches the dangerous-output
		// heuristic (spec §7) escalates immediately; REVIEWING is the
		// only state with a legal edge to ESCALATED, so the check sits
		// here rather than right after Coder.Generate/Revise.
		if isDangerous(codeArtifact.Content) {
			if err := statemachine.Transition(s, session.StateEscalated); err != nil {
				return o.fail(s)
			}
			return o.escalate(s, ReasonDangerousOutput)
		}

		outcome, reviewErr := pipeline.Run(ctx, s, task, codeArtifact, reviewDepth)
		if reviewErr != nil {
			return o.fail(s)
		}
		if persistErr := o.Store.Persist(s); persistErr != nil {
			return o.fail(s)
		}

		if outcome.Recommendation == review.RecommendApprove {
			// The approved artifact never reaches the Loop Guard, which
			// is otherwise the sole writer of content_hashes during the
			// loop (see session.AppendArtifact) — record its digest
			// explicitly so content_hashes still covers every code
			// artifact (spec §3 invariant), including one approved on
			// its very first pass.
			s.ContentHashes[session.ContentDigest(codeArtifact.Content)] = struct{}{}
			if err := statemachine.Transition(s, session.StateConverged); err != nil {
				return o.fail(s)
			}
			return o.converge(ctx, s)
		}

		decision := loopguard.Evaluate(s, o.Guard, codeArtifact.Content, o.nowMs())
		if !decision.Allowed {
			if err := statemachine.Transition(s, session.StateEscalated); err != nil {
				return o.fail(s)
			}
			return o.escalate(s, fromLoopGuardReason(decision.Reason))
		}

		if err := statemachine.Transition(s, session.StateRevising); err != nil {
			return o.fail(s)
		}

		revised, reviseErr := o.Coder.Revise(ctx, llmclient.ReviseRequest{
			SessionID:   s.SessionID,
			Task:        task,
			CurrentCode: codeArtifact.Content,
			Feedback:    outcome.Feedback,
		})
		if reviseErr != nil {
			return o.fail(s)
		}
		codeArtifact = o.emitCode(s, revised, s.CurrentIteration)
		if err := o.Store.Persist(s); err != nil {
			return o.fail(s)
		}
	}
}

func (o *Orchestrator) emitCode(s *session.SessionState, result llmclient.CodeResult, iteration int) session.Artifact {
	artifact := session.Artifact{
		ID:          ids.NewArtifactID(),
		Kind:        session.ArtifactCode,
		Description: "generated code",
		TimestampMs: o.nowMs(),
		Content:     result.Content,
		Metadata: map[string]string{
			"language":  result.Language,
			"iteration": fmt.Sprintf("%d", iteration),
		},
	}
	s.AppendArtifact(artifact)
	return artifact
}

func (o *Orchestrator) converge(ctx context.Context, s *session.SessionState) (string, *Message, error) {
	archiveID, archErr := o.Archiver.Archive(ctx, s)
	if archErr != nil {
		return o.fail(s)
	}
	if err := statemachine.Transition(s, session.StateIdle); err != nil {
		return o.fail(s)
	}
	if err := o.Store.Persist(s); err != nil {
		return o.fail(s)
	}
	return archiveID, nil, nil
}

func (o *Orchestrator) escalate(s *session.SessionState, reason Reason) (string, *Message, error) {
	msg, err := BuildEscalation(s, reason)
	if err != nil {
		return o.fail(s)
	}
	_ = o.Store.Persist(s)
	return "", &msg, nil
}

// fail implements spec §4.6 step 5: on unhandled error, STATE -> FAILED,
// return an escalation with reason internal_error (spec §9's redesign
// of the source's max_iterations_reached catch-all). The legal-edge
// table (spec §4.3) has no REVIEWING -> FAILED edge, so an error raised
// mid-review takes the REVIEWING -> ESCALATED edge instead; either way
// the session lands in a terminal state and the caller gets an
// escalation rather than a silently stuck session.
func (o *Orchestrator) fail(s *session.SessionState) (string, *Message, error) {
	if statemachine.IsLegal(s.State, session.StateFailed) {
		_ = statemachine.Transition(s, session.StateFailed)
	} else if statemachine.IsLegal(s.State, session.StateEscalated) {
		_ = statemachine.Transition(s, session.StateEscalated)
	}
	_ = o.Store.Persist(s)
	msg := rejectionEscalation(s.SessionID, ReasonInternalError)
	return "", &msg, nil
}

func rejectionEscalation(sessionID string, reason Reason) Message {
	return Message{
		SessionID:        sessionID,
		Reason:           reason,
		IterationHistory: []IterationEntry{},
		FinalCritique: llmclient.ReviewFeedback{
			Defects:         []llmclient.Defect{},
			Suggestions:     []string{},
			RequiredChanges: []string{},
		},
		AvailableActions: append([]string(nil), availableActions...),
	}
}

func validateTask(task llmclient.TaskSpec) error {
	if len(task.Description) < 10 || len(task.Description) > 10000 {
		return coderrors.New(coderrors.KindValidation, "description must be 10-10000 characters")
	}
	if task.Language == "" {
		return coderrors.New(coderrors.KindValidation, "language is required")
	}
	return nil
}

func applyOptions(s *session.SessionState, opts Options) {
	if opts.MaxIterations != nil {
		s.MaxIterations = *opts.MaxIterations
	}
	if opts.QualityThreshold != nil {
		s.QualityThreshold = *opts.QualityThreshold
	}
	if opts.TaskTimeoutMinutes != nil {
		s.TaskTimeoutMinutes = *opts.TaskTimeoutMinutes
	}
}

// Package llmclient defines the LanguageModelClient contract the
// Orchestrator uses for its Coder and Critic facets (spec §4.6), plus
// the domain types those calls exchange.
package llmclient

import "context"

// TaskSpec is the input to a task submission. It is not persisted: the
// session keeps no copy of it, in an audit entry or elsewhere.
type TaskSpec struct {
	Description   string
	Language      string
	Constraints   []string
	Examples      []string
	ContextFiles  []string
}

// Severity is one of the four Defect severities (spec §3).
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMajor    Severity = "major"
	SeverityMinor    Severity = "minor"
	SeverityInfo     Severity = "info"
)

// Defect records one finding against a code artifact, whether surfaced
// by the Critic, a failing test, or a static-analysis violation.
type Defect struct {
	Severity     Severity
	Category     string
	Location     string
	Description  string
	SuggestedFix string
}

// ReviewFeedback is the Critic's structured verdict, embedded in a
// review artifact's content (spec §3).
type ReviewFeedback struct {
	QualityScore    int
	Defects         []Defect
	Suggestions     []string
	RequiredChanges []string
}

// GenerateRequest asks the Coder for a first draft.
type GenerateRequest struct {
	SessionID string
	Task      TaskSpec
}

// ReviseRequest asks the Coder to revise existing code per feedback.
type ReviseRequest struct {
	SessionID      string
	Task           TaskSpec
	CurrentCode    string
	Feedback       ReviewFeedback
}

// CodeResult is the Coder's output: the new code artifact's content
// plus the language/framework metadata it should be tagged with.
type CodeResult struct {
	Content  string
	Language string
}

// CritiqueRequest asks the Critic to review a code artifact.
type CritiqueRequest struct {
	SessionID   string
	Task        TaskSpec
	Code        string
	ReviewDepth string // quick | standard | comprehensive
}

// Coder is the Coder facet of the language-model client.
type Coder interface {
	Generate(ctx context.Context, req GenerateRequest) (CodeResult, error)
	Revise(ctx context.Context, req ReviseRequest) (CodeResult, error)
}

// Critic is the Critic facet of the language-model client.
type Critic interface {
	Critique(ctx context.Context, req CritiqueRequest) (ReviewFeedback, error)
}

// Client bundles both facets, mirroring how a single provider
// connection backs both roles in practice.
type Client interface {
	Coder
	Critic
	Close() error
}

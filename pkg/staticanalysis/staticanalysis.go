// Package staticanalysis defines the StaticAnalyzer contract (spec
// §1, §4.5): runs a language-appropriate linter over a code artifact
// and reports violations.
package staticanalysis

import (
	"context"

	"github.com/coderloop/coderloop/pkg/llmclient"
)

// Violation is one linter finding, already carrying the severity the
// analyzer itself assigned (spec §4.5: "using the analyzer's
// severity").
type Violation struct {
	Severity    llmclient.Severity
	Category    string
	Location    string
	Description string
}

// Analyzer runs a language-appropriate linter over code.
type Analyzer interface {
	Analyze(ctx context.Context, language, code string) ([]Violation, error)
}

// Stub is a deterministic Analyzer for tests and for languages without
// a wired linter.
type Stub struct {
	results [][]Violation
	errs    map[int]error
	calls   int
}

// NewStub returns an empty Stub.
func NewStub() *Stub { return &Stub{errs: make(map[int]error)} }

// AddResult appends a scripted violation set for the next call.
func (s *Stub) AddResult(v []Violation) { s.results = append(s.results, v) }

// FailAt makes the call at the given zero-based index return err.
func (s *Stub) FailAt(index int, err error) { s.errs[index] = err }

func (s *Stub) Analyze(_ context.Context, _, _ string) ([]Violation, error) {
	idx := s.calls
	s.calls++
	if err, ok := s.errs[idx]; ok {
		return nil, err
	}
	if idx >= len(s.results) {
		return nil, nil
	}
	return s.results[idx], nil
}

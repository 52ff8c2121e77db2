// Package testexec defines the TestExecutor contract (spec §1, §4.5):
// runs a linked test suite against a code artifact in an isolated
// workspace and reports coverage and failures.
package testexec

import "context"

// Failure is one failing test case, before it is mapped to a Defect by
// the Review Pipeline.
type Failure struct {
	Name         string
	Location     string // file:line
	ErrorMessage string
}

// Result is what a TestExecutor run produces.
type Result struct {
	CoveragePercent float64
	Failures        []Failure
	PassedCount     int
	FailedCount     int
}

// Executor runs a test suite against code in an isolated workspace.
// On timeout, Run returns an error the caller should treat per spec §5
// ("test/analyzer timeouts as no coverage / no violations").
type Executor interface {
	Run(ctx context.Context, language, code, testSuite string) (Result, error)
}

// Stub is a deterministic Executor for tests and for languages without
// a wired runner: it plays back a scripted queue of results in order.
type Stub struct {
	results []Result
	errs    map[int]error
	calls   int
}

// NewStub returns an empty Stub.
func NewStub() *Stub { return &Stub{errs: make(map[int]error)} }

// AddResult appends a scripted result.
func (s *Stub) AddResult(r Result) { s.results = append(s.results, r) }

// FailAt makes the call at the given zero-based index return err.
func (s *Stub) FailAt(index int, err error) { s.errs[index] = err }

func (s *Stub) Run(_ context.Context, _, _, _ string) (Result, error) {
	idx := s.calls
	s.calls++
	if err, ok := s.errs[idx]; ok {
		return Result{}, err
	}
	if idx >= len(s.results) {
		return Result{}, nil
	}
	return s.results[idx], nil
}

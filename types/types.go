// Package types contains shared types used across the policy acceptance
// testing framework.
package types

import (
	"fmt"
	"strings"
	"time"
)

// TestStatus represents the possible states of a test execution
type TestStatus string

const (
	TestStatusPass  TestStatus = "pass"
	TestStatusFail  TestStatus = "fail"
	TestStatusSkip  TestStatus = "skip"
	TestStatusError TestStatus = "error"
)

// String implements the Stringer interface for TestStatus
func (s TestStatus) String() string {
	return string(s)
}

// TestResult captures the outcome of a single test run. A result is built
// once by the test that produced it and never mutated afterwards.
type TestResult struct {
	Name     string         // Unique test identifier within a run
	Category string         // Category the test belongs to
	Status   TestStatus     // Outcome of the test
	Duration time.Duration  // Elapsed wall time of the test's service calls
	Message  string         // Human-readable outcome description
	Details  map[string]any // Optional structured detail (e.g. expected vs. actual)
}

// Summary is the aggregated outcome of one run. The counts always equal the
// partition of Results by status; Results preserve execution order.
type Summary struct {
	RunID    string
	Total    int
	Passed   int
	Failed   int
	Skipped  int
	Errored  int
	Duration time.Duration
	Results  []TestResult
}

// Success reports whether the run had no failures and no errors.
func (s *Summary) Success() bool {
	return s.Failed == 0 && s.Errored == 0
}

// Status collapses the summary into a single run-level status.
func (s *Summary) Status() TestStatus {
	switch {
	case s.Errored > 0:
		return TestStatusError
	case s.Failed > 0:
		return TestStatusFail
	case s.Total == s.Skipped:
		return TestStatusSkip
	default:
		return TestStatusPass
	}
}

// String renders a short human-readable report of the run.
func (s *Summary) String() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Policy Acceptance Results (%.1fs):\n", s.Duration.Seconds()))
	b.WriteString(fmt.Sprintf("Total: %d, Passed: %d, Failed: %d, Skipped: %d, Errors: %d\n",
		s.Total, s.Passed, s.Failed, s.Skipped, s.Errored))
	for _, r := range s.Results {
		b.WriteString(fmt.Sprintf("├── %s/%s (%.2fms) [status=%s]\n",
			r.Category, r.Name, float64(r.Duration.Microseconds())/1000.0, r.Status))
		if r.Message != "" && r.Status != TestStatusPass {
			b.WriteString(fmt.Sprintf("│       └── %s\n", r.Message))
		}
	}
	return b.String()
}

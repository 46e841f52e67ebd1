package runner

import (
	"github.com/ethereum-optimism/infra/opa-acceptor/types"
)

// Aggregate folds an ordered slice of test results into a summary. It is a
// pure function: counts do not depend on result order, Results preserves
// execution order, and the total duration is the sum of the individual test
// durations rather than wall clock time.
func Aggregate(results []types.TestResult) *types.Summary {
	s := &types.Summary{
		Results: append([]types.TestResult(nil), results...),
	}

	for _, res := range results {
		s.Total++
		s.Duration += res.Duration

		switch res.Status {
		case types.TestStatusPass:
			s.Passed++
		case types.TestStatusFail:
			s.Failed++
		case types.TestStatusSkip:
			s.Skipped++
		case types.TestStatusError:
			s.Errored++
		}
	}

	return s
}

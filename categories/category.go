// Package categories defines the polymorphic unit of work driven by the
// runner. A Test executes against the target service through the shared
// client session and reports exactly one result; a Category groups tests,
// declares smoke-eligibility and carries an execution priority. New
// categories plug in without touching the runner.
package categories

import (
	"context"
	"sort"
	"time"

	"github.com/ethereum-optimism/infra/opa-acceptor/client"
	"github.com/ethereum-optimism/infra/opa-acceptor/types"
)

// Test is a single check against the target service. Execute never lets a
// client error escape; faults become results with status error, assertion
// mismatches become results with status fail.
type Test interface {
	Name() string
	Execute(ctx context.Context, c *client.Client, cfg *types.RunConfig) types.TestResult
}

// Category is an ordered group of tests.
type Category interface {
	Name() string
	Tests() []Test
	IsSmoke() bool
	Priority() int // lower runs earlier
}

// SortByPriority orders categories by ascending priority. The sort is
// stable: ties keep declaration order.
func SortByPriority(cats []Category) []Category {
	sorted := make([]Category, len(cats))
	copy(sorted, cats)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() < sorted[j].Priority()
	})
	return sorted
}

// Defaults returns the built-in categories for a run configuration. The
// policy category is only registered when decision cases are declared.
func Defaults(cfg *types.RunConfig) []Category {
	cats := []Category{
		NewHealth(),
		NewBundle(),
		NewAuth(),
	}
	if len(cfg.PolicyCases) > 0 {
		cats = append(cats, NewPolicy(cfg.PolicyCases))
	}
	return cats
}

func newResult(category, name string, status types.TestStatus, elapsed time.Duration, message string, details map[string]any) types.TestResult {
	return types.TestResult{
		Name:     name,
		Category: category,
		Status:   status,
		Duration: elapsed,
		Message:  message,
		Details:  details,
	}
}

// errorResult converts a client fault into an error-status result.
func errorResult(category, name string, elapsed time.Duration, message string, err error) types.TestResult {
	return newResult(category, name, types.TestStatusError, elapsed, message+": "+err.Error(), map[string]any{"error": err.Error()})
}

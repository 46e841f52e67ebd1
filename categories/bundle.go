package categories

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum-optimism/infra/opa-acceptor/client"
	"github.com/ethereum-optimism/infra/opa-acceptor/types"
)

const bundleCategory = "bundle"

// Bundle checks the activation state of policy bundles on the target.
type Bundle struct{}

func NewBundle() *Bundle {
	return &Bundle{}
}

func (b *Bundle) Name() string { return bundleCategory }

func (b *Bundle) Tests() []Test {
	return []Test{
		bundleStatus{},
		bundleRevision{},
		bundleEvaluability{},
	}
}

func (b *Bundle) IsSmoke() bool { return true }

// Priority returns 1 so bundle checks run after health and auth.
func (b *Bundle) Priority() int { return 1 }

type bundleStatus struct{}

func (bundleStatus) Name() string { return "bundle_status" }

func (bundleStatus) Execute(ctx context.Context, c *client.Client, _ *types.RunConfig) types.TestResult {
	bundles, elapsed, err := c.BundleStatus(ctx)
	if err != nil {
		return errorResult(bundleCategory, "bundle_status", elapsed, "failed to get bundle status", err)
	}

	if len(bundles) == 0 {
		return newResult(bundleCategory, "bundle_status", types.TestStatusFail, elapsed,
			"no bundles loaded", nil)
	}

	names := make([]string, 0, len(bundles))
	for name := range bundles {
		names = append(names, name)
	}
	sort.Strings(names)

	return newResult(bundleCategory, "bundle_status", types.TestStatusPass, elapsed,
		fmt.Sprintf("found %d bundle(s) loaded", len(bundles)),
		map[string]any{"bundle_count": len(bundles), "bundle_names": names})
}

type bundleRevision struct{}

func (bundleRevision) Name() string { return "bundle_revision" }

func (bundleRevision) Execute(ctx context.Context, c *client.Client, cfg *types.RunConfig) types.TestResult {
	if cfg.ExpectedBundleRevision == "" {
		return newResult(bundleCategory, "bundle_revision", types.TestStatusSkip, 0,
			"no expected bundle revision configured", nil)
	}

	bundles, elapsed, err := c.BundleStatus(ctx)
	if err != nil {
		return errorResult(bundleCategory, "bundle_revision", elapsed, "failed to get bundle status", err)
	}

	if len(bundles) == 0 {
		return newResult(bundleCategory, "bundle_revision", types.TestStatusFail, elapsed,
			"no bundles loaded to check revision", nil)
	}

	var mismatches []string
	for name, bundle := range bundles {
		if bundle.ActiveRevision != cfg.ExpectedBundleRevision {
			mismatches = append(mismatches,
				fmt.Sprintf("%s: %s (expected %s)", name, bundle.ActiveRevision, cfg.ExpectedBundleRevision))
		}
	}
	sort.Strings(mismatches)

	if len(mismatches) > 0 {
		return newResult(bundleCategory, "bundle_revision", types.TestStatusFail, elapsed,
			"bundle revision mismatch: "+strings.Join(mismatches, ", "),
			map[string]any{"mismatches": mismatches})
	}

	return newResult(bundleCategory, "bundle_revision", types.TestStatusPass, elapsed,
		"all bundles have expected revision: "+cfg.ExpectedBundleRevision,
		map[string]any{"expected_revision": cfg.ExpectedBundleRevision})
}

// bundleEvaluability confirms the compiled policy graph is intact. A bundle
// can be listed by the status endpoint yet be broken at runtime; querying
// the top-level data document surfaces activation errors.
type bundleEvaluability struct{}

func (bundleEvaluability) Name() string { return "bundle_evaluability" }

func (bundleEvaluability) Execute(ctx context.Context, c *client.Client, _ *types.RunConfig) types.TestResult {
	result, elapsed, err := c.GetData(ctx, "")
	if err != nil {
		var httpErr *client.HTTPError
		if errors.As(err, &httpErr) {
			return newResult(bundleCategory, "bundle_evaluability", types.TestStatusFail, elapsed,
				fmt.Sprintf("service returned HTTP %d when querying the data document; bundle policies may be broken", httpErr.Status),
				map[string]any{"status_code": httpErr.Status})
		}
		return errorResult(bundleCategory, "bundle_evaluability", elapsed, "could not reach service to verify evaluability", err)
	}

	// A nil result is an empty data document, which is valid. What matters
	// is that the query did not fail.
	var keys []string
	if doc, ok := result.(map[string]any); ok {
		for k := range doc {
			keys = append(keys, k)
		}
		sort.Strings(keys)
	}

	return newResult(bundleCategory, "bundle_evaluability", types.TestStatusPass, elapsed,
		"bundle policies are evaluable", map[string]any{"data_keys": keys})
}

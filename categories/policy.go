package categories

import (
	"context"

	"github.com/ethereum-optimism/infra/opa-acceptor/client"
	"github.com/ethereum-optimism/infra/opa-acceptor/types"
)

const policyCategory = "policy"

// Policy runs the declared decision cases against the target's data API and
// compares each returned decision to its declared expectation.
type Policy struct {
	cases []types.PolicyCase
}

func NewPolicy(cases []types.PolicyCase) *Policy {
	return &Policy{cases: cases}
}

func (p *Policy) Name() string { return policyCategory }

func (p *Policy) Tests() []Test {
	tests := make([]Test, 0, len(p.cases))
	for i, pc := range p.cases {
		// The first case defaults to smoke when none are flagged so a smoke
		// run always exercises at least one real decision.
		tests = append(tests, policyDecision{pc: pc, smoke: pc.Smoke || i == 0})
	}
	return tests
}

func (p *Policy) IsSmoke() bool {
	for i, pc := range p.cases {
		if pc.Smoke || i == 0 {
			return true
		}
	}
	return false
}

// Priority returns 2 so decisions are checked after health, auth and bundle.
func (p *Policy) Priority() int { return 2 }

type policyDecision struct {
	pc    types.PolicyCase
	smoke bool
}

func (t policyDecision) Name() string { return "policy_" + t.pc.Name }

// Smoke reports whether this case belongs in a smoke run.
func (t policyDecision) Smoke() bool { return t.smoke }

func (t policyDecision) Execute(ctx context.Context, c *client.Client, _ *types.RunConfig) types.TestResult {
	name := t.Name()

	decision, elapsed, err := c.EvaluatePolicy(ctx, t.pc.Path, t.pc.Input)
	if err != nil {
		return errorResult(policyCategory, name, elapsed, "failed to evaluate policy", err)
	}

	// Cases that only declare expected_allow skip the full document
	// comparison. A nil expectation with no expected_allow asserts an
	// undefined decision.
	checkFull := t.pc.Expected != nil || t.pc.ExpectedAllow == nil

	if checkFull && !DecisionsEqual(t.pc.Expected, decision) {
		return newResult(policyCategory, name, types.TestStatusFail, elapsed,
			"policy decision mismatch",
			map[string]any{
				"expected": t.pc.Expected,
				"actual":   decision,
				"path":     t.pc.Path,
				"input":    t.pc.Input,
			})
	}

	if t.pc.ExpectedAllow != nil {
		var actualAllow any
		if doc, ok := decision.(map[string]any); ok {
			actualAllow = doc["allow"]
		}
		if !DecisionsEqual(*t.pc.ExpectedAllow, actualAllow) {
			return newResult(policyCategory, name, types.TestStatusFail, elapsed,
				"allow field mismatch",
				map[string]any{
					"expected_allow": *t.pc.ExpectedAllow,
					"actual_allow":   actualAllow,
					"result":         decision,
				})
		}
	}

	return newResult(policyCategory, name, types.TestStatusPass, elapsed,
		"policy decision matches expected output",
		map[string]any{"result": decision, "path": t.pc.Path})
}

package categories

import (
	"context"
	"fmt"

	"github.com/ethereum-optimism/infra/opa-acceptor/client"
	"github.com/ethereum-optimism/infra/opa-acceptor/types"
)

const healthCategory = "health"

// Health checks that the target service is up and reporting a healthy
// status document.
type Health struct{}

func NewHealth() *Health {
	return &Health{}
}

func (h *Health) Name() string { return healthCategory }

func (h *Health) Tests() []Test {
	return []Test{
		healthCheck{},
		healthResponseValidation{},
	}
}

func (h *Health) IsSmoke() bool { return true }

// Priority returns 0 so health runs before everything else.
func (h *Health) Priority() int { return 0 }

type healthCheck struct{}

func (healthCheck) Name() string { return "health_check" }

func (healthCheck) Execute(ctx context.Context, c *client.Client, _ *types.RunConfig) types.TestResult {
	resp, elapsed, err := c.Health(ctx)
	if err != nil {
		return errorResult(healthCategory, "health_check", elapsed, "failed to query health endpoint", err)
	}

	if resp.Status != "ok" {
		return newResult(healthCategory, "health_check", types.TestStatusFail, elapsed,
			fmt.Sprintf("health status is not 'ok': %s", resp.Status),
			map[string]any{"status": resp.Status})
	}

	return newResult(healthCategory, "health_check", types.TestStatusPass, elapsed,
		"health check passed", map[string]any{"status": resp.Status})
}

type healthResponseValidation struct{}

func (healthResponseValidation) Name() string { return "health_response_validation" }

func (healthResponseValidation) Execute(ctx context.Context, c *client.Client, _ *types.RunConfig) types.TestResult {
	resp, elapsed, err := c.Health(ctx)
	if err != nil {
		return errorResult(healthCategory, "health_response_validation", elapsed, "failed to query health endpoint", err)
	}

	if resp.Status == "" {
		return newResult(healthCategory, "health_response_validation", types.TestStatusFail, elapsed,
			"health response has an empty status field", nil)
	}

	return newResult(healthCategory, "health_response_validation", types.TestStatusPass, elapsed,
		"health response validation passed",
		map[string]any{"status": resp.Status, "uptime_seconds": resp.Uptime})
}

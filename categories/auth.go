package categories

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ethereum-optimism/infra/opa-acceptor/client"
	"github.com/ethereum-optimism/infra/opa-acceptor/types"
)

const authCategory = "auth"

// Auth verifies the target enforces authentication: unauthenticated
// requests must be rejected, and the configured token must be accepted.
// Both tests skip when no token is configured since there is nothing to
// enforce.
type Auth struct{}

func NewAuth() *Auth {
	return &Auth{}
}

func (a *Auth) Name() string { return authCategory }

func (a *Auth) Tests() []Test {
	return []Test{
		authRequired{},
		authTokenValid{},
	}
}

func (a *Auth) IsSmoke() bool { return true }

// Priority returns 0 so auth failures surface before bundle and policy
// checks spend time; declaration order puts it after health on the tie.
func (a *Auth) Priority() int { return 0 }

type authRequired struct{}

func (authRequired) Name() string { return "auth_required" }

func (authRequired) Execute(ctx context.Context, c *client.Client, cfg *types.RunConfig) types.TestResult {
	if cfg.AuthToken == "" {
		return newResult(authCategory, "auth_required", types.TestStatusSkip, 0,
			"skipped: no auth token configured, authentication enforcement not tested", nil)
	}

	status, elapsed, err := c.ProbeUnauthenticated(ctx, "/health")
	if err != nil {
		return errorResult(authCategory, "auth_required", elapsed, "failed to probe auth enforcement", err)
	}

	if status != http.StatusUnauthorized {
		return newResult(authCategory, "auth_required", types.TestStatusFail, elapsed,
			fmt.Sprintf("expected HTTP 401 for unauthenticated request, got %d; authentication may not be enforced", status),
			map[string]any{"status_code": status})
	}

	return newResult(authCategory, "auth_required", types.TestStatusPass, elapsed,
		"unauthenticated requests are correctly rejected (HTTP 401)",
		map[string]any{"status_code": status})
}

type authTokenValid struct{}

func (authTokenValid) Name() string { return "auth_token_valid" }

func (authTokenValid) Execute(ctx context.Context, c *client.Client, cfg *types.RunConfig) types.TestResult {
	if cfg.AuthToken == "" {
		return newResult(authCategory, "auth_token_valid", types.TestStatusSkip, 0,
			"skipped: no auth token configured", nil)
	}

	resp, elapsed, err := c.Health(ctx)
	if err != nil {
		var httpErr *client.HTTPError
		if errors.As(err, &httpErr) && httpErr.Status == http.StatusUnauthorized {
			// Rejection of our own token is the asserted outcome here, not a fault.
			return newResult(authCategory, "auth_token_valid", types.TestStatusFail, elapsed,
				"configured auth token was rejected with HTTP 401; check that it matches the service configuration",
				map[string]any{"status_code": httpErr.Status})
		}
		return errorResult(authCategory, "auth_token_valid", elapsed, "failed to verify auth token", err)
	}

	return newResult(authCategory, "auth_token_valid", types.TestStatusPass, elapsed,
		"configured auth token accepted",
		map[string]any{"health_status": resp.Status})
}

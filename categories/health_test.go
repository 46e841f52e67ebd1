package categories

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ethereum-optimism/infra/opa-acceptor/types"
)

func TestHealthCheck(t *testing.T) {
	cfg := &types.RunConfig{}

	t.Run("status ok passes", func(t *testing.T) {
		c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":"ok"}`))
		}, "")

		res := healthCheck{}.Execute(context.Background(), c, cfg)
		assert.Equal(t, types.TestStatusPass, res.Status)
		assert.Equal(t, "health", res.Category)
		assert.Greater(t, res.Duration.Nanoseconds(), int64(0))
	})

	t.Run("degraded status fails", func(t *testing.T) {
		c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":"degraded"}`))
		}, "")

		res := healthCheck{}.Execute(context.Background(), c, cfg)
		assert.Equal(t, types.TestStatusFail, res.Status)
		assert.Contains(t, res.Message, "degraded")
	})

	t.Run("unreachable service errors", func(t *testing.T) {
		c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}, "")

		res := healthCheck{}.Execute(context.Background(), c, cfg)
		assert.Equal(t, types.TestStatusError, res.Status)
	})
}

func TestHealthResponseValidation(t *testing.T) {
	cfg := &types.RunConfig{}

	t.Run("non-empty status passes", func(t *testing.T) {
		c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":"ok","uptime_seconds":120}`))
		}, "")

		res := healthResponseValidation{}.Execute(context.Background(), c, cfg)
		assert.Equal(t, types.TestStatusPass, res.Status)
		assert.Equal(t, int64(120), res.Details["uptime_seconds"])
	})

	t.Run("empty status field fails", func(t *testing.T) {
		c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":""}`))
		}, "")

		res := healthResponseValidation{}.Execute(context.Background(), c, cfg)
		assert.Equal(t, types.TestStatusFail, res.Status)
	})
}

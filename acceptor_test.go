package acceptor

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/opa-acceptor/flags"
	"github.com/ethereum-optimism/infra/opa-acceptor/types"
)

// fakeRunner returns canned summaries and records which mode ran.
type fakeRunner struct {
	summary  *types.Summary
	err      error
	probeErr error
	mode     string
	category string
}

func (f *fakeRunner) RunSmoke(ctx context.Context) (*types.Summary, error) {
	f.mode = ModeSmoke
	return f.summary, f.err
}

func (f *fakeRunner) RunFull(ctx context.Context) (*types.Summary, error) {
	f.mode = ModeFull
	return f.summary, f.err
}

func (f *fakeRunner) RunCategory(ctx context.Context, name string) (*types.Summary, error) {
	f.mode = ModeCategory
	f.category = name
	return f.summary, f.err
}

func (f *fakeRunner) Probe(ctx context.Context) error {
	return f.probeErr
}

func passingSummary() *types.Summary {
	return &types.Summary{
		RunID:  "run-1",
		Total:  1,
		Passed: 1,
		Results: []types.TestResult{
			{Name: "health_check", Category: "health", Status: types.TestStatusPass},
		},
	}
}

func failingSummary() *types.Summary {
	return &types.Summary{
		RunID:  "run-2",
		Total:  1,
		Failed: 1,
		Results: []types.TestResult{
			{Name: "policy_admin", Category: "policy", Status: types.TestStatusFail, Message: "mismatch"},
		},
	}
}

func newTestAcceptor(t *testing.T, cfg *Config, r *fakeRunner, shutdown func(error)) *acceptor {
	t.Helper()
	if cfg.Log == nil {
		cfg.Log = log.New()
	}
	if cfg.ReportFormat == "" {
		cfg.ReportFormat = "json"
	}
	if cfg.OutputPath == "" {
		cfg.OutputPath = filepath.Join(t.TempDir(), "report.json")
	}
	if shutdown == nil {
		shutdown = func(error) {}
	}
	a := &acceptor{
		ctx:              context.Background(),
		config:           cfg,
		runner:           r,
		shutdownCallback: shutdown,
	}
	a.scheduler = newRunScheduler(cfg.RunInterval, cfg.RunOnce, a.runTests, cfg.Log)
	return a
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(context.Background(), nil, "v0", func(error) {})
	require.Error(t, err)
}

func TestStartRunOnceSuccess(t *testing.T) {
	shutdownCh := make(chan struct{})
	r := &fakeRunner{summary: passingSummary()}
	a := newTestAcceptor(t, &Config{Mode: ModeSmoke, RunOnce: true}, r, func(error) {
		close(shutdownCh)
	})

	require.NoError(t, a.Start(context.Background()))
	assert.Equal(t, ModeSmoke, r.mode)

	select {
	case <-shutdownCh:
	case <-time.After(time.Second):
		t.Fatal("shutdown callback was not invoked")
	}
}

func TestStartRunOnceFailureReturnsTestFailure(t *testing.T) {
	r := &fakeRunner{summary: failingSummary()}
	a := newTestAcceptor(t, &Config{Mode: ModeFull, RunOnce: true}, r, nil)

	err := a.Start(context.Background())
	require.Error(t, err)
	assert.True(t, IsTestFailureError(err))
	assert.Equal(t, ModeFull, r.mode)
}

func TestStartRunOnceRuntimeError(t *testing.T) {
	r := &fakeRunner{err: errors.New("connection refused")}
	a := newTestAcceptor(t, &Config{Mode: ModeSmoke, RunOnce: true}, r, nil)

	err := a.Start(context.Background())
	require.Error(t, err)

	var exitErr cli.ExitCoder
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.ExitCode())
}

func TestStartCategoryMode(t *testing.T) {
	r := &fakeRunner{summary: passingSummary()}
	a := newTestAcceptor(t, &Config{Mode: ModeCategory, Category: "bundle", RunOnce: true}, r, nil)

	require.NoError(t, a.Start(context.Background()))
	assert.Equal(t, ModeCategory, r.mode)
	assert.Equal(t, "bundle", r.category)
}

func TestStartDryRun(t *testing.T) {
	t.Run("reachable target shuts down cleanly", func(t *testing.T) {
		shutdownCh := make(chan struct{})
		r := &fakeRunner{}
		a := newTestAcceptor(t, &Config{Mode: ModeSmoke, RunOnce: true, DryRun: true}, r, func(error) {
			close(shutdownCh)
		})

		require.NoError(t, a.Start(context.Background()))
		assert.Empty(t, r.mode, "dry-run must not execute any tests")

		select {
		case <-shutdownCh:
		case <-time.After(time.Second):
			t.Fatal("shutdown callback was not invoked")
		}
	})

	t.Run("unreachable target exits with runtime error", func(t *testing.T) {
		r := &fakeRunner{probeErr: errors.New("dial tcp: connection refused")}
		a := newTestAcceptor(t, &Config{Mode: ModeSmoke, RunOnce: true, DryRun: true}, r, nil)

		err := a.Start(context.Background())
		require.Error(t, err)

		var exitErr cli.ExitCoder
		require.ErrorAs(t, err, &exitErr)
		assert.Equal(t, 2, exitErr.ExitCode())
	})
}

func TestReportWritesConfiguredOutput(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "report.json")
	logDir := t.TempDir()

	r := &fakeRunner{summary: passingSummary()}
	a := newTestAcceptor(t, &Config{
		Mode:       ModeSmoke,
		RunOnce:    true,
		OutputPath: outPath,
		LogDir:     logDir,
	}, r, nil)

	require.NoError(t, a.Start(context.Background()))

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "run-1", doc["run_id"])

	// The per-run summary file is written alongside the report.
	_, err = os.Stat(filepath.Join(logDir, "testrun-run-1", "summary.log"))
	require.NoError(t, err)
}

func runConfigApp(t *testing.T, args []string) (*Config, error) {
	t.Helper()
	var cfg *Config
	var cfgErr error
	app := &cli.App{
		Flags: flags.Flags,
		Action: func(ctx *cli.Context) error {
			cfg, cfgErr = NewConfig(ctx, log.New())
			return nil
		},
	}
	require.NoError(t, app.Run(append([]string{"opa-acceptor"}, args...)))
	return cfg, cfgErr
}

func TestNewConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := runConfigApp(t, nil)
		require.NoError(t, err)
		assert.Equal(t, ModeSmoke, cfg.Mode)
		assert.Equal(t, "console", cfg.ReportFormat)
		assert.True(t, cfg.RunOnce)
		assert.False(t, cfg.DryRun)
	})

	t.Run("invalid mode", func(t *testing.T) {
		_, err := runConfigApp(t, []string{"--mode", "turbo"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid mode")
	})

	t.Run("category mode requires a category", func(t *testing.T) {
		_, err := runConfigApp(t, []string{"--mode", "category"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "category is required")
	})

	t.Run("category only valid in category mode", func(t *testing.T) {
		_, err := runConfigApp(t, []string{"--mode", "full", "--category", "health"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "only applies")
	})

	t.Run("invalid report format", func(t *testing.T) {
		_, err := runConfigApp(t, []string{"--report-format", "html"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid report format")
	})

	t.Run("run interval enables continuous mode", func(t *testing.T) {
		cfg, err := runConfigApp(t, []string{"--run-interval", "30m"})
		require.NoError(t, err)
		assert.False(t, cfg.RunOnce)
		assert.Equal(t, 30*time.Minute, cfg.RunInterval)
	})
}

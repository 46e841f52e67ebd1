package acceptor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/opa-acceptor/exitcodes"
	"github.com/ethereum-optimism/infra/opa-acceptor/registry"
	"github.com/ethereum-optimism/infra/opa-acceptor/reporting"
	"github.com/ethereum-optimism/infra/opa-acceptor/runner"
	"github.com/ethereum-optimism/infra/opa-acceptor/types"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
)

// acceptor implements the cliapp.Lifecycle interface.
var _ cliapp.Lifecycle = &acceptor{}

// acceptor drives acceptance test runs against a policy decision service.
type acceptor struct {
	ctx       context.Context
	config    *Config
	version   string
	registry  *registry.Registry
	runner    runner.TestRunner
	scheduler *runScheduler
	result    *types.Summary

	shutdownCallback func(error) // Callback to signal application shutdown
}

func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*acceptor, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	config.Log.Debug("Creating acceptor with config",
		"configFile", config.ConfigFile,
		"mode", config.Mode,
		"runInterval", config.RunInterval,
		"runOnce", config.RunOnce,
		"dryRun", config.DryRun)

	reg, err := registry.NewRegistry(registry.Config{
		Log:        config.Log,
		ConfigFile: config.ConfigFile,
		URL:        config.OpaURL,
		AuthToken:  config.AuthToken,
		Timeout:    config.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create registry: %w", err)
	}

	testRunner, err := runner.NewTestRunner(runner.Config{
		RunConfig: reg.RunConfig(),
		Log:       config.Log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create test runner: %w", err)
	}
	config.Log.Info("acceptor.New: created registry and test runner", "url", reg.RunConfig().URL)

	a := &acceptor{
		ctx:              ctx,
		config:           config,
		version:          version,
		registry:         reg,
		runner:           testRunner,
		shutdownCallback: shutdownCallback,
	}
	a.scheduler = newRunScheduler(config.RunInterval, config.RunOnce, a.runTests, config.Log)
	return a, nil
}

// Start runs the acceptance tests, once or periodically at the configured
// interval. Start implements the cliapp.Lifecycle interface.
func (a *acceptor) Start(ctx context.Context) error {
	// Set up panic recovery to ensure we exit with code 2 for runtime errors
	defer func() {
		if r := recover(); r != nil {
			a.config.Log.Error("Runtime error occurred", "error", r)
			os.Exit(exitcodes.RuntimeErr)
		}
	}()

	a.ctx = ctx

	if a.config.DryRun {
		a.config.Log.Info("Starting opa-acceptor in dry-run mode")
		if err := a.runner.Probe(ctx); err != nil {
			a.config.Log.Error("Dry-run probe failed", "error", err)
			return cli.Exit(err.Error(), exitcodes.RuntimeErr)
		}
		a.config.Log.Info("Dry-run complete, configuration is valid and target is reachable")
		go func() {
			a.shutdownCallback(nil)
		}()
		return nil
	}

	if a.config.RunOnce {
		a.config.Log.Info("Starting opa-acceptor in run-once mode", "mode", a.config.Mode)
	} else {
		a.config.Log.Info("Starting opa-acceptor in continuous mode",
			"mode", a.config.Mode, "interval", a.config.RunInterval)
	}

	if err := a.scheduler.Start(ctx); err != nil {
		// For runtime errors (like configuration issues), return exit code 2
		a.config.Log.Error("Runtime error running tests", "error", err)
		return cli.Exit(err.Error(), exitcodes.RuntimeErr)
	}

	// If in run-once mode, trigger shutdown and return
	if a.config.RunOnce {
		a.config.Log.Info("Tests completed, exiting (run-once mode)")

		// Check if any tests failed and return appropriate exit code
		if a.result != nil && !a.result.Success() {
			a.config.Log.Warn("Run-once test run completed with failures, returning exit code 1")
			return NewTestFailureError(a.result.String())
		}

		// Only need to call this when we're in run-once mode and all tests passed
		go func() {
			a.shutdownCallback(nil)
		}()
		return nil // Success (exit code 0)
	}

	a.config.Log.Debug("opa-acceptor started successfully")
	return nil
}

// runTests runs one acceptance run in the configured mode and reports the
// results.
func (a *acceptor) runTests() error {
	var (
		result *types.Summary
		err    error
	)

	switch a.config.Mode {
	case ModeFull:
		result, err = a.runner.RunFull(a.ctx)
	case ModeCategory:
		result, err = a.runner.RunCategory(a.ctx, a.config.Category)
	default:
		result, err = a.runner.RunSmoke(a.ctx)
	}
	if err != nil {
		// This is a runtime error (not a test failure)
		a.config.Log.Error("Runtime error running tests", "error", err)
		return NewRuntimeError(err)
	}
	a.result = result

	if err := a.report(result); err != nil {
		a.config.Log.Error("Error reporting results", "error", err)
		return NewRuntimeError(err)
	}

	a.config.Log.Info("Test run completed", "run_id", result.RunID, "status", result.Status())
	return nil
}

// report renders the summary with the configured reporter and writes the
// per-run summary file.
func (a *acceptor) report(result *types.Summary) error {
	var out io.Writer = os.Stdout
	if a.config.OutputPath != "" {
		f, err := os.Create(a.config.OutputPath)
		if err != nil {
			return fmt.Errorf("creating report file: %w", err)
		}
		defer f.Close()
		out = f
	}

	reporter, err := reporting.ForFormat(a.config.ReportFormat, out)
	if err != nil {
		return err
	}
	if err := reporter.Report(result); err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}

	if a.config.LogDir != "" {
		sink := reporting.NewFileSink(a.config.LogDir)
		if err := sink.Report(result); err != nil {
			return fmt.Errorf("writing summary file: %w", err)
		}
		a.config.Log.Info("Wrote run summary", "path", sink.Path(result.RunID))
	}

	return nil
}

// Stop stops the opa-acceptor service.
// Stop implements the cliapp.Lifecycle interface.
func (a *acceptor) Stop(ctx context.Context) error {
	a.config.Log.Info("Stopping opa-acceptor")

	if err := a.scheduler.Stop(); err != nil {
		return err
	}

	a.config.Log.Info("opa-acceptor stopped successfully")
	return nil
}

// Stopped returns true if the opa-acceptor service is stopped.
// Stopped implements the cliapp.Lifecycle interface.
func (a *acceptor) Stopped() bool {
	return a.scheduler.Stopped()
}

// WaitForShutdown blocks until all goroutines have terminated.
// This is useful in tests to ensure complete cleanup before moving to the next test.
func (a *acceptor) WaitForShutdown(ctx context.Context) error {
	return a.scheduler.WaitForShutdown(ctx)
}

package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ethereum-optimism/infra/opa-acceptor/categories"
	"github.com/ethereum-optimism/infra/opa-acceptor/client"
	"github.com/ethereum-optimism/infra/opa-acceptor/metrics"
	"github.com/ethereum-optimism/infra/opa-acceptor/types"
)

// TestRunner defines the interface for running acceptance tests against a
// policy service.
type TestRunner interface {
	RunSmoke(ctx context.Context) (*types.Summary, error)
	RunFull(ctx context.Context) (*types.Summary, error)
	RunCategory(ctx context.Context, name string) (*types.Summary, error)
	Probe(ctx context.Context) error
}

// smokeTest is implemented by tests that carry their own smoke flag. Tests
// without the method inherit their category's smoke designation.
type smokeTest interface {
	Smoke() bool
}

// runner struct implements TestRunner interface
type runner struct {
	cfg        *types.RunConfig
	categories []categories.Category
	log        log.Logger
	tracer     trace.Tracer
}

// Config holds configuration for creating a new runner
type Config struct {
	RunConfig *types.RunConfig
	// Categories overrides the built-in category set. Used by tests;
	// production callers leave it nil.
	Categories []categories.Category
	Log        log.Logger
}

// NewTestRunner creates a new test runner instance
func NewTestRunner(cfg Config) (TestRunner, error) {
	if cfg.RunConfig == nil {
		return nil, fmt.Errorf("run config is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}

	cats := cfg.Categories
	if cats == nil {
		cats = categories.Defaults(cfg.RunConfig)
	}
	cats = categories.SortByPriority(cats)

	cfg.Log.Debug("NewTestRunner()", "url", cfg.RunConfig.URL, "len(categories)", len(cats))

	return &runner{
		cfg:        cfg.RunConfig,
		categories: cats,
		log:        cfg.Log,
		tracer:     otel.Tracer("acceptance runner"),
	}, nil
}

// RunSmoke executes the smoke tests of every smoke category in priority
// order and aborts on the first failure or error.
func (r *runner) RunSmoke(ctx context.Context) (*types.Summary, error) {
	var smoke []categories.Category
	for _, cat := range r.categories {
		if cat.IsSmoke() {
			smoke = append(smoke, cat)
		}
	}
	return r.run(ctx, "smoke", smoke, true, true)
}

// RunFull executes every test of every category. Failures never abort the
// run; the summary carries the complete picture.
func (r *runner) RunFull(ctx context.Context) (*types.Summary, error) {
	return r.run(ctx, "full", r.categories, false, false)
}

// RunCategory executes all tests of the named category.
func (r *runner) RunCategory(ctx context.Context, name string) (*types.Summary, error) {
	for _, cat := range r.categories {
		if cat.Name() == name {
			return r.run(ctx, "category", []categories.Category{cat}, false, false)
		}
	}

	known := make([]string, 0, len(r.categories))
	for _, cat := range r.categories {
		known = append(known, cat.Name())
	}
	return nil, types.NewConfigurationError(
		fmt.Sprintf("unknown category %q, known categories: %v", name, known), nil)
}

// Probe verifies the target is reachable without running any tests. Used by
// dry-run mode.
func (r *runner) Probe(ctx context.Context) error {
	c, err := r.newClient()
	if err != nil {
		return err
	}
	defer c.Close()

	health, _, err := c.Health(ctx)
	if err != nil {
		return fmt.Errorf("probing %s: %w", r.cfg.URL, err)
	}
	r.log.Info("Target is reachable", "url", r.cfg.URL, "status", health.Status)
	return nil
}

func (r *runner) newClient() (*client.Client, error) {
	maxRetries := client.DefaultMaxRetries
	if r.cfg.MaxRetries != nil {
		maxRetries = *r.cfg.MaxRetries
	}
	c, err := client.New(client.Config{
		BaseURL:     r.cfg.URL,
		Timeout:     r.cfg.Timeout,
		AuthToken:   r.cfg.AuthToken,
		MaxRetries:  maxRetries,
		BackoffBase: r.cfg.BackoffBase,
		Log:         r.log,
	})
	if err != nil {
		return nil, fmt.Errorf("creating client: %w", err)
	}
	return c, nil
}

// run drives one acceptance run over the given categories. One client
// session serves the whole run and is closed on every exit path.
func (r *runner) run(ctx context.Context, mode string, cats []categories.Category, failFast bool, smokeOnly bool) (*types.Summary, error) {
	runID := uuid.New().String()
	start := time.Now()

	ctx, span := r.tracer.Start(ctx, "acceptance run", trace.WithAttributes(
		attribute.String("run_id", runID),
		attribute.String("mode", mode),
	))
	defer span.End()

	r.log.Info("Starting acceptance run", "run_id", runID, "mode", mode, "url", r.cfg.URL)

	c, err := r.newClient()
	if err != nil {
		return nil, err
	}
	defer c.Close()

	var results []types.TestResult
	aborted := false

	for _, cat := range cats {
		for _, test := range cat.Tests() {
			if smokeOnly {
				if st, ok := test.(smokeTest); ok && !st.Smoke() {
					continue
				}
			}

			res := r.executeTest(ctx, c, cat, test, runID)
			results = append(results, res)

			if failFast && (res.Status == types.TestStatusFail || res.Status == types.TestStatusError) {
				r.log.Warn("Aborting run on first failure",
					"run_id", runID, "test", res.Name, "status", res.Status)
				aborted = true
				break
			}
		}
		if aborted {
			break
		}
	}

	summary := Aggregate(results)
	summary.RunID = runID

	metrics.RecordAcceptance(r.cfg.URL, runID, string(summary.Status()),
		summary.Total, summary.Passed, summary.Failed, summary.Duration)

	r.log.Info("Acceptance run complete",
		"run_id", runID,
		"mode", mode,
		"status", summary.Status(),
		"total", summary.Total,
		"passed", summary.Passed,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"errored", summary.Errored,
		"duration", summary.Duration,
		"wallclock", time.Since(start))

	return summary, nil
}

func (r *runner) executeTest(ctx context.Context, c *client.Client, cat categories.Category, test categories.Test, runID string) types.TestResult {
	_, span := r.tracer.Start(ctx, test.Name(), trace.WithAttributes(
		attribute.String("category", cat.Name()),
	))
	defer span.End()

	r.log.Debug("Running test", "run_id", runID, "category", cat.Name(), "test", test.Name())

	res := test.Execute(ctx, c, r.cfg)
	r.applyThresholds(cat.Name(), runID, &res)

	metrics.RecordValidation(r.cfg.URL, runID, cat.Name(), res.Name, res.Status)
	if res.Status == types.TestStatusError {
		metrics.RecordError(fmt.Sprintf("test_error.%s", res.Name))
	}

	r.log.Info("Test complete",
		"run_id", runID,
		"category", cat.Name(),
		"test", res.Name,
		"status", res.Status,
		"duration", res.Duration)

	return res
}

// applyThresholds compares the test duration against the category's response
// time limits. Slow tests are logged and recorded but their status is owned
// by the assertion, not the stopwatch.
func (r *runner) applyThresholds(category string, runID string, res *types.TestResult) {
	th := r.cfg.Thresholds.ForCategory(category)

	if th.MaxResponseTime > 0 && res.Duration > th.MaxResponseTime {
		r.log.Warn("Test exceeded max response time",
			"run_id", runID, "test", res.Name, "duration", res.Duration, "max", th.MaxResponseTime)
		metrics.RecordThresholdExceeded(r.cfg.URL, runID, category, res.Name)
		res.Message = fmt.Sprintf("%s (response time %s exceeded maximum %s)",
			res.Message, res.Duration, th.MaxResponseTime)
		return
	}

	if th.WarnResponseTime > 0 && res.Duration > th.WarnResponseTime {
		r.log.Warn("Test exceeded warn response time",
			"run_id", runID, "test", res.Name, "duration", res.Duration, "warn", th.WarnResponseTime)
	}
}

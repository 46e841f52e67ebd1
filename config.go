package acceptor

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/opa-acceptor/flags"
	"github.com/ethereum-optimism/infra/opa-acceptor/reporting"
)

// Run modes.
const (
	ModeSmoke    = "smoke"
	ModeFull     = "full"
	ModeCategory = "category"
)

// Config holds the application configuration
type Config struct {
	ConfigFile   string        // Path to the run config file (may be empty)
	Mode         string        // smoke, full or category
	Category     string        // Category name when Mode is category
	OpaURL       string        // Flag-level URL override
	AuthToken    string        // Flag-level auth token override
	Timeout      time.Duration // Flag-level request timeout override
	ReportFormat string        // console, json or junit
	OutputPath   string        // Report destination, empty means stdout
	LogDir       string        // Directory for per-run summary files
	RunInterval  time.Duration // Interval between test runs
	RunOnce      bool          // Indicates if the service should exit after one test run
	DryRun       bool          // Validate config and probe the target only
	Log          log.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	mode := ctx.String(flags.Mode.Name)
	switch mode {
	case ModeSmoke, ModeFull, ModeCategory:
	default:
		return nil, fmt.Errorf("invalid mode %q, must be one of: %s, %s, %s",
			mode, ModeSmoke, ModeFull, ModeCategory)
	}

	category := ctx.String(flags.Category.Name)
	if mode == ModeCategory && category == "" {
		return nil, fmt.Errorf("category is required when mode is %q", ModeCategory)
	}
	if mode != ModeCategory && category != "" {
		return nil, fmt.Errorf("category %q only applies when mode is %q", category, ModeCategory)
	}

	reportFormat := ctx.String(flags.ReportFormat.Name)
	switch reportFormat {
	case reporting.FormatConsole, reporting.FormatJSON, reporting.FormatJUnit:
	default:
		return nil, fmt.Errorf("invalid report format %q, must be one of: %s, %s, %s",
			reportFormat, reporting.FormatConsole, reporting.FormatJSON, reporting.FormatJUnit)
	}

	configFile := ctx.String(flags.ConfigFile.Name)
	if configFile != "" {
		var err error
		configFile, err = filepath.Abs(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for config file '%s': %w", ctx.String(flags.ConfigFile.Name), err)
		}
	}

	logDir, err := filepath.Abs(ctx.String(flags.LogDir.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for log directory '%s': %w", ctx.String(flags.LogDir.Name), err)
	}

	runInterval := ctx.Duration(flags.RunInterval.Name)
	runOnce := runInterval == 0

	return &Config{
		ConfigFile:   configFile,
		Mode:         mode,
		Category:     category,
		OpaURL:       ctx.String(flags.OpaURL.Name),
		AuthToken:    ctx.String(flags.AuthToken.Name),
		Timeout:      ctx.Duration(flags.Timeout.Name),
		ReportFormat: reportFormat,
		OutputPath:   ctx.String(flags.Output.Name),
		LogDir:       logDir,
		RunInterval:  runInterval,
		RunOnce:      runOnce,
		DryRun:       ctx.Bool(flags.DryRun.Name),
		Log:          log,
	}, nil
}

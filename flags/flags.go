package flags

import (
	"fmt"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

const EnvVarPrefix = "OPA_ACCEPTOR"

var (
	Mode = &cli.StringFlag{
		Name:    "mode",
		Value:   "smoke",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "MODE"),
		Usage:   "Run mode: 'smoke' (fail-fast smoke tests), 'full' (everything), or 'category' (one category)",
	}
	Category = &cli.StringFlag{
		Name:    "category",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CATEGORY"),
		Usage:   "Category to run when --mode=category (eg. 'policy')",
	}
	ConfigFile = &cli.StringFlag{
		Name:    "config",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CONFIG"),
		Usage:   "Path to run config file (eg. 'acceptance.yaml')",
	}
	OpaURL = &cli.StringFlag{
		Name:    "opa-url",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "URL"),
		Usage:   "Base URL of the policy service under test (eg. 'http://localhost:8181')",
	}
	AuthToken = &cli.StringFlag{
		Name:    "auth-token",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "AUTH_TOKEN"),
		Usage:   "Bearer token for authenticated requests to the policy service",
	}
	Timeout = &cli.DurationFlag{
		Name:    "timeout",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TIMEOUT"),
		Usage:   "Per-request timeout for calls to the policy service",
	}
	ReportFormat = &cli.StringFlag{
		Name:    "report-format",
		Value:   "console",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "REPORT_FORMAT"),
		Usage:   "Report format: 'console', 'json' or 'junit'",
	}
	Output = &cli.StringFlag{
		Name:    "output",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "OUTPUT"),
		Usage:   "File to write the report to (defaults to stdout)",
	}
	LogDir = &cli.StringFlag{
		Name:    "logdir",
		Value:   "logs",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "LOGDIR"),
		Usage:   "Directory to store per-run summary files",
	}
	RunInterval = &cli.DurationFlag{
		Name:    "run-interval",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RUN_INTERVAL"),
		Usage:   "Interval between test runs (e.g. '1h', '30m'). Set to 0 or omit for run-once mode.",
	}
	DryRun = &cli.BoolFlag{
		Name:    "dry-run",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "DRY_RUN"),
		Usage:   "Validate configuration and probe the target without running any tests",
	}
)

var requiredFlags = []cli.Flag{}

var optionalFlags = []cli.Flag{
	Mode,
	Category,
	ConfigFile,
	OpaURL,
	AuthToken,
	Timeout,
	ReportFormat,
	Output,
	LogDir,
	RunInterval,
	DryRun,
}
var Flags []cli.Flag

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, opmetrics.CLIFlags(EnvVarPrefix)...)

	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}

package registry

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/ethereum-optimism/infra/opa-acceptor/client"
	"github.com/ethereum-optimism/infra/opa-acceptor/types"
)

// EnvPrefix is prepended to the environment variables that override file
// configuration, e.g. OPA_ACCEPTOR_URL.
const EnvPrefix = "OPA_ACCEPTOR"

// Registry loads and validates run configuration. It is the only place
// configuration is read; everything downstream receives an immutable
// types.RunConfig.
type Registry struct {
	config    Config
	runConfig *types.RunConfig
}

// Config contains registry configuration
type Config struct {
	Log        log.Logger
	ConfigFile string

	// Flag-level overrides applied after the file and environment. Zero
	// values mean "not set".
	URL       string
	AuthToken string
	Timeout   time.Duration
}

// NewRegistry creates a new registry instance and loads the run config.
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}

	r := &Registry{
		config: cfg,
	}

	runConfig, err := r.load()
	if err != nil {
		return nil, err
	}
	r.runConfig = runConfig

	cfg.Log.Debug("Registry loaded", "url", runConfig.URL, "len(policy_cases)", len(runConfig.PolicyCases))

	return r, nil
}

// RunConfig returns the validated run configuration.
func (r *Registry) RunConfig() *types.RunConfig {
	return r.runConfig
}

// GetConfig returns the registry configuration
func (r *Registry) GetConfig() Config {
	return r.config
}

func (r *Registry) load() (*types.RunConfig, error) {
	runConfig := &types.RunConfig{}

	if r.config.ConfigFile != "" {
		loaded, err := loadConfigFile(r.config.ConfigFile)
		if err != nil {
			return nil, types.NewConfigurationError("loading config file", err)
		}
		runConfig = loaded
	}

	if err := applyEnvOverrides(runConfig); err != nil {
		return nil, types.NewConfigurationError("applying environment overrides", err)
	}
	r.applyFlagOverrides(runConfig)
	applyDefaults(runConfig)

	if err := validate(runConfig); err != nil {
		return nil, types.NewConfigurationError("validating run config", err)
	}

	return runConfig, nil
}

// loadConfigFile reads and parses a run config from a YAML file.
func loadConfigFile(path string) (*types.RunConfig, error) {
	log.Debug("Reading run config file", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading config file")
	}

	var cfg types.RunConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "parsing config file")
	}

	return &cfg, nil
}

// applyEnvOverrides layers OPA_ACCEPTOR_* environment variables over the
// file values. Environment wins over file, flags win over environment.
func applyEnvOverrides(cfg *types.RunConfig) error {
	if v := os.Getenv(EnvPrefix + "_URL"); v != "" {
		cfg.URL = v
	}
	if v := os.Getenv(EnvPrefix + "_AUTH_TOKEN"); v != "" {
		cfg.AuthToken = v
	}
	if v := os.Getenv(EnvPrefix + "_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrapf(err, "parsing %s_TIMEOUT", EnvPrefix)
		}
		cfg.Timeout = d
	}
	if v := os.Getenv(EnvPrefix + "_MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "parsing %s_MAX_RETRIES", EnvPrefix)
		}
		cfg.MaxRetries = &n
	}
	if v := os.Getenv(EnvPrefix + "_BACKOFF_BASE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrapf(err, "parsing %s_BACKOFF_BASE", EnvPrefix)
		}
		cfg.BackoffBase = d
	}
	if v := os.Getenv(EnvPrefix + "_BUNDLE_REVISION"); v != "" {
		cfg.ExpectedBundleRevision = v
	}
	return nil
}

func (r *Registry) applyFlagOverrides(cfg *types.RunConfig) {
	if r.config.URL != "" {
		cfg.URL = r.config.URL
	}
	if r.config.AuthToken != "" {
		cfg.AuthToken = r.config.AuthToken
	}
	if r.config.Timeout > 0 {
		cfg.Timeout = r.config.Timeout
	}
}

func applyDefaults(cfg *types.RunConfig) {
	if cfg.URL == "" {
		cfg.URL = "http://localhost:8181"
	}
	// An explicit zero disables retries; only an absent key takes the default.
	if cfg.MaxRetries == nil {
		n := client.DefaultMaxRetries
		cfg.MaxRetries = &n
	}
}

func validate(cfg *types.RunConfig) error {
	parsed, err := url.Parse(cfg.URL)
	if err != nil {
		return errors.Wrapf(err, "invalid url %q", cfg.URL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.Errorf("url %q must use http or https", cfg.URL)
	}
	if parsed.Host == "" {
		return errors.Errorf("url %q has no host", cfg.URL)
	}
	if cfg.Timeout < 0 {
		return errors.Errorf("timeout must not be negative, got %s", cfg.Timeout)
	}
	if cfg.MaxRetries != nil && *cfg.MaxRetries < 0 {
		return errors.Errorf("max retries must not be negative, got %d", *cfg.MaxRetries)
	}

	seen := make(map[string]bool, len(cfg.PolicyCases))
	for i, pc := range cfg.PolicyCases {
		if pc.Name == "" {
			return errors.Errorf("policy case %d has no name", i)
		}
		if pc.Path == "" {
			return errors.Errorf("policy case %q has no path", pc.Name)
		}
		if seen[pc.Name] {
			return errors.Errorf("duplicate policy case name %q", pc.Name)
		}
		seen[pc.Name] = true
	}

	if err := validateThresholds("", cfg.Thresholds.MaxResponseTime, cfg.Thresholds.WarnResponseTime); err != nil {
		return err
	}
	for name, ct := range cfg.Thresholds.Categories {
		if err := validateThresholds(name, ct.MaxResponseTime, ct.WarnResponseTime); err != nil {
			return err
		}
	}

	return nil
}

func validateThresholds(category string, max, warn time.Duration) error {
	scope := "global"
	if category != "" {
		scope = fmt.Sprintf("category %q", category)
	}
	if max < 0 || warn < 0 {
		return errors.Errorf("%s thresholds must not be negative", scope)
	}
	if max > 0 && warn > max {
		return errors.Errorf("%s warn threshold %s exceeds max threshold %s", scope, warn, max)
	}
	return nil
}

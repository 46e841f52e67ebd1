package types

import "time"

// RunConfig is the fully-validated, immutable configuration for one run.
// It is constructed by the registry before any test executes and passed
// explicitly into the runner; nothing mutates it afterwards.
type RunConfig struct {
	URL                    string        `yaml:"url"`
	AuthToken              string        `yaml:"auth_token"`
	Timeout                time.Duration `yaml:"timeout"`
	MaxRetries             *int          `yaml:"max_retries"` // nil takes the default; zero disables retries
	BackoffBase            time.Duration `yaml:"backoff_base"`
	ExpectedBundleRevision string        `yaml:"expected_bundle_revision"`
	PolicyCases            []PolicyCase  `yaml:"policy_cases"`
	Thresholds             Thresholds    `yaml:"thresholds"`
}

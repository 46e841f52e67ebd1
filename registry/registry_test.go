package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/opa-acceptor/client"
	"github.com/ethereum-optimism/infra/opa-acceptor/types"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "acceptance.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))
	return configPath
}

func TestRegistry(t *testing.T) {
	validConfig := `
url: http://opa.internal:8181
auth_token: secret
timeout: 5s
max_retries: 2
backoff_base: 100ms
expected_bundle_revision: v42
policy_cases:
  - name: admin_allowed
    path: app/authz/allow
    input:
      user: admin
    expected: true
    smoke: true
  - name: guest_denied
    path: app/authz/allow
    input:
      user: guest
    expected: false
thresholds:
  max_response_time: 2s
  warn_response_time: 500ms
  categories:
    policy:
      max_response_time: 5s
      warn_response_time: 1s
`
	configPath := writeConfig(t, validConfig)

	t.Run("config loading", func(t *testing.T) {
		tests := []struct {
			name    string
			cfg     Config
			wantErr bool
		}{
			{
				name:    "valid config file",
				cfg:     Config{ConfigFile: configPath},
				wantErr: false,
			},
			{
				name: "nonexistent config path",
				cfg: Config{
					ConfigFile: "nonexistent.yaml",
				},
				wantErr: true,
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				r, err := NewRegistry(tt.cfg)
				if tt.wantErr {
					require.Error(t, err)
					var cfgErr *types.ConfigurationError
					require.ErrorAs(t, err, &cfgErr)
					return
				}
				require.NoError(t, err)
				require.NotNil(t, r.RunConfig())
			})
		}
	})

	t.Run("fields are parsed", func(t *testing.T) {
		r, err := NewRegistry(Config{Log: log.New(), ConfigFile: configPath})
		require.NoError(t, err)

		cfg := r.RunConfig()
		assert.Equal(t, "http://opa.internal:8181", cfg.URL)
		assert.Equal(t, "secret", cfg.AuthToken)
		assert.Equal(t, 5*time.Second, cfg.Timeout)
		require.NotNil(t, cfg.MaxRetries)
		assert.Equal(t, 2, *cfg.MaxRetries)
		assert.Equal(t, 100*time.Millisecond, cfg.BackoffBase)
		assert.Equal(t, "v42", cfg.ExpectedBundleRevision)

		require.Len(t, cfg.PolicyCases, 2)
		assert.Equal(t, "admin_allowed", cfg.PolicyCases[0].Name)
		assert.Equal(t, "app/authz/allow", cfg.PolicyCases[0].Path)
		assert.Equal(t, map[string]any{"user": "admin"}, cfg.PolicyCases[0].Input)
		assert.Equal(t, true, cfg.PolicyCases[0].Expected)
		assert.True(t, cfg.PolicyCases[0].Smoke)
		assert.False(t, cfg.PolicyCases[1].Smoke)

		policy := cfg.Thresholds.ForCategory("policy")
		assert.Equal(t, 5*time.Second, policy.MaxResponseTime)
		health := cfg.Thresholds.ForCategory("health")
		assert.Equal(t, 2*time.Second, health.MaxResponseTime)
	})
}

func TestRegistryNoConfigFile(t *testing.T) {
	r, err := NewRegistry(Config{Log: log.New()})
	require.NoError(t, err)

	cfg := r.RunConfig()
	assert.Equal(t, "http://localhost:8181", cfg.URL)
	assert.Empty(t, cfg.PolicyCases)
	require.NotNil(t, cfg.MaxRetries)
	assert.Equal(t, client.DefaultMaxRetries, *cfg.MaxRetries)
}

func TestRegistryMaxRetriesZeroIsPreserved(t *testing.T) {
	path := writeConfig(t, `
url: http://localhost:8181
max_retries: 0
`)
	r, err := NewRegistry(Config{Log: log.New(), ConfigFile: path})
	require.NoError(t, err)

	// An explicit zero disables retries and must not be replaced by the default.
	cfg := r.RunConfig()
	require.NotNil(t, cfg.MaxRetries)
	assert.Equal(t, 0, *cfg.MaxRetries)
}

func TestRegistryValidation(t *testing.T) {
	tests := []struct {
		name      string
		config    string
		wantError string
	}{
		{
			name: "unsupported scheme",
			config: `
url: ftp://example.com
`,
			wantError: "must use http or https",
		},
		{
			name: "missing host",
			config: `
url: "http://"
`,
			wantError: "has no host",
		},
		{
			name: "negative retries",
			config: `
url: http://localhost:8181
max_retries: -1
`,
			wantError: "max retries must not be negative",
		},
		{
			name: "policy case without name",
			config: `
url: http://localhost:8181
policy_cases:
  - path: app/allow
`,
			wantError: "has no name",
		},
		{
			name: "policy case without path",
			config: `
url: http://localhost:8181
policy_cases:
  - name: missing_path
`,
			wantError: "has no path",
		},
		{
			name: "duplicate policy case names",
			config: `
url: http://localhost:8181
policy_cases:
  - name: dup
    path: app/allow
  - name: dup
    path: app/deny
`,
			wantError: "duplicate policy case name",
		},
		{
			name: "warn above max",
			config: `
url: http://localhost:8181
thresholds:
  max_response_time: 1s
  warn_response_time: 2s
`,
			wantError: "exceeds max threshold",
		},
		{
			name: "category warn above max",
			config: `
url: http://localhost:8181
thresholds:
  categories:
    policy:
      max_response_time: 1s
      warn_response_time: 2s
`,
			wantError: "exceeds max threshold",
		},
		{
			name: "malformed yaml",
			config: `
url: [not
`,
			wantError: "parsing config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := writeConfig(t, tt.config)

			_, err := NewRegistry(Config{Log: log.New(), ConfigFile: configPath})
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantError)

			var cfgErr *types.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestRegistryEnvOverrides(t *testing.T) {
	configPath := writeConfig(t, `
url: http://from-file:8181
timeout: 1s
`)

	t.Setenv(EnvPrefix+"_URL", "http://from-env:8181")
	t.Setenv(EnvPrefix+"_TIMEOUT", "3s")
	t.Setenv(EnvPrefix+"_MAX_RETRIES", "5")
	t.Setenv(EnvPrefix+"_BUNDLE_REVISION", "v7")

	r, err := NewRegistry(Config{Log: log.New(), ConfigFile: configPath})
	require.NoError(t, err)

	cfg := r.RunConfig()
	assert.Equal(t, "http://from-env:8181", cfg.URL)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	require.NotNil(t, cfg.MaxRetries)
	assert.Equal(t, 5, *cfg.MaxRetries)
	assert.Equal(t, "v7", cfg.ExpectedBundleRevision)
}

func TestRegistryEnvOverrideParseError(t *testing.T) {
	t.Setenv(EnvPrefix+"_TIMEOUT", "not-a-duration")

	_, err := NewRegistry(Config{Log: log.New()})
	require.Error(t, err)
	require.Contains(t, err.Error(), "OPA_ACCEPTOR_TIMEOUT")
}

func TestRegistryFlagOverridesWinOverEnv(t *testing.T) {
	configPath := writeConfig(t, `
url: http://from-file:8181
`)
	t.Setenv(EnvPrefix+"_URL", "http://from-env:8181")
	t.Setenv(EnvPrefix+"_AUTH_TOKEN", "env-token")

	r, err := NewRegistry(Config{
		Log:        log.New(),
		ConfigFile: configPath,
		URL:        "http://from-flag:8181",
		Timeout:    7 * time.Second,
	})
	require.NoError(t, err)

	cfg := r.RunConfig()
	assert.Equal(t, "http://from-flag:8181", cfg.URL)
	assert.Equal(t, "env-token", cfg.AuthToken)
	assert.Equal(t, 7*time.Second, cfg.Timeout)
}

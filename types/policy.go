package types

// PolicyCase declares a single policy decision expectation. Cases are read
// from the run configuration and are read-only during a run.
type PolicyCase struct {
	Name          string         `yaml:"name"`
	Path          string         `yaml:"path"`
	Input         map[string]any `yaml:"input"`
	Expected      any            `yaml:"expected"`
	ExpectedAllow *bool          `yaml:"expected_allow,omitempty"`
	Smoke         bool           `yaml:"smoke,omitempty"`
}

// HealthResponse is the parsed body of the target's health endpoint.
type HealthResponse struct {
	Status string         `json:"status"`
	Uptime int64          `json:"uptime_seconds,omitempty"`
	Raw    map[string]any `json:"-"`
}

// BundleStatus describes one activated bundle as reported by the target's
// status endpoint.
type BundleStatus struct {
	Name                     string
	ActiveRevision           string
	LastSuccessfulDownload   string
	LastSuccessfulActivation string
	Errors                   []string
}

package types

import "time"

// CategoryThresholds overrides the global response time limits for a single
// category. A zero value means "use the global limit".
type CategoryThresholds struct {
	MaxResponseTime  time.Duration `yaml:"max_response_time"`
	WarnResponseTime time.Duration `yaml:"warn_response_time"`
}

// Thresholds holds the response time limits for a run. Health checks are
// typically much faster than complex policy evaluations, so per-category
// overrides allow accurate alerting without false positives.
type Thresholds struct {
	MaxResponseTime  time.Duration                 `yaml:"max_response_time"`
	WarnResponseTime time.Duration                 `yaml:"warn_response_time"`
	Categories       map[string]CategoryThresholds `yaml:"categories,omitempty"`
}

// ForCategory resolves the thresholds that apply to the named category,
// falling back to the global values when no override is configured.
func (t Thresholds) ForCategory(category string) CategoryThresholds {
	resolved := CategoryThresholds{
		MaxResponseTime:  t.MaxResponseTime,
		WarnResponseTime: t.WarnResponseTime,
	}
	override, ok := t.Categories[category]
	if !ok {
		return resolved
	}
	if override.MaxResponseTime > 0 {
		resolved.MaxResponseTime = override.MaxResponseTime
	}
	if override.WarnResponseTime > 0 {
		resolved.WarnResponseTime = override.WarnResponseTime
	}
	return resolved
}

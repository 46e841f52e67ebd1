package types

import "fmt"

// ConfigurationError indicates the run was misconfigured: a missing or
// malformed config file, an invalid field value, or a request for a category
// that does not exist. It aborts setup before any test executes and is never
// converted into a test result.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NewConfigurationError wraps err with a reason describing what was being
// configured when it failed. err may be nil.
func NewConfigurationError(reason string, err error) *ConfigurationError {
	return &ConfigurationError{Reason: reason, Err: err}
}

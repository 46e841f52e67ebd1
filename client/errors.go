package client

import (
	"errors"
	"fmt"
	"time"
)

// maxBodyInError bounds how much of a response body is kept on an HTTPError
// so that large or sensitive payloads don't leak into logs and reports.
const maxBodyInError = 200

// ConnectionError indicates the target service could not be reached at the
// transport level.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %s: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// TimeoutError indicates a single request attempt exceeded its deadline.
type TimeoutError struct {
	URL     string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request to %s timed out after %s", e.URL, e.Timeout)
}

// HTTPError indicates the target returned a non-retryable HTTP status, or a
// retryable one after the retry budget was exhausted. Body is truncated.
type HTTPError struct {
	Status int
	URL    string
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("policy service returned HTTP %d for %s", e.Status, e.URL)
}

// PolicyError indicates the service reached the decision engine but the
// evaluation itself failed on the service side. It is distinct from
// transport-level failures.
type PolicyError struct {
	Path    string
	Code    string
	Message string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("policy evaluation failed for %q: %s", e.Path, e.Message)
}

// IsClientError reports whether err belongs to the client's error taxonomy.
// Tests use this to convert client faults into error results rather than
// letting them escape the test boundary.
func IsClientError(err error) bool {
	var connErr *ConnectionError
	var timeoutErr *TimeoutError
	var httpErr *HTTPError
	var policyErr *PolicyError
	return errors.As(err, &connErr) ||
		errors.As(err, &timeoutErr) ||
		errors.As(err, &httpErr) ||
		errors.As(err, &policyErr)
}

func truncateBody(body []byte) string {
	if len(body) > maxBodyInError {
		return string(body[:maxBodyInError])
	}
	return string(body)
}

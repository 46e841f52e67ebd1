// Package client implements the HTTP client used to drive a policy decision
// service. One Client owns one pooled connection session; the orchestrator
// opens it at the start of a run and closes it on every exit path.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/opa-acceptor/types"
)

const (
	DefaultTimeout     = 10 * time.Second
	DefaultMaxRetries  = 3
	DefaultBackoffBase = 500 * time.Millisecond
)

// retryableStatuses are the response codes worth retrying: rate limiting and
// the transient service-unavailable class. All other 4xx fail immediately.
var retryableStatuses = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Config holds the parameters for one client session.
type Config struct {
	BaseURL     string
	Timeout     time.Duration // per-attempt deadline
	AuthToken   string        // bearer token; empty omits the header
	MaxRetries  int           // retries after the first attempt; zero disables retries
	BackoffBase time.Duration // first retry delay, doubled per attempt
	Log         log.Logger
}

// Client issues HTTP operations against the target service with retry,
// backoff, auth injection, timing and failure classification.
type Client struct {
	baseURL     string
	timeout     time.Duration
	authToken   string
	maxRetries  int
	backoffBase time.Duration
	httpClient  *http.Client
	log         log.Logger

	// sleep is swapped out in tests so retry delays don't slow the suite.
	sleep func(time.Duration)
}

// New creates a client session with pooled connections. Callers must Close
// the session when the run ends.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max retries must not be negative, got %d", cfg.MaxRetries)
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = DefaultBackoffBase
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
	}

	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		timeout:     cfg.Timeout,
		authToken:   cfg.AuthToken,
		maxRetries:  cfg.MaxRetries,
		backoffBase: cfg.BackoffBase,
		httpClient:  &http.Client{Transport: transport},
		log:         cfg.Log,
		sleep:       time.Sleep,
	}, nil
}

// BaseURL returns the configured base URL of the target service.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// HasAuthToken reports whether the session carries a bearer token.
func (c *Client) HasAuthToken() bool {
	return c.authToken != ""
}

// Close releases the pooled connections held by the session.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// do performs one logical operation, retrying retryable statuses with
// exponential backoff. The returned duration covers all attempts and backoff
// waits, from first request issuance to final response or terminal failure.
func (c *Client) do(ctx context.Context, method, path string, body []byte, contentType string) ([]byte, time.Duration, error) {
	url := c.baseURL + "/" + strings.TrimLeft(path, "/")
	start := time.Now()

	var retryAfter time.Duration
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			delay := c.backoffDelay(attempt)
			if retryAfter > 0 {
				// A server-supplied directive wins over computed backoff.
				delay = retryAfter
			}
			c.log.Debug("Retrying request", "url", url, "attempt", attempt, "delay", delay)
			c.sleep(delay)
		}

		respBody, status, retryAfterHdr, err := c.attempt(ctx, method, url, body, contentType)
		if err != nil {
			return nil, time.Since(start), err
		}

		if status < http.StatusBadRequest {
			return respBody, time.Since(start), nil
		}

		if retryableStatuses[status] && attempt < c.maxRetries {
			retryAfter = parseRetryAfter(retryAfterHdr)
			continue
		}

		return nil, time.Since(start), &HTTPError{Status: status, URL: url, Body: truncateBody(respBody)}
	}
}

// attempt issues a single request bounded by the per-attempt timeout. It
// also reports the Retry-After header so the retry loop can honor it.
func (c *Client) attempt(ctx context.Context, method, url string, body []byte, contentType string) ([]byte, int, string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(attemptCtx, method, url, reader)
	if err != nil {
		return nil, 0, "", &ConnectionError{URL: url, Err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			c.log.Warn("Request timed out", "url", url, "timeout", c.timeout)
			return nil, 0, "", &TimeoutError{URL: url, Timeout: c.timeout}
		}
		c.log.Error("Connection failed", "url", url, "err", err)
		return nil, 0, "", &ConnectionError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return nil, 0, "", &TimeoutError{URL: url, Timeout: c.timeout}
		}
		return nil, 0, "", &ConnectionError{URL: url, Err: err}
	}

	return respBody, resp.StatusCode, resp.Header.Get("Retry-After"), nil
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	return c.backoffBase * time.Duration(1<<(attempt-1))
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

// parseRetryAfter interprets a Retry-After header value, either delay
// seconds or an HTTP date. Zero means no usable directive.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if when, err := http.ParseTime(header); err == nil {
		if until := time.Until(when); until > 0 {
			return until
		}
	}
	return 0
}

// Health queries the target's health endpoint and parses the status document.
func (c *Client) Health(ctx context.Context) (*types.HealthResponse, time.Duration, error) {
	body, elapsed, err := c.do(ctx, http.MethodGet, "/health", nil, "")
	if err != nil {
		return nil, elapsed, err
	}

	raw := map[string]any{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, elapsed, &ConnectionError{URL: c.baseURL + "/health", Err: fmt.Errorf("malformed health body: %w", err)}
		}
	}

	resp := &types.HealthResponse{Status: "ok", Raw: raw}
	if s, ok := raw["status"].(string); ok {
		resp.Status = s
	}
	if u, ok := raw["uptime_seconds"].(float64); ok {
		resp.Uptime = int64(u)
	}
	return resp, elapsed, nil
}

// BundleStatus reads the deployment/activation status document and returns
// the per-bundle activation state keyed by bundle name.
func (c *Client) BundleStatus(ctx context.Context) (map[string]types.BundleStatus, time.Duration, error) {
	body, elapsed, err := c.do(ctx, http.MethodGet, "/v1/status", nil, "")
	if err != nil {
		return nil, elapsed, err
	}

	var doc struct {
		Bundles map[string]struct {
			ActiveRevision           string   `json:"active_revision"`
			LastSuccessfulDownload   string   `json:"last_successful_download"`
			LastSuccessfulActivation string   `json:"last_successful_activation"`
			Errors                   []string `json:"errors"`
		} `json:"bundles"`
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &doc); err != nil {
			return nil, elapsed, &ConnectionError{URL: c.baseURL + "/v1/status", Err: fmt.Errorf("malformed status body: %w", err)}
		}
	}

	bundles := make(map[string]types.BundleStatus, len(doc.Bundles))
	for name, info := range doc.Bundles {
		bundles[name] = types.BundleStatus{
			Name:                     name,
			ActiveRevision:           info.ActiveRevision,
			LastSuccessfulDownload:   info.LastSuccessfulDownload,
			LastSuccessfulActivation: info.LastSuccessfulActivation,
			Errors:                   info.Errors,
		}
	}
	return bundles, elapsed, nil
}

// EvaluatePolicy sends the input document to the decision path and returns
// the decision value found under the result key. A missing result key is an
// empty/undefined decision and returns nil. An engine-side evaluation error
// embedded in a 2xx body returns a PolicyError.
func (c *Client) EvaluatePolicy(ctx context.Context, path string, input map[string]any) (any, time.Duration, error) {
	payload, err := json.Marshal(map[string]any{"input": input})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to encode input document: %w", err)
	}

	apiPath := "/v1/data/" + strings.TrimLeft(path, "/")
	body, elapsed, err := c.do(ctx, http.MethodPost, apiPath, payload, "application/json")
	if err != nil {
		return nil, elapsed, err
	}

	doc := map[string]any{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &doc); err != nil {
			return nil, elapsed, &ConnectionError{URL: c.baseURL + apiPath, Err: fmt.Errorf("malformed decision body: %w", err)}
		}
	}

	if _, hasResult := doc["result"]; !hasResult {
		if msg, ok := doc["message"].(string); ok {
			code, _ := doc["code"].(string)
			return nil, elapsed, &PolicyError{Path: path, Code: code, Message: msg}
		}
	}
	return doc["result"], elapsed, nil
}

// GetData reads the data document at path and returns the value under the
// result key.
func (c *Client) GetData(ctx context.Context, path string) (any, time.Duration, error) {
	apiPath := "/v1/data/" + strings.TrimLeft(path, "/")
	body, elapsed, err := c.do(ctx, http.MethodGet, apiPath, nil, "")
	if err != nil {
		return nil, elapsed, err
	}

	doc := map[string]any{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &doc); err != nil {
			return nil, elapsed, &ConnectionError{URL: c.baseURL + apiPath, Err: fmt.Errorf("malformed data body: %w", err)}
		}
	}
	return doc["result"], elapsed, nil
}

// PutData writes value to the data document at path.
func (c *Client) PutData(ctx context.Context, path string, value any) (time.Duration, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return 0, fmt.Errorf("failed to encode data document: %w", err)
	}
	apiPath := "/v1/data/" + strings.TrimLeft(path, "/")
	_, elapsed, err := c.do(ctx, http.MethodPut, apiPath, payload, "application/json")
	return elapsed, err
}

// PutPolicy uploads raw policy source under the given name.
func (c *Client) PutPolicy(ctx context.Context, name, source string) (time.Duration, error) {
	apiPath := "/v1/policies/" + strings.TrimLeft(name, "/")
	_, elapsed, err := c.do(ctx, http.MethodPut, apiPath, []byte(source), "text/plain")
	return elapsed, err
}

// DeleteData removes the data document at path.
func (c *Client) DeleteData(ctx context.Context, path string) (time.Duration, error) {
	apiPath := "/v1/data/" + strings.TrimLeft(path, "/")
	_, elapsed, err := c.do(ctx, http.MethodDelete, apiPath, nil, "")
	return elapsed, err
}

// Query runs an ad-hoc query with an optional input document and returns the
// value under the result key.
func (c *Client) Query(ctx context.Context, query string, input map[string]any) (any, time.Duration, error) {
	doc := map[string]any{"query": query}
	if len(input) > 0 {
		doc["input"] = input
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to encode query document: %w", err)
	}

	body, elapsed, err := c.do(ctx, http.MethodPost, "/v1/query", payload, "application/json")
	if err != nil {
		return nil, elapsed, err
	}

	result := map[string]any{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, elapsed, &ConnectionError{URL: c.baseURL + "/v1/query", Err: fmt.Errorf("malformed query body: %w", err)}
		}
	}
	return result["result"], elapsed, nil
}

// ProbeUnauthenticated issues a single GET without the bearer token and
// returns the raw status code. Auth enforcement tests use this to confirm
// the target rejects requests that lack credentials.
func (c *Client) ProbeUnauthenticated(ctx context.Context, path string) (int, time.Duration, error) {
	url := c.baseURL + "/" + strings.TrimLeft(path, "/")
	start := time.Now()

	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
	if err != nil {
		return 0, time.Since(start), &ConnectionError{URL: url, Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return 0, time.Since(start), &TimeoutError{URL: url, Timeout: c.timeout}
		}
		return 0, time.Since(start), &ConnectionError{URL: url, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, time.Since(start), nil
}

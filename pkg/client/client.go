// Package client is a Go SDK for the account gateway HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	apiPrefix           = "/api/v1"
	defaultTimeout      = 10 * time.Second
	defaultRetryMax     = 3
	defaultRetryWaitMax = 2 * time.Second
)

// Client calls the gateway. Reads go through a retrying transport; writes are
// sent once.
type Client struct {
	baseURL  string
	token    string
	language string
	timeout  time.Duration
	retryMax int

	reads  *http.Client
	writes *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithAccessToken sets the bearer token sent on every call.
func WithAccessToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithLanguage sets Accept-Language so errors come back localized.
func WithLanguage(lang string) Option {
	return func(c *Client) { c.language = lang }
}

// WithTimeout bounds each attempt.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithRetryMax sets how often a failed read is retried. Zero disables retries.
func WithRetryMax(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.retryMax = n
		}
	}
}

// WithHTTPClient replaces the transport for writes and the underlying client
// for reads.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.writes = hc
		}
	}
}

// New returns a Client for the gateway at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		timeout:  defaultTimeout,
		retryMax: defaultRetryMax,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.writes == nil {
		c.writes = &http.Client{Timeout: c.timeout}
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = c.writes
	retryClient.RetryMax = c.retryMax
	retryClient.RetryWaitMin = 100 * time.Millisecond
	retryClient.RetryWaitMax = defaultRetryWaitMax
	retryClient.Logger = nil
	retryClient.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		// Throttle responses carry their own Retry-After for the caller.
		if resp != nil && (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusLocked) {
			return false, nil
		}
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	c.reads = retryClient.StandardClient()
	return c
}

// APIError is a non-2xx response decoded from the gateway's error envelope.
type APIError struct {
	Status     int
	Code       string
	Message    string
	TraceID    string
	RetryAfter time.Duration
	Details    json.RawMessage
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("account api: status %d", e.Status)
	}
	return fmt.Sprintf("account api: status %d: %s: %s", e.Status, e.Code, e.Message)
}

// IsCode reports whether err is an APIError with the given code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	target := c.baseURL + apiPrefix + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(c.reads, req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+apiPrefix+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(c.writes, req, out)
}

func (c *Client) do(hc *http.Client, req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.language != "" {
		req.Header.Set("Accept-Language", c.language)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
		apiErr.RetryAfter = time.Duration(secs) * time.Second
	}

	var envelope struct {
		Error   string          `json:"error"`
		Code    string          `json:"code"`
		TraceID string          `json:"trace_id"`
		Details json.RawMessage `json:"details"`
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err == nil && json.Unmarshal(body, &envelope) == nil {
		apiErr.Code = envelope.Code
		apiErr.Message = envelope.Error
		apiErr.TraceID = envelope.TraceID
		apiErr.Details = envelope.Details
	}
	return apiErr
}

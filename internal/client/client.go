// Package client is a typed HTTP client for a running gateway.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/joacominatel/sqlgate/internal/database"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 64 << 10
)

// Metadata mirrors the /api/sql-metadata response.
type Metadata struct {
	Tables  []string                     `json:"tables"`
	Columns map[string][]database.Column `json:"columns"`
}

// Result mirrors a successful /api/execute-query response.
type Result struct {
	Success       bool             `json:"success"`
	Rows          []map[string]any `json:"rows"`
	RowCount      int64            `json:"rowCount"`
	Fields        []database.Field `json:"fields"`
	ExecutionTime int64            `json:"executionTime"`
	Message       string           `json:"message"`
}

// Status mirrors the health and readiness responses.
type Status struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// APIError is a non-2xx envelope returned by the gateway.
type APIError struct {
	StatusCode int
	Category   string `json:"error"`
	Message    string `json:"message"`
	Position   int32  `json:"position,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

func (e *APIError) Error() string {
	if e.Category == "" {
		return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

// IsForbidden reports whether err is an admission rejection.
func IsForbidden(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusForbidden
}

// Client talks to one gateway.
type Client struct {
	base *url.URL
	http *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for the gateway at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse gateway url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("gateway url %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("gateway url %q: missing host", baseURL)
	}

	c := &Client{base: u, http: &http.Client{Timeout: defaultTimeout}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the gateway address.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Metadata fetches tables and columns.
func (c *Client) Metadata(ctx context.Context) (*Metadata, error) {
	var md Metadata
	if err := c.do(ctx, http.MethodGet, "/api/sql-metadata", nil, &md); err != nil {
		return nil, err
	}
	return &md, nil
}

// Execute runs a query on the gateway.
func (c *Client) Execute(ctx context.Context, query string) (*Result, error) {
	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	var res Result
	if err := c.do(ctx, http.MethodPost, "/api/execute-query", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Health calls the liveness endpoint.
func (c *Client) Health(ctx context.Context) (*Status, error) {
	var st Status
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Ready calls the readiness endpoint.
func (c *Client) Ready(ctx context.Context) (*Status, error) {
	var st Status
	if err := c.do(ctx, http.MethodGet, "/api/ready", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(path).String(), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	// Numbers stay json.Number so large integers survive display.
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(raw, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Category = ""
		apiErr.Message = strings.TrimSpace(string(raw))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
	}
	return apiErr
}

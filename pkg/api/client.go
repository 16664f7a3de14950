package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client communicates with the sluice inspection server over HTTP.
// It provides methods for creating streams, appending elements, and
// inspecting stream state.
type Client struct {
	httpClient *http.Client
	baseURL    string
	config     clientConfig
}

// ClientOption is a function type for configuring client behavior.
type ClientOption func(*clientConfig)

type clientConfig struct {
	requestTimeout time.Duration
	maxRetries     int
	retryDelay     time.Duration
}

// WithRequestTimeout sets the per-request timeout for the client.
func WithRequestTimeout(timeout time.Duration) ClientOption {
	return func(c *clientConfig) {
		c.requestTimeout = timeout
	}
}

// WithMaxRetries sets the maximum number of retry attempts for failed requests.
// Only transport failures are retried; HTTP error statuses are returned as is.
func WithMaxRetries(maxRetries int) ClientOption {
	return func(c *clientConfig) {
		c.maxRetries = maxRetries
	}
}

// WithRetryDelay sets the delay between retry attempts for failed requests.
func WithRetryDelay(delay time.Duration) ClientOption {
	return func(c *clientConfig) {
		c.retryDelay = delay
	}
}

// NewClient creates a Client for the server at baseURL, e.g.
// "http://127.0.0.1:8636". Returns an error if baseURL is empty.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	config := clientConfig{
		requestTimeout: 5 * time.Second,
		maxRetries:     3,
		retryDelay:     100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&config)
	}

	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	return &Client{
		httpClient: &http.Client{Timeout: config.requestTimeout},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		config:     config,
	}, nil
}

// do sends a request with retries on transport failures and decodes a JSON
// response into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body any, out any, wantStatus int) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	var lastErr error
	for i := 0; i < c.config.maxRetries; i++ {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			time.Sleep(c.config.retryDelay)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode != wantStatus {
			return fmt.Errorf("%s %s failed with status %d: %s", method, path, resp.StatusCode, string(respBody))
		}

		if out != nil {
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}
		}
		return nil
	}

	return fmt.Errorf("%s %s failed after %d retries: %w", method, path, c.config.maxRetries, lastErr)
}

// CreateStream opens a managed stream on the server.
func (c *Client) CreateStream(ctx context.Context, req StreamCreateRequest) (*StreamInfo, error) {
	var info StreamInfo
	if err := c.do(ctx, http.MethodPost, "/streams", req, &info, http.StatusCreated); err != nil {
		return nil, err
	}
	return &info, nil
}

// WriteElements appends elements to a managed stream.
func (c *Client) WriteElements(ctx context.Context, streamID string, elements []any) (*ElementsWriteResponse, error) {
	req := ElementsWriteRequest{Elements: elements}
	var rsp ElementsWriteResponse
	if err := c.do(ctx, http.MethodPost, "/streams/"+streamID+"/elements", req, &rsp, http.StatusOK); err != nil {
		return nil, err
	}
	return &rsp, nil
}

// GetStream fetches current information for a managed stream.
func (c *Client) GetStream(ctx context.Context, streamID string) (*StreamInfo, error) {
	var info StreamInfo
	if err := c.do(ctx, http.MethodGet, "/streams/"+streamID, nil, &info, http.StatusOK); err != nil {
		return nil, err
	}
	return &info, nil
}

// CloseStream requests closure of a managed stream. The stream drains its
// remaining elements to taps before reaching the closed state.
func (c *Client) CloseStream(ctx context.Context, streamID string) error {
	return c.do(ctx, http.MethodDelete, "/streams/"+streamID, nil, nil, http.StatusOK)
}

// TapStream attaches to a stream's live event flow. The returned reader
// yields server-sent events, one JSON object per "data:" line, until the
// stream finishes or ctx is cancelled. The caller is responsible for
// closing the returned reader.
func (c *Client) TapStream(ctx context.Context, streamID string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/streams/"+streamID+"/tap", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Taps stay open for the stream's lifetime, so the per-request timeout
	// does not apply here. Cancellation comes from ctx.
	tapClient := &http.Client{}
	resp, err := tapClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("GET /streams/%s/tap failed with status %d: %s", streamID, resp.StatusCode, string(body))
	}
	return resp.Body, nil
}

// Ready reports whether the server is accepting requests.
func (c *Client) Ready(ctx context.Context) (*ReadyResponse, error) {
	var rsp ReadyResponse
	if err := c.do(ctx, http.MethodGet, "/ready", nil, &rsp, http.StatusOK); err != nil {
		return nil, err
	}
	return &rsp, nil
}

// Version fetches server version information.
func (c *Client) Version(ctx context.Context) (*VersionResponse, error) {
	var rsp VersionResponse
	if err := c.do(ctx, http.MethodGet, "/version", nil, &rsp, http.StatusOK); err != nil {
		return nil, err
	}
	return &rsp, nil
}

package runloop

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type RawResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.runloop.ai"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (c *Client) CreateBlueprint(ctx context.Context, req CreateBlueprintRequest) (*Blueprint, error) {
	raw, err := c.RawRequest(ctx, http.MethodPost, "/v1/blueprints", req)
	if err != nil {
		return nil, err
	}

	var bp Blueprint
	if err := json.Unmarshal(raw.Body, &bp); err != nil {
		return nil, fmt.Errorf("decode blueprint response: %w", err)
	}
	return &bp, nil
}

func (c *Client) GetBlueprint(ctx context.Context, id string) (*Blueprint, error) {
	raw, err := c.RawRequest(ctx, http.MethodGet, "/v1/blueprints/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	var bp Blueprint
	if err := json.Unmarshal(raw.Body, &bp); err != nil {
		return nil, fmt.Errorf("decode blueprint response: %w", err)
	}
	return &bp, nil
}

// GetBlueprintLogs returns the build log as one newline-joined string.
func (c *Client) GetBlueprintLogs(ctx context.Context, id string) (string, error) {
	raw, err := c.RawRequest(ctx, http.MethodGet, "/v1/blueprints/"+url.PathEscape(id)+"/logs", nil)
	if err != nil {
		return "", err
	}

	var logs BlueprintLogs
	if err := json.Unmarshal(raw.Body, &logs); err != nil {
		return "", fmt.Errorf("decode blueprint logs: %w", err)
	}
	lines := make([]string, 0, len(logs.Logs))
	for _, entry := range logs.Logs {
		lines = append(lines, entry.Message)
	}
	return strings.Join(lines, "\n"), nil
}

func (c *Client) CreateDevbox(ctx context.Context, req CreateDevboxRequest) (*Devbox, error) {
	raw, err := c.RawRequest(ctx, http.MethodPost, "/v1/devboxes", req)
	if err != nil {
		return nil, err
	}

	var db Devbox
	if err := json.Unmarshal(raw.Body, &db); err != nil {
		return nil, fmt.Errorf("decode devbox response: %w", err)
	}
	return &db, nil
}

func (c *Client) GetDevbox(ctx context.Context, id string) (*Devbox, error) {
	raw, err := c.RawRequest(ctx, http.MethodGet, "/v1/devboxes/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	var db Devbox
	if err := json.Unmarshal(raw.Body, &db); err != nil {
		return nil, fmt.Errorf("decode devbox response: %w", err)
	}
	return &db, nil
}

// ExecuteCommand runs a shell command synchronously inside the devbox. The
// call blocks until the command finishes or timeout elapses; a timeout
// surfaces as a context deadline error from the transport.
func (c *Client) ExecuteCommand(ctx context.Context, devboxID, command string, timeout time.Duration) (*ExecutionResult, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	path := "/v1/devboxes/" + url.PathEscape(devboxID) + "/execute_sync"
	raw, err := c.RawRequest(ctx, http.MethodPost, path, ExecuteRequest{Command: command})
	if err != nil {
		return nil, err
	}

	var result ExecutionResult
	if err := json.Unmarshal(raw.Body, &result); err != nil {
		return nil, fmt.Errorf("decode execution result: %w", err)
	}
	return &result, nil
}

func (c *Client) ShutdownDevbox(ctx context.Context, id string) error {
	_, err := c.RawRequest(ctx, http.MethodPost, "/v1/devboxes/"+url.PathEscape(id)+"/shutdown", nil)
	return err
}

func (c *Client) RawRequest(ctx context.Context, method, path string, body any) (*RawResponse, error) {
	var reader io.Reader
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		payload = b
		reader = bytes.NewReader(payload)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	if len(payload) > 0 {
		request.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		request.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	response, err := c.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer response.Body.Close()

	bodyBytes, readErr := io.ReadAll(response.Body)
	raw := &RawResponse{
		StatusCode: response.StatusCode,
		Headers:    response.Header.Clone(),
		Body:       bodyBytes,
		Duration:   time.Since(start),
	}
	if readErr != nil {
		return raw, fmt.Errorf("read response body: %w", readErr)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		envelope, ok := ParseAPIErrorEnvelope(bodyBytes)
		if !ok {
			return raw, fmt.Errorf("api status %d: %s", response.StatusCode, string(bodyBytes))
		}
		return raw, &APIError{
			StatusCode: response.StatusCode,
			Envelope:   envelope,
			Body:       bodyBytes,
		}
	}
	return raw, nil
}

func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

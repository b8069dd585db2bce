// Package llmhttp is the JSON-over-HTTP transport shared by the model and
// embedding provider adapters.
package llmhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/car-advisor/internal/infrastructure/resilience"
)

const maxErrorBody = 2048

type Client struct {
	provider   string
	baseURL    string
	headers    http.Header
	httpClient *http.Client

	executor   *resilience.Executor
	classifier resilience.ErrorClassifier
}

func New(provider, baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		provider:   provider,
		baseURL:    strings.TrimRight(baseURL, "/"),
		headers:    http.Header{},
		httpClient: &http.Client{Timeout: timeout},
		classifier: Classify,
	}
}

func (c *Client) Provider() string {
	return c.provider
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) SetHeader(key, value string) *Client {
	c.headers.Set(key, value)
	return c
}

// WithExecutor routes calls through exec. A nil classifier keeps Classify.
func (c *Client) WithExecutor(exec *resilience.Executor, classifier resilience.ErrorClassifier) *Client {
	c.executor = exec
	if classifier != nil {
		c.classifier = classifier
	}
	return c
}

func (c *Client) PostJSON(ctx context.Context, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}
	return c.do(ctx, http.MethodPost, path, body, out, operation)
}

// GetJSON issues a GET; a nil out discards the body.
func (c *Client) GetJSON(ctx context.Context, path string, out any, operation string) error {
	return c.do(ctx, http.MethodGet, path, nil, out, operation)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any, operation string) error {
	call := func(ctx context.Context) error {
		return c.roundTrip(ctx, method, path, body, out, operation)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, c.provider+"_"+operation, call, c.classifier)
	} else {
		err = call(ctx)
	}
	return WrapTemporaryIfNeeded(c.provider+" "+operation, err)
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body []byte, out any, operation string) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	for key, values := range c.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s request: %w", c.provider, operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &HTTPStatusError{
			Provider:   c.provider,
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(raw),
		}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/car-advisor/internal/core/domain"
	"github.com/kirillkom/car-advisor/internal/infrastructure/resilience"
)

const DefaultCollection = "cars_rag"

// Client searches the car catalog collection over the Qdrant REST API.
type Client struct {
	baseURL    string
	collection string
	apiKey     string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, collection, apiKey string) *Client {
	if strings.TrimSpace(collection) == "" {
		collection = DefaultCollection
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) WithExecutor(exec *resilience.Executor) *Client {
	c.executor = exec
	return c
}

type queryRequest struct {
	Query       []float32      `json:"query"`
	Limit       int            `json:"limit"`
	WithPayload bool           `json:"with_payload"`
	Filter      map[string]any `json:"filter,omitempty"`
}

type queryResponse struct {
	Result struct {
		Points []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"points"`
	} `json:"result"`
}

func (c *Client) Search(ctx context.Context, vector []float32, predicate domain.Predicate, limit int) ([]domain.RetrievedItem, error) {
	reqBody := queryRequest{
		Query:       vector,
		Limit:       limit,
		WithPayload: true,
		Filter:      buildRESTFilter(predicate),
	}

	var resp queryResponse
	call := func(ctx context.Context) error {
		return c.postJSON(ctx, fmt.Sprintf("/collections/%s/points/query", c.collection), reqBody, &resp)
	}
	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "qdrant_query", call, classifySearchError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}

	out := make([]domain.RetrievedItem, 0, len(resp.Result.Points))
	for _, p := range resp.Result.Points {
		score := p.Score
		out = append(out, toRetrievedItem(domain.StringValue(p.ID), &score, p.Payload))
	}
	return out, nil
}

// Ping checks the collection exists.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection), nil)
	if err != nil {
		return fmt.Errorf("create collection info request: %w", err)
	}
	c.authorize(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant collection info request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return statusError("collection info", resp)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal query body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.WrapError(domain.ErrTemporary, "qdrant query", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError("query", resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode query response: %w", err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}
}

func statusError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	msg := strings.TrimSpace(string(body))
	err := fmt.Errorf("qdrant %s status: %s", operation, resp.Status)
	if msg != "" {
		err = fmt.Errorf("qdrant %s status: %s: %s", operation, resp.Status, msg)
	}
	return mapSearchError(err)
}

func buildRESTFilter(predicate domain.Predicate) map[string]any {
	if predicate.IsEmpty() {
		return nil
	}
	must := make([]map[string]any, 0, len(predicate.Must))
	for _, cond := range predicate.Must {
		if cond.Range != nil {
			r := map[string]any{}
			if cond.Range.Gte != nil {
				r["gte"] = *cond.Range.Gte
			}
			if cond.Range.Lte != nil {
				r["lte"] = *cond.Range.Lte
			}
			must = append(must, map[string]any{"key": cond.Field, "range": r})
			continue
		}
		must = append(must, map[string]any{"key": cond.Field, "match": map[string]any{"value": cond.Value}})
	}
	return map[string]any{"must": must}
}

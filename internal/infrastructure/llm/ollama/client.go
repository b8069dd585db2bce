package ollama

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/car-advisor/internal/core/domain"
	"github.com/kirillkom/car-advisor/internal/infrastructure/llm/llmhttp"
	"github.com/kirillkom/car-advisor/internal/infrastructure/resilience"
)

// Client talks to a local Ollama server for generation and embeddings.
type Client struct {
	http       *llmhttp.Client
	genModel   string
	embedModel string
}

func New(baseURL, genModel, embedModel string) *Client {
	return &Client{
		http:       llmhttp.New("ollama", baseURL, 120*time.Second),
		genModel:   genModel,
		embedModel: embedModel,
	}
}

func (c *Client) WithExecutor(exec *resilience.Executor) *Client {
	c.http.WithExecutor(exec, nil)
	return c
}

func (c *Client) Complete(ctx context.Context, prompt string, params domain.GenerationParams) (string, error) {
	options := map[string]any{}
	if params.Temperature > 0 {
		options["temperature"] = params.Temperature
	}
	if params.TopP > 0 {
		options["top_p"] = params.TopP
	}
	if params.MaxTokens > 0 {
		options["num_predict"] = params.MaxTokens
	}

	reqBody := map[string]any{
		"model":   c.genModel,
		"prompt":  prompt,
		"stream":  false,
		"options": options,
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := c.http.PostJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	request := map[string]any{
		"model": c.embedModel,
		"input": []string{text},
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := c.http.PostJSON(ctx, "/api/embed", request, &response, "embed"); err != nil {
		return nil, err
	}
	if len(response.Embeddings) == 0 || len(response.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return response.Embeddings[0], nil
}

// Ping checks the server is reachable by listing local models.
func (c *Client) Ping(ctx context.Context) error {
	return c.http.GetJSON(ctx, "/api/tags", nil, "tags")
}

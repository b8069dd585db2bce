// Package groq adapts the Groq OpenAI-compatible chat completions API.
package groq

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/kirillkom/car-advisor/internal/core/domain"
	"github.com/kirillkom/car-advisor/internal/infrastructure/llm/llmhttp"
	"github.com/kirillkom/car-advisor/internal/infrastructure/resilience"
)

const (
	DefaultBaseURL   = "https://api.groq.com/openai/v1"
	DefaultModel     = "llama-3.3-70b-versatile"
	defaultMaxTokens = 3072
)

var errEmptyChoices = errors.New("groq returned no choices")

type Client struct {
	http  *llmhttp.Client
	model string
}

func New(baseURL, apiKey, model string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	return &Client{
		http:  llmhttp.New("groq", baseURL, 60*time.Second).SetHeader("Authorization", "Bearer "+apiKey),
		model: model,
	}
}

func (c *Client) WithExecutor(exec *resilience.Executor) *Client {
	c.http.WithExecutor(exec, nil)
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	TopP        float64       `json:"top_p,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) Complete(ctx context.Context, prompt string, params domain.GenerationParams) (string, error) {
	maxTokens := params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	req := chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: params.Temperature,
		TopP:        params.TopP,
		MaxTokens:   maxTokens,
	}

	var resp chatResponse
	if err := c.http.PostJSON(ctx, "/chat/completions", req, &resp, "chat"); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errEmptyChoices
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.http.GetJSON(ctx, "/models", nil, "models")
}

// Package gemini adapts the Gemini generateContent REST API.
package gemini

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/kirillkom/car-advisor/internal/core/domain"
	"github.com/kirillkom/car-advisor/internal/infrastructure/llm/llmhttp"
	"github.com/kirillkom/car-advisor/internal/infrastructure/resilience"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultModel   = "gemini-2.0-flash"
)

var errNoCandidates = errors.New("gemini returned no candidates")

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
		http:  llmhttp.New("gemini", baseURL, 60*time.Second).SetHeader("x-goog-api-key", apiKey),
		model: model,
	}
}

func (c *Client) WithExecutor(exec *resilience.Executor) *Client {
	c.http.WithExecutor(exec, nil)
	return c
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	TopP            float64 `json:"topP,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

func (c *Client) Complete(ctx context.Context, prompt string, params domain.GenerationParams) (string, error) {
	req := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:     params.Temperature,
			TopP:            params.TopP,
			MaxOutputTokens: params.MaxTokens,
		},
	}

	var resp generateResponse
	if err := c.http.PostJSON(ctx, c.modelPath()+":generateContent", req, &resp, "generate"); err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 {
		return "", errNoCandidates
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return strings.TrimSpace(b.String()), nil
}

// Ping fetches the model descriptor, which fails fast on a bad key or model name.
func (c *Client) Ping(ctx context.Context) error {
	return c.http.GetJSON(ctx, c.modelPath(), nil, "model")
}

func (c *Client) modelPath() string {
	return "/v1beta/models/" + url.PathEscape(c.model)
}

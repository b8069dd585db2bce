// Package huggingface adapts Hugging Face hosted inference for text
// generation and sentence embeddings.
package huggingface

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/car-advisor/internal/core/domain"
	"github.com/kirillkom/car-advisor/internal/infrastructure/llm/llmhttp"
	"github.com/kirillkom/car-advisor/internal/infrastructure/resilience"
)

const (
	DefaultEmbeddingEndpoint = "https://router.huggingface.co/hf-inference/models/sentence-transformers/all-MiniLM-L6-v2/pipeline/feature-extraction"
	DefaultMaxNewTokens      = 256
	DefaultLoadingWait       = 10 * time.Second
)

var errUnexpectedResponse = errors.New("unexpected hugging face response format")

// loadingClassifier retries only 503, which the hosted API returns while a
// cold model is loading.
func loadingClassifier(err error) resilience.ErrorClassification {
	if llmhttp.StatusCode(err) == http.StatusServiceUnavailable {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	class := llmhttp.Classify(err)
	class.Retryable = false
	return class
}

func newHTTP(endpoint, apiKey string, loadingWait time.Duration) *llmhttp.Client {
	if loadingWait <= 0 {
		loadingWait = DefaultLoadingWait
	}
	exec := resilience.NewExecutor(resilience.LoadingRetryConfig(loadingWait))
	client := llmhttp.New("huggingface", endpoint, 60*time.Second).WithExecutor(exec, loadingClassifier)
	if strings.TrimSpace(apiKey) != "" {
		client.SetHeader("Authorization", "Bearer "+apiKey)
	}
	return client
}

func mapGone(err error) error {
	if llmhttp.StatusCode(err) == http.StatusGone {
		return domain.WrapError(domain.ErrModelGone, "huggingface", err)
	}
	return err
}

// Completer calls a text-generation endpoint.
type Completer struct {
	http         *llmhttp.Client
	maxNewTokens int
}

func NewCompleter(endpoint, apiKey string, maxNewTokens int, loadingWait time.Duration) *Completer {
	if maxNewTokens <= 0 {
		maxNewTokens = DefaultMaxNewTokens
	}
	return &Completer{
		http:         newHTTP(endpoint, apiKey, loadingWait),
		maxNewTokens: maxNewTokens,
	}
}

type generationRequest struct {
	Inputs     string               `json:"inputs"`
	Parameters generationParameters `json:"parameters"`
}

type generationParameters struct {
	Temperature    float64 `json:"temperature,omitempty"`
	TopP           float64 `json:"top_p,omitempty"`
	MaxNewTokens   int     `json:"max_new_tokens"`
	ReturnFullText bool    `json:"return_full_text"`
}

type generationOutput struct {
	GeneratedText *string `json:"generated_text"`
	Text          *string `json:"text"`
	SummaryText   *string `json:"summary_text"`
}

func (o generationOutput) value() (string, bool) {
	for _, v := range []*string{o.GeneratedText, o.Text, o.SummaryText} {
		if v != nil {
			return *v, true
		}
	}
	return "", false
}

func (c *Completer) Complete(ctx context.Context, prompt string, params domain.GenerationParams) (string, error) {
	maxTokens := c.maxNewTokens
	if params.MaxTokens > 0 && params.MaxTokens < maxTokens {
		maxTokens = params.MaxTokens
	}
	req := generationRequest{
		Inputs: prompt,
		Parameters: generationParameters{
			Temperature:  params.Temperature,
			TopP:         params.TopP,
			MaxNewTokens: maxTokens,
		},
	}

	var raw json.RawMessage
	if err := c.http.PostJSON(ctx, "", req, &raw, "generate"); err != nil {
		return "", mapGone(err)
	}
	text, err := decodeGeneration(raw)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func decodeGeneration(raw json.RawMessage) (string, error) {
	var list []generationOutput
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) > 0 {
			if text, ok := list[0].value(); ok {
				return text, nil
			}
		}
		return "", fmt.Errorf("%w: %s", errUnexpectedResponse, truncate(raw))
	}

	var single generationOutput
	if err := json.Unmarshal(raw, &single); err == nil {
		if text, ok := single.value(); ok {
			return text, nil
		}
	}
	return "", fmt.Errorf("%w: %s", errUnexpectedResponse, truncate(raw))
}

// Embedder calls a feature-extraction endpoint that returns a pooled sentence vector.
type Embedder struct {
	http *llmhttp.Client
}

func NewEmbedder(endpoint, apiKey string, loadingWait time.Duration) *Embedder {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = DefaultEmbeddingEndpoint
	}
	return &Embedder{http: newHTTP(endpoint, apiKey, loadingWait)}
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	var raw json.RawMessage
	if err := e.http.PostJSON(ctx, "", map[string]any{"inputs": text}, &raw, "embed"); err != nil {
		return nil, mapGone(err)
	}

	var flat []float32
	if err := json.Unmarshal(raw, &flat); err == nil && len(flat) > 0 {
		return flat, nil
	}
	var nested [][]float32
	if err := json.Unmarshal(raw, &nested); err == nil && len(nested) > 0 && len(nested[0]) > 0 {
		return nested[0], nil
	}
	return nil, fmt.Errorf("%w: %s", errUnexpectedResponse, truncate(raw))
}

func truncate(raw []byte) string {
	const limit = 200
	if len(raw) > limit {
		return string(raw[:limit]) + "..."
	}
	return string(raw)
}

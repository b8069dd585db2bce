package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/car-advisor/internal/core/domain"
	"github.com/kirillkom/car-advisor/internal/core/ports"
)

const noRelevantCars = "No relevant cars found in the database."

// DefaultSynthesisTemplate is used when neither SYNTHESIS_PROMPT_PATH nor
// SYNTHESIS_TEMPLATE supplies one.
// Placeholders: {context}, {question}, {chat_history}.
const DefaultSynthesisTemplate = `You are a helpful car recommendation assistant for buyers in India. Use the following pieces of context to answer the user's question about cars.

Conversation so far:
{chat_history}

Context:
{context}

Question: {question}

Instructions:
- Use ONLY the information provided in the context above
- Cite specific fields and values from the context (e.g., "The Tata Nexon has a price of ₹8.10 lakhs")
- If the context doesn't contain enough information to answer the question, say so explicitly
- Do not make up or hallucinate any information
- Provide clear, concise recommendations based on the context

Answer:`

var synthesisParams = domain.GenerationParams{Temperature: 0.4, TopP: 0.95}

// AnswerSynthesizer renders retrieved cars into the answer template and asks
// the primary model for a grounded answer.
type AnswerSynthesizer struct {
	model    ports.LanguageModel
	template string
}

func NewAnswerSynthesizer(model ports.LanguageModel, template string) *AnswerSynthesizer {
	if strings.TrimSpace(template) == "" {
		template = DefaultSynthesisTemplate
	}
	return &AnswerSynthesizer{model: model, template: template}
}

func (s *AnswerSynthesizer) Synthesize(
	ctx context.Context,
	question string,
	items []domain.RetrievedItem,
	history []domain.Turn,
) (string, error) {
	prompt := strings.NewReplacer(
		"{context}", formatContext(items),
		"{question}", question,
		"{chat_history}", formatSynthesisHistory(history),
	).Replace(s.template)

	raw, err := s.model.Complete(ctx, prompt, synthesisParams)
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	return PostProcessAnswer(raw), nil
}

func formatContext(items []domain.RetrievedItem) string {
	if len(items) == 0 {
		return noRelevantCars
	}

	blocks := make([]string, 0, len(items))
	for i, item := range items {
		var b strings.Builder
		fmt.Fprintf(&b, "--- Car %d ---\n", i+1)
		fmt.Fprintf(&b, "Description: %s\n", item.Content)
		if fields := keyFields(item.Metadata); len(fields) > 0 {
			b.WriteString(strings.Join(fields, " | "))
			b.WriteString("\n")
		}
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}

func keyFields(md map[string]any) []string {
	fields := make([]string, 0, 11)
	add := func(key, format string) {
		v, ok := md[key]
		if !ok || !domain.Truthy(v) {
			return
		}
		fields = append(fields, fmt.Sprintf(format, domain.StringValue(v)))
	}

	add("make", "Brand: %s")
	add("model", "Model: %s")
	add("variant", "Variant: %s")
	add("year", "Year: %s")
	if v, ok := md["price_lakhs"]; ok && domain.Truthy(v) {
		if n, ok := domain.NumberValue(v); ok {
			fields = append(fields, fmt.Sprintf("Price: ₹%.2f lakhs", n))
		}
	}
	add("mileage", "Mileage: %s kmpl")
	add("fuel_type", "Fuel Type: %s")
	add("body_type", "Body Type: %s")
	add("transmission_type", "Transmission: %s")
	add("airbags", "Airbags: %s")
	add("power_bhp", "Power: %s bhp")
	return fields
}

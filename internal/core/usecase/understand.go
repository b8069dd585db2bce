package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/car-advisor/internal/core/domain"
	"github.com/kirillkom/car-advisor/internal/core/ports"
)

var understandingParams = domain.GenerationParams{Temperature: 0.3, TopP: 0.95, MaxTokens: 1024}

// QueryUnderstanding extracts intent, structured filters and search keywords
// from one utterance plus recent history with a single model call.
type QueryUnderstanding struct {
	model ports.LanguageModel
}

func NewQueryUnderstanding(model ports.LanguageModel) *QueryUnderstanding {
	return &QueryUnderstanding{model: model}
}

// Understand never fails: model or decode errors produce a passthrough result
// with no filters and the raw query as keywords.
func (u *QueryUnderstanding) Understand(ctx context.Context, query string, history []domain.Turn) domain.Understanding {
	if u.model == nil {
		return fallbackUnderstanding(query, "No LLM available for query understanding")
	}

	raw, err := u.model.Complete(ctx, buildUnderstandingPrompt(query, formatUnderstandingHistory(history)), understandingParams)
	if err != nil {
		slog.Warn("query_understanding_failed", "error", err)
		return fallbackUnderstanding(query, fmt.Sprintf("Error: %v", err))
	}

	var fields map[string]json.RawMessage
	if err := decodeModelJSON(raw, &fields); err != nil {
		slog.Warn("query_understanding_unparsable", "error", err)
		return fallbackUnderstanding(query, fmt.Sprintf("Error: %v", err))
	}

	// Fields are read independently so one oddly typed value does not cost the filters.
	result := domain.Understanding{
		CombinedIntent: nonBlankString(fields["combined_intent"], query),
		Filters:        decodeFilters(fields["filters"]),
		SearchKeywords: nonBlankString(fields["search_keywords"], query),
		Notes:          notesText(fields["context_notes"]),
	}

	slog.Info("query_understood",
		"intent", result.CombinedIntent,
		"keywords", result.SearchKeywords,
		"filters", result.Filters,
	)
	return result
}

func decodeFilters(raw json.RawMessage) domain.StructuredFilters {
	var filters map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &filters); err != nil {
			slog.Warn("query_understanding_filters_dropped", "error", err)
		}
	}
	if filters == nil {
		return domain.StructuredFilters{}
	}
	return domain.StructuredFilters(filters)
}

func nonBlankString(raw json.RawMessage, fallback string) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil || strings.TrimSpace(s) == "" {
		return fallback
	}
	return strings.TrimSpace(s)
}

// notesText keeps non-string notes as their compact JSON text.
func notesText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var buf bytes.Buffer
	if json.Compact(&buf, raw) != nil || buf.String() == "null" {
		return ""
	}
	return buf.String()
}

func fallbackUnderstanding(query, notes string) domain.Understanding {
	return domain.Understanding{
		CombinedIntent: query,
		Filters:        domain.StructuredFilters{},
		SearchKeywords: query,
		Notes:          notes,
	}
}

func buildUnderstandingPrompt(query, history string) string {
	return fmt.Sprintf(`You analyse car shopping queries from buyers in India. Read the conversation so far and the current query, then describe what the buyer wants.

Conversation so far:
%s

Current query:
"%s"

Produce:
1. combined_intent: what the buyer is looking for, combining the current query with earlier context
2. filters: structured constraints as JSON
3. search_keywords: the best phrase for semantic search
4. context_notes: what you carried over or assumed

Respond with JSON in exactly this shape:
{
  "combined_intent": "Fuel-efficient 7 seater SUV for a family under ₹25 lakhs",
  "filters": {"price_max": 25.0, "body_type": "SUV", "seating_capacity": 7},
  "search_keywords": "fuel efficient 7 seater family SUV",
  "context_notes": "Budget came from an earlier message"
}

Supported filter keys: price_min, price_max (lakhs), body_type (SUV, Sedan, Hatchback, MUV, Coupe), fuel_type (Petrol, Diesel, CNG, Electric, Hybrid), segment, mileage_min (kmpl), seating_capacity, transmission_type (Manual, Automatic, CVT, DCT), year_min, year_max, power_bhp_min, airbags_min, and true-only feature flags abs, esc, sunroof, cruise_control, apple_carplay, adaptive_cruise, lane_keep_assist, parking_camera, keyless_entry, connected_tech.

Examples:

Earlier: "I want a car under 10 lakhs"
Current: "fuel efficient SUV"
{"combined_intent": "Fuel-efficient SUV under ₹10 lakhs", "filters": {"price_max": 10.0, "body_type": "SUV", "mileage_min": 18.0}, "search_keywords": "fuel efficient SUV", "context_notes": "Budget carried over from the earlier message"}

Earlier: "25 lakh ke andar ki family car batao"
Current: "haan aur batao"
{"combined_intent": "More family car options under ₹25 lakhs", "filters": {"price_max": 25.0, "seating_capacity": 7}, "search_keywords": "family car spacious", "context_notes": "Vague follow-up, same criteria as before"}

Earlier: "fuel efficient sedan"
Current: "any other from Maruti?"
{"combined_intent": "Fuel-efficient Maruti Suzuki sedans", "filters": {"body_type": "Sedan", "mileage_min": 18.0}, "search_keywords": "Maruti Suzuki fuel efficient sedan", "context_notes": "Brand goes into keywords, not filters"}

Earlier: none
Current: "top 10 cars in India"
{"combined_intent": "Popular cars across segments in India", "filters": {}, "search_keywords": "popular cars India best sellers", "context_notes": "Broad query, no constraints"}

Rules:
- For vague follow-ups ("tell me more", "aur batao", "haan") reuse the filters from the previous query
- Keep an earlier price or budget unless the buyer changes it
- Treat Hindi and Hinglish phrasing ("25 lakh ke andar") exactly like the English equivalent
- "family car" means a 7 seater or an SUV/MUV body type
- "fuel efficient" means mileage_min 18.0; "very fuel efficient" means mileage_min 22.0
- Brand names (Tata, Mahindra, Maruti, Hyundai and others) belong in search_keywords, never in filters
- Never emit a "make" filter

Return only the JSON object.`, history, query)
}

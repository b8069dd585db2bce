package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/car-advisor/internal/core/domain"
	"github.com/kirillkom/car-advisor/internal/core/ports"
)

const maxExpandedQueries = 3

var (
	expansionParams = domain.GenerationParams{Temperature: 0.4, TopP: 0.95}
	vaguePhrases    = []string{"aur batao", "tell me more", "any other", "haan"}
)

// IsVagueFollowUp reports whether query is a contextless continuation such as
// "haan aur batao" that needs history to mean anything.
func IsVagueFollowUp(query string) bool {
	lowered := strings.ToLower(query)
	for _, phrase := range vaguePhrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}

// QueryExpander rewrites search keywords into a few alternative phrasings.
type QueryExpander struct {
	model ports.LanguageModel
}

func NewQueryExpander(model ports.LanguageModel) *QueryExpander {
	return &QueryExpander{model: model}
}

// Expand returns at most three distinct candidates, primary first. On any
// failure it returns the keywords unchanged.
func (e *QueryExpander) Expand(ctx context.Context, keywords string, history []domain.Turn) []string {
	if e.model == nil {
		return []string{keywords}
	}

	raw, err := e.model.Complete(ctx, buildExpansionPrompt(keywords, formatExpansionHistory(history)), expansionParams)
	if err != nil {
		slog.Warn("query_expansion_failed", "error", err)
		return []string{keywords}
	}

	var decoded struct {
		ExpandedQueries []string `json:"expanded_queries"`
		PrimaryQuery    string   `json:"primary_query"`
	}
	if err := decodeModelJSON(raw, &decoded); err != nil {
		slog.Warn("query_expansion_unparsable", "error", err)
		return []string{keywords}
	}

	// A blank primary is skipped by dedupeQueries, promoting the first expansion.
	candidates := dedupeQueries(append([]string{decoded.PrimaryQuery}, decoded.ExpandedQueries...))
	if len(candidates) == 0 {
		return []string{keywords}
	}
	if len(candidates) > maxExpandedQueries {
		candidates = candidates[:maxExpandedQueries]
	}
	return candidates
}

func dedupeQueries(queries []string) []string {
	seen := make(map[string]struct{}, len(queries))
	out := make([]string, 0, len(queries))
	for _, q := range queries {
		key := strings.ToLower(strings.TrimSpace(q))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, q)
	}
	return out
}

func buildExpansionPrompt(query, history string) string {
	return fmt.Sprintf(`You rewrite car search queries so a semantic search engine finds better matches.

Conversation so far:
%s

Query: "%s"

Write 2 to 3 alternative phrasings that keep the same meaning and use the context above. Pick the best one as primary_query.

Examples:

Query: "fuel efficient SUV"
{"expanded_queries": ["high mileage SUV", "economical SUV with good fuel economy", "SUV with best kmpl"], "primary_query": "fuel efficient SUV high mileage"}

Earlier: "SUV under 15 lakhs"
Query: "haan aur batao"
{"expanded_queries": ["more SUV options under 15 lakhs", "other SUVs below ₹15 lakhs"], "primary_query": "SUV under 15 lakhs more options"}

Query: "family car"
{"expanded_queries": ["7 seater family car", "spacious MUV for family", "family SUV with large boot"], "primary_query": "spacious 7 seater family car"}

Respond with JSON only:
{"expanded_queries": ["..."], "primary_query": "..."}`, history, query)
}

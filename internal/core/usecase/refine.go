package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/kirillkom/car-advisor/internal/core/domain"
	"github.com/kirillkom/car-advisor/internal/core/ports"
)

const maxRefinementCars = 5

var refinementParams = domain.GenerationParams{Temperature: 0.5, TopP: 0.95, MaxTokens: 2048}

// Refinement outcomes reported to the observer.
const (
	RefinementApplied  = "applied"
	RefinementSkipped  = "skipped"
	RefinementFallback = "fallback"
)

// AnswerRefiner rewrites a grounded answer into a conversational reply that
// restates carried-over constraints. A nil model disables refinement.
type AnswerRefiner struct {
	model ports.LanguageModel
}

func NewAnswerRefiner(model ports.LanguageModel) *AnswerRefiner {
	return &AnswerRefiner{model: model}
}

// Refine never fails; it returns the synthesized answer unchanged together
// with a non-applied outcome when the rewrite is unavailable.
func (r *AnswerRefiner) Refine(
	ctx context.Context,
	query string,
	answer string,
	recs []domain.Recommendation,
	history []domain.Turn,
) (string, string) {
	if r == nil || r.model == nil {
		return answer, RefinementSkipped
	}

	prompt := buildRefinementPrompt(query, formatRefinementHistory(history), answer, formatRefinementCars(recs))
	refined, err := r.model.Complete(ctx, prompt, refinementParams)
	if err != nil {
		slog.Warn("answer_refinement_failed", "error", err)
		return answer, RefinementFallback
	}
	refined = strings.TrimSpace(refined)
	if refined == "" {
		slog.Warn("answer_refinement_empty")
		return answer, RefinementFallback
	}
	return refined, RefinementApplied
}

func formatRefinementCars(recs []domain.Recommendation) string {
	if len(recs) > maxRefinementCars {
		recs = recs[:maxRefinementCars]
	}
	var b strings.Builder
	for i, rec := range recs {
		fmt.Fprintf(&b, "%d. %s - ₹%.2fL, %s kmpl\n", i+1, rec.Name, rec.Price, strconv.FormatFloat(rec.Mileage, 'f', -1, 64))
	}
	if b.Len() == 0 {
		return "No specific cars retrieved"
	}
	return b.String()
}

func buildRefinementPrompt(query, history, answer, cars string) string {
	return fmt.Sprintf(`You are an expert car consultant in India with deep knowledge of the automotive market.

The user asked: "%s"

Previous conversation:
%s

Answer based on our car database:
%s

Cars retrieved from the database:
%s

Improve the answer above with your automotive expertise. Make it:
1. Natural and conversational, like a knowledgeable friend
2. Context-aware, always referring back to the earlier conversation
3. Supplemented with general knowledge when database results are thin (popular models in India such as Maruti Swift, Tata Nexon, Hyundai Creta, typical features per price segment)
4. Clearly organised
5. Focused on helping the user decide

For vague queries like "haan aur batao", "tell me more" or "aur batao":
- Explicitly mention what was discussed before
- Start with "Sure! Here are more options for [previous requirement]..."
- Example: "Sure! Here are more fuel-efficient SUVs under ₹15 lakhs..."

For follow-up queries:
- If the user said "under 25 lakhs" earlier and now says "haan aur batao", mention "under ₹25 lakhs"
- Carry forward any brand, body type or fuel preference mentioned earlier

For "top 10" style queries:
- If the database has few options, mention popular models generally and say you are showing what the database has

Format:
- Simple bullets (•)
- No markdown syntax (no ###, no **)
- Short paragraphs
- Treat Hindi and Hinglish naturally ("haan aur batao" means "tell me more in the same context")
- Never claim you don't recall something that is in the conversation above

Example opening:
"Sure! Here are more SUV options under ₹15 lakhs that you might like:

• [car details]..."

Now write the improved answer:`, query, history, answer, cars)
}

package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/kirillkom/car-advisor/internal/core/domain"
)

const noPreviousConversation = "No previous conversation"

var (
	pricePattern      = regexp.MustCompile(`₹(\d+(?:\.\d+)?)\s*lakhs?`)
	bodyTypePattern   = regexp.MustCompile(`(?i)\b(SUV|Sedan|Hatchback|MUV)\b`)
	refineBodyPattern = regexp.MustCompile(`(?i)\b(SUV|Sedan|Hatchback|MUV|Coupe)\b`)
	brandPattern      = regexp.MustCompile(`(?i)\b(Tata|Mahindra|Maruti|Hyundai|Kia|Toyota|Honda)\b`)
)

// formatUnderstandingHistory renders the last three turns, replacing priced
// answers with a one-line marker so the extractor sees the budget.
func formatUnderstandingHistory(history []domain.Turn) string {
	turns := domain.LastTurns(history, 3)
	if len(turns) == 0 {
		return noPreviousConversation
	}
	lines := make([]string, 0, len(turns)*2)
	for _, turn := range turns {
		lines = append(lines, "User: "+turn.Query)
		if strings.Contains(turn.Answer, "lakhs") {
			if m := pricePattern.FindStringSubmatch(turn.Answer); m != nil {
				lines = append(lines, fmt.Sprintf("Assistant: [Recommended cars at ₹%s lakhs]", m[1]))
			}
			continue
		}
		lines = append(lines, "Assistant: "+truncateRunes(turn.Answer, 100)+"...")
	}
	return strings.Join(lines, "\n")
}

func formatExpansionHistory(history []domain.Turn) string {
	turns := domain.LastTurns(history, 3)
	if len(turns) == 0 {
		return noPreviousConversation
	}
	lines := make([]string, 0, len(turns)*2)
	for _, turn := range turns {
		lines = append(lines, "User: "+turn.Query)
		lines = append(lines, "Assistant: "+truncateRunes(turn.Answer, 150)+"...")
	}
	return strings.Join(lines, "\n")
}

func formatSynthesisHistory(history []domain.Turn) string {
	turns := domain.LastTurns(history, 5)
	lines := make([]string, 0, len(turns)*2)
	for _, turn := range turns {
		lines = append(lines, "Human: "+turn.Query)

		facts := make([]string, 0, 2)
		if m := pricePattern.FindStringSubmatch(turn.Answer); m != nil {
			facts = append(facts, fmt.Sprintf("Price: ₹%sL", m[1]))
		}
		if m := bodyTypePattern.FindStringSubmatch(turn.Answer); m != nil {
			facts = append(facts, "Type: "+m[1])
		}
		lines = append(lines, "AI: "+withFacts(facts, truncateRunes(turn.Answer, 200)+"..."))
	}
	return strings.Join(lines, "\n")
}

func formatRefinementHistory(history []domain.Turn) string {
	turns := domain.LastTurns(history, 5)
	if len(turns) == 0 {
		return noPreviousConversation
	}
	lines := make([]string, 0, len(turns)*2)
	for _, turn := range turns {
		lines = append(lines, "User: "+turn.Query)

		facts := make([]string, 0, 3)
		if m := pricePattern.FindStringSubmatch(turn.Answer); m != nil {
			facts = append(facts, fmt.Sprintf("Price: ₹%sL", m[1]))
		}
		if m := refineBodyPattern.FindStringSubmatch(turn.Answer); m != nil {
			facts = append(facts, "Type: "+m[1])
		}
		if m := brandPattern.FindStringSubmatch(turn.Answer); m != nil {
			facts = append(facts, "Brand: "+m[1])
		}
		lines = append(lines, "Assistant: "+withFacts(facts, truncateRunes(turn.Answer, 250)+"..."))
	}
	return strings.Join(lines, "\n")
}

func withFacts(facts []string, text string) string {
	if len(facts) == 0 {
		return text
	}
	return "[" + strings.Join(facts, ", ") + "] " + text
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

var errNoJSONObject = errors.New("no json object in model output")

// decodeModelJSON decodes the span between the first '{' and the last '}'.
func decodeModelJSON(raw string, out any) error {
	raw = strings.TrimSpace(raw)
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return errNoJSONObject
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), out); err != nil {
		return fmt.Errorf("unmarshal model json: %w", err)
	}
	return nil
}

package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/car-advisor/internal/core/domain"
)

func TestIsVagueFollowUp(t *testing.T) {
	cases := map[string]bool{
		"haan aur batao":        true,
		"Tell me MORE":          true,
		"any other from Kia?":   true,
		"Haan":                  true,
		"SUV under 15 lakhs":    false,
		"best diesel hatchback": false,
	}
	for query, want := range cases {
		if got := IsVagueFollowUp(query); got != want {
			t.Fatalf("IsVagueFollowUp(%q) = %v, want %v", query, got, want)
		}
	}
}

func TestExpandDedupesAndCaps(t *testing.T) {
	model := &modelFake{responses: []string{`{"expanded_queries": ["More SUV options", "  ", "more suv options ", "SUV below 15 lakhs", "compact SUV"], "primary_query": "more SUV options"}`}}
	e := NewQueryExpander(model)

	history := []domain.Turn{{Query: "SUV under 15 lakhs", Answer: strings.Repeat("a", 300)}}
	got := e.Expand(context.Background(), "SUV", history)

	want := []string{"more SUV options", "SUV below 15 lakhs", "compact SUV"}
	if len(got) != len(want) {
		t.Fatalf("expected %d candidates, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("candidate %d: expected %q, got %q", i, want[i], got[i])
		}
	}
	if !strings.Contains(model.prompts[0], "Assistant: "+strings.Repeat("a", 150)+"...") {
		t.Fatalf("expected answer truncated to 150 chars in prompt")
	}
}

func TestExpandFallsBackToKeywords(t *testing.T) {
	for name, model := range map[string]*modelFake{
		"error":   {err: errors.New("down")},
		"garbage": {responses: []string{"no json here"}},
		"empty":   {responses: []string{`{"expanded_queries": [], "primary_query": ""}`}},
	} {
		got := NewQueryExpander(model).Expand(context.Background(), "family car", nil)
		if len(got) != 1 || got[0] != "family car" {
			t.Fatalf("%s: expected keywords fallback, got %v", name, got)
		}
	}
}

func TestExpandBlankPrimaryPromotesFirstExpansion(t *testing.T) {
	model := &modelFake{responses: []string{`{"expanded_queries": ["x"], "primary_query": "  "}`}}

	got := NewQueryExpander(model).Expand(context.Background(), "family car", nil)

	if len(got) != 1 || got[0] != "x" {
		t.Fatalf("expected [x], got %v", got)
	}
}

package domain

import "time"

type Understanding struct {
	CombinedIntent string            `json:"combined_intent"`
	Filters        StructuredFilters `json:"filters"`
	SearchKeywords string            `json:"search_keywords"`
	Notes          string            `json:"context_notes"`
}

type Recommendation struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Make             string   `json:"make"`
	Model            string   `json:"model"`
	Price            float64  `json:"price"`
	Mileage          float64  `json:"mileage"`
	Variant          string   `json:"variant,omitempty"`
	Year             *int     `json:"year,omitempty"`
	BodyType         string   `json:"body_type,omitempty"`
	Segment          string   `json:"segment,omitempty"`
	FuelType         string   `json:"fuel_type,omitempty"`
	PowerBHP         *float64 `json:"power_bhp,omitempty"`
	Airbags          *int     `json:"airbags,omitempty"`
	TransmissionType string   `json:"transmission_type,omitempty"`
	Score            *float64 `json:"score,omitempty"`
}

type Source struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

type TurnRequest struct {
	Query     string            `json:"query"`
	Filters   StructuredFilters `json:"filters,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
}

type TurnResponse struct {
	Answer      string           `json:"answer"`
	Recommended []Recommendation `json:"recommended"`
	Sources     []Source         `json:"sources"`
}

// GenerationParams tunes one completion; zero values select provider defaults.
type GenerationParams struct {
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// TurnEvent describes a committed turn for downstream archiving.
type TurnEvent struct {
	ID             string            `json:"id"`
	SessionID      string            `json:"session_id"`
	RequestID      string            `json:"request_id,omitempty"`
	Query          string            `json:"query"`
	OptimizedQuery string            `json:"optimized_query"`
	Answer         string            `json:"answer"`
	Filters        StructuredFilters `json:"filters"`
	Recommended    []string          `json:"recommended"`
	Refined        bool              `json:"refined"`
	DurationMs     int64             `json:"duration_ms"`
	CreatedAt      time.Time         `json:"created_at"`
}

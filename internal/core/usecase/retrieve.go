package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/kirillkom/car-advisor/internal/core/domain"
	"github.com/kirillkom/car-advisor/internal/core/ports"
)

const DefaultRetrievalK = 8

var (
	categoricalFilterFields = []string{"body_type", "fuel_type", "segment", "transmission_type"}
	featureFlagFields       = []string{
		"abs", "esc", "sunroof", "cruise_control", "apple_carplay",
		"adaptive_cruise", "lane_keep_assist", "parking_camera", "keyless_entry", "connected_tech",
	}
)

type numericBound struct {
	key     string
	field   string
	lower   bool
	integer bool
}

var numericBounds = []numericBound{
	{key: "year_min", field: "year", lower: true, integer: true},
	{key: "year_max", field: "year", integer: true},
	{key: "mileage_min", field: "mileage", lower: true},
	{key: "power_bhp_min", field: "power_bhp", lower: true},
	{key: "airbags_min", field: "airbags", lower: true, integer: true},
}

// BuildPredicate translates structured filters into a catalog predicate.
// Unknown keys, make and seating_capacity are ignored. Values that cannot be
// read as numbers are skipped rather than failing the turn.
func BuildPredicate(filters domain.StructuredFilters) domain.Predicate {
	var pred domain.Predicate

	if v, ok := filters.FirstNumber("price_max", "price_lakhs_max"); ok {
		pred.Must = append(pred.Must, domain.Condition{Field: "price_lakhs", Range: &domain.Range{Lte: floatPtr(v)}})
	}
	if v, ok := filters.FirstNumber("price_min", "price_lakhs_min"); ok {
		pred.Must = append(pred.Must, domain.Condition{Field: "price_lakhs", Range: &domain.Range{Gte: floatPtr(v)}})
	}

	for _, field := range categoricalFilterFields {
		if v, ok := filters.Scalar(field); ok {
			pred.Must = append(pred.Must, domain.Condition{Field: field, Value: v})
		}
	}

	for _, b := range numericBounds {
		v, ok := filters.Number(b.key)
		if !ok {
			continue
		}
		if b.integer {
			v = math.Trunc(v)
		}
		r := &domain.Range{}
		if b.lower {
			r.Gte = floatPtr(v)
		} else {
			r.Lte = floatPtr(v)
		}
		pred.Must = append(pred.Must, domain.Condition{Field: b.field, Range: r})
	}

	for _, flag := range featureFlagFields {
		if filters.Flag(flag) {
			pred.Must = append(pred.Must, domain.Condition{Field: flag, Value: true})
		}
	}
	return pred
}

// RetrievalGateway embeds a query and searches the catalog, dropping the
// predicate once when the index cannot evaluate it.
type RetrievalGateway struct {
	embedder ports.Embedder
	searcher ports.VectorSearcher
	k        int
	observer ports.TurnObserver
}

func NewRetrievalGateway(embedder ports.Embedder, searcher ports.VectorSearcher, k int) *RetrievalGateway {
	if k <= 0 {
		k = DefaultRetrievalK
	}
	return &RetrievalGateway{embedder: embedder, searcher: searcher, k: k}
}

func (g *RetrievalGateway) WithObserver(observer ports.TurnObserver) *RetrievalGateway {
	g.observer = observer
	return g
}

func (g *RetrievalGateway) Retrieve(ctx context.Context, query string, filters domain.StructuredFilters) ([]domain.RetrievedItem, error) {
	vector, err := g.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	pred := BuildPredicate(filters)
	items, err := g.searcher.Search(ctx, vector, pred, g.k)
	if err == nil {
		return items, nil
	}
	if pred.IsEmpty() || !errors.Is(err, domain.ErrUnindexedField) {
		return nil, fmt.Errorf("search catalog: %w", err)
	}

	slog.Warn("retrieval_fail_open", "fields", pred.Fields(), "error", err)
	if g.observer != nil {
		g.observer.ObserveFailOpen()
	}
	items, err = g.searcher.Search(ctx, vector, domain.Predicate{}, g.k)
	if err != nil {
		return nil, fmt.Errorf("search catalog unfiltered: %w", err)
	}
	return items, nil
}

func floatPtr(v float64) *float64 {
	return &v
}

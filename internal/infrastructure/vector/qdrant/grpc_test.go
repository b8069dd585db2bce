package qdrant

import (
	"testing"

	qc "github.com/qdrant/go-client/qdrant"

	"github.com/kirillkom/car-advisor/internal/core/domain"
)

func TestBuildGRPCFilter(t *testing.T) {
	if buildGRPCFilter(domain.Predicate{}) != nil {
		t.Fatalf("expected nil filter for empty predicate")
	}

	filter := buildGRPCFilter(domain.Predicate{Must: []domain.Condition{
		{Field: "year", Range: &domain.Range{Gte: gte(2020)}},
		{Field: "fuel_type", Value: "Diesel"},
		{Field: "abs", Value: true},
	}})
	if len(filter.GetMust()) != 3 {
		t.Fatalf("expected 3 conditions, got %d", len(filter.GetMust()))
	}

	yr := filter.GetMust()[0].GetField()
	if yr.GetKey() != "year" || yr.GetRange().GetGte() != 2020 || yr.GetRange().Lte != nil {
		t.Fatalf("unexpected range condition: %v", yr)
	}
	fuel := filter.GetMust()[1].GetField()
	if fuel.GetKey() != "fuel_type" || fuel.GetMatch().GetKeyword() != "Diesel" {
		t.Fatalf("unexpected keyword condition: %v", fuel)
	}
	abs := filter.GetMust()[2].GetField()
	if abs.GetKey() != "abs" || !abs.GetMatch().GetBoolean() {
		t.Fatalf("unexpected bool condition: %v", abs)
	}
}

func TestPayloadToMapConvertsKinds(t *testing.T) {
	got := payloadToMap(map[string]*qc.Value{
		"make":    qc.NewValueString("Tata"),
		"year":    qc.NewValueInt(2023),
		"mileage": qc.NewValueDouble(17.5),
		"abs":     qc.NewValueBool(true),
	})
	if got["make"] != "Tata" || got["year"] != 2023.0 || got["mileage"] != 17.5 || got["abs"] != true {
		t.Fatalf("unexpected payload: %v", got)
	}
}

func TestPointID(t *testing.T) {
	if got := pointID(qc.NewIDNum(42)); got != "42" {
		t.Fatalf("expected 42, got %s", got)
	}
	if got := pointID(qc.NewIDUUID("5c56c793-69f3-4fbf-87e6-c4bf54c28c26")); got != "5c56c793-69f3-4fbf-87e6-c4bf54c28c26" {
		t.Fatalf("unexpected uuid id %s", got)
	}
	if pointID(nil) != "" {
		t.Fatalf("expected empty id for nil")
	}
}

package usecase

import (
	"strings"

	"github.com/kirillkom/car-advisor/internal/core/domain"
)

const sourcePreviewRunes = 200

// Deduplicate keeps the first item per make/model pair and projects the kept
// items into recommendations and source previews, preserving order.
func Deduplicate(items []domain.RetrievedItem) ([]domain.Recommendation, []domain.Source) {
	seen := make(map[string]struct{}, len(items))
	recs := make([]domain.Recommendation, 0, len(items))
	sources := make([]domain.Source, 0, len(items))

	for _, item := range items {
		key := canonicalKey(item.Metadata)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		recs = append(recs, toRecommendation(item))
		sources = append(sources, domain.Source{
			Content:  previewContent(item.Content),
			Metadata: item.Metadata,
		})
	}
	return recs, sources
}

func canonicalKey(metadata map[string]any) string {
	return normalizeKeyPart(metadataString(metadata, "make", "Unknown")) + "|" +
		normalizeKeyPart(metadataString(metadata, "model", "Unknown"))
}

func normalizeKeyPart(s string) string {
	return strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, "_", " ")))
}

func toRecommendation(item domain.RetrievedItem) domain.Recommendation {
	md := item.Metadata
	carMake := metadataString(md, "make", "Unknown")
	model := metadataString(md, "model", "Unknown")

	name := carMake + " " + model
	variant := ""
	if v, ok := md["variant"]; ok && domain.Truthy(v) {
		variant = domain.StringValue(v)
		name += " " + variant
	}

	rec := domain.Recommendation{
		ID:      metadataString(md, "id", ""),
		Name:    name,
		Make:    carMake,
		Model:   model,
		Price:   metadataNumber(md, "price_lakhs"),
		Mileage: metadataNumber(md, "mileage"),
		Variant: variant,
	}
	if v, ok := md["year"]; ok {
		if n, ok := domain.NumberValue(v); ok {
			year := int(n)
			rec.Year = &year
		}
	}
	if v, ok := md["power_bhp"]; ok {
		if n, ok := domain.NumberValue(v); ok {
			rec.PowerBHP = &n
		}
	}
	if v, ok := md["airbags"]; ok {
		if n, ok := domain.NumberValue(v); ok {
			airbags := int(n)
			rec.Airbags = &airbags
		}
	}
	rec.BodyType = metadataString(md, "body_type", "")
	rec.Segment = metadataString(md, "segment", "")
	rec.FuelType = metadataString(md, "fuel_type", "")
	rec.TransmissionType = metadataString(md, "transmission_type", "")

	if item.Score != nil {
		score := *item.Score * 100
		rec.Score = &score
	}
	return rec
}

func previewContent(content string) string {
	runes := []rune(content)
	if len(runes) > sourcePreviewRunes {
		return string(runes[:sourcePreviewRunes]) + "..."
	}
	return content
}

func metadataString(md map[string]any, key, fallback string) string {
	v, ok := md[key]
	if !ok || v == nil {
		return fallback
	}
	return domain.StringValue(v)
}

func metadataNumber(md map[string]any, key string) float64 {
	v, ok := md[key]
	if !ok {
		return 0
	}
	n, _ := domain.NumberValue(v)
	return n
}

package qdrant

import (
	"errors"
	"strings"

	"github.com/kirillkom/car-advisor/internal/core/domain"
	"github.com/kirillkom/car-advisor/internal/infrastructure/resilience"
)

// mapSearchError marks errors Qdrant raises for predicates it cannot
// evaluate, such as a filter on a field without a payload index.
func mapSearchError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "Index required") || strings.Contains(strings.ToLower(msg), "not found") {
		return domain.WrapError(domain.ErrUnindexedField, "qdrant query", err)
	}
	return err
}

func classifySearchError(err error) resilience.ErrorClassification {
	if errors.Is(err, domain.ErrUnindexedField) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

func toRetrievedItem(id string, score *float64, payload map[string]any) domain.RetrievedItem {
	content := ""
	if v, ok := payload["page_content"]; ok && v != nil {
		content = domain.StringValue(v)
	}
	if content == "" {
		if v, ok := payload["description"]; ok && v != nil {
			content = domain.StringValue(v)
		}
	}

	metadata := make(map[string]any, len(payload))
	for k, v := range payload {
		if k == "page_content" {
			continue
		}
		metadata[k] = v
	}
	return domain.RetrievedItem{ID: id, Content: content, Metadata: metadata, Score: score}
}

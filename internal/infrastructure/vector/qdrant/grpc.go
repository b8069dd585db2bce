package qdrant

import (
	"context"
	"fmt"
	"strings"

	qc "github.com/qdrant/go-client/qdrant"

	"github.com/kirillkom/car-advisor/internal/core/domain"
	"github.com/kirillkom/car-advisor/internal/infrastructure/resilience"
)

// GRPCSearcher searches the catalog through the official gRPC client.
type GRPCSearcher struct {
	client     *qc.Client
	collection string
	executor   *resilience.Executor
}

func NewGRPCSearcher(host string, port int, collection, apiKey string, useTLS bool) (*GRPCSearcher, error) {
	if strings.TrimSpace(collection) == "" {
		collection = DefaultCollection
	}
	client, err := qc.NewClient(&qc.Config{
		Host:   host,
		Port:   port,
		APIKey: apiKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connect qdrant grpc: %w", err)
	}
	return &GRPCSearcher{client: client, collection: collection}, nil
}

func (s *GRPCSearcher) WithExecutor(exec *resilience.Executor) *GRPCSearcher {
	s.executor = exec
	return s
}

func (s *GRPCSearcher) Search(ctx context.Context, vector []float32, predicate domain.Predicate, limit int) ([]domain.RetrievedItem, error) {
	n := uint64(limit)
	req := &qc.QueryPoints{
		CollectionName: s.collection,
		Query:          qc.NewQuery(vector...),
		Limit:          &n,
		Filter:         buildGRPCFilter(predicate),
		WithPayload:    qc.NewWithPayload(true),
	}

	var points []*qc.ScoredPoint
	call := func(ctx context.Context) error {
		var err error
		points, err = s.client.Query(ctx, req)
		if err != nil {
			return mapSearchError(fmt.Errorf("qdrant grpc query: %w", err))
		}
		return nil
	}
	var err error
	if s.executor != nil {
		err = s.executor.Execute(ctx, "qdrant_query", call, classifySearchError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}

	out := make([]domain.RetrievedItem, 0, len(points))
	for _, p := range points {
		score := float64(p.GetScore())
		out = append(out, toRetrievedItem(pointID(p.GetId()), &score, payloadToMap(p.GetPayload())))
	}
	return out, nil
}

func (s *GRPCSearcher) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant grpc health: %w", err)
	}
	return nil
}

func (s *GRPCSearcher) Close() error {
	return s.client.Close()
}

func buildGRPCFilter(predicate domain.Predicate) *qc.Filter {
	if predicate.IsEmpty() {
		return nil
	}
	must := make([]*qc.Condition, 0, len(predicate.Must))
	for _, cond := range predicate.Must {
		if cond.Range != nil {
			must = append(must, qc.NewRange(cond.Field, &qc.Range{Gte: cond.Range.Gte, Lte: cond.Range.Lte}))
			continue
		}
		switch v := cond.Value.(type) {
		case bool:
			must = append(must, qc.NewMatchBool(cond.Field, v))
		default:
			must = append(must, qc.NewMatch(cond.Field, domain.StringValue(v)))
		}
	}
	return &qc.Filter{Must: must}
}

func pointID(id *qc.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return fmt.Sprintf("%d", id.GetNum())
}

func payloadToMap(payload map[string]*qc.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = valueToAny(v)
	}
	return out
}

func valueToAny(v *qc.Value) any {
	if v == nil {
		return nil
	}
	switch kind := v.GetKind().(type) {
	case *qc.Value_StringValue:
		return kind.StringValue
	case *qc.Value_DoubleValue:
		return kind.DoubleValue
	case *qc.Value_IntegerValue:
		return float64(kind.IntegerValue)
	case *qc.Value_BoolValue:
		return kind.BoolValue
	case *qc.Value_ListValue:
		values := kind.ListValue.GetValues()
		list := make([]any, 0, len(values))
		for _, item := range values {
			list = append(list, valueToAny(item))
		}
		return list
	case *qc.Value_StructValue:
		return payloadToMap(kind.StructValue.GetFields())
	default:
		return nil
	}
}

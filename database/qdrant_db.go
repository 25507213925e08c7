package database

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/tieubaoca/rag-assistant/config"
	"github.com/tieubaoca/rag-assistant/types"
	"go.uber.org/zap"
)

// QdrantStore is a VectorIndex backed by a Qdrant collection over gRPC.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	logger     *zap.Logger
}

func NewQdrantStore(cfg config.QdrantConfig, collection string, logger *zap.Logger) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}
	return &QdrantStore{
		client:     client,
		collection: collection,
		logger:     logger.With(zap.String("collection", collection)),
	}, nil
}

func (s *QdrantStore) Collection() string {
	return s.collection
}

func (s *QdrantStore) Ping(ctx context.Context) error {
	_, err := s.client.HealthCheck(ctx)
	return types.Upstream("qdrant.health", err)
}

func (s *QdrantStore) CollectionExists(ctx context.Context) (bool, error) {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return false, types.Upstream("qdrant.collection_exists", err)
	}
	return exists, nil
}

func (s *QdrantStore) CreateCollection(ctx context.Context, dimension int) error {
	err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return types.Upstream("qdrant.create_collection", err)
	}
	s.logger.Info("collection created", zap.Int("dimension", dimension))
	return nil
}

func (s *QdrantStore) DeleteCollection(ctx context.Context) error {
	if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
		return types.Upstream("qdrant.delete_collection", err)
	}
	s.logger.Info("collection deleted")
	return nil
}

func (s *QdrantStore) CreateTextIndex(ctx context.Context, field string) error {
	_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		FieldName:      field,
		FieldType:      qdrant.PtrOf(qdrant.FieldType_FieldTypeText),
		FieldIndexParams: qdrant.NewPayloadIndexParamsText(&qdrant.TextIndexParams{
			Tokenizer: qdrant.TokenizerType_Word,
			Lowercase: qdrant.PtrOf(true),
		}),
	})
	if err != nil {
		return types.Upstream("qdrant.create_field_index", err)
	}
	return nil
}

func (s *QdrantStore) Upsert(ctx context.Context, points []types.Point) error {
	if len(points) == 0 {
		return nil
	}
	structs := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		payload, err := qdrant.TryValueMap(PayloadMap(p.Payload))
		if err != nil {
			return fmt.Errorf("point %s: invalid payload: %w", p.ID, err)
		}
		structs = append(structs, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(p.ID),
			Vectors: qdrant.NewVectorsDense(p.Vector),
			Payload: payload,
		})
	}
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         structs,
	})
	if err != nil {
		return types.Upstream("qdrant.upsert", err)
	}
	return nil
}

func (s *QdrantStore) Query(ctx context.Context, req QueryRequest) ([]types.Candidate, error) {
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQueryDense(req.Vector),
		Limit:          qdrant.PtrOf(uint64(req.Limit)),
		Filter:         buildTextFilter(req.Filter),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(req.WithVectors),
	})
	if err != nil {
		return nil, types.Upstream("qdrant.query", err)
	}

	candidates := make([]types.Candidate, 0, len(points))
	for _, p := range points {
		candidates = append(candidates, types.Candidate{
			ID:      pointIDString(p.GetId()),
			Score:   p.GetScore(),
			Vector:  vectorData(p.GetVectors()),
			Payload: payloadFromValues(p.GetPayload()),
		})
	}
	return candidates, nil
}

func (s *QdrantStore) Count(ctx context.Context, filter *types.TextFilter, exact bool) (int, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Filter:         buildTextFilter(filter),
		Exact:          qdrant.PtrOf(exact),
	})
	if err != nil {
		return 0, types.Upstream("qdrant.count", err)
	}
	return int(n), nil
}

func (s *QdrantStore) Scroll(ctx context.Context, req ScrollRequest) (*ScrollResult, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = SCROLL_PAGE
	}
	offset, err := parsePointID(req.Cursor)
	if err != nil {
		return nil, err
	}

	points, next, err := s.client.ScrollAndOffset(ctx, &qdrant.ScrollPoints{
		CollectionName: s.collection,
		Filter:         buildTextFilter(req.Filter),
		Offset:         offset,
		Limit:          qdrant.PtrOf(uint32(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, types.Upstream("qdrant.scroll", err)
	}

	result := &ScrollResult{Records: make([]types.Record, 0, len(points))}
	for _, p := range points {
		result.Records = append(result.Records, types.Record{
			ID:      pointIDString(p.GetId()),
			Payload: payloadFromValues(p.GetPayload()),
		})
	}
	if next != nil {
		result.NextCursor = pointIDString(next)
	}
	return result, nil
}

func (s *QdrantStore) Delete(ctx context.Context, filter *types.TextFilter) error {
	f := buildTextFilter(filter)
	if f == nil {
		f = &qdrant.Filter{}
	}
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelectorFilter(f),
	})
	if err != nil {
		return types.Upstream("qdrant.delete", err)
	}
	return nil
}

func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func buildTextFilter(filter *types.TextFilter) *qdrant.Filter {
	if filter == nil {
		return nil
	}
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatchText(filter.Field, filter.Text),
		},
	}
}

func pointIDString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return strconv.FormatUint(id.GetNum(), 10)
}

func parsePointID(cursor string) (*qdrant.PointId, error) {
	if cursor == "" {
		return nil, nil
	}
	if _, err := uuid.Parse(cursor); err == nil {
		return qdrant.NewIDUUID(cursor), nil
	}
	n, err := strconv.ParseUint(cursor, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid scroll cursor %q", cursor)
	}
	return qdrant.NewIDNum(n), nil
}

func vectorData(out *qdrant.VectorsOutput) types.VectorData {
	if out == nil {
		return types.VectorData{}
	}
	if v := out.GetVector(); v != nil {
		return types.SingleVector(denseValues(v))
	}
	if named := out.GetVectors().GetVectors(); len(named) > 0 {
		m := make(map[string][]float32, len(named))
		for name, v := range named {
			m[name] = denseValues(v)
		}
		return types.NamedVectorsFromMap(m)
	}
	return types.VectorData{}
}

func denseValues(v *qdrant.VectorOutput) []float32 {
	if dense := v.GetDense(); dense != nil {
		return dense.GetData()
	}
	// Servers before the dense/sparse split fill Data directly.
	return v.GetData()
}

func payloadFromValues(values map[string]*qdrant.Value) types.Payload {
	m := make(map[string]any, len(values))
	for k, v := range values {
		switch kind := v.GetKind().(type) {
		case *qdrant.Value_StringValue:
			m[k] = kind.StringValue
		case *qdrant.Value_IntegerValue:
			m[k] = kind.IntegerValue
		case *qdrant.Value_DoubleValue:
			m[k] = kind.DoubleValue
		case *qdrant.Value_BoolValue:
			m[k] = kind.BoolValue
		default:
			m[k] = nil
		}
	}
	return PayloadFromMap(m)
}

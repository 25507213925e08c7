package database

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-openapi/strfmt"
	"github.com/tieubaoca/rag-assistant/config"
	"github.com/tieubaoca/rag-assistant/types"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
	"go.uber.org/zap"
)

var chunkFields = []graphql.Field{
	{Name: "text"},
	{Name: "source"},
	{Name: "page"},
	{Name: "chunk_id"},
	{Name: "created_at"},
	{Name: "hash"},
}

// WeaviateStore is a VectorIndex backed by a Weaviate class. Vectors are
// supplied by the pipeline, the class has no vectorizer.
type WeaviateStore struct {
	client    *weaviate.Client
	className string
	logger    *zap.Logger
}

func NewWeaviateStore(cfg config.WeaviateConfig, collection string, logger *zap.Logger) (*WeaviateStore, error) {
	scheme := cfg.Scheme
	host := cfg.Host
	if strings.HasPrefix(host, "https://") {
		scheme = "https"
	} else if strings.HasPrefix(host, "http://") {
		scheme = "http"
	}
	if scheme == "" {
		scheme = "http"
	}
	host = strings.TrimPrefix(host, scheme+"://")

	wcfg := weaviate.Config{
		Host:   host,
		Scheme: scheme,
	}
	if cfg.APIKey != "" {
		wcfg.AuthConfig = auth.ApiKey{
			Value: cfg.APIKey,
		}
		wcfg.Headers = map[string]string{
			"X-Weaviate-Api-Key":     cfg.APIKey,
			"X-Weaviate-Cluster-Url": fmt.Sprintf("%s://%s", scheme, host),
		}
	}
	client, err := weaviate.NewClient(wcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}

	className := ClassName(collection)
	return &WeaviateStore{
		client:    client,
		className: className,
		logger:    logger.With(zap.String("collection", className)),
	}, nil
}

// ClassName turns a collection name into a valid Weaviate class name.
func ClassName(collection string) string {
	var b strings.Builder
	for _, r := range collection {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	name := b.String()
	if name == "" || !unicode.IsLetter(rune(name[0])) {
		name = "C" + name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

func (s *WeaviateStore) Collection() string {
	return s.className
}

func (s *WeaviateStore) Ping(ctx context.Context) error {
	ready, err := s.client.Misc().ReadyChecker().Do(ctx)
	if err != nil {
		return types.Upstream("weaviate.ready", err)
	}
	if !ready {
		return types.Upstream("weaviate.ready", fmt.Errorf("weaviate is not ready"))
	}
	return nil
}

func (s *WeaviateStore) CollectionExists(ctx context.Context) (bool, error) {
	exists, err := s.client.Schema().ClassExistenceChecker().WithClassName(s.className).Do(ctx)
	if err != nil {
		return false, types.Upstream("weaviate.class_exists", err)
	}
	return exists, nil
}

func (s *WeaviateStore) CreateCollection(ctx context.Context, dimension int) error {
	classObj := &models.Class{
		Class: s.className,
		Properties: []*models.Property{
			{Name: "text", DataType: []string{"text"}, Tokenization: "word"},
			{Name: "source", DataType: []string{"text"}, Tokenization: "word"},
			{Name: "page", DataType: []string{"int"}},
			{Name: "chunk_id", DataType: []string{"int"}},
			{Name: "created_at", DataType: []string{"int"}},
			{Name: "hash", DataType: []string{"text"}, Tokenization: "field"},
		},
		Vectorizer:      "none",
		VectorIndexType: "hnsw",
		VectorIndexConfig: map[string]interface{}{
			"distance": "cosine",
		},
	}
	if err := s.client.Schema().ClassCreator().WithClass(classObj).Do(ctx); err != nil {
		return types.Upstream("weaviate.create_class", err)
	}
	s.logger.Info("class created", zap.Int("dimension", dimension))
	return nil
}

func (s *WeaviateStore) DeleteCollection(ctx context.Context) error {
	if err := s.client.Schema().ClassDeleter().WithClassName(s.className).Do(ctx); err != nil {
		return types.Upstream("weaviate.delete_class", err)
	}
	s.logger.Info("class deleted")
	return nil
}

// CreateTextIndex is a no-op: text properties are created with an
// inverted index.
func (s *WeaviateStore) CreateTextIndex(ctx context.Context, field string) error {
	return nil
}

func (s *WeaviateStore) Upsert(ctx context.Context, points []types.Point) error {
	total := len(points)
	for i := 0; i < total; i += BATCH_SIZE {
		end := i + BATCH_SIZE
		if end > total {
			end = total
		}

		batcher := s.client.Batch().ObjectsBatcher()
		for _, p := range points[i:end] {
			properties := PayloadMap(p.Payload)
			if p.Payload.Page == nil {
				delete(properties, "page")
			}
			batcher = batcher.WithObjects(&models.Object{
				Class:      s.className,
				ID:         strfmt.UUID(p.ID),
				Properties: properties,
				Vector:     p.Vector,
			})
		}

		responses, err := batcher.Do(ctx)
		if err != nil {
			return types.Upstream("weaviate.batch", fmt.Errorf("failed to insert batch %d-%d: %w", i, end, err))
		}
		for _, r := range responses {
			if r.Result != nil && r.Result.Errors != nil && len(r.Result.Errors.Error) > 0 {
				return types.Upstream("weaviate.batch", fmt.Errorf("object %s: %s", r.ID, r.Result.Errors.Error[0].Message))
			}
		}
		s.logger.Debug("inserted batch", zap.Int("from", i), zap.Int("to", end), zap.Int("total", total))
	}
	return nil
}

func (s *WeaviateStore) Query(ctx context.Context, req QueryRequest) ([]types.Candidate, error) {
	additional := []graphql.Field{{Name: "id"}, {Name: "distance"}}
	if req.WithVectors {
		additional = append(additional, graphql.Field{Name: "vector"})
	}
	fields := append(append([]graphql.Field{}, chunkFields...), graphql.Field{Name: "_additional", Fields: additional})

	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(req.Vector)
	getBuilder := s.client.GraphQL().Get().
		WithClassName(s.className).
		WithFields(fields...).
		WithNearVector(nearVector).
		WithLimit(req.Limit)
	if where := buildWhere(req.Filter); where != nil {
		getBuilder = getBuilder.WithWhere(where)
	}

	result, err := getBuilder.Do(ctx)
	if err != nil {
		return nil, types.Upstream("weaviate.query", err)
	}
	if len(result.Errors) > 0 {
		return nil, types.Upstream("weaviate.query", fmt.Errorf("search failed: %v", result.Errors[0].Message))
	}

	var candidates []types.Candidate
	for _, obj := range s.objects(result) {
		c := types.Candidate{Payload: PayloadFromMap(obj)}
		if additional, ok := obj["_additional"].(map[string]interface{}); ok {
			c.ID, _ = additional["id"].(string)
			if distance, ok := additional["distance"].(float64); ok {
				c.Score = float32(1 - distance)
			}
			c.Vector = types.SingleVector(parseVector(additional["vector"]))
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func (s *WeaviateStore) Count(ctx context.Context, filter *types.TextFilter, exact bool) (int, error) {
	builder := s.client.GraphQL().Aggregate().
		WithClassName(s.className).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}})
	if where := buildWhere(filter); where != nil {
		builder = builder.WithWhere(where)
	}
	result, err := builder.Do(ctx)
	if err != nil {
		return 0, types.Upstream("weaviate.aggregate", err)
	}
	if len(result.Errors) > 0 {
		return 0, types.Upstream("weaviate.aggregate", fmt.Errorf("aggregate failed: %v", result.Errors[0].Message))
	}

	aggregate, _ := result.Data["Aggregate"].(map[string]interface{})
	groups, _ := aggregate[s.className].([]interface{})
	if len(groups) == 0 {
		return 0, nil
	}
	group, _ := groups[0].(map[string]interface{})
	meta, _ := group["meta"].(map[string]interface{})
	count, _ := toInt(meta["count"])
	return count, nil
}

// Scroll uses the cursor API without a filter. Filtered scrolls page by
// offset, since the cursor API does not accept a where clause.
func (s *WeaviateStore) Scroll(ctx context.Context, req ScrollRequest) (*ScrollResult, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = SCROLL_PAGE
	}
	fields := append(append([]graphql.Field{}, chunkFields...),
		graphql.Field{Name: "_additional", Fields: []graphql.Field{{Name: "id"}}})

	getBuilder := s.client.GraphQL().Get().
		WithClassName(s.className).
		WithFields(fields...).
		WithLimit(limit)

	where := buildWhere(req.Filter)
	offset := 0
	if where != nil {
		if req.Cursor != "" {
			n, err := strconv.Atoi(req.Cursor)
			if err != nil {
				return nil, fmt.Errorf("invalid scroll cursor %q", req.Cursor)
			}
			offset = n
		}
		getBuilder = getBuilder.WithWhere(where).WithOffset(offset)
	} else if req.Cursor != "" {
		getBuilder = getBuilder.WithAfter(req.Cursor)
	}

	result, err := getBuilder.Do(ctx)
	if err != nil {
		return nil, types.Upstream("weaviate.scroll", err)
	}
	if len(result.Errors) > 0 {
		return nil, types.Upstream("weaviate.scroll", fmt.Errorf("scroll failed: %v", result.Errors[0].Message))
	}

	out := &ScrollResult{}
	for _, obj := range s.objects(result) {
		record := types.Record{Payload: PayloadFromMap(obj)}
		if additional, ok := obj["_additional"].(map[string]interface{}); ok {
			record.ID, _ = additional["id"].(string)
		}
		out.Records = append(out.Records, record)
	}
	if len(out.Records) == limit {
		if where != nil {
			out.NextCursor = strconv.Itoa(offset + limit)
		} else {
			out.NextCursor = out.Records[len(out.Records)-1].ID
		}
	}
	return out, nil
}

func (s *WeaviateStore) Delete(ctx context.Context, filter *types.TextFilter) error {
	where := buildWhere(filter)
	if where == nil {
		return fmt.Errorf("%w: delete requires a filter", types.ErrEmptyInput)
	}
	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(s.className).
		WithOutput("minimal").
		WithWhere(where).
		Do(ctx)
	if err != nil {
		return types.Upstream("weaviate.batch_delete", err)
	}
	return nil
}

func (s *WeaviateStore) Close() error {
	return nil
}

func (s *WeaviateStore) objects(result *models.GraphQLResponse) []map[string]interface{} {
	get, _ := result.Data["Get"].(map[string]interface{})
	items, _ := get[s.className].([]interface{})
	objs := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		if obj, ok := item.(map[string]interface{}); ok {
			objs = append(objs, obj)
		}
	}
	return objs
}

// buildWhere matches objects whose field holds every word of the filter
// text, mirroring a full-text match.
func buildWhere(filter *types.TextFilter) *filters.WhereBuilder {
	if filter == nil {
		return nil
	}
	words := strings.Fields(strings.ToLower(filter.Text))
	if len(words) == 0 {
		return nil
	}
	return filters.Where().
		WithPath([]string{filter.Field}).
		WithOperator(filters.ContainsAll).
		WithValueText(words...)
}

func parseVector(v interface{}) []float32 {
	arr, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]float32, 0, len(arr))
	for _, item := range arr {
		f, ok := item.(float64)
		if !ok {
			return nil
		}
		out = append(out, float32(f))
	}
	return out
}

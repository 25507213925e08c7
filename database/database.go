package database

import (
	"context"
	"fmt"

	"github.com/tieubaoca/rag-assistant/types"
)

const (
	BATCH_SIZE  = 200
	SCROLL_PAGE = 1000

	FIELD_TEXT   = "text"
	FIELD_SOURCE = "source"
)

// QueryRequest is a nearest-neighbour query.
type QueryRequest struct {
	Vector      []float32
	Limit       int
	Filter      *types.TextFilter
	WithVectors bool
}

// ScrollRequest pages through stored records. An empty Cursor starts from
// the beginning.
type ScrollRequest struct {
	Filter *types.TextFilter
	Limit  int
	Cursor string
}

type ScrollResult struct {
	Records []types.Record
	// NextCursor is empty when there are no more records.
	NextCursor string
}

// VectorIndex defines the operations the pipeline needs from a vector store.
// Each instance is bound to one collection.
type VectorIndex interface {
	// Collection returns the collection name this index is bound to.
	Collection() string
	Ping(ctx context.Context) error

	// Collection operations
	CollectionExists(ctx context.Context) (bool, error)
	CreateCollection(ctx context.Context, dimension int) error
	DeleteCollection(ctx context.Context) error
	CreateTextIndex(ctx context.Context, field string) error

	// Point operations
	Upsert(ctx context.Context, points []types.Point) error
	Query(ctx context.Context, req QueryRequest) ([]types.Candidate, error)
	Count(ctx context.Context, filter *types.TextFilter, exact bool) (int, error)
	Scroll(ctx context.Context, req ScrollRequest) (*ScrollResult, error)
	Delete(ctx context.Context, filter *types.TextFilter) error

	Close() error
}

// EnsureCollection creates the collection with a text index on the chunk
// text when it does not exist yet. It reports whether it created anything.
func EnsureCollection(ctx context.Context, index VectorIndex, dimension int) (bool, error) {
	exists, err := index.CollectionExists(ctx)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := index.CreateCollection(ctx, dimension); err != nil {
		return false, err
	}
	if err := index.CreateTextIndex(ctx, FIELD_TEXT); err != nil {
		return true, fmt.Errorf("failed to create text index: %w", err)
	}
	return true, nil
}

// RecreateCollection drops the collection if present and creates it empty.
func RecreateCollection(ctx context.Context, index VectorIndex, dimension int) error {
	exists, err := index.CollectionExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		if err := index.DeleteCollection(ctx); err != nil {
			return err
		}
	}
	_, err = EnsureCollection(ctx, index, dimension)
	return err
}

// PayloadMap renders a payload with the stored field names.
func PayloadMap(p types.Payload) map[string]any {
	m := map[string]any{
		"text":       p.Text,
		"source":     p.Source,
		"page":       nil,
		"chunk_id":   p.ChunkID,
		"created_at": p.CreatedAt,
	}
	if p.Page != nil {
		m["page"] = *p.Page
	}
	if p.Hash != "" {
		m["hash"] = p.Hash
	}
	return m
}

// PayloadFromMap reads a payload decoded from JSON-like values.
func PayloadFromMap(m map[string]any) types.Payload {
	var p types.Payload
	p.Text, _ = m["text"].(string)
	p.Source, _ = m["source"].(string)
	p.Hash, _ = m["hash"].(string)
	if page, ok := toInt(m["page"]); ok {
		p.Page = &page
	}
	if id, ok := toInt(m["chunk_id"]); ok {
		p.ChunkID = id
	}
	if ts, ok := toInt(m["created_at"]); ok {
		p.CreatedAt = int64(ts)
	}
	return p
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float32:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

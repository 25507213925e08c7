package database

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tieubaoca/rag-assistant/types"
)

func newTestStore(t *testing.T) *MemoryStore {
	t.Helper()
	store := NewMemoryStore("test")
	created, err := EnsureCollection(context.Background(), store, 2)
	require.NoError(t, err)
	require.True(t, created)
	return store
}

func point(id, text, source string, vector ...float32) types.Point {
	return types.Point{
		ID:      id,
		Vector:  vector,
		Payload: types.Payload{Text: text, Source: source},
	}
}

func TestMemoryStore_CollectionLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore("test")

	exists, err := store.CollectionExists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	err = store.Upsert(ctx, []types.Point{point("a", "x", "s", 1, 0)})
	assert.ErrorIs(t, err, ErrCollectionNotFound)

	created, err := EnsureCollection(ctx, store, 2)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = EnsureCollection(ctx, store, 2)
	require.NoError(t, err)
	assert.False(t, created)

	require.NoError(t, store.Upsert(ctx, []types.Point{point("a", "x", "s", 1, 0)}))
	require.NoError(t, RecreateCollection(ctx, store, 2))

	n, err := store.Count(ctx, nil, true)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemoryStore_UpsertOverwritesByID(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Upsert(ctx, []types.Point{point("a", "first", "s", 1, 0)}))
	require.NoError(t, store.Upsert(ctx, []types.Point{point("a", "second", "s", 0, 1)}))

	n, err := store.Count(ctx, nil, true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	page, err := store.Scroll(ctx, ScrollRequest{})
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "second", page.Records[0].Payload.Text)
}

func TestMemoryStore_UpsertRejectsWrongDimension(t *testing.T) {
	store := newTestStore(t)
	err := store.Upsert(context.Background(), []types.Point{point("a", "x", "s", 1, 0, 0)})
	assert.Error(t, err)
}

func TestMemoryStore_QueryOrdersBySimilarity(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Upsert(ctx, []types.Point{
		point("far", "lejos", "s", 0, 1),
		point("near", "cerca", "s", 1, 0),
		point("mid", "medio", "s", 1, 1),
	}))

	hits, err := store.Query(ctx, QueryRequest{Vector: []float32{1, 0}, Limit: 2, WithVectors: true})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "near", hits[0].ID)
	assert.Equal(t, "mid", hits[1].ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)

	v, ok := hits[0].Vector.Resolve()
	require.True(t, ok)
	assert.Equal(t, []float32{1, 0}, v)

	hits, err = store.Query(ctx, QueryRequest{Vector: []float32{1, 0}, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, types.VectorNone, hits[0].Vector.Kind())
}

func TestMemoryStore_TextIndexMatchesAllTokens(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Upsert(ctx, []types.Point{
		point("a", "Producción de cine en España", "s", 1, 0),
		point("b", "Series de televisión", "s", 1, 0),
	}))

	hits, err := store.Query(ctx, QueryRequest{
		Vector: []float32{1, 0},
		Limit:  10,
		Filter: &types.TextFilter{Field: FIELD_TEXT, Text: "CINE españa"},
	})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].ID)
}

func TestMemoryStore_SourceFilterAndDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, store.Upsert(ctx, []types.Point{point(fmt.Sprintf("x%d", i), "t", "x", 1, 0)}))
	}
	for i := 0; i < 2; i++ {
		require.NoError(t, store.Upsert(ctx, []types.Point{point(fmt.Sprintf("y%d", i), "t", "y", 1, 0)}))
	}

	filter := &types.TextFilter{Field: FIELD_SOURCE, Text: "x"}
	n, err := store.Count(ctx, filter, true)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, store.Delete(ctx, filter))
	n, err = store.Count(ctx, nil, true)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMemoryStore_ScrollPages(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Upsert(ctx, []types.Point{point(fmt.Sprintf("p%d", i), "t", "s", 1, 0)}))
	}

	var ids []string
	cursor := ""
	pages := 0
	for {
		page, err := store.Scroll(ctx, ScrollRequest{Limit: 2, Cursor: cursor})
		require.NoError(t, err)
		pages++
		for _, r := range page.Records {
			ids = append(ids, r.ID)
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	assert.Equal(t, 3, pages)
	assert.Equal(t, []string{"p0", "p1", "p2", "p3", "p4"}, ids)

	_, err := store.Scroll(ctx, ScrollRequest{Cursor: "not-a-number"})
	assert.Error(t, err)
}

func TestPayloadMapRoundTrip(t *testing.T) {
	page := 3
	p := types.Payload{Text: "t", Source: "s", Page: &page, ChunkID: 7, CreatedAt: 1700000000, Hash: "h"}

	m := PayloadMap(p)
	assert.Equal(t, 3, m["page"])
	assert.Equal(t, "h", m["hash"])

	// Values decoded from JSON arrive as float64
	decoded := map[string]any{
		"text": "t", "source": "s", "page": float64(3),
		"chunk_id": float64(7), "created_at": float64(1700000000), "hash": "h",
	}
	assert.Equal(t, p, PayloadFromMap(decoded))

	noPage := PayloadMap(types.Payload{Text: "t"})
	assert.Nil(t, noPage["page"])
	_, hasHash := noPage["hash"]
	assert.False(t, hasHash)
}

package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tieubaoca/rag-assistant/database"
	"github.com/tieubaoca/rag-assistant/types"
	"go.uber.org/zap"
)

type ragFixture struct {
	svc       *RAGService
	index     *database.MemoryStore
	embedder  *fakeEmbedder
	generator *fakeGenerator
	metrics   *Metrics
}

func newRAGFixture(t *testing.T) *ragFixture {
	t.Helper()
	f := &ragFixture{
		index:     newMemoryIndex(t),
		embedder:  newFakeEmbedder(),
		generator: &fakeGenerator{answer: "respuesta"},
		metrics:   NewMetrics(prometheus.NewRegistry()),
	}
	svc, err := NewRAGService(RAGServiceConfig{
		Persona:       "Eres un analista.",
		Model:         "test-model",
		GenerationKey: true,
	}, RAGDependencies{
		Embedder:  StaticEmbeddingHandle(f.embedder),
		Index:     f.index,
		Generator: f.generator,
		Models:    &fakeModelLister{models: []string{"m1", "m2"}},
		Metrics:   f.metrics,
		Logger:    zap.NewNop(),
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *ragFixture) upsert(t *testing.T, source string, texts ...string) {
	t.Helper()
	_, err := f.svc.Upsert(context.Background(), types.UpsertRequest{Texts: texts, Source: source})
	require.NoError(t, err)
}

func boolPtr(b bool) *bool { return &b }

func TestNewRAGService_Validation(t *testing.T) {
	_, err := NewRAGService(RAGServiceConfig{}, RAGDependencies{Index: database.NewMemoryStore("c")})
	assert.ErrorIs(t, err, types.ErrInvalidConfig)

	_, err = NewRAGService(RAGServiceConfig{UpsertMaxChars: 10, UpsertOverlap: 10}, RAGDependencies{
		Embedder: StaticEmbeddingHandle(newFakeEmbedder()),
		Index:    database.NewMemoryStore("c"),
	})
	assert.ErrorIs(t, err, types.ErrInvalidConfig)

	svc, err := NewRAGService(RAGServiceConfig{}, RAGDependencies{
		Embedder: StaticEmbeddingHandle(newFakeEmbedder()),
		Index:    database.NewMemoryStore("c"),
	})
	require.NoError(t, err)
	assert.Equal(t, "c", svc.Collection())
	assert.Equal(t, DEFAULT_UPSERT_MAX_CHARS, svc.cfg.UpsertMaxChars)
	assert.Equal(t, DEFAULT_UPSERT_OVERLAP, svc.cfg.UpsertOverlap)
	assert.Equal(t, DEFAULT_TOP_K, svc.cfg.DefaultTopK)

	// An explicit window keeps an explicit zero overlap
	svc, err = NewRAGService(RAGServiceConfig{UpsertMaxChars: 500}, RAGDependencies{
		Embedder: StaticEmbeddingHandle(newFakeEmbedder()),
		Index:    database.NewMemoryStore("c"),
	})
	require.NoError(t, err)
	assert.Zero(t, svc.cfg.UpsertOverlap)
}

func TestAsk_EmptyCollection(t *testing.T) {
	f := newRAGFixture(t)

	resp, err := f.svc.Ask(context.Background(), types.AskRequest{
		Question:   "¿Qué dice el informe?",
		FilterText: "audiovisual",
		Debug:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, DEFAULT_NO_CONTEXT_ANSWER, resp.Answer)
	assert.NotNil(t, resp.Sources)
	assert.Empty(t, resp.Sources)
	require.NotNil(t, resp.Debug)
	require.NotNil(t, resp.Debug.FilterTextUsed)
	assert.Equal(t, "audiovisual", *resp.Debug.FilterTextUsed)
	assert.Empty(t, f.generator.prompts)
}

func TestAsk_EmptyQuestion(t *testing.T) {
	f := newRAGFixture(t)

	_, err := f.svc.Ask(context.Background(), types.AskRequest{Question: "  \n"})
	assert.ErrorIs(t, err, types.ErrEmptyInput)
	assert.True(t, IsClientError(err))
	assert.Zero(t, f.embedder.calls)
}

func TestAsk_WithContext(t *testing.T) {
	f := newRAGFixture(t)
	f.upsert(t, "informe.pdf", "El sector audiovisual creció un 5%.", "La producción de cine se mantuvo.")

	resp, err := f.svc.Ask(context.Background(), types.AskRequest{
		Question: "¿Cuánto creció el sector?",
		TopK:     2,
		Debug:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, "respuesta", resp.Answer)
	assert.Equal(t, []string{"informe.pdf", "informe.pdf"}, resp.Sources)
	require.NotNil(t, resp.Debug)
	assert.Nil(t, resp.Debug.FilterTextUsed)
	assert.Len(t, resp.Debug.Hits, 2)

	require.Len(t, f.generator.prompts, 1)
	prompt := f.generator.prompts[0]
	assert.Contains(t, prompt, "¿Cuánto creció el sector?")
	assert.Contains(t, prompt, "El sector audiovisual creció un 5%.")
	assert.Contains(t, prompt, "La producción de cine se mantuvo.")
	assert.Contains(t, prompt, CONTEXT_DELIMITER)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.operations.WithLabelValues("ask", "ok")))
}

func TestAsk_FilterNarrowsCandidates(t *testing.T) {
	f := newRAGFixture(t)
	f.upsert(t, "a.pdf", "El sector audiovisual creció.")
	f.upsert(t, "b.pdf", "La música en directo bajó.")

	resp, err := f.svc.Ask(context.Background(), types.AskRequest{Question: "¿Qué pasó?", FilterText: "música"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b.pdf"}, resp.Sources)
}

func TestAsk_NoGenerator(t *testing.T) {
	f := newRAGFixture(t)
	f.upsert(t, "s", "texto")
	f.svc.generator = nil

	_, err := f.svc.Ask(context.Background(), types.AskRequest{Question: "¿algo?"})
	assert.ErrorIs(t, err, types.ErrInvalidConfig)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.operations.WithLabelValues("ask", "error")))
}

func TestAsk_GeneratorFailure(t *testing.T) {
	f := newRAGFixture(t)
	f.upsert(t, "s", "texto")
	f.generator.err = types.Upstream("generate", errBoom)

	_, err := f.svc.Ask(context.Background(), types.AskRequest{Question: "¿algo?"})
	assert.ErrorIs(t, err, types.ErrUpstreamUnavailable)
	assert.False(t, IsClientError(err))
}

func TestUpsert(t *testing.T) {
	f := newRAGFixture(t)
	ctx := context.Background()

	_, err := f.svc.Upsert(ctx, types.UpsertRequest{Texts: []string{"x"}})
	assert.ErrorIs(t, err, types.ErrEmptyInput)

	req := types.UpsertRequest{
		Texts:            []string{"uno", "dos"},
		Source:           "manual",
		DeterministicIDs: boolPtr(true),
	}
	resp, err := f.svc.Upsert(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, types.STATUS_OK, resp.Status)
	assert.Equal(t, 2, resp.UpsertedCount)
	assert.Equal(t, "test", resp.Collection)
	assert.Equal(t, "manual", resp.Source)

	_, err = f.svc.Upsert(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 2, countPoints(t, f.index))
	assert.Equal(t, 4.0, testutil.ToFloat64(f.metrics.upserted))
}

func TestUpsert_LongTextWindows(t *testing.T) {
	f := newRAGFixture(t)
	overlap := 2

	resp, err := f.svc.Upsert(context.Background(), types.UpsertRequest{
		Text:     strings.Repeat("a", 25),
		Source:   "s",
		MaxChars: 10,
		Overlap:  &overlap,
	})
	require.NoError(t, err)
	// windows start at 0, 8, 16
	assert.Equal(t, 3, resp.UpsertedCount)

	// Without an explicit overlap the configured one shrinks to the window
	resp, err = f.svc.Upsert(context.Background(), types.UpsertRequest{
		Text:     strings.Repeat("a", 25),
		Source:   "s",
		MaxChars: 10,
	})
	require.NoError(t, err)
	// overlap 9, windows start at 0..15
	assert.Equal(t, 16, resp.UpsertedCount)

	bad := 10
	_, err = f.svc.Upsert(context.Background(), types.UpsertRequest{Text: "abc", Source: "s", MaxChars: 10, Overlap: &bad})
	assert.ErrorIs(t, err, types.ErrInvalidConfig)
}

func TestDeleteBySource(t *testing.T) {
	f := newRAGFixture(t)
	ctx := context.Background()
	f.upsert(t, "x", "x1", "x2", "x3")
	f.upsert(t, "y", "y1", "y2")

	_, err := f.svc.DeleteBySource(ctx, " ")
	assert.ErrorIs(t, err, types.ErrEmptyInput)

	resp, err := f.svc.DeleteBySource(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, types.STATUS_OK, resp.Status)
	assert.Equal(t, 3, resp.DeletedEstimate)
	assert.Equal(t, "x", resp.Source)
	assert.Equal(t, 2, countPoints(t, f.index))

	resp, err = f.svc.DeleteBySource(ctx, "missing")
	require.NoError(t, err)
	assert.Zero(t, resp.DeletedEstimate)
}

func TestStats(t *testing.T) {
	f := newRAGFixture(t)
	f.upsert(t, "a.pdf", "uno", "dos")
	f.upsert(t, "b.pdf", "tres")
	require.NoError(t, f.index.Upsert(context.Background(), []types.Point{{
		ID:      "orphan",
		Vector:  hashVector("orphan", testDim),
		Payload: types.Payload{Text: "sin fuente"},
	}}))

	stats, err := f.svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test", stats.Collection)
	assert.Equal(t, 4, stats.TotalPoints)
	assert.Equal(t, map[string]int{"a.pdf": 2, "b.pdf": 1, UNKNOWN_SOURCE: 1}, stats.Sources)
}

func TestHealth(t *testing.T) {
	f := newRAGFixture(t)

	h := f.svc.Health(context.Background())
	assert.Equal(t, types.STATUS_OK, h.Status)
	assert.True(t, h.GenerationKey)
	assert.True(t, h.VectorIndex)
	assert.True(t, h.Embedding)
	assert.Equal(t, "test-model", h.Model)

	require.NoError(t, f.index.DeleteCollection(context.Background()))
	h = f.svc.Health(context.Background())
	assert.Equal(t, types.STATUS_DEGRADED, h.Status)
	assert.False(t, h.VectorIndex)
}

func TestHealth_DegradedWithoutKeyOrEmbedder(t *testing.T) {
	svc, err := NewRAGService(RAGServiceConfig{}, RAGDependencies{
		Embedder: NewEmbeddingHandle(func() (Embedder, error) { return nil, errBoom }),
		Index:    newMemoryIndex(t),
	})
	require.NoError(t, err)

	h := svc.Health(context.Background())
	assert.Equal(t, types.STATUS_DEGRADED, h.Status)
	assert.False(t, h.GenerationKey)
	assert.True(t, h.VectorIndex)
	assert.False(t, h.Embedding)
}

func TestHealth_EmbeddingEndpointDown(t *testing.T) {
	f := newRAGFixture(t)
	f.embedder.err = types.Upstream("embed", errors.New("connection refused"))

	h := f.svc.Health(context.Background())
	assert.Equal(t, types.STATUS_DEGRADED, h.Status)
	assert.False(t, h.Embedding)
	assert.True(t, h.VectorIndex)
	assert.True(t, h.GenerationKey)
	require.NotEmpty(t, f.embedder.modes)
	assert.Equal(t, EmbedQuery, f.embedder.modes[len(f.embedder.modes)-1])
}

func TestModels(t *testing.T) {
	f := newRAGFixture(t)
	resp, err := f.svc.Models(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, resp.Models)

	f.svc.models = &fakeModelLister{}
	resp, err = f.svc.Models(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, resp.Models)

	f.svc.models = nil
	_, err = f.svc.Models(context.Background())
	assert.ErrorIs(t, err, types.ErrInvalidConfig)
}

func TestFulfillment(t *testing.T) {
	f := newRAGFixture(t)
	ctx := context.Background()

	resp, err := f.svc.Fulfillment(ctx, types.FulfillmentRequest{})
	require.NoError(t, err)
	assert.Equal(t, EMPTY_FULFILLMENT_ANSWER, resp.FulfillmentText)

	resp, err = f.svc.Fulfillment(ctx, types.FulfillmentRequest{Text: "¿Hay datos?"})
	require.NoError(t, err)
	assert.Equal(t, DEFAULT_NO_CONTEXT_ANSWER, resp.FulfillmentText)

	f.upsert(t, "s", "dato")
	var req types.FulfillmentRequest
	req.QueryResult.QueryText = "¿Hay datos?"
	resp, err = f.svc.Fulfillment(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "respuesta", resp.FulfillmentText)
}

func TestIngestText_AttributesPages(t *testing.T) {
	f := newRAGFixture(t)
	page1 := "Resumen ejecutivo del informe anual sobre el sector audiovisual español, con datos de producción, distribución y consumo."
	page2 := "La producción cinematográfica aumentó notablemente durante el último ejercicio."
	doc := &types.Document{
		Source: "informe.pdf",
		Text:   page1 + "\n\n" + page2,
		Pages:  []types.Page{{Number: 1, Text: page1}, {Number: 2, Text: page2}},
	}

	resp, err := f.svc.IngestText(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, "informe.pdf", resp.Source)
	assert.Equal(t, 2, resp.Pages)
	assert.Equal(t, resp.Chunks, resp.Upserted)
	assert.Positive(t, resp.Chunks)

	pages := map[int]bool{}
	for _, r := range allRecords(t, f.index) {
		assert.Equal(t, "informe.pdf", r.Payload.Source)
		assert.Equal(t, r.ID, r.Payload.Hash)
		require.NotNil(t, r.Payload.Page)
		pages[*r.Payload.Page] = true
	}
	assert.True(t, pages[1])

	// Re-ingesting overwrites
	_, err = f.svc.IngestText(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, resp.Upserted, countPoints(t, f.index))

	_, err = f.svc.IngestText(context.Background(), &types.Document{Source: "vacio.pdf", Text: " "})
	assert.ErrorIs(t, err, types.ErrEmptyInput)
}

func TestIngestDocument_WithoutExtractor(t *testing.T) {
	f := newRAGFixture(t)
	_, err := f.svc.IngestDocument(context.Background(), "x.pdf", "")
	assert.ErrorIs(t, err, types.ErrInvalidConfig)
}

func TestCollectionLifecycle(t *testing.T) {
	index := database.NewMemoryStore("lifecycle")
	svc, err := NewRAGService(RAGServiceConfig{}, RAGDependencies{
		Embedder: StaticEmbeddingHandle(newFakeEmbedder()),
		Index:    index,
	})
	require.NoError(t, err)
	ctx := context.Background()

	created, err := svc.EnsureCollection(ctx)
	require.NoError(t, err)
	assert.True(t, created)
	created, err = svc.EnsureCollection(ctx)
	require.NoError(t, err)
	assert.False(t, created)

	_, err = svc.Upsert(ctx, types.UpsertRequest{Texts: []string{"uno"}, Source: "s"})
	require.NoError(t, err)
	require.NoError(t, svc.ResetCollection(ctx))
	assert.Zero(t, countPoints(t, index))
}

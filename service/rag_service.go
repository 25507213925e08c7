package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tieubaoca/rag-assistant/database"
	"github.com/tieubaoca/rag-assistant/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DEFAULT_NO_CONTEXT_ANSWER = "No se encontró contexto relevante en la base vectorial."
	EMPTY_FULFILLMENT_ANSWER  = "No he recibido texto. ¿Puedes repetir la pregunta?"
	FULFILLMENT_TOP_K         = 5
	UNKNOWN_SOURCE            = "unknown"
	// Embedded by Health to check the embedding endpoint answers.
	HEALTH_PROBE_TEXT = "ping"
)

type RAGServiceConfig struct {
	Persona         string
	NoContextAnswer string
	DefaultTopK     int
	UpsertMaxChars  int
	UpsertOverlap   int
	UpsertBatch     int
	// Model is the generation model name reported by Health.
	Model string
	// GenerationKey is true when the generation provider has credentials.
	GenerationKey bool
}

// RAGDependencies are the collaborators of a RAGService. Generator, Models
// and PDF may be nil; the operations needing them then fail with
// ErrInvalidConfig.
type RAGDependencies struct {
	Embedder  *EmbeddingHandle
	Index     database.VectorIndex
	Generator Generator
	Models    ModelLister
	Segmenter *Segmenter
	PDF       *PDFService
	Metrics   *Metrics
	Logger    *zap.Logger
}

// RAGService exposes the question answering and index maintenance operations.
type RAGService struct {
	cfg       RAGServiceConfig
	embedder  *EmbeddingHandle
	index     database.VectorIndex
	retriever *Retriever
	ingestor  *Ingestor
	generator Generator
	models    ModelLister
	segmenter *Segmenter
	pdf       *PDFService
	metrics   *Metrics
	logger    *zap.Logger
}

func NewRAGService(cfg RAGServiceConfig, deps RAGDependencies) (*RAGService, error) {
	if deps.Embedder == nil || deps.Index == nil {
		return nil, fmt.Errorf("%w: embedder and vector index are required", types.ErrInvalidConfig)
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	segmenter := deps.Segmenter
	if segmenter == nil {
		var err error
		if segmenter, err = NewSegmenter(types.DocumentServiceConfig{}); err != nil {
			return nil, err
		}
	}
	if cfg.NoContextAnswer == "" {
		cfg.NoContextAnswer = DEFAULT_NO_CONTEXT_ANSWER
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = DEFAULT_TOP_K
	}
	if cfg.UpsertMaxChars <= 0 && cfg.UpsertOverlap == 0 {
		cfg.UpsertOverlap = DEFAULT_UPSERT_OVERLAP
	}
	if cfg.UpsertMaxChars <= 0 {
		cfg.UpsertMaxChars = DEFAULT_UPSERT_MAX_CHARS
	}
	if cfg.UpsertOverlap < 0 || cfg.UpsertOverlap >= cfg.UpsertMaxChars {
		return nil, fmt.Errorf("%w: upsert overlap %d must be in [0, %d)", types.ErrInvalidConfig, cfg.UpsertOverlap, cfg.UpsertMaxChars)
	}

	return &RAGService{
		cfg:       cfg,
		embedder:  deps.Embedder,
		index:     deps.Index,
		retriever: NewRetriever(deps.Embedder, deps.Index, logger.Named("retriever")),
		ingestor:  NewIngestor(deps.Embedder, deps.Index, cfg.UpsertBatch, logger.Named("ingestor")),
		generator: deps.Generator,
		models:    deps.Models,
		segmenter: segmenter,
		pdf:       deps.PDF,
		metrics:   deps.Metrics,
		logger:    logger,
	}, nil
}

func (s *RAGService) Collection() string {
	return s.index.Collection()
}

// Ask answers question from the retrieved context. With no candidates the
// fixed no-context answer is returned and the generator is not called.
func (s *RAGService) Ask(ctx context.Context, req types.AskRequest) (resp *types.AskResponse, err error) {
	start := time.Now()
	defer func() { s.metrics.observe("ask", start, err) }()

	if strings.TrimSpace(req.Question) == "" {
		return nil, fmt.Errorf("%w: question is required", types.ErrEmptyInput)
	}
	topK := req.TopK
	if topK <= 0 {
		topK = s.cfg.DefaultTopK
	}

	result, err := s.retriever.Retrieve(ctx, req.Question, topK, req.FilterText)
	if err != nil {
		return nil, err
	}
	s.metrics.observeHits(len(result.Hits))

	resp = &types.AskResponse{Question: req.Question, Sources: []string{}}
	if req.Debug {
		resp.Debug = &types.AskDebug{}
		if req.FilterText != "" {
			filter := req.FilterText
			resp.Debug.FilterTextUsed = &filter
		}
	}
	if len(result.Hits) == 0 {
		resp.Answer = s.cfg.NoContextAnswer
		return resp, nil
	}

	if s.generator == nil {
		return nil, fmt.Errorf("%w: no generation provider configured", types.ErrInvalidConfig)
	}
	contextText, sources := result.Context()
	answer, err := s.generator.Generate(ctx, BuildPrompt(s.cfg.Persona, req.Question, contextText))
	if err != nil {
		return nil, err
	}
	resp.Answer = answer
	resp.Sources = sources
	if req.Debug {
		resp.Debug.Hits = make([]types.DebugHit, 0, len(result.Hits))
		for _, h := range result.Hits {
			resp.Debug.Hits = append(resp.Debug.Hits, types.DebugHit{IndexScore: h.Score, ChunkID: h.Payload.ChunkID})
		}
	}

	s.logger.Info("answered",
		zap.String("op", "ask"),
		zap.Int("top_k", topK),
		zap.Int("hits", len(result.Hits)),
	)
	return resp, nil
}

// Upsert writes externally supplied texts. Random point ids are used unless
// deterministic ids are requested.
func (s *RAGService) Upsert(ctx context.Context, req types.UpsertRequest) (resp *types.UpsertResponse, err error) {
	start := time.Now()
	defer func() { s.metrics.observe("upsert", start, err) }()

	if strings.TrimSpace(req.Source) == "" {
		return nil, fmt.Errorf("%w: source is required", types.ErrEmptyInput)
	}
	ingest := types.IngestRequest{
		Texts:    req.Texts,
		Text:     req.Text,
		Source:   req.Source,
		MaxChars: req.MaxChars,
	}
	if ingest.MaxChars <= 0 {
		ingest.MaxChars = s.cfg.UpsertMaxChars
	}
	// Only an explicit overlap can be rejected; the default shrinks to fit the window.
	if req.Overlap != nil {
		ingest.Overlap = *req.Overlap
	} else {
		ingest.Overlap = min(s.cfg.UpsertOverlap, ingest.MaxChars-1)
	}
	if req.DeterministicIDs != nil && *req.DeterministicIDs {
		ingest.IDStrategy = types.IDDeterministic
	}

	n, err := s.ingestor.Ingest(ctx, ingest)
	if err != nil {
		return nil, err
	}
	s.metrics.addUpserted(n)
	return &types.UpsertResponse{
		Status:        types.STATUS_OK,
		UpsertedCount: n,
		Collection:    s.index.Collection(),
		Source:        req.Source,
	}, nil
}

// DeleteBySource removes every point whose source matches. The estimate
// counts at most one scroll page.
func (s *RAGService) DeleteBySource(ctx context.Context, source string) (resp *types.DeleteBySourceResponse, err error) {
	start := time.Now()
	defer func() { s.metrics.observe("delete_by_source", start, err) }()

	if strings.TrimSpace(source) == "" {
		return nil, fmt.Errorf("%w: source is required", types.ErrEmptyInput)
	}
	filter := &types.TextFilter{Field: database.FIELD_SOURCE, Text: source}
	page, err := s.index.Scroll(ctx, database.ScrollRequest{Filter: filter, Limit: database.SCROLL_PAGE})
	if err != nil {
		return nil, err
	}
	if err := s.index.Delete(ctx, filter); err != nil {
		return nil, err
	}

	s.logger.Info("deleted by source",
		zap.String("op", "delete_by_source"),
		zap.String("source", source),
		zap.Int("deleted_estimate", len(page.Records)),
	)
	return &types.DeleteBySourceResponse{
		Status:          types.STATUS_OK,
		DeletedEstimate: len(page.Records),
		Source:          source,
	}, nil
}

// Stats counts all points and breaks them down by source.
func (s *RAGService) Stats(ctx context.Context) (resp *types.StatsResponse, err error) {
	start := time.Now()
	defer func() { s.metrics.observe("stats", start, err) }()

	total, err := s.index.Count(ctx, nil, true)
	if err != nil {
		return nil, err
	}

	bySource := make(map[string]int)
	cursor := ""
	for {
		page, err := s.index.Scroll(ctx, database.ScrollRequest{Limit: database.SCROLL_PAGE, Cursor: cursor})
		if err != nil {
			return nil, err
		}
		for _, r := range page.Records {
			src := r.Payload.Source
			if src == "" {
				src = UNKNOWN_SOURCE
			}
			bySource[src]++
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	return &types.StatsResponse{
		Collection:  s.index.Collection(),
		TotalPoints: total,
		Sources:     bySource,
	}, nil
}

// Health probes the index and the embedding endpoint concurrently. The
// embedding check embeds a one-word query, so a reachable but broken
// endpoint reports degraded.
func (s *RAGService) Health(ctx context.Context) *types.HealthResponse {
	resp := &types.HealthResponse{
		GenerationKey: s.cfg.GenerationKey,
		Model:         s.cfg.Model,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		exists, err := s.index.CollectionExists(gctx)
		resp.VectorIndex = err == nil && exists
		if err != nil {
			s.logger.Warn("vector index unhealthy", zap.Error(err))
		}
		return nil
	})
	g.Go(func() error {
		_, err := s.embedder.Embed(gctx, []string{HEALTH_PROBE_TEXT}, EmbedQuery)
		resp.Embedding = err == nil
		if err != nil {
			s.logger.Warn("embedding model unhealthy", zap.Error(err))
		}
		return nil
	})
	_ = g.Wait()

	resp.Status = types.STATUS_DEGRADED
	if resp.GenerationKey && resp.VectorIndex && resp.Embedding {
		resp.Status = types.STATUS_OK
	}
	return resp
}

func (s *RAGService) Models(ctx context.Context) (*types.ModelsResponse, error) {
	if s.models == nil {
		return nil, fmt.Errorf("%w: no generation provider configured", types.ErrInvalidConfig)
	}
	models, err := s.models.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	if models == nil {
		models = []string{}
	}
	return &types.ModelsResponse{Models: models}, nil
}

// Fulfillment answers a conversational webhook call.
func (s *RAGService) Fulfillment(ctx context.Context, req types.FulfillmentRequest) (*types.FulfillmentResponse, error) {
	text := strings.TrimSpace(req.QueryResult.QueryText)
	if text == "" {
		text = strings.TrimSpace(req.Text)
	}
	if text == "" {
		return &types.FulfillmentResponse{FulfillmentText: EMPTY_FULFILLMENT_ANSWER}, nil
	}
	resp, err := s.Ask(ctx, types.AskRequest{Question: text, TopK: FULFILLMENT_TOP_K})
	if err != nil {
		return nil, err
	}
	return &types.FulfillmentResponse{FulfillmentText: resp.Answer}, nil
}

// IngestDocument extracts, segments and page-attributes a PDF, then upserts
// its chunks with deterministic ids so re-ingestion overwrites.
func (s *RAGService) IngestDocument(ctx context.Context, filePath, source string) (resp *types.UploadResponse, err error) {
	start := time.Now()
	defer func() { s.metrics.observe("ingest_document", start, err) }()

	if s.pdf == nil {
		return nil, fmt.Errorf("%w: pdf extraction is not configured", types.ErrInvalidConfig)
	}
	doc, err := s.pdf.ExtractDocument(ctx, filePath, source)
	if err != nil {
		return nil, err
	}
	return s.IngestText(ctx, doc)
}

// IngestText segments an extracted document and upserts its chunks.
func (s *RAGService) IngestText(ctx context.Context, doc *types.Document) (*types.UploadResponse, error) {
	chunks := s.segmenter.Segment(doc.Text)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: document %s has no text", types.ErrEmptyInput, doc.Source)
	}
	for i := range chunks {
		chunks[i].Source = doc.Source
	}
	NewPageIndex(doc.Pages).AttributePages(chunks)

	n, err := s.ingestor.IngestChunks(ctx, chunks, types.IDDeterministic)
	if err != nil {
		return nil, err
	}
	s.metrics.addUpserted(n)
	return &types.UploadResponse{
		Source:   doc.Source,
		Pages:    len(doc.Pages),
		Chunks:   len(chunks),
		Upserted: n,
	}, nil
}

// EnsureCollection creates the collection sized to the embedding model when missing.
func (s *RAGService) EnsureCollection(ctx context.Context) (bool, error) {
	dim, err := s.embedder.Dimension(ctx)
	if err != nil {
		return false, err
	}
	return database.EnsureCollection(ctx, s.index, dim)
}

// ResetCollection drops and recreates the collection.
func (s *RAGService) ResetCollection(ctx context.Context) error {
	dim, err := s.embedder.Dimension(ctx)
	if err != nil {
		return err
	}
	return database.RecreateCollection(ctx, s.index, dim)
}

// IsClientError reports whether err is caused by the request rather than a dependency.
func IsClientError(err error) bool {
	return errors.Is(err, types.ErrEmptyInput) || errors.Is(err, types.ErrInvalidConfig)
}

package service

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/tieubaoca/rag-assistant/database"
	"github.com/tieubaoca/rag-assistant/types"
	"github.com/tieubaoca/rag-assistant/utils"
	"go.uber.org/zap"
)

const (
	DEFAULT_TOP_K     = 5
	MAX_CANDIDATES    = 50
	OVERSAMPLE_FACTOR = 3
	CONTEXT_DELIMITER = "\n\n---\n\n"
)

// RankedCandidate is a candidate with its locally computed similarity.
type RankedCandidate struct {
	types.Candidate
	Similarity float64
}

type RetrievalResult struct {
	Hits []RankedCandidate
	// FilterApplied is true when the filter text survived normalization.
	FilterApplied bool
}

// Context joins the hit texts with the context delimiter and lists their
// sources in the same order.
func (r *RetrievalResult) Context() (string, []string) {
	snippets := make([]string, 0, len(r.Hits))
	sources := make([]string, 0, len(r.Hits))
	for _, h := range r.Hits {
		snippets = append(snippets, h.Payload.Text)
		sources = append(sources, h.Payload.Source)
	}
	return strings.Join(snippets, CONTEXT_DELIMITER), sources
}

// Retriever over-samples nearest neighbours from the index and re-ranks
// them by exact cosine similarity to the query.
type Retriever struct {
	embedder Embedder
	index    database.VectorIndex
	logger   *zap.Logger
}

func NewRetriever(embedder Embedder, index database.VectorIndex, logger *zap.Logger) *Retriever {
	return &Retriever{
		embedder: embedder,
		index:    index,
		logger:   logger,
	}
}

// OversampleK is the number of candidates requested for topK final hits.
func OversampleK(topK int) int {
	return min(max(topK*OVERSAMPLE_FACTOR, topK), MAX_CANDIDATES)
}

func (r *Retriever) Retrieve(ctx context.Context, question string, topK int, filterText string) (*RetrievalResult, error) {
	if topK <= 0 {
		topK = DEFAULT_TOP_K
	}
	vectors, err := r.embedder.Embed(ctx, []string{question}, EmbedQuery)
	if err != nil {
		return nil, err
	}
	query := vectors[0]

	result := &RetrievalResult{}
	req := database.QueryRequest{
		Vector:      query,
		Limit:       OversampleK(topK),
		WithVectors: true,
	}
	if utils.Normalize(filterText) != "" {
		req.Filter = &types.TextFilter{Field: database.FIELD_TEXT, Text: filterText}
		result.FilterApplied = true
	}

	candidates, err := r.index.Query(ctx, req)
	if err != nil {
		return nil, err
	}
	ranked := Rerank(query, candidates)
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	result.Hits = ranked

	r.logger.Debug("retrieved",
		zap.Int("top_k", topK),
		zap.Int("requested", req.Limit),
		zap.Int("candidates", len(candidates)),
		zap.Bool("filtered", result.FilterApplied),
	)
	return result, nil
}

// Rerank orders candidates by cosine similarity to query, highest first.
// Equal similarities keep the index order.
func Rerank(query []float32, candidates []types.Candidate) []RankedCandidate {
	ranked := make([]RankedCandidate, 0, len(candidates))
	for _, c := range candidates {
		sim := 0.0
		if v, ok := c.Vector.Resolve(); ok {
			sim = CosineSimilarity(query, v)
		}
		ranked = append(ranked, RankedCandidate{Candidate: c, Similarity: sim})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Similarity > ranked[j].Similarity
	})
	return ranked
}

// CosineSimilarity is 0 when either vector has zero norm or the lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return math.Max(-1, math.Min(1, sim))
}

package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"github.com/sashabaranov/go-openai"
	"github.com/tieubaoca/rag-assistant/types"
)

// EmbedMode selects the asymmetric encoding used for queries and stored passages.
type EmbedMode int

const (
	EmbedPassage EmbedMode = iota
	EmbedQuery
)

func (m EmbedMode) String() string {
	if m == EmbedQuery {
		return "query"
	}
	return "passage"
}

const (
	PREFIX_AUTO   = "auto"
	PREFIX_ALWAYS = "always"
	PREFIX_NEVER  = "never"

	dimensionProbe = "dimension probe"
)

// Embedder turns texts into unit-length vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string, mode EmbedMode) ([][]float32, error)
	Dimension(ctx context.Context) (int, error)
}

// UsesPrefixes reports whether model expects "query: " / "passage: "
// prefixes, as E5 and GTE models do.
func UsesPrefixes(model, prefixMode string) bool {
	switch prefixMode {
	case PREFIX_ALWAYS:
		return true
	case PREFIX_NEVER:
		return false
	}
	m := strings.ToLower(model)
	return strings.Contains(m, "e5") || strings.Contains(m, "gte")
}

func applyPrefix(texts []string, mode EmbedMode) []string {
	prefix := mode.String() + ": "
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = prefix + t
	}
	return out
}

// NormalizeL2 scales v to unit length in place. Zero vectors are left as is.
func NormalizeL2(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

// dimensionCache remembers a configured or probed dimension.
type dimensionCache struct {
	mu  sync.Mutex
	dim int
}

func (c *dimensionCache) get(ctx context.Context, probe func(ctx context.Context) ([]float32, error)) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dim > 0 {
		return c.dim, nil
	}
	v, err := probe(ctx)
	if err != nil {
		return 0, err
	}
	c.dim = len(v)
	return c.dim, nil
}

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint, such as a
// text-embeddings-inference server hosting a multilingual E5 model.
type OpenAIEmbedder struct {
	client    *openai.Client
	model     string
	prefixed  bool
	batchSize int
	dims      dimensionCache
}

func NewOpenAIEmbedder(baseURL, apiKey, model, prefixMode string, dimension, batchSize int) *OpenAIEmbedder {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if batchSize <= 0 {
		batchSize = 64
	}
	return &OpenAIEmbedder{
		client:    openai.NewClientWithConfig(config),
		model:     model,
		prefixed:  UsesPrefixes(model, prefixMode),
		batchSize: batchSize,
		dims:      dimensionCache{dim: dimension},
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string, mode EmbedMode) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	inputs := texts
	if e.prefixed {
		inputs = applyPrefix(texts, mode)
	}

	vectors := make([][]float32, 0, len(inputs))
	for start := 0; start < len(inputs); start += e.batchSize {
		end := min(len(inputs), start+e.batchSize)
		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
			Input: inputs[start:end],
			Model: openai.EmbeddingModel(e.model),
		})
		if err != nil {
			return nil, types.Upstream("embed", err)
		}
		if len(resp.Data) != end-start {
			return nil, types.Upstream("embed", fmt.Errorf("got %d embeddings for %d inputs", len(resp.Data), end-start))
		}
		sort.Slice(resp.Data, func(i, j int) bool {
			return resp.Data[i].Index < resp.Data[j].Index
		})
		for _, d := range resp.Data {
			vectors = append(vectors, NormalizeL2(d.Embedding))
		}
	}
	return vectors, nil
}

func (e *OpenAIEmbedder) Dimension(ctx context.Context) (int, error) {
	return e.dims.get(ctx, func(ctx context.Context) ([]float32, error) {
		vs, err := e.Embed(ctx, []string{dimensionProbe}, EmbedPassage)
		if err != nil {
			return nil, err
		}
		return vs[0], nil
	})
}

// geminiBatchLimit is the maximum number of requests per batchEmbedContents call.
const geminiBatchLimit = 100

// GeminiEmbedder uses Gemini embedding models with retrieval task types.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
	dims   dimensionCache
}

func NewGeminiEmbedder(client *genai.Client, model string, dimension int) *GeminiEmbedder {
	return &GeminiEmbedder{
		client: client,
		model:  model,
		dims:   dimensionCache{dim: dimension},
	}
}

func (e *GeminiEmbedder) Embed(ctx context.Context, texts []string, mode EmbedMode) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	em := e.client.EmbeddingModel(e.model)
	if mode == EmbedQuery {
		em.TaskType = genai.TaskTypeRetrievalQuery
	} else {
		em.TaskType = genai.TaskTypeRetrievalDocument
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += geminiBatchLimit {
		end := min(len(texts), start+geminiBatchLimit)
		batch := em.NewBatch()
		for _, t := range texts[start:end] {
			batch.AddContent(genai.Text(t))
		}
		resp, err := em.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, types.Upstream("embed", err)
		}
		if len(resp.Embeddings) != end-start {
			return nil, types.Upstream("embed", fmt.Errorf("got %d embeddings for %d inputs", len(resp.Embeddings), end-start))
		}
		for _, emb := range resp.Embeddings {
			if emb == nil {
				return nil, types.Upstream("embed", errors.New("empty embedding in response"))
			}
			vectors = append(vectors, NormalizeL2(emb.Values))
		}
	}
	return vectors, nil
}

func (e *GeminiEmbedder) Dimension(ctx context.Context) (int, error) {
	return e.dims.get(ctx, func(ctx context.Context) ([]float32, error) {
		vs, err := e.Embed(ctx, []string{dimensionProbe}, EmbedPassage)
		if err != nil {
			return nil, err
		}
		return vs[0], nil
	})
}

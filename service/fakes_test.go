package service

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"

	"github.com/tieubaoca/rag-assistant/database"
	"github.com/tieubaoca/rag-assistant/types"
)

const testDim = 8

// fakeEmbedder returns fixed vectors for known texts and a hash-derived
// vector for everything else.
type fakeEmbedder struct {
	mu      sync.Mutex
	dim     int
	vectors map[string][]float32
	calls   int
	modes   []EmbedMode
	err     error
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{dim: testDim, vectors: make(map[string][]float32)}
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string, mode EmbedMode) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.modes = append(f.modes, mode)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := f.vectors[t]; ok {
			out[i] = append([]float32(nil), v...)
			continue
		}
		out[i] = hashVector(t, f.dim)
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension(ctx context.Context) (int, error) {
	return f.dim, nil
}

func hashVector(text string, dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		h := fnv.New32a()
		h.Write([]byte{byte(i)})
		h.Write([]byte(text))
		v[i] = float32(h.Sum32()%1000) + 1
	}
	return NormalizeL2(v)
}

type fakeGenerator struct {
	answer  string
	err     error
	prompts []string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

type fakeModelLister struct {
	models []string
}

func (f *fakeModelLister) ListModels(ctx context.Context) ([]string, error) {
	return f.models, nil
}

// stubIndex answers queries with fixed candidates and records the request.
type stubIndex struct {
	*database.MemoryStore
	candidates []types.Candidate
	queryErr   error
	lastQuery  database.QueryRequest
}

func newStubIndex(candidates ...types.Candidate) *stubIndex {
	return &stubIndex{MemoryStore: database.NewMemoryStore("stub"), candidates: candidates}
}

func (s *stubIndex) Query(ctx context.Context, req database.QueryRequest) ([]types.Candidate, error) {
	s.lastQuery = req
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return s.candidates, nil
}

var errBoom = errors.New("boom")

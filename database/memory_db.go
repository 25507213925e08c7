package database

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/tieubaoca/rag-assistant/types"
)

var ErrCollectionNotFound = errors.New("collection not found")

type memoryEntry struct {
	point types.Point
	seq   int
}

// MemoryStore is an in-process VectorIndex with brute-force search. It backs
// tests and local runs without a vector server.
type MemoryStore struct {
	mu         sync.RWMutex
	collection string
	dimension  int
	exists     bool
	entries    map[string]*memoryEntry
	textFields map[string]bool
	nextSeq    int
}

func NewMemoryStore(collection string) *MemoryStore {
	return &MemoryStore{
		collection: collection,
		entries:    make(map[string]*memoryEntry),
		textFields: make(map[string]bool),
	}
}

func (s *MemoryStore) Collection() string {
	return s.collection
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryStore) CollectionExists(ctx context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exists, nil
}

func (s *MemoryStore) CreateCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension %d", types.ErrInvalidConfig, dimension)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exists {
		return fmt.Errorf("collection %s already exists", s.collection)
	}
	s.exists = true
	s.dimension = dimension
	return nil
}

func (s *MemoryStore) DeleteCollection(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exists = false
	s.dimension = 0
	s.entries = make(map[string]*memoryEntry)
	s.textFields = make(map[string]bool)
	return nil
}

func (s *MemoryStore) CreateTextIndex(ctx context.Context, field string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.exists {
		return s.notFound()
	}
	s.textFields[field] = true
	return nil
}

func (s *MemoryStore) Upsert(ctx context.Context, points []types.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.exists {
		return s.notFound()
	}
	for _, p := range points {
		if len(p.Vector) != s.dimension {
			return fmt.Errorf("point %s: vector dimension %d, expected %d", p.ID, len(p.Vector), s.dimension)
		}
	}
	for _, p := range points {
		if existing, ok := s.entries[p.ID]; ok {
			existing.point = p
			continue
		}
		s.entries[p.ID] = &memoryEntry{point: p, seq: s.nextSeq}
		s.nextSeq++
	}
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, req QueryRequest) ([]types.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.exists {
		return nil, s.notFound()
	}

	type scored struct {
		entry *memoryEntry
		score float32
	}
	var hits []scored
	for _, e := range s.ordered() {
		if !s.matches(e.point.Payload, req.Filter) {
			continue
		}
		hits = append(hits, scored{entry: e, score: cosine(req.Vector, e.point.Vector)})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].score > hits[j].score
	})
	if req.Limit > 0 && len(hits) > req.Limit {
		hits = hits[:req.Limit]
	}

	out := make([]types.Candidate, 0, len(hits))
	for _, h := range hits {
		c := types.Candidate{
			ID:      h.entry.point.ID,
			Score:   h.score,
			Payload: h.entry.point.Payload,
		}
		if req.WithVectors {
			c.Vector = types.SingleVector(append([]float32(nil), h.entry.point.Vector...))
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *MemoryStore) Count(ctx context.Context, filter *types.TextFilter, exact bool) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.exists {
		return 0, s.notFound()
	}
	n := 0
	for _, e := range s.entries {
		if s.matches(e.point.Payload, filter) {
			n++
		}
	}
	return n, nil
}

// Scroll cursors are positions in insertion order.
func (s *MemoryStore) Scroll(ctx context.Context, req ScrollRequest) (*ScrollResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.exists {
		return nil, s.notFound()
	}

	start := 0
	if req.Cursor != "" {
		n, err := strconv.Atoi(req.Cursor)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid scroll cursor %q", req.Cursor)
		}
		start = n
	}
	limit := req.Limit
	if limit <= 0 {
		limit = SCROLL_PAGE
	}

	var matched []*memoryEntry
	for _, e := range s.ordered() {
		if s.matches(e.point.Payload, req.Filter) {
			matched = append(matched, e)
		}
	}
	if start >= len(matched) {
		return &ScrollResult{}, nil
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}

	result := &ScrollResult{Records: make([]types.Record, 0, end-start)}
	for _, e := range matched[start:end] {
		result.Records = append(result.Records, types.Record{ID: e.point.ID, Payload: e.point.Payload})
	}
	if end < len(matched) {
		result.NextCursor = strconv.Itoa(end)
	}
	return result, nil
}

func (s *MemoryStore) Delete(ctx context.Context, filter *types.TextFilter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.exists {
		return s.notFound()
	}
	for id, e := range s.entries {
		if s.matches(e.point.Payload, filter) {
			delete(s.entries, id)
		}
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) notFound() error {
	return fmt.Errorf("%w: %s", ErrCollectionNotFound, s.collection)
}

func (s *MemoryStore) ordered() []*memoryEntry {
	out := make([]*memoryEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].seq < out[j].seq
	})
	return out
}

// matches follows the index's text match: fields with a text index match
// when every query token is present, other fields match by substring.
func (s *MemoryStore) matches(p types.Payload, filter *types.TextFilter) bool {
	if filter == nil {
		return true
	}
	var value string
	switch filter.Field {
	case FIELD_TEXT:
		value = p.Text
	case FIELD_SOURCE:
		value = p.Source
	case "hash":
		value = p.Hash
	default:
		return false
	}
	if !s.textFields[filter.Field] {
		return strings.Contains(value, filter.Text)
	}

	have := make(map[string]bool)
	for _, tok := range tokenize(value) {
		have[tok] = true
	}
	want := tokenize(filter.Text)
	if len(want) == 0 {
		return false
	}
	for _, tok := range want {
		if !have[tok] {
			return false
		}
	}
	return true
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

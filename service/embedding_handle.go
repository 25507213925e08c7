package service

import (
	"context"
	"fmt"
	"sync"
)

// EmbeddingHandle loads an Embedder once and shares it. It is created at
// process start and passed to every component that embeds text.
type EmbeddingHandle struct {
	once     sync.Once
	load     func() (Embedder, error)
	embedder Embedder
	err      error
}

func NewEmbeddingHandle(load func() (Embedder, error)) *EmbeddingHandle {
	return &EmbeddingHandle{load: load}
}

// StaticEmbeddingHandle wraps an already constructed Embedder.
func StaticEmbeddingHandle(e Embedder) *EmbeddingHandle {
	return NewEmbeddingHandle(func() (Embedder, error) { return e, nil })
}

// Load runs the loader on first call and returns its result on every call.
func (h *EmbeddingHandle) Load() (Embedder, error) {
	h.once.Do(func() {
		h.embedder, h.err = h.load()
		if h.err == nil && h.embedder == nil {
			h.err = fmt.Errorf("embedding loader returned no embedder")
		}
	})
	return h.embedder, h.err
}

func (h *EmbeddingHandle) Embed(ctx context.Context, texts []string, mode EmbedMode) ([][]float32, error) {
	e, err := h.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load embedding model: %w", err)
	}
	return e.Embed(ctx, texts, mode)
}

func (h *EmbeddingHandle) Dimension(ctx context.Context) (int, error) {
	e, err := h.Load()
	if err != nil {
		return 0, fmt.Errorf("failed to load embedding model: %w", err)
	}
	return e.Dimension(ctx)
}

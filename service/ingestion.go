package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tieubaoca/rag-assistant/database"
	"github.com/tieubaoca/rag-assistant/types"
	"go.uber.org/zap"
)

// Ingestor embeds chunk texts and writes them to the vector index.
type Ingestor struct {
	embedder  Embedder
	index     database.VectorIndex
	batchSize int
	logger    *zap.Logger
	now       func() time.Time
}

func NewIngestor(embedder Embedder, index database.VectorIndex, batchSize int, logger *zap.Logger) *Ingestor {
	if batchSize <= 0 {
		batchSize = database.BATCH_SIZE
	}
	return &Ingestor{
		embedder:  embedder,
		index:     index,
		batchSize: batchSize,
		logger:    logger,
		now:       time.Now,
	}
}

// PointID returns the identifier of a chunk under the given strategy.
func PointID(text string, strategy types.IDStrategy) string {
	if strategy == types.IDDeterministic {
		return uuid.NewSHA1(uuid.NameSpaceURL, []byte(strings.TrimSpace(text))).String()
	}
	return uuid.New().String()
}

// Ingest chunks the request input, embeds it and upserts one point per
// chunk. Empty input writes nothing and is not an error.
func (i *Ingestor) Ingest(ctx context.Context, req types.IngestRequest) (int, error) {
	var texts []string
	if len(req.Texts) > 0 {
		for _, t := range req.Texts {
			if t = strings.TrimSpace(t); t != "" {
				texts = append(texts, t)
			}
		}
	} else {
		if req.Overlap < 0 || (req.MaxChars > 0 && req.Overlap >= req.MaxChars) {
			return 0, fmt.Errorf("%w: overlap %d must be in [0, %d)", types.ErrInvalidConfig, req.Overlap, req.MaxChars)
		}
		texts = ChunkText(req.Text, req.MaxChars, req.Overlap)
	}
	if len(texts) == 0 {
		return 0, nil
	}

	chunks := make([]types.Chunk, len(texts))
	for n, t := range texts {
		chunks[n] = types.Chunk{ID: n, Text: t, Source: req.Source}
	}
	return i.IngestChunks(ctx, chunks, req.IDStrategy)
}

// IngestChunks embeds chunks in passage mode and upserts them in batches.
// Payload chunk ids count from 1 in chunk order.
func (i *Ingestor) IngestChunks(ctx context.Context, chunks []types.Chunk, strategy types.IDStrategy) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	createdAt := i.now().Unix()
	written := 0
	for start := 0; start < len(chunks); start += i.batchSize {
		end := min(len(chunks), start+i.batchSize)
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for n, c := range batch {
			texts[n] = c.Text
		}
		vectors, err := i.embedder.Embed(ctx, texts, EmbedPassage)
		if err != nil {
			return written, err
		}
		if len(vectors) != len(batch) {
			return written, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(batch))
		}

		points := make([]types.Point, len(batch))
		for n, c := range batch {
			id := PointID(c.Text, strategy)
			payload := types.Payload{
				Text:      c.Text,
				Source:    c.Source,
				Page:      c.Page,
				ChunkID:   start + n + 1,
				CreatedAt: createdAt,
			}
			if strategy == types.IDDeterministic {
				payload.Hash = id
			}
			points[n] = types.Point{ID: id, Vector: vectors[n], Payload: payload}
		}
		if err := i.index.Upsert(ctx, points); err != nil {
			return written, err
		}
		written += len(points)
	}

	i.logger.Info("upserted chunks",
		zap.String("collection", i.index.Collection()),
		zap.String("source", chunks[0].Source),
		zap.Int("upserted", written),
	)
	return written, nil
}

/*
Copyright © 2025 tieubaoca
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/generative-ai-go/genai"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/tieubaoca/rag-assistant/config"
	"github.com/tieubaoca/rag-assistant/database"
	"github.com/tieubaoca/rag-assistant/service"
	"github.com/tieubaoca/rag-assistant/types"
	"github.com/tieubaoca/rag-assistant/utils"
	"go.uber.org/zap"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rag-assistant",
	Short: "Retrieval-augmented question answering over PDF documents",
	Long: `rag-assistant ingests PDF documents into a vector index and answers
questions grounded only in the retrieved passages.

Run "rag-assistant start" to serve the HTTP API, or use the other
commands to manage the collection from the command line.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config/config.yaml", "config file")
}

// app holds everything a command needs once the config is loaded.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	index    database.VectorIndex
	embedder *service.EmbeddingHandle
	rag      *service.RAGService
	registry *prometheus.Registry
	gemini   *genai.Client
}

// newApp loads and validates the config, then wires the pipeline. With
// requireGeneration set a missing generation key is fatal.
func newApp(ctx context.Context, requireGeneration bool) (*app, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if requireGeneration {
		if err := cfg.RequireGenerationKey(); err != nil {
			return nil, err
		}
	}

	logger, err := utils.NewLogger(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidConfig, err)
	}

	a := &app{cfg: cfg, logger: logger}
	if err := a.wire(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	var err error
	usesGemini := a.cfg.Generation.Provider == config.PROVIDER_GEMINI || a.cfg.Embedding.Provider == config.PROVIDER_GEMINI
	if usesGemini && a.cfg.Generation.GeminiAPIKey != "" {
		a.gemini, err = service.NewGeminiClient(ctx, a.cfg.Generation.GeminiAPIKey)
		if err != nil {
			return err
		}
	}

	if a.index, err = buildIndex(a.cfg, a.logger); err != nil {
		return err
	}
	a.embedder = buildEmbedder(a.cfg, a.gemini)
	generator, lister := buildGenerator(a.cfg, a.gemini, a.logger)

	segmenter, err := service.NewSegmenter(types.DocumentServiceConfig{
		MaxChunkSize: a.cfg.Chunking.ChunkSize,
		OverlapSize:  a.cfg.Chunking.Overlap,
	})
	if err != nil {
		return err
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a.rag, err = service.NewRAGService(service.RAGServiceConfig{
		Persona:         a.cfg.Generation.Persona,
		NoContextAnswer: a.cfg.Generation.NoContextAnswer,
		DefaultTopK:     a.cfg.Retrieval.DefaultTopK,
		UpsertMaxChars:  a.cfg.Chunking.UpsertMaxChars,
		UpsertOverlap:   a.cfg.Chunking.UpsertOverlap,
		UpsertBatch:     a.cfg.Chunking.UpsertBatch,
		Model:           a.cfg.Generation.Model,
		GenerationKey:   a.cfg.RequireGenerationKey() == nil,
	}, service.RAGDependencies{
		Embedder:  a.embedder,
		Index:     a.index,
		Generator: generator,
		Models:    lister,
		Segmenter: segmenter,
		PDF:       service.NewPDFService(a.logger.Named("pdf")),
		Metrics:   service.NewMetrics(a.registry),
		Logger:    a.logger.Named("rag"),
	})
	return err
}

func (a *app) Close() {
	if a.index != nil {
		if err := a.index.Close(); err != nil {
			a.logger.Warn("failed to close vector index", zap.Error(err))
		}
	}
	if a.gemini != nil {
		a.gemini.Close()
	}
	_ = a.logger.Sync()
}

// buildIndex selects the vector index implementation named by vector_store.
func buildIndex(cfg *config.Config, logger *zap.Logger) (database.VectorIndex, error) {
	switch cfg.VectorStore {
	case config.VECTOR_STORE_QDRANT:
		return database.NewQdrantStore(cfg.Qdrant, cfg.Collection, logger.Named("qdrant"))
	case config.VECTOR_STORE_WEAVIATE:
		return database.NewWeaviateStore(cfg.Weaviate, cfg.Collection, logger.Named("weaviate"))
	case config.VECTOR_STORE_MEMORY:
		store := database.NewMemoryStore(cfg.Collection)
		if err := store.CreateCollection(context.Background(), cfg.Embedding.Dimension); err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("%w: unknown vector_store %q", types.ErrInvalidConfig, cfg.VectorStore)
}

// buildEmbedder returns a handle that constructs the embedder on first use.
func buildEmbedder(cfg *config.Config, gemini *genai.Client) *service.EmbeddingHandle {
	ec := cfg.Embedding
	return service.NewEmbeddingHandle(func() (service.Embedder, error) {
		if ec.Provider == config.PROVIDER_GEMINI {
			if gemini == nil {
				return nil, fmt.Errorf("%w: gemini embeddings need GEMINI_API_KEY", types.ErrInvalidConfig)
			}
			return service.NewGeminiEmbedder(gemini, ec.Model, ec.Dimension), nil
		}
		return service.NewOpenAIEmbedder(ec.BaseURL, ec.APIKey, ec.Model, ec.PrefixMode, ec.Dimension, ec.BatchSize), nil
	})
}

// buildGenerator returns nil collaborators when the provider has no credentials.
func buildGenerator(cfg *config.Config, gemini *genai.Client, logger *zap.Logger) (service.Generator, service.ModelLister) {
	gc := cfg.Generation
	switch gc.Provider {
	case config.PROVIDER_OPENAI:
		if cfg.RequireGenerationKey() != nil {
			return nil, nil
		}
		s := service.NewOpenAIService(gc.BaseURL, gc.OpenAIAPIKey, gc.Model)
		return s, s
	case config.PROVIDER_GEMINI:
		if gemini == nil || gc.GeminiAPIKey == "" {
			return nil, nil
		}
		s := service.NewGeminiService(gemini, gc.Model, logger.Named("gemini"))
		return s, s
	}
	return nil, nil
}

// exitError prints err with a hint for configuration problems.
func exitError(err error) error {
	if errors.Is(err, types.ErrInvalidConfig) {
		return fmt.Errorf("configuration error: %w", err)
	}
	return err
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/tieubaoca/rag-assistant/types"
	"github.com/tieubaoca/rag-assistant/utils"
)

const (
	VECTOR_STORE_QDRANT   = "qdrant"
	VECTOR_STORE_WEAVIATE = "weaviate"
	VECTOR_STORE_MEMORY   = "memory"

	PROVIDER_GEMINI = "gemini"
	PROVIDER_OPENAI = "openai"
)

type Config struct {
	Port        string           `mapstructure:"port"`
	UploadDir   string           `mapstructure:"upload_dir"`
	Collection  string           `mapstructure:"collection"`
	VectorStore string           `mapstructure:"vector_store"`
	Log         utils.LogConfig  `mapstructure:"log"`
	Qdrant      QdrantConfig     `mapstructure:"qdrant"`
	Weaviate    WeaviateConfig   `mapstructure:"weaviate"`
	Embedding   EmbeddingConfig  `mapstructure:"embedding"`
	Generation  GenerationConfig `mapstructure:"generation"`
	Chunking    ChunkingConfig   `mapstructure:"chunking"`
	Retrieval   RetrievalConfig  `mapstructure:"retrieval"`
	Auth        AuthConfig       `mapstructure:"auth"`
	CORS        CORSConfig       `mapstructure:"cors"`
}

type QdrantConfig struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	APIKey string `mapstructure:"api_key"`
	UseTLS bool   `mapstructure:"use_tls"`
}

type WeaviateConfig struct {
	Host   string `mapstructure:"host"`
	Scheme string `mapstructure:"scheme"`
	APIKey string `mapstructure:"api_key"`
}

type EmbeddingConfig struct {
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
	BaseURL  string `mapstructure:"base_url"`
	APIKey   string `mapstructure:"api_key"`
	// Dimension is probed from the model when 0.
	Dimension int `mapstructure:"dimension"`
	// PrefixMode is one of auto, always, never. Auto enables the
	// "query: " / "passage: " prefixes for E5 and GTE models.
	PrefixMode string `mapstructure:"prefix_mode"`
	BatchSize  int    `mapstructure:"batch_size"`
}

type GenerationConfig struct {
	Provider        string `mapstructure:"provider"`
	Model           string `mapstructure:"model"`
	BaseURL         string `mapstructure:"base_url"`
	GeminiAPIKey    string `mapstructure:"gemini_api_key"`
	OpenAIAPIKey    string `mapstructure:"openai_api_key"`
	Persona         string `mapstructure:"persona"`
	NoContextAnswer string `mapstructure:"no_context_answer"`
}

type ChunkingConfig struct {
	ChunkSize      int `mapstructure:"chunk_size"`
	Overlap        int `mapstructure:"overlap"`
	UpsertMaxChars int `mapstructure:"upsert_max_chars"`
	UpsertOverlap  int `mapstructure:"upsert_overlap"`
	UpsertBatch    int `mapstructure:"upsert_batch"`
}

type RetrievalConfig struct {
	DefaultTopK int `mapstructure:"default_top_k"`
}

type AuthConfig struct {
	// AdminSecret enables admin auth on mutating routes when set.
	AdminSecret string        `mapstructure:"admin_secret"`
	TokenTTL    time.Duration `mapstructure:"token_ttl"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8000")
	v.SetDefault("upload_dir", "uploads")
	v.SetDefault("collection", "documents")
	v.SetDefault("vector_store", VECTOR_STORE_QDRANT)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("qdrant.host", "localhost")
	v.SetDefault("qdrant.port", 6334)

	v.SetDefault("weaviate.host", "localhost:8080")
	v.SetDefault("weaviate.scheme", "http")

	v.SetDefault("embedding.provider", PROVIDER_OPENAI)
	v.SetDefault("embedding.model", "intfloat/multilingual-e5-base")
	v.SetDefault("embedding.base_url", "http://localhost:8080/v1")
	v.SetDefault("embedding.dimension", 768)
	v.SetDefault("embedding.prefix_mode", "auto")
	v.SetDefault("embedding.batch_size", 64)

	v.SetDefault("generation.provider", PROVIDER_GEMINI)
	v.SetDefault("generation.model", "gemini-1.5-flash")
	v.SetDefault("generation.no_context_answer", "No se encontró contexto relevante en la base vectorial.")

	v.SetDefault("chunking.chunk_size", 1000)
	v.SetDefault("chunking.overlap", 150)
	v.SetDefault("chunking.upsert_max_chars", 1200)
	v.SetDefault("chunking.upsert_overlap", 120)
	v.SetDefault("chunking.upsert_batch", 200)

	v.SetDefault("retrieval.default_top_k", 5)

	v.SetDefault("auth.token_ttl", 24*time.Hour)

	v.SetDefault("cors.allowed_origins", []string{"*"})
}

// LoadConfig reads configPath when it exists, then applies environment
// overrides. A missing file leaves defaults and environment only.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Set up Viper to read from environment variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Secrets keep their conventional names
	v.BindEnv("generation.gemini_api_key", "GEMINI_API_KEY")
	v.BindEnv("generation.openai_api_key", "OPENAI_API_KEY")
	v.BindEnv("embedding.api_key", "EMBEDDING_API_KEY")
	v.BindEnv("qdrant.api_key", "QDRANT_API_KEY")
	v.BindEnv("weaviate.api_key", "WEAVIATE_APIKEY")
	v.BindEnv("auth.admin_secret", "JWT_SECRET_ADMIN")

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// Validate reports structural problems that make the process unusable.
func (c *Config) Validate() error {
	switch c.VectorStore {
	case VECTOR_STORE_QDRANT, VECTOR_STORE_WEAVIATE:
	case VECTOR_STORE_MEMORY:
		if c.Embedding.Dimension <= 0 {
			return fmt.Errorf("%w: embedding.dimension must be positive for the memory store", types.ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown vector_store %q", types.ErrInvalidConfig, c.VectorStore)
	}
	if c.Collection == "" {
		return fmt.Errorf("%w: collection is empty", types.ErrInvalidConfig)
	}
	switch c.Embedding.Provider {
	case PROVIDER_OPENAI, PROVIDER_GEMINI:
	default:
		return fmt.Errorf("%w: unknown embedding.provider %q", types.ErrInvalidConfig, c.Embedding.Provider)
	}
	switch c.Generation.Provider {
	case PROVIDER_OPENAI, PROVIDER_GEMINI:
	default:
		return fmt.Errorf("%w: unknown generation.provider %q", types.ErrInvalidConfig, c.Generation.Provider)
	}
	if c.Chunking.ChunkSize <= 0 || c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("%w: chunking overlap %d must be in [0, %d)", types.ErrInvalidConfig, c.Chunking.Overlap, c.Chunking.ChunkSize)
	}
	if c.Chunking.UpsertMaxChars <= 0 || c.Chunking.UpsertOverlap < 0 || c.Chunking.UpsertOverlap >= c.Chunking.UpsertMaxChars {
		return fmt.Errorf("%w: upsert overlap %d must be in [0, %d)", types.ErrInvalidConfig, c.Chunking.UpsertOverlap, c.Chunking.UpsertMaxChars)
	}
	if c.Embedding.Provider == PROVIDER_GEMINI && c.Generation.GeminiAPIKey == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY is required for gemini embeddings", types.ErrInvalidConfig)
	}
	return nil
}

// GenerationKey returns the API key of the selected generation provider.
func (c *Config) GenerationKey() string {
	if c.Generation.Provider == PROVIDER_OPENAI {
		return c.Generation.OpenAIAPIKey
	}
	return c.Generation.GeminiAPIKey
}

// RequireGenerationKey is checked by commands that cannot run degraded.
func (c *Config) RequireGenerationKey() error {
	if c.GenerationKey() != "" {
		return nil
	}
	// OpenAI-compatible local servers run without a key.
	if c.Generation.Provider == PROVIDER_OPENAI && c.Generation.BaseURL != "" {
		return nil
	}
	return fmt.Errorf("%w: missing API key for generation provider %q", types.ErrInvalidConfig, c.Generation.Provider)
}

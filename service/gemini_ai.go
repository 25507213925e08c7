package service

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/tieubaoca/rag-assistant/types"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const generateContentMethod = "generateContent"

type GeminiService struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	modelName string
	logger    *zap.Logger
}

// NewGeminiClient opens a Gemini API client. The same client serves
// generation and embeddings.
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, errors.New("no API key provided")
	}
	return genai.NewClient(ctx, option.WithAPIKey(apiKey))
}

func NewGeminiService(client *genai.Client, modelName string, logger *zap.Logger) *GeminiService {
	return &GeminiService{
		client:    client,
		model:     client.GenerativeModel(modelName),
		modelName: modelName,
		logger:    logger,
	}
}

func (s *GeminiService) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := s.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", types.Upstream("gemini.generate", err)
	}
	if len(resp.Candidates) == 0 {
		return "", types.Upstream("gemini.generate", errors.New("no response generated"))
	}

	var content strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				content.WriteString(string(text))
			}
		}
		// Only the first candidate with content is the answer
		if content.Len() > 0 {
			break
		}
	}
	s.logger.Debug("gemini answered", zap.String("model", s.modelName), zap.Int("chars", content.Len()))
	return content.String(), nil
}

// ListModels returns the models that support generateContent.
func (s *GeminiService) ListModels(ctx context.Context) ([]string, error) {
	var models []string
	it := s.client.ListModels(ctx)
	for {
		m, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, types.Upstream("gemini.list_models", err)
		}
		if slices.Contains(m.SupportedGenerationMethods, generateContentMethod) {
			models = append(models, m.Name)
		}
	}
	return models, nil
}

package service

import (
	"context"
	"errors"
	"sort"

	"github.com/sashabaranov/go-openai"
	"github.com/tieubaoca/rag-assistant/types"
)

// OpenAIService talks to OpenAI or any server implementing its chat API.
type OpenAIService struct {
	client *openai.Client
	model  string
}

func NewOpenAIService(baseURL string, apiKey, model string) *OpenAIService {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL // Set this to your local LLM server URL
	}
	client := openai.NewClientWithConfig(config)
	return &OpenAIService{
		client: client,
		model:  model,
	}
}

func (s *OpenAIService) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := s.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: s.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		},
	)
	if err != nil {
		return "", types.Upstream("openai.chat", err)
	}

	if len(resp.Choices) == 0 {
		return "", types.Upstream("openai.chat", errors.New("no response generated"))
	}
	return resp.Choices[0].Message.Content, nil
}

func (s *OpenAIService) ListModels(ctx context.Context) ([]string, error) {
	list, err := s.client.ListModels(ctx)
	if err != nil {
		return nil, types.Upstream("openai.list_models", err)
	}
	models := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		models = append(models, m.ID)
	}
	sort.Strings(models)
	return models, nil
}

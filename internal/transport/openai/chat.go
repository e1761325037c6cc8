package openai

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/partcat/internal/domain"
)

const defaultTemperature = 0.1

// Chat is a chat completion client implementing domain.ChatCompleter.
type Chat struct {
	client      *openai.Client
	model       string
	user        string
	temperature float32
	logger      *zap.Logger
}

// NewChat creates an OpenAI-compatible chat client.
func NewChat(cfg *Config) *Chat {
	temperature := float32(defaultTemperature)
	if cfg.Temperature > 0 {
		temperature = cfg.Temperature
	}
	return &Chat{
		client:      newClient(cfg),
		model:       cfg.Model,
		user:        cfg.User,
		temperature: temperature,
		logger:      nopIfNil(cfg.Logger),
	}
}

// Model returns the configured model name.
func (c *Chat) Model() string { return c.model }

// Complete sends one system+user prompt pair. Errors wrap the domain sentinels:
// credentials/quota/bad request are fatal, rate limits and provider errors are retryable.
func (c *Chat) Complete(ctx context.Context, system, user string) (domain.Completion, error) {
	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: c.temperature,
		User:        c.user,
	})
	if err != nil {
		return domain.Completion{}, parseAPIError("chat", err, domain.ErrLLMProviderError)
	}
	if len(resp.Choices) == 0 {
		return domain.Completion{}, fmt.Errorf("chat response has no choices: %w", domain.ErrLLMProviderError)
	}

	c.logger.Debug("chat completion",
		zap.String("model", resp.Model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("duration", time.Since(start)))

	return domain.Completion{
		Content:      resp.Choices[0].Message.Content,
		Model:        resp.Model,
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels.
func (c *Chat) HealthCheck(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

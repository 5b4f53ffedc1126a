package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"github.com/dyike/CortexOffice/pkg/errors"
)

// Settings selects and authenticates one chat model.
type Settings struct {
	Provider  string
	Model     string
	BaseURL   string
	APIKey    string
	MaxTokens int
}

// NewChatModel builds the eino chat model for the configured provider.
func NewChatModel(ctx context.Context, s Settings) (model.ChatModel, error) {
	if s.APIKey == "" {
		return nil, fmt.Errorf("%w: %s api key is not configured", errors.ErrInvalidInput, s.Provider)
	}
	switch s.Provider {
	case "deepseek":
		cfg := &deepseek.ChatModelConfig{
			APIKey:    s.APIKey,
			Model:     s.Model,
			MaxTokens: s.MaxTokens,
		}
		if s.BaseURL != "" {
			cfg.BaseURL = s.BaseURL
		}
		return deepseek.NewChatModel(ctx, cfg)
	case "openai":
		maxTokens := s.MaxTokens
		cfg := &openai.ChatModelConfig{
			BaseURL: s.BaseURL,
			APIKey:  s.APIKey,
			Model:   s.Model,
		}
		if maxTokens > 0 {
			cfg.MaxTokens = &maxTokens
		}
		return openai.NewChatModel(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: unsupported llm provider %q", errors.ErrInvalidInput, s.Provider)
	}
}

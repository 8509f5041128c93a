package ai

import (
	"context"
	"fmt"
	"strings"

	"lumina/internal/config"
	"lumina/internal/model"
)

// Turn is one message of the prompt, in conversation order.
type Turn struct {
	Role model.Role
	Text string
}

// Provider sends a single non-streaming completion request.
type Provider interface {
	Name() string
	Generate(ctx context.Context, systemInstruction string, turns []Turn) (string, error)
}

// NewProvider builds the configured provider. The gemini client is created
// lazily on first use so a missing key only degrades replies.
func NewProvider(cfg config.InferenceConfig) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "gemini":
		return NewGeminiProvider(cfg), nil
	case "openai":
		return NewOpenAICompatibleClient(ChatConfig{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported inference provider %q", cfg.Provider)
	}
}

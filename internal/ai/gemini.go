package ai

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/genai"

	"lumina/internal/config"
	"lumina/internal/model"
)

const DefaultGeminiModel = "gemini-3-flash-preview"

type GeminiProvider struct {
	apiKey  string
	model   string
	baseURL string

	once    sync.Once
	client  *genai.Client
	initErr error
}

func NewGeminiProvider(cfg config.InferenceConfig) *GeminiProvider {
	m := cfg.Model
	if m == "" {
		m = DefaultGeminiModel
	}
	return &GeminiProvider{apiKey: cfg.APIKey, model: m, baseURL: cfg.BaseURL}
}

func (p *GeminiProvider) Name() string {
	return "gemini"
}

func (p *GeminiProvider) Generate(ctx context.Context, systemInstruction string, turns []Turn) (string, error) {
	client, err := p.getClient(ctx)
	if err != nil {
		return "", err
	}

	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		role := genai.Role(genai.RoleUser)
		if t.Role == model.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(t.Text, role))
	}

	var cfg *genai.GenerateContentConfig
	if systemInstruction != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		}
	}

	resp, err := client.Models.GenerateContent(ctx, p.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate content failed: %w", err)
	}
	return resp.Text(), nil
}

func (p *GeminiProvider) getClient(ctx context.Context) (*genai.Client, error) {
	p.once.Do(func() {
		if p.apiKey == "" {
			p.initErr = fmt.Errorf("gemini api key is not configured")
			return
		}
		cc := &genai.ClientConfig{
			APIKey:  p.apiKey,
			Backend: genai.BackendGeminiAPI,
		}
		if p.baseURL != "" {
			cc.HTTPOptions = genai.HTTPOptions{BaseURL: p.baseURL}
		}
		p.client, p.initErr = genai.NewClient(ctx, cc)
		if p.initErr != nil {
			p.initErr = fmt.Errorf("create gemini client failed: %w", p.initErr)
		}
	})
	return p.client, p.initErr
}

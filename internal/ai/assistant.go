package ai

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"lumina/internal/model"
	"lumina/internal/telemetry"
)

const (
	SystemInstruction = "You are a helpful AI assistant. Provide concise and accurate answers."
	FallbackResponse  = "I'm sorry, I couldn't generate a response."
	FallbackTitle     = "New Chat"

	titleInstruction = "You are a helpful assistant that generates concise conversation titles. Return ONLY the title text, no quotes or punctuation."
	titleMaxWords    = 4
)

// Assistant turns provider calls into reply and title text. It never
// returns an error: failures are logged, counted and replaced by fallbacks.
type Assistant struct {
	provider Provider
	logger   *zap.Logger
	metrics  *telemetry.Metrics
}

func NewAssistant(provider Provider, logger *zap.Logger, metrics *telemetry.Metrics) *Assistant {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assistant{provider: provider, logger: logger, metrics: metrics}
}

// GenerateResponse sends the prior transcript followed by userText.
func (a *Assistant) GenerateResponse(ctx context.Context, history []model.Message, userText string) string {
	turns := make([]Turn, 0, len(history)+1)
	for _, m := range history {
		role := model.RoleUser
		if m.Role == model.RoleAssistant {
			role = model.RoleAssistant
		}
		turns = append(turns, Turn{Role: role, Text: m.Content})
	}
	turns = append(turns, Turn{Role: model.RoleUser, Text: userText})

	text, ok := a.generate(ctx, "response", SystemInstruction, turns)
	if !ok || strings.TrimSpace(text) == "" {
		return FallbackResponse
	}
	return text
}

func (a *Assistant) GenerateTitle(ctx context.Context, userText, assistantText string) string {
	prompt := fmt.Sprintf(
		"Based on this exchange, generate a very short (max %d words) descriptive title for the conversation.\n\nUser: %s\nAssistant: %s\n\nTitle:",
		titleMaxWords, userText, assistantText,
	)
	text, ok := a.generate(ctx, "title", titleInstruction, []Turn{{Role: model.RoleUser, Text: prompt}})
	if !ok {
		return FallbackTitle
	}
	if title := CleanTitle(text); title != "" {
		return title
	}
	return FallbackTitle
}

func (a *Assistant) generate(ctx context.Context, kind, instruction string, turns []Turn) (string, bool) {
	ctx, span := otel.Tracer("lumina/ai").Start(ctx, "ai.generate_"+kind)
	defer span.End()
	span.SetAttributes(
		attribute.String("ai.provider", a.provider.Name()),
		attribute.Int("ai.turns", len(turns)),
	)

	text, err := a.provider.Generate(ctx, instruction, turns)
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate failed")
		a.metrics.IncInference(kind, "error")
		a.logger.Error("inference call failed",
			zap.String("kind", kind),
			zap.String("provider", a.provider.Name()),
			zap.Error(err),
		)
		return "", false
	case strings.TrimSpace(text) == "":
		a.metrics.IncInference(kind, "empty")
		a.logger.Warn("inference returned empty text", zap.String("kind", kind))
		return "", true
	default:
		a.metrics.IncInference(kind, "ok")
		return text, true
	}
}

// CleanTitle keeps the first non-empty line, strips quotes and trailing
// punctuation and caps the result at four words.
func CleanTitle(raw string) string {
	line := ""
	for _, l := range strings.Split(raw, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			line = l
			break
		}
	}
	line = strings.TrimSpace(strings.TrimPrefix(line, "Title:"))
	line = strings.Trim(line, "\"'`*“”‘’ ")

	words := strings.Fields(line)
	if len(words) > titleMaxWords {
		words = words[:titleMaxWords]
	}
	title := strings.Join(words, " ")
	title = strings.TrimRight(title, ".,;:!?\"'`*“”‘’ ")
	return title
}

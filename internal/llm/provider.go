// Package llm holds the embedding and generation providers plus the vector
// similarity used by both indexing-time and query-time ranking.
package llm

import (
	"context"
	"fmt"

	"github.com/asadollahi99/temple-law-chatbot/pkg/config"

	"go.uber.org/zap"
)

type Message struct {
	Role    string
	Content string
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Embedder produces fixed-dimension vectors for chunks and queries.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dims() int
}

// Generator answers a user message against a system instruction and prior
// conversation turns. Implementations parse their provider's response
// envelope exactly once and return plain text or an error, nothing in
// between.
type Generator interface {
	Generate(ctx context.Context, systemInstruction string, history []Message, userMessage string) (string, error)
}

// NewGenerator selects the generation backend from config.
func NewGenerator(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Generator, error) {
	switch cfg.LLM.Provider {
	case "openai":
		return NewOpenAIProvider(&cfg.OpenAI, logger)
	case "gigachat":
		return NewGigaChatProvider(ctx, &cfg.GigaChat, logger)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLM.Provider)
	}
}

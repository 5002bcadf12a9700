package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/asadollahi99/temple-law-chatbot/pkg/config"

	"github.com/Role1776/gigago"
	"go.uber.org/zap"
)

// GigaChatProvider is the alternate generation backend. It does not serve
// the embedding contract; embeddings always come from the OpenAI provider.
type GigaChatProvider struct {
	client *gigago.Client
	logger *zap.Logger
}

func NewGigaChatProvider(ctx context.Context, cfg *config.GigaChatConfig, logger *zap.Logger) (*GigaChatProvider, error) {
	opts := []gigago.Option{
		gigago.WithCustomScope(cfg.Scope),
	}
	if cfg.InsecureSkipVerify {
		opts = append(opts, gigago.WithCustomInsecureSkipVerify(true))
		logger.Warn("GigaChat TLS certificate verification is disabled")
	}

	client, err := gigago.NewClient(ctx, cfg.APIKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GigaChat client: %w", err)
	}

	return &GigaChatProvider{client: client, logger: logger}, nil
}

func (p *GigaChatProvider) Generate(ctx context.Context, systemInstruction string, history []Message, userMessage string) (string, error) {
	model := p.client.GenerativeModel("GigaChat")
	model.SystemInstruction = systemInstruction
	model.Temperature = 0.2

	// GigaChat carries the system instruction out of band; prior turns are
	// folded into the final user message as a transcript.
	var builder strings.Builder
	if len(history) > 0 {
		builder.WriteString("Conversation so far:\n")
		for _, m := range history {
			builder.WriteString(fmt.Sprintf("%s: %s\n", m.Role, m.Content))
		}
		builder.WriteString("\n")
	}
	builder.WriteString(userMessage)

	messages := []gigago.Message{
		{Role: gigago.RoleUser, Content: builder.String()},
	}

	resp, err := model.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("failed to generate response: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from LLM")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (p *GigaChatProvider) Close() {
	if p.client != nil {
		p.client.Close()
	}
}

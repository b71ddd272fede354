// Package model adapts a Genkit instance to the engine's model client.
package model

import (
	"context"
	"log/slog"
	"strings"

	chatweave "github.com/ZanzyTHEbar/chatweave-genkit"
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// GenkitClient is a chatweave.ModelClient backed by a Genkit model.
type GenkitClient struct {
	genkit    *genkit.Genkit
	modelName string
	logger    *slog.Logger
}

// Option configures a GenkitClient.
type Option func(*GenkitClient)

// WithModelName overrides the default model configured on the Genkit
// instance, e.g. "googleai/gemini-2.0-flash".
func WithModelName(name string) Option {
	return func(c *GenkitClient) {
		c.modelName = name
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *GenkitClient) {
		c.logger = logger
	}
}

// NewGenkitClient creates a model client over an initialized Genkit
// instance.
func NewGenkitClient(g *genkit.Genkit, options ...Option) *GenkitClient {
	c := &GenkitClient{
		genkit: g,
		logger: slog.New(slog.DiscardHandler),
	}

	for _, option := range options {
		option(c)
	}

	return c
}

// Generate implements chatweave.ModelClient. System messages become the
// generation's system prompt; the rest map to user and model turns.
func (c *GenkitClient) Generate(ctx context.Context, messages []chatweave.Message) (string, error) {
	var systemParts []string
	turns := make([]*ai.Message, 0, len(messages))

	for _, message := range messages {
		switch message.Role {
		case chatweave.RoleSystem:
			systemParts = append(systemParts, message.Content)
		case chatweave.RoleAssistant:
			turns = append(turns, ai.NewModelMessage(ai.NewTextPart(message.Content)))
		default:
			turns = append(turns, ai.NewUserMessage(ai.NewTextPart(message.Content)))
		}
	}

	opts := []ai.GenerateOption{
		ai.WithMessages(turns...),
	}
	if len(systemParts) > 0 {
		opts = append(opts, ai.WithSystem(strings.Join(systemParts, "\n\n")))
	}
	if c.modelName != "" {
		opts = append(opts, ai.WithModelName(c.modelName))
	}

	response, err := genkit.Generate(ctx, c.genkit, opts...)
	if err != nil {
		return "", err
	}

	text := response.Text()
	c.logger.Debug("model response", "chars", len(text))
	return text, nil
}

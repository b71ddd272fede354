package planner

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"log/slog"

	chatweave "github.com/ZanzyTHEbar/chatweave-genkit"
	"github.com/ZanzyTHEbar/chatweave-genkit/internal/prompt"
)

// ModelPlanner prompts the model with the orchestration contract and
// parses its output into a plan.
type ModelPlanner struct {
	model  chatweave.ModelClient
	parser *Parser
	cache  chatweave.Cache
	logger *slog.Logger
}

// ModelPlannerOption configures a ModelPlanner.
type ModelPlannerOption func(*ModelPlanner)

// WithCache enables plan caching for history-free requests.
func WithCache(cache chatweave.Cache) ModelPlannerOption {
	return func(p *ModelPlanner) {
		p.cache = cache
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ModelPlannerOption {
	return func(p *ModelPlanner) {
		p.logger = logger
		p.parser = NewParser(logger)
	}
}

// NewModelPlanner creates a planner backed by the given model client.
func NewModelPlanner(model chatweave.ModelClient, options ...ModelPlannerOption) *ModelPlanner {
	p := &ModelPlanner{
		model:  model,
		parser: NewParser(nil),
		logger: slog.New(slog.DiscardHandler),
	}

	for _, option := range options {
		option(p)
	}

	return p
}

// GeneratePlan implements chatweave.Planner.
func (p *ModelPlanner) GeneratePlan(ctx context.Context, input chatweave.PlannerInput) (*chatweave.Plan, error) {
	// Requests carrying history are never cached: the same query can
	// legitimately produce a different plan in a different conversation.
	cacheable := p.cache != nil && len(input.History) == 0
	var key string

	if cacheable {
		key = planCacheKey(input)
		if cached, err := p.cache.Get(ctx, key); err == nil {
			if plan, ok := cached.(*chatweave.Plan); ok {
				p.logger.Debug("plan cache hit", "key", key)
				return plan, nil
			}
		}
	}

	system, err := prompt.Orchestration(input.Username, input.Tools)
	if err != nil {
		return nil, chatweave.NewInternalError("planning", "failed to render orchestration prompt", err)
	}

	messages := make([]chatweave.Message, 0, len(input.History)+2)
	messages = append(messages, chatweave.Message{Role: chatweave.RoleSystem, Content: system})
	messages = append(messages, input.History...)
	messages = append(messages, chatweave.Message{Role: chatweave.RoleUser, Content: input.Query})

	raw, err := p.model.Generate(ctx, messages)
	if err != nil {
		return nil, err
	}

	plan := p.parser.Parse(raw)

	if cacheable {
		if err := p.cache.Set(ctx, key, plan); err != nil {
			p.logger.Warn("failed to cache plan", "key", key, "error", err)
		}
	}

	return plan, nil
}

// planCacheKey derives a stable key from the query and the tool surface
// available this run. A changed tool set must never serve a stale plan.
func planCacheKey(input chatweave.PlannerInput) string {
	payload := struct {
		Query string                     `json:"query"`
		Tools []chatweave.ToolDescriptor `json:"tools"`
	}{
		Query: input.Query,
		Tools: input.Tools,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "planner:" + input.Query
	}

	sum := sha1.Sum(data)
	return "planner:" + hex.EncodeToString(sum[:])
}

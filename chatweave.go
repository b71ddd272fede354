// Package chatweave provides the tool-orchestration core of a
// retrieval-augmented chat assistant: plan parsing, reference
// resolution, sequential step execution and progress streaming.
package chatweave

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ZanzyTHEbar/chatweave-genkit/internal/eventbus"
	"github.com/sourcegraph/conc/pool"
)

// ChatWeave is the main entry point into the chatweave runtime. It
// encapsulates all components required for driving one user turn from
// plan generation through tool execution to transcript persistence.
type ChatWeave struct {
	// Core components
	planner  Planner
	executor Executor
	toolHost ToolHost
	store    ConversationStore
	eventBus eventbus.EventBus

	// emitterFactory builds the per-run emitter for streaming runs.
	emitterFactory func(FrameSink) Emitter

	logger *slog.Logger

	// Configuration
	config Config

	// Async processing
	asyncRuns      map[string]*RunContext
	asyncRunsMutex sync.RWMutex
	asyncPool      *pool.Pool
}

// Config holds the configuration options for the chatweave runtime.
type Config struct {
	// Event bus configuration
	EnableEventBus      bool
	EventBusBufferSize  int
	EventBusWorkerCount int

	// Maximum number of concurrently running async runs
	MaxAsyncRuns int
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		EnableEventBus:      true,
		EventBusBufferSize:  100,
		EventBusWorkerCount: 5,
		MaxAsyncRuns:        8,
	}
}

// Option is a function that configures a ChatWeave instance.
type Option func(*ChatWeave)

// WithConfig sets the configuration.
func WithConfig(config Config) Option {
	return func(c *ChatWeave) {
		c.config = config
	}
}

// WithPlanner sets the planner component.
func WithPlanner(planner Planner) Option {
	return func(c *ChatWeave) {
		c.planner = planner
	}
}

// WithExecutor sets the executor component.
func WithExecutor(executor Executor) Option {
	return func(c *ChatWeave) {
		c.executor = executor
	}
}

// WithToolHost sets the tool host gateway.
func WithToolHost(host ToolHost) Option {
	return func(c *ChatWeave) {
		c.toolHost = host
	}
}

// WithConversationStore sets the conversation store component.
func WithConversationStore(store ConversationStore) Option {
	return func(c *ChatWeave) {
		c.store = store
	}
}

// WithEmitterFactory sets the factory used to build per-run emitters
// for streaming runs.
func WithEmitterFactory(factory func(FrameSink) Emitter) Option {
	return func(c *ChatWeave) {
		c.emitterFactory = factory
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *ChatWeave) {
		c.logger = logger
	}
}

// New creates a new ChatWeave instance with the provided options.
func New(options ...Option) (*ChatWeave, error) {
	c := &ChatWeave{
		config:    DefaultConfig(),
		logger:    slog.New(slog.DiscardHandler),
		asyncRuns: make(map[string]*RunContext),
	}

	for _, option := range options {
		option(c)
	}

	// Validate required components
	if c.planner == nil {
		return nil, NewConfigurationError("planner is required", nil)
	}

	if c.executor == nil {
		return nil, NewConfigurationError("executor is required", nil)
	}

	if c.toolHost == nil {
		return nil, NewConfigurationError("tool host is required", nil)
	}

	if c.store == nil {
		return nil, NewConfigurationError("conversation store is required", nil)
	}

	if c.config.MaxAsyncRuns <= 0 {
		c.config.MaxAsyncRuns = DefaultConfig().MaxAsyncRuns
	}
	c.asyncPool = pool.New().WithMaxGoroutines(c.config.MaxAsyncRuns)

	// Initialize event bus if enabled but not provided
	if c.config.EnableEventBus && c.eventBus == nil {
		c.eventBus = eventbus.NewChannelEventBus(
			eventbus.WithBufferSize(c.config.EventBusBufferSize),
			eventbus.WithWorkerCount(c.config.EventBusWorkerCount),
			eventbus.WithLogger(c.logger),
		)
		c.logger.Debug("initialized default channel-based event bus")
	}

	return c, nil
}

// EventBus returns the configured event bus, or nil when disabled.
func (c *ChatWeave) EventBus() eventbus.EventBus {
	return c.eventBus
}

// Close releases runtime resources.
func (c *ChatWeave) Close() error {
	c.asyncPool.Wait()
	if c.eventBus != nil {
		return c.eventBus.Close()
	}
	return nil
}

// Process handles one user turn without streaming. Progress events are
// discarded; the final answer is returned in the RunResult.
func (c *ChatWeave) Process(ctx context.Context, req ChatRequest) (*RunResult, error) {
	return c.process(ctx, req, NopEmitter{})
}

// ProcessStream handles one user turn, streaming content frames to the
// given sink as the run progresses.
func (c *ChatWeave) ProcessStream(ctx context.Context, req ChatRequest, sink FrameSink) (*RunResult, error) {
	if c.emitterFactory == nil {
		return nil, NewConfigurationError("emitter factory is required for streaming runs", nil)
	}
	return c.process(ctx, req, c.emitterFactory(sink))
}

// process drives one run through the state machine and performs the
// single terminal persistence call.
func (c *ChatWeave) process(ctx context.Context, req ChatRequest, emitter Emitter) (*RunResult, error) {
	stateMachine := c.createStateMachine(emitter)
	run := NewRunContext(req)

	_, runErr := stateMachine.Execute(ctx, run)

	// Exactly one persistence call per run, on every terminal path,
	// including cancellation. The save must outlive the request context.
	persistErr := c.persistRun(context.WithoutCancel(ctx), run)
	if persistErr != nil {
		c.logger.Error("failed to persist run transcript",
			"conversation_id", req.ConversationID,
			"error", persistErr)
	}

	result := &RunResult{
		State:    run.CurrentState,
		Answer:   run.Transcript.Join(),
		Summary:  run.Transcript.Summary(),
		Duration: run.GetTotalDuration(),
	}

	if runErr != nil {
		return result, runErr
	}
	return result, persistErr
}

// persistRun hands the accumulated transcript to the conversation store.
func (c *ChatWeave) persistRun(ctx context.Context, run *RunContext) error {
	entry := TranscriptEntry{
		Query:   run.Request.Query,
		Answer:  run.Transcript.Join(),
		Summary: run.Transcript.Summary(),
		Aborted: run.CurrentState == StateAborted,
		At:      run.StartTime,
	}
	return c.store.SaveTranscript(ctx, run.Request.ConversationID, entry)
}

// createStateMachine builds a state machine wired to this engine's
// components and the given per-run emitter.
func (c *ChatWeave) createStateMachine(emitter Emitter) *StateMachine {
	var bus eventbus.EventBus
	if c.config.EnableEventBus {
		bus = c.eventBus
	}

	components := RunComponents{
		Planner:   c.planner,
		Executor:  c.executor,
		Emitter:   emitter,
		Logger:    c.logger,
		Config:    c.config,
		ListTools: c.toolHost.ListTools,
		LoadHistory: func(ctx context.Context, conversationID string) ([]Message, error) {
			return c.store.History(ctx, conversationID)
		},
	}

	return CreateRunStateMachine(components, bus)
}

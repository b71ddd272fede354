package chatweave

import "context"

// ModelClient is the boundary to the language model: one request/response
// call with an ordered list of role-tagged messages.
type ModelClient interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

// PlannerInput contains the information the planner needs to produce a
// plan for one user turn.
type PlannerInput struct {
	Query    string
	Username string
	History  []Message
	Tools    []ToolDescriptor
}

// Planner turns a user turn into a Plan, typically by prompting the
// model and parsing its output.
type Planner interface {
	GeneratePlan(ctx context.Context, input PlannerInput) (*Plan, error)
}

// Executor runs a plan's steps sequentially against the tool host,
// updating the run's result store and transcript and emitting progress
// events through the given emitter.
type Executor interface {
	ExecutePlan(ctx context.Context, run *RunContext, emitter Emitter) error
}

// ToolHost is the boundary to tool execution. The host is assumed to
// have validated that a called name exists among the listed descriptors.
type ToolHost interface {
	ListTools(ctx context.Context) ([]ToolDescriptor, error)
	CallTool(ctx context.Context, name string, args map[string]any) (*ToolResult, error)
}

// ConversationStore persists run transcripts and replays prior turns as
// model history.
type ConversationStore interface {
	SaveTranscript(ctx context.Context, conversationID string, entry TranscriptEntry) error
	History(ctx context.Context, conversationID string) ([]Message, error)
}

// Cache provides storage for frequently accessed data, like generated
// plans. Get returns an error for both misses and failures; callers
// treat any error as a miss.
type Cache interface {
	Get(ctx context.Context, key string) (any, error)
	Set(ctx context.Context, key string, value any) error
}

// FrameSink receives outbound content frames. A Send error signals the
// receiving side has gone away; emission stops and the run aborts at the
// next step boundary.
type FrameSink interface {
	Send(ctx context.Context, frame Frame) error
}

// Emitter renders execution events into outbound frames. Frame order
// must match event order; downstream consumers reconstruct the
// transcript by concatenation.
type Emitter interface {
	Emit(ctx context.Context, event ExecutionEvent) error
}

// NopEmitter discards all events. Used for non-streaming runs.
type NopEmitter struct{}

// Emit implements Emitter.
func (NopEmitter) Emit(ctx context.Context, event ExecutionEvent) error { return nil }

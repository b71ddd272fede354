package chatweave

import (
	"strings"
	"sync"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
)

// PlanKind identifies which variant of a Plan is active.
type PlanKind string

const (
	// PlanMessage carries a direct textual reply from the model.
	PlanMessage PlanKind = "message"
	// PlanError carries an error the model declared itself.
	PlanError PlanKind = "error"
	// PlanSteps carries an ordered list of tool invocations.
	PlanSteps PlanKind = "steps"
)

// Plan is the structured output of the planning phase. Exactly one
// variant is populated, selected by Kind.
type Plan struct {
	Kind    PlanKind
	Message string
	Reason  string
	Steps   []PlanStep
}

// PlanStep is one tool invocation within a plan.
type PlanStep struct {
	Name  string         `json:"name"`
	Args  map[string]any `json:"arguments"`
	Order int            `json:"order"`
}

// ResultKeyPrefix is the reserved prefix the model uses to reference a
// prior step's result in an argument value.
const ResultKeyPrefix = "result_"

// ResultKey returns the store key for a tool's result.
func ResultKey(toolName string) string {
	return ResultKeyPrefix + toolName
}

// ResultStore holds the textual results of completed steps for one run,
// keyed by "result_<tool_name>". It is created fresh per run and never
// shared across runs.
type ResultStore struct {
	mutex   sync.RWMutex
	results map[string]string
}

// NewResultStore creates an empty result store.
func NewResultStore() *ResultStore {
	return &ResultStore{results: make(map[string]string)}
}

// Put stores the result for a tool. When the same tool runs twice in one
// plan the last write wins: the reference syntax addresses tools by name
// only, so keying by anything finer would break it.
func (rs *ResultStore) Put(toolName, text string) {
	rs.mutex.Lock()
	defer rs.mutex.Unlock()
	rs.results[ResultKey(toolName)] = text
}

// Get retrieves a stored result by its full key (including the prefix).
func (rs *ResultStore) Get(key string) (string, bool) {
	rs.mutex.RLock()
	defer rs.mutex.RUnlock()
	value, ok := rs.results[key]
	return value, ok
}

// Snapshot returns a copy of all stored results.
func (rs *ResultStore) Snapshot() map[string]any {
	rs.mutex.RLock()
	defer rs.mutex.RUnlock()
	out := make(map[string]any, len(rs.results))
	for k, v := range rs.results {
		out[k] = v
	}
	return out
}

// Len returns the number of stored results.
func (rs *ResultStore) Len() int {
	rs.mutex.RLock()
	defer rs.mutex.RUnlock()
	return len(rs.results)
}

// Transcript accumulates the human-readable log of a run plus a
// condensed summary used to seed future conversation history.
type Transcript struct {
	mutex   sync.Mutex
	lines   []string
	summary []string
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Append adds a line to the full transcript.
func (t *Transcript) Append(line string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.lines = append(t.lines, line)
}

// AppendSummary adds a condensed one-liner to the summary accumulation.
func (t *Transcript) AppendSummary(line string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.summary = append(t.summary, line)
}

// Join returns the full transcript as a single string.
func (t *Transcript) Join() string {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return strings.Join(t.lines, "\n\n")
}

// Summary returns the condensed summary as a single string.
func (t *Transcript) Summary() string {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return strings.Join(t.summary, "\n")
}

// Len returns the number of transcript lines.
func (t *Transcript) Len() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return len(t.lines)
}

// ToolDescriptor describes a tool exposed by the tool host. Supplied at
// session start and immutable for the duration of one run.
type ToolDescriptor struct {
	Name            string             `json:"name"`
	Description     string             `json:"description"`
	Parameters      *jsonschema.Schema `json:"parameters,omitempty"`
	DisplayTemplate string             `json:"display_template,omitempty"`
}

// ToolContent is one content item returned by a tool invocation.
type ToolContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ToolResult is the normalized outcome of a tool invocation.
type ToolResult struct {
	IsError bool          `json:"is_error"`
	Content []ToolContent `json:"content"`
}

// FirstText returns the text of the first content item of type "text",
// or the empty string when no such item exists. Unknown content types
// are treated as empty, never an error.
func (tr *ToolResult) FirstText() string {
	for _, c := range tr.Content {
		if c.Type == "text" {
			return c.Text
		}
	}
	return ""
}

// Message roles used when talking to the model.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role-tagged entry in a model conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is one user turn handed to the engine.
type ChatRequest struct {
	ConversationID string `json:"conversation_id"`
	Username       string `json:"username"`
	Query          string `json:"message"`
}

// TranscriptEntry is what the engine hands to the conversation store at
// the end of a run.
type TranscriptEntry struct {
	Query   string    `json:"query"`
	Answer  string    `json:"answer"`
	Summary string    `json:"summary,omitempty"`
	Aborted bool      `json:"aborted,omitempty"`
	At      time.Time `json:"at"`
}

// EventKind identifies the type of an execution event.
type EventKind string

const (
	EventPlanAnnounced EventKind = "plan_announced"
	EventMessage       EventKind = "message"
	EventStepStarted   EventKind = "step_started"
	EventStepSucceeded EventKind = "step_succeeded"
	EventStepFailed    EventKind = "step_failed"
	EventRunCompleted  EventKind = "run_completed"
	EventRunFailed     EventKind = "run_failed"
)

// ExecutionEvent is one ordered progress event produced during a run and
// consumed by the stream emitter in emission order.
type ExecutionEvent struct {
	Kind    EventKind
	Step    *PlanStep
	Steps   []PlanStep
	Display string
	Text    string
}

// Frame is one outbound content chunk delivered to the client.
type Frame struct {
	Content string `json:"content"`
}

// RunResult summarizes a finished run.
type RunResult struct {
	State    RunState      `json:"state"`
	Answer   string        `json:"answer"`
	Summary  string        `json:"summary,omitempty"`
	Duration time.Duration `json:"duration"`
}

package chatweave

import (
	"context"
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/chatweave-genkit/internal/eventbus"
)

// RunState represents the current state of a run.
type RunState string

const (
	// StateInit is the initial state of a run
	StateInit RunState = "init"
	// StatePlanning represents the planning phase
	StatePlanning RunState = "planning"
	// StateMessaging handles a direct model reply
	StateMessaging RunState = "messaging"
	// StateErrorReporting handles a model-declared error
	StateErrorReporting RunState = "error_reporting"
	// StateExecuting represents the step execution phase
	StateExecuting RunState = "executing"
	// StateComplete represents the completed terminal state
	StateComplete RunState = "complete"
	// StateAborted represents the aborted terminal state
	StateAborted RunState = "aborted"
	// StateUnknown is used when the status of an async run cannot be determined.
	StateUnknown RunState = "unknown"
)

// RunContext carries the data for one run through the state machine.
// It acts as the "tape" of the automaton: each transition reads what
// earlier transitions wrote. A RunContext is owned by exactly one run
// and is never shared across requests or users.
type RunContext struct {
	// Input parameters
	Request ChatRequest

	// Session inputs gathered during init
	Tools   []ToolDescriptor
	History []Message

	// Intermediate results
	Plan        *Plan
	Results     *ResultStore
	Transcript  *Transcript
	FinalAnswer string

	// Model-declared error, recorded when the plan's Error variant is
	// active. The run still completes; the outcome is just negative.
	ReportedError string

	// Error handling
	LastError  error
	ErrorStage string

	// State management
	CurrentState RunState
	StateStack   []RunState
	StateData    map[string]any

	// Timestamp tracking
	StartTime       time.Time
	EndTime         time.Time
	StateStartTimes map[RunState]time.Time
}

// NewRunContext creates a new run context for the given request.
func NewRunContext(req ChatRequest) *RunContext {
	return &RunContext{
		Request:         req,
		Results:         NewResultStore(),
		Transcript:      NewTranscript(),
		CurrentState:    StateInit,
		StateStack:      []RunState{},
		StateData:       make(map[string]any),
		StartTime:       time.Now(),
		StateStartTimes: make(map[RunState]time.Time),
	}
}

// PushState pushes the current state onto the stack and sets a new current state.
func (rc *RunContext) PushState(state RunState) {
	rc.StateStack = append(rc.StateStack, rc.CurrentState)
	rc.CurrentState = state
	rc.StateStartTimes[state] = time.Now()
}

// PopState pops the top state from the stack and sets it as the current state.
// Returns false if the stack is empty.
func (rc *RunContext) PopState() bool {
	if len(rc.StateStack) == 0 {
		return false
	}
	lastIdx := len(rc.StateStack) - 1
	rc.CurrentState = rc.StateStack[lastIdx]
	rc.StateStack = rc.StateStack[:lastIdx]
	rc.StateStartTimes[rc.CurrentState] = time.Now()
	return true
}

// IsTerminal checks if the current state is a terminal state.
func (rc *RunContext) IsTerminal() bool {
	return rc.CurrentState == StateComplete || rc.CurrentState == StateAborted
}

// SetError records the error and stage and transitions to StateAborted.
func (rc *RunContext) SetError(err error, stage string) {
	rc.LastError = err
	rc.ErrorStage = stage
	rc.CurrentState = StateAborted
	rc.EndTime = time.Now()
	rc.StateStartTimes[StateAborted] = rc.EndTime
}

// SetCancelled records a cancellation and transitions to StateAborted.
func (rc *RunContext) SetCancelled(err error, stage string) {
	rc.SetError(NewCancelledError(stage, err), stage)
}

// Complete marks the run as complete and sets the end time.
func (rc *RunContext) Complete() {
	rc.CurrentState = StateComplete
	rc.EndTime = time.Now()
	rc.StateStartTimes[StateComplete] = rc.EndTime
}

// GetTotalDuration returns the total duration of the run so far.
func (rc *RunContext) GetTotalDuration() time.Duration {
	if rc.IsTerminal() && !rc.EndTime.IsZero() {
		return rc.EndTime.Sub(rc.StartTime)
	}
	return time.Since(rc.StartTime)
}

// StateTransition defines a transition function for the state machine.
type StateTransition func(ctx context.Context, eventBus eventbus.EventBus, run *RunContext) (RunState, error)

// StateMachine represents a finite state machine for run execution.
type StateMachine struct {
	transitions map[RunState]StateTransition
	eventBus    eventbus.EventBus
}

// NewStateMachine creates a new state machine with the provided event bus.
func NewStateMachine(eventBus eventbus.EventBus) *StateMachine {
	return &StateMachine{
		transitions: make(map[RunState]StateTransition),
		eventBus:    eventBus,
	}
}

// RegisterTransition registers a state transition function.
func (sm *StateMachine) RegisterTransition(state RunState, transition StateTransition) {
	sm.transitions[state] = transition
}

// Execute runs the state machine until a terminal state is reached.
// Cancellation is checked cooperatively before every transition.
func (sm *StateMachine) Execute(ctx context.Context, run *RunContext) (string, error) {
	for !run.IsTerminal() {
		select {
		case <-ctx.Done():
			err := ctx.Err()
			run.SetCancelled(err, string(run.CurrentState))
			return run.FinalAnswer, err
		default:
		}

		transition, exists := sm.transitions[run.CurrentState]
		if !exists {
			err := fmt.Errorf("no transition defined for state: %s", run.CurrentState)
			run.SetError(err, string(run.CurrentState))
			return run.FinalAnswer, err
		}

		nextState, err := transition(ctx, sm.eventBus, run)
		if err != nil {
			currentStage := string(run.CurrentState)
			if err == context.Canceled || err == context.DeadlineExceeded {
				run.SetCancelled(err, currentStage)
			} else if !run.IsTerminal() {
				run.SetError(err, currentStage)
			}
			continue
		}

		if !run.IsTerminal() {
			run.CurrentState = nextState
			run.StateStartTimes[nextState] = time.Now()
			if nextState == StateComplete || nextState == StateAborted {
				run.EndTime = time.Now()
			}
		}
	}

	return run.FinalAnswer, run.LastError
}

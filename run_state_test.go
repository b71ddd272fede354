package chatweave

import (
	"context"
	"errors"
	"testing"

	"github.com/ZanzyTHEbar/chatweave-genkit/internal/eventbus"
)

func TestRunContextPushPopState(t *testing.T) {
	run := NewRunContext(ChatRequest{Query: "q"})

	if run.CurrentState != StateInit {
		t.Fatalf("expected init state, got %s", run.CurrentState)
	}

	run.PushState(StatePlanning)
	run.PushState(StateExecuting)
	if run.CurrentState != StateExecuting {
		t.Errorf("expected executing, got %s", run.CurrentState)
	}

	if !run.PopState() {
		t.Fatal("expected pop to succeed")
	}
	if run.CurrentState != StatePlanning {
		t.Errorf("expected planning after pop, got %s", run.CurrentState)
	}

	if !run.PopState() {
		t.Fatal("expected pop to succeed")
	}
	if run.CurrentState != StateInit {
		t.Errorf("expected init after pop, got %s", run.CurrentState)
	}

	if run.PopState() {
		t.Error("pop on an empty stack must fail")
	}
}

func TestRunContextTerminalStates(t *testing.T) {
	run := NewRunContext(ChatRequest{})
	if run.IsTerminal() {
		t.Error("fresh run must not be terminal")
	}

	run.Complete()
	if !run.IsTerminal() || run.CurrentState != StateComplete {
		t.Errorf("expected complete terminal state, got %s", run.CurrentState)
	}
	if run.EndTime.IsZero() {
		t.Error("expected end time to be set")
	}
}

func TestRunContextSetError(t *testing.T) {
	run := NewRunContext(ChatRequest{})
	cause := errors.New("boom")

	run.SetError(cause, "planning")

	if run.CurrentState != StateAborted {
		t.Errorf("expected aborted state, got %s", run.CurrentState)
	}
	if run.LastError != cause || run.ErrorStage != "planning" {
		t.Errorf("error not recorded: %v / %s", run.LastError, run.ErrorStage)
	}
}

func TestRunContextSetCancelled(t *testing.T) {
	run := NewRunContext(ChatRequest{})

	run.SetCancelled(context.Canceled, "executing")

	if run.CurrentState != StateAborted {
		t.Errorf("expected aborted state, got %s", run.CurrentState)
	}
	if !errors.Is(run.LastError, context.Canceled) {
		t.Errorf("expected wrapped context.Canceled, got %v", run.LastError)
	}

	var cwErr *ChatWeaveError
	if !errors.As(run.LastError, &cwErr) || cwErr.Code != ErrCodeCancelled {
		t.Errorf("expected cancelled error code, got %v", run.LastError)
	}
}

func TestStateMachineExecuteHappyPath(t *testing.T) {
	sm := NewStateMachine(nil)

	var visited []RunState
	sm.RegisterTransition(StateInit, func(ctx context.Context, eb eventbus.EventBus, run *RunContext) (RunState, error) {
		visited = append(visited, StateInit)
		return StatePlanning, nil
	})
	sm.RegisterTransition(StatePlanning, func(ctx context.Context, eb eventbus.EventBus, run *RunContext) (RunState, error) {
		visited = append(visited, StatePlanning)
		run.FinalAnswer = "done"
		return StateComplete, nil
	})

	run := NewRunContext(ChatRequest{Query: "q"})
	answer, err := sm.Execute(context.Background(), run)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if answer != "done" {
		t.Errorf("unexpected answer: %q", answer)
	}
	if run.CurrentState != StateComplete {
		t.Errorf("expected complete state, got %s", run.CurrentState)
	}
	if len(visited) != 2 || visited[0] != StateInit || visited[1] != StatePlanning {
		t.Errorf("unexpected transition order: %v", visited)
	}
}

func TestStateMachineMissingTransitionAborts(t *testing.T) {
	sm := NewStateMachine(nil)
	sm.RegisterTransition(StateInit, func(ctx context.Context, eb eventbus.EventBus, run *RunContext) (RunState, error) {
		return StatePlanning, nil
	})

	run := NewRunContext(ChatRequest{})
	_, err := sm.Execute(context.Background(), run)
	if err == nil {
		t.Fatal("expected error for missing transition")
	}
	if run.CurrentState != StateAborted {
		t.Errorf("expected aborted state, got %s", run.CurrentState)
	}
	if run.ErrorStage != string(StatePlanning) {
		t.Errorf("expected failure recorded at planning, got %s", run.ErrorStage)
	}
}

func TestStateMachineTransitionErrorAborts(t *testing.T) {
	sm := NewStateMachine(nil)
	cause := errors.New("planner exploded")
	sm.RegisterTransition(StateInit, func(ctx context.Context, eb eventbus.EventBus, run *RunContext) (RunState, error) {
		return StateAborted, cause
	})

	run := NewRunContext(ChatRequest{})
	_, err := sm.Execute(context.Background(), run)
	if !errors.Is(err, cause) {
		t.Errorf("expected transition error, got %v", err)
	}
	if run.CurrentState != StateAborted {
		t.Errorf("expected aborted state, got %s", run.CurrentState)
	}
}

func TestStateMachineCancelledBeforeTransition(t *testing.T) {
	sm := NewStateMachine(nil)
	called := false
	sm.RegisterTransition(StateInit, func(ctx context.Context, eb eventbus.EventBus, run *RunContext) (RunState, error) {
		called = true
		return StateComplete, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run := NewRunContext(ChatRequest{})
	_, err := sm.Execute(ctx, run)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if called {
		t.Error("no transition should run after cancellation")
	}
	if run.CurrentState != StateAborted {
		t.Errorf("expected aborted state, got %s", run.CurrentState)
	}
}

func TestStateMachineCancellationDuringTransition(t *testing.T) {
	sm := NewStateMachine(nil)
	sm.RegisterTransition(StateInit, func(ctx context.Context, eb eventbus.EventBus, run *RunContext) (RunState, error) {
		return StateInit, context.Canceled
	})

	run := NewRunContext(ChatRequest{})
	_, err := sm.Execute(context.Background(), run)
	if err == nil {
		t.Fatal("expected error")
	}

	var cwErr *ChatWeaveError
	if !errors.As(run.LastError, &cwErr) || cwErr.Code != ErrCodeCancelled {
		t.Errorf("expected cancellation to be recorded, got %v", run.LastError)
	}
}

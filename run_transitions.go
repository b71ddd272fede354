package chatweave

import (
	"context"
	"log/slog"
	"time"

	"github.com/ZanzyTHEbar/chatweave-genkit/internal/eventbus"
)

// RunComponents holds references to the components needed by the state
// transitions of one run. The Emitter is per-run: streaming runs carry a
// frame-producing emitter, plain runs a NopEmitter.
type RunComponents struct {
	Planner  Planner
	Executor Executor
	Emitter  Emitter
	Logger   *slog.Logger
	Config   Config

	// ListTools fetches the tool descriptors available this run.
	ListTools func(ctx context.Context) ([]ToolDescriptor, error)

	// LoadHistory replays prior turns of the conversation.
	LoadHistory func(ctx context.Context, conversationID string) ([]Message, error)
}

// CreateRunStateMachine builds a complete state machine for the run workflow.
func CreateRunStateMachine(components RunComponents, eventBus eventbus.EventBus) *StateMachine {
	sm := NewStateMachine(eventBus)

	sm.RegisterTransition(StateInit, createInitTransition(components))
	sm.RegisterTransition(StatePlanning, createPlanningTransition(components))
	sm.RegisterTransition(StateMessaging, createMessagingTransition(components))
	sm.RegisterTransition(StateErrorReporting, createErrorReportingTransition(components))
	sm.RegisterTransition(StateExecuting, createExecutingTransition(components))
	sm.RegisterTransition(StateComplete, createCompleteTransition(components))
	sm.RegisterTransition(StateAborted, createAbortedTransition(components))

	return sm
}

// createInitTransition gathers the session inputs: tool descriptors and
// conversation history.
func createInitTransition(components RunComponents) StateTransition {
	return func(ctx context.Context, eb eventbus.EventBus, run *RunContext) (RunState, error) {
		if eb != nil {
			startEvent := eventbus.NewEvent(
				eventbus.EventRunStarted,
				run.Request.Query,
				"StateMachine.Init",
				map[string]interface{}{
					"conversation_id": run.Request.ConversationID,
					"timestamp":       time.Now().Format(time.RFC3339),
				},
			)
			eb.Publish(ctx, startEvent)
		}

		tools, err := components.ListTools(ctx)
		if err != nil {
			return StateAborted, NewInternalError("init", "failed to list tools", err)
		}
		run.Tools = tools

		if components.LoadHistory != nil && run.Request.ConversationID != "" {
			history, err := components.LoadHistory(ctx, run.Request.ConversationID)
			if err != nil {
				// History is best effort; a fresh conversation still works.
				components.Logger.Warn("failed to load conversation history",
					"conversation_id", run.Request.ConversationID,
					"error", err)
			} else {
				run.History = history
			}
		}

		return StatePlanning, nil
	}
}

// createPlanningTransition asks the planner for a plan and branches on
// its variant.
func createPlanningTransition(components RunComponents) StateTransition {
	return func(ctx context.Context, eb eventbus.EventBus, run *RunContext) (RunState, error) {
		if eb != nil {
			planStartEvent := eventbus.NewEvent(
				eventbus.EventPlanGenerationStarted,
				run.Request.Query,
				"StateMachine.Planning",
				nil,
			)
			eb.Publish(ctx, planStartEvent)
		}

		plan, err := components.Planner.GeneratePlan(ctx, PlannerInput{
			Query:    run.Request.Query,
			Username: run.Request.Username,
			History:  run.History,
			Tools:    run.Tools,
		})
		if err != nil {
			if eb != nil {
				failEvent := eventbus.NewEvent(
					eventbus.EventPlanGenerationFailure,
					err.Error(),
					"StateMachine.Planning",
					map[string]interface{}{"error": err.Error()},
				)
				eb.Publish(ctx, failEvent)
			}
			return StateAborted, NewPlanGenerationError(err)
		}

		run.Plan = plan

		if eb != nil {
			planSuccessEvent := eventbus.NewEvent(
				eventbus.EventPlanGenerationSuccess,
				plan,
				"StateMachine.Planning",
				map[string]interface{}{
					"kind":       string(plan.Kind),
					"step_count": len(plan.Steps),
				},
			)
			eb.Publish(ctx, planSuccessEvent)
		}

		switch plan.Kind {
		case PlanMessage:
			return StateMessaging, nil
		case PlanError:
			return StateErrorReporting, nil
		case PlanSteps:
			return StateExecuting, nil
		default:
			return StateAborted, NewInternalError("planning", "unknown plan kind", nil)
		}
	}
}

// createMessagingTransition handles a direct model reply.
func createMessagingTransition(components RunComponents) StateTransition {
	return func(ctx context.Context, eb eventbus.EventBus, run *RunContext) (RunState, error) {
		message := run.Plan.Message

		if err := components.Emitter.Emit(ctx, ExecutionEvent{
			Kind: EventMessage,
			Text: message,
		}); err != nil {
			return StateAborted, NewEmissionError("messaging", err)
		}

		run.Transcript.Append(message)
		run.Transcript.AppendSummary(message)
		run.FinalAnswer = message

		if eb != nil {
			emittedEvent := eventbus.NewEvent(
				eventbus.EventMessageEmitted,
				message,
				"StateMachine.Messaging",
				map[string]interface{}{"length": len(message)},
			)
			eb.Publish(ctx, emittedEvent)
		}

		return StateComplete, nil
	}
}

// createErrorReportingTransition surfaces a model-declared error. The
// run still completes; the negative outcome is recorded for the caller
// and the persistence layer.
func createErrorReportingTransition(components RunComponents) StateTransition {
	return func(ctx context.Context, eb eventbus.EventBus, run *RunContext) (RunState, error) {
		reason := run.Plan.Reason

		if err := components.Emitter.Emit(ctx, ExecutionEvent{
			Kind: EventRunFailed,
			Text: reason,
		}); err != nil {
			return StateAborted, NewEmissionError("error_reporting", err)
		}

		run.ReportedError = reason
		run.Transcript.Append("Error: " + reason)
		run.Transcript.AppendSummary("Error: " + reason)
		run.FinalAnswer = reason

		if eb != nil {
			modelErrEvent := eventbus.NewEvent(
				eventbus.EventModelError,
				reason,
				"StateMachine.ErrorReporting",
				nil,
			)
			eb.Publish(ctx, modelErrEvent)
		}

		return StateComplete, nil
	}
}

// createExecutingTransition announces the plan and runs its steps.
func createExecutingTransition(components RunComponents) StateTransition {
	return func(ctx context.Context, eb eventbus.EventBus, run *RunContext) (RunState, error) {
		if err := components.Emitter.Emit(ctx, ExecutionEvent{
			Kind:  EventPlanAnnounced,
			Steps: run.Plan.Steps,
		}); err != nil {
			return StateAborted, NewEmissionError("executing", err)
		}

		if eb != nil {
			execStartEvent := eventbus.NewEvent(
				eventbus.EventPlanExecutionStarted,
				run.Plan,
				"StateMachine.Executing",
				map[string]interface{}{"step_count": len(run.Plan.Steps)},
			)
			eb.Publish(ctx, execStartEvent)
		}

		if err := components.Executor.ExecutePlan(ctx, run, components.Emitter); err != nil {
			if eb != nil {
				execFailEvent := eventbus.NewEvent(
					eventbus.EventPlanExecutionFailure,
					err.Error(),
					"StateMachine.Executing",
					map[string]interface{}{"error": err.Error()},
				)
				eb.Publish(ctx, execFailEvent)
			}
			return StateAborted, err
		}

		run.FinalAnswer = run.Transcript.Join()

		if err := components.Emitter.Emit(ctx, ExecutionEvent{
			Kind: EventRunCompleted,
			Text: run.FinalAnswer,
		}); err != nil {
			return StateAborted, NewEmissionError("executing", err)
		}

		if eb != nil {
			execSuccessEvent := eventbus.NewEvent(
				eventbus.EventPlanExecutionSuccess,
				run.FinalAnswer,
				"StateMachine.Executing",
				map[string]interface{}{
					"result_count": run.Results.Len(),
				},
			)
			eb.Publish(ctx, execSuccessEvent)
		}

		return StateComplete, nil
	}
}

// createCompleteTransition handles the complete state.
func createCompleteTransition(_ RunComponents) StateTransition {
	return func(ctx context.Context, eb eventbus.EventBus, run *RunContext) (RunState, error) {
		// Terminal state. Execute handles returning the final result.
		return StateComplete, nil
	}
}

// createAbortedTransition handles the aborted state.
func createAbortedTransition(_ RunComponents) StateTransition {
	return func(ctx context.Context, eb eventbus.EventBus, run *RunContext) (RunState, error) {
		// Terminal state. The error is already recorded in the run context.
		return StateAborted, run.LastError
	}
}

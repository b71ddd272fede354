package chatweave

import (
	"context"
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/chatweave-genkit/internal/eventbus"
	"github.com/google/uuid"
)

// AsyncRunStatus represents the status information for an async run.
type AsyncRunStatus struct {
	RunID        string        `json:"run_id"`
	Query        string        `json:"query"`
	CurrentState RunState      `json:"current_state"`
	StartTime    time.Time     `json:"start_time"`
	Duration     time.Duration `json:"duration"`
	IsComplete   bool          `json:"is_complete"`
	HasError     bool          `json:"has_error"`
	ErrorMessage string        `json:"error_message,omitempty"`
	ErrorStage   string        `json:"error_stage,omitempty"`
}

// ProcessAsync starts an asynchronous run for the given request.
// It returns a unique run ID that can be used to check the status or
// fetch the result. The run itself follows the same flow as Process,
// including the single terminal persistence call.
func (c *ChatWeave) ProcessAsync(ctx context.Context, req ChatRequest) (string, error) {
	runID := uuid.New().String()

	stateMachine := c.createStateMachine(NopEmitter{})
	run := NewRunContext(req)

	c.asyncRunsMutex.Lock()
	c.asyncRuns[runID] = run
	c.asyncRunsMutex.Unlock()

	// The run outlives the caller's request context.
	asyncCtx, cancel := context.WithCancel(context.Background())
	run.StateData["cancel"] = cancel

	if c.config.EnableEventBus && c.eventBus != nil {
		startEvent := eventbus.NewEvent(
			eventbus.EventRunAsyncStarted,
			req.Query,
			"ChatWeave.ProcessAsync",
			map[string]interface{}{
				"timestamp": time.Now().Format(time.RFC3339),
				"run_id":    runID,
			},
		)
		c.eventBus.Publish(ctx, startEvent)
	}

	c.asyncPool.Go(func() {
		defer cancel()

		_, err := stateMachine.Execute(asyncCtx, run)

		if persistErr := c.persistRun(context.Background(), run); persistErr != nil {
			c.logger.Error("failed to persist async run transcript",
				"run_id", runID,
				"error", persistErr)
		}

		c.asyncRunsMutex.Lock()
		if stored, exists := c.asyncRuns[runID]; exists {
			stored.FinalAnswer = run.Transcript.Join()
			if err != nil && !stored.IsTerminal() {
				stored.SetError(err, string(stored.CurrentState))
			}
		}
		c.asyncRunsMutex.Unlock()

		if c.config.EnableEventBus && c.eventBus != nil {
			eventType := eventbus.EventRunAsyncSuccess
			metadata := map[string]interface{}{
				"run_id":      runID,
				"duration_ms": run.GetTotalDuration().Milliseconds(),
			}

			if err != nil {
				eventType = eventbus.EventRunAsyncFailure
				metadata["error"] = err.Error()
				metadata["error_stage"] = run.ErrorStage
			}

			completionEvent := eventbus.NewEvent(
				eventType,
				req.Query,
				"ChatWeave.ProcessAsync",
				metadata,
			)
			// Use a background context since the original may be done.
			c.eventBus.Publish(context.Background(), completionEvent)
		}
	})

	return runID, nil
}

// GetAsyncStatus retrieves the current status of an async run.
func (c *ChatWeave) GetAsyncStatus(runID string) (*AsyncRunStatus, error) {
	c.asyncRunsMutex.RLock()
	defer c.asyncRunsMutex.RUnlock()

	run, exists := c.asyncRuns[runID]
	if !exists {
		return nil, fmt.Errorf("run with ID '%s' not found", runID)
	}

	status := &AsyncRunStatus{
		RunID:        runID,
		Query:        run.Request.Query,
		CurrentState: run.CurrentState,
		StartTime:    run.StartTime,
		Duration:     run.GetTotalDuration(),
		IsComplete:   run.CurrentState == StateComplete,
		HasError:     run.CurrentState == StateAborted,
	}

	if run.LastError != nil {
		status.ErrorMessage = run.LastError.Error()
		status.ErrorStage = run.ErrorStage
	}

	return status, nil
}

// GetAsyncResult retrieves the result of a completed async run.
// Returns an error if the run is not complete or was aborted.
func (c *ChatWeave) GetAsyncResult(runID string) (string, error) {
	c.asyncRunsMutex.RLock()
	defer c.asyncRunsMutex.RUnlock()

	run, exists := c.asyncRuns[runID]
	if !exists {
		return "", fmt.Errorf("run with ID '%s' not found", runID)
	}

	if run.CurrentState != StateComplete {
		if run.CurrentState == StateAborted {
			return "", fmt.Errorf("run aborted during stage '%s': %w", run.ErrorStage, run.LastError)
		}
		return "", fmt.Errorf("run is still in progress (current state: %s)", run.CurrentState)
	}

	return run.FinalAnswer, nil
}

// CancelAsyncRun cancels an ongoing async run.
// Returns true if the run was cancelled, false if it was already terminal.
func (c *ChatWeave) CancelAsyncRun(runID string) (bool, error) {
	c.asyncRunsMutex.Lock()
	defer c.asyncRunsMutex.Unlock()

	run, exists := c.asyncRuns[runID]
	if !exists {
		return false, fmt.Errorf("run with ID '%s' not found", runID)
	}

	if run.IsTerminal() {
		return false, nil
	}

	cancelFn, ok := run.StateData["cancel"].(context.CancelFunc)
	if !ok {
		return false, fmt.Errorf("cannot cancel run: cancel function not found")
	}
	cancelFn()

	if c.config.EnableEventBus && c.eventBus != nil {
		cancelEvent := eventbus.NewEvent(
			eventbus.EventRunAsyncCancelled,
			run.Request.Query,
			"ChatWeave.CancelAsyncRun",
			map[string]interface{}{
				"run_id":      runID,
				"duration_ms": run.GetTotalDuration().Milliseconds(),
			},
		)
		c.eventBus.Publish(context.Background(), cancelEvent)
	}

	return true, nil
}

// ListAsyncRuns returns a list of all async run IDs and their current states.
func (c *ChatWeave) ListAsyncRuns() map[string]string {
	c.asyncRunsMutex.RLock()
	defer c.asyncRunsMutex.RUnlock()

	result := make(map[string]string)
	for id, run := range c.asyncRuns {
		result[id] = string(run.CurrentState)
	}

	return result
}

// CleanupCompletedRuns removes terminal runs older than the specified
// duration. This keeps the registry from growing without bound.
func (c *ChatWeave) CleanupCompletedRuns(olderThan time.Duration) int {
	c.asyncRunsMutex.Lock()
	defer c.asyncRunsMutex.Unlock()

	now := time.Now()
	count := 0

	for id, run := range c.asyncRuns {
		if run.IsTerminal() && now.Sub(run.StateStartTimes[run.CurrentState]) > olderThan {
			delete(c.asyncRuns, id)
			count++
		}
	}

	return count
}

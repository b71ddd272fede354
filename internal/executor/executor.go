// Package executor runs plan steps sequentially against the tool host.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	chatweave "github.com/ZanzyTHEbar/chatweave-genkit"
)

// Executor drives the steps of a plan in ascending order. Later steps
// may consume earlier results through the run's result store, so steps
// are never parallelized within one plan.
type Executor struct {
	host    chatweave.ToolHost
	logger  *slog.Logger
	metrics *Metrics

	// requiresContent names the tools for which an empty content list is
	// a fatal "not found" condition rather than an empty result.
	requiresContent map[string]struct{}
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithRequiredContent marks tools whose empty results abort the run.
func WithRequiredContent(names ...string) Option {
	return func(e *Executor) {
		for _, name := range names {
			e.requiresContent[name] = struct{}{}
		}
	}
}

// New creates an Executor backed by the given tool host.
func New(host chatweave.ToolHost, options ...Option) *Executor {
	e := &Executor{
		host:    host,
		logger:  slog.New(slog.DiscardHandler),
		metrics: &Metrics{},
		requiresContent: map[string]struct{}{
			"read_file": {},
		},
	}

	for _, option := range options {
		option(e)
	}

	return e
}

// Metrics returns a copy of the executor's metrics.
func (e *Executor) Metrics() Metrics {
	return e.metrics.Copy()
}

// ExecutePlan implements chatweave.Executor. Steps run strictly in plan
// order. A transport error, a tool-reported error, or an empty result
// from a lookup tool aborts the remaining steps; the transcript keeps
// whatever was accumulated so far. Cancellation and client disconnects
// are observed at step boundaries, never mid-call.
func (e *Executor) ExecutePlan(ctx context.Context, run *chatweave.RunContext, emitter chatweave.Emitter) error {
	descriptors := make(map[string]chatweave.ToolDescriptor, len(run.Tools))
	for _, d := range run.Tools {
		descriptors[d.Name] = d
	}

	for i := range run.Plan.Steps {
		step := &run.Plan.Steps[i]

		select {
		case <-ctx.Done():
			return chatweave.NewCancelledError("executing", ctx.Err())
		default:
		}

		resolved := ResolveArguments(step.Args, run.Results)
		display := renderDisplay(descriptors[step.Name].DisplayTemplate, step, resolved)

		if err := emitter.Emit(ctx, chatweave.ExecutionEvent{
			Kind:    chatweave.EventStepStarted,
			Step:    step,
			Display: display,
		}); err != nil {
			return chatweave.NewEmissionError("executing", err)
		}

		e.logger.Debug("executing step",
			"tool", step.Name,
			"order", step.Order)

		started := time.Now()
		result, err := e.host.CallTool(ctx, step.Name, resolved)
		failed := err != nil || (result != nil && result.IsError)
		e.metrics.RecordStep(time.Since(started), failed)

		if err != nil {
			return e.failStep(ctx, emitter, run, step,
				chatweave.NewToolExecutionError("executing", step.Name, err))
		}

		if result.IsError {
			reason := result.FirstText()
			if reason == "" {
				reason = "tool reported an error"
			}
			return e.failStep(ctx, emitter, run, step,
				chatweave.NewToolExecutionError("executing", step.Name, errors.New(reason)))
		}

		if len(result.Content) == 0 && e.contentRequired(step.Name) {
			return e.failStep(ctx, emitter, run, step,
				chatweave.NewEmptyContentError("executing", step.Name))
		}

		text := result.FirstText()
		run.Results.Put(step.Name, text)
		run.Transcript.Append(text)
		run.Transcript.AppendSummary(fmt.Sprintf("%s (step %d): %s", step.Name, step.Order, condense(text)))

		if err := emitter.Emit(ctx, chatweave.ExecutionEvent{
			Kind: chatweave.EventStepSucceeded,
			Step: step,
			Text: text,
		}); err != nil {
			return chatweave.NewEmissionError("executing", err)
		}
	}

	return nil
}

// failStep records a step failure in the transcript, emits the failure
// events, and returns the error that aborts the run. Emission at this
// point is best effort.
func (e *Executor) failStep(ctx context.Context, emitter chatweave.Emitter, run *chatweave.RunContext, step *chatweave.PlanStep, cause error) error {
	reason := fmt.Sprintf("Step %d (`%s`) failed: %v", step.Order, step.Name, cause)

	run.Transcript.Append(reason)
	run.Transcript.AppendSummary(reason)

	e.logger.Warn("step failed",
		"tool", step.Name,
		"order", step.Order,
		"error", cause)

	_ = emitter.Emit(ctx, chatweave.ExecutionEvent{
		Kind: chatweave.EventStepFailed,
		Step: step,
		Text: reason,
	})
	_ = emitter.Emit(ctx, chatweave.ExecutionEvent{
		Kind: chatweave.EventRunFailed,
		Text: reason,
	})

	return cause
}

// contentRequired reports whether an empty content list from the named
// tool is fatal. Search-style tools always require content.
func (e *Executor) contentRequired(name string) bool {
	if _, ok := e.requiresContent[name]; ok {
		return true
	}
	return strings.HasPrefix(name, "search")
}

// renderDisplay fills {param} placeholders in a tool's display template
// with the step's resolved arguments. Placeholders without a matching
// argument are left verbatim.
func renderDisplay(template string, step *chatweave.PlanStep, args map[string]any) string {
	if template == "" {
		return fmt.Sprintf("⚙️ Executing `%s` (Step %d)...", step.Name, step.Order)
	}
	out := template
	for name, value := range args {
		out = strings.ReplaceAll(out, "{"+name+"}", fmt.Sprintf("%v", value))
	}
	return out
}

// condense collapses a result to a single short line for the summary.
func condense(text string) string {
	flat := strings.Join(strings.Fields(text), " ")
	if len(flat) > 120 {
		return flat[:120] + "…"
	}
	return flat
}

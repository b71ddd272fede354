// Package stream renders execution events into ordered content frames.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	chatweave "github.com/ZanzyTHEbar/chatweave-genkit"
)

// wordPattern splits text into word-sized chunks, each keeping its
// leading whitespace so concatenation reconstructs the original text.
var wordPattern = regexp.MustCompile(`\s*\S+`)

// Emitter converts execution events into frames on a sink. Frames are
// delivered strictly in event order; step result text is chunked into
// word-sized pieces with a small inter-frame delay to simulate
// incremental delivery. A sink failure or context cancellation stops
// emission; the executor observes it at the next step boundary.
type Emitter struct {
	sink   chatweave.FrameSink
	delay  time.Duration
	logger *slog.Logger
}

// Option configures an Emitter.
type Option func(*Emitter)

// WithChunkDelay sets the pacing delay between word chunks. Zero
// disables pacing.
func WithChunkDelay(delay time.Duration) Option {
	return func(e *Emitter) {
		e.delay = delay
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Emitter) {
		e.logger = logger
	}
}

// New creates an emitter writing to the given sink.
func New(sink chatweave.FrameSink, options ...Option) *Emitter {
	e := &Emitter{
		sink:   sink,
		delay:  50 * time.Millisecond,
		logger: slog.New(slog.DiscardHandler),
	}

	for _, option := range options {
		option(e)
	}

	return e
}

// Emit implements chatweave.Emitter.
func (e *Emitter) Emit(ctx context.Context, event chatweave.ExecutionEvent) error {
	switch event.Kind {
	case chatweave.EventPlanAnnounced:
		return e.announcePlan(ctx, event.Steps)
	case chatweave.EventMessage:
		// A direct reply is exactly one frame.
		return e.send(ctx, event.Text)
	case chatweave.EventStepStarted:
		if err := e.send(ctx, event.Display); err != nil {
			return err
		}
		return e.send(ctx, "\n\n")
	case chatweave.EventStepSucceeded:
		if err := e.streamText(ctx, event.Text); err != nil {
			return err
		}
		return e.send(ctx, "\n\n")
	case chatweave.EventStepFailed:
		return e.send(ctx, "❌ "+event.Text)
	case chatweave.EventRunFailed:
		return e.send(ctx, event.Text)
	case chatweave.EventRunCompleted:
		// Final frame: empty content marks the end of the stream.
		return e.send(ctx, "")
	default:
		e.logger.Warn("unknown execution event", "kind", string(event.Kind))
		return nil
	}
}

// announcePlan renders one frame per planned step plus the execution
// banner. Argument keys are sorted so announce frames are deterministic.
func (e *Emitter) announcePlan(ctx context.Context, steps []chatweave.PlanStep) error {
	for _, step := range steps {
		if err := e.send(ctx, fmt.Sprintf("🔧 Step %d: `%s` → Params: %s", step.Order, step.Name, formatParams(step.Args))); err != nil {
			return err
		}
		if err := e.send(ctx, "\n\n"); err != nil {
			return err
		}
	}

	if err := e.send(ctx, "🚀 Executing tools now... Please wait."); err != nil {
		return err
	}
	return e.send(ctx, "\n\n")
}

// streamText delivers text as word-sized frames with pacing.
func (e *Emitter) streamText(ctx context.Context, text string) error {
	chunks := wordPattern.FindAllString(text, -1)

	for i, chunk := range chunks {
		if i > 0 && e.delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(e.delay):
			}
		}
		if err := e.send(ctx, chunk); err != nil {
			return err
		}
	}

	return nil
}

func (e *Emitter) send(ctx context.Context, content string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	return e.sink.Send(ctx, chatweave.Frame{Content: content})
}

func formatParams(args map[string]any) string {
	if len(args) == 0 {
		return "none"
	}

	keys := make([]string, 0, len(args))
	for key := range args {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%v", key, args[key]))
	}
	return strings.Join(pairs, ", ")
}

// Package agent drives a model through a turn-based conversation,
// executing the tools it asks for until it answers without requesting
// any, or the iteration cap cuts it off.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/emberhq/ember/backend/agent/extract"
	"github.com/emberhq/ember/backend/event"
	"github.com/emberhq/ember/backend/model"
	"github.com/emberhq/ember/backend/tool"
	"github.com/emberhq/ember/shared"
)

const DefaultMaxIterations = 20

// Recorder persists messages as the conversation grows. Recording
// failures are logged, not fatal; losing the transcript should not kill
// the run.
type Recorder interface {
	Record(msg model.Message) error
}

// RecorderFactory builds a Recorder keyed by the session it will record,
// so transcript files carry the same ID as the run's events and logs.
type RecorderFactory func(sessionID uuid.UUID) (Recorder, error)

type LoopOptions struct {
	MaxIterations int
	Recorder      Recorder
	RecorderFor   RecorderFactory
	Bus           *event.Bus
	Logger        *slog.Logger
}

type LoopOption func(*LoopOptions)

func WithMaxIterations(n int) LoopOption {
	return func(o *LoopOptions) {
		o.MaxIterations = n
	}
}

func WithRecorder(r Recorder) LoopOption {
	return func(o *LoopOptions) {
		o.Recorder = r
	}
}

// WithRecorderFactory builds a fresh recorder for every session. Used
// where one Loop serves many runs, each needing its own transcript.
func WithRecorderFactory(f RecorderFactory) LoopOption {
	return func(o *LoopOptions) {
		o.RecorderFor = f
	}
}

func WithBus(bus *event.Bus) LoopOption {
	return func(o *LoopOptions) {
		o.Bus = bus
	}
}

func WithLogger(logger *slog.Logger) LoopOption {
	return func(o *LoopOptions) {
		o.Logger = logger
	}
}

// Loop owns no mutable state across runs; each Run gets its own history
// and iteration counter, so independent runs can execute concurrently.
type Loop struct {
	provider  model.ChatProvider
	modelName string
	registry  *tool.Registry
	extractor *extract.Extractor
	options   *LoopOptions
}

func NewLoop(provider model.ChatProvider, modelName string, registry *tool.Registry, opts ...LoopOption) *Loop {
	options := &LoopOptions{
		MaxIterations: DefaultMaxIterations,
		Logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Loop{
		provider:  provider,
		modelName: modelName,
		registry:  registry,
		extractor: extract.NewExtractor(),
		options:   options,
	}
}

// Run executes one session under a fresh session ID.
func (l *Loop) Run(ctx context.Context, prompt string) (*RunResult, error) {
	return l.RunSession(ctx, uuid.New(), prompt)
}

// RunSession executes one session under the given ID, so callers that
// key transcripts or logs by session can correlate them with the run.
// It returns a result for both completion and truncation; only transport
// failures (a chat call that errors out) return an error, with the
// partial history lost to the caller but the transcript already flushed
// by the recorder.
func (l *Loop) RunSession(ctx context.Context, sessionID uuid.UUID, prompt string) (*RunResult, error) {
	logger := l.options.Logger.With("session_id", sessionID)
	recorder := l.recorder(logger, sessionID)

	history := []model.Message{
		model.SystemMessage(SystemPrompt(l.registry)),
		model.UserMessage(prompt),
	}
	for _, msg := range history {
		l.record(logger, recorder, msg)
	}

	l.publish(event.RunStarted{SessionID: sessionID, Model: l.modelName, Prompt: prompt})

	var lastContent string
	for iteration := 1; iteration <= l.options.MaxIterations; iteration++ {
		reply, err := l.provider.Chat(ctx, l.modelName, history)
		if err != nil {
			l.publish(event.RunFinished{SessionID: sessionID, Iterations: iteration - 1, Outcome: "error", Err: err})
			return nil, shared.Wrap(shared.ErrorSourceTransport, "chat completion failed", err)
		}

		history = append(history, *reply)
		l.record(logger, recorder, *reply)
		lastContent = reply.Content

		calls := l.extractor.Extract(reply.Content)
		l.publish(event.TurnCompleted{
			SessionID: sessionID,
			Iteration: iteration,
			ToolCalls: len(calls),
			Content:   reply.Content,
		})
		logger.Debug("turn completed", "iteration", iteration, "tool_calls", len(calls))

		if len(calls) == 0 {
			result := &RunResult{
				SessionID:   sessionID,
				Outcome:     OutcomeDone,
				FinalAnswer: model.StripThinking(reply.Content),
				History:     history,
				Iterations:  iteration,
			}
			l.publish(event.RunFinished{SessionID: sessionID, Iterations: iteration, Outcome: string(OutcomeDone)})
			return result, nil
		}

		summary := l.dispatch(ctx, logger, recorder, sessionID, iteration, calls, &history)

		followup := model.UserMessage(fmt.Sprintf(
			"Tool results:\n\n%s\n\nContinue with your task. If complete, provide your final answer without tool blocks.",
			summary))
		history = append(history, followup)
		l.record(logger, recorder, followup)
	}

	result := &RunResult{
		SessionID:   sessionID,
		Outcome:     OutcomeTruncated,
		FinalAnswer: model.StripThinking(lastContent),
		History:     history,
		Iterations:  l.options.MaxIterations,
	}
	l.publish(event.RunFinished{SessionID: sessionID, Iterations: l.options.MaxIterations, Outcome: string(OutcomeTruncated)})
	return result, nil
}

// dispatch executes the extracted calls strictly in order, one at a time,
// and returns the joined result summary for the follow-up message.
func (l *Loop) dispatch(ctx context.Context, logger *slog.Logger, recorder Recorder, sessionID uuid.UUID, iteration int, calls []extract.ToolCall, history *[]model.Message) string {
	results := make([]string, 0, len(calls))
	for _, call := range calls {
		start := time.Now()
		result, err := l.registry.Execute(ctx, call.Name, call.Arguments)
		if err != nil {
			// An unregistered name goes back to the model as text so it
			// can correct itself on the next turn.
			result = fmt.Sprintf("Error: Unknown tool '%s'", call.Name)
		}

		toolMsg := model.ToolMessage(call.Name, result)
		*history = append(*history, toolMsg)
		l.record(logger, recorder, toolMsg)

		l.publish(event.ToolExecuted{
			SessionID: sessionID,
			Iteration: iteration,
			Tool:      call.Name,
			Duration:  time.Since(start),
			Result:    result,
		})
		logger.Debug("tool executed", "tool", call.Name, "duration", time.Since(start))

		results = append(results, fmt.Sprintf("**%s** result:\n%s", call.Name, result))
	}
	return strings.Join(results, "\n\n")
}

// recorder picks the session's recorder: an explicit one wins, else the
// factory builds one keyed by the session ID. A factory failure loses
// the transcript, not the run.
func (l *Loop) recorder(logger *slog.Logger, sessionID uuid.UUID) Recorder {
	if l.options.Recorder != nil {
		return l.options.Recorder
	}
	if l.options.RecorderFor == nil {
		return nil
	}
	r, err := l.options.RecorderFor(sessionID)
	if err != nil {
		logger.Warn("failed to create transcript recorder", "error", err)
		return nil
	}
	return r
}

func (l *Loop) record(logger *slog.Logger, recorder Recorder, msg model.Message) {
	if recorder == nil {
		return
	}
	if err := recorder.Record(msg); err != nil {
		logger.Warn("failed to record message", "error", err, "role", msg.Role)
	}
}

func (l *Loop) publish(e any) {
	if l.options.Bus == nil {
		return
	}
	switch e := e.(type) {
	case event.RunStarted:
		event.Publish(l.options.Bus, e)
	case event.TurnCompleted:
		event.Publish(l.options.Bus, e)
	case event.ToolExecuted:
		event.Publish(l.options.Bus, e)
	case event.RunFinished:
		event.Publish(l.options.Bus, e)
	}
}

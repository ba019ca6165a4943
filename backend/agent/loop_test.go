package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/emberhq/ember/backend/model"
	"github.com/emberhq/ember/backend/tool"
	"github.com/emberhq/ember/shared"
)

// scriptedProvider returns canned responses in order and records every
// request it sees.
type scriptedProvider struct {
	responses []string
	err       error

	calls     int
	histories [][]model.Message
}

func (p *scriptedProvider) Chat(ctx context.Context, modelName string, messages []model.Message) (*model.Message, error) {
	p.calls++
	snapshot := make([]model.Message, len(messages))
	copy(snapshot, messages)
	p.histories = append(p.histories, snapshot)

	if p.err != nil {
		return nil, p.err
	}
	if p.calls > len(p.responses) {
		return nil, errors.New("script exhausted")
	}
	msg := model.AssistantMessage(p.responses[p.calls-1])
	return &msg, nil
}

func testRegistry(t *testing.T, seed map[string]string) *tool.Registry {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, content := range seed {
		if err := afero.WriteFile(fs, "/project/"+path, []byte(content), 0o644); err != nil {
			t.Fatalf("seed %s: %v", path, err)
		}
	}
	files := tool.NewFiles(fs, "/project", nil)
	return tool.NewRegistry(files.ReadTool(), files.WriteTool(), files.EditTool())
}

func toolBlock(payload string) string {
	return "```tool\n" + payload + "\n```"
}

type memoryRecorder struct {
	mu       sync.Mutex
	messages []model.Message
}

func (r *memoryRecorder) Record(msg model.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return nil
}

func TestRunCompletesOnPlainAnswer(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{responses: []string{"The answer is 42."}}
	loop := NewLoop(provider, "test-model", testRegistry(t, nil))

	result, err := loop.Run(context.Background(), "what is the answer?")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Outcome != OutcomeDone {
		t.Errorf("Outcome = %s, want %s", result.Outcome, OutcomeDone)
	}
	if result.FinalAnswer != "The answer is 42." {
		t.Errorf("FinalAnswer = %q", result.FinalAnswer)
	}
	if result.Iterations != 1 || provider.calls != 1 {
		t.Errorf("iterations = %d, chat calls = %d, want 1 and 1", result.Iterations, provider.calls)
	}

	// system, user, assistant
	if len(result.History) != 3 {
		t.Fatalf("history has %d messages, want 3", len(result.History))
	}
	if result.History[0].Role != model.RoleSystem || result.History[1].Role != model.RoleUser || result.History[2].Role != model.RoleAssistant {
		t.Errorf("history roles = %v %v %v", result.History[0].Role, result.History[1].Role, result.History[2].Role)
	}
}

func TestRunExecutesToolAndContinues(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{responses: []string{
		toolBlock(`{"name": "read_file", "arguments": {"path": "main.go"}}`),
		"The file declares package main.",
	}}
	registry := testRegistry(t, map[string]string{"main.go": "package main\n"})
	loop := NewLoop(provider, "test-model", registry)

	result, err := loop.Run(context.Background(), "what package is main.go in?")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Outcome != OutcomeDone || result.Iterations != 2 {
		t.Errorf("Outcome = %s, Iterations = %d, want done after 2", result.Outcome, result.Iterations)
	}

	// system, user, assistant, tool, synthetic user, assistant
	if len(result.History) != 6 {
		t.Fatalf("history has %d messages, want 6", len(result.History))
	}

	toolMsg := result.History[3]
	if toolMsg.Role != model.RoleTool || toolMsg.ToolName != "read_file" {
		t.Errorf("tool message = %+v", toolMsg)
	}
	if !strings.Contains(toolMsg.Content, "package main") {
		t.Errorf("tool result missing file content: %q", toolMsg.Content)
	}

	followup := result.History[4]
	if followup.Role != model.RoleUser {
		t.Errorf("follow-up role = %s, want user", followup.Role)
	}
	if !strings.HasPrefix(followup.Content, "Tool results:\n\n**read_file** result:\n") {
		t.Errorf("follow-up format = %q", followup.Content)
	}
	if !strings.HasSuffix(followup.Content, "Continue with your task. If complete, provide your final answer without tool blocks.") {
		t.Errorf("follow-up missing continuation instruction: %q", followup.Content)
	}

	// The second chat request must carry the full history.
	if len(provider.histories[1]) != 5 {
		t.Errorf("second request sent %d messages, want 5", len(provider.histories[1]))
	}
}

func TestRunTruncatesAtIterationCap(t *testing.T) {
	t.Parallel()

	call := toolBlock(`{"name": "read_file", "arguments": {"path": "main.go"}}`)
	provider := &scriptedProvider{responses: []string{call, call, call, call, call}}
	registry := testRegistry(t, map[string]string{"main.go": "package main\n"})
	loop := NewLoop(provider, "test-model", registry, WithMaxIterations(3))

	result, err := loop.Run(context.Background(), "keep reading")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Outcome != OutcomeTruncated {
		t.Errorf("Outcome = %s, want %s", result.Outcome, OutcomeTruncated)
	}
	if provider.calls != 3 {
		t.Errorf("chat calls = %d, want exactly 3", provider.calls)
	}
	if result.Iterations != 3 {
		t.Errorf("Iterations = %d, want 3", result.Iterations)
	}
}

func TestRunToolErrorIsNotFatal(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{responses: []string{
		toolBlock(`{"name": "read_file", "arguments": {"path": "missing.go"}}`),
		"That file does not exist.",
	}}
	loop := NewLoop(provider, "test-model", testRegistry(t, nil))

	result, err := loop.Run(context.Background(), "read missing.go")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Outcome != OutcomeDone {
		t.Errorf("Outcome = %s, want done", result.Outcome)
	}
	toolMsg := result.History[3]
	if toolMsg.Content != "Error: File not found: missing.go" {
		t.Errorf("tool result = %q", toolMsg.Content)
	}
	if provider.calls != 2 {
		t.Errorf("chat calls = %d, want the loop to continue past the error", provider.calls)
	}
}

func TestRunUnknownToolFeedsErrorBack(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{responses: []string{
		toolBlock(`{"name": "deploy_to_prod", "arguments": {}}`),
		"Understood, that tool is unavailable.",
	}}
	loop := NewLoop(provider, "test-model", testRegistry(t, nil))

	result, err := loop.Run(context.Background(), "deploy")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	toolMsg := result.History[3]
	if toolMsg.Content != "Error: Unknown tool 'deploy_to_prod'" {
		t.Errorf("tool result = %q", toolMsg.Content)
	}
	if result.Outcome != OutcomeDone {
		t.Errorf("Outcome = %s, want done after recovery turn", result.Outcome)
	}
}

func TestRunTransportErrorIsFatal(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{err: errors.New("connection refused")}
	loop := NewLoop(provider, "test-model", testRegistry(t, nil))

	result, err := loop.Run(context.Background(), "hello")
	if err == nil {
		t.Fatal("Run returned nil error on transport failure")
	}
	if result != nil {
		t.Errorf("result = %+v, want nil", result)
	}
	if shared.SourceOf(err) != shared.ErrorSourceTransport {
		t.Errorf("error source = %s, want transport", shared.SourceOf(err))
	}
}

func TestRunStripsThinkingFromFinalAnswer(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{responses: []string{
		"<think>Let me reason about this.</think>Paris is the capital of France.",
	}}
	loop := NewLoop(provider, "test-model", testRegistry(t, nil))

	result, err := loop.Run(context.Background(), "capital of France?")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.FinalAnswer != "Paris is the capital of France." {
		t.Errorf("FinalAnswer = %q, want think block stripped", result.FinalAnswer)
	}
	// History keeps the raw content.
	if !strings.Contains(result.History[2].Content, "<think>") {
		t.Errorf("history content lost the raw think block: %q", result.History[2].Content)
	}
}

func TestRunSessionUsesCallerSessionID(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{responses: []string{"Done."}}
	loop := NewLoop(provider, "test-model", testRegistry(t, nil))

	sessionID := uuid.New()
	result, err := loop.RunSession(context.Background(), sessionID, "hello")
	if err != nil {
		t.Fatalf("RunSession: %v", err)
	}

	if result.SessionID != sessionID {
		t.Errorf("SessionID = %s, want the caller's %s", result.SessionID, sessionID)
	}
}

func TestRunBuildsRecorderPerSession(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{responses: []string{"First.", "Second."}}

	var mu sync.Mutex
	recorders := make(map[uuid.UUID]*memoryRecorder)
	loop := NewLoop(provider, "test-model", testRegistry(t, nil),
		WithRecorderFactory(func(sessionID uuid.UUID) (Recorder, error) {
			rec := &memoryRecorder{}
			mu.Lock()
			recorders[sessionID] = rec
			mu.Unlock()
			return rec, nil
		}),
	)

	first, err := loop.Run(context.Background(), "one")
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	second, err := loop.Run(context.Background(), "two")
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}

	if first.SessionID == second.SessionID {
		t.Fatal("runs shared a session ID")
	}
	for _, result := range []*RunResult{first, second} {
		rec, ok := recorders[result.SessionID]
		if !ok {
			t.Fatalf("no recorder was built for session %s", result.SessionID)
		}
		// system, user, assistant
		if len(rec.messages) != 3 {
			t.Errorf("session %s recorded %d messages, want 3", result.SessionID, len(rec.messages))
		}
	}
}

func TestRunDispatchesSequentiallyInOrder(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{responses: []string{
		toolBlock(`{"name": "write_file", "arguments": {"path": "a.txt", "content": "one"}}`) + "\n" +
			toolBlock(`{"name": "read_file", "arguments": {"path": "a.txt"}}`),
		"Done.",
	}}
	loop := NewLoop(provider, "test-model", testRegistry(t, nil))

	result, err := loop.Run(context.Background(), "write then read")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// The read must observe the write from the same turn.
	readResult := result.History[4]
	if readResult.ToolName != "read_file" || !strings.Contains(readResult.Content, "one") {
		t.Errorf("read after write = %+v, want content from preceding write", readResult)
	}
}

package event

import (
	"time"

	"github.com/google/uuid"
)

// RunStarted fires once when an agent session begins.
type RunStarted struct {
	SessionID uuid.UUID
	Model     string
	Prompt    string
}

func (RunStarted) Event() {}

// TurnCompleted fires after each model response, before any extracted
// tool calls are dispatched.
type TurnCompleted struct {
	SessionID uuid.UUID
	Iteration int
	ToolCalls int
	Content   string
}

func (TurnCompleted) Event() {}

// ToolExecuted fires after each individual tool invocation.
type ToolExecuted struct {
	SessionID uuid.UUID
	Iteration int
	Tool      string
	Duration  time.Duration
	Result    string
}

func (ToolExecuted) Event() {}

// RunFinished fires once per session, whatever the outcome.
type RunFinished struct {
	SessionID  uuid.UUID
	Iterations int
	Outcome    string
	Err        error
}

func (RunFinished) Event() {}

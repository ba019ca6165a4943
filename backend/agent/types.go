package agent

import (
	"github.com/google/uuid"

	"github.com/emberhq/ember/backend/model"
)

// Outcome says how a run ended. Transport failures are not outcomes;
// those surface as errors from Run.
type Outcome string

const (
	// OutcomeDone means the model produced a turn with no tool calls,
	// which is the completion signal.
	OutcomeDone Outcome = "done"
	// OutcomeTruncated means the iteration cap was reached while the
	// model was still requesting tools.
	OutcomeTruncated Outcome = "truncated"
)

// RunResult is the final state of one agent session.
type RunResult struct {
	SessionID   uuid.UUID
	Outcome     Outcome
	FinalAnswer string
	History     []model.Message
	Iterations  int
}

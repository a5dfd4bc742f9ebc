package gateway

import (
	"time"

	"github.com/user/agentdesk/internal/types"
)

// RunStatus represents the lifecycle state of a Run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one agent turn: the reply owed to a user message in a session.
type Run struct {
	ID         types.RunID
	SessionID  types.SessionID
	Agent      string
	Text       string
	Status     RunStatus
	Attempts   int
	CreatedAt  time.Time
	StartedAt  *time.Time
	EndedAt    *time.Time
	Error      error
	OnComplete func(reply types.Message)
}

// NewRun creates a Run in the Queued state.
func NewRun(sessionID types.SessionID, agent, text string) *Run {
	return &Run{
		ID:        types.NewRunID(),
		SessionID: sessionID,
		Agent:     agent,
		Text:      text,
		Status:    RunStatusQueued,
		CreatedAt: time.Now(),
	}
}

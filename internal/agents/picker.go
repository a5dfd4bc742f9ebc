package agents

import (
	"fmt"

	"github.com/user/agentdesk/internal/types"
)

// Picker starts and reassigns conversations from an agent id chosen in the UI.
type Picker struct {
	sessions types.SessionRegistry
}

// NewPicker creates a Picker backed by the given registry.
func NewPicker(sessions types.SessionRegistry) *Picker {
	return &Picker{sessions: sessions}
}

// Start creates a session assigned to the picked agent. AutoID leaves the
// session unassigned so the first message can route it.
func (p *Picker) Start(agentID string) (types.SessionID, error) {
	if agentID == "" || agentID == AutoID {
		return p.sessions.CreateSession(""), nil
	}
	label, ok := Resolve(agentID)
	if !ok {
		return "", fmt.Errorf("unknown agent: %s", agentID)
	}
	return p.sessions.CreateSession(label), nil
}

// Assign changes the agent of an existing session. It reports false when the
// session no longer exists.
func (p *Picker) Assign(id types.SessionID, agentID string) (bool, error) {
	label, ok := Resolve(agentID)
	if !ok {
		return false, fmt.Errorf("unknown agent: %s", agentID)
	}
	return p.sessions.UpdateAgent(id, label), nil
}

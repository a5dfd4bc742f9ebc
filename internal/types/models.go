// internal/types/models.go
package types

import (
	"encoding/json"
	"time"
)

// Message roles used by the transcript. The registry stores messages without
// looking at them.
const (
	RoleUser   = "user"
	RoleAgent  = "agent"
	RoleSystem = "system"
)

type Message struct {
	Role     string          `json:"role"`
	Content  string          `json:"content"`
	Agent    string          `json:"agent,omitempty"`
	At       time.Time       `json:"at"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// Session is a snapshot of one conversation. An empty Agent means no agent
// has been chosen yet.
type Session struct {
	ID        SessionID `json:"id"`
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
	Messages  []Message `json:"messages"`
	Agent     string    `json:"agent,omitempty"`
}

// Clone returns a copy whose Messages slice does not alias s.Messages.
func (s *Session) Clone() *Session {
	c := *s
	c.Messages = CloneMessages(s.Messages)
	return &c
}

// CloneMessages copies msgs, including each message's metadata bytes.
func CloneMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	copy(out, msgs)
	for i := range out {
		if out[i].Metadata != nil {
			out[i].Metadata = append(json.RawMessage(nil), out[i].Metadata...)
		}
	}
	return out
}

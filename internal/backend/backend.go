// Package backend stands in for the remote agent service. It produces agent
// replies in-process.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/user/agentdesk/internal/agents"
	"github.com/user/agentdesk/internal/registry"
	"github.com/user/agentdesk/internal/types"
)

// Responder produces the next agent message for a conversation.
type Responder interface {
	Respond(ctx context.Context, agent string, history []types.Message) (types.Message, error)
}

// NextAction is a follow-up the agent suggests after replying.
type NextAction struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Agent       string `json:"agent"`
}

// Metadata is what Canned stores in Message.Metadata.
type Metadata struct {
	NextActions []NextAction `json:"next_actions,omitempty"`
}

// Canned answers from the agent catalog. Delay simulates backend latency.
type Canned struct {
	Delay time.Duration
	now   func() time.Time
}

// NewCanned creates a Canned responder.
func NewCanned(delay time.Duration) *Canned {
	return &Canned{Delay: delay, now: time.Now}
}

// Respond replies to the last user message of history as agent.
func (c *Canned) Respond(ctx context.Context, agent string, history []types.Message) (types.Message, error) {
	if c.Delay > 0 {
		select {
		case <-time.After(c.Delay):
		case <-ctx.Done():
			return types.Message{}, ctx.Err()
		}
	}

	info, ok := agents.Lookup(agent)
	if !ok {
		return types.Message{}, fmt.Errorf("invalid agent: %q", agent)
	}

	question := lastUserText(history)
	if question == "" {
		return types.Message{}, fmt.Errorf("invalid history: no user message")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "I'd be happy to help with %q. As the %s I'd focus on:\n\n", registry.Preview(question), info.Name)
	for i, capability := range info.Capabilities {
		fmt.Fprintf(&b, "%d. **%s**\n", i+1, capability)
	}
	b.WriteString("\nWould you like me to start with a specific area, or shall I run a full audit first?")

	meta, err := json.Marshal(Metadata{NextActions: nextActions(info)})
	if err != nil {
		return types.Message{}, fmt.Errorf("marshal metadata: %w", err)
	}

	return types.Message{
		Role:     types.RoleAgent,
		Content:  b.String(),
		Agent:    info.Name,
		At:       c.now(),
		Metadata: meta,
	}, nil
}

func nextActions(info agents.Agent) []NextAction {
	priorities := []string{"high", "medium", "low"}
	var out []NextAction
	for i, capability := range info.Capabilities {
		if i == len(priorities) {
			break
		}
		out = append(out, NextAction{
			ID:          fmt.Sprintf("na%d", i+1),
			Title:       capability,
			Description: fmt.Sprintf("%s: %s", info.Tag, strings.ToLower(capability)),
			Priority:    priorities[i],
			Agent:       info.Name,
		})
	}
	return out
}

func lastUserText(history []types.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == types.RoleUser && strings.TrimSpace(history[i].Content) != "" {
			return history[i].Content
		}
	}
	return ""
}

// Package sidebar keeps the conversation list in step with the session
// registry.
package sidebar

import (
	"sync"
	"time"

	"github.com/user/agentdesk/internal/agents"
	"github.com/user/agentdesk/internal/types"
)

// Unassigned is the group title for sessions without an agent.
const Unassigned = "Unassigned"

// Entry is one rendered row of the list.
type Entry struct {
	ID       types.SessionID `json:"id"`
	Title    string          `json:"title"`
	Agent    string          `json:"agent,omitempty"`
	Ago      string          `json:"ago"`
	Messages int             `json:"messages"`
}

// Group is the list rows belonging to one agent.
type Group struct {
	Agent   string  `json:"agent"`
	Entries []Entry `json:"entries"`
}

// View re-reads the registry whenever it changes. A non-empty agent filter
// limits it to that agent's sessions.
type View struct {
	sessions types.SessionRegistry
	filter   string
	now      func() time.Time
	onChange func([]Entry)

	// refreshMu orders concurrent refreshes so an older snapshot never
	// replaces a newer one.
	refreshMu   sync.Mutex
	mu          sync.RWMutex
	entries     []Entry
	unsubscribe func()
}

// Option configures a View.
type Option func(*View)

// WithFilter restricts the view to sessions assigned to agent.
func WithFilter(agent string) Option {
	return func(v *View) { v.filter = agent }
}

// WithClock replaces time.Now for the "ago" labels.
func WithClock(now func() time.Time) Option {
	return func(v *View) { v.now = now }
}

// OnChange sets a hook run with the fresh entries after every refresh.
func OnChange(fn func([]Entry)) Option {
	return func(v *View) { v.onChange = fn }
}

// New builds the view, renders it once and subscribes to the registry.
func New(sessions types.SessionRegistry, opts ...Option) *View {
	v := &View{
		sessions: sessions,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	v.Refresh()
	v.unsubscribe = sessions.Subscribe(v.Refresh)
	return v
}

// Refresh re-reads the registry. It is the view's registry listener.
func (v *View) Refresh() {
	v.refreshMu.Lock()
	var list []*types.Session
	if v.filter != "" {
		list = v.sessions.ListSessionsByAgent(v.filter)
	} else {
		list = v.sessions.ListSessions()
	}

	entries := Rows(list, v.now())

	v.mu.Lock()
	v.entries = entries
	v.mu.Unlock()
	v.refreshMu.Unlock()

	// The hook runs unlocked; it may mutate the registry and re-enter Refresh.
	if v.onChange != nil {
		v.onChange(v.Entries())
	}
}

// Entries returns the current rows, most recent first.
func (v *View) Entries() []Entry {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]Entry, len(v.entries))
	copy(out, v.entries)
	return out
}

// Groups returns the current rows grouped by agent.
func (v *View) Groups() []Group {
	return GroupEntries(v.Entries())
}

// Rows renders sessions as list rows with "ago" labels relative to now.
func Rows(list []*types.Session, now time.Time) []Entry {
	entries := make([]Entry, len(list))
	for i, s := range list {
		entries[i] = Entry{
			ID:       s.ID,
			Title:    s.Name,
			Agent:    s.Agent,
			Ago:      FormatAgo(now, s.Timestamp),
			Messages: len(s.Messages),
		}
	}
	return entries
}

// GroupEntries groups rows by agent: catalog agents first in catalog order,
// then agents outside the catalog, then Unassigned. Rows whose agent is
// literally named Unassigned join that group. Empty groups are omitted.
func GroupEntries(entries []Entry) []Group {
	byAgent := make(map[string][]Entry)
	var extra []string
	known := make(map[string]bool)
	for _, a := range agents.All() {
		known[a.Name] = true
	}
	for _, e := range entries {
		key := e.Agent
		if key == "" {
			key = Unassigned
		} else if key != Unassigned && !known[key] && byAgent[key] == nil {
			extra = append(extra, key)
		}
		byAgent[key] = append(byAgent[key], e)
	}

	var order []string
	for _, a := range agents.All() {
		order = append(order, a.Name)
	}
	order = append(order, extra...)
	order = append(order, Unassigned)

	var groups []Group
	for _, name := range order {
		if rows := byAgent[name]; len(rows) > 0 {
			groups = append(groups, Group{Agent: name, Entries: rows})
		}
	}
	return groups
}

// Close stops listening to the registry.
func (v *View) Close() {
	if v.unsubscribe != nil {
		v.unsubscribe()
	}
}

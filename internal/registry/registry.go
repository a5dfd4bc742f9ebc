// Package registry holds the in-memory session registry shared by every view
// of the chat shell.
package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/user/agentdesk/internal/types"
)

var _ types.SessionRegistry = (*Registry)(nil)

// Recorder observes registry activity. delta is the change in the number of
// live sessions caused by the mutation. internal/telemetry provides the
// OpenTelemetry-backed implementation.
type Recorder interface {
	Mutated(op string, delta int)
	ListenerFailed(op string)
}

type nopRecorder struct{}

func (nopRecorder) Mutated(string, int)   {}
func (nopRecorder) ListenerFailed(string) {}

// Mutation names passed to listeners' logs and the Recorder.
const (
	OpCreate   = "create"
	OpMessages = "update_messages"
	OpAgent    = "update_agent"
	OpRename   = "rename"
	OpDelete   = "delete"
)

// entry is the registry's private record. placeholder stays true until the
// session is renamed, explicitly or automatically.
type entry struct {
	session     types.Session
	placeholder bool
	activity    uint64
}

// Registry is the single writer of session state. It is safe for concurrent
// use; listeners are invoked synchronously after the mutation completes and
// outside the lock.
type Registry struct {
	mu       sync.RWMutex
	sessions map[types.SessionID]*entry
	activity uint64

	subMu     sync.Mutex
	subs      []*subscription
	nextSubID int64

	now      func() time.Time
	newID    func() types.SessionID
	logger   *slog.Logger
	recorder Recorder
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(rec Recorder) Option {
	return func(r *Registry) { r.recorder = rec }
}

func withIDGenerator(fn func() types.SessionID) Option {
	return func(r *Registry) { r.newID = fn }
}

// New creates an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		sessions: make(map[types.SessionID]*entry),
		now:      time.Now,
		newID:    types.NewSessionID,
		logger:   slog.Default(),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateSession adds a session with a placeholder name and returns its id.
// An empty agent leaves the session unassigned.
func (r *Registry) CreateSession(agent string) types.SessionID {
	r.mu.Lock()
	now := r.now()
	id := r.newID()
	if _, exists := r.sessions[id]; exists {
		r.mu.Unlock()
		panic(fmt.Sprintf("registry: session id collision: %s", id))
	}
	r.activity++
	r.sessions[id] = &entry{
		session: types.Session{
			ID:        id,
			Name:      DefaultName(now),
			Timestamp: now,
			Messages:  []types.Message{},
			Agent:     agent,
		},
		placeholder: true,
		activity:    r.activity,
	}
	count := len(r.sessions)
	r.mu.Unlock()

	r.logger.Debug("session created", "session_id", id, "agent", agent, "sessions", count)
	r.mutated(OpCreate, 1)
	return id
}

// Get returns a snapshot of the session, or false if it does not exist.
func (r *Registry) Get(id types.SessionID) (*types.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	return e.session.Clone(), true
}

// UpdateMessages replaces the session's messages and marks it active. An
// unknown id is logged and ignored; the result reports whether it applied.
func (r *Registry) UpdateMessages(id types.SessionID, msgs []types.Message) bool {
	return r.mutate(OpMessages, id, func(e *entry) bool {
		e.session.Messages = types.CloneMessages(msgs)
		e.session.Timestamp = r.forward(e.session.Timestamp)
		r.activity++
		e.activity = r.activity
		return true
	})
}

// UpdateAgent assigns agent to the session. The timestamp is left alone.
func (r *Registry) UpdateAgent(id types.SessionID, agent string) bool {
	return r.mutate(OpAgent, id, func(e *entry) bool {
		e.session.Agent = agent
		return true
	})
}

// RenameSession sets an explicit name. Later AutoRename calls leave it alone.
func (r *Registry) RenameSession(id types.SessionID, name string) bool {
	return r.mutate(OpRename, id, func(e *entry) bool {
		e.session.Name = name
		e.placeholder = false
		return true
	})
}

// AutoRename names the session after text, but only while it still carries
// its placeholder name. It reports whether the name changed.
func (r *Registry) AutoRename(id types.SessionID, text string) bool {
	name := Preview(text)
	if name == "" {
		return false
	}
	return r.mutate(OpRename, id, func(e *entry) bool {
		if !e.placeholder {
			return false
		}
		e.session.Name = name
		e.placeholder = false
		return true
	})
}

// DeleteSession removes the session. Listeners are notified only when a
// session was actually removed.
func (r *Registry) DeleteSession(id types.SessionID) bool {
	r.mu.Lock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		r.logger.Debug("delete of unknown session", "session_id", id)
		return false
	}
	r.mutated(OpDelete, -1)
	return true
}

// ListSessions returns every session, most recently active first.
func (r *Registry) ListSessions() []*types.Session {
	return r.list(func(*entry) bool { return true })
}

// ListSessionsByAgent returns the sessions assigned exactly to agent, most
// recently active first. Unassigned sessions never match.
func (r *Registry) ListSessionsByAgent(agent string) []*types.Session {
	return r.list(func(e *entry) bool {
		return e.session.Agent != "" && e.session.Agent == agent
	})
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) list(keep func(*entry) bool) []*types.Session {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.sessions))
	for _, e := range r.sessions {
		if keep(e) {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.session.Timestamp.Equal(b.session.Timestamp) {
			return a.session.Timestamp.After(b.session.Timestamp)
		}
		return a.activity > b.activity
	})
	out := make([]*types.Session, len(entries))
	for i, e := range entries {
		out[i] = e.session.Clone()
	}
	r.mu.RUnlock()
	return out
}

// mutate applies fn to the session under the write lock and notifies when fn
// reports a change.
func (r *Registry) mutate(op string, id types.SessionID, fn func(*entry) bool) bool {
	r.mu.Lock()
	e, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		r.logger.Warn("session not found", "op", op, "session_id", id)
		return false
	}
	changed := fn(e)
	r.mu.Unlock()

	if changed {
		r.mutated(op, 0)
	}
	return changed
}

func (r *Registry) mutated(op string, delta int) {
	r.recorder.Mutated(op, delta)
	r.notify(op)
}

// forward returns now, or prev if the clock went backwards. Caller holds r.mu.
func (r *Registry) forward(prev time.Time) time.Time {
	now := r.now()
	if now.Before(prev) {
		return prev
	}
	return now
}

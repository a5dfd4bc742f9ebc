// Package transcript is the chat view's side of the registry: it opens
// sessions, records their messages and names new conversations after their
// first question.
package transcript

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/user/agentdesk/internal/types"
)

// ErrSessionNotFound is returned when a session id does not resolve.
var ErrSessionNotFound = errors.New("session not found")

// FirstUserText returns the content of the first user message with text in
// it, or "" when there is none.
func FirstUserText(msgs []types.Message) string {
	for _, m := range msgs {
		if m.Role == types.RoleUser && strings.TrimSpace(m.Content) != "" {
			return m.Content
		}
	}
	return ""
}

// Controller drives one chat transcript against the registry.
type Controller struct {
	sessions types.SessionRegistry
	now      func() time.Time

	mu    sync.Mutex
	locks map[types.SessionID]*sync.Mutex
}

// New creates a Controller.
func New(sessions types.SessionRegistry) *Controller {
	return &Controller{
		sessions: sessions,
		now:      time.Now,
		locks:    make(map[types.SessionID]*sync.Mutex),
	}
}

// getLock returns the per-session mutex, creating one if it doesn't exist.
func (c *Controller) getLock(id types.SessionID) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	if lock, ok := c.locks[id]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	c.locks[id] = lock
	return lock
}

// Forget drops the per-session lock of a deleted session.
func (c *Controller) Forget(id types.SessionID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.locks, id)
}

// Open loads a session for display.
func (c *Controller) Open(id types.SessionID) (*types.Session, error) {
	sess, ok := c.sessions.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Record stores msgs as the session's transcript and, while the session still
// has its placeholder name, names it after the first user message. It reports
// false when the session is gone.
func (c *Controller) Record(id types.SessionID, msgs []types.Message) bool {
	lock := c.getLock(id)
	lock.Lock()
	ok := c.record(id, msgs)
	lock.Unlock()
	if !ok {
		// Session ids are never reused, so an unknown id needs no lock.
		c.Forget(id)
	}
	return ok
}

func (c *Controller) record(id types.SessionID, msgs []types.Message) bool {
	if !c.sessions.UpdateMessages(id, msgs) {
		return false
	}
	if text := FirstUserText(msgs); text != "" {
		c.sessions.AutoRename(id, text)
	}
	return true
}

// Append adds msg to the end of the session's current transcript. Appends to
// the same session are serialized so none is lost.
func (c *Controller) Append(id types.SessionID, msg types.Message) bool {
	lock := c.getLock(id)
	lock.Lock()
	ok := c.appendLocked(id, msg)
	lock.Unlock()
	if !ok {
		c.Forget(id)
	}
	return ok
}

func (c *Controller) appendLocked(id types.SessionID, msg types.Message) bool {
	sess, ok := c.sessions.Get(id)
	if !ok {
		return false
	}
	if msg.At.IsZero() {
		msg.At = c.now()
	}
	return c.record(id, append(sess.Messages, msg))
}

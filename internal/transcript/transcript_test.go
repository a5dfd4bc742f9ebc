package transcript

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/user/agentdesk/internal/registry"
	"github.com/user/agentdesk/internal/types"
)

func newRegistry() *registry.Registry {
	return registry.New(registry.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func TestFirstUserText(t *testing.T) {
	msgs := []types.Message{
		{Role: types.RoleSystem, Content: "Agent routing: Analyzing request..."},
		{Role: types.RoleUser, Content: "  "},
		{Role: types.RoleUser, Content: "Plan the Q4 campaign"},
		{Role: types.RoleUser, Content: "later"},
	}
	if got := FirstUserText(msgs); got != "Plan the Q4 campaign" {
		t.Errorf("expected first non-blank user text, got %q", got)
	}
	if got := FirstUserText(nil); got != "" {
		t.Errorf("expected empty for no messages, got %q", got)
	}
}

func TestOpen(t *testing.T) {
	reg := newRegistry()
	c := New(reg)

	id := reg.CreateSession("")
	sess, err := c.Open(id)
	if err != nil {
		t.Fatal(err)
	}
	if sess.ID != id {
		t.Errorf("expected %s, got %s", id, sess.ID)
	}

	if _, err := c.Open("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestRecordAutoRenames(t *testing.T) {
	reg := newRegistry()
	c := New(reg)
	id := reg.CreateSession("")

	long := "I need help redesigning our dashboard to improve user engagement across teams"
	if !c.Record(id, []types.Message{{Role: types.RoleUser, Content: long}}) {
		t.Fatal("expected record to apply")
	}
	sess, _ := reg.Get(id)
	if sess.Name != registry.Preview(long) {
		t.Errorf("expected name %q, got %q", registry.Preview(long), sess.Name)
	}
	if len([]rune(sess.Name)) != 53 {
		t.Errorf("expected 50 runes plus ellipsis, got %d", len([]rune(sess.Name)))
	}
}

func TestRecordKeepsExplicitName(t *testing.T) {
	reg := newRegistry()
	c := New(reg)
	id := reg.CreateSession("")

	reg.RenameSession(id, "My Plan")
	c.Record(id, []types.Message{{Role: types.RoleUser, Content: "first question"}})

	sess, _ := reg.Get(id)
	if sess.Name != "My Plan" {
		t.Errorf("expected My Plan kept, got %q", sess.Name)
	}
}

func TestRecordWithoutUserMessageKeepsPlaceholder(t *testing.T) {
	reg := newRegistry()
	c := New(reg)
	id := reg.CreateSession("")
	before, _ := reg.Get(id)

	c.Record(id, []types.Message{{Role: types.RoleAgent, Content: "Welcome!"}})
	sess, _ := reg.Get(id)
	if sess.Name != before.Name {
		t.Errorf("expected placeholder %q kept, got %q", before.Name, sess.Name)
	}
}

func TestAppend(t *testing.T) {
	reg := newRegistry()
	c := New(reg)
	id := reg.CreateSession("")

	c.Append(id, types.Message{Role: types.RoleUser, Content: "one"})
	c.Append(id, types.Message{Role: types.RoleAgent, Content: "two"})

	sess, _ := reg.Get(id)
	if len(sess.Messages) != 2 || sess.Messages[0].Content != "one" || sess.Messages[1].Content != "two" {
		t.Fatalf("unexpected messages %+v", sess.Messages)
	}
	if sess.Messages[0].At.IsZero() {
		t.Error("expected Append to stamp the message time")
	}
	if sess.Name != "one" {
		t.Errorf("expected auto name one, got %q", sess.Name)
	}

	reg.DeleteSession(id)
	if c.Append(id, types.Message{Role: types.RoleAgent, Content: "late"}) {
		t.Error("expected append to deleted session to report false")
	}
	if reg.Len() != 0 {
		t.Errorf("expected no session resurrected, got %d", reg.Len())
	}
}

func TestConcurrentAppendsKeepEveryMessage(t *testing.T) {
	reg := newRegistry()
	c := New(reg)
	id := reg.CreateSession("")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Append(id, types.Message{Role: types.RoleUser, Content: "msg"})
		}()
	}
	wg.Wait()

	sess, _ := reg.Get(id)
	if len(sess.Messages) != 50 {
		t.Errorf("expected 50 messages, got %d", len(sess.Messages))
	}
}

func TestUnknownSessionsLeaveNoLocks(t *testing.T) {
	reg := newRegistry()
	c := New(reg)

	for i := 0; i < 1000; i++ {
		id := types.SessionID(fmt.Sprintf("nope-%d", i))
		if c.Record(id, []types.Message{{Role: types.RoleUser, Content: "hi"}}) {
			t.Fatalf("expected Record on %s to report false", id)
		}
		if c.Append(id, types.Message{Role: types.RoleUser, Content: "hi"}) {
			t.Fatalf("expected Append on %s to report false", id)
		}
	}

	id := reg.CreateSession("")
	c.Append(id, types.Message{Role: types.RoleUser, Content: "one"})
	reg.DeleteSession(id)
	c.Forget(id)
	c.Append(id, types.Message{Role: types.RoleUser, Content: "late"})

	c.mu.Lock()
	n := len(c.locks)
	c.mu.Unlock()
	if n != 0 {
		t.Errorf("expected no per-session locks left, got %d", n)
	}
}

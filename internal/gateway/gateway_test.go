package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/user/agentdesk/internal/backend"
	"github.com/user/agentdesk/internal/registry"
	"github.com/user/agentdesk/internal/transcript"
	"github.com/user/agentdesk/internal/types"
)

type stubResponder struct {
	mu    sync.Mutex
	calls int
	err   error
	gate  chan struct{}
}

func (s *stubResponder) Respond(ctx context.Context, agent string, history []types.Message) (types.Message, error) {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return types.Message{}, s.err
	}
	return types.Message{Role: types.RoleAgent, Content: "reply to " + history[len(history)-1].Content, Agent: agent}, nil
}

func setupGateway(t *testing.T, responder backend.Responder) (*Gateway, *registry.Registry) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := registry.New(registry.WithLogger(logger))
	gw := New(reg, transcript.New(reg), responder, 2,
		WithLogger(logger),
		WithRetryPolicy(&RetryPolicy{MaxAttempts: 2, InitialDelay: time.Millisecond, Multiplier: 1, MaxDelay: time.Millisecond}),
	)
	gw.Start(context.Background())
	t.Cleanup(gw.Stop)
	return gw, reg
}

func TestGatewayHandleTurn(t *testing.T) {
	gw, reg := setupGateway(t, &stubResponder{})
	id := reg.CreateSession("")

	done := make(chan types.Message, 1)
	_, err := gw.HandleTurn(context.Background(), id, "Keyword research for our blog",
		WithOnComplete(func(m types.Message) { done <- m }))
	if err != nil {
		t.Fatal(err)
	}

	select {
	case reply := <-done:
		if reply.Agent != "SEO Agent" {
			t.Errorf("expected routed SEO Agent, got %q", reply.Agent)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reply")
	}

	sess, _ := reg.Get(id)
	if sess.Agent != "SEO Agent" {
		t.Errorf("expected session agent SEO Agent, got %q", sess.Agent)
	}
	if sess.Name != "Keyword research for our blog" {
		t.Errorf("expected auto name from first message, got %q", sess.Name)
	}
	if len(sess.Messages) != 2 {
		t.Fatalf("expected user message and reply, got %d", len(sess.Messages))
	}
	if sess.Messages[0].Role != types.RoleUser || sess.Messages[1].Role != types.RoleAgent {
		t.Errorf("unexpected roles %q, %q", sess.Messages[0].Role, sess.Messages[1].Role)
	}
}

func TestGatewayKeepsAssignedAgent(t *testing.T) {
	gw, reg := setupGateway(t, &stubResponder{})
	id := reg.CreateSession("Merchandising Agent")

	run, err := gw.HandleTurn(context.Background(), id, "redesign the dashboard")
	if err != nil {
		t.Fatal(err)
	}
	if run.Agent != "Merchandising Agent" {
		t.Errorf("expected assigned agent kept, got %q", run.Agent)
	}
	gw.Queue.WaitIdle(2 * time.Second)
}

func TestGatewayTurnsInOrder(t *testing.T) {
	gw, reg := setupGateway(t, &stubResponder{})
	id := reg.CreateSession("UI Agent")

	for _, text := range []string{"one", "two", "three"} {
		if _, err := gw.HandleTurn(context.Background(), id, text); err != nil {
			t.Fatal(err)
		}
	}
	if !gw.Queue.WaitIdle(2 * time.Second) {
		t.Fatal("timed out waiting for turns")
	}

	sess, _ := reg.Get(id)
	if len(sess.Messages) != 6 {
		t.Fatalf("expected 6 messages, got %d", len(sess.Messages))
	}
	var users int
	for _, m := range sess.Messages {
		if m.Role == types.RoleUser {
			users++
		}
	}
	if users != 3 {
		t.Errorf("expected 3 user messages, got %d", users)
	}
	if sess.Name != "one" {
		t.Errorf("expected name from first message, got %q", sess.Name)
	}
}

func TestGatewayRejects(t *testing.T) {
	gw, reg := setupGateway(t, &stubResponder{})
	id := reg.CreateSession("")

	if _, err := gw.HandleTurn(context.Background(), id, "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("expected ErrEmptyMessage, got %v", err)
	}
	if _, err := gw.HandleTurn(context.Background(), "missing", "hello"); !errors.Is(err, transcript.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	if reg.Len() != 1 {
		t.Errorf("expected no session created, got %d", reg.Len())
	}
}

func TestGatewayReplyAfterDeleteIsDropped(t *testing.T) {
	responder := &stubResponder{gate: make(chan struct{})}
	gw, reg := setupGateway(t, responder)
	id := reg.CreateSession("UI Agent")

	if _, err := gw.HandleTurn(context.Background(), id, "hello"); err != nil {
		t.Fatal(err)
	}
	reg.DeleteSession(id)
	gw.Discard(id)
	close(responder.gate)

	if !gw.Queue.WaitIdle(2 * time.Second) {
		t.Fatal("timed out waiting for turn")
	}
	if reg.Len() != 0 {
		t.Errorf("expected deleted session to stay deleted, got %d sessions", reg.Len())
	}
}

func TestGatewayBackendFailure(t *testing.T) {
	responder := &stubResponder{err: errors.New("connection refused")}
	gw, reg := setupGateway(t, responder)
	id := reg.CreateSession("UI Agent")

	run, err := gw.HandleTurn(context.Background(), id, "hello")
	if err != nil {
		t.Fatal(err)
	}
	if !gw.Queue.WaitIdle(2 * time.Second) {
		t.Fatal("timed out waiting for turn")
	}

	if run.Status != RunStatusFailed {
		t.Errorf("expected failed run, got %s", run.Status)
	}
	if run.Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", run.Attempts)
	}
	sess, _ := reg.Get(id)
	last := sess.Messages[len(sess.Messages)-1]
	if last.Role != types.RoleSystem || last.Content != failureReply {
		t.Errorf("expected failure notice, got %+v", last)
	}
}

func TestGatewayWithCannedBackend(t *testing.T) {
	gw, reg := setupGateway(t, backend.NewCanned(0))
	id := reg.CreateSession("")

	if _, err := gw.HandleTurn(context.Background(), id, "Plan the newsletter launch"); err != nil {
		t.Fatal(err)
	}
	if !gw.Queue.WaitIdle(2 * time.Second) {
		t.Fatal("timed out waiting for turn")
	}
	sess, _ := reg.Get(id)
	if len(sess.Messages) != 2 || sess.Messages[1].Agent != "Campaign Agent" {
		t.Errorf("unexpected transcript %+v", sess.Messages)
	}
}

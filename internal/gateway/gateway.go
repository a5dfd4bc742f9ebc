// Package gateway turns user messages into agent turns. It records the user
// message, queues the turn on the session's lane and writes the backend's
// reply back through the transcript.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/user/agentdesk/internal/agents"
	"github.com/user/agentdesk/internal/backend"
	"github.com/user/agentdesk/internal/transcript"
	"github.com/user/agentdesk/internal/types"
)

// ErrEmptyMessage is returned for a turn with no text.
var ErrEmptyMessage = errors.New("empty message")

// failureReply is shown in the transcript when the backend gives up.
const failureReply = "Sorry, something went wrong processing your message."

// Gateway orchestrates chat turns against the session registry.
type Gateway struct {
	sessions   types.SessionRegistry
	transcript *transcript.Controller
	responder  backend.Responder
	Queue      *Queue
	retry      *RetryPolicy
	logger     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithRetryPolicy replaces DefaultRetryPolicy.
func WithRetryPolicy(p *RetryPolicy) Option {
	return func(g *Gateway) { g.retry = p }
}

// WithLogger sets the gateway logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) { g.logger = logger }
}

// New creates a Gateway with the given concurrency limit for simultaneous
// turn processing.
func New(sessions types.SessionRegistry, tc *transcript.Controller, responder backend.Responder, maxConcurrent int64, opts ...Option) *Gateway {
	g := &Gateway{
		sessions:   sessions,
		transcript: tc,
		responder:  responder,
		Queue:      NewQueue(maxConcurrent),
		retry:      DefaultRetryPolicy(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.Queue.SetProcessor(g.process)
	return g
}

// Start initialises the gateway's context and starts the internal queue.
func (g *Gateway) Start(ctx context.Context) {
	g.ctx, g.cancel = context.WithCancel(ctx)
	g.Queue.Start(g.ctx)
}

// Stop cancels the gateway context and stops the queue, waiting for any
// in-flight turn to finish.
func (g *Gateway) Stop() {
	if g.cancel != nil {
		g.cancel()
	}
	g.Queue.Stop()
}

// RunOption configures optional behavior on a Run.
type RunOption func(*Run)

// WithOnComplete sets a callback invoked with the agent's reply.
func WithOnComplete(fn func(types.Message)) RunOption {
	return func(r *Run) { r.OnComplete = fn }
}

// HandleTurn records text as a user message in the session, assigns a routed
// agent if the session has none, and queues the agent's reply.
func (g *Gateway) HandleTurn(ctx context.Context, id types.SessionID, text string, opts ...RunOption) (*Run, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	sess, err := g.transcript.Open(id)
	if err != nil {
		return nil, err
	}

	agent := sess.Agent
	if agent == "" {
		agent = agents.Route(text)
		g.sessions.UpdateAgent(id, agent)
		g.logger.Info("routed session", "session_id", id, "agent", agent)
	}

	msg := types.Message{Role: types.RoleUser, Content: text, At: time.Now()}
	if !g.transcript.Append(id, msg) {
		return nil, transcript.ErrSessionNotFound
	}

	run := NewRun(id, agent, text)
	for _, opt := range opts {
		opt(run)
	}
	if err := g.Queue.Enqueue(run); err != nil {
		return nil, fmt.Errorf("enqueue turn: %w", err)
	}
	return run, nil
}

// Discard forgets per-session state of a deleted session.
func (g *Gateway) Discard(id types.SessionID) {
	g.Queue.Drop(id)
	g.transcript.Forget(id)
}

// process answers one queued turn. A session deleted while the turn waited
// is not an error: the reply is dropped.
func (g *Gateway) process(ctx context.Context, run *Run) error {
	sess, err := g.transcript.Open(run.SessionID)
	if err != nil {
		g.logger.Info("session gone before reply", "run_id", run.ID, "session_id", run.SessionID)
		return nil
	}

	var reply types.Message
	err = g.retry.Execute(ctx, func() error {
		run.Attempts++
		var rerr error
		reply, rerr = g.responder.Respond(ctx, run.Agent, sess.Messages)
		return rerr
	})
	if err != nil {
		g.transcript.Append(run.SessionID, types.Message{
			Role:    types.RoleSystem,
			Content: failureReply,
			Agent:   run.Agent,
		})
		return fmt.Errorf("respond: %w", err)
	}

	if !g.transcript.Append(run.SessionID, reply) {
		g.logger.Info("reply dropped, session deleted", "run_id", run.ID, "session_id", run.SessionID)
		return nil
	}
	if run.OnComplete != nil {
		run.OnComplete(reply)
	}
	return nil
}

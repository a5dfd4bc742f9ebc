// Package api exposes the session registry over HTTP for the CLI and the
// browser shell.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/user/agentdesk/internal/agents"
	"github.com/user/agentdesk/internal/gateway"
	"github.com/user/agentdesk/internal/sidebar"
	"github.com/user/agentdesk/internal/transcript"
	"github.com/user/agentdesk/internal/types"
)

// Server is the HTTP handler for the agentdesk API.
type Server struct {
	sessions   types.SessionRegistry
	picker     *agents.Picker
	transcript *transcript.Controller
	gateway    *gateway.Gateway
	now        func() time.Time
	logger     *slog.Logger
	mux        *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

// WithClock replaces time.Now for "ago" labels.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithLogger sets the request error logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewServer creates a Server over the given registry. Turns are handed to gw.
func NewServer(sessions types.SessionRegistry, tc *transcript.Controller, gw *gateway.Gateway, opts ...Option) *Server {
	s := &Server{
		sessions:   sessions,
		picker:     agents.NewPicker(sessions),
		transcript: tc,
		gateway:    gw,
		now:        time.Now,
		logger:     slog.Default(),
		mux:        http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/agents", s.handleAgents)
	s.mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	s.mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	s.mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	s.mux.HandleFunc("PUT /api/sessions/{id}/messages", s.handleSetMessages)
	s.mux.HandleFunc("PUT /api/sessions/{id}/agent", s.handleSetAgent)
	s.mux.HandleFunc("PUT /api/sessions/{id}/name", s.handleRename)
	s.mux.HandleFunc("POST /api/sessions/{id}/turns", s.handleTurn)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, agents.All())
}

// ListResponse is the body of GET /api/sessions.
type ListResponse struct {
	Sessions []sidebar.Entry `json:"sessions"`
	Groups   []sidebar.Group `json:"groups,omitempty"`
}

func (s *Server) rows(agent string) []sidebar.Entry {
	var list []*types.Session
	if agent != "" {
		list = s.sessions.ListSessionsByAgent(agent)
	} else {
		list = s.sessions.ListSessions()
	}
	return sidebar.Rows(list, s.now())
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	resp := ListResponse{Sessions: s.rows(r.URL.Query().Get("agent"))}
	if r.URL.Query().Get("grouped") == "true" {
		resp.Groups = sidebar.GroupEntries(resp.Sessions)
	}
	writeJSON(w, http.StatusOK, resp)
}

// createRequest is the JSON body for POST /api/sessions. Agent is a picker
// id; empty or "auto" leaves the session unassigned.
type createRequest struct {
	Agent string `json:"agent"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	id, err := s.picker.Start(req.Agent)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeSession(w, http.StatusCreated, id)
}

func (s *Server) writeSession(w http.ResponseWriter, status int, id types.SessionID) {
	sess, err := s.transcript.Open(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, status, sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s.writeSession(w, http.StatusOK, types.SessionID(r.PathValue("id")))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := types.SessionID(r.PathValue("id"))
	if !s.sessions.DeleteSession(id) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	s.gateway.Discard(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetMessages(w http.ResponseWriter, r *http.Request) {
	id := types.SessionID(r.PathValue("id"))
	var msgs []types.Message
	if err := json.NewDecoder(r.Body).Decode(&msgs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if !s.transcript.Record(id, msgs) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	s.writeSession(w, http.StatusOK, id)
}

type agentRequest struct {
	Agent string `json:"agent"`
}

func (s *Server) handleSetAgent(w http.ResponseWriter, r *http.Request) {
	id := types.SessionID(r.PathValue("id"))
	var req agentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	ok, err := s.picker.Assign(id, req.Agent)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	s.writeSession(w, http.StatusOK, id)
}

type renameRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	id := types.SessionID(r.PathValue("id"))
	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if !s.sessions.RenameSession(id, name) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	s.writeSession(w, http.StatusOK, id)
}

type turnRequest struct {
	Text string `json:"text"`
}

// TurnResponse is the body of POST /api/sessions/{id}/turns.
type TurnResponse struct {
	RunID types.RunID `json:"run_id"`
	Agent string      `json:"agent"`
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	id := types.SessionID(r.PathValue("id"))
	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	run, err := s.gateway.HandleTurn(r.Context(), id, req.Text)
	switch {
	case errors.Is(err, gateway.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, "text is required")
		return
	case errors.Is(err, transcript.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session not found")
		return
	case err != nil:
		s.logger.Error("turn rejected", "session_id", id, "error", err)
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, TurnResponse{RunID: run.ID, Agent: run.Agent})
}

// handleEvents streams one "sessions" event with the full list immediately
// and again after every registry change. Bursts of notifications between two
// writes collapse into one event.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	agent := r.URL.Query().Get("agent")

	changed := make(chan struct{}, 1)
	unsubscribe := s.sessions.Subscribe(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func() error {
		data, err := json.Marshal(s.rows(agent))
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: sessions\ndata: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if err := send(); err != nil {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case <-changed:
			if err := send(); err != nil {
				s.logger.Debug("event stream closed", "error", err)
				return
			}
		}
	}
}

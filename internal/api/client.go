package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/user/agentdesk/internal/agents"
	"github.com/user/agentdesk/internal/types"
)

// ErrNotFound is returned when the server answers 404.
var ErrNotFound = errors.New("not found")

// Client talks to a running agentdesk server.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for the server listening on addr (host:port or
// a full URL).
func NewClient(addr string) *Client {
	base := strings.TrimSuffix(addr, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		baseURL: base,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&e)
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, e.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func sessionPath(id types.SessionID) string {
	return "/api/sessions/" + url.PathEscape(string(id))
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// Agents returns the agent catalog.
func (c *Client) Agents(ctx context.Context) ([]agents.Agent, error) {
	var out []agents.Agent
	err := c.do(ctx, http.MethodGet, "/api/agents", nil, &out)
	return out, err
}

// ListSessions returns sessions most recent first, optionally for one agent.
func (c *Client) ListSessions(ctx context.Context, agent string, grouped bool) (*ListResponse, error) {
	q := url.Values{}
	if agent != "" {
		q.Set("agent", agent)
	}
	if grouped {
		q.Set("grouped", "true")
	}
	path := "/api/sessions"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out ListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateSession starts a session for a picker agent id ("" or "auto" for
// none).
func (c *Client) CreateSession(ctx context.Context, agentID string) (*types.Session, error) {
	var out types.Session
	if err := c.do(ctx, http.MethodPost, "/api/sessions", createRequest{Agent: agentID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSession returns one session with its messages.
func (c *Client) GetSession(ctx context.Context, id types.SessionID) (*types.Session, error) {
	var out types.Session
	if err := c.do(ctx, http.MethodGet, sessionPath(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RenameSession gives a session an explicit name.
func (c *Client) RenameSession(ctx context.Context, id types.SessionID, name string) error {
	return c.do(ctx, http.MethodPut, sessionPath(id)+"/name", renameRequest{Name: name}, nil)
}

// AssignAgent changes a session's agent by picker id.
func (c *Client) AssignAgent(ctx context.Context, id types.SessionID, agentID string) error {
	return c.do(ctx, http.MethodPut, sessionPath(id)+"/agent", agentRequest{Agent: agentID}, nil)
}

// DeleteSession removes a session.
func (c *Client) DeleteSession(ctx context.Context, id types.SessionID) error {
	return c.do(ctx, http.MethodDelete, sessionPath(id), nil, nil)
}

// Send posts a user message and returns the queued run.
func (c *Client) Send(ctx context.Context, id types.SessionID, text string) (*TurnResponse, error) {
	var out TurnResponse
	if err := c.do(ctx, http.MethodPost, sessionPath(id)+"/turns", turnRequest{Text: text}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

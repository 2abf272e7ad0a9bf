// Package client talks to a live-class server over its REST snapshot
// endpoints and raw change websocket. It implements live.Source for
// processes that run a board outside the server.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"live-class-backend/internal/live"
	"live-class-backend/internal/models"
	"live-class-backend/internal/pubsub"
	"live-class-backend/internal/ws"

	"github.com/gorilla/websocket"
)

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	dialer     *websocket.Dialer
}

var _ live.Source = (*Client)(nil)

// New creates a client for the server at baseURL (http or https). token may
// be empty for anonymous board access.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		dialer:     &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// errorText prefers the JSON error field and falls back to the raw body, as
// proxies in front of the server answer in plain text.
func errorText(body []byte) string {
	var e errorBody
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return live.ErrSessionNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: status %d: %s", path, resp.StatusCode, errorText(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) Session(ctx context.Context, sessionID string) (*models.ClassSession, error) {
	var s struct {
		ID     string `json:"id"`
		Code   string `json:"code"`
		Active bool   `json:"active"`
	}
	if err := c.get(ctx, "/api/v1/class-sessions/"+url.PathEscape(sessionID), &s); err != nil {
		return nil, err
	}
	return &models.ClassSession{ID: s.ID, Code: s.Code, Active: s.Active}, nil
}

// CurrentQuestion decodes a JSON null body as no question.
func (c *Client) CurrentQuestion(ctx context.Context, sessionID string) (*models.ClassQuestion, error) {
	var q *models.ClassQuestion
	if err := c.get(ctx, "/api/v1/class-sessions/"+url.PathEscape(sessionID)+"/questions/current", &q); err != nil {
		return nil, err
	}
	return q, nil
}

func (c *Client) Submissions(ctx context.Context, sessionID, questionID string) ([]models.ClassSubmission, error) {
	var subs []models.ClassSubmission
	path := "/api/v1/class-sessions/" + url.PathEscape(sessionID) + "/questions/" + url.PathEscape(questionID) + "/submissions"
	if err := c.get(ctx, path, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Subscribe returns once the server confirms the subscription, so a pull
// made afterwards cannot miss a change.
func (c *Client) Subscribe(ctx context.Context, sessionID string) (live.Stream, error) {
	u, err := url.Parse(c.baseURL + "/ws/class-sessions/" + url.PathEscape(sessionID) + "/events")
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	if c.token != "" {
		q := u.Query()
		q.Set("token", c.token)
		u.RawQuery = q.Encode()
	}

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, live.ErrSessionNotFound
		}
		return nil, fmt.Errorf("dial events: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	var first frame
	if err := conn.ReadJSON(&first); err != nil || first.Type != ws.TypeSubscribed {
		conn.Close()
		if err == nil {
			err = fmt.Errorf("unexpected first frame %q", first.Type)
		}
		return nil, fmt.Errorf("await subscription: %w", err)
	}
	conn.SetReadDeadline(time.Time{})

	s := &stream{
		conn:    conn,
		events:  make(chan pubsub.Event, 64),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.read()
	return s, nil
}

type stream struct {
	conn    *websocket.Conn
	events  chan pubsub.Event
	once    sync.Once
	closing chan struct{}
	done    chan struct{}
}

func (s *stream) Events() <-chan pubsub.Event { return s.events }

func (s *stream) Close() {
	s.once.Do(func() {
		close(s.closing)
		s.conn.Close()
	})
	<-s.done
}

// read closes events on a resync frame or any read error.
func (s *stream) read() {
	defer close(s.done)
	defer close(s.events)
	for {
		var f frame
		if err := s.conn.ReadJSON(&f); err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) && !errors.Is(err, net.ErrClosed) {
				slog.Debug("client: events stream ended", "error", err)
			}
			return
		}
		switch f.Type {
		case ws.TypeChange:
			var ev pubsub.Event
			if err := json.Unmarshal(f.Data, &ev); err != nil {
				continue
			}
			select {
			case s.events <- ev:
			case <-s.closing:
				return
			}
		case ws.TypeResync:
			return
		}
	}
}

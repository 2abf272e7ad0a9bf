package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"live-class-backend/internal/handlers"
	"live-class-backend/internal/live"
	"live-class-backend/internal/pubsub"
	"live-class-backend/internal/services"
	"live-class-backend/internal/store"
	"live-class-backend/internal/ws"

	"github.com/gin-gonic/gin"
)

type server struct {
	srv       *httptest.Server
	broker    *pubsub.Broker
	sessions  *services.SessionRegistry
	questions *services.QuestionChannel
	subs      *services.SubmissionStore
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	broker := pubsub.NewBroker(64)
	st := store.WithChanges(store.NewMemoryStore(), broker)
	auth := services.NewAuthService(st, "test-secret")
	sessions := services.NewSessionRegistry(st, 5)
	questions := services.NewQuestionChannel(st)
	subs := services.NewSubmissionStore(st)
	feed := services.NewLiveFeed(sessions, questions, subs, broker)

	rt := &handlers.Router{
		Auth:     auth,
		Login:    handlers.NewAuthHandler(auth),
		Sessions: handlers.NewClassSessionHandler(sessions),
		Question: handlers.NewQuestionHandler(questions, subs),
		Board:    handlers.NewBoardHandler(sessions, questions, subs, feed, ws.NewHub(broker)),
	}
	engine := gin.New()
	rt.Register(engine)

	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)
	return &server{srv: srv, broker: broker, sessions: sessions, questions: questions, subs: subs}
}

func TestClientPulls(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	c := New(s.srv.URL+"/", "")

	session, _ := s.sessions.Start(ctx, "teacher-1")

	got, err := c.Session(ctx, session.ID)
	if err != nil || got.ID != session.ID || !got.Active {
		t.Fatalf("Session = %+v, %v", got, err)
	}
	q, err := c.CurrentQuestion(ctx, session.ID)
	if err != nil || q != nil {
		t.Fatalf("CurrentQuestion before publish = %+v, %v", q, err)
	}

	published, _ := s.questions.Publish(ctx, session.ID, "teacher-1", "2+2", "4")
	s.subs.Submit(ctx, session.ID, published.ID, "st1", "4")

	q, err = c.CurrentQuestion(ctx, session.ID)
	if err != nil || q == nil || q.ID != published.ID || q.CorrectAnswer != "4" {
		t.Fatalf("CurrentQuestion = %+v, %v", q, err)
	}
	rows, err := c.Submissions(ctx, session.ID, published.ID)
	if err != nil || len(rows) != 1 {
		t.Fatalf("Submissions = %+v, %v", rows, err)
	}

	if _, err := c.Session(ctx, "missing"); !errors.Is(err, live.ErrSessionNotFound) {
		t.Fatalf("Session(missing) = %v", err)
	}
	if _, err := c.Subscribe(ctx, "missing"); !errors.Is(err, live.ErrSessionNotFound) {
		t.Fatalf("Subscribe(missing) = %v", err)
	}
}

func TestClientStreamClosesOnResync(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	c := New(s.srv.URL, "")
	session, _ := s.sessions.Start(ctx, "teacher-1")

	stream, err := c.Subscribe(ctx, session.ID)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer stream.Close()

	s.questions.Publish(ctx, session.ID, "teacher-1", "2+2", "4")
	select {
	case ev := <-stream.Events():
		if ev.Entity != pubsub.EntityQuestion || ev.SessionID != session.ID {
			t.Fatalf("event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no change event")
	}

	s.broker.Reset()
	select {
	case _, ok := <-stream.Events():
		if ok {
			t.Fatal("expected stream to close after resync")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not close")
	}
}

// A board process and the server converge through the websocket feed.
func TestViewerOverClient(t *testing.T) {
	s := newServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	session, _ := s.sessions.Start(ctx, "teacher-1")

	views := make(chan live.View, 64)
	viewer := live.NewViewer(New(s.srv.URL, ""), session.ID, func(v live.View) { views <- v })
	viewer.MinBackoff = time.Millisecond
	go viewer.Run(ctx)

	wait := func(pred func(live.View) bool) live.View {
		t.Helper()
		deadline := time.After(3 * time.Second)
		for {
			select {
			case v := <-views:
				if pred(v) {
					return v
				}
			case <-deadline:
				t.Fatal("timed out waiting for view")
			}
		}
	}

	wait(func(v live.View) bool { return v.SessionID == session.ID })
	q1, _ := s.questions.Publish(ctx, session.ID, "teacher-1", "3+3", "6")
	for _, st := range []string{"st1", "st2", "st3"} {
		s.subs.Submit(ctx, session.ID, q1.ID, st, "6")
	}
	wait(func(v live.View) bool { return v.Stats.Total == 3 })

	s.broker.Reset()
	q2, _ := s.questions.Publish(ctx, session.ID, "teacher-1", "4+4", "8")
	v := wait(func(v live.View) bool { return v.Question != nil && v.Question.ID == q2.ID })
	if v.Stats.Total != 0 {
		t.Fatalf("board after resync = %+v", v.Stats)
	}

	if _, err := s.sessions.End(ctx, session.ID, "teacher-1"); err != nil {
		t.Fatalf("End: %v", err)
	}
	wait(func(v live.View) bool { return v.Ended })
}

func TestClientErrorCarriesBody(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		want        string
	}{
		{"json error", "application/json", `{"error":"database unavailable"}`, "database unavailable"},
		{"plain text", "text/plain", "502 Bad Gateway\n", "502 Bad Gateway"},
		{"json without error field", "application/json", `{"message":"nope"}`, `{"message":"nope"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(http.StatusBadGateway)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := New(srv.URL, "").Session(context.Background(), "s1")
			if err == nil {
				t.Fatal("Session succeeded on a 502")
			}
			if !strings.Contains(err.Error(), tt.want) || !strings.Contains(err.Error(), "502") {
				t.Fatalf("error = %q, want status and %q", err, tt.want)
			}
		})
	}
}

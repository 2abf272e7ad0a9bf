package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"live-class-backend/internal/models"
	"live-class-backend/internal/pubsub"
)

type recordingPublisher struct {
	events []pubsub.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev pubsub.Event) error {
	p.events = append(p.events, ev)
	return p.err
}

func TestWithChangesPublishesAfterWrite(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	s := WithChanges(NewMemoryStore(), pub)

	s.CreateSession(ctx, &models.ClassSession{ID: "s1", Code: "000001", OwnerID: "t", Active: true})
	s.CreateQuestion(ctx, &models.ClassQuestion{ID: "q1", SessionID: "s1", Text: "2+3=?", CorrectAnswer: "5"})
	s.UpsertSubmission(ctx, &models.ClassSubmission{SessionID: "s1", QuestionID: "q1", StudentID: "st", Answer: "5", UpdatedAt: time.Now()})
	s.SetSessionActive(ctx, "s1", false)

	want := []struct{ typ, entity string }{
		{pubsub.TypeInserted, pubsub.EntitySession},
		{pubsub.TypeInserted, pubsub.EntityQuestion},
		{pubsub.TypeUpdated, pubsub.EntitySubmission},
		{pubsub.TypeUpdated, pubsub.EntitySession},
	}
	if len(pub.events) != len(want) {
		t.Fatalf("got %d events, want %d", len(pub.events), len(want))
	}
	for i, w := range want {
		ev := pub.events[i]
		if ev.Type != w.typ || ev.Entity != w.entity || ev.SessionID != "s1" {
			t.Errorf("event %d = %s/%s/%s, want %s/%s/s1", i, ev.Type, ev.Entity, ev.SessionID, w.typ, w.entity)
		}
	}

	var q models.ClassQuestion
	if err := json.Unmarshal(pub.events[1].Row, &q); err != nil || q.ID != "q1" {
		t.Errorf("question row = %+v, %v", q, err)
	}
}

func TestWithChangesSkipsFailedWrites(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	s := WithChanges(NewMemoryStore(), pub)

	if _, err := s.SetSessionActive(ctx, "missing", false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	if len(pub.events) != 0 {
		t.Fatalf("published %d events for a failed write", len(pub.events))
	}
}

func TestWithChangesSwallowsPublishError(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	s := WithChanges(NewMemoryStore(), pub)

	err := s.CreateQuestion(context.Background(), &models.ClassQuestion{ID: "q1", SessionID: "s1"})
	if err != nil {
		t.Fatalf("CreateQuestion returned publish error: %v", err)
	}
	if _, err := s.GetQuestion(context.Background(), "q1"); err != nil {
		t.Fatalf("question not stored: %v", err)
	}
}

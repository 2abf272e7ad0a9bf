package store

import (
	"context"
	"log/slog"

	"live-class-backend/internal/models"
	"live-class-backend/internal/pubsub"
)

// changeStore publishes a change event after every successful write. The
// write is the durable step; a failed publish is logged and not returned,
// since viewers recover missed events through resync.
type changeStore struct {
	Store
	pub pubsub.Publisher
}

// WithChanges wraps s so that writes to sessions, questions and submissions
// are broadcast on the owning session's topic.
func WithChanges(s Store, pub pubsub.Publisher) Store {
	return &changeStore{Store: s, pub: pub}
}

func (s *changeStore) CreateSession(ctx context.Context, session *models.ClassSession) error {
	if err := s.Store.CreateSession(ctx, session); err != nil {
		return err
	}
	s.publish(ctx, pubsub.TypeInserted, pubsub.EntitySession, session.ID, session)
	return nil
}

func (s *changeStore) SetSessionActive(ctx context.Context, id string, active bool) (*models.ClassSession, error) {
	session, err := s.Store.SetSessionActive(ctx, id, active)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, pubsub.TypeUpdated, pubsub.EntitySession, session.ID, session)
	return session, nil
}

func (s *changeStore) CreateQuestion(ctx context.Context, question *models.ClassQuestion) error {
	if err := s.Store.CreateQuestion(ctx, question); err != nil {
		return err
	}
	s.publish(ctx, pubsub.TypeInserted, pubsub.EntityQuestion, question.SessionID, question)
	return nil
}

// Upserts are published as updates; consumers treat both types alike.
func (s *changeStore) UpsertSubmission(ctx context.Context, sub *models.ClassSubmission) (*models.ClassSubmission, error) {
	stored, err := s.Store.UpsertSubmission(ctx, sub)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, pubsub.TypeUpdated, pubsub.EntitySubmission, stored.SessionID, stored)
	return stored, nil
}

func (s *changeStore) publish(ctx context.Context, typ, entity, sessionID string, row interface{}) {
	ev, err := pubsub.NewEvent(typ, entity, sessionID, row)
	if err == nil {
		err = s.pub.Publish(ctx, ev)
	}
	if err != nil {
		slog.Error("store: change not published", "entity", entity, "session_id", sessionID, "error", err)
	}
}

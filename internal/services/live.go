package services

import (
	"context"
	"errors"

	"live-class-backend/internal/live"
	"live-class-backend/internal/models"
	"live-class-backend/internal/pubsub"
)

// LiveFeed serves viewers running inside this process: pulls go through the
// services, the stream is a broker subscription.
type LiveFeed struct {
	sessions    *SessionRegistry
	questions   *QuestionChannel
	submissions *SubmissionStore
	broker      *pubsub.Broker
}

func NewLiveFeed(sessions *SessionRegistry, questions *QuestionChannel, submissions *SubmissionStore, broker *pubsub.Broker) *LiveFeed {
	return &LiveFeed{sessions: sessions, questions: questions, submissions: submissions, broker: broker}
}

var _ live.Source = (*LiveFeed)(nil)

func (f *LiveFeed) Session(ctx context.Context, sessionID string) (*models.ClassSession, error) {
	session, err := f.sessions.Get(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return nil, errors.Join(live.ErrSessionNotFound, err)
	}
	return session, err
}

func (f *LiveFeed) CurrentQuestion(ctx context.Context, sessionID string) (*models.ClassQuestion, error) {
	q, err := f.questions.Current(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return nil, errors.Join(live.ErrSessionNotFound, err)
	}
	return q, err
}

func (f *LiveFeed) Submissions(ctx context.Context, sessionID, questionID string) ([]models.ClassSubmission, error) {
	return f.submissions.List(ctx, sessionID, questionID)
}

func (f *LiveFeed) Subscribe(_ context.Context, sessionID string) (live.Stream, error) {
	return &brokerStream{broker: f.broker, sub: f.broker.Subscribe(sessionID)}, nil
}

type brokerStream struct {
	broker *pubsub.Broker
	sub    *pubsub.Subscription
}

func (s *brokerStream) Events() <-chan pubsub.Event { return s.sub.Events() }

func (s *brokerStream) Close() { s.broker.Unsubscribe(s.sub) }

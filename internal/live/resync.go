package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"live-class-backend/internal/models"
	"live-class-backend/internal/pubsub"
)

// ErrSessionNotFound stops a Viewer: there is nothing to resync against.
var ErrSessionNotFound = errors.New("live: session not found")

var errStreamClosed = errors.New("live: event stream closed")

// Stream is a live subscription. Its channel is closed on disconnect.
type Stream interface {
	Events() <-chan pubsub.Event
	Close()
}

// Source is everything a viewer needs from storage and transport.
type Source interface {
	// Session returns ErrSessionNotFound (possibly wrapped) for unknown ids.
	Session(ctx context.Context, sessionID string) (*models.ClassSession, error)
	// CurrentQuestion returns nil when no question has been published yet.
	CurrentQuestion(ctx context.Context, sessionID string) (*models.ClassQuestion, error)
	Submissions(ctx context.Context, sessionID, questionID string) ([]models.ClassSubmission, error)
	Subscribe(ctx context.Context, sessionID string) (Stream, error)
}

const (
	defaultMinBackoff = 250 * time.Millisecond
	defaultMaxBackoff = 10 * time.Second
)

// Viewer runs the resync protocol for one viewer connection: subscribe, pull
// the current question and its submissions, seed the aggregator, then apply
// live events until the stream drops, and start over from a full re-seed.
// Subscribing before the pull means nothing published during the pull is
// lost; anything seen twice is absorbed by the aggregator.
type Viewer struct {
	source    Source
	sessionID string
	agg       *Aggregator
	onChange  func(View)

	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// NewViewer creates a viewer; onChange may be nil.
func NewViewer(source Source, sessionID string, onChange func(View)) *Viewer {
	return &Viewer{
		source:     source,
		sessionID:  sessionID,
		agg:        NewAggregator(),
		onChange:   onChange,
		MinBackoff: defaultMinBackoff,
		MaxBackoff: defaultMaxBackoff,
	}
}

func (v *Viewer) View() View {
	return v.agg.State().View(v.sessionID)
}

// Run blocks until ctx is done or the session turns out not to exist.
func (v *Viewer) Run(ctx context.Context) error {
	backoff := v.MinBackoff
	for {
		synced, err := v.syncOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, ErrSessionNotFound) {
			return err
		}
		if synced {
			backoff = v.MinBackoff
		}
		slog.Warn("live: resyncing", "session_id", v.sessionID, "error", err, "backoff", backoff)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		backoff *= 2
		if backoff > v.MaxBackoff {
			backoff = v.MaxBackoff
		}
	}
}

func (v *Viewer) syncOnce(ctx context.Context) (bool, error) {
	stream, err := v.source.Subscribe(ctx, v.sessionID)
	if err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}
	defer stream.Close()

	session, err := v.source.Session(ctx, v.sessionID)
	if err != nil {
		return false, fmt.Errorf("load session: %w", err)
	}
	question, err := v.source.CurrentQuestion(ctx, v.sessionID)
	if err != nil {
		return false, fmt.Errorf("load current question: %w", err)
	}
	var subs []models.ClassSubmission
	if question != nil {
		if subs, err = v.source.Submissions(ctx, v.sessionID, question.ID); err != nil {
			return false, fmt.Errorf("load submissions: %w", err)
		}
	}

	v.seed(session, question, subs)

	for {
		select {
		case <-ctx.Done():
			return true, ctx.Err()
		case ev, ok := <-stream.Events():
			if !ok {
				return true, errStreamClosed
			}
			le, ok := DecodeChange(ev)
			if !ok {
				continue
			}
			if v.agg.Apply(le) {
				v.notify()
			}
		}
	}
}

func (v *Viewer) seed(session *models.ClassSession, question *models.ClassQuestion, subs []models.ClassSubmission) {
	v.agg.Reset()
	if question != nil {
		v.agg.Apply(QuestionCreated{Question: *question})
		for _, sub := range subs {
			v.agg.Apply(SubmissionUpserted{Submission: sub})
		}
	}
	if session != nil && !session.Active {
		v.agg.Apply(SessionEnded{})
	}
	v.notify()
}

func (v *Viewer) notify() {
	if v.onChange != nil {
		v.onChange(v.View())
	}
}

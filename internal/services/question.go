package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"live-class-backend/internal/models"
	"live-class-backend/internal/store"

	"github.com/google/uuid"
)

const maxQuestionText = 2000

var digitsPattern = regexp.MustCompile(`^\d+$`)

// QuestionChannel publishes questions to a session. The stored insert is the
// broadcast: the store decorator emits the change event.
type QuestionChannel struct {
	store store.Store
	now   func() time.Time
}

func NewQuestionChannel(st store.Store) *QuestionChannel {
	return &QuestionChannel{store: st, now: time.Now}
}

// Publish makes a new current question. CreatedAt is strictly after that of
// every earlier question of the session.
func (c *QuestionChannel) Publish(ctx context.Context, sessionID, callerID, text, correctAnswer string) (*models.ClassQuestion, error) {
	text = strings.TrimSpace(text)
	correctAnswer = strings.TrimSpace(correctAnswer)
	if text == "" {
		return nil, validationErr("question text is required")
	}
	if utf8.RuneCountInString(text) > maxQuestionText {
		return nil, validationErr("question text exceeds %d characters", maxQuestionText)
	}
	if !digitsPattern.MatchString(correctAnswer) {
		return nil, validationErr("correct answer must be a non-negative integer")
	}

	session, err := activeSession(ctx, c.store, sessionID)
	if err != nil {
		return nil, err
	}
	if session.OwnerID != callerID {
		return nil, fmt.Errorf("%w: only the owner may publish questions", ErrForbidden)
	}

	createdAt := c.now().UTC().Truncate(time.Microsecond)
	latest, err := c.store.LatestQuestion(ctx, sessionID)
	switch {
	case err == nil:
		if !createdAt.After(latest.CreatedAt) {
			createdAt = latest.CreatedAt.Add(time.Microsecond)
		}
	case errors.Is(err, store.ErrNotFound):
	default:
		return nil, transportErr("load latest question", err)
	}

	question := models.ClassQuestion{
		ID:            uuid.NewString(),
		SessionID:     sessionID,
		Text:          text,
		CorrectAnswer: correctAnswer,
		CreatedAt:     createdAt,
	}
	if err := c.store.CreateQuestion(ctx, &question); err != nil {
		return nil, transportErr("insert question", err)
	}
	slog.Info("question: published", "session_id", sessionID, "question_id", question.ID)
	return &question, nil
}

// Current returns the latest question of the session, or nil when none was
// published yet.
func (c *QuestionChannel) Current(ctx context.Context, sessionID string) (*models.ClassQuestion, error) {
	if _, err := c.store.GetSession(ctx, sessionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFoundErr("session")
		}
		return nil, transportErr("get session", err)
	}
	q, err := c.store.LatestQuestion(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, transportErr("load latest question", err)
	}
	return q, nil
}

package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"live-class-backend/internal/models"
	"live-class-backend/internal/store"
)

// SubmissionStore records one answer per student per question. A resubmission
// overwrites the earlier answer; an older write never wins over a newer one.
type SubmissionStore struct {
	store store.Store
	now   func() time.Time
}

func NewSubmissionStore(st store.Store) *SubmissionStore {
	return &SubmissionStore{store: st, now: time.Now}
}

// Submit upserts the student's answer. The answer is not trimmed: anything
// other than ASCII digits is rejected.
func (s *SubmissionStore) Submit(ctx context.Context, sessionID, questionID, studentID, answer string) (*models.ClassSubmission, error) {
	if !digitsPattern.MatchString(answer) {
		return nil, validationErr("answer must be a non-negative integer")
	}
	if studentID == "" {
		return nil, validationErr("student id is required")
	}
	if _, err := activeSession(ctx, s.store, sessionID); err != nil {
		return nil, err
	}
	question, err := s.store.GetQuestion(ctx, questionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFoundErr("question")
		}
		return nil, transportErr("get question", err)
	}
	if question.SessionID != sessionID {
		return nil, notFoundErr("question does not belong to this session")
	}

	stored, err := s.store.UpsertSubmission(ctx, &models.ClassSubmission{
		SessionID:  sessionID,
		QuestionID: questionID,
		StudentID:  studentID,
		Answer:     answer,
		UpdatedAt:  s.now().UTC().Truncate(time.Microsecond),
	})
	if err != nil {
		return nil, transportErr("upsert submission", err)
	}
	slog.Debug("submission: stored", "session_id", sessionID, "question_id", questionID, "student_id", studentID)
	return stored, nil
}

// List returns every stored submission for the question.
func (s *SubmissionStore) List(ctx context.Context, sessionID, questionID string) ([]models.ClassSubmission, error) {
	subs, err := s.store.ListSubmissions(ctx, sessionID, questionID)
	if err != nil {
		return nil, transportErr("list submissions", err)
	}
	return subs, nil
}

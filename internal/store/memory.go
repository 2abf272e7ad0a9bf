package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"live-class-backend/internal/models"
)

type submissionKey struct {
	sessionID  string
	questionID string
	studentID  string
}

// MemoryStore keeps every table in process memory. It enforces the same
// uniqueness rules as the Postgres schema.
type MemoryStore struct {
	mu          sync.RWMutex
	users       map[string]models.User
	sessions    map[string]models.ClassSession
	questions   map[string]models.ClassQuestion
	submissions map[submissionKey]models.ClassSubmission
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[string]models.User),
		sessions:    make(map[string]models.ClassSession),
		questions:   make(map[string]models.ClassQuestion),
		submissions: make(map[submissionKey]models.ClassSubmission),
	}
}

func (s *MemoryStore) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return ErrConflict
	}
	for _, u := range s.users {
		if u.Login == user.Login {
			return ErrConflict
		}
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.users[user.ID] = *user
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s *MemoryStore) FindUserByLogin(_ context.Context, login string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Login == login {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) CreateSession(_ context.Context, session *models.ClassSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.ID]; ok {
		return ErrConflict
	}
	if session.Active {
		for _, existing := range s.sessions {
			if existing.Active && existing.Code == session.Code {
				return ErrConflict
			}
		}
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	s.sessions[session.ID] = *session
	return nil
}

func (s *MemoryStore) GetSession(_ context.Context, id string) (*models.ClassSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &sess, nil
}

func (s *MemoryStore) FindActiveSessionsByCode(_ context.Context, code string) ([]models.ClassSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.ClassSession
	for _, sess := range s.sessions {
		if sess.Active && sess.Code == code {
			result = append(result, sess)
		}
	}
	return result, nil
}

func (s *MemoryStore) ListSessionsByOwner(_ context.Context, ownerID string) ([]models.ClassSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.ClassSession
	for _, sess := range s.sessions {
		if sess.OwnerID == ownerID {
			result = append(result, sess)
		}
	}
	sort.Slice(result, func(a, b int) bool {
		return result[a].CreatedAt.After(result[b].CreatedAt)
	})
	return result, nil
}

func (s *MemoryStore) SetSessionActive(_ context.Context, id string, active bool) (*models.ClassSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if active && !sess.Active {
		for otherID, other := range s.sessions {
			if otherID != id && other.Active && other.Code == sess.Code {
				return nil, ErrConflict
			}
		}
	}
	sess.Active = active
	if active {
		sess.EndedAt = nil
	} else {
		now := time.Now().UTC()
		sess.EndedAt = &now
	}
	s.sessions[id] = sess
	return &sess, nil
}

func (s *MemoryStore) CreateQuestion(_ context.Context, question *models.ClassQuestion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.questions[question.ID]; ok {
		return ErrConflict
	}
	if question.CreatedAt.IsZero() {
		question.CreatedAt = time.Now().UTC()
	}
	s.questions[question.ID] = *question
	return nil
}

func (s *MemoryStore) GetQuestion(_ context.Context, id string) (*models.ClassQuestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.questions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &q, nil
}

func (s *MemoryStore) LatestQuestion(_ context.Context, sessionID string) (*models.ClassQuestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.ClassQuestion
	for _, q := range s.questions {
		if q.SessionID != sessionID {
			continue
		}
		if latest == nil || q.CreatedAt.After(latest.CreatedAt) {
			latest = &q
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return latest, nil
}

func (s *MemoryStore) UpsertSubmission(_ context.Context, sub *models.ClassSubmission) (*models.ClassSubmission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := submissionKey{sessionID: sub.SessionID, questionID: sub.QuestionID, studentID: sub.StudentID}
	if existing, ok := s.submissions[key]; ok && existing.UpdatedAt.After(sub.UpdatedAt) {
		return &existing, nil
	}
	s.submissions[key] = *sub
	stored := *sub
	return &stored, nil
}

func (s *MemoryStore) ListSubmissions(_ context.Context, sessionID, questionID string) ([]models.ClassSubmission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.ClassSubmission
	for key, sub := range s.submissions {
		if key.sessionID == sessionID && key.questionID == questionID {
			result = append(result, sub)
		}
	}
	sort.Slice(result, func(a, b int) bool {
		return result[a].UpdatedAt.After(result[b].UpdatedAt)
	})
	return result, nil
}

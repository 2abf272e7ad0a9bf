package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"regexp"
	"time"

	"live-class-backend/internal/models"
	"live-class-backend/internal/store"

	"github.com/google/uuid"
)

const defaultCodeAttempts = 5

var joinCodePattern = regexp.MustCompile(`^\d{6}$`)

// GenerateCode returns a six digit join code, zero padded.
func GenerateCode() string {
	return fmt.Sprintf("%06d", rand.IntN(1000000))
}

// SessionRegistry creates, resolves and ends class sessions.
type SessionRegistry struct {
	store    store.Store
	attempts int

	now     func() time.Time
	newCode func() string
}

func NewSessionRegistry(st store.Store, attempts int) *SessionRegistry {
	if attempts <= 0 {
		attempts = defaultCodeAttempts
	}
	return &SessionRegistry{store: st, attempts: attempts, now: time.Now, newCode: GenerateCode}
}

// Start opens a new active session owned by ownerID. A code already held by
// another active session is regenerated.
func (r *SessionRegistry) Start(ctx context.Context, ownerID string) (*models.ClassSession, error) {
	if ownerID == "" {
		return nil, validationErr("owner id is required")
	}
	var lastErr error
	for i := 0; i < r.attempts; i++ {
		session := models.ClassSession{
			ID:        uuid.NewString(),
			Code:      r.newCode(),
			OwnerID:   ownerID,
			Active:    true,
			CreatedAt: r.now().UTC(),
		}
		err := r.store.CreateSession(ctx, &session)
		if err == nil {
			slog.Info("session: started", "session_id", session.ID, "code", session.Code, "owner_id", ownerID)
			return &session, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return nil, transportErr("create session", err)
		}
		slog.Warn("session: join code collision, retrying", "code", session.Code, "attempt", i+1)
		lastErr = err
	}
	return nil, transportErr("allocate join code", lastErr)
}

// Join resolves an active session by code. Zero or several matches are both
// reported as not found.
func (r *SessionRegistry) Join(ctx context.Context, code string) (*models.ClassSession, error) {
	if !joinCodePattern.MatchString(code) {
		return nil, validationErr("code must be exactly six digits")
	}
	sessions, err := r.store.FindActiveSessionsByCode(ctx, code)
	if err != nil {
		return nil, transportErr("find session by code", err)
	}
	if len(sessions) != 1 {
		if len(sessions) > 1 {
			slog.Error("session: several active sessions share a code", "code", code, "count", len(sessions))
		}
		return nil, notFoundErr("no active session with this code")
	}
	return &sessions[0], nil
}

// End deactivates the session. Ending an inactive session is a no-op.
func (r *SessionRegistry) End(ctx context.Context, sessionID, callerID string) (*models.ClassSession, error) {
	session, err := r.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.OwnerID != callerID {
		return nil, fmt.Errorf("%w: only the owner may end the session", ErrForbidden)
	}
	if !session.Active {
		return session, nil
	}
	updated, err := r.store.SetSessionActive(ctx, sessionID, false)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFoundErr("session")
		}
		return nil, transportErr("end session", err)
	}
	slog.Info("session: ended", "session_id", sessionID)
	return updated, nil
}

func (r *SessionRegistry) Get(ctx context.Context, sessionID string) (*models.ClassSession, error) {
	session, err := r.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFoundErr("session")
		}
		return nil, transportErr("get session", err)
	}
	return session, nil
}

// ListOwned returns every session of the owner, ended ones included.
func (r *SessionRegistry) ListOwned(ctx context.Context, ownerID string) ([]models.ClassSession, error) {
	sessions, err := r.store.ListSessionsByOwner(ctx, ownerID)
	if err != nil {
		return nil, transportErr("list sessions", err)
	}
	return sessions, nil
}

// activeSession loads a session that must exist and be active.
func activeSession(ctx context.Context, st store.Store, sessionID string) (*models.ClassSession, error) {
	session, err := st.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFoundErr("session")
		}
		return nil, transportErr("get session", err)
	}
	if !session.Active {
		return nil, notFoundErr("session is not active")
	}
	return session, nil
}

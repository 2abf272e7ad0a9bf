// Package store is the durable storage collaborator for live classes.
package store

import (
	"context"
	"errors"

	"live-class-backend/internal/models"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("unique constraint violated")
)

// Store exposes insert, upsert, query and update operations over the
// live-class tables. Each write is atomic on its own row; no operation spans
// several rows in one transaction.
type Store interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	FindUserByLogin(ctx context.Context, login string) (*models.User, error)

	// CreateSession returns ErrConflict when another active session already
	// holds the same code.
	CreateSession(ctx context.Context, session *models.ClassSession) error
	GetSession(ctx context.Context, id string) (*models.ClassSession, error)
	FindActiveSessionsByCode(ctx context.Context, code string) ([]models.ClassSession, error)
	ListSessionsByOwner(ctx context.Context, ownerID string) ([]models.ClassSession, error)
	SetSessionActive(ctx context.Context, id string, active bool) (*models.ClassSession, error)

	CreateQuestion(ctx context.Context, question *models.ClassQuestion) error
	GetQuestion(ctx context.Context, id string) (*models.ClassQuestion, error)
	// LatestQuestion returns ErrNotFound when the session has no question yet.
	LatestQuestion(ctx context.Context, sessionID string) (*models.ClassQuestion, error)

	// UpsertSubmission inserts the row or overwrites answer and updated_at of
	// the existing row with the same key, unless the stored row is newer. It
	// returns the row as stored after the write.
	UpsertSubmission(ctx context.Context, sub *models.ClassSubmission) (*models.ClassSubmission, error)
	ListSubmissions(ctx context.Context, sessionID, questionID string) ([]models.ClassSubmission, error)
}

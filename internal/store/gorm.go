package store

import (
	"context"
	"errors"
	"time"

	"live-class-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore is the Postgres-backed Store. The *gorm.DB must be opened with
// TranslateError so unique violations surface as gorm.ErrDuplicatedKey.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrConflict
	default:
		return err
	}
}

func (s *GormStore) CreateUser(ctx context.Context, user *models.User) error {
	return translate(s.db.WithContext(ctx).Create(user).Error)
}

func (s *GormStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *GormStore) FindUserByLogin(ctx context.Context, login string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("login = ?", login).Take(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *GormStore) CreateSession(ctx context.Context, session *models.ClassSession) error {
	return translate(s.db.WithContext(ctx).Create(session).Error)
}

func (s *GormStore) GetSession(ctx context.Context, id string) (*models.ClassSession, error) {
	var session models.ClassSession
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&session).Error; err != nil {
		return nil, translate(err)
	}
	return &session, nil
}

func (s *GormStore) FindActiveSessionsByCode(ctx context.Context, code string) ([]models.ClassSession, error) {
	var sessions []models.ClassSession
	if err := s.db.WithContext(ctx).
		Where("code = ? AND active = ?", code, true).
		Find(&sessions).Error; err != nil {
		return nil, translate(err)
	}
	return sessions, nil
}

func (s *GormStore) ListSessionsByOwner(ctx context.Context, ownerID string) ([]models.ClassSession, error) {
	var sessions []models.ClassSession
	if err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&sessions).Error; err != nil {
		return nil, translate(err)
	}
	return sessions, nil
}

func (s *GormStore) SetSessionActive(ctx context.Context, id string, active bool) (*models.ClassSession, error) {
	var endedAt *time.Time
	if !active {
		now := time.Now().UTC()
		endedAt = &now
	}

	res := s.db.WithContext(ctx).Model(&models.ClassSession{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"active": active, "ended_at": endedAt})
	if res.Error != nil {
		return nil, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.GetSession(ctx, id)
}

func (s *GormStore) CreateQuestion(ctx context.Context, question *models.ClassQuestion) error {
	return translate(s.db.WithContext(ctx).Create(question).Error)
}

func (s *GormStore) GetQuestion(ctx context.Context, id string) (*models.ClassQuestion, error) {
	var question models.ClassQuestion
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&question).Error; err != nil {
		return nil, translate(err)
	}
	return &question, nil
}

func (s *GormStore) LatestQuestion(ctx context.Context, sessionID string) (*models.ClassQuestion, error) {
	var question models.ClassQuestion
	if err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Limit(1).
		Take(&question).Error; err != nil {
		return nil, translate(err)
	}
	return &question, nil
}

// submissionUpsert never lets a write carrying an older timestamp replace a
// newer row.
func submissionUpsert() clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}, {Name: "question_id"}, {Name: "student_id"}},
		Where:     clause.Where{Exprs: []clause.Expression{gorm.Expr("class_submissions.updated_at <= excluded.updated_at")}},
		DoUpdates: clause.AssignmentColumns([]string{"answer", "updated_at"}),
	}
}

func (s *GormStore) UpsertSubmission(ctx context.Context, sub *models.ClassSubmission) (*models.ClassSubmission, error) {
	err := s.db.WithContext(ctx).Clauses(submissionUpsert()).Create(sub).Error
	if err != nil {
		return nil, translate(err)
	}

	var stored models.ClassSubmission
	if err := s.db.WithContext(ctx).
		Where("session_id = ? AND question_id = ? AND student_id = ?", sub.SessionID, sub.QuestionID, sub.StudentID).
		Take(&stored).Error; err != nil {
		return nil, translate(err)
	}
	return &stored, nil
}

func (s *GormStore) ListSubmissions(ctx context.Context, sessionID, questionID string) ([]models.ClassSubmission, error) {
	var subs []models.ClassSubmission
	if err := s.db.WithContext(ctx).
		Where("session_id = ? AND question_id = ?", sessionID, questionID).
		Order("updated_at DESC").
		Find(&subs).Error; err != nil {
		return nil, translate(err)
	}
	return subs, nil
}

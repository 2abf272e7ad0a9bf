package models

import "time"

// ClassSubmission is keyed by (SessionID, QuestionID, StudentID); a resubmission
// overwrites Answer and UpdatedAt in place.
type ClassSubmission struct {
	SessionID  string    `gorm:"primaryKey;size:36" json:"session_id"`
	QuestionID string    `gorm:"primaryKey;size:36" json:"question_id"`
	StudentID  string    `gorm:"primaryKey;size:36" json:"student_id"`
	Answer     string    `gorm:"type:text;not null" json:"answer"`
	UpdatedAt  time.Time `gorm:"not null;autoUpdateTime:false" json:"updated_at"`
}

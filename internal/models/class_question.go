package models

import "time"

// ClassQuestion is immutable once inserted. The current question of a session
// is the one with the greatest CreatedAt.
type ClassQuestion struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	SessionID     string    `gorm:"size:36;not null;index:idx_question_latest,priority:1" json:"session_id"`
	Text          string    `gorm:"type:text;not null" json:"text"`
	CorrectAnswer string    `gorm:"type:text;not null" json:"correct_answer,omitempty"`
	CreatedAt     time.Time `gorm:"not null;index:idx_question_latest,priority:2,sort:desc" json:"created_at"`
}

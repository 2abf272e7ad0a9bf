package models

import "time"

// ClassSession is one live class. Rows are never deleted; ending a class only
// clears Active. At most one active row may hold a given Code.
type ClassSession struct {
	ID        string     `gorm:"primaryKey;size:36" json:"id"`
	Code      string     `gorm:"size:6;not null;index" json:"code"`
	OwnerID   string     `gorm:"size:36;not null;index" json:"owner_id"`
	Active    bool       `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time  `json:"created_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

package models

import "time"

type User struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Login        string    `gorm:"size:32;uniqueIndex;not null" json:"login"`
	Role         string    `gorm:"size:10;not null" json:"role"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

const (
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

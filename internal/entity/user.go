package entity

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name         string    `gorm:"type:varchar(255);not null"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string    `gorm:"type:text;not null"`

	EmailVerifiedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	Sessions []Session
}

func (u *User) HasVerifiedEmail() bool {
	return u != nil && u.EmailVerifiedAt != nil
}
